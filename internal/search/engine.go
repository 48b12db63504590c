package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/metrics"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"github.com/rs/zerolog"
)

var (
	// ErrSearchUnavailable is returned when both sub-indexes fail.
	ErrSearchUnavailable = errors.New("search unavailable")
	ErrIndexUnavailable  = errors.New("index not configured")
	ErrInvalidWeights    = errors.New("invalid fusion weights")
)

type Mode string

const (
	ModeStrict   Mode = "strict"
	ModeDegraded Mode = "degraded"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeStrict:
		return ModeStrict, nil
	case ModeDegraded:
		return ModeDegraded, nil
	default:
		return "", fmt.Errorf("unknown search mode %q (want strict or degraded)", s)
	}
}

// FusionWeights scale the normalised sub-index scores before they are summed.
type FusionWeights struct {
	Lexical  float64 `json:"lexical" yaml:"lexical"`
	Semantic float64 `json:"semantic" yaml:"semantic"`
}

func DefaultWeights() FusionWeights {
	return FusionWeights{Lexical: 1, Semantic: 1}
}

func (w FusionWeights) Validate() error {
	if w.Lexical < 0 || w.Semantic < 0 {
		return fmt.Errorf("%w: weights must be non-negative, got lexical=%v semantic=%v", ErrInvalidWeights, w.Lexical, w.Semantic)
	}
	if w.Lexical == 0 && w.Semantic == 0 {
		return fmt.Errorf("%w: at least one weight must be positive", ErrInvalidWeights)
	}
	return nil
}

type ChunkLookup interface {
	Get(id string) (models.Chunk, bool)
}

type LexicalSearcher interface {
	Search(query string, boost map[string]float64, topK int) []models.SearchResult
}

type SemanticSearcher interface {
	SearchText(ctx context.Context, query string, topK int) ([]models.SearchResult, error)
}

type Engine struct {
	store           ChunkLookup
	lexical         LexicalSearcher
	semantic        SemanticSearcher
	mode            Mode
	weights         FusionWeights
	candidateFactor int
	logger          *zerolog.Logger
}

type Option func(*Engine)

func WithMode(mode Mode) Option {
	return func(e *Engine) { e.mode = mode }
}

func WithWeights(w FusionWeights) Option {
	return func(e *Engine) { e.weights = w }
}

func WithCandidateFactor(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.candidateFactor = n
		}
	}
}

func WithLogger(logger *zerolog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine combines a lexical and a semantic index over store. A nil index is treated as unavailable.
func NewEngine(store ChunkLookup, lexical LexicalSearcher, semantic SemanticSearcher, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("chunk store is required")
	}

	nop := zerolog.Nop()
	e := &Engine{
		store:           store,
		lexical:         lexical,
		semantic:        semantic,
		mode:            ModeStrict,
		weights:         DefaultWeights(),
		candidateFactor: 2,
		logger:          &nop,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.mode != ModeStrict && e.mode != ModeDegraded {
		return nil, fmt.Errorf("unknown search mode %q", e.mode)
	}
	if err := e.weights.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) Mode() Mode {
	return e.mode
}

// Search returns up to numResults chunks ranked by the weighted sum of
// min-max normalised lexical and semantic scores.
func (e *Engine) Search(ctx context.Context, query string, numResults int, boost map[string]float64) ([]models.ScoredChunk, error) {
	if strings.TrimSpace(query) == "" || numResults <= 0 {
		return []models.ScoredChunk{}, nil
	}

	start := time.Now()
	defer func() { metrics.SearchDuration.Observe(time.Since(start).Seconds()) }()

	candidates := numResults * e.candidateFactor

	lexResults, lexErr := e.searchLexical(query, boost, candidates)
	semResults, semErr := e.searchSemantic(ctx, query, candidates)

	switch {
	case lexErr != nil && semErr != nil:
		metrics.SearchRequests.WithLabelValues(string(e.mode), "unavailable").Inc()
		return nil, fmt.Errorf("%w: lexical: %w; semantic: %w", ErrSearchUnavailable, lexErr, semErr)
	case lexErr != nil:
		if e.mode == ModeStrict {
			metrics.SearchRequests.WithLabelValues(string(e.mode), "error").Inc()
			return nil, fmt.Errorf("lexical search failed: %w", lexErr)
		}
		e.degrade("lexical", lexErr)
	case semErr != nil:
		if e.mode == ModeStrict {
			metrics.SearchRequests.WithLabelValues(string(e.mode), "error").Inc()
			return nil, fmt.Errorf("semantic search failed: %w", semErr)
		}
		e.degrade("semantic", semErr)
	}

	fused := e.fuse(lexResults, semResults)
	if len(fused) > numResults {
		fused = fused[:numResults]
	}

	metrics.SearchRequests.WithLabelValues(string(e.mode), "ok").Inc()
	e.logger.Debug().
		Str("query", query).
		Int("lexical_hits", len(lexResults)).
		Int("semantic_hits", len(semResults)).
		Int("results", len(fused)).
		Dur("duration", time.Since(start)).
		Msg("Hybrid search completed")

	return fused, nil
}

func (e *Engine) searchLexical(query string, boost map[string]float64, topK int) ([]models.SearchResult, error) {
	if e.lexical == nil {
		return nil, fmt.Errorf("lexical %w", ErrIndexUnavailable)
	}
	return e.lexical.Search(query, boost, topK), nil
}

func (e *Engine) searchSemantic(ctx context.Context, query string, topK int) ([]models.SearchResult, error) {
	if e.semantic == nil {
		return nil, fmt.Errorf("semantic %w", ErrIndexUnavailable)
	}
	return e.semantic.SearchText(ctx, query, topK)
}

func (e *Engine) degrade(index string, err error) {
	metrics.SearchDegraded.WithLabelValues(index).Inc()
	e.logger.Warn().Err(err).Str("failed_index", index).Msg("Sub-index failed, serving results from the remaining one")
}

func (e *Engine) fuse(lexResults, semResults []models.SearchResult) []models.ScoredChunk {
	merged := make(map[string]*models.ScoredChunk, len(lexResults)+len(semResults))

	add := func(results []models.SearchResult, weight float64, source models.ResultSource) {
		for i, norm := range normalize(results) {
			r := results[i]
			sc, ok := merged[r.ChunkID]
			if !ok {
				chunk, found := e.store.Get(r.ChunkID)
				if !found {
					e.logger.Warn().Str("chunk_id", r.ChunkID).Str("source", string(source)).Msg("Index returned a chunk missing from the store")
					continue
				}
				sc = &models.ScoredChunk{Chunk: chunk}
				merged[r.ChunkID] = sc
			}
			sc.Score += weight * norm
			sc.Sources = append(sc.Sources, source)
			if source == models.SourceLexical {
				sc.LexicalScore = r.Score
			} else {
				sc.SemanticScore = r.Score
			}
		}
	}

	add(lexResults, e.weights.Lexical, models.SourceLexical)
	add(semResults, e.weights.Semantic, models.SourceSemantic)

	out := make([]models.ScoredChunk, 0, len(merged))
	for _, sc := range merged {
		out = append(out, *sc)
	}

	slices.SortFunc(out, func(a, b models.ScoredChunk) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Chunk.ID, b.Chunk.ID)
	})
	return out
}

// normalize maps scores onto [0,1]. A list whose scores are all equal maps to 1.
func normalize(results []models.SearchResult) []float64 {
	out := make([]float64, len(results))
	if len(results) == 0 {
		return out
	}

	lo, hi := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		lo = min(lo, r.Score)
		hi = max(hi, r.Score)
	}

	for i, r := range results {
		if hi == lo {
			out[i] = 1
			continue
		}
		out[i] = (r.Score - lo) / (hi - lo)
	}
	return out
}

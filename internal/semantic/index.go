package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"golang.org/x/sync/errgroup"
)

// Embedder turns text into a fixed-length vector. Dimension returns 0 when the
// size is only known after the first call.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Index is an immutable in-memory vector index over chunk embeddings.
type Index struct {
	ids       []string
	vectors   [][]float32
	dimension int
	embedder  Embedder
}

type Option func(*buildOptions)

type buildOptions struct {
	concurrency int
}

// WithConcurrency bounds parallel embedding calls during Build.
func WithConcurrency(n int) Option {
	return func(o *buildOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func Build(ctx context.Context, chunks []models.Chunk, embedder Embedder, opts ...Option) (*Index, error) {
	if embedder == nil {
		return nil, &EmbeddingError{Op: "build", Err: fmt.Errorf("embedder is nil")}
	}

	o := buildOptions{concurrency: 4}
	for _, opt := range opts {
		opt(&o)
	}

	idx := &Index{
		ids:       make([]string, len(chunks)),
		vectors:   make([][]float32, len(chunks)),
		dimension: embedder.Dimension(),
		embedder:  embedder,
	}

	// The first vector fixes the dimension when the embedder does not declare one.
	start := 0
	if idx.dimension == 0 && len(chunks) > 0 {
		vec, err := idx.embedChunk(ctx, chunks[0])
		if err != nil {
			return nil, err
		}
		idx.dimension = len(vec)
		idx.ids[0], idx.vectors[0] = chunks[0].ID, normalize(vec)
		start = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i := start; i < len(chunks); i++ {
		g.Go(func() error {
			vec, err := idx.embedChunk(gctx, chunks[i])
			if err != nil {
				return err
			}
			if err := idx.checkDimension(vec, chunks[i].ID); err != nil {
				return err
			}
			idx.ids[i], idx.vectors[i] = chunks[i].ID, normalize(vec)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) Dimension() int {
	return idx.dimension
}

func (idx *Index) Len() int {
	return len(idx.ids)
}

// Search ranks chunks by cosine similarity to queryVector.
func (idx *Index) Search(queryVector []float32, topK int) ([]models.SearchResult, error) {
	if topK <= 0 || len(idx.ids) == 0 {
		return []models.SearchResult{}, nil
	}
	if err := idx.checkDimension(queryVector, ""); err != nil {
		return nil, err
	}

	q := normalize(queryVector)
	order := make([]int, len(idx.ids))
	scores := make([]float64, len(idx.ids))
	for i, v := range idx.vectors {
		order[i] = i
		scores[i] = dot(q, v)
	}

	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if len(order) > topK {
		order = order[:topK]
	}

	results := make([]models.SearchResult, len(order))
	for i, doc := range order {
		results[i] = models.SearchResult{
			ChunkID: idx.ids[doc],
			Score:   scores[doc],
			Source:  models.SourceSemantic,
		}
	}
	return results, nil
}

// SearchText embeds query with the index embedder and searches with it.
func (idx *Index) SearchText(ctx context.Context, query string, topK int) ([]models.SearchResult, error) {
	if topK <= 0 {
		return []models.SearchResult{}, nil
	}

	vec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &EmbeddingError{Op: "query", Err: err}
	}
	return idx.Search(vec, topK)
}

func (idx *Index) embedChunk(ctx context.Context, c models.Chunk) ([]float32, error) {
	vec, err := idx.embedder.Embed(ctx, c.Text)
	if err != nil {
		return nil, &EmbeddingError{Op: "build", ChunkID: c.ID, Err: err}
	}
	if len(vec) == 0 {
		return nil, &EmbeddingError{Op: "build", ChunkID: c.ID, Err: fmt.Errorf("%w: empty vector", ErrDimensionMismatch)}
	}
	return vec, nil
}

func (idx *Index) checkDimension(vec []float32, chunkID string) error {
	if len(vec) != idx.dimension {
		op := "query"
		if chunkID != "" {
			op = "build"
		}
		return &EmbeddingError{
			Op:      op,
			ChunkID: chunkID,
			Err:     fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), idx.dimension),
		}
	}
	return nil
}

// normalize returns an L2-normalized copy. Zero vectors stay zero.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}

	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return math.Max(-1, math.Min(1, sum))
}

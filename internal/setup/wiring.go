package setup

import (
	"context"
	"errors"
	"fmt"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/agent"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/aggregator"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/config"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/corpus"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/database"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/evaluation"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/interactionlog"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/judge"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/lexical"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/redis"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/search"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/semantic"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisConnectAttempts = 3

type Dependencies struct {
	Store        *corpus.Store
	Engine       *search.Engine
	Tool         *search.Tool
	Search       config.SearchSettings
	LLMClient    llm.LLMClient
	Agent        agent.Asker
	EvalAgent    agent.Asker
	SystemPrompt string
	Interactions *interactionlog.Logger
	Judge        *judge.Judge
	Runner       *evaluation.Runner
	Generator    *evaluation.QuestionGenerator
	Aggregator   *aggregator.Aggregator
	Logger       *zerolog.Logger

	closers []func()
}

// Close releases connections opened by Wire.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func Wire(ctx context.Context, cfg *Config, logger *zerolog.Logger) (*Dependencies, error) {
	deps, err := WireSearch(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger = deps.Logger

	llmClient, modelName, err := NewLLMClient(ctx, cfg)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	deps.LLMClient = llmClient

	interactions, err := interactionlog.New(cfg.LogsDirectory, logger)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to create interaction logger: %w", err)
	}
	deps.Interactions = interactions

	systemPrompt, err := agent.SystemPrompt(cfg.RepoOwner, cfg.RepoName)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.SystemPrompt = systemPrompt

	agentCfg := agent.Config{
		Name:         cfg.AgentName,
		ModelName:    modelName,
		SystemPrompt: systemPrompt,
		Source:       models.InteractionSourceUser,
	}
	deps.Agent, err = newAgent(cfg.AgentMode, llmClient, deps.Tool, agentCfg, interactions, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}
	agentCfg.Source = models.InteractionSourceEvaluation
	deps.EvalAgent, _ = newAgent(cfg.AgentMode, llmClient, deps.Tool, agentCfg, interactions, logger)

	deps.Judge, err = NewJudge(llmClient, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}

	deps.Runner = evaluation.NewRunner(deps.EvalAgent, deps.Judge,
		evaluation.WithWorkers(cfg.EvalWorkers),
		evaluation.WithInstructions(systemPrompt),
		evaluation.WithLogger(logger),
	)

	deps.Generator, err = evaluation.NewQuestionGenerator(llmClient, evaluation.WithGeneratorLogger(logger))
	if err != nil {
		deps.Close()
		return nil, err
	}

	logger.Info().
		Int("chunks", deps.Store.Len()).
		Str("llm_provider", cfg.LLMProvider).
		Str("embedding_provider", cfg.EmbeddingProvider).
		Str("search_mode", string(deps.Engine.Mode())).
		Str("agent_mode", cfg.AgentMode).
		Msg("Dependencies wired")

	return deps, nil
}

// WireSearch builds the corpus store, both indexes and the search engine only.
func WireSearch(ctx context.Context, cfg *Config, logger *zerolog.Logger) (*Dependencies, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	deps := &Dependencies{Logger: logger}

	chunks, err := loadChunks(ctx, cfg, deps)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}

	store, err := corpus.NewStore(chunks)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to build corpus store: %w", err)
	}
	deps.Store = store

	searchCfg, err := config.LoadSearchConfig()
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to load search config: %w", err)
	}

	engine, err := buildEngine(ctx, cfg, searchCfg.Search, store, deps)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Engine = engine
	deps.Search = searchCfg.Search
	deps.Tool = search.NewTool(engine, searchCfg.Search.NumResults, searchCfg.Search.Boost)
	deps.Aggregator = aggregator.NewAggregator(logger)

	return deps, nil
}

// NewJudge builds the judge from configs/judge.yaml (or JUDGE_CONFIG_PATH).
func NewJudge(llmClient llm.LLMClient, logger *zerolog.Logger) (*judge.Judge, error) {
	judgeCfg, err := config.LoadJudgeConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load judge config: %w", err)
	}

	j, err := judge.New(judgeCfg.Judge, llmClient, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build judge: %w", err)
	}
	return j, nil
}

func newAgent(mode string, client llm.LLMClient, tool agent.SearchTool, cfg agent.Config, interactions agent.InteractionLogger, logger *zerolog.Logger) (agent.Asker, error) {
	switch mode {
	case "tool", "":
		return agent.NewToolAgent(client, tool, cfg, interactions, logger), nil
	case "prompt":
		return agent.NewPromptAgent(client, tool, cfg, interactions, logger), nil
	default:
		return nil, fmt.Errorf("unsupported agent mode: %s", mode)
	}
}

func loadChunks(ctx context.Context, cfg *Config, deps *Dependencies) ([]models.Chunk, error) {
	switch cfg.CorpusSource {
	case "file", "":
		return corpus.LoadFile(cfg.CorpusPath)
	case "postgres":
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, db.Close)

		if err := db.Ping(ctx); err != nil {
			return nil, fmt.Errorf("database ping failed: %w", err)
		}
		return db.LoadChunks(ctx)
	default:
		return nil, fmt.Errorf("unsupported corpus source: %s", cfg.CorpusSource)
	}
}

// newEmbedder is replaced in tests.
var newEmbedder = NewEmbedder

func buildEngine(ctx context.Context, cfg *Config, settings config.SearchSettings, store *corpus.Store, deps *Dependencies) (*search.Engine, error) {
	modeName := settings.Mode
	if cfg.SearchMode != "" {
		modeName = cfg.SearchMode
	}
	mode, err := search.ParseMode(modeName)
	if err != nil {
		return nil, err
	}

	lexicalWeight, semanticWeight := settings.Weights.Values()
	if cfg.FusionLexicalWeight != nil {
		lexicalWeight = *cfg.FusionLexicalWeight
	}
	if cfg.FusionSemanticWeight != nil {
		semanticWeight = *cfg.FusionSemanticWeight
	}

	chunks := store.Chunks()
	lexicalIndex := lexical.Build(chunks, lexical.WithFields(settings.Fields...))

	embedder, model, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	// A nil interface marks the semantic index as unavailable.
	var semanticIndex search.SemanticSearcher
	switch {
	case embedder != nil:
		embedder = withCache(ctx, cfg, embedder, model, deps)
		idx, err := semantic.Build(ctx, chunks, embedder, semantic.WithConcurrency(cfg.EmbeddingConcurrency))
		switch {
		case err == nil:
			semanticIndex = idx
		case mode == search.ModeStrict:
			return nil, fmt.Errorf("failed to build semantic index: %w", err)
		default:
			deps.Logger.Warn().Err(err).Msg("Unable to build semantic index, semantic search disabled")
		}
	case mode == search.ModeStrict:
		return nil, errors.New("strict search mode requires an embedding provider")
	default:
		deps.Logger.Warn().Msg("No embedding provider configured, semantic search disabled")
	}

	engine, err := search.NewEngine(store, lexicalIndex, semanticIndex,
		search.WithMode(mode),
		search.WithWeights(search.FusionWeights{Lexical: lexicalWeight, Semantic: semanticWeight}),
		search.WithCandidateFactor(settings.CandidateFactor),
		search.WithLogger(deps.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search engine: %w", err)
	}
	return engine, nil
}

// withCache wraps embedder in the Redis cache when Redis is configured and reachable.
func withCache(ctx context.Context, cfg *Config, embedder semantic.Embedder, model string, deps *Dependencies) semantic.Embedder {
	if cfg.RedisAddr == "" || !cfg.EmbeddingCache {
		return embedder
	}

	client, err := redis.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, redisConnectAttempts, deps.Logger)
	if err != nil {
		deps.Logger.Warn().Err(err).Msg("Embedding cache disabled")
		return embedder
	}
	deps.closers = append(deps.closers, func() { closeRedis(client, deps.Logger) })

	return redis.NewEmbeddingCache(client, embedder, model, redis.DefaultCacheTTL, deps.Logger)
}

func closeRedis(client *goredis.Client, logger *zerolog.Logger) {
	if err := client.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close Redis client")
	}
}

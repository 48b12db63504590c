package setup

import (
	"time"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/database"
)

type Config struct {
	LogLevel string
	APIPort  string

	LLMProvider       string
	EmbeddingProvider string
	AgentMode         string

	AWSRegion             string
	ClaudeModelID         string
	TitanEmbeddingModelID string

	OpenAIKey            string
	OpenAIModelID        string
	OpenAIEmbeddingModel string

	GeminiAPIKey         string
	GeminiModelID        string
	GeminiEmbeddingModel string

	EmbeddingDimension   int
	EmbeddingConcurrency int

	CorpusSource string
	CorpusPath   string
	Database     database.Config

	LogsDirectory string
	AgentName     string
	RepoOwner     string
	RepoName      string

	// SearchMode and the fusion weights override configs/search.yaml when set.
	SearchMode           string
	FusionLexicalWeight  *float64
	FusionSemanticWeight *float64

	RedisAddr      string
	RedisPassword  string
	EmbeddingCache bool

	Stream       string
	StreamGroup  string
	ConsumerName string
	StreamMaxLen int64

	LLMTimeout       time.Duration
	EmbeddingTimeout time.Duration

	EvalWorkers int
}

func LoadConfig() *Config {
	return &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		APIPort:  getEnv("AGENT_API_PORT", "8080"),

		LLMProvider:       getEnv("LLM_PROVIDER", "bedrock"),
		EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "bedrock"),
		AgentMode:         getEnv("AGENT_MODE", "tool"),

		AWSRegion:             getEnv("AWS_REGION", "us-east-1"),
		ClaudeModelID:         getEnv("CLAUDE_MODEL_ID", ""),
		TitanEmbeddingModelID: getEnv("TITAN_EMBEDDING_MODEL_ID", ""),

		OpenAIKey:            getEnv("OPEN_AI_KEY", ""),
		OpenAIModelID:        getEnv("OPEN_AI_MODEL_ID", ""),
		OpenAIEmbeddingModel: getEnv("OPEN_AI_EMBEDDING_MODEL", ""),

		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:        getEnv("GEMINI_MODEL_ID", ""),
		GeminiEmbeddingModel: getEnv("GEMINI_EMBEDDING_MODEL", ""),

		EmbeddingDimension:   getEnvInt("EMBEDDING_DIMENSION", 512),
		EmbeddingConcurrency: getEnvInt("EMBEDDING_CONCURRENCY", 4),

		CorpusSource: getEnv("CORPUS_SOURCE", "file"),
		CorpusPath:   getEnv("CORPUS_PATH", "data/faq.jsonl"),
		Database: database.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "gitsensei"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		LogsDirectory: getEnv("LOGS_DIRECTORY", "logs"),
		AgentName:     getEnv("AGENT_NAME", ""),
		RepoOwner:     getEnv("REPO_OWNER", ""),
		RepoName:      getEnv("REPO_NAME", ""),

		SearchMode:           getEnv("SEARCH_MODE", ""),
		FusionLexicalWeight:  getEnvFloatPtr("FUSION_LEXICAL_WEIGHT"),
		FusionSemanticWeight: getEnvFloatPtr("FUSION_SEMANTIC_WEIGHT"),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		EmbeddingCache: getEnvBool("EMBEDDING_CACHE", true),

		Stream:       getEnv("STREAM_NAME", "gitsensei:interactions"),
		StreamGroup:  getEnv("STREAM_GROUP", "gitsensei-judges"),
		ConsumerName: getEnv("CONSUMER_NAME", "judge-1"),
		StreamMaxLen: int64(getEnvInt("STREAM_MAX_LEN", 10000)),

		LLMTimeout:       getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		EmbeddingTimeout: getEnvDuration("EMBEDDING_TIMEOUT", 15*time.Second),

		EvalWorkers: getEnvInt("EVAL_WORKERS", 1),
	}
}

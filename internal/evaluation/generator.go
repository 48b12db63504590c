package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"text/template"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/judge"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/metrics"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

var ErrGeneration = errors.New("question generation failed")

const questionsSchema = `{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "minLength": 1}
    }
  }
}`

const generatorPrompt = `You emulate a student who is taking a course.
Based on the FAQ records below, formulate {{.Count}} questions this student might ask.
Make the questions complete and not too short. Use as few words as possible from the records.
Each question must be answerable from one of the records.

{{range $i, $c := .Chunks}}<record index="{{$i}}" source="{{$c.SourceFilename}}">
{{$c.Text}}
</record>
{{end}}
Respond with JSON only, without code blocks:
{"questions": ["question 1", "question 2"]}`

const maxChunkRunes = 1500

var generatorTemplate = template.Must(template.New("questions").Parse(generatorPrompt))

// QuestionGenerator samples corpus chunks and asks an LLM for test questions.
type QuestionGenerator struct {
	llmClient llm.LLMClient
	schema    *gojsonschema.Schema
	rng       *rand.Rand
	logger    *zerolog.Logger
}

type GeneratorOption func(*QuestionGenerator)

// WithSeed makes chunk sampling reproducible.
func WithSeed(seed int64) GeneratorOption {
	return func(g *QuestionGenerator) { g.rng = rand.New(rand.NewSource(seed)) }
}

func WithGeneratorLogger(logger *zerolog.Logger) GeneratorOption {
	return func(g *QuestionGenerator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewQuestionGenerator(llmClient llm.LLMClient, opts ...GeneratorOption) (*QuestionGenerator, error) {
	if llmClient == nil {
		return nil, errors.New("question generator requires an LLM client")
	}

	schema, err := judge.CompileSchema(questionsSchema)
	if err != nil {
		return nil, err
	}

	nop := zerolog.Nop()
	g := &QuestionGenerator{
		llmClient: llmClient,
		schema:    schema,
		rng:       rand.New(rand.NewSource(rand.Int63())),
		logger:    &nop,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate returns up to n questions drawn from a random sample of chunks.
func (g *QuestionGenerator) Generate(ctx context.Context, chunks []models.Chunk, n int) ([]string, error) {
	if n <= 0 || len(chunks) == 0 {
		return []string{}, nil
	}

	sample := g.sample(chunks, n)
	prompt, err := buildGeneratorPrompt(sample, n)
	if err != nil {
		return nil, err
	}

	resp, err := g.llmClient.InvokeModelWithRetry(ctx, llm.LLMRequest{Prompt: prompt, MaxTokens: 2048})
	if err != nil {
		metrics.LLMCalls.WithLabelValues("generator", llm.Kind(err)).Inc()
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	metrics.LLMCalls.WithLabelValues("generator", "ok").Inc()

	raw := judge.StripMarkdownCodeBlock(resp.Content)
	if err := judge.ValidateDocument(g.schema, raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	var decoded struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	questions := make([]string, 0, len(decoded.Questions))
	for _, q := range decoded.Questions {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	if len(questions) > n {
		questions = questions[:n]
	}

	g.logger.Info().Int("requested", n).Int("generated", len(questions)).Msg("Generated evaluation questions")
	return questions, nil
}

func (g *QuestionGenerator) sample(chunks []models.Chunk, n int) []models.Chunk {
	k := min(n, len(chunks))
	picked := make([]models.Chunk, 0, k)
	for _, i := range g.rng.Perm(len(chunks))[:k] {
		picked = append(picked, chunks[i])
	}
	return picked
}

func buildGeneratorPrompt(chunks []models.Chunk, n int) (string, error) {
	trimmed := make([]models.Chunk, len(chunks))
	for i, c := range chunks {
		c.Text = truncate(c.Text, maxChunkRunes)
		trimmed[i] = c
	}

	var buf bytes.Buffer
	err := generatorTemplate.Execute(&buf, struct {
		Count  int
		Chunks []models.Chunk
	}{n, trimmed})
	if err != nil {
		return "", fmt.Errorf("failed to execute question prompt template: %w", err)
	}
	return buf.String(), nil
}

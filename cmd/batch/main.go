package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/aggregator"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/batch"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/evaluation"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/setup"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	startTime := time.Now()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	input := flag.String("input", "", "Questions file (JSONL), '-' for stdin")
	logsDir := flag.String("logs", "", "Replay: judge every interaction log in this directory")
	generate := flag.Int("generate", 0, "Generate N questions from the corpus and run a full evaluation")
	cases := flag.String("cases", "", "Labelled query cases (YAML or JSONL) for search quality evaluation")
	output := flag.String("output", "", "Output file relative path")
	format := flag.String("format", batch.FormatJSONL, "Output file format. Supported formats: 'jsonl', 'summary'")
	maxQuestions := flag.Int("max", 0, "Evaluate at most N questions (0 means all)")
	workers := flag.Int("workers", 0, "Concurrent evaluation workers (0 uses EVAL_WORKERS)")
	dryRun := flag.Bool("dry-run", false, "Validate input without evaluating")

	flag.Parse()

	if *input == "" && *logsDir == "" && *generate <= 0 && *cases == "" {
		log.Fatal().Msg("one of -input, -logs, -generate or -cases is required")
	}
	if *format != batch.FormatJSONL && *format != batch.FormatSummary {
		log.Fatal().Str("format", *format).Msg("Invalid format. Supported: jsonl, summary")
	}

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var questions []string
	if *input != "" {
		questions = readQuestions(ctx, *input)
		if *dryRun {
			log.Info().Int("questions", len(questions)).Msg("Validation successful")
			return
		}
	}

	cfg := setup.LoadConfig()
	if *workers > 0 {
		cfg.EvalWorkers = *workers
	}

	wire := setup.Wire
	if *cases != "" {
		wire = setup.WireSearch
	}
	deps, err := wire(ctx, cfg, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer deps.Close()

	out := openOutput(*output)
	if f, ok := out.(*os.File); ok && f != os.Stdout {
		defer f.Close()
	}

	if *cases != "" {
		runSearchQuality(ctx, deps, *cases, out)
		return
	}

	var rows []models.EvaluationRow
	switch {
	case *logsDir != "":
		logged, err := evaluation.LoadLogged(*logsDir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", *logsDir).Msg("Failed to load interaction logs")
		}
		if *maxQuestions > 0 && len(logged) > *maxQuestions {
			logged = logged[:*maxQuestions]
		}
		log.Info().Int("interactions", len(logged)).Msg("Replaying logged interactions")
		rows = deps.Runner.Replay(ctx, logged)
	case *generate > 0:
		report, err := deps.Runner.RunFull(ctx, deps.Generator, deps.Store.Chunks(), *generate, *maxQuestions)
		if err != nil {
			log.Fatal().Err(err).Msg("Full evaluation failed")
		}
		rows = report.Rows
	default:
		rows = deps.Runner.Run(ctx, questions, *maxQuestions)
	}

	writer, err := batch.NewWriter(out, *format, deps.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create writer")
	}

	failed := 0
	for _, row := range rows {
		if row.State == models.StateFailed {
			failed++
		}
		if err := writer.Write(row); err != nil {
			log.Error().Err(err).Int("index", row.Index).Msg("Failed to write row")
		}
	}
	if err := writer.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to write summary")
	}

	log.Info().
		Int("rows", len(rows)).
		Int("failed", failed).
		Dur("duration", time.Since(startTime)).
		Msg("Batch processing complete")
}

func readQuestions(ctx context.Context, path string) []string {
	var in io.Reader
	if path == "-" {
		in = os.Stdin
		log.Info().Msg("Reading from stdin")
	} else {
		f, err := os.Open(path)
		if err != nil {
			log.Fatal().Err(err).Str("file", path).Msg("Failed to open input file")
		}
		defer f.Close()
		in = f
		log.Info().Str("file", path).Msg("Reading input file")
	}

	questions, failed := batch.Questions(batch.NewReader(in, &log.Logger).ReadAll(ctx))
	for _, record := range failed {
		log.Error().Int("line", record.LineNumber).Err(record.Error).Msg("Validation error")
	}
	if len(failed) > 0 {
		log.Fatal().Int("errors", len(failed)).Msg("Input validation failed")
	}

	log.Info().Int("total", len(questions)).Msg("Input file parsed")
	return questions
}

func openOutput(path string) io.Writer {
	if path == "" {
		log.Info().Msg("Writing to stdout")
		return os.Stdout
	}
	f, err := os.Create(path)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("Failed to create output file")
	}
	log.Info().Str("file", path).Msg("Writing to output file")
	return f
}

func runSearchQuality(ctx context.Context, deps *setup.Dependencies, path string, out io.Writer) {
	queryCases, err := batch.LoadQueryCases(path)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("Failed to load query cases")
	}

	report := deps.Aggregator.EvaluateSearchQuality(ctx, aggregator.ToolSearchFunc(deps.Tool), queryCases)
	if err := batch.WriteSearchQuality(out, report); err != nil {
		log.Fatal().Err(err).Msg("Failed to write search quality report")
	}

	log.Info().
		Int("queries", report.AggregateMetrics.TotalQueries).
		Float64("precision", report.AggregateMetrics.AvgPrecision).
		Float64("mrr", report.AggregateMetrics.MRR).
		Msg("Search quality evaluation complete")
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/setup"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	query := flag.String("q", "", "Search query")
	numResults := flag.Int("n", 0, "Number of results (0 uses search.num_results)")
	asJSON := flag.Bool("json", false, "Print results as JSON")
	flag.Parse()

	if *query == "" && flag.NArg() > 0 {
		*query = strings.Join(flag.Args(), " ")
	}
	if strings.TrimSpace(*query) == "" {
		fmt.Fprintln(os.Stderr, "Usage: search -q '<query>' [-n 5] [-json]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found")
	}

	if err := run(*query, *numResults, *asJSON); err != nil {
		log.Error().Err(err).Msg("search failed")
		os.Exit(1)
	}
}

func run(query string, numResults int, asJSON bool) error {
	ctx := context.Background()

	deps, err := setup.WireSearch(ctx, setup.LoadConfig(), &log.Logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	if numResults <= 0 {
		numResults = deps.Search.NumResults
	}

	results, err := deps.Engine.Search(ctx, query, numResults, deps.Search.Boost)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	for i, r := range results {
		fmt.Printf("%d. [%.3f] %s (%s)\n", i+1, r.Score, r.Chunk.SourceFilename, r.Chunk.ID)
		fmt.Printf("   lexical=%.3f semantic=%.3f sources=%v\n", r.LexicalScore, r.SemanticScore, r.Sources)
		fmt.Printf("   %s\n", preview(r.Chunk.Text, 160))
	}
	log.Info().Str("mode", string(deps.Engine.Mode())).Int("results", len(results)).Msg("Search complete")
	return nil
}

func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

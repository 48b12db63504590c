package config

import (
	"errors"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

const defaultSearchConfigPath = "configs/search.yaml"

type SearchConfig struct {
	Search SearchSettings `yaml:"search"`
}

type SearchSettings struct {
	// Fields are metadata keys indexed next to text and source_filename.
	Fields          []string           `yaml:"fields"`
	Boost           map[string]float64 `yaml:"boost"`
	Mode            string             `yaml:"mode"`
	Weights         Weights            `yaml:"weights"`
	CandidateFactor int                `yaml:"candidate_factor"`
	NumResults      int                `yaml:"num_results"`
}

// Weights uses pointers so an explicit 0 differs from an omitted value.
type Weights struct {
	Lexical  *float64 `yaml:"lexical"`
	Semantic *float64 `yaml:"semantic"`
}

func (w Weights) Values() (lexical, semantic float64) {
	lexical, semantic = 1, 1
	if w.Lexical != nil {
		lexical = *w.Lexical
	}
	if w.Semantic != nil {
		semantic = *w.Semantic
	}
	return lexical, semantic
}

func LoadSearchConfig() (*SearchConfig, error) {
	path := os.Getenv("SEARCH_CONFIG_PATH")
	if path == "" {
		path = defaultSearchConfigPath
	}
	return LoadSearchConfigFile(path)
}

// LoadSearchConfigFile reads path. A missing file yields defaults.
func LoadSearchConfigFile(path string) (*SearchConfig, error) {
	var cfg SearchConfig

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read search config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse search config %s: %w", path, err)
		}
	}

	applySearchDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applySearchDefaults(cfg *SearchConfig) {
	if cfg.Search.Mode == "" {
		cfg.Search.Mode = "strict"
	}
	if cfg.Search.CandidateFactor == 0 {
		cfg.Search.CandidateFactor = 2
	}
	if cfg.Search.NumResults == 0 {
		cfg.Search.NumResults = 5
	}
}

func (c *SearchConfig) Validate() error {
	s := c.Search
	if s.Mode != "strict" && s.Mode != "degraded" {
		return fmt.Errorf("search mode must be strict or degraded, got %q", s.Mode)
	}
	if s.CandidateFactor < 1 {
		return fmt.Errorf("candidate_factor must be at least 1, got %d", s.CandidateFactor)
	}
	if s.NumResults < 1 {
		return fmt.Errorf("num_results must be at least 1, got %d", s.NumResults)
	}
	for field, b := range s.Boost {
		if b < 0 {
			return fmt.Errorf("boost for field %q must not be negative, got %v", field, b)
		}
	}

	lexical, semantic := s.Weights.Values()
	if lexical < 0 || semantic < 0 {
		return fmt.Errorf("fusion weights must be non-negative, got lexical=%v semantic=%v", lexical, semantic)
	}
	if lexical == 0 && semantic == 0 {
		return fmt.Errorf("at least one fusion weight must be positive")
	}
	return nil
}

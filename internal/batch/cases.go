package batch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/aggregator"
	"go.yaml.in/yaml/v3"
)

type caseFile struct {
	Cases []aggregator.QueryCase `yaml:"cases"`
}

// LoadQueryCases reads search ground truth from a YAML (.yaml, .yml) or JSONL file.
// YAML files hold either a top-level list or a "cases" key.
func LoadQueryCases(path string) ([]aggregator.QueryCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Unable to read query cases %s. Error: %w", path, err)
	}

	var cases []aggregator.QueryCase
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cases, err = decodeYAMLCases(data)
	case ".jsonl":
		cases, err = decodeJSONLCases(data)
	default:
		return nil, fmt.Errorf("unsupported query case format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("Unable to parse query cases %s. Error: %w", path, err)
	}

	for i, c := range cases {
		if strings.TrimSpace(c.Query) == "" {
			return nil, fmt.Errorf("query case %d has an empty query", i)
		}
	}
	return cases, nil
}

func decodeYAMLCases(data []byte) ([]aggregator.QueryCase, error) {
	var list []aggregator.QueryCase
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var file caseFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return file.Cases, nil
}

func decodeJSONLCases(data []byte) ([]aggregator.QueryCase, error) {
	var cases []aggregator.QueryCase
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var c aggregator.QueryCase
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cases = append(cases, c)
	}
	return cases, scanner.Err()
}

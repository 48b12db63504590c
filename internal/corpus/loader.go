package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"go.yaml.in/yaml/v3"
)

type yamlCorpus struct {
	Chunks []models.Chunk `yaml:"chunks"`
}

// LoadFile reads chunks from a .json, .jsonl, .yaml or .yml file.
func LoadFile(path string) ([]models.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jsonl":
		return DecodeJSONL(f)
	case ".json":
		var chunks []models.Chunk
		if err := json.NewDecoder(f).Decode(&chunks); err != nil {
			return nil, fmt.Errorf("failed to parse corpus JSON: %w", err)
		}
		return chunks, nil
	case ".yaml", ".yml":
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus file: %w", err)
		}
		var doc yamlCorpus
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse corpus YAML: %w", err)
		}
		return doc.Chunks, nil
	default:
		return nil, fmt.Errorf("unsupported corpus extension %q", ext)
	}
}

// DecodeJSONL reads one chunk per non-blank line.
func DecodeJSONL(r io.Reader) ([]models.Chunk, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var chunks []models.Chunk
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var c models.Chunk
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("line %d: failed to parse chunk: %w", line, err)
		}
		chunks = append(chunks, c)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	return chunks, nil
}

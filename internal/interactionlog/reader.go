package interactionlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
)

func Read(path string) (models.InteractionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.InteractionRecord{}, fmt.Errorf("failed to read log file %s: %w", path, err)
	}

	var record models.InteractionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return models.InteractionRecord{}, fmt.Errorf("failed to decode log file %s: %w", path, err)
	}
	return record, nil
}

// List returns the log files in dir sorted by name. Temp files are skipped.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list log directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	slices.Sort(paths)
	return paths, nil
}

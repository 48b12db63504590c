package interactionlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/metrics"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"github.com/rs/zerolog"
)

const (
	timestampLayout = "20060102150405"
	nameAttempts    = 3
)

// SerializationError reports a record field that cannot be encoded as JSON.
type SerializationError struct {
	Field string
	Err   error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("cannot serialize %s: %v", e.Field, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

type Logger struct {
	dir    string
	logger *zerolog.Logger
	now    func() time.Time
	suffix func() string
}

type Option func(*Logger)

func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

func WithSuffixFunc(suffix func() string) Option {
	return func(l *Logger) { l.suffix = suffix }
}

// New returns a Logger writing into dir. The directory is created on first write.
func New(dir string, logger *zerolog.Logger, opts ...Option) (*Logger, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("interaction log directory is required")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	l := &Logger{
		dir:    dir,
		logger: logger,
		now:    time.Now,
		suffix: randomSuffix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Logger) Dir() string {
	return l.dir
}

// Log writes record as one indented JSON file and returns its path.
func (l *Logger) Log(record models.InteractionRecord) (string, error) {
	if record.Timestamp.IsZero() {
		record.Timestamp = l.now().UTC()
	}

	for i, call := range record.ToolCalls {
		if _, err := json.Marshal(call.Arguments); err != nil {
			return "", &SerializationError{Field: fmt.Sprintf("tool_calls[%d].arguments", i), Err: err}
		}
	}
	record.Metadata = l.coerceMetadata(record.Metadata)

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", &SerializationError{Field: "record", Err: err}
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory %s: %w", l.dir, err)
	}

	tmpPath, err := l.writeTemp(data)
	if err != nil {
		return "", err
	}

	path, err := l.place(tmpPath, record)
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}

	metrics.InteractionsLogged.WithLabelValues(string(record.Source)).Inc()
	l.logger.Debug().Str("path", path).Str("agent", record.AgentName).Msg("Interaction logged")
	return path, nil
}

func (l *Logger) writeTemp(data []byte) (string, error) {
	f, err := os.CreateTemp(l.dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp log file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write log file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to sync log file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close log file: %w", err)
	}
	return f.Name(), nil
}

// place renames tmpPath to a final name that does not exist yet.
func (l *Logger) place(tmpPath string, record models.InteractionRecord) (string, error) {
	prefix := sanitize(record.AgentName) + "_" + record.Timestamp.UTC().Format(timestampLayout)

	for attempt := 0; attempt < nameAttempts; attempt++ {
		path := filepath.Join(l.dir, fmt.Sprintf("%s_%s.json", prefix, l.suffix()))
		if _, err := os.Lstat(path); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to stat %s: %w", path, err)
		}

		if err := os.Rename(tmpPath, path); err != nil {
			return "", fmt.Errorf("failed to move log file into place: %w", err)
		}
		return path, nil
	}

	return "", fmt.Errorf("failed to find a free log file name after %d attempts", nameAttempts)
}

func (l *Logger) coerceMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return metadata
	}

	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		if _, err := json.Marshal(v); err != nil {
			l.logger.Debug().Err(err).Str("key", k).Msg("Metadata value stringified")
			out[k] = fmt.Sprintf("%v", v)
			continue
		}
		out[k] = v
	}
	return out
}

func sanitize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "agent"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ':
			return '_'
		}
		return r
	}, name)
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

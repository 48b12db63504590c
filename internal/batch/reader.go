package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

const maxLineBytes = 1024 * 1024

// InputRecord is one line of a question file.
type InputRecord struct {
	LineNumber int
	Question   string
	Error      error
}

type questionLine struct {
	Question string `json:"question"`
}

type Reader struct {
	r      io.Reader
	logger *zerolog.Logger
}

func NewReader(r io.Reader, logger *zerolog.Logger) *Reader {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Reader{r: r, logger: logger}
}

// ReadAll streams the records of a JSONL question file. Each line holds either
// {"question": "..."} or a bare JSON string. Blank lines are skipped. The channel
// is closed at end of input or when ctx is done.
func (r *Reader) ReadAll(ctx context.Context) <-chan InputRecord {
	out := make(chan InputRecord)

	go func() {
		defer close(out)

		scanner := bufio.NewScanner(r.r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

		line := 0
		for scanner.Scan() {
			line++
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}

			record := InputRecord{LineNumber: line}
			record.Question, record.Error = parseQuestion(text)
			if record.Error != nil {
				r.logger.Warn().Int("line", line).Err(record.Error).Msg("Invalid question record")
			}

			select {
			case <-ctx.Done():
				return
			case out <- record:
			}
		}

		if err := scanner.Err(); err != nil {
			select {
			case <-ctx.Done():
			case out <- InputRecord{LineNumber: line + 1, Error: fmt.Errorf("failed to read input: %w", err)}:
			}
		}
	}()

	return out
}

func parseQuestion(text string) (string, error) {
	var question string
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal([]byte(text), &question); err != nil {
			return "", fmt.Errorf("invalid JSON string: %w", err)
		}
	} else {
		var parsed questionLine
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			return "", fmt.Errorf("invalid JSON: %w", err)
		}
		question = parsed.Question
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New("question is empty")
	}
	return question, nil
}

// Questions drains records into a question list and the records that failed.
func Questions(records <-chan InputRecord) ([]string, []InputRecord) {
	var questions []string
	var failed []InputRecord
	for record := range records {
		if record.Error != nil {
			failed = append(failed, record)
			continue
		}
		questions = append(questions, record.Question)
	}
	return questions, failed
}

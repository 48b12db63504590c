package corpus

import (
	"errors"
	"fmt"
	"maps"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
)

var (
	ErrEmptyCorpus = errors.New("corpus has no chunks")
	ErrChunkID     = errors.New("invalid chunk id")
	ErrChunkText   = errors.New("chunk has no text")
)

// Store holds the normalized chunk set. It is never mutated after NewStore,
// so it can be shared by indexes and concurrent readers.
type Store struct {
	chunks []models.Chunk
	byID   map[string]int
}

func NewStore(chunks []models.Chunk) (*Store, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyCorpus
	}

	s := &Store{
		chunks: make([]models.Chunk, 0, len(chunks)),
		byID:   make(map[string]int, len(chunks)),
	}

	for i, c := range chunks {
		if c.ID == "" {
			return nil, fmt.Errorf("chunk %d: %w: empty", i, ErrChunkID)
		}
		if _, exists := s.byID[c.ID]; exists {
			return nil, fmt.Errorf("chunk %d: %w: duplicate %q", i, ErrChunkID, c.ID)
		}
		if c.Text == "" {
			return nil, fmt.Errorf("chunk %q: %w", c.ID, ErrChunkText)
		}

		s.byID[c.ID] = len(s.chunks)
		s.chunks = append(s.chunks, clone(c))
	}

	return s, nil
}

// Get returns a copy of the chunk with the given id.
func (s *Store) Get(id string) (models.Chunk, bool) {
	i, ok := s.byID[id]
	if !ok {
		return models.Chunk{}, false
	}
	return clone(s.chunks[i]), true
}

func (s *Store) Len() int {
	return len(s.chunks)
}

// Chunks returns copies of all chunks in insertion order.
func (s *Store) Chunks() []models.Chunk {
	out := make([]models.Chunk, len(s.chunks))
	for i, c := range s.chunks {
		out[i] = clone(c)
	}
	return out
}

func clone(c models.Chunk) models.Chunk {
	if c.Metadata != nil {
		c.Metadata = maps.Clone(c.Metadata)
	}
	return c
}

package database

import (
	"context"
	"fmt"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
)

const loadChunksQuery = `
	SELECT
		c.id::text,
		c.content,
		COALESCE(d.title, c.document_id::text, ''),
		COALESCE(c.metadata, '{}'::jsonb)
	FROM document_chunks c
	LEFT JOIN documents d ON d.id = c.document_id
	ORDER BY c.id`

// LoadChunks reads the whole chunk table. The document title becomes the
// chunk's source filename.
func (db *DB) LoadChunks(ctx context.Context) ([]models.Chunk, error) {
	rows, err := db.q.Query(ctx, loadChunksQuery)
	if err != nil {
		return nil, fmt.Errorf("Unable to query document chunks. Error: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var (
			chunk    models.Chunk
			metadata map[string]any
		)
		if err := rows.Scan(&chunk.ID, &chunk.Text, &chunk.SourceFilename, &metadata); err != nil {
			return nil, fmt.Errorf("Failed to scan chunk: %w", err)
		}
		chunk.Metadata = stringMetadata(metadata)
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return chunks, nil
}

func stringMetadata(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

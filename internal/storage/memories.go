package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dyike/cortexdesk/internal/memory"
	"github.com/dyike/cortexdesk/models"
)

var _ memory.Persister = (*Store)(nil)

func encodeVector(v []float64) (string, error) {
	if len(v) == 0 {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal embedding: %w", err)
	}
	return string(data), nil
}

func (s *Store) SaveMemory(ctx context.Context, rec models.MemoryRecord) error {
	vec, err := encodeVector(rec.Embedding)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO memories (role, situation, lesson, embedding, embedder)
VALUES (?, ?, ?, ?, ?)
`, rec.Role, rec.Situation, rec.Lesson, vec, rec.Embedder)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

func (s *Store) UpdateEmbedding(ctx context.Context, id int64, vector []float64, embedder string) error {
	vec, err := encodeVector(vector)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE memories SET embedding = ?, embedder = ? WHERE id = ?`, vec, embedder, id); err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	return nil
}

// LoadMemories returns a role's entries in insertion order.
func (s *Store) LoadMemories(ctx context.Context, role string) ([]models.MemoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, role, situation, lesson, embedding, embedder, created_at
FROM memories WHERE role = ?
ORDER BY id ASC
`, role)
	if err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}
	defer rows.Close()

	var out []models.MemoryRecord
	for rows.Next() {
		var (
			rec models.MemoryRecord
			vec string
		)
		if err := rows.Scan(&rec.ID, &rec.Role, &rec.Situation, &rec.Lesson, &vec, &rec.Embedder, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		if vec != "" {
			// A corrupt vector is recomputed on load.
			if err := json.Unmarshal([]byte(vec), &rec.Embedding); err != nil {
				rec.Embedding = nil
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountMemories returns the number of stored lessons per role.
func (s *Store) CountMemories(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role, COUNT(*) FROM memories GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("count memories: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			role string
			n    int
		)
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("scan memory count: %w", err)
		}
		out[role] = n
	}
	return out, rows.Err()
}

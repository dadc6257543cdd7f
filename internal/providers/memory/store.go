package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Memory is one stored memory row as surfaced to the model.
type Memory struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	Category  string    `json:"category,omitempty"`
	SourceURL string    `json:"source_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	// Score is the similarity score for semantic hits, 0 for keyword hits.
	Score float64 `json:"score,omitempty"`
}

// MemoryStore abstracts memory persistence and search for testability.
type MemoryStore interface {
	// SemanticSearch returns the nearest memories by cosine distance.
	SemanticSearch(ctx context.Context, embedding []float32, category string, limit int) ([]Memory, error)
	// KeywordSearch is the degraded path when no embedding is available.
	KeywordSearch(ctx context.Context, query, category string, limit int) ([]Memory, error)
	// Insert stores a memory, with or without an embedding.
	Insert(ctx context.Context, m Memory, embedding []float32) error
}

// PostgresMemoryStore persists memories in Postgres with a pgvector
// embedding column.
type PostgresMemoryStore struct {
	db *sql.DB
}

// NewPostgresMemoryStore creates a PostgresMemoryStore.
func NewPostgresMemoryStore(db *sql.DB) *PostgresMemoryStore {
	return &PostgresMemoryStore{db: db}
}

func (s *PostgresMemoryStore) SemanticSearch(ctx context.Context, embedding []float32, category string, limit int) ([]Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, category, source_url, created_at,
		       1 - (embedding <=> $1) AS score
		FROM memories
		WHERE embedding IS NOT NULL
		  AND ($2 = '' OR category = $2)
		ORDER BY embedding <=> $1
		LIMIT $3
	`, pgvector.NewVector(embedding), category, limit)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	return scanMemories(rows, true)
}

func (s *PostgresMemoryStore) KeywordSearch(ctx context.Context, query, category string, limit int) ([]Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, category, source_url, created_at, 0
		FROM memories
		WHERE (content ILIKE '%' || $1 || '%' OR title ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR category = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, query, category, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	return scanMemories(rows, false)
}

func (s *PostgresMemoryStore) Insert(ctx context.Context, m Memory, embedding []float32) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	var vec any
	if len(embedding) > 0 {
		vec = pgvector.NewVector(embedding)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (id, title, content, category, source_url, created_at, embedding)
		VALUES ($1, $2, $3, $4, $5, now(), $6)
	`, m.ID, m.Title, m.Content, m.Category, m.SourceURL, vec)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

func scanMemories(rows *sql.Rows, withScore bool) ([]Memory, error) {
	out := make([]Memory, 0)
	for rows.Next() {
		var m Memory
		var title, category, sourceURL sql.NullString
		if err := rows.Scan(&m.ID, &title, &m.Content, &category, &sourceURL, &m.CreatedAt, &m.Score); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		m.Title = title.String
		m.Category = category.String
		m.SourceURL = sourceURL.String
		if !withScore {
			m.Score = 0
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

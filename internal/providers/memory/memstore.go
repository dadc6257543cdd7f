package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a MemoryStore for local development and tests: no
// persistence, linear scans, cosine similarity ranking.
type InMemoryStore struct {
	mu       sync.RWMutex
	memories []Memory
	vectors  map[string][]float32 // memory id → embedding
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{vectors: make(map[string][]float32)}
}

func (s *InMemoryStore) SemanticSearch(_ context.Context, embedding []float32, category string, limit int) ([]Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := make([]Memory, 0)
	for _, m := range s.memories {
		if category != "" && m.Category != category {
			continue
		}
		vec, ok := s.vectors[m.ID]
		if !ok {
			continue
		}
		score, ok := cosineSimilarity(embedding, vec)
		if !ok {
			continue
		}
		m.Score = score
		scored = append(scored, m)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (s *InMemoryStore) KeywordSearch(_ context.Context, query, category string, limit int) ([]Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	out := make([]Memory, 0)
	for i := len(s.memories) - 1; i >= 0 && len(out) < limit; i-- {
		m := s.memories[i]
		if category != "" && m.Category != category {
			continue
		}
		if strings.Contains(strings.ToLower(m.Content), needle) ||
			strings.Contains(strings.ToLower(m.Title), needle) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Insert(_ context.Context, m Memory, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.memories = append(s.memories, m)
	if len(embedding) > 0 {
		s.vectors[m.ID] = embedding
	}
	return nil
}

// cosineSimilarity returns the cosine similarity of two vectors and
// whether the computation was meaningful.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

var _ MemoryStore = (*InMemoryStore)(nil)

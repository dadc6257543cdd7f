package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/intella-ai/toolhub/internal/settings"
	"github.com/intella-ai/toolhub/internal/tools"
	"go.uber.org/zap"
)

// mockEmbedder returns a fixed vector or a fixed error.
type mockEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.vector, nil
}

// mockMemoryStore records which search path ran.
type mockMemoryStore struct {
	semantic    []Memory
	keyword     []Memory
	semanticErr error
	keywordErr  error
	insertErr   error

	semanticCalls int
	keywordCalls  int
	inserted      []Memory
	insertedVecs  [][]float32
}

func (m *mockMemoryStore) SemanticSearch(_ context.Context, _ []float32, _ string, _ int) ([]Memory, error) {
	m.semanticCalls++
	return m.semantic, m.semanticErr
}

func (m *mockMemoryStore) KeywordSearch(_ context.Context, _, _ string, _ int) ([]Memory, error) {
	m.keywordCalls++
	return m.keyword, m.keywordErr
}

func (m *mockMemoryStore) Insert(_ context.Context, mem Memory, vec []float32) error {
	m.inserted = append(m.inserted, mem)
	m.insertedVecs = append(m.insertedVecs, vec)
	return m.insertErr
}

func enabledSettings() settings.Store {
	return settings.NewStaticStore(settings.Settings{MemoriesEnabled: true})
}

func TestSearch_MissingQuery(t *testing.T) {
	p := NewProvider(&mockMemoryStore{}, &mockEmbedder{}, enabledSettings(), zap.NewNop())

	res := p.Execute(context.Background(), "search_memories", map[string]any{"limit": 5})
	if res.Success {
		t.Fatal("expected failure for missing query")
	}
	if res.Code != tools.CodeInvalidArguments {
		t.Errorf("expected invalid_arguments, got %s", res.Code)
	}
	if !strings.Contains(res.Error, "query") {
		t.Errorf("error should name the missing parameter, got %q", res.Error)
	}
}

func TestSearch_EmptyResults(t *testing.T) {
	store := &mockMemoryStore{semantic: []Memory{}}
	p := NewProvider(store, &mockEmbedder{vector: []float32{0.1, 0.2}}, enabledSettings(), zap.NewNop())

	res := p.Execute(context.Background(), "search_memories", map[string]any{"query": "nothing matches"})
	if !res.Success {
		t.Fatalf("empty search must succeed, got %s", res.Error)
	}
	memories, ok := res.Result.([]Memory)
	if !ok {
		t.Fatalf("expected []Memory result, got %T", res.Result)
	}
	if len(memories) != 0 {
		t.Errorf("expected empty slice, got %d entries", len(memories))
	}
}

func TestSearch_SemanticPath(t *testing.T) {
	store := &mockMemoryStore{
		semantic: []Memory{{ID: "m1", Content: "likes espresso", Score: 0.93}},
	}
	p := NewProvider(store, &mockEmbedder{vector: []float32{0.1}}, enabledSettings(), zap.NewNop())

	res := p.Execute(context.Background(), "search_memories", map[string]any{"query": "coffee"})
	if !res.Success {
		t.Fatalf("expected success, got %s", res.Error)
	}
	if store.semanticCalls != 1 || store.keywordCalls != 0 {
		t.Errorf("expected semantic path only, got semantic=%d keyword=%d",
			store.semanticCalls, store.keywordCalls)
	}
}

func TestSearch_EmbeddingFailure_FallsBackToKeyword(t *testing.T) {
	store := &mockMemoryStore{
		keyword: []Memory{{ID: "m1", Content: "espresso notes"}},
	}
	embedder := &mockEmbedder{err: errors.New("embedding service down")}
	p := NewProvider(store, embedder, enabledSettings(), zap.NewNop())

	res := p.Execute(context.Background(), "search_memories", map[string]any{"query": "espresso"})
	if !res.Success {
		t.Fatalf("fallback search must still succeed, got %s", res.Error)
	}
	if store.keywordCalls != 1 || store.semanticCalls != 0 {
		t.Errorf("expected keyword fallback, got semantic=%d keyword=%d",
			store.semanticCalls, store.keywordCalls)
	}
	memories := res.Result.([]Memory)
	if len(memories) != 1 || memories[0].ID != "m1" {
		t.Errorf("unexpected fallback results: %+v", memories)
	}
}

func TestSearch_StoreFailure(t *testing.T) {
	store := &mockMemoryStore{semanticErr: errors.New("connection refused")}
	p := NewProvider(store, &mockEmbedder{vector: []float32{0.1}}, enabledSettings(), zap.NewNop())

	res := p.Execute(context.Background(), "search_memories", map[string]any{"query": "coffee"})
	if res.Success || res.Code != tools.CodeExecutionError {
		t.Errorf("expected execution_error from store failure, got %+v", res)
	}
}

func TestSearch_MemoriesDisabled(t *testing.T) {
	store := &mockMemoryStore{semantic: []Memory{{ID: "m1"}}}
	cfg := settings.NewStaticStore(settings.Settings{MemoriesEnabled: false})
	embedder := &mockEmbedder{vector: []float32{0.1}}
	p := NewProvider(store, embedder, cfg, zap.NewNop())

	res := p.Execute(context.Background(), "search_memories", map[string]any{"query": "coffee"})
	if !res.Success {
		t.Fatalf("disabled memories should succeed with no results, got %s", res.Error)
	}
	if len(res.Result.([]Memory)) != 0 {
		t.Error("disabled memories must return an empty result")
	}
	if embedder.calls != 0 || store.semanticCalls != 0 {
		t.Error("disabled memories should not reach the embedder or the store")
	}
}

func TestSearch_LimitClamped(t *testing.T) {
	store := &mockMemoryStore{semantic: []Memory{}}
	p := NewProvider(store, &mockEmbedder{vector: []float32{0.1}}, enabledSettings(), zap.NewNop())

	// Out-of-range limits fall back to the default rather than failing.
	for _, limit := range []any{float64(-3), float64(10_000)} {
		res := p.Execute(context.Background(), "search_memories", map[string]any{
			"query": "coffee",
			"limit": limit,
		})
		if !res.Success {
			t.Errorf("limit %v: expected success, got %s", limit, res.Error)
		}
	}
}

func TestSave_Memory(t *testing.T) {
	store := &mockMemoryStore{}
	p := NewProvider(store, &mockEmbedder{vector: []float32{0.5}}, enabledSettings(), zap.NewNop())

	res := p.Execute(context.Background(), "save_memory", map[string]any{
		"content":    "prefers dark roast",
		"title":      "coffee preference",
		"category":   "preference",
		"source_url": "https://example.com/order",
	})
	if !res.Success {
		t.Fatalf("expected success, got %s", res.Error)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(store.inserted))
	}
	saved := store.inserted[0]
	if saved.Content != "prefers dark roast" || saved.Category != "preference" {
		t.Errorf("unexpected saved memory: %+v", saved)
	}
	out := res.Result.(map[string]any)
	if out["embedded"] != true {
		t.Errorf("expected embedded=true, got %v", out["embedded"])
	}
}

func TestSave_MissingContent(t *testing.T) {
	p := NewProvider(&mockMemoryStore{}, &mockEmbedder{}, enabledSettings(), zap.NewNop())

	res := p.Execute(context.Background(), "save_memory", map[string]any{"title": "no content"})
	if res.Success || res.Code != tools.CodeInvalidArguments {
		t.Errorf("expected invalid_arguments, got %+v", res)
	}
	if !strings.Contains(res.Error, "content") {
		t.Errorf("error should name the missing parameter, got %q", res.Error)
	}
}

func TestSave_EmbeddingFailure_SavesWithoutVector(t *testing.T) {
	store := &mockMemoryStore{}
	p := NewProvider(store, &mockEmbedder{err: errors.New("quota exceeded")}, enabledSettings(), zap.NewNop())

	res := p.Execute(context.Background(), "save_memory", map[string]any{"content": "still saved"})
	if !res.Success {
		t.Fatalf("save must survive embedding failure, got %s", res.Error)
	}
	if len(store.insertedVecs) != 1 || store.insertedVecs[0] != nil {
		t.Error("expected insert without an embedding vector")
	}
	out := res.Result.(map[string]any)
	if out["embedded"] != false {
		t.Errorf("expected embedded=false, got %v", out["embedded"])
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	p := NewProvider(&mockMemoryStore{}, &mockEmbedder{}, enabledSettings(), zap.NewNop())

	res := p.Execute(context.Background(), "delete_all_memories", nil)
	if res.Success || res.Code != tools.CodeUnknownTool {
		t.Errorf("expected unknown_tool, got %+v", res)
	}
}

func TestProvider_ToolTable(t *testing.T) {
	p := NewProvider(&mockMemoryStore{}, &mockEmbedder{}, enabledSettings(), zap.NewNop())

	ts := p.Tools()
	if len(ts) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(ts))
	}
	if ts[0].Name != "search_memories" || ts[1].Name != "save_memory" {
		t.Errorf("unexpected tool order: %s, %s", ts[0].Name, ts[1].Name)
	}

	if !p.SetToolEnabled("save_memory", false) {
		t.Fatal("expected toggle to succeed")
	}
	if len(p.Tools()) != 1 {
		t.Error("disabled tool should be hidden")
	}
}

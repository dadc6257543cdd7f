// Package memory implements the memory-search tool provider: read-only
// semantic queries over the user's captured memories, plus saving new
// ones. Search embeds the query through the memory service and runs a
// pgvector similarity scan; when the embedding call fails the provider
// degrades to keyword search rather than failing the tool call.
package memory

import (
	"context"

	"github.com/intella-ai/toolhub/internal/settings"
	"github.com/intella-ai/toolhub/internal/tools"
	"go.uber.org/zap"
)

const (
	ProviderID   = "memory"
	version      = "1.2.0"
	defaultLimit = 10
	maxLimit     = 50
)

var categories = []string{"fact", "preference", "conversation", "web_page"}

// Provider is the memory-search tool provider.
type Provider struct {
	set      *tools.ToolSet
	store    MemoryStore
	embedder Embedder
	settings settings.Store
	logger   *zap.Logger
}

// NewProvider creates the memory provider.
func NewProvider(store MemoryStore, embedder Embedder, cfg settings.Store, logger *zap.Logger) *Provider {
	return &Provider{
		set:      toolTable(),
		store:    store,
		embedder: embedder,
		settings: cfg,
		logger:   logger,
	}
}

func toolTable() *tools.ToolSet {
	return tools.MustToolSet(
		tools.Tool{
			Name:        "search_memories",
			Description: "Search the user's saved memories semantically. Returns the most relevant memories for the query.",
			Parameters: map[string]tools.Parameter{
				"query": {Kind: tools.KindString, Description: "What to search for."},
				"limit": {Kind: tools.KindNumber, Description: "Maximum number of memories to return."},
				"category": {
					Kind:        tools.KindString,
					Description: "Restrict results to one memory category.",
					EnumValues:  categories,
				},
			},
			Required:   []string{"query"},
			Enabled:    true,
			ProviderID: ProviderID,
		},
		tools.Tool{
			Name:        "save_memory",
			Description: "Save a new memory for the user, for example a fact they mentioned or content from a page.",
			Parameters: map[string]tools.Parameter{
				"content":    {Kind: tools.KindString, Description: "The memory content."},
				"title":      {Kind: tools.KindString, Description: "Short title for the memory."},
				"source_url": {Kind: tools.KindString, Description: "URL of the page the memory came from."},
				"category": {
					Kind:        tools.KindString,
					Description: "Memory category.",
					EnumValues:  categories,
				},
			},
			Required:   []string{"content"},
			Enabled:    true,
			ProviderID: ProviderID,
		},
	)
}

func (p *Provider) ID() string          { return ProviderID }
func (p *Provider) Name() string        { return "Memory" }
func (p *Provider) Description() string { return "Semantic search and storage of the user's memories" }
func (p *Provider) Version() string     { return version }

func (p *Provider) Tools() []tools.Tool { return p.set.Enabled() }

// SetToolEnabled toggles one tool; disabled tools stay in the set.
func (p *Provider) SetToolEnabled(name string, enabled bool) bool {
	return p.set.SetEnabled(name, enabled)
}

func (p *Provider) Execute(ctx context.Context, name string, args map[string]any) *tools.ExecutionResult {
	if _, ok := p.set.Get(name); !ok {
		return tools.Fail(tools.CodeUnknownTool, "memory provider has no tool %q", name)
	}

	switch name {
	case "search_memories":
		return p.search(ctx, args)
	case "save_memory":
		return p.save(ctx, args)
	default:
		return tools.Fail(tools.CodeUnknownTool, "memory provider has no tool %q", name)
	}
}

func (p *Provider) search(ctx context.Context, args map[string]any) *tools.ExecutionResult {
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return tools.Fail(tools.CodeInvalidArguments, "missing required parameter %q", "query")
	}
	category, _ := args["category"].(string)
	limit := intArg(args, "limit", defaultLimit)
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	cfg, err := p.settings.Load(ctx)
	if err == nil && !cfg.MemoriesEnabled {
		return tools.Ok([]Memory{})
	}

	// Best-effort embedding: a failed embedding call degrades to
	// keyword search instead of failing the tool call.
	embedding, err := p.embedder.Embed(ctx, query)
	if err != nil {
		p.logger.Warn("embedding failed, falling back to keyword search",
			zap.String("query", query),
			zap.Error(err),
		)
		memories, err := p.store.KeywordSearch(ctx, query, category, limit)
		if err != nil {
			return tools.Fail(tools.CodeExecutionError, "memory search failed: %v", err)
		}
		return tools.Ok(memories)
	}

	memories, err := p.store.SemanticSearch(ctx, embedding, category, limit)
	if err != nil {
		return tools.Fail(tools.CodeExecutionError, "memory search failed: %v", err)
	}
	return tools.Ok(memories)
}

func (p *Provider) save(ctx context.Context, args map[string]any) *tools.ExecutionResult {
	content, ok := args["content"].(string)
	if !ok || content == "" {
		return tools.Fail(tools.CodeInvalidArguments, "missing required parameter %q", "content")
	}

	m := Memory{Content: content}
	m.Title, _ = args["title"].(string)
	m.Category, _ = args["category"].(string)
	m.SourceURL, _ = args["source_url"].(string)

	// The embedding is best-effort here too: a memory without an
	// embedding is still saved and findable by keyword search.
	embedding, err := p.embedder.Embed(ctx, content)
	if err != nil {
		p.logger.Warn("embedding failed, saving memory without vector", zap.Error(err))
		embedding = nil
	}

	if err := p.store.Insert(ctx, m, embedding); err != nil {
		return tools.Fail(tools.CodeExecutionError, "failed to save memory: %v", err)
	}
	return tools.Ok(map[string]any{"saved": true, "embedded": len(embedding) > 0})
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

var _ tools.Provider = (*Provider)(nil)

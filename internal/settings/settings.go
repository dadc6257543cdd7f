package settings

import "context"

// Settings is the shared configuration providers read on every call.
// It is the only cross-provider shared mutable state: values can change
// between calls (a user may enter an API key after a provider was
// constructed), so providers must not cache a Settings value.
type Settings struct {
	// Memory / embeddings service.
	MemoryAPIKey    string `json:"memory_api_key"`
	MemoryUserID    string `json:"memory_user_id"`
	MemoryBaseURL   string `json:"memory_base_url"`
	EmbeddingModel  string `json:"embedding_model"`
	MemoriesEnabled bool   `json:"memories_enabled"`

	// Third-party toolkit integrations.
	ToolkitAPIKey  string `json:"toolkit_api_key"`
	ToolkitBaseURL string `json:"toolkit_base_url"`
	// ConnectedToolkits maps toolkit slug to its authorization state.
	// Connection flags are written by the account-linking flow; this
	// service only reads them.
	ConnectedToolkits map[string]bool `json:"connected_toolkits"`

	// Page relay endpoint for browser actions.
	PageRelayURL string `json:"page_relay_url"`
}

// ToolkitConnected reports whether the named toolkit is authorized.
func (s *Settings) ToolkitConnected(slug string) bool {
	if s == nil || s.ConnectedToolkits == nil {
		return false
	}
	return s.ConnectedToolkits[slug]
}

// Store loads the shared settings. Implementations must be cheap enough
// to call on every tool execution.
type Store interface {
	Load(ctx context.Context) (*Settings, error)
}

// StaticStore is a development Store serving a fixed Settings value.
type StaticStore struct {
	settings Settings
}

// NewStaticStore creates a StaticStore.
func NewStaticStore(s Settings) *StaticStore {
	return &StaticStore{settings: s}
}

func (s *StaticStore) Load(_ context.Context) (*Settings, error) {
	cp := s.settings
	return &cp, nil
}

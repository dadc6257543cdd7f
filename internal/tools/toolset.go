package tools

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ToolSet is the ordered, mutable tool collection a provider owns.
// Disabled tools stay in the set (for later re-enabling) but are
// excluded from Enabled(). Safe for concurrent use.
type ToolSet struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]*Tool
}

// NewToolSet builds a set from the given tools, validating each and
// assigning process-scoped ids. Declaration order is preserved.
func NewToolSet(ts ...Tool) (*ToolSet, error) {
	s := &ToolSet{byName: make(map[string]*Tool, len(ts))}
	for _, t := range ts {
		if err := s.Add(t); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// MustToolSet is NewToolSet for statically declared tool tables.
func MustToolSet(ts ...Tool) *ToolSet {
	s, err := NewToolSet(ts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Add appends a tool. Names are unique within a set.
func (s *ToolSet) Add(t Tool) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[t.Name]; exists {
		return fmt.Errorf("duplicate tool %q", t.Name)
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.order = len(s.order)
	s.order = append(s.order, t.Name)
	s.byName[t.Name] = &t
	return nil
}

// Get returns the named tool whether or not it is enabled.
func (s *ToolSet) Get(name string) (Tool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byName[name]
	if !ok {
		return Tool{}, false
	}
	return *t, true
}

// Enabled returns the enabled tools in declaration order.
func (s *ToolSet) Enabled() []Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Tool, 0, len(s.order))
	for _, name := range s.order {
		if t := s.byName[name]; t.Enabled {
			out = append(out, *t)
		}
	}
	return out
}

// Len returns the total number of tools, enabled or not.
func (s *ToolSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// SetEnabled toggles one tool. Returns false if the tool is unknown.
func (s *ToolSet) SetEnabled(name string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byName[name]
	if !ok {
		return false
	}
	t.Enabled = enabled
	return true
}

// Reset replaces the whole set, keeping nothing. Used by providers that
// rediscover their tool surface on (re)initialization.
func (s *ToolSet) Reset(ts ...Tool) error {
	fresh, err := NewToolSet(ts...)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = fresh.order
	s.byName = fresh.byName
	return nil
}

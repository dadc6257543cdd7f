package tools

import (
	"fmt"
	"time"
)

// Kind is the JSON type of a tool parameter.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

// Parameter describes one entry in a tool's input schema.
type Parameter struct {
	Kind        Kind
	Description string
	EnumValues  []string
	Items       *Parameter           // required when Kind == KindArray
	Properties  map[string]Parameter // required when Kind == KindObject
	Required    []string             // required property names when Kind == KindObject
}

// Validate checks the structural invariants of the parameter tree.
func (p Parameter) Validate() error {
	switch p.Kind {
	case KindString, KindNumber, KindBoolean:
		return nil
	case KindArray:
		if p.Items == nil {
			return fmt.Errorf("array parameter missing items")
		}
		return p.Items.Validate()
	case KindObject:
		if p.Properties == nil {
			return fmt.Errorf("object parameter missing properties")
		}
		for name, prop := range p.Properties {
			if err := prop.Validate(); err != nil {
				return fmt.Errorf("property %q: %w", name, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown parameter kind %q", p.Kind)
	}
}

// Schema renders the parameter as a JSON Schema fragment.
func (p Parameter) Schema() map[string]any {
	s := map[string]any{"type": string(p.Kind)}
	if p.Description != "" {
		s["description"] = p.Description
	}
	if len(p.EnumValues) > 0 {
		enum := make([]any, len(p.EnumValues))
		for i, v := range p.EnumValues {
			enum[i] = v
		}
		s["enum"] = enum
	}
	if p.Kind == KindArray && p.Items != nil {
		s["items"] = p.Items.Schema()
	}
	if p.Kind == KindObject && p.Properties != nil {
		props := make(map[string]any, len(p.Properties))
		for name, prop := range p.Properties {
			props[name] = prop.Schema()
		}
		s["properties"] = props
		if len(p.Required) > 0 {
			req := make([]any, len(p.Required))
			for i, name := range p.Required {
				req[i] = name
			}
			s["required"] = req
		}
	}
	return s
}

// Tool is a single invokable capability exposed to the model.
// IDs are process-scoped; nothing about a Tool survives a restart.
type Tool struct {
	ID          string
	Name        string
	Description string
	Parameters  map[string]Parameter
	Required    []string
	Enabled     bool
	ProviderID  string

	// order preserves the provider's declaration order so the catalog
	// is deterministic across calls.
	order int
}

// Validate checks the tool's parameter tree.
func (t Tool) Validate() error {
	for name, p := range t.Parameters {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("tool %q parameter %q: %w", t.Name, name, err)
		}
	}
	for _, req := range t.Required {
		if _, ok := t.Parameters[req]; !ok {
			return fmt.Errorf("tool %q requires unknown parameter %q", t.Name, req)
		}
	}
	return nil
}

// Schema renders the tool's input schema as a JSON Schema object.
// The same shape is embedded in model requests and compiled for
// argument validation.
func (t Tool) Schema() map[string]any {
	props := make(map[string]any, len(t.Parameters))
	for name, p := range t.Parameters {
		props[name] = p.Schema()
	}
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(t.Required) > 0 {
		req := make([]any, len(t.Required))
		for i, name := range t.Required {
			req[i] = name
		}
		s["required"] = req
	}
	return s
}

// Definition renders the model-facing tool definition.
func (t Tool) Definition() map[string]any {
	return map[string]any{
		"name":        t.Name,
		"description": t.Description,
		"parameters":  t.Schema(),
	}
}

// ErrorCode classifies an execution failure for the model-facing result.
type ErrorCode string

const (
	CodeUnknownTool      ErrorCode = "unknown_tool"
	CodeInvalidArguments ErrorCode = "invalid_arguments"
	CodeExecutionError   ErrorCode = "execution_error"
	CodeProviderNotFound ErrorCode = "provider_not_found"
	CodeProviderInit     ErrorCode = "provider_init_error"
)

// ExecutionResult is the outcome of one tool call. Exactly one of
// Result/Error is meaningful depending on Success.
type ExecutionResult struct {
	Success       bool          `json:"success"`
	Result        any           `json:"result,omitempty"`
	Error         string        `json:"error,omitempty"`
	Code          ErrorCode     `json:"code,omitempty"`
	ToolCallID    string        `json:"tool_call_id,omitempty"`
	ProviderID    string        `json:"provider_id,omitempty"`
	ExecutionTime time.Duration `json:"-"`
}

// Ok builds a successful result.
func Ok(result any) *ExecutionResult {
	return &ExecutionResult{Success: true, Result: result}
}

// Fail builds a failed result with a classification code.
func Fail(code ErrorCode, format string, args ...any) *ExecutionResult {
	return &ExecutionResult{
		Success: false,
		Code:    code,
		Error:   fmt.Sprintf(format, args...),
	}
}

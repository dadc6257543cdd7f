package storage

import "time"

// EventWriter is the interface for persisting tool execution events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *ToolExecutionEvent)
	Close()
}

// ToolExecutionEvent records one dispatched tool call for observability.
type ToolExecutionEvent struct {
	RequestID     string
	UserID        string
	Timestamp     time.Time
	ProviderID    string
	ToolName      string
	ToolCallID    string
	Success       bool
	ErrorCode     string
	ErrorDetail   string
	ArgumentBytes int32
	LatencyMs     float32
	Source        string // "api", "dispatch"
}

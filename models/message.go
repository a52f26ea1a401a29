package models

import "time"

type EventKind string

const (
	EventNodeStart EventKind = "node_start"
	EventNodeEnd   EventKind = "node_end"
	EventNodeError EventKind = "node_error"
	EventToolCall  EventKind = "tool_call"
)

// AgentEvent is a progress notification emitted while the committee runs.
type AgentEvent struct {
	Kind      EventKind `json:"kind"`
	Node      string    `json:"node"`
	Agent     string    `json:"agent,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Err       string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TokenUsage accumulates chat-model token counts over a run.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	Calls            int `json:"calls"`
}

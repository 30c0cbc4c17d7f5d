// Package llm defines the Provider interface for the language-model backends
// barkeep consults when it cannot settle on an intent locally.
//
// Only one-shot completions are needed: the ambiguity resolver sends a single
// request and expects a single JSON object back. Implementations must be safe
// for concurrent use and must honour context cancellation promptly.
package llm

import (
	"context"

	"github.com/MrWong99/barkeep/pkg/types"
)

// Usage holds token accounting reported by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a reply.
// Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is sent ahead of Messages. Providers without a dedicated
	// system field prepend it as a "system" message.
	SystemPrompt string

	// Messages is the ordered conversation; the last entry drives the reply.
	Messages []Message

	// Temperature in [0.0, 2.0]. Zero requests the provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int

	// JSONMode asks the backend to constrain the reply to a JSON object when
	// it supports doing so. Callers must still validate the reply.
	JSONMode bool

	// ResponseSchema, when set, is a stronger form of JSONMode for backends
	// that accept a JSON Schema for the reply.
	ResponseSchema *ResponseSchema
}

// ResponseSchema names a JSON Schema document. Schema must marshal to JSON.
type ResponseSchema struct {
	Name   string
	Schema any
}

// CompletionResponse is the full reply of a completion.
type CompletionResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req and waits for the full reply. It returns an error if
	// the request fails or ctx ends before the reply arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates how many context tokens messages would consume.
	// The estimate should not undercount.
	CountTokens(messages []Message) (int, error)

	// Capabilities returns static metadata about the configured model.
	Capabilities() types.ModelCapabilities
}

// Package types holds the value types shared between barkeep's provider
// packages and the order engine.
//
// Only cross-cutting structures live here; each internal package defines its
// own domain types so that providers never import engine code.
package types

// Message is a single turn in an LLM conversation.
type Message struct {
	// Role is one of "system", "user", "assistant", or "tool".
	Role string

	// Content is the text of the message.
	Content string

	// Name optionally identifies the participant.
	Name string

	// ToolCalls lists tool invocations requested by the assistant.
	ToolCalls []ToolCall

	// ToolCallID is set when Role is "tool".
	ToolCallID string
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON-encoded
}

// ToolDefinition describes a function that may be offered to a model.
type ToolDefinition struct {
	Name        string
	Description string

	// Parameters is the JSON Schema of the tool input.
	Parameters map[string]any
}

// ModelCapabilities is static metadata about an LLM model.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens caps a single completion.
	MaxOutputTokens int

	SupportsToolCalling bool
	SupportsStreaming   bool

	// SupportsJSONMode reports whether the backend can be asked for a
	// JSON-only reply.
	SupportsJSONMode bool
}

// VoiceProfile selects a synthesis voice.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier ("nova", an ElevenLabs
	// voice id, ...).
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider is the TTS provider the voice belongs to.
	Provider string

	// SpeedFactor adjusts the speaking rate (0.5–2.0, 1.0 = default).
	SpeedFactor float64

	// Metadata carries provider-specific attributes.
	Metadata map[string]string
}

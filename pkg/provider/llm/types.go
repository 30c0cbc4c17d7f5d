package llm

import "github.com/MrWong99/barkeep/pkg/types"

// The conversation types are shared with the rest of barkeep through
// pkg/types; these aliases keep call sites short.
type (
	Message        = types.Message
	ToolCall       = types.ToolCall
	ToolDefinition = types.ToolDefinition
)

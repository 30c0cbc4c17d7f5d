package ambiguity

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/MrWong99/barkeep/internal/order"
	"github.com/MrWong99/barkeep/pkg/provider/llm"
)

// replyShape is the shape every model reply must have. intent and
// conversational_response are required; anything else is optional. It is
// also sent to backends that can constrain output to a schema.
var replyShape = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"intent":                  {Type: "string", Enum: intentEnum()},
		"conversational_response": {Type: "string"},
		"clarification":           {Type: "string"},
		"confidence":              {Type: "number", Minimum: ptr(0.0), Maximum: ptr(1.0)},
		"suggestedResponse":       {Type: "string"},
	},
	Required: []string{"intent", "conversational_response"},
}

var (
	replySchema = mustResolve(replyShape)
	replyFormat = &llm.ResponseSchema{Name: "barkeep_order_reply", Schema: replyShape}
)

func intentEnum() []any {
	out := make([]any, 0, len(order.Intents)+1)
	for _, i := range order.Intents {
		out = append(out, string(i))
	}
	return append(out, string(order.IntentUnknown))
}

func mustResolve(s *jsonschema.Schema) *jsonschema.Resolved {
	r, err := s.Resolve(nil)
	if err != nil {
		panic("ambiguity: resolve reply schema: " + err.Error())
	}
	return r
}

func ptr[T any](v T) *T { return &v }

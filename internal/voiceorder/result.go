package voiceorder

import (
	"errors"

	"github.com/MrWong99/barkeep/internal/ambiguity"
	"github.com/MrWong99/barkeep/internal/drinkmatch"
	"github.com/MrWong99/barkeep/internal/gate"
	"github.com/MrWong99/barkeep/internal/normalize"
	"github.com/MrWong99/barkeep/internal/order"
)

// Error taxonomy. Callers inspect results with errors.Is against these.
var (
	// ErrEmptyTranscript: nothing was said. Answered with a gentle
	// "didn't hear that".
	ErrEmptyTranscript = normalize.ErrEmptyTranscript

	// ErrCooldown: the command was debounced and dropped.
	ErrCooldown = gate.ErrCooldown

	// ErrUpstreamFormat and ErrUpstreamTimeout: the language model failed;
	// the best local guess was used instead.
	ErrUpstreamFormat  = ambiguity.ErrUpstreamFormat
	ErrUpstreamTimeout = ambiguity.ErrUpstreamTimeout

	// ErrUnresolvedEntity: an item phrase matched nothing in the catalog.
	ErrUnresolvedEntity = drinkmatch.ErrUnresolved

	// ErrFatalConfig: the language model could not be set up at startup.
	// It is reported once and the engine runs local-only.
	ErrFatalConfig = errors.New("voiceorder: fatal configuration error")

	// ErrUnknownSession: no session has the given ID.
	ErrUnknownSession = errors.New("voiceorder: unknown session")
)

// VoiceOrderResult is the outcome of [Engine.ProcessVoiceOrder].
type VoiceOrderResult struct {
	Success bool          `json:"success"`
	Order   *OrderDetails `json:"order,omitempty"`
	Error   string        `json:"error,omitempty"`

	// Response is the reply to speak when no order details exist, such as
	// for an empty transcript.
	Response string `json:"response,omitempty"`

	// Err is the underlying error: the cause of a failure, or the joined
	// per-item errors of a partial success.
	Err error `json:"-"`
}

// OrderDetails describes a processed command.
type OrderDetails struct {
	Items               []order.Item  `json:"items"`
	Intent              order.Intent  `json:"intent"`
	SpecialInstructions string        `json:"specialInstructions,omitempty"`
	Context             order.Context `json:"context"`

	NaturalLanguageResponse NaturalLanguageResponse `json:"naturalLanguageResponse"`

	// Unresolved lists item phrases that could not be served, either unknown
	// or out of stock.
	Unresolved []string `json:"unresolved,omitempty"`

	// Source is "llm" when the language model settled the intent.
	Source string `json:"source,omitempty"`
}

// NaturalLanguageResponse is the spoken side of a result.
type NaturalLanguageResponse struct {
	Confidence         float64        `json:"confidence"`
	NeedsClarification bool           `json:"needsClarification"`
	SuggestedResponse  string         `json:"suggestedResponse"`
	AlternativeIntents []order.Intent `json:"alternativeIntents,omitempty"`
}

func failure(err error) VoiceOrderResult {
	return VoiceOrderResult{Success: false, Error: err.Error(), Err: err}
}

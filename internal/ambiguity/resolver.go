// Package ambiguity asks a language model to settle commands the local
// classifier could not classify with confidence.
//
// The [Resolver] never fails past its boundary: when the model is missing,
// slow, or answers in the wrong shape, the best local guess is returned with
// the cause attached to [Resolution.Err].
package ambiguity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/barkeep/internal/intent"
	"github.com/MrWong99/barkeep/internal/order"
	"github.com/MrWong99/barkeep/pkg/provider/llm"
)

var (
	// ErrUpstreamFormat reports a reply that is not JSON or does not match
	// the reply schema.
	ErrUpstreamFormat = errors.New("ambiguity: upstream format error")

	// ErrUpstreamTimeout reports a call that exceeded the timeout.
	ErrUpstreamTimeout = errors.New("ambiguity: upstream timeout")

	// ErrNoProvider is attached to local resolutions made because no model
	// is configured.
	ErrNoProvider = errors.New("ambiguity: no llm provider configured")
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultTokenBudget = 2048

	defaultTemperature = 0.2

	// defaultConfidence is used when the model omits its confidence.
	defaultConfidence = 0.7
)

// GenericClarification is the prompt used when nothing better is known.
const GenericClarification = "Sorry, I didn't quite catch that. Could you tell me again what you'd like?"

// Source says who produced a [Resolution].
type Source string

const (
	SourceLLM   Source = "llm"
	SourceLocal Source = "local"
)

const systemPrompt = `You are the order assistant of a bar. A customer spoke a command that could not be understood with confidence.

Decide which single intent the customer meant. Valid intents:
%s

You receive the transcript, the intents a local classifier considered, and a JSON snapshot of the conversation so far.

Respond with ONLY a JSON object (no markdown, no prose):
{
  "intent": "<one of the valid intents>",
  "conversational_response": "<short friendly reply to speak to the customer>",
  "clarification": "<question to ask if you are still unsure, else empty>",
  "confidence": <0.0-1.0>,
  "suggestedResponse": "<optional alternative reply>"
}`

// Request is one escalation.
type Request struct {
	// Text is the normalized transcript.
	Text string

	// Local is the classifier's result.
	Local intent.Result

	// Context is the conversation snapshot sent along with the text.
	Context order.Context
}

// Resolution is the outcome of [Resolver.Resolve].
type Resolution struct {
	Intent            order.Intent
	Confidence        float64
	Clarification     string
	SuggestedResponse string
	Source            Source

	// Err is the reason a local fallback was used; nil for model answers.
	Err error
}

// Option configures a [Resolver].
type Option func(*Resolver)

// WithTimeout sets the hard ceiling of one model call (default 10s).
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithTokenBudget caps the prompt size. Older commands and references are
// dropped from the context snapshot until the prompt fits.
func WithTokenBudget(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.budget = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(r *Resolver) { r.temperature = t }
}

// Resolver escalates ambiguous commands to an [llm.Provider]. It is safe for
// concurrent use.
type Resolver struct {
	llm         llm.Provider
	timeout     time.Duration
	budget      int
	temperature float64
	prompt      string
}

// New returns a resolver. A nil provider yields a local-only resolver.
func New(provider llm.Provider, opts ...Option) *Resolver {
	r := &Resolver{
		llm:         provider,
		timeout:     DefaultTimeout,
		budget:      DefaultTokenBudget,
		temperature: defaultTemperature,
		prompt:      buildSystemPrompt(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// LocalOnly reports whether the resolver has no model.
func (r *Resolver) LocalOnly() bool { return r.llm == nil }

// Resolve asks the model about req. It always returns a usable resolution.
func (r *Resolver) Resolve(ctx context.Context, req Request) Resolution {
	if r.llm == nil {
		return Local(req.Local, ErrNoProvider)
	}

	msgs, err := r.buildMessages(req)
	if err != nil {
		return Local(req.Local, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt:   r.prompt,
		Messages:       msgs,
		Temperature:    r.temperature,
		JSONMode:       true,
		ResponseSchema: replyFormat,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Local(req.Local, fmt.Errorf("%w after %s: %w", ErrUpstreamTimeout, r.timeout, err))
		}
		return Local(req.Local, fmt.Errorf("ambiguity: complete: %w", err))
	}
	if resp == nil {
		return Local(req.Local, fmt.Errorf("%w: empty response", ErrUpstreamFormat))
	}

	rep, err := parseReply(resp.Content)
	if err != nil {
		return Local(req.Local, err)
	}

	res := Resolution{
		Intent:            order.Intent(rep.Intent),
		Confidence:        defaultConfidence,
		Clarification:     rep.Clarification,
		SuggestedResponse: rep.SuggestedResponse,
		Source:            SourceLLM,
	}
	if rep.Confidence != nil {
		res.Confidence = *rep.Confidence
	}
	if res.SuggestedResponse == "" {
		res.SuggestedResponse = rep.ConversationalResponse
	}
	return res
}

// Local builds the best-local-guess resolution for res with cause attached.
func Local(res intent.Result, cause error) Resolution {
	return Resolution{
		Intent:        res.Intent,
		Confidence:    res.Confidence,
		Clarification: Clarify(res),
		Source:        SourceLocal,
		Err:           cause,
	}
}

// Clarify returns a question that offers the competing intents of res, or
// [GenericClarification].
func Clarify(res intent.Result) string {
	var opts []string
	for _, i := range append([]order.Intent{res.Intent}, res.AlternativeIntents...) {
		if label, ok := intentLabels[i]; ok {
			opts = append(opts, label)
		}
	}
	switch len(opts) {
	case 0:
		return GenericClarification
	case 1:
		return fmt.Sprintf("Just to check, did you want to %s?", opts[0])
	}
	last := len(opts) - 1
	return fmt.Sprintf("Did you want to %s or %s?", strings.Join(opts[:last], ", "), opts[last])
}

var intentLabels = map[order.Intent]string{
	order.IntentAddItem:        "add something",
	order.IntentRemoveItem:     "remove something",
	order.IntentModifyItem:     "change a drink",
	order.IntentQuantityChange: "change the quantity",
	order.IntentUndoLast:       "undo the last item",
	order.IntentCancelOrder:    "cancel the order",
	order.IntentSplitOrder:     "split the bill",
	order.IntentApplyDiscount:  "apply a discount",
	order.IntentCompleteOrder:  "finish your order",
	order.IntentAskPrice:       "hear a price",
	order.IntentCheckInventory: "check what we have",
	order.IntentAskIngredients: "hear what goes into a drink",
}

type reply struct {
	Intent                 string   `json:"intent"`
	ConversationalResponse string   `json:"conversational_response"`
	Clarification          string   `json:"clarification"`
	Confidence             *float64 `json:"confidence"`
	SuggestedResponse      string   `json:"suggestedResponse"`
}

// parseReply validates content against the reply schema before decoding it.
func parseReply(content string) (reply, error) {
	cleaned := stripMarkdown(content)

	var instance any
	if err := json.Unmarshal([]byte(cleaned), &instance); err != nil {
		return reply{}, fmt.Errorf("%w: %w", ErrUpstreamFormat, err)
	}
	if err := replySchema.Validate(instance); err != nil {
		return reply{}, fmt.Errorf("%w: %w", ErrUpstreamFormat, err)
	}

	var rep reply
	if err := json.Unmarshal([]byte(cleaned), &rep); err != nil {
		return reply{}, fmt.Errorf("%w: %w", ErrUpstreamFormat, err)
	}
	return rep, nil
}

// buildMessages renders the user message, trimming the context snapshot to
// the token budget.
func (r *Resolver) buildMessages(req Request) ([]llm.Message, error) {
	oc := req.Context.Clone()
	for {
		snap, err := json.Marshal(oc)
		if err != nil {
			return nil, fmt.Errorf("ambiguity: marshal context: %w", err)
		}
		msgs := []llm.Message{{Role: "user", Content: userMessage(req, snap)}}

		n, err := r.llm.CountTokens(msgs)
		if err != nil || n <= r.budget {
			return msgs, nil
		}
		switch {
		case len(oc.PreviousCommands) > 0:
			oc.PreviousCommands = oc.PreviousCommands[1:]
		case len(oc.ReferencedItems) > 0:
			oc.ReferencedItems = oc.ReferencedItems[:len(oc.ReferencedItems)-1]
		default:
			return msgs, nil
		}
	}
}

func userMessage(req Request, snapshot []byte) string {
	alts := make([]string, 0, len(req.Local.AlternativeIntents)+1)
	alts = append(alts, fmt.Sprintf("%s (%.2f)", req.Local.Intent, req.Local.Confidence))
	for _, a := range req.Local.AlternativeIntents {
		alts = append(alts, string(a))
	}
	return fmt.Sprintf("Transcript: %s\n\nLocal candidates: %s\n\nContext: %s",
		req.Text, strings.Join(alts, ", "), snapshot)
}

func buildSystemPrompt() string {
	var sb strings.Builder
	for _, i := range order.Intents {
		sb.WriteString("- ")
		sb.WriteString(string(i))
		sb.WriteByte('\n')
	}
	return fmt.Sprintf(systemPrompt, sb.String())
}

// stripMarkdown removes ```json fences some models wrap around JSON.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}

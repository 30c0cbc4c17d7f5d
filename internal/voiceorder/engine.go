// Package voiceorder is the entry point of the voice ordering core. It runs
// one transcript through the pipeline:
//
//	normalize -> gate -> classify -> (escalate) -> match items -> advance context -> respond
//
// and folds every error below it into a [VoiceOrderResult].
package voiceorder

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/barkeep/internal/ambiguity"
	"github.com/MrWong99/barkeep/internal/cartbus"
	"github.com/MrWong99/barkeep/internal/drinkmatch"
	"github.com/MrWong99/barkeep/internal/gate"
	"github.com/MrWong99/barkeep/internal/intent"
	"github.com/MrWong99/barkeep/internal/normalize"
	"github.com/MrWong99/barkeep/internal/observe"
	"github.com/MrWong99/barkeep/internal/order"
	"github.com/MrWong99/barkeep/internal/ordercontext"
	"github.com/MrWong99/barkeep/internal/reference"
	"github.com/MrWong99/barkeep/internal/respond"
)

// Session is the state one ordering session owns. Nothing in it is shared
// with other sessions.
type Session struct {
	ID         string
	Classifier *intent.Classifier
	Matcher    *drinkmatch.Matcher
	Contexts   *ordercontext.Store
	Gate       *gate.Gate
}

// Sessions looks sessions up by ID. Lookup returns an error wrapping
// [ErrUnknownSession] for unknown IDs.
type Sessions interface {
	Lookup(id string) (*Session, error)
}

// Command outcomes used as metric labels.
const (
	outcomeOK       = "ok"
	outcomePartial  = "partial"
	outcomeClarify  = "clarify"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
	outcomeError    = "error"
)

// Option configures an [Engine].
type Option func(*Engine)

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(e *Engine) { e.normalizer = n }
}

// WithResolver sets the ambiguity resolver. The default is local-only.
func WithResolver(r *ambiguity.Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithResponder sets the response generator.
func WithResponder(g *respond.Generator) Option {
	return func(e *Engine) { e.responder = g }
}

// WithPublisher sets where cart deltas go. The default discards them.
func WithPublisher(p cartbus.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides time.Now for context timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine processes voice commands for any number of sessions. It is safe
// for concurrent use; per-session ordering is enforced by each session's
// gate.
type Engine struct {
	sessions   Sessions
	normalizer *normalize.Normalizer
	resolver   *ambiguity.Resolver
	responder  *respond.Generator
	publisher  cartbus.Publisher
	metrics    *observe.Metrics
	now        func() time.Time
}

// New returns an engine serving sessions.
func New(sessions Sessions, opts ...Option) *Engine {
	e := &Engine{
		sessions:   sessions,
		normalizer: normalize.New(normalize.WithSystemCheck(intent.New().IsSystem)),
		resolver:   ambiguity.New(nil),
		responder:  respond.New(),
		publisher:  cartbus.Nop{},
		now:        time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// LocalOnly reports whether ambiguous commands are settled without a model.
func (e *Engine) LocalOnly() bool { return e.resolver.LocalOnly() }

// ProcessVoiceOrder runs text through the pipeline for sessionID. It never
// panics and never returns an error: failures are reported in the result.
func (e *Engine) ProcessVoiceOrder(ctx context.Context, text, sessionID string) (res VoiceOrderResult) {
	ctx = observe.WithSession(ctx, sessionID)
	ctx, span := observe.StartSpan(ctx, "voiceorder.process",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	start := time.Now()
	label, outcome := string(order.IntentUnknown), outcomeError
	defer func() {
		if r := recover(); r != nil {
			observe.Logger(ctx).Error("voiceorder: panic while processing", "panic", r)
			res, outcome = failure(fmt.Errorf("voiceorder: internal error: %v", r)), outcomeError
		}
		if res.Order != nil {
			label = string(res.Order.Intent)
		}
		span.SetAttributes(attribute.String("intent", label), attribute.String("outcome", outcome))
		e.metrics.CommandDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(observe.Attr("intent", label)))
		e.metrics.RecordCommand(ctx, label, outcome)
	}()

	sess, err := e.sessions.Lookup(sessionID)
	if err != nil {
		return failure(err)
	}

	normalized, err := e.normalizer.Normalize(text)
	if err != nil {
		res = failure(fmt.Errorf("voiceorder: %w", err))
		res.Response = respond.DidntHear
		outcome = outcomeFailed
		return res
	}

	err = sess.Gate.Do(ctx, gate.ChannelVoiceCommand, func(ctx context.Context) error {
		res, outcome = e.process(ctx, sess, normalized)
		return nil
	})
	if err != nil {
		if errors.Is(err, gate.ErrCooldown) {
			e.metrics.RecordGateRejection(ctx, gate.ChannelVoiceCommand)
			outcome = outcomeRejected
		}
		return failure(err)
	}
	return res
}

// decision is the intent the pipeline acts on after escalation.
type decision struct {
	intent             order.Intent
	confidence         float64
	alternatives       []order.Intent
	needsClarification bool
	clarification      string
	suggested          string
	source             ambiguity.Source
}

// lines is the outcome of item matching.
type lines struct {
	items        []order.Item
	instructions []string
	unresolved   []string
	outOfStock   []string
	notInOrder   []string
	stale        []string
	recipes      map[string][]string
	errs         []error
}

// unserved reports whether some named drink could not be acted on for it.
// An out-of-stock answer to an inventory question is still an answer.
func (ln lines) unserved(it order.Intent) bool {
	return len(ln.unresolved) > 0 || len(ln.notInOrder) > 0 || len(ln.stale) > 0 ||
		(len(ln.outOfStock) > 0 && it != order.IntentCheckInventory)
}

// rejected lists every phrase that did not become an order line.
func (ln lines) rejected() []string {
	return slices.Concat(ln.unresolved, ln.stale, ln.notInOrder, ln.outOfStock)
}

func (e *Engine) process(ctx context.Context, sess *Session, text string) (VoiceOrderResult, string) {
	now := e.now()
	oc := sess.Contexts.Get()

	_, cspan := observe.StartSpan(ctx, "intent.classify")
	cls := sess.Classifier.Classify(text, oc.LastIntent)
	cspan.SetAttributes(attribute.String("intent", string(cls.Intent)), attribute.Float64("confidence", cls.Confidence))
	cspan.End()

	d := decision{
		intent:             cls.Intent,
		confidence:         cls.Confidence,
		alternatives:       cls.AlternativeIntents,
		needsClarification: cls.NeedsClarification,
	}
	if cls.NeedsClarification && cls.Intent.Tier() != order.TierSystem {
		d = e.escalate(ctx, text, cls, oc)
	}

	var ln lines
	switch d.intent {
	case order.IntentCompleteOrder:
		ln.items = cloneItems(oc.CurrentItems)
	default:
		ln = e.resolveItems(ctx, sess, d.intent, cls, text, oc)
	}
	if ln.items == nil {
		ln.items = []order.Item{}
	}

	if d.intent.TargetsLines() && !d.needsClarification && len(ln.items) > 0 {
		_, applied := ordercontext.AdvanceTurn(oc, ordercontext.Turn{Intent: d.intent, Items: ln.items}, now)
		e.targetLines(ctx, &ln, applied)
	}

	failed := d.intent.NeedsItems() && len(ln.items) == 0 && ln.unserved(d.intent)
	missing := d.intent.NeedsItems() && len(ln.items) == 0 && len(ln.errs) == 0
	if missing {
		d.needsClarification = true
	}

	tone := ordercontext.DetectTone(text, oc)
	turn := ordercontext.Turn{Command: text, Tone: tone, NeedsClarification: d.needsClarification}
	if !d.needsClarification {
		turn.Intent, turn.Items = d.intent, ln.items
	}
	next := ordercontext.Advance(oc, turn, now)
	changed := turn.Intent.ChangesCart() && !failed && (len(ln.items) > 0 || !turn.Intent.NeedsItems())

	commit := func(ctx context.Context) error {
		sess.Contexts.Put(next)
		if changed {
			e.publish(ctx, sess.ID, turn.Intent, ln.items, next)
		}
		return nil
	}
	if turn.Intent == order.IntentCompleteOrder {
		if err := sess.Gate.Do(ctx, gate.ChannelOrderProcessing, commit); err != nil {
			if errors.Is(err, gate.ErrCooldown) {
				e.metrics.RecordGateRejection(ctx, gate.ChannelOrderProcessing)
				return failure(err), outcomeRejected
			}
			return failure(err), outcomeError
		}
	} else {
		_ = commit(ctx)
	}

	var reply string
	switch {
	case missing:
		reply = e.responder.Generate(respond.Input{Intent: d.intent, Confidence: d.confidence, Context: next})
	case d.needsClarification:
		reply = d.clarification
		if reply == "" {
			reply = ambiguity.Clarify(cls)
		}
	case d.suggested != "" && !failed:
		reply = d.suggested
	default:
		reply = e.responder.Generate(respond.Input{
			Intent:      d.intent,
			Confidence:  d.confidence,
			Context:     next,
			Items:       ln.items,
			Unresolved:  ln.unresolved,
			OutOfStock:  ln.outOfStock,
			NotInOrder:  ln.notInOrder,
			Stale:       len(ln.stale) > 0,
			Ingredients: ln.recipes,
		})
	}

	details := &OrderDetails{
		Items:               ln.items,
		Intent:              d.intent,
		SpecialInstructions: strings.Join(ln.instructions, "; "),
		Context:             next,
		NaturalLanguageResponse: NaturalLanguageResponse{
			Confidence:         d.confidence,
			NeedsClarification: d.needsClarification,
			SuggestedResponse:  reply,
			AlternativeIntents: d.alternatives,
		},
		Unresolved: ln.rejected(),
		Source:     string(d.source),
	}

	sess.Classifier.History().Add(intent.Entry{
		Command:    text,
		Intent:     d.intent,
		Confidence: d.confidence,
		Timestamp:  now,
		Success:    !failed && !d.needsClarification,
	})

	observe.Logger(ctx).Debug("voiceorder: processed",
		"intent", d.intent,
		"confidence", d.confidence,
		"items", len(ln.items),
		"unresolved", len(details.Unresolved),
		"clarify", d.needsClarification,
	)

	joined := errors.Join(ln.errs...)
	switch {
	case failed:
		return VoiceOrderResult{Success: false, Order: details, Error: joined.Error(), Err: joined}, outcomeFailed
	case d.needsClarification:
		return VoiceOrderResult{Success: true, Order: details, Err: joined}, outcomeClarify
	case joined != nil:
		return VoiceOrderResult{Success: true, Order: details, Err: joined}, outcomePartial
	}
	return VoiceOrderResult{Success: true, Order: details}, outcomeOK
}

// escalate asks the resolver about cls. A system-tier intent is never
// escalated.
func (e *Engine) escalate(ctx context.Context, text string, cls intent.Result, oc order.Context) decision {
	rctx, span := observe.StartSpan(ctx, "ambiguity.resolve")
	start := time.Now()
	r := e.resolver.Resolve(rctx, ambiguity.Request{Text: text, Local: cls, Context: oc})
	if !e.resolver.LocalOnly() {
		e.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	}
	span.SetAttributes(attribute.String("source", string(r.Source)))
	span.End()
	e.metrics.RecordEscalation(ctx, string(r.Source))

	if r.Err != nil && !errors.Is(r.Err, ambiguity.ErrNoProvider) {
		observe.Logger(ctx).Warn("voiceorder: ambiguity resolver fell back to local guess", "err", r.Err)
	}

	d := decision{
		intent:             cls.Intent,
		confidence:         cls.Confidence,
		alternatives:       cls.AlternativeIntents,
		needsClarification: true,
		clarification:      r.Clarification,
		source:             r.Source,
	}
	if r.Source == ambiguity.SourceLLM {
		d.intent = r.Intent
		d.confidence = r.Confidence
		d.suggested = r.SuggestedResponse
		d.needsClarification = r.Clarification != "" || r.Confidence < intent.ClarifyBelow || r.Intent == order.IntentUnknown
	}
	return d
}

// resolveItems turns the slots of cls into order lines for it. When the
// resolver picked an intent no pattern matched, the whole text is the item
// list.
func (e *Engine) resolveItems(ctx context.Context, sess *Session, it order.Intent, cls intent.Result, text string, oc order.Context) lines {
	itemsText := cls.Slot("items")
	if it != cls.Intent && itemsText == "" && it.NeedsItems() {
		itemsText = text
	}

	switch it {
	case order.IntentQuantityChange:
		qty, _ := strconv.Atoi(cls.Slot("qty"))
		if itemsText == "" {
			if qty <= 0 {
				return lines{}
			}
			// An unnamed item targets the last cart line.
			return lines{items: []order.Item{{Quantity: qty}}}
		}
		ln := e.matchItems(ctx, sess, it, itemsText, oc)
		for i := range ln.items {
			if qty > 0 {
				ln.items[i].Quantity = qty
			}
		}
		return ln

	case order.IntentModifyItem:
		mods, rest := order.ExtractModifiers(cls.Slot("mods"))
		if len(mods) == 0 && rest != "" {
			mods = []string{rest}
		}
		if itemsText == "" {
			if len(mods) == 0 {
				return lines{}
			}
			return lines{items: []order.Item{{Modifiers: mods}}}
		}
		ln := e.matchItems(ctx, sess, it, itemsText, oc)
		for i := range ln.items {
			ln.items[i].Modifiers = mergeModifiers(ln.items[i].Modifiers, mods)
		}
		return ln
	}

	if !it.NeedsItems() || itemsText == "" {
		return lines{}
	}
	return e.matchItems(ctx, sess, it, itemsText, oc)
}

func (e *Engine) matchItems(ctx context.Context, sess *Session, it order.Intent, text string, oc order.Context) lines {
	_, span := observe.StartSpan(ctx, "drinkmatch.match")
	defer span.End()

	var phrases []order.Phrase
	if reference.IsReference(text) {
		phrases = []order.Phrase{{Text: text, Quantity: 1}}
	} else {
		phrases = order.ParseItems(text, sess.Matcher.Known)
	}

	var ln lines
	for _, ph := range phrases {
		ln.instructions = append(ln.instructions, ph.Instructions...)

		m, err := sess.Matcher.Match(ph.Text, oc)
		if err != nil {
			reason := drinkmatch.ReasonNoMatch
			var ue *drinkmatch.UnresolvedError
			if errors.As(err, &ue) {
				reason = ue.Reason
			}
			e.metrics.RecordUnresolved(ctx, reason)
			if reason == drinkmatch.ReasonStale {
				ln.stale = append(ln.stale, ph.Text)
			} else {
				ln.unresolved = append(ln.unresolved, ph.Text)
			}
			ln.errs = append(ln.errs, err)
			continue
		}
		e.metrics.RecordMatch(ctx, string(m.Method))

		if needsStock(it) && !m.Drink.InStock() {
			e.metrics.RecordUnresolved(ctx, drinkmatch.ReasonOutOfStock)
			ln.outOfStock = append(ln.outOfStock, m.Drink.Name)
			ln.errs = append(ln.errs, &drinkmatch.UnresolvedError{Phrase: ph.Text, Reason: drinkmatch.ReasonOutOfStock})
			continue
		}

		item := order.Item{
			Name:      m.Drink.Name,
			Quantity:  ph.Quantity,
			Modifiers: ph.Modifiers,
			ID:        m.Drink.ID,
			Price:     m.Drink.Price,
		}
		if m.Item != nil {
			item = m.Item.Clone()
			if ph.QuantityGiven {
				item.Quantity = ph.Quantity
			}
			item.Modifiers = mergeModifiers(item.Modifiers, ph.Modifiers)
		}
		if it == order.IntentAskIngredients && len(m.Drink.Ingredients) > 0 {
			if ln.recipes == nil {
				ln.recipes = make(map[string][]string)
			}
			ln.recipes[m.Drink.Name] = m.Drink.Ingredients
		}
		ln.items = append(ln.items, item)
	}
	span.SetAttributes(attribute.Int("items", len(ln.items)), attribute.Int("unresolved", len(ln.errs)))
	return ln
}

// targetLines replaces the requested items of a remove, modify or quantity
// change with the cart lines it actually touched. Named drinks without a
// cart line are reported as not in the order; an unnamed target on an empty
// cart leaves nothing, which asks for the drink.
func (e *Engine) targetLines(ctx context.Context, ln *lines, ap ordercontext.Applied) {
	ln.items = ap.Changed
	for _, it := range ap.Missing {
		if it.Name == "" {
			continue
		}
		e.metrics.RecordUnresolved(ctx, drinkmatch.ReasonNotInOrder)
		ln.notInOrder = append(ln.notInOrder, it.Name)
		ln.errs = append(ln.errs, &drinkmatch.UnresolvedError{Phrase: it.Name, Reason: drinkmatch.ReasonNotInOrder})
	}
	if ln.items == nil {
		ln.items = []order.Item{}
	}
}

func (e *Engine) publish(ctx context.Context, sessionID string, it order.Intent, items []order.Item, next order.Context) {
	total := next.CartTotal()
	if it == order.IntentCompleteOrder {
		total = order.Context{CurrentItems: items}.CartTotal()
	}
	err := e.publisher.Publish(ctx, cartbus.Delta{
		SessionID: sessionID,
		Intent:    it,
		Items:     items,
		Cart:      cloneItems(next.CurrentItems),
		Total:     total,
		Timestamp: next.Timestamp,
	})
	status := "ok"
	if err != nil {
		status = "error"
		observe.Logger(ctx).Warn("voiceorder: publish cart delta", "intent", it, "err", err)
	}
	e.metrics.RecordCartPublish(ctx, status)
}

func needsStock(it order.Intent) bool {
	return it == order.IntentAddItem || it == order.IntentCheckInventory
}

func mergeModifiers(have, add []string) []string {
	out := append([]string(nil), have...)
	for _, m := range add {
		if !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out
}

func cloneItems(items []order.Item) []order.Item {
	out := make([]order.Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

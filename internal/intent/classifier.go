// Package intent classifies normalized commands into order intents with a
// confidence score.
//
// For every pattern that matches, the score is
//
//	confidence = (span / len(text)) * (1 - start/len(text)) * weight
//
// where span is the length of the match, start its byte offset and weight the
// pattern's specificity. Patterns are scanned in tier order (system, order,
// management); a system match ends the scan. The winner is then boosted by
// [RelatedBoost] when it follows naturally from the previous intent and
// damped by [UncertaintyFactor] when the text hedges.
//
// With [WithMenuCheck], a command no pattern matched that consists only of
// drink names still reads as add_item at [BareItemWeight].
package intent

import (
	"cmp"
	"slices"
	"strings"

	"github.com/MrWong99/barkeep/internal/order"
	"github.com/MrWong99/barkeep/internal/reference"
)

// Scoring constants.
const (
	RelatedBoost      = 1.2
	UncertaintyFactor = 0.8

	// ClarifyBelow is the confidence under which clarification is needed.
	ClarifyBelow = 0.4

	// AlternativeWindow is how close another intent must score to the
	// winner to be listed as an alternative.
	AlternativeWindow = 0.3

	// MaxAlternatives is the number of alternatives tolerated before the
	// result counts as ambiguous.
	MaxAlternatives = 2

	// BareItemWeight scores a reply made only of drink names.
	BareItemWeight = 0.6
)

// Result is a classification outcome.
type Result struct {
	Intent             order.Intent        `json:"intent"`
	Confidence         float64             `json:"confidence"`
	AlternativeIntents []order.Intent      `json:"alternativeIntents,omitempty"`
	NeedsClarification bool                `json:"needsClarification"`
	ReferenceType      order.ReferenceType `json:"referenceType,omitempty"`

	// Uncertain is set when a hedging keyword was present.
	Uncertain bool `json:"-"`

	// Slots holds the named captures of the winning pattern.
	Slots map[string]string `json:"-"`
}

// Slot returns the named capture, or "".
func (r Result) Slot(name string) string { return r.Slots[name] }

// Option configures a [Classifier].
type Option func(*Classifier)

// WithPatterns replaces [DefaultPatterns]. The table must be in tier order.
func WithPatterns(patterns []Pattern) Option {
	return func(c *Classifier) { c.patterns = patterns }
}

// WithHistory sets the ring the classifier consults when no previous
// intent is passed to Classify.
func WithHistory(h *History) Option {
	return func(c *Classifier) { c.history = h }
}

// WithMenuCheck sets the function that reports whether a phrase names a
// drink on the menu. Without it bare drink names classify as unknown.
func WithMenuCheck(known func(string) bool) Option {
	return func(c *Classifier) { c.known = known }
}

// Classifier is stateless apart from its history ring and safe for
// concurrent use.
type Classifier struct {
	patterns []Pattern
	history  *History
	known    func(string) bool
}

// New returns a [Classifier] using [DefaultPatterns].
func New(opts ...Option) *Classifier {
	c := &Classifier{patterns: DefaultPatterns}
	for _, o := range opts {
		o(c)
	}
	if c.history == nil {
		c.history = NewHistory(DefaultHistorySize)
	}
	return c
}

// History returns the classifier's command ring.
func (c *Classifier) History() *History { return c.history }

// IsSystem reports whether text matches any system-tier pattern. The
// normalizer calls it before removing stop words.
func (c *Classifier) IsSystem(text string) bool {
	for _, pt := range c.patterns {
		if pt.Intent.Tier() == order.TierSystem && pt.Expr.MatchString(text) {
			return true
		}
	}
	return false
}

type candidate struct {
	intent     order.Intent
	confidence float64
	start      int
	slots      map[string]string
}

// Score is the documented scoring function.
func Score(start, end, length int, weight float64) float64 {
	if length <= 0 || end <= start {
		return 0
	}
	n := float64(length)
	s := (float64(end-start) / n) * (1 - float64(start)/n) * weight
	return clamp(s)
}

// Classify scores text against the pattern tables. prev is the intent of
// the previous turn; when empty the last successful history entry is used.
func (c *Classifier) Classify(text string, prev order.Intent) Result {
	if prev == "" && c.history != nil {
		if e, ok := c.history.LastSuccessful(); ok {
			prev = e.Intent
		}
	}

	best := make(map[order.Intent]candidate)
	for i, pt := range c.patterns {
		loc := pt.Expr.FindStringSubmatchIndex(text)
		if loc != nil {
			cand := candidate{
				intent:     pt.Intent,
				confidence: Score(loc[0], loc[1], len(text), pt.Weight),
				start:      loc[0],
				slots:      slots(pt, text, loc),
			}
			if cur, ok := best[pt.Intent]; !ok || better(cand, cur) {
				best[pt.Intent] = cand
			}
		}
		// System matches cannot be outranked; skip the other tiers.
		lastSystem := i+1 == len(c.patterns) || c.patterns[i+1].Intent.Tier() != order.TierSystem
		if pt.Intent.Tier() == order.TierSystem && lastSystem && len(best) > 0 {
			break
		}
	}

	res := Result{Intent: order.IntentUnknown, Uncertain: uncertainty.MatchString(text)}
	if m, ok := reference.Detect(text); ok {
		res.ReferenceType = m.Type
	}

	var winner candidate
	found := false
	for _, in := range order.Intents {
		cand, ok := best[in]
		if !ok {
			continue
		}
		if !found || better(cand, winner) {
			winner, found = cand, true
		}
	}
	if !found {
		winner, found = c.bareItems(text)
	}

	if found {
		res.Intent = winner.intent
		res.Slots = winner.slots

		var alts []candidate
		for in, cand := range best {
			if in != winner.intent && cand.confidence >= winner.confidence-AlternativeWindow {
				alts = append(alts, cand)
			}
		}
		slices.SortFunc(alts, func(a, b candidate) int {
			if r := cmp.Compare(b.confidence, a.confidence); r != 0 {
				return r
			}
			return cmp.Compare(a.intent.Tier(), b.intent.Tier())
		})
		for _, a := range alts {
			res.AlternativeIntents = append(res.AlternativeIntents, a.intent)
		}

		conf := winner.confidence
		if prev != "" && IsRelated(prev, winner.intent) {
			conf *= RelatedBoost
		}
		if res.Uncertain {
			conf *= UncertaintyFactor
		}
		res.Confidence = clamp(conf)
	}

	res.NeedsClarification = NeedsClarification(res.Confidence, len(res.AlternativeIntents), res.Uncertain)
	return res
}

// bareItems reads text as add_item when, hedging words aside, it is nothing
// but drink names.
func (c *Classifier) bareItems(text string) (candidate, bool) {
	if c.known == nil {
		return candidate{}, false
	}
	rest := strings.Join(strings.Fields(uncertainty.ReplaceAllString(text, " ")), " ")
	phrases := order.ParseItems(rest, c.known)
	if len(phrases) == 0 {
		return candidate{}, false
	}
	for _, ph := range phrases {
		if ph.Text == "" || !c.known(ph.Text) {
			return candidate{}, false
		}
	}
	return candidate{
		intent:     order.IntentAddItem,
		confidence: Score(0, len(rest), len(rest), BareItemWeight),
		slots:      map[string]string{"items": rest},
	}, true
}

// NeedsClarification is the clarification rule shared with the ambiguity
// resolver.
func NeedsClarification(confidence float64, alternatives int, uncertain bool) bool {
	return confidence < ClarifyBelow || alternatives > MaxAlternatives || uncertain
}

// better reports whether a outranks b: higher confidence, then higher tier,
// then earlier position.
func better(a, b candidate) bool {
	if a.confidence != b.confidence {
		return a.confidence > b.confidence
	}
	if a.intent.Tier() != b.intent.Tier() {
		return a.intent.Tier() < b.intent.Tier()
	}
	return a.start < b.start
}

func slots(pt Pattern, text string, loc []int) map[string]string {
	var out map[string]string
	for i, name := range pt.Expr.SubexpNames() {
		if name == "" || loc[2*i] < 0 {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[name] = text[loc[2*i]:loc[2*i+1]]
	}
	return out
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}

// Package respond renders the sentence spoken back to the customer.
//
// A response is built from three parts in order: a prefix for the
// conversation's emotional tone, a hedge when confidence is low, and a
// template picked at random from the intent's set with item placeholders
// filled in.
package respond

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/barkeep/internal/order"
)

// Confidence bands for the hedge prefix.
const (
	NotSureBelow   = 0.6
	IfCorrectBelow = 0.8
)

// Fixed phrases.
const (
	NotSurePrefix   = "I'm not quite sure, but "
	IfCorrectPrefix = "If I understand correctly, "

	// DidntHear answers empty transcripts.
	DidntHear = "Sorry, I didn't hear that. Could you say it again?"
)

var tonePrefixes = map[order.Tone]string{
	order.ToneEnthusiastic: "Great choice! ",
	order.ToneApologetic:   "Sorry about that. ",
	order.ToneFrustrated:   "I understand, let me fix that. ",
}

// Placeholders: {items} is the item list, {total} the summed price of the
// items, {prices} one "name is $x" clause per item and {ingredients} one
// sentence per item listing what goes into it.
var templates = map[order.Intent][]string{
	order.IntentAddItem: {
		"I've added {items} to your order.",
		"Got it, {items} coming up.",
		"Sure thing, {items}.",
	},
	order.IntentRemoveItem: {
		"I've removed {items} from your order.",
		"Okay, {items} taken off.",
	},
	order.IntentModifyItem: {
		"Done, I've updated {items}.",
		"Okay, {items} it is.",
	},
	order.IntentQuantityChange: {
		"Sure, that's {items} now.",
		"Updated to {items}.",
	},
	order.IntentUndoLast: {
		"Okay, I've taken that back.",
		"Scratched that last one.",
	},
	order.IntentCancelOrder: {
		"Your order has been cancelled.",
		"Okay, I've cleared everything.",
	},
	order.IntentHelp: {
		"You can order drinks, change or remove them, ask for prices, or say that's it when you're done.",
	},
	order.IntentStop: {
		"Okay, I'll stop listening. Just call me when you need me.",
	},
	order.IntentSplitOrder: {
		"Sure, I'll split the bill.",
		"No problem, separate checks.",
	},
	order.IntentApplyDiscount: {
		"I've noted your discount.",
	},
	order.IntentCompleteOrder: {
		"Your order of {items} is placed. That comes to {total}.",
		"All set, {items}. Your total is {total}.",
	},
	order.IntentAskPrice: {
		"{prices}.",
	},
	order.IntentCheckInventory: {
		"Yes, we have {items}.",
		"We sure do have {items}.",
	},
	order.IntentAskIngredients: {
		"{ingredients}",
	},
	order.IntentUnknown: {
		"Sorry, I didn't catch that. What would you like?",
	},
}

// emptyTemplates replace templates whose intent had no items to name.
var emptyTemplates = map[order.Intent]string{
	order.IntentAddItem:        "What would you like to add?",
	order.IntentRemoveItem:     "What should I remove?",
	order.IntentModifyItem:     "Which drink should I change?",
	order.IntentQuantityChange: "Which drink should I change?",
	order.IntentCompleteOrder:  "Your order is placed. Thank you!",
	order.IntentAskPrice:       "Which drink would you like the price of?",
	order.IntentCheckInventory: "Which drink are you looking for?",
	order.IntentAskIngredients: "Which drink would you like to know about?",
}

// NotSureWhich answers a reference phrase with nothing recent to point at.
const NotSureWhich = "I'm not sure which drink you mean."

// Input is everything a response depends on.
type Input struct {
	Intent     order.Intent
	Confidence float64
	Context    order.Context
	Items      []order.Item

	// Unresolved names were not found in the catalog.
	Unresolved []string

	// OutOfStock names matched the catalog but none are left.
	OutOfStock []string

	// NotInOrder names were asked to be changed but have no cart line.
	NotInOrder []string

	// Stale is set when a reference phrase had nothing recent to point at.
	Stale bool

	// Ingredients maps drink names to what goes into them.
	Ingredients map[string][]string
}

// Option configures a [Generator].
type Option func(*Generator)

// WithPicker replaces the random template choice. pick(n) must return a
// value in [0, n).
func WithPicker(pick func(n int) int) Option {
	return func(g *Generator) { g.pick = pick }
}

// Generator renders responses. It holds no state besides its picker.
type Generator struct {
	pick func(int) int
}

// New returns a generator that picks templates with math/rand.
func New(opts ...Option) *Generator {
	g := &Generator{pick: rand.IntN}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate renders the response for in. When no item was served and a note
// already names the problem, the note stands in for the empty-item prompt.
func (g *Generator) Generate(in Input) string {
	extra := notes(in)
	body, empty := g.body(in)

	var sb strings.Builder
	sb.WriteString(tonePrefixes[in.Context.EmotionalTone])
	if !empty || len(extra) == 0 {
		if hedge := Hedge(in.Confidence); hedge != "" {
			sb.WriteString(hedge)
			body = lowerFirst(body)
		}
		sb.WriteString(body)
		if len(extra) > 0 {
			sb.WriteByte(' ')
		}
	}
	sb.WriteString(strings.Join(extra, " "))
	return sb.String()
}

func notes(in Input) []string {
	var out []string
	if len(in.OutOfStock) > 0 {
		out = append(out, fmt.Sprintf("Sorry, we're out of %s.", joinNames(in.OutOfStock)))
	}
	if n := len(in.NotInOrder); n > 0 {
		verb := "isn't"
		if n > 1 {
			verb = "aren't"
		}
		out = append(out, fmt.Sprintf("%s %s in your order.", upperFirst(joinNames(in.NotInOrder)), verb))
	}
	if len(in.Unresolved) > 0 {
		out = append(out, fmt.Sprintf("I couldn't find %s on the menu.", joinNames(in.Unresolved)))
	}
	if in.Stale {
		out = append(out, NotSureWhich)
	}
	return out
}

// Hedge returns the uncertainty prefix for confidence.
func Hedge(confidence float64) string {
	switch {
	case confidence < NotSureBelow:
		return NotSurePrefix
	case confidence < IfCorrectBelow:
		return IfCorrectPrefix
	}
	return ""
}

// body renders the intent template. empty is set when the intent needed
// items and got none.
func (g *Generator) body(in Input) (_ string, empty bool) {
	set, ok := templates[in.Intent]
	if !ok {
		set = templates[order.IntentUnknown]
	}
	tmpl := set[0]
	if len(set) > 1 {
		tmpl = set[g.pick(len(set))]
	}
	if strings.Contains(tmpl, "{") && len(in.Items) == 0 {
		if e, ok := emptyTemplates[in.Intent]; ok {
			return e, true
		}
	}
	return strings.NewReplacer(
		"{items}", FormatItems(in.Items),
		"{total}", FormatPrice(total(in.Items)),
		"{prices}", formatPrices(in.Items),
		"{ingredients}", formatIngredients(in.Items, in.Ingredients),
	).Replace(tmpl), false
}

// FormatItems renders items as "a Mojito (no ice) and 2 Beers".
func FormatItems(items []order.Item) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, formatItem(it))
	}
	return joinNames(parts)
}

func formatItem(it order.Item) string {
	var s string
	switch {
	case it.Quantity > 1:
		s = fmt.Sprintf("%d %s", it.Quantity, plural(it.Name))
	case startsWithVowel(it.Name):
		s = "an " + it.Name
	default:
		s = "a " + it.Name
	}
	if len(it.Modifiers) > 0 {
		s += " (" + strings.Join(it.Modifiers, ", ") + ")"
	}
	return s
}

// FormatPrice renders a dollar amount.
func FormatPrice(p float64) string { return fmt.Sprintf("$%.2f", p) }

func formatPrices(items []order.Item) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s is %s", formatItem(order.Item{Name: it.Name, Quantity: 1}), FormatPrice(it.Price)))
	}
	return upperFirst(joinNames(parts))
}

func formatIngredients(items []order.Item, recipes map[string][]string) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		name := formatItem(order.Item{Name: it.Name, Quantity: 1})
		if r := recipes[it.Name]; len(r) > 0 {
			parts = append(parts, fmt.Sprintf("%s has %s.", upperFirst(name), joinNames(r)))
			continue
		}
		parts = append(parts, fmt.Sprintf("I don't have the recipe for %s.", name))
	}
	return strings.Join(parts, " ")
}

func total(items []order.Item) float64 {
	var t float64
	for _, it := range items {
		t += it.Price * float64(max(it.Quantity, 1))
	}
	return t
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return "that"
	case 1:
		return names[0]
	}
	last := len(names) - 1
	return strings.Join(names[:last], ", ") + " and " + names[last]
}

func plural(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, "s"), strings.HasSuffix(lower, "x"):
		return name
	case strings.HasSuffix(lower, "y") && len(lower) > 1 && !strings.ContainsRune("aeiou", rune(lower[len(lower)-2])):
		return name[:len(name)-1] + "ies"
	}
	return name + "s"
}

func startsWithVowel(s string) bool {
	r, _ := utf8.DecodeRuneInString(strings.ToLower(s))
	return strings.ContainsRune("aeiou", r)
}

// lowerFirst lowercases the first letter unless the sentence opens with "I".
func lowerFirst(s string) string {
	if strings.HasPrefix(s, "I ") || strings.HasPrefix(s, "I'") {
		return s
	}
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[n:]
}

func upperFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

package order

import (
	"regexp"
	"strconv"
	"strings"
)

// Phrase is one drink mention split out of an item list.
type Phrase struct {
	// Text is the drink words with quantity and modifiers removed.
	Text string

	// Quantity defaults to 1 when QuantityGiven is false.
	Quantity      int
	QuantityGiven bool

	Modifiers []string

	// Instructions are free-form "with ..." clauses that are not known
	// modifiers, e.g. "with extra mint".
	Instructions []string
}

// modifierVocabulary is matched longest first.
var modifierVocabulary = []string{
	"on the rocks", "straight up", "light ice", "extra ice", "without ice", "no ice", "with ice",
	"extra lime", "extra lemon", "no lime", "no lemon", "with lime", "with lemon",
	"salted rim", "with salt", "no salt", "extra shot", "no straw", "on rocks",
	"neat", "double", "single", "large", "medium", "small", "shaken", "stirred",
}

var (
	itemSeparator   = regexp.MustCompile(`\s*(?:,|\band\b|\bplus\b|&)\s*`)
	leadingQuantity = regexp.MustCompile(`^(\d+)\s+`)
	instructionTail = regexp.MustCompile(`\s*\b(with(?:out)?\s+.+)$`)
	modifierRegexps = compileModifiers()
)

func compileModifiers() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(modifierVocabulary))
	for i, m := range modifierVocabulary {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(m) + `\b`)
	}
	return out
}

// ParseItems splits a normalized item list into phrases. known reports
// whether a fragment is itself a catalog name; it keeps names like
// "rum and coke" from being split. known may be nil.
func ParseItems(s string, known func(string) bool) []Phrase {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var segments []string
	rest := s
	for {
		loc := itemSeparator.FindStringIndex(rest)
		if loc == nil {
			segments = append(segments, rest)
			break
		}
		segments = append(segments, rest[:loc[0]], rest[loc[0]:loc[1]])
		rest = rest[loc[1]:]
	}

	// segments alternates text, separator, text, ...
	var parts []string
	for i := 0; i < len(segments); i += 2 {
		cur := segments[i]
		for known != nil && i+2 < len(segments) {
			merged := cur + segments[i+1] + segments[i+2]
			if !known(stripQuantity(merged)) {
				break
			}
			cur = merged
			i += 2
		}
		if strings.TrimSpace(cur) != "" {
			parts = append(parts, strings.TrimSpace(cur))
		}
	}

	phrases := make([]Phrase, 0, len(parts))
	for _, p := range parts {
		if ph, ok := parsePhrase(p); ok {
			phrases = append(phrases, ph)
		}
	}
	return phrases
}

func parsePhrase(s string) (Phrase, bool) {
	ph := Phrase{Quantity: 1}
	if m := leadingQuantity.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			ph.Quantity, ph.QuantityGiven = n, true
		}
		s = s[len(m[0]):]
	}

	ph.Modifiers, s = ExtractModifiers(s)

	if m := instructionTail.FindStringSubmatchIndex(s); m != nil {
		ph.Instructions = append(ph.Instructions, s[m[2]:m[3]])
		s = s[:m[0]]
	}

	ph.Text = strings.Join(strings.Fields(s), " ")
	if ph.Text == "" && len(ph.Modifiers) == 0 && len(ph.Instructions) == 0 {
		return Phrase{}, false
	}
	return ph, true
}

// ExtractModifiers removes known modifiers from s and returns them in the
// order they appear in the vocabulary, together with the remaining text.
func ExtractModifiers(s string) ([]string, string) {
	var mods []string
	for i, re := range modifierRegexps {
		if re.MatchString(s) {
			mods = append(mods, modifierVocabulary[i])
			s = re.ReplaceAllString(s, " ")
		}
	}
	return mods, strings.Join(strings.Fields(s), " ")
}

func stripQuantity(s string) string {
	return strings.TrimSpace(leadingQuantity.ReplaceAllString(strings.TrimSpace(s), ""))
}

func sameName(a, b string) bool { return strings.EqualFold(a, b) }

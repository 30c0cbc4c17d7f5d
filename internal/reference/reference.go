// Package reference detects anaphoric phrases such as "another one" or
// "same thing" in normalized text and says which earlier item they point at.
package reference

import (
	"regexp"
	"strconv"

	"github.com/MrWong99/barkeep/internal/order"
)

// Match is a detected reference phrase.
type Match struct {
	Phrase     string
	Type       order.ReferenceType
	Confidence float64

	// Quantity is the number of items requested ("2 more" is 2). It is 1 when
	// the phrase carries no number.
	Quantity int
}

type pattern struct {
	expr       *regexp.Regexp
	refType    order.ReferenceType
	confidence float64
}

// Patterns run against normalized text, where number words are digits and
// articles are gone ("the last one" arrives as "last 1").
var patterns = []pattern{
	{regexp.MustCompile(`\banother(?: 1| round)?\b`), order.RefPrevious, 0.9},
	{regexp.MustCompile(`\b(?P<qty>\d+) more\b`), order.RefPrevious, 0.9},
	{regexp.MustCompile(`\bsame (?:thing|again|1)\b`), order.RefPrevious, 0.85},
	{regexp.MustCompile(`\bthat again\b`), order.RefPrevious, 0.85},
	{regexp.MustCompile(`\blast (?:1|drink|item)\b`), order.RefLast, 0.8},
	{regexp.MustCompile(`\b(?:that|this) (?:1|drink)\b`), order.RefCurrent, 0.8},
	{regexp.MustCompile(`^(?:it|that|this|those|them)$`), order.RefCurrent, 0.8},
}

// Detect returns the first reference phrase found in text.
func Detect(text string) (Match, bool) {
	for _, p := range patterns {
		loc := p.expr.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		m := Match{
			Phrase:     text[loc[0]:loc[1]],
			Type:       p.refType,
			Confidence: p.confidence,
			Quantity:   1,
		}
		if idx := p.expr.SubexpIndex("qty"); idx > 0 && loc[2*idx] >= 0 {
			if n, err := strconv.Atoi(text[loc[2*idx]:loc[2*idx+1]]); err == nil && n > 0 {
				m.Quantity = n
			}
		}
		return m, true
	}
	return Match{}, false
}

// IsReference reports whether the whole of phrase is a reference phrase,
// which is how the entity matcher decides to take the reference path.
func IsReference(phrase string) bool {
	m, ok := Detect(phrase)
	return ok && len(m.Phrase) == len(phrase)
}

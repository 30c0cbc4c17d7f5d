// Package drinkmatch resolves a spoken drink phrase to a catalog entry.
//
// Matching is attempted in a strict order and the first hit wins:
//
//  1. exact name (case-insensitive, plural and serving words tolerated), 1.0
//  2. a variation previously recorded for a name, 0.95
//  3. a reference phrase ("another one", "same thing") pointing at a drink
//     matched within the reference window, 0.8 to 0.9, +0.1 when the drink is
//     also the context's most recent reference
//  4. fuzzy similarity (Levenshtein, Jaro-Winkler, Double Metaphone) above
//     the threshold
//  5. brand keyword, narrowed by a light/diet qualifier when several drinks
//     carry the brand
//
// Successful non-reference matches record the phrase as a variation.
package drinkmatch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/barkeep/internal/catalog"
	"github.com/MrWong99/barkeep/internal/order"
	"github.com/MrWong99/barkeep/internal/reference"
)

// ErrUnresolved is the sentinel every [UnresolvedError] unwraps to.
var ErrUnresolved = errors.New("drinkmatch: unresolved entity")

// Reasons reported in [UnresolvedError].
const (
	ReasonNoMatch    = "no catalog match"
	ReasonEmpty      = "empty phrase"
	ReasonStale      = "nothing recent to refer to"
	ReasonOutOfStock = "out of stock"
	ReasonNotInOrder = "not in your order"
)

// UnresolvedError reports a phrase that could not be matched.
type UnresolvedError struct {
	Phrase string
	Reason string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("drinkmatch: %q unresolved: %s", e.Phrase, e.Reason)
}

func (e *UnresolvedError) Unwrap() error { return ErrUnresolved }

// Method names the step that produced a match.
type Method string

const (
	MethodExact     Method = "exact"
	MethodVariation Method = "variation"
	MethodReference Method = "reference"
	MethodFuzzy     Method = "fuzzy"
	MethodBrand     Method = "brand"
)

// Confidences of the fixed steps.
const (
	ExactConfidence          = 1.0
	VariationConfidence      = 0.95
	RecentReferenceBonus     = 0.1
	BrandConfidence          = 0.75
	QualifiedBrandConfidence = 0.7
)

// Match is a resolved phrase.
type Match struct {
	Drink      catalog.Drink
	Confidence float64
	Method     Method
	Phrase     string

	// Item is set for reference matches: the referenced order line with its
	// modifiers and the quantity the phrase asked for.
	Item *order.Item
}

// Menu supplies the current drinks. [catalog.Snapshot] implements it.
type Menu interface {
	Drinks() []catalog.Drink
}

// DefaultBrands are keywords the brand heuristic recognises.
var DefaultBrands = []string{
	"coke", "coca-cola", "pepsi", "sprite", "fanta", "red bull", "corona", "heineken",
	"guinness", "budweiser", "bud", "stella", "modelo", "coors", "miller", "peroni",
	"jack", "jameson", "absolut", "bacardi", "smirnoff", "patron", "tanqueray",
	"grey goose", "hennessy", "aperol", "baileys",
}

// Qualifiers narrow a brand hit that matched several drinks.
var Qualifiers = []string{"light", "lite", "diet", "zero", "sugar free"}

// Option configures a [Matcher].
type Option func(*Matcher)

// WithThreshold sets the minimum fuzzy score (default 0.6). A fuzzy match
// must exceed it.
func WithThreshold(t float64) Option {
	return func(m *Matcher) { m.threshold = t }
}

// WithReferenceWindow sets how recently a drink must have been matched for a
// reference phrase to resolve to it (default 5m).
func WithReferenceWindow(d time.Duration) Option {
	return func(m *Matcher) { m.window = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) { m.now = now }
}

// WithBrands replaces [DefaultBrands].
func WithBrands(brands []string) Option {
	return func(m *Matcher) { m.brands = brands }
}

// Matcher resolves phrases against a [Menu]. It owns one session's [Cache].
type Matcher struct {
	menu      Menu
	cache     *Cache
	threshold float64
	window    time.Duration
	now       func() time.Time
	brands    []string
}

// New returns a [Matcher]. A nil cache gets a fresh one.
func New(menu Menu, cache *Cache, opts ...Option) *Matcher {
	if cache == nil {
		cache = NewCache(DefaultCacheSize)
	}
	m := &Matcher{
		menu:      menu,
		cache:     cache,
		threshold: 0.6,
		window:    5 * time.Minute,
		now:       time.Now,
		brands:    DefaultBrands,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Cache returns the matcher's variation cache.
func (m *Matcher) Cache() *Cache { return m.cache }

// Known reports whether s is exactly a catalog name.
func (m *Matcher) Known(s string) bool {
	s = key(s)
	for _, d := range m.menu.Drinks() {
		if key(d.Name) == s {
			return true
		}
	}
	return false
}

// Match resolves phrase. oc is the context snapshot used for reference
// phrases. A failure is always an [*UnresolvedError].
func (m *Matcher) Match(phrase string, oc order.Context) (Match, error) {
	p := strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
	if p == "" {
		return Match{}, &UnresolvedError{Phrase: phrase, Reason: ReasonEmpty}
	}
	drinks := m.menu.Drinks()
	now := m.now()

	// 1. Exact and 2. known variation.
	if d, conf, method, ok := m.named(p, drinks); ok {
		return m.hit(d, p, conf, method, now), nil
	}

	// 3. Reference phrase.
	if rm, ok := reference.Detect(p); ok && len(rm.Phrase) == len(p) {
		if match, ok := m.resolveReference(p, rm, oc, drinks, now); ok {
			return match, nil
		}
		return Match{}, &UnresolvedError{Phrase: phrase, Reason: ReasonStale}
	}

	// 4. Fuzzy and 5. brand keyword.
	if d, conf, method, ok := m.similar(p, drinks); ok {
		return m.hit(d, p, conf, method, now), nil
	}

	return Match{}, &UnresolvedError{Phrase: phrase, Reason: ReasonNoMatch}
}

// Recognizes reports whether phrase names a catalog drink without the help
// of a reference. Unlike [Matcher.Match] it records nothing.
func (m *Matcher) Recognizes(phrase string) bool {
	p := strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
	if p == "" {
		return false
	}
	if rm, ok := reference.Detect(p); ok && len(rm.Phrase) == len(p) {
		return false
	}
	drinks := m.menu.Drinks()
	if _, _, _, ok := m.named(p, drinks); ok {
		return true
	}
	_, _, _, ok := m.similar(p, drinks)
	return ok
}

func (m *Matcher) named(p string, drinks []catalog.Drink) (catalog.Drink, float64, Method, bool) {
	for _, f := range forms(p) {
		for _, d := range drinks {
			if key(d.Name) == f {
				return d, ExactConfidence, MethodExact, true
			}
		}
	}
	if name, ok := m.cache.LookupVariation(p); ok {
		if d, ok := byName(drinks, name); ok {
			return d, VariationConfidence, MethodVariation, true
		}
	}
	return catalog.Drink{}, 0, "", false
}

func (m *Matcher) similar(p string, drinks []catalog.Drink) (catalog.Drink, float64, Method, bool) {
	var best catalog.Drink
	var bestScore float64
	for _, f := range forms(p) {
		for _, d := range drinks {
			if s := fuzzyScore(f, key(d.Name)); s > bestScore {
				best, bestScore = d, s
			}
		}
	}
	if bestScore > m.threshold {
		return best, bestScore, MethodFuzzy, true
	}
	if d, conf, ok := m.brandMatch(p, drinks); ok {
		return d, conf, MethodBrand, true
	}
	return catalog.Drink{}, 0, "", false
}

func (m *Matcher) hit(d catalog.Drink, phrase string, conf float64, method Method, now time.Time) Match {
	m.cache.Record(d.Name, phrase, now)
	return Match{Drink: d, Confidence: conf, Method: method, Phrase: phrase}
}

func (m *Matcher) resolveReference(p string, rm reference.Match, oc order.Context, drinks []catalog.Drink, now time.Time) (Match, bool) {
	target, hasTarget := oc.ReferenceTarget(rm.Type)

	var entry CacheEntry
	found := false
	if hasTarget {
		if e, ok := m.cache.Entry(target.Name); ok && now.Sub(e.LastMatched) <= m.window {
			entry, found = e, true
		}
	}
	if !found {
		entry, found = m.cache.Freshest(now, m.window)
		hasTarget = false
	}
	if !found {
		return Match{}, false
	}
	d, ok := byName(drinks, entry.CanonicalName)
	if !ok {
		return Match{}, false
	}

	conf := rm.Confidence
	if recent, ok := oc.MostRecentReference(); ok && strings.EqualFold(recent.Item.Name, d.Name) {
		conf += RecentReferenceBonus
	}
	conf = min(conf, 1.0)

	item := order.Item{Name: d.Name, Quantity: rm.Quantity, ID: d.ID, Price: d.Price}
	if hasTarget && strings.EqualFold(target.Name, d.Name) {
		item.Modifiers = target.Modifiers
	}

	m.cache.RecordReference(d.Name, p, now)
	return Match{Drink: d, Confidence: conf, Method: MethodReference, Phrase: p, Item: &item}, true
}

func (m *Matcher) brandMatch(p string, drinks []catalog.Drink) (catalog.Drink, float64, bool) {
	for _, brand := range m.brands {
		if !containsWord(p, brand) {
			continue
		}
		var cands []catalog.Drink
		for _, d := range drinks {
			if strings.Contains(key(d.Name), brand) {
				cands = append(cands, d)
			}
		}
		switch {
		case len(cands) == 1:
			return cands[0], BrandConfidence, true
		case len(cands) > 1:
			for _, q := range Qualifiers {
				if !containsWord(p, q) {
					continue
				}
				var narrowed []catalog.Drink
				for _, d := range cands {
					if containsWord(key(d.Name), q) {
						narrowed = append(narrowed, d)
					}
				}
				if len(narrowed) == 1 {
					return narrowed[0], QualifiedBrandConfidence, true
				}
			}
		}
	}
	return catalog.Drink{}, 0, false
}

func byName(drinks []catalog.Drink, name string) (catalog.Drink, bool) {
	k := key(name)
	for _, d := range drinks {
		if key(d.Name) == k {
			return d, true
		}
	}
	return catalog.Drink{}, false
}

package drinkmatch_test

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/MrWong99/barkeep/internal/catalog"
	"github.com/MrWong99/barkeep/internal/drinkmatch"
	"github.com/MrWong99/barkeep/internal/order"
)

type staticMenu []catalog.Drink

func (m staticMenu) Drinks() []catalog.Drink { return m }

var menu = staticMenu{
	{ID: "mojito", Name: "Mojito", Inventory: 10, Price: 9.5},
	{ID: "diet-coke", Name: "Diet Coke", Inventory: 10, Price: 3},
	{ID: "beer", Name: "Beer", Inventory: 10, Price: 5},
	{ID: "margarita", Name: "Margarita", Inventory: 10, Price: 10},
	{ID: "rum-and-coke", Name: "Rum and Coke", Inventory: 10, Price: 8},
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time           { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newMatcher(t *testing.T) (*drinkmatch.Matcher, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 5, 1, 21, 0, 0, 0, time.UTC)}
	return drinkmatch.New(menu, nil, drinkmatch.WithClock(clk.Now)), clk
}

func TestMatch_Exact(t *testing.T) {
	t.Parallel()
	m, _ := newMatcher(t)
	oc := order.NewContext(time.Now())
	for _, phrase := range []string{"mojito", "MOJITO", "mojitos", "glass mojito", "diet cokes"} {
		got, err := m.Match(phrase, oc)
		if err != nil {
			t.Errorf("Match(%q): %v", phrase, err)
			continue
		}
		if got.Method != drinkmatch.MethodExact || got.Confidence != 1.0 {
			t.Errorf("Match(%q) = %s %.2f, want exact 1.0", phrase, got.Method, got.Confidence)
		}
	}
}

func TestMatch_VariationRoundTrip(t *testing.T) {
	t.Parallel()
	m, _ := newMatcher(t)
	oc := order.NewContext(time.Now())

	first, err := m.Match("mohito", oc)
	if err != nil {
		t.Fatalf("first match: %v", err)
	}
	if first.Drink.Name != "Mojito" || first.Method != drinkmatch.MethodFuzzy {
		t.Fatalf("first = %+v, want fuzzy Mojito", first)
	}

	second, err := m.Match("mohito", oc)
	if err != nil {
		t.Fatalf("second match: %v", err)
	}
	if second.Method != drinkmatch.MethodVariation || second.Confidence != drinkmatch.VariationConfidence {
		t.Errorf("second = %s %.2f, want variation 0.95", second.Method, second.Confidence)
	}
}

func TestMatch_Reference(t *testing.T) {
	t.Parallel()
	m, clk := newMatcher(t)
	oc := order.NewContext(clk.Now())
	if _, err := m.Match("mojito", oc); err != nil {
		t.Fatal(err)
	}
	oc.LastOrder = &order.Item{Name: "Mojito", Quantity: 2, Modifiers: []string{"no ice"}}
	clk.Advance(time.Minute)

	got, err := m.Match("another 1", oc)
	if err != nil {
		t.Fatalf("Match(another 1): %v", err)
	}
	if got.Method != drinkmatch.MethodReference || got.Drink.Name != "Mojito" {
		t.Fatalf("got %+v", got)
	}
	if math.Abs(got.Confidence-0.9) > 1e-9 {
		t.Errorf("confidence = %.2f, want 0.9", got.Confidence)
	}
	if got.Item == nil || got.Item.Quantity != 1 || len(got.Item.Modifiers) != 1 {
		t.Errorf("item = %+v, want quantity 1 with the previous modifiers", got.Item)
	}

	// The context's most recent reference earns the bonus.
	oc = oc.WithReference(order.Item{Name: "Mojito", Quantity: 1}, order.IntentAddItem, clk.Now())
	got, err = m.Match("2 more", oc)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got.Confidence-1.0) > 1e-9 || got.Item.Quantity != 2 {
		t.Errorf("got confidence %.2f quantity %d, want 1.0 and 2", got.Confidence, got.Item.Quantity)
	}

	entry, ok := m.Cache().Entry("Mojito")
	if !ok || len(entry.RecentReferences) != 2 {
		t.Errorf("recent references = %+v", entry.RecentReferences)
	}
	for _, v := range entry.Variations {
		if v == "another 1" || v == "2 more" {
			t.Errorf("reference phrase %q stored as a variation", v)
		}
	}
}

func TestMatch_ReferenceExpires(t *testing.T) {
	t.Parallel()
	m, clk := newMatcher(t)
	oc := order.NewContext(clk.Now())
	if _, err := m.Match("mojito", oc); err != nil {
		t.Fatal(err)
	}
	oc.LastOrder = &order.Item{Name: "Mojito", Quantity: 1}
	clk.Advance(5*time.Minute + time.Second)

	_, err := m.Match("same thing", oc)
	var ue *drinkmatch.UnresolvedError
	if !errors.As(err, &ue) || ue.Reason != drinkmatch.ReasonStale {
		t.Fatalf("want stale UnresolvedError, got %v", err)
	}
	if !errors.Is(err, drinkmatch.ErrUnresolved) {
		t.Error("UnresolvedError must unwrap to ErrUnresolved")
	}
}

func TestMatch_ReferenceFallsBackToFreshestEntry(t *testing.T) {
	t.Parallel()
	m, clk := newMatcher(t)
	oc := order.NewContext(clk.Now())
	if _, err := m.Match("mojito", oc); err != nil {
		t.Fatal(err)
	}
	clk.Advance(4 * time.Minute)
	if _, err := m.Match("beer", oc); err != nil {
		t.Fatal(err)
	}
	oc.LastOrder = &order.Item{Name: "Mojito", Quantity: 1}
	clk.Advance(2 * time.Minute)

	got, err := m.Match("same again", oc)
	if err != nil {
		t.Fatal(err)
	}
	if got.Drink.Name != "Beer" {
		t.Errorf("got %q, want the fresh Beer instead of the stale Mojito", got.Drink.Name)
	}
}

func TestMatch_Unresolved(t *testing.T) {
	t.Parallel()
	m, _ := newMatcher(t)
	oc := order.NewContext(time.Now())
	tests := []struct {
		phrase, reason string
	}{
		{"", drinkmatch.ReasonEmpty},
		{"xyzzy plugh", drinkmatch.ReasonNoMatch},
		{"another 1", drinkmatch.ReasonStale},
	}
	for _, tt := range tests {
		_, err := m.Match(tt.phrase, oc)
		var ue *drinkmatch.UnresolvedError
		if !errors.As(err, &ue) || ue.Reason != tt.reason {
			t.Errorf("Match(%q): want reason %q, got %v", tt.phrase, tt.reason, err)
		}
	}
}

func TestMatcher_Known(t *testing.T) {
	t.Parallel()
	m, _ := newMatcher(t)
	if !m.Known("rum and coke") || m.Known("rum") {
		t.Error("Known mismatch")
	}
}

func TestMatcher_Recognizes(t *testing.T) {
	t.Parallel()
	m, _ := newMatcher(t)
	tests := []struct {
		phrase string
		want   bool
	}{
		{"beer", true},
		{"Mojitos", true},
		{"mohito", true},
		{"diet coke", true},
		{"another one", false},
		{"xyzzy plugh", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := m.Recognizes(tt.phrase); got != tt.want {
			t.Errorf("Recognizes(%q) = %v, want %v", tt.phrase, got, tt.want)
		}
	}
	if n := len(m.Cache().Entries()); n != 0 {
		t.Errorf("Recognizes recorded %d cache entries", n)
	}
}

func TestCache_VariationsFIFO(t *testing.T) {
	t.Parallel()
	c := drinkmatch.NewCache(0)
	now := time.Now()
	for i := range 7 {
		c.Record("Mojito", fmt.Sprintf("v%d", i), now)
	}
	c.Record("Mojito", "mojito", now)
	e, ok := c.Entry("mojito")
	if !ok {
		t.Fatal("entry missing")
	}
	want := []string{"v6", "v5", "v4", "v3", "v2"}
	if fmt.Sprint(e.Variations) != fmt.Sprint(want) {
		t.Errorf("variations = %v, want %v", e.Variations, want)
	}
	if e.MatchCount != 8 {
		t.Errorf("match count = %d", e.MatchCount)
	}
}

func TestCache_EvictsLeastRecentlyMatched(t *testing.T) {
	t.Parallel()
	c := drinkmatch.NewCache(2)
	t0 := time.Now()
	c.Record("A", "a1", t0)
	c.Record("B", "b1", t0.Add(time.Second))
	c.Record("A", "a2", t0.Add(2*time.Second))
	c.Record("C", "c1", t0.Add(3*time.Second))

	if _, ok := c.Entry("B"); ok {
		t.Error("B should have been evicted")
	}
	if _, ok := c.Entry("A"); !ok {
		t.Error("A should survive")
	}
	if name, ok := c.LookupVariation("c1"); !ok || name != "C" {
		t.Errorf("LookupVariation(c1) = %q, %v", name, ok)
	}
}

func TestCache_RecentReferencesCap(t *testing.T) {
	t.Parallel()
	c := drinkmatch.NewCache(0)
	now := time.Now()
	for i := range 12 {
		c.RecordReference("Beer", fmt.Sprintf("r%d", i), now)
	}
	e, _ := c.Entry("Beer")
	if len(e.RecentReferences) != drinkmatch.MaxRecentReferences || e.RecentReferences[0].Phrase != "r11" {
		t.Errorf("references = %+v", e.RecentReferences)
	}
	if len(e.Variations) != 0 {
		t.Error("references must not create variations")
	}
}

package drinkmatch

import (
	"testing"

	"github.com/MrWong99/barkeep/internal/catalog"
)

func TestFuzzyScore(t *testing.T) {
	t.Parallel()
	tests := []struct {
		phrase, name string
		above        bool
	}{
		{"mohito", "mojito", true},
		{"margerita", "margarita", true},
		{"light bud", "bud light", true},
		{"beer", "diet coke", false},
		{"beer", "margarita", false},
		{"xyzzy plugh", "mojito", false},
	}
	for _, tt := range tests {
		s := fuzzyScore(tt.phrase, tt.name)
		if (s > 0.6) != tt.above {
			t.Errorf("fuzzyScore(%q, %q) = %.3f, want above 0.6 = %v", tt.phrase, tt.name, s, tt.above)
		}
		if s > maxFuzzyScore {
			t.Errorf("fuzzyScore(%q, %q) = %.3f exceeds cap", tt.phrase, tt.name, s)
		}
	}
}

func TestBrandMatch(t *testing.T) {
	t.Parallel()
	drinks := []catalog.Drink{
		{Name: "Bud Light"}, {Name: "Budweiser"}, {Name: "Jameson"}, {Name: "Mojito"},
	}
	m := New(staticDrinks(drinks), nil)

	tests := []struct {
		phrase   string
		want     string
		wantConf float64
		ok       bool
	}{
		{"jameson neat", "Jameson", BrandConfidence, true},
		{"cold bud light", "Bud Light", QualifiedBrandConfidence, true},
		{"bud", "", 0, false},
		{"pepsi", "", 0, false},
	}
	for _, tt := range tests {
		d, conf, ok := m.brandMatch(tt.phrase, drinks)
		if ok != tt.ok || d.Name != tt.want || conf != tt.wantConf {
			t.Errorf("brandMatch(%q) = %q %.2f %v, want %q %.2f %v", tt.phrase, d.Name, conf, ok, tt.want, tt.wantConf, tt.ok)
		}
	}
}

type staticDrinks []catalog.Drink

func (s staticDrinks) Drinks() []catalog.Drink { return s }

func TestSingularAndForms(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"mojitos":  "mojito",
		"whiskies": "whisky",
		"glasses":  "glass",
		"beer":     "beer",
		"gas":      "gas",
	}
	for in, want := range tests {
		if got := singular(in); got != want {
			t.Errorf("singular(%q) = %q, want %q", in, got, want)
		}
	}
	f := forms("pints beers")
	if f[len(f)-1] != "beer" {
		t.Errorf("forms = %v", f)
	}
}

func TestContainsWord(t *testing.T) {
	t.Parallel()
	if !containsWord("cold bud light", "bud") || containsWord("budweiser", "bud") || !containsWord("red bull", "red bull") {
		t.Error("containsWord mismatch")
	}
	if !containsWord("bud bud", "bud") || containsWord("abud", "bud") {
		t.Error("containsWord boundary mismatch")
	}
}

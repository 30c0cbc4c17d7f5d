package drinkmatch

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// phoneticBonus is added when the Double Metaphone codes of the phrase and
// the name overlap. Fuzzy scores never reach the variation confidence.
const (
	phoneticBonus = 0.05
	maxFuzzyScore = 0.94
)

// fuzzyScore blends a normalized Levenshtein ratio with Jaro-Winkler
// similarity, on the full strings and token by token, and adds a small bonus
// for phonetic agreement. Both inputs are lowercase.
func fuzzyScore(phrase, name string) float64 {
	pt, nt := strings.Fields(phrase), strings.Fields(name)
	if len(pt) == 0 || len(nt) == 0 {
		return 0
	}

	score := blend(phrase, name)
	if s := blend(strings.Join(pt, ""), strings.Join(nt, "")); s > score {
		score = s
	}

	if len(pt) > 1 || len(nt) > 1 {
		// Soft token score: every spoken token is paired with its closest
		// name token. Unpaired name tokens count against the match.
		var sum float64
		for _, a := range pt {
			var bestTok float64
			for _, b := range nt {
				bestTok = max(bestTok, blend(a, b))
			}
			sum += bestTok
		}
		tok := sum / float64(max(len(pt), len(nt)))
		score = max(score, tok*0.9)
	}

	if codesOverlap(codesForTokens(pt), codesForTokens(nt)) {
		score += phoneticBonus
	}
	return min(score, maxFuzzyScore)
}

func blend(a, b string) float64 {
	return (levRatio(a, b) + matchr.JaroWinkler(a, b, false)) / 2
}

func levRatio(a, b string) float64 {
	n := max(len([]rune(a)), len([]rune(b)))
	if n == 0 {
		return 1
	}
	return 1 - float64(matchr.Levenshtein(a, b))/float64(n)
}

// codesForTokens returns the union of Double Metaphone codes of tokens.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// singular strips common English plural endings.
func singular(s string) string {
	switch {
	case strings.HasSuffix(s, "ies") && len(s) > 4:
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(s, "sses"), strings.HasSuffix(s, "shes"), strings.HasSuffix(s, "ches"), strings.HasSuffix(s, "xes"):
		return s[:len(s)-2]
	case strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") && len(s) > 3:
		return s[:len(s)-1]
	}
	return s
}

var containers = []string{"pints", "pint", "glasses", "glass", "bottles", "bottle", "cans", "can", "cups", "cup", "jugs", "jug", "pitchers", "pitcher"}

// stripContainer removes a leading serving word: "pint beer" is "beer".
func stripContainer(s string) string {
	first, rest, ok := strings.Cut(s, " ")
	if !ok {
		return s
	}
	for _, c := range containers {
		if first == c {
			return rest
		}
	}
	return s
}

// forms returns the spellings tried for exact matching, without duplicates.
func forms(p string) []string {
	out := []string{p}
	add := func(s string) {
		for _, o := range out {
			if o == s {
				return
			}
		}
		out = append(out, s)
	}
	add(lastWordSingular(p))
	c := stripContainer(p)
	add(c)
	add(lastWordSingular(c))
	return out
}

// lastWordSingular singularises only the final word: "diet cokes" becomes
// "diet coke".
func lastWordSingular(s string) string {
	i := strings.LastIndexByte(s, ' ')
	return s[:i+1] + singular(s[i+1:])
}

func containsWord(s, w string) bool {
	for off := 0; off < len(s); {
		i := strings.Index(s[off:], w)
		if i < 0 {
			return false
		}
		start, end := off+i, off+i+len(w)
		if (start == 0 || s[start-1] == ' ') && (end == len(s) || s[end] == ' ') {
			return true
		}
		off = start + 1
	}
	return false
}

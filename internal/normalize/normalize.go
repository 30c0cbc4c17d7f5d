// Package normalize turns a raw speech transcript into the canonical form the
// intent patterns are written against.
//
// The steps are: lowercase, strip punctuation (apostrophes survive so that
// "that's" stays one token), collapse whitespace, drop a leading wake phrase,
// replace number words with digits and, unless the text is a system command,
// remove filler words.
package normalize

import (
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyTranscript is returned when nothing is left after normalization.
var ErrEmptyTranscript = errors.New("normalize: empty transcript")

var (
	punctuation = strings.NewReplacer(
		".", " ", ",", " ", "!", " ", "?", " ", ";", " ", ":", " ",
		`"`, " ", "(", " ", ")", " ", "[", " ", "]", " ", "{", " ", "}", " ",
		"’", "'", "‘", "'",
	)

	wakePhrase = regexp.MustCompile(`^(?:(?:hey|hi|ok|okay|yo)\s+)?(?:bar(?:tender|keep)?|barkeep)\b\s*`)

	numberWord = regexp.MustCompile(`\b(?:one|two|three|four|five|six|seven|eight|nine|ten|couple|few|several)\b`)
)

var numberValues = map[string]string{
	"one": "1", "two": "2", "three": "3", "four": "4", "five": "5",
	"six": "6", "seven": "7", "eight": "8", "nine": "9", "ten": "10",
	"couple": "2", "few": "3", "several": "3",
}

// DefaultStopWords are removed from non-system commands.
var DefaultStopWords = []string{
	"a", "an", "the", "please", "um", "uh", "er", "erm", "hmm",
	"just", "some", "of", "really", "actually", "yeah", "so",
}

// Option configures a [Normalizer].
type Option func(*Normalizer)

// WithSystemCheck installs the pre-check that decides whether the text is a
// system command. System commands keep their stop words.
func WithSystemCheck(fn func(string) bool) Option {
	return func(n *Normalizer) { n.isSystem = fn }
}

// WithStopWords replaces [DefaultStopWords].
func WithStopWords(words []string) Option {
	return func(n *Normalizer) { n.stopWords = toSet(words) }
}

// Normalizer is safe for concurrent use; it holds no mutable state.
type Normalizer struct {
	isSystem  func(string) bool
	stopWords map[string]struct{}
}

// New returns a [Normalizer].
func New(opts ...Option) *Normalizer {
	n := &Normalizer{stopWords: toSet(DefaultStopWords)}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize returns the canonical form of raw, or [ErrEmptyTranscript].
func (n *Normalizer) Normalize(raw string) (string, error) {
	s := Basic(raw)
	if s == "" {
		return "", ErrEmptyTranscript
	}
	if n.isSystem != nil && n.isSystem(s) {
		return s, nil
	}
	s = n.removeStopWords(s)
	if s == "" {
		return "", ErrEmptyTranscript
	}
	return s, nil
}

// Basic applies every step except stop-word removal.
func Basic(raw string) string {
	s := strings.ToLower(raw)
	s = punctuation.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	s = wakePhrase.ReplaceAllString(s, "")
	s = numberWord.ReplaceAllStringFunc(s, func(w string) string { return numberValues[w] })
	s = strings.Trim(s, "' ")
	return s
}

func (n *Normalizer) removeStopWords(s string) string {
	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if _, stop := n.stopWords[w]; !stop {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

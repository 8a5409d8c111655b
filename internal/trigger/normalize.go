package trigger

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultStopwords are filler words removed before matching.
var DefaultStopwords = []string{"the", "an", "and", "or", "um", "uh", "er", "please", "of", "to", "it", "is", "just"}

// normalizer lowercases, strips punctuation and filters tokens.
type normalizer struct {
	stopwords map[string]struct{}
}

func newNormalizer(stopwords []string) normalizer {
	n := normalizer{stopwords: make(map[string]struct{}, len(stopwords))}
	for _, w := range stopwords {
		n.stopwords[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return n
}

// tokens returns the normalized tokens of text.
func (n normalizer) tokens(text string) []string {
	lowered := cases.Lower(language.Und).String(text)
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return r
		}
		return ' '
	}, lowered)

	fields := strings.Fields(cleaned)
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 2 && !isNumeric(f) {
			continue
		}
		if _, stop := n.stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// normalize returns the tokens of text joined by single spaces.
func (n normalizer) normalize(text string) string {
	return strings.Join(n.tokens(text), " ")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Similarity returns the Levenshtein similarity of a and b on a 0 to 100
// scale, rounded down. Two empty strings are identical.
func Similarity(a, b string) int {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 100 * (maxLen - dist) / maxLen
}

// containsPhrase reports whether keyword occurs in phrase starting at a token
// boundary. The keyword may end inside a token, so "clipping that" matches
// "clip" while "eclipse" does not.
func containsPhrase(phrase, keyword string) bool {
	if keyword == "" {
		return false
	}
	return strings.Contains(" "+phrase, " "+keyword)
}

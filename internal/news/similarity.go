package news

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	nonWordRe    = regexp.MustCompile(`[^\w\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize lowercases s, strips every character outside the word and
// space classes and collapses whitespace runs to a single space. Unicode
// spaces such as NBSP count as whitespace, so "Gold\u00a0hits" keeps its
// two words.
func Normalize(s string) string {
	s = strings.Map(toSpace, strings.ToLower(s))
	s = nonWordRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// toSpace maps the Unicode space separators and the byte order mark to an
// ASCII space. U+0085 is left alone and dropped as punctuation.
func toSpace(r rune) rune {
	if r == '\uFEFF' || (r != '\u0085' && unicode.IsSpace(r)) {
		return ' '
	}
	return r
}

// Similarity returns a word overlap score in [0,1] between a and b.
//
// Every word of a that occurs anywhere in b counts as a match, so repeated
// words in a are counted once per occurrence while the denominator uses the
// raw word counts of both sides.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1
	}

	words1 := strings.Fields(na)
	words2 := strings.Fields(nb)
	if len(words1)+len(words2) == 0 {
		return 0
	}

	present := make(map[string]struct{}, len(words2))
	for _, w := range words2 {
		present[w] = struct{}{}
	}

	matches := 0
	for _, w := range words1 {
		if _, ok := present[w]; ok {
			matches++
		}
	}

	return 2 * float64(matches) / float64(len(words1)+len(words2))
}

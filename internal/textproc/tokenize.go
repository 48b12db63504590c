package textproc

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Tokenize splits s into case-folded runs of letters, digits and underscores.
// Underscores are kept so identifiers such as error codes stay whole.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}

	s = folder.String(norm.NFKC.String(s))

	tokens := []string{}
	for field := range strings.FieldsFuncSeq(s, isSeparator) {
		field = strings.Trim(field, "_")
		if field != "" {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

// Frequencies counts every token of s.
func Frequencies(s string) (map[string]int, int) {
	tokens := Tokenize(s)
	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}
	return freq, len(tokens)
}

func isSeparator(r rune) bool {
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
}

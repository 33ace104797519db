package retrieval

import (
	"strings"
	"unicode"
)

var fillerWords = map[string]bool{
	"show": true, "list": true, "give": true, "tell": true, "what": true, "which": true,
	"about": true, "with": true, "that": true, "this": true, "have": true, "from": true,
	"control": true, "controls": true, "related": true, "please": true, "there": true,
	"their": true, "does": true, "into": true, "them": true, "risk": true, "risks": true,
}

// significantWords keeps lower-cased words longer than three letters that
// carry meaning on their own.
func significantWords(q string) []string {
	fields := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	seen := map[string]bool{}
	var out []string
	for _, w := range fields {
		w = strings.Trim(w, "-")
		if len(w) <= 3 || fillerWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

package reconcile

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// foldKey is the dedup key for names: trimmed, inner whitespace collapsed,
// lower case.
func foldKey(name string) string {
	return strings.ToLower(collapse(name))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CategoryName is the display form of a category name.
func CategoryName(name string) string {
	return cases.Title(language.Und).String(collapse(name))
}

// FieldName is the display form of a specification field name: first
// letter upper case, the rest lower case.
func FieldName(name string) string {
	s := strings.ToLower(collapse(name))
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// brandVotes picks a display variant per brand key.
type brandVotes struct {
	counts map[string]map[string]int
}

func newBrandVotes() *brandVotes {
	return &brandVotes{counts: make(map[string]map[string]int)}
}

// add counts one occurrence and returns the brand key, or "" for an empty name.
func (v *brandVotes) add(name string) string {
	display := collapse(name)
	if display == "" {
		return ""
	}
	key := foldKey(display)
	if v.counts[key] == nil {
		v.counts[key] = make(map[string]int)
	}
	v.counts[key][display]++
	return key
}

// winner returns the most frequent variant for key. Ties go to the
// lexicographically smallest, so the result does not depend on input order.
func (v *brandVotes) winner(key string) string {
	best, bestCount := "", 0
	for display, n := range v.counts[key] {
		if n > bestCount || (n == bestCount && display < best) {
			best, bestCount = display, n
		}
	}
	return best
}

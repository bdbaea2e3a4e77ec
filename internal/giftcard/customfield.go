package giftcard

import (
	"strings"
	"unicode"

	"giftsync/entity"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CustomFieldLookup returns the text value of the first custom field that
// matches any of the candidate names, or an empty string.
type CustomFieldLookup func(sess *entity.CheckoutSession, candidates ...string) string

// Normalize lower-cases s and strips combining marks after NFD decomposition,
// so "Cumpleañero" and "cumpleanero" compare equal.
func Normalize(s string) string {
	lower := strings.ToLower(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, lower)
	if err != nil {
		return lower
	}
	return out
}

// LookupCustomField matches a candidate against the field key exactly or
// against the visible label as a substring, both normalized.
func LookupCustomField(sess *entity.CheckoutSession, candidates ...string) string {
	if sess == nil || len(sess.CustomFields) == 0 {
		return ""
	}
	options := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if n := Normalize(strings.TrimSpace(c)); n != "" {
			options = append(options, n)
		}
	}
	if len(options) == 0 {
		return ""
	}

	for _, f := range sess.CustomFields {
		key := Normalize(f.Key)
		label := Normalize(f.Label)
		for _, opt := range options {
			if opt == key || (label != "" && strings.Contains(label, opt)) {
				return strings.TrimSpace(f.Text)
			}
		}
	}
	return ""
}

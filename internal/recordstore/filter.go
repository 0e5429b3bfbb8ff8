package recordstore

import "strings"

// Filter is a single field-equality predicate.  It is rendered into the
// store's formula language by the HTTP client and evaluated directly by the
// in-memory and SQL backends.
type Filter struct {
	Field    string
	Value    string
	FoldCase bool
}

// Eq matches records whose field equals value exactly.
func Eq(field, value string) *Filter { return &Filter{Field: field, Value: value} }

// EqFold matches case-insensitively.
func EqFold(field, value string) *Filter { return &Filter{Field: field, Value: value, FoldCase: true} }

// Formula renders the filter as an Airtable filterByFormula expression.
func (f *Filter) Formula() string {
	if f == nil {
		return ""
	}
	if f.FoldCase {
		return "LOWER({" + f.Field + "})=" + quote(strings.ToLower(f.Value))
	}
	return "{" + f.Field + "}=" + quote(f.Value)
}

// Match evaluates the predicate against a record's fields.
func (f *Filter) Match(fields Fields) bool {
	if f == nil {
		return true
	}
	got := fields.String(f.Field)
	if f.FoldCase {
		return strings.EqualFold(got, f.Value)
	}
	return got == f.Value
}

// quote produces a formula string literal.  Backslashes and double quotes
// are escaped so user input cannot break out of the literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

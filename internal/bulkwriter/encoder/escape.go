// Package encoder implements the text escaping rules for PostgreSQL COPY
// FROM stdin input, per https://www.postgresql.org/docs/current/sql-copy.html
package encoder

import "strings"

// replacer applies every backslash escape in one left-to-right pass, so a
// backslash produced by one escape is never escaped again. The result is
// the same as applying the substitutions one after another with the
// backslash first, as COPY's text format needs.
var replacer = strings.NewReplacer(
	"\\", "\\\\",
	"\b", "\\b",
	"\t", "\\t",
	"\n", "\\n",
	"\v", "\\v",
	"\f", "\\f",
	"\r", "\\r",
)

// Escape returns s with backslash, backspace, tab, newline, vertical tab,
// form feed, and carriage return replaced by their two-character COPY
// escape sequences. Any other byte, including nulls, passes through
// unchanged. Escape is a monoid morphism over string concatenation:
// Escape(a+b) == Escape(a)+Escape(b).
func Escape(s string) string {
	return replacer.Replace(s)
}

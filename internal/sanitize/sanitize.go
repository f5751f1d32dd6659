// Package sanitize makes user-controlled strings safe to use as
// file-system path components.
package sanitize

import "strings"

// maxLen bounds the length of a sanitized component, in runes.
const maxLen = 240

var replacer = strings.NewReplacer(
	":", "-",
	"/", "-",
	"\\", "-",
	"|", "-",
	"?", "",
	"*", "",
	"<", "(",
	">", ")",
	`"`, "'",
)

// Clean returns s with path-hostile characters replaced or removed and
// the result truncated to 240 runes. It is total and deterministic:
// every input maps to exactly one output, and applying Clean twice
// yields the same result as once.
func Clean(s string) string {
	s = replacer.Replace(s)
	if r := []rune(s); len(r) > maxLen {
		s = string(r[:maxLen])
	}
	return s
}

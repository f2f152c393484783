// Package sanitize strips markup from user-supplied text fields.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// maxPasses bounds the work spent on nested entity encodings.
const maxPasses = 8

// Text removes every HTML element from s, decodes entities and trims
// surrounding whitespace. Decoding can expose markup that was hidden behind
// entities, so the pass repeats until the output is stable. Input still
// changing after maxPasses is rejected as empty. Text(Text(s)) == Text(s).
func Text(s string) string {
	for i := 0; i < maxPasses; i++ {
		if s == "" {
			return ""
		}
		next := strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
		if next == s {
			return s
		}
		s = next
	}
	return ""
}

package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// source and note are plain text; strip every tag.
var sanitizer = bluemonday.StrictPolicy()

// maxSanitizeRounds bounds nested entity encodings such as &amp;lt;script&amp;gt;.
const maxSanitizeRounds = 4

// SanitizeText strips markup, trims whitespace and caps the result at max runes.
// Entities are decoded before the policy runs, so encoded markup is stripped
// like literal markup. max <= 0 disables the cap.
func SanitizeText(input string, max int) string {
	clean := stripMarkup(input)
	clean = strings.TrimSpace(clean)
	if max > 0 {
		if rs := []rune(clean); len(rs) > max {
			clean = strings.TrimSpace(string(rs[:max]))
		}
	}
	return clean
}

// stripMarkup decodes and sanitizes until the text is a fixed point, so the
// returned plain text holds nothing the policy would remove.
func stripMarkup(input string) string {
	clean := input
	for i := 0; i < maxSanitizeRounds; i++ {
		next := html.UnescapeString(sanitizer.Sanitize(html.UnescapeString(clean)))
		if next == clean {
			return clean
		}
		clean = next
	}
	// still changing: keep the policy's entity-escaped output
	return sanitizer.Sanitize(html.UnescapeString(clean))
}

// Package sanitize screens free-text fields for HTML markup before they are stored.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// ContainsMarkup reports whether value carries anything the strict policy
// would remove. Plain text, including '&', quotes and a spaced '<', passes.
func ContainsMarkup(value string) bool {
	if value == "" {
		return false
	}
	return html.UnescapeString(strict.Sanitize(value)) != value
}

// Blank reports whether value has no visible characters.
func Blank(value string) bool {
	return strings.TrimSpace(value) == ""
}

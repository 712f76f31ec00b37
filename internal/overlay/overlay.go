// Package overlay holds the browser-independent half of overlay labeling:
// deciding whether an address is a label and rendering the label summary.
package overlay

import (
	"fmt"
	"strconv"
	"strings"
	"sweer/internal/entity"
	"unicode/utf8"
)

const (
	DefaultMaxTextLength = 50

	// Labels are at most three digits; anything longer goes to the CSS path.
	maxLabelLength = 4
	ellipsis       = "..."
)

// IsLabel reports whether s addresses an overlay label rather than a CSS selector.
func IsLabel(s string) bool {
	if s == "" || len(s) >= maxLabelLength {
		return false
	}

	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}

// Find returns the entry carrying label.
func Find(entries []entity.OverlayEntry, label string) (entity.OverlayEntry, bool) {
	for _, entry := range entries {
		if entry.Label == label {
			return entry, true
		}
	}

	return entity.OverlayEntry{}, false
}

// Format renders one line per entry. maxTextLength <= 0 selects the default.
func Format(entries []entity.OverlayEntry, maxTextLength int) string {
	if maxTextLength <= 0 {
		maxTextLength = DefaultMaxTextLength
	}

	var b strings.Builder

	for _, entry := range entries {
		fmt.Fprintf(&b, "%3s - ", entry.Label)

		if !entry.HasSyntheticID() {
			fmt.Fprintf(&b, "ID=%s ", strconv.Quote(entry.ID))
		}

		fields := []struct {
			key   string
			value string
		}{
			{"type", entry.Type},
			{"class", entry.Class},
			{"text", entry.Text},
			{"ariaLabel", entry.AriaLabel},
		}

		for _, f := range fields {
			if strings.TrimSpace(f.value) == "" {
				continue
			}

			fmt.Fprintf(&b, "%s=%s ", f.key, quoteTruncated(f.value, maxTextLength))
		}

		b.WriteString("\n")
	}

	return b.String()
}

func quoteTruncated(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return strconv.Quote(s)
	}

	runes := []rune(s)

	return strconv.Quote(string(runes[:max])) + ellipsis
}

package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Free-text limits, in characters.
const (
	MaxSupplierNameLength = 200
	MaxReasonLength       = 500
	MaxNoteLength         = 1000
)

// SanitizeString trims input, drops control characters other than newlines and tabs, and
// cuts the result to maxLen characters. maxLen <= 0 disables the cut.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, input)
	cleaned = strings.TrimSpace(cleaned)
	if maxLen <= 0 || utf8.RuneCountInString(cleaned) <= maxLen {
		return cleaned
	}
	runes := []rune(cleaned)
	return strings.TrimSpace(string(runes[:maxLen]))
}

// SanitizeOptional applies SanitizeString and collapses blank results to nil, which the
// services read as "not provided".
func SanitizeOptional(input *string, maxLen int) *string {
	if input == nil {
		return nil
	}
	cleaned := SanitizeString(*input, maxLen)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

package util

import "unicode/utf8"

// TruncateStringToMaxLength shortens s to at most maxChars runes. A truncated
// string ends in "..." when maxChars leaves room for it, so the cut is
// visible to the reader.
func TruncateStringToMaxLength(s string, maxChars int) string {
	if utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	if maxChars <= 3 {
		return string(runes[:maxChars])
	}
	return string(runes[:maxChars-3]) + "..."
}

// utils/validator.go - Input validation
package utils

import (
	"strings"
	"unicode/utf8"
)

// SanitizeInput removes potentially harmful characters
func SanitizeInput(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove leading/trailing spaces
	return strings.TrimSpace(input)
}

// TextLength counts characters (not bytes) of the sanitized text.
func TextLength(input string) int {
	return utf8.RuneCountInString(SanitizeInput(input))
}

// NormalizeKey lower-cases and snake-cases free text used as a lookup key.
func NormalizeKey(input string) string {
	key := strings.ToLower(SanitizeInput(input))
	key = strings.NewReplacer(" ", "_", "-", "_", "/", "_").Replace(key)
	for strings.Contains(key, "__") {
		key = strings.ReplaceAll(key, "__", "_")
	}
	return strings.Trim(key, "_")
}

// Package utils provides shared utilities for text, math, and logging.
package utils

import "strings"

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// NormalizeTitle lowercases and trims a title for case-insensitive matching.
func NormalizeTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

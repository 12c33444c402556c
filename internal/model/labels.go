package model

import "strings"

// NormalizeLabel lower-cases and trims a category or tag for comparison.
func NormalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

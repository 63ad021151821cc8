package utils

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name, collapses every run of characters outside [a-z0-9]
// into a single '-', and trims leading and trailing '-'.
func Slugify(name string) string {
	s := nonAlphanumeric.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

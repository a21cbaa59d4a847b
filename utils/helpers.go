package utils

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// NewPublicID generates the URL-safe slug used to share published bib maps.
func NewPublicID() (string, error) {
	return gonanoid.New(12)
}

// IsHexColor reports whether s looks like a #RRGGBB color string.
func IsHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

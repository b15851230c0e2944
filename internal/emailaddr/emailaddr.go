// Package emailaddr holds the address normalization shared by registration and verification.
package emailaddr

import (
	"regexp"
	"strings"
)

var pattern = regexp.MustCompile(`.+@.+\..+`)

// Normalize trims surrounding whitespace and lowercases the address.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Valid reports whether an already normalized address is non-empty and looks like local@domain.tld.
func Valid(email string) bool {
	return email != "" && pattern.MatchString(email)
}

// Parse normalizes raw and reports whether the result is valid.
func Parse(raw string) (string, bool) {
	email := Normalize(raw)
	return email, Valid(email)
}

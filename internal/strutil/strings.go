package strutil

import (
	"regexp"
	"strings"
)

var currencyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// NormalizeCode trims surrounding whitespace and upper-cases the ASCII
// letters of a currency code. Other runes are left as is, so a code such as
// "ſek" never folds into a valid one
func NormalizeCode(s string) string {
	s = TrimToken(s)

	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}

	return string(b)
}

// IsCurrencyCode reports whether s is exactly three upper-case latin letters
func IsCurrencyCode(s string) bool {
	return currencyCodeRe.MatchString(s)
}

// TrimToken removes spaces and tabs around a markup token
func TrimToken(s string) string {
	return strings.Trim(s, " \t\r\n")
}

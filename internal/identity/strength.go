// File: internal/identity/strength.go
package identity

import "unicode"

// StrengthRating is a coarse password quality label.
type StrengthRating string

const (
	StrengthWeak   StrengthRating = "weak"
	StrengthMedium StrengthRating = "medium"
	StrengthStrong StrengthRating = "strong"
)

// Strength scores one point each for an upper-case letter, a lower-case
// letter, a digit, a symbol and a length of at least 12.
func Strength(pw string) StrengthRating {
	if pw == "" {
		return StrengthWeak
	}

	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r):
			special = true
		}
	}

	score := 0
	for _, ok := range []bool{upper, lower, digit, special, len([]rune(pw)) >= 12} {
		if ok {
			score++
		}
	}

	switch {
	case score >= 4:
		return StrengthStrong
	case score == 3:
		return StrengthMedium
	}
	return StrengthWeak
}

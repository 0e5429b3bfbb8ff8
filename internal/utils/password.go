package utils

import (
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// MinBcryptCost is the lowest work factor accepted for stored passwords.
const MinBcryptCost = 12

// HashPassword returns bcrypt hash using the given cost.  Costs below
// MinBcryptCost are raised.
func HashPassword(plain string, cost int) (string, error) {
	if cost < MinBcryptCost {
		cost = MinBcryptCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// PasswordProblems lists every complexity rule the password breaks:
// at least 8 characters with an upper-case letter, a lower-case letter
// and a digit.  An empty result means the password is acceptable.
func PasswordProblems(pw string) []string {
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	var out []string
	if len([]rune(pw)) < 8 {
		out = append(out, "Password must be at least 8 characters")
	}
	if !upper || !lower || !digit {
		out = append(out, "Password must contain at least one uppercase letter, one lowercase letter, and one number")
	}
	return out
}

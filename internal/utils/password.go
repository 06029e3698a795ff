package utils

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Password policy violations returned by ValidatePassword.
var (
	ErrPasswordSpaces    = errors.New("password must not contain spaces")
	ErrPasswordShort     = errors.New("password must be at least 12 characters")
	ErrPasswordLower     = errors.New("password must contain a lowercase letter")
	ErrPasswordUpper     = errors.New("password must contain an uppercase letter")
	ErrPasswordDigit     = errors.New("password must contain a digit")
	ErrPasswordSpecial   = errors.New("password must contain a special character")
	ErrPasswordTooCommon = errors.New("password is too common")
)

var commonPasswords = map[string]struct{}{
	"password": {}, "motdepasse": {}, "azerty": {}, "qwerty": {},
	"admin": {}, "administrator": {}, "welcome": {}, "letmein": {},
	"1234567890": {}, "12345678": {}, "000000": {},
	"password123": {}, "admin123": {},
}

// ValidatePassword enforces the registration policy and returns the first
// violated rule.
func ValidatePassword(p string) error {
	if _, ok := commonPasswords[strings.ToLower(p)]; ok {
		return ErrPasswordTooCommon
	}
	if strings.ContainsRune(p, ' ') {
		return ErrPasswordSpaces
	}
	if len([]rune(p)) < 12 {
		return ErrPasswordShort
	}
	var lower, upper, digit, special bool
	for _, r := range p {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case r != '_' && !unicode.IsLetter(r) && !unicode.IsSpace(r):
			special = true
		}
	}
	switch {
	case !lower:
		return ErrPasswordLower
	case !upper:
		return ErrPasswordUpper
	case !digit:
		return ErrPasswordDigit
	case !special:
		return ErrPasswordSpecial
	}
	return nil
}

package security

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

var (
	ErrPasswordTooShort    = errors.New("password too short")
	ErrPasswordTooLong     = errors.New("password too long")
	ErrPasswordWeakPattern = errors.New("password uses a common pattern")
	ErrPasswordCompromised = errors.New("password is in the compromised list")
	ErrPasswordTooWeak     = errors.New("password too weak")
)

const (
	maxPasswordLength = 128
	// maxPasswordBytes is the longest input bcrypt accepts.
	maxPasswordBytes = 72
)

var weakPatterns = []*regexp.Regexp{
	regexp.MustCompile(`123456`),
	regexp.MustCompile(`(?i)password`),
	regexp.MustCompile(`(?i)qwerty`),
	regexp.MustCompile(`(?i)admin`),
	regexp.MustCompile(`(?i)letmein`),
}

var compromisedPasswords = map[string]struct{}{
	"123456": {}, "password": {}, "123456789": {}, "qwerty": {}, "abc123": {},
	"password123": {}, "admin": {}, "letmein": {}, "welcome": {}, "monkey": {},
}

// PasswordPolicy validates new passwords.
type PasswordPolicy struct {
	MinLength int
	// MinScore is the minimum Strength score; zero disables the score check.
	MinScore int
}

// DefaultPasswordPolicy requires 6 characters and a score of 3.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: 6, MinScore: 3}
}

// Strength is a coarse password strength estimate.
type Strength struct {
	Score       int      `json:"score"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Validate returns nil when password satisfies the policy, or the first violated rule.
func (p PasswordPolicy) Validate(password string) error {
	minLen := p.MinLength
	if minLen <= 0 {
		minLen = 6
	}
	n := len([]rune(password))
	if n < minLen {
		return ErrPasswordTooShort
	}
	if n > maxPasswordLength || len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	if IsCompromised(password) {
		return ErrPasswordCompromised
	}
	for _, re := range weakPatterns {
		if re.MatchString(password) {
			return ErrPasswordWeakPattern
		}
	}
	if p.MinScore > 0 && EvaluateStrength(password).Score < p.MinScore {
		return ErrPasswordTooWeak
	}
	return nil
}

// IsCompromised reports whether password appears in the known-compromised list.
func IsCompromised(password string) bool {
	_, ok := compromisedPasswords[strings.ToLower(password)]
	return ok
}

// EvaluateStrength scores password from 0 to 6: one point each for length >= 6,
// length >= 8, upper case, lower case, digit and symbol; common patterns cost two.
func EvaluateStrength(password string) Strength {
	var s Strength
	n := len([]rune(password))
	if n >= 6 {
		s.Score++
	}
	if n >= 8 {
		s.Score++
	}
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	for _, c := range []struct {
		ok         bool
		suggestion string
	}{
		{upper, "Incluir al menos una letra mayúscula"},
		{lower, "Incluir al menos una letra minúscula"},
		{digit, "Incluir al menos un número"},
		{symbol, "Incluir al menos un carácter especial"},
	} {
		if c.ok {
			s.Score++
		} else {
			s.Suggestions = append(s.Suggestions, c.suggestion)
		}
	}
	for _, re := range weakPatterns {
		if re.MatchString(password) {
			s.Score -= 2
			break
		}
	}
	if s.Score < 0 {
		s.Score = 0
	}
	return s
}

// WeakPasswordMessage returns the client-facing message for a policy violation.
func WeakPasswordMessage(err error) string {
	switch {
	case errors.Is(err, ErrPasswordTooShort):
		return "La contraseña es demasiado corta"
	case errors.Is(err, ErrPasswordTooLong):
		return "La contraseña es demasiado larga"
	case errors.Is(err, ErrPasswordCompromised):
		return "La contraseña es muy común y ha sido comprometida"
	case errors.Is(err, ErrPasswordWeakPattern):
		return "La contraseña contiene patrones débiles"
	default:
		return "La contraseña no es suficientemente segura"
	}
}

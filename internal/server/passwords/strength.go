// Package passwords holds the password strength predicate shared by request
// validation and the registration pipeline, and the bcrypt hasher.
package passwords

import (
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/harvesthub/internal/common"
)

const (
	MinLength = 8
	// MaxBytes is the longest input bcrypt accepts.
	MaxBytes = 72
	// Symbols is the punctuation set a password must draw at least one character from.
	Symbols = `!@#$%^&*(),.?":{}|<>`
)

const (
	HintMinLength = "use at least 8 characters"
	HintUpper     = "add an uppercase letter"
	HintDigit     = "add a number"
	HintSymbol    = `add a symbol such as ! @ # $ % ^ & * ( ) , . ? " : { } | < >`
)

// Strength reports which requirements a password meets.
type Strength struct {
	HasMinLength   bool
	HasUpperCase   bool
	HasNumber      bool
	HasSpecialChar bool
}

func Evaluate(password string) Strength {
	return Strength{
		HasMinLength:   utf8.RuneCountInString(password) >= MinLength,
		HasUpperCase:   HasUpper(password),
		HasNumber:      HasDigit(password),
		HasSpecialChar: HasSymbol(password),
	}
}

func (s Strength) OK() bool {
	return s.HasMinLength && s.HasUpperCase && s.HasNumber && s.HasSpecialChar
}

// Hints lists what to change, in a stable order. It is empty for a strong password.
func (s Strength) Hints() []string {
	var hints []string
	if !s.HasMinLength {
		hints = append(hints, HintMinLength)
	}
	if !s.HasUpperCase {
		hints = append(hints, HintUpper)
	}
	if !s.HasNumber {
		hints = append(hints, HintDigit)
	}
	if !s.HasSpecialChar {
		hints = append(hints, HintSymbol)
	}
	return hints
}

func HasUpper(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r >= 'A' && r <= 'Z' }) >= 0
}

func HasDigit(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
}

func HasSymbol(s string) bool {
	return strings.ContainsAny(s, Symbols)
}

// WeakPasswordError carries remediation hints for a password that fails
// the strength predicate.
type WeakPasswordError struct {
	Hints []string
}

func (e *WeakPasswordError) Error() string {
	return "weak password: " + strings.Join(e.Hints, "; ")
}

func (e *WeakPasswordError) Unwrap() error {
	return common.ErrWeakPassword
}

// CheckStrength returns a *WeakPasswordError unless password is strong.
func CheckStrength(password string) error {
	s := Evaluate(password)
	if s.OK() {
		return nil
	}
	return &WeakPasswordError{Hints: s.Hints()}
}

package auth

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
)

// PasswordHasher hashes and verifies passwords with bcrypt.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher using the given bcrypt cost.
func NewPasswordHasher(cost int) *PasswordHasher {
	return &PasswordHasher{cost: cost}
}

// Hash returns a salted one-way hash of password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches hash.
func (h *PasswordHasher) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Password policy names accepted by ParsePasswordPolicy.
const (
	PolicyStrict = "strict"
	PolicyLegacy = "legacy"
)

// PasswordPolicy decides whether a new password is acceptable. The legacy
// policy only enforces the minimum length; strict also requires upper-case,
// lower-case, digit and symbol characters.
type PasswordPolicy struct {
	strict bool
}

// ParsePasswordPolicy returns the policy with the given name.
func ParsePasswordPolicy(name string) (PasswordPolicy, error) {
	switch name {
	case PolicyStrict:
		return PasswordPolicy{strict: true}, nil
	case PolicyLegacy:
		return PasswordPolicy{}, nil
	default:
		return PasswordPolicy{}, fmt.Errorf("unknown password policy %q", name)
	}
}

// Check returns nil for an acceptable password, otherwise an error whose
// message is safe to show to the user verbatim.
func (p PasswordPolicy) Check(password string) error {
	if len([]rune(password)) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("password must be at most %d bytes", maxPasswordBytes)
	}
	if !p.strict {
		return nil
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

	switch {
	case !upper:
		return errors.New("password must contain an upper-case letter")
	case !lower:
		return errors.New("password must contain a lower-case letter")
	case !digit:
		return errors.New("password must contain a digit")
	case !symbol:
		return errors.New("password must contain a symbol")
	}
	return nil
}

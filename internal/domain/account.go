package domain

import (
	"fmt"
	"time"
)

// OTPPurpose tags what a one-time code was issued for.
type OTPPurpose string

const (
	OTPPurposeVerification OTPPurpose = "verification"
	OTPPurposeReset        OTPPurpose = "reset"
)

// ParseOTPPurpose converts a client-supplied purpose. An empty string maps to
// verification, the default for resend requests.
func ParseOTPPurpose(s string) (OTPPurpose, error) {
	switch OTPPurpose(s) {
	case "", OTPPurposeVerification:
		return OTPPurposeVerification, nil
	case OTPPurposeReset:
		return OTPPurposeReset, nil
	default:
		return "", fmt.Errorf("unknown otp purpose %q", s)
	}
}

// OTP is the single active one-time code of an account.
type OTP struct {
	Code      string
	ExpiresAt time.Time
	Purpose   OTPPurpose
}

// OTPThrottle tracks OTP sends inside the current resend window.
type OTPThrottle struct {
	WindowStartedAt *time.Time
	RequestCount    int
}

// Account is a user's identity and credential record.
type Account struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string // empty for accounts created through Google sign-in
	IsVerified   bool
	OTP          *OTP
	Throttle     OTPThrottle
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the account can log in with a password.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// Profile is the public view of an account returned to clients.
type Profile struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Profile returns the client-facing view of the account.
func (a *Account) Profile() Profile {
	return Profile{Username: a.Username, Email: a.Email}
}

// ProfileUpdate is a partial update of an account. Nil fields are left alone;
// PasswordHash is already hashed.
type ProfileUpdate struct {
	Username     *string
	Email        *string
	PasswordHash *string
}

// IsEmpty reports whether the update changes nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Username == nil && u.Email == nil && u.PasswordHash == nil
}

// LoginEntry is one record of an account's login history.
type LoginEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Device    string    `json:"device"`
}

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

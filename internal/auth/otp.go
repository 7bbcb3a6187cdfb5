package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/satrioramadhan/scansek-api/internal/domain"
)

const otpDigits = 6

var otpSpace = big.NewInt(1_000_000)

// ErrOTPThrottled is returned when an account has used up its OTP sends for
// the current window.
var ErrOTPThrottled = errors.New("otp request limit reached")

// OTPEngine generates, validates and throttles one-time codes. It computes
// new OTP state; persisting that state is up to the caller.
type OTPEngine struct {
	ttl      time.Duration
	window   time.Duration
	maxSends int
	now      func() time.Time
	random   io.Reader
}

// NewOTPEngine returns an engine issuing codes valid for ttl and allowing
// maxSends throttled sends per window.
func NewOTPEngine(ttl, window time.Duration, maxSends int) *OTPEngine {
	return &OTPEngine{
		ttl:      ttl,
		window:   window,
		maxSends: maxSends,
		now:      time.Now,
		random:   rand.Reader,
	}
}

// Issue generates a uniformly random 6-digit code for purpose, expiring ttl
// from now. It replaces whatever OTP the account held before.
func (e *OTPEngine) Issue(purpose domain.OTPPurpose) (domain.OTP, error) {
	n, err := rand.Int(e.random, otpSpace)
	if err != nil {
		return domain.OTP{}, fmt.Errorf("generate otp: %w", err)
	}
	return domain.OTP{
		Code:      fmt.Sprintf("%0*d", otpDigits, n.Int64()),
		ExpiresAt: e.now().UTC().Add(e.ttl),
		Purpose:   purpose,
	}, nil
}

// Verify reports whether code is the account's current OTP, issued for
// purpose and not yet expired. An empty purpose skips the purpose check.
// Verify never consumes the OTP.
func (e *OTPEngine) Verify(a *domain.Account, code string, purpose domain.OTPPurpose) bool {
	if a == nil || a.OTP == nil || a.OTP.Code == "" {
		return false
	}
	if purpose != "" && a.OTP.Purpose != purpose {
		return false
	}
	if !e.now().Before(a.OTP.ExpiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a.OTP.Code), []byte(code)) == 1
}

// Throttle returns the throttle state after one more send, or
// ErrOTPThrottled when the current window is used up. A window opens on the
// first send and is not extended by later sends.
func (e *OTPEngine) Throttle(t domain.OTPThrottle) (domain.OTPThrottle, error) {
	now := e.now().UTC()
	if t.WindowStartedAt == nil || now.Sub(*t.WindowStartedAt) >= e.window {
		return domain.OTPThrottle{WindowStartedAt: &now, RequestCount: 1}, nil
	}
	if t.RequestCount >= e.maxSends {
		return t, ErrOTPThrottled
	}
	return domain.OTPThrottle{WindowStartedAt: t.WindowStartedAt, RequestCount: t.RequestCount + 1}, nil
}

// RetryAfter returns how long until the window of t closes.
func (e *OTPEngine) RetryAfter(t domain.OTPThrottle) time.Duration {
	if t.WindowStartedAt == nil {
		return 0
	}
	if d := t.WindowStartedAt.Add(e.window).Sub(e.now()); d > 0 {
		return d
	}
	return 0
}

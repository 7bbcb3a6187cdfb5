package repository

import (
	"context"
	"time"

	"github.com/satrioramadhan/scansek-api/internal/domain"
)

// AccountRepository defines the persistence operations on accounts. Lookups
// of a missing account return apperrors.ErrNotFound.
type AccountRepository interface {
	// Create inserts a new account. A duplicate email yields an ALREADY_EXISTS AppError.
	Create(ctx context.Context, account *domain.Account) error

	// GetByID retrieves an account by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Account, error)

	// GetByEmail retrieves an account by its exact email.
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)

	// UpdateProfile applies the non-nil fields of update.
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) error

	// MarkVerified sets the verified flag and clears the OTP in one write.
	// Calling it on a verified account is a no-op.
	MarkVerified(ctx context.Context, id string) error

	// SetOTP replaces the account's OTP and throttle state.
	SetOTP(ctx context.Context, id string, otp domain.OTP, throttle domain.OTPThrottle) error

	// ResetPassword stores a new password hash and clears the OTP in one write.
	ResetPassword(ctx context.Context, id, passwordHash string) error

	// AppendLogin records a login history entry.
	AppendLogin(ctx context.Context, id string, entry domain.LoginEntry) error

	// LoginHistory returns the account's login entries, newest first.
	LoginHistory(ctx context.Context, id string) ([]domain.LoginEntry, error)

	// DeleteUnverifiedBefore removes unverified accounts whose OTP expired
	// before cutoff and returns how many were removed.
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SugarRepository defines the persistence operations on sugar log entries.
// Every operation is scoped to the owning account.
type SugarRepository interface {
	Create(ctx context.Context, entry *domain.SugarEntry) error
	List(ctx context.Context, accountID string, filter domain.SugarFilter) ([]domain.SugarEntry, error)
	// Update rewrites everything except RecordedAt, which it fills in.
	Update(ctx context.Context, entry *domain.SugarEntry) error
	Delete(ctx context.Context, accountID, id string) error
}

// WaterRepository defines the persistence operations on daily water logs.
type WaterRepository interface {
	// Get returns the times logged on day, or apperrors.ErrNotFound.
	Get(ctx context.Context, accountID string, day time.Time) ([]string, error)

	// AddTime adds hhmm to day's set, creating the day when needed.
	AddTime(ctx context.Context, accountID string, day time.Time, hhmm string) error

	// DeleteDay removes the whole day.
	DeleteDay(ctx context.Context, accountID string, day time.Time) error

	// RemoveTime removes one time from day.
	RemoveTime(ctx context.Context, accountID string, day time.Time, hhmm string) error
}

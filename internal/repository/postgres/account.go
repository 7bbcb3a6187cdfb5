package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/satrioramadhan/scansek-api/internal/domain"
	"github.com/satrioramadhan/scansek-api/pkg/database"
	apperrors "github.com/satrioramadhan/scansek-api/pkg/errors"
)

const accountColumns = `id, email, username, password_hash, is_verified,
		otp_code, otp_expiry, otp_purpose, otp_window_started_at, otp_request_count,
		created_at, updated_at`

// AccountRepository implements repository.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db database.DBTX
}

// NewAccountRepository creates a new PostgreSQL-backed account repository.
func NewAccountRepository(db database.DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account into the database.
func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) (err error) {
	query := `
		INSERT INTO accounts (id, email, username, password_hash, is_verified,
		    otp_code, otp_expiry, otp_purpose, otp_window_started_at, otp_request_count,
		    created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	ctx, end := database.TraceQuery(ctx, "account.Create", query)
	defer func() { end(err) }()

	code, expiry, purpose := otpColumns(a.OTP)
	_, err = r.db.Exec(ctx, query,
		a.ID,
		a.Email,
		a.Username,
		nullable(a.PasswordHash),
		a.IsVerified,
		code,
		expiry,
		purpose,
		a.Throttle.WindowStartedAt,
		a.Throttle.RequestCount,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("account", "email", a.Email)
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by its ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(ctx, "account.GetByID", query, id)
}

// GetByEmail retrieves an account by its email address.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return r.scanAccount(ctx, "account.GetByEmail", query, email)
}

// UpdateProfile applies the set fields of u in a single statement.
func (r *AccountRepository) UpdateProfile(ctx context.Context, id string, u domain.ProfileUpdate) (err error) {
	if u.IsEmpty() {
		return apperrors.InvalidInput("nothing to update")
	}

	sets := make([]string, 0, 4)
	args := make([]any, 0, 4)
	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if u.Username != nil {
		add("username", *u.Username)
	}
	if u.Email != nil {
		add("email", *u.Email)
	}
	if u.PasswordHash != nil {
		add("password_hash", *u.PasswordHash)
	}
	add("updated_at", time.Now().UTC())
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE accounts SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	ctx, end := database.TraceQuery(ctx, "account.UpdateProfile", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) && u.Email != nil {
			return apperrors.AlreadyExists("account", "email", *u.Email)
		}
		return fmt.Errorf("update account profile: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("account", id)
	}

	return nil
}

// MarkVerified flips the verified flag and clears the OTP together.
func (r *AccountRepository) MarkVerified(ctx context.Context, id string) error {
	query := `
		UPDATE accounts
		SET is_verified = TRUE, otp_code = NULL, otp_expiry = NULL, otp_purpose = NULL, updated_at = $1
		WHERE id = $2`

	return r.exec(ctx, "account.MarkVerified", query, id, time.Now().UTC(), id)
}

// SetOTP stores a freshly issued OTP together with the throttle state.
func (r *AccountRepository) SetOTP(ctx context.Context, id string, otp domain.OTP, throttle domain.OTPThrottle) error {
	query := `
		UPDATE accounts
		SET otp_code = $1, otp_expiry = $2, otp_purpose = $3,
		    otp_window_started_at = $4, otp_request_count = $5, updated_at = $6
		WHERE id = $7`

	return r.exec(ctx, "account.SetOTP", query, id,
		otp.Code,
		otp.ExpiresAt,
		string(otp.Purpose),
		throttle.WindowStartedAt,
		throttle.RequestCount,
		time.Now().UTC(),
		id,
	)
}

// ResetPassword stores a new password hash and clears the OTP together.
func (r *AccountRepository) ResetPassword(ctx context.Context, id, passwordHash string) error {
	query := `
		UPDATE accounts
		SET password_hash = $1, otp_code = NULL, otp_expiry = NULL, otp_purpose = NULL, updated_at = $2
		WHERE id = $3`

	return r.exec(ctx, "account.ResetPassword", query, id, passwordHash, time.Now().UTC(), id)
}

// AppendLogin records one login history entry.
func (r *AccountRepository) AppendLogin(ctx context.Context, id string, entry domain.LoginEntry) (err error) {
	query := `INSERT INTO login_history (account_id, logged_at, device) VALUES ($1, $2, $3)`

	ctx, end := database.TraceQuery(ctx, "account.AppendLogin", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, id, entry.Timestamp, entry.Device); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return apperrors.NotFound("account", id)
		}
		return fmt.Errorf("insert login history: %w", err)
	}
	return nil
}

// LoginHistory returns the account's login entries, newest first.
func (r *AccountRepository) LoginHistory(ctx context.Context, id string) (_ []domain.LoginEntry, err error) {
	query := `
		SELECT logged_at, device
		FROM login_history
		WHERE account_id = $1
		ORDER BY logged_at DESC, id DESC`

	ctx, end := database.TraceQuery(ctx, "account.LoginHistory", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("list login history: %w", err)
	}
	defer rows.Close()

	entries := []domain.LoginEntry{}
	for rows.Next() {
		var e domain.LoginEntry
		if err = rows.Scan(&e.Timestamp, &e.Device); err != nil {
			return nil, fmt.Errorf("scan login history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate login history rows: %w", err)
	}

	return entries, nil
}

// DeleteUnverifiedBefore removes unverified accounts whose OTP expired before
// cutoff. Accounts still holding a live OTP are never touched.
func (r *AccountRepository) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (_ int64, err error) {
	query := `DELETE FROM accounts WHERE NOT is_verified AND otp_expiry < $1`

	ctx, end := database.TraceQuery(ctx, "account.DeleteUnverifiedBefore", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete unverified accounts: %w", err)
	}
	return ct.RowsAffected(), nil
}

// exec runs a single-row update keyed by id and maps zero affected rows to NOT_FOUND.
func (r *AccountRepository) exec(ctx context.Context, operation, query, id string, args ...any) (err error) {
	ctx, end := database.TraceQuery(ctx, operation, query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("account", id)
	}
	return nil
}

// scanAccount executes a query expected to return a single account row.
func (r *AccountRepository) scanAccount(ctx context.Context, operation, query string, args ...any) (_ *domain.Account, err error) {
	ctx, end := database.TraceQuery(ctx, operation, query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var (
		a            domain.Account
		passwordHash *string
		otpCode      *string
		otpExpiry    *time.Time
		otpPurpose   *string
	)
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&a.ID,
		&a.Email,
		&a.Username,
		&passwordHash,
		&a.IsVerified,
		&otpCode,
		&otpExpiry,
		&otpPurpose,
		&a.Throttle.WindowStartedAt,
		&a.Throttle.RequestCount,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	if passwordHash != nil {
		a.PasswordHash = *passwordHash
	}
	if otpCode != nil && otpExpiry != nil {
		a.OTP = &domain.OTP{Code: *otpCode, ExpiresAt: *otpExpiry}
		if otpPurpose != nil {
			a.OTP.Purpose = domain.OTPPurpose(*otpPurpose)
		}
	}

	return &a, nil
}

func otpColumns(otp *domain.OTP) (code *string, expiry *time.Time, purpose *string) {
	if otp == nil {
		return nil, nil, nil
	}
	p := string(otp.Purpose)
	return &otp.Code, &otp.ExpiresAt, &p
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/satrioramadhan/scansek-api/internal/auth"
	"github.com/satrioramadhan/scansek-api/internal/domain"
	"github.com/satrioramadhan/scansek-api/internal/event"
	"github.com/satrioramadhan/scansek-api/internal/google"
	"github.com/satrioramadhan/scansek-api/internal/mailer"
	"github.com/satrioramadhan/scansek-api/internal/repository"
	apperrors "github.com/satrioramadhan/scansek-api/pkg/errors"
	"github.com/satrioramadhan/scansek-api/pkg/logger"
)

// IdentityVerifier checks a Google ID token.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*google.Identity, error)
}

// AccountEvents publishes account domain events.
type AccountEvents interface {
	PublishAccountRegistered(ctx context.Context, a *domain.Account, method string) error
	PublishAccountVerified(ctx context.Context, a *domain.Account) error
	PublishPasswordReset(ctx context.Context, a *domain.Account) error
	PublishProfileUpdated(ctx context.Context, a *domain.Account, fields []string) error
}

// AuthService implements registration, login, OTP flows and profile
// management on top of the account repository.
type AuthService struct {
	accounts repository.AccountRepository
	hasher   *auth.PasswordHasher
	policy   auth.PasswordPolicy
	otps     *auth.OTPEngine
	tokens   *auth.JWTManager
	mail     mailer.Sender
	google   IdentityVerifier
	events   AccountEvents
	logger   *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	accounts repository.AccountRepository,
	hasher *auth.PasswordHasher,
	policy auth.PasswordPolicy,
	otps *auth.OTPEngine,
	tokens *auth.JWTManager,
	mail mailer.Sender,
	google IdentityVerifier,
	events AccountEvents,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		accounts: accounts,
		hasher:   hasher,
		policy:   policy,
		otps:     otps,
		tokens:   tokens,
		mail:     mail,
		google:   google,
		events:   events,
		logger:   logger,
	}
}

// --- Input/Output types ---

// RegisterInput holds the parameters for a local registration.
type RegisterInput struct {
	Email    string
	Password string
	Username string
}

// LoginInput holds the parameters for a password login.
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult is the outcome of a login attempt. When VerificationRequired
// is set a fresh verification OTP has been mailed and Tokens.AccessToken is
// empty; a password login still carries a refresh token.
type LoginResult struct {
	Account              *domain.Account
	Tokens               domain.TokenPair
	VerificationRequired bool
}

// PasswordChange is the password part of a profile update. Current may be
// empty for accounts that have no password yet.
type PasswordChange struct {
	Current string
	New     string
}

// UpdateProfileInput holds the fields a user may change. Nil means unchanged.
type UpdateProfileInput struct {
	Username *string
	Email    *string
	Password *PasswordChange
}

// UserInfo is the profile returned by the user info endpoint.
type UserInfo struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	IsVerified  bool   `json:"is_verified"`
	HasPassword bool   `json:"has_password"`
	Reminder    string `json:"reminder,omitempty"`
}

const setPasswordReminder = "This account signs in with Google. Set a password through update-profile to enable email login."

// --- Registration and login ---

// Register creates an unverified account and mails it a verification OTP.
// When the email cannot be sent nothing is stored.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.Account, error) {
	if err := s.policy.Check(input.Password); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	if err := s.ensureEmailFree(ctx, input.Email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	account, err := s.createWithOTP(ctx, input.Email, input.Username, hash)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "account.registered", func() error {
		return s.events.PublishAccountRegistered(ctx, account, event.MethodPassword)
	})

	s.logger.InfoContext(ctx, "account registered",
		slog.String("account_id", account.ID),
		slog.String("email", logger.MaskEmail(account.Email)),
	)

	return account, nil
}

// Login authenticates with email and password. Unverified accounts get a new
// verification OTP and a refresh token but no access token.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	account, err := s.accountByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}

	if !account.HasPassword() {
		return nil, apperrors.InvalidInput("account uses Google login, set a password first")
	}
	if !s.hasher.Verify(account.PasswordHash, input.Password) {
		return nil, apperrors.Unauthorized("wrong password")
	}

	if !account.IsVerified {
		if err := s.sendOTP(ctx, account, domain.OTPPurposeVerification, false); err != nil {
			return nil, err
		}
		refresh, err := s.tokens.GenerateRefreshToken(account.ID)
		if err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "login of unverified account, otp sent",
			slog.String("account_id", account.ID),
		)
		return &LoginResult{
			Account:              account,
			Tokens:               domain.TokenPair{RefreshToken: refresh},
			VerificationRequired: true,
		}, nil
	}

	tokens, err := s.generateTokenPair(account)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account logged in",
		slog.String("account_id", account.ID),
	)

	return &LoginResult{Account: account, Tokens: *tokens}, nil
}

// GoogleLogin signs in with a Google ID token, creating the account on first
// use. Unverified accounts get a verification OTP and no tokens.
func (s *AuthService) GoogleLogin(ctx context.Context, idToken string) (*LoginResult, error) {
	identity, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return nil, mapGoogleError(err)
	}

	account, err := s.accounts.GetByEmail(ctx, identity.Email)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		created, err := s.createWithOTP(ctx, identity.Email, identity.Name, "")
		switch {
		case err == nil:
			s.publish(ctx, "account.registered", func() error {
				return s.events.PublishAccountRegistered(ctx, created, event.MethodGoogle)
			})
			s.logger.InfoContext(ctx, "account registered via google",
				slog.String("account_id", created.ID),
				slog.String("email", logger.MaskEmail(created.Email)),
			)
			return &LoginResult{Account: created, VerificationRequired: true}, nil
		case !errors.Is(err, apperrors.ErrAlreadyExists):
			return nil, err
		}
		// A concurrent first sign-in created the account; continue with it.
		account, err = s.accounts.GetByEmail(ctx, identity.Email)
		if err != nil {
			return nil, fmt.Errorf("get account for google login: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("get account for google login: %w", err)
	}

	if !account.IsVerified {
		if err := s.sendOTP(ctx, account, domain.OTPPurposeVerification, false); err != nil {
			return nil, err
		}
		return &LoginResult{Account: account, VerificationRequired: true}, nil
	}

	tokens, err := s.generateTokenPair(account)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account logged in via google",
		slog.String("account_id", account.ID),
	)

	return &LoginResult{Account: account, Tokens: *tokens}, nil
}

// Refresh mints a new access token from a valid refresh token. It never
// issues a new refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	accountID, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		s.logger.DebugContext(ctx, "refresh token rejected", slog.String("error", err.Error()))
		return "", apperrors.Unauthorized("invalid or expired refresh token")
	}
	return s.tokens.GenerateAccessToken(accountID)
}

// --- OTP flows ---

// VerifyOTP completes email verification and logs the account in.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*LoginResult, error) {
	account, err := s.accountByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	ok := s.otps.Verify(account, code, domain.OTPPurposeVerification)
	otpVerifications.WithLabelValues(string(domain.OTPPurposeVerification), verificationResult(ok)).Inc()
	if !ok {
		return nil, apperrors.InvalidInput("invalid or expired OTP")
	}

	if err := s.accounts.MarkVerified(ctx, account.ID); err != nil {
		return nil, fmt.Errorf("mark account verified: %w", err)
	}
	account.IsVerified = true
	account.OTP = nil

	s.publish(ctx, "account.verified", func() error {
		return s.events.PublishAccountVerified(ctx, account)
	})

	tokens, err := s.generateTokenPair(account)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account verified",
		slog.String("account_id", account.ID),
	)

	return &LoginResult{Account: account, Tokens: *tokens}, nil
}

// ResendOTP mails a new OTP for purpose, subject to the resend throttle.
// An empty purpose means verification.
func (s *AuthService) ResendOTP(ctx context.Context, email, purpose string) error {
	p, err := domain.ParseOTPPurpose(purpose)
	if err != nil {
		return apperrors.InvalidInput("purpose must be verification or reset")
	}

	account, err := s.accountByEmail(ctx, email)
	if err != nil {
		return err
	}
	if p == domain.OTPPurposeVerification && account.IsVerified {
		return apperrors.InvalidInput("account is already verified")
	}

	return s.sendOTP(ctx, account, p, true)
}

// ForgotPassword mails a reset OTP, subject to the resend throttle.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	account, err := s.accountByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.sendOTP(ctx, account, domain.OTPPurposeReset, true)
}

// VerifyResetOTP checks a reset OTP without consuming it, so the client can
// confirm the code before asking for the new password.
func (s *AuthService) VerifyResetOTP(ctx context.Context, email, code string) error {
	account, err := s.accountByEmail(ctx, email)
	if err != nil {
		return err
	}

	ok := s.otps.Verify(account, code, domain.OTPPurposeReset)
	otpVerifications.WithLabelValues(string(domain.OTPPurposeReset), verificationResult(ok)).Inc()
	if !ok {
		return apperrors.InvalidInput("invalid or expired OTP")
	}
	return nil
}

// ResetPassword sets a new password using a reset OTP and consumes the OTP.
// A weak password is rejected before the OTP is looked at.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if err := s.policy.Check(newPassword); err != nil {
		return apperrors.InvalidInput(err.Error())
	}

	account, err := s.accountByEmail(ctx, email)
	if err != nil {
		return err
	}

	ok := s.otps.Verify(account, code, domain.OTPPurposeReset)
	otpVerifications.WithLabelValues(string(domain.OTPPurposeReset), verificationResult(ok)).Inc()
	if !ok {
		return apperrors.InvalidInput("invalid or expired OTP")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.accounts.ResetPassword(ctx, account.ID, hash); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	s.publish(ctx, "account.password_reset", func() error {
		return s.events.PublishPasswordReset(ctx, account)
	})

	s.logger.InfoContext(ctx, "password reset",
		slog.String("account_id", account.ID),
	)

	return nil
}

// --- Profile ---

// UpdateProfile changes the username, email or password of an account. Fields
// equal to the stored value do not count as changes.
func (s *AuthService) UpdateProfile(ctx context.Context, accountID string, input UpdateProfileInput) (*domain.Account, error) {
	account, err := s.accountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var (
		update domain.ProfileUpdate
		fields []string
	)

	if input.Username != nil && *input.Username != account.Username {
		update.Username = input.Username
		fields = append(fields, "username")
	}

	if input.Email != nil && *input.Email != account.Email {
		if err := s.ensureEmailFree(ctx, *input.Email); err != nil {
			return nil, err
		}
		update.Email = input.Email
		fields = append(fields, "email")
	}

	if input.Password != nil {
		if account.HasPassword() && !s.hasher.Verify(account.PasswordHash, input.Password.Current) {
			return nil, apperrors.InvalidInput("current password is incorrect")
		}
		if err := s.policy.Check(input.Password.New); err != nil {
			return nil, apperrors.InvalidInput(err.Error())
		}
		hash, err := s.hasher.Hash(input.Password.New)
		if err != nil {
			return nil, err
		}
		update.PasswordHash = &hash
		fields = append(fields, "password")
	}

	if update.IsEmpty() {
		return nil, apperrors.InvalidInput("nothing changed")
	}

	if err := s.accounts.UpdateProfile(ctx, account.ID, update); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	if update.Username != nil {
		account.Username = *update.Username
	}
	if update.Email != nil {
		account.Email = *update.Email
	}
	if update.PasswordHash != nil {
		account.PasswordHash = *update.PasswordHash
	}

	s.publish(ctx, "account.profile_updated", func() error {
		return s.events.PublishProfileUpdated(ctx, account, fields)
	})

	s.logger.InfoContext(ctx, "profile updated",
		slog.String("account_id", account.ID),
		slog.Any("fields", fields),
	)

	return account, nil
}

// UserInfo returns the profile of the authenticated account, with a reminder
// to set a password when it has none.
func (s *AuthService) UserInfo(ctx context.Context, accountID string) (*UserInfo, error) {
	account, err := s.accountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	info := &UserInfo{
		Username:    account.Username,
		Email:       account.Email,
		IsVerified:  account.IsVerified,
		HasPassword: account.HasPassword(),
	}
	if !info.HasPassword {
		info.Reminder = setPasswordReminder
	}
	return info, nil
}

// --- Login history ---

// LogLogin appends an entry to the account's login history.
func (s *AuthService) LogLogin(ctx context.Context, accountID string, entry domain.LoginEntry) error {
	if entry.Timestamp.IsZero() {
		return apperrors.InvalidInput("timestamp is required")
	}
	if entry.Device == "" {
		return apperrors.InvalidInput("device is required")
	}

	if err := s.accounts.AppendLogin(ctx, accountID, entry); err != nil {
		return fmt.Errorf("log login: %w", err)
	}
	return nil
}

// LoginHistory returns the account's login history, newest first.
func (s *AuthService) LoginHistory(ctx context.Context, accountID string) ([]domain.LoginEntry, error) {
	entries, err := s.accounts.LoginHistory(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("get login history: %w", err)
	}
	return entries, nil
}

// --- Helpers ---

// createWithOTP issues a verification OTP, mails it, and only then inserts
// the unverified account holding it. passwordHash may be empty.
func (s *AuthService) createWithOTP(ctx context.Context, email, username, passwordHash string) (*domain.Account, error) {
	otp, err := s.otps.Issue(domain.OTPPurposeVerification)
	if err != nil {
		return nil, err
	}

	if err := s.mail.SendOTP(ctx, email, otp.Code, otp.Purpose); err != nil {
		return nil, apperrors.Upstream(http.StatusInternalServerError, "failed to send verification email", err)
	}
	otpIssued.WithLabelValues(string(otp.Purpose)).Inc()

	now := time.Now().UTC()
	account := &domain.Account{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		OTP:          &otp,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

// sendOTP issues and stores a new OTP for account and mails it. Throttled
// sends count against the account's resend window.
func (s *AuthService) sendOTP(ctx context.Context, account *domain.Account, purpose domain.OTPPurpose, throttled bool) error {
	throttle := account.Throttle
	if throttled {
		next, err := s.otps.Throttle(account.Throttle)
		if errors.Is(err, auth.ErrOTPThrottled) {
			otpThrottled.WithLabelValues(string(purpose)).Inc()
			wait := s.otps.RetryAfter(account.Throttle).Round(time.Second)
			return apperrors.TooManyRequests(fmt.Sprintf("too many OTP requests, try again in %s", wait))
		}
		throttle = next
	}

	otp, err := s.otps.Issue(purpose)
	if err != nil {
		return err
	}
	if err := s.accounts.SetOTP(ctx, account.ID, otp, throttle); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	account.OTP = &otp
	account.Throttle = throttle

	if err := s.mail.SendOTP(ctx, account.Email, otp.Code, purpose); err != nil {
		return apperrors.Upstream(http.StatusInternalServerError, "failed to send OTP email", err)
	}
	otpIssued.WithLabelValues(string(purpose)).Inc()

	s.logger.InfoContext(ctx, "otp sent",
		slog.String("account_id", account.ID),
		slog.String("purpose", string(purpose)),
	)
	return nil
}

func (s *AuthService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return apperrors.AlreadyExists("account", "email", email)
	case errors.Is(err, apperrors.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("check email: %w", err)
	}
}

func (s *AuthService) accountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("account", email)
		}
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return account, nil
}

func (s *AuthService) accountByID(ctx context.Context, id string) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("account", id)
		}
		return nil, fmt.Errorf("get account by id: %w", err)
	}
	return account, nil
}

func (s *AuthService) generateTokenPair(account *domain.Account) (*domain.TokenPair, error) {
	access, err := s.tokens.GenerateAccessToken(account.ID)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.GenerateRefreshToken(account.ID)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// publish runs fn and logs a failure. Events are best-effort.
func (s *AuthService) publish(ctx context.Context, name string, fn func() error) {
	if err := fn(); err != nil {
		logger.FromContext(ctx).WarnContext(ctx, "failed to publish event",
			slog.String("event", name),
			slog.String("error", err.Error()),
		)
	}
}

func mapGoogleError(err error) error {
	switch {
	case errors.Is(err, google.ErrTokenRejected):
		return apperrors.Upstream(http.StatusBadRequest, "invalid Google token", err)
	case errors.Is(err, google.ErrNoEmail), errors.Is(err, google.ErrAudienceMismatch):
		return apperrors.Unauthorized("invalid Google token")
	default:
		return apperrors.Upstream(http.StatusInternalServerError, "failed to verify Google token", err)
	}
}

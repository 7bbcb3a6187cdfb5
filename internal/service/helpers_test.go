package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/satrioramadhan/scansek-api/internal/auth"
	"github.com/satrioramadhan/scansek-api/internal/domain"
	"github.com/satrioramadhan/scansek-api/internal/event"
	"github.com/satrioramadhan/scansek-api/internal/google"
	apperrors "github.com/satrioramadhan/scansek-api/pkg/errors"
)

// --- In-memory Account Repository ---

// memAccounts is a stateful AccountRepository so flows spanning several
// calls can be tested end to end.
type memAccounts struct {
	mu      sync.Mutex
	byID    map[string]*domain.Account
	logins  map[string][]domain.LoginEntry
	failGet error
	// beforeCreate runs once at the start of the next Create.
	beforeCreate func()
}

func newMemAccounts() *memAccounts {
	return &memAccounts{
		byID:   make(map[string]*domain.Account),
		logins: make(map[string][]domain.LoginEntry),
	}
}

func clone(a *domain.Account) *domain.Account {
	c := *a
	if a.OTP != nil {
		otp := *a.OTP
		c.OTP = &otp
	}
	if a.Throttle.WindowStartedAt != nil {
		ts := *a.Throttle.WindowStartedAt
		c.Throttle.WindowStartedAt = &ts
	}
	return &c
}

func (r *memAccounts) Create(_ context.Context, a *domain.Account) error {
	if hook := r.beforeCreate; hook != nil {
		r.beforeCreate = nil
		hook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Email == a.Email {
			return apperrors.AlreadyExists("account", "email", a.Email)
		}
	}
	r.byID[a.ID] = clone(a)
	return nil
}

func (r *memAccounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return clone(a), nil
}

func (r *memAccounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failGet != nil {
		return nil, r.failGet
	}
	for _, a := range r.byID {
		if a.Email == email {
			return clone(a), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memAccounts) UpdateProfile(_ context.Context, id string, u domain.ProfileUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if u.Username != nil {
		a.Username = *u.Username
	}
	if u.Email != nil {
		a.Email = *u.Email
	}
	if u.PasswordHash != nil {
		a.PasswordHash = *u.PasswordHash
	}
	return nil
}

func (r *memAccounts) MarkVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	a.IsVerified = true
	a.OTP = nil
	return nil
}

func (r *memAccounts) SetOTP(_ context.Context, id string, otp domain.OTP, t domain.OTPThrottle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	a.OTP = &otp
	a.Throttle = t
	return nil
}

func (r *memAccounts) ResetPassword(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	a.PasswordHash = hash
	a.OTP = nil
	return nil
}

func (r *memAccounts) AppendLogin(_ context.Context, id string, e domain.LoginEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return apperrors.ErrNotFound
	}
	r.logins[id] = append(r.logins[id], e)
	return nil
}

func (r *memAccounts) LoginHistory(_ context.Context, id string) ([]domain.LoginEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := append([]domain.LoginEntry(nil), r.logins[id]...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.After(entries[j].Timestamp) })
	return entries, nil
}

func (r *memAccounts) DeleteUnverifiedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, a := range r.byID {
		if !a.IsVerified && a.OTP != nil && a.OTP.ExpiresAt.Before(cutoff) {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

// mutate edits the stored account in place, e.g. to move a timestamp into
// the past.
func (r *memAccounts) mutate(t *testing.T, email string, fn func(a *domain.Account)) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.Email == email {
			fn(a)
			return
		}
	}
	t.Fatalf("no account with email %s", email)
}

func (r *memAccounts) stored(t *testing.T, email string) *domain.Account {
	t.Helper()
	a, err := r.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return a
}

// --- Mock Sender ---

type mockSender struct {
	mock.Mock
	mu    sync.Mutex
	codes map[string]string
}

func newMockSender() *mockSender {
	return &mockSender{codes: make(map[string]string)}
}

func (m *mockSender) SendOTP(ctx context.Context, to, code string, purpose domain.OTPPurpose) error {
	args := m.Called(ctx, to, code, purpose)
	if args.Error(0) == nil {
		m.mu.Lock()
		m.codes[to] = code
		m.mu.Unlock()
	}
	return args.Error(0)
}

func (m *mockSender) lastCode(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

// --- Mock Identity Verifier ---

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Verify(ctx context.Context, idToken string) (*google.Identity, error) {
	args := m.Called(ctx, idToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*google.Identity), args.Error(1)
}

// --- Mock Account Events ---

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) PublishAccountRegistered(ctx context.Context, a *domain.Account, method string) error {
	return m.Called(ctx, a, method).Error(0)
}

func (m *mockEvents) PublishAccountVerified(ctx context.Context, a *domain.Account) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockEvents) PublishPasswordReset(ctx context.Context, a *domain.Account) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockEvents) PublishProfileUpdated(ctx context.Context, a *domain.Account, fields []string) error {
	return m.Called(ctx, a, fields).Error(0)
}

// --- Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type authFixture struct {
	svc      *AuthService
	repo     *memAccounts
	sender   *mockSender
	verifier *mockVerifier
	tokens   *auth.JWTManager
	logs     *bytes.Buffer
}

func newAuthFixture(t *testing.T, policyName string) *authFixture {
	t.Helper()
	policy, err := auth.ParsePasswordPolicy(policyName)
	require.NoError(t, err)

	f := &authFixture{
		repo:     newMemAccounts(),
		sender:   newMockSender(),
		verifier: &mockVerifier{},
		tokens:   auth.NewJWTManager("test-secret-key-for-unit-tests-only", 10*time.Minute, 168*time.Hour),
		logs:     &bytes.Buffer{},
	}
	f.sender.On("SendOTP", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	f.svc = NewAuthService(
		f.repo,
		auth.NewPasswordHasher(bcrypt.MinCost),
		policy,
		auth.NewOTPEngine(5*time.Minute, 5*time.Minute, 3),
		f.tokens,
		f.sender,
		f.verifier,
		event.NewProducer(nil, newTestLogger()),
		slog.New(slog.NewJSONHandler(f.logs, nil)),
	)
	return f
}

// seedAccount stores an account with the given password; an empty password
// makes a Google-only account.
func (f *authFixture) seedAccount(t *testing.T, email, password string, verified bool) *domain.Account {
	t.Helper()
	var hash string
	if password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		hash = string(h)
	}
	a := &domain.Account{
		ID:           "acc-" + email,
		Email:        email,
		Username:     "tester",
		PasswordHash: hash,
		IsVerified:   verified,
	}
	require.NoError(t, f.repo.Create(context.Background(), a))
	return a
}

func strPtr(s string) *string {
	return &s
}

func appErrCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	return appErr.Code
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/satrioramadhan/scansek-api/internal/auth"
	"github.com/satrioramadhan/scansek-api/internal/domain"
	"github.com/satrioramadhan/scansek-api/internal/event"
	"github.com/satrioramadhan/scansek-api/internal/google"
	"github.com/satrioramadhan/scansek-api/internal/service"
	apperrors "github.com/satrioramadhan/scansek-api/pkg/errors"
	"github.com/satrioramadhan/scansek-api/pkg/health"
	"github.com/satrioramadhan/scansek-api/pkg/httputil"
	"github.com/satrioramadhan/scansek-api/pkg/ratelimit"
)

// ============================================================================
// Mock Repositories
// ============================================================================

type mockAccountRepo struct {
	mock.Mock
}

func (m *mockAccountRepo) Create(ctx context.Context, a *domain.Account) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockAccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepo) UpdateProfile(ctx context.Context, id string, u domain.ProfileUpdate) error {
	return m.Called(ctx, id, u).Error(0)
}

func (m *mockAccountRepo) MarkVerified(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockAccountRepo) SetOTP(ctx context.Context, id string, otp domain.OTP, t domain.OTPThrottle) error {
	return m.Called(ctx, id, otp, t).Error(0)
}

func (m *mockAccountRepo) ResetPassword(ctx context.Context, id, hash string) error {
	return m.Called(ctx, id, hash).Error(0)
}

func (m *mockAccountRepo) AppendLogin(ctx context.Context, id string, e domain.LoginEntry) error {
	return m.Called(ctx, id, e).Error(0)
}

func (m *mockAccountRepo) LoginHistory(ctx context.Context, id string) ([]domain.LoginEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LoginEntry), args.Error(1)
}

func (m *mockAccountRepo) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type mockSugarRepo struct {
	mock.Mock
}

func (m *mockSugarRepo) Create(ctx context.Context, e *domain.SugarEntry) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockSugarRepo) List(ctx context.Context, accountID string, f domain.SugarFilter) ([]domain.SugarEntry, error) {
	args := m.Called(ctx, accountID, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SugarEntry), args.Error(1)
}

func (m *mockSugarRepo) Update(ctx context.Context, e *domain.SugarEntry) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockSugarRepo) Delete(ctx context.Context, accountID, id string) error {
	return m.Called(ctx, accountID, id).Error(0)
}

type mockWaterRepo struct {
	mock.Mock
}

func (m *mockWaterRepo) Get(ctx context.Context, accountID string, day time.Time) ([]string, error) {
	args := m.Called(ctx, accountID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockWaterRepo) AddTime(ctx context.Context, accountID string, day time.Time, hhmm string) error {
	return m.Called(ctx, accountID, day, hhmm).Error(0)
}

func (m *mockWaterRepo) DeleteDay(ctx context.Context, accountID string, day time.Time) error {
	return m.Called(ctx, accountID, day).Error(0)
}

func (m *mockWaterRepo) RemoveTime(ctx context.Context, accountID string, day time.Time, hhmm string) error {
	return m.Called(ctx, accountID, day, hhmm).Error(0)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendOTP(ctx context.Context, to, code string, purpose domain.OTPPurpose) error {
	return m.Called(ctx, to, code, purpose).Error(0)
}

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

// ============================================================================
// Test Helpers
// ============================================================================

const testPassword = "Secret1!"

type testServer struct {
	handler  http.Handler
	accounts *mockAccountRepo
	sugar    *mockSugarRepo
	water    *mockWaterRepo
	sender   *mockSender
	verifier *mockVerifier
	tokens   *auth.JWTManager
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, limiter ratelimit.Limiter) *testServer {
	t.Helper()
	ts := &testServer{
		accounts: &mockAccountRepo{},
		sugar:    &mockSugarRepo{},
		water:    &mockWaterRepo{},
		sender:   &mockSender{},
		verifier: &mockVerifier{},
		tokens:   auth.NewJWTManager("handler-test-secret-at-least-32-chars", 10*time.Minute, 168*time.Hour),
	}
	ts.sender.On("SendOTP", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	policy, err := auth.ParsePasswordPolicy(auth.PolicyStrict)
	require.NoError(t, err)

	logger := testLogger()
	authSvc := service.NewAuthService(
		ts.accounts,
		auth.NewPasswordHasher(bcrypt.MinCost),
		policy,
		auth.NewOTPEngine(5*time.Minute, 5*time.Minute, 3),
		ts.tokens,
		ts.sender,
		ts.verifier,
		event.NewProducer(nil, logger),
		logger,
	)

	ts.handler = NewRouter(RouterConfig{
		AuthService:    authSvc,
		SugarService:   service.NewSugarService(ts.sugar, logger),
		WaterService:   service.NewWaterService(ts.water, logger),
		JWTManager:     ts.tokens,
		Health:         health.NewHandler(),
		Logger:         logger,
		RateLimiter:    limiter,
		RateLimitRetry: time.Second,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, httputil.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var resp httputil.Response
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func (ts *testServer) accessToken(t *testing.T, accountID string) string {
	t.Helper()
	tok, err := ts.tokens.GenerateAccessToken(accountID)
	require.NoError(t, err)
	return tok
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func dataMap(t *testing.T, resp httputil.Response) map[string]any {
	t.Helper()
	m, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is %T", resp.Data)
	return m
}

// ============================================================================
// Banners and health
// ============================================================================

func TestBanners(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, resp := ts.do(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ScanSek API Online", resp.Message)

	_, resp = ts.do(t, http.MethodGet, "/api/", nil, "")
	assert.Equal(t, "ScanSek API Root", resp.Message)

	rec, _ = ts.do(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ============================================================================
// Auth endpoints
// ============================================================================

func TestRegister_Created(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.accounts.On("GetByEmail", mock.Anything, "sari@example.com").Return(nil, apperrors.ErrNotFound)
	ts.accounts.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.Account) bool {
		return a.Email == "sari@example.com" && !a.IsVerified && a.OTP != nil
	})).Return(nil)

	rec, resp := ts.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "sari@example.com", "password": testPassword, "username": "sari",
	}, "")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "sari@example.com", dataMap(t, resp)["email"])
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	ts.accounts.AssertExpectations(t)
}

func TestRegister_ValidationError(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, resp := ts.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "not-an-email", "password": testPassword,
	}, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Contains(t, resp.Fields, "email")
	assert.Contains(t, resp.Fields, "username")
	ts.accounts.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.accounts.On("GetByEmail", mock.Anything, "sari@example.com").
		Return(&domain.Account{ID: "acc-1", Email: "sari@example.com"}, nil)

	rec, resp := ts.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "sari@example.com", "password": testPassword, "username": "sari",
	}, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ALREADY_EXISTS", resp.Code)
}

func TestLogin_Verified(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.accounts.On("GetByEmail", mock.Anything, "sari@example.com").Return(&domain.Account{
		ID: "acc-1", Email: "sari@example.com", Username: "sari",
		PasswordHash: hashed(t, testPassword), IsVerified: true,
	}, nil)

	rec, resp := ts.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "sari@example.com", "password": testPassword,
	}, "")

	require.Equal(t, http.StatusOK, rec.Code)
	data := dataMap(t, resp)
	assert.NotEmpty(t, data["token"])
	assert.NotEmpty(t, data["refresh_token"])
	assert.Equal(t, map[string]any{"username": "sari", "email": "sari@example.com"}, data["user"])
}

func TestLogin_UnverifiedReturns403WithOTPHint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.accounts.On("GetByEmail", mock.Anything, "sari@example.com").Return(&domain.Account{
		ID: "acc-1", Email: "sari@example.com", PasswordHash: hashed(t, testPassword),
	}, nil)
	ts.accounts.On("SetOTP", mock.Anything, "acc-1", mock.Anything, mock.Anything).Return(nil)

	rec, resp := ts.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "sari@example.com", "password": testPassword,
	}, "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "ACCOUNT_NOT_VERIFIED", resp.Code)
	data := dataMap(t, resp)
	assert.Equal(t, true, data["otp_sent"])
	assert.NotEmpty(t, data["refresh_token"])
	assert.NotContains(t, data, "token")
	ts.sender.AssertCalled(t, "SendOTP", mock.Anything, "sari@example.com", mock.Anything, domain.OTPPurposeVerification)
}

func TestLogin_UnknownEmail(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.accounts.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, apperrors.ErrNotFound)

	rec, resp := ts.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "nobody@example.com", "password": testPassword,
	}, "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestGoogleLogin_NewAccountIs403WithoutTokens(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.verifier.On("Verify", mock.Anything, "google-id-token").
		Return(&google.Identity{Email: "budi@gmail.com", Name: google.DefaultName}, nil)
	ts.accounts.On("GetByEmail", mock.Anything, "budi@gmail.com").Return(nil, apperrors.ErrNotFound)
	ts.accounts.On("Create", mock.Anything, mock.Anything).Return(nil)

	rec, resp := ts.do(t, http.MethodPost, "/api/auth/google-login", map[string]string{
		"id_token": "google-id-token",
	}, "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	data := dataMap(t, resp)
	assert.Equal(t, true, data["otp_sent"])
	assert.NotContains(t, data, "refresh_token")
}

func TestGoogleLogin_RejectedToken(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.verifier.On("Verify", mock.Anything, "bad").Return(nil, google.ErrTokenRejected)

	rec, resp := ts.do(t, http.MethodPost, "/api/auth/google-login", map[string]string{"id_token": "bad"}, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UPSTREAM_ERROR", resp.Code)
}

func TestVerifyOTP_InvalidFormat(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, resp := ts.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]string{
		"email": "sari@example.com", "otp": "12ab",
	}, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "must be a 6-digit code", resp.Fields["otp"])
}

func TestVerifyOTP_Success(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.accounts.On("GetByEmail", mock.Anything, "sari@example.com").Return(&domain.Account{
		ID: "acc-1", Email: "sari@example.com", Username: "sari",
		OTP: &domain.OTP{Code: "123456", ExpiresAt: time.Now().Add(time.Minute), Purpose: domain.OTPPurposeVerification},
	}, nil)
	ts.accounts.On("MarkVerified", mock.Anything, "acc-1").Return(nil)

	rec, resp := ts.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]string{
		"email": "sari@example.com", "otp": "123456",
	}, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, dataMap(t, resp)["token"])
	ts.accounts.AssertExpectations(t)
}

func TestResendOTP_BadPurpose(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, resp := ts.do(t, http.MethodPost, "/api/auth/resend-otp", map[string]string{
		"email": "sari@example.com", "purpose": "login",
	}, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Fields, "purpose")
}

func TestResetPassword_WeakPasswordSkipsLookup(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, resp := ts.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"email": "sari@example.com", "otp": "123456", "new_password": "abc123",
	}, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", resp.Code)
	ts.accounts.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

func TestRefresh(t *testing.T) {
	ts := newTestServer(t, nil)
	refresh, err := ts.tokens.GenerateRefreshToken("acc-1")
	require.NoError(t, err)

	rec, resp := ts.do(t, http.MethodPost, "/api/auth/refresh", nil, refresh)
	require.Equal(t, http.StatusOK, rec.Code)
	access, ok := dataMap(t, resp)["token"].(string)
	require.True(t, ok)
	id, err := ts.tokens.ValidateAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", id)
	assert.NotContains(t, dataMap(t, resp), "refresh_token")

	rec, _ = ts.do(t, http.MethodPost, "/api/auth/refresh", nil, ts.accessToken(t, "acc-1"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/api/auth/refresh", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimit_PublicAuthRoutes(t *testing.T) {
	ts := newTestServer(t, ratelimit.NewMemoryLimiter(0.001, 1, time.Minute))
	ts.accounts.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, apperrors.ErrNotFound)

	body := map[string]string{"email": "nobody@example.com", "password": testPassword}
	rec, _ := ts.do(t, http.MethodPost, "/api/auth/login", body, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp := ts.do(t, http.MethodPost, "/api/auth/login", body, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", resp.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimit_ForwardedForFromUntrustedPeerIsIgnored(t *testing.T) {
	ts := newTestServer(t, ratelimit.NewMemoryLimiter(0.001, 1, time.Minute))
	ts.accounts.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, apperrors.ErrNotFound)

	body, err := json.Marshal(map[string]string{"email": "nobody@example.com", "password": testPassword})
	require.NoError(t, err)

	codes := make([]int, 0, 2)
	for _, xff := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNotFound, http.StatusTooManyRequests}, codes)
}

// ============================================================================
// Account endpoints
// ============================================================================

func TestProtectedRoutes_RequireAccessToken(t *testing.T) {
	ts := newTestServer(t, nil)
	refresh, err := ts.tokens.GenerateRefreshToken("acc-1")
	require.NoError(t, err)

	for _, path := range []string{"/api/auth/login-history", "/api/auth/user/info", "/api/gula", "/api/air?tanggal=2025-06-01"} {
		rec, _ := ts.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		rec, _ = ts.do(t, http.MethodGet, path, nil, refresh)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "refresh token on %s", path)
	}
}

func TestUpdateProfile_NothingChanged(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.accounts.On("GetByID", mock.Anything, "acc-1").
		Return(&domain.Account{ID: "acc-1", Email: "sari@example.com", Username: "sari"}, nil)

	rec, resp := ts.do(t, http.MethodPut, "/api/auth/update-profile", map[string]string{
		"username": "sari",
	}, ts.accessToken(t, "acc-1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "nothing changed", resp.Message)
}

func TestUpdateProfile_Username(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.accounts.On("GetByID", mock.Anything, "acc-1").
		Return(&domain.Account{ID: "acc-1", Email: "sari@example.com", Username: "sari"}, nil)
	ts.accounts.On("UpdateProfile", mock.Anything, "acc-1", mock.MatchedBy(func(u domain.ProfileUpdate) bool {
		return u.Username != nil && *u.Username == "Sari W" && u.Email == nil && u.PasswordHash == nil
	})).Return(nil)

	rec, resp := ts.do(t, http.MethodPut, "/api/auth/update-profile", map[string]string{
		"username": "Sari W",
	}, ts.accessToken(t, "acc-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Sari W", dataMap(t, resp)["username"])
}

func TestLogLoginAndHistory(t *testing.T) {
	ts := newTestServer(t, nil)
	at := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	ts.accounts.On("AppendLogin", mock.Anything, "acc-1", domain.LoginEntry{Timestamp: at, Device: "Pixel 7"}).Return(nil)
	ts.accounts.On("LoginHistory", mock.Anything, "acc-1").Return([]domain.LoginEntry{{Timestamp: at, Device: "Pixel 7"}}, nil)
	token := ts.accessToken(t, "acc-1")

	rec, _ := ts.do(t, http.MethodPost, "/api/auth/log-login", map[string]string{
		"timestamp": "2025-06-01T15:00:00+07:00", "device": "Pixel 7",
	}, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := ts.do(t, http.MethodGet, "/api/auth/login-history", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	list, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Len(t, list, 1)
}

func TestLogLogin_MissingDevice(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, resp := ts.do(t, http.MethodPost, "/api/auth/log-login", map[string]string{
		"timestamp": "2025-06-01T08:00:00Z",
	}, ts.accessToken(t, "acc-1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Fields, "device")
}

func TestUserInfo_Reminder(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.accounts.On("GetByID", mock.Anything, "acc-1").
		Return(&domain.Account{ID: "acc-1", Email: "budi@gmail.com", Username: "Budi", IsVerified: true}, nil)

	rec, resp := ts.do(t, http.MethodGet, "/api/auth/user/info", nil, ts.accessToken(t, "acc-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	data := dataMap(t, resp)
	assert.Equal(t, false, data["has_password"])
	assert.NotEmpty(t, data["reminder"])
}

// ============================================================================
// Sugar log endpoints
// ============================================================================

func TestSugar_Create(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.sugar.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.SugarEntry) bool {
		return e.AccountID == "acc-1" && e.FoodName == "Teh Botol" && e.PackCount == 2
	})).Return(nil)

	rec, resp := ts.do(t, http.MethodPost, "/api/gula", map[string]any{
		"namaMakanan": "Teh Botol", "gulaPerBungkus": 18, "jumlahBungkus": 2,
		"totalGula": 36, "sendokTeh": 9,
	}, ts.accessToken(t, "acc-1"))

	require.Equal(t, http.StatusCreated, rec.Code)
	data := dataMap(t, resp)
	assert.NotEmpty(t, data["id"])
	assert.Equal(t, 36.0, data["totalGula"])
	assert.NotEmpty(t, data["waktuInput"])
}

func TestSugar_CreateRejectsZeroAmounts(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, resp := ts.do(t, http.MethodPost, "/api/gula", map[string]any{
		"gulaPerBungkus": 0, "jumlahBungkus": 2, "totalGula": 36, "sendokTeh": 9,
	}, ts.accessToken(t, "acc-1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "sugar per pack and pack count must be greater than 0", resp.Message)
}

func TestSugar_ListPassesFilters(t *testing.T) {
	ts := newTestServer(t, nil)
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ts.sugar.On("List", mock.Anything, "acc-1", domain.SugarFilter{From: day, To: day.AddDate(0, 0, 1), Search: "teh"}).
		Return([]domain.SugarEntry{}, nil)

	rec, resp := ts.do(t, http.MethodGet, "/api/gula?date=2025-06-01&search=teh", nil, ts.accessToken(t, "acc-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, resp.Data)
}

func TestSugar_UpdateAndDeleteIDs(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.accessToken(t, "acc-1")
	const id = "3f2b8c1e-8a7d-4c7e-9a51-0f3d2c1b4a99"

	rec, resp := ts.do(t, http.MethodDelete, "/api/gula/not-a-uuid", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", resp.Code)

	ts.sugar.On("Delete", mock.Anything, "acc-1", id).Return(apperrors.NotFound("sugar entry", id))
	rec, _ = ts.do(t, http.MethodDelete, "/api/gula/"+id, nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.sugar.On("Update", mock.Anything, mock.MatchedBy(func(e *domain.SugarEntry) bool {
		return e.ID == id && e.AccountID == "acc-1"
	})).Return(nil)
	rec, _ = ts.do(t, http.MethodPut, "/api/gula/"+id, map[string]any{
		"gulaPerBungkus": 10, "jumlahBungkus": 1, "totalGula": 10, "sendokTeh": 2.5,
	}, token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ============================================================================
// Water log endpoints
// ============================================================================

func TestWater_GetRequiresDate(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, _ := ts.do(t, http.MethodGet, "/api/air", nil, ts.accessToken(t, "acc-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWater_GetEmptyDay(t *testing.T) {
	ts := newTestServer(t, nil)
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ts.water.On("Get", mock.Anything, "acc-1", day).Return(nil, apperrors.ErrNotFound)

	rec, resp := ts.do(t, http.MethodGet, "/api/air?tanggal=2025-06-01", nil, ts.accessToken(t, "acc-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"tanggal": "2025-06-01", "riwayatJamMinum": []any{}}, resp.Data)
}

func TestWater_AddAndRemove(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.accessToken(t, "acc-1")
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ts.water.On("AddTime", mock.Anything, "acc-1", day, "07:30").Return(nil)
	ts.water.On("RemoveTime", mock.Anything, "acc-1", day, "07:30").Return(apperrors.NotFound("water time", "07:30"))

	rec, _ := ts.do(t, http.MethodPost, "/api/air", map[string]string{"tanggal": "2025-06-01", "jam": "07:30"}, token)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := ts.do(t, http.MethodPost, "/api/air", map[string]string{"tanggal": "2025-06-01", "jam": "7:30"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Fields, "jam")

	rec, _ = ts.do(t, http.MethodDelete, "/api/air/2025-06-01/07:30", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

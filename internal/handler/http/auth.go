package http

import (
	"log/slog"
	"net/http"

	"github.com/satrioramadhan/scansek-api/internal/domain"
	"github.com/satrioramadhan/scansek-api/internal/service"
	"github.com/satrioramadhan/scansek-api/pkg/httputil"
	"github.com/satrioramadhan/scansek-api/pkg/middleware"
)

const codeNotVerified = "ACCOUNT_NOT_VERIFIED"

// AuthHandler handles the public authentication endpoints.
type AuthHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for registration.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	Username string `json:"username" validate:"required,max=100"`
}

// LoginRequest is the JSON request body for a password login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// GoogleLoginRequest is the JSON request body for a Google login.
type GoogleLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// VerifyOTPRequest is the JSON request body for verify-otp and verify-reset-otp.
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,otp"`
}

// ResendOTPRequest is the JSON request body for resend-otp.
type ResendOTPRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Purpose string `json:"purpose" validate:"omitempty,oneof=verification reset"`
}

// ForgotPasswordRequest is the JSON request body for forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the JSON request body for reset-password.
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,otp"`
	NewPassword string `json:"new_password" validate:"required"`
}

// --- Response types ---

// LoginResponse carries the token pair and the public profile.
type LoginResponse struct {
	Token        string         `json:"token"`
	RefreshToken string         `json:"refresh_token"`
	User         domain.Profile `json:"user"`
}

// VerificationResponse is the data of a 403 login for an unverified account.
type VerificationResponse struct {
	OTPSent      bool   `json:"otp_sent"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// RefreshResponse carries a freshly minted access token.
type RefreshResponse struct {
	Token string `json:"token"`
}

// --- Handlers ---

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	account, err := h.service.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusCreated,
		"registration successful, check your email for the verification code",
		account.Profile())
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	res, err := h.service.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	writeLoginResult(w, r, res, "login successful")
}

// GoogleLogin handles POST /api/auth/google-login
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req GoogleLoginRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	res, err := h.service.GoogleLogin(r.Context(), req.IDToken)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	writeLoginResult(w, r, res, "google login successful")
}

// VerifyOTP handles POST /api/auth/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	res, err := h.service.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	writeLoginResult(w, r, res, "email verified")
}

// ResendOTP handles POST /api/auth/resend-otp
func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req ResendOTPRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	if err := h.service.ResendOTP(r.Context(), req.Email, req.Purpose); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "a new OTP has been sent to your email", nil)
}

// ForgotPassword handles POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "a password reset OTP has been sent to your email", nil)
}

// VerifyResetOTP handles POST /api/auth/verify-reset-otp
func (h *AuthHandler) VerifyResetOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	if err := h.service.VerifyResetOTP(r.Context(), req.Email, req.OTP); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "OTP is valid", nil)
}

// ResetPassword handles POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "password has been reset", nil)
}

// Refresh handles POST /api/auth/refresh. The refresh token is sent as the
// bearer token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		httputil.WriteFailure(w, r, http.StatusUnauthorized, "UNAUTHORIZED",
			"missing or malformed authorization header", nil)
		return
	}

	access, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "token refreshed", RefreshResponse{Token: access})
}

// writeLoginResult writes 200 with tokens, or 403 with the otp_sent hint when
// the account still has to verify its email.
func writeLoginResult(w http.ResponseWriter, r *http.Request, res *service.LoginResult, message string) {
	if res.VerificationRequired {
		httputil.WriteFailure(w, r, http.StatusForbidden, codeNotVerified,
			"account not verified, a new OTP has been sent to your email",
			VerificationResponse{OTPSent: true, RefreshToken: res.Tokens.RefreshToken})
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, message, LoginResponse{
		Token:        res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		User:         res.Account.Profile(),
	})
}

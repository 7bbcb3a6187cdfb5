package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/satrioramadhan/scansek-api/internal/domain"
	"github.com/satrioramadhan/scansek-api/internal/service"
	"github.com/satrioramadhan/scansek-api/pkg/httputil"
)

// AccountHandler handles the endpoints of the signed-in account.
type AccountHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAccountHandler creates a new account HTTP handler.
func NewAccountHandler(svc *service.AuthService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// PasswordChangeRequest is the password part of an update-profile body.
// Current may be omitted by accounts that have no password yet.
type PasswordChangeRequest struct {
	Current string `json:"current"`
	New     string `json:"new" validate:"required"`
}

// UpdateProfileRequest is the JSON request body for update-profile.
type UpdateProfileRequest struct {
	Username *string                `json:"username" validate:"omitempty,min=1,max=100"`
	Email    *string                `json:"email" validate:"omitempty,email,max=254"`
	Password *PasswordChangeRequest `json:"password"`
}

// LogLoginRequest is the JSON request body for log-login.
type LogLoginRequest struct {
	Timestamp time.Time `json:"timestamp" validate:"required"`
	Device    string    `json:"device" validate:"required,max=200"`
}

// --- Handlers ---

// UpdateProfile handles PUT /api/auth/update-profile
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	input := service.UpdateProfileInput{
		Username: req.Username,
		Email:    req.Email,
	}
	if req.Password != nil {
		input.Password = &service.PasswordChange{Current: req.Password.Current, New: req.Password.New}
	}

	account, err := h.service.UpdateProfile(r.Context(), accountID, input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "profile updated", account.Profile())
}

// LogLogin handles POST /api/auth/log-login
func (h *AccountHandler) LogLogin(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	var req LogLoginRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	entry := domain.LoginEntry{Timestamp: req.Timestamp.UTC(), Device: req.Device}
	if err := h.service.LogLogin(r.Context(), accountID, entry); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "login recorded", nil)
}

// LoginHistory handles GET /api/auth/login-history
func (h *AccountHandler) LoginHistory(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	entries, err := h.service.LoginHistory(r.Context(), accountID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if entries == nil {
		entries = []domain.LoginEntry{}
	}

	httputil.WriteSuccess(w, http.StatusOK, "login history", entries)
}

// UserInfo handles GET /api/auth/user/info
func (h *AccountHandler) UserInfo(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	info, err := h.service.UserInfo(r.Context(), accountID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "user info", info)
}

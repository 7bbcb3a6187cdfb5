package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/satrioramadhan/scansek-api/internal/service"
	"github.com/satrioramadhan/scansek-api/pkg/httputil"
)

// WaterHandler handles the water log endpoints.
type WaterHandler struct {
	service *service.WaterService
	logger  *slog.Logger
}

// NewWaterHandler creates a new water log HTTP handler.
func NewWaterHandler(svc *service.WaterService, logger *slog.Logger) *WaterHandler {
	return &WaterHandler{service: svc, logger: logger}
}

// WaterRequest is the JSON request body for logging a drink time.
type WaterRequest struct {
	Date string `json:"tanggal" validate:"required,isodate"`
	Time string `json:"jam" validate:"required,hhmm"`
}

// Get handles GET /api/air?tanggal=YYYY-MM-DD
func (h *WaterHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	waterLog, err := h.service.Get(r.Context(), accountID, r.URL.Query().Get("tanggal"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "water log", waterLog)
}

// AddTime handles POST /api/air
func (h *WaterHandler) AddTime(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	var req WaterRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	if err := h.service.AddTime(r.Context(), accountID, req.Date, req.Time); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusCreated, "drink time saved", nil)
}

// DeleteDay handles DELETE /api/air/{tanggal}
func (h *WaterHandler) DeleteDay(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteDay(r.Context(), accountID, chi.URLParam(r, "tanggal")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "water log deleted", nil)
}

// RemoveTime handles DELETE /api/air/{tanggal}/{jam}
func (h *WaterHandler) RemoveTime(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	err := h.service.RemoveTime(r.Context(), accountID, chi.URLParam(r, "tanggal"), chi.URLParam(r, "jam"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "drink time deleted", nil)
}

package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/satrioramadhan/scansek-api/internal/service"
	"github.com/satrioramadhan/scansek-api/pkg/httputil"
)

// SugarHandler handles the sugar log endpoints.
type SugarHandler struct {
	service *service.SugarService
	logger  *slog.Logger
}

// NewSugarHandler creates a new sugar log HTTP handler.
func NewSugarHandler(svc *service.SugarService, logger *slog.Logger) *SugarHandler {
	return &SugarHandler{service: svc, logger: logger}
}

// SugarRequest is the JSON request body for creating or updating an entry.
// Amounts are checked by the service so the client gets one combined message.
type SugarRequest struct {
	FoodName     string     `json:"namaMakanan" validate:"max=200"`
	SugarPerPack int        `json:"gulaPerBungkus"`
	PackCount    int        `json:"jumlahBungkus"`
	PackContent  *string    `json:"isiPerBungkus" validate:"omitempty,max=100"`
	TotalSugar   float64    `json:"totalGula"`
	Teaspoons    float64    `json:"sendokTeh"`
	RecordedAt   *time.Time `json:"waktuInput"`
}

func (req SugarRequest) input() service.SugarInput {
	return service.SugarInput{
		FoodName:     req.FoodName,
		SugarPerPack: req.SugarPerPack,
		PackCount:    req.PackCount,
		PackContent:  req.PackContent,
		TotalSugar:   req.TotalSugar,
		Teaspoons:    req.Teaspoons,
		RecordedAt:   req.RecordedAt,
	}
}

// Create handles POST /api/gula
func (h *SugarHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	var req SugarRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	entry, err := h.service.Create(r.Context(), accountID, req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusCreated, "sugar entry saved", entry)
}

// List handles GET /api/gula?date=&from=&to=&search=
func (h *SugarHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	entries, err := h.service.List(r.Context(), accountID, service.SugarListInput{
		Date:   q.Get("date"),
		From:   q.Get("from"),
		To:     q.Get("to"),
		Search: q.Get("search"),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "sugar entries", entries)
}

// Update handles PUT /api/gula/{id}
func (h *SugarHandler) Update(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req SugarRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	entry, err := h.service.Update(r.Context(), accountID, id.String(), req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "sugar entry updated", entry)
}

// Delete handles DELETE /api/gula/{id}
func (h *SugarHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), accountID, id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "sugar entry deleted", nil)
}

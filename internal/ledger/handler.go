package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jetpos/jetpos-backoffice/internal/platform/httpx"
	"github.com/jetpos/jetpos-backoffice/internal/shared"
)

// Handler wires HTTP endpoints for the cari ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.handleListAccounts)
	r.Post("/accounts", h.handleCreateAccount)
	r.Post("/accounts/{id}/movements", h.handleRecordEntry)
	r.Get("/accounts/{id}/balance", h.handleBalance)
	r.Get("/accounts/{id}/statement", h.handleStatement)
	r.Get("/reports/daily", h.handleDailyReport)
}

func (h *Handler) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Tenant Missing", err.Error())
		return
	}
	accounts, err := h.service.ListAccounts(r.Context(), tenant.ID, r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

type createAccountRequest struct {
	Name           string  `json:"name" validate:"required"`
	TaxNumber      string  `json:"tax_number"`
	TaxOffice      string  `json:"tax_office"`
	Address        string  `json:"address"`
	Phone          string  `json:"phone"`
	Email          string  `json:"email" validate:"omitempty,email"`
	OpeningBalance float64 `json:"opening_balance"`
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Tenant Missing", err.Error())
		return
	}
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id, err := h.service.CreateAccount(r.Context(), Account{
		TenantID:  tenant.ID,
		Name:      req.Name,
		TaxNumber: req.TaxNumber,
		TaxOffice: req.TaxOffice,
		Address:   req.Address,
		Phone:     req.Phone,
		Email:     req.Email,
	}, req.OpeningBalance)
	if err != nil {
		h.logger.Error("create account", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

type movementRequest struct {
	Kind        string  `json:"kind" validate:"required,oneof=tahsilat odeme"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Description string  `json:"description"`
	Date        string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) handleRecordEntry(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Tenant Missing", err.Error())
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var date time.Time
	if req.Date != "" {
		date, _ = time.Parse("2006-01-02", req.Date)
	}
	err = h.service.RecordEntry(r.Context(), tenant.ID, id, req.Kind, req.Amount, req.Description, date)
	if errors.Is(err, ErrAccountNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "cari bulunamadı")
		return
	}
	if err != nil {
		h.logger.Error("record movement", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Tenant Missing", err.Error())
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	balance, err := h.service.BalanceOf(r.Context(), tenant.ID, id)
	if errors.Is(err, ErrAccountNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "cari bulunamadı")
		return
	}
	if err != nil {
		h.logger.Error("account balance", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cari_id": id, "balance": balance})
}

func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Tenant Missing", err.Error())
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	from, to := dateRange(r)
	lines, err := h.service.StatementOf(r.Context(), tenant.ID, id, from, to)
	if errors.Is(err, ErrAccountNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "cari bulunamadı")
		return
	}
	if err != nil {
		h.logger.Error("account statement", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"statement": lines})
}

func (h *Handler) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Tenant Missing", err.Error())
		return
	}
	from, to := dateRange(r)
	totals, err := h.service.DailyReport(r.Context(), tenant.ID, from, to)
	if err != nil {
		h.logger.Error("daily report", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"days": totals})
}

func dateRange(r *http.Request) (time.Time, time.Time) {
	var from, to time.Time
	if v := r.URL.Query().Get("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			from = t
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			to = t.Add(24*time.Hour - time.Nanosecond)
		}
	}
	return from, to
}

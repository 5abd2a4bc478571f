package catalog

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jetpos/jetpos-backoffice/internal/platform/httpx"
	"github.com/jetpos/jetpos-backoffice/internal/shared"
)

// BulkProgress is one progress snapshot of a running bulk job.
type BulkProgress struct {
	JobID string `json:"job_id"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// Bulk job states.
const (
	BulkStateRunning   = "running"
	BulkStateDone      = "done"
	BulkStateFailed    = "failed"
	BulkStateCancelled = "cancelled"
)

// BulkJobPort hands bulk runs to the background worker and exposes their
// progress and cancellation.
type BulkJobPort interface {
	EnqueueBulk(ctx context.Context, tenant shared.Tenant, ids []uuid.UUID, op BulkOp) (string, error)
	Progress(ctx context.Context, jobID string) (BulkProgress, error)
	Cancel(ctx context.Context, jobID string) error
}

// ErrJobNotFound is returned for unknown bulk job ids.
var ErrJobNotFound = errors.New("catalog: bulk job not found")

// Handler wires HTTP endpoints for the catalog module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	jobs     BulkJobPort
	validate *validator.Validate
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service, jobs BulkJobPort) *Handler {
	return &Handler{logger: logger, service: service, jobs: jobs, validate: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Post("/bulk", h.handleBulk)
	r.Get("/bulk/{jobID}", h.handleBulkProgress)
	r.Post("/bulk/{jobID}/cancel", h.handleBulkCancel)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Tenant Missing", err.Error())
		return
	}
	products, err := h.service.List(r.Context(), tenant, r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
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
	product, err := h.service.Get(r.Context(), tenant, id)
	if errors.Is(err, ErrProductNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "ürün bulunamadı")
		return
	}
	if err != nil {
		h.logger.Error("get product", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

type bulkRequest struct {
	ProductIDs []string `json:"product_ids" validate:"required,min=1,dive,uuid"`
	Op         string   `json:"op" validate:"required"`
	Percent    float64  `json:"percent"`
	Status     string   `json:"status"`
	StockValue float64  `json:"stock_value"`
	StockMin   float64  `json:"stock_min"`
	StockMax   float64  `json:"stock_max"`
	Actor      string   `json:"actor"`
}

func (h *Handler) handleBulk(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Tenant Missing", err.Error())
		return
	}
	var req bulkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	op := BulkOp{
		Kind:       BulkOpKind(req.Op),
		Percent:    req.Percent,
		Status:     req.Status,
		StockValue: req.StockValue,
		StockMin:   req.StockMin,
		StockMax:   req.StockMax,
		Actor:      req.Actor,
	}
	if err := op.Validate(); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ids := make([]uuid.UUID, 0, len(req.ProductIDs))
	for _, raw := range req.ProductIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "geçersiz ürün kimliği")
			return
		}
		ids = append(ids, id)
	}
	jobID, err := h.jobs.EnqueueBulk(r.Context(), tenant, ids, op)
	if err != nil {
		h.logger.Error("enqueue bulk job", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"job_id": jobID, "total": len(ids)})
}

func (h *Handler) handleBulkProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.jobs.Progress(r.Context(), chi.URLParam(r, "jobID"))
	if errors.Is(err, ErrJobNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "iş bulunamadı")
		return
	}
	if err != nil {
		h.logger.Error("bulk progress", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, progress)
}

func (h *Handler) handleBulkCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := h.jobs.Cancel(r.Context(), jobID); err != nil {
		if errors.Is(err, ErrJobNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "iş bulunamadı")
			return
		}
		h.logger.Error("cancel bulk job", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"job_id": jobID, "state": BulkStateCancelled})
}

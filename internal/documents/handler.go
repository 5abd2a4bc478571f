package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jetpos/jetpos-backoffice/internal/platform/httpx"
	"github.com/jetpos/jetpos-backoffice/internal/shared"
)

// CariOption is one entry of the counterparty pick-list a form mounts with.
type CariOption struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	TaxNumber string    `json:"tax_number,omitempty"`
	TaxOffice string    `json:"tax_office,omitempty"`
	Address   string    `json:"address,omitempty"`
}

// ProductOption is one entry of the product pick-list.
type ProductOption struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Barcode       string    `json:"barcode,omitempty"`
	PurchasePrice float64   `json:"purchase_price"`
	SalePrice     float64   `json:"sale_price"`
	VATRate       float64   `json:"vat_rate"`
}

// LookupService supplies the independent pick-lists fetched when a document
// form mounts. The two reads have no ordering dependency and are dispatched
// concurrently.
type LookupService interface {
	CariOptions(ctx context.Context, tenant shared.Tenant, search string) ([]CariOption, error)
	ProductOptions(ctx context.Context, tenant shared.Tenant, search string) ([]ProductOption, error)
}

// Handler wires HTTP endpoints for the documents module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	lookups  LookupService
	validate *validator.Validate
}

// NewHandler constructs the documents handler.
func NewHandler(logger *slog.Logger, service *Service, lookups LookupService) *Handler {
	return &Handler{logger: logger, service: service, lookups: lookups, validate: validator.New()}
}

// MountRoutes registers document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleSave)
	r.Get("/", h.handleList)
	r.Get("/lookups", h.handleLookups)
	r.Get("/tools/profit", h.handleProfitTool)
	r.Get("/tools/vat", h.handleVATTool)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/payment-status", h.handlePaymentStatus)
	r.Post("/{id}/invoiced", h.handleMarkInvoiced)
}

type lineRequest struct {
	ProductID          string  `json:"product_id"`
	Name               string  `json:"name"`
	Code               string  `json:"code"`
	Quantity           float64 `json:"quantity"`
	Unit               string  `json:"unit"`
	UnitPrice          float64 `json:"unit_price"`
	DiscountRate       float64 `json:"discount_rate" validate:"gte=0,lte=100"`
	VATRate            float64 `json:"vat_rate"`
	SuggestedSalePrice float64 `json:"suggested_sale_price"`
}

type saveRequest struct {
	Type          string        `json:"type" validate:"required"`
	DocumentDate  string        `json:"document_date" validate:"required,datetime=2006-01-02"`
	DueDate       string        `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	CariID        string        `json:"cari_id"`
	CariName      string        `json:"cari_name"`
	CariTaxNumber string        `json:"cari_tax_number"`
	CariTaxOffice string        `json:"cari_tax_office"`
	CariAddress   string        `json:"cari_address"`
	Notes         string        `json:"notes"`
	PaymentStatus string        `json:"payment_status"`
	RoundAmount   float64       `json:"round_amount"`
	Lines         []lineRequest `json:"lines" validate:"dive"`
}

type saveResponse struct {
	ID         uuid.UUID `json:"id"`
	Number     string    `json:"number"`
	Subtotal   float64   `json:"subtotal"`
	TotalVAT   float64   `json:"total_vat"`
	GrandTotal float64   `json:"grand_total"`
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Tenant Missing", err.Error())
		return
	}
	var req saveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input, err := req.toInput()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Save(r.Context(), tenant, input)
	if err != nil {
		h.respondSaveError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, saveResponse{
		ID:         result.ID,
		Number:     result.Number,
		Subtotal:   result.Totals.Subtotal,
		TotalVAT:   result.Totals.TotalVAT,
		GrandTotal: result.Totals.GrandTotal,
	})
}

func (h *Handler) respondSaveError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", verr.Message)
		return
	}
	var perr *PersistenceError
	if errors.As(err, &perr) {
		h.logger.Error("document save failed", slog.String("step", perr.Step), slog.Any("error", perr.Err))
		httpx.Problem(w, http.StatusInternalServerError, "Save Failed", perr.Error())
		return
	}
	h.logger.Error("document save failed", slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Save Failed", err.Error())
}

func (req saveRequest) toInput() (SaveInput, error) {
	input := SaveInput{
		Type:          Type(req.Type),
		CariName:      req.CariName,
		CariTaxNumber: req.CariTaxNumber,
		CariTaxOffice: req.CariTaxOffice,
		CariAddress:   req.CariAddress,
		Notes:         req.Notes,
		PaymentStatus: PaymentStatus(req.PaymentStatus),
		RoundAmount:   req.RoundAmount,
	}
	docDate, err := time.Parse("2006-01-02", req.DocumentDate)
	if err != nil {
		return SaveInput{}, errors.New("geçersiz belge tarihi")
	}
	input.DocumentDate = docDate
	if req.DueDate != "" {
		dueDate, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			return SaveInput{}, errors.New("geçersiz vade tarihi")
		}
		input.DueDate = dueDate
	}
	if req.CariID != "" {
		cariID, err := uuid.Parse(req.CariID)
		if err != nil {
			return SaveInput{}, errors.New("geçersiz cari kimliği")
		}
		input.CariID = cariID
	}
	for _, lr := range req.Lines {
		line := Line{
			Name:               lr.Name,
			Code:               lr.Code,
			Quantity:           lr.Quantity,
			Unit:               lr.Unit,
			UnitPrice:          lr.UnitPrice,
			DiscountRate:       lr.DiscountRate,
			VATRate:            lr.VATRate,
			SuggestedSalePrice: lr.SuggestedSalePrice,
		}
		if lr.ProductID != "" {
			productID, err := uuid.Parse(lr.ProductID)
			if err != nil {
				return SaveInput{}, errors.New("geçersiz ürün kimliği")
			}
			line.ProductID = productID
		}
		input.Lines = append(input.Lines, line)
	}
	return input, nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Tenant Missing", err.Error())
		return
	}
	q := r.URL.Query()
	filter := ListFilter{Type: Type(q.Get("type"))}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filter.Page = page
	}
	if perPage, err := strconv.Atoi(q.Get("per_page")); err == nil {
		filter.PerPage = perPage
	}
	if from := q.Get("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			filter.From = t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			filter.To = t.Add(24*time.Hour - time.Nanosecond)
		}
	}
	docs, pagination, err := h.service.List(r.Context(), tenant, filter)
	if err != nil {
		h.logger.Error("list documents", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"documents": docs, "pagination": pagination})
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
	doc, err := h.service.Get(r.Context(), tenant, id)
	if errors.Is(err, ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "belge bulunamadı")
		return
	}
	if err != nil {
		h.logger.Error("get document", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
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
	var req struct {
		Status string `json:"status" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetPaymentStatus(r.Context(), tenant, id, PaymentStatus(req.Status)); err != nil {
		h.respondSaveError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (h *Handler) handleMarkInvoiced(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.MarkInvoiced(r.Context(), tenant, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "belge bulunamadı")
			return
		}
		h.logger.Error("mark invoiced", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "invoiced"})
}

// handleProfitTool answers the profit calculator: absolute and percentage
// profit between a purchase and a sale price.
func (h *Handler) handleProfitTool(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	purchasePrice, err1 := strconv.ParseFloat(q.Get("purchase_price"), 64)
	salePrice, err2 := strconv.ParseFloat(q.Get("sale_price"), 64)
	if err1 != nil || err2 != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "purchase_price ve sale_price gerekli")
		return
	}
	amount, percent := Profit(purchasePrice, salePrice)
	httpx.JSON(w, http.StatusOK, map[string]float64{"amount": amount, "percent": percent})
}

// handleVATTool splits a price into VAT-included, VAT-excluded and VAT
// amount parts at one of the accepted KDV rates.
func (h *Handler) handleVATTool(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	price, err1 := strconv.ParseFloat(q.Get("price"), 64)
	rate, err2 := strconv.ParseFloat(q.Get("rate"), 64)
	if err1 != nil || err2 != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "price ve rate gerekli")
		return
	}
	if !ValidVATRate(rate) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fmt.Sprintf("Geçersiz KDV oranı: %v", rate))
		return
	}
	included := q.Get("included") == "true"
	b := SplitVAT(price, rate, included)
	httpx.JSON(w, http.StatusOK, map[string]float64{
		"included":   b.Included,
		"excluded":   b.Excluded,
		"vat_amount": b.VATAmount,
	})
}

// handleLookups fetches the cari and product pick-lists in parallel. The two
// reads are independent, so no coordination beyond the errgroup is needed.
func (h *Handler) handleLookups(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Tenant Missing", err.Error())
		return
	}
	search := r.URL.Query().Get("q")
	var (
		cariOptions    []CariOption
		productOptions []ProductOption
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		cariOptions, err = h.lookups.CariOptions(ctx, tenant, search)
		return err
	})
	g.Go(func() error {
		var err error
		productOptions, err = h.lookups.ProductOptions(ctx, tenant, search)
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("fetch lookups", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cari": cariOptions, "products": productOptions})
}

package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jetpos/jetpos-backoffice/internal/shared"
)

// RepositoryPort abstracts persistence for the save workflow.
type RepositoryPort interface {
	SequencePort
	InsertDocument(ctx context.Context, doc Document) (uuid.UUID, error)
	InsertLines(ctx context.Context, tenantID, docID uuid.UUID, lines []Line) error
	GetDocument(ctx context.Context, tenantID, id uuid.UUID) (*Document, error)
	ListDocuments(ctx context.Context, filter ListFilter) ([]Document, int, error)
	UpdatePaymentStatus(ctx context.Context, tenantID, id uuid.UUID, status PaymentStatus) error
	MarkInvoiced(ctx context.Context, tenantID, id uuid.UUID) error
}

// StockPort is the product-catalog collaborator mutated as a side effect of
// goods documents. Decrement is backed by a named atomic routine on the
// storage side; the increments are plain updates.
type StockPort interface {
	ApplyPurchase(ctx context.Context, tenantID, productID uuid.UUID, qty, purchasePrice, suggestedSalePrice float64) error
	Increment(ctx context.Context, tenantID, productID uuid.UUID, qty float64) error
	Decrement(ctx context.Context, tenantID, productID uuid.UUID, qty float64) error
}

// Movement kinds the save workflow produces, as stored in
// cari_movements.kind.
const (
	MovementInvoice       = "fatura"
	MovementDebit         = "borclandirma"
	MovementReturnInvoice = "iade_faturasi"
	MovementPriceDiff     = "fiyat_farki_iadesi"
)

// Movement is one append-only cari ledger entry produced by a saved document.
type Movement struct {
	TenantID     uuid.UUID
	CariID       uuid.UUID
	Kind         string
	Description  string
	Debit        float64
	Credit       float64
	DocumentNo   string
	DocumentType Type
	Date         time.Time
}

// LedgerPort appends movements against a counterparty's running balance.
type LedgerPort interface {
	AppendMovement(ctx context.Context, m Movement) error
}

// AuditPort records save operations; failures are non-fatal.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the financial document save workflow:
// validate, allocate number, insert header, insert lines, apply side
// effects, append ledger movement. Side effects run strictly sequentially
// and a failure partway through is not rolled back; the header can exist
// without lines.
type Service struct {
	repo      RepositoryPort
	allocator *Allocator
	stock     StockPort
	ledger    LedgerPort
	audit     AuditPort
	notifier  shared.Notifier
}

// NewService builds Service. Stock, ledger, audit and notifier are optional;
// a nil port skips that side effect.
func NewService(repo RepositoryPort, stock StockPort, ledger LedgerPort, audit AuditPort, notifier shared.Notifier) *Service {
	return &Service{
		repo:      repo,
		allocator: NewAllocator(repo),
		stock:     stock,
		ledger:    ledger,
		audit:     audit,
		notifier:  notifier,
	}
}

// SaveInput carries the raw form state of a document save.
type SaveInput struct {
	Type          Type
	DocumentDate  time.Time
	DueDate       time.Time
	CariID        uuid.UUID
	CariName      string
	CariTaxNumber string
	CariTaxOffice string
	CariAddress   string
	Notes         string
	PaymentStatus PaymentStatus
	RoundAmount   float64
	Actor         string
	Lines         []Line
}

// SaveResult reports the persisted identity so the caller can reset its form
// with a freshly allocated next number.
type SaveResult struct {
	ID     uuid.UUID
	Number string
	Totals Totals
}

// Save runs the full persistence workflow for one document.
func (s *Service) Save(ctx context.Context, tenant shared.Tenant, input SaveInput) (SaveResult, error) {
	if err := validate(input); err != nil {
		return SaveResult{}, err
	}

	lines, totals := Recompute(input.Lines, input.RoundAmount)

	doc := Document{
		TenantID:      tenant.ID,
		Type:          input.Type,
		DocumentDate:  input.DocumentDate,
		DueDate:       input.DueDate,
		CariID:        input.CariID,
		CariName:      input.CariName,
		CariTaxNumber: input.CariTaxNumber,
		CariTaxOffice: input.CariTaxOffice,
		CariAddress:   input.CariAddress,
		Notes:         input.Notes,
		Status:        StatusApproved,
		PaymentStatus: paymentStatusFor(input),
		Subtotal:      totals.Subtotal,
		TotalVAT:      totals.TotalVAT,
		RoundAmount:   totals.RoundAmount,
		GrandTotal:    totals.GrandTotal,
	}

	id, number, err := s.insertWithNumber(ctx, tenant.ID, doc)
	if err != nil {
		return SaveResult{}, &PersistenceError{Step: "insert header", Err: err}
	}

	if err := s.repo.InsertLines(ctx, tenant.ID, id, lines); err != nil {
		return SaveResult{}, &PersistenceError{Step: "insert lines", Err: err}
	}

	if err := s.applyStockEffects(ctx, tenant.ID, input.Type, lines); err != nil {
		return SaveResult{}, &PersistenceError{Step: "stock update", Err: err}
	}

	if err := s.appendMovement(ctx, tenant.ID, input, number, totals.GrandTotal); err != nil {
		return SaveResult{}, &PersistenceError{Step: "ledger movement", Err: err}
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: tenant.ID,
			Actor:    input.Actor,
			Action:   fmt.Sprintf("documents:save:%s", input.Type),
			Entity:   "document",
			EntityID: id.String(),
			Meta: map[string]any{
				"number":      number,
				"cari_id":     input.CariID.String(),
				"grand_total": totals.GrandTotal,
				"line_count":  len(lines),
			},
		})
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, fmt.Sprintf("Belge kaydedildi: %s", number), shared.NotifySuccess)
	}

	return SaveResult{ID: id, Number: number, Totals: totals}, nil
}

// insertWithNumber allocates the next document number and inserts the
// header, retrying the allocation once if a concurrent save raced to the
// same number.
func (s *Service) insertWithNumber(ctx context.Context, tenantID uuid.UUID, doc Document) (uuid.UUID, string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		number, err := s.allocator.NextNumber(ctx, tenantID, doc.Type)
		if err != nil {
			return uuid.Nil, "", err
		}
		doc.Number = number
		id, err := s.repo.InsertDocument(ctx, doc)
		if errors.Is(err, ErrNumberConflict) && attempt == 0 {
			continue
		}
		if err != nil {
			return uuid.Nil, "", err
		}
		return id, number, nil
	}
	return uuid.Nil, "", ErrNumberConflict
}

func (s *Service) applyStockEffects(ctx context.Context, tenantID uuid.UUID, docType Type, lines []Line) error {
	if s.stock == nil {
		return nil
	}
	for _, line := range lines {
		if line.ProductID == uuid.Nil {
			continue
		}
		var err error
		switch docType {
		case TypePurchase:
			err = s.stock.ApplyPurchase(ctx, tenantID, line.ProductID, line.Quantity, line.UnitPrice, line.SuggestedSalePrice)
		case TypePurchaseWaybill:
			err = s.stock.Increment(ctx, tenantID, line.ProductID, line.Quantity)
		case TypeSales, TypeRetailSale, TypeSalesWaybill:
			err = s.stock.Decrement(ctx, tenantID, line.ProductID, line.Quantity)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// appendMovement writes the debit/credit entry for settling document types.
// The sign is fixed per type: purchases and sales debit the counterparty,
// returns and credit notes credit it.
func (s *Service) appendMovement(ctx context.Context, tenantID uuid.UUID, input SaveInput, number string, grandTotal float64) error {
	if s.ledger == nil || !input.Type.Settles() {
		return nil
	}
	m := Movement{
		TenantID:     tenantID,
		CariID:       input.CariID,
		Kind:         movementKind(input.Type),
		Description:  fmt.Sprintf("%s - %s", documentLabel(input.Type), number),
		DocumentNo:   number,
		DocumentType: input.Type,
		Date:         input.DocumentDate,
	}
	amount := grandTotal
	if amount < 0 {
		amount = -amount
	}
	if input.Type.IsReturn() {
		m.Credit = amount
	} else {
		m.Debit = amount
	}
	return s.ledger.AppendMovement(ctx, m)
}

// MarkInvoiced flips a sales document to its invoiced state, the only
// in-place status transition besides payment status.
func (s *Service) MarkInvoiced(ctx context.Context, tenant shared.Tenant, id uuid.UUID) error {
	return s.repo.MarkInvoiced(ctx, tenant.ID, id)
}

// SetPaymentStatus updates the payment status of a saved document.
func (s *Service) SetPaymentStatus(ctx context.Context, tenant shared.Tenant, id uuid.UUID, status PaymentStatus) error {
	if !status.Valid() {
		return &ValidationError{Field: "payment_status", Message: "Geçersiz ödeme durumu"}
	}
	return s.repo.UpdatePaymentStatus(ctx, tenant.ID, id, status)
}

// Get loads a document with its lines.
func (s *Service) Get(ctx context.Context, tenant shared.Tenant, id uuid.UUID) (*Document, error) {
	return s.repo.GetDocument(ctx, tenant.ID, id)
}

// ListFilter narrows document listings.
type ListFilter struct {
	TenantID uuid.UUID
	Type     Type
	From     time.Time
	To       time.Time
	Page     int
	PerPage  int
}

// List returns documents with pagination metadata.
func (s *Service) List(ctx context.Context, tenant shared.Tenant, filter ListFilter) ([]Document, shared.Pagination, error) {
	filter.TenantID = tenant.ID
	docs, total, err := s.repo.ListDocuments(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return docs, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// validate applies the precondition checks in their fixed order, each
// aborting before any network call. Return documents intentionally skip the
// positivity checks: negative values are valid there.
func validate(input SaveInput) error {
	if !input.Type.Valid() {
		return &ValidationError{Field: "type", Message: "Geçersiz belge tipi"}
	}
	if input.CariID == uuid.Nil {
		return &ValidationError{Field: "cari_id", Message: "Lütfen cari seçin!"}
	}
	if len(input.Lines) == 0 {
		return &ValidationError{Field: "lines", Message: "Lütfen en az bir kalem ekleyin!"}
	}
	for _, line := range input.Lines {
		if line.Name == "" {
			return &ValidationError{Field: "lines", Message: "Lütfen tüm kalem bilgilerini doldurun!"}
		}
	}
	if !input.Type.IsReturn() {
		for _, line := range input.Lines {
			if line.Quantity <= 0 {
				return &ValidationError{Field: "lines", Message: "Miktar sıfırdan büyük olmalı!"}
			}
		}
		for _, line := range input.Lines {
			if line.UnitPrice <= 0 {
				return &ValidationError{Field: "lines", Message: "Birim fiyat sıfırdan büyük olmalı!"}
			}
		}
	}
	for _, line := range input.Lines {
		if line.Unit != "" && !ValidUnit(line.Unit) {
			return &ValidationError{Field: "lines", Message: fmt.Sprintf("Geçersiz birim: %s", line.Unit)}
		}
		if !ValidVATRate(line.VATRate) {
			return &ValidationError{Field: "lines", Message: fmt.Sprintf("Geçersiz KDV oranı: %v", line.VATRate)}
		}
	}
	if input.PaymentStatus != "" && !input.PaymentStatus.Valid() {
		return &ValidationError{Field: "payment_status", Message: "Geçersiz ödeme durumu"}
	}
	return nil
}

func paymentStatusFor(input SaveInput) PaymentStatus {
	if input.PaymentStatus != "" {
		return input.PaymentStatus
	}
	switch {
	case input.Type.IsReturn():
		return PaymentRefunded
	case input.Type == TypePurchase || input.Type == TypeServicePurchase:
		return PaymentUnpaid
	default:
		return PaymentPending
	}
}

func movementKind(t Type) string {
	switch t {
	case TypePurchase:
		return MovementDebit
	case TypeSalesReturn, TypeServiceSaleReturn, TypeServicePurchaseReturn:
		return MovementReturnInvoice
	case TypePriceDiffReturn:
		return MovementPriceDiff
	default:
		return MovementInvoice
	}
}

func documentLabel(t Type) string {
	switch t {
	case TypePurchase:
		return "Alış Faturası"
	case TypeSales:
		return "Satış Faturası"
	case TypeSalesReturn:
		return "İade Faturası"
	case TypeRetailSale:
		return "Perakende Satış Faturası"
	case TypeProforma:
		return "Proforma Fatura"
	case TypeSample:
		return "Emsaliyet Fişi"
	case TypeServicePurchase:
		return "Alınan Hizmet Faturası"
	case TypeServiceSale:
		return "Yapılan Hizmet Faturası"
	case TypeServiceSaleReturn:
		return "Yapılan Hizmet İadesi"
	case TypeServicePurchaseReturn:
		return "Alınan Hizmet İadesi"
	case TypePriceDiffReturn:
		return "İade Fiyat Farkı Fişi"
	case TypePurchaseWaybill:
		return "Alış İrsaliyesi"
	case TypeSalesWaybill:
		return "Satış İrsaliyesi"
	default:
		return string(t)
	}
}

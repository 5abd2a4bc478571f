package documents

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type tags every financial document form the back office produces.
type Type string

const (
	// TypePurchase is a purchase invoice (alış faturası).
	TypePurchase Type = "purchase"
	// TypeSales is a wholesale sales invoice.
	TypeSales Type = "sales"
	// TypeSalesReturn is a sales return invoice (iade faturası).
	TypeSalesReturn Type = "iade"
	// TypeRetailSale is a retail sales invoice (perakende satış).
	TypeRetailSale Type = "perakende_satis"
	// TypeProforma mirrors invoice structure without financial settlement.
	TypeProforma Type = "proforma"
	// TypeSample is an emsaliyet (sample) slip, also non-binding.
	TypeSample Type = "emsaliyet"
	// TypeServicePurchase is a received service invoice (alınan hizmet).
	TypeServicePurchase Type = "alinan_hizmet"
	// TypeServiceSale is a rendered service invoice (yapılan hizmet).
	TypeServiceSale Type = "yapilan_hizmet"
	// TypeServiceSaleReturn reverses a rendered service invoice.
	TypeServiceSaleReturn Type = "yapilan_hizmet_iadesi"
	// TypeServicePurchaseReturn reverses a received service invoice.
	TypeServicePurchaseReturn Type = "alinan_hizmet_iadesi"
	// TypePriceDiffReturn is a price-difference credit note (iade fiyat farkı).
	TypePriceDiffReturn Type = "iade_fiyat_farki"
	// TypePurchaseWaybill is a goods-receipt waybill (alış irsaliyesi).
	TypePurchaseWaybill Type = "irsaliye_alis"
	// TypeSalesWaybill is a delivery waybill (satış irsaliyesi).
	TypeSalesWaybill Type = "irsaliye_satis"
)

// numberPrefixes maps each document type to its human document number prefix.
var numberPrefixes = map[Type]string{
	TypePurchase:              "ALS",
	TypeSales:                 "SAT",
	TypeSalesReturn:           "IAD",
	TypeRetailSale:            "PER",
	TypeProforma:              "PRO",
	TypeSample:                "EMS",
	TypeServicePurchase:       "HZA",
	TypeServiceSale:           "HZY",
	TypeServiceSaleReturn:     "HYI",
	TypeServicePurchaseReturn: "HAI",
	TypePriceDiffReturn:       "IFF",
	TypePurchaseWaybill:       "IRA",
	TypeSalesWaybill:          "IRS",
}

// Valid reports whether the type belongs to the closed set.
func (t Type) Valid() bool {
	_, ok := numberPrefixes[t]
	return ok
}

// Prefix returns the document number prefix for the type.
func (t Type) Prefix() string {
	return numberPrefixes[t]
}

// IsReturn reports whether the type represents a credit/return document.
// Return documents carry negative quantities and amounts, so the positivity
// checks of Save are skipped for them.
func (t Type) IsReturn() bool {
	switch t {
	case TypeSalesReturn, TypeServiceSaleReturn, TypeServicePurchaseReturn, TypePriceDiffReturn:
		return true
	}
	return false
}

// Settles reports whether the type produces a ledger movement. Proforma and
// sample documents mirror invoice structure without settlement; waybills
// track goods movement independent of invoicing.
func (t Type) Settles() bool {
	switch t {
	case TypeProforma, TypeSample, TypePurchaseWaybill, TypeSalesWaybill:
		return false
	}
	return true
}

// PaymentStatus tracks how far a document is settled.
type PaymentStatus string

const (
	PaymentPaid     PaymentStatus = "paid"
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPending  PaymentStatus = "pending"
	PaymentDraft    PaymentStatus = "draft"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentAdjusted PaymentStatus = "adjusted"
)

// Valid reports whether the status belongs to the closed set.
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPaid, PaymentUnpaid, PaymentPending, PaymentDraft, PaymentRefunded, PaymentAdjusted:
		return true
	}
	return false
}

// StatusApproved is the document status every saved flow writes.
const StatusApproved = "approved"

// Units of measure accepted on a line.
var validUnits = map[string]struct{}{
	"ADET": {}, "KG": {}, "LT": {}, "M": {}, "M2": {}, "M3": {},
	"SAAT": {}, "GÜN": {}, "AY": {}, "KM": {},
}

// ValidUnit reports whether the unit belongs to the closed set.
func ValidUnit(unit string) bool {
	_, ok := validUnits[unit]
	return ok
}

// validVATRates is the closed set of Turkish VAT (KDV) percentages.
var validVATRates = map[float64]struct{}{0: {}, 1: {}, 10: {}, 20: {}}

// ValidVATRate reports whether the rate belongs to the closed set.
func ValidVATRate(rate float64) bool {
	_, ok := validVATRates[rate]
	return ok
}

// Document is one invoice/waybill/voucher header. Money fields are derived
// by the calculator, never entered directly. Counterparty fields are a
// snapshot captured at save time, not live-joined later.
type Document struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	Number        string
	Type          Type
	DocumentDate  time.Time
	DueDate       time.Time
	CariID        uuid.UUID
	CariName      string
	CariTaxNumber string
	CariTaxOffice string
	CariAddress   string
	Notes         string
	Status        string
	PaymentStatus PaymentStatus
	Subtotal      float64
	TotalVAT      float64
	RoundAmount   float64
	GrandTotal    float64
	CreatedAt     time.Time
	Lines         []Line
}

// Line is one item row under a document. The derived fields are persisted
// redundantly but recomputed from the raw inputs as the source of truth.
type Line struct {
	ID           uuid.UUID
	DocumentID   uuid.UUID
	ProductID    uuid.UUID
	Name         string
	Code         string
	Quantity     float64
	Unit         string
	UnitPrice    float64
	DiscountRate float64
	VATRate      float64

	LineTotal        float64
	VATAmount        float64
	LineTotalWithVAT float64

	// SuggestedSalePrice is a sibling value computed only in the AI-assisted
	// purchase flow; it never feeds LineTotal.
	SuggestedSalePrice float64
}

// ValidationError carries a user-facing message raised before any write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// PersistenceError wraps a storage failure during a save. Steps already
// committed before the failure stay committed; the header-then-lines write
// is deliberately not atomic.
type PersistenceError struct {
	Step string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("documents: %s: %v", e.Step, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrNoDocuments indicates no prior document exists for a (tenant, type) pair.
var ErrNoDocuments = errors.New("documents: no documents for tenant and type")

// ErrNumberConflict indicates the allocated document number was taken by a
// concurrent save. The allocator is retried once by Save; the underlying
// race itself is a documented gap, not silently fixed here.
var ErrNumberConflict = errors.New("documents: document number already used")

// ErrNotFound indicates the requested document does not exist.
var ErrNotFound = errors.New("documents: not found")

package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Product statuses.
const (
	StatusActive  = "aktif"
	StatusPassive = "pasif"
)

// Product is one sellable item.
type Product struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	Name          string
	Barcode       string
	Code          string
	Unit          string
	PurchasePrice float64
	SalePrice     float64
	VATRate       float64
	Stock         float64
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PriceChangeLog records one sale price mutation for audit.
type PriceChangeLog struct {
	ProductID    uuid.UUID
	ProductName  string
	OldPrice     float64
	NewPrice     float64
	IncreaseRate float64
	Actor        string
	ChangedAt    time.Time
}

// BulkOpKind enumerates bulk mutation operations.
type BulkOpKind string

const (
	OpPriceIncrease BulkOpKind = "price_increase"
	OpStatusChange  BulkOpKind = "status_change"
	OpStockSet      BulkOpKind = "stock_set"
	OpStockRandom   BulkOpKind = "stock_random"
)

// BulkOp describes what a bulk run does to each selected product.
type BulkOp struct {
	Kind       BulkOpKind
	Percent    float64
	Status     string
	StockValue float64
	StockMin   float64
	StockMax   float64
	Actor      string
}

// Validate checks the op parameters before any work starts.
func (op BulkOp) Validate() error {
	switch op.Kind {
	case OpPriceIncrease:
		// Percent 0 is a valid run: prices stay put but every record is
		// still updated, logged and counted.
		if op.Percent <= -100 {
			return errors.New("catalog: price change percent out of range")
		}
	case OpStatusChange:
		if op.Status != StatusActive && op.Status != StatusPassive {
			return fmt.Errorf("catalog: unknown status %q", op.Status)
		}
	case OpStockSet:
		if op.StockValue < 0 {
			return errors.New("catalog: stock value must not be negative")
		}
	case OpStockRandom:
		if op.StockMin < 0 || op.StockMax < op.StockMin {
			return errors.New("catalog: invalid stock range")
		}
	default:
		return fmt.Errorf("catalog: unknown bulk operation %q", op.Kind)
	}
	return nil
}

// BulkOperationError wraps the first failure of a bulk run with its
// position, so callers can report how far the run got.
type BulkOperationError struct {
	Done  int
	Total int
	Err   error
}

func (e *BulkOperationError) Error() string {
	return fmt.Sprintf("catalog: bulk operation stopped at %d/%d: %v", e.Done, e.Total, e.Err)
}

func (e *BulkOperationError) Unwrap() error { return e.Err }

var (
	ErrProductNotFound   = errors.New("catalog: product not found")
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
	ErrEmptySelection    = errors.New("catalog: no products selected")
)

package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Movement kinds entered directly on an account. Document-driven kinds
// (fatura, borclandirma, iade_faturasi, fiyat_farki_iadesi) arrive through
// AppendMovement carrying the documents package's values.
const (
	KindCollection     = "tahsilat"
	KindPayment        = "odeme"
	KindOpeningBalance = "devir"
)

// Account is a counterparty (cari) the business buys from or sells to.
type Account struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	TaxNumber string
	TaxOffice string
	Address   string
	Phone     string
	Email     string
	CreatedAt time.Time
}

// Movement is one append-only debit/credit row on an account. Rows are
// never updated or deleted; corrections are entered as counter-movements.
type Movement struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	CariID       uuid.UUID
	Kind         string
	Description  string
	Debit        float64
	Credit       float64
	DocumentNo   string
	DocumentType string
	Date         time.Time
	CreatedAt    time.Time
}

// StatementLine is a movement with the running balance after it.
type StatementLine struct {
	Movement
	Balance float64
}

// AccountBalance pairs an account with its current balance
// (sum of debits minus sum of credits).
type AccountBalance struct {
	Account
	Balance float64
}

// DailyTotal aggregates one day's movements.
type DailyTotal struct {
	Date        time.Time
	TotalDebit  float64
	TotalCredit float64
	Count       int
}

var (
	ErrAccountNotFound = errors.New("ledger: account not found")
	ErrEmptyMovement   = errors.New("ledger: movement must carry a debit or a credit")
)

package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/jetpos/jetpos-backoffice/internal/documents"
)

// RepositoryPort defines data access for accounts and movements.
type RepositoryPort interface {
	InsertMovement(ctx context.Context, m Movement) error
	ListMovements(ctx context.Context, tenantID, cariID uuid.UUID, from, to time.Time) ([]Movement, error)
	SumBalance(ctx context.Context, tenantID, cariID uuid.UUID) (float64, error)
	GetAccount(ctx context.Context, tenantID, id uuid.UUID) (*Account, error)
	CreateAccount(ctx context.Context, acc Account, opening float64) (uuid.UUID, error)
	ListAccountsWithBalance(ctx context.Context, tenantID uuid.UUID, search string) ([]AccountBalance, error)
	DailyTotals(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]DailyTotal, error)
}

// Service handles the counterparty ledger.
type Service struct {
	repo     RepositoryPort
	collator *collate.Collator
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{
		repo:     repo,
		collator: collate.New(language.Turkish),
	}
}

// Append validates and appends one movement. Exactly one of debit or
// credit must be set.
func (s *Service) Append(ctx context.Context, m Movement) error {
	if m.Debit == 0 && m.Credit == 0 {
		return ErrEmptyMovement
	}
	if m.Debit != 0 && m.Credit != 0 {
		return ErrEmptyMovement
	}
	if m.Date.IsZero() {
		m.Date = time.Now()
	}
	return s.repo.InsertMovement(ctx, m)
}

// AppendMovement adapts document save side effects onto the ledger,
// satisfying the documents package's ledger port.
func (s *Service) AppendMovement(ctx context.Context, m documents.Movement) error {
	return s.Append(ctx, Movement{
		TenantID:     m.TenantID,
		CariID:       m.CariID,
		Kind:         m.Kind,
		Description:  m.Description,
		Debit:        m.Debit,
		Credit:       m.Credit,
		DocumentNo:   m.DocumentNo,
		DocumentType: string(m.DocumentType),
		Date:         m.Date,
	})
}

// RecordEntry appends a manual collection or payment entry on an account.
// Collections credit the account, payments debit it.
func (s *Service) RecordEntry(ctx context.Context, tenantID, cariID uuid.UUID, kind string, amount float64, description string, date time.Time) error {
	if kind != KindCollection && kind != KindPayment {
		return fmt.Errorf("ledger: unknown movement kind %q", kind)
	}
	if amount <= 0 {
		return ErrEmptyMovement
	}
	if _, err := s.repo.GetAccount(ctx, tenantID, cariID); err != nil {
		return err
	}
	m := Movement{
		TenantID:    tenantID,
		CariID:      cariID,
		Kind:        kind,
		Description: description,
		Date:        date,
	}
	if kind == KindCollection {
		m.Credit = amount
	} else {
		m.Debit = amount
	}
	return s.Append(ctx, m)
}

// BalanceOf returns an account's current balance. Positive means the
// counterparty owes the business.
func (s *Service) BalanceOf(ctx context.Context, tenantID, cariID uuid.UUID) (float64, error) {
	if _, err := s.repo.GetAccount(ctx, tenantID, cariID); err != nil {
		return 0, err
	}
	return s.repo.SumBalance(ctx, tenantID, cariID)
}

// StatementOf returns an account's movements with a running balance.
func (s *Service) StatementOf(ctx context.Context, tenantID, cariID uuid.UUID, from, to time.Time) ([]StatementLine, error) {
	if _, err := s.repo.GetAccount(ctx, tenantID, cariID); err != nil {
		return nil, err
	}
	movements, err := s.repo.ListMovements(ctx, tenantID, cariID, from, to)
	if err != nil {
		return nil, err
	}
	lines := make([]StatementLine, 0, len(movements))
	var balance float64
	for _, m := range movements {
		balance += m.Debit - m.Credit
		lines = append(lines, StatementLine{Movement: m, Balance: balance})
	}
	return lines, nil
}

// ListAccounts returns accounts matching the search term (name or tax
// number; empty matches all) with their balances, ordered by name using
// Turkish collation so İ, Ş, Ç and friends sort where a Turkish reader
// expects them.
func (s *Service) ListAccounts(ctx context.Context, tenantID uuid.UUID, search string) ([]AccountBalance, error) {
	accounts, err := s.repo.ListAccountsWithBalance(ctx, tenantID, search)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		return s.collator.CompareString(accounts[i].Name, accounts[j].Name) < 0
	})
	return accounts, nil
}

// CreateAccount registers a new counterparty, with an optional opening
// balance (positive debits the account, negative credits it).
func (s *Service) CreateAccount(ctx context.Context, acc Account, opening float64) (uuid.UUID, error) {
	if acc.Name == "" {
		return uuid.Nil, fmt.Errorf("ledger: account name required")
	}
	return s.repo.CreateAccount(ctx, acc, opening)
}

// DailyReport aggregates movement totals per day.
func (s *Service) DailyReport(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]DailyTotal, error) {
	return s.repo.DailyTotals(ctx, tenantID, from, to)
}

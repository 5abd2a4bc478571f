package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jetpos/jetpos-backoffice/internal/platform/db"
)

// Repository persists accounts and movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertMovement appends one movement row.
func (r *Repository) InsertMovement(ctx context.Context, m Movement) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO cari_movements
(tenant_id, cari_id, kind, description, debit, credit, document_no, document_type, movement_date, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())`,
		m.TenantID, m.CariID, m.Kind, m.Description, m.Debit, m.Credit,
		m.DocumentNo, m.DocumentType, m.Date,
	)
	return err
}

// ListMovements returns an account's movements in chronological order,
// optionally bounded by an inclusive date range.
func (r *Repository) ListMovements(ctx context.Context, tenantID, cariID uuid.UUID, from, to time.Time) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, cari_id, kind, description, debit, credit, document_no, document_type, movement_date, created_at
FROM cari_movements
WHERE tenant_id=$1 AND cari_id=$2 AND movement_date BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')
ORDER BY movement_date, created_at`,
		tenantID, cariID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.TenantID, &m.CariID, &m.Kind, &m.Description,
			&m.Debit, &m.Credit, &m.DocumentNo, &m.DocumentType, &m.Date, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// SumBalance returns sum(debit)-sum(credit) for an account.
func (r *Repository) SumBalance(ctx context.Context, tenantID, cariID uuid.UUID) (float64, error) {
	var balance float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(debit)-SUM(credit), 0)
FROM cari_movements WHERE tenant_id=$1 AND cari_id=$2`, tenantID, cariID).Scan(&balance)
	return balance, err
}

// GetAccount loads one account.
func (r *Repository) GetAccount(ctx context.Context, tenantID, id uuid.UUID) (*Account, error) {
	var acc Account
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, name, tax_number, tax_office, address, phone, email, created_at
FROM cari_accounts WHERE tenant_id=$1 AND id=$2`, tenantID, id).Scan(
		&acc.ID, &acc.TenantID, &acc.Name, &acc.TaxNumber, &acc.TaxOffice,
		&acc.Address, &acc.Phone, &acc.Email, &acc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// CreateAccount inserts an account and returns its id. A non-zero opening
// balance writes the opening 'devir' movement in the same transaction, so
// an account can never exist with half its opening state.
func (r *Repository) CreateAccount(ctx context.Context, acc Account, opening float64) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO cari_accounts
(tenant_id, name, tax_number, tax_office, address, phone, email, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
RETURNING id`,
			acc.TenantID, acc.Name, acc.TaxNumber, acc.TaxOffice, acc.Address, acc.Phone, acc.Email,
		).Scan(&id); err != nil {
			return err
		}
		if opening == 0 {
			return nil
		}
		debit, credit := opening, 0.0
		if opening < 0 {
			debit, credit = 0, -opening
		}
		_, err := tx.Exec(ctx, `INSERT INTO cari_movements
(tenant_id, cari_id, kind, description, debit, credit, document_no, document_type, movement_date, created_at)
VALUES ($1,$2,$3,$4,$5,$6,'','',NOW(),NOW())`,
			acc.TenantID, id, KindOpeningBalance, "Açılış bakiyesi", debit, credit)
		return err
	})
	return id, err
}

// ListAccountsWithBalance returns every account with its current balance.
// Ordering is applied in the service layer so Turkish names collate
// correctly; SQL ORDER BY depends on the database locale.
func (r *Repository) ListAccountsWithBalance(ctx context.Context, tenantID uuid.UUID, search string) ([]AccountBalance, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.tenant_id, a.name, a.tax_number, a.tax_office, a.address, a.phone, a.email, a.created_at,
COALESCE(SUM(m.debit)-SUM(m.credit), 0) AS balance
FROM cari_accounts a
LEFT JOIN cari_movements m ON m.cari_id = a.id AND m.tenant_id = a.tenant_id
WHERE a.tenant_id=$1 AND ($2='' OR a.name ILIKE '%'||$2||'%' OR a.tax_number LIKE '%'||$2||'%')
GROUP BY a.id, a.tenant_id, a.name, a.tax_number, a.tax_office, a.address, a.phone, a.email, a.created_at`,
		tenantID, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	accounts := []AccountBalance{}
	for rows.Next() {
		var ab AccountBalance
		if err := rows.Scan(&ab.ID, &ab.TenantID, &ab.Name, &ab.TaxNumber, &ab.TaxOffice,
			&ab.Address, &ab.Phone, &ab.Email, &ab.CreatedAt, &ab.Balance); err != nil {
			return nil, err
		}
		accounts = append(accounts, ab)
	}
	return accounts, rows.Err()
}

// DailyTotals aggregates movements per day over a range.
func (r *Repository) DailyTotals(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]DailyTotal, error) {
	rows, err := r.pool.Query(ctx, `SELECT movement_date::date, COALESCE(SUM(debit),0), COALESCE(SUM(credit),0), COUNT(*)
FROM cari_movements
WHERE tenant_id=$1 AND movement_date BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')
GROUP BY movement_date::date
ORDER BY movement_date::date`,
		tenantID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	totals := []DailyTotal{}
	for rows.Next() {
		var d DailyTotal
		if err := rows.Scan(&d.Date, &d.TotalDebit, &d.TotalCredit, &d.Count); err != nil {
			return nil, err
		}
		totals = append(totals, d)
	}
	return totals, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

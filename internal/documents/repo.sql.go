package documents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists documents in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LatestNumber returns the most recently created document number for the
// (tenant, type) pair, ordered by creation time descending.
func (r *Repository) LatestNumber(ctx context.Context, tenantID uuid.UUID, docType Type) (string, error) {
	var number string
	err := r.pool.QueryRow(ctx, `SELECT number FROM documents WHERE tenant_id=$1 AND doc_type=$2 ORDER BY created_at DESC LIMIT 1`, tenantID, string(docType)).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoDocuments
	}
	if err != nil {
		return "", err
	}
	return number, nil
}

// InsertDocument inserts one header row and returns its generated id.
func (r *Repository) InsertDocument(ctx context.Context, doc Document) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `INSERT INTO documents
(tenant_id, number, doc_type, document_date, due_date, cari_id, cari_name, cari_tax_number, cari_tax_office, cari_address, notes, status, payment_status, subtotal, total_vat, round_amount, grand_total, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,NOW())
RETURNING id`,
		doc.TenantID, doc.Number, string(doc.Type), doc.DocumentDate, nullTime(doc.DueDate),
		doc.CariID, doc.CariName, doc.CariTaxNumber, doc.CariTaxOffice, doc.CariAddress,
		doc.Notes, doc.Status, string(doc.PaymentStatus),
		doc.Subtotal, doc.TotalVAT, doc.RoundAmount, doc.GrandTotal,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return uuid.Nil, ErrNumberConflict
		}
		return uuid.Nil, err
	}
	return id, nil
}

// InsertLines inserts the line rows referencing the header, one insert per
// line in order. A failure leaves earlier lines committed; the workflow
// deliberately does not wrap the two-step write in a transaction.
func (r *Repository) InsertLines(ctx context.Context, tenantID, docID uuid.UUID, lines []Line) error {
	for _, line := range lines {
		if _, err := r.pool.Exec(ctx, `INSERT INTO document_lines
(tenant_id, document_id, product_id, name, code, quantity, unit, unit_price, discount_rate, vat_rate, line_total, vat_amount, line_total_with_vat)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			tenantID, docID, nullUUID(line.ProductID), line.Name, line.Code,
			line.Quantity, line.Unit, line.UnitPrice, line.DiscountRate, line.VATRate,
			line.LineTotal, line.VATAmount, line.LineTotalWithVAT,
		); err != nil {
			return err
		}
	}
	return nil
}

// GetDocument loads a header and its lines.
func (r *Repository) GetDocument(ctx context.Context, tenantID, id uuid.UUID) (*Document, error) {
	var doc Document
	var dueDate *time.Time
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, number, doc_type, document_date, due_date, cari_id, cari_name, cari_tax_number, cari_tax_office, cari_address, notes, status, payment_status, subtotal, total_vat, round_amount, grand_total, created_at
FROM documents WHERE tenant_id=$1 AND id=$2`, tenantID, id).Scan(
		&doc.ID, &doc.TenantID, &doc.Number, &doc.Type, &doc.DocumentDate, &dueDate,
		&doc.CariID, &doc.CariName, &doc.CariTaxNumber, &doc.CariTaxOffice, &doc.CariAddress,
		&doc.Notes, &doc.Status, &doc.PaymentStatus,
		&doc.Subtotal, &doc.TotalVAT, &doc.RoundAmount, &doc.GrandTotal, &doc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if dueDate != nil {
		doc.DueDate = *dueDate
	}
	rows, err := r.pool.Query(ctx, `SELECT id, document_id, product_id, name, code, quantity, unit, unit_price, discount_rate, vat_rate, line_total, vat_amount, line_total_with_vat
FROM document_lines WHERE tenant_id=$1 AND document_id=$2 ORDER BY id`, tenantID, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		var productID *uuid.UUID
		if err := rows.Scan(&line.ID, &line.DocumentID, &productID, &line.Name, &line.Code,
			&line.Quantity, &line.Unit, &line.UnitPrice, &line.DiscountRate, &line.VATRate,
			&line.LineTotal, &line.VATAmount, &line.LineTotalWithVAT); err != nil {
			return nil, err
		}
		if productID != nil {
			line.ProductID = *productID
		}
		doc.Lines = append(doc.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns headers matching the filter plus the total count.
func (r *Repository) ListDocuments(ctx context.Context, filter ListFilter) ([]Document, int, error) {
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * perPage

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents
WHERE tenant_id=$1 AND ($2='' OR doc_type=$2) AND document_date BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')`,
		filter.TenantID, string(filter.Type), nullTime(filter.From), nullTime(filter.To)).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, number, doc_type, document_date, cari_id, cari_name, status, payment_status, subtotal, total_vat, round_amount, grand_total, created_at
FROM documents
WHERE tenant_id=$1 AND ($2='' OR doc_type=$2) AND document_date BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')
ORDER BY created_at DESC
LIMIT $5 OFFSET $6`,
		filter.TenantID, string(filter.Type), nullTime(filter.From), nullTime(filter.To), perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	docs := []Document{}
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.TenantID, &doc.Number, &doc.Type, &doc.DocumentDate,
			&doc.CariID, &doc.CariName, &doc.Status, &doc.PaymentStatus,
			&doc.Subtotal, &doc.TotalVAT, &doc.RoundAmount, &doc.GrandTotal, &doc.CreatedAt); err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// UpdatePaymentStatus sets the payment status of a document.
func (r *Repository) UpdatePaymentStatus(ctx context.Context, tenantID, id uuid.UUID, status PaymentStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE documents SET payment_status=$3 WHERE tenant_id=$1 AND id=$2`, tenantID, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkInvoiced transitions a sale document to its invoiced state.
func (r *Repository) MarkInvoiced(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE documents SET status='invoiced' WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

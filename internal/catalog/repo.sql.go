package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists products in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, tenant_id, name, barcode, code, unit, purchase_price, sale_price, vat_rate, stock, status, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Barcode, &p.Code, &p.Unit,
		&p.PurchasePrice, &p.SalePrice, &p.VATRate, &p.Stock, &p.Status,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetProduct loads one product.
func (r *Repository) GetProduct(ctx context.Context, tenantID, id uuid.UUID) (*Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE tenant_id=$1 AND id=$2`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProducts returns active products matching the search term on name,
// barcode or code.
func (r *Repository) ListProducts(ctx context.Context, tenantID uuid.UUID, search string) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products
WHERE tenant_id=$1 AND status=$2
AND ($3='' OR name ILIKE '%'||$3||'%' OR barcode LIKE '%'||$3||'%' OR code LIKE '%'||$3||'%')
ORDER BY name`,
		tenantID, StatusActive, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ListByIDs loads the selected products in the order given.
func (r *Repository) ListByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products
WHERE tenant_id=$1 AND id = ANY($2)`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byID := make(map[uuid.UUID]Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

// ApplyPurchase adds purchased quantity to stock and overwrites the
// purchase price; a non-zero suggested sale price also overwrites the
// sale price.
func (r *Repository) ApplyPurchase(ctx context.Context, tenantID, productID uuid.UUID, qty, purchasePrice, suggestedSalePrice float64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products
SET stock = stock + $3,
    purchase_price = $4,
    sale_price = CASE WHEN $5 > 0 THEN $5 ELSE sale_price END,
    updated_at = NOW()
WHERE tenant_id=$1 AND id=$2`,
		tenantID, productID, qty, purchasePrice, suggestedSalePrice)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// IncrementStock adds quantity to stock.
func (r *Repository) IncrementStock(ctx context.Context, tenantID, productID uuid.UUID, qty float64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET stock = stock + $3, updated_at = NOW() WHERE tenant_id=$1 AND id=$2`,
		tenantID, productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DecrementStock calls the decrement_stock routine, the only atomic
// stock mutation; it refuses to take stock below zero.
func (r *Repository) DecrementStock(ctx context.Context, tenantID, productID uuid.UUID, qty float64) error {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT decrement_stock($1, $2, $3)`, tenantID, productID, qty).Scan(&ok)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientStock
	}
	return nil
}

// UpdateStatusBatch flips the status of a whole id set in one statement.
func (r *Repository) UpdateStatusBatch(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE products SET status=$3, updated_at=NOW() WHERE tenant_id=$1 AND id = ANY($2)`,
		tenantID, ids, status)
	return err
}

// SetStockBatch sets the stock of a whole id set in one statement.
func (r *Repository) SetStockBatch(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, stock float64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE products SET stock=$3, updated_at=NOW() WHERE tenant_id=$1 AND id = ANY($2)`,
		tenantID, ids, stock)
	return err
}

// SetStock sets one product's stock.
func (r *Repository) SetStock(ctx context.Context, tenantID, productID uuid.UUID, stock float64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET stock=$3, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`,
		tenantID, productID, stock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// UpdateSalePrice sets one product's sale price.
func (r *Repository) UpdateSalePrice(ctx context.Context, tenantID, productID uuid.UUID, price float64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET sale_price=$3, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`,
		tenantID, productID, price)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// InsertPriceChangeLog appends one price audit row.
func (r *Repository) InsertPriceChangeLog(ctx context.Context, tenantID uuid.UUID, log PriceChangeLog) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO price_change_logs
(tenant_id, product_id, product_name, old_price, new_price, increase_rate, actor, changed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())`,
		tenantID, log.ProductID, log.ProductName, log.OldPrice, log.NewPrice, log.IncreaseRate, log.Actor)
	return err
}

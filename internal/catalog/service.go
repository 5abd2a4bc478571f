package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jetpos/jetpos-backoffice/internal/documents"
	"github.com/jetpos/jetpos-backoffice/internal/shared"
)

// RepositoryPort defines data access for products.
type RepositoryPort interface {
	GetProduct(ctx context.Context, tenantID, id uuid.UUID) (*Product, error)
	ListProducts(ctx context.Context, tenantID uuid.UUID, search string) ([]Product, error)
	ListByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Product, error)
	ApplyPurchase(ctx context.Context, tenantID, productID uuid.UUID, qty, purchasePrice, suggestedSalePrice float64) error
	IncrementStock(ctx context.Context, tenantID, productID uuid.UUID, qty float64) error
	DecrementStock(ctx context.Context, tenantID, productID uuid.UUID, qty float64) error
	UpdateStatusBatch(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, status string) error
	SetStockBatch(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, stock float64) error
	SetStock(ctx context.Context, tenantID, productID uuid.UUID, stock float64) error
	UpdateSalePrice(ctx context.Context, tenantID, productID uuid.UUID, price float64) error
	InsertPriceChangeLog(ctx context.Context, tenantID uuid.UUID, log PriceChangeLog) error
}

const lookupTTL = time.Minute

// Service handles the product catalog, including the stock side effects
// of document saves and the bulk mutator.
type Service struct {
	repo   RepositoryPort
	cache  *redis.Client
	logger *slog.Logger

	batchSize  int
	batchPause time.Duration
	unitPause  time.Duration
}

// NewService builds Service. The cache client is optional; nil disables
// lookup caching.
func NewService(repo RepositoryPort, cache *redis.Client, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		cache:      cache,
		logger:     logger,
		batchSize:  50,
		batchPause: 100 * time.Millisecond,
		unitPause:  20 * time.Millisecond,
	}
}

// SetBulkTuning overrides the bulk mutator batch size and pauses.
func (s *Service) SetBulkTuning(batchSize int, batchPause, unitPause time.Duration) {
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	s.batchPause = batchPause
	s.unitPause = unitPause
}

// Get loads one product.
func (s *Service) Get(ctx context.Context, tenant shared.Tenant, id uuid.UUID) (*Product, error) {
	return s.repo.GetProduct(ctx, tenant.ID, id)
}

// List returns active products matching the search term.
func (s *Service) List(ctx context.Context, tenant shared.Tenant, search string) ([]Product, error) {
	return s.repo.ListProducts(ctx, tenant.ID, search)
}

// ProductOptions returns the pick-list the document form mounts with.
// The unfiltered list is cached briefly; any product mutation drops it.
func (s *Service) ProductOptions(ctx context.Context, tenant shared.Tenant, search string) ([]documents.ProductOption, error) {
	key := lookupKey(tenant.ID)
	if s.cache != nil && search == "" {
		if raw, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var options []documents.ProductOption
			if err := json.Unmarshal(raw, &options); err == nil {
				return options, nil
			}
		}
	}
	products, err := s.repo.ListProducts(ctx, tenant.ID, search)
	if err != nil {
		return nil, err
	}
	options := make([]documents.ProductOption, 0, len(products))
	for _, p := range products {
		options = append(options, documents.ProductOption{
			ID:            p.ID,
			Name:          p.Name,
			Barcode:       p.Barcode,
			PurchasePrice: p.PurchasePrice,
			SalePrice:     p.SalePrice,
			VATRate:       p.VATRate,
		})
	}
	if s.cache != nil && search == "" {
		if raw, err := json.Marshal(options); err == nil {
			if err := s.cache.Set(ctx, key, raw, lookupTTL).Err(); err != nil {
				s.logger.Warn("lookup cache set failed", slog.Any("error", err))
			}
		}
	}
	return options, nil
}

// ApplyPurchase restocks a purchased product and refreshes its prices.
func (s *Service) ApplyPurchase(ctx context.Context, tenantID, productID uuid.UUID, qty, purchasePrice, suggestedSalePrice float64) error {
	if err := s.repo.ApplyPurchase(ctx, tenantID, productID, qty, purchasePrice, suggestedSalePrice); err != nil {
		return err
	}
	s.invalidateLookups(ctx, tenantID)
	return nil
}

// Increment adds quantity to a product's stock.
func (s *Service) Increment(ctx context.Context, tenantID, productID uuid.UUID, qty float64) error {
	if err := s.repo.IncrementStock(ctx, tenantID, productID, qty); err != nil {
		return err
	}
	s.invalidateLookups(ctx, tenantID)
	return nil
}

// Decrement removes quantity from a product's stock atomically.
func (s *Service) Decrement(ctx context.Context, tenantID, productID uuid.UUID, qty float64) error {
	if err := s.repo.DecrementStock(ctx, tenantID, productID, qty); err != nil {
		return err
	}
	s.invalidateLookups(ctx, tenantID)
	return nil
}

func (s *Service) invalidateLookups(ctx context.Context, tenantID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, lookupKey(tenantID)).Err(); err != nil {
		s.logger.Warn("lookup cache invalidation failed", slog.Any("error", err))
	}
}

func lookupKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("lookup:products:%s", tenantID)
}

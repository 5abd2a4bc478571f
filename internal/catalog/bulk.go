package catalog

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/jetpos/jetpos-backoffice/internal/shared"
)

// ProgressFunc reports bulk progress as the count of attempted records
// over the total selection.
type ProgressFunc func(done, total int)

// ApplyBulk mutates the selected products in batches. Fixed stock and
// status run one statement per batch; price increase and random stock run
// record by record because each row needs its own value. Cancellation is
// cooperative: ctx is checked before every unit of work and the unit in
// flight always completes. The first mutation error aborts the remainder;
// batches already written stay written.
func (s *Service) ApplyBulk(ctx context.Context, tenant shared.Tenant, ids []uuid.UUID, op BulkOp, onProgress ProgressFunc) error {
	if err := op.Validate(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return ErrEmptySelection
	}
	if onProgress == nil {
		onProgress = func(int, int) {}
	}

	total := len(ids)
	done := 0
	for start := 0; start < total; start += s.batchSize {
		end := start + s.batchSize
		if end > total {
			end = total
		}
		batch := ids[start:end]

		var err error
		switch op.Kind {
		case OpStatusChange, OpStockSet:
			done, err = s.applyBatch(ctx, tenant, batch, op, done, total, onProgress)
		case OpPriceIncrease, OpStockRandom:
			done, err = s.applyPerRecord(ctx, tenant, batch, op, done, total, onProgress)
		}
		if err != nil {
			s.invalidateLookups(ctx, tenant.ID)
			return &BulkOperationError{Done: done, Total: total, Err: err}
		}

		if end < total {
			if err := sleep(ctx, s.batchPause); err != nil {
				s.invalidateLookups(ctx, tenant.ID)
				return &BulkOperationError{Done: done, Total: total, Err: err}
			}
		}
	}

	s.invalidateLookups(ctx, tenant.ID)
	return nil
}

// applyBatch mutates a whole batch with a single statement. The batch is
// the unit of work for cancellation and progress.
func (s *Service) applyBatch(ctx context.Context, tenant shared.Tenant, batch []uuid.UUID, op BulkOp, done, total int, onProgress ProgressFunc) (int, error) {
	if err := ctx.Err(); err != nil {
		return done, err
	}
	var err error
	switch op.Kind {
	case OpStatusChange:
		err = s.repo.UpdateStatusBatch(ctx, tenant.ID, batch, op.Status)
	case OpStockSet:
		err = s.repo.SetStockBatch(ctx, tenant.ID, batch, op.StockValue)
	}
	if err != nil {
		return done, err
	}
	done += len(batch)
	onProgress(done, total)
	return done, nil
}

// applyPerRecord mutates one product at a time. Each record is the unit
// of work for cancellation and progress.
func (s *Service) applyPerRecord(ctx context.Context, tenant shared.Tenant, batch []uuid.UUID, op BulkOp, done, total int, onProgress ProgressFunc) (int, error) {
	products, err := s.repo.ListByIDs(ctx, tenant.ID, batch)
	if err != nil {
		return done, err
	}
	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		switch op.Kind {
		case OpPriceIncrease:
			err = s.increasePrice(ctx, tenant, p, op)
		case OpStockRandom:
			err = s.repo.SetStock(ctx, tenant.ID, p.ID, randomStock(op.StockMin, op.StockMax))
			if err == nil && s.unitPause > 0 {
				err = sleep(ctx, s.unitPause)
			}
		}
		if err != nil {
			return done, err
		}
		done++
		onProgress(done, total)
	}
	return done, nil
}

// increasePrice raises one product's sale price by the op percentage and
// writes a price_change_logs row. The audit write is best effort; a
// failure there must not stop the run.
func (s *Service) increasePrice(ctx context.Context, tenant shared.Tenant, p Product, op BulkOp) error {
	newPrice := shared.Round2(p.SalePrice * (1 + op.Percent/100))
	if err := s.repo.UpdateSalePrice(ctx, tenant.ID, p.ID, newPrice); err != nil {
		return err
	}
	if err := s.repo.InsertPriceChangeLog(ctx, tenant.ID, PriceChangeLog{
		ProductID:    p.ID,
		ProductName:  p.Name,
		OldPrice:     p.SalePrice,
		NewPrice:     newPrice,
		IncreaseRate: op.Percent,
		Actor:        op.Actor,
	}); err != nil {
		s.logger.Warn("price change log failed",
			slog.String("product_id", p.ID.String()), slog.Any("error", err))
	}
	return nil
}

func randomStock(min, max float64) float64 {
	if max <= min {
		return min
	}
	return math.Round(min + rand.Float64()*(max-min))
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

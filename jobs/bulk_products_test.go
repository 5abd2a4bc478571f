package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetpos/jetpos-backoffice/internal/catalog"
	"github.com/jetpos/jetpos-backoffice/internal/shared"
)

type memoryProductRepo struct {
	products map[uuid.UUID]*catalog.Product
}

func newMemoryProductRepo(n int) (*memoryProductRepo, []uuid.UUID) {
	repo := &memoryProductRepo{products: map[uuid.UUID]*catalog.Product{}}
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		id := uuid.New()
		repo.products[id] = &catalog.Product{ID: id, Name: "Ürün", SalePrice: 100, Stock: 10, Status: catalog.StatusActive}
		ids = append(ids, id)
	}
	return repo, ids
}

func (m *memoryProductRepo) GetProduct(ctx context.Context, tenantID, id uuid.UUID) (*catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return p, nil
}

func (m *memoryProductRepo) ListProducts(ctx context.Context, tenantID uuid.UUID, search string) ([]catalog.Product, error) {
	out := []catalog.Product{}
	for _, p := range m.products {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memoryProductRepo) ListByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]catalog.Product, error) {
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memoryProductRepo) ApplyPurchase(ctx context.Context, tenantID, productID uuid.UUID, qty, purchasePrice, suggestedSalePrice float64) error {
	return nil
}

func (m *memoryProductRepo) IncrementStock(ctx context.Context, tenantID, productID uuid.UUID, qty float64) error {
	return nil
}

func (m *memoryProductRepo) DecrementStock(ctx context.Context, tenantID, productID uuid.UUID, qty float64) error {
	return nil
}

func (m *memoryProductRepo) UpdateStatusBatch(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, status string) error {
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			p.Status = status
		}
	}
	return nil
}

func (m *memoryProductRepo) SetStockBatch(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, stock float64) error {
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			p.Stock = stock
		}
	}
	return nil
}

func (m *memoryProductRepo) SetStock(ctx context.Context, tenantID, productID uuid.UUID, stock float64) error {
	p, ok := m.products[productID]
	if !ok {
		return catalog.ErrProductNotFound
	}
	p.Stock = stock
	return nil
}

func (m *memoryProductRepo) UpdateSalePrice(ctx context.Context, tenantID, productID uuid.UUID, price float64) error {
	p, ok := m.products[productID]
	if !ok {
		return catalog.ErrProductNotFound
	}
	p.SalePrice = price
	return nil
}

func (m *memoryProductRepo) InsertPriceChangeLog(ctx context.Context, tenantID uuid.UUID, log catalog.PriceChangeLog) error {
	return nil
}

func newTestRunner(t *testing.T, repo catalog.RepositoryPort) (*BulkRunner, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := catalog.NewService(repo, nil, logger)
	svc.SetBulkTuning(50, 0, 0)
	return NewBulkRunner(nil, cache, svc, logger), cache
}

func newTask(raw []byte) *asynq.Task {
	return asynq.NewTask(TaskBulkUpdate, raw)
}

func taskFor(t *testing.T, tenant shared.Tenant, ids []uuid.UUID, op catalog.BulkOp) (*BulkUpdatePayload, []byte) {
	t.Helper()
	payload := BulkUpdatePayload{
		JobID:      uuid.New(),
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		ProductIDs: ids,
		Op:         op,
	}
	task, err := NewBulkUpdateTask(payload)
	require.NoError(t, err)
	return &payload, task.Payload()
}

func TestHandleBulkUpdateCompletes(t *testing.T) {
	repo, ids := newMemoryProductRepo(120)
	runner, _ := newTestRunner(t, repo)
	tenant := shared.Tenant{ID: uuid.New(), Name: "Test Market"}

	payload, raw := taskFor(t, tenant, ids, catalog.BulkOp{Kind: catalog.OpStatusChange, Status: catalog.StatusPassive})
	err := runner.Handle(context.Background(), newTask(raw))
	require.NoError(t, err)

	progress, err := runner.Progress(context.Background(), payload.JobID.String())
	require.NoError(t, err)
	assert.Equal(t, catalog.BulkStateDone, progress.State)
	assert.Equal(t, 120, progress.Done)
	assert.Equal(t, 120, progress.Total)
	for _, p := range repo.products {
		assert.Equal(t, catalog.StatusPassive, p.Status)
	}
}

func TestHandleBulkUpdateReportsFailure(t *testing.T) {
	repo, ids := newMemoryProductRepo(3)
	runner, _ := newTestRunner(t, repo)
	tenant := shared.Tenant{ID: uuid.New()}

	payload, raw := taskFor(t, tenant, ids, catalog.BulkOp{Kind: catalog.OpStockRandom, StockMin: 5, StockMax: 1})
	err := runner.Handle(context.Background(), newTask(raw))
	require.Error(t, err)

	progress, progressErr := runner.Progress(context.Background(), payload.JobID.String())
	require.NoError(t, progressErr)
	assert.Equal(t, catalog.BulkStateFailed, progress.State)
	assert.NotEmpty(t, progress.Error)
}

func TestCancelFlagStopsRun(t *testing.T) {
	repo, ids := newMemoryProductRepo(100)
	runner, cache := newTestRunner(t, repo)
	tenant := shared.Tenant{ID: uuid.New()}

	payload, raw := taskFor(t, tenant, ids, catalog.BulkOp{Kind: catalog.OpPriceIncrease, Percent: 10})
	require.NoError(t, cache.Set(context.Background(), cancelKey(payload.JobID.String()), "1", time.Minute).Err())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runner.Handle(ctx, newTask(raw))
	require.NoError(t, err, "cancellation is a clean stop, not a task failure")

	progress, err := runner.Progress(context.Background(), payload.JobID.String())
	require.NoError(t, err)
	assert.Equal(t, catalog.BulkStateCancelled, progress.State)
}

func TestEnqueueWritesInitialSnapshotThenCancel(t *testing.T) {
	runner, cache := newTestRunner(t, &memoryProductRepo{products: map[uuid.UUID]*catalog.Product{}})
	jobID := uuid.New().String()
	require.NoError(t, runner.writeProgress(context.Background(), catalog.BulkProgress{
		JobID: jobID,
		Total: 10,
		State: catalog.BulkStateRunning,
	}))

	progress, err := runner.Progress(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, catalog.BulkStateRunning, progress.State)
	assert.Equal(t, 10, progress.Total)

	require.NoError(t, runner.Cancel(context.Background(), jobID))
	exists, err := cache.Exists(context.Background(), cancelKey(jobID)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func TestProgressUnknownJob(t *testing.T) {
	runner, _ := newTestRunner(t, &memoryProductRepo{products: map[uuid.UUID]*catalog.Product{}})

	_, err := runner.Progress(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, catalog.ErrJobNotFound)
}

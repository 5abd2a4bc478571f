package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetpos/jetpos-backoffice/internal/documents"
)

type fakeRepo struct {
	accounts  map[uuid.UUID]*Account
	movements []Movement
	balances  []AccountBalance
	daily     []DailyTotal
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{accounts: map[uuid.UUID]*Account{}}
}

func (f *fakeRepo) InsertMovement(ctx context.Context, m Movement) error {
	f.movements = append(f.movements, m)
	return nil
}

func (f *fakeRepo) ListMovements(ctx context.Context, tenantID, cariID uuid.UUID, from, to time.Time) ([]Movement, error) {
	out := []Movement{}
	for _, m := range f.movements {
		if m.CariID == cariID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRepo) SumBalance(ctx context.Context, tenantID, cariID uuid.UUID) (float64, error) {
	var balance float64
	for _, m := range f.movements {
		if m.CariID == cariID {
			balance += m.Debit - m.Credit
		}
	}
	return balance, nil
}

func (f *fakeRepo) GetAccount(ctx context.Context, tenantID, id uuid.UUID) (*Account, error) {
	acc, ok := f.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

func (f *fakeRepo) CreateAccount(ctx context.Context, acc Account, opening float64) (uuid.UUID, error) {
	id := uuid.New()
	acc.ID = id
	f.accounts[id] = &acc
	if opening != 0 {
		m := Movement{CariID: id, Kind: KindOpeningBalance, Debit: opening}
		if opening < 0 {
			m.Debit, m.Credit = 0, -opening
		}
		f.movements = append(f.movements, m)
	}
	return id, nil
}

func (f *fakeRepo) ListAccountsWithBalance(ctx context.Context, tenantID uuid.UUID, search string) ([]AccountBalance, error) {
	return f.balances, nil
}

func (f *fakeRepo) DailyTotals(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]DailyTotal, error) {
	return f.daily, nil
}

func seedAccount(t *testing.T, repo *fakeRepo, name string) uuid.UUID {
	t.Helper()
	id, err := repo.CreateAccount(context.Background(), Account{Name: name}, 0)
	require.NoError(t, err)
	return id
}

func TestAppendRequiresOneSide(t *testing.T) {
	svc := NewService(newFakeRepo())

	err := svc.Append(context.Background(), Movement{Kind: documents.MovementInvoice})
	assert.ErrorIs(t, err, ErrEmptyMovement)

	err = svc.Append(context.Background(), Movement{Kind: documents.MovementInvoice, Debit: 10, Credit: 10})
	assert.ErrorIs(t, err, ErrEmptyMovement)
}

func TestAppendDefaultsDate(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	err := svc.Append(context.Background(), Movement{Kind: documents.MovementInvoice, Debit: 100})
	require.NoError(t, err)
	require.Len(t, repo.movements, 1)
	assert.False(t, repo.movements[0].Date.IsZero())
}

func TestAppendMovementAdaptsDocumentSideEffect(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	err := svc.AppendMovement(context.Background(), documents.Movement{
		TenantID:     uuid.New(),
		CariID:       uuid.New(),
		Kind:         "iade_faturasi",
		Credit:       165,
		DocumentNo:   "IAD00000001",
		DocumentType: documents.TypeSalesReturn,
		Date:         time.Now(),
	})
	require.NoError(t, err)
	require.Len(t, repo.movements, 1)
	assert.Equal(t, 165.00, repo.movements[0].Credit)
	assert.Equal(t, "iade", repo.movements[0].DocumentType)
}

func TestRecordEntrySigns(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	cariID := seedAccount(t, repo, "ABC Gıda")

	require.NoError(t, svc.RecordEntry(context.Background(), uuid.Nil, cariID, KindCollection, 100, "nakit tahsilat", time.Now()))
	require.NoError(t, svc.RecordEntry(context.Background(), uuid.Nil, cariID, KindPayment, 40, "havale", time.Now()))

	require.Len(t, repo.movements, 2)
	assert.Equal(t, 100.00, repo.movements[0].Credit)
	assert.Zero(t, repo.movements[0].Debit)
	assert.Equal(t, 40.00, repo.movements[1].Debit)
	assert.Zero(t, repo.movements[1].Credit)
}

func TestRecordEntryRejectsBadInput(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	cariID := seedAccount(t, repo, "ABC Gıda")

	err := svc.RecordEntry(context.Background(), uuid.Nil, cariID, "devir", 100, "", time.Now())
	assert.Error(t, err, "only collection and payment kinds can be entered directly")

	err = svc.RecordEntry(context.Background(), uuid.Nil, cariID, KindCollection, 0, "", time.Now())
	assert.ErrorIs(t, err, ErrEmptyMovement)

	err = svc.RecordEntry(context.Background(), uuid.Nil, uuid.New(), KindCollection, 100, "", time.Now())
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.Empty(t, repo.movements)
}

func TestBalanceOf(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	cariID := seedAccount(t, repo, "ABC Gıda")

	require.NoError(t, svc.Append(context.Background(), Movement{CariID: cariID, Kind: documents.MovementInvoice, Debit: 216}))
	require.NoError(t, svc.Append(context.Background(), Movement{CariID: cariID, Kind: KindCollection, Credit: 100}))

	balance, err := svc.BalanceOf(context.Background(), uuid.Nil, cariID)
	require.NoError(t, err)
	assert.Equal(t, 116.00, balance)
}

func TestBalanceOfUnknownAccount(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.BalanceOf(context.Background(), uuid.Nil, uuid.New())
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestStatementRunningBalance(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	cariID := seedAccount(t, repo, "ABC Gıda")

	require.NoError(t, svc.Append(context.Background(), Movement{CariID: cariID, Kind: documents.MovementInvoice, Debit: 200}))
	require.NoError(t, svc.Append(context.Background(), Movement{CariID: cariID, Kind: KindCollection, Credit: 50}))
	require.NoError(t, svc.Append(context.Background(), Movement{CariID: cariID, Kind: documents.MovementInvoice, Debit: 30}))

	lines, err := svc.StatementOf(context.Background(), uuid.Nil, cariID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, 200.00, lines[0].Balance)
	assert.Equal(t, 150.00, lines[1].Balance)
	assert.Equal(t, 180.00, lines[2].Balance)
}

func TestListAccountsTurkishCollation(t *testing.T) {
	repo := newFakeRepo()
	repo.balances = []AccountBalance{
		{Account: Account{Name: "Ümit Ticaret"}},
		{Account: Account{Name: "Zeki Market"}},
		{Account: Account{Name: "Çelik Hırdavat"}},
		{Account: Account{Name: "Can Gıda"}},
		{Account: Account{Name: "Uğur Petrol"}},
	}
	svc := NewService(repo)

	accounts, err := svc.ListAccounts(context.Background(), uuid.New(), "")
	require.NoError(t, err)

	names := make([]string, len(accounts))
	for i, acc := range accounts {
		names[i] = acc.Name
	}
	assert.Equal(t, []string{"Can Gıda", "Çelik Hırdavat", "Uğur Petrol", "Ümit Ticaret", "Zeki Market"}, names)
}

func TestCreateAccountRequiresName(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.CreateAccount(context.Background(), Account{}, 0)
	assert.Error(t, err)
}

func TestCreateAccountWithOpeningBalance(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	id, err := svc.CreateAccount(context.Background(), Account{Name: "ABC Gıda"}, 250)
	require.NoError(t, err)

	balance, err := svc.BalanceOf(context.Background(), uuid.Nil, id)
	require.NoError(t, err)
	assert.Equal(t, 250.00, balance)
}

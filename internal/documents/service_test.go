package documents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetpos/jetpos-backoffice/internal/shared"
)

type fakeRepo struct {
	latest       string
	latestErr    error
	insertErrs   []error
	linesErr     error
	inserted     []Document
	insertedRows [][]Line
}

func (f *fakeRepo) LatestNumber(ctx context.Context, tenantID uuid.UUID, docType Type) (string, error) {
	if f.latestErr != nil {
		return "", f.latestErr
	}
	return f.latest, nil
}

func (f *fakeRepo) InsertDocument(ctx context.Context, doc Document) (uuid.UUID, error) {
	if len(f.insertErrs) > 0 {
		err := f.insertErrs[0]
		f.insertErrs = f.insertErrs[1:]
		if err != nil {
			return uuid.Nil, err
		}
	}
	f.inserted = append(f.inserted, doc)
	return uuid.New(), nil
}

func (f *fakeRepo) InsertLines(ctx context.Context, tenantID, docID uuid.UUID, lines []Line) error {
	if f.linesErr != nil {
		return f.linesErr
	}
	f.insertedRows = append(f.insertedRows, lines)
	return nil
}

func (f *fakeRepo) GetDocument(ctx context.Context, tenantID, id uuid.UUID) (*Document, error) {
	return nil, ErrNotFound
}

func (f *fakeRepo) ListDocuments(ctx context.Context, filter ListFilter) ([]Document, int, error) {
	return nil, 0, nil
}

func (f *fakeRepo) UpdatePaymentStatus(ctx context.Context, tenantID, id uuid.UUID, status PaymentStatus) error {
	return nil
}

func (f *fakeRepo) MarkInvoiced(ctx context.Context, tenantID, id uuid.UUID) error {
	return nil
}

type stockCall struct {
	op  string
	qty float64
}

type fakeStock struct {
	calls []stockCall
	err   error
}

func (f *fakeStock) ApplyPurchase(ctx context.Context, tenantID, productID uuid.UUID, qty, purchasePrice, suggestedSalePrice float64) error {
	f.calls = append(f.calls, stockCall{op: "purchase", qty: qty})
	return f.err
}

func (f *fakeStock) Increment(ctx context.Context, tenantID, productID uuid.UUID, qty float64) error {
	f.calls = append(f.calls, stockCall{op: "increment", qty: qty})
	return f.err
}

func (f *fakeStock) Decrement(ctx context.Context, tenantID, productID uuid.UUID, qty float64) error {
	f.calls = append(f.calls, stockCall{op: "decrement", qty: qty})
	return f.err
}

type fakeLedger struct {
	movements []Movement
	err       error
}

func (f *fakeLedger) AppendMovement(ctx context.Context, m Movement) error {
	if f.err != nil {
		return f.err
	}
	f.movements = append(f.movements, m)
	return nil
}

type fakeAudit struct {
	logs []shared.AuditLog
	err  error
}

func (f *fakeAudit) Record(ctx context.Context, log shared.AuditLog) error {
	f.logs = append(f.logs, log)
	return f.err
}

func testTenant() shared.Tenant {
	return shared.Tenant{ID: uuid.New(), Name: "Test Market"}
}

func validInput(docType Type) SaveInput {
	return SaveInput{
		Type:         docType,
		DocumentDate: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		CariID:       uuid.New(),
		CariName:     "ABC Gıda Ltd. Şti.",
		Actor:        "kasiyer1",
		Lines: []Line{
			{ProductID: uuid.New(), Name: "Süt 1L", Quantity: 2, Unit: "ADET", UnitPrice: 100, DiscountRate: 10, VATRate: 20},
		},
	}
}

func TestSaveHappyPath(t *testing.T) {
	repo := &fakeRepo{latestErr: ErrNoDocuments}
	stock := &fakeStock{}
	ledger := &fakeLedger{}
	audit := &fakeAudit{}
	svc := NewService(repo, stock, ledger, audit, nil)

	result, err := svc.Save(context.Background(), testTenant(), validInput(TypePurchase))
	require.NoError(t, err)

	assert.Equal(t, "ALS00000001", result.Number)
	assert.Equal(t, 180.00, result.Totals.Subtotal)
	assert.Equal(t, 36.00, result.Totals.TotalVAT)
	assert.Equal(t, 216.00, result.Totals.GrandTotal)
	require.Len(t, repo.inserted, 1)
	assert.Equal(t, StatusApproved, repo.inserted[0].Status)
	assert.Equal(t, PaymentUnpaid, repo.inserted[0].PaymentStatus)
	require.Len(t, repo.insertedRows, 1)
	require.Len(t, stock.calls, 1)
	assert.Equal(t, "purchase", stock.calls[0].op)
	require.Len(t, ledger.movements, 1)
	assert.Equal(t, 216.00, ledger.movements[0].Debit)
	assert.Zero(t, ledger.movements[0].Credit)
	assert.Equal(t, "borclandirma", ledger.movements[0].Kind)
	require.Len(t, audit.logs, 1)
}

func TestSaveValidationOrder(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*SaveInput)
		message string
	}{
		{
			name:    "missing cari checked first",
			mutate:  func(in *SaveInput) { in.CariID = uuid.Nil; in.Lines = nil },
			message: "Lütfen cari seçin!",
		},
		{
			name:    "empty lines",
			mutate:  func(in *SaveInput) { in.Lines = nil },
			message: "Lütfen en az bir kalem ekleyin!",
		},
		{
			name: "blank name before quantity",
			mutate: func(in *SaveInput) {
				in.Lines = []Line{{Name: "", Quantity: 0, UnitPrice: 0, VATRate: 20}}
			},
			message: "Lütfen tüm kalem bilgilerini doldurun!",
		},
		{
			name: "quantity before price",
			mutate: func(in *SaveInput) {
				in.Lines = []Line{{Name: "Süt 1L", Quantity: 0, UnitPrice: 0, VATRate: 20}}
			},
			message: "Miktar sıfırdan büyük olmalı!",
		},
		{
			name: "price last",
			mutate: func(in *SaveInput) {
				in.Lines = []Line{{Name: "Süt 1L", Quantity: 1, UnitPrice: 0, VATRate: 20}}
			},
			message: "Birim fiyat sıfırdan büyük olmalı!",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeRepo{latestErr: ErrNoDocuments}
			svc := NewService(repo, nil, nil, nil, nil)
			input := validInput(TypeSales)
			tc.mutate(&input)

			_, err := svc.Save(context.Background(), testTenant(), input)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.message, vErr.Message)
			assert.Empty(t, repo.inserted, "validation failures must reach no storage")
		})
	}
}

func TestSaveReturnSkipsPositivityChecks(t *testing.T) {
	repo := &fakeRepo{latestErr: ErrNoDocuments}
	ledger := &fakeLedger{}
	svc := NewService(repo, nil, ledger, nil, nil)

	input := validInput(TypeSalesReturn)
	input.Lines = []Line{{Name: "Süt 1L", Quantity: -3, Unit: "ADET", UnitPrice: 50, VATRate: 10}}

	result, err := svc.Save(context.Background(), testTenant(), input)
	require.NoError(t, err)

	assert.Equal(t, "IAD00000001", result.Number)
	assert.Equal(t, -165.00, result.Totals.GrandTotal)
	require.Len(t, ledger.movements, 1)
	assert.Equal(t, 165.00, ledger.movements[0].Credit, "returns credit the absolute amount")
	assert.Zero(t, ledger.movements[0].Debit)
	assert.Equal(t, "iade_faturasi", ledger.movements[0].Kind)
	assert.Equal(t, PaymentRefunded, repo.inserted[0].PaymentStatus)
}

func TestSaveNumberConflictRetriesOnce(t *testing.T) {
	repo := &fakeRepo{latest: "SAT00000007", insertErrs: []error{ErrNumberConflict, nil}}
	svc := NewService(repo, nil, nil, nil, nil)

	result, err := svc.Save(context.Background(), testTenant(), validInput(TypeSales))
	require.NoError(t, err)
	require.Len(t, repo.inserted, 1)
	assert.Equal(t, result.Number, repo.inserted[0].Number)
}

func TestSaveNumberConflictTwiceFails(t *testing.T) {
	repo := &fakeRepo{latest: "SAT00000007", insertErrs: []error{ErrNumberConflict, ErrNumberConflict}}
	svc := NewService(repo, nil, nil, nil, nil)

	_, err := svc.Save(context.Background(), testTenant(), validInput(TypeSales))

	var pErr *PersistenceError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "insert header", pErr.Step)
	assert.ErrorIs(t, err, ErrNumberConflict)
}

func TestSaveLineFailureLeavesHeader(t *testing.T) {
	repo := &fakeRepo{latestErr: ErrNoDocuments, linesErr: errors.New("connection reset")}
	stock := &fakeStock{}
	svc := NewService(repo, stock, nil, nil, nil)

	_, err := svc.Save(context.Background(), testTenant(), validInput(TypeSales))

	var pErr *PersistenceError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "insert lines", pErr.Step)
	assert.Len(t, repo.inserted, 1, "header stays committed, there is no rollback")
	assert.Empty(t, stock.calls, "later side effects are skipped")
}

func TestSaveStockEffectPerType(t *testing.T) {
	cases := []struct {
		docType Type
		op      string
	}{
		{TypePurchase, "purchase"},
		{TypePurchaseWaybill, "increment"},
		{TypeSales, "decrement"},
		{TypeRetailSale, "decrement"},
		{TypeSalesWaybill, "decrement"},
	}
	for _, tc := range cases {
		t.Run(string(tc.docType), func(t *testing.T) {
			repo := &fakeRepo{latestErr: ErrNoDocuments}
			stock := &fakeStock{}
			svc := NewService(repo, stock, nil, nil, nil)

			_, err := svc.Save(context.Background(), testTenant(), validInput(tc.docType))
			require.NoError(t, err)
			require.Len(t, stock.calls, 1)
			assert.Equal(t, tc.op, stock.calls[0].op)
		})
	}
}

func TestSaveServiceTypesTouchNoStock(t *testing.T) {
	for _, docType := range []Type{TypeServicePurchase, TypeServiceSale, TypeProforma, TypeSample} {
		repo := &fakeRepo{latestErr: ErrNoDocuments}
		stock := &fakeStock{}
		svc := NewService(repo, stock, nil, nil, nil)

		_, err := svc.Save(context.Background(), testTenant(), validInput(docType))
		require.NoError(t, err)
		assert.Empty(t, stock.calls, "type %s must not move stock", docType)
	}
}

func TestSaveFreeTextLineSkipsStock(t *testing.T) {
	repo := &fakeRepo{latestErr: ErrNoDocuments}
	stock := &fakeStock{}
	svc := NewService(repo, stock, nil, nil, nil)

	input := validInput(TypeSales)
	input.Lines[0].ProductID = uuid.Nil

	_, err := svc.Save(context.Background(), testTenant(), input)
	require.NoError(t, err)
	assert.Empty(t, stock.calls)
}

func TestSaveNonSettlingTypesSkipLedger(t *testing.T) {
	for _, docType := range []Type{TypeProforma, TypeSample, TypePurchaseWaybill, TypeSalesWaybill} {
		repo := &fakeRepo{latestErr: ErrNoDocuments}
		ledger := &fakeLedger{}
		svc := NewService(repo, nil, ledger, nil, nil)

		_, err := svc.Save(context.Background(), testTenant(), validInput(docType))
		require.NoError(t, err)
		assert.Empty(t, ledger.movements, "type %s must not settle", docType)
	}
}

func TestSaveLedgerFailureIsFatal(t *testing.T) {
	repo := &fakeRepo{latestErr: ErrNoDocuments}
	ledger := &fakeLedger{err: errors.New("ledger down")}
	svc := NewService(repo, nil, ledger, nil, nil)

	_, err := svc.Save(context.Background(), testTenant(), validInput(TypeSales))

	var pErr *PersistenceError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "ledger movement", pErr.Step)
	assert.Len(t, repo.inserted, 1)
}

func TestSaveAuditFailureIsSwallowed(t *testing.T) {
	repo := &fakeRepo{latestErr: ErrNoDocuments}
	audit := &fakeAudit{err: errors.New("audit sink down")}
	svc := NewService(repo, nil, nil, audit, nil)

	_, err := svc.Save(context.Background(), testTenant(), validInput(TypeSales))
	require.NoError(t, err)
	assert.Len(t, audit.logs, 1)
}

func TestSaveDefaultPaymentStatus(t *testing.T) {
	cases := map[Type]PaymentStatus{
		TypePurchase:        PaymentUnpaid,
		TypeServicePurchase: PaymentUnpaid,
		TypeSales:           PaymentPending,
		TypeRetailSale:      PaymentPending,
		TypeSalesReturn:     PaymentRefunded,
	}
	for docType, want := range cases {
		repo := &fakeRepo{latestErr: ErrNoDocuments}
		svc := NewService(repo, nil, nil, nil, nil)

		input := validInput(docType)
		if docType.IsReturn() {
			input.Lines[0].Quantity = -1
		}
		_, err := svc.Save(context.Background(), testTenant(), input)
		require.NoError(t, err)
		assert.Equal(t, want, repo.inserted[0].PaymentStatus, "type %s", docType)
	}
}

func TestSaveExplicitPaymentStatusWins(t *testing.T) {
	repo := &fakeRepo{latestErr: ErrNoDocuments}
	svc := NewService(repo, nil, nil, nil, nil)

	input := validInput(TypeRetailSale)
	input.PaymentStatus = PaymentPaid

	_, err := svc.Save(context.Background(), testTenant(), input)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, repo.inserted[0].PaymentStatus)
}

func TestSaveRejectsUnknownPaymentStatus(t *testing.T) {
	repo := &fakeRepo{latestErr: ErrNoDocuments}
	svc := NewService(repo, nil, nil, nil, nil)

	input := validInput(TypeSales)
	input.PaymentStatus = PaymentStatus("belki")

	_, err := svc.Save(context.Background(), testTenant(), input)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "payment_status", vErr.Field)
	assert.Empty(t, repo.inserted, "validation failures must reach no storage")
}

func TestSetPaymentStatusRejectsUnknown(t *testing.T) {
	svc := NewService(&fakeRepo{}, nil, nil, nil, nil)

	err := svc.SetPaymentStatus(context.Background(), testTenant(), uuid.New(), PaymentStatus("maybe"))

	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestSaveRejectsUnknownUnitAndVATRate(t *testing.T) {
	repo := &fakeRepo{latestErr: ErrNoDocuments}
	svc := NewService(repo, nil, nil, nil, nil)

	input := validInput(TypeSales)
	input.Lines[0].Unit = "KOLI"
	_, err := svc.Save(context.Background(), testTenant(), input)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	input = validInput(TypeSales)
	input.Lines[0].VATRate = 18
	_, err = svc.Save(context.Background(), testTenant(), input)
	require.ErrorAs(t, err, &vErr)
}

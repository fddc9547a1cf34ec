package store

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cargofret/billing/internal/model"
	"github.com/cargofret/billing/internal/store/config"
)

// Интеграционные тесты против postgres. Пропускаются, если строка
// подключения не задана. База общая, поэтому проверки опираются на
// созданные тестом записи, а не на абсолютные итоги
func newPgStore(t *testing.T) Store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URI")
	if dsn == "" {
		t.Skip("DATABASE_URI не задана")
	}

	store, err := NewStore(config.Config{DBDsn: dsn})
	require.NoError(t, err)
	return store
}

func newPgInvoice(t *testing.T, store Store, total float64) model.Invoice {
	t.Helper()
	ctx := context.Background()

	invoice, err := store.InvoiceCreate(ctx, model.Invoice{
		ShipmentID: uuid.NewString(),
		ClientID:   uuid.NewString(),
		Subtotal:   total,
		Total:      total,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		payments, err := store.PaymentList(ctx, model.PaymentFilter{InvoiceID: invoice.ID})
		if err != nil {
			return
		}
		for _, payment := range payments {
			store.PaymentRemove(ctx, payment.ID)
		}
		store.InvoiceDelete(ctx, invoice.ID)
	})
	return invoice
}

func TestPgInvoiceRoundTrip(t *testing.T) {
	store := newPgStore(t)
	ctx := context.Background()

	invoice := newPgInvoice(t, store, 54500)
	require.Equal(t, model.InvoiceStatusPending, invoice.Status)
	require.Equal(t, 54500.0, invoice.Balance)
	requireLedgerInvariant(t, invoice)

	found, err := store.InvoiceGet(ctx, invoice.ID)
	require.NoError(t, err)
	require.Equal(t, invoice.ID, found.ID)
	require.Equal(t, invoice.InvoiceNumber, found.InvoiceNumber)

	byNumber, err := store.InvoiceGetByNumber(ctx, invoice.InvoiceNumber)
	require.NoError(t, err)
	require.Equal(t, invoice.ID, byNumber.ID)

	_, err = store.InvoiceGet(ctx, uuid.NewString())
	require.ErrorIs(t, err, ErrNoRows)
}

func TestPgInvoiceNumberAfterDelete(t *testing.T) {
	store := newPgStore(t)
	ctx := context.Background()

	first := newPgInvoice(t, store, 100)
	second := newPgInvoice(t, store, 200)
	require.NoError(t, store.InvoiceDelete(ctx, first.ID))

	// счетчик не откатывается: номер удаленного счета не переиспользуется
	third := newPgInvoice(t, store, 300)
	require.NotEqual(t, second.InvoiceNumber, third.InvoiceNumber)
	require.Equal(t,
		model.InvoiceNumberSeq(second.InvoiceNumber)+1,
		model.InvoiceNumberSeq(third.InvoiceNumber))
}

func TestPgPaymentAddRemove(t *testing.T) {
	store := newPgStore(t)
	ctx := context.Background()

	invoice := newPgInvoice(t, store, 100000)

	_, updated, err := store.PaymentAdd(ctx, model.Payment{
		InvoiceID: invoice.ID,
		Amount:    40000,
		Method:    model.PaymentMethodMTNMomo,
	})
	require.NoError(t, err)
	require.Equal(t, model.InvoiceStatusPartial, updated.Status)
	require.Equal(t, 60000.0, updated.Balance)
	requireLedgerInvariant(t, updated)

	second, updated, err := store.PaymentAdd(ctx, model.Payment{
		InvoiceID: invoice.ID,
		Amount:    60000,
		Method:    model.PaymentMethodCash,
	})
	require.NoError(t, err)
	require.Equal(t, model.InvoiceStatusPaid, updated.Status)
	require.NotNil(t, updated.PaidAt)
	requireLedgerInvariant(t, updated)

	// переплата отклоняется
	_, _, err = store.PaymentAdd(ctx, model.Payment{
		InvoiceID: invoice.ID,
		Amount:    1,
		Method:    model.PaymentMethodCash,
	})
	require.ErrorIs(t, err, ErrExceedsBalance)

	reverted, err := store.PaymentRemove(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, 40000.0, reverted.AmountPaid)
	require.Equal(t, model.InvoiceStatusPartial, reverted.Status)
	require.Nil(t, reverted.PaidAt)
	requireLedgerInvariant(t, reverted)

	_, err = store.PaymentGet(ctx, second.ID)
	require.ErrorIs(t, err, ErrNoRows)
}

func TestPgPaymentAddConcurrent(t *testing.T) {
	store := newPgStore(t)
	ctx := context.Background()

	invoice := newPgInvoice(t, store, 100)

	// два конкурентных платежа по 60 против остатка 100:
	// проходит ровно один, переплата невозможна
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = store.PaymentAdd(ctx, model.Payment{
				InvoiceID: invoice.ID,
				Amount:    60,
				Method:    model.PaymentMethodCash,
			})
		}(i)
	}
	wg.Wait()

	var failed int
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, ErrExceedsBalance)
			failed++
		}
	}
	require.Equal(t, 1, failed)

	updated, err := store.InvoiceGet(ctx, invoice.ID)
	require.NoError(t, err)
	require.Equal(t, 60.0, updated.AmountPaid)
	require.Equal(t, 40.0, updated.Balance)
	requireLedgerInvariant(t, updated)
}

func TestPgTariffFindActive(t *testing.T) {
	store := newPgStore(t)
	ctx := context.Background()

	origin := "ORIG-" + uuid.NewString()
	destination := "DEST-" + uuid.NewString()

	_, err := store.TariffFindActive(ctx, origin, destination)
	require.ErrorIs(t, err, ErrNoRows)

	first, err := store.TariffCreate(ctx, model.TariffRule{
		Name:        "First",
		Origin:      origin,
		Destination: destination,
		BaseRate:    1000,
		RatePerKg:   100,
		IsActive:    true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.TariffDelete(ctx, first.ID) })

	// разносим created_at двух правил
	time.Sleep(10 * time.Millisecond)

	second, err := store.TariffCreate(ctx, model.TariffRule{
		Name:        "Second",
		Origin:      origin,
		Destination: destination,
		BaseRate:    2000,
		RatePerKg:   200,
		IsActive:    true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.TariffDelete(ctx, second.ID) })

	// при нескольких активных правилах побеждает самое старое
	found, err := store.TariffFindActive(ctx, origin, destination)
	require.NoError(t, err)
	require.Equal(t, first.ID, found.ID)
}

func TestPgReports(t *testing.T) {
	store := newPgStore(t)
	ctx := context.Background()

	statsBefore, err := store.InvoiceStats(ctx)
	require.NoError(t, err)
	paymentsBefore, err := store.PaymentStats(ctx)
	require.NoError(t, err)
	revenueBefore, err := store.RevenueReport(ctx, nil, nil)
	require.NoError(t, err)

	paid := newPgInvoice(t, store, 30000)
	_, _, err = store.PaymentAdd(ctx, model.Payment{
		InvoiceID: paid.ID,
		Amount:    30000,
		Method:    model.PaymentMethodMTNMomo,
	})
	require.NoError(t, err)
	pending := newPgInvoice(t, store, 20000)

	stats, err := store.InvoiceStats(ctx)
	require.NoError(t, err)
	require.Equal(t, statsBefore.TotalInvoices+2, stats.TotalInvoices)
	require.Equal(t, statsBefore.ByStatus.Paid+1, stats.ByStatus.Paid)
	require.Equal(t, statsBefore.ByStatus.Pending+1, stats.ByStatus.Pending)
	require.InDelta(t, statsBefore.TotalPaid+30000, stats.TotalPaid, 1e-6)
	require.InDelta(t, statsBefore.TotalOutstanding+20000, stats.TotalOutstanding, 1e-6)

	paymentStats, err := store.PaymentStats(ctx)
	require.NoError(t, err)
	require.Equal(t, paymentsBefore.TotalPayments+1, paymentStats.TotalPayments)
	require.InDelta(t, paymentsBefore.TotalAmount+30000, paymentStats.TotalAmount, 1e-6)

	revenue, err := store.RevenueReport(ctx, nil, nil)
	require.NoError(t, err)
	require.Equal(t, revenueBefore.TotalInvoices+1, revenue.TotalInvoices)
	require.InDelta(t, revenueBefore.TotalRevenue+30000, revenue.TotalRevenue, 1)

	outstanding, err := store.OutstandingReport(ctx, time.Now())
	require.NoError(t, err)
	var foundPending bool
	for _, row := range outstanding.Invoices {
		if row.InvoiceNumber == pending.InvoiceNumber {
			foundPending = true
			require.InDelta(t, 20000.0, row.Balance, 1e-6)
			require.False(t, row.IsOverdue)
		}
	}
	require.True(t, foundPending)

	breakdown, err := store.PaymentMethodBreakdown(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, breakdown.TotalAmount, 30000.0)
}

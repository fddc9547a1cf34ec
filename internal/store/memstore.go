package store

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cargofret/billing/internal/model"
)

// memStore - хранилище в памяти. Используется в тестах и при запуске
// без строки подключения к базе. Семантика ошибок совпадает с postgres
type memStore struct {
	mu       sync.RWMutex
	invoices map[string]model.Invoice
	payments map[string]model.Payment
	tariffs  map[string]model.TariffRule

	// Блокировка на уровне счета: проверка остатка и обновление счета
	// при проведении/удалении платежа - одна единица работы
	invoiceMu      map[string]*sync.Mutex
	invoiceMuGuard sync.Mutex
}

func NewMemStore() Store {
	return &memStore{
		invoices:  make(map[string]model.Invoice),
		payments:  make(map[string]model.Payment),
		tariffs:   make(map[string]model.TariffRule),
		invoiceMu: make(map[string]*sync.Mutex),
	}
}

func (store *memStore) lockInvoice(id string) *sync.Mutex {
	store.invoiceMuGuard.Lock()
	mutex, ok := store.invoiceMu[id]
	if !ok {
		mutex = &sync.Mutex{}
		store.invoiceMu[id] = mutex
	}
	store.invoiceMuGuard.Unlock()

	mutex.Lock()
	return mutex
}

func (store *memStore) InvoiceCreate(_ context.Context, invoice model.Invoice) (model.Invoice, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	// следующий номер - максимум выданного за месяц плюс один:
	// счетчик не откатывается при удалении счетов
	now := time.Now()
	prefix := model.InvoiceNumberPrefix(now)
	seq := 0
	for _, existing := range store.invoices {
		if !strings.HasPrefix(existing.InvoiceNumber, prefix) {
			continue
		}
		if s := model.InvoiceNumberSeq(existing.InvoiceNumber); s > seq {
			seq = s
		}
	}

	invoice.ID = uuid.NewString()
	invoice.InvoiceNumber = model.FormatInvoiceNumber(now, seq+1)
	invoice.AmountPaid = 0
	invoice.Balance = invoice.Total
	invoice.Status = model.InvoiceStatusPending
	invoice.PaidAt = nil
	invoice.CreatedAt = now
	invoice.UpdatedAt = now

	store.invoices[invoice.ID] = invoice
	return invoice, nil
}

func (store *memStore) InvoiceGet(_ context.Context, id string) (model.Invoice, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	invoice, ok := store.invoices[id]
	if !ok {
		return model.Invoice{}, ErrNoRows
	}
	return invoice, nil
}

func (store *memStore) InvoiceGetByNumber(_ context.Context, number string) (model.Invoice, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	for _, invoice := range store.invoices {
		if invoice.InvoiceNumber == number {
			return invoice, nil
		}
	}
	return model.Invoice{}, ErrNoRows
}

func (store *memStore) InvoiceList(_ context.Context, filter model.InvoiceFilter) ([]model.Invoice, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var invoices []model.Invoice
	for _, invoice := range store.invoices {
		if filter.ClientID != "" && invoice.ClientID != filter.ClientID {
			continue
		}
		if filter.ShipmentID != "" && invoice.ShipmentID != filter.ShipmentID {
			continue
		}
		if filter.Status != "" && invoice.Status != filter.Status {
			continue
		}
		if filter.DateFrom != nil && invoice.CreatedAt.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && invoice.CreatedAt.After(*filter.DateTo) {
			continue
		}
		invoices = append(invoices, invoice)
	}
	sort.Slice(invoices, func(i, j int) bool {
		if !invoices[i].CreatedAt.Equal(invoices[j].CreatedAt) {
			return invoices[i].CreatedAt.After(invoices[j].CreatedAt)
		}
		return invoices[i].InvoiceNumber > invoices[j].InvoiceNumber
	})
	return invoices, nil
}

func (store *memStore) InvoiceUpdate(_ context.Context, invoice model.Invoice) (model.Invoice, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.invoices[invoice.ID]; !ok {
		return model.Invoice{}, ErrNoRows
	}
	invoice.UpdatedAt = time.Now()
	store.invoices[invoice.ID] = invoice
	return invoice, nil
}

func (store *memStore) InvoiceDelete(_ context.Context, id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.invoices[id]; !ok {
		return ErrNoRows
	}
	for _, payment := range store.payments {
		if payment.InvoiceID == id {
			return ErrHasPayments
		}
	}
	delete(store.invoices, id)

	// мьютекс удаленного счета больше не нужен
	store.invoiceMuGuard.Lock()
	delete(store.invoiceMu, id)
	store.invoiceMuGuard.Unlock()
	return nil
}

func (store *memStore) PaymentAdd(_ context.Context, payment model.Payment) (model.Payment, model.Invoice, error) {
	if payment.Amount <= 0 {
		return model.Payment{}, model.Invoice{}, ErrAmountIncorrect
	}

	mutex := store.lockInvoice(payment.InvoiceID)
	defer mutex.Unlock()

	store.mu.Lock()
	defer store.mu.Unlock()

	invoice, ok := store.invoices[payment.InvoiceID]
	if !ok {
		return model.Payment{}, model.Invoice{}, ErrNoRows
	}
	if payment.Amount > invoice.Balance {
		return model.Payment{}, model.Invoice{}, ErrExceedsBalance
	}

	now := time.Now()
	payment.ID = uuid.NewString()
	payment.CreatedAt = now
	store.payments[payment.ID] = payment

	invoice.AmountPaid += payment.Amount
	invoice.Settle(now)
	invoice.UpdatedAt = now
	store.invoices[invoice.ID] = invoice

	return payment, invoice, nil
}

func (store *memStore) PaymentGet(_ context.Context, id string) (model.Payment, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	payment, ok := store.payments[id]
	if !ok {
		return model.Payment{}, ErrNoRows
	}
	return payment, nil
}

func (store *memStore) PaymentList(_ context.Context, filter model.PaymentFilter) ([]model.Payment, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var payments []model.Payment
	for _, payment := range store.payments {
		if filter.InvoiceID != "" && payment.InvoiceID != filter.InvoiceID {
			continue
		}
		if filter.Method != "" && payment.Method != filter.Method {
			continue
		}
		payments = append(payments, payment)
	}
	sort.Slice(payments, func(i, j int) bool {
		if !payments[i].CreatedAt.Equal(payments[j].CreatedAt) {
			return payments[i].CreatedAt.After(payments[j].CreatedAt)
		}
		return payments[i].ID > payments[j].ID
	})
	return payments, nil
}

func (store *memStore) PaymentRemove(_ context.Context, id string) (model.Invoice, error) {
	store.mu.RLock()
	payment, ok := store.payments[id]
	store.mu.RUnlock()
	if !ok {
		return model.Invoice{}, ErrNoRows
	}

	mutex := store.lockInvoice(payment.InvoiceID)
	defer mutex.Unlock()

	store.mu.Lock()
	defer store.mu.Unlock()

	// повторное чтение под блокировкой
	payment, ok = store.payments[id]
	if !ok {
		return model.Invoice{}, ErrNoRows
	}
	invoice, ok := store.invoices[payment.InvoiceID]
	if !ok {
		return model.Invoice{}, ErrNoRows
	}

	invoice.AmountPaid -= payment.Amount
	invoice.Revert()
	invoice.UpdatedAt = time.Now()
	store.invoices[invoice.ID] = invoice
	delete(store.payments, id)

	return invoice, nil
}

func (store *memStore) TariffCreate(_ context.Context, tariff model.TariffRule) (model.TariffRule, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	now := time.Now()
	tariff.ID = uuid.NewString()
	tariff.CreatedAt = now
	tariff.UpdatedAt = now
	store.tariffs[tariff.ID] = tariff
	return tariff, nil
}

func (store *memStore) TariffGet(_ context.Context, id string) (model.TariffRule, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	tariff, ok := store.tariffs[id]
	if !ok {
		return model.TariffRule{}, ErrNoRows
	}
	return tariff, nil
}

func (store *memStore) TariffList(_ context.Context, filter model.TariffFilter) ([]model.TariffRule, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var tariffs []model.TariffRule
	for _, tariff := range store.tariffs {
		if filter.Origin != "" && tariff.Origin != filter.Origin {
			continue
		}
		if filter.Destination != "" && tariff.Destination != filter.Destination {
			continue
		}
		if filter.IsActive != nil && tariff.IsActive != *filter.IsActive {
			continue
		}
		tariffs = append(tariffs, tariff)
	}
	sort.Slice(tariffs, func(i, j int) bool {
		return tariffs[i].Name < tariffs[j].Name
	})
	return tariffs, nil
}

func (store *memStore) TariffUpdate(_ context.Context, tariff model.TariffRule) (model.TariffRule, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.tariffs[tariff.ID]; !ok {
		return model.TariffRule{}, ErrNoRows
	}
	tariff.UpdatedAt = time.Now()
	store.tariffs[tariff.ID] = tariff
	return tariff, nil
}

func (store *memStore) TariffDelete(_ context.Context, id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.tariffs[id]; !ok {
		return ErrNoRows
	}
	delete(store.tariffs, id)
	return nil
}

func (store *memStore) TariffFindActive(_ context.Context, origin string, destination string) (model.TariffRule, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var found []model.TariffRule
	for _, tariff := range store.tariffs {
		if tariff.IsActive && tariff.Origin == origin && tariff.Destination == destination {
			found = append(found, tariff)
		}
	}
	if len(found) == 0 {
		return model.TariffRule{}, ErrNoRows
	}
	// детерминированный выбор: самое старое правило
	sort.Slice(found, func(i, j int) bool {
		if !found[i].CreatedAt.Equal(found[j].CreatedAt) {
			return found[i].CreatedAt.Before(found[j].CreatedAt)
		}
		return found[i].ID < found[j].ID
	})
	return found[0], nil
}

func (store *memStore) InvoiceStats(_ context.Context) (model.InvoiceStats, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var stats model.InvoiceStats
	for _, invoice := range store.invoices {
		stats.TotalInvoices++
		switch invoice.Status {
		case model.InvoiceStatusPending:
			stats.ByStatus.Pending++
			stats.TotalOutstanding += invoice.Balance
		case model.InvoiceStatusPartial:
			stats.ByStatus.Partial++
			stats.TotalOutstanding += invoice.Balance
		case model.InvoiceStatusPaid:
			stats.ByStatus.Paid++
		case model.InvoiceStatusCancelled:
			stats.ByStatus.Cancelled++
		}
		if invoice.Status != model.InvoiceStatusCancelled {
			stats.TotalAmount += invoice.Total
		}
		stats.TotalPaid += invoice.AmountPaid
	}
	return stats, nil
}

func (store *memStore) PaymentStats(_ context.Context) (model.PaymentStats, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var stats model.PaymentStats
	byMethod := make(map[string]*model.MethodStat)
	for _, payment := range store.payments {
		stats.TotalPayments++
		stats.TotalAmount += payment.Amount
		stat, ok := byMethod[payment.Method]
		if !ok {
			stat = &model.MethodStat{Method: payment.Method}
			byMethod[payment.Method] = stat
		}
		stat.Count++
		stat.TotalAmount += payment.Amount
	}
	for _, stat := range byMethod {
		stats.ByMethod = append(stats.ByMethod, *stat)
	}
	sort.Slice(stats.ByMethod, func(i, j int) bool {
		return stats.ByMethod[i].Method < stats.ByMethod[j].Method
	})
	return stats, nil
}

func (store *memStore) RevenueReport(_ context.Context, from *time.Time, to *time.Time) (model.RevenueReport, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	report := model.RevenueReport{StartDate: from, EndDate: to}
	var revenue float64
	for _, invoice := range store.invoices {
		if invoice.Status != model.InvoiceStatusPaid || invoice.PaidAt == nil {
			continue
		}
		if from != nil && invoice.PaidAt.Before(*from) {
			continue
		}
		if to != nil && invoice.PaidAt.After(*to) {
			continue
		}
		report.TotalInvoices++
		revenue += invoice.Total
	}
	report.TotalRevenue = math.Round(revenue)
	if report.TotalInvoices > 0 {
		report.AverageInvoiceValue = math.Round(revenue / float64(report.TotalInvoices))
	}
	return report, nil
}

func (store *memStore) OutstandingReport(_ context.Context, now time.Time) (model.OutstandingReport, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var open []model.Invoice
	for _, invoice := range store.invoices {
		if invoice.Status == model.InvoiceStatusPending || invoice.Status == model.InvoiceStatusPartial {
			open = append(open, invoice)
		}
	}
	// по сроку оплаты, счета без срока в конце
	sort.Slice(open, func(i, j int) bool {
		switch {
		case open[i].DueDate == nil:
			return false
		case open[j].DueDate == nil:
			return true
		default:
			return open[i].DueDate.Before(*open[j].DueDate)
		}
	})

	var report model.OutstandingReport
	var totalOutstanding, totalOverdue float64
	for _, invoice := range open {
		item := model.OutstandingInvoice{
			InvoiceNumber: invoice.InvoiceNumber,
			ClientID:      invoice.ClientID,
			Balance:       invoice.Balance,
			DueDate:       invoice.DueDate,
		}
		if invoice.DueDate != nil && invoice.DueDate.Before(now) {
			item.IsOverdue = true
			report.OverdueInvoices++
			totalOverdue += invoice.Balance
		}
		report.TotalInvoices++
		totalOutstanding += invoice.Balance
		report.Invoices = append(report.Invoices, item)
	}
	report.TotalOutstanding = math.Round(totalOutstanding)
	report.TotalOverdue = math.Round(totalOverdue)
	return report, nil
}

func (store *memStore) PaymentMethodBreakdown(_ context.Context) (model.MethodBreakdown, error) {
	stats, err := store.PaymentStats(context.Background())
	if err != nil {
		return model.MethodBreakdown{}, err
	}

	var breakdown model.MethodBreakdown
	for _, stat := range stats.ByMethod {
		if stats.TotalAmount > 0 {
			share := stat.TotalAmount / stats.TotalAmount * 100
			stat.Percentage = math.Round(share*100) / 100
		}
		breakdown.Breakdown = append(breakdown.Breakdown, stat)
	}
	breakdown.TotalAmount = math.Round(stats.TotalAmount)
	return breakdown, nil
}

package ledger

import (
	"context"
	"errors"

	"github.com/cargofret/billing/internal/model"
	"github.com/cargofret/billing/internal/store"
)

// Ledger - операции над счетами и платежами. Правила жизненного цикла
// (запрет отмены оплаченного счета, запрет удаления счета с платежами)
// проверяются здесь, проведение платежа сериализуется в хранилище

type Ledger interface {
	Create(invoice model.Invoice) (model.Invoice, error)
	Get(id string) (model.Invoice, error)
	GetByNumber(number string) (model.Invoice, error)
	List(filter model.InvoiceFilter) ([]model.Invoice, error)
	Update(id string, patch model.InvoicePatch) (model.Invoice, error)
	Cancel(id string) (model.Invoice, error)
	Delete(id string) error

	AddPayment(payment model.Payment) (model.Payment, model.Invoice, error)
	GetPayment(id string) (model.Payment, error)
	ListPayments(filter model.PaymentFilter) ([]model.Payment, error)
	RemovePayment(id string) (model.Invoice, error)
}

var ErrPaidInvoice = errors.New("cannot cancel a paid invoice")

type ledger struct {
	store store.Store
}

func NewLedger(store store.Store) Ledger {
	ledger := ledger{store: store}
	return &ledger
}

func (ledger *ledger) Create(invoice model.Invoice) (model.Invoice, error) {
	ctx := context.Background()

	return ledger.store.InvoiceCreate(ctx, invoice)
}

func (ledger *ledger) Get(id string) (model.Invoice, error) {
	ctx := context.Background()

	return ledger.store.InvoiceGet(ctx, id)
}

func (ledger *ledger) GetByNumber(number string) (model.Invoice, error) {
	ctx := context.Background()

	return ledger.store.InvoiceGetByNumber(ctx, number)
}

func (ledger *ledger) List(filter model.InvoiceFilter) ([]model.Invoice, error) {
	ctx := context.Background()

	return ledger.store.InvoiceList(ctx, filter)
}

func (ledger *ledger) Update(id string, patch model.InvoicePatch) (model.Invoice, error) {
	ctx := context.Background()

	invoice, err := ledger.store.InvoiceGet(ctx, id)
	if err != nil {
		return model.Invoice{}, err
	}

	if patch.ShipmentID != nil {
		invoice.ShipmentID = *patch.ShipmentID
	}
	if patch.ClientID != nil {
		invoice.ClientID = *patch.ClientID
	}
	if patch.Subtotal != nil {
		invoice.Subtotal = *patch.Subtotal
	}
	if patch.Tax != nil {
		invoice.Tax = *patch.Tax
	}
	if patch.Discount != nil {
		invoice.Discount = *patch.Discount
	}
	if patch.DueDate != nil {
		dueDate := *patch.DueDate
		invoice.DueDate = &dueDate
	}
	if patch.Total != nil {
		// при изменении итога пересчитывается только остаток,
		// статус меняется исключительно через платежи
		invoice.Total = *patch.Total
		invoice.Balance = invoice.Total - invoice.AmountPaid
	}

	return ledger.store.InvoiceUpdate(ctx, invoice)
}

func (ledger *ledger) Cancel(id string) (model.Invoice, error) {
	ctx := context.Background()

	invoice, err := ledger.store.InvoiceGet(ctx, id)
	if err != nil {
		return model.Invoice{}, err
	}
	if invoice.Status == model.InvoiceStatusPaid {
		return model.Invoice{}, ErrPaidInvoice
	}

	invoice.Status = model.InvoiceStatusCancelled
	return ledger.store.InvoiceUpdate(ctx, invoice)
}

func (ledger *ledger) Delete(id string) error {
	ctx := context.Background()

	return ledger.store.InvoiceDelete(ctx, id)
}

func (ledger *ledger) AddPayment(payment model.Payment) (model.Payment, model.Invoice, error) {
	ctx := context.Background()

	return ledger.store.PaymentAdd(ctx, payment)
}

func (ledger *ledger) GetPayment(id string) (model.Payment, error) {
	ctx := context.Background()

	return ledger.store.PaymentGet(ctx, id)
}

func (ledger *ledger) ListPayments(filter model.PaymentFilter) ([]model.Payment, error) {
	ctx := context.Background()

	return ledger.store.PaymentList(ctx, filter)
}

func (ledger *ledger) RemovePayment(id string) (model.Invoice, error) {
	ctx := context.Background()

	return ledger.store.PaymentRemove(ctx, id)
}

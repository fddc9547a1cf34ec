package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cargofret/billing/internal/calculator"
	calculatorConfig "github.com/cargofret/billing/internal/calculator/config"
	"github.com/cargofret/billing/internal/ledger"
	"github.com/cargofret/billing/internal/model"
	"github.com/cargofret/billing/internal/service/config"
	"github.com/cargofret/billing/internal/service/notifyclient"
	"github.com/cargofret/billing/internal/store"
)

type Service interface {
	CalculateCost(origin string, destination string, weight float64, volume float64, declaredValue float64) (model.CostResult, error)

	CreateInvoice(invoice model.Invoice) (model.Invoice, error)
	GetInvoice(id string) (model.Invoice, error)
	GetInvoiceByNumber(number string) (model.Invoice, error)
	ListInvoices(filter model.InvoiceFilter) ([]model.Invoice, error)
	UpdateInvoice(id string, patch model.InvoicePatch) (model.Invoice, error)
	CancelInvoice(id string) (model.Invoice, error)
	DeleteInvoice(id string) error

	AddPayment(payment model.Payment) (model.Payment, error)
	GetPayment(id string) (model.Payment, error)
	ListPayments(filter model.PaymentFilter) ([]model.Payment, error)
	RemovePayment(id string) error

	CreateTariff(tariff model.TariffRule) (model.TariffRule, error)
	GetTariff(id string) (model.TariffRule, error)
	ListTariffs(filter model.TariffFilter) ([]model.TariffRule, error)
	UpdateTariff(id string, patch model.TariffPatch) (model.TariffRule, error)
	DeleteTariff(id string) error

	InvoiceStats() (model.InvoiceStats, error)
	PaymentStats() (model.PaymentStats, error)
	RevenueReport(from *time.Time, to *time.Time) (model.RevenueReport, error)
	OutstandingReport() (model.OutstandingReport, error)
	PaymentMethodBreakdown() (model.MethodBreakdown, error)
}

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidOperation = errors.New("invalid operation")
)

type service struct {
	cfg        config.Config
	store      store.Store
	ledger     ledger.Ledger
	calculator calculator.Calculator
	notify     notifyclient.NotifyClient
	currency   string
	zaplog     *zap.Logger
}

func NewService(cfg config.Config, calcCfg calculatorConfig.Config, store store.Store, zaplog *zap.Logger) Service {
	ledger := ledger.NewLedger(store)
	calculator := calculator.NewCalculator(calcCfg, store)
	notify := notifyclient.NewNotifyClient(cfg.NotifyAddr)

	service := service{
		cfg:        cfg,
		store:      store,
		ledger:     ledger,
		calculator: calculator,
		notify:     notify,
		currency:   calcCfg.Currency,
		zaplog:     zaplog,
	}

	return &service
}

func (service *service) CalculateCost(origin string, destination string, weight float64, volume float64, declaredValue float64) (model.CostResult, error) {
	if origin == "" || destination == "" {
		return model.CostResult{}, fmt.Errorf("%w: origin and destination are required", ErrInvalidInput)
	}
	if weight < 0 || volume < 0 || declaredValue < 0 {
		return model.CostResult{}, fmt.Errorf("%w: negative values are not allowed", ErrInvalidInput)
	}

	return service.calculator.Calculate(origin, destination, weight, volume, declaredValue)
}

func (service *service) CreateInvoice(invoice model.Invoice) (model.Invoice, error) {
	if invoice.ShipmentID == "" || invoice.ClientID == "" {
		return model.Invoice{}, fmt.Errorf("%w: shipmentId and clientId are required", ErrInvalidInput)
	}
	if invoice.Subtotal < 0 || invoice.Tax < 0 || invoice.Discount < 0 || invoice.Total < 0 {
		return model.Invoice{}, fmt.Errorf("%w: negative amounts are not allowed", ErrInvalidInput)
	}

	// итог принимается от вызывающей стороны как есть, согласованность
	// с subtotal/tax/discount не проверяется
	return service.ledger.Create(invoice)
}

func (service *service) GetInvoice(id string) (model.Invoice, error) {
	invoice, err := service.ledger.Get(id)
	if err != nil {
		return model.Invoice{}, mapStoreErr(err)
	}
	return invoice, nil
}

func (service *service) GetInvoiceByNumber(number string) (model.Invoice, error) {
	invoice, err := service.ledger.GetByNumber(number)
	if err != nil {
		return model.Invoice{}, mapStoreErr(err)
	}
	return invoice, nil
}

func (service *service) ListInvoices(filter model.InvoiceFilter) ([]model.Invoice, error) {
	return service.ledger.List(filter)
}

func (service *service) UpdateInvoice(id string, patch model.InvoicePatch) (model.Invoice, error) {
	for _, amount := range []*float64{patch.Subtotal, patch.Tax, patch.Discount, patch.Total} {
		if amount != nil && *amount < 0 {
			return model.Invoice{}, fmt.Errorf("%w: negative amounts are not allowed", ErrInvalidInput)
		}
	}

	invoice, err := service.ledger.Update(id, patch)
	if err != nil {
		return model.Invoice{}, mapStoreErr(err)
	}
	return invoice, nil
}

func (service *service) CancelInvoice(id string) (model.Invoice, error) {
	invoice, err := service.ledger.Cancel(id)
	if err != nil {
		if errors.Is(err, ledger.ErrPaidInvoice) {
			return model.Invoice{}, fmt.Errorf("%w: cannot cancel a paid invoice", ErrInvalidOperation)
		}
		return model.Invoice{}, mapStoreErr(err)
	}
	return invoice, nil
}

func (service *service) DeleteInvoice(id string) error {
	err := service.ledger.Delete(id)
	if err != nil {
		if errors.Is(err, store.ErrHasPayments) {
			return fmt.Errorf("%w: cannot delete invoice with existing payments", ErrInvalidOperation)
		}
		return mapStoreErr(err)
	}
	return nil
}

func (service *service) AddPayment(payment model.Payment) (model.Payment, error) {
	if payment.InvoiceID == "" {
		return model.Payment{}, fmt.Errorf("%w: invoiceId is required", ErrInvalidInput)
	}
	if !model.ValidPaymentMethod(payment.Method) {
		return model.Payment{}, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, payment.Method)
	}

	payment, invoice, err := service.ledger.AddPayment(payment)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrAmountIncorrect):
			return model.Payment{}, fmt.Errorf("%w: payment amount must be positive", ErrInvalidInput)
		case errors.Is(err, store.ErrExceedsBalance):
			return model.Payment{}, fmt.Errorf("%w: payment amount exceeds invoice balance", ErrInvalidInput)
		default:
			return model.Payment{}, mapStoreErr(err)
		}
	}

	if invoice.Status == model.InvoiceStatusPaid && service.cfg.NotifyAddr != "" {
		go service.sendPaymentConfirmation(invoice, payment)
	}

	return payment, nil
}

// Отправка подтверждения платежа сервису уведомлений.
// Ядро биллинга за доставку не отвечает: ошибка логируется и не всплывает
func (service *service) sendPaymentConfirmation(invoice model.Invoice, payment model.Payment) {
	err := service.notify.SendPaymentConfirmation(notifyclient.PaymentConfirmation{
		InvoiceNumber: invoice.InvoiceNumber,
		Amount:        payment.Amount,
		PaymentMethod: payment.Method,
		ClientID:      invoice.ClientID,
		Currency:      service.currency,
	})
	if err != nil {
		service.zaplog.Error("payment confirmation failed",
			zap.String("invoiceNumber", invoice.InvoiceNumber),
			zap.Error(err))
	}
}

func (service *service) GetPayment(id string) (model.Payment, error) {
	payment, err := service.ledger.GetPayment(id)
	if err != nil {
		return model.Payment{}, mapStoreErr(err)
	}
	return payment, nil
}

func (service *service) ListPayments(filter model.PaymentFilter) ([]model.Payment, error) {
	return service.ledger.ListPayments(filter)
}

func (service *service) RemovePayment(id string) error {
	_, err := service.ledger.RemovePayment(id)
	if err != nil {
		return mapStoreErr(err)
	}
	return nil
}

func (service *service) CreateTariff(tariff model.TariffRule) (model.TariffRule, error) {
	ctx := context.Background()

	if tariff.Name == "" || tariff.Origin == "" || tariff.Destination == "" {
		return model.TariffRule{}, fmt.Errorf("%w: name, origin and destination are required", ErrInvalidInput)
	}
	if tariff.BaseRate < 0 || tariff.RatePerKg < 0 || tariff.RatePerCbm < 0 {
		return model.TariffRule{}, fmt.Errorf("%w: negative rates are not allowed", ErrInvalidInput)
	}
	if tariff.InsuranceRate < 0 || tariff.InsuranceRate > 100 {
		return model.TariffRule{}, fmt.Errorf("%w: insurance rate must be between 0 and 100", ErrInvalidInput)
	}

	return service.store.TariffCreate(ctx, tariff)
}

func (service *service) GetTariff(id string) (model.TariffRule, error) {
	ctx := context.Background()

	tariff, err := service.store.TariffGet(ctx, id)
	if err != nil {
		return model.TariffRule{}, mapStoreErr(err)
	}
	return tariff, nil
}

func (service *service) ListTariffs(filter model.TariffFilter) ([]model.TariffRule, error) {
	ctx := context.Background()

	return service.store.TariffList(ctx, filter)
}

func (service *service) UpdateTariff(id string, patch model.TariffPatch) (model.TariffRule, error) {
	ctx := context.Background()

	tariff, err := service.store.TariffGet(ctx, id)
	if err != nil {
		return model.TariffRule{}, mapStoreErr(err)
	}

	if patch.Name != nil {
		tariff.Name = *patch.Name
	}
	if patch.Origin != nil {
		tariff.Origin = *patch.Origin
	}
	if patch.Destination != nil {
		tariff.Destination = *patch.Destination
	}
	if patch.BaseRate != nil {
		tariff.BaseRate = *patch.BaseRate
	}
	if patch.RatePerKg != nil {
		tariff.RatePerKg = *patch.RatePerKg
	}
	if patch.RatePerCbm != nil {
		tariff.RatePerCbm = *patch.RatePerCbm
	}
	if patch.InsuranceRate != nil {
		tariff.InsuranceRate = *patch.InsuranceRate
	}
	if patch.IsActive != nil {
		tariff.IsActive = *patch.IsActive
	}

	if tariff.BaseRate < 0 || tariff.RatePerKg < 0 || tariff.RatePerCbm < 0 {
		return model.TariffRule{}, fmt.Errorf("%w: negative rates are not allowed", ErrInvalidInput)
	}
	if tariff.InsuranceRate < 0 || tariff.InsuranceRate > 100 {
		return model.TariffRule{}, fmt.Errorf("%w: insurance rate must be between 0 and 100", ErrInvalidInput)
	}

	updated, err := service.store.TariffUpdate(ctx, tariff)
	if err != nil {
		return model.TariffRule{}, mapStoreErr(err)
	}
	return updated, nil
}

func (service *service) DeleteTariff(id string) error {
	ctx := context.Background()

	if err := service.store.TariffDelete(ctx, id); err != nil {
		return mapStoreErr(err)
	}
	return nil
}

func (service *service) InvoiceStats() (model.InvoiceStats, error) {
	ctx := context.Background()

	stats, err := service.store.InvoiceStats(ctx)
	if err != nil {
		return model.InvoiceStats{}, err
	}
	stats.Currency = service.currency
	return stats, nil
}

func (service *service) PaymentStats() (model.PaymentStats, error) {
	ctx := context.Background()

	stats, err := service.store.PaymentStats(ctx)
	if err != nil {
		return model.PaymentStats{}, err
	}
	stats.Currency = service.currency
	return stats, nil
}

func (service *service) RevenueReport(from *time.Time, to *time.Time) (model.RevenueReport, error) {
	ctx := context.Background()

	report, err := service.store.RevenueReport(ctx, from, to)
	if err != nil {
		return model.RevenueReport{}, err
	}
	report.Currency = service.currency
	return report, nil
}

func (service *service) OutstandingReport() (model.OutstandingReport, error) {
	ctx := context.Background()

	report, err := service.store.OutstandingReport(ctx, time.Now())
	if err != nil {
		return model.OutstandingReport{}, err
	}
	report.Currency = service.currency
	return report, nil
}

func (service *service) PaymentMethodBreakdown() (model.MethodBreakdown, error) {
	ctx := context.Background()

	breakdown, err := service.store.PaymentMethodBreakdown(ctx)
	if err != nil {
		return model.MethodBreakdown{}, err
	}
	breakdown.Currency = service.currency
	return breakdown, nil
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

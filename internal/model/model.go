package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Счета

const (
	InvoiceStatusPending   = "PENDING"
	InvoiceStatusPartial   = "PARTIAL"
	InvoiceStatusPaid      = "PAID"
	InvoiceStatusCancelled = "CANCELLED"
	InvoiceStatusRefunded  = "REFUNDED"
)

type Invoice struct {
	ID            string
	InvoiceNumber string
	ShipmentID    string
	ClientID      string
	Subtotal      float64
	Tax           float64
	Discount      float64
	Total         float64
	AmountPaid    float64
	Balance       float64
	Status        string
	DueDate       *time.Time
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InvoicePatch - частичное обновление счета. nil - поле не меняется
type InvoicePatch struct {
	ShipmentID *string
	ClientID   *string
	Subtotal   *float64
	Tax        *float64
	Discount   *float64
	Total      *float64
	DueDate    *time.Time
}

// Settle пересчитывает Balance, Status и PaidAt по Total и AmountPaid.
// Вызывается при каждой операции с платежами. При ручном изменении total
// не вызывается: статус меняется только через платежи
func (inv *Invoice) Settle(now time.Time) {
	inv.Balance = inv.Total - inv.AmountPaid

	switch {
	case inv.AmountPaid <= 0:
		inv.Status = InvoiceStatusPending
		inv.PaidAt = nil
	case inv.Balance <= 0:
		inv.Status = InvoiceStatusPaid
		if inv.PaidAt == nil {
			paidAt := now
			inv.PaidAt = &paidAt
		}
	default:
		inv.Status = InvoiceStatusPartial
		inv.PaidAt = nil
	}
}

// Revert пересчитывает Balance и Status после удаления платежа.
// Статус PAID на этом пути заново не выводится: удаление платежа
// только уменьшает AmountPaid
func (inv *Invoice) Revert() {
	inv.Balance = inv.Total - inv.AmountPaid

	switch {
	case inv.AmountPaid <= 0:
		inv.Status = InvoiceStatusPending
		inv.PaidAt = nil
	case inv.Balance > 0:
		inv.Status = InvoiceStatusPartial
		inv.PaidAt = nil
	}
}

// FormatInvoiceNumber собирает номер счета INV-YYYYMM-NNNN.
// seq - порядковый номер внутри календарного месяца
func FormatInvoiceNumber(createdAt time.Time, seq int) string {
	return InvoiceNumberPrefix(createdAt) + fmt.Sprintf("%04d", seq)
}

// InvoiceNumberPrefix - общий префикс INV-YYYYMM- номеров за месяц
func InvoiceNumberPrefix(createdAt time.Time) string {
	return fmt.Sprintf("INV-%04d%02d-", createdAt.Year(), int(createdAt.Month()))
}

// InvoiceNumberSeq извлекает порядковый номер из номера счета.
// Для нераспознанного номера возвращает 0
func InvoiceNumberSeq(number string) int {
	idx := strings.LastIndexByte(number, '-')
	if idx < 0 {
		return 0
	}
	seq, err := strconv.Atoi(number[idx+1:])
	if err != nil {
		return 0
	}
	return seq
}

// Платежи

const (
	PaymentMethodMTNMomo      = "MTN_MOMO"
	PaymentMethodOrangeMoney  = "ORANGE_MONEY"
	PaymentMethodCash         = "CASH"
	PaymentMethodBankTransfer = "BANK_TRANSFER"
	PaymentMethodCard         = "CARD"
)

type Payment struct {
	ID            string
	InvoiceID     string
	Amount        float64
	Method        string
	TransactionID string
	Reference     string
	Notes         string
	ProcessedBy   string
	CreatedAt     time.Time
}

func ValidPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodMTNMomo,
		PaymentMethodOrangeMoney,
		PaymentMethodCash,
		PaymentMethodBankTransfer,
		PaymentMethodCard:
		return true
	}
	return false
}

// Тарифные правила

type TariffRule struct {
	ID            string
	Name          string
	Origin        string
	Destination   string
	BaseRate      float64
	RatePerKg     float64
	RatePerCbm    float64
	InsuranceRate float64
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Расчет стоимости перевозки

type CostBreakdown struct {
	BaseRate      float64
	WeightCost    float64
	VolumeCost    float64
	InsuranceCost float64
}

type CostResult struct {
	Breakdown     CostBreakdown
	Subtotal      float64
	Tax           float64
	Total         float64
	Currency      string
	TariffApplied string
}

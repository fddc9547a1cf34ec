package model

import "time"

// Фильтры выборок. Явные структуры вместо произвольных наборов полей

type InvoiceFilter struct {
	ClientID   string
	ShipmentID string
	Status     string
	DateFrom   *time.Time
	DateTo     *time.Time
}

type PaymentFilter struct {
	InvoiceID string
	Method    string
}

type TariffFilter struct {
	Origin      string
	Destination string
	IsActive    *bool
}

// TariffPatch - частичное обновление тарифного правила
type TariffPatch struct {
	Name          *string
	Origin        *string
	Destination   *string
	BaseRate      *float64
	RatePerKg     *float64
	RatePerCbm    *float64
	InsuranceRate *float64
	IsActive      *bool
}

// Отчеты. Только чтение, при пустых данных возвращаются нули

type InvoiceStatusCounts struct {
	Pending   int
	Partial   int
	Paid      int
	Cancelled int
}

type InvoiceStats struct {
	TotalInvoices    int
	ByStatus         InvoiceStatusCounts
	TotalAmount      float64
	TotalPaid        float64
	TotalOutstanding float64
	Currency         string
}

type MethodStat struct {
	Method      string
	Count       int
	TotalAmount float64
	Percentage  float64
}

type PaymentStats struct {
	TotalPayments int
	TotalAmount   float64
	ByMethod      []MethodStat
	Currency      string
}

type RevenueReport struct {
	StartDate           *time.Time
	EndDate             *time.Time
	TotalInvoices       int
	TotalRevenue        float64
	AverageInvoiceValue float64
	Currency            string
}

type OutstandingInvoice struct {
	InvoiceNumber string
	ClientID      string
	Balance       float64
	DueDate       *time.Time
	IsOverdue     bool
}

type OutstandingReport struct {
	TotalInvoices    int
	OverdueInvoices  int
	TotalOutstanding float64
	TotalOverdue     float64
	Invoices         []OutstandingInvoice
	Currency         string
}

type MethodBreakdown struct {
	Breakdown   []MethodStat
	TotalAmount float64
	Currency    string
}

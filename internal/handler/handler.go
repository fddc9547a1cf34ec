package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/cargofret/billing/internal/handler/config"
	"github.com/cargofret/billing/internal/logger"
	"github.com/cargofret/billing/internal/model"
	"github.com/cargofret/billing/internal/service"
)

func Serve(cfg config.Config, service service.Service, zaplog *zap.Logger) error {
	h := newHandler(service, zaplog)
	router := h.newRouter()

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: router,
	}

	return srv.ListenAndServe()
}

type handler struct {
	service service.Service
	zaplog  *zap.Logger
}

func newHandler(service service.Service, zaplog *zap.Logger) *handler {
	return &handler{
		service: service,
		zaplog:  zaplog,
	}
}

func (h *handler) newRouter() chi.Router {
	router := chi.NewRouter()
	router.Use(logger.RequestLogMdlw(h.zaplog))
	router.Use(middleware.Compress(5))

	router.Route("/api/billing", func(router chi.Router) {
		router.Post("/calculate", h.CalculateCost)

		router.Route("/invoices", func(router chi.Router) {
			router.Post("/", h.CreateInvoice)
			router.Get("/", h.ListInvoices)
			router.Get("/stats", h.InvoiceStats)
			router.Get("/number/{invoiceNumber}", h.GetInvoiceByNumber)
			router.Get("/{id}", h.GetInvoice)
			router.Patch("/{id}", h.UpdateInvoice)
			router.Delete("/{id}", h.DeleteInvoice)
			router.Post("/{id}/cancel", h.CancelInvoice)
		})

		router.Route("/payments", func(router chi.Router) {
			router.Post("/", h.AddPayment)
			router.Get("/", h.ListPayments)
			router.Get("/stats", h.PaymentStats)
			router.Get("/{id}", h.GetPayment)
			router.Delete("/{id}", h.RemovePayment)
		})

		router.Route("/tariffs", func(router chi.Router) {
			router.Post("/", h.CreateTariff)
			router.Get("/", h.ListTariffs)
			router.Get("/{id}", h.GetTariff)
			router.Patch("/{id}", h.UpdateTariff)
			router.Delete("/{id}", h.DeleteTariff)
		})

		router.Route("/reports", func(router chi.Router) {
			router.Get("/revenue", h.RevenueReport)
			router.Get("/outstanding", h.OutstandingReport)
			router.Get("/payment-methods", h.PaymentMethodBreakdown)
		})
	})

	return router
}

func (h *handler) writeJSON(w http.ResponseWriter, code int, value any) {
	responseJSON, err := json.Marshal(value)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(responseJSON)
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrInvalidOperation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func readBody(r *http.Request, request any) error {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(r.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf.Bytes(), request)
}

// Расчет стоимости

type CalculateCostJSONRequest struct {
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	Weight        float64 `json:"weight"`
	Volume        float64 `json:"volume"`
	DeclaredValue float64 `json:"declaredValue"`
}

type CostBreakdownJSON struct {
	BaseRate      float64 `json:"baseRate"`
	WeightCost    float64 `json:"weightCost"`
	VolumeCost    float64 `json:"volumeCost"`
	InsuranceCost float64 `json:"insuranceCost"`
}

type CostResultJSONResponse struct {
	Breakdown     CostBreakdownJSON `json:"breakdown"`
	Subtotal      float64           `json:"subtotal"`
	Tax           float64           `json:"tax"`
	Total         float64           `json:"total"`
	Currency      string            `json:"currency"`
	TariffApplied string            `json:"tariffApplied"`
}

func (h *handler) CalculateCost(w http.ResponseWriter, r *http.Request) {
	var request CalculateCostJSONRequest
	if err := readBody(r, &request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.CalculateCost(request.Origin, request.Destination,
		request.Weight, request.Volume, request.DeclaredValue)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, CostResultJSONResponse{
		Breakdown: CostBreakdownJSON{
			BaseRate:      result.Breakdown.BaseRate,
			WeightCost:    result.Breakdown.WeightCost,
			VolumeCost:    result.Breakdown.VolumeCost,
			InsuranceCost: result.Breakdown.InsuranceCost,
		},
		Subtotal:      result.Subtotal,
		Tax:           result.Tax,
		Total:         result.Total,
		Currency:      result.Currency,
		TariffApplied: result.TariffApplied,
	})
}

// Счета

type InvoiceJSONResponse struct {
	ID            string     `json:"id"`
	InvoiceNumber string     `json:"invoiceNumber"`
	ShipmentID    string     `json:"shipmentId"`
	ClientID      string     `json:"clientId"`
	Subtotal      float64    `json:"subtotal"`
	Tax           float64    `json:"tax"`
	Discount      float64    `json:"discount"`
	Total         float64    `json:"total"`
	AmountPaid    float64    `json:"amountPaid"`
	Balance       float64    `json:"balance"`
	Status        string     `json:"status"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func invoiceJSON(invoice model.Invoice) InvoiceJSONResponse {
	return InvoiceJSONResponse{
		ID:            invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		ShipmentID:    invoice.ShipmentID,
		ClientID:      invoice.ClientID,
		Subtotal:      invoice.Subtotal,
		Tax:           invoice.Tax,
		Discount:      invoice.Discount,
		Total:         invoice.Total,
		AmountPaid:    invoice.AmountPaid,
		Balance:       invoice.Balance,
		Status:        invoice.Status,
		DueDate:       invoice.DueDate,
		PaidAt:        invoice.PaidAt,
		CreatedAt:     invoice.CreatedAt,
		UpdatedAt:     invoice.UpdatedAt,
	}
}

type CreateInvoiceJSONRequest struct {
	ShipmentID string     `json:"shipmentId"`
	ClientID   string     `json:"clientId"`
	Subtotal   float64    `json:"subtotal"`
	Tax        float64    `json:"tax"`
	Discount   float64    `json:"discount"`
	Total      float64    `json:"total"`
	DueDate    *time.Time `json:"dueDate"`
}

func (h *handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var request CreateInvoiceJSONRequest
	if err := readBody(r, &request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	invoice, err := h.service.CreateInvoice(model.Invoice{
		ShipmentID: request.ShipmentID,
		ClientID:   request.ClientID,
		Subtotal:   request.Subtotal,
		Tax:        request.Tax,
		Discount:   request.Discount,
		Total:      request.Total,
		DueDate:    request.DueDate,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, invoiceJSON(invoice))
}

func (h *handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	filter := model.InvoiceFilter{
		ClientID:   r.URL.Query().Get("clientId"),
		ShipmentID: r.URL.Query().Get("shipmentId"),
		Status:     r.URL.Query().Get("status"),
	}
	var err error
	filter.DateFrom, err = queryTime(r, "dateFrom")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter.DateTo, err = queryTime(r, "dateTo")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	invoices, err := h.service.ListInvoices(filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := make([]InvoiceJSONResponse, 0, len(invoices))
	for _, invoice := range invoices {
		response = append(response, invoiceJSON(invoice))
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.service.GetInvoice(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, invoiceJSON(invoice))
}

func (h *handler) GetInvoiceByNumber(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.service.GetInvoiceByNumber(chi.URLParam(r, "invoiceNumber"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, invoiceJSON(invoice))
}

type UpdateInvoiceJSONRequest struct {
	ShipmentID *string    `json:"shipmentId"`
	ClientID   *string    `json:"clientId"`
	Subtotal   *float64   `json:"subtotal"`
	Tax        *float64   `json:"tax"`
	Discount   *float64   `json:"discount"`
	Total      *float64   `json:"total"`
	DueDate    *time.Time `json:"dueDate"`
}

func (h *handler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	var request UpdateInvoiceJSONRequest
	if err := readBody(r, &request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	invoice, err := h.service.UpdateInvoice(chi.URLParam(r, "id"), model.InvoicePatch{
		ShipmentID: request.ShipmentID,
		ClientID:   request.ClientID,
		Subtotal:   request.Subtotal,
		Tax:        request.Tax,
		Discount:   request.Discount,
		Total:      request.Total,
		DueDate:    request.DueDate,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, invoiceJSON(invoice))
}

func (h *handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteInvoice(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) CancelInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.service.CancelInvoice(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, invoiceJSON(invoice))
}

// Платежи

type PaymentJSONResponse struct {
	ID            string    `json:"id"`
	InvoiceID     string    `json:"invoiceId"`
	Amount        float64   `json:"amount"`
	Method        string    `json:"method"`
	TransactionID string    `json:"transactionId,omitempty"`
	Reference     string    `json:"reference,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	ProcessedBy   string    `json:"processedBy,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func paymentJSON(payment model.Payment) PaymentJSONResponse {
	return PaymentJSONResponse{
		ID:            payment.ID,
		InvoiceID:     payment.InvoiceID,
		Amount:        payment.Amount,
		Method:        payment.Method,
		TransactionID: payment.TransactionID,
		Reference:     payment.Reference,
		Notes:         payment.Notes,
		ProcessedBy:   payment.ProcessedBy,
		CreatedAt:     payment.CreatedAt,
	}
}

type AddPaymentJSONRequest struct {
	InvoiceID     string  `json:"invoiceId"`
	Amount        float64 `json:"amount"`
	Method        string  `json:"method"`
	TransactionID string  `json:"transactionId"`
	Reference     string  `json:"reference"`
	Notes         string  `json:"notes"`
	ProcessedBy   string  `json:"processedBy"`
}

func (h *handler) AddPayment(w http.ResponseWriter, r *http.Request) {
	var request AddPaymentJSONRequest
	if err := readBody(r, &request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	payment, err := h.service.AddPayment(model.Payment{
		InvoiceID:     request.InvoiceID,
		Amount:        request.Amount,
		Method:        request.Method,
		TransactionID: request.TransactionID,
		Reference:     request.Reference,
		Notes:         request.Notes,
		ProcessedBy:   request.ProcessedBy,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, paymentJSON(payment))
}

func (h *handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.ListPayments(model.PaymentFilter{
		InvoiceID: r.URL.Query().Get("invoiceId"),
		Method:    r.URL.Query().Get("method"),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := make([]PaymentJSONResponse, 0, len(payments))
	for _, payment := range payments {
		response = append(response, paymentJSON(payment))
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.service.GetPayment(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, paymentJSON(payment))
}

func (h *handler) RemovePayment(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemovePayment(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Тарифные правила

type TariffJSONResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	BaseRate      float64   `json:"baseRate"`
	RatePerKg     float64   `json:"ratePerKg"`
	RatePerCbm    float64   `json:"ratePerCbm"`
	InsuranceRate float64   `json:"insuranceRate"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func tariffJSON(tariff model.TariffRule) TariffJSONResponse {
	return TariffJSONResponse{
		ID:            tariff.ID,
		Name:          tariff.Name,
		Origin:        tariff.Origin,
		Destination:   tariff.Destination,
		BaseRate:      tariff.BaseRate,
		RatePerKg:     tariff.RatePerKg,
		RatePerCbm:    tariff.RatePerCbm,
		InsuranceRate: tariff.InsuranceRate,
		IsActive:      tariff.IsActive,
		CreatedAt:     tariff.CreatedAt,
		UpdatedAt:     tariff.UpdatedAt,
	}
}

type CreateTariffJSONRequest struct {
	Name          string  `json:"name"`
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	BaseRate      float64 `json:"baseRate"`
	RatePerKg     float64 `json:"ratePerKg"`
	RatePerCbm    float64 `json:"ratePerCbm"`
	InsuranceRate float64 `json:"insuranceRate"`
	IsActive      *bool   `json:"isActive"`
}

func (h *handler) CreateTariff(w http.ResponseWriter, r *http.Request) {
	var request CreateTariffJSONRequest
	if err := readBody(r, &request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	isActive := true
	if request.IsActive != nil {
		isActive = *request.IsActive
	}

	tariff, err := h.service.CreateTariff(model.TariffRule{
		Name:          request.Name,
		Origin:        request.Origin,
		Destination:   request.Destination,
		BaseRate:      request.BaseRate,
		RatePerKg:     request.RatePerKg,
		RatePerCbm:    request.RatePerCbm,
		InsuranceRate: request.InsuranceRate,
		IsActive:      isActive,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, tariffJSON(tariff))
}

func (h *handler) ListTariffs(w http.ResponseWriter, r *http.Request) {
	filter := model.TariffFilter{
		Origin:      r.URL.Query().Get("origin"),
		Destination: r.URL.Query().Get("destination"),
	}
	if value := r.URL.Query().Get("isActive"); value != "" {
		isActive, err := strconv.ParseBool(value)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter.IsActive = &isActive
	}

	tariffs, err := h.service.ListTariffs(filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := make([]TariffJSONResponse, 0, len(tariffs))
	for _, tariff := range tariffs {
		response = append(response, tariffJSON(tariff))
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *handler) GetTariff(w http.ResponseWriter, r *http.Request) {
	tariff, err := h.service.GetTariff(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tariffJSON(tariff))
}

type UpdateTariffJSONRequest struct {
	Name          *string  `json:"name"`
	Origin        *string  `json:"origin"`
	Destination   *string  `json:"destination"`
	BaseRate      *float64 `json:"baseRate"`
	RatePerKg     *float64 `json:"ratePerKg"`
	RatePerCbm    *float64 `json:"ratePerCbm"`
	InsuranceRate *float64 `json:"insuranceRate"`
	IsActive      *bool    `json:"isActive"`
}

func (h *handler) UpdateTariff(w http.ResponseWriter, r *http.Request) {
	var request UpdateTariffJSONRequest
	if err := readBody(r, &request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tariff, err := h.service.UpdateTariff(chi.URLParam(r, "id"), model.TariffPatch{
		Name:          request.Name,
		Origin:        request.Origin,
		Destination:   request.Destination,
		BaseRate:      request.BaseRate,
		RatePerKg:     request.RatePerKg,
		RatePerCbm:    request.RatePerCbm,
		InsuranceRate: request.InsuranceRate,
		IsActive:      request.IsActive,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, tariffJSON(tariff))
}

func (h *handler) DeleteTariff(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTariff(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Отчеты

type InvoiceStatsJSONResponse struct {
	TotalInvoices int `json:"totalInvoices"`
	ByStatus      struct {
		Pending   int `json:"pending"`
		Partial   int `json:"partial"`
		Paid      int `json:"paid"`
		Cancelled int `json:"cancelled"`
	} `json:"byStatus"`
	Amounts struct {
		TotalAmount      float64 `json:"totalAmount"`
		TotalPaid        float64 `json:"totalPaid"`
		TotalOutstanding float64 `json:"totalOutstanding"`
	} `json:"amounts"`
	Currency string `json:"currency"`
}

func (h *handler) InvoiceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.InvoiceStats()
	if err != nil {
		h.writeError(w, err)
		return
	}

	var response InvoiceStatsJSONResponse
	response.TotalInvoices = stats.TotalInvoices
	response.ByStatus.Pending = stats.ByStatus.Pending
	response.ByStatus.Partial = stats.ByStatus.Partial
	response.ByStatus.Paid = stats.ByStatus.Paid
	response.ByStatus.Cancelled = stats.ByStatus.Cancelled
	response.Amounts.TotalAmount = stats.TotalAmount
	response.Amounts.TotalPaid = stats.TotalPaid
	response.Amounts.TotalOutstanding = stats.TotalOutstanding
	response.Currency = stats.Currency
	h.writeJSON(w, http.StatusOK, response)
}

type MethodStatJSON struct {
	Method      string  `json:"method"`
	Count       int     `json:"count"`
	TotalAmount float64 `json:"totalAmount"`
	Percentage  float64 `json:"percentage,omitempty"`
}

type PaymentStatsJSONResponse struct {
	TotalPayments int              `json:"totalPayments"`
	TotalAmount   float64          `json:"totalAmount"`
	ByMethod      []MethodStatJSON `json:"byMethod"`
	Currency      string           `json:"currency"`
}

func (h *handler) PaymentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.PaymentStats()
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := PaymentStatsJSONResponse{
		TotalPayments: stats.TotalPayments,
		TotalAmount:   stats.TotalAmount,
		ByMethod:      make([]MethodStatJSON, 0, len(stats.ByMethod)),
		Currency:      stats.Currency,
	}
	for _, stat := range stats.ByMethod {
		response.ByMethod = append(response.ByMethod, MethodStatJSON{
			Method:      stat.Method,
			Count:       stat.Count,
			TotalAmount: stat.TotalAmount,
		})
	}
	h.writeJSON(w, http.StatusOK, response)
}

type RevenueReportJSONResponse struct {
	Period struct {
		StartDate *time.Time `json:"startDate"`
		EndDate   *time.Time `json:"endDate"`
	} `json:"period"`
	TotalInvoices       int     `json:"totalInvoices"`
	TotalRevenue        float64 `json:"totalRevenue"`
	AverageInvoiceValue float64 `json:"averageInvoiceValue"`
	Currency            string  `json:"currency"`
}

func (h *handler) RevenueReport(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "startDate")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := queryTime(r, "endDate")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.service.RevenueReport(from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var response RevenueReportJSONResponse
	response.Period.StartDate = report.StartDate
	response.Period.EndDate = report.EndDate
	response.TotalInvoices = report.TotalInvoices
	response.TotalRevenue = report.TotalRevenue
	response.AverageInvoiceValue = report.AverageInvoiceValue
	response.Currency = report.Currency
	h.writeJSON(w, http.StatusOK, response)
}

type OutstandingInvoiceJSON struct {
	InvoiceNumber string     `json:"invoiceNumber"`
	ClientID      string     `json:"clientId"`
	Balance       float64    `json:"balance"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	IsOverdue     bool       `json:"isOverdue"`
}

type OutstandingReportJSONResponse struct {
	TotalInvoices    int                      `json:"totalInvoices"`
	OverdueInvoices  int                      `json:"overdueInvoices"`
	TotalOutstanding float64                  `json:"totalOutstanding"`
	TotalOverdue     float64                  `json:"totalOverdue"`
	Invoices         []OutstandingInvoiceJSON `json:"invoices"`
	Currency         string                   `json:"currency"`
}

func (h *handler) OutstandingReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.OutstandingReport()
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := OutstandingReportJSONResponse{
		TotalInvoices:    report.TotalInvoices,
		OverdueInvoices:  report.OverdueInvoices,
		TotalOutstanding: report.TotalOutstanding,
		TotalOverdue:     report.TotalOverdue,
		Invoices:         make([]OutstandingInvoiceJSON, 0, len(report.Invoices)),
		Currency:         report.Currency,
	}
	for _, invoice := range report.Invoices {
		response.Invoices = append(response.Invoices, OutstandingInvoiceJSON{
			InvoiceNumber: invoice.InvoiceNumber,
			ClientID:      invoice.ClientID,
			Balance:       invoice.Balance,
			DueDate:       invoice.DueDate,
			IsOverdue:     invoice.IsOverdue,
		})
	}
	h.writeJSON(w, http.StatusOK, response)
}

type MethodBreakdownJSONResponse struct {
	Breakdown   []MethodStatJSON `json:"breakdown"`
	TotalAmount float64          `json:"totalAmount"`
	Currency    string           `json:"currency"`
}

func (h *handler) PaymentMethodBreakdown(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.service.PaymentMethodBreakdown()
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := MethodBreakdownJSONResponse{
		Breakdown:   make([]MethodStatJSON, 0, len(breakdown.Breakdown)),
		TotalAmount: breakdown.TotalAmount,
		Currency:    breakdown.Currency,
	}
	for _, stat := range breakdown.Breakdown {
		response.Breakdown = append(response.Breakdown, MethodStatJSON{
			Method:      stat.Method,
			Count:       stat.Count,
			TotalAmount: stat.TotalAmount,
			Percentage:  stat.Percentage,
		})
	}
	h.writeJSON(w, http.StatusOK, response)
}

func queryTime(r *http.Request, name string) (*time.Time, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

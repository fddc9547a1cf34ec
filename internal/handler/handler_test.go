package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	calculatorConfig "github.com/cargofret/billing/internal/calculator/config"
	"github.com/cargofret/billing/internal/model"
	"github.com/cargofret/billing/internal/service"
	serviceConfig "github.com/cargofret/billing/internal/service/config"
	"github.com/cargofret/billing/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	billing := service.NewService(serviceConfig.Config{}, calculatorConfig.Default(), store.NewMemStore(), zap.NewNop())
	h := newHandler(billing, zap.NewNop())
	server := httptest.NewServer(h.newRouter())
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method string, url string, body any) *http.Response {
	t.Helper()
	var reader bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reader).Encode(body))
	}
	request, err := http.NewRequest(method, url, &reader)
	require.NoError(t, err)
	request.Header.Set("Content-Type", "application/json")
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	return response
}

func decodeJSON(t *testing.T, response *http.Response, value any) {
	t.Helper()
	defer response.Body.Close()
	require.NoError(t, json.NewDecoder(response.Body).Decode(value))
}

func createInvoice(t *testing.T, server *httptest.Server, total float64) InvoiceJSONResponse {
	t.Helper()
	response := doJSON(t, http.MethodPost, server.URL+"/api/billing/invoices", CreateInvoiceJSONRequest{
		ShipmentID: "ship-1",
		ClientID:   "client-1",
		Subtotal:   total,
		Total:      total,
	})
	require.Equal(t, http.StatusCreated, response.StatusCode)
	var invoice InvoiceJSONResponse
	decodeJSON(t, response, &invoice)
	return invoice
}

func TestCalculateCostHandler(t *testing.T) {
	server := newTestServer(t)

	response := doJSON(t, http.MethodPost, server.URL+"/api/billing/calculate", CalculateCostJSONRequest{
		Origin:        "CHINA",
		Destination:   "CAMEROON",
		Weight:        5.5,
		Volume:        0.25,
		DeclaredValue: 100000,
	})
	require.Equal(t, http.StatusOK, response.StatusCode)

	var result CostResultJSONResponse
	decodeJSON(t, response, &result)
	require.Equal(t, 17750.0, result.Subtotal)
	require.Equal(t, 3373.0, result.Tax)
	require.Equal(t, 21123.0, result.Total)
	require.Equal(t, "FCFA", result.Currency)
	require.Equal(t, "Default rates", result.TariffApplied)

	// отрицательный вес - 400
	response = doJSON(t, http.MethodPost, server.URL+"/api/billing/calculate", CalculateCostJSONRequest{
		Origin:      "CHINA",
		Destination: "CAMEROON",
		Weight:      -1,
	})
	response.Body.Close()
	require.Equal(t, http.StatusBadRequest, response.StatusCode)
}

func TestInvoiceHandlers(t *testing.T) {
	server := newTestServer(t)

	invoice := createInvoice(t, server, 54500)
	require.Equal(t, model.InvoiceStatusPending, invoice.Status)
	require.Equal(t, 54500.0, invoice.Balance)
	require.NotEmpty(t, invoice.InvoiceNumber)

	// по id и по номеру
	response := doJSON(t, http.MethodGet, server.URL+"/api/billing/invoices/"+invoice.ID, nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	response.Body.Close()

	response = doJSON(t, http.MethodGet, server.URL+"/api/billing/invoices/number/"+invoice.InvoiceNumber, nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	var byNumber InvoiceJSONResponse
	decodeJSON(t, response, &byNumber)
	require.Equal(t, invoice.ID, byNumber.ID)

	response = doJSON(t, http.MethodGet, server.URL+"/api/billing/invoices/missing", nil)
	response.Body.Close()
	require.Equal(t, http.StatusNotFound, response.StatusCode)

	// фильтр списка
	response = doJSON(t, http.MethodGet, server.URL+"/api/billing/invoices?clientId=client-1", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	var invoices []InvoiceJSONResponse
	decodeJSON(t, response, &invoices)
	require.Len(t, invoices, 1)

	response = doJSON(t, http.MethodGet, server.URL+"/api/billing/invoices?clientId=nobody", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	decodeJSON(t, response, &invoices)
	require.Empty(t, invoices)

	// частичное обновление
	response = doJSON(t, http.MethodPatch, server.URL+"/api/billing/invoices/"+invoice.ID,
		map[string]any{"total": 60000})
	require.Equal(t, http.StatusOK, response.StatusCode)
	var updated InvoiceJSONResponse
	decodeJSON(t, response, &updated)
	require.Equal(t, 60000.0, updated.Total)
	require.Equal(t, 60000.0, updated.Balance)

	// удаление
	response = doJSON(t, http.MethodDelete, server.URL+"/api/billing/invoices/"+invoice.ID, nil)
	response.Body.Close()
	require.Equal(t, http.StatusNoContent, response.StatusCode)

	response = doJSON(t, http.MethodDelete, server.URL+"/api/billing/invoices/"+invoice.ID, nil)
	response.Body.Close()
	require.Equal(t, http.StatusNotFound, response.StatusCode)
}

func TestPaymentHandlers(t *testing.T) {
	server := newTestServer(t)

	invoice := createInvoice(t, server, 100000)

	response := doJSON(t, http.MethodPost, server.URL+"/api/billing/payments", AddPaymentJSONRequest{
		InvoiceID: invoice.ID,
		Amount:    40000,
		Method:    model.PaymentMethodMTNMomo,
	})
	require.Equal(t, http.StatusCreated, response.StatusCode)
	var payment PaymentJSONResponse
	decodeJSON(t, response, &payment)
	require.Equal(t, 40000.0, payment.Amount)

	// платеж больше остатка - 400
	response = doJSON(t, http.MethodPost, server.URL+"/api/billing/payments", AddPaymentJSONRequest{
		InvoiceID: invoice.ID,
		Amount:    60001,
		Method:    model.PaymentMethodCash,
	})
	response.Body.Close()
	require.Equal(t, http.StatusBadRequest, response.StatusCode)

	// несуществующий счет - 404
	response = doJSON(t, http.MethodPost, server.URL+"/api/billing/payments", AddPaymentJSONRequest{
		InvoiceID: "missing",
		Amount:    100,
		Method:    model.PaymentMethodCash,
	})
	response.Body.Close()
	require.Equal(t, http.StatusNotFound, response.StatusCode)

	// удалить счет с платежами нельзя
	response = doJSON(t, http.MethodDelete, server.URL+"/api/billing/invoices/"+invoice.ID, nil)
	response.Body.Close()
	require.Equal(t, http.StatusBadRequest, response.StatusCode)

	// список по счету
	response = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/api/billing/payments?invoiceId=%s", server.URL, invoice.ID), nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	var payments []PaymentJSONResponse
	decodeJSON(t, response, &payments)
	require.Len(t, payments, 1)

	// удаление платежа возвращает счет в PENDING
	response = doJSON(t, http.MethodDelete, server.URL+"/api/billing/payments/"+payment.ID, nil)
	response.Body.Close()
	require.Equal(t, http.StatusNoContent, response.StatusCode)

	response = doJSON(t, http.MethodGet, server.URL+"/api/billing/invoices/"+invoice.ID, nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	var reverted InvoiceJSONResponse
	decodeJSON(t, response, &reverted)
	require.Equal(t, model.InvoiceStatusPending, reverted.Status)
	require.Equal(t, 100000.0, reverted.Balance)

	response = doJSON(t, http.MethodDelete, server.URL+"/api/billing/payments/"+payment.ID, nil)
	response.Body.Close()
	require.Equal(t, http.StatusNotFound, response.StatusCode)
}

func TestCancelInvoiceHandler(t *testing.T) {
	server := newTestServer(t)

	invoice := createInvoice(t, server, 500)
	response := doJSON(t, http.MethodPost, server.URL+"/api/billing/payments", AddPaymentJSONRequest{
		InvoiceID: invoice.ID,
		Amount:    500,
		Method:    model.PaymentMethodCash,
	})
	response.Body.Close()
	require.Equal(t, http.StatusCreated, response.StatusCode)

	// оплаченный счет не отменяется
	response = doJSON(t, http.MethodPost, server.URL+"/api/billing/invoices/"+invoice.ID+"/cancel", nil)
	response.Body.Close()
	require.Equal(t, http.StatusBadRequest, response.StatusCode)

	other := createInvoice(t, server, 700)
	response = doJSON(t, http.MethodPost, server.URL+"/api/billing/invoices/"+other.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	var cancelled InvoiceJSONResponse
	decodeJSON(t, response, &cancelled)
	require.Equal(t, model.InvoiceStatusCancelled, cancelled.Status)
}

func TestTariffHandlers(t *testing.T) {
	server := newTestServer(t)

	response := doJSON(t, http.MethodPost, server.URL+"/api/billing/tariffs", CreateTariffJSONRequest{
		Name:          "Sea freight Douala",
		Origin:        "CHINA",
		Destination:   "CAMEROON",
		BaseRate:      4000,
		RatePerKg:     1200,
		InsuranceRate: 2,
	})
	require.Equal(t, http.StatusCreated, response.StatusCode)
	var tariff TariffJSONResponse
	decodeJSON(t, response, &tariff)
	require.True(t, tariff.IsActive) // по умолчанию активен

	// расчет подхватывает тариф
	response = doJSON(t, http.MethodPost, server.URL+"/api/billing/calculate", CalculateCostJSONRequest{
		Origin:      "CHINA",
		Destination: "CAMEROON",
		Weight:      1,
	})
	require.Equal(t, http.StatusOK, response.StatusCode)
	var result CostResultJSONResponse
	decodeJSON(t, response, &result)
	require.Equal(t, "Sea freight Douala", result.TariffApplied)

	response = doJSON(t, http.MethodPatch, server.URL+"/api/billing/tariffs/"+tariff.ID,
		map[string]any{"isActive": false})
	require.Equal(t, http.StatusOK, response.StatusCode)
	var updated TariffJSONResponse
	decodeJSON(t, response, &updated)
	require.False(t, updated.IsActive)

	response = doJSON(t, http.MethodGet, server.URL+"/api/billing/tariffs?isActive=false", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	var tariffs []TariffJSONResponse
	decodeJSON(t, response, &tariffs)
	require.Len(t, tariffs, 1)

	response = doJSON(t, http.MethodDelete, server.URL+"/api/billing/tariffs/"+tariff.ID, nil)
	response.Body.Close()
	require.Equal(t, http.StatusNoContent, response.StatusCode)

	response = doJSON(t, http.MethodGet, server.URL+"/api/billing/tariffs/"+tariff.ID, nil)
	response.Body.Close()
	require.Equal(t, http.StatusNotFound, response.StatusCode)
}

func TestReportHandlers(t *testing.T) {
	server := newTestServer(t)

	// отчеты по пустой базе отвечают нулями, не ошибками
	response := doJSON(t, http.MethodGet, server.URL+"/api/billing/invoices/stats", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	var stats InvoiceStatsJSONResponse
	decodeJSON(t, response, &stats)
	require.Equal(t, 0, stats.TotalInvoices)
	require.Equal(t, "FCFA", stats.Currency)

	response = doJSON(t, http.MethodGet, server.URL+"/api/billing/payments/stats", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	var paymentStats PaymentStatsJSONResponse
	decodeJSON(t, response, &paymentStats)
	require.Equal(t, 0, paymentStats.TotalPayments)

	response = doJSON(t, http.MethodGet, server.URL+"/api/billing/reports/revenue", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	var revenue RevenueReportJSONResponse
	decodeJSON(t, response, &revenue)
	require.Equal(t, 0.0, revenue.TotalRevenue)

	response = doJSON(t, http.MethodGet, server.URL+"/api/billing/reports/outstanding", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	var outstanding OutstandingReportJSONResponse
	decodeJSON(t, response, &outstanding)
	require.Equal(t, 0, outstanding.TotalInvoices)

	response = doJSON(t, http.MethodGet, server.URL+"/api/billing/reports/payment-methods", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	var breakdown MethodBreakdownJSONResponse
	decodeJSON(t, response, &breakdown)
	require.Empty(t, breakdown.Breakdown)

	// наполнение: оплаченный счет попадает в выручку
	invoice := createInvoice(t, server, 30000)
	resp := doJSON(t, http.MethodPost, server.URL+"/api/billing/payments", AddPaymentJSONRequest{
		InvoiceID: invoice.ID,
		Amount:    30000,
		Method:    model.PaymentMethodOrangeMoney,
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	response = doJSON(t, http.MethodGet, server.URL+"/api/billing/reports/revenue", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	decodeJSON(t, response, &revenue)
	require.Equal(t, 1, revenue.TotalInvoices)
	require.Equal(t, 30000.0, revenue.TotalRevenue)

	// некорректная дата - 400
	response = doJSON(t, http.MethodGet, server.URL+"/api/billing/reports/revenue?startDate=yesterday", nil)
	response.Body.Close()
	require.Equal(t, http.StatusBadRequest, response.StatusCode)
}

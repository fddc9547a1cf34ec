package notifyclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendPaymentConfirmation(t *testing.T) {
	var received PaymentConfirmation
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/notifications/payment-confirmation", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewNotifyClient(server.URL)
	err := client.SendPaymentConfirmation(PaymentConfirmation{
		InvoiceNumber: "INV-202501-0001",
		Amount:        54500,
		PaymentMethod: "MTN_MOMO",
		ClientID:      "client-1",
		Currency:      "FCFA",
	})
	require.NoError(t, err)
	require.Equal(t, "INV-202501-0001", received.InvoiceNumber)
	require.Equal(t, 54500.0, received.Amount)
	require.Equal(t, "MTN_MOMO", received.PaymentMethod)
}

func TestSendPaymentConfirmationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewNotifyClient(server.URL)
	err := client.SendPaymentConfirmation(PaymentConfirmation{InvoiceNumber: "INV-202501-0001"})
	require.Error(t, err)
}

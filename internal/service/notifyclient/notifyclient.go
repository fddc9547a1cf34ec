package notifyclient

import (
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// Подтверждение платежа для сервиса уведомлений
type PaymentConfirmation struct {
	InvoiceNumber string  `json:"invoiceNumber"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"paymentMethod"`
	ClientID      string  `json:"clientId"`
	Currency      string  `json:"currency"`
}

type NotifyClient interface {
	SendPaymentConfirmation(confirmation PaymentConfirmation) error
}

type notifyClient struct {
	serviceAddr string
}

func NewNotifyClient(serviceAddr string) NotifyClient {
	return notifyClient{serviceAddr: serviceAddr}
}

func (client notifyClient) SendPaymentConfirmation(confirmation PaymentConfirmation) error {
	path := "/api/notifications/payment-confirmation"

	setreq := resty.New().R()
	setreq.Method = http.MethodPost
	setreq.URL = client.serviceAddr + path
	setreq.SetHeader("Content-Type", "application/json")
	setreq.SetBody(confirmation)
	setresp, err := setreq.Send()
	if err != nil {
		return err
	}

	switch setresp.StatusCode() {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return nil
	default:
		return fmt.Errorf("notification request status: %d", setresp.StatusCode())
	}
}

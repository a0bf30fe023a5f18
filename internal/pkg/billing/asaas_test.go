package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestAsaasClient(handler http.HandlerFunc) (*AsaasClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return &AsaasClient{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	}, srv
}

func TestAsaasCreatePayment(t *testing.T) {
	client, srv := newTestAsaasClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("access_token"))

		var req AsaasPaymentRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cus_1", req.Customer)
		assert.Equal(t, "PIX", req.BillingType)

		json.NewEncoder(w).Encode(AsaasPayment{ID: "pay_123", Status: "PENDING", Value: req.Value})
	})
	defer srv.Close()

	out, err := client.CreatePayment(context.Background(), AsaasPaymentRequest{
		Customer:    "cus_1",
		BillingType: "PIX",
		Value:       49.90,
		DueDate:     "2026-08-25",
	})
	assert.NoError(t, err)
	assert.Equal(t, "pay_123", out.ID)
}

func TestAsaasCreatePaymentMissingID(t *testing.T) {
	client, srv := newTestAsaasClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "PENDING"})
	})
	defer srv.Close()

	_, err := client.CreatePayment(context.Background(), AsaasPaymentRequest{
		Customer: "cus_1", BillingType: "PIX", Value: 10, DueDate: "2026-08-25",
	})
	assert.Error(t, err)
}

func TestAsaasErrorCarriesStatusAndBody(t *testing.T) {
	client, srv := newTestAsaasClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"code":"invalid_cpf"}]}`))
	})
	defer srv.Close()

	_, err := client.CreateCustomer(context.Background(), AsaasCustomerRequest{
		Name: "Ana", CpfCnpj: "123",
	})
	var aerr *AsaasError
	assert.ErrorAs(t, err, &aerr)
	assert.Equal(t, http.StatusBadRequest, aerr.StatusCode)
	assert.Contains(t, aerr.Body, "invalid_cpf")
}

func TestAsaasGetPixQRCode(t *testing.T) {
	client, srv := newTestAsaasClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_123/pixQrCode", r.URL.Path)
		json.NewEncoder(w).Encode(AsaasPixQRCode{EncodedImage: "img", Payload: "copy-paste", ExpirationDate: "2026-08-25 23:59:59"})
	})
	defer srv.Close()

	qr, err := client.GetPixQRCode(context.Background(), "pay_123")
	assert.NoError(t, err)
	assert.Equal(t, "copy-paste", qr.Payload)
}

package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agendahub/payments-api/internal/pkg/env"
)

const defaultAsaasAPIBaseURL = "https://sandbox.asaas.com/api/v3"

// Gateway is the outbound contract of the payment gateway. Every call is a
// single round-trip with a bounded timeout; callers decide whether to retry.
type Gateway interface {
	CreateCustomer(ctx context.Context, req AsaasCustomerRequest) (*AsaasCustomer, error)
	CreatePayment(ctx context.Context, req AsaasPaymentRequest) (*AsaasPayment, error)
	GetPayment(ctx context.Context, paymentID string) (*AsaasPayment, error)
	GetPixQRCode(ctx context.Context, paymentID string) (*AsaasPixQRCode, error)
}

// AsaasClient talks to the Asaas REST API.
type AsaasClient struct {
	APIKey  string
	BaseURL string

	HTTPClient *http.Client
}

// AsaasError carries the upstream status code and response body of a non-2xx
// answer so callers can log exactly what the gateway said.
type AsaasError struct {
	StatusCode int
	Body       string
}

func (e *AsaasError) Error() string {
	return fmt.Sprintf("asaas api error: status=%d body=%s", e.StatusCode, e.Body)
}

type AsaasCustomerRequest struct {
	Name        string `json:"name"`
	CpfCnpj     string `json:"cpfCnpj"`
	Email       string `json:"email"`
	MobilePhone string `json:"mobilePhone,omitempty"`
}

type AsaasCustomer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	CpfCnpj string `json:"cpfCnpj"`
	Email   string `json:"email"`
}

type AsaasPaymentRequest struct {
	Customer          string  `json:"customer"`
	BillingType       string  `json:"billingType"`
	Value             float64 `json:"value"`
	DueDate           string  `json:"dueDate"`
	Description       string  `json:"description,omitempty"`
	ExternalReference string  `json:"externalReference,omitempty"`
	InstallmentCount  int     `json:"installmentCount,omitempty"`
}

type AsaasPayment struct {
	ID                    string  `json:"id"`
	Customer              string  `json:"customer"`
	Status                string  `json:"status"`
	Value                 float64 `json:"value"`
	DueDate               string  `json:"dueDate"`
	InvoiceURL            string  `json:"invoiceUrl"`
	BankSlipURL           string  `json:"bankSlipUrl"`
	TransactionReceiptURL string  `json:"transactionReceiptUrl"`
	ExternalReference     string  `json:"externalReference"`
}

type AsaasPixQRCode struct {
	EncodedImage   string `json:"encodedImage"`
	Payload        string `json:"payload"`
	ExpirationDate string `json:"expirationDate"`
}

// NewAsaasClientFromEnv builds a client from ASAAS_API_KEY / ASAAS_API_URL.
// The default base URL points at the Asaas sandbox.
func NewAsaasClientFromEnv() *AsaasClient {
	return &AsaasClient{
		APIKey:  strings.TrimSpace(env.GetEnv("ASAAS_API_KEY", "")),
		BaseURL: strings.TrimRight(env.GetEnv("ASAAS_API_URL", defaultAsaasAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *AsaasClient) CreateCustomer(ctx context.Context, req AsaasCustomerRequest) (*AsaasCustomer, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.CpfCnpj) == "" {
		return nil, errors.New("customer name and cpfCnpj are required")
	}

	var out AsaasCustomer
	if err := c.do(ctx, http.MethodPost, "/customers", req, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("asaas customer creation returned no id")
	}
	return &out, nil
}

func (c *AsaasClient) CreatePayment(ctx context.Context, req AsaasPaymentRequest) (*AsaasPayment, error) {
	if strings.TrimSpace(req.Customer) == "" {
		return nil, errors.New("customer id is required")
	}
	if req.Value <= 0 {
		return nil, errors.New("payment value must be positive")
	}

	var out AsaasPayment
	if err := c.do(ctx, http.MethodPost, "/payments", req, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("asaas payment creation returned no id")
	}
	return &out, nil
}

func (c *AsaasClient) GetPayment(ctx context.Context, paymentID string) (*AsaasPayment, error) {
	id := strings.TrimSpace(paymentID)
	if id == "" {
		return nil, errors.New("payment id is required")
	}

	var out AsaasPayment
	if err := c.do(ctx, http.MethodGet, "/payments/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *AsaasClient) GetPixQRCode(ctx context.Context, paymentID string) (*AsaasPixQRCode, error) {
	id := strings.TrimSpace(paymentID)
	if id == "" {
		return nil, errors.New("payment id is required")
	}

	var out AsaasPixQRCode
	if err := c.do(ctx, http.MethodGet, "/payments/"+id+"/pixQrCode", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *AsaasClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("access_token", c.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("asaas request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &AsaasError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("asaas response %s %s undecodable: %w", method, path, err)
	}
	return nil
}

package asaas

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

	"github.com/luminacursos/checkout/internal/pkg/env"
)

const defaultBaseURL = "https://api.asaas.com/v3"

// Installment plans are bounded by the gateway; reject out-of-range counts
// before going on the wire.
const (
	MinInstallments = 1
	MaxInstallments = 21
)

var ErrInvalidInstallmentCount = fmt.Errorf("installment count must be between %d and %d", MinInstallments, MaxInstallments)

// Client is a thin typed wrapper over the Asaas REST API. Errors surface the
// HTTP status and response body verbatim; there are no transport-level
// retries.
type Client struct {
	APIKey  string
	BaseURL string

	HTTPClient *http.Client
}

// NewClientFromEnv builds a client from ASAAS_* environment configuration.
func NewClientFromEnv() *Client {
	return &Client{
		APIKey:  strings.TrimSpace(env.GetEnv("ASAAS_API_KEY", "")),
		BaseURL: strings.TrimRight(env.GetEnv("ASAAS_BASE_URL", defaultBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateCustomer registers the buyer with the gateway and returns the gateway
// customer id used on subsequent charges.
func (c *Client) CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.CpfCnpj) == "" {
		return nil, errors.New("customer name and cpfCnpj are required")
	}

	var out Customer
	if err := c.do(ctx, http.MethodPost, "/customers", in, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, errors.New("asaas customer creation returned empty id")
	}
	return &out, nil
}

// CreateCharge creates a PIX or credit card charge. Installment plans send
// totalValue + installmentCount; single payments send a flat value. The two
// forms are mutually exclusive.
func (c *Client) CreateCharge(ctx context.Context, in ChargeInput) (*Charge, error) {
	if strings.TrimSpace(in.CustomerID) == "" {
		return nil, errors.New("customer id is required")
	}
	if in.Value <= 0 {
		return nil, errors.New("charge value must be greater than zero")
	}
	count := in.InstallmentCount
	if count == 0 {
		count = 1
	}
	if count < MinInstallments || count > MaxInstallments {
		return nil, ErrInvalidInstallmentCount
	}
	if count > 1 && in.BillingType != BillingTypeCreditCard {
		return nil, errors.New("installments are only supported for credit card charges")
	}

	req := chargeRequest{
		Customer:          in.CustomerID,
		BillingType:       in.BillingType,
		DueDate:           in.DueDate,
		Description:       in.Description,
		ExternalReference: in.ExternalReference,

		CreditCard:           in.CreditCard,
		CreditCardHolderInfo: in.CreditCardHolderInfo,
		RemoteIP:             in.RemoteIP,
	}
	if count > 1 {
		total := in.Value
		req.TotalValue = &total
		req.InstallmentCount = &count
	} else {
		value := in.Value
		req.Value = &value
	}

	var out Charge
	if err := c.do(ctx, http.MethodPost, "/payments", req, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, errors.New("asaas charge creation returned empty id")
	}
	return &out, nil
}

// GetPixQRCode fetches the PIX QR payload for a charge. The gateway may not
// have it ready right after creation; callers retry once after a short delay
// and tolerate a final failure.
func (c *Client) GetPixQRCode(ctx context.Context, paymentID string) (*PixQRCode, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, errors.New("payment id is required")
	}
	var out PixQRCode
	if err := c.do(ctx, http.MethodGet, "/payments/"+paymentID+"/pixQrCode", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPayment fetches the current state of a charge, used by the manual poll
// fallback when webhooks are delayed or lost.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Charge, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, errors.New("payment id is required")
	}
	var out Charge
	if err := c.do(ctx, http.MethodGet, "/payments/"+paymentID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateInvoice schedules fiscal invoice issuance for a settled payment.
func (c *Client) CreateInvoice(ctx context.Context, in InvoiceInput) (*Invoice, error) {
	if strings.TrimSpace(in.Payment) == "" {
		return nil, errors.New("payment id is required")
	}
	var out Invoice
	if err := c.do(ctx, http.MethodPost, "/invoices", in, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, errors.New("asaas invoice scheduling returned empty id")
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("ASAAS_API_KEY is not configured")
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("access_token", c.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("asaas %s %s failed: status=%d body=%s", method, path, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("asaas %s %s: invalid response body: %w", method, path, err)
		}
	}
	return nil
}

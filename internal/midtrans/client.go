package midtrans

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"bejofood/internal/metrics"
)

// ErrGateway marks charge failures coming from the payment gateway, either
// transport errors or non-201 gateway status codes.
var ErrGateway = errors.New("payment gateway error")

// Client calls the Midtrans Core API. Only the QRIS charge flow is used.
type Client struct {
	baseURL   string
	serverKey string
	acquirer  string
	expiry    time.Duration
	httpc     *http.Client
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Config defines Midtrans connection parameters.
type Config struct {
	BaseURL   string
	ServerKey string
	Acquirer  string
	Expiry    time.Duration
	Timeout   time.Duration
}

// NewClient builds a Midtrans Core API client.
func NewClient(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	acquirer := cfg.Acquirer
	if acquirer == "" {
		acquirer = "gopay"
	}
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		serverKey: cfg.ServerKey,
		acquirer:  acquirer,
		expiry:    expiry,
		httpc:     &http.Client{Timeout: timeout},
		logger:    logger.With("component", "midtrans_client"),
		metrics:   m,
	}
}

// ChargeItem is one order line in the charge request. Names longer than 50
// characters are truncated; the gateway rejects longer names.
type ChargeItem struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
}

// ChargeInput carries everything needed to create a QRIS charge.
type ChargeInput struct {
	TransactionID string
	GrossAmount   int64
	Items         []ChargeItem
	FirstName     string
	LastName      string
	CustomerPhone string
}

// Charge is the result of a successful QRIS charge.
type Charge struct {
	TransactionID string
	QRURL         string
	QRString      string
	GrossAmount   int64
	ExpiresAt     time.Time
	RawResponse   []byte
}

type chargeRequest struct {
	PaymentType        string             `json:"payment_type"`
	TransactionDetails transactionDetails `json:"transaction_details"`
	ItemDetails        []ChargeItem       `json:"item_details,omitempty"`
	CustomerDetails    *customerDetails   `json:"customer_details,omitempty"`
	QRIS               qrisDetails        `json:"qris"`
}

type transactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type customerDetails struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type qrisDetails struct {
	Acquirer string `json:"acquirer"`
}

type chargeResponse struct {
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message"`
	TransactionID     string `json:"transaction_id"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	TransactionStatus string `json:"transaction_status"`
	QRString          string `json:"qr_string"`
	Actions           []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"actions"`
}

// CreateCharge creates a QRIS charge for an order. The gateway reports
// success with status_code "201".
func (c *Client) CreateCharge(ctx context.Context, in ChargeInput) (*Charge, error) {
	for i := range in.Items {
		if len(in.Items[i].Name) > 50 {
			in.Items[i].Name = in.Items[i].Name[:50]
		}
	}

	reqBody := chargeRequest{
		PaymentType: "qris",
		TransactionDetails: transactionDetails{
			OrderID:     in.TransactionID,
			GrossAmount: in.GrossAmount,
		},
		ItemDetails: in.Items,
		QRIS:        qrisDetails{Acquirer: c.acquirer},
	}
	if in.FirstName != "" || in.LastName != "" || in.CustomerPhone != "" {
		reqBody.CustomerDetails = &customerDetails{
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Phone:     in.CustomerPhone,
		}
	}

	raw, status, err := c.post(ctx, "/v2/charge", reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	var resp chargeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode charge response: %v", ErrGateway, err)
	}
	if resp.StatusCode != "201" {
		c.logger.Warn("charge rejected",
			"status_code", resp.StatusCode,
			"http_status", status,
			"message", resp.StatusMessage,
		)
		return nil, fmt.Errorf("%w: status %s: %s", ErrGateway, resp.StatusCode, resp.StatusMessage)
	}

	ch := &Charge{
		TransactionID: resp.TransactionID,
		QRString:      resp.QRString,
		GrossAmount:   in.GrossAmount,
		ExpiresAt:     time.Now().Add(c.expiry),
		RawResponse:   raw,
	}
	for _, a := range resp.Actions {
		if a.Name == "generate-qr-code" {
			ch.QRURL = a.URL
			break
		}
	}
	return ch, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.serverKey, "")

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		c.metrics.MidtransRequests.WithLabelValues(endpoint, "error").Inc()
		c.metrics.Errors.WithLabelValues("midtrans_client").Inc()
		return nil, 0, fmt.Errorf("call %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	statusLabel := strconv.Itoa(resp.StatusCode)
	c.metrics.MidtransRequests.WithLabelValues(endpoint, statusLabel).Inc()
	c.metrics.MidtransLatency.WithLabelValues(endpoint, statusLabel).Observe(time.Since(start).Seconds())

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return raw, resp.StatusCode, nil
}

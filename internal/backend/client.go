// Package backend is the HTTP client for the remote POS backend. The
// backend owns persistence, pricing and stock authority; this client only
// shuttles JSON and maps failures onto the terminal's error taxonomy.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"supermarket/terminal/internal/domain"
)

var (
	// ErrNotFound maps 404 responses, e.g. a scanned barcode that matches
	// no product.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable wraps transport-level failures where no response was
	// received at all.
	ErrUnavailable = errors.New("backend unavailable")
)

// StatusError is a non-2xx response that did arrive. Message carries the
// server's own error text when it sent one, so the cashier sees the real
// rejection reason (e.g. a stock conflict at commit time).
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("backend: status %d", e.StatusCode)
}

// TokenSource supplies the bearer token attached to authenticated calls.
// An empty token means the call goes out unauthenticated.
type TokenSource interface {
	Token() string
}

type Client struct {
	baseURL string
	httpc   *http.Client
	tokens  TokenSource
}

// NewClient builds a client for the backend at baseURL. tokens may be nil
// for pre-login use.
func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 10 * time.Second},
		tokens:  tokens,
	}
}

// do issues one request and decodes the JSON response into out (skipped
// when out is nil). Extra headers are applied verbatim.
func (c *Client) do(ctx context.Context, method string, path string, body any, out any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Message: serverMessage(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// serverMessage extracts the backend's error text. The backend answers
// either {"message": ...} or {"error": ...} depending on the route.
func serverMessage(body io.Reader) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 1<<16)).Decode(&payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

func (c *Client) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	var resp domain.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &resp, nil); err != nil {
		return domain.LoginResponse{}, err
	}
	return resp, nil
}

func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) error {
	return c.do(ctx, http.MethodPost, "/auth/register", req, nil, nil)
}

func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, &products, nil); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	var product domain.Product
	path := "/products/barcode/" + url.PathEscape(barcode)
	if err := c.do(ctx, http.MethodGet, path, nil, &product, nil); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (c *Client) CreateProduct(ctx context.Context, req domain.ProductUpsertRequest) (domain.Product, error) {
	var product domain.Product
	if err := c.do(ctx, http.MethodPost, "/products", req, &product, nil); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id string, req domain.ProductUpsertRequest) (domain.Product, error) {
	var product domain.Product
	if err := c.do(ctx, http.MethodPut, "/products/"+url.PathEscape(id), req, &product, nil); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/products/"+url.PathEscape(id), nil, nil, nil)
}

// CreateSale posts the finalized cart. idempotencyKey is regenerated for
// every user-initiated submit so an accidental wire-level replay cannot
// create a second sale.
func (c *Client) CreateSale(ctx context.Context, req domain.SaleRequest, idempotencyKey string) (domain.Bill, error) {
	var bill domain.Bill
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["X-Idempotency-Key"] = idempotencyKey
	}
	if err := c.do(ctx, http.MethodPost, "/sales", req, &bill, headers); err != nil {
		return domain.Bill{}, err
	}
	return bill, nil
}

func (c *Client) MySales(ctx context.Context) ([]domain.Bill, error) {
	var bills []domain.Bill
	if err := c.do(ctx, http.MethodGet, "/sales/my", nil, &bills, nil); err != nil {
		return nil, err
	}
	return bills, nil
}

func (c *Client) AllSales(ctx context.Context) ([]domain.Bill, error) {
	var bills []domain.Bill
	if err := c.do(ctx, http.MethodGet, "/sales", nil, &bills, nil); err != nil {
		return nil, err
	}
	return bills, nil
}

func (c *Client) SalesSummary(ctx context.Context) (domain.SalesSummary, error) {
	var summary domain.SalesSummary
	if err := c.do(ctx, http.MethodGet, "/reports/total", nil, &summary, nil); err != nil {
		return domain.SalesSummary{}, err
	}
	return summary, nil
}

func (c *Client) SalesByDate(ctx context.Context) ([]domain.DailySales, error) {
	var rows []domain.DailySales
	if err := c.do(ctx, http.MethodGet, "/reports/date", nil, &rows, nil); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) SalesByMonth(ctx context.Context) ([]domain.MonthlySales, error) {
	var rows []domain.MonthlySales
	if err := c.do(ctx, http.MethodGet, "/reports/month", nil, &rows, nil); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) SalesByYear(ctx context.Context) ([]domain.YearlySales, error) {
	var rows []domain.YearlySales
	if err := c.do(ctx, http.MethodGet, "/reports/year", nil, &rows, nil); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) NotifyEmail(ctx context.Context, req domain.EmailNotifyRequest) error {
	return c.do(ctx, http.MethodPost, "/notify/email", req, nil, nil)
}

func (c *Client) NotifySMS(ctx context.Context, req domain.SMSNotifyRequest) error {
	return c.do(ctx, http.MethodPost, "/notify/sms", req, nil, nil)
}

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"supermarket/terminal/internal/backend"
	"supermarket/terminal/internal/billing"
	"supermarket/terminal/internal/catalog"
	"supermarket/terminal/internal/domain"
	"supermarket/terminal/internal/session"
)

func newFakeBackend(t *testing.T) *httptest.Server {
	t.Helper()

	products := []domain.Product{
		{ID: "p1", Name: "Rice 1kg", Barcode: "A1", Price: 50, Stock: 3, Category: "Grocery"},
		{ID: "p2", Name: "Sugar 500g", Barcode: "B2", Price: 20, Stock: 5, Category: "Grocery"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req domain.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(domain.LoginResponse{
			Token: "opaque-token",
			Name:  "Asha",
			Email: req.Email,
			Role:  "admin",
		})
	})
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(products)
		case http.MethodPost:
			var req domain.ProductUpsertRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(domain.Product{
				ID: "p9", Name: req.Name, Barcode: req.Barcode,
				Price: req.Price, Stock: req.Stock, Category: req.Category,
			})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/products/barcode/", func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimPrefix(r.URL.Path, "/products/barcode/")
		for _, p := range products {
			if p.Barcode == code {
				_ = json.NewEncoder(w).Encode(p)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Product not found"})
	})
	mux.HandleFunc("/sales", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("X-Idempotency-Key") == "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "idempotency key required"})
			return
		}
		var req domain.SaleRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		bill := domain.Bill{ID: "b1", BillNumber: "BILL-42", PaymentMethod: req.PaymentMethod}
		for _, item := range req.Items {
			for _, p := range products {
				if p.Barcode == item.Barcode {
					total := p.Price * float64(item.Quantity)
					bill.Items = append(bill.Items, domain.BillItem{
						Name: p.Name, Quantity: item.Quantity, Total: total,
					})
					bill.TotalAmount += total
				}
			}
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(bill)
	})
	mux.HandleFunc("/reports/total", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.SalesSummary{TotalRevenue: 900, TotalBills: 4})
	})
	mux.HandleFunc("/notify/email", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestAPI(t *testing.T) http.Handler {
	t.Helper()

	srv := newFakeBackend(t)
	sess := session.New()
	client := backend.NewClient(srv.URL, sess)
	cat := catalog.New(client, catalog.NoopSnapshotCache{}, 5)
	if err := cat.Refresh(context.Background()); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	feed := billing.NewFeedNotifier(10)
	engine := billing.New(client, cat, feed)
	return New(engine, cat, client, sess, feed, "http://127.0.0.1:3000").Handler()
}

func doRequest(t *testing.T, handler http.Handler, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(recorder.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

type cartViewResponse struct {
	Items      []domain.LineItem `json:"items"`
	Subtotal   float64           `json:"subtotal"`
	Count      int               `json:"count"`
	Submitting bool              `json:"submitting"`
}

func TestScanAddsToCart(t *testing.T) {
	handler := newTestAPI(t)

	resp := doRequest(t, handler, http.MethodPost, "/api/v1/cart/scan", map[string]string{"barcode": "A1"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	view := decodeBody[cartViewResponse](t, doRequest(t, handler, http.MethodGet, "/api/v1/cart", nil))
	if view.Count != 1 || view.Subtotal != 50 {
		t.Fatalf("unexpected cart view: %+v", view)
	}
	if view.Items[0].Name != "Rice 1kg" {
		t.Fatalf("unexpected line item: %+v", view.Items[0])
	}
}

func TestScanUnknownBarcode(t *testing.T) {
	handler := newTestAPI(t)

	resp := doRequest(t, handler, http.MethodPost, "/api/v1/cart/scan", map[string]string{"barcode": "ZZZ"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", resp.Code, resp.Body.String())
	}

	feed := decodeBody[struct {
		Notifications []domain.Notification `json:"notifications"`
	}](t, doRequest(t, handler, http.MethodGet, "/api/v1/notifications", nil))
	if len(feed.Notifications) != 1 || feed.Notifications[0].Code != domain.CodeProductNotFound {
		t.Fatalf("expected product_not_found notification, got %+v", feed.Notifications)
	}
}

func TestAddFromCatalogSearchPick(t *testing.T) {
	handler := newTestAPI(t)

	resp := doRequest(t, handler, http.MethodPost, "/api/v1/cart/items", map[string]string{"barcode": "B2"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	view := decodeBody[cartViewResponse](t, resp)
	if view.Count != 1 || view.Items[0].Name != "Sugar 500g" {
		t.Fatalf("unexpected cart view: %+v", view)
	}

	missing := doRequest(t, handler, http.MethodPost, "/api/v1/cart/items", map[string]string{"barcode": "ZZZ"})
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for uncached barcode, got %d", missing.Code)
	}
}

func TestQuantityBeyondStockRejected(t *testing.T) {
	handler := newTestAPI(t)

	doRequest(t, handler, http.MethodPost, "/api/v1/cart/scan", map[string]string{"barcode": "A1"})
	resp := doRequest(t, handler, http.MethodPost, "/api/v1/cart/quantity", map[string]any{"barcode": "A1", "quantity": 4})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.Code, resp.Body.String())
	}

	view := decodeBody[cartViewResponse](t, doRequest(t, handler, http.MethodGet, "/api/v1/cart", nil))
	if view.Items[0].Quantity != 1 {
		t.Fatalf("expected quantity to stay 1, got %d", view.Items[0].Quantity)
	}
}

func TestCheckoutFlow(t *testing.T) {
	handler := newTestAPI(t)

	doRequest(t, handler, http.MethodPost, "/api/v1/cart/scan", map[string]string{"barcode": "A1"})
	doRequest(t, handler, http.MethodPost, "/api/v1/cart/scan", map[string]string{"barcode": "B2"})

	resp := doRequest(t, handler, http.MethodPost, "/api/v1/checkout", map[string]string{"paymentMethod": "cash"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	result := decodeBody[struct {
		Bill        domain.Bill `json:"bill"`
		BillText    string      `json:"billText"`
		WhatsappURL string      `json:"whatsappUrl"`
	}](t, resp)
	if result.Bill.BillNumber != "BILL-42" || result.Bill.TotalAmount != 70 {
		t.Fatalf("unexpected bill: %+v", result.Bill)
	}
	if !strings.Contains(result.BillText, "Supermarket Bill") {
		t.Fatalf("bill text missing header: %q", result.BillText)
	}
	if !strings.HasPrefix(result.WhatsappURL, "https://wa.me/?text=") {
		t.Fatalf("unexpected whatsapp url: %q", result.WhatsappURL)
	}

	view := decodeBody[cartViewResponse](t, doRequest(t, handler, http.MethodGet, "/api/v1/cart", nil))
	if view.Count != 0 {
		t.Fatalf("expected empty cart after checkout, got %+v", view)
	}

	share := doRequest(t, handler, http.MethodPost, "/api/v1/receipts/share", map[string]string{"channel": "email", "email": "a@b.c"})
	if share.Code != http.StatusOK {
		t.Fatalf("expected 200 sharing receipt, got %d: %s", share.Code, share.Body.String())
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	handler := newTestAPI(t)

	resp := doRequest(t, handler, http.MethodPost, "/api/v1/checkout", map[string]string{"paymentMethod": "cash"})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestShareWithoutBill(t *testing.T) {
	handler := newTestAPI(t)

	resp := doRequest(t, handler, http.MethodPost, "/api/v1/receipts/share", map[string]string{"channel": "whatsapp"})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestProductCreateRequiresAdminSession(t *testing.T) {
	handler := newTestAPI(t)

	payload := domain.ProductUpsertRequest{Name: "Salt", Barcode: "C3", Price: 15, Stock: 10, Category: "Grocery"}
	resp := doRequest(t, handler, http.MethodPost, "/api/v1/products", payload)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without session, got %d", resp.Code)
	}

	login := doRequest(t, handler, http.MethodPost, "/api/v1/session/login", domain.LoginRequest{Email: "a@b.c", Password: "secret"})
	if login.Code != http.StatusOK {
		t.Fatalf("expected login to succeed, got %d: %s", login.Code, login.Body.String())
	}
	status := decodeBody[struct {
		Active bool `json:"active"`
		Admin  bool `json:"admin"`
	}](t, login)
	if !status.Active || !status.Admin {
		t.Fatalf("expected active admin session, got %+v", status)
	}

	resp = doRequest(t, handler, http.MethodPost, "/api/v1/products", payload)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 after login, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestLoginFailurePassesBackendStatus(t *testing.T) {
	handler := newTestAPI(t)

	resp := doRequest(t, handler, http.MethodPost, "/api/v1/session/login", domain.LoginRequest{Email: "a@b.c", Password: "wrong"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", resp.Code, resp.Body.String())
	}
	body := decodeBody[map[string]string](t, resp)
	if !strings.Contains(body["error"], "Invalid credentials") {
		t.Fatalf("expected backend message, got %q", body["error"])
	}
}

func TestLogoutClearsCart(t *testing.T) {
	handler := newTestAPI(t)

	doRequest(t, handler, http.MethodPost, "/api/v1/cart/scan", map[string]string{"barcode": "A1"})
	doRequest(t, handler, http.MethodPost, "/api/v1/session/logout", nil)

	view := decodeBody[cartViewResponse](t, doRequest(t, handler, http.MethodGet, "/api/v1/cart", nil))
	if view.Count != 0 {
		t.Fatalf("expected empty cart after logout, got %+v", view)
	}
}

func TestCatalogSearchEndpoint(t *testing.T) {
	handler := newTestAPI(t)

	resp := doRequest(t, handler, http.MethodGet, "/api/v1/catalog/search?q=rice", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := decodeBody[struct {
		Products []domain.Product `json:"products"`
	}](t, resp)
	if len(body.Products) != 1 || body.Products[0].Barcode != "A1" {
		t.Fatalf("unexpected search results: %+v", body.Products)
	}
}

func TestSummaryReportPassthrough(t *testing.T) {
	handler := newTestAPI(t)

	resp := doRequest(t, handler, http.MethodGet, "/api/v1/reports/summary", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	summary := decodeBody[domain.SalesSummary](t, resp)
	if summary.TotalRevenue != 900 || summary.TotalBills != 4 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestAPI(t)

	resp := doRequest(t, handler, http.MethodDelete, "/api/v1/cart", nil)
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}

func TestPreflightAndHeaders(t *testing.T) {
	handler := newTestAPI(t)

	resp := doRequest(t, handler, http.MethodOptions, "/api/v1/cart", nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", resp.Code)
	}
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "http://127.0.0.1:3000" {
		t.Fatalf("unexpected CORS origin %q", got)
	}
	if resp.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
}

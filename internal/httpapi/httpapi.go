package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"supermarket/terminal/internal/backend"
	"supermarket/terminal/internal/billing"
	"supermarket/terminal/internal/cart"
	"supermarket/terminal/internal/catalog"
	"supermarket/terminal/internal/domain"
	"supermarket/terminal/internal/receipt"
	"supermarket/terminal/internal/session"
)

// API is the local HTTP surface a register UI talks to. It is meant to be
// bound to loopback: the remote backend owns authentication and persistence,
// the terminal owns the cart.
type API struct {
	engine        *billing.Engine
	catalog       *catalog.Catalog
	backend       *backend.Client
	session       *session.Session
	feed          *billing.FeedNotifier
	allowedOrigin string

	mu       sync.Mutex
	lastBill domain.Bill
	hasBill  bool
}

func New(engine *billing.Engine, cat *catalog.Catalog, client *backend.Client, sess *session.Session, feed *billing.FeedNotifier, allowedOrigin string) *API {
	return &API{
		engine:        engine,
		catalog:       cat,
		backend:       client,
		session:       sess,
		feed:          feed,
		allowedOrigin: allowedOrigin,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)

	mux.HandleFunc("/api/v1/session", a.handleSession)
	mux.HandleFunc("/api/v1/session/login", a.handleLogin)
	mux.HandleFunc("/api/v1/session/register", a.handleRegister)
	mux.HandleFunc("/api/v1/session/logout", a.handleLogout)

	mux.HandleFunc("/api/v1/cart", a.handleCart)
	mux.HandleFunc("/api/v1/cart/scan", a.handleScan)
	mux.HandleFunc("/api/v1/cart/items", a.handleAddItem)
	mux.HandleFunc("/api/v1/cart/quantity", a.handleQuantity)
	mux.HandleFunc("/api/v1/cart/remove", a.handleRemove)
	mux.HandleFunc("/api/v1/cart/clear", a.handleClear)
	mux.HandleFunc("/api/v1/checkout", a.handleCheckout)
	mux.HandleFunc("/api/v1/receipts/share", a.handleShareReceipt)

	mux.HandleFunc("/api/v1/catalog/products", a.handleCatalogProducts)
	mux.HandleFunc("/api/v1/catalog/search", a.handleCatalogSearch)
	mux.HandleFunc("/api/v1/catalog/low-stock", a.handleLowStock)
	mux.HandleFunc("/api/v1/catalog/refresh", a.handleCatalogRefresh)

	mux.HandleFunc("/api/v1/products", a.handleProducts)
	mux.HandleFunc("/api/v1/products/", a.handleProductActions)

	mux.HandleFunc("/api/v1/sales", a.handleMySales)
	mux.HandleFunc("/api/v1/sales/all", a.handleAllSales)
	mux.HandleFunc("/api/v1/reports/summary", a.handleSummaryReport)
	mux.HandleFunc("/api/v1/reports/daily", a.handleDailyReport)
	mux.HandleFunc("/api/v1/reports/monthly", a.handleMonthlyReport)
	mux.HandleFunc("/api/v1/reports/yearly", a.handleYearlyReport)

	mux.HandleFunc("/api/v1/notifications", a.handleNotifications)

	return a.withMiddleware(mux)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, a.sessionView())
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.backend.Login(r.Context(), req)
	if err != nil {
		writeError(w, statusForError(err, http.StatusUnauthorized), err)
		return
	}

	a.session.Establish(resp)
	writeJSON(w, http.StatusOK, a.sessionView())
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := a.backend.Register(r.Context(), req); err != nil {
		writeError(w, statusForError(err, http.StatusUnprocessableEntity), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	// The register is being handed over: drop the cart along with the token.
	a.engine.ClearCart()
	a.session.Logout()
	writeJSON(w, http.StatusOK, a.sessionView())
}

func (a *API) sessionView() map[string]any {
	return map[string]any{
		"active": a.session.Active(),
		"name":   a.session.Name(),
		"email":  a.session.Email(),
		"role":   a.session.Role(),
		"admin":  a.session.IsAdmin(),
	}
}

func (a *API) handleCart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, a.cartView())
}

func (a *API) cartView() map[string]any {
	items := a.engine.Items()
	return map[string]any{
		"items":      items,
		"subtotal":   a.engine.Subtotal(),
		"count":      len(items),
		"submitting": a.engine.Submitting(),
	}
}

type barcodeRequest struct {
	Barcode string `json:"barcode"`
}

func (a *API) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req barcodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Barcode) == "" {
		writeError(w, http.StatusBadRequest, errors.New("barcode required"))
		return
	}

	if err := a.engine.Scan(r.Context(), strings.TrimSpace(req.Barcode)); err != nil {
		writeError(w, statusForError(err, http.StatusUnprocessableEntity), err)
		return
	}
	writeJSON(w, http.StatusOK, a.cartView())
}

// handleAddItem adds a search pick straight from the cached catalog, no
// network lookup. Scanning stays the fresh-stock path.
func (a *API) handleAddItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req barcodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	product, ok := a.catalog.FindByBarcode(strings.TrimSpace(req.Barcode))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("product not in catalog"))
		return
	}
	if err := a.engine.AddProduct(product); err != nil {
		writeError(w, statusForError(err, http.StatusUnprocessableEntity), err)
		return
	}
	writeJSON(w, http.StatusOK, a.cartView())
}

func (a *API) handleQuantity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		Barcode  string `json:"barcode"`
		Quantity int    `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := a.engine.SetQuantity(req.Barcode, req.Quantity); err != nil {
		writeError(w, statusForError(err, http.StatusUnprocessableEntity), err)
		return
	}
	writeJSON(w, http.StatusOK, a.cartView())
}

func (a *API) handleRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req barcodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	a.engine.RemoveItem(req.Barcode)
	writeJSON(w, http.StatusOK, a.cartView())
}

func (a *API) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	a.engine.ClearCart()
	writeJSON(w, http.StatusOK, a.cartView())
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		PaymentMethod string `json:"paymentMethod"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	bill, err := a.engine.Submit(r.Context(), req.PaymentMethod)
	if err != nil {
		writeError(w, statusForError(err, http.StatusUnprocessableEntity), err)
		return
	}

	a.mu.Lock()
	a.lastBill = bill
	a.hasBill = true
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"bill":        bill,
		"billText":    receipt.BillText(bill),
		"whatsappUrl": receipt.WhatsAppURL(bill),
	})
}

func (a *API) handleShareReceipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		Channel string `json:"channel"`
		Email   string `json:"email"`
		Phone   string `json:"phone"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	a.mu.Lock()
	bill, ok := a.lastBill, a.hasBill
	a.mu.Unlock()
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, errors.New("no bill to share"))
		return
	}

	switch strings.ToLower(strings.TrimSpace(req.Channel)) {
	case "email":
		if strings.TrimSpace(req.Email) == "" {
			writeError(w, http.StatusBadRequest, errors.New("email required"))
			return
		}
		if err := a.backend.NotifyEmail(r.Context(), receipt.EmailPayload(req.Email, bill)); err != nil {
			writeError(w, statusForError(err, http.StatusBadGateway), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case "sms":
		if strings.TrimSpace(req.Phone) == "" {
			writeError(w, http.StatusBadRequest, errors.New("phone required"))
			return
		}
		if err := a.backend.NotifySMS(r.Context(), receipt.SMSPayload(req.Phone, bill)); err != nil {
			writeError(w, statusForError(err, http.StatusBadGateway), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case "whatsapp":
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "url": receipt.WhatsAppURL(bill)})
	default:
		writeError(w, http.StatusBadRequest, errors.New("unknown share channel"))
	}
}

func (a *API) handleCatalogProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": a.catalog.Products()})
}

func (a *API) handleCatalogSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	results := a.catalog.Search(r.URL.Query().Get("q"))
	if results == nil {
		results = []domain.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": results})
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": a.catalog.LowStock()})
}

func (a *API) handleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if err := a.catalog.Refresh(r.Context()); err != nil {
		writeError(w, statusForError(err, http.StatusBadGateway), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": a.catalog.Products()})
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.session.IsAdmin() {
		writeError(w, http.StatusForbidden, errors.New("admin role required"))
		return
	}

	var req domain.ProductUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	product, err := a.backend.CreateProduct(r.Context(), req)
	if err != nil {
		writeError(w, statusForError(err, http.StatusUnprocessableEntity), err)
		return
	}

	a.refreshAfterWrite(r)
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/products/"
	id := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}
	if !a.session.IsAdmin() {
		writeError(w, http.StatusForbidden, errors.New("admin role required"))
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req domain.ProductUpsertRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.backend.UpdateProduct(r.Context(), id, req)
		if err != nil {
			writeError(w, statusForError(err, http.StatusUnprocessableEntity), err)
			return
		}
		a.refreshAfterWrite(r)
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case http.MethodDelete:
		if err := a.backend.DeleteProduct(r.Context(), id); err != nil {
			writeError(w, statusForError(err, http.StatusUnprocessableEntity), err)
			return
		}
		a.refreshAfterWrite(r)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

// refreshAfterWrite keeps the local catalog in step with backend product
// edits. Failures only degrade freshness, the next refresh catches up.
func (a *API) refreshAfterWrite(r *http.Request) {
	if err := a.catalog.Refresh(r.Context()); err != nil {
		log.Printf("[httpapi] WARN: catalog refresh after product write: %v", err)
	}
}

func (a *API) handleMySales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	bills, err := a.backend.MySales(r.Context())
	if err != nil {
		writeError(w, statusForError(err, http.StatusBadGateway), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bills": bills})
}

func (a *API) handleAllSales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if !a.session.IsAdmin() {
		writeError(w, http.StatusForbidden, errors.New("admin role required"))
		return
	}
	bills, err := a.backend.AllSales(r.Context())
	if err != nil {
		writeError(w, statusForError(err, http.StatusBadGateway), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bills": bills})
}

func (a *API) handleSummaryReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	summary, err := a.backend.SalesSummary(r.Context())
	if err != nil {
		writeError(w, statusForError(err, http.StatusBadGateway), err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	rows, err := a.backend.SalesByDate(r.Context())
	if err != nil {
		writeError(w, statusForError(err, http.StatusBadGateway), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": rows})
}

func (a *API) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	rows, err := a.backend.SalesByMonth(r.Context())
	if err != nil {
		writeError(w, statusForError(err, http.StatusBadGateway), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": rows})
}

func (a *API) handleYearlyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	rows, err := a.backend.SalesByYear(r.Context())
	if err != nil {
		writeError(w, statusForError(err, http.StatusBadGateway), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": rows})
}

func (a *API) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed > 0 {
			limit = parsed
		}
	}
	entries := a.feed.Recent(limit)
	if entries == nil {
		entries = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": entries})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

// statusForError maps engine and backend failures onto HTTP statuses for the
// local UI. Backend statuses pass through unchanged.
func statusForError(err error, fallback int) int {
	var statusErr *backend.StatusError
	switch {
	case errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, backend.ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, billing.ErrSubmitInFlight):
		return http.StatusConflict
	case errors.Is(err, billing.ErrInvalidPayment):
		return http.StatusBadRequest
	case errors.Is(err, cart.ErrOutOfStock):
		return http.StatusConflict
	case errors.Is(err, cart.ErrInvalidQuantity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, cart.ErrEmptyCart):
		return http.StatusUnprocessableEntity
	case errors.Is(err, cart.ErrNotInCart):
		return http.StatusNotFound
	case errors.As(err, &statusErr):
		return statusErr.StatusCode
	default:
		return fallback
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// A 502 means the remote backend is down or misbehaving, which the
	// cashier needs to see. Everything else in the 5xx range stays generic.
	msg := err.Error()
	if status >= 500 && status != http.StatusBadGateway {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Package billing is the cashier-side engine: it reacts to barcode scans
// and search picks, owns the cart lifecycle, and runs the sale commit and
// reset cycle against the backend.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"supermarket/terminal/internal/backend"
	"supermarket/terminal/internal/cart"
	"supermarket/terminal/internal/catalog"
	"supermarket/terminal/internal/domain"
)

// ErrSubmitInFlight rejects a generate-bill action while a previous one is
// still awaiting its backend response. The original UI had no such guard
// and could double-submit; the engine enforces it.
var ErrSubmitInFlight = errors.New("sale submission already in flight")

var ErrInvalidPayment = errors.New("invalid payment method")

// Backend is the slice of the backend client the engine needs.
type Backend interface {
	GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error)
	CreateSale(ctx context.Context, req domain.SaleRequest, idempotencyKey string) (domain.Bill, error)
}

type Engine struct {
	backend  Backend
	catalog  *catalog.Catalog
	cart     *cart.Cart
	notifier Notifier

	mu         sync.Mutex
	submitting bool
}

func New(be Backend, cat *catalog.Catalog, notifier Notifier) *Engine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Engine{
		backend:  be,
		catalog:  cat,
		cart:     cart.New(),
		notifier: notifier,
	}
}

// Items is the cart read model for the billing table.
func (e *Engine) Items() []domain.LineItem {
	return e.cart.Items()
}

func (e *Engine) Subtotal() float64 {
	return e.cart.Subtotal()
}

// Submitting reports whether a generate-bill action is awaiting the
// backend.
func (e *Engine) Submitting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submitting
}

// Scan resolves a decoded barcode to a product and adds one unit to the
// cart. The lookup goes to the backend so the stock figure is as fresh as
// possible when the scan resolves; if the backend is unreachable the
// cached snapshot is used instead, flagged as stale.
func (e *Engine) Scan(ctx context.Context, code string) error {
	product, err := e.backend.GetProductByBarcode(ctx, code)
	switch {
	case err == nil:
	case errors.Is(err, backend.ErrNotFound):
		e.notify(domain.LevelError, domain.CodeProductNotFound, fmt.Sprintf("no product for barcode %s", code))
		return err
	case errors.Is(err, backend.ErrUnavailable):
		cached, ok := e.catalog.FindByBarcode(code)
		if !ok {
			e.notify(domain.LevelError, domain.CodeLookupFailed, "product lookup failed, backend unreachable")
			return err
		}
		e.notify(domain.LevelInfo, domain.CodeCatalogStale, fmt.Sprintf("backend unreachable, using cached stock for %s", cached.Name))
		product = cached
	default:
		e.notify(domain.LevelError, domain.CodeLookupFailed, "product lookup failed")
		return err
	}

	return e.AddProduct(product)
}

// AddProduct adds one unit of product, surfacing rejections to the UI.
func (e *Engine) AddProduct(product domain.Product) error {
	err := e.cart.AddProduct(product)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cart.ErrOutOfStock):
		e.notify(domain.LevelError, domain.CodeOutOfStock, fmt.Sprintf("%s is out of stock", product.Name))
	case errors.Is(err, cart.ErrInvalidQuantity):
		e.notify(domain.LevelError, domain.CodeInvalidQuantity, fmt.Sprintf("only %d of %s available", product.Stock, product.Name))
	}
	return err
}

// SetQuantity replaces a line's quantity; on rejection the UI is told and
// the line keeps its last valid value.
func (e *Engine) SetQuantity(barcode string, quantity int) error {
	err := e.cart.SetQuantity(barcode, quantity)
	if errors.Is(err, cart.ErrInvalidQuantity) {
		e.notify(domain.LevelError, domain.CodeInvalidQuantity, invalidQuantityMessage(e.cart.Items(), barcode))
	}
	return err
}

func invalidQuantityMessage(items []domain.LineItem, barcode string) string {
	for _, item := range items {
		if item.Barcode == barcode {
			return fmt.Sprintf("only %d of %s available", item.Stock, item.Name)
		}
	}
	return "invalid quantity"
}

func (e *Engine) RemoveItem(barcode string) {
	e.cart.RemoveItem(barcode)
}

func (e *Engine) ClearCart() {
	e.cart.Clear()
}

// Submit converts the cart into the sale payload and commits it. At most
// one submission runs at a time; the cart is cleared and the catalog
// refreshed only on success, so a failed attempt loses no work.
func (e *Engine) Submit(ctx context.Context, paymentMethod string) (domain.Bill, error) {
	if paymentMethod == "" {
		return domain.Bill{}, ErrInvalidPayment
	}

	e.mu.Lock()
	if e.submitting {
		e.mu.Unlock()
		e.notify(domain.LevelError, domain.CodeSubmitInFlight, "a bill is already being generated")
		return domain.Bill{}, ErrSubmitInFlight
	}
	items := e.cart.SaleItems()
	if len(items) == 0 {
		e.mu.Unlock()
		e.notify(domain.LevelError, domain.CodeEmptyCart, "no items in bill")
		return domain.Bill{}, cart.ErrEmptyCart
	}
	e.submitting = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.submitting = false
		e.mu.Unlock()
	}()

	// Fresh key per user-initiated submit: a wire-level replay of this
	// request cannot create a second sale, while a deliberate retry after a
	// failure gets a new key.
	idempotencyKey := uuid.NewString()

	bill, err := e.backend.CreateSale(ctx, domain.SaleRequest{
		Items:         items,
		PaymentMethod: paymentMethod,
	}, idempotencyKey)
	if err != nil {
		e.notify(domain.LevelError, domain.CodeSaleFailed, saleFailureMessage(err))
		return domain.Bill{}, err
	}

	e.cart.Clear()
	e.notify(domain.LevelSuccess, domain.CodeSaleCreated, fmt.Sprintf("bill %s generated", bill.BillNumber))

	// Stock levels changed server-side; re-mirror them. A refresh failure
	// is not a submit failure.
	if err := e.catalog.Refresh(ctx); err != nil {
		log.Printf("[billing] WARN: catalog refresh after sale failed: %v", err)
	}
	return bill, nil
}

// saleFailureMessage prefers the server's own rejection text (e.g. a stock
// conflict found at commit time) over a generic line.
func saleFailureMessage(err error) string {
	var statusErr *backend.StatusError
	if errors.As(err, &statusErr) && statusErr.Message != "" {
		return statusErr.Message
	}
	return "billing failed"
}

func (e *Engine) notify(level string, code string, message string) {
	e.notifier.Notify(domain.Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Code:      code,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	})
}

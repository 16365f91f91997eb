package cart

import (
	"errors"
	"fmt"
	"sync"

	"supermarket/terminal/internal/domain"
)

var (
	// ErrOutOfStock rejects adding a product whose snapshot stock is zero.
	ErrOutOfStock = errors.New("out of stock")
	// ErrInvalidQuantity covers every quantity outside [1, stock ceiling].
	// The wrapping sentinels below tell the two directions apart.
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrNotInCart       = errors.New("item not in cart")
	ErrEmptyCart       = errors.New("cart is empty")
)

var (
	ErrQuantityTooLow = fmt.Errorf("%w: below minimum", ErrInvalidQuantity)
	ErrStockExceeded  = fmt.Errorf("%w: stock limit reached", ErrInvalidQuantity)
)

// validateQuantity is the stock guard: a line's quantity may never exceed
// its captured stock ceiling and may never drop below 1. It is consulted on
// every quantity-changing operation; the zero-stock case is rejected at the
// AddProduct boundary before this runs.
func validateQuantity(requested int, ceiling int) error {
	if requested < 1 {
		return ErrQuantityTooLow
	}
	if requested > ceiling {
		return ErrStockExceeded
	}
	return nil
}

// Cart is the in-memory line-item ledger for the bill being assembled.
// It holds at most one line per barcode, keeps insertion order, and leaves
// itself unchanged whenever an operation is rejected.
type Cart struct {
	mu    sync.Mutex
	items []domain.LineItem
}

func New() *Cart {
	return &Cart{}
}

func (c *Cart) indexOf(barcode string) int {
	for i := range c.items {
		if c.items[i].Barcode == barcode {
			return i
		}
	}
	return -1
}

// AddProduct puts one unit of product into the cart. A repeat barcode
// increments the existing line instead of duplicating it. Name, price and
// the stock ceiling are frozen from the snapshot at first insertion.
func (c *Cart) AddProduct(product domain.Product) error {
	if product.Stock <= 0 {
		return fmt.Errorf("%w: %s", ErrOutOfStock, product.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(product.Barcode); i >= 0 {
		if err := validateQuantity(c.items[i].Quantity+1, c.items[i].Stock); err != nil {
			return err
		}
		c.items[i].Quantity++
		return nil
	}

	c.items = append(c.items, domain.LineItem{
		Barcode:  product.Barcode,
		Name:     product.Name,
		Price:    product.Price,
		Quantity: 1,
		Stock:    product.Stock,
	})
	return nil
}

// SetQuantity replaces a line's quantity. On rejection the line keeps its
// last valid quantity so the UI can re-display it.
func (c *Cart) SetQuantity(barcode string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(barcode)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotInCart, barcode)
	}
	if err := validateQuantity(quantity, c.items[i].Stock); err != nil {
		return err
	}
	c.items[i].Quantity = quantity
	return nil
}

// RemoveItem drops the line for barcode if present; absent barcodes are a
// no-op.
func (c *Cart) RemoveItem(barcode string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(barcode); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// Items returns the lines in insertion order as a copy; mutating the result
// never touches the cart.
func (c *Cart) Items() []domain.LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.LineItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Subtotal recomputes price times quantity over all lines from scratch on
// every call; no running total is kept that could drift.
func (c *Cart) Subtotal() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0.0
	for _, item := range c.items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// SaleItems renders the cart as the ordered {barcode, quantity} pairs the
// sale payload carries. Prices are never part of it.
func (c *Cart) SaleItems() []domain.SaleItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.SaleItem, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, domain.SaleItem{Barcode: item.Barcode, Quantity: item.Quantity})
	}
	return out
}

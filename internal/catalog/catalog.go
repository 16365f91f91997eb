// Package catalog maintains the terminal's read-only mirror of backend
// product records: fast search for the billing dropdown and stock ceilings
// for the cart.
package catalog

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"supermarket/terminal/internal/domain"
)

// searchLimit bounds the interactive dropdown result list.
const searchLimit = 5

// DefaultLowStockLimit marks products that need restocking attention.
const DefaultLowStockLimit = 5

// ProductSource fetches the full product collection; in production this is
// the backend client.
type ProductSource interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

type Catalog struct {
	source        ProductSource
	snapshots     SnapshotCache
	lowStockLimit int

	mu        sync.RWMutex
	products  []domain.Product
	byBarcode map[string]domain.Product
	applied   uint64

	issued atomic.Uint64
}

func New(source ProductSource, snapshots SnapshotCache, lowStockLimit int) *Catalog {
	if snapshots == nil {
		snapshots = NoopSnapshotCache{}
	}
	if lowStockLimit < 0 {
		lowStockLimit = DefaultLowStockLimit
	}
	return &Catalog{
		source:        source,
		snapshots:     snapshots,
		lowStockLimit: lowStockLimit,
		byBarcode:     make(map[string]domain.Product),
	}
}

// WarmStart seeds the mirror from the snapshot cache so search works before
// the first network refresh lands. Any Refresh overrides it.
func (c *Catalog) WarmStart(ctx context.Context) {
	products, ok, err := c.snapshots.Load(ctx)
	if err != nil {
		log.Printf("[catalog] WARN: snapshot load failed: %v", err)
		return
	}
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.applied > 0 {
		return
	}
	c.install(products)
	log.Printf("[catalog] warm start with %d products", len(products))
}

// Refresh fetches the product collection and replaces the mirror wholesale.
// On failure the previous snapshot is kept. A refresh that was superseded
// by a newer one while its request was in flight is dropped, so the last
// issued refresh always wins regardless of response ordering.
func (c *Catalog) Refresh(ctx context.Context) error {
	token := c.issued.Add(1)

	products, err := c.source.ListProducts(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if token <= c.applied {
		return nil
	}
	c.applied = token
	c.install(products)

	if err := c.snapshots.Store(ctx, products); err != nil {
		log.Printf("[catalog] WARN: snapshot store failed: %v", err)
	}
	return nil
}

// install replaces the mirror; callers hold c.mu.
func (c *Catalog) install(products []domain.Product) {
	c.products = make([]domain.Product, len(products))
	copy(c.products, products)
	c.byBarcode = make(map[string]domain.Product, len(products))
	for _, p := range products {
		c.byBarcode[p.Barcode] = p
	}
}

// FindByBarcode returns the cached product for an exact barcode match.
// A found product with zero stock is still found; the caller tells the two
// failure modes apart.
func (c *Catalog) FindByBarcode(barcode string) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	product, ok := c.byBarcode[barcode]
	return product, ok
}

// Search matches query case-insensitively as a substring of name, barcode
// or category and returns at most searchLimit products in catalog order.
// An empty query yields no results, not the whole catalog.
func (c *Catalog) Search(query string) []domain.Product {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []domain.Product
	for _, p := range c.products {
		if strings.Contains(strings.ToLower(p.Name), query) ||
			strings.Contains(strings.ToLower(p.Barcode), query) ||
			strings.Contains(strings.ToLower(p.Category), query) {
			out = append(out, p)
			if len(out) == searchLimit {
				break
			}
		}
	}
	return out
}

// Products returns a copy of the current snapshot.
func (c *Catalog) Products() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out
}

// LowStock lists products at or below the low-stock limit, lowest first.
func (c *Catalog) LowStock() []domain.Product {
	c.mu.RLock()
	var out []domain.Product
	for _, p := range c.products {
		if p.Stock <= c.lowStockLimit {
			out = append(out, p)
		}
	}
	c.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Stock < out[j].Stock
	})
	return out
}

// Package cart is the local shopping cart. It is the cart snapshot the
// checkout reads from and clears after a completed order.
package cart

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"storefront/internal/apperr"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/storage"
)

const storageKey = "cart_items"

type Cart struct {
	kv  storage.KV
	log *slog.Logger

	mu    sync.Mutex
	items []models.LineItem
}

// New loads the cart persisted in kv. An unreadable entry is dropped.
func New(kv storage.KV, log *slog.Logger) *Cart {
	if kv == nil {
		kv = storage.NopKV{}
	}
	c := &Cart{kv: kv, log: logger.Component(log, "cart")}
	c.items = c.load()
	return c
}

func (c *Cart) load() []models.LineItem {
	raw, ok := c.kv.Get(storageKey)
	if !ok || raw == "" {
		return nil
	}
	var items []models.LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		c.log.Warn("stored cart unreadable, dropping", slog.String("error", err.Error()))
		c.kv.Remove(storageKey)
		return nil
	}

	kept := items[:0]
	for _, item := range items {
		if validateItem(item) == nil {
			kept = append(kept, item)
		}
	}
	return kept
}

func (c *Cart) persistLocked() {
	if len(c.items) == 0 {
		c.kv.Remove(storageKey)
		return
	}
	data, err := json.Marshal(c.items)
	if err != nil {
		c.log.Warn("cart persist failed", slog.String("error", err.Error()))
		return
	}
	c.kv.Set(storageKey, string(data))
}

// Add puts item in the cart, adding to the quantity of an existing line for
// the same product. The newest price fields win.
func (c *Cart) Add(item models.LineItem) error {
	if err := validateItem(item); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ProductID == item.ProductID {
			item.Quantity += c.items[i].Quantity
			c.items[i] = item
			c.persistLocked()
			return nil
		}
	}
	c.items = append(c.items, item)
	c.persistLocked()
	return nil
}

// SetQuantity updates a line; zero or less removes it.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ProductID != productID {
			continue
		}
		if quantity <= 0 {
			c.items = append(c.items[:i], c.items[i+1:]...)
		} else {
			c.items[i].Quantity = quantity
		}
		c.persistLocked()
		return nil
	}
	return apperr.Validation("product %s is not in the cart", productID)
}

func (c *Cart) Remove(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			c.persistLocked()
			return
		}
	}
}

// CurrentItems returns a copy of the cart lines.
func (c *Cart) CurrentItems(context.Context) ([]models.LineItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.LineItem, len(c.items))
	copy(out, c.items)
	return out, nil
}

func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Subtotal(c.items)
}

// Count is the number of units across all lines.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, item := range c.items {
		n += item.Quantity
	}
	return n
}

func (c *Cart) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.kv.Remove(storageKey)
	c.log.Info("cart cleared")
	return nil
}

package sales

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ups-sales/api/internal/enum"
)

var errUnknownProduct = errors.New("unknown product")

// memCatalog is an in-memory Catalog.
type memCatalog struct {
	products map[uuid.UUID]Product
	combos   map[uuid.UUID][]ComboEntry
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		products: make(map[uuid.UUID]Product),
		combos:   make(map[uuid.UUID][]ComboEntry),
	}
}

func (c *memCatalog) Product(_ context.Context, id uuid.UUID) (Product, error) {
	p, ok := c.products[id]
	if !ok {
		return Product{}, errUnknownProduct
	}
	return p, nil
}

func (c *memCatalog) ComboEntries(_ context.Context, productID uuid.UUID) ([]ComboEntry, error) {
	return c.combos[productID], nil
}

func (c *memCatalog) add(name string, price string) Product {
	p := Product{
		ID:            uuid.New(),
		Name:          name,
		UoM:           "Units",
		ListPrice:     decimal.RequireFromString(price),
		IncomeAccount: "511 Sales",
	}
	c.products[p.ID] = p
	return p
}

func (c *memCatalog) addCombo(name, price string, entries ...ComboEntry) Product {
	p := c.add(name, price)
	p.IsCombo = true
	c.products[p.ID] = p
	c.combos[p.ID] = entries
	return p
}

func entry(component Product, qty string) ComboEntry {
	return ComboEntry{ComponentID: component.ID, Quantity: decimal.RequireFromString(qty)}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func draftOrder() *Order {
	return NewOrder(uuid.New(), "SO00001", enum.OrderStateDraft, false)
}

func mustAdd(o *Order, l Line) *Line {
	added, err := o.AddLine(l)
	if err != nil {
		panic(err)
	}
	return added
}

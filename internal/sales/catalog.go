package sales

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog view the engine needs.
type Product struct {
	ID                    uuid.UUID
	Name                  string
	DescriptionSale       string
	UoM                   string
	ListPrice             decimal.Decimal
	TaxIDs                []uuid.UUID
	IsCombo               bool
	IncomeAccount         string
	CategoryIncomeAccount string
}

// ComboEntry is one component of a composite product.
type ComboEntry struct {
	ComponentID uuid.UUID
	Quantity    decimal.Decimal
	UoM         string
}

// Catalog is read-only product metadata keyed by product ID.
type Catalog interface {
	Product(ctx context.Context, id uuid.UUID) (Product, error)
	ComboEntries(ctx context.Context, productID uuid.UUID) ([]ComboEntry, error)
}

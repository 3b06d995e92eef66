package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/ups-sales/api/internal/database"
	"github.com/ups-sales/api/internal/sales"
)

// ErrProductNotFound is returned when a line references an unknown product.
var ErrProductNotFound = errors.New("product not found")

// CatalogStore is the product metadata the composition engine reads.
type CatalogStore interface {
	GetCatalogProduct(ctx context.Context, id uuid.UUID) (database.GetCatalogProductRow, error)
	ListComboLinesByProduct(ctx context.Context, productID uuid.UUID) ([]database.ProductComboLine, error)
}

// storeCatalog adapts a CatalogStore to sales.Catalog. Rows are cached for
// the lifetime of one operation.
type storeCatalog struct {
	store    CatalogStore
	products map[uuid.UUID]sales.Product
}

func newStoreCatalog(store CatalogStore) *storeCatalog {
	return &storeCatalog{store: store, products: make(map[uuid.UUID]sales.Product)}
}

func (c *storeCatalog) Product(ctx context.Context, id uuid.UUID) (sales.Product, error) {
	if p, ok := c.products[id]; ok {
		return p, nil
	}
	row, err := c.store.GetCatalogProduct(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sales.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		return sales.Product{}, err
	}
	p := sales.Product{
		ID:                    row.ID,
		Name:                  row.Name,
		DescriptionSale:       row.DescriptionSale.String,
		UoM:                   row.Uom,
		ListPrice:             numericToDecimal(row.ListPrice),
		TaxIDs:                row.TaxIds,
		IsCombo:               row.IsCombo,
		IncomeAccount:         row.IncomeAccount.String,
		CategoryIncomeAccount: row.CategoryIncomeAccount.String,
	}
	c.products[id] = p
	return p, nil
}

func (c *storeCatalog) ComboEntries(ctx context.Context, productID uuid.UUID) ([]sales.ComboEntry, error) {
	rows, err := c.store.ListComboLinesByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	entries := make([]sales.ComboEntry, len(rows))
	for i, row := range rows {
		entries[i] = sales.ComboEntry{
			ComponentID: row.ComponentID,
			Quantity:    numericToDecimal(row.Quantity),
			UoM:         row.Uom.String,
		}
	}
	return entries, nil
}

// --- Row conversion ---

func lineFromRow(row database.SaleOrderLine) sales.Line {
	return sales.Line{
		ID:           row.ID,
		ParentID:     uuidOrNil(row.ParentLineID),
		Sequence:     row.Sequence,
		ProductID:    uuidOrNil(row.ProductID),
		Name:         row.Name,
		Quantity:     numericToDecimal(row.Quantity),
		UoM:          row.Uom,
		PriceUnit:    numericToDecimal(row.PriceUnit),
		TaxIDs:       row.TaxIds,
		DisplayType:  row.DisplayType.String,
		SkipMovement: row.SkipMovement,
		NeedsReview:  row.NeedsReview,
		QtyInvoiced:  numericToDecimal(row.QtyInvoiced),
	}
}

func virtualLineFromRow(row database.SaleOrderVirtualLine) sales.VirtualLine {
	return sales.VirtualLine{
		ID:           row.ID,
		SourceLineID: uuidOrNil(row.SourceLineID),
		Sequence:     row.Sequence,
		ProductID:    uuidOrNil(row.ProductID),
		Name:         row.Name,
		Quantity:     numericToDecimal(row.Quantity),
		UoM:          row.Uom,
		PriceUnit:    numericToDecimal(row.PriceUnit),
		TaxIDs:       row.TaxIds,
	}
}

func createLineParams(orderID uuid.UUID, l *sales.Line) database.CreateOrderLineParams {
	return database.CreateOrderLineParams{
		ID:           l.ID,
		OrderID:      orderID,
		ParentLineID: pgUUID(l.ParentID),
		Sequence:     l.Sequence,
		ProductID:    pgUUID(l.ProductID),
		Name:         l.Name,
		Quantity:     decimalToNumeric(l.Quantity),
		Uom:          l.UoM,
		PriceUnit:    decimalToNumeric(l.PriceUnit),
		TaxIds:       nonNilUUIDs(l.TaxIDs),
		DisplayType:  pgText(l.DisplayType),
		IsComboChild: l.IsComponent(),
		SkipMovement: l.SkipMovement,
		NeedsReview:  l.NeedsReview,
	}
}

func updateLineParams(l *sales.Line) database.UpdateOrderLineParams {
	return database.UpdateOrderLineParams{
		ID:          l.ID,
		Sequence:    l.Sequence,
		ProductID:   pgUUID(l.ProductID),
		Name:        l.Name,
		Quantity:    decimalToNumeric(l.Quantity),
		Uom:         l.UoM,
		PriceUnit:   decimalToNumeric(l.PriceUnit),
		TaxIds:      nonNilUUIDs(l.TaxIDs),
		NeedsReview: l.NeedsReview,
	}
}

func taxRatesFromRows(rows []database.Tax) sales.TaxRates {
	rates := make(sales.TaxRates, len(rows))
	for _, t := range rows {
		rates[t.ID] = numericToDecimal(t.Amount)
	}
	return rates
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// decimalToNumeric keeps full precision; component quantities such as
// 3 × 0.333 must survive the round trip.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}

func uuidOrNil(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return uuid.UUID(id.Bytes)
}

func pgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func nonNilUUIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

package service

import (
	"context"
	"fmt"

	"github.com/ups-sales/api/internal/database"
	"github.com/ups-sales/api/internal/sales"
)

// StockMoveStore records outgoing stock moves.
type StockMoveStore interface {
	CreateStockMove(ctx context.Context, arg database.CreateStockMoveParams) (database.StockMove, error)
}

// FulfillmentTrigger receives the lines that must move physically when an
// order is confirmed. It runs inside the confirming transaction.
type FulfillmentTrigger interface {
	Fulfill(ctx context.Context, store StockMoveStore, o *sales.Order, lines []*sales.Line) error
}

// StockMoveTrigger writes one waiting stock move per line at the line's
// quantity and unit of measure.
type StockMoveTrigger struct{}

func (StockMoveTrigger) Fulfill(ctx context.Context, store StockMoveStore, o *sales.Order, lines []*sales.Line) error {
	for i, l := range lines {
		_, err := store.CreateStockMove(ctx, database.CreateStockMoveParams{
			OrderID:    o.ID,
			SaleLineID: pgUUID(l.ID),
			ProductID:  l.ProductID,
			Quantity:   decimalToNumeric(l.Quantity),
			Uom:        l.UoM,
		})
		if err != nil {
			return fmt.Errorf("stock move[%d]: %w", i, err)
		}
	}
	return nil
}

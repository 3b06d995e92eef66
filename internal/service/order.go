package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/ups-sales/api/internal/database"
	"github.com/ups-sales/api/internal/enum"
	"github.com/ups-sales/api/internal/sales"
	"go.uber.org/zap"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderLocked      = errors.New("order is not editable")
	ErrInvalidLineType  = errors.New("display_type must be line_section or line_note")
	ErrProductRequired  = errors.New("product_id is required")
	ErrNameRequired     = errors.New("name is required for section and note lines")
	ErrEmptyComponents  = errors.New("components are required")
	ErrInvalidOrderMove = errors.New("invalid order state transition")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// orderReader loads an order aggregate.
type orderReader interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.SaleOrder, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.SaleOrder, error)
	ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]database.SaleOrderLine, error)
	ListVirtualLines(ctx context.Context, orderID uuid.UUID) ([]database.SaleOrderVirtualLine, error)
	ListTaxesByIDs(ctx context.Context, ids []uuid.UUID) ([]database.Tax, error)
}

// OrderStore defines the DB methods needed to edit orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	orderReader
	CatalogStore
	GetNextOrderNumber(ctx context.Context) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.SaleOrder, error)
	UpdateOrderState(ctx context.Context, arg database.UpdateOrderStateParams) (database.SaleOrder, error)
	UpdateOrderVirtualVat(ctx context.Context, arg database.UpdateOrderVirtualVatParams) (database.SaleOrder, error)
	CreateOrderLine(ctx context.Context, arg database.CreateOrderLineParams) (database.SaleOrderLine, error)
	UpdateOrderLine(ctx context.Context, arg database.UpdateOrderLineParams) (database.SaleOrderLine, error)
	DeleteOrderLine(ctx context.Context, arg database.DeleteOrderLineParams) (int64, error)
	CreateStockMove(ctx context.Context, arg database.CreateStockMoveParams) (database.StockMove, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	PartnerName     string
	ApplyVirtualVAT bool
	Tag             string
	CreatedBy       uuid.UUID
	Lines           []AddLineRequest
}

// AddLineRequest is a single top-level line. PriceUnit and TaxIDs default
// to the product's list price and taxes when nil.
type AddLineRequest struct {
	ProductID    uuid.UUID
	Name         string
	DisplayType  string
	Quantity     decimal.Decimal
	PriceUnit    *decimal.Decimal
	TaxIDs       []uuid.UUID
	SkipMovement bool
}

// ComponentRequest is one manually chosen component of an existing line.
type ComponentRequest struct {
	ProductID uuid.UUID
	Quantity  decimal.Decimal
}

// OrderResult is the order header with its aggregate and computed totals.
type OrderResult struct {
	Order          database.SaleOrder
	Aggregate      *sales.Order
	Amounts        sales.Amounts
	VirtualAmounts sales.Amounts
	InvoiceStatus  string
}

// OrderService handles order composition logic.
type OrderService struct {
	pool        TxBeginner
	newStore    NewOrderStore
	fulfillment FulfillmentTrigger
	logger      *zap.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, fulfillment FulfillmentTrigger, logger *zap.Logger) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, fulfillment: fulfillment, logger: logger}
}

// CreateOrder creates the header and every requested line atomically.
// Retries up to maxOrderNumberRetries times when a concurrent transaction
// takes the same order name.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isUniqueViolation(err, "sale_orders_name_key") {
			s.logger.Warn("order name taken, retrying", zap.Int("attempt", attempt+1))
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	next, err := store.GetNextOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}

	row, err := store.CreateOrder(ctx, database.CreateOrderParams{
		Name:            fmt.Sprintf("SO%05d", next),
		PartnerName:     req.PartnerName,
		ApplyVirtualVat: req.ApplyVirtualVAT,
		Tag:             pgText(req.Tag),
		CreatedBy:       pgUUID(req.CreatedBy),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	o := sales.NewOrder(row.ID, row.Name, row.State, row.ApplyVirtualVat)
	cat := newStoreCatalog(store)
	for i, lr := range req.Lines {
		if err := s.insertLine(ctx, store, cat, o, lr); err != nil {
			return nil, fmt.Errorf("line[%d]: %w", i, err)
		}
	}

	result, err := buildResult(ctx, store, row, o)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.logger.Info("order created", zap.String("order", row.Name), zap.Int("lines", len(o.Lines())))
	return result, nil
}

// AddLine appends a top-level line and expands it when its product is a combo.
func (s *OrderService) AddLine(ctx context.Context, orderID uuid.UUID, req AddLineRequest) (*OrderResult, error) {
	return s.edit(ctx, orderID, func(store OrderStore, cat *storeCatalog, o *sales.Order) error {
		return s.insertLine(ctx, store, cat, o, req)
	})
}

// AddComponents attaches manually chosen components to an existing line.
// Components are created at zero price without taxes.
func (s *OrderService) AddComponents(ctx context.Context, orderID, parentLineID uuid.UUID, comps []ComponentRequest) (*OrderResult, error) {
	if len(comps) == 0 {
		return nil, ErrEmptyComponents
	}
	return s.edit(ctx, orderID, func(store OrderStore, cat *storeCatalog, o *sales.Order) error {
		parent, ok := o.Line(parentLineID)
		if !ok {
			return &sales.ValidationError{Msg: fmt.Sprintf("line %s not found in order %s", parentLineID, o.Name), Err: sales.ErrLineNotFound}
		}
		first := o.ReserveSequences(parent.ID, len(comps))

		for i, c := range comps {
			if c.Quantity.IsNegative() {
				return &sales.ValidationError{Msg: fmt.Sprintf("component[%d]: quantity must be >= 0", i), Err: sales.ErrInvalidQuantity}
			}
			product, err := cat.Product(ctx, c.ProductID)
			if err != nil {
				return fmt.Errorf("component[%d]: %w", i, err)
			}
			line, err := o.AddLine(sales.Line{
				ParentID:  parent.ID,
				Sequence:  first + int32(i),
				ProductID: product.ID,
				Name:      sales.ComponentName(product),
				Quantity:  c.Quantity,
				UoM:       product.UoM,
				PriceUnit: decimal.Zero,
			})
			if err != nil {
				return fmt.Errorf("component[%d]: %w", i, err)
			}
			if _, err := store.CreateOrderLine(ctx, createLineParams(o.ID, line)); err != nil {
				return fmt.Errorf("component[%d]: create line: %w", i, err)
			}
		}
		return nil
	})
}

// UpdateLineQuantity sets a line's quantity and keeps its components in
// ratio with the combo definition.
func (s *OrderService) UpdateLineQuantity(ctx context.Context, orderID, lineID uuid.UUID, qty decimal.Decimal) (*OrderResult, error) {
	return s.edit(ctx, orderID, func(store OrderStore, cat *storeCatalog, o *sales.Order) error {
		res, err := sales.SyncQuantity(ctx, cat, o, lineID, qty)
		if err != nil {
			return err
		}
		touched := append(res.Updated, res.Flagged...)
		for _, id := range touched {
			line, _ := o.Line(id)
			if _, err := store.UpdateOrderLine(ctx, updateLineParams(line)); err != nil {
				return fmt.Errorf("update line %s: %w", id, err)
			}
		}
		if len(res.Flagged) > 0 {
			s.logger.Warn("components no longer match combo definition",
				zap.String("order", o.Name),
				zap.Int("flagged", len(res.Flagged)),
			)
		}
		return nil
	})
}

// ChangeLineProduct swaps a line's product and rebuilds its components.
func (s *OrderService) ChangeLineProduct(ctx context.Context, orderID, lineID, productID uuid.UUID) (*OrderResult, error) {
	return s.edit(ctx, orderID, func(store OrderStore, cat *storeCatalog, o *sales.Order) error {
		res, err := sales.ChangeProduct(ctx, cat, o, lineID, productID)
		if err != nil {
			return err
		}
		// Descendants of a removed child are already gone via ON DELETE CASCADE.
		for _, id := range res.Removed {
			if _, err := store.DeleteOrderLine(ctx, database.DeleteOrderLineParams{ID: id, OrderID: o.ID}); err != nil {
				return fmt.Errorf("delete line %s: %w", id, err)
			}
		}
		line, _ := o.Line(lineID)
		if _, err := store.UpdateOrderLine(ctx, updateLineParams(line)); err != nil {
			return fmt.Errorf("update line %s: %w", lineID, err)
		}
		for _, added := range res.Added {
			if _, err := store.CreateOrderLine(ctx, createLineParams(o.ID, added)); err != nil {
				return fmt.Errorf("create component line: %w", err)
			}
		}
		return nil
	})
}

// DeleteLine removes a top-level line together with its components.
func (s *OrderService) DeleteLine(ctx context.Context, orderID, lineID uuid.UUID) (*OrderResult, error) {
	return s.edit(ctx, orderID, func(store OrderStore, _ *storeCatalog, o *sales.Order) error {
		removed, err := sales.DeleteLine(o, lineID)
		if err != nil {
			return err
		}
		n, err := store.DeleteOrderLine(ctx, database.DeleteOrderLineParams{ID: removed[0], OrderID: o.ID})
		if err != nil {
			return fmt.Errorf("delete line %s: %w", lineID, err)
		}
		if n == 0 {
			return &sales.ValidationError{Msg: fmt.Sprintf("line %s not found in order %s", lineID, o.Name), Err: sales.ErrLineNotFound}
		}
		return nil
	})
}

// SetVirtualVAT switches the order between standard and virtual invoicing.
func (s *OrderService) SetVirtualVAT(ctx context.Context, orderID uuid.UUID, apply bool) (*OrderResult, error) {
	return s.edit(ctx, orderID, func(store OrderStore, _ *storeCatalog, o *sales.Order) error {
		if _, err := store.UpdateOrderVirtualVat(ctx, database.UpdateOrderVirtualVatParams{ID: o.ID, ApplyVirtualVat: apply}); err != nil {
			return fmt.Errorf("update virtual vat: %w", err)
		}
		o.ApplyVirtualVAT = apply
		return nil
	})
}

// ConfirmOrder moves a quotation to a sales order and hands the physical
// lines to the fulfillment trigger.
func (s *OrderService) ConfirmOrder(ctx context.Context, orderID uuid.UUID) (*OrderResult, error) {
	var moved int
	result, err := s.edit(ctx, orderID, func(store OrderStore, _ *storeCatalog, o *sales.Order) error {
		if _, err := store.UpdateOrderState(ctx, database.UpdateOrderStateParams{ID: o.ID, State: enum.OrderStateSale}); err != nil {
			return fmt.Errorf("update order state: %w", err)
		}
		o.State = enum.OrderStateSale

		lines := sales.SelectForFulfillment(o)
		moved = len(lines)
		if len(lines) == 0 {
			return nil
		}
		return s.fulfillment.Fulfill(ctx, store, o, lines)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order confirmed", zap.String("order", result.Order.Name), zap.Int("moves", moved))
	return result, nil
}

// CancelOrder cancels any order that is not done.
func (s *OrderService) CancelOrder(ctx context.Context, orderID uuid.UUID) (*OrderResult, error) {
	return s.withOrder(ctx, orderID, true, func(store OrderStore, _ *storeCatalog, o *sales.Order) error {
		if o.State == enum.OrderStateDone || o.State == enum.OrderStateCancel {
			return &sales.ValidationError{Msg: fmt.Sprintf("order %s is %s and cannot be cancelled", o.Name, o.State), Err: ErrInvalidOrderMove}
		}
		if _, err := store.UpdateOrderState(ctx, database.UpdateOrderStateParams{ID: o.ID, State: enum.OrderStateCancel}); err != nil {
			return fmt.Errorf("update order state: %w", err)
		}
		o.State = enum.OrderStateCancel
		return nil
	})
}

// GetOrder returns the order aggregate with totals.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderResult, error) {
	return s.withOrder(ctx, orderID, false, nil)
}

// --- Helpers ---

type editFunc func(store OrderStore, cat *storeCatalog, o *sales.Order) error

// edit runs fn against a locked, editable order.
func (s *OrderService) edit(ctx context.Context, orderID uuid.UUID, fn editFunc) (*OrderResult, error) {
	return s.withOrder(ctx, orderID, true, func(store OrderStore, cat *storeCatalog, o *sales.Order) error {
		if !o.Editable() {
			return &sales.ValidationError{
				Msg: fmt.Sprintf("order %s is %s; only draft and sent orders can be edited", o.Name, o.State),
				Err: ErrOrderLocked,
			}
		}
		return fn(store, cat, o)
	})
}

// withOrder loads the order inside a transaction, runs fn and commits.
// The header row lock serializes concurrent edits of one order.
func (s *OrderService) withOrder(ctx context.Context, orderID uuid.UUID, lock bool, fn editFunc) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	row, o, err := loadOrder(ctx, store, orderID, lock)
	if err != nil {
		return nil, err
	}
	if fn != nil {
		if err := fn(store, newStoreCatalog(store), o); err != nil {
			return nil, err
		}
		for _, l := range o.Resequenced() {
			if _, err := store.UpdateOrderLine(ctx, updateLineParams(l)); err != nil {
				return nil, fmt.Errorf("resequence line %s: %w", l.ID, err)
			}
		}
		row.State = o.State
		row.ApplyVirtualVat = o.ApplyVirtualVAT
	}

	result, err := buildResult(ctx, store, row, o)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

func (s *OrderService) insertLine(ctx context.Context, store OrderStore, cat *storeCatalog, o *sales.Order, req AddLineRequest) error {
	if req.Quantity.IsNegative() {
		return &sales.ValidationError{Msg: fmt.Sprintf("quantity must be >= 0, got %s", req.Quantity), Err: sales.ErrInvalidQuantity}
	}

	line := sales.Line{
		Sequence:     o.NextSequence(),
		Name:         req.Name,
		Quantity:     req.Quantity,
		SkipMovement: req.SkipMovement,
	}

	if req.DisplayType != "" {
		if req.DisplayType != enum.DisplayTypeSection && req.DisplayType != enum.DisplayTypeNote {
			return ErrInvalidLineType
		}
		if req.Name == "" {
			return ErrNameRequired
		}
		line.DisplayType = req.DisplayType
		line.Quantity = decimal.Zero
		added, err := o.AddLine(line)
		if err != nil {
			return err
		}
		_, err = store.CreateOrderLine(ctx, createLineParams(o.ID, added))
		return err
	}

	if req.ProductID == uuid.Nil {
		return ErrProductRequired
	}
	product, err := cat.Product(ctx, req.ProductID)
	if err != nil {
		return err
	}
	line.ProductID = product.ID
	line.UoM = product.UoM
	line.PriceUnit = product.ListPrice
	line.TaxIDs = product.TaxIDs
	if line.Name == "" {
		line.Name = product.Name
	}
	if req.PriceUnit != nil {
		line.PriceUnit = *req.PriceUnit
	}
	if req.TaxIDs != nil {
		line.TaxIDs = req.TaxIDs
	}

	added, err := o.AddLine(line)
	if err != nil {
		return err
	}
	components, err := sales.ExpandCascade(ctx, cat, o, added.ID)
	if err != nil {
		return err
	}

	for _, l := range append([]*sales.Line{added}, components...) {
		if _, err := store.CreateOrderLine(ctx, createLineParams(o.ID, l)); err != nil {
			return fmt.Errorf("create line: %w", err)
		}
	}
	return nil
}

// loadOrder reads the header, lines and virtual lines into an aggregate.
func loadOrder(ctx context.Context, store orderReader, orderID uuid.UUID, lock bool) (database.SaleOrder, *sales.Order, error) {
	get := store.GetOrder
	if lock {
		get = store.GetOrderForUpdate
	}
	row, err := get(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.SaleOrder{}, nil, ErrOrderNotFound
		}
		return database.SaleOrder{}, nil, fmt.Errorf("get order: %w", err)
	}

	lineRows, err := store.ListOrderLines(ctx, orderID)
	if err != nil {
		return database.SaleOrder{}, nil, fmt.Errorf("list order lines: %w", err)
	}
	lines := make([]sales.Line, len(lineRows))
	for i, lr := range lineRows {
		lines[i] = lineFromRow(lr)
	}

	o := sales.NewOrder(row.ID, row.Name, row.State, row.ApplyVirtualVat)
	if err := o.Restore(lines); err != nil {
		return database.SaleOrder{}, nil, fmt.Errorf("restore order %s: %w", row.Name, err)
	}

	virtualRows, err := store.ListVirtualLines(ctx, orderID)
	if err != nil {
		return database.SaleOrder{}, nil, fmt.Errorf("list virtual lines: %w", err)
	}
	for _, vr := range virtualRows {
		o.VirtualLines = append(o.VirtualLines, virtualLineFromRow(vr))
	}
	return row, o, nil
}

func buildResult(ctx context.Context, store orderReader, row database.SaleOrder, o *sales.Order) (*OrderResult, error) {
	rates, err := loadTaxRates(ctx, store, sales.TaxIDs(o))
	if err != nil {
		return nil, err
	}
	return &OrderResult{
		Order:          row,
		Aggregate:      o,
		Amounts:        sales.OrderAmounts(o, rates),
		VirtualAmounts: sales.VirtualAmounts(o, rates),
		InvoiceStatus:  sales.InvoiceStatus(o),
	}, nil
}

func loadTaxRates(ctx context.Context, store orderReader, ids []uuid.UUID) (sales.TaxRates, error) {
	if len(ids) == 0 {
		return sales.TaxRates{}, nil
	}
	taxes, err := store.ListTaxesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list taxes: %w", err)
	}
	return taxRatesFromRows(taxes), nil
}

// isUniqueViolation checks for a 23505 on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}

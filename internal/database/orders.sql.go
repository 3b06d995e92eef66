package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Orders ---

const orderColumns = `id, name, partner_name, state, apply_virtual_vat, tag, created_by, created_at, updated_at`

func scanOrder(row rowScanner) (SaleOrder, error) {
	var i SaleOrder
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.PartnerName,
		&i.State,
		&i.ApplyVirtualVat,
		&i.Tag,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getNextOrderNumber = `SELECT (COALESCE(MAX(NULLIF(regexp_replace(name, '\D', '', 'g'), '')::int), 0) + 1)::int4
FROM sale_orders`

func (q *Queries) GetNextOrderNumber(ctx context.Context) (int32, error) {
	var next int32
	err := q.db.QueryRow(ctx, getNextOrderNumber).Scan(&next)
	return next, err
}

const createOrder = `INSERT INTO sale_orders (name, partner_name, apply_virtual_vat, tag, created_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	Name            string      `json:"name"`
	PartnerName     string      `json:"partner_name"`
	ApplyVirtualVat bool        `json:"apply_virtual_vat"`
	Tag             pgtype.Text `json:"tag"`
	CreatedBy       pgtype.UUID `json:"created_by"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (SaleOrder, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.Name,
		arg.PartnerName,
		arg.ApplyVirtualVat,
		arg.Tag,
		arg.CreatedBy,
	))
}

const getOrder = `SELECT ` + orderColumns + ` FROM sale_orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (SaleOrder, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

// Row lock on the header serializes writers of one order aggregate.
const getOrderForUpdate = `SELECT ` + orderColumns + ` FROM sale_orders WHERE id = $1 FOR UPDATE`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (SaleOrder, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrders = `SELECT ` + orderColumns + ` FROM sale_orders
WHERE ($1::text IS NULL OR state = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListOrdersParams struct {
	State  pgtype.Text `json:"state"`
	Limit  int32       `json:"limit"`
	Offset int32       `json:"offset"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]SaleOrder, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.State, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SaleOrder
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrderState = `UPDATE sale_orders SET state = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderStateParams struct {
	ID    uuid.UUID `json:"id"`
	State string    `json:"state"`
}

func (q *Queries) UpdateOrderState(ctx context.Context, arg UpdateOrderStateParams) (SaleOrder, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderState, arg.ID, arg.State))
}

const updateOrderVirtualVat = `UPDATE sale_orders SET apply_virtual_vat = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderVirtualVatParams struct {
	ID              uuid.UUID `json:"id"`
	ApplyVirtualVat bool      `json:"apply_virtual_vat"`
}

func (q *Queries) UpdateOrderVirtualVat(ctx context.Context, arg UpdateOrderVirtualVatParams) (SaleOrder, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderVirtualVat, arg.ID, arg.ApplyVirtualVat))
}

// --- Order lines ---

const orderLineColumns = `id, order_id, parent_line_id, sequence, product_id, name, quantity, uom,
price_unit, tax_ids, display_type, is_combo_child, skip_movement, needs_review, qty_invoiced`

func scanOrderLine(row rowScanner) (SaleOrderLine, error) {
	var i SaleOrderLine
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ParentLineID,
		&i.Sequence,
		&i.ProductID,
		&i.Name,
		&i.Quantity,
		&i.Uom,
		&i.PriceUnit,
		&i.TaxIds,
		&i.DisplayType,
		&i.IsComboChild,
		&i.SkipMovement,
		&i.NeedsReview,
		&i.QtyInvoiced,
	)
	return i, err
}

const listOrderLines = `SELECT ` + orderLineColumns + ` FROM sale_order_lines
WHERE order_id = $1
ORDER BY sequence, id`

func (q *Queries) ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]SaleOrderLine, error) {
	rows, err := q.db.Query(ctx, listOrderLines, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SaleOrderLine
	for rows.Next() {
		i, err := scanOrderLine(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createOrderLine = `INSERT INTO sale_order_lines (
    id, order_id, parent_line_id, sequence, product_id, name, quantity, uom,
    price_unit, tax_ids, display_type, is_combo_child, skip_movement, needs_review
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING ` + orderLineColumns

type CreateOrderLineParams struct {
	ID           uuid.UUID      `json:"id"`
	OrderID      uuid.UUID      `json:"order_id"`
	ParentLineID pgtype.UUID    `json:"parent_line_id"`
	Sequence     int32          `json:"sequence"`
	ProductID    pgtype.UUID    `json:"product_id"`
	Name         string         `json:"name"`
	Quantity     pgtype.Numeric `json:"quantity"`
	Uom          string         `json:"uom"`
	PriceUnit    pgtype.Numeric `json:"price_unit"`
	TaxIds       []uuid.UUID    `json:"tax_ids"`
	DisplayType  pgtype.Text    `json:"display_type"`
	IsComboChild bool           `json:"is_combo_child"`
	SkipMovement bool           `json:"skip_movement"`
	NeedsReview  bool           `json:"needs_review"`
}

func (q *Queries) CreateOrderLine(ctx context.Context, arg CreateOrderLineParams) (SaleOrderLine, error) {
	return scanOrderLine(q.db.QueryRow(ctx, createOrderLine,
		arg.ID,
		arg.OrderID,
		arg.ParentLineID,
		arg.Sequence,
		arg.ProductID,
		arg.Name,
		arg.Quantity,
		arg.Uom,
		arg.PriceUnit,
		arg.TaxIds,
		arg.DisplayType,
		arg.IsComboChild,
		arg.SkipMovement,
		arg.NeedsReview,
	))
}

const updateOrderLine = `UPDATE sale_order_lines SET
    sequence = $2, product_id = $3, name = $4, quantity = $5, uom = $6,
    price_unit = $7, tax_ids = $8, needs_review = $9
WHERE id = $1
RETURNING ` + orderLineColumns

type UpdateOrderLineParams struct {
	ID          uuid.UUID      `json:"id"`
	Sequence    int32          `json:"sequence"`
	ProductID   pgtype.UUID    `json:"product_id"`
	Name        string         `json:"name"`
	Quantity    pgtype.Numeric `json:"quantity"`
	Uom         string         `json:"uom"`
	PriceUnit   pgtype.Numeric `json:"price_unit"`
	TaxIds      []uuid.UUID    `json:"tax_ids"`
	NeedsReview bool           `json:"needs_review"`
}

func (q *Queries) UpdateOrderLine(ctx context.Context, arg UpdateOrderLineParams) (SaleOrderLine, error) {
	return scanOrderLine(q.db.QueryRow(ctx, updateOrderLine,
		arg.ID,
		arg.Sequence,
		arg.ProductID,
		arg.Name,
		arg.Quantity,
		arg.Uom,
		arg.PriceUnit,
		arg.TaxIds,
		arg.NeedsReview,
	))
}

// DeleteOrderLine removes a line; component lines go with it through the
// parent_line_id ON DELETE CASCADE.
const deleteOrderLine = `DELETE FROM sale_order_lines WHERE id = $1 AND order_id = $2`

type DeleteOrderLineParams struct {
	ID      uuid.UUID `json:"id"`
	OrderID uuid.UUID `json:"order_id"`
}

func (q *Queries) DeleteOrderLine(ctx context.Context, arg DeleteOrderLineParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteOrderLine, arg.ID, arg.OrderID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const addLineQtyInvoiced = `UPDATE sale_order_lines SET qty_invoiced = GREATEST(qty_invoiced + $2, 0)
WHERE id = $1`

type AddLineQtyInvoicedParams struct {
	ID    uuid.UUID      `json:"id"`
	Delta pgtype.Numeric `json:"delta"`
}

func (q *Queries) AddLineQtyInvoiced(ctx context.Context, arg AddLineQtyInvoicedParams) error {
	_, err := q.db.Exec(ctx, addLineQtyInvoiced, arg.ID, arg.Delta)
	return err
}

const listOrderCardLines = `SELECT l.order_id, l.name, l.quantity, l.display_type, l.is_combo_child,
       COALESCE(c.name, '') AS category_name
FROM sale_order_lines l
LEFT JOIN products p ON p.id = l.product_id
LEFT JOIN product_categories c ON c.id = p.category_id
WHERE l.order_id = ANY($1::uuid[])
ORDER BY l.order_id, l.sequence, l.id`

type ListOrderCardLinesRow struct {
	OrderID      uuid.UUID      `json:"order_id"`
	Name         string         `json:"name"`
	Quantity     pgtype.Numeric `json:"quantity"`
	DisplayType  pgtype.Text    `json:"display_type"`
	IsComboChild bool           `json:"is_combo_child"`
	CategoryName string         `json:"category_name"`
}

func (q *Queries) ListOrderCardLines(ctx context.Context, orderIDs []uuid.UUID) ([]ListOrderCardLinesRow, error) {
	rows, err := q.db.Query(ctx, listOrderCardLines, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListOrderCardLinesRow
	for rows.Next() {
		var i ListOrderCardLinesRow
		if err := rows.Scan(
			&i.OrderID,
			&i.Name,
			&i.Quantity,
			&i.DisplayType,
			&i.IsComboChild,
			&i.CategoryName,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// --- Virtual lines ---

const virtualLineColumns = `id, order_id, source_line_id, sequence, product_id, name, quantity, uom, price_unit, tax_ids`

func scanVirtualLine(row rowScanner) (SaleOrderVirtualLine, error) {
	var i SaleOrderVirtualLine
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.SourceLineID,
		&i.Sequence,
		&i.ProductID,
		&i.Name,
		&i.Quantity,
		&i.Uom,
		&i.PriceUnit,
		&i.TaxIds,
	)
	return i, err
}

const listVirtualLines = `SELECT ` + virtualLineColumns + ` FROM sale_order_virtual_lines
WHERE order_id = $1
ORDER BY sequence, id`

func (q *Queries) ListVirtualLines(ctx context.Context, orderID uuid.UUID) ([]SaleOrderVirtualLine, error) {
	rows, err := q.db.Query(ctx, listVirtualLines, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SaleOrderVirtualLine
	for rows.Next() {
		i, err := scanVirtualLine(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createVirtualLine = `INSERT INTO sale_order_virtual_lines (
    id, order_id, source_line_id, sequence, product_id, name, quantity, uom, price_unit, tax_ids
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + virtualLineColumns

type CreateVirtualLineParams struct {
	ID           uuid.UUID      `json:"id"`
	OrderID      uuid.UUID      `json:"order_id"`
	SourceLineID pgtype.UUID    `json:"source_line_id"`
	Sequence     int32          `json:"sequence"`
	ProductID    pgtype.UUID    `json:"product_id"`
	Name         string         `json:"name"`
	Quantity     pgtype.Numeric `json:"quantity"`
	Uom          string         `json:"uom"`
	PriceUnit    pgtype.Numeric `json:"price_unit"`
	TaxIds       []uuid.UUID    `json:"tax_ids"`
}

func (q *Queries) CreateVirtualLine(ctx context.Context, arg CreateVirtualLineParams) (SaleOrderVirtualLine, error) {
	return scanVirtualLine(q.db.QueryRow(ctx, createVirtualLine,
		arg.ID,
		arg.OrderID,
		arg.SourceLineID,
		arg.Sequence,
		arg.ProductID,
		arg.Name,
		arg.Quantity,
		arg.Uom,
		arg.PriceUnit,
		arg.TaxIds,
	))
}

const updateVirtualLine = `UPDATE sale_order_virtual_lines SET
    name = $3, quantity = $4, price_unit = $5, tax_ids = $6
WHERE id = $1 AND order_id = $2
RETURNING ` + virtualLineColumns

type UpdateVirtualLineParams struct {
	ID        uuid.UUID      `json:"id"`
	OrderID   uuid.UUID      `json:"order_id"`
	Name      string         `json:"name"`
	Quantity  pgtype.Numeric `json:"quantity"`
	PriceUnit pgtype.Numeric `json:"price_unit"`
	TaxIds    []uuid.UUID    `json:"tax_ids"`
}

func (q *Queries) UpdateVirtualLine(ctx context.Context, arg UpdateVirtualLineParams) (SaleOrderVirtualLine, error) {
	return scanVirtualLine(q.db.QueryRow(ctx, updateVirtualLine,
		arg.ID,
		arg.OrderID,
		arg.Name,
		arg.Quantity,
		arg.PriceUnit,
		arg.TaxIds,
	))
}

const deleteVirtualLinesByOrder = `DELETE FROM sale_order_virtual_lines WHERE order_id = $1`

func (q *Queries) DeleteVirtualLinesByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deleteVirtualLinesByOrder, orderID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// --- Stock moves ---

const createStockMove = `INSERT INTO stock_moves (order_id, sale_line_id, product_id, quantity, uom)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, order_id, sale_line_id, product_id, quantity, uom, state, created_at`

type CreateStockMoveParams struct {
	OrderID    uuid.UUID      `json:"order_id"`
	SaleLineID pgtype.UUID    `json:"sale_line_id"`
	ProductID  uuid.UUID      `json:"product_id"`
	Quantity   pgtype.Numeric `json:"quantity"`
	Uom        string         `json:"uom"`
}

func (q *Queries) CreateStockMove(ctx context.Context, arg CreateStockMoveParams) (StockMove, error) {
	var i StockMove
	err := q.db.QueryRow(ctx, createStockMove,
		arg.OrderID,
		arg.SaleLineID,
		arg.ProductID,
		arg.Quantity,
		arg.Uom,
	).Scan(
		&i.ID,
		&i.OrderID,
		&i.SaleLineID,
		&i.ProductID,
		&i.Quantity,
		&i.Uom,
		&i.State,
		&i.CreatedAt,
	)
	return i, err
}

const listStockMovesByOrder = `SELECT id, order_id, sale_line_id, product_id, quantity, uom, state, created_at
FROM stock_moves WHERE order_id = $1 ORDER BY created_at, id`

func (q *Queries) ListStockMovesByOrder(ctx context.Context, orderID uuid.UUID) ([]StockMove, error) {
	rows, err := q.db.Query(ctx, listStockMovesByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StockMove
	for rows.Next() {
		var i StockMove
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.SaleLineID,
			&i.ProductID,
			&i.Quantity,
			&i.Uom,
			&i.State,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const invoiceColumns = `id, order_id, name, partner_name, state, amount_untaxed, amount_tax, amount_total, created_at`

func scanInvoice(row rowScanner) (Invoice, error) {
	var i Invoice
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Name,
		&i.PartnerName,
		&i.State,
		&i.AmountUntaxed,
		&i.AmountTax,
		&i.AmountTotal,
		&i.CreatedAt,
	)
	return i, err
}

const getNextInvoiceNumber = `SELECT (COALESCE(MAX(NULLIF(regexp_replace(name, '\D', '', 'g'), '')::int), 0) + 1)::int4
FROM invoices`

func (q *Queries) GetNextInvoiceNumber(ctx context.Context) (int32, error) {
	var next int32
	err := q.db.QueryRow(ctx, getNextInvoiceNumber).Scan(&next)
	return next, err
}

const createInvoice = `INSERT INTO invoices (order_id, name, partner_name)
VALUES ($1, $2, $3)
RETURNING ` + invoiceColumns

type CreateInvoiceParams struct {
	OrderID     uuid.UUID `json:"order_id"`
	Name        string    `json:"name"`
	PartnerName string    `json:"partner_name"`
}

func (q *Queries) CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, createInvoice, arg.OrderID, arg.Name, arg.PartnerName))
}

const getInvoice = `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

func (q *Queries) GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getInvoice, id))
}

const getInvoiceForUpdate = `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 FOR UPDATE`

func (q *Queries) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getInvoiceForUpdate, id))
}

const listInvoicesByOrder = `SELECT ` + invoiceColumns + ` FROM invoices WHERE order_id = $1 ORDER BY created_at, id`

func (q *Queries) ListInvoicesByOrder(ctx context.Context, orderID uuid.UUID) ([]Invoice, error) {
	rows, err := q.db.Query(ctx, listInvoicesByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Invoice
	for rows.Next() {
		i, err := scanInvoice(rows)
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

const updateInvoiceTotals = `UPDATE invoices SET amount_untaxed = $2, amount_tax = $3, amount_total = $4
WHERE id = $1
RETURNING ` + invoiceColumns

type UpdateInvoiceTotalsParams struct {
	ID            uuid.UUID      `json:"id"`
	AmountUntaxed pgtype.Numeric `json:"amount_untaxed"`
	AmountTax     pgtype.Numeric `json:"amount_tax"`
	AmountTotal   pgtype.Numeric `json:"amount_total"`
}

func (q *Queries) UpdateInvoiceTotals(ctx context.Context, arg UpdateInvoiceTotalsParams) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, updateInvoiceTotals,
		arg.ID,
		arg.AmountUntaxed,
		arg.AmountTax,
		arg.AmountTotal,
	))
}

const updateInvoiceState = `UPDATE invoices SET state = $2 WHERE id = $1
RETURNING ` + invoiceColumns

type UpdateInvoiceStateParams struct {
	ID    uuid.UUID `json:"id"`
	State string    `json:"state"`
}

func (q *Queries) UpdateInvoiceState(ctx context.Context, arg UpdateInvoiceStateParams) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, updateInvoiceState, arg.ID, arg.State))
}

// --- Invoice lines ---

const invoiceLineColumns = `id, invoice_id, sale_line_id, sequence, product_id, name, quantity, uom,
price_unit, tax_ids, account, is_combo_child`

func scanInvoiceLine(row rowScanner) (InvoiceLine, error) {
	var i InvoiceLine
	err := row.Scan(
		&i.ID,
		&i.InvoiceID,
		&i.SaleLineID,
		&i.Sequence,
		&i.ProductID,
		&i.Name,
		&i.Quantity,
		&i.Uom,
		&i.PriceUnit,
		&i.TaxIds,
		&i.Account,
		&i.IsComboChild,
	)
	return i, err
}

const createInvoiceLine = `INSERT INTO invoice_lines (
    invoice_id, sale_line_id, sequence, product_id, name, quantity, uom, price_unit, tax_ids, account, is_combo_child
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + invoiceLineColumns

type CreateInvoiceLineParams struct {
	InvoiceID    uuid.UUID      `json:"invoice_id"`
	SaleLineID   pgtype.UUID    `json:"sale_line_id"`
	Sequence     int32          `json:"sequence"`
	ProductID    pgtype.UUID    `json:"product_id"`
	Name         string         `json:"name"`
	Quantity     pgtype.Numeric `json:"quantity"`
	Uom          string         `json:"uom"`
	PriceUnit    pgtype.Numeric `json:"price_unit"`
	TaxIds       []uuid.UUID    `json:"tax_ids"`
	Account      pgtype.Text    `json:"account"`
	IsComboChild bool           `json:"is_combo_child"`
}

func (q *Queries) CreateInvoiceLine(ctx context.Context, arg CreateInvoiceLineParams) (InvoiceLine, error) {
	return scanInvoiceLine(q.db.QueryRow(ctx, createInvoiceLine,
		arg.InvoiceID,
		arg.SaleLineID,
		arg.Sequence,
		arg.ProductID,
		arg.Name,
		arg.Quantity,
		arg.Uom,
		arg.PriceUnit,
		arg.TaxIds,
		arg.Account,
		arg.IsComboChild,
	))
}

const listInvoiceLines = `SELECT ` + invoiceLineColumns + ` FROM invoice_lines WHERE invoice_id = $1 ORDER BY sequence, id`

func (q *Queries) ListInvoiceLines(ctx context.Context, invoiceID uuid.UUID) ([]InvoiceLine, error) {
	rows, err := q.db.Query(ctx, listInvoiceLines, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InvoiceLine
	for rows.Next() {
		i, err := scanInvoiceLine(rows)
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

const deleteInvoiceLinesByInvoice = `DELETE FROM invoice_lines WHERE invoice_id = $1`

func (q *Queries) DeleteInvoiceLinesByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deleteInvoiceLinesByInvoice, invoiceID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/ups-sales/api/internal/database"
	"github.com/ups-sales/api/internal/enum"
	"github.com/ups-sales/api/internal/sales"
	"go.uber.org/zap"
)

// Errors returned by the invoice service.
var (
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrOrderNotConfirmed   = errors.New("order is not confirmed")
	ErrInvoiceCancelled    = errors.New("invoice is already cancelled")
	ErrVirtualLineNotFound = errors.New("virtual line not found")
)

const maxInvoiceNumberRetries = 3

// InvoiceStore defines the DB methods needed to invoice orders.
// Satisfied by *database.Queries.
type InvoiceStore interface {
	orderReader
	CatalogStore
	GetNextInvoiceNumber(ctx context.Context) (int32, error)
	CreateInvoice(ctx context.Context, arg database.CreateInvoiceParams) (database.Invoice, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (database.Invoice, error)
	GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (database.Invoice, error)
	ListInvoicesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Invoice, error)
	UpdateInvoiceTotals(ctx context.Context, arg database.UpdateInvoiceTotalsParams) (database.Invoice, error)
	UpdateInvoiceState(ctx context.Context, arg database.UpdateInvoiceStateParams) (database.Invoice, error)
	CreateInvoiceLine(ctx context.Context, arg database.CreateInvoiceLineParams) (database.InvoiceLine, error)
	ListInvoiceLines(ctx context.Context, invoiceID uuid.UUID) ([]database.InvoiceLine, error)
	DeleteInvoiceLinesByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error)
	AddLineQtyInvoiced(ctx context.Context, arg database.AddLineQtyInvoicedParams) error
	DeleteVirtualLinesByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	CreateVirtualLine(ctx context.Context, arg database.CreateVirtualLineParams) (database.SaleOrderVirtualLine, error)
	UpdateVirtualLine(ctx context.Context, arg database.UpdateVirtualLineParams) (database.SaleOrderVirtualLine, error)
}

// NewInvoiceStore creates an InvoiceStore from a DBTX (pool or tx).
type NewInvoiceStore func(db database.DBTX) InvoiceStore

// StandardInvoicer produces an invoice from the order's real lines.
type StandardInvoicer interface {
	Invoice(ctx context.Context, store InvoiceStore, cat sales.Catalog, o *sales.Order, partner string) (database.Invoice, []database.InvoiceLine, error)
}

// InvoiceResult is an invoice with its lines.
type InvoiceResult struct {
	Invoice database.Invoice
	Lines   []database.InvoiceLine
}

// VirtualLinesResult is the virtual line set of an order with its totals.
type VirtualLinesResult struct {
	Lines   []database.SaleOrderVirtualLine
	Amounts sales.Amounts
}

// UpdateVirtualLineRequest edits the invoicing view of one virtual line.
// Nil fields are left unchanged.
type UpdateVirtualLineRequest struct {
	Name      *string
	Quantity  *decimal.Decimal
	PriceUnit *decimal.Decimal
	TaxIDs    []uuid.UUID
}

// InvoiceService handles invoice creation for confirmed orders.
type InvoiceService struct {
	pool      TxBeginner
	newStore  NewInvoiceStore
	generator StandardInvoicer
	logger    *zap.Logger
}

// NewInvoiceService creates a new InvoiceService. A nil generator uses the
// default standard invoicer.
func NewInvoiceService(pool TxBeginner, newStore NewInvoiceStore, generator StandardInvoicer, logger *zap.Logger) *InvoiceService {
	if generator == nil {
		generator = DefaultInvoicer{}
	}
	return &InvoiceService{pool: pool, newStore: newStore, generator: generator, logger: logger}
}

// CreateInvoice invoices a confirmed order. Orders flagged for virtual VAT
// get a single invoice built from their virtual lines; all others are
// invoiced from their real lines.
func (s *InvoiceService) CreateInvoice(ctx context.Context, orderID uuid.UUID) (*InvoiceResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxInvoiceNumberRetries; attempt++ {
		result, err := s.createInvoiceTx(ctx, orderID)
		if err == nil {
			return result, nil
		}
		if isUniqueViolation(err, "invoices_name_key") {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *InvoiceService) createInvoiceTx(ctx context.Context, orderID uuid.UUID) (*InvoiceResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	row, o, err := loadOrder(ctx, store, orderID, true)
	if err != nil {
		return nil, err
	}
	if o.State != enum.OrderStateSale {
		return nil, &sales.ValidationError{
			Msg: fmt.Sprintf("order %s is %s; only confirmed orders can be invoiced", o.Name, o.State),
			Err: ErrOrderNotConfirmed,
		}
	}

	cat := newStoreCatalog(store)
	strategy := sales.ChooseInvoiceStrategy(o)

	var (
		inv   database.Invoice
		lines []database.InvoiceLine
	)
	switch strategy {
	case sales.StrategyVirtualSubstitution:
		inv, lines, err = s.invoiceVirtual(ctx, store, cat, o, row.PartnerName)
	default:
		inv, lines, err = s.generator.Invoice(ctx, store, cat, o, row.PartnerName)
	}
	if err != nil {
		return nil, err
	}

	for i, l := range lines {
		if !l.SaleLineID.Valid {
			continue
		}
		if err := store.AddLineQtyInvoiced(ctx, database.AddLineQtyInvoicedParams{
			ID:    uuid.UUID(l.SaleLineID.Bytes),
			Delta: l.Quantity,
		}); err != nil {
			return nil, fmt.Errorf("invoice line[%d]: advance invoiced qty: %w", i, err)
		}
	}

	inv, err = s.updateTotals(ctx, store, inv, lines)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.logger.Info("invoice created",
		zap.String("order", o.Name),
		zap.String("invoice", inv.Name),
		zap.Stringer("strategy", strategy),
		zap.Int("lines", len(lines)),
	)
	return &InvoiceResult{Invoice: inv, Lines: lines}, nil
}

// invoiceVirtual lets the standard invoicer build the header, then swaps
// its lines for lines generated from the virtual set.
func (s *InvoiceService) invoiceVirtual(ctx context.Context, store InvoiceStore, cat sales.Catalog, o *sales.Order, partner string) (database.Invoice, []database.InvoiceLine, error) {
	existing, err := store.ListInvoicesByOrder(ctx, o.ID)
	if err != nil {
		return database.Invoice{}, nil, fmt.Errorf("list invoices: %w", err)
	}
	refs := make([]sales.InvoiceRef, len(existing))
	for i, inv := range existing {
		refs[i] = sales.InvoiceRef{ID: inv.ID, Name: inv.Name, State: inv.State}
	}
	if err := sales.CheckSingleInvoice(o, refs); err != nil {
		return database.Invoice{}, nil, err
	}

	projected, err := sales.ProjectVirtual(ctx, cat, o)
	if err != nil {
		return database.Invoice{}, nil, err
	}

	inv, _, err := s.generator.Invoice(ctx, store, cat, o, partner)
	if err != nil && !errors.Is(err, sales.ErrNothingToInvoice) {
		return database.Invoice{}, nil, err
	}
	if errors.Is(err, sales.ErrNothingToInvoice) {
		// Everything real is already invoiced; the virtual set still needs a header.
		inv, err = createInvoiceHeader(ctx, store, o, partner)
		if err != nil {
			return database.Invoice{}, nil, err
		}
	}
	if _, err := store.DeleteInvoiceLinesByInvoice(ctx, inv.ID); err != nil {
		return database.Invoice{}, nil, fmt.Errorf("discard standard lines: %w", err)
	}

	lines, err := writeInvoiceLines(ctx, store, inv.ID, projected)
	if err != nil {
		return database.Invoice{}, nil, err
	}
	return inv, lines, nil
}

// CancelInvoice cancels an invoice and rolls the invoiced quantities back.
func (s *InvoiceService) CancelInvoice(ctx context.Context, invoiceID uuid.UUID) (*InvoiceResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	inv, err := store.GetInvoiceForUpdate(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if inv.State == enum.InvoiceStateCancel {
		return nil, &sales.ValidationError{Msg: fmt.Sprintf("invoice %s is already cancelled", inv.Name), Err: ErrInvoiceCancelled}
	}

	lines, err := store.ListInvoiceLines(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("list invoice lines: %w", err)
	}
	for i, l := range lines {
		if !l.SaleLineID.Valid {
			continue
		}
		if err := store.AddLineQtyInvoiced(ctx, database.AddLineQtyInvoicedParams{
			ID:    uuid.UUID(l.SaleLineID.Bytes),
			Delta: decimalToNumeric(numericToDecimal(l.Quantity).Neg()),
		}); err != nil {
			return nil, fmt.Errorf("invoice line[%d]: roll back invoiced qty: %w", i, err)
		}
	}

	inv, err = store.UpdateInvoiceState(ctx, database.UpdateInvoiceStateParams{ID: inv.ID, State: enum.InvoiceStateCancel})
	if err != nil {
		return nil, fmt.Errorf("cancel invoice: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.logger.Info("invoice cancelled", zap.String("invoice", inv.Name))
	return &InvoiceResult{Invoice: inv, Lines: lines}, nil
}

// PostInvoice validates a draft invoice.
func (s *InvoiceService) PostInvoice(ctx context.Context, invoiceID uuid.UUID) (*InvoiceResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	inv, err := store.GetInvoiceForUpdate(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if inv.State != enum.InvoiceStateDraft {
		return nil, &sales.ValidationError{Msg: fmt.Sprintf("invoice %s is %s; only drafts can be posted", inv.Name, inv.State)}
	}
	inv, err = store.UpdateInvoiceState(ctx, database.UpdateInvoiceStateParams{ID: inv.ID, State: enum.InvoiceStatePosted})
	if err != nil {
		return nil, fmt.Errorf("post invoice: %w", err)
	}
	lines, err := store.ListInvoiceLines(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("list invoice lines: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &InvoiceResult{Invoice: inv, Lines: lines}, nil
}

// CopyToVirtual discards the order's virtual lines and rebuilds them from
// its real lines.
func (s *InvoiceService) CopyToVirtual(ctx context.Context, orderID uuid.UUID) (*VirtualLinesResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	_, o, err := loadOrder(ctx, store, orderID, true)
	if err != nil {
		return nil, err
	}
	if o.State == enum.OrderStateCancel {
		return nil, &sales.ValidationError{Msg: fmt.Sprintf("order %s is cancelled", o.Name), Err: ErrOrderLocked}
	}

	if _, err := store.DeleteVirtualLinesByOrder(ctx, o.ID); err != nil {
		return nil, fmt.Errorf("delete virtual lines: %w", err)
	}
	virtual := sales.CopyToVirtual(o)
	rows := make([]database.SaleOrderVirtualLine, 0, len(virtual))
	for i, vl := range virtual {
		row, err := store.CreateVirtualLine(ctx, database.CreateVirtualLineParams{
			ID:           vl.ID,
			OrderID:      o.ID,
			SourceLineID: pgUUID(vl.SourceLineID),
			Sequence:     vl.Sequence,
			ProductID:    pgUUID(vl.ProductID),
			Name:         vl.Name,
			Quantity:     decimalToNumeric(vl.Quantity),
			Uom:          vl.UoM,
			PriceUnit:    decimalToNumeric(vl.PriceUnit),
			TaxIds:       nonNilUUIDs(vl.TaxIDs),
		})
		if err != nil {
			return nil, fmt.Errorf("virtual line[%d]: %w", i, err)
		}
		rows = append(rows, row)
	}

	rates, err := loadTaxRates(ctx, store, sales.TaxIDs(o))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.logger.Info("virtual lines refreshed", zap.String("order", o.Name), zap.Int("lines", len(rows)))
	return &VirtualLinesResult{Lines: rows, Amounts: sales.VirtualAmounts(o, rates)}, nil
}

// UpdateVirtualLine edits the description, quantity, price or taxes a
// virtual line will invoice with. Cancelled orders and virtual orders that
// already hold an active invoice are rejected.
func (s *InvoiceService) UpdateVirtualLine(ctx context.Context, orderID, virtualLineID uuid.UUID, req UpdateVirtualLineRequest) (database.SaleOrderVirtualLine, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.SaleOrderVirtualLine{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	_, o, err := loadOrder(ctx, store, orderID, true)
	if err != nil {
		return database.SaleOrderVirtualLine{}, err
	}
	if o.State == enum.OrderStateCancel {
		return database.SaleOrderVirtualLine{}, &sales.ValidationError{Msg: fmt.Sprintf("order %s is cancelled", o.Name), Err: ErrOrderLocked}
	}
	existing, err := store.ListInvoicesByOrder(ctx, o.ID)
	if err != nil {
		return database.SaleOrderVirtualLine{}, fmt.Errorf("list invoices: %w", err)
	}
	refs := make([]sales.InvoiceRef, len(existing))
	for i, inv := range existing {
		refs[i] = sales.InvoiceRef{ID: inv.ID, Name: inv.Name, State: inv.State}
	}
	if err := sales.CheckSingleInvoice(o, refs); err != nil {
		return database.SaleOrderVirtualLine{}, err
	}

	var vl *sales.VirtualLine
	for i := range o.VirtualLines {
		if o.VirtualLines[i].ID == virtualLineID {
			vl = &o.VirtualLines[i]
			break
		}
	}
	if vl == nil {
		return database.SaleOrderVirtualLine{}, ErrVirtualLineNotFound
	}

	if req.Name != nil {
		vl.Name = *req.Name
	}
	if req.Quantity != nil {
		if req.Quantity.IsNegative() {
			return database.SaleOrderVirtualLine{}, &sales.ValidationError{Msg: "quantity must be >= 0", Err: sales.ErrInvalidQuantity}
		}
		vl.Quantity = *req.Quantity
	}
	if req.PriceUnit != nil {
		vl.PriceUnit = *req.PriceUnit
	}
	if req.TaxIDs != nil {
		vl.TaxIDs = req.TaxIDs
	}

	row, err := store.UpdateVirtualLine(ctx, database.UpdateVirtualLineParams{
		ID:        vl.ID,
		OrderID:   o.ID,
		Name:      vl.Name,
		Quantity:  decimalToNumeric(vl.Quantity),
		PriceUnit: decimalToNumeric(vl.PriceUnit),
		TaxIds:    nonNilUUIDs(vl.TaxIDs),
	})
	if err != nil {
		return database.SaleOrderVirtualLine{}, fmt.Errorf("update virtual line: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return database.SaleOrderVirtualLine{}, fmt.Errorf("commit tx: %w", err)
	}
	return row, nil
}

// ListInvoices returns every invoice of the order, cancelled ones included.
func (s *InvoiceService) ListInvoices(ctx context.Context, orderID uuid.UUID) ([]database.Invoice, error) {
	var invoices []database.Invoice
	err := s.read(ctx, func(store InvoiceStore) error {
		if _, err := store.GetOrder(ctx, orderID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("get order: %w", err)
		}
		var err error
		invoices, err = store.ListInvoicesByOrder(ctx, orderID)
		return err
	})
	return invoices, err
}

// ListVirtualLines returns the order's virtual lines with their totals.
func (s *InvoiceService) ListVirtualLines(ctx context.Context, orderID uuid.UUID) (*VirtualLinesResult, error) {
	var result VirtualLinesResult
	err := s.read(ctx, func(store InvoiceStore) error {
		_, o, err := loadOrder(ctx, store, orderID, false)
		if err != nil {
			return err
		}
		rows, err := store.ListVirtualLines(ctx, orderID)
		if err != nil {
			return fmt.Errorf("list virtual lines: %w", err)
		}
		rates, err := loadTaxRates(ctx, store, sales.TaxIDs(o))
		if err != nil {
			return err
		}
		result = VirtualLinesResult{Lines: rows, Amounts: sales.VirtualAmounts(o, rates)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetInvoice returns an invoice with its lines.
func (s *InvoiceService) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*InvoiceResult, error) {
	var result InvoiceResult
	err := s.read(ctx, func(store InvoiceStore) error {
		inv, err := store.GetInvoice(ctx, invoiceID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrInvoiceNotFound
			}
			return fmt.Errorf("get invoice: %w", err)
		}
		lines, err := store.ListInvoiceLines(ctx, inv.ID)
		if err != nil {
			return fmt.Errorf("list invoice lines: %w", err)
		}
		result = InvoiceResult{Invoice: inv, Lines: lines}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// read runs fn in a transaction that is always rolled back.
func (s *InvoiceService) read(ctx context.Context, fn func(store InvoiceStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	return fn(s.newStore(tx))
}

func (s *InvoiceService) updateTotals(ctx context.Context, store InvoiceStore, inv database.Invoice, lines []database.InvoiceLine) (database.Invoice, error) {
	values := make([]sales.InvoiceLineValues, len(lines))
	var taxIDs []uuid.UUID
	for i, l := range lines {
		values[i] = sales.InvoiceLineValues{
			Quantity:  numericToDecimal(l.Quantity),
			PriceUnit: numericToDecimal(l.PriceUnit),
			TaxIDs:    l.TaxIds,
		}
		taxIDs = append(taxIDs, l.TaxIds...)
	}
	rates, err := loadTaxRates(ctx, store, taxIDs)
	if err != nil {
		return database.Invoice{}, err
	}
	amounts := sales.InvoiceAmounts(values, rates)
	inv, err = store.UpdateInvoiceTotals(ctx, database.UpdateInvoiceTotalsParams{
		ID:            inv.ID,
		AmountUntaxed: decimalToNumeric(amounts.Untaxed),
		AmountTax:     decimalToNumeric(amounts.Tax),
		AmountTotal:   decimalToNumeric(amounts.Total),
	})
	if err != nil {
		return database.Invoice{}, fmt.Errorf("update invoice totals: %w", err)
	}
	return inv, nil
}

// --- Standard invoicer ---

// DefaultInvoicer invoices the pending real lines of an order. Income
// accounts are resolved when the catalog has one; lines without one are
// written without an account.
type DefaultInvoicer struct{}

func (DefaultInvoicer) Invoice(ctx context.Context, store InvoiceStore, cat sales.Catalog, o *sales.Order, partner string) (database.Invoice, []database.InvoiceLine, error) {
	projected := sales.ProjectStandard(o)
	if len(projected) == 0 {
		return database.Invoice{}, nil, &sales.ValidationError{
			Msg: fmt.Sprintf("order %s has nothing left to invoice", o.Name),
			Err: sales.ErrNothingToInvoice,
		}
	}
	for i := range projected {
		if projected[i].ProductID == uuid.Nil {
			continue
		}
		product, err := cat.Product(ctx, projected[i].ProductID)
		if err != nil {
			return database.Invoice{}, nil, fmt.Errorf("invoice line[%d]: %w", i, err)
		}
		if account, err := sales.ResolveIncomeAccount(product); err == nil {
			projected[i].Account = account
		}
	}

	inv, err := createInvoiceHeader(ctx, store, o, partner)
	if err != nil {
		return database.Invoice{}, nil, err
	}
	lines, err := writeInvoiceLines(ctx, store, inv.ID, projected)
	if err != nil {
		return database.Invoice{}, nil, err
	}
	return inv, lines, nil
}

func createInvoiceHeader(ctx context.Context, store InvoiceStore, o *sales.Order, partner string) (database.Invoice, error) {
	next, err := store.GetNextInvoiceNumber(ctx)
	if err != nil {
		return database.Invoice{}, fmt.Errorf("get next invoice number: %w", err)
	}
	inv, err := store.CreateInvoice(ctx, database.CreateInvoiceParams{
		OrderID:     o.ID,
		Name:        fmt.Sprintf("INV/%05d", next),
		PartnerName: partner,
	})
	if err != nil {
		return database.Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	return inv, nil
}

func writeInvoiceLines(ctx context.Context, store InvoiceStore, invoiceID uuid.UUID, values []sales.InvoiceLineValues) ([]database.InvoiceLine, error) {
	lines := make([]database.InvoiceLine, 0, len(values))
	for i, v := range values {
		line, err := store.CreateInvoiceLine(ctx, database.CreateInvoiceLineParams{
			InvoiceID:    invoiceID,
			SaleLineID:   pgUUID(v.SaleLineID),
			Sequence:     v.Sequence,
			ProductID:    pgUUID(v.ProductID),
			Name:         v.Name,
			Quantity:     decimalToNumeric(v.Quantity),
			Uom:          v.UoM,
			PriceUnit:    decimalToNumeric(v.PriceUnit),
			TaxIds:       nonNilUUIDs(v.TaxIDs),
			Account:      pgText(v.Account),
			IsComboChild: v.IsComboChild,
		})
		if err != nil {
			return nil, fmt.Errorf("invoice line[%d]: %w", i, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

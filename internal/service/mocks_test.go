package service

import (
	"context"
	"slices"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/ups-sales/api/internal/database"
	"github.com/ups-sales/api/internal/enum"
	"go.uber.org/zap"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
	commits     int
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr == nil {
		m.commits++
	}
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// memStore is an in-memory OrderStore and InvoiceStore. Writes are not
// transactional; tests assert on committed results only.
type memStore struct {
	orders       map[uuid.UUID]database.SaleOrder
	lines        []database.SaleOrderLine
	virtual      []database.SaleOrderVirtualLine
	products     map[uuid.UUID]database.GetCatalogProductRow
	combos       map[uuid.UUID][]database.ProductComboLine
	taxes        map[uuid.UUID]database.Tax
	invoices     []database.Invoice
	invoiceLines []database.InvoiceLine
	moves        []database.StockMove
	orderSeq     int32
	invoiceSeq   int32

	// createOrderErrs is consumed one error per CreateOrder call.
	createOrderErrs []error
	createOrderCall int
}

func newMemStore() *memStore {
	return &memStore{
		orders:   make(map[uuid.UUID]database.SaleOrder),
		products: make(map[uuid.UUID]database.GetCatalogProductRow),
		combos:   make(map[uuid.UUID][]database.ProductComboLine),
		taxes:    make(map[uuid.UUID]database.Tax),
	}
}

// --- Catalog fixtures ---

func (m *memStore) addProduct(name, price string) uuid.UUID {
	id := uuid.New()
	m.products[id] = database.GetCatalogProductRow{
		ID:            id,
		Name:          name,
		ListPrice:     makeNumeric(price),
		Uom:           "Units",
		TaxIds:        []uuid.UUID{},
		IncomeAccount: pgtype.Text{String: "511 Sales", Valid: true},
	}
	return id
}

func (m *memStore) addCombo(name, price string, components map[uuid.UUID]string) uuid.UUID {
	id := m.addProduct(name, price)
	p := m.products[id]
	p.IsCombo = true
	m.products[id] = p

	ids := make([]uuid.UUID, 0, len(components))
	for c := range components {
		ids = append(ids, c)
	}
	sort.Slice(ids, func(i, j int) bool { return m.products[ids[i]].Name < m.products[ids[j]].Name })
	for i, c := range ids {
		m.combos[id] = append(m.combos[id], database.ProductComboLine{
			ID:          uuid.New(),
			ProductID:   id,
			ComponentID: c,
			Quantity:    makeNumeric(components[c]),
			Sequence:    int32(i),
		})
	}
	return id
}

func (m *memStore) addTax(name, percent string) uuid.UUID {
	id := uuid.New()
	m.taxes[id] = database.Tax{ID: id, Name: name, Amount: makeNumeric(percent)}
	return id
}

func (m *memStore) orderLines(orderID uuid.UUID) []database.SaleOrderLine {
	lines, _ := m.ListOrderLines(context.Background(), orderID)
	return lines
}

// --- Catalog ---

func (m *memStore) GetCatalogProduct(ctx context.Context, id uuid.UUID) (database.GetCatalogProductRow, error) {
	p, ok := m.products[id]
	if !ok {
		return database.GetCatalogProductRow{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *memStore) ListComboLinesByProduct(ctx context.Context, productID uuid.UUID) ([]database.ProductComboLine, error) {
	return m.combos[productID], nil
}

func (m *memStore) ListTaxesByIDs(ctx context.Context, ids []uuid.UUID) ([]database.Tax, error) {
	var out []database.Tax
	for _, id := range ids {
		if t, ok := m.taxes[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// --- Orders ---

func (m *memStore) GetNextOrderNumber(ctx context.Context) (int32, error) {
	m.orderSeq++
	return m.orderSeq, nil
}

func (m *memStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.SaleOrder, error) {
	call := m.createOrderCall
	m.createOrderCall++
	if call < len(m.createOrderErrs) && m.createOrderErrs[call] != nil {
		return database.SaleOrder{}, m.createOrderErrs[call]
	}
	o := database.SaleOrder{
		ID:              uuid.New(),
		Name:            arg.Name,
		PartnerName:     arg.PartnerName,
		State:           enum.OrderStateDraft,
		ApplyVirtualVat: arg.ApplyVirtualVat,
		Tag:             arg.Tag,
		CreatedBy:       arg.CreatedBy,
	}
	m.orders[o.ID] = o
	return o, nil
}

func (m *memStore) GetOrder(ctx context.Context, id uuid.UUID) (database.SaleOrder, error) {
	o, ok := m.orders[id]
	if !ok {
		return database.SaleOrder{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.SaleOrder, error) {
	return m.GetOrder(ctx, id)
}

func (m *memStore) UpdateOrderState(ctx context.Context, arg database.UpdateOrderStateParams) (database.SaleOrder, error) {
	o := m.orders[arg.ID]
	o.State = arg.State
	m.orders[arg.ID] = o
	return o, nil
}

func (m *memStore) UpdateOrderVirtualVat(ctx context.Context, arg database.UpdateOrderVirtualVatParams) (database.SaleOrder, error) {
	o := m.orders[arg.ID]
	o.ApplyVirtualVat = arg.ApplyVirtualVat
	m.orders[arg.ID] = o
	return o, nil
}

func (m *memStore) ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]database.SaleOrderLine, error) {
	var out []database.SaleOrderLine
	for _, l := range m.lines {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (m *memStore) CreateOrderLine(ctx context.Context, arg database.CreateOrderLineParams) (database.SaleOrderLine, error) {
	l := database.SaleOrderLine{
		ID:           arg.ID,
		OrderID:      arg.OrderID,
		ParentLineID: arg.ParentLineID,
		Sequence:     arg.Sequence,
		ProductID:    arg.ProductID,
		Name:         arg.Name,
		Quantity:     arg.Quantity,
		Uom:          arg.Uom,
		PriceUnit:    arg.PriceUnit,
		TaxIds:       arg.TaxIds,
		DisplayType:  arg.DisplayType,
		IsComboChild: arg.IsComboChild,
		SkipMovement: arg.SkipMovement,
		NeedsReview:  arg.NeedsReview,
		QtyInvoiced:  makeNumeric("0"),
	}
	m.lines = append(m.lines, l)
	return l, nil
}

func (m *memStore) UpdateOrderLine(ctx context.Context, arg database.UpdateOrderLineParams) (database.SaleOrderLine, error) {
	for i, l := range m.lines {
		if l.ID != arg.ID {
			continue
		}
		l.Sequence = arg.Sequence
		l.ProductID = arg.ProductID
		l.Name = arg.Name
		l.Quantity = arg.Quantity
		l.Uom = arg.Uom
		l.PriceUnit = arg.PriceUnit
		l.TaxIds = arg.TaxIds
		l.NeedsReview = arg.NeedsReview
		m.lines[i] = l
		return l, nil
	}
	return database.SaleOrderLine{}, pgx.ErrNoRows
}

// DeleteOrderLine emulates the parent_line_id ON DELETE CASCADE.
func (m *memStore) DeleteOrderLine(ctx context.Context, arg database.DeleteOrderLineParams) (int64, error) {
	doomed := map[uuid.UUID]bool{}
	for _, l := range m.lines {
		if l.ID == arg.ID && l.OrderID == arg.OrderID {
			doomed[l.ID] = true
		}
	}
	if len(doomed) == 0 {
		return 0, nil
	}
	for grew := true; grew; {
		grew = false
		for _, l := range m.lines {
			if l.ParentLineID.Valid && doomed[uuid.UUID(l.ParentLineID.Bytes)] && !doomed[l.ID] {
				doomed[l.ID] = true
				grew = true
			}
		}
	}
	m.lines = slices.DeleteFunc(m.lines, func(l database.SaleOrderLine) bool { return doomed[l.ID] })
	return 1, nil
}

func (m *memStore) AddLineQtyInvoiced(ctx context.Context, arg database.AddLineQtyInvoicedParams) error {
	for i, l := range m.lines {
		if l.ID == arg.ID {
			q := numericToDecimal(l.QtyInvoiced).Add(numericToDecimal(arg.Delta))
			m.lines[i].QtyInvoiced = decimalToNumeric(decimal.Max(q, decimal.Zero))
		}
	}
	return nil
}

func (m *memStore) CreateStockMove(ctx context.Context, arg database.CreateStockMoveParams) (database.StockMove, error) {
	mv := database.StockMove{
		ID:         uuid.New(),
		OrderID:    arg.OrderID,
		SaleLineID: arg.SaleLineID,
		ProductID:  arg.ProductID,
		Quantity:   arg.Quantity,
		Uom:        arg.Uom,
		State:      enum.StockMoveStateWaiting,
	}
	m.moves = append(m.moves, mv)
	return mv, nil
}

// --- Virtual lines ---

func (m *memStore) ListVirtualLines(ctx context.Context, orderID uuid.UUID) ([]database.SaleOrderVirtualLine, error) {
	var out []database.SaleOrderVirtualLine
	for _, vl := range m.virtual {
		if vl.OrderID == orderID {
			out = append(out, vl)
		}
	}
	return out, nil
}

func (m *memStore) DeleteVirtualLinesByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	before := len(m.virtual)
	m.virtual = slices.DeleteFunc(m.virtual, func(vl database.SaleOrderVirtualLine) bool { return vl.OrderID == orderID })
	return int64(before - len(m.virtual)), nil
}

func (m *memStore) CreateVirtualLine(ctx context.Context, arg database.CreateVirtualLineParams) (database.SaleOrderVirtualLine, error) {
	vl := database.SaleOrderVirtualLine{
		ID:           arg.ID,
		OrderID:      arg.OrderID,
		SourceLineID: arg.SourceLineID,
		Sequence:     arg.Sequence,
		ProductID:    arg.ProductID,
		Name:         arg.Name,
		Quantity:     arg.Quantity,
		Uom:          arg.Uom,
		PriceUnit:    arg.PriceUnit,
		TaxIds:       arg.TaxIds,
	}
	m.virtual = append(m.virtual, vl)
	return vl, nil
}

func (m *memStore) UpdateVirtualLine(ctx context.Context, arg database.UpdateVirtualLineParams) (database.SaleOrderVirtualLine, error) {
	for i, vl := range m.virtual {
		if vl.ID == arg.ID && vl.OrderID == arg.OrderID {
			vl.Name = arg.Name
			vl.Quantity = arg.Quantity
			vl.PriceUnit = arg.PriceUnit
			vl.TaxIds = arg.TaxIds
			m.virtual[i] = vl
			return vl, nil
		}
	}
	return database.SaleOrderVirtualLine{}, pgx.ErrNoRows
}

// --- Invoices ---

func (m *memStore) GetNextInvoiceNumber(ctx context.Context) (int32, error) {
	m.invoiceSeq++
	return m.invoiceSeq, nil
}

func (m *memStore) CreateInvoice(ctx context.Context, arg database.CreateInvoiceParams) (database.Invoice, error) {
	inv := database.Invoice{
		ID:          uuid.New(),
		OrderID:     arg.OrderID,
		Name:        arg.Name,
		PartnerName: arg.PartnerName,
		State:       enum.InvoiceStateDraft,
	}
	m.invoices = append(m.invoices, inv)
	return inv, nil
}

func (m *memStore) GetInvoice(ctx context.Context, id uuid.UUID) (database.Invoice, error) {
	for _, inv := range m.invoices {
		if inv.ID == id {
			return inv, nil
		}
	}
	return database.Invoice{}, pgx.ErrNoRows
}

func (m *memStore) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (database.Invoice, error) {
	return m.GetInvoice(ctx, id)
}

func (m *memStore) ListInvoicesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Invoice, error) {
	var out []database.Invoice
	for _, inv := range m.invoices {
		if inv.OrderID == orderID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *memStore) setInvoice(inv database.Invoice) database.Invoice {
	for i := range m.invoices {
		if m.invoices[i].ID == inv.ID {
			m.invoices[i] = inv
		}
	}
	return inv
}

func (m *memStore) UpdateInvoiceTotals(ctx context.Context, arg database.UpdateInvoiceTotalsParams) (database.Invoice, error) {
	inv, err := m.GetInvoice(ctx, arg.ID)
	if err != nil {
		return inv, err
	}
	inv.AmountUntaxed = arg.AmountUntaxed
	inv.AmountTax = arg.AmountTax
	inv.AmountTotal = arg.AmountTotal
	return m.setInvoice(inv), nil
}

func (m *memStore) UpdateInvoiceState(ctx context.Context, arg database.UpdateInvoiceStateParams) (database.Invoice, error) {
	inv, err := m.GetInvoice(ctx, arg.ID)
	if err != nil {
		return inv, err
	}
	inv.State = arg.State
	return m.setInvoice(inv), nil
}

func (m *memStore) CreateInvoiceLine(ctx context.Context, arg database.CreateInvoiceLineParams) (database.InvoiceLine, error) {
	l := database.InvoiceLine{
		ID:           uuid.New(),
		InvoiceID:    arg.InvoiceID,
		SaleLineID:   arg.SaleLineID,
		Sequence:     arg.Sequence,
		ProductID:    arg.ProductID,
		Name:         arg.Name,
		Quantity:     arg.Quantity,
		Uom:          arg.Uom,
		PriceUnit:    arg.PriceUnit,
		TaxIds:       arg.TaxIds,
		Account:      arg.Account,
		IsComboChild: arg.IsComboChild,
	}
	m.invoiceLines = append(m.invoiceLines, l)
	return l, nil
}

func (m *memStore) ListInvoiceLines(ctx context.Context, invoiceID uuid.UUID) ([]database.InvoiceLine, error) {
	var out []database.InvoiceLine
	for _, l := range m.invoiceLines {
		if l.InvoiceID == invoiceID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) DeleteInvoiceLinesByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	before := len(m.invoiceLines)
	m.invoiceLines = slices.DeleteFunc(m.invoiceLines, func(l database.InvoiceLine) bool { return l.InvoiceID == invoiceID })
	return int64(before - len(m.invoiceLines)), nil
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// newTestOrderService creates an OrderService backed by store.
func newTestOrderService(store *memStore) (*OrderService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) OrderStore { return store }
	return NewOrderService(pool, newStore, StockMoveTrigger{}, zap.NewNop()), tx
}

// newTestInvoiceService creates an InvoiceService backed by store.
func newTestInvoiceService(store *memStore) *InvoiceService {
	pool := &mockTxBeginner{tx: &mockTx{}}
	newStore := func(db database.DBTX) InvoiceStore { return store }
	return NewInvoiceService(pool, newStore, nil, zap.NewNop())
}

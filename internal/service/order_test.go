package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ups-sales/api/internal/database"
	"github.com/ups-sales/api/internal/enum"
	"github.com/ups-sales/api/internal/sales"
	"go.uber.org/zap"
)

// comboFixture is a store with combo P (price 100) = 5 × C.
func comboFixture() (store *memStore, comboID, componentID uuid.UUID) {
	store = newMemStore()
	componentID = store.addProduct("C", "0")
	comboID = store.addCombo("P", "100", map[uuid.UUID]string{componentID: "5"})
	return store, comboID, componentID
}

func createComboOrder(t *testing.T, svc *OrderService, comboID uuid.UUID, qty string) *OrderResult {
	t.Helper()
	result, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		PartnerName: "Acme",
		Lines: []AddLineRequest{
			{ProductID: comboID, Quantity: decimal.RequireFromString(qty)},
		},
	})
	require.NoError(t, err)
	return result
}

func TestCreateOrder_ExpandsComboLines(t *testing.T) {
	store, comboID, componentID := comboFixture()
	svc, tx := newTestOrderService(store)

	result := createComboOrder(t, svc, comboID, "1")

	assert.Equal(t, "SO00001", result.Order.Name)
	assert.Equal(t, 1, tx.commits)

	lines := store.orderLines(result.Order.ID)
	require.Len(t, lines, 2)
	parent, child := lines[0], lines[1]
	assert.False(t, parent.IsComboChild)
	assert.True(t, numericEquals(parent.PriceUnit, "100"))
	assert.True(t, child.IsComboChild)
	assert.Equal(t, componentID, uuid.UUID(child.ProductID.Bytes))
	assert.Equal(t, parent.ID, uuid.UUID(child.ParentLineID.Bytes))
	assert.Equal(t, "  ↳ C", child.Name)
	assert.True(t, numericEquals(child.Quantity, "5"))
	assert.True(t, numericEquals(child.PriceUnit, "0"))
	assert.Equal(t, parent.Sequence+1, child.Sequence)

	assert.True(t, result.Amounts.Untaxed.Equal(decimal.NewFromInt(100)))
}

func TestCreateOrder_AppliesProductTaxes(t *testing.T) {
	store := newMemStore()
	vat := store.addTax("VAT 10%", "10")
	pid := store.addProduct("Widget", "50")
	p := store.products[pid]
	p.TaxIds = []uuid.UUID{vat}
	store.products[pid] = p

	svc, _ := newTestOrderService(store)
	result, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		Lines: []AddLineRequest{{ProductID: pid, Quantity: decimal.NewFromInt(2)}},
	})
	require.NoError(t, err)

	assert.True(t, result.Amounts.Untaxed.Equal(decimal.NewFromInt(100)))
	assert.True(t, result.Amounts.Tax.Equal(decimal.NewFromInt(10)))
	assert.True(t, result.Amounts.Total.Equal(decimal.NewFromInt(110)))
}

func TestCreateOrder_RetriesOnNameConflict(t *testing.T) {
	store, comboID, _ := comboFixture()
	store.createOrderErrs = []error{
		&pgconn.PgError{Code: "23505", ConstraintName: "sale_orders_name_key"},
	}
	svc, _ := newTestOrderService(store)

	result := createComboOrder(t, svc, comboID, "1")

	assert.Equal(t, 2, store.createOrderCall)
	assert.Equal(t, "SO00002", result.Order.Name)
}

func TestCreateOrder_OtherErrorsNotRetried(t *testing.T) {
	store, comboID, _ := comboFixture()
	boom := errors.New("connection reset")
	store.createOrderErrs = []error{boom}
	svc, _ := newTestOrderService(store)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		Lines: []AddLineRequest{{ProductID: comboID, Quantity: decimal.NewFromInt(1)}},
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, store.createOrderCall)
}

func TestCreateOrder_BeginError(t *testing.T) {
	pool := &mockTxBeginner{err: errors.New("pool closed")}
	svc := NewOrderService(pool, func(db database.DBTX) OrderStore { return newMemStore() }, StockMoveTrigger{}, zap.NewNop())

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{})
	assert.ErrorContains(t, err, "begin tx")
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	svc, _ := newTestOrderService(newMemStore())
	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		Lines: []AddLineRequest{{ProductID: uuid.New(), Quantity: decimal.NewFromInt(1)}},
	})
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.ErrorContains(t, err, "line[0]")
}

func TestAddLine_SectionLine(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestOrderService(store)
	order, err := svc.CreateOrder(context.Background(), CreateOrderRequest{})
	require.NoError(t, err)

	_, err = svc.AddLine(context.Background(), order.Order.ID, AddLineRequest{DisplayType: enum.DisplayTypeSection})
	assert.ErrorIs(t, err, ErrNameRequired)

	_, err = svc.AddLine(context.Background(), order.Order.ID, AddLineRequest{DisplayType: enum.DisplayTypeSection, Name: "Hardware"})
	require.NoError(t, err)
	lines := store.orderLines(order.Order.ID)
	require.Len(t, lines, 1)
	assert.Equal(t, enum.DisplayTypeSection, lines[0].DisplayType.String)
	assert.False(t, lines[0].ProductID.Valid)
}

func TestUpdateLineQuantity_SyncsComponents(t *testing.T) {
	store, comboID, _ := comboFixture()
	svc, _ := newTestOrderService(store)
	order := createComboOrder(t, svc, comboID, "1")
	parentID := store.orderLines(order.Order.ID)[0].ID

	_, err := svc.UpdateLineQuantity(context.Background(), order.Order.ID, parentID, decimal.NewFromInt(3))
	require.NoError(t, err)

	lines := store.orderLines(order.Order.ID)
	assert.True(t, numericEquals(lines[0].Quantity, "3"))
	assert.True(t, numericEquals(lines[1].Quantity, "15"))
	assert.False(t, lines[1].NeedsReview)
}

func TestUpdateLineQuantity_FlagsChildRemovedFromCombo(t *testing.T) {
	store, comboID, _ := comboFixture()
	svc, _ := newTestOrderService(store)
	order := createComboOrder(t, svc, comboID, "2")

	// The combo definition changes after the order was expanded.
	store.combos[comboID] = nil

	parentID := store.orderLines(order.Order.ID)[0].ID
	_, err := svc.UpdateLineQuantity(context.Background(), order.Order.ID, parentID, decimal.NewFromInt(4))
	require.NoError(t, err)

	child := store.orderLines(order.Order.ID)[1]
	assert.True(t, child.NeedsReview)
	assert.True(t, numericEquals(child.Quantity, "10"), "unmatched child keeps its quantity")
}

func TestUpdateLineQuantity_NegativeRejected(t *testing.T) {
	store, comboID, _ := comboFixture()
	svc, _ := newTestOrderService(store)
	order := createComboOrder(t, svc, comboID, "1")
	parentID := store.orderLines(order.Order.ID)[0].ID

	_, err := svc.UpdateLineQuantity(context.Background(), order.Order.ID, parentID, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, sales.ErrValidation)
	assert.ErrorIs(t, err, sales.ErrInvalidQuantity)
}

func TestChangeLineProduct_RebuildsComponents(t *testing.T) {
	store, comboID, _ := comboFixture()
	d := store.addProduct("D", "0")
	other := store.addCombo("Q", "70", map[uuid.UUID]string{d: "2"})
	svc, _ := newTestOrderService(store)
	order := createComboOrder(t, svc, comboID, "3")
	parentID := store.orderLines(order.Order.ID)[0].ID

	_, err := svc.ChangeLineProduct(context.Background(), order.Order.ID, parentID, other)
	require.NoError(t, err)

	lines := store.orderLines(order.Order.ID)
	require.Len(t, lines, 2)
	assert.Equal(t, "Q", lines[0].Name)
	assert.True(t, numericEquals(lines[0].PriceUnit, "70"))
	assert.Equal(t, d, uuid.UUID(lines[1].ProductID.Bytes))
	assert.True(t, numericEquals(lines[1].Quantity, "6"))
}

func TestDeleteLine_ComponentRejected(t *testing.T) {
	store, comboID, _ := comboFixture()
	svc, _ := newTestOrderService(store)
	order := createComboOrder(t, svc, comboID, "1")
	child := store.orderLines(order.Order.ID)[1]

	_, err := svc.DeleteLine(context.Background(), order.Order.ID, child.ID)

	var compErr *sales.CompositionError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, child.ID, compErr.LineID)
	assert.Len(t, store.orderLines(order.Order.ID), 2)
}

func TestDeleteLine_ParentCascades(t *testing.T) {
	store, comboID, _ := comboFixture()
	svc, _ := newTestOrderService(store)
	order := createComboOrder(t, svc, comboID, "1")
	parentID := store.orderLines(order.Order.ID)[0].ID

	result, err := svc.DeleteLine(context.Background(), order.Order.ID, parentID)
	require.NoError(t, err)

	assert.Empty(t, store.orderLines(order.Order.ID))
	assert.Empty(t, result.Aggregate.Lines())
}

func TestAddComponents_ManualWizard(t *testing.T) {
	store := newMemStore()
	bundle := store.addProduct("Bundle", "300")
	a := store.addProduct("A", "40")
	b := store.addProduct("B", "60")
	svc, _ := newTestOrderService(store)
	order, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		Lines: []AddLineRequest{{ProductID: bundle, Quantity: decimal.NewFromInt(1)}},
	})
	require.NoError(t, err)
	parentID := store.orderLines(order.Order.ID)[0].ID

	_, err = svc.AddComponents(context.Background(), order.Order.ID, parentID, []ComponentRequest{
		{ProductID: a, Quantity: decimal.NewFromInt(2)},
		{ProductID: b, Quantity: decimal.NewFromInt(1)},
	})
	require.NoError(t, err)

	lines := store.orderLines(order.Order.ID)
	require.Len(t, lines, 3)
	for _, l := range lines[1:] {
		assert.True(t, l.IsComboChild)
		assert.True(t, numericEquals(l.PriceUnit, "0"))
		assert.Empty(t, l.TaxIds)
	}
	assert.Equal(t, "  ↳ A", lines[1].Name)
	assert.Equal(t, "  ↳ B", lines[2].Name)
}

func TestAddComponents_ShiftsFollowingLines(t *testing.T) {
	store := newMemStore()
	bundle := store.addProduct("Bundle", "300")
	cable := store.addProduct("Cable", "5")
	svc, _ := newTestOrderService(store)
	order, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		Lines: []AddLineRequest{
			{ProductID: bundle, Quantity: decimal.NewFromInt(1)},
			{ProductID: cable, Quantity: decimal.NewFromInt(1)},
		},
	})
	require.NoError(t, err)
	parentID := store.orderLines(order.Order.ID)[0].ID

	comps := make([]ComponentRequest, 12)
	for i := range comps {
		comps[i] = ComponentRequest{ProductID: store.addProduct(fmt.Sprintf("Part %02d", i), "0"), Quantity: decimal.NewFromInt(1)}
	}
	_, err = svc.AddComponents(context.Background(), order.Order.ID, parentID, comps)
	require.NoError(t, err)

	lines := store.orderLines(order.Order.ID)
	require.Len(t, lines, 14)
	assert.Equal(t, "Bundle", lines[0].Name)
	assert.Equal(t, "  ↳ Part 11", lines[12].Name)
	assert.Equal(t, "Cable", lines[13].Name)
	assert.Greater(t, lines[13].Sequence, lines[12].Sequence)
}

func TestCreateOrder_NestedComboKeepsTreeOrder(t *testing.T) {
	store := newMemStore()
	bun := store.addProduct("Bun", "0")
	patty := store.addProduct("Patty", "0")
	burger := store.addCombo("Burger", "5", map[uuid.UUID]string{bun: "1", patty: "1"})
	drink := store.addProduct("Drink", "0")
	meal := store.addCombo("Meal", "9", map[uuid.UUID]string{burger: "1", drink: "1"})
	svc, _ := newTestOrderService(store)

	order, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		Lines: []AddLineRequest{{ProductID: meal, Quantity: decimal.NewFromInt(1)}},
	})
	require.NoError(t, err)

	var names []string
	seen := map[int32]bool{}
	for _, l := range store.orderLines(order.Order.ID) {
		names = append(names, l.Name)
		assert.False(t, seen[l.Sequence], "sequence %d used twice", l.Sequence)
		seen[l.Sequence] = true
	}
	assert.Equal(t, []string{"Meal", "  ↳ Burger", "  ↳ Bun", "  ↳ Patty", "  ↳ Drink"}, names)
}

func TestConfirmOrder_MovesComponentsOnly(t *testing.T) {
	store, comboID, componentID := comboFixture()
	svc, _ := newTestOrderService(store)
	order := createComboOrder(t, svc, comboID, "1")

	result, err := svc.ConfirmOrder(context.Background(), order.Order.ID)
	require.NoError(t, err)

	assert.Equal(t, enum.OrderStateSale, result.Order.State)
	assert.Equal(t, sales.InvoiceStatusToInvoice, result.InvoiceStatus)
	require.Len(t, store.moves, 1)
	assert.Equal(t, componentID, store.moves[0].ProductID)
	assert.True(t, numericEquals(store.moves[0].Quantity, "5"))
}

func TestEdit_ConfirmedOrderLocked(t *testing.T) {
	store, comboID, _ := comboFixture()
	svc, _ := newTestOrderService(store)
	order := createComboOrder(t, svc, comboID, "1")
	_, err := svc.ConfirmOrder(context.Background(), order.Order.ID)
	require.NoError(t, err)

	_, err = svc.AddLine(context.Background(), order.Order.ID, AddLineRequest{ProductID: comboID, Quantity: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, sales.ErrValidation)
	assert.ErrorIs(t, err, ErrOrderLocked)

	_, err = svc.ConfirmOrder(context.Background(), order.Order.ID)
	assert.ErrorIs(t, err, ErrOrderLocked)
}

func TestCancelOrder(t *testing.T) {
	store, comboID, _ := comboFixture()
	svc, _ := newTestOrderService(store)
	order := createComboOrder(t, svc, comboID, "1")

	result, err := svc.CancelOrder(context.Background(), order.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStateCancel, result.Order.State)

	_, err = svc.CancelOrder(context.Background(), order.Order.ID)
	assert.ErrorIs(t, err, ErrInvalidOrderMove)
}

func TestGetOrder_NotFound(t *testing.T) {
	svc, _ := newTestOrderService(newMemStore())
	_, err := svc.GetOrder(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

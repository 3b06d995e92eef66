package sales

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ups-sales/api/internal/enum"
)

func TestChooseInvoiceStrategy(t *testing.T) {
	o := draftOrder()
	assert.Equal(t, StrategyStandard, ChooseInvoiceStrategy(o))
	o.ApplyVirtualVAT = true
	assert.Equal(t, StrategyVirtualSubstitution, ChooseInvoiceStrategy(o))
	assert.Equal(t, "virtual_substitution", StrategyVirtualSubstitution.String())
}

// Composite P (qty 1, price 100) with component C (qty 5): fulfillment moves
// only C, and the standard invoice carries both lines for 100 untaxed.
func TestComboOrder_EndToEnd(t *testing.T) {
	ctx := context.Background()
	cat := newMemCatalog()
	c := cat.add("C", "0")
	p := cat.addCombo("P", "100", entry(c, "5"))

	o := draftOrder()
	parent := mustAdd(o, Line{Sequence: 10, ProductID: p.ID, Name: "P", Quantity: dec("1"), PriceUnit: dec("100")})
	_, err := Expand(ctx, cat, o, parent.ID)
	require.NoError(t, err)
	o.State = enum.OrderStateSale

	moves := SelectForFulfillment(o)
	require.Len(t, moves, 1)
	assert.Equal(t, c.ID, moves[0].ProductID)
	assert.True(t, moves[0].Quantity.Equal(dec("5")))

	assert.Equal(t, StrategyStandard, ChooseInvoiceStrategy(o))
	lines := ProjectStandard(o)
	require.Len(t, lines, 2)
	assert.Equal(t, parent.ID, lines[0].SaleLineID)
	assert.False(t, lines[0].IsComboChild)
	assert.True(t, lines[1].IsComboChild)
	assert.True(t, lines[1].PriceUnit.IsZero())
	assert.Empty(t, lines[1].TaxIDs)

	amounts := InvoiceAmounts(lines, nil)
	assert.True(t, amounts.Untaxed.Equal(dec("100")), "untaxed = %s", amounts.Untaxed)
}

func TestProjectStandard_SkipsFullyInvoicedAndDisplayLines(t *testing.T) {
	o := draftOrder()
	o.State = enum.OrderStateSale
	mustAdd(o, Line{Sequence: 1, Name: "Note", DisplayType: enum.DisplayTypeNote})
	done := mustAdd(o, Line{Sequence: 10, ProductID: uuid.New(), Quantity: dec("2"), QtyInvoiced: dec("2")})
	mustAdd(o, Line{ParentID: done.ID, Sequence: 11, ProductID: uuid.New(), Quantity: dec("4")})
	partial := mustAdd(o, Line{Sequence: 20, ProductID: uuid.New(), Quantity: dec("5"), QtyInvoiced: dec("2"), PriceUnit: dec("10")})

	lines := ProjectStandard(o)

	require.Len(t, lines, 1)
	assert.Equal(t, partial.ID, lines[0].SaleLineID)
	assert.True(t, lines[0].Quantity.Equal(dec("3")))
}

func TestProjectVirtual_SingleLineAndSecondInvoiceFails(t *testing.T) {
	ctx := context.Background()
	cat := newMemCatalog()
	prod := cat.add("Service", "100")

	o := draftOrder()
	o.ApplyVirtualVAT = true
	src := mustAdd(o, Line{Sequence: 10, ProductID: prod.ID, Name: "Service", Quantity: dec("1"), PriceUnit: dec("100")})
	CopyToVirtual(o)
	o.State = enum.OrderStateSale

	require.NoError(t, CheckSingleInvoice(o, nil))
	lines, err := ProjectVirtual(ctx, cat, o)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].PriceUnit.Equal(dec("100")))
	assert.Equal(t, src.ID, lines[0].SaleLineID)
	assert.Equal(t, "511 Sales", lines[0].Account)

	existing := []InvoiceRef{{ID: uuid.New(), Name: "INV/00001", State: enum.InvoiceStateDraft}}
	err = CheckSingleInvoice(o, existing)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrInvoiceExists)
	assert.Contains(t, err.Error(), o.Name)
}

func TestCheckSingleInvoice_CancelledInvoiceDoesNotBlock(t *testing.T) {
	o := draftOrder()
	o.ApplyVirtualVAT = true
	existing := []InvoiceRef{{Name: "INV/00001", State: enum.InvoiceStateCancel}}
	assert.NoError(t, CheckSingleInvoice(o, existing))
}

func TestCheckSingleInvoice_StandardOrdersUnrestricted(t *testing.T) {
	o := draftOrder()
	existing := []InvoiceRef{{Name: "INV/00001", State: enum.InvoiceStatePosted}}
	assert.NoError(t, CheckSingleInvoice(o, existing))
}

func TestProjectVirtual_EmptySetFails(t *testing.T) {
	o := draftOrder()
	o.ApplyVirtualVAT = true
	_, err := ProjectVirtual(context.Background(), newMemCatalog(), o)
	assert.ErrorIs(t, err, ErrNoVirtualLines)
}

func TestProjectVirtual_MissingAccountFails(t *testing.T) {
	cat := newMemCatalog()
	prod := cat.add("Unmapped", "10")
	prod.IncomeAccount = ""
	cat.products[prod.ID] = prod

	o := draftOrder()
	o.VirtualLines = []VirtualLine{{ID: uuid.New(), ProductID: prod.ID, Name: "Unmapped", Quantity: dec("1"), PriceUnit: dec("10")}}

	_, err := ProjectVirtual(context.Background(), cat, o)
	assert.ErrorIs(t, err, ErrMissingIncomeAccount)
	assert.Contains(t, err.Error(), "Unmapped")
}

func TestResolveIncomeAccount(t *testing.T) {
	tests := []struct {
		name    string
		product Product
		want    string
		wantErr bool
	}{
		{"product account wins", Product{IncomeAccount: "511", CategoryIncomeAccount: "512"}, "511", false},
		{"falls back to category", Product{CategoryIncomeAccount: "512"}, "512", false},
		{"none resolvable", Product{Name: "X"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveIncomeAccount(tt.product)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMissingIncomeAccount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

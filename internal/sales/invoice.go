package sales

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ups-sales/api/internal/enum"
)

// Strategy selects how invoice lines are produced for an order.
type Strategy int

const (
	StrategyStandard Strategy = iota
	StrategyVirtualSubstitution
)

func (s Strategy) String() string {
	switch s {
	case StrategyVirtualSubstitution:
		return "virtual_substitution"
	default:
		return "standard"
	}
}

// ChooseInvoiceStrategy picks virtual substitution for orders flagged for
// virtual VAT invoicing.
func ChooseInvoiceStrategy(o *Order) Strategy {
	if o.ApplyVirtualVAT {
		return StrategyVirtualSubstitution
	}
	return StrategyStandard
}

// InvoiceLineValues is everything needed to write one invoice line.
// SaleLineID links back to the order line whose invoiced quantity advances.
type InvoiceLineValues struct {
	SaleLineID   uuid.UUID
	Sequence     int32
	ProductID    uuid.UUID
	Name         string
	Quantity     decimal.Decimal
	UoM          string
	PriceUnit    decimal.Decimal
	TaxIDs       []uuid.UUID
	Account      string
	IsComboChild bool
}

// InvoiceRef is an existing invoice of an order.
type InvoiceRef struct {
	ID    uuid.UUID
	Name  string
	State string
}

// ProjectStandard returns the invoice lines of the standard path: every
// non-display line with quantity left to invoice, followed in place by its
// components at zero price so the invoice mirrors the order.
func ProjectStandard(o *Order) []InvoiceLineValues {
	included := make(map[uuid.UUID]decimal.Decimal)
	for _, l := range o.lines {
		if q := QtyToInvoice(o, l); q.IsPositive() {
			included[l.ID] = q
		}
	}

	var out []InvoiceLineValues
	for _, l := range o.Lines() {
		if l.IsDisplay() {
			continue
		}
		qty, ok := included[l.ID]
		if l.IsComponent() {
			root := o.Root(l.ID)
			if root == nil {
				continue
			}
			if _, rootIncluded := included[root.ID]; !rootIncluded {
				continue
			}
			qty = l.Quantity.Sub(l.QtyInvoiced)
			ok = qty.IsPositive()
		}
		if !ok {
			continue
		}
		out = append(out, InvoiceLineValues{
			SaleLineID:   l.ID,
			Sequence:     l.Sequence,
			ProductID:    l.ProductID,
			Name:         l.Name,
			Quantity:     qty,
			UoM:          l.UoM,
			PriceUnit:    l.PriceUnit,
			TaxIDs:       slices.Clone(l.TaxIDs),
			IsComboChild: l.IsComponent(),
		})
	}
	return out
}

// ProjectVirtual maps each virtual line to one invoice line with a resolved
// income account. Any line whose account cannot be resolved fails the whole
// order.
func ProjectVirtual(ctx context.Context, cat Catalog, o *Order) ([]InvoiceLineValues, error) {
	if len(o.VirtualLines) == 0 {
		return nil, invalid(ErrNoVirtualLines, "order %s has no virtual lines to invoice; copy lines to the virtual set first", o.Name)
	}

	virtual := slices.Clone(o.VirtualLines)
	sort.SliceStable(virtual, func(i, j int) bool { return virtual[i].Sequence < virtual[j].Sequence })

	out := make([]InvoiceLineValues, 0, len(virtual))
	for i, vl := range virtual {
		if vl.ProductID == uuid.Nil {
			return nil, invalid(ErrMissingIncomeAccount, "virtual line %q has no product to take an income account from", vl.Name)
		}
		product, err := cat.Product(ctx, vl.ProductID)
		if err != nil {
			return nil, fmt.Errorf("virtual line[%d]: get product %s: %w", i, vl.ProductID, err)
		}
		account, err := ResolveIncomeAccount(product)
		if err != nil {
			return nil, err
		}

		isChild := false
		if src, ok := o.Line(vl.SourceLineID); ok {
			isChild = src.IsComponent()
		}
		out = append(out, InvoiceLineValues{
			SaleLineID:   vl.SourceLineID,
			Sequence:     vl.Sequence,
			ProductID:    vl.ProductID,
			Name:         vl.Name,
			Quantity:     vl.Quantity,
			UoM:          vl.UoM,
			PriceUnit:    vl.PriceUnit,
			TaxIDs:       slices.Clone(vl.TaxIDs),
			Account:      account,
			IsComboChild: isChild,
		})
	}
	return out, nil
}

// ResolveIncomeAccount returns the product's income account, else its
// category's default.
func ResolveIncomeAccount(p Product) (string, error) {
	if p.IncomeAccount != "" {
		return p.IncomeAccount, nil
	}
	if p.CategoryIncomeAccount != "" {
		return p.CategoryIncomeAccount, nil
	}
	return "", invalid(ErrMissingIncomeAccount, "please define an income account for product %q", p.Name)
}

// CheckSingleInvoice enforces at most one non-cancelled invoice for orders
// invoiced through virtual lines.
func CheckSingleInvoice(o *Order, existing []InvoiceRef) error {
	if !o.ApplyVirtualVAT {
		return nil
	}
	for _, inv := range existing {
		if inv.State != enum.InvoiceStateCancel {
			return invalid(ErrInvoiceExists, "only one invoice per order is allowed; order %s already has invoice %s", o.Name, inv.Name)
		}
	}
	return nil
}

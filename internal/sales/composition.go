package sales

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const componentPrefix = "  ↳ "

// ComponentName is the indented description a component line displays.
func ComponentName(p Product) string {
	if p.DescriptionSale != "" {
		return componentPrefix + p.DescriptionSale
	}
	return componentPrefix + p.Name
}

// Expand creates one component line per combo entry of the line's product.
// It is a no-op for lines that already have children and for products that
// are not composite.
func Expand(ctx context.Context, cat Catalog, o *Order, lineID uuid.UUID) ([]*Line, error) {
	line, ok := o.Line(lineID)
	if !ok {
		return nil, invalid(ErrLineNotFound, "line %s not found in order %s", lineID, o.Name)
	}
	if line.IsDisplay() || line.ProductID == uuid.Nil || o.HasChildren(lineID) {
		return nil, nil
	}

	product, err := cat.Product(ctx, line.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", line.ProductID, err)
	}
	if !product.IsCombo {
		return nil, nil
	}
	entries, err := cat.ComboEntries(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("list combo entries of %s: %w", product.ID, err)
	}

	first := o.ReserveSequences(line.ID, len(entries))
	added := make([]*Line, 0, len(entries))
	for i, entry := range entries {
		component, err := cat.Product(ctx, entry.ComponentID)
		if err != nil {
			return nil, fmt.Errorf("combo entry[%d]: get component %s: %w", i, entry.ComponentID, err)
		}
		uom := entry.UoM
		if uom == "" {
			uom = component.UoM
		}
		child, err := o.AddLine(Line{
			ParentID:  line.ID,
			Sequence:  first + int32(i),
			ProductID: component.ID,
			Name:      ComponentName(component),
			Quantity:  line.Quantity.Mul(entry.Quantity),
			UoM:       uom,
			PriceUnit: decimal.Zero,
		})
		if err != nil {
			return nil, fmt.Errorf("combo entry[%d]: %w", i, err)
		}
		added = append(added, child)
	}
	return added, nil
}

// ExpandCascade expands the line and then every generated component whose
// product is itself composite. A combo definition that reaches its own
// product again is rejected.
func ExpandCascade(ctx context.Context, cat Catalog, o *Order, lineID uuid.UUID) ([]*Line, error) {
	return expandTree(ctx, cat, o, lineID, map[uuid.UUID]bool{})
}

func expandTree(ctx context.Context, cat Catalog, o *Order, lineID uuid.UUID, path map[uuid.UUID]bool) ([]*Line, error) {
	line, ok := o.Line(lineID)
	if !ok {
		return nil, invalid(ErrLineNotFound, "line %s not found in order %s", lineID, o.Name)
	}
	if path[line.ProductID] {
		return nil, invalid(ErrComboCycle, "combo definition of product %s contains itself", line.ProductID)
	}

	added, err := Expand(ctx, cat, o, lineID)
	if err != nil || len(added) == 0 {
		return added, err
	}

	next := make(map[uuid.UUID]bool, len(path)+1)
	for id := range path {
		next[id] = true
	}
	next[line.ProductID] = true

	all := added
	for _, child := range added {
		sub, err := expandTree(ctx, cat, o, child.ID, next)
		if err != nil {
			return nil, err
		}
		all = append(all, sub...)
	}
	return all, nil
}

// SyncResult lists the lines a quantity sync touched.
type SyncResult struct {
	Updated []uuid.UUID
	Flagged []uuid.UUID
}

// SyncQuantity sets a line's quantity and recomputes each child from its
// combo entry: child = qty × entry multiplier. Children whose product no
// longer matches an entry keep their quantity and are flagged for review.
func SyncQuantity(ctx context.Context, cat Catalog, o *Order, lineID uuid.UUID, qty decimal.Decimal) (SyncResult, error) {
	if qty.IsNegative() {
		return SyncResult{}, invalid(ErrInvalidQuantity, "quantity must be >= 0, got %s", qty)
	}
	line, ok := o.Line(lineID)
	if !ok {
		return SyncResult{}, invalid(ErrLineNotFound, "line %s not found in order %s", lineID, o.Name)
	}

	line.Quantity = qty
	res := SyncResult{Updated: []uuid.UUID{line.ID}}

	children := o.Children(line.ID)
	if len(children) == 0 {
		return res, nil
	}

	entries, err := cat.ComboEntries(ctx, line.ProductID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("list combo entries of %s: %w", line.ProductID, err)
	}
	// Duplicate components in one definition are matched in entry order.
	multipliers := make(map[uuid.UUID][]decimal.Decimal, len(entries))
	for _, e := range entries {
		multipliers[e.ComponentID] = append(multipliers[e.ComponentID], e.Quantity)
	}

	for _, child := range children {
		mults := multipliers[child.ProductID]
		if len(mults) == 0 {
			child.NeedsReview = true
			res.Flagged = append(res.Flagged, child.ID)
			continue
		}
		multipliers[child.ProductID] = mults[1:]
		child.NeedsReview = false

		sub, err := SyncQuantity(ctx, cat, o, child.ID, qty.Mul(mults[0]))
		if err != nil {
			return SyncResult{}, err
		}
		res.Updated = append(res.Updated, sub.Updated...)
		res.Flagged = append(res.Flagged, sub.Flagged...)
	}
	return res, nil
}

// ChangeResult lists what a product change removed and created.
type ChangeResult struct {
	Removed []uuid.UUID
	Added   []*Line
}

// ChangeProduct swaps the line's product, drops all of its components and
// expands again from the new product's combo definition.
func ChangeProduct(ctx context.Context, cat Catalog, o *Order, lineID, productID uuid.UUID) (ChangeResult, error) {
	line, ok := o.Line(lineID)
	if !ok {
		return ChangeResult{}, invalid(ErrLineNotFound, "line %s not found in order %s", lineID, o.Name)
	}
	if line.IsDisplay() {
		return ChangeResult{}, invalid(ErrDisplayLine, "cannot set a product on a %s line", line.DisplayType)
	}

	product, err := cat.Product(ctx, productID)
	if err != nil {
		return ChangeResult{}, fmt.Errorf("get product %s: %w", productID, err)
	}

	var res ChangeResult
	for _, child := range o.Children(line.ID) {
		res.Removed = append(res.Removed, o.removeSubtree(child.ID)...)
	}

	line.ProductID = product.ID
	line.UoM = product.UoM
	if line.IsComponent() {
		line.Name = ComponentName(product)
	} else {
		line.Name = product.Name
		line.PriceUnit = product.ListPrice
		line.TaxIDs = product.TaxIDs
	}

	res.Added, err = ExpandCascade(ctx, cat, o, line.ID)
	if err != nil {
		return ChangeResult{}, err
	}
	return res, nil
}

// DeleteLine removes a line together with its components. Components
// themselves cannot be deleted directly.
func DeleteLine(o *Order, lineID uuid.UUID) ([]uuid.UUID, error) {
	line, ok := o.Line(lineID)
	if !ok {
		return nil, invalid(ErrLineNotFound, "line %s not found in order %s", lineID, o.Name)
	}
	if line.IsComponent() {
		return nil, &CompositionError{LineID: line.ID, ParentID: line.ParentID}
	}
	return o.removeSubtree(lineID), nil
}

// QtyToInvoice is the quantity still pending invoice. Components always
// report zero; they are billed through their parent's price.
func QtyToInvoice(o *Order, l *Line) decimal.Decimal {
	if l.IsComponent() || l.IsDisplay() || !o.Confirmed() {
		return decimal.Zero
	}
	pending := l.Quantity.Sub(l.QtyInvoiced)
	if pending.IsNegative() {
		return decimal.Zero
	}
	return pending
}

// Invoice status values.
const (
	InvoiceStatusNo        = "no"
	InvoiceStatusToInvoice = "to invoice"
	InvoiceStatusInvoiced  = "invoiced"
)

// InvoiceStatus rolls QtyToInvoice up to the order.
func InvoiceStatus(o *Order) string {
	if !o.Confirmed() {
		return InvoiceStatusNo
	}
	billable := 0
	for _, l := range o.lines {
		if l.IsComponent() || l.IsDisplay() || !l.Quantity.IsPositive() {
			continue
		}
		if QtyToInvoice(o, l).IsPositive() {
			return InvoiceStatusToInvoice
		}
		billable++
	}
	if billable == 0 {
		return InvoiceStatusNo
	}
	return InvoiceStatusInvoiced
}

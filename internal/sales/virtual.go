package sales

import (
	"slices"

	"github.com/google/uuid"
)

// CopyToVirtual replaces the order's virtual lines with a fresh copy of
// every non-display, non-component line. The previous set is discarded.
func CopyToVirtual(o *Order) []VirtualLine {
	var out []VirtualLine
	for _, l := range o.Lines() {
		if l.IsDisplay() || l.IsComponent() {
			continue
		}
		out = append(out, VirtualLine{
			ID:           uuid.New(),
			SourceLineID: l.ID,
			Sequence:     l.Sequence,
			ProductID:    l.ProductID,
			Name:         l.Name,
			Quantity:     l.Quantity,
			UoM:          l.UoM,
			PriceUnit:    l.PriceUnit,
			TaxIDs:       slices.Clone(l.TaxIDs),
		})
	}
	o.VirtualLines = out
	return out
}

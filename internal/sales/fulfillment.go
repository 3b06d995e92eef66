package sales

import "github.com/google/uuid"

// SelectForFulfillment returns the lines that should create stock moves.
// Composite lines never move stock themselves; their components do, at their
// own quantities. Lines flagged SkipMovement and display lines are left out.
func SelectForFulfillment(o *Order) []*Line {
	parents := o.parentSet()
	var out []*Line
	for _, l := range o.Lines() {
		if l.IsDisplay() || l.ProductID == uuid.Nil || l.SkipMovement || parents[l.ID] {
			continue
		}
		out = append(out, l)
	}
	return out
}

package sales

import (
	"slices"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ups-sales/api/internal/enum"
)

// Line is one order line. ParentID is uuid.Nil for top-level lines.
type Line struct {
	ID           uuid.UUID
	ParentID     uuid.UUID
	Sequence     int32
	ProductID    uuid.UUID
	Name         string
	Quantity     decimal.Decimal
	UoM          string
	PriceUnit    decimal.Decimal
	TaxIDs       []uuid.UUID
	DisplayType  string
	SkipMovement bool
	NeedsReview  bool
	QtyInvoiced  decimal.Decimal
}

// IsComponent reports whether the line was generated from a parent's combo.
func (l *Line) IsComponent() bool { return l.ParentID != uuid.Nil }

// IsDisplay reports whether the line is a section or note.
func (l *Line) IsDisplay() bool { return l.DisplayType != "" }

// VirtualLine is an invoicing-only shadow of an order line.
type VirtualLine struct {
	ID           uuid.UUID
	SourceLineID uuid.UUID
	Sequence     int32
	ProductID    uuid.UUID
	Name         string
	Quantity     decimal.Decimal
	UoM          string
	PriceUnit    decimal.Decimal
	TaxIDs       []uuid.UUID
}

// Order is the aggregate the engine works on. Lines live in an arena keyed
// by ID; children are found by reverse lookup on ParentID.
type Order struct {
	ID              uuid.UUID
	Name            string
	State           string
	ApplyVirtualVAT bool
	VirtualLines    []VirtualLine

	lines []*Line
	index map[uuid.UUID]*Line
	moved map[uuid.UUID]bool
}

func NewOrder(id uuid.UUID, name, state string, applyVirtualVAT bool) *Order {
	return &Order{
		ID:              id,
		Name:            name,
		State:           state,
		ApplyVirtualVAT: applyVirtualVAT,
		index:           make(map[uuid.UUID]*Line),
	}
}

// Editable reports whether lines may still be changed.
func (o *Order) Editable() bool {
	return o.State == enum.OrderStateDraft || o.State == enum.OrderStateSent
}

// Confirmed reports whether the order has been confirmed and not cancelled.
func (o *Order) Confirmed() bool {
	return o.State == enum.OrderStateSale || o.State == enum.OrderStateDone
}

// AddLine inserts a line into the arena. A nil ID is replaced with a fresh one.
func (o *Order) AddLine(l Line) (*Line, error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if _, dup := o.index[l.ID]; dup {
		return nil, invalid(ErrInvalidParent, "line %s already exists in order %s", l.ID, o.Name)
	}
	if l.ParentID != uuid.Nil {
		parent, ok := o.index[l.ParentID]
		if !ok {
			return nil, invalid(ErrInvalidParent, "parent line %s is not part of order %s", l.ParentID, o.Name)
		}
		if parent.IsDisplay() {
			return nil, invalid(ErrInvalidParent, "section and note lines cannot own components")
		}
	}
	line := l
	o.lines = append(o.lines, &line)
	o.index[line.ID] = &line
	if err := o.checkChain(line.ID); err != nil {
		o.drop(map[uuid.UUID]bool{line.ID: true})
		return nil, err
	}
	return &line, nil
}

// Restore loads persisted lines in any order, then verifies every parent
// reference resolves and no parent chain loops.
func (o *Order) Restore(lines []Line) error {
	for _, l := range lines {
		line := l
		if _, dup := o.index[line.ID]; dup {
			return invalid(ErrInvalidParent, "line %s loaded twice", line.ID)
		}
		o.lines = append(o.lines, &line)
		o.index[line.ID] = &line
	}
	for _, l := range o.lines {
		if l.ParentID != uuid.Nil {
			if _, ok := o.index[l.ParentID]; !ok {
				return invalid(ErrInvalidParent, "line %s references missing parent %s", l.ID, l.ParentID)
			}
		}
		if err := o.checkChain(l.ID); err != nil {
			return err
		}
	}
	return nil
}

// checkChain walks the parent chain of id and fails if it revisits a line.
func (o *Order) checkChain(id uuid.UUID) error {
	seen := map[uuid.UUID]bool{id: true}
	cur := o.index[id]
	for cur.ParentID != uuid.Nil {
		if seen[cur.ParentID] {
			return invalid(ErrInvalidParent, "line %s has a cyclic parent chain", id)
		}
		seen[cur.ParentID] = true
		cur = o.index[cur.ParentID]
		if cur == nil {
			return nil
		}
	}
	return nil
}

// Line returns the line with the given ID.
func (o *Order) Line(id uuid.UUID) (*Line, bool) {
	l, ok := o.index[id]
	return l, ok
}

// Lines returns all lines ordered by sequence, then insertion order.
func (o *Order) Lines() []*Line {
	out := slices.Clone(o.lines)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// Children returns the direct components of a line in sequence order.
func (o *Order) Children(id uuid.UUID) []*Line {
	var out []*Line
	for _, l := range o.lines {
		if l.ParentID == id {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// HasChildren reports whether the line is a composite line.
func (o *Order) HasChildren(id uuid.UUID) bool {
	for _, l := range o.lines {
		if l.ParentID == id {
			return true
		}
	}
	return false
}

// Root returns the top-level ancestor of a line.
func (o *Order) Root(id uuid.UUID) *Line {
	cur := o.index[id]
	for cur != nil && cur.ParentID != uuid.Nil {
		parent := o.index[cur.ParentID]
		if parent == nil {
			break
		}
		cur = parent
	}
	return cur
}

// NextSequence returns a sequence after every existing line, leaving room
// for the components a composite line expands into.
func (o *Order) NextSequence() int32 {
	var last int32
	for _, l := range o.lines {
		if l.Sequence > last {
			last = l.Sequence
		}
	}
	return (last/sequenceStep + 1) * sequenceStep
}

const sequenceStep = 10

// ReserveSequences frees n consecutive sequence numbers directly after the
// subtree of lineID and returns the first one. Lines after the subtree are
// shifted down when the gap is too small; Resequenced reports them.
func (o *Order) ReserveSequences(lineID uuid.UUID, n int) int32 {
	subtree := make(map[uuid.UUID]bool)
	var end int32
	for _, id := range o.subtreeIDs(lineID) {
		subtree[id] = true
		end = max(end, o.index[id].Sequence)
	}
	first := end + 1
	if n <= 0 {
		return first
	}

	next, found := int32(0), false
	for _, l := range o.lines {
		if subtree[l.ID] || l.Sequence <= end {
			continue
		}
		if !found || l.Sequence < next {
			next, found = l.Sequence, true
		}
	}
	limit := first + int32(n)
	if !found || next >= limit {
		return first
	}

	shift := limit - next
	if o.moved == nil {
		o.moved = make(map[uuid.UUID]bool)
	}
	for _, l := range o.lines {
		if !subtree[l.ID] && l.Sequence > end {
			l.Sequence += shift
			o.moved[l.ID] = true
		}
	}
	return first
}

// Resequenced returns the lines whose sequence ReserveSequences changed.
func (o *Order) Resequenced() []*Line {
	var out []*Line
	for _, l := range o.lines {
		if o.moved[l.ID] {
			out = append(out, l)
		}
	}
	return out
}

func (o *Order) parentSet() map[uuid.UUID]bool {
	parents := make(map[uuid.UUID]bool)
	for _, l := range o.lines {
		if l.ParentID != uuid.Nil {
			parents[l.ParentID] = true
		}
	}
	return parents
}

// removeSubtree deletes the line and every descendant. The returned IDs
// list the line first.
func (o *Order) removeSubtree(id uuid.UUID) []uuid.UUID {
	removed := o.subtreeIDs(id)
	doomed := make(map[uuid.UUID]bool, len(removed))
	for _, rid := range removed {
		doomed[rid] = true
	}
	o.drop(doomed)
	return removed
}

// subtreeIDs lists the line and its descendants, breadth first.
func (o *Order) subtreeIDs(id uuid.UUID) []uuid.UUID {
	ids := []uuid.UUID{id}
	seen := map[uuid.UUID]bool{id: true}
	for i := 0; i < len(ids); i++ {
		for _, l := range o.lines {
			if l.ParentID == ids[i] && !seen[l.ID] {
				seen[l.ID] = true
				ids = append(ids, l.ID)
			}
		}
	}
	return ids
}

func (o *Order) drop(ids map[uuid.UUID]bool) {
	kept := o.lines[:0]
	for _, l := range o.lines {
		if ids[l.ID] {
			delete(o.index, l.ID)
			delete(o.moved, l.ID)
			continue
		}
		kept = append(kept, l)
	}
	o.lines = kept
}

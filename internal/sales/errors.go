package sales

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error kinds. ValidationError and CompositionError match these with errors.Is.
var (
	ErrValidation  = errors.New("validation error")
	ErrComposition = errors.New("composition error")
)

// Specific causes carried inside a ValidationError.
var (
	ErrLineNotFound         = errors.New("order line not found")
	ErrInvalidQuantity      = errors.New("quantity must be >= 0")
	ErrInvalidParent        = errors.New("invalid parent line")
	ErrComboCycle           = errors.New("combo definition refers back to itself")
	ErrInvoiceExists        = errors.New("order already has an active invoice")
	ErrMissingIncomeAccount = errors.New("missing income account")
	ErrNoVirtualLines       = errors.New("order has no virtual lines")
	ErrNothingToInvoice     = errors.New("order has no invoiceable lines")
	ErrDisplayLine          = errors.New("section and note lines carry no product")
)

// ValidationError is a business-rule breach. The caller rolls back and does
// not retry.
type ValidationError struct {
	Msg string
	Err error
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(cause error, format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...), Err: cause}
}

// CompositionError reports a direct edit of a component line that must go
// through its parent.
type CompositionError struct {
	LineID   uuid.UUID
	ParentID uuid.UUID
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("line %s is a combo component; delete parent line %s instead", e.LineID, e.ParentID)
}

func (e *CompositionError) Is(target error) bool { return target == ErrComposition }

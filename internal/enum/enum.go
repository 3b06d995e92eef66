package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStateDraft  = "draft"
	OrderStateSent   = "sent"
	OrderStateSale   = "sale"
	OrderStateDone   = "done"
	OrderStateCancel = "cancel"
)

// IsValidOrderState reports whether s is a known order state.
func IsValidOrderState(s string) bool {
	switch s {
	case OrderStateDraft, OrderStateSent, OrderStateSale, OrderStateDone, OrderStateCancel:
		return true
	}
	return false
}

const (
	InvoiceStateDraft  = "draft"
	InvoiceStatePosted = "posted"
	InvoiceStateCancel = "cancel"
)

const (
	AnnouncementStateDraft     = "draft"
	AnnouncementStatePublished = "published"
)

const (
	StockMoveStateWaiting = "waiting"
	StockMoveStateDone    = "done"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleOwner       = "OWNER"
	UserRoleSalesperson = "SALESPERSON"
	UserRoleAccountant  = "ACCOUNTANT"
)

// IsValidRole reports whether role is a known user role.
func IsValidRole(role string) bool {
	switch role {
	case UserRoleOwner, UserRoleSalesperson, UserRoleAccountant:
		return true
	}
	return false
}

const (
	DisplayTypeSection = "line_section"
	DisplayTypeNote    = "line_note"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	ChatEventMessage      = "chat.message"
	OrderEventConfirmed   = "order.confirmed"
	OrderEventCancelled   = "order.cancelled"
	InvoiceEventCreated   = "invoice.created"
	InvoiceEventCancelled = "invoice.cancelled"
)

// OrdersRoom is the websocket room that receives order lifecycle events.
const OrdersRoom = "orders"

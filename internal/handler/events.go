package handler

import (
	"github.com/ups-sales/api/internal/enum"
	"github.com/ups-sales/api/internal/ws"
	"go.uber.org/zap"
)

// Publisher broadcasts events to websocket rooms. Satisfied by *ws.Hub.
type Publisher interface {
	Publish(room string, event ws.Event)
}

type orderEvent struct {
	OrderID   string `json:"order_id"`
	Name      string `json:"name"`
	State     string `json:"state"`
	InvoiceID string `json:"invoice_id,omitempty"`
	Invoice   string `json:"invoice,omitempty"`
}

// publishOrderEvent sends an event to the orders room. A nil publisher is
// a no-op; encoding failures are logged and never fail the request.
func publishOrderEvent(p Publisher, logger *zap.Logger, eventType string, data orderEvent) {
	if p == nil {
		return
	}
	event, err := ws.NewEvent(eventType, data)
	if err != nil {
		logger.Warn("encode order event", zap.String("type", eventType), zap.Error(err))
		return
	}
	p.Publish(enum.OrdersRoom, event)
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ups-sales/api/internal/database"
	"github.com/ups-sales/api/internal/enum"
	"github.com/ups-sales/api/internal/service"
	"go.uber.org/zap"
)

// InvoiceServicer defines the service methods needed by invoice handlers.
// Satisfied by *service.InvoiceService; narrow interface for testability.
type InvoiceServicer interface {
	CreateInvoice(ctx context.Context, orderID uuid.UUID) (*service.InvoiceResult, error)
	ListInvoices(ctx context.Context, orderID uuid.UUID) ([]database.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*service.InvoiceResult, error)
	PostInvoice(ctx context.Context, invoiceID uuid.UUID) (*service.InvoiceResult, error)
	CancelInvoice(ctx context.Context, invoiceID uuid.UUID) (*service.InvoiceResult, error)
	CopyToVirtual(ctx context.Context, orderID uuid.UUID) (*service.VirtualLinesResult, error)
	ListVirtualLines(ctx context.Context, orderID uuid.UUID) (*service.VirtualLinesResult, error)
	UpdateVirtualLine(ctx context.Context, orderID, virtualLineID uuid.UUID, req service.UpdateVirtualLineRequest) (database.SaleOrderVirtualLine, error)
}

// InvoiceHandler handles invoice and virtual line endpoints.
type InvoiceHandler struct {
	svc    InvoiceServicer
	events Publisher
	logger *zap.Logger
}

// NewInvoiceHandler creates a new InvoiceHandler. events may be nil.
func NewInvoiceHandler(svc InvoiceServicer, events Publisher, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{svc: svc, events: events, logger: logger}
}

// RegisterOrderRoutes registers the order-scoped endpoints.
// Expected to be mounted at /orders
func (h *InvoiceHandler) RegisterOrderRoutes(r chi.Router) {
	r.Post("/{id}/invoices", h.Create)
	r.Get("/{id}/invoices", h.List)

	r.Post("/{id}/virtual-lines/copy", h.CopyToVirtual)
	r.Get("/{id}/virtual-lines", h.ListVirtualLines)
	r.Put("/{id}/virtual-lines/{vid}", h.UpdateVirtualLine)
}

// RegisterRoutes registers invoice endpoints.
// Expected to be mounted at /invoices
func (h *InvoiceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{iid}", h.Get)
	r.Post("/{iid}/post", h.Post)
	r.Post("/{iid}/cancel", h.Cancel)
}

// --- Request / Response types ---

type updateVirtualLineRequest struct {
	Name      *string  `json:"name"`
	Quantity  string   `json:"quantity"`
	PriceUnit string   `json:"price_unit"`
	TaxIDs    []string `json:"tax_ids"`
}

type invoiceLineResponse struct {
	ID           uuid.UUID   `json:"id"`
	SaleLineID   *uuid.UUID  `json:"sale_line_id"`
	Sequence     int32       `json:"sequence"`
	ProductID    *uuid.UUID  `json:"product_id"`
	Name         string      `json:"name"`
	Quantity     string      `json:"quantity"`
	UoM          string      `json:"uom"`
	PriceUnit    string      `json:"price_unit"`
	TaxIDs       []uuid.UUID `json:"tax_ids"`
	Account      *string     `json:"account"`
	IsComboChild bool        `json:"is_combo_child"`
}

type invoiceResponse struct {
	ID          uuid.UUID             `json:"id"`
	OrderID     uuid.UUID             `json:"order_id"`
	Name        string                `json:"name"`
	PartnerName string                `json:"partner_name"`
	State       string                `json:"state"`
	Amounts     amountsResponse       `json:"amounts"`
	Lines       []invoiceLineResponse `json:"lines,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

type virtualLineResponse struct {
	ID           uuid.UUID   `json:"id"`
	SourceLineID *uuid.UUID  `json:"source_line_id"`
	Sequence     int32       `json:"sequence"`
	ProductID    *uuid.UUID  `json:"product_id"`
	Name         string      `json:"name"`
	Quantity     string      `json:"quantity"`
	UoM          string      `json:"uom"`
	PriceUnit    string      `json:"price_unit"`
	TaxIDs       []uuid.UUID `json:"tax_ids"`
}

type virtualLinesResponse struct {
	Lines   []virtualLineResponse `json:"lines"`
	Amounts amountsResponse       `json:"amounts"`
}

func nonNilIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

func toInvoiceResponse(inv database.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:          inv.ID,
		OrderID:     inv.OrderID,
		Name:        inv.Name,
		PartnerName: inv.PartnerName,
		State:       inv.State,
		Amounts: amountsResponse{
			Untaxed: numericToString(inv.AmountUntaxed),
			Tax:     numericToString(inv.AmountTax),
			Total:   numericToString(inv.AmountTotal),
		},
		CreatedAt: inv.CreatedAt.Time,
	}
}

func toInvoiceResultResponse(result *service.InvoiceResult) invoiceResponse {
	resp := toInvoiceResponse(result.Invoice)
	resp.Lines = make([]invoiceLineResponse, len(result.Lines))
	for i, l := range result.Lines {
		resp.Lines[i] = invoiceLineResponse{
			ID:           l.ID,
			SaleLineID:   uuidPtr(l.SaleLineID),
			Sequence:     l.Sequence,
			ProductID:    uuidPtr(l.ProductID),
			Name:         l.Name,
			Quantity:     numericToDecimal(l.Quantity).String(),
			UoM:          l.Uom,
			PriceUnit:    numericToString(l.PriceUnit),
			TaxIDs:       nonNilIDs(l.TaxIds),
			Account:      textPtr(l.Account),
			IsComboChild: l.IsComboChild,
		}
	}
	return resp
}

func toVirtualLineResponse(vl database.SaleOrderVirtualLine) virtualLineResponse {
	return virtualLineResponse{
		ID:           vl.ID,
		SourceLineID: uuidPtr(vl.SourceLineID),
		Sequence:     vl.Sequence,
		ProductID:    uuidPtr(vl.ProductID),
		Name:         vl.Name,
		Quantity:     numericToDecimal(vl.Quantity).String(),
		UoM:          vl.Uom,
		PriceUnit:    numericToString(vl.PriceUnit),
		TaxIDs:       nonNilIDs(vl.TaxIds),
	}
}

func toVirtualLinesResponse(result *service.VirtualLinesResult) virtualLinesResponse {
	resp := virtualLinesResponse{
		Lines:   make([]virtualLineResponse, len(result.Lines)),
		Amounts: toAmountsResponse(result.Amounts),
	}
	for i, vl := range result.Lines {
		resp.Lines[i] = toVirtualLineResponse(vl)
	}
	return resp
}

func (h *InvoiceHandler) publish(eventType string, inv database.Invoice) {
	publishOrderEvent(h.events, h.logger, eventType, orderEvent{
		OrderID:   inv.OrderID.String(),
		State:     inv.State,
		InvoiceID: inv.ID.String(),
		Invoice:   inv.Name,
	})
}

// --- Handlers ---

// Create handles POST /orders/{id}/invoices.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}

	result, err := h.svc.CreateInvoice(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.logger, "create invoice", err)
		return
	}

	h.publish(enum.InvoiceEventCreated, result.Invoice)
	writeJSON(w, http.StatusCreated, toInvoiceResultResponse(result))
}

// List handles GET /orders/{id}/invoices.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}

	invoices, err := h.svc.ListInvoices(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.logger, "list invoices", err)
		return
	}

	resp := make([]invoiceResponse, len(invoices))
	for i, inv := range invoices {
		resp[i] = toInvoiceResponse(inv)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /invoices/{iid}.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := urlUUID(w, r, "iid", "invoice ID")
	if !ok {
		return
	}

	result, err := h.svc.GetInvoice(r.Context(), invoiceID)
	if err != nil {
		writeServiceError(w, h.logger, "get invoice", err)
		return
	}

	writeJSON(w, http.StatusOK, toInvoiceResultResponse(result))
}

// Post handles POST /invoices/{iid}/post.
func (h *InvoiceHandler) Post(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := urlUUID(w, r, "iid", "invoice ID")
	if !ok {
		return
	}

	result, err := h.svc.PostInvoice(r.Context(), invoiceID)
	if err != nil {
		writeServiceError(w, h.logger, "post invoice", err)
		return
	}

	writeJSON(w, http.StatusOK, toInvoiceResultResponse(result))
}

// Cancel handles POST /invoices/{iid}/cancel. The invoiced quantities are
// released back to the order.
func (h *InvoiceHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := urlUUID(w, r, "iid", "invoice ID")
	if !ok {
		return
	}

	result, err := h.svc.CancelInvoice(r.Context(), invoiceID)
	if err != nil {
		writeServiceError(w, h.logger, "cancel invoice", err)
		return
	}

	h.publish(enum.InvoiceEventCancelled, result.Invoice)
	writeJSON(w, http.StatusOK, toInvoiceResultResponse(result))
}

// CopyToVirtual handles POST /orders/{id}/virtual-lines/copy.
func (h *InvoiceHandler) CopyToVirtual(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}

	result, err := h.svc.CopyToVirtual(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.logger, "copy to virtual", err)
		return
	}

	writeJSON(w, http.StatusOK, toVirtualLinesResponse(result))
}

// ListVirtualLines handles GET /orders/{id}/virtual-lines.
func (h *InvoiceHandler) ListVirtualLines(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}

	result, err := h.svc.ListVirtualLines(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.logger, "list virtual lines", err)
		return
	}

	writeJSON(w, http.StatusOK, toVirtualLinesResponse(result))
}

// UpdateVirtualLine handles PUT /orders/{id}/virtual-lines/{vid}.
func (h *InvoiceHandler) UpdateVirtualLine(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}
	lineID, ok := urlUUID(w, r, "vid", "virtual line ID")
	if !ok {
		return
	}

	var req updateVirtualLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	qty, err := parseOptionalDecimal(req.Quantity, "quantity")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	price, err := parseOptionalDecimal(req.PriceUnit, "price_unit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var taxIDs []uuid.UUID
	if req.TaxIDs != nil {
		taxIDs, err = parseUUIDs(req.TaxIDs, "tax_ids")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	row, err := h.svc.UpdateVirtualLine(r.Context(), orderID, lineID, service.UpdateVirtualLineRequest{
		Name:      req.Name,
		Quantity:  qty,
		PriceUnit: price,
		TaxIDs:    taxIDs,
	})
	if err != nil {
		writeServiceError(w, h.logger, "update virtual line", err)
		return
	}

	writeJSON(w, http.StatusOK, toVirtualLineResponse(row))
}

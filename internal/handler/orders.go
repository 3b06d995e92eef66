package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/ups-sales/api/internal/database"
	"github.com/ups-sales/api/internal/enum"
	"github.com/ups-sales/api/internal/middleware"
	"github.com/ups-sales/api/internal/sales"
	"github.com/ups-sales/api/internal/service"
	"go.uber.org/zap"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*service.OrderResult, error)
	AddLine(ctx context.Context, orderID uuid.UUID, req service.AddLineRequest) (*service.OrderResult, error)
	AddComponents(ctx context.Context, orderID, parentLineID uuid.UUID, comps []service.ComponentRequest) (*service.OrderResult, error)
	UpdateLineQuantity(ctx context.Context, orderID, lineID uuid.UUID, qty decimal.Decimal) (*service.OrderResult, error)
	ChangeLineProduct(ctx context.Context, orderID, lineID, productID uuid.UUID) (*service.OrderResult, error)
	DeleteLine(ctx context.Context, orderID, lineID uuid.UUID) (*service.OrderResult, error)
	SetVirtualVAT(ctx context.Context, orderID uuid.UUID, apply bool) (*service.OrderResult, error)
	ConfirmOrder(ctx context.Context, orderID uuid.UUID) (*service.OrderResult, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID) (*service.OrderResult, error)
}

// OrderListStore defines the database methods needed by the order list.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderListStore interface {
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.SaleOrder, error)
	ListOrderCardLines(ctx context.Context, orderIDs []uuid.UUID) ([]database.ListOrderCardLinesRow, error)
}

// OrderHandler handles order and order line endpoints.
type OrderHandler struct {
	svc    OrderServicer
	store  OrderListStore
	events Publisher
	logger *zap.Logger
}

// NewOrderHandler creates a new OrderHandler. events may be nil.
func NewOrderHandler(svc OrderServicer, store OrderListStore, events Publisher, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, events: events, logger: logger}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/confirm", h.Confirm)
	r.Post("/{id}/cancel", h.Cancel)
	r.Put("/{id}/virtual-vat", h.SetVirtualVAT)

	r.Post("/{id}/lines", h.AddLine)
	r.Post("/{id}/lines/{lid}/components", h.AddComponents)
	r.Patch("/{id}/lines/{lid}/quantity", h.UpdateQuantity)
	r.Patch("/{id}/lines/{lid}/product", h.ChangeProduct)
	r.Delete("/{id}/lines/{lid}", h.DeleteLine)
}

// --- Request / Response types ---

type orderLineRequest struct {
	ProductID    string   `json:"product_id"`
	Name         string   `json:"name"`
	DisplayType  string   `json:"display_type"`
	Quantity     string   `json:"quantity"`
	PriceUnit    string   `json:"price_unit"`
	TaxIDs       []string `json:"tax_ids"`
	SkipMovement bool     `json:"skip_movement"`
}

type createOrderRequest struct {
	PartnerName     string             `json:"partner_name"`
	ApplyVirtualVAT bool               `json:"apply_virtual_vat"`
	Tag             string             `json:"tag"`
	Lines           []orderLineRequest `json:"lines"`
}

type componentRequest struct {
	ProductID string `json:"product_id"`
	Quantity  string `json:"quantity"`
}

type addComponentsRequest struct {
	Components []componentRequest `json:"components"`
}

type quantityRequest struct {
	Quantity string `json:"quantity"`
}

type productChangeRequest struct {
	ProductID string `json:"product_id"`
}

type virtualVATRequest struct {
	ApplyVirtualVAT bool `json:"apply_virtual_vat"`
}

type amountsResponse struct {
	Untaxed string `json:"untaxed"`
	Tax     string `json:"tax"`
	Total   string `json:"total"`
}

type orderLineResponse struct {
	ID           uuid.UUID   `json:"id"`
	ParentLineID *uuid.UUID  `json:"parent_line_id"`
	Sequence     int32       `json:"sequence"`
	ProductID    *uuid.UUID  `json:"product_id"`
	Name         string      `json:"name"`
	Quantity     string      `json:"quantity"`
	UoM          string      `json:"uom"`
	PriceUnit    string      `json:"price_unit"`
	TaxIDs       []uuid.UUID `json:"tax_ids"`
	DisplayType  *string     `json:"display_type"`
	IsComboChild bool        `json:"is_combo_child"`
	SkipMovement bool        `json:"skip_movement"`
	NeedsReview  bool        `json:"needs_review"`
	QtyInvoiced  string      `json:"qty_invoiced"`
	QtyToInvoice string      `json:"qty_to_invoice"`
}

type orderResponse struct {
	ID              uuid.UUID           `json:"id"`
	Name            string              `json:"name"`
	PartnerName     string              `json:"partner_name"`
	State           string              `json:"state"`
	ApplyVirtualVAT bool                `json:"apply_virtual_vat"`
	Tag             *string             `json:"tag"`
	InvoiceStatus   string              `json:"invoice_status"`
	Amounts         amountsResponse     `json:"amounts"`
	VirtualAmounts  *amountsResponse    `json:"virtual_amounts,omitempty"`
	Lines           []orderLineResponse `json:"lines"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type orderListEntry struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	PartnerName string    `json:"partner_name"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
	Card        orderCard `json:"card"`
}

func toAmountsResponse(a sales.Amounts) amountsResponse {
	return amountsResponse{
		Untaxed: a.Untaxed.StringFixed(2),
		Tax:     a.Tax.StringFixed(2),
		Total:   a.Total.StringFixed(2),
	}
}

func optionalUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func toOrderLineResponse(o *sales.Order, l *sales.Line) orderLineResponse {
	resp := orderLineResponse{
		ID:           l.ID,
		ParentLineID: optionalUUID(l.ParentID),
		Sequence:     l.Sequence,
		ProductID:    optionalUUID(l.ProductID),
		Name:         l.Name,
		Quantity:     l.Quantity.String(),
		UoM:          l.UoM,
		PriceUnit:    l.PriceUnit.StringFixed(2),
		TaxIDs:       l.TaxIDs,
		IsComboChild: l.IsComponent(),
		SkipMovement: l.SkipMovement,
		NeedsReview:  l.NeedsReview,
		QtyInvoiced:  l.QtyInvoiced.String(),
		QtyToInvoice: sales.QtyToInvoice(o, l).String(),
	}
	if resp.TaxIDs == nil {
		resp.TaxIDs = []uuid.UUID{}
	}
	if l.DisplayType != "" {
		dt := l.DisplayType
		resp.DisplayType = &dt
	}
	return resp
}

func toOrderResponse(result *service.OrderResult) orderResponse {
	o := result.Order
	resp := orderResponse{
		ID:              o.ID,
		Name:            o.Name,
		PartnerName:     o.PartnerName,
		State:           o.State,
		ApplyVirtualVAT: o.ApplyVirtualVat,
		Tag:             textPtr(o.Tag),
		InvoiceStatus:   result.InvoiceStatus,
		Amounts:         toAmountsResponse(result.Amounts),
		Lines:           []orderLineResponse{},
		CreatedAt:       o.CreatedAt.Time,
		UpdatedAt:       o.UpdatedAt.Time,
	}
	if o.ApplyVirtualVat {
		va := toAmountsResponse(result.VirtualAmounts)
		resp.VirtualAmounts = &va
	}
	if result.Aggregate != nil {
		for _, l := range result.Aggregate.Lines() {
			resp.Lines = append(resp.Lines, toOrderLineResponse(result.Aggregate, l))
		}
	}
	return resp
}

func formatLineError(idx int, msg string) string {
	return "lines[" + strconv.Itoa(idx) + "]: " + msg
}

// parseLineRequest converts a line body into a service request. The
// returned message is empty on success.
func parseLineRequest(req orderLineRequest) (service.AddLineRequest, string) {
	out := service.AddLineRequest{
		Name:         req.Name,
		DisplayType:  req.DisplayType,
		SkipMovement: req.SkipMovement,
	}

	if req.ProductID != "" {
		id, err := uuid.Parse(req.ProductID)
		if err != nil {
			return out, "invalid product_id"
		}
		out.ProductID = id
	}

	out.Quantity = decimal.NewFromInt(1)
	if req.Quantity != "" {
		qty, err := decimal.NewFromString(req.Quantity)
		if err != nil {
			return out, "invalid quantity"
		}
		out.Quantity = qty
	}

	price, err := parseOptionalDecimal(req.PriceUnit, "price_unit")
	if err != nil {
		return out, err.Error()
	}
	out.PriceUnit = price

	if req.TaxIDs != nil {
		ids, err := parseUUIDs(req.TaxIDs, "tax_ids")
		if err != nil {
			return out, err.Error()
		}
		out.TaxIDs = ids
	}
	return out, ""
}

func (h *OrderHandler) publish(eventType string, result *service.OrderResult) {
	publishOrderEvent(h.events, h.logger, eventType, orderEvent{
		OrderID: result.Order.ID.String(),
		Name:    result.Order.Name,
		State:   result.Order.State,
	})
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.PartnerName == "" {
		writeError(w, http.StatusBadRequest, "partner_name is required")
		return
	}

	lines := make([]service.AddLineRequest, len(req.Lines))
	for i, l := range req.Lines {
		parsed, msg := parseLineRequest(l)
		if msg != "" {
			writeError(w, http.StatusBadRequest, formatLineError(i, msg))
			return
		}
		lines[i] = parsed
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		PartnerName:     req.PartnerName,
		ApplyVirtualVAT: req.ApplyVirtualVAT,
		Tag:             req.Tag,
		CreatedBy:       claims.UserID,
		Lines:           lines,
	})
	if err != nil {
		writeServiceError(w, h.logger, "create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(result))
}

// List handles GET /orders. Each entry carries a summary card.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	var state pgtype.Text
	if s := r.URL.Query().Get("state"); s != "" {
		if !enum.IsValidOrderState(s) {
			writeError(w, http.StatusBadRequest, "invalid state filter")
			return
		}
		state = pgtype.Text{String: s, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		State:  state,
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		internalError(w, h.logger, "list orders", err)
		return
	}

	resp := make([]orderListEntry, len(orders))
	if len(orders) == 0 {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	rows, err := h.store.ListOrderCardLines(r.Context(), ids)
	if err != nil {
		internalError(w, h.logger, "list order card lines", err)
		return
	}
	byOrder := groupCardLines(rows)

	for i, o := range orders {
		resp[i] = orderListEntry{
			ID:          o.ID,
			Name:        o.Name,
			PartnerName: o.PartnerName,
			State:       o.State,
			CreatedAt:   o.CreatedAt.Time,
			Card:        buildCard(o, byOrder[o.ID]),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}

	result, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.logger, "get order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// Confirm handles POST /orders/{id}/confirm.
func (h *OrderHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}

	result, err := h.svc.ConfirmOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.logger, "confirm order", err)
		return
	}

	h.publish(enum.OrderEventConfirmed, result)
	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// Cancel handles POST /orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}

	result, err := h.svc.CancelOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.logger, "cancel order", err)
		return
	}

	h.publish(enum.OrderEventCancelled, result)
	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// SetVirtualVAT handles PUT /orders/{id}/virtual-vat.
func (h *OrderHandler) SetVirtualVAT(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}

	var req virtualVATRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.SetVirtualVAT(r.Context(), orderID, req.ApplyVirtualVAT)
	if err != nil {
		writeServiceError(w, h.logger, "set virtual vat", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// AddLine handles POST /orders/{id}/lines. Combo products are expanded
// into their components.
func (h *OrderHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}

	var req orderLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	line, msg := parseLineRequest(req)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	result, err := h.svc.AddLine(r.Context(), orderID, line)
	if err != nil {
		writeServiceError(w, h.logger, "add order line", err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(result))
}

// AddComponents handles POST /orders/{id}/lines/{lid}/components.
func (h *OrderHandler) AddComponents(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}
	lineID, ok := urlUUID(w, r, "lid", "line ID")
	if !ok {
		return
	}

	var req addComponentsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Components) == 0 {
		writeError(w, http.StatusBadRequest, "components are required")
		return
	}

	comps := make([]service.ComponentRequest, len(req.Components))
	for i, c := range req.Components {
		productID, err := uuid.Parse(c.ProductID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "components["+strconv.Itoa(i)+"]: invalid product_id")
			return
		}
		qty, err := decimal.NewFromString(c.Quantity)
		if err != nil {
			writeError(w, http.StatusBadRequest, "components["+strconv.Itoa(i)+"]: invalid quantity")
			return
		}
		comps[i] = service.ComponentRequest{ProductID: productID, Quantity: qty}
	}

	result, err := h.svc.AddComponents(r.Context(), orderID, lineID, comps)
	if err != nil {
		writeServiceError(w, h.logger, "add components", err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(result))
}

// UpdateQuantity handles PATCH /orders/{id}/lines/{lid}/quantity. The new
// quantity propagates to the line's components.
func (h *OrderHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}
	lineID, ok := urlUUID(w, r, "lid", "line ID")
	if !ok {
		return
	}

	var req quantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity == "" {
		writeError(w, http.StatusBadRequest, "quantity is required")
		return
	}
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid quantity")
		return
	}

	result, err := h.svc.UpdateLineQuantity(r.Context(), orderID, lineID, qty)
	if err != nil {
		writeServiceError(w, h.logger, "update line quantity", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// ChangeProduct handles PATCH /orders/{id}/lines/{lid}/product.
func (h *OrderHandler) ChangeProduct(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}
	lineID, ok := urlUUID(w, r, "lid", "line ID")
	if !ok {
		return
	}

	var req productChangeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product_id")
		return
	}

	result, err := h.svc.ChangeLineProduct(r.Context(), orderID, lineID, productID)
	if err != nil {
		writeServiceError(w, h.logger, "change line product", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// DeleteLine handles DELETE /orders/{id}/lines/{lid}. Component lines
// cannot be deleted on their own.
func (h *OrderHandler) DeleteLine(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}
	lineID, ok := urlUUID(w, r, "lid", "line ID")
	if !ok {
		return
	}

	result, err := h.svc.DeleteLine(r.Context(), orderID, lineID)
	if err != nil {
		writeServiceError(w, h.logger, "delete order line", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

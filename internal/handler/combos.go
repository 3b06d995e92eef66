package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/ups-sales/api/internal/database"
	"go.uber.org/zap"
)

const comboSequenceStep = 10

// ComboStore defines the database methods needed by combo line handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ComboStore interface {
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	ListComboLinesByProduct(ctx context.Context, productID uuid.UUID) ([]database.ProductComboLine, error)
	CreateComboLine(ctx context.Context, arg database.CreateComboLineParams) (database.ProductComboLine, error)
	DeleteComboLine(ctx context.Context, arg database.DeleteComboLineParams) (int64, error)
}

// ComboHandler manages the component list of combo products.
type ComboHandler struct {
	store  ComboStore
	logger *zap.Logger
}

// NewComboHandler creates a new ComboHandler.
func NewComboHandler(store ComboStore, logger *zap.Logger) *ComboHandler {
	return &ComboHandler{store: store, logger: logger}
}

// RegisterRoutes registers combo line endpoints on the given Chi router.
// Expected to be mounted at /products/{pid}
func (h *ComboHandler) RegisterRoutes(r chi.Router) {
	r.Get("/combo-lines", h.List)
	r.Post("/combo-lines", h.Create)
	r.Delete("/combo-lines/{cid}", h.Delete)
}

// --- Request / Response types ---

type createComboLineRequest struct {
	ComponentID string `json:"component_id"`
	Quantity    string `json:"quantity"`
	UoM         string `json:"uom"`
	Sequence    int32  `json:"sequence"`
}

type comboLineResponse struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	ComponentID uuid.UUID `json:"component_id"`
	Quantity    string    `json:"quantity"`
	UoM         *string   `json:"uom"`
	Sequence    int32     `json:"sequence"`
}

func toComboLineResponse(cl database.ProductComboLine) comboLineResponse {
	return comboLineResponse{
		ID:          cl.ID,
		ProductID:   cl.ProductID,
		ComponentID: cl.ComponentID,
		Quantity:    numericToDecimal(cl.Quantity).String(),
		UoM:         textPtr(cl.Uom),
		Sequence:    cl.Sequence,
	}
}

// --- Helpers ---

// comboProduct loads the {pid} product and checks that it is a combo.
func (h *ComboHandler) comboProduct(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	productID, ok := urlUUID(w, r, "pid", "product ID")
	if !ok {
		return uuid.Nil, false
	}

	product, err := h.store.GetProduct(r.Context(), productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product not found")
			return uuid.Nil, false
		}
		internalError(w, h.logger, "get combo product", err)
		return uuid.Nil, false
	}

	if !product.IsCombo {
		writeError(w, http.StatusBadRequest, "product is not a combo")
		return uuid.Nil, false
	}
	return productID, true
}

// --- Handlers ---

// List returns the combo's components in sequence order.
func (h *ComboHandler) List(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.comboProduct(w, r)
	if !ok {
		return
	}

	lines, err := h.store.ListComboLinesByProduct(r.Context(), productID)
	if err != nil {
		internalError(w, h.logger, "list combo lines", err)
		return
	}

	resp := make([]comboLineResponse, len(lines))
	for i, cl := range lines {
		resp[i] = toComboLineResponse(cl)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create adds a component to the combo.
func (h *ComboHandler) Create(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.comboProduct(w, r)
	if !ok {
		return
	}

	var req createComboLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.ComponentID == "" {
		writeError(w, http.StatusBadRequest, "component_id is required")
		return
	}
	componentID, err := uuid.Parse(req.ComponentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid component_id")
		return
	}

	// A combo cannot contain itself
	if componentID == productID {
		writeError(w, http.StatusBadRequest, "combo cannot contain itself")
		return
	}

	if _, err := h.store.GetProduct(r.Context(), componentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusBadRequest, "component product not found")
			return
		}
		internalError(w, h.logger, "get component product", err)
		return
	}

	// Default quantity to 1 if not specified
	qty := decimal.NewFromInt(1)
	if req.Quantity != "" {
		qty, err = decimal.NewFromString(req.Quantity)
		if err != nil || !qty.IsPositive() {
			writeError(w, http.StatusBadRequest, "quantity must be > 0")
			return
		}
	}

	seq := req.Sequence
	if seq <= 0 {
		existing, err := h.store.ListComboLinesByProduct(r.Context(), productID)
		if err != nil {
			internalError(w, h.logger, "list combo lines", err)
			return
		}
		seq = int32(len(existing)+1) * comboSequenceStep
	}

	cl, err := h.store.CreateComboLine(r.Context(), database.CreateComboLineParams{
		ProductID:   productID,
		ComponentID: componentID,
		Quantity:    decimalToNumeric(qty),
		Uom:         pgtype.Text{String: req.UoM, Valid: req.UoM != ""},
		Sequence:    seq,
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusBadRequest, "invalid component_id")
			return
		}
		internalError(w, h.logger, "create combo line", err)
		return
	}

	writeJSON(w, http.StatusCreated, toComboLineResponse(cl))
}

// Delete removes a component from the combo. Existing order lines keep
// their expanded components.
func (h *ComboHandler) Delete(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.comboProduct(w, r)
	if !ok {
		return
	}

	lineID, ok := urlUUID(w, r, "cid", "combo line ID")
	if !ok {
		return
	}

	rows, err := h.store.DeleteComboLine(r.Context(), database.DeleteComboLineParams{
		ID:        lineID,
		ProductID: productID,
	})
	if err != nil {
		internalError(w, h.logger, "delete combo line", err)
		return
	}
	if rows == 0 {
		writeError(w, http.StatusNotFound, "combo line not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

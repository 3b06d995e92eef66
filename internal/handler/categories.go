package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ups-sales/api/internal/database"
	"go.uber.org/zap"
)

// CategoryStore defines the database methods needed by the catalog
// reference data handlers: product categories and taxes.
type CategoryStore interface {
	ListProductCategories(ctx context.Context) ([]database.ProductCategory, error)
	CreateProductCategory(ctx context.Context, arg database.CreateProductCategoryParams) (database.ProductCategory, error)
	ListTaxes(ctx context.Context) ([]database.Tax, error)
	CreateTax(ctx context.Context, arg database.CreateTaxParams) (database.Tax, error)
}

// CategoryHandler serves product categories and taxes.
type CategoryHandler struct {
	store  CategoryStore
	logger *zap.Logger
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(store CategoryStore, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{store: store, logger: logger}
}

// RegisterRoutes registers category endpoints.
// Expected to be mounted at /categories
func (h *CategoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
}

// RegisterTaxRoutes registers tax endpoints.
// Expected to be mounted at /taxes
func (h *CategoryHandler) RegisterTaxRoutes(r chi.Router) {
	r.Get("/", h.ListTaxes)
	r.Post("/", h.CreateTax)
}

// --- Request / Response types ---

type createCategoryRequest struct {
	Name          string `json:"name"`
	IncomeAccount string `json:"income_account"`
}

type categoryResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	IncomeAccount *string   `json:"income_account"`
	CreatedAt     time.Time `json:"created_at"`
}

type createTaxRequest struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

type taxResponse struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Amount string    `json:"amount"`
}

func toCategoryResponse(c database.ProductCategory) categoryResponse {
	return categoryResponse{
		ID:            c.ID,
		Name:          c.Name,
		IncomeAccount: textPtr(c.IncomeAccount),
		CreatedAt:     c.CreatedAt.Time,
	}
}

func toTaxResponse(t database.Tax) taxResponse {
	return taxResponse{
		ID:     t.ID,
		Name:   t.Name,
		Amount: numericToDecimal(t.Amount).String(),
	}
}

// --- Handlers ---

// List returns all product categories.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	cats, err := h.store.ListProductCategories(r.Context())
	if err != nil {
		internalError(w, h.logger, "list categories", err)
		return
	}

	resp := make([]categoryResponse, len(cats))
	for i, c := range cats {
		resp[i] = toCategoryResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create adds a product category. Its income account is the default for
// products that do not set their own.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	cat, err := h.store.CreateProductCategory(r.Context(), database.CreateProductCategoryParams{
		Name:          req.Name,
		IncomeAccount: optionalText(req.IncomeAccount),
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "category name already exists")
			return
		}
		internalError(w, h.logger, "create category", err)
		return
	}

	writeJSON(w, http.StatusCreated, toCategoryResponse(cat))
}

// ListTaxes returns all taxes.
func (h *CategoryHandler) ListTaxes(w http.ResponseWriter, r *http.Request) {
	taxes, err := h.store.ListTaxes(r.Context())
	if err != nil {
		internalError(w, h.logger, "list taxes", err)
		return
	}

	resp := make([]taxResponse, len(taxes))
	for i, t := range taxes {
		resp[i] = toTaxResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateTax adds a percentage tax. Amount is the rate in percent.
func (h *CategoryHandler) CreateTax(w http.ResponseWriter, r *http.Request) {
	var req createTaxRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	if amount.IsNegative() || amount.GreaterThan(decimal.NewFromInt(100)) {
		writeError(w, http.StatusBadRequest, "amount must be between 0 and 100")
		return
	}

	tax, err := h.store.CreateTax(r.Context(), database.CreateTaxParams{
		Name:   req.Name,
		Amount: decimalToNumeric(amount),
	})
	if err != nil {
		internalError(w, h.logger, "create tax", err)
		return
	}

	writeJSON(w, http.StatusCreated, toTaxResponse(tax))
}

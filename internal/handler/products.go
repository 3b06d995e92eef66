package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/ups-sales/api/internal/database"
	"go.uber.org/zap"
)

const defaultUoM = "Units"

// ProductStore defines the database methods needed by product handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductStore interface {
	ListProducts(ctx context.Context, arg database.ListProductsParams) ([]database.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
}

// ProductHandler handles product CRUD endpoints.
type ProductHandler struct {
	store  ProductStore
	logger *zap.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{store: store, logger: logger}
}

// RegisterRoutes registers product CRUD endpoints on the given Chi router.
// Expected to be mounted at /products
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{pid}", h.Get)
	r.Post("/", h.Create)
	r.Put("/{pid}", h.Update)
}

// --- Request / Response types ---

type productRequest struct {
	Name            string   `json:"name"`
	DescriptionSale string   `json:"description_sale"`
	ListPrice       string   `json:"list_price"`
	UoM             string   `json:"uom"`
	CategoryID      string   `json:"category_id"`
	IncomeAccount   string   `json:"income_account"`
	TaxIDs          []string `json:"tax_ids"`
	IsCombo         bool     `json:"is_combo"`
}

type productResponse struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	DescriptionSale *string     `json:"description_sale"`
	ListPrice       string      `json:"list_price"`
	UoM             string      `json:"uom"`
	CategoryID      *uuid.UUID  `json:"category_id"`
	IncomeAccount   *string     `json:"income_account"`
	TaxIDs          []uuid.UUID `json:"tax_ids"`
	IsCombo         bool        `json:"is_combo"`
	IsActive        bool        `json:"is_active"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func toProductResponse(p database.Product) productResponse {
	taxIDs := p.TaxIds
	if taxIDs == nil {
		taxIDs = []uuid.UUID{}
	}
	return productResponse{
		ID:              p.ID,
		Name:            p.Name,
		DescriptionSale: textPtr(p.DescriptionSale),
		ListPrice:       numericToString(p.ListPrice),
		UoM:             p.Uom,
		CategoryID:      uuidPtr(p.CategoryID),
		IncomeAccount:   textPtr(p.IncomeAccount),
		TaxIDs:          taxIDs,
		IsCombo:         p.IsCombo,
		IsActive:        p.IsActive,
		CreatedAt:       p.CreatedAt.Time,
		UpdatedAt:       p.UpdatedAt.Time,
	}
}

// productFields holds the parsed parts of a create/update body.
type productFields struct {
	price      pgtype.Numeric
	categoryID pgtype.UUID
	taxIDs     []uuid.UUID
	uom        string
}

var errNegativePrice = errors.New("negative price")

func parseListPrice(s string) (pgtype.Numeric, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Numeric{}, err
	}
	if d.IsNegative() {
		return pgtype.Numeric{}, errNegativePrice
	}
	return decimalToNumeric(d), nil
}

// validateProduct returns an empty message when the body is valid.
func validateProduct(req productRequest) (productFields, string) {
	var f productFields
	if req.Name == "" {
		return f, "name is required"
	}
	if req.ListPrice == "" {
		return f, "list_price is required"
	}
	price, err := parseListPrice(req.ListPrice)
	if err != nil {
		if errors.Is(err, errNegativePrice) {
			return f, "list_price must be >= 0"
		}
		return f, "invalid list_price"
	}
	f.price = price

	if req.CategoryID != "" {
		id, err := uuid.Parse(req.CategoryID)
		if err != nil {
			return f, "invalid category_id"
		}
		f.categoryID = pgtype.UUID{Bytes: id, Valid: true}
	}

	taxIDs, err := parseUUIDs(req.TaxIDs, "tax_ids")
	if err != nil {
		return f, err.Error()
	}
	f.taxIDs = taxIDs

	f.uom = req.UoM
	if f.uom == "" {
		f.uom = defaultUoM
	}
	return f, ""
}

func optionalText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// --- Handlers ---

// List returns active products, alphabetically.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	products, err := h.store.ListProducts(r.Context(), database.ListProductsParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		internalError(w, h.logger, "list products", err)
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single active product.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "pid", "product ID")
	if !ok {
		return
	}

	product, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		internalError(w, h.logger, "get product", err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// Create adds a new product.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	f, msg := validateProduct(req)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	product, err := h.store.CreateProduct(r.Context(), database.CreateProductParams{
		Name:            req.Name,
		DescriptionSale: optionalText(req.DescriptionSale),
		ListPrice:       f.price,
		Uom:             f.uom,
		CategoryID:      f.categoryID,
		IncomeAccount:   optionalText(req.IncomeAccount),
		TaxIds:          f.taxIDs,
		IsCombo:         req.IsCombo,
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusBadRequest, "invalid category_id")
			return
		}
		internalError(w, h.logger, "create product", err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

// Update replaces an active product's fields.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "pid", "product ID")
	if !ok {
		return
	}

	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	f, msg := validateProduct(req)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	product, err := h.store.UpdateProduct(r.Context(), database.UpdateProductParams{
		ID:              id,
		Name:            req.Name,
		DescriptionSale: optionalText(req.DescriptionSale),
		ListPrice:       f.price,
		Uom:             f.uom,
		CategoryID:      f.categoryID,
		IncomeAccount:   optionalText(req.IncomeAccount),
		TaxIds:          f.taxIDs,
		IsCombo:         req.IsCombo,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusBadRequest, "invalid category_id")
			return
		}
		internalError(w, h.logger, "update product", err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

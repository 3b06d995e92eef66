package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// --- Taxes ---

const createTax = `INSERT INTO taxes (name, amount) VALUES ($1, $2)
RETURNING id, name, amount, created_at`

type CreateTaxParams struct {
	Name   string         `json:"name"`
	Amount pgtype.Numeric `json:"amount"`
}

func (q *Queries) CreateTax(ctx context.Context, arg CreateTaxParams) (Tax, error) {
	var i Tax
	err := q.db.QueryRow(ctx, createTax, arg.Name, arg.Amount).Scan(
		&i.ID,
		&i.Name,
		&i.Amount,
		&i.CreatedAt,
	)
	return i, err
}

const listTaxesByIDs = `SELECT id, name, amount, created_at FROM taxes WHERE id = ANY($1::uuid[]) ORDER BY name`

func (q *Queries) ListTaxesByIDs(ctx context.Context, ids []uuid.UUID) ([]Tax, error) {
	rows, err := q.db.Query(ctx, listTaxesByIDs, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Tax
	for rows.Next() {
		var i Tax
		if err := rows.Scan(&i.ID, &i.Name, &i.Amount, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listTaxes = `SELECT id, name, amount, created_at FROM taxes ORDER BY name`

func (q *Queries) ListTaxes(ctx context.Context) ([]Tax, error) {
	rows, err := q.db.Query(ctx, listTaxes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Tax
	for rows.Next() {
		var i Tax
		if err := rows.Scan(&i.ID, &i.Name, &i.Amount, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// --- Categories ---

const listProductCategories = `SELECT id, name, income_account, created_at FROM product_categories ORDER BY name`

func (q *Queries) ListProductCategories(ctx context.Context) ([]ProductCategory, error) {
	rows, err := q.db.Query(ctx, listProductCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ProductCategory
	for rows.Next() {
		var i ProductCategory
		if err := rows.Scan(&i.ID, &i.Name, &i.IncomeAccount, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createProductCategory = `INSERT INTO product_categories (name, income_account) VALUES ($1, $2)
RETURNING id, name, income_account, created_at`

type CreateProductCategoryParams struct {
	Name          string      `json:"name"`
	IncomeAccount pgtype.Text `json:"income_account"`
}

func (q *Queries) CreateProductCategory(ctx context.Context, arg CreateProductCategoryParams) (ProductCategory, error) {
	var i ProductCategory
	err := q.db.QueryRow(ctx, createProductCategory, arg.Name, arg.IncomeAccount).Scan(
		&i.ID,
		&i.Name,
		&i.IncomeAccount,
		&i.CreatedAt,
	)
	return i, err
}

// --- Products ---

const productColumns = `id, name, description_sale, list_price, uom, category_id, income_account,
tax_ids, is_combo, is_active, created_at, updated_at`

func scanProduct(row rowScanner) (Product, error) {
	var i Product
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.DescriptionSale,
		&i.ListPrice,
		&i.Uom,
		&i.CategoryID,
		&i.IncomeAccount,
		&i.TaxIds,
		&i.IsCombo,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createProduct = `INSERT INTO products (name, description_sale, list_price, uom, category_id, income_account, tax_ids, is_combo)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + productColumns

type CreateProductParams struct {
	Name            string         `json:"name"`
	DescriptionSale pgtype.Text    `json:"description_sale"`
	ListPrice       pgtype.Numeric `json:"list_price"`
	Uom             string         `json:"uom"`
	CategoryID      pgtype.UUID    `json:"category_id"`
	IncomeAccount   pgtype.Text    `json:"income_account"`
	TaxIds          []uuid.UUID    `json:"tax_ids"`
	IsCombo         bool           `json:"is_combo"`
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, createProduct,
		arg.Name,
		arg.DescriptionSale,
		arg.ListPrice,
		arg.Uom,
		arg.CategoryID,
		arg.IncomeAccount,
		arg.TaxIds,
		arg.IsCombo,
	))
}

const updateProduct = `UPDATE products SET
    name = $2, description_sale = $3, list_price = $4, uom = $5, category_id = $6,
    income_account = $7, tax_ids = $8, is_combo = $9, updated_at = now()
WHERE id = $1 AND is_active = true
RETURNING ` + productColumns

type UpdateProductParams struct {
	ID              uuid.UUID      `json:"id"`
	Name            string         `json:"name"`
	DescriptionSale pgtype.Text    `json:"description_sale"`
	ListPrice       pgtype.Numeric `json:"list_price"`
	Uom             string         `json:"uom"`
	CategoryID      pgtype.UUID    `json:"category_id"`
	IncomeAccount   pgtype.Text    `json:"income_account"`
	TaxIds          []uuid.UUID    `json:"tax_ids"`
	IsCombo         bool           `json:"is_combo"`
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, updateProduct,
		arg.ID,
		arg.Name,
		arg.DescriptionSale,
		arg.ListPrice,
		arg.Uom,
		arg.CategoryID,
		arg.IncomeAccount,
		arg.TaxIds,
		arg.IsCombo,
	))
}

const getProduct = `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND is_active = true`

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, id))
}

const listProducts = `SELECT ` + productColumns + ` FROM products WHERE is_active = true ORDER BY name LIMIT $1 OFFSET $2`

type ListProductsParams struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		i, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getCatalogProduct = `SELECT p.id, p.name, p.description_sale, p.list_price, p.uom, p.tax_ids, p.is_combo,
       p.income_account, c.income_account AS category_income_account
FROM products p
LEFT JOIN product_categories c ON c.id = p.category_id
WHERE p.id = $1`

type GetCatalogProductRow struct {
	ID                    uuid.UUID      `json:"id"`
	Name                  string         `json:"name"`
	DescriptionSale       pgtype.Text    `json:"description_sale"`
	ListPrice             pgtype.Numeric `json:"list_price"`
	Uom                   string         `json:"uom"`
	TaxIds                []uuid.UUID    `json:"tax_ids"`
	IsCombo               bool           `json:"is_combo"`
	IncomeAccount         pgtype.Text    `json:"income_account"`
	CategoryIncomeAccount pgtype.Text    `json:"category_income_account"`
}

// GetCatalogProduct returns the product with its category's default income
// account. Archived products are included so existing lines stay resolvable.
func (q *Queries) GetCatalogProduct(ctx context.Context, id uuid.UUID) (GetCatalogProductRow, error) {
	var i GetCatalogProductRow
	err := q.db.QueryRow(ctx, getCatalogProduct, id).Scan(
		&i.ID,
		&i.Name,
		&i.DescriptionSale,
		&i.ListPrice,
		&i.Uom,
		&i.TaxIds,
		&i.IsCombo,
		&i.IncomeAccount,
		&i.CategoryIncomeAccount,
	)
	return i, err
}

// --- Combo lines ---

const comboLineColumns = `id, product_id, component_id, quantity, uom, sequence`

func scanComboLine(row rowScanner) (ProductComboLine, error) {
	var i ProductComboLine
	err := row.Scan(
		&i.ID,
		&i.ProductID,
		&i.ComponentID,
		&i.Quantity,
		&i.Uom,
		&i.Sequence,
	)
	return i, err
}

const listComboLinesByProduct = `SELECT ` + comboLineColumns + ` FROM product_combo_lines
WHERE product_id = $1 ORDER BY sequence, id`

func (q *Queries) ListComboLinesByProduct(ctx context.Context, productID uuid.UUID) ([]ProductComboLine, error) {
	rows, err := q.db.Query(ctx, listComboLinesByProduct, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ProductComboLine
	for rows.Next() {
		i, err := scanComboLine(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createComboLine = `INSERT INTO product_combo_lines (product_id, component_id, quantity, uom, sequence)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + comboLineColumns

type CreateComboLineParams struct {
	ProductID   uuid.UUID      `json:"product_id"`
	ComponentID uuid.UUID      `json:"component_id"`
	Quantity    pgtype.Numeric `json:"quantity"`
	Uom         pgtype.Text    `json:"uom"`
	Sequence    int32          `json:"sequence"`
}

func (q *Queries) CreateComboLine(ctx context.Context, arg CreateComboLineParams) (ProductComboLine, error) {
	return scanComboLine(q.db.QueryRow(ctx, createComboLine,
		arg.ProductID,
		arg.ComponentID,
		arg.Quantity,
		arg.Uom,
		arg.Sequence,
	))
}

const deleteComboLine = `DELETE FROM product_combo_lines WHERE id = $1 AND product_id = $2`

type DeleteComboLineParams struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
}

func (q *Queries) DeleteComboLine(ctx context.Context, arg DeleteComboLineParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteComboLine, arg.ID, arg.ProductID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

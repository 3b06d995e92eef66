package database

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID          `json:"id"`
	Email          string             `json:"email"`
	HashedPassword string             `json:"hashed_password"`
	FullName       string             `json:"full_name"`
	Role           string             `json:"role"`
	IsActive       bool               `json:"is_active"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
}

type Tax struct {
	ID        uuid.UUID          `json:"id"`
	Name      string             `json:"name"`
	Amount    pgtype.Numeric     `json:"amount"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
}

type ProductCategory struct {
	ID            uuid.UUID          `json:"id"`
	Name          string             `json:"name"`
	IncomeAccount pgtype.Text        `json:"income_account"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
}

type Product struct {
	ID              uuid.UUID          `json:"id"`
	Name            string             `json:"name"`
	DescriptionSale pgtype.Text        `json:"description_sale"`
	ListPrice       pgtype.Numeric     `json:"list_price"`
	Uom             string             `json:"uom"`
	CategoryID      pgtype.UUID        `json:"category_id"`
	IncomeAccount   pgtype.Text        `json:"income_account"`
	TaxIds          []uuid.UUID        `json:"tax_ids"`
	IsCombo         bool               `json:"is_combo"`
	IsActive        bool               `json:"is_active"`
	CreatedAt       pgtype.Timestamptz `json:"created_at"`
	UpdatedAt       pgtype.Timestamptz `json:"updated_at"`
}

type ProductComboLine struct {
	ID          uuid.UUID      `json:"id"`
	ProductID   uuid.UUID      `json:"product_id"`
	ComponentID uuid.UUID      `json:"component_id"`
	Quantity    pgtype.Numeric `json:"quantity"`
	Uom         pgtype.Text    `json:"uom"`
	Sequence    int32          `json:"sequence"`
}

type SaleOrder struct {
	ID              uuid.UUID          `json:"id"`
	Name            string             `json:"name"`
	PartnerName     string             `json:"partner_name"`
	State           string             `json:"state"`
	ApplyVirtualVat bool               `json:"apply_virtual_vat"`
	Tag             pgtype.Text        `json:"tag"`
	CreatedBy       pgtype.UUID        `json:"created_by"`
	CreatedAt       pgtype.Timestamptz `json:"created_at"`
	UpdatedAt       pgtype.Timestamptz `json:"updated_at"`
}

type SaleOrderLine struct {
	ID           uuid.UUID      `json:"id"`
	OrderID      uuid.UUID      `json:"order_id"`
	ParentLineID pgtype.UUID    `json:"parent_line_id"`
	Sequence     int32          `json:"sequence"`
	ProductID    pgtype.UUID    `json:"product_id"`
	Name         string         `json:"name"`
	Quantity     pgtype.Numeric `json:"quantity"`
	Uom          string         `json:"uom"`
	PriceUnit    pgtype.Numeric `json:"price_unit"`
	TaxIds       []uuid.UUID    `json:"tax_ids"`
	DisplayType  pgtype.Text    `json:"display_type"`
	IsComboChild bool           `json:"is_combo_child"`
	SkipMovement bool           `json:"skip_movement"`
	NeedsReview  bool           `json:"needs_review"`
	QtyInvoiced  pgtype.Numeric `json:"qty_invoiced"`
}

type SaleOrderVirtualLine struct {
	ID           uuid.UUID      `json:"id"`
	OrderID      uuid.UUID      `json:"order_id"`
	SourceLineID pgtype.UUID    `json:"source_line_id"`
	Sequence     int32          `json:"sequence"`
	ProductID    pgtype.UUID    `json:"product_id"`
	Name         string         `json:"name"`
	Quantity     pgtype.Numeric `json:"quantity"`
	Uom          string         `json:"uom"`
	PriceUnit    pgtype.Numeric `json:"price_unit"`
	TaxIds       []uuid.UUID    `json:"tax_ids"`
}

type Invoice struct {
	ID            uuid.UUID          `json:"id"`
	OrderID       uuid.UUID          `json:"order_id"`
	Name          string             `json:"name"`
	PartnerName   string             `json:"partner_name"`
	State         string             `json:"state"`
	AmountUntaxed pgtype.Numeric     `json:"amount_untaxed"`
	AmountTax     pgtype.Numeric     `json:"amount_tax"`
	AmountTotal   pgtype.Numeric     `json:"amount_total"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
}

type InvoiceLine struct {
	ID           uuid.UUID      `json:"id"`
	InvoiceID    uuid.UUID      `json:"invoice_id"`
	SaleLineID   pgtype.UUID    `json:"sale_line_id"`
	Sequence     int32          `json:"sequence"`
	ProductID    pgtype.UUID    `json:"product_id"`
	Name         string         `json:"name"`
	Quantity     pgtype.Numeric `json:"quantity"`
	Uom          string         `json:"uom"`
	PriceUnit    pgtype.Numeric `json:"price_unit"`
	TaxIds       []uuid.UUID    `json:"tax_ids"`
	Account      pgtype.Text    `json:"account"`
	IsComboChild bool           `json:"is_combo_child"`
}

type StockMove struct {
	ID         uuid.UUID          `json:"id"`
	OrderID    uuid.UUID          `json:"order_id"`
	SaleLineID pgtype.UUID        `json:"sale_line_id"`
	ProductID  uuid.UUID          `json:"product_id"`
	Quantity   pgtype.Numeric     `json:"quantity"`
	Uom        string             `json:"uom"`
	State      string             `json:"state"`
	CreatedAt  pgtype.Timestamptz `json:"created_at"`
}

type BankNotification struct {
	ID            uuid.UUID          `json:"id"`
	TransactionID string             `json:"transaction_id"`
	TxnTime       pgtype.Text        `json:"txn_time"`
	BankAccount   pgtype.Text        `json:"bank_account"`
	Content       pgtype.Text        `json:"content"`
	Amount        pgtype.Numeric     `json:"amount"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
}

type AnnouncementTag struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Color int32     `json:"color"`
}

type Announcement struct {
	ID            uuid.UUID          `json:"id"`
	Title         string             `json:"title"`
	Content       string             `json:"content"`
	CoverImageKey pgtype.Text        `json:"cover_image_key"`
	TagIds        []uuid.UUID        `json:"tag_ids"`
	AuthorID      pgtype.UUID        `json:"author_id"`
	State         string             `json:"state"`
	PublishedAt   pgtype.Timestamptz `json:"published_at"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
}

type ProjectTask struct {
	ID           uuid.UUID          `json:"id"`
	ProjectID    uuid.UUID          `json:"project_id"`
	Name         string             `json:"name"`
	DateStart    pgtype.Timestamptz `json:"date_start"`
	DateDeadline pgtype.Timestamptz `json:"date_deadline"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
}

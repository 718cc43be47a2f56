package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices and totals go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product represents a catalog entry with its live stock level
type Product struct {
	ProductID     int64           `db:"product_id" json:"product_id"`
	ProductName   string          `db:"product_name" json:"product_name"`
	BrandName     string          `db:"brand_name" json:"brand_name"`
	Category      string          `db:"category" json:"category"`
	Price         decimal.Decimal `db:"price" json:"price"`
	StockQuantity int             `db:"stock_quantity" json:"stock_quantity"`
	Barcode       string          `db:"barcode" json:"barcode"`
	Unit          string          `db:"unit" json:"unit"`
	ProductUnit   string          `db:"product_unit" json:"product_unit"`
	Language      string          `db:"language" json:"language"`
	ExpiryDate    *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	AddedDate     time.Time       `db:"added_date" json:"added_date"`
	UpdatedAt     time.Time       `db:"updated_at" json:"-"`
}

// ProductPatch carries a partial product update. Nil fields are left as is.
// product_id is the business key and cannot be patched.
type ProductPatch struct {
	ProductName   *string          `json:"product_name"`
	BrandName     *string          `json:"brand_name"`
	Category      *string          `json:"category"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *int             `json:"stock_quantity"`
	Barcode       *string          `json:"barcode"`
	Unit          *string          `json:"unit"`
	ProductUnit   *string          `json:"product_unit"`
	Language      *string          `json:"language"`
	ExpiryDate    *time.Time       `json:"expiry_date"`
}

// Apply writes the non-nil patch fields onto p.
func (pp *ProductPatch) Apply(p *Product) {
	if pp.ProductName != nil {
		p.ProductName = *pp.ProductName
	}
	if pp.BrandName != nil {
		p.BrandName = *pp.BrandName
	}
	if pp.Category != nil {
		p.Category = *pp.Category
	}
	if pp.Price != nil {
		p.Price = *pp.Price
	}
	if pp.StockQuantity != nil {
		p.StockQuantity = *pp.StockQuantity
	}
	if pp.Barcode != nil {
		p.Barcode = *pp.Barcode
	}
	if pp.Unit != nil {
		p.Unit = *pp.Unit
	}
	if pp.ProductUnit != nil {
		p.ProductUnit = *pp.ProductUnit
	}
	if pp.Language != nil {
		p.Language = *pp.Language
	}
	if pp.ExpiryDate != nil {
		p.ExpiryDate = pp.ExpiryDate
	}
}

// Order represents a shop's order. Line items never change after placement;
// only IsApproved moves, and only from false to true.
type Order struct {
	BillID      string          `db:"bill_id" json:"billId"`
	Name        string          `db:"name" json:"name"`
	ShopName    string          `db:"shop_name" json:"shopname"`
	ShopID      int64           `db:"shop_id" json:"shopid"`
	IsApproved  bool            `db:"is_approved" json:"isApproved"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	OrderedAt   time.Time       `db:"ordered_at" json:"orderedAt"`
	Products    []OrderLine     `db:"-" json:"products"`
}

// OrderLine is a line item. ProductName is the catalog name at order time.
type OrderLine struct {
	BillID      string `db:"bill_id" json:"-"`
	Position    int    `db:"position" json:"-"`
	ProductID   int64  `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
	Quantity    int    `db:"quantity" json:"quantity"`
	Unit        string `db:"unit" json:"unit,omitempty"`
}

// Account roles
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Product languages
const (
	LanguageEnglish = "English"
	LanguageTamil   = "Tamil"
)

// Account is a shop (customer) or administrator login
type Account struct {
	ID           int64      `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	ShopName     *string    `db:"shop_name" json:"shopname,omitempty"`
	ShopID       *int64     `db:"shop_id" json:"shopid,omitempty"`
	AdminID      *int64     `db:"admin_id" json:"adminid,omitempty"`
	Role         string     `db:"role" json:"role"`
	Email        string     `db:"email" json:"email"`
	Phone        string     `db:"phone" json:"phone"`
	PasswordHash string     `db:"password_hash" json:"-"`
	OTP          *string    `db:"otp" json:"-"`
	OTPExpires   *time.Time `db:"otp_expires" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// IsCustomer reports whether the account belongs to a shop.
func (a *Account) IsCustomer() bool {
	return a.Role == RoleCustomer
}

// IdempotencyRecord is what a client request key is bound to: the request
// fingerprint, and the bill id once the placement committed.
type IdempotencyRecord struct {
	Fingerprint string
	BillID      string
}

// Pending reports whether the placement behind the key has not finished.
func (r IdempotencyRecord) Pending() bool {
	return r.BillID == ""
}

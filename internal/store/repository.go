package store

import (
	"context"
	"errors"
	"time"

	"retail-order-service/internal/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyApproved   = errors.New("order already approved")
	ErrDuplicate         = errors.New("duplicate key")
)

// DuplicateError names the unique field that rejected a write.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return "duplicate " + e.Field
}

func (e *DuplicateError) Unwrap() error {
	return ErrDuplicate
}

// ProductRepository persists the catalog. ReserveStock and RestoreStock are
// the only relative stock writers.
type ProductRepository interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, productID int64) (*models.Product, error)
	// FindProductConflicts returns products sharing the id, name or barcode.
	FindProductConflicts(ctx context.Context, productID int64, name, barcode string) ([]models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	UpdateProduct(ctx context.Context, productID int64, patch *models.ProductPatch) (*models.Product, error)
	DeleteProduct(ctx context.Context, productID int64) error

	// ReserveStock decrements stock by quantity only if enough is available.
	// It returns ErrNotFound when the product is absent, and the current
	// product together with ErrInsufficientStock when stock is short.
	ReserveStock(ctx context.Context, productID int64, quantity int) (*models.Product, error)
	// RestoreStock adds quantity back. ErrNotFound when the product is gone.
	RestoreStock(ctx context.Context, productID int64, quantity int) error
}

// OrderRepository persists orders with their line items.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, billID string) (*models.Order, error)
	// ApproveOrder flips isApproved only when it is still false. It returns
	// ErrNotFound or ErrAlreadyApproved otherwise.
	ApproveOrder(ctx context.Context, billID string) (*models.Order, error)
	// DeletePendingOrder removes an unapproved order and returns it with its
	// lines. It returns ErrNotFound or ErrAlreadyApproved otherwise.
	DeletePendingOrder(ctx context.Context, billID string) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	ListOrdersByShop(ctx context.Context, shopID int64) ([]models.Order, error)
}

// AccountRepository persists shop and administrator accounts.
type AccountRepository interface {
	// CreateAccount assigns ID and, by role, ShopID or AdminID.
	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccountByShopID(ctx context.Context, shopID int64) (*models.Account, error)
	FindAccountsByNumber(ctx context.Context, number int64) ([]models.Account, error)
	FindAccountsByShopName(ctx context.Context, shopName string) ([]models.Account, error)
	ListAccountsByRole(ctx context.Context, role string) ([]models.Account, error)
	SetOTP(ctx context.Context, accountID int64, otp string, expires time.Time) error
	// ClearOTP drops the OTP and, when passwordHash is non-empty, replaces the credential.
	ClearOTP(ctx context.Context, accountID int64, passwordHash string) error
	PurgeExpiredOTPs(ctx context.Context, now time.Time) (int64, error)
}

// Repository is the full persistence surface. InTx runs fn against a
// transactional view; any error from fn rolls every write back. Nested calls
// reuse the outer transaction.
type Repository interface {
	ProductRepository
	OrderRepository
	AccountRepository
	InTx(ctx context.Context, fn func(tx Repository) error) error
}

package store

import (
	"context"
	"fmt"
	"time"

	"retail-order-service/internal/models"
)

const accountColumns = `id, name, shop_name, shop_id, admin_id, role, email, phone,
	password_hash, otp, otp_expires, created_at`

// CreateAccount inserts an account, drawing its shop or admin number from
// the shared account number sequence
func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	var number int64
	if err := s.get(ctx, &number, "SELECT nextval('account_number_seq')"); err != nil {
		return fmt.Errorf("failed to allocate account number: %w", err)
	}

	switch a.Role {
	case models.RoleCustomer:
		a.ShopID = &number
	case models.RoleAdmin:
		a.AdminID = &number
	}

	query := `
		INSERT INTO accounts (name, shop_name, shop_id, admin_id, role, email, phone, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	return s.get(ctx, a, query,
		a.Name, a.ShopName, a.ShopID, a.AdminID, a.Role, a.Email, a.Phone, a.PasswordHash)
}

// GetAccountByEmail retrieves an account by exact (lowercased) email
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	if err := s.get(ctx, &a, "SELECT "+accountColumns+" FROM accounts WHERE email = LOWER($1)", email); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccountByShopID retrieves the customer account owning a shop
func (s *Store) GetAccountByShopID(ctx context.Context, shopID int64) (*models.Account, error) {
	var a models.Account
	if err := s.get(ctx, &a, "SELECT "+accountColumns+" FROM accounts WHERE shop_id = $1", shopID); err != nil {
		return nil, err
	}
	return &a, nil
}

// FindAccountsByNumber matches either a shop id or an admin id
func (s *Store) FindAccountsByNumber(ctx context.Context, number int64) ([]models.Account, error) {
	accounts := []models.Account{}
	err := s.selectAll(ctx, &accounts,
		"SELECT "+accountColumns+" FROM accounts WHERE shop_id = $1 OR admin_id = $1 ORDER BY id", number)
	return accounts, err
}

// FindAccountsByShopName matches the whole shop name case-insensitively
func (s *Store) FindAccountsByShopName(ctx context.Context, shopName string) ([]models.Account, error) {
	accounts := []models.Account{}
	err := s.selectAll(ctx, &accounts,
		"SELECT "+accountColumns+" FROM accounts WHERE LOWER(shop_name) = LOWER($1) ORDER BY id", shopName)
	return accounts, err
}

// ListAccountsByRole retrieves all accounts with the given role
func (s *Store) ListAccountsByRole(ctx context.Context, role string) ([]models.Account, error) {
	accounts := []models.Account{}
	err := s.selectAll(ctx, &accounts,
		"SELECT "+accountColumns+" FROM accounts WHERE role = $1 ORDER BY id", role)
	return accounts, err
}

// SetOTP stores a password reset code with its expiry
func (s *Store) SetOTP(ctx context.Context, accountID int64, otp string, expires time.Time) error {
	n, err := s.exec(ctx, "UPDATE accounts SET otp = $1, otp_expires = $2 WHERE id = $3", otp, expires, accountID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearOTP drops the reset code and optionally replaces the password hash
func (s *Store) ClearOTP(ctx context.Context, accountID int64, passwordHash string) error {
	n, err := s.exec(ctx, `
		UPDATE accounts SET otp = NULL, otp_expires = NULL,
			password_hash = COALESCE(NULLIF($1, ''), password_hash)
		WHERE id = $2`, passwordHash, accountID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeExpiredOTPs clears reset codes whose expiry has passed
func (s *Store) PurgeExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	return s.exec(ctx, "UPDATE accounts SET otp = NULL, otp_expires = NULL WHERE otp_expires < $1", now)
}

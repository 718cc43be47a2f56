package store

import (
	"context"
	"errors"
	"fmt"

	"retail-order-service/internal/models"
)

const productColumns = `product_id, product_name, brand_name, category, price, stock_quantity,
	barcode, unit, product_unit, language, expiry_date, added_date, updated_at`

// CreateProduct inserts a catalog entry
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (product_id, product_name, brand_name, category, price, stock_quantity,
			barcode, unit, product_unit, language, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING added_date, updated_at`

	return s.get(ctx, p, query,
		p.ProductID, p.ProductName, p.BrandName, p.Category, p.Price, p.StockQuantity,
		p.Barcode, p.Unit, p.ProductUnit, p.Language, p.ExpiryDate)
}

// GetProduct retrieves a product by its business id
func (s *Store) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	var p models.Product
	err := s.get(ctx, &p, "SELECT "+productColumns+" FROM products WHERE product_id = $1", productID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindProductConflicts retrieves products colliding on any unique field
func (s *Store) FindProductConflicts(ctx context.Context, productID int64, name, barcode string) ([]models.Product, error) {
	products := []models.Product{}
	err := s.selectAll(ctx, &products,
		"SELECT "+productColumns+" FROM products WHERE product_id = $1 OR product_name = $2 OR barcode = $3",
		productID, name, barcode)
	return products, err
}

// ListProducts retrieves the whole catalog
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.selectAll(ctx, &products, "SELECT "+productColumns+" FROM products ORDER BY product_id")
	return products, err
}

// UpdateProduct applies a partial update under a row lock
func (s *Store) UpdateProduct(ctx context.Context, productID int64, patch *models.ProductPatch) (*models.Product, error) {
	var updated *models.Product
	err := s.InTx(ctx, func(tx Repository) error {
		ts := tx.(*Store)

		var p models.Product
		if err := ts.get(ctx, &p,
			"SELECT "+productColumns+" FROM products WHERE product_id = $1 FOR UPDATE", productID); err != nil {
			return err
		}
		patch.Apply(&p)

		query := `
			UPDATE products SET product_name = $1, brand_name = $2, category = $3, price = $4,
				stock_quantity = $5, barcode = $6, unit = $7, product_unit = $8, language = $9,
				expiry_date = $10, updated_at = NOW()
			WHERE product_id = $11
			RETURNING ` + productColumns

		var out models.Product
		if err := ts.get(ctx, &out, query,
			p.ProductName, p.BrandName, p.Category, p.Price, p.StockQuantity, p.Barcode,
			p.Unit, p.ProductUnit, p.Language, p.ExpiryDate, productID); err != nil {
			return err
		}
		updated = &out
		return nil
	})
	return updated, err
}

// DeleteProduct removes a product from the catalog
func (s *Store) DeleteProduct(ctx context.Context, productID int64) error {
	n, err := s.exec(ctx, "DELETE FROM products WHERE product_id = $1", productID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReserveStock atomically decrements stock when enough is available
func (s *Store) ReserveStock(ctx context.Context, productID int64, quantity int) (*models.Product, error) {
	query := `
		UPDATE products SET stock_quantity = stock_quantity - $1, updated_at = NOW()
		WHERE product_id = $2 AND stock_quantity >= $1
		RETURNING ` + productColumns

	var p models.Product
	err := s.get(ctx, &p, query, quantity, productID)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to reserve stock: %w", err)
	}

	// Zero rows: either the product is gone or stock is short.
	current, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return current, ErrInsufficientStock
}

// RestoreStock adds quantity back to a product (compensation)
func (s *Store) RestoreStock(ctx context.Context, productID int64, quantity int) error {
	n, err := s.exec(ctx,
		"UPDATE products SET stock_quantity = stock_quantity + $1, updated_at = NOW() WHERE product_id = $2",
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

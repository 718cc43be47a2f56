package store

import (
	"context"
	"errors"
	"fmt"

	"retail-order-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const orderColumns = "bill_id, name, shop_name, shop_id, is_approved, total_amount, ordered_at"

// CreateOrder inserts an order and its line items
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	return s.InTx(ctx, func(tx Repository) error {
		ts := tx.(*Store)

		query := `
			INSERT INTO orders (bill_id, name, shop_name, shop_id, is_approved, total_amount, ordered_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if _, err := ts.exec(ctx, query,
			order.BillID, order.Name, order.ShopName, order.ShopID,
			order.IsApproved, order.TotalAmount, order.OrderedAt); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		for i := range order.Products {
			line := &order.Products[i]
			line.BillID = order.BillID
			line.Position = i
			if _, err := ts.exec(ctx, `
				INSERT INTO order_lines (bill_id, position, product_id, product_name, quantity, unit)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				line.BillID, line.Position, line.ProductID, line.ProductName, line.Quantity, line.Unit); err != nil {
				return fmt.Errorf("failed to insert order line: %w", err)
			}
		}
		return nil
	})
}

// GetOrder retrieves an order with its lines
func (s *Store) GetOrder(ctx context.Context, billID string) (*models.Order, error) {
	var order models.Order
	if err := s.get(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE bill_id = $1", billID); err != nil {
		return nil, err
	}
	if err := s.attachLines(ctx, []*models.Order{&order}); err != nil {
		return nil, err
	}
	return &order, nil
}

// ApproveOrder approves an order only while it is still pending
func (s *Store) ApproveOrder(ctx context.Context, billID string) (*models.Order, error) {
	var order models.Order
	err := s.get(ctx, &order,
		"UPDATE orders SET is_approved = TRUE WHERE bill_id = $1 AND NOT is_approved RETURNING "+orderColumns,
		billID)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := s.GetOrder(ctx, billID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrAlreadyApproved
	}
	if err != nil {
		return nil, err
	}

	if err := s.attachLines(ctx, []*models.Order{&order}); err != nil {
		return nil, err
	}
	return &order, nil
}

// DeletePendingOrder locks, loads and deletes an unapproved order
func (s *Store) DeletePendingOrder(ctx context.Context, billID string) (*models.Order, error) {
	var deleted *models.Order
	err := s.InTx(ctx, func(tx Repository) error {
		ts := tx.(*Store)

		var order models.Order
		if err := ts.get(ctx, &order,
			"SELECT "+orderColumns+" FROM orders WHERE bill_id = $1 FOR UPDATE", billID); err != nil {
			return err
		}
		if order.IsApproved {
			return ErrAlreadyApproved
		}
		if err := ts.attachLines(ctx, []*models.Order{&order}); err != nil {
			return err
		}
		if _, err := ts.exec(ctx, "DELETE FROM orders WHERE bill_id = $1", billID); err != nil {
			return fmt.Errorf("failed to delete order: %w", err)
		}
		deleted = &order
		return nil
	})
	return deleted, err
}

// ListOrders retrieves all orders, newest first
func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders := []models.Order{}
	if err := s.selectAll(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders ORDER BY ordered_at DESC, bill_id DESC"); err != nil {
		return nil, err
	}
	return orders, s.attachLinesToSlice(ctx, orders)
}

// ListOrdersByShop retrieves a shop's orders, newest first
func (s *Store) ListOrdersByShop(ctx context.Context, shopID int64) ([]models.Order, error) {
	orders := []models.Order{}
	if err := s.selectAll(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE shop_id = $1 ORDER BY ordered_at DESC, bill_id DESC",
		shopID); err != nil {
		return nil, err
	}
	return orders, s.attachLinesToSlice(ctx, orders)
}

func (s *Store) attachLinesToSlice(ctx context.Context, orders []models.Order) error {
	ptrs := make([]*models.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	return s.attachLines(ctx, ptrs)
}

// attachLines loads line items for all given orders in one query
func (s *Store) attachLines(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byBill := make(map[string]*models.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		o.Products = []models.OrderLine{}
		byBill[o.BillID] = o
		ids = append(ids, o.BillID)
	}

	query, args, err := sqlx.In(
		"SELECT bill_id, position, product_id, product_name, quantity, unit FROM order_lines WHERE bill_id IN (?) ORDER BY bill_id, position",
		ids)
	if err != nil {
		return err
	}
	query = s.q.Rebind(query)

	var lines []models.OrderLine
	if err := s.selectAll(ctx, &lines, query, args...); err != nil {
		return fmt.Errorf("failed to load order lines: %w", err)
	}
	for _, l := range lines {
		if o, ok := byBill[l.BillID]; ok {
			o.Products = append(o.Products, l)
		}
	}
	return nil
}

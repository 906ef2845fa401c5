package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const orderColumns = "id, user_id, vendor_id, status, total_amount, delivery_address, vendor_address_snapshot, idempotency_key, created_at, updated_at"

// PlaceOrder creates the order, its items and the stock decrements in one
// transaction. When an order with the same idempotency key already exists
// nothing is written, order is overwritten with the existing row and
// created is false.
func (s *Store) PlaceOrder(ctx context.Context, order *models.Order, items []models.OrderItem) (created bool, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	insertOrder := `
		INSERT INTO orders (id, user_id, vendor_id, status, total_amount, delivery_address, vendor_address_snapshot, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING created_at, updated_at`

	err = tx.GetContext(ctx, order, insertOrder,
		order.ID, order.UserID, order.VendorID, order.Status, order.TotalAmount,
		order.DeliveryAddress, order.VendorAddressSnapshot, order.IdempotencyKey)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		existing, err := s.GetOrderByIdempotencyKey(ctx, order.IdempotencyKey)
		if err != nil {
			return false, err
		}
		if existing == nil {
			return false, fmt.Errorf("idempotency key %s conflicted but no order found", order.IdempotencyKey)
		}
		*order = *existing
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert order: %w", err)
	}

	// Lock product rows in a stable order so concurrent checkouts cannot deadlock.
	byProduct := make([]models.OrderItem, len(items))
	copy(byProduct, items)
	sort.Slice(byProduct, func(i, j int) bool { return byProduct[i].ProductID < byProduct[j].ProductID })

	for _, item := range byProduct {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET stock_quantity = stock_quantity - $1, updated_at = NOW()
			 WHERE id = $2 AND stock_quantity >= $1`,
			item.Quantity, item.ProductID)
		if err != nil {
			return false, fmt.Errorf("failed to decrement stock: %w", err)
		}
		if err := requireRow(res, apperr.New(apperr.KindInsufficientStock,
			"not enough stock left for %s", item.ProductName)); err != nil {
			return false, err
		}
	}

	for i := range items {
		items[i].OrderID = order.ID
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, product_price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			items[i].ID, items[i].OrderID, items[i].ProductID, items[i].ProductName, items[i].ProductPrice, items[i].Quantity)
		if err != nil {
			return false, fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	order.Items = items
	return true, nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("order", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns orders matching the filter, newest first
func (s *Store) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE TRUE"
	var args []interface{}

	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.VendorID != "" {
		query += " AND vendor_id = ?"
		args = append(args, filter.VendorID)
	}
	if len(filter.Statuses) > 0 {
		query += " AND status IN (?)"
		args = append(args, filter.Statuses)
	}
	if filter.NewestByUpdated {
		query += " ORDER BY updated_at DESC"
	} else {
		query += " ORDER BY created_at DESC"
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	orders := []models.Order{}
	err = s.db.SelectContext(ctx, &orders, query, args...)
	return orders, err
}

// GetOrderItemsByOrderIDs retrieves the items of several orders at once
func (s *Store) GetOrderItemsByOrderIDs(ctx context.Context, orderIDs []string) ([]models.OrderItem, error) {
	if len(orderIDs) == 0 {
		return []models.OrderItem{}, nil
	}

	query, args, err := sqlx.In(
		"SELECT id, order_id, product_id, product_name, product_price, quantity FROM order_items WHERE order_id IN (?) ORDER BY product_name",
		orderIDs)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.OrderItem
	err = s.db.SelectContext(ctx, &items, query, args...)
	return items, err
}

// TransitionOrderStatus moves an order from one status to another only if it
// is still in the expected status, and records the change in the history.
func (s *Store) TransitionOrderStatus(ctx context.Context, orderID string, from, to models.OrderStatus, actorID string, role models.Role) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		to, orderID, from)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if err := requireRow(res, apperr.New(apperr.KindIllegalTransition,
		"order %s is no longer %s", orderID, from)); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_status_history (id, order_id, from_status, to_status, changed_by, actor_role)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), orderID, from, to, actorID, role)
	if err != nil {
		return fmt.Errorf("failed to record status history: %w", err)
	}

	return tx.Commit()
}

// ListOrderStatusHistory returns an order's status changes, oldest first
func (s *Store) ListOrderStatusHistory(ctx context.Context, orderID string) ([]models.OrderStatusHistory, error) {
	history := []models.OrderStatusHistory{}
	err := s.db.SelectContext(ctx, &history, `
		SELECT id, order_id, from_status, to_status, changed_by, actor_role, created_at
		FROM order_status_history WHERE order_id = $1 ORDER BY created_at ASC`, orderID)
	return history, err
}

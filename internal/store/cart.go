package store

import (
	"context"
	"database/sql"
	"errors"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"
)

const cartColumns = "id, user_id, product_id, vendor_id, quantity, created_at"

// ListCartItems returns a user's cart lines in insertion order
func (s *Store) ListCartItems(ctx context.Context, userID string) ([]models.CartItem, error) {
	items := []models.CartItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT "+cartColumns+" FROM cart_items WHERE user_id = $1 ORDER BY created_at ASC, id ASC", userID)
	return items, err
}

// GetCartItem retrieves one of the user's cart lines
func (s *Store) GetCartItem(ctx context.Context, id, userID string) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.GetContext(ctx, &item,
		"SELECT "+cartColumns+" FROM cart_items WHERE id = $1 AND user_id = $2", id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("cart item", id)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// InsertCartItem adds a line only if the user's cart holds no line from a
// different vendor, so the single-vendor rule also holds for concurrent
// sessions of the same customer.
func (s *Store) InsertCartItem(ctx context.Context, item *models.CartItem) error {
	query := `
		INSERT INTO cart_items (id, user_id, product_id, vendor_id, quantity)
		SELECT $1::uuid, $2::uuid, $3::uuid, $4::uuid, $5::integer
		WHERE NOT EXISTS (
			SELECT 1 FROM cart_items WHERE user_id = $2 AND vendor_id <> $4
		)
		RETURNING created_at`

	err := s.db.GetContext(ctx, &item.CreatedAt, query,
		item.ID, item.UserID, item.ProductID, item.VendorID, item.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.New(apperr.KindVendorConflict,
			"your cart already has items from another store; clear it or complete your current order")
	}
	return err
}

// UpdateCartItemQuantity sets the quantity of one of the user's lines
func (s *Store) UpdateCartItemQuantity(ctx context.Context, id, userID string, quantity int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1 WHERE id = $2 AND user_id = $3", quantity, id, userID)
	if err != nil {
		return err
	}
	return requireRow(res, apperr.NotFound("cart item", id))
}

// DeleteCartItem removes a line; deleting a missing line is not an error
func (s *Store) DeleteCartItem(ctx context.Context, id, userID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE id = $1 AND user_id = $2", id, userID)
	return err
}

// ClearCart removes every line of the user's cart
func (s *Store) ClearCart(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID)
	return err
}

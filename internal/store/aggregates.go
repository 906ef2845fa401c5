package store

import (
	"context"

	"marketplace-service/internal/models"
)

// CountUsersByRole returns the number of users per role
func (s *Store) CountUsersByRole(ctx context.Context) (map[models.Role]int, error) {
	var rows []struct {
		Role  models.Role `db:"role"`
		Count int         `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, "SELECT role, COUNT(*) AS n FROM user_roles GROUP BY role"); err != nil {
		return nil, err
	}

	counts := make(map[models.Role]int, len(rows))
	for _, r := range rows {
		counts[r.Role] = r.Count
	}
	return counts, nil
}

// OrderStatusTotals returns order count and amount grouped by status
func (s *Store) OrderStatusTotals(ctx context.Context) ([]models.StatusTotal, error) {
	totals := []models.StatusTotal{}
	err := s.db.SelectContext(ctx, &totals, `
		SELECT status, COUNT(*) AS order_count, COALESCE(SUM(total_amount), 0) AS amount
		FROM orders GROUP BY status ORDER BY status`)
	return totals, err
}

// VendorRoster returns every vendor profile with its product and order
// counts, grouped in the database rather than by pulling whole tables.
func (s *Store) VendorRoster(ctx context.Context) ([]models.VendorRosterEntry, error) {
	roster := []models.VendorRosterEntry{}
	err := s.db.SelectContext(ctx, &roster, `
		SELECT `+profileColumns+`,
		       COALESCE(pc.n, 0) AS product_count,
		       COALESCE(oc.n, 0) AS order_count
		FROM profiles p
		JOIN user_roles r ON r.user_id = p.user_id AND r.role = 'vendor'
		LEFT JOIN (SELECT vendor_id, COUNT(*) AS n FROM products GROUP BY vendor_id) pc ON pc.vendor_id = p.user_id
		LEFT JOIN (SELECT vendor_id, COUNT(*) AS n FROM orders GROUP BY vendor_id) oc ON oc.vendor_id = p.user_id
		ORDER BY p.created_at DESC`)
	return roster, err
}

package store

import (
	"context"
	"database/sql"
	"errors"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const profileColumns = "p.user_id, p.full_name, p.store_name, p.phone, p.pickup_address_line, p.city, p.state, p.zip_code, p.is_active, p.approval_status, p.created_at"

// GetProfile retrieves a user's profile
func (s *Store) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.GetContext(ctx, &profile,
		"SELECT "+profileColumns+" FROM profiles p WHERE p.user_id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("profile", userID)
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetProfilesByUserIDs retrieves the profiles of several users
func (s *Store) GetProfilesByUserIDs(ctx context.Context, userIDs []string) ([]models.Profile, error) {
	if len(userIDs) == 0 {
		return []models.Profile{}, nil
	}

	query, args, err := sqlx.In("SELECT "+profileColumns+" FROM profiles p WHERE p.user_id IN (?)", userIDs)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var profiles []models.Profile
	err = s.db.SelectContext(ctx, &profiles, query, args...)
	return profiles, err
}

// GetRole returns the role assigned to a user
func (s *Store) GetRole(ctx context.Context, userID string) (models.Role, error) {
	var role models.Role
	err := s.db.GetContext(ctx, &role, "SELECT role FROM user_roles WHERE user_id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.NotFound("role assignment", userID)
	}
	return role, err
}

// ListProfilesByRole returns the profiles of every user holding role, newest first
func (s *Store) ListProfilesByRole(ctx context.Context, role models.Role) ([]models.Profile, error) {
	profiles := []models.Profile{}
	err := s.db.SelectContext(ctx, &profiles, `
		SELECT `+profileColumns+`
		FROM profiles p JOIN user_roles r ON r.user_id = p.user_id
		WHERE r.role = $1
		ORDER BY p.created_at DESC`, role)
	return profiles, err
}

// ListPendingVendors returns vendor profiles awaiting review, newest first
func (s *Store) ListPendingVendors(ctx context.Context) ([]models.Profile, error) {
	profiles := []models.Profile{}
	err := s.db.SelectContext(ctx, &profiles, `
		SELECT `+profileColumns+`
		FROM profiles p JOIN user_roles r ON r.user_id = p.user_id
		WHERE r.role = 'vendor' AND p.approval_status = 'pending'
		ORDER BY p.created_at DESC`)
	return profiles, err
}

// UpdateStoreProfile rewrites the vendor-editable profile fields
func (s *Store) UpdateStoreProfile(ctx context.Context, userID string, upd models.StoreProfileUpdate) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.GetContext(ctx, &profile, `
		UPDATE profiles p
		SET full_name = $1, store_name = $2, phone = $3, pickup_address_line = $4,
		    city = $5, state = $6, zip_code = $7
		WHERE p.user_id = $8
		RETURNING `+profileColumns,
		upd.FullName, upd.StoreName, upd.Phone, upd.PickupAddressLine, upd.City, upd.State, upd.ZipCode, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("profile", userID)
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// SetVendorActive suspends or reinstates a vendor
func (s *Store) SetVendorActive(ctx context.Context, userID string, active bool) (*models.Profile, error) {
	return s.updateVendor(ctx, "is_active = $1", active, userID)
}

// SetVendorApproval records the admin review outcome for a vendor
func (s *Store) SetVendorApproval(ctx context.Context, userID string, status models.ApprovalStatus) (*models.Profile, error) {
	return s.updateVendor(ctx, "approval_status = $1", status, userID)
}

func (s *Store) updateVendor(ctx context.Context, set string, value interface{}, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.GetContext(ctx, &profile, `
		UPDATE profiles p SET `+set+`
		FROM user_roles r
		WHERE r.user_id = p.user_id AND r.role = 'vendor' AND p.user_id = $2
		RETURNING `+profileColumns,
		value, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("vendor", userID)
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

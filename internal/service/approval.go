package service

import (
	"context"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/auth"
	"marketplace-service/internal/models"
	"marketplace-service/internal/util"
)

// DashboardAccess is what a vendor may do on their dashboard
type DashboardAccess string

const (
	AccessBlocked  DashboardAccess = "blocked"
	AccessReadOnly DashboardAccess = "read_only"
	AccessFull     DashboardAccess = "full"
)

// ApprovalStateOf returns the vendor's approval state. Missing or unknown
// values count as pending.
func ApprovalStateOf(p *models.Profile) models.ApprovalStatus {
	if p == nil || !p.ApprovalStatus.Valid() {
		return models.ApprovalPending
	}
	return p.ApprovalStatus
}

// CanMutate reports whether the vendor may change products or their store profile
func CanMutate(p *models.Profile) bool {
	return ApprovalStateOf(p) == models.ApprovalApproved && p.IsActive
}

// AccessFor maps a vendor profile to its dashboard access level
func AccessFor(p *models.Profile) DashboardAccess {
	switch {
	case ApprovalStateOf(p) != models.ApprovalApproved:
		return AccessBlocked
	case !p.IsActive:
		return AccessReadOnly
	default:
		return AccessFull
	}
}

// gateError explains why the vendor is blocked
func gateError(p *models.Profile) error {
	switch ApprovalStateOf(p) {
	case models.ApprovalPending:
		return apperr.New(apperr.KindVendorBlocked, "your store is awaiting admin approval")
	case models.ApprovalRejected:
		return apperr.New(apperr.KindVendorBlocked, "your store application was rejected")
	}
	return apperr.New(apperr.KindVendorBlocked, "your store is suspended; contact support to reactivate it")
}

func gateLabel(p *models.Profile) string {
	if s := ApprovalStateOf(p); s != models.ApprovalApproved {
		return string(s)
	}
	return "suspended"
}

// vendorGate loads the acting vendor's profile and applies the approval gate
type vendorGate struct {
	profiles ProfileStore
}

func (g vendorGate) profile(ctx context.Context, sess *auth.Session) (*models.Profile, error) {
	if err := auth.RequireRole(sess, models.RoleVendor); err != nil {
		return nil, err
	}
	p, err := g.profiles.GetProfile(ctx, sess.UserID)
	if err != nil {
		return nil, apperr.Backend("failed to load vendor profile", err)
	}
	return p, nil
}

// forRead allows approved vendors, suspended or not
func (g vendorGate) forRead(ctx context.Context, sess *auth.Session) (*models.Profile, error) {
	p, err := g.profile(ctx, sess)
	if err != nil {
		return nil, err
	}
	if AccessFor(p) == AccessBlocked {
		util.VendorGateRejections.WithLabelValues(gateLabel(p)).Inc()
		return nil, gateError(p)
	}
	return p, nil
}

// forMutation allows only approved, active vendors and is checked before any write
func (g vendorGate) forMutation(ctx context.Context, sess *auth.Session) (*models.Profile, error) {
	p, err := g.profile(ctx, sess)
	if err != nil {
		return nil, err
	}
	if !CanMutate(p) {
		util.VendorGateRejections.WithLabelValues(gateLabel(p)).Inc()
		return nil, gateError(p)
	}
	return p, nil
}

// Package lifecycle holds the order status transition table and the per-role
// rights to apply each transition.
package lifecycle

import (
	"strings"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"
)

// Transition defines a valid state change and the role allowed to perform it
type Transition struct {
	From models.OrderStatus `json:"from"`
	To   models.OrderStatus `json:"to"`
	Role models.Role        `json:"role"`
}

// table is the closed set of legal transitions
var table = []Transition{
	{From: models.OrderStatusPending, To: models.OrderStatusAccepted, Role: models.RoleVendor},
	{From: models.OrderStatusPending, To: models.OrderStatusCancelled, Role: models.RoleVendor},
	{From: models.OrderStatusAccepted, To: models.OrderStatusReadyForPickup, Role: models.RoleVendor},
	{From: models.OrderStatusAccepted, To: models.OrderStatusCancelled, Role: models.RoleVendor},
	{From: models.OrderStatusReadyForPickup, To: models.OrderStatusPickedUp, Role: models.RoleDelivery},
	{From: models.OrderStatusPickedUp, To: models.OrderStatusDelivered, Role: models.RoleDelivery},
}

var allowed = func() map[Transition]bool {
	m := make(map[Transition]bool, len(table))
	for _, t := range table {
		m[t] = true
	}
	return m
}()

// DeliveryActiveStatuses are the states shown on the delivery partner's work list
var DeliveryActiveStatuses = []models.OrderStatus{
	models.OrderStatusReadyForPickup,
	models.OrderStatusPickedUp,
}

// Check returns nil when role may move an order from one status to the other,
// and an IllegalTransition error otherwise.
func Check(from, to models.OrderStatus, role models.Role) error {
	if allowed[Transition{From: from, To: to, Role: role}] {
		return nil
	}
	next := NextFor(from, role)
	if len(next) == 0 {
		return apperr.New(apperr.KindIllegalTransition,
			"%s cannot move an order from %s to %s (no transitions available)", role, from, to)
	}
	names := make([]string, len(next))
	for i, s := range next {
		names[i] = string(s)
	}
	return apperr.New(apperr.KindIllegalTransition,
		"%s cannot move an order from %s to %s (allowed: %s)", role, from, to, strings.Join(names, ", "))
}

// NextFor returns the statuses role may move an order to from the given status
func NextFor(from models.OrderStatus, role models.Role) []models.OrderStatus {
	var next []models.OrderStatus
	for _, t := range table {
		if t.From == from && t.Role == role {
			next = append(next, t.To)
		}
	}
	return next
}

// IsTerminal reports whether no transition leaves s
func IsTerminal(s models.OrderStatus) bool {
	for _, t := range table {
		if t.From == s {
			return false
		}
	}
	return true
}

// IsDeliveryVisible reports whether delivery partners may see an order in s
func IsDeliveryVisible(s models.OrderStatus) bool {
	return s == models.OrderStatusReadyForPickup ||
		s == models.OrderStatusPickedUp ||
		s == models.OrderStatusDelivered
}

// Transitions returns a copy of the full table for documentation endpoints
func Transitions() []Transition {
	out := make([]Transition, len(table))
	copy(out, table)
	return out
}

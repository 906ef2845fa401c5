package broker

import (
	"context"
	"encoding/json"
	"testing"

	"marketplace-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	keys   []string
	events [][]byte
}

func (c *capturePublisher) PublishEvent(ctx context.Context, key string, event interface{}) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	c.keys = append(c.keys, key)
	c.events = append(c.events, raw)
	return nil
}

func TestPublishedEventsRouteBackToHandlers(t *testing.T) {
	ctx := context.Background()
	sink := &capturePublisher{}
	pub := NewEventPublisher(sink)

	order := &models.Order{
		ID:          "o-1",
		UserID:      "u-1",
		VendorID:    "v-1",
		Status:      models.OrderStatusAccepted,
		TotalAmount: decimal.RequireFromString("80.00"),
		Items: []models.OrderItem{
			{ProductID: "p-1", ProductName: "Mango", ProductPrice: decimal.RequireFromString("40.00"), Quantity: 2},
		},
	}

	require.NoError(t, pub.PublishOrderPlaced(ctx, order))
	require.NoError(t, pub.PublishOrderStatusChanged(ctx, order, models.OrderStatusPending, "v-1", models.RoleVendor))
	require.NoError(t, pub.PublishVendorStatusChanged(ctx, &models.Profile{UserID: "v-1", ApprovalStatus: models.ApprovalApproved}))

	assert.Equal(t, []string{"order-o-1", "order-o-1", "vendor-v-1"}, sink.keys)

	var placed *models.OrderPlacedEvent
	var changed *models.OrderStatusChangedEvent
	var vendor *models.VendorStatusChangedEvent

	h := NewEventHandler()
	h.OnOrderPlaced(func(_ context.Context, e *models.OrderPlacedEvent) error { placed = e; return nil })
	h.OnOrderStatusChanged(func(_ context.Context, e *models.OrderStatusChangedEvent) error { changed = e; return nil })
	h.OnVendorStatusChanged(func(_ context.Context, e *models.VendorStatusChangedEvent) error { vendor = e; return nil })

	for _, raw := range sink.events {
		require.NoError(t, h.Handle(ctx, raw))
	}

	require.NotNil(t, placed)
	assert.Equal(t, "o-1", placed.OrderID)
	assert.True(t, placed.TotalAmount.Equal(decimal.RequireFromString("80")))
	require.Len(t, placed.Items, 1)
	assert.Equal(t, 2, placed.Items[0].Quantity)

	require.NotNil(t, changed)
	assert.Equal(t, models.OrderStatusPending, changed.FromStatus)
	assert.Equal(t, models.OrderStatusAccepted, changed.ToStatus)
	assert.Equal(t, models.RoleVendor, changed.ActorRole)

	require.NotNil(t, vendor)
	assert.Equal(t, models.ApprovalApproved, vendor.ApprovalStatus)
}

func TestHandleIgnoresUnknownTypes(t *testing.T) {
	h := NewEventHandler()
	assert.NoError(t, h.Handle(context.Background(), []byte(`{"event_type":"SOMETHING_ELSE"}`)))
	assert.Error(t, h.Handle(context.Background(), []byte(`not json`)))
}

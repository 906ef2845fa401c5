package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketplace-service/internal/broker"
	"marketplace-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	feeds map[string][]models.Notification
}

func (m *memorySink) PushNotification(ctx context.Context, userID string, n models.Notification) error {
	if m.feeds == nil {
		m.feeds = make(map[string][]models.Notification)
	}
	m.feeds[userID] = append(m.feeds[userID], n)
	return nil
}

func TestNotifierThroughEventHandler(t *testing.T) {
	ctx := context.Background()
	sink := &memorySink{}
	h := broker.NewEventHandler()
	NewNotifier(sink).Register(h)

	placed := []byte(`{"event_type":"ORDER_PLACED","order_id":"o-1","user_id":"u-1","vendor_id":"v-1",
		"total_amount":"80","items":[{"product_id":"p-1","product_name":"Mango","quantity":2,"product_price":"40"}]}`)
	require.NoError(t, h.Handle(ctx, placed))

	require.Len(t, sink.feeds["v-1"], 1)
	assert.Equal(t, "New order received", sink.feeds["v-1"][0].Title)
	assert.Equal(t, "2 item(s), total 80.00", sink.feeds["v-1"][0].Body)
	require.Len(t, sink.feeds["u-1"], 1)
	assert.Equal(t, "o-1", sink.feeds["u-1"][0].OrderID)
}

func TestOrderStatusChangedNotifications(t *testing.T) {
	ctx := context.Background()
	sink := &memorySink{}
	n := NewNotifier(sink)

	require.NoError(t, n.OrderStatusChanged(ctx, &models.OrderStatusChangedEvent{
		OrderID: "o-1", UserID: "u-1", VendorID: "v-1",
		FromStatus: models.OrderStatusPending, ToStatus: models.OrderStatusAccepted,
		ActorID: "v-1", ActorRole: models.RoleVendor,
	}))
	require.Len(t, sink.feeds["u-1"], 1)
	assert.Equal(t, "Order Accepted", sink.feeds["u-1"][0].Title)
	assert.Empty(t, sink.feeds["v-1"], "vendor is not told about its own change")

	require.NoError(t, n.OrderStatusChanged(ctx, &models.OrderStatusChangedEvent{
		OrderID: "o-1", UserID: "u-1", VendorID: "v-1",
		FromStatus: models.OrderStatusReadyForPickup, ToStatus: models.OrderStatusPickedUp,
		ActorID: "d-1", ActorRole: models.RoleDelivery,
	}))
	require.Len(t, sink.feeds["v-1"], 1)
	assert.Equal(t, "Order Picked Up", sink.feeds["v-1"][0].Title)
	assert.Equal(t, "Your order moved from Ready for Pickup to Picked Up", sink.feeds["u-1"][1].Body)
}

func TestVendorStatusChangedNotifications(t *testing.T) {
	tests := []struct {
		approval models.ApprovalStatus
		active   bool
		title    string
	}{
		{models.ApprovalApproved, true, "Store approved"},
		{models.ApprovalApproved, false, "Store suspended"},
		{models.ApprovalPending, true, "Store under review"},
		{models.ApprovalRejected, true, "Store application rejected"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			sink := &memorySink{}
			err := NewNotifier(sink).VendorStatusChanged(context.Background(), &models.VendorStatusChangedEvent{
				VendorID: "v-1", ApprovalStatus: tt.approval, IsActive: tt.active,
			})
			require.NoError(t, err)
			require.Len(t, sink.feeds["v-1"], 1)
			assert.Equal(t, tt.title, sink.feeds["v-1"][0].Title)
		})
	}
}

type countingWarmer struct {
	mu    sync.Mutex
	calls int
}

func (c *countingWarmer) WarmDeliveryViews(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 0, nil
}

func (c *countingWarmer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestDeliveryPollerRefreshesUntilCancelled(t *testing.T) {
	warmer := &countingWarmer{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- NewDeliveryPoller(warmer, 5*time.Millisecond).Start(ctx) }()

	assert.Eventually(t, func() bool { return warmer.count() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

package worker

import (
	"context"
	"fmt"
	"time"

	"marketplace-service/internal/broker"
	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

// NotificationSink stores feed entries for users
type NotificationSink interface {
	PushNotification(ctx context.Context, userID string, n models.Notification) error
}

// Notifier turns domain events into human-readable notifications
type Notifier struct {
	sink NotificationSink
	now  func() time.Time
}

// NewNotifier creates a new notifier
func NewNotifier(sink NotificationSink) *Notifier {
	return &Notifier{sink: sink, now: time.Now}
}

// Register wires the notifier into an event handler
func (n *Notifier) Register(h *broker.EventHandler) {
	h.OnOrderPlaced(n.OrderPlaced)
	h.OnOrderStatusChanged(n.OrderStatusChanged)
	h.OnVendorStatusChanged(n.VendorStatusChanged)
}

// OrderPlaced tells the vendor about the new order and confirms it to the customer
func (n *Notifier) OrderPlaced(ctx context.Context, e *models.OrderPlacedEvent) error {
	units := 0
	for _, item := range e.Items {
		units += item.Quantity
	}
	total := e.TotalAmount.StringFixed(2)

	if err := n.push(ctx, e.VendorID, e.OrderID, "New order received",
		fmt.Sprintf("%d item(s), total %s", units, total)); err != nil {
		return err
	}
	return n.push(ctx, e.UserID, e.OrderID, "Order placed",
		fmt.Sprintf("Your order of %s is waiting for the store to accept it", total))
}

// OrderStatusChanged tells the customer, and the vendor when someone else
// moved the order
func (n *Notifier) OrderStatusChanged(ctx context.Context, e *models.OrderStatusChangedEvent) error {
	title := "Order " + e.ToStatus.Label()
	body := fmt.Sprintf("Your order moved from %s to %s", e.FromStatus.Label(), e.ToStatus.Label())
	if err := n.push(ctx, e.UserID, e.OrderID, title, body); err != nil {
		return err
	}
	if e.ActorID != e.VendorID {
		return n.push(ctx, e.VendorID, e.OrderID, title,
			fmt.Sprintf("Order is now %s", e.ToStatus.Label()))
	}
	return nil
}

// VendorStatusChanged tells the vendor about an admin decision
func (n *Notifier) VendorStatusChanged(ctx context.Context, e *models.VendorStatusChangedEvent) error {
	var title, body string
	switch {
	case e.ApprovalStatus == models.ApprovalRejected:
		title, body = "Store application rejected", "Your store application was not approved"
	case e.ApprovalStatus != models.ApprovalApproved:
		title, body = "Store under review", "Your store is awaiting admin approval"
	case !e.IsActive:
		title, body = "Store suspended", "Your store is suspended; existing orders can still be fulfilled"
	default:
		title, body = "Store approved", "Your store is live and can manage products"
	}
	return n.push(ctx, e.VendorID, "", title, body)
}

func (n *Notifier) push(ctx context.Context, userID, orderID, title, body string) error {
	return n.sink.PushNotification(ctx, userID, models.Notification{
		OrderID:   orderID,
		Title:     title,
		Body:      body,
		CreatedAt: n.now().UTC(),
	})
}

// NotificationWorker consumes domain events and writes notifications
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, notifier *Notifier) *NotificationWorker {
	eventHandler := broker.NewEventHandler()
	notifier.Register(eventHandler)

	return &NotificationWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.ComponentLogger("notification-worker"),
	}
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

// DeliveryViewWarmer recomputes the delivery work list
type DeliveryViewWarmer interface {
	WarmDeliveryViews(ctx context.Context) (int, error)
}

// DeliveryPoller refreshes the delivery view on the same interval clients poll at
type DeliveryPoller struct {
	warmer   DeliveryViewWarmer
	interval time.Duration
	logger   *zap.Logger
}

// NewDeliveryPoller creates a new delivery poller
func NewDeliveryPoller(warmer DeliveryViewWarmer, interval time.Duration) *DeliveryPoller {
	return &DeliveryPoller{
		warmer:   warmer,
		interval: interval,
		logger:   util.ComponentLogger("delivery-poller"),
	}
}

// Start refreshes once immediately and then on every tick until ctx is done
func (p *DeliveryPoller) Start(ctx context.Context) error {
	p.logger.Info("Starting delivery poller", zap.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.refresh(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *DeliveryPoller) refresh(ctx context.Context) {
	n, err := p.warmer.WarmDeliveryViews(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("Failed to refresh delivery view", zap.Error(err))
		}
		return
	}
	p.logger.Debug("Delivery view refreshed", zap.Int("orders", n))
}

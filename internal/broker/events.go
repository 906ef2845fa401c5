package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher is the transport the event publisher writes to
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer Publisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer Publisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func newBase(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// PublishOrderPlaced publishes ORDER_PLACED for a freshly created order
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, order *models.Order) error {
	items := make([]models.OrderItemData, len(order.Items))
	for i, item := range order.Items {
		items[i] = models.OrderItemData{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Quantity:     item.Quantity,
			ProductPrice: item.ProductPrice,
		}
	}

	event := &models.OrderPlacedEvent{
		BaseEvent:   newBase(models.EventTypeOrderPlaced),
		OrderID:     order.ID,
		UserID:      order.UserID,
		VendorID:    order.VendorID,
		TotalAmount: order.TotalAmount,
		Items:       items,
	}
	return ep.producer.PublishEvent(ctx, "order-"+order.ID, event)
}

// PublishOrderStatusChanged publishes ORDER_STATUS_CHANGED
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, from models.OrderStatus, actorID string, role models.Role) error {
	event := &models.OrderStatusChangedEvent{
		BaseEvent:  newBase(models.EventTypeOrderStatusChanged),
		OrderID:    order.ID,
		UserID:     order.UserID,
		VendorID:   order.VendorID,
		FromStatus: from,
		ToStatus:   order.Status,
		ActorID:    actorID,
		ActorRole:  role,
	}
	return ep.producer.PublishEvent(ctx, "order-"+order.ID, event)
}

// PublishVendorStatusChanged publishes VENDOR_STATUS_CHANGED
func (ep *EventPublisher) PublishVendorStatusChanged(ctx context.Context, profile *models.Profile) error {
	event := &models.VendorStatusChangedEvent{
		BaseEvent:      newBase(models.EventTypeVendorStatusChanged),
		VendorID:       profile.UserID,
		IsActive:       profile.IsActive,
		ApprovalStatus: profile.ApprovalStatus,
	}
	return ep.producer.PublishEvent(ctx, "vendor-"+profile.UserID, event)
}

// EventHandler routes incoming events to registered callbacks
type EventHandler struct {
	onOrderPlaced         func(context.Context, *models.OrderPlacedEvent) error
	onOrderStatusChanged  func(context.Context, *models.OrderStatusChangedEvent) error
	onVendorStatusChanged func(context.Context, *models.VendorStatusChangedEvent) error
	logger                *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.ComponentLogger("event-handler")}
}

// OnOrderPlaced registers a handler for ORDER_PLACED events
func (eh *EventHandler) OnOrderPlaced(handler func(context.Context, *models.OrderPlacedEvent) error) {
	eh.onOrderPlaced = handler
}

// OnOrderStatusChanged registers a handler for ORDER_STATUS_CHANGED events
func (eh *EventHandler) OnOrderStatusChanged(handler func(context.Context, *models.OrderStatusChangedEvent) error) {
	eh.onOrderStatusChanged = handler
}

// OnVendorStatusChanged registers a handler for VENDOR_STATUS_CHANGED events
func (eh *EventHandler) OnVendorStatusChanged(handler func(context.Context, *models.VendorStatusChangedEvent) error) {
	eh.onVendorStatusChanged = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	return eh.Handle(ctx, msg.Value)
}

// Handle decodes a raw event payload and dispatches it by type
func (eh *EventHandler) Handle(ctx context.Context, payload []byte) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(payload, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))
	util.EventsConsumedTotal.WithLabelValues(baseEvent.EventType).Inc()

	switch baseEvent.EventType {
	case models.EventTypeOrderPlaced:
		if eh.onOrderPlaced != nil {
			var event models.OrderPlacedEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderPlaced event: %w", err)
			}
			return eh.onOrderPlaced(ctx, &event)
		}

	case models.EventTypeOrderStatusChanged:
		if eh.onOrderStatusChanged != nil {
			var event models.OrderStatusChangedEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderStatusChanged event: %w", err)
			}
			return eh.onOrderStatusChanged(ctx, &event)
		}

	case models.EventTypeVendorStatusChanged:
		if eh.onVendorStatusChanged != nil {
			var event models.VendorStatusChangedEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return fmt.Errorf("failed to unmarshal VendorStatusChanged event: %w", err)
			}
			return eh.onVendorStatusChanged(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}

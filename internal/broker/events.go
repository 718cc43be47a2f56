package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"retail-order-service/internal/models"
	"retail-order-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventSink writes one keyed event. *Producer is the Kafka implementation.
type EventSink interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing order events
type EventPublisher struct {
	sink EventSink
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(sink EventSink) *EventPublisher {
	return &EventPublisher{sink: sink}
}

func orderKey(billID string) string {
	return fmt.Sprintf("order-%s", billID)
}

// PublishOrderPlaced publishes OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return ep.sink.PublishEvent(ctx, orderKey(event.BillID), event)
}

// PublishOrderApproved publishes OrderApproved event
func (ep *EventPublisher) PublishOrderApproved(ctx context.Context, event *models.OrderApprovedEvent) error {
	return ep.sink.PublishEvent(ctx, orderKey(event.BillID), event)
}

// PublishOrderRejected publishes OrderRejected event
func (ep *EventPublisher) PublishOrderRejected(ctx context.Context, event *models.OrderRejectedEvent) error {
	return ep.sink.PublishEvent(ctx, orderKey(event.BillID), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onOrderPlaced   func(context.Context, *models.OrderPlacedEvent) error
	onOrderApproved func(context.Context, *models.OrderApprovedEvent) error
	onOrderRejected func(context.Context, *models.OrderRejectedEvent) error
	logger          *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderPlaced registers a handler for OrderPlaced events
func (eh *EventHandler) OnOrderPlaced(handler func(context.Context, *models.OrderPlacedEvent) error) {
	eh.onOrderPlaced = handler
}

// OnOrderApproved registers a handler for OrderApproved events
func (eh *EventHandler) OnOrderApproved(handler func(context.Context, *models.OrderApprovedEvent) error) {
	eh.onOrderApproved = handler
}

// OnOrderRejected registers a handler for OrderRejected events
func (eh *EventHandler) OnOrderRejected(handler func(context.Context, *models.OrderRejectedEvent) error) {
	eh.onOrderRejected = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderPlaced:
		if eh.onOrderPlaced != nil {
			var event models.OrderPlacedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderPlaced event: %w", err)
			}
			return eh.onOrderPlaced(ctx, &event)
		}

	case models.EventTypeOrderApproved:
		if eh.onOrderApproved != nil {
			var event models.OrderApprovedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderApproved event: %w", err)
			}
			return eh.onOrderApproved(ctx, &event)
		}

	case models.EventTypeOrderRejected:
		if eh.onOrderRejected != nil {
			var event models.OrderRejectedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderRejected event: %w", err)
			}
			return eh.onOrderRejected(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}

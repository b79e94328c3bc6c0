package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"inventory-intel/internal/models"
	"inventory-intel/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher hands engine output to the notification layer
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// PublishRunCompleted publishes the stats of a finished engine run
func (ep *EventPublisher) PublishRunCompleted(ctx context.Context, stats models.RunStats) error {
	event := &models.RunCompletedEvent{
		BaseEvent: newBaseEvent(models.EventTypeRunCompleted),
		Stats:     stats,
	}
	return ep.producer.PublishEvent(ctx, "run-"+stats.RunID, event.EventType, event)
}

// PublishAlertRaised publishes one alert
func (ep *EventPublisher) PublishAlertRaised(ctx context.Context, alert models.CashAlert) error {
	event := &models.AlertRaisedEvent{
		BaseEvent: newBaseEvent(models.EventTypeAlertRaised),
		Alert:     alert,
	}
	return ep.producer.PublishEvent(ctx, "alert-"+alert.AlertType, event.EventType, event)
}

// PublishSummaryReady publishes the digest of an alert run
func (ep *EventPublisher) PublishSummaryReady(ctx context.Context, runID string, summary models.CashImpactSummary) error {
	event := &models.SummaryReadyEvent{
		BaseEvent: newBaseEvent(models.EventTypeSummaryReady),
		RunID:     runID,
		Summary:   summary,
	}
	return ep.producer.PublishEvent(ctx, "run-"+runID, event.EventType, event)
}

// PublishClearanceReady publishes a clearance batch
func (ep *EventPublisher) PublishClearanceReady(ctx context.Context, batch models.ClearanceBatch) error {
	event := &models.ClearanceReadyEvent{
		BaseEvent: newBaseEvent(models.EventTypeClearanceReady),
		Batch:     batch,
	}
	return ep.producer.PublishEvent(ctx, "clearance-"+batch.ID, event.EventType, event)
}

// CommandHandler routes incoming run commands
type CommandHandler struct {
	onRunRequested func(context.Context, *models.RunRequestedEvent) error
	validate       *validator.Validate
	logger         *zap.Logger
}

// NewCommandHandler creates a new command handler
func NewCommandHandler() *CommandHandler {
	return &CommandHandler{
		validate: validator.New(),
		logger:   util.GetLogger(),
	}
}

// OnRunRequested registers a handler for run commands
func (h *CommandHandler) OnRunRequested(handler func(context.Context, *models.RunRequestedEvent) error) {
	h.onRunRequested = handler
}

// HandleMessage routes messages to appropriate handlers
func (h *CommandHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	h.logger.Info("Handling command",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeRunRequested:
		if h.onRunRequested == nil {
			return nil
		}
		var event models.RunRequestedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("failed to unmarshal RunRequested event: %w", err)
		}
		if err := h.validate.Struct(&event); err != nil {
			h.logger.Warn("Rejected invalid run command",
				zap.String("id", event.EventID),
				zap.Any("errors", validationErrors(err)))
			return nil
		}
		return h.onRunRequested(ctx, &event)

	default:
		h.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}

// validationErrors flattens validator errors to field -> failed tag.
func validationErrors(err error) map[string]string {
	out := make(map[string]string)
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range ve {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

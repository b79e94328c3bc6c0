package broker

import (
	"context"
	"encoding/json"
	"testing"

	"inventory-intel/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commandMessage(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: value}
}

func runCommand(engine string, maxItems int, mode string) *models.RunRequestedEvent {
	return &models.RunRequestedEvent{
		BaseEvent: newBaseEvent(models.EventTypeRunRequested),
		Engine:    engine,
		MaxItems:  maxItems,
		Mode:      mode,
	}
}

func TestHandleMessageDispatchesRunCommand(t *testing.T) {
	h := NewCommandHandler()
	var got *models.RunRequestedEvent
	h.OnRunRequested(func(ctx context.Context, e *models.RunRequestedEvent) error {
		got = e
		return nil
	})

	err := h.HandleMessage(context.Background(), commandMessage(t, runCommand(models.EngineClearance, 25, models.ModeEmergency)))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.EngineClearance, got.Engine)
	assert.Equal(t, 25, got.MaxItems)
	assert.Equal(t, models.ModeEmergency, got.Mode)
}

func TestHandleMessageRejectsInvalidCommands(t *testing.T) {
	h := NewCommandHandler()
	calls := 0
	h.OnRunRequested(func(ctx context.Context, e *models.RunRequestedEvent) error {
		calls++
		return nil
	})

	for _, e := range []*models.RunRequestedEvent{
		runCommand("", 0, ""),
		runCommand("forecast", 0, ""),
		runCommand(models.EngineClearance, 501, ""),
		runCommand(models.EngineClearance, -1, ""),
		runCommand(models.EngineClearance, 10, "panic"),
	} {
		err := h.HandleMessage(context.Background(), commandMessage(t, e))
		assert.NoError(t, err, "invalid commands are acknowledged")
	}
	assert.Equal(t, 0, calls)
}

func TestHandleMessageIgnoresOtherEvents(t *testing.T) {
	h := NewCommandHandler()
	h.OnRunRequested(func(ctx context.Context, e *models.RunRequestedEvent) error {
		t.Fatal("unexpected dispatch")
		return nil
	})

	event := &models.RunCompletedEvent{BaseEvent: newBaseEvent(models.EventTypeRunCompleted)}
	assert.NoError(t, h.HandleMessage(context.Background(), commandMessage(t, event)))
}

func TestHandleMessageMalformedPayload(t *testing.T) {
	h := NewCommandHandler()
	err := h.HandleMessage(context.Background(), kafka.Message{Value: []byte("{not json")})
	assert.Error(t, err)
}

func TestValidationErrors(t *testing.T) {
	h := NewCommandHandler()
	err := h.validate.Struct(runCommand("forecast", 900, ""))
	require.Error(t, err)

	assert.Equal(t, map[string]string{"Engine": "oneof", "MaxItems": "lte"}, validationErrors(err))
}

package worker

import (
	"context"
	"errors"

	"inventory-intel/internal/broker"
	"inventory-intel/internal/models"
	"inventory-intel/internal/service"
	"inventory-intel/internal/util"

	"go.uber.org/zap"
)

// EngineRunner dispatches an engine run by name.
type EngineRunner interface {
	RunEngine(ctx context.Context, engine string, maxItems int, mode string) (interface{}, error)
}

// CommandWorker runs engines on request from the command topic
type CommandWorker struct {
	consumer *broker.Consumer
	handler  *broker.CommandHandler
	runner   EngineRunner
	logger   *zap.Logger
}

// NewCommandWorker creates a new command worker
func NewCommandWorker(consumer *broker.Consumer, runner EngineRunner) *CommandWorker {
	w := &CommandWorker{
		consumer: consumer,
		handler:  broker.NewCommandHandler(),
		runner:   runner,
		logger:   util.GetLogger(),
	}
	w.handler.OnRunRequested(w.HandleRunRequested)
	return w
}

// HandleRunRequested runs the requested engine. Commands that cannot run
// (lock held, unknown engine, bad mode) are logged and acknowledged.
func (w *CommandWorker) HandleRunRequested(ctx context.Context, event *models.RunRequestedEvent) error {
	w.logger.Info("Run requested",
		zap.String("event_id", event.EventID),
		zap.String("engine", event.Engine))

	_, err := w.runner.RunEngine(ctx, event.Engine, event.MaxItems, event.Mode)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrRunInProgress),
		errors.Is(err, service.ErrUnknownEngine),
		errors.Is(err, service.ErrInvalidMode):
		w.logger.Warn("Run command skipped",
			zap.String("event_id", event.EventID),
			zap.String("engine", event.Engine),
			zap.Error(err))
		return nil
	default:
		return err
	}
}

// Start starts the worker
func (w *CommandWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting command worker")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop stops the worker
func (w *CommandWorker) Stop() error {
	w.logger.Info("Stopping command worker")
	return w.consumer.Close()
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-intel/internal/models"
	"inventory-intel/internal/util"

	"go.uber.org/zap"
)

// AlertRunResult is the output of one alert run.
type AlertRunResult struct {
	Alerts  []models.CashAlert        `json:"alerts"`
	Summary *models.CashImpactSummary `json:"summary"`
	Stats   *models.RunStats          `json:"stats,omitempty"`
}

// FullRunResult is the output of classify, velocity and alerts run in order.
type FullRunResult struct {
	Classification *models.RunStats `json:"classification"`
	Velocity       *models.RunStats `json:"velocity"`
	Alerts         *AlertRunResult  `json:"alerts"`
}

// Runner coordinates engine runs: one invocation per engine at a time,
// metrics, and event publishing.
type Runner struct {
	classifier *Classifier
	velocity   *VelocityCalculator
	pricing    *PricingEngine
	alerts     *AlertEngine
	locker     Locker
	events     EventSink
	clearance  ClearanceCache
	lockTTL    time.Duration
	logger     *zap.Logger
}

// RunnerDeps groups the collaborators of a Runner. Locker, Events and
// Clearance are optional.
type RunnerDeps struct {
	Classifier *Classifier
	Velocity   *VelocityCalculator
	Pricing    *PricingEngine
	Alerts     *AlertEngine
	Locker     Locker
	Events     EventSink
	Clearance  ClearanceCache
	LockTTL    time.Duration
}

// NewRunner creates a new runner
func NewRunner(deps RunnerDeps) *Runner {
	if deps.LockTTL <= 0 {
		deps.LockTTL = 15 * time.Minute
	}
	return &Runner{
		classifier: deps.Classifier,
		velocity:   deps.Velocity,
		pricing:    deps.Pricing,
		alerts:     deps.Alerts,
		locker:     deps.Locker,
		events:     deps.Events,
		clearance:  deps.Clearance,
		lockTTL:    deps.LockTTL,
		logger:     util.GetLogger(),
	}
}

// RunClassification classifies the whole catalog.
func (r *Runner) RunClassification(ctx context.Context) (*models.RunStats, error) {
	var stats *models.RunStats
	err := r.withLock(ctx, models.EngineClassification, func(ctx context.Context) error {
		var err error
		stats, err = r.classifier.ClassifyAll(ctx)
		if err != nil {
			return err
		}
		r.publishStats(ctx, stats)
		return nil
	})
	return stats, err
}

// RunVelocity recomputes velocity for the whole catalog.
func (r *Runner) RunVelocity(ctx context.Context) (*models.RunStats, error) {
	var stats *models.RunStats
	err := r.withLock(ctx, models.EngineVelocity, func(ctx context.Context) error {
		var err error
		stats, err = r.velocity.CalculateAll(ctx)
		if err != nil {
			return err
		}
		r.publishStats(ctx, stats)
		return nil
	})
	return stats, err
}

// RunClearance builds a clearance batch and caches it as the latest one.
// An empty mode lets cash adequacy pick it.
func (r *Runner) RunClearance(ctx context.Context, maxItems int, mode string) (*models.ClearanceBatch, error) {
	var batch *models.ClearanceBatch
	err := r.withLock(ctx, models.EngineClearance, func(ctx context.Context) error {
		started := time.Now()
		var err error
		batch, err = r.pricing.GenerateRecommendations(ctx, maxItems, mode)
		if err != nil {
			return err
		}

		if r.clearance != nil {
			if err := r.clearance.StoreLatestClearance(ctx, batch); err != nil {
				r.logger.Warn("Failed to cache clearance batch",
					zap.String("batch_id", batch.ID),
					zap.Error(err))
			}
		}

		if r.events != nil {
			if err := r.events.PublishClearanceReady(ctx, *batch); err != nil {
				r.logger.Error("Failed to publish clearance batch", zap.String("batch_id", batch.ID), zap.Error(err))
			}
		}
		r.publishStats(ctx, &models.RunStats{
			RunID:     batch.ID,
			Engine:    models.EngineClearance,
			Processed: len(batch.Recommendations),
			Updated:   len(batch.Recommendations),
			Duration:  time.Since(started),
		})
		return nil
	})
	return batch, err
}

// LatestClearance returns the cached clearance batch, or ErrNotFound.
func (r *Runner) LatestClearance(ctx context.Context) (*models.ClearanceBatch, error) {
	if r.clearance == nil {
		return nil, ErrNotFound
	}
	batch, err := r.clearance.GetLatestClearance(ctx)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, ErrNotFound
	}
	return batch, nil
}

// RunAlerts generates, persists and publishes a fresh set of alerts.
func (r *Runner) RunAlerts(ctx context.Context) (*AlertRunResult, error) {
	var result *AlertRunResult
	err := r.withLock(ctx, models.EngineAlerts, func(ctx context.Context) error {
		var err error
		result, err = r.runAlerts(ctx)
		return err
	})
	return result, err
}

func (r *Runner) runAlerts(ctx context.Context) (*AlertRunResult, error) {
	started := time.Now()
	alerts, ac, err := r.alerts.GenerateAlerts(ctx)
	if err != nil {
		return nil, err
	}

	failed := r.alerts.PersistAlerts(ctx, alerts)
	summary := r.alerts.GenerateCashImpactSummary(alerts, ac.Cash)
	stats := &models.RunStats{
		RunID:     ac.RunID,
		Engine:    models.EngineAlerts,
		Processed: len(alerts),
		Updated:   len(alerts) - failed,
		Errors:    failed,
		Duration:  time.Since(started),
	}

	if r.events != nil {
		for _, a := range alerts {
			if err := r.events.PublishAlertRaised(ctx, a); err != nil {
				r.logger.Error("Failed to publish alert",
					zap.String("alert_id", a.ID),
					zap.Error(err))
			}
		}
		if err := r.events.PublishSummaryReady(ctx, ac.RunID, *summary); err != nil {
			r.logger.Error("Failed to publish summary", zap.String("run_id", ac.RunID), zap.Error(err))
		}
	}
	r.publishStats(ctx, stats)

	return &AlertRunResult{Alerts: alerts, Summary: summary, Stats: stats}, nil
}

// PreviewAlerts generates alerts and their summary without persisting or
// publishing anything.
func (r *Runner) PreviewAlerts(ctx context.Context) (*AlertRunResult, error) {
	alerts, ac, err := r.alerts.GenerateAlerts(ctx)
	if err != nil {
		return nil, err
	}
	return &AlertRunResult{
		Alerts:  alerts,
		Summary: r.alerts.GenerateCashImpactSummary(alerts, ac.Cash),
	}, nil
}

// RunFull runs classification, velocity and alerts in that order. It stops
// at the first engine that fails.
func (r *Runner) RunFull(ctx context.Context) (*FullRunResult, error) {
	result := &FullRunResult{}
	err := r.withLock(ctx, models.EngineFull, func(ctx context.Context) error {
		var err error
		if result.Classification, err = r.RunClassification(ctx); err != nil {
			return fmt.Errorf("classification: %w", err)
		}
		if result.Velocity, err = r.RunVelocity(ctx); err != nil {
			return fmt.Errorf("velocity: %w", err)
		}
		if result.Alerts, err = r.RunAlerts(ctx); err != nil {
			return fmt.Errorf("alerts: %w", err)
		}
		return nil
	})
	return result, err
}

// RunEngine dispatches a run by engine name. It is used by the command
// worker and the CLI.
func (r *Runner) RunEngine(ctx context.Context, engine string, maxItems int, mode string) (interface{}, error) {
	switch engine {
	case models.EngineClassification:
		return r.RunClassification(ctx)
	case models.EngineVelocity:
		return r.RunVelocity(ctx)
	case models.EngineClearance:
		return r.RunClearance(ctx, maxItems, mode)
	case models.EngineAlerts:
		return r.RunAlerts(ctx)
	case models.EngineFull:
		return r.RunFull(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
	}
}

// withLock runs fn while holding the engine lock and records run metrics.
func (r *Runner) withLock(ctx context.Context, engine string, fn func(ctx context.Context) error) error {
	lockKey := "engine:" + engine

	if r.locker != nil {
		token, err := r.locker.AcquireLock(ctx, lockKey, r.lockTTL)
		if err != nil {
			util.EngineRunsTotal.WithLabelValues(engine, "lock_error").Inc()
			return fmt.Errorf("failed to acquire %s lock: %w", engine, err)
		}
		if token == "" {
			util.EngineRunsTotal.WithLabelValues(engine, "locked").Inc()
			r.logger.Warn("Engine run skipped, lock held", zap.String("engine", engine))
			return ErrRunInProgress
		}
		defer func() {
			if err := r.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
				r.logger.Error("Failed to release engine lock", zap.String("engine", engine), zap.Error(err))
			}
		}()
	}

	started := time.Now()
	err := fn(ctx)
	util.EngineRunDuration.WithLabelValues(engine).Observe(time.Since(started).Seconds())

	result := "ok"
	if err != nil {
		result = "error"
		if errors.Is(err, ErrRunInProgress) {
			result = "locked"
		}
		r.logger.Error("Engine run failed", zap.String("engine", engine), zap.Error(err))
	}
	util.EngineRunsTotal.WithLabelValues(engine, result).Inc()
	return err
}

func (r *Runner) publishStats(ctx context.Context, stats *models.RunStats) {
	if stats.Errors > 0 {
		r.logger.Warn("Engine run completed with errors",
			zap.String("engine", stats.Engine),
			zap.String("run_id", stats.RunID),
			zap.Int("errors", stats.Errors),
			zap.Int("processed", stats.Processed))
	}
	if r.events == nil {
		return
	}
	if err := r.events.PublishRunCompleted(ctx, *stats); err != nil {
		r.logger.Error("Failed to publish run completed",
			zap.String("engine", stats.Engine),
			zap.String("run_id", stats.RunID),
			zap.Error(err))
	}
}

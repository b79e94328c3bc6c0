package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"inventory-intel/config"
	"inventory-intel/internal/models"
	"inventory-intel/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlertContext is shared by all generators within one alert run.
type AlertContext struct {
	RunID string
	Now   time.Time
	// Cash is nil when the cash position could not be loaded.
	Cash *models.CashStatus
}

// AlertGenerator produces one category of alerts.
type AlertGenerator interface {
	Name() string
	Produce(ctx context.Context, ac *AlertContext) ([]models.CashAlert, error)
}

// AlertEngine runs its generators, merges and ranks their alerts, and
// persists them as an append-only history.
type AlertEngine struct {
	generators []AlertGenerator
	alerts     AlertStore
	cash       CashSource
	rules      config.AlertRules
	burnRate   float64
	clock      Clock
	logger     *zap.Logger
}

// NewAlertEngine creates an alert engine with the given generators.
func NewAlertEngine(generators []AlertGenerator, alerts AlertStore, cash CashSource, rules *config.Rules, weeklyBurnRate float64, clock Clock) *AlertEngine {
	if clock == nil {
		clock = time.Now
	}
	return &AlertEngine{
		generators: generators,
		alerts:     alerts,
		cash:       cash,
		rules:      rules.Alerts,
		burnRate:   weeklyBurnRate,
		clock:      clock,
		logger:     util.EngineLogger(models.EngineAlerts),
	}
}

// DefaultGenerators returns the five standard alert generators.
func DefaultGenerators(catalog CatalogStore, pricing *PricingEngine, rules *config.Rules) []AlertGenerator {
	return []AlertGenerator{
		&ReorderAlerts{catalog: catalog, rules: rules.Alerts},
		&DeadStockAlerts{catalog: catalog, rules: rules.Alerts},
		&SeasonalAlerts{catalog: catalog, rules: rules.Alerts},
		&OpportunityAlerts{pricing: pricing, rules: rules.Alerts},
		&MarginAlerts{catalog: catalog, rules: rules.Alerts},
	}
}

// GenerateAlerts runs every generator and returns their alerts sorted by
// priority, then urgency. A failing generator is logged and skipped.
func (ae *AlertEngine) GenerateAlerts(ctx context.Context) ([]models.CashAlert, *AlertContext, error) {
	ctx, span := util.StartEngineSpan(ctx, models.EngineAlerts, "AlertEngine.GenerateAlerts")
	defer span.End()

	ac := &AlertContext{RunID: uuid.New().String(), Now: ae.clock()}
	if ae.cash != nil {
		status, err := ae.cash.FetchCashStatus(ctx)
		if err != nil {
			ae.logger.Warn("Cash status unavailable for alert run", zap.Error(err))
		} else {
			ac.Cash = status
		}
	}

	var all []models.CashAlert
	failed := 0
	for _, g := range ae.generators {
		produced, err := g.Produce(ctx, ac)
		if err != nil {
			failed++
			ae.logger.Error("Alert generator failed",
				zap.String("generator", g.Name()),
				zap.String("run_id", ac.RunID),
				zap.Error(err))
			continue
		}
		all = append(all, produced...)
	}

	if failed > 0 && failed == len(ae.generators) {
		return nil, ac, fmt.Errorf("all %d alert generators failed", failed)
	}

	for i := range all {
		all[i].ID = uuid.New().String()
		all[i].RunID = ac.RunID
		all[i].CreatedAt = ac.Now
		all[i].UrgencyScore = clampScore(all[i].UrgencyScore)
		util.CashAlertsGeneratedTotal.WithLabelValues(all[i].AlertType, all[i].Priority).Inc()
	}
	SortAlerts(all)

	ae.logger.Info("Alerts generated",
		zap.String("run_id", ac.RunID),
		zap.Int("alerts", len(all)),
		zap.Int("failed_generators", failed))
	return all, ac, nil
}

// PersistAlerts inserts every alert as a new row. It returns the number of
// failed inserts; earlier inserts are not rolled back.
func (ae *AlertEngine) PersistAlerts(ctx context.Context, alerts []models.CashAlert) int {
	failed := 0
	for i := range alerts {
		if err := ae.alerts.InsertAlert(ctx, &alerts[i]); err != nil {
			failed++
			util.AlertsPersistFailedTotal.Inc()
			ae.logger.Error("Failed to persist alert",
				zap.String("alert_id", alerts[i].ID),
				zap.String("type", alerts[i].AlertType),
				zap.Error(err))
		}
	}
	return failed
}

// SortAlerts orders alerts by priority rank, then urgency, both descending.
func SortAlerts(alerts []models.CashAlert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := models.PriorityRank(alerts[i].Priority), models.PriorityRank(alerts[j].Priority)
		if ri != rj {
			return ri > rj
		}
		return alerts[i].UrgencyScore > alerts[j].UrgencyScore
	})
}

// GenerateCashImpactSummary digests a set of alerts against the cash position.
func (ae *AlertEngine) GenerateCashImpactSummary(alerts []models.CashAlert, cash *models.CashStatus) *models.CashImpactSummary {
	summary := &models.CashImpactSummary{
		TotalAlerts:        len(alerts),
		CashAdequacyStatus: "unknown",
		WeeklyBurnRate:     ae.burnRate,
		GeneratedAt:        ae.clock(),
	}

	for _, a := range alerts {
		if a.Priority == models.PriorityCritical {
			summary.CriticalAlerts++
		}
		summary.TotalCashAtRisk += a.CashImpact
		if a.CashRecoveryPotential > 0 {
			summary.RecoveryOpportunities++
			summary.TotalRecoveryPotential += a.CashRecoveryPotential
		}
	}
	summary.TotalCashAtRisk = util.RoundMoney(summary.TotalCashAtRisk)
	summary.TotalRecoveryPotential = util.RoundMoney(summary.TotalRecoveryPotential)

	if cash != nil {
		summary.CashAdequacyStatus = cash.CashAdequacyStatus
		summary.NetCash = cash.NetCash
		if ae.burnRate > 0 {
			summary.WeeksOfRunway = util.Round(math.Max(0, cash.NetCash)/ae.burnRate, 1)
		}
	}

	summary.TopRecommendedActions = ae.recommendedActions(summary)
	return summary
}

func (ae *AlertEngine) recommendedActions(s *models.CashImpactSummary) []string {
	var actions []string
	if s.CriticalAlerts > 0 {
		actions = append(actions, fmt.Sprintf("Resolve %d critical alerts within 24 hours", s.CriticalAlerts))
	}
	if s.TotalRecoveryPotential > ae.rules.SummaryRecoveryTrigger {
		actions = append(actions, fmt.Sprintf("Launch clearance pricing to recover up to $%.0f", s.TotalRecoveryPotential))
	}
	if s.CashAdequacyStatus == models.CashCritical {
		actions = append(actions, "Cash is below the operating buffer: defer non-critical reorders and liquidate dead stock")
	}
	if len(actions) == 0 {
		actions = append(actions, "No urgent action needed; review medium-priority alerts this week")
	}
	return actions
}

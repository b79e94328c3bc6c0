package models

import (
	"time"

	"github.com/lib/pq"
)

// Alert types
const (
	AlertCriticalReorder  = "critical_reorder"
	AlertDeadStockDrain   = "dead_stock_drain"
	AlertSeasonalUrgent   = "seasonal_urgent"
	AlertCashOpportunity  = "cash_opportunity"
	AlertMarginProtection = "margin_protection"
)

// Alert priorities
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// PriorityRank orders priorities; higher is more severe. Unknown values rank lowest.
func PriorityRank(priority string) int {
	switch priority {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// CashAlert is a point-in-time finding from one alert run. Rows are insert-only.
type CashAlert struct {
	ID                      string         `db:"id" json:"id"`
	RunID                   string         `db:"run_id" json:"run_id"`
	AlertType               string         `db:"alert_type" json:"alert_type"`
	Priority                string         `db:"priority" json:"priority"`
	Title                   string         `db:"title" json:"title"`
	Message                 string         `db:"message" json:"message"`
	CashImpact              float64        `db:"cash_impact" json:"cash_impact"`
	SuggestedAction         string         `db:"suggested_action" json:"suggested_action"`
	VariantIDs              pq.Int64Array  `db:"variant_ids" json:"variant_ids"`
	SKUs                    pq.StringArray `db:"skus" json:"skus"`
	UrgencyScore            float64        `db:"urgency_score" json:"urgency_score"`
	EstimatedResolutionTime string         `db:"estimated_resolution_time" json:"estimated_resolution_time"`
	CashRecoveryPotential   float64        `db:"cash_recovery_potential" json:"cash_recovery_potential"`
	RequiresAttention       bool           `db:"requires_attention" json:"requires_attention"`
	CreatedAt               time.Time      `db:"created_at" json:"created_at"`
}

// CashImpactSummary is the digest built from one set of alerts.
type CashImpactSummary struct {
	TotalAlerts            int       `json:"total_alerts"`
	CriticalAlerts         int       `json:"critical_alerts"`
	TotalCashAtRisk        float64   `json:"total_cash_at_risk"`
	RecoveryOpportunities  int       `json:"recovery_opportunities"`
	TotalRecoveryPotential float64   `json:"total_recovery_potential"`
	CashAdequacyStatus     string    `json:"cash_adequacy_status"`
	NetCash                float64   `json:"net_cash"`
	WeeklyBurnRate         float64   `json:"weekly_burn_rate"`
	WeeksOfRunway          float64   `json:"weeks_of_runway"`
	TopRecommendedActions  []string  `json:"top_recommended_actions"`
	GeneratedAt            time.Time `json:"generated_at"`
}

// RunStats is what every batch engine returns. Callers must compare
// Processed against Errors; a partial run is not reported as success.
type RunStats struct {
	RunID     string        `json:"run_id"`
	Engine    string        `json:"engine"`
	Processed int           `json:"processed"`
	Updated   int           `json:"updated"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	Duration  time.Duration `json:"duration"`
}

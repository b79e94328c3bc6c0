package models

import "time"

// Pricing modes
const (
	ModeEmergency    = "emergency"
	ModeAggressive   = "aggressive"
	ModeConservative = "conservative"
)

// ClearancePricingRecommendation is a markdown suggestion for one variant.
// It is never written back as the authoritative price.
type ClearancePricingRecommendation struct {
	VariantID             int64   `json:"variant_id"`
	SKU                   string  `json:"sku"`
	ProductTitle          string  `json:"product_title"`
	CurrentPrice          float64 `json:"current_price"`
	RecommendedPrice      float64 `json:"recommended_price"`
	DiscountPercentage    float64 `json:"discount_percentage"`
	ClearanceTier         string  `json:"clearance_tier"`
	Reasoning             string  `json:"reasoning"`
	UrgencyScore          float64 `json:"urgency_score"`
	CashRecoveryPotential float64 `json:"cash_recovery_potential"`
	SeasonalUrgency       bool    `json:"seasonal_urgency"`
	DaysToSeasonalEnd     *int    `json:"days_to_seasonal_end,omitempty"`
	Quantity              int     `json:"quantity"`
	ProtectionThreshold   float64 `json:"profit_protection_threshold"`
}

// ClearanceBatch is a ranked set of recommendations with aggregate totals.
type ClearanceBatch struct {
	ID                      string                           `json:"id"`
	Mode                    string                           `json:"mode"`
	Recommendations         []ClearancePricingRecommendation `json:"recommendations"`
	TotalRecoveryPotential  float64                          `json:"total_recovery_potential"`
	AverageDiscount         float64                          `json:"average_discount"`
	CashImpactScore         float64                          `json:"cash_impact_score"`
	EstimatedClearanceWeeks int                              `json:"estimated_clearance_time_weeks"`
	GeneratedAt             time.Time                        `json:"generated_at"`
}

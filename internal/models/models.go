package models

import (
	"math"
	"strings"
	"time"
)

// Variant is a sellable SKU joined with its parent product attributes.
type Variant struct {
	ID           int64   `db:"id" json:"id"`
	ProductID    int64   `db:"product_id" json:"product_id"`
	SKU          string  `db:"sku" json:"sku"`
	Price        float64 `db:"price" json:"price"`
	Cost         float64 `db:"cost" json:"cost"`
	Quantity     int     `db:"available_quantity" json:"available_quantity"`
	Active       bool    `db:"active" json:"active"`
	VariantTitle string  `db:"variant_title" json:"variant_title"`
	ProductTitle string  `db:"product_title" json:"product_title"`
	Vendor       string  `db:"vendor" json:"vendor"`
	ProductType  string  `db:"product_type" json:"product_type"`

	MarginPercentage          float64    `db:"margin_percentage" json:"margin_percentage"`
	Q4Item                    bool       `db:"q4_item" json:"q4_item"`
	SeasonalItem              bool       `db:"seasonal_item" json:"seasonal_item"`
	SeasonalType              string     `db:"seasonal_type" json:"seasonal_type,omitempty"`
	SeasonalEndDate           *time.Time `db:"seasonal_end_date" json:"seasonal_end_date,omitempty"`
	ProfitProtectionThreshold float64    `db:"profit_protection_threshold" json:"profit_protection_threshold"`
	TrafficDriver             bool       `db:"traffic_driver" json:"traffic_driver"`
	BundleEligible            bool       `db:"bundle_eligible" json:"bundle_eligible"`
	ClearanceTier             string     `db:"clearance_tier" json:"clearance_tier"`
	CashImpactScore           float64    `db:"cash_impact_score" json:"cash_impact_score"`

	WeeklySalesUnits     float64    `db:"weekly_sales_units" json:"weekly_sales_units"`
	WeeklySalesRevenue   float64    `db:"weekly_sales_revenue" json:"weekly_sales_revenue"`
	VelocityCategory     string     `db:"velocity_category" json:"velocity_category"`
	WeeksOfStock         float64    `db:"weeks_of_stock" json:"weeks_of_stock"`
	ReorderUrgency       string     `db:"reorder_urgency" json:"reorder_urgency"`
	PriceElasticityScore int        `db:"price_elasticity_score" json:"price_elasticity_score"`
	LastSaleDate         *time.Time `db:"last_sale_date" json:"last_sale_date,omitempty"`
	TrendDirection       string     `db:"trend_direction" json:"trend_direction"`
}

// InventoryValue is the retail value of the stock on hand.
func (v *Variant) InventoryValue() float64 {
	return float64(v.Quantity) * v.Price
}

// DaysToSeasonalEnd returns the days from now until the seasonal end date,
// rounded up, and false when the variant has no end date.
func (v *Variant) DaysToSeasonalEnd(now time.Time) (int, bool) {
	if v.SeasonalEndDate == nil {
		return 0, false
	}
	days := int(math.Ceil(v.SeasonalEndDate.Sub(now).Hours() / 24))
	return days, true
}

// Classification is the output of the SKU classifier for one variant.
type Classification struct {
	MarginPercentage          float64    `json:"margin_percentage"`
	Q4Item                    bool       `json:"q4_item"`
	SeasonalItem              bool       `json:"seasonal_item"`
	SeasonalType              string     `json:"seasonal_type,omitempty"`
	SeasonalEndDate           *time.Time `json:"seasonal_end_date,omitempty"`
	ProfitProtectionThreshold float64    `json:"profit_protection_threshold"`
	TrafficDriver             bool       `json:"traffic_driver"`
	BundleEligible            bool       `json:"bundle_eligible"`
	ClearanceTier             string     `json:"clearance_tier"`
	CashImpactScore           float64    `json:"cash_impact_score"`
}

// VelocityData is the output of the sales velocity calculator for one variant.
type VelocityData struct {
	WeeklySalesUnits     float64    `json:"weekly_sales_units"`
	WeeklySalesRevenue   float64    `json:"weekly_sales_revenue"`
	VelocityCategory     string     `json:"velocity_category"`
	WeeksOfStock         float64    `json:"weeks_of_stock"`
	ReorderUrgency       string     `json:"reorder_urgency"`
	PriceElasticityScore int        `json:"price_elasticity_score"`
	LastSaleDate         *time.Time `json:"last_sale_date,omitempty"`
	TrendDirection       string     `json:"trend_direction"`
	SalesFrequency       int        `json:"sales_frequency"`
}

// SalesLineItem is one line of a paid order from the sales feed.
type SalesLineItem struct {
	ID        int64     `db:"id" json:"id"`
	VariantID int64     `db:"variant_id" json:"variant_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	UnitPrice float64   `db:"unit_price" json:"unit_price"`
	OrderedAt time.Time `db:"ordered_at" json:"ordered_at"`
}

// SalesPage is one page of the sales feed. NextCursor is empty on the last page.
type SalesPage struct {
	Items      []SalesLineItem `json:"items"`
	NextCursor string          `json:"next_cursor"`
}

// VariantFilter narrows a catalog fetch. Zero values mean "no constraint".
type VariantFilter struct {
	VelocityCategories []string
	MinQuantity        int
	SeasonalOnly       bool
	Limit              int
}

// Matches reports whether v passes the filter. The store applies the same
// predicate in SQL.
func (f VariantFilter) Matches(v *Variant) bool {
	if !v.Active || strings.TrimSpace(v.SKU) == "" {
		return false
	}
	if f.MinQuantity > 0 && v.Quantity < f.MinQuantity {
		return false
	}
	if f.SeasonalOnly && !v.SeasonalItem {
		return false
	}
	if len(f.VelocityCategories) > 0 {
		found := false
		for _, c := range f.VelocityCategories {
			if v.VelocityCategory == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Seasonal types
const (
	SeasonalHalloween = "halloween"
	SeasonalChristmas = "christmas"
)

// Clearance tiers written by the classifier
const (
	TierCashGenerator     = "cash_generator"
	TierSpaceMaker        = "space_maker"
	TierBundleBuilder     = "bundle_builder"
	TierStandardClearance = "standard_clearance"
)

// Velocity categories
const (
	VelocityFast    = "fast"
	VelocityMedium  = "medium"
	VelocitySlow    = "slow"
	VelocityDead    = "dead"
	VelocityUnknown = "unknown"
)

// Reorder urgency levels
const (
	UrgencyCritical = "critical"
	UrgencyHigh     = "high"
	UrgencyMedium   = "medium"
	UrgencyLow      = "low"
)

// Trend directions
const (
	TrendIncreasing = "increasing"
	TrendStable     = "stable"
	TrendDeclining  = "declining"
)

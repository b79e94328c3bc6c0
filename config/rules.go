package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules holds the business rule tables used by the engines. DefaultRules
// returns the production values; a YAML file can override any subset.
type Rules struct {
	Seasonal   SeasonalRules   `yaml:"seasonal"`
	Classifier ClassifierRules `yaml:"classifier"`
	Velocity   VelocityRules   `yaml:"velocity"`
	Pricing    PricingRules    `yaml:"pricing"`
	Alerts     AlertRules      `yaml:"alerts"`
}

// MonthDay is a calendar date without a year.
type MonthDay struct {
	Month int `yaml:"month"`
	Day   int `yaml:"day"`
}

type SeasonalRules struct {
	HalloweenSKUPrefixes []string `yaml:"halloween_sku_prefixes"`
	HalloweenKeywords    []string `yaml:"halloween_keywords"`
	ChristmasSKUPrefixes []string `yaml:"christmas_sku_prefixes"`
	ChristmasKeywords    []string `yaml:"christmas_keywords"`
	HalloweenEnd         MonthDay `yaml:"halloween_end"`
	ChristmasEnd         MonthDay `yaml:"christmas_end"`
	BoostMonths          []int    `yaml:"boost_months"`
	BoostFactor          float64  `yaml:"boost_factor"`
}

// ProtectionStep maps a minimum margin to the maximum discount it unlocks.
type ProtectionStep struct {
	MinMargin   float64 `yaml:"min_margin"`
	MaxDiscount float64 `yaml:"max_discount"`
}

// QuantityMultiplier applies Multiplier when quantity <= MaxQty.
type QuantityMultiplier struct {
	MaxQty     int     `yaml:"max_qty"`
	Multiplier float64 `yaml:"multiplier"`
}

type ClassifierRules struct {
	UnknownCostMargin       float64              `yaml:"unknown_cost_margin"`
	TrafficKeywords         []string             `yaml:"traffic_keywords"`
	TrafficVendors          []string             `yaml:"traffic_vendors"`
	TrafficMinMargin        float64              `yaml:"traffic_min_margin"`
	BundleMaxPrice          float64              `yaml:"bundle_max_price"`
	BundleMinMargin         float64              `yaml:"bundle_min_margin"`
	SmallItemTypes          []string             `yaml:"small_item_types"`
	ProtectionSteps         []ProtectionStep     `yaml:"protection_steps"`
	DefaultProtection       float64              `yaml:"default_protection"`
	CashGeneratorMinMargin  float64              `yaml:"cash_generator_min_margin"`
	CashGeneratorMinQty     int                  `yaml:"cash_generator_min_qty"`
	SpaceMakerMinMargin     float64              `yaml:"space_maker_min_margin"`
	SpaceMakerMinQty        int                  `yaml:"space_maker_min_qty"`
	ImpactQtyDivisor        float64              `yaml:"impact_qty_divisor"`
	ImpactQtyCap            float64              `yaml:"impact_qty_cap"`
	ImpactUrgencyMultiplier []QuantityMultiplier `yaml:"impact_urgency_multiplier"`
}

type VelocityRules struct {
	FastMinWeekly        float64        `yaml:"fast_min_weekly"`
	MediumMinWeekly      float64        `yaml:"medium_min_weekly"`
	NoSalesWeeksOfStock  float64        `yaml:"no_sales_weeks_of_stock"`
	CriticalWeeks        float64        `yaml:"critical_weeks"`
	HighWeeks            float64        `yaml:"high_weeks"`
	MediumWeeks          float64        `yaml:"medium_weeks"`
	ElasticityByCategory map[string]int `yaml:"elasticity_by_category"`
	IncreasingMinWeeks   int            `yaml:"increasing_min_weeks"`
	StableMinWeeks       int            `yaml:"stable_min_weeks"`
}

// ModeAdjustment scales the base discount and shifts urgency for a pricing mode.
type ModeAdjustment struct {
	Multiplier   float64 `yaml:"multiplier"`
	UrgencyDelta float64 `yaml:"urgency_delta"`
}

// CategoryPricing is the starting point for an item's markdown.
type CategoryPricing struct {
	Discount float64 `yaml:"discount"`
	Tier     string  `yaml:"tier"`
	Urgency  float64 `yaml:"urgency"`
}

// PressureBoost adds discount and urgency when quantity > MinQty.
type PressureBoost struct {
	MinQty   int     `yaml:"min_qty"`
	Discount float64 `yaml:"discount"`
	Urgency  float64 `yaml:"urgency"`
}

// ClearanceStep maps a minimum mean urgency to an estimated number of weeks.
type ClearanceStep struct {
	MinUrgency float64 `yaml:"min_urgency"`
	Weeks      int     `yaml:"weeks"`
}

type PricingRules struct {
	Modes                    map[string]ModeAdjustment  `yaml:"modes"`
	Categories               map[string]CategoryPricing `yaml:"categories"`
	SeasonalBoostWindowDays  int                        `yaml:"seasonal_boost_window_days"`
	SeasonalBoostMaxDiscount float64                    `yaml:"seasonal_boost_max_discount"`
	SeasonalBoostUrgency     float64                    `yaml:"seasonal_boost_urgency"`
	PressureBoosts           []PressureBoost            `yaml:"pressure_boosts"`
	ResponseMultipliers      map[string]float64         `yaml:"response_multipliers"`
	DefaultResponse          float64                    `yaml:"default_response"`
	RecoveryWeeks            int                        `yaml:"recovery_weeks"`
	DeadStockMinWeekly       float64                    `yaml:"dead_stock_min_weekly"`
	DeadStockDiscountDivisor float64                    `yaml:"dead_stock_discount_divisor"`
	SlowMinQty               int                        `yaml:"slow_min_qty"`
	SeasonalWindowDays       int                        `yaml:"seasonal_window_days"`
	MaxWeeksOfStock          float64                    `yaml:"max_weeks_of_stock"`
	OverstockQty             int                        `yaml:"overstock_qty"`
	OverstockMaxWeekly       float64                    `yaml:"overstock_max_weekly"`
	PressureItemCount        int                        `yaml:"pressure_item_count"`
	PressureWindowDays       int                        `yaml:"pressure_window_days"`
	ClearanceSteps           []ClearanceStep            `yaml:"clearance_steps"`
	DefaultClearanceWeeks    int                        `yaml:"default_clearance_weeks"`
}

// AlertRules tunes the alert generators. Reorder urgency is
// ReorderUrgencyBase + (ReorderMaxWeeks - weeks of stock) * ReorderUrgencyPerWeek.
type AlertRules struct {
	ReorderMaxWeeks          float64 `yaml:"reorder_max_weeks"`
	ReorderCoverWeeks        float64 `yaml:"reorder_cover_weeks"`
	ReorderCriticalWeeks     float64 `yaml:"reorder_critical_weeks"`
	ReorderHighWeeks         float64 `yaml:"reorder_high_weeks"`
	ReorderUrgencyBase       float64 `yaml:"reorder_urgency_base"`
	ReorderUrgencyPerWeek    float64 `yaml:"reorder_urgency_per_week"`
	ReorderLostSalesMinWeeks float64 `yaml:"reorder_lost_sales_min_weeks"`
	ReorderCostFallbackRatio float64 `yaml:"reorder_cost_fallback_ratio"`
	DeadStockMinQty          int     `yaml:"dead_stock_min_qty"`
	DeadStockTopN            int     `yaml:"dead_stock_top_n"`
	DeadStockRecoveryRate    float64 `yaml:"dead_stock_recovery_rate"`
	DeadStockUrgency         float64 `yaml:"dead_stock_urgency"`
	SeasonalWindowDays       int     `yaml:"seasonal_window_days"`
	SeasonalMinQty           int     `yaml:"seasonal_min_qty"`
	SeasonalRecoveryRate     float64 `yaml:"seasonal_recovery_rate"`
	SeasonalCriticalDays     float64 `yaml:"seasonal_critical_days"`
	SeasonalHighDays         float64 `yaml:"seasonal_high_days"`
	OpportunityTopN          int     `yaml:"opportunity_top_n"`
	OpportunityUrgency       float64 `yaml:"opportunity_urgency"`
	MarginWatchMax           float64 `yaml:"margin_watch_max"`
	MarginCriticalMax        float64 `yaml:"margin_critical_max"`
	MarginWarningMax         float64 `yaml:"margin_warning_max"`
	MarginCriticalUrgency    float64 `yaml:"margin_critical_urgency"`
	MarginWarningUrgency     float64 `yaml:"margin_warning_urgency"`
	MarginHorizonWeeks       float64 `yaml:"margin_horizon_weeks"`
	SummaryRecoveryTrigger   float64 `yaml:"summary_recovery_trigger"`
}

// DefaultRules returns the rule tables the engines run with unless overridden.
func DefaultRules() *Rules {
	return &Rules{
		Seasonal: SeasonalRules{
			HalloweenSKUPrefixes: []string{"HW"},
			HalloweenKeywords:    []string{"halloween", "pumpkin", "spider", "ghost"},
			ChristmasSKUPrefixes: []string{"HO"},
			ChristmasKeywords:    []string{"christmas", "holiday", "xmas", "santa", "reindeer", "snowman"},
			HalloweenEnd:         MonthDay{Month: 11, Day: 5},
			ChristmasEnd:         MonthDay{Month: 12, Day: 27},
			BoostMonths:          []int{8, 9, 10, 11, 12},
			BoostFactor:          1.5,
		},
		Classifier: ClassifierRules{
			UnknownCostMargin: 50,
			TrafficKeywords:   []string{"bestseller", "best seller", "signature", "classic", "exclusive", "limited edition"},
			TrafficVendors:    []string{"in-house", "studio collection"},
			TrafficMinMargin:  40,
			BundleMaxPrice:    15,
			BundleMinMargin:   50,
			SmallItemTypes:    []string{"card", "ornament", "keychain", "magnet", "bookmark", "sticker"},
			ProtectionSteps: []ProtectionStep{
				{MinMargin: 65, MaxDiscount: 75},
				{MinMargin: 60, MaxDiscount: 70},
				{MinMargin: 55, MaxDiscount: 60},
				{MinMargin: 50, MaxDiscount: 50},
				{MinMargin: 45, MaxDiscount: 35},
			},
			DefaultProtection:      25,
			CashGeneratorMinMargin: 60,
			CashGeneratorMinQty:    10,
			SpaceMakerMinMargin:    45,
			SpaceMakerMinQty:       5,
			ImpactQtyDivisor:       4,
			ImpactQtyCap:           10,
			ImpactUrgencyMultiplier: []QuantityMultiplier{
				{MaxQty: 0, Multiplier: 3.0},
				{MaxQty: 3, Multiplier: 2.0},
				{MaxQty: 10, Multiplier: 1.5},
			},
		},
		Velocity: VelocityRules{
			FastMinWeekly:       2,
			MediumMinWeekly:     0.5,
			NoSalesWeeksOfStock: 999,
			CriticalWeeks:       4,
			HighWeeks:           8,
			MediumWeeks:         12,
			ElasticityByCategory: map[string]int{
				"dead":   90,
				"slow":   75,
				"medium": 60,
				"fast":   30,
			},
			IncreasingMinWeeks: 6,
			StableMinWeeks:     3,
		},
		Pricing: PricingRules{
			Modes: map[string]ModeAdjustment{
				"emergency":    {Multiplier: 1.8, UrgencyDelta: 30},
				"aggressive":   {Multiplier: 1.4, UrgencyDelta: 15},
				"conservative": {Multiplier: 0.7, UrgencyDelta: -10},
			},
			Categories: map[string]CategoryPricing{
				"dead":     {Discount: 40, Tier: "dead_stock_liquidation", Urgency: 90},
				"slow":     {Discount: 25, Tier: "slow_mover_clearance", Urgency: 70},
				"seasonal": {Discount: 30, Tier: "seasonal_clearance", Urgency: 80},
				"standard": {Discount: 15, Tier: "standard_clearance", Urgency: 40},
			},
			SeasonalBoostWindowDays:  30,
			SeasonalBoostMaxDiscount: 25,
			SeasonalBoostUrgency:     20,
			PressureBoosts: []PressureBoost{
				{MinQty: 50, Discount: 10, Urgency: 10},
				{MinQty: 20, Discount: 5, Urgency: 5},
			},
			ResponseMultipliers: map[string]float64{
				"dead":   3.0,
				"slow":   2.0,
				"medium": 1.5,
				"fast":   1.2,
			},
			DefaultResponse:          1.0,
			RecoveryWeeks:            8,
			DeadStockMinWeekly:       0.5,
			DeadStockDiscountDivisor: 20,
			SlowMinQty:               10,
			SeasonalWindowDays:       60,
			MaxWeeksOfStock:          20,
			OverstockQty:             20,
			OverstockMaxWeekly:       0.5,
			PressureItemCount:        50,
			PressureWindowDays:       30,
			ClearanceSteps: []ClearanceStep{
				{MinUrgency: 80, Weeks: 2},
				{MinUrgency: 60, Weeks: 4},
				{MinUrgency: 40, Weeks: 8},
			},
			DefaultClearanceWeeks: 12,
		},
		Alerts: AlertRules{
			ReorderMaxWeeks:          8,
			ReorderCoverWeeks:        4,
			ReorderCriticalWeeks:     2,
			ReorderHighWeeks:         4,
			ReorderUrgencyBase:       60,
			ReorderUrgencyPerWeek:    5,
			ReorderLostSalesMinWeeks: 4,
			ReorderCostFallbackRatio: 0.5,
			DeadStockMinQty:          5,
			DeadStockTopN:            15,
			DeadStockRecoveryRate:    0.6,
			DeadStockUrgency:         75,
			SeasonalWindowDays:       45,
			SeasonalMinQty:           3,
			SeasonalRecoveryRate:     0.4,
			SeasonalCriticalDays:     14,
			SeasonalHighDays:         30,
			OpportunityTopN:          10,
			OpportunityUrgency:       50,
			MarginWatchMax:           30,
			MarginCriticalMax:        10,
			MarginWarningMax:         20,
			MarginCriticalUrgency:    85,
			MarginWarningUrgency:     60,
			MarginHorizonWeeks:       8,
			SummaryRecoveryTrigger:   10000,
		},
	}
}

// LoadRules returns DefaultRules overlaid with the YAML file at path.
// An empty path yields the defaults unchanged. Entries of the keyed tables
// (pricing modes, categories, response multipliers, elasticity) are merged
// field by field onto their defaults; lists are replaced whole.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing rules YAML: %w", err)
	}
	if len(doc.Content) == 0 {
		return rules, nil
	}

	if err := doc.Decode(rules); err != nil {
		return nil, fmt.Errorf("parsing rules YAML: %w", err)
	}

	base := DefaultRules()
	if rules.Pricing.Modes, err = mergeEntries(&doc, base.Pricing.Modes, "pricing", "modes"); err != nil {
		return nil, err
	}
	if rules.Pricing.Categories, err = mergeEntries(&doc, base.Pricing.Categories, "pricing", "categories"); err != nil {
		return nil, err
	}
	if rules.Pricing.ResponseMultipliers, err = mergeEntries(&doc, base.Pricing.ResponseMultipliers, "pricing", "response_multipliers"); err != nil {
		return nil, err
	}
	if rules.Velocity.ElasticityByCategory, err = mergeEntries(&doc, base.Velocity.ElasticityByCategory, "velocity", "elasticity_by_category"); err != nil {
		return nil, err
	}

	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// mergeEntries decodes each entry of the mapping at path onto a copy of its
// default value, so fields an entry leaves out keep their defaults.
func mergeEntries[T any](doc *yaml.Node, defaults map[string]T, path ...string) (map[string]T, error) {
	merged := make(map[string]T, len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}

	node := lookupNode(doc, path...)
	if node == nil {
		return merged, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("rules %s: expected a mapping", strings.Join(path, "."))
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		entry := merged[key]
		if err := node.Content[i+1].Decode(&entry); err != nil {
			return nil, fmt.Errorf("rules %s.%s: %w", strings.Join(path, "."), key, err)
		}
		merged[key] = entry
	}
	return merged, nil
}

func lookupNode(node *yaml.Node, path ...string) *yaml.Node {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil
		}
		node = node.Content[0]
	}
	for _, key := range path {
		if node.Kind != yaml.MappingNode {
			return nil
		}
		var next *yaml.Node
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == key {
				next = node.Content[i+1]
				break
			}
		}
		if next == nil {
			return nil
		}
		node = next
	}
	return node
}

var (
	requiredModes      = []string{"emergency", "aggressive", "conservative"}
	requiredCategories = []string{"dead", "slow", "seasonal", "standard"}
)

// Validate checks that the tables the engines look up are complete and that
// the stepped tables are ordered from the highest threshold down.
func (r *Rules) Validate() error {
	for _, mode := range requiredModes {
		if _, ok := r.Pricing.Modes[mode]; !ok {
			return fmt.Errorf("rules: pricing mode %q is missing", mode)
		}
	}
	for _, category := range requiredCategories {
		c, ok := r.Pricing.Categories[category]
		if !ok {
			return fmt.Errorf("rules: pricing category %q is missing", category)
		}
		if c.Tier == "" {
			return fmt.Errorf("rules: pricing category %q has no tier", category)
		}
	}

	steps := r.Classifier.ProtectionSteps
	for i := 1; i < len(steps); i++ {
		if steps[i].MinMargin >= steps[i-1].MinMargin {
			return fmt.Errorf("rules: protection_steps must descend by min_margin")
		}
	}
	clearance := r.Pricing.ClearanceSteps
	for i := 1; i < len(clearance); i++ {
		if clearance[i].MinUrgency >= clearance[i-1].MinUrgency {
			return fmt.Errorf("rules: clearance_steps must descend by min_urgency")
		}
	}
	boosts := r.Pricing.PressureBoosts
	for i := 1; i < len(boosts); i++ {
		if boosts[i].MinQty >= boosts[i-1].MinQty {
			return fmt.Errorf("rules: pressure_boosts must descend by min_qty")
		}
	}
	return nil
}

package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"inventory-intel/config"
	"inventory-intel/internal/models"
	"inventory-intel/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pricing categories, keys of PricingRules.Categories
const (
	pricingDead     = "dead"
	pricingSlow     = "slow"
	pricingSeasonal = "seasonal"
	pricingStandard = "standard"
)

// PricingEngine produces ranked markdown recommendations. It never writes
// prices back to the catalog.
type PricingEngine struct {
	catalog CatalogStore
	cash    CashSource
	rules   config.PricingRules
	clock   Clock
	logger  *zap.Logger
}

// NewPricingEngine creates a pricing engine. cash may be nil, in which case
// the mode falls back to conservative unless forced.
func NewPricingEngine(catalog CatalogStore, cash CashSource, rules *config.Rules, clock Clock) *PricingEngine {
	if clock == nil {
		clock = time.Now
	}
	return &PricingEngine{
		catalog: catalog,
		cash:    cash,
		rules:   rules.Pricing,
		clock:   clock,
		logger:  util.EngineLogger(models.EngineClearance),
	}
}

// GenerateRecommendations builds a clearance batch of at most maxItems
// recommendations. forcedMode, when non-empty, overrides the cash-derived mode.
func (pe *PricingEngine) GenerateRecommendations(ctx context.Context, maxItems int, forcedMode string) (*models.ClearanceBatch, error) {
	ctx, span := util.StartEngineSpan(ctx, models.EngineClearance, "PricingEngine.GenerateRecommendations")
	defer span.End()

	if forcedMode != "" {
		if _, ok := pe.rules.Modes[forcedMode]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidMode, forcedMode)
		}
	}

	now := pe.clock()
	variants, err := pe.catalog.FetchCatalogVariants(ctx, models.VariantFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch variants: %w", err)
	}

	mode := pe.ResolveMode(ctx, forcedMode, pe.hasSeasonalPressure(variants, now))
	candidates := pe.SelectCandidates(variants, now, maxItems)

	recs := make([]models.ClearancePricingRecommendation, 0, len(candidates))
	for i := range candidates {
		recs = append(recs, pe.CalculateItemPricing(&candidates[i], mode, now))
	}
	sortRecommendations(recs)

	batch := pe.aggregate(recs, mode, now)
	util.ClearanceRecommendationsTotal.WithLabelValues(mode).Add(float64(len(recs)))

	pe.logger.Info("Clearance batch generated",
		zap.String("batch_id", batch.ID),
		zap.String("mode", mode),
		zap.Int("candidates", len(candidates)),
		zap.Float64("total_recovery", batch.TotalRecoveryPotential))
	return batch, nil
}

// ResolveMode picks the pricing mode. An unavailable cash position resolves
// to conservative.
func (pe *PricingEngine) ResolveMode(ctx context.Context, forcedMode string, seasonalPressure bool) string {
	if forcedMode != "" {
		return forcedMode
	}

	adequacy := ""
	if pe.cash != nil {
		status, err := pe.cash.FetchCashStatus(ctx)
		if err != nil {
			pe.logger.Warn("Cash status unavailable, defaulting to conservative mode", zap.Error(err))
			return models.ModeConservative
		}
		adequacy = status.CashAdequacyStatus
	}

	return ModeForCash(adequacy, seasonalPressure)
}

// ModeForCash maps cash adequacy and seasonal pressure to a pricing mode.
func ModeForCash(adequacy string, seasonalPressure bool) string {
	switch {
	case adequacy == models.CashCritical:
		return models.ModeEmergency
	case adequacy == models.CashTight || seasonalPressure:
		return models.ModeAggressive
	default:
		return models.ModeConservative
	}
}

// hasSeasonalPressure is true when enough seasonal items end within the
// pressure window.
func (pe *PricingEngine) hasSeasonalPressure(variants []models.Variant, now time.Time) bool {
	count := 0
	for i := range variants {
		if !variants[i].SeasonalItem {
			continue
		}
		if days, ok := variants[i].DaysToSeasonalEnd(now); ok && days >= 0 && days <= pe.rules.PressureWindowDays {
			count++
		}
	}
	return count >= pe.rules.PressureItemCount
}

// IsCandidate reports whether a variant qualifies for clearance.
func (pe *PricingEngine) IsCandidate(v *models.Variant, now time.Time) bool {
	if !v.Active || strings.TrimSpace(v.SKU) == "" || v.Price <= 0 || v.Quantity <= 0 {
		return false
	}

	if v.VelocityCategory == models.VelocityDead {
		return true
	}
	if v.VelocityCategory == models.VelocitySlow && v.Quantity >= pe.rules.SlowMinQty {
		return true
	}
	if v.SeasonalItem {
		if days, ok := v.DaysToSeasonalEnd(now); ok && days <= pe.rules.SeasonalWindowDays {
			return true
		}
	}
	if v.WeeksOfStock > pe.rules.MaxWeeksOfStock {
		return true
	}
	return v.Quantity >= pe.rules.OverstockQty && v.WeeklySalesUnits < pe.rules.OverstockMaxWeekly
}

// SelectCandidates filters and ranks clearance candidates: seasonal items
// inside the boost window first, then cash impact, then inventory value.
func (pe *PricingEngine) SelectCandidates(variants []models.Variant, now time.Time, maxItems int) []models.Variant {
	candidates := make([]models.Variant, 0)
	for i := range variants {
		if pe.IsCandidate(&variants[i], now) {
			candidates = append(candidates, variants[i])
		}
	}

	urgent := func(v *models.Variant) bool {
		days, ok := v.DaysToSeasonalEnd(now)
		return v.SeasonalItem && ok && days <= pe.rules.SeasonalBoostWindowDays
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := &candidates[i], &candidates[j]
		if ua, ub := urgent(a), urgent(b); ua != ub {
			return ua
		}
		if a.CashImpactScore != b.CashImpactScore {
			return a.CashImpactScore > b.CashImpactScore
		}
		if va, vb := a.InventoryValue(), b.InventoryValue(); va != vb {
			return va > vb
		}
		return a.ID < b.ID
	})

	if maxItems > 0 && len(candidates) > maxItems {
		candidates = candidates[:maxItems]
	}
	return candidates
}

func pricingCategory(v *models.Variant) string {
	switch {
	case v.VelocityCategory == models.VelocityDead:
		return pricingDead
	case v.VelocityCategory == models.VelocitySlow:
		return pricingSlow
	case v.SeasonalItem:
		return pricingSeasonal
	default:
		return pricingStandard
	}
}

// CalculateItemPricing prices one variant under mode. The discount never
// exceeds the variant's profit protection threshold.
func (pe *PricingEngine) CalculateItemPricing(v *models.Variant, mode string, now time.Time) models.ClearancePricingRecommendation {
	category := pricingCategory(v)
	base := pe.rules.Categories[category]
	adj := pe.rules.Modes[mode]

	discount := base.Discount * adj.Multiplier
	urgency := base.Urgency + adj.UrgencyDelta
	reasons := []string{pe.categoryReason(category, v)}
	reasons = append(reasons, fmt.Sprintf("%s mode (x%.1f)", mode, adj.Multiplier))

	rec := models.ClearancePricingRecommendation{
		VariantID:           v.ID,
		SKU:                 v.SKU,
		ProductTitle:        v.ProductTitle,
		CurrentPrice:        v.Price,
		ClearanceTier:       base.Tier,
		Quantity:            v.Quantity,
		ProtectionThreshold: v.ProfitProtectionThreshold,
	}

	if days, ok := v.DaysToSeasonalEnd(now); ok && v.SeasonalItem {
		d := days
		rec.DaysToSeasonalEnd = &d
		window := float64(pe.rules.SeasonalBoostWindowDays)
		if float64(days) <= window && window > 0 {
			remaining := math.Max(0, float64(days))
			discount += (window - remaining) / window * pe.rules.SeasonalBoostMaxDiscount
			urgency += pe.rules.SeasonalBoostUrgency
			rec.SeasonalUrgency = true
			reasons = append(reasons, fmt.Sprintf("%d days until %s season ends", days, seasonLabel(v.SeasonalType)))
		}
	}

	for _, boost := range pe.rules.PressureBoosts {
		if v.Quantity > boost.MinQty {
			discount += boost.Discount
			urgency += boost.Urgency
			reasons = append(reasons, fmt.Sprintf("high inventory (%d units)", v.Quantity))
			break
		}
	}

	discount = util.Round(discount, 1)
	if discount > v.ProfitProtectionThreshold {
		reasons = append(reasons, fmt.Sprintf("capped at %.0f%% profit protection", v.ProfitProtectionThreshold))
		discount = v.ProfitProtectionThreshold
	}
	discount = math.Max(0, discount)

	rec.DiscountPercentage = discount
	rec.RecommendedPrice = util.RoundMoney(v.Price * (1 - discount/100))
	rec.UrgencyScore = clampScore(urgency)
	rec.CashRecoveryPotential = pe.estimateRecovery(v, discount, rec.RecommendedPrice)
	rec.Reasoning = strings.Join(reasons, "; ")
	return rec
}

// estimateRecovery projects post-markdown weekly units and the dollars
// recovered over the recovery horizon, capped by stock on hand.
func (pe *PricingEngine) estimateRecovery(v *models.Variant, discount, recommendedPrice float64) float64 {
	response, ok := pe.rules.ResponseMultipliers[v.VelocityCategory]
	if !ok {
		response = pe.rules.DefaultResponse
	}

	projected := v.WeeklySalesUnits * (1 + discount/100*response)
	if v.WeeklySalesUnits == 0 && v.VelocityCategory == models.VelocityDead {
		floor := math.Max(pe.rules.DeadStockMinWeekly, discount/pe.rules.DeadStockDiscountDivisor)
		projected = math.Max(projected, floor)
	}

	units := math.Min(float64(v.Quantity), projected*float64(pe.rules.RecoveryWeeks))
	return util.RoundMoney(units * recommendedPrice)
}

func (pe *PricingEngine) categoryReason(category string, v *models.Variant) string {
	switch category {
	case pricingDead:
		return "no sales in the velocity window"
	case pricingSlow:
		return fmt.Sprintf("slow mover at %.2f units/week", v.WeeklySalesUnits)
	case pricingSeasonal:
		return fmt.Sprintf("%s seasonal stock", seasonLabel(v.SeasonalType))
	default:
		if v.WeeksOfStock > pe.rules.MaxWeeksOfStock {
			return fmt.Sprintf("overstocked at %.0f weeks of cover", v.WeeksOfStock)
		}
		return "excess inventory"
	}
}

func (pe *PricingEngine) aggregate(recs []models.ClearancePricingRecommendation, mode string, now time.Time) *models.ClearanceBatch {
	batch := &models.ClearanceBatch{
		ID:              uuid.New().String(),
		Mode:            mode,
		Recommendations: recs,
		GeneratedAt:     now,
	}

	var totalDiscount, totalUrgency, impact float64
	for _, r := range recs {
		batch.TotalRecoveryPotential += r.CashRecoveryPotential
		totalDiscount += r.DiscountPercentage
		totalUrgency += r.UrgencyScore
		impact += r.CashRecoveryPotential * r.UrgencyScore / 100
	}

	meanUrgency := 0.0
	if len(recs) > 0 {
		batch.AverageDiscount = util.Round(totalDiscount/float64(len(recs)), 1)
		meanUrgency = totalUrgency / float64(len(recs))
	}
	batch.TotalRecoveryPotential = util.RoundMoney(batch.TotalRecoveryPotential)
	batch.CashImpactScore = util.RoundMoney(impact)
	batch.EstimatedClearanceWeeks = pe.clearanceWeeks(meanUrgency)
	return batch
}

func (pe *PricingEngine) clearanceWeeks(meanUrgency float64) int {
	for _, step := range pe.rules.ClearanceSteps {
		if meanUrgency >= step.MinUrgency {
			return step.Weeks
		}
	}
	return pe.rules.DefaultClearanceWeeks
}

// sortRecommendations puts seasonal-urgent items first, then urgency, then
// recovery potential.
func sortRecommendations(recs []models.ClearancePricingRecommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.SeasonalUrgency != b.SeasonalUrgency {
			return a.SeasonalUrgency
		}
		if a.UrgencyScore != b.UrgencyScore {
			return a.UrgencyScore > b.UrgencyScore
		}
		if a.CashRecoveryPotential != b.CashRecoveryPotential {
			return a.CashRecoveryPotential > b.CashRecoveryPotential
		}
		return a.VariantID < b.VariantID
	})
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func seasonLabel(seasonalType string) string {
	if seasonalType == "" {
		return "seasonal"
	}
	return seasonalType
}

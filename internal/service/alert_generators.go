package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"inventory-intel/config"
	"inventory-intel/internal/models"
	"inventory-intel/internal/util"
)

// ReorderAlerts flags fast and medium sellers about to run out.
type ReorderAlerts struct {
	catalog CatalogStore
	rules   config.AlertRules
}

func (g *ReorderAlerts) Name() string { return models.AlertCriticalReorder }

func (g *ReorderAlerts) Produce(ctx context.Context, ac *AlertContext) ([]models.CashAlert, error) {
	variants, err := g.catalog.FetchCatalogVariants(ctx, models.VariantFilter{
		VelocityCategories: []string{models.VelocityFast, models.VelocityMedium},
		MinQuantity:        1,
	})
	if err != nil {
		return nil, fmt.Errorf("reorder candidates: %w", err)
	}

	var alerts []models.CashAlert
	for i := range variants {
		v := &variants[i]
		if v.ReorderUrgency != models.UrgencyCritical && v.ReorderUrgency != models.UrgencyHigh {
			continue
		}
		if v.Quantity <= 0 || v.WeeksOfStock > g.rules.ReorderMaxWeeks {
			continue
		}
		alerts = append(alerts, g.alertFor(v))
	}
	return alerts, nil
}

func (g *ReorderAlerts) alertFor(v *models.Variant) models.CashAlert {
	weeksLeft := v.WeeksOfStock

	priority := models.PriorityMedium
	resolution := "1-2 weeks"
	switch {
	case v.ReorderUrgency == models.UrgencyCritical || weeksLeft <= g.rules.ReorderCriticalWeeks:
		priority = models.PriorityCritical
		resolution = "24-48 hours"
	case v.ReorderUrgency == models.UrgencyHigh || weeksLeft <= g.rules.ReorderHighWeeks:
		priority = models.PriorityHigh
		resolution = "3-5 days"
	}

	unitCost := v.Cost
	if unitCost <= 0 {
		unitCost = v.Price * g.rules.ReorderCostFallbackRatio
	}
	reorderUnits := int(math.Ceil(v.WeeklySalesUnits * g.rules.ReorderCoverWeeks))
	reorderCost := float64(reorderUnits) * unitCost
	lostRevenue := v.WeeklySalesUnits * v.Price * math.Max(g.rules.ReorderLostSalesMinWeeks, g.rules.ReorderMaxWeeks-weeksLeft)

	return models.CashAlert{
		AlertType: models.AlertCriticalReorder,
		Priority:  priority,
		Title:     fmt.Sprintf("Reorder %s: %.1f weeks of stock left", v.SKU, weeksLeft),
		Message: fmt.Sprintf("%s sells %.1f units/week and has %d on hand (%.1f weeks of cover).",
			displayName(v), v.WeeklySalesUnits, v.Quantity, weeksLeft),
		CashImpact:              util.RoundMoney(reorderCost),
		SuggestedAction:         fmt.Sprintf("Reorder about %d units (%.0f weeks of cover) for $%.2f", reorderUnits, g.rules.ReorderCoverWeeks, reorderCost),
		VariantIDs:              []int64{v.ID},
		SKUs:                    []string{v.SKU},
		UrgencyScore:            clampScore(g.rules.ReorderUrgencyBase + (g.rules.ReorderMaxWeeks-weeksLeft)*g.rules.ReorderUrgencyPerWeek),
		EstimatedResolutionTime: resolution,
		CashRecoveryPotential:   util.RoundMoney(lostRevenue),
		RequiresAttention:       priority == models.PriorityCritical || priority == models.PriorityHigh,
	}
}

// DeadStockAlerts raises one aggregate alert for cash tied up in dead stock.
type DeadStockAlerts struct {
	catalog CatalogStore
	rules   config.AlertRules
}

func (g *DeadStockAlerts) Name() string { return models.AlertDeadStockDrain }

func (g *DeadStockAlerts) Produce(ctx context.Context, ac *AlertContext) ([]models.CashAlert, error) {
	variants, err := g.catalog.FetchCatalogVariants(ctx, models.VariantFilter{
		VelocityCategories: []string{models.VelocityDead},
		MinQuantity:        g.rules.DeadStockMinQty,
	})
	if err != nil {
		return nil, fmt.Errorf("dead stock candidates: %w", err)
	}

	items := make([]models.Variant, 0, len(variants))
	for _, v := range variants {
		if v.Price > 0 && v.Quantity >= g.rules.DeadStockMinQty {
			items = append(items, v)
		}
	}
	if len(items) == 0 {
		return nil, nil
	}

	sort.SliceStable(items, func(i, j int) bool {
		if vi, vj := items[i].InventoryValue(), items[j].InventoryValue(); vi != vj {
			return vi > vj
		}
		return items[i].ID < items[j].ID
	})
	if len(items) > g.rules.DeadStockTopN {
		items = items[:g.rules.DeadStockTopN]
	}

	var tiedUp float64
	ids := make([]int64, 0, len(items))
	skus := make([]string, 0, len(items))
	for i := range items {
		tiedUp += items[i].InventoryValue()
		ids = append(ids, items[i].ID)
		skus = append(skus, items[i].SKU)
	}

	return []models.CashAlert{{
		AlertType: models.AlertDeadStockDrain,
		Priority:  models.PriorityHigh,
		Title:     fmt.Sprintf("$%.0f tied up in %d dead-stock items", tiedUp, len(items)),
		Message: fmt.Sprintf("%d variants had no sales in the velocity window; the largest is %s ($%.2f on hand).",
			len(items), displayName(&items[0]), items[0].InventoryValue()),
		CashImpact:              util.RoundMoney(tiedUp),
		SuggestedAction:         "Start a dead-stock liquidation using the clearance recommendations",
		VariantIDs:              ids,
		SKUs:                    skus,
		UrgencyScore:            g.rules.DeadStockUrgency,
		EstimatedResolutionTime: "2-4 weeks",
		CashRecoveryPotential:   util.RoundMoney(tiedUp * g.rules.DeadStockRecoveryRate),
		RequiresAttention:       true,
	}}, nil
}

// SeasonalAlerts raises one alert per season with stock about to go stale.
type SeasonalAlerts struct {
	catalog CatalogStore
	rules   config.AlertRules
}

func (g *SeasonalAlerts) Name() string { return models.AlertSeasonalUrgent }

type seasonalGroup struct {
	seasonalType string
	variants     []*models.Variant
	totalDays    int
	value        float64
}

func (g *SeasonalAlerts) Produce(ctx context.Context, ac *AlertContext) ([]models.CashAlert, error) {
	variants, err := g.catalog.FetchCatalogVariants(ctx, models.VariantFilter{
		SeasonalOnly: true,
		MinQuantity:  g.rules.SeasonalMinQty,
	})
	if err != nil {
		return nil, fmt.Errorf("seasonal candidates: %w", err)
	}

	groups := make(map[string]*seasonalGroup)
	for i := range variants {
		v := &variants[i]
		days, ok := v.DaysToSeasonalEnd(ac.Now)
		if !ok || days < 0 || days > g.rules.SeasonalWindowDays || v.Quantity < g.rules.SeasonalMinQty {
			continue
		}
		key := seasonLabel(v.SeasonalType)
		grp, ok := groups[key]
		if !ok {
			grp = &seasonalGroup{seasonalType: key}
			groups[key] = grp
		}
		grp.variants = append(grp.variants, v)
		grp.totalDays += days
		grp.value += v.InventoryValue()
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	alerts := make([]models.CashAlert, 0, len(keys))
	for _, k := range keys {
		alerts = append(alerts, g.alertFor(groups[k]))
	}
	return alerts, nil
}

func (g *SeasonalAlerts) alertFor(grp *seasonalGroup) models.CashAlert {
	avgDays := float64(grp.totalDays) / float64(len(grp.variants))

	priority := models.PriorityMedium
	resolution := "2-3 weeks"
	switch {
	case avgDays <= g.rules.SeasonalCriticalDays:
		priority = models.PriorityCritical
		resolution = "this week"
	case avgDays <= g.rules.SeasonalHighDays:
		priority = models.PriorityHigh
		resolution = "1-2 weeks"
	}

	ids := make([]int64, 0, len(grp.variants))
	skus := make([]string, 0, len(grp.variants))
	for _, v := range grp.variants {
		ids = append(ids, v.ID)
		skus = append(skus, v.SKU)
	}

	return models.CashAlert{
		AlertType: models.AlertSeasonalUrgent,
		Priority:  priority,
		Title:     fmt.Sprintf("%d %s items expire in ~%.0f days", len(grp.variants), grp.seasonalType, avgDays),
		Message: fmt.Sprintf("$%.2f of %s inventory loses most of its value when the season ends.",
			grp.value, grp.seasonalType),
		CashImpact:              util.RoundMoney(grp.value),
		SuggestedAction:         fmt.Sprintf("Mark down %s stock now and feature it in bundles", grp.seasonalType),
		VariantIDs:              ids,
		SKUs:                    skus,
		UrgencyScore:            clampScore(100 - avgDays),
		EstimatedResolutionTime: resolution,
		CashRecoveryPotential:   util.RoundMoney(grp.value * g.rules.SeasonalRecoveryRate),
		RequiresAttention:       priority != models.PriorityMedium,
	}
}

// OpportunityAlerts wraps the top clearance recommendations in one alert.
type OpportunityAlerts struct {
	pricing *PricingEngine
	rules   config.AlertRules
}

func (g *OpportunityAlerts) Name() string { return models.AlertCashOpportunity }

func (g *OpportunityAlerts) Produce(ctx context.Context, ac *AlertContext) ([]models.CashAlert, error) {
	batch, err := g.pricing.GenerateRecommendations(ctx, g.rules.OpportunityTopN, "")
	if err != nil {
		return nil, fmt.Errorf("clearance opportunity: %w", err)
	}
	if batch.TotalRecoveryPotential <= 0 || len(batch.Recommendations) == 0 {
		return nil, nil
	}

	var exposed float64
	ids := make([]int64, 0, len(batch.Recommendations))
	skus := make([]string, 0, len(batch.Recommendations))
	for _, r := range batch.Recommendations {
		exposed += r.CurrentPrice * float64(r.Quantity)
		ids = append(ids, r.VariantID)
		skus = append(skus, r.SKU)
	}

	return []models.CashAlert{{
		AlertType: models.AlertCashOpportunity,
		Priority:  models.PriorityMedium,
		Title:     fmt.Sprintf("Clearance could recover $%.0f", batch.TotalRecoveryPotential),
		Message: fmt.Sprintf("%d items priced in %s mode at an average %.1f%% discount.",
			len(batch.Recommendations), batch.Mode, batch.AverageDiscount),
		CashImpact:              util.RoundMoney(exposed),
		SuggestedAction:         "Review and apply the clearance recommendations",
		VariantIDs:              ids,
		SKUs:                    skus,
		UrgencyScore:            g.rules.OpportunityUrgency,
		EstimatedResolutionTime: fmt.Sprintf("%d weeks", batch.EstimatedClearanceWeeks),
		CashRecoveryPotential:   batch.TotalRecoveryPotential,
		RequiresAttention:       false,
	}}, nil
}

// MarginAlerts flags well-selling items whose margin is too thin.
type MarginAlerts struct {
	catalog CatalogStore
	rules   config.AlertRules
}

func (g *MarginAlerts) Name() string { return models.AlertMarginProtection }

func (g *MarginAlerts) Produce(ctx context.Context, ac *AlertContext) ([]models.CashAlert, error) {
	variants, err := g.catalog.FetchCatalogVariants(ctx, models.VariantFilter{
		VelocityCategories: []string{models.VelocityFast, models.VelocityMedium},
	})
	if err != nil {
		return nil, fmt.Errorf("margin candidates: %w", err)
	}

	var critical, warning []*models.Variant
	for i := range variants {
		v := &variants[i]
		if v.Price <= 0 || v.MarginPercentage >= g.rules.MarginWatchMax {
			continue
		}
		switch {
		case v.MarginPercentage < g.rules.MarginCriticalMax:
			critical = append(critical, v)
		case v.MarginPercentage < g.rules.MarginWarningMax:
			warning = append(warning, v)
		}
	}

	var alerts []models.CashAlert
	if len(critical) > 0 {
		alerts = append(alerts, g.alertFor(critical, models.PriorityHigh, g.rules.MarginCriticalUrgency,
			fmt.Sprintf("%d fast sellers below %.0f%% margin", len(critical), g.rules.MarginCriticalMax),
			"Raise prices or renegotiate cost before reordering"))
	}
	if len(warning) > 0 {
		alerts = append(alerts, g.alertFor(warning, models.PriorityMedium, g.rules.MarginWarningUrgency,
			fmt.Sprintf("%d fast sellers at %.0f-%.0f%% margin", len(warning), g.rules.MarginCriticalMax, g.rules.MarginWarningMax),
			"Exclude from markdowns and review pricing"))
	}
	return alerts, nil
}

// alertFor sizes the gap to the watch margin over MarginHorizonWeeks.
func (g *MarginAlerts) alertFor(items []*models.Variant, priority string, urgency float64, title, action string) models.CashAlert {
	var gap, revenue float64
	ids := make([]int64, 0, len(items))
	skus := make([]string, 0, len(items))
	for _, v := range items {
		revenue += v.WeeklySalesRevenue
		gap += v.WeeklySalesRevenue * (g.rules.MarginWatchMax - v.MarginPercentage) / 100 * g.rules.MarginHorizonWeeks
		ids = append(ids, v.ID)
		skus = append(skus, v.SKU)
	}

	return models.CashAlert{
		AlertType:               models.AlertMarginProtection,
		Priority:                priority,
		Title:                   title,
		Message:                 fmt.Sprintf("These items bring in $%.2f a week at thin margins.", revenue),
		CashImpact:              util.RoundMoney(gap),
		SuggestedAction:         action,
		VariantIDs:              ids,
		SKUs:                    skus,
		UrgencyScore:            urgency,
		EstimatedResolutionTime: "1 week",
		CashRecoveryPotential:   util.RoundMoney(gap),
		RequiresAttention:       priority == models.PriorityHigh,
	}
}

func displayName(v *models.Variant) string {
	if v.ProductTitle == "" {
		return v.SKU
	}
	if v.VariantTitle == "" || v.VariantTitle == "Default Title" {
		return v.ProductTitle
	}
	return v.ProductTitle + " - " + v.VariantTitle
}

package service

import (
	"context"
	"testing"
	"time"

	"inventory-intel/config"
	"inventory-intel/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alertsNow = date(2026, time.October, 18)

func alertContext() *AlertContext {
	return &AlertContext{RunID: "run-1", Now: alertsNow}
}

type stubGenerator struct {
	name   string
	alerts []models.CashAlert
	err    error
}

func (s *stubGenerator) Name() string { return s.name }

func (s *stubGenerator) Produce(ctx context.Context, ac *AlertContext) ([]models.CashAlert, error) {
	return s.alerts, s.err
}

func TestReorderAlerts(t *testing.T) {
	critical := pricedVariant(1, models.VelocityFast, 6, 10, 50)
	critical.Cost = 4
	critical.WeeklySalesUnits = 2
	critical.WeeksOfStock = 3
	critical.ReorderUrgency = models.UrgencyCritical

	high := pricedVariant(2, models.VelocityMedium, 6, 20, 50)
	high.WeeklySalesUnits = 1
	high.WeeksOfStock = 6
	high.ReorderUrgency = models.UrgencyHigh

	relaxed := pricedVariant(3, models.VelocityFast, 40, 10, 50)
	relaxed.WeeklySalesUnits = 4
	relaxed.WeeksOfStock = 10
	relaxed.ReorderUrgency = models.UrgencyLow

	stale := pricedVariant(4, models.VelocityFast, 90, 10, 50)
	stale.WeeklySalesUnits = 10
	stale.WeeksOfStock = 9
	stale.ReorderUrgency = models.UrgencyCritical

	slow := pricedVariant(5, models.VelocitySlow, 2, 10, 50)
	slow.ReorderUrgency = models.UrgencyCritical

	g := &ReorderAlerts{catalog: newFakeCatalog(critical, high, relaxed, stale, slow), rules: config.DefaultRules().Alerts}
	alerts, err := g.Produce(context.Background(), alertContext())
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	first := alerts[0]
	assert.Equal(t, models.AlertCriticalReorder, first.AlertType)
	assert.Equal(t, models.PriorityCritical, first.Priority)
	assert.Equal(t, 32.0, first.CashImpact, "8 units at cost 4")
	assert.Equal(t, 100.0, first.CashRecoveryPotential, "2/week * $10 * 5 weeks")
	assert.Equal(t, 85.0, first.UrgencyScore)
	assert.Equal(t, "24-48 hours", first.EstimatedResolutionTime)
	assert.True(t, first.RequiresAttention)
	assert.Equal(t, []int64{1}, []int64(first.VariantIDs))

	second := alerts[1]
	assert.Equal(t, models.PriorityHigh, second.Priority)
	assert.Equal(t, 40.0, second.CashImpact, "cost falls back to half the price")
	assert.Equal(t, 80.0, second.CashRecoveryPotential, "four-week floor on lost sales")
	assert.Equal(t, 70.0, second.UrgencyScore)
}

func TestReorderAlertsUseTunedRules(t *testing.T) {
	v := pricedVariant(1, models.VelocityFast, 6, 10, 50)
	v.WeeklySalesUnits = 2
	v.WeeksOfStock = 3
	v.ReorderUrgency = models.UrgencyHigh

	rules := config.DefaultRules().Alerts
	rules.ReorderCriticalWeeks = 3
	rules.ReorderUrgencyBase = 50
	rules.ReorderUrgencyPerWeek = 6
	rules.ReorderCostFallbackRatio = 0.25
	rules.ReorderLostSalesMinWeeks = 6

	g := &ReorderAlerts{catalog: newFakeCatalog(v), rules: rules}
	alerts, err := g.Produce(context.Background(), alertContext())
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, models.PriorityCritical, a.Priority, "3 weeks is inside the critical cut-off")
	assert.Equal(t, 80.0, a.UrgencyScore, "50 + (8-3)*6")
	assert.Equal(t, 20.0, a.CashImpact, "8 units at a quarter of the price")
	assert.Equal(t, 120.0, a.CashRecoveryPotential, "2/week * $10 * 6-week floor")
}

func TestDeadStockAlerts(t *testing.T) {
	var variants []models.Variant
	for i := int64(1); i <= 17; i++ {
		variants = append(variants, pricedVariant(i, models.VelocityDead, 10, float64(i), 50))
	}
	variants = append(variants, pricedVariant(99, models.VelocityDead, 4, 1000, 50))

	g := &DeadStockAlerts{catalog: newFakeCatalog(variants...), rules: config.DefaultRules().Alerts}
	alerts, err := g.Produce(context.Background(), alertContext())
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, models.AlertDeadStockDrain, a.AlertType)
	assert.Equal(t, models.PriorityHigh, a.Priority)
	assert.Len(t, a.VariantIDs, 15)
	assert.Equal(t, int64(17), a.VariantIDs[0], "largest value first")
	assert.NotContains(t, []int64(a.VariantIDs), int64(99))

	// values 30..170 in steps of 10
	assert.Equal(t, 1500.0, a.CashImpact)
	assert.Equal(t, 900.0, a.CashRecoveryPotential)
	assert.Equal(t, 75.0, a.UrgencyScore)
}

func TestDeadStockAlertsNothingToReport(t *testing.T) {
	g := &DeadStockAlerts{catalog: newFakeCatalog(), rules: config.DefaultRules().Alerts}
	alerts, err := g.Produce(context.Background(), alertContext())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestSeasonalAlerts(t *testing.T) {
	xmasSoon := seasonalAt(1, models.SeasonalChristmas, 10, 10, 20)
	xmasLater := seasonalAt(2, models.SeasonalChristmas, 20, 10, 10)
	halloween := seasonalAt(3, models.SeasonalHalloween, 5, 4, 25)
	farAway := seasonalAt(4, models.SeasonalChristmas, 50, 10, 10)
	tooFew := seasonalAt(5, models.SeasonalHalloween, 5, 2, 10)
	ended := seasonalAt(6, models.SeasonalHalloween, -1, 10, 10)

	g := &SeasonalAlerts{
		catalog: newFakeCatalog(xmasSoon, xmasLater, halloween, farAway, tooFew, ended),
		rules:   config.DefaultRules().Alerts,
	}
	alerts, err := g.Produce(context.Background(), alertContext())
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	xmas := alerts[0]
	assert.Equal(t, []int64{1, 2}, []int64(xmas.VariantIDs))
	assert.Equal(t, models.PriorityHigh, xmas.Priority, "average 15 days")
	assert.Equal(t, 85.0, xmas.UrgencyScore)
	assert.Equal(t, 300.0, xmas.CashImpact)
	assert.Equal(t, 120.0, xmas.CashRecoveryPotential)
	assert.True(t, xmas.RequiresAttention)

	hw := alerts[1]
	assert.Equal(t, []int64{3}, []int64(hw.VariantIDs))
	assert.Equal(t, models.PriorityCritical, hw.Priority)
	assert.Equal(t, 95.0, hw.UrgencyScore)
}

func seasonalAt(id int64, seasonalType string, daysToEnd, qty int, price float64) models.Variant {
	v := activeVariant(id, "S-"+seasonalType)
	end := alertsNow.AddDate(0, 0, daysToEnd)
	v.SeasonalItem = true
	v.SeasonalType = seasonalType
	v.SeasonalEndDate = &end
	v.Quantity = qty
	v.Price = price
	return v
}

func TestMarginAlerts(t *testing.T) {
	thin := pricedVariant(1, models.VelocityFast, 10, 10, 25)
	thin.MarginPercentage = 5
	thin.WeeklySalesRevenue = 100

	warning := pricedVariant(2, models.VelocityMedium, 10, 10, 25)
	warning.MarginPercentage = 15
	warning.WeeklySalesRevenue = 50

	watched := pricedVariant(3, models.VelocityFast, 10, 10, 25)
	watched.MarginPercentage = 25

	slow := pricedVariant(4, models.VelocitySlow, 10, 10, 25)
	slow.MarginPercentage = 2

	g := &MarginAlerts{catalog: newFakeCatalog(thin, warning, watched, slow), rules: config.DefaultRules().Alerts}
	alerts, err := g.Produce(context.Background(), alertContext())
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	assert.Equal(t, models.PriorityHigh, alerts[0].Priority)
	assert.Equal(t, []int64{1}, []int64(alerts[0].VariantIDs))
	assert.Equal(t, 200.0, alerts[0].CashImpact, "100 * 25% * 8 weeks")
	assert.Equal(t, 85.0, alerts[0].UrgencyScore)
	assert.True(t, alerts[0].RequiresAttention)

	assert.Equal(t, models.PriorityMedium, alerts[1].Priority)
	assert.Equal(t, []int64{2}, []int64(alerts[1].VariantIDs))
	assert.Equal(t, 60.0, alerts[1].CashImpact)
	assert.False(t, alerts[1].RequiresAttention)
}

func TestMarginAlertsSkipUnpricedItems(t *testing.T) {
	unpriced := pricedVariant(1, models.VelocityFast, 10, 0, 25)
	unpriced.MarginPercentage = 0
	unpriced.WeeklySalesRevenue = 0

	g := &MarginAlerts{catalog: newFakeCatalog(unpriced), rules: config.DefaultRules().Alerts}
	alerts, err := g.Produce(context.Background(), alertContext())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestMarginAlertsUseTunedRules(t *testing.T) {
	thin := pricedVariant(1, models.VelocityFast, 10, 10, 25)
	thin.MarginPercentage = 5
	thin.WeeklySalesRevenue = 100

	rules := config.DefaultRules().Alerts
	rules.MarginCriticalUrgency = 90
	rules.MarginHorizonWeeks = 4

	g := &MarginAlerts{catalog: newFakeCatalog(thin), rules: rules}
	alerts, err := g.Produce(context.Background(), alertContext())
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, 90.0, alerts[0].UrgencyScore)
	assert.Equal(t, 100.0, alerts[0].CashImpact, "100 * 25% * 4 weeks")
}

func TestOpportunityAlerts(t *testing.T) {
	dead := pricedVariant(1, models.VelocityDead, 10, 20, 75)
	catalog := newFakeCatalog(dead)
	rules := config.DefaultRules()
	pricing := NewPricingEngine(catalog, nil, rules, fixedClock(alertsNow))

	g := &OpportunityAlerts{pricing: pricing, rules: rules.Alerts}
	alerts, err := g.Produce(context.Background(), alertContext())
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, models.AlertCashOpportunity, a.AlertType)
	assert.Equal(t, models.PriorityMedium, a.Priority)
	assert.Equal(t, 144.0, a.CashRecoveryPotential)
	assert.Equal(t, 200.0, a.CashImpact)
	assert.Equal(t, 50.0, a.UrgencyScore)
	assert.False(t, a.RequiresAttention)

	empty := &OpportunityAlerts{pricing: NewPricingEngine(newFakeCatalog(), nil, rules, fixedClock(alertsNow)), rules: rules.Alerts}
	alerts, err = empty.Produce(context.Background(), alertContext())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestGenerateAlertsMergesAndRanks(t *testing.T) {
	generators := []AlertGenerator{
		&stubGenerator{name: "medium", alerts: []models.CashAlert{
			{AlertType: "a", Priority: models.PriorityMedium, UrgencyScore: 99},
		}},
		&stubGenerator{name: "broken", err: errBoom},
		&stubGenerator{name: "mixed", alerts: []models.CashAlert{
			{AlertType: "b", Priority: models.PriorityHigh, UrgencyScore: 40},
			{AlertType: "c", Priority: models.PriorityCritical, UrgencyScore: 150},
			{AlertType: "d", Priority: models.PriorityHigh, UrgencyScore: 70},
		}},
	}
	cash := &fakeCash{status: models.NewCashStatus(50000, 10000, 10000, alertsNow)}
	engine := NewAlertEngine(generators, &fakeAlertStore{}, cash, config.DefaultRules(), 5000, fixedClock(alertsNow))

	alerts, ac, err := engine.GenerateAlerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 4)
	require.NotNil(t, ac.Cash)

	var types []string
	for _, a := range alerts {
		types = append(types, a.AlertType)
		assert.NotEmpty(t, a.ID)
		assert.Equal(t, ac.RunID, a.RunID)
		assert.Equal(t, alertsNow, a.CreatedAt)
		assert.LessOrEqual(t, a.UrgencyScore, 100.0)
	}
	assert.Equal(t, []string{"c", "d", "b", "a"}, types)
}

func TestGenerateAlertsAllGeneratorsFail(t *testing.T) {
	generators := []AlertGenerator{
		&stubGenerator{name: "one", err: errBoom},
		&stubGenerator{name: "two", err: errBoom},
	}
	engine := NewAlertEngine(generators, &fakeAlertStore{}, nil, config.DefaultRules(), 0, fixedClock(alertsNow))

	_, _, err := engine.GenerateAlerts(context.Background())
	assert.Error(t, err)
}

func TestGenerateAlertsWithoutCash(t *testing.T) {
	engine := NewAlertEngine(nil, &fakeAlertStore{}, &fakeCash{err: errBoom}, config.DefaultRules(), 0, fixedClock(alertsNow))

	alerts, ac, err := engine.GenerateAlerts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Nil(t, ac.Cash)
}

func TestSortAlertsIsStable(t *testing.T) {
	alerts := []models.CashAlert{
		{ID: "1", Priority: models.PriorityHigh, UrgencyScore: 50},
		{ID: "2", Priority: "unknown", UrgencyScore: 100},
		{ID: "3", Priority: models.PriorityHigh, UrgencyScore: 50},
		{ID: "4", Priority: models.PriorityLow, UrgencyScore: 100},
		{ID: "5", Priority: models.PriorityHigh, UrgencyScore: 80},
		{ID: "6", Priority: models.PriorityHigh, UrgencyScore: 50},
	}
	SortAlerts(alerts)

	var ids []string
	for _, a := range alerts {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"5", "1", "3", "6", "4", "2"}, ids)

	for i := 1; i < len(alerts); i++ {
		prev, cur := alerts[i-1], alerts[i]
		assert.GreaterOrEqual(t, models.PriorityRank(prev.Priority), models.PriorityRank(cur.Priority))
	}
}

func TestPersistAlertsCountsFailures(t *testing.T) {
	store := &fakeAlertStore{failType: models.AlertMarginProtection}
	engine := NewAlertEngine(nil, store, nil, config.DefaultRules(), 0, nil)

	failed := engine.PersistAlerts(context.Background(), []models.CashAlert{
		{ID: "1", AlertType: models.AlertCriticalReorder},
		{ID: "2", AlertType: models.AlertMarginProtection},
		{ID: "3", AlertType: models.AlertDeadStockDrain},
	})

	assert.Equal(t, 1, failed)
	assert.Len(t, store.inserted, 2)
}

func TestGenerateCashImpactSummary(t *testing.T) {
	engine := NewAlertEngine(nil, nil, nil, config.DefaultRules(), 5000, fixedClock(alertsNow))
	alerts := []models.CashAlert{
		{Priority: models.PriorityCritical, CashImpact: 1000, CashRecoveryPotential: 9000},
		{Priority: models.PriorityHigh, CashImpact: 500.5, CashRecoveryPotential: 2000},
		{Priority: models.PriorityMedium, CashImpact: 100},
	}

	summary := engine.GenerateCashImpactSummary(alerts, models.NewCashStatus(50000, 10000, 10000, alertsNow))
	assert.Equal(t, 3, summary.TotalAlerts)
	assert.Equal(t, 1, summary.CriticalAlerts)
	assert.Equal(t, 1600.5, summary.TotalCashAtRisk)
	assert.Equal(t, 2, summary.RecoveryOpportunities)
	assert.Equal(t, 11000.0, summary.TotalRecoveryPotential)
	assert.Equal(t, models.CashSafe, summary.CashAdequacyStatus)
	assert.Equal(t, 40000.0, summary.NetCash)
	assert.Equal(t, 8.0, summary.WeeksOfRunway)
	require.Len(t, summary.TopRecommendedActions, 2)
	assert.Contains(t, summary.TopRecommendedActions[0], "1 critical alerts")
	assert.Contains(t, summary.TopRecommendedActions[1], "$11000")
}

func TestGenerateCashImpactSummaryUnknownCash(t *testing.T) {
	engine := NewAlertEngine(nil, nil, nil, config.DefaultRules(), 5000, fixedClock(alertsNow))

	summary := engine.GenerateCashImpactSummary(nil, nil)
	assert.Equal(t, 0, summary.TotalAlerts)
	assert.Equal(t, "unknown", summary.CashAdequacyStatus)
	assert.Equal(t, 0.0, summary.WeeksOfRunway)
	assert.Equal(t, []string{"No urgent action needed; review medium-priority alerts this week"}, summary.TopRecommendedActions)
}

func TestGenerateCashImpactSummaryCriticalCash(t *testing.T) {
	engine := NewAlertEngine(nil, nil, nil, config.DefaultRules(), 5000, fixedClock(alertsNow))

	summary := engine.GenerateCashImpactSummary(nil, models.NewCashStatus(4000, 6000, 10000, alertsNow))
	assert.Equal(t, models.CashCritical, summary.CashAdequacyStatus)
	assert.Equal(t, -2000.0, summary.NetCash)
	assert.Equal(t, 0.0, summary.WeeksOfRunway, "negative cash has no runway")
	require.Len(t, summary.TopRecommendedActions, 1)
	assert.Contains(t, summary.TopRecommendedActions[0], "below the operating buffer")
}

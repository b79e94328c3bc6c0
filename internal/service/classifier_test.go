package service

import (
	"context"
	"math"
	"testing"
	"time"

	"inventory-intel/config"
	"inventory-intel/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier(now time.Time) *Classifier {
	return NewClassifier(nil, config.DefaultRules(), BatchOptions{}, fixedClock(now))
}

func TestClassifyChristmasTree(t *testing.T) {
	c := newTestClassifier(date(2026, time.October, 18))

	got, err := c.Classify(ClassifierInput{
		SKU:          "HO2024-TREE-001",
		Price:        29.99,
		Cost:         12.00,
		ProductTitle: "Tabletop Tree",
		Quantity:     40,
	})
	require.NoError(t, err)

	assert.InDelta(t, 59.99, got.MarginPercentage, 0.001)
	assert.True(t, got.Q4Item)
	assert.True(t, got.SeasonalItem)
	assert.Equal(t, models.SeasonalChristmas, got.SeasonalType)
	require.NotNil(t, got.SeasonalEndDate)
	assert.Equal(t, date(2026, time.December, 27), *got.SeasonalEndDate)
	// 59.99% sits in the >=55 band.
	assert.Equal(t, 60.0, got.ProfitProtectionThreshold)
	assert.Equal(t, models.TierSpaceMaker, got.ClearanceTier)
	// 59.99 * 10 * 29.99 * 1.5 in October
	assert.Equal(t, 26987.0, got.CashImpactScore)
}

func TestClassifyMargin(t *testing.T) {
	c := newTestClassifier(date(2026, time.March, 1))

	tests := []struct {
		name  string
		price float64
		cost  float64
		want  float64
	}{
		{"unknown cost assumes fifty", 100, 0, 50},
		{"zero price", 0, 5, 0},
		{"exact", 10, 3, 70},
		{"rounded to two places", 3, 1, 66.67},
		{"cost equals price", 8, 8, 0},
		{"negative cost exceeds hundred", 10, -5, 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(ClassifierInput{SKU: "X-1", Price: tt.price, Cost: tt.cost, Quantity: 1})
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got.MarginPercentage, 0.0001)
		})
	}
}

func TestClassifyMarginFormulaHoldsAcrossPrices(t *testing.T) {
	c := newTestClassifier(date(2026, time.March, 1))

	for price := 1.0; price <= 200; price += 7.37 {
		for _, ratio := range []float64{0.01, 0.25, 0.5, 0.83, 1} {
			cost := price * ratio
			got, err := c.Classify(ClassifierInput{SKU: "X", Price: price, Cost: cost})
			require.NoError(t, err)
			want := math.Round((price-cost)/price*100*100) / 100
			assert.InDelta(t, want, got.MarginPercentage, 0.0051, "price=%v cost=%v", price, cost)
		}
	}
}

func TestClassifySeasonalDetection(t *testing.T) {
	c := newTestClassifier(date(2026, time.March, 1))

	tests := []struct {
		name    string
		in      ClassifierInput
		want    string
		wantEnd time.Time
	}{
		{"halloween prefix", ClassifierInput{SKU: "hw-cat-01", Price: 10}, models.SeasonalHalloween, date(2026, time.November, 5)},
		{"halloween title", ClassifierInput{SKU: "A1", ProductTitle: "Giant PUMPKIN Lantern", Price: 10}, models.SeasonalHalloween, date(2026, time.November, 5)},
		{"christmas variant title", ClassifierInput{SKU: "A2", VariantTitle: "Santa Red", Price: 10}, models.SeasonalChristmas, date(2026, time.December, 27)},
		{"halloween wins over christmas", ClassifierInput{SKU: "A3", ProductTitle: "Ghost Holiday Mug", Price: 10}, models.SeasonalHalloween, date(2026, time.November, 5)},
		{"not seasonal", ClassifierInput{SKU: "MUG-1", ProductTitle: "Coffee Mug", Price: 10}, "", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.SeasonalType)
			assert.Equal(t, tt.want != "", got.Q4Item)
			if tt.want == "" {
				assert.Nil(t, got.SeasonalEndDate)
				return
			}
			require.NotNil(t, got.SeasonalEndDate)
			assert.Equal(t, tt.wantEnd, *got.SeasonalEndDate)
		})
	}
}

func TestClassifyProtectionThresholdSteps(t *testing.T) {
	c := newTestClassifier(date(2026, time.March, 1))

	tests := []struct {
		margin float64
		want   float64
	}{
		{80, 75}, {65, 75}, {64.99, 70}, {60, 70}, {55, 60}, {50, 50}, {45, 35}, {44.99, 25}, {0, 25},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.protectionThreshold(tt.margin), "margin=%v", tt.margin)
	}

	prev := 0.0
	for m := 0.0; m <= 100; m += 0.5 {
		got := c.protectionThreshold(m)
		assert.GreaterOrEqual(t, got, prev, "protection must not drop as margin rises (margin=%v)", m)
		prev = got
	}
}

func TestClassifyClearanceTier(t *testing.T) {
	c := newTestClassifier(date(2026, time.March, 1))

	tests := []struct {
		margin float64
		qty    int
		want   string
	}{
		{70, 11, models.TierCashGenerator},
		{70, 10, models.TierSpaceMaker},
		{50, 6, models.TierSpaceMaker},
		{50, 5, models.TierBundleBuilder},
		{40, 100, models.TierBundleBuilder},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.clearanceTier(tt.margin, tt.qty), "margin=%v qty=%d", tt.margin, tt.qty)
	}
}

func TestClassifyCashImpactScore(t *testing.T) {
	spring := newTestClassifier(date(2026, time.March, 1))
	autumn := newTestClassifier(date(2026, time.September, 1))

	// 50 * (2/4) * 10 * 2.0 for low stock
	assert.Equal(t, 500.0, spring.cashImpactScore(50, 10, 2, false, spring.clock()))
	// out of stock: no units proxy at all
	assert.Equal(t, 0.0, spring.cashImpactScore(50, 10, 0, false, spring.clock()))
	// 8 on hand: 1.5x low-stock multiplier
	assert.Equal(t, 1500.0, spring.cashImpactScore(50, 10, 8, false, spring.clock()))
	assert.Equal(t, 5000.0, spring.cashImpactScore(50, 10, 400, false, spring.clock()))
	// Q4 boost only applies in boost months
	assert.Equal(t, 5000.0, spring.cashImpactScore(50, 10, 400, true, spring.clock()))
	assert.Equal(t, 7500.0, autumn.cashImpactScore(50, 10, 400, true, autumn.clock()))
	// negative margin never yields a negative score
	assert.Equal(t, 0.0, spring.cashImpactScore(-20, 10, 40, false, spring.clock()))
}

func TestClassifyTrafficAndBundleFlags(t *testing.T) {
	c := newTestClassifier(date(2026, time.March, 1))

	got, err := c.Classify(ClassifierInput{SKU: "M1", ProductTitle: "Signature Mug", Price: 20, Cost: 8})
	require.NoError(t, err)
	assert.True(t, got.TrafficDriver)

	got, err = c.Classify(ClassifierInput{SKU: "M2", ProductTitle: "Signature Mug", Price: 20, Cost: 15})
	require.NoError(t, err)
	assert.False(t, got.TrafficDriver, "low margin disqualifies a keyword match")

	got, err = c.Classify(ClassifierInput{SKU: "M3", Vendor: "In-House", Price: 20, Cost: 10})
	require.NoError(t, err)
	assert.True(t, got.TrafficDriver)

	got, err = c.Classify(ClassifierInput{SKU: "B1", Price: 12, Cost: 5})
	require.NoError(t, err)
	assert.True(t, got.BundleEligible)

	got, err = c.Classify(ClassifierInput{SKU: "B2", ProductType: "Greeting Card", Price: 30, Cost: 25})
	require.NoError(t, err)
	assert.True(t, got.BundleEligible)

	got, err = c.Classify(ClassifierInput{SKU: "B3", ProductType: "Blanket", Price: 30, Cost: 10})
	require.NoError(t, err)
	assert.False(t, got.BundleEligible)
}

func TestClassifyRejectsInvalidInput(t *testing.T) {
	c := newTestClassifier(date(2026, time.March, 1))

	_, err := c.Classify(ClassifierInput{SKU: "X", Price: math.NaN()})
	assert.Error(t, err)
	_, err = c.Classify(ClassifierInput{SKU: "X", Price: 10, Cost: math.Inf(1)})
	assert.Error(t, err)
	_, err = c.Classify(ClassifierInput{SKU: "X", Price: -1})
	assert.Error(t, err)
	_, err = c.Classify(ClassifierInput{SKU: "X", Price: 10, Quantity: -3})
	assert.Error(t, err)
}

func TestClassifyIsIdempotent(t *testing.T) {
	c := newTestClassifier(date(2026, time.November, 2))
	in := ClassifierInput{SKU: "HW-BAT", ProductTitle: "Spider Garland", Price: 18.5, Cost: 6.1, Quantity: 7, ProductType: "decor"}

	first, err := c.Classify(in)
	require.NoError(t, err)
	second, err := c.Classify(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestClassifyAll(t *testing.T) {
	good := activeVariant(1, "GOOD-1")
	good.Price, good.Cost, good.Quantity = 20, 8, 12

	failing := activeVariant(2, "FAIL-1")
	failing.Price, failing.Quantity = 15, 3

	invalid := activeVariant(3, "BAD-1")
	invalid.Price = -5

	inactive := activeVariant(4, "OLD-1")
	inactive.Active = false

	catalog := newFakeCatalog(good, failing, invalid, inactive)
	catalog.persistErr[2] = errBoom

	c := NewClassifier(catalog, config.DefaultRules(), BatchOptions{Size: 2, Workers: 2}, fixedClock(date(2026, time.March, 1)))
	stats, err := c.ClassifyAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.EngineClassification, stats.Engine)
	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 2, stats.Errors)

	require.Contains(t, catalog.classified, int64(1))
	assert.Equal(t, 60.0, catalog.classified[1].MarginPercentage)
	assert.NotContains(t, catalog.classified, int64(4))
}

func TestClassifyAllFetchError(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.fetchErr = errBoom

	c := NewClassifier(catalog, config.DefaultRules(), BatchOptions{}, nil)
	_, err := c.ClassifyAll(context.Background())
	assert.ErrorIs(t, err, errBoom)
}

func TestClassifySeasonalSKUPrefix(t *testing.T) {
	c := newTestClassifier(date(2026, time.October, 18))

	tests := []struct {
		sku   string
		title string
		want  string
	}{
		{"HO2024-TREE-001", "Tabletop Tree", models.SeasonalChristmas},
		{"ho-wreath", "Door Wreath", models.SeasonalChristmas},
		{"HO", "Misc", models.SeasonalChristmas},
		{"HW-BAT", "Wall Decal", models.SeasonalHalloween},
		{"HW2025_CAPE", "Cape", models.SeasonalHalloween},
		{"HOODIE-BLK-M", "Cotton Hoodie", ""},
		{"HOME-MAT-01", "Door Mat", ""},
		{"HOOK-RACK", "Wall Hook", ""},
		{"HWY-SIGN", "Road Sign Print", ""},
	}

	for _, tt := range tests {
		t.Run(tt.sku, func(t *testing.T) {
			got, err := c.Classify(ClassifierInput{SKU: tt.sku, ProductTitle: tt.title, Price: 30, Cost: 12, Quantity: 10})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.SeasonalType)
			assert.Equal(t, tt.want != "", got.Q4Item)
			if tt.want == "" {
				assert.Nil(t, got.SeasonalEndDate)
			}
		})
	}
}

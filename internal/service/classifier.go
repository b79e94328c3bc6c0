package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"inventory-intel/config"
	"inventory-intel/internal/models"
	"inventory-intel/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClassifierInput is the subset of variant and product attributes the
// classifier reads.
type ClassifierInput struct {
	SKU          string
	Price        float64
	Cost         float64
	ProductTitle string
	VariantTitle string
	Vendor       string
	ProductType  string
	Quantity     int
}

// InputFromVariant extracts classifier input from a catalog row
func InputFromVariant(v *models.Variant) ClassifierInput {
	return ClassifierInput{
		SKU:          v.SKU,
		Price:        v.Price,
		Cost:         v.Cost,
		ProductTitle: v.ProductTitle,
		VariantTitle: v.VariantTitle,
		Vendor:       v.Vendor,
		ProductType:  v.ProductType,
		Quantity:     v.Quantity,
	}
}

// Classifier derives margin, seasonality, protection and tier for variants.
type Classifier struct {
	catalog  CatalogStore
	seasonal config.SeasonalRules
	rules    config.ClassifierRules
	batch    BatchOptions
	clock    Clock
	logger   *zap.Logger
}

// NewClassifier creates a classifier. catalog may be nil when only Classify is used.
func NewClassifier(catalog CatalogStore, rules *config.Rules, batch BatchOptions, clock Clock) *Classifier {
	if clock == nil {
		clock = time.Now
	}
	return &Classifier{
		catalog:  catalog,
		seasonal: rules.Seasonal,
		rules:    rules.Classifier,
		batch:    batch,
		clock:    clock,
		logger:   util.EngineLogger(models.EngineClassification),
	}
}

// Classify computes the classification of a single variant. It has no side
// effects; the same input on the same day yields the same output.
func (c *Classifier) Classify(in ClassifierInput) (*models.Classification, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	now := c.clock()
	margin := c.margin(in.Price, in.Cost)
	seasonalType := c.seasonalType(in)

	result := &models.Classification{
		MarginPercentage:          margin,
		SeasonalType:              seasonalType,
		SeasonalItem:              seasonalType != "",
		Q4Item:                    seasonalType != "",
		ProfitProtectionThreshold: c.protectionThreshold(margin),
		TrafficDriver:             c.isTrafficDriver(in, margin),
		BundleEligible:            c.isBundleEligible(in, margin),
		ClearanceTier:             c.clearanceTier(margin, in.Quantity),
	}

	if end, ok := c.seasonalEnd(seasonalType, now); ok {
		result.SeasonalEndDate = &end
	}

	result.CashImpactScore = c.cashImpactScore(margin, in.Price, in.Quantity, result.Q4Item, now)
	return result, nil
}

func validateInput(in ClassifierInput) error {
	if !isFinite(in.Price) {
		return fmt.Errorf("invalid price %v", in.Price)
	}
	if !isFinite(in.Cost) {
		return fmt.Errorf("invalid cost %v", in.Cost)
	}
	if in.Price < 0 {
		return fmt.Errorf("negative price %.2f", in.Price)
	}
	if in.Quantity < 0 {
		return fmt.Errorf("negative quantity %d", in.Quantity)
	}
	return nil
}

// margin is the gross margin percentage. An unknown (zero) cost assumes
// UnknownCostMargin.
func (c *Classifier) margin(price, cost float64) float64 {
	if price <= 0 {
		return 0
	}
	if cost == 0 {
		return c.rules.UnknownCostMargin
	}
	return util.Round((price-cost)/price*100, 2)
}

func (c *Classifier) seasonalType(in ClassifierInput) string {
	sku := strings.ToUpper(strings.TrimSpace(in.SKU))
	text := strings.ToLower(in.SKU + " " + in.ProductTitle + " " + in.VariantTitle)

	if hasReservedPrefix(sku, c.seasonal.HalloweenSKUPrefixes) || containsAny(text, c.seasonal.HalloweenKeywords) {
		return models.SeasonalHalloween
	}
	if hasReservedPrefix(sku, c.seasonal.ChristmasSKUPrefixes) || containsAny(text, c.seasonal.ChristmasKeywords) {
		return models.SeasonalChristmas
	}
	return ""
}

// seasonalEnd is the fixed end of the season in the current year.
func (c *Classifier) seasonalEnd(seasonalType string, now time.Time) (time.Time, bool) {
	var md config.MonthDay
	switch seasonalType {
	case models.SeasonalHalloween:
		md = c.seasonal.HalloweenEnd
	case models.SeasonalChristmas:
		md = c.seasonal.ChristmasEnd
	default:
		return time.Time{}, false
	}
	return time.Date(now.Year(), time.Month(md.Month), md.Day, 0, 0, 0, 0, time.UTC), true
}

func (c *Classifier) isTrafficDriver(in ClassifierInput, margin float64) bool {
	if margin < c.rules.TrafficMinMargin {
		return false
	}
	titles := strings.ToLower(in.ProductTitle + " " + in.VariantTitle)
	vendor := strings.ToLower(strings.TrimSpace(in.Vendor))
	return containsAny(titles, c.rules.TrafficKeywords) || (vendor != "" && containsAny(vendor, c.rules.TrafficVendors))
}

func (c *Classifier) isBundleEligible(in ClassifierInput, margin float64) bool {
	if in.Price <= c.rules.BundleMaxPrice && margin >= c.rules.BundleMinMargin {
		return true
	}
	return containsAny(strings.ToLower(in.ProductType), c.rules.SmallItemTypes)
}

// protectionThreshold walks the steps from the highest margin down.
func (c *Classifier) protectionThreshold(margin float64) float64 {
	for _, step := range c.rules.ProtectionSteps {
		if margin >= step.MinMargin {
			return step.MaxDiscount
		}
	}
	return c.rules.DefaultProtection
}

func (c *Classifier) clearanceTier(margin float64, qty int) string {
	switch {
	case margin >= c.rules.CashGeneratorMinMargin && qty > c.rules.CashGeneratorMinQty:
		return models.TierCashGenerator
	case margin >= c.rules.SpaceMakerMinMargin && qty > c.rules.SpaceMakerMinQty:
		return models.TierSpaceMaker
	case margin < c.rules.SpaceMakerMinMargin || qty <= c.rules.SpaceMakerMinQty:
		return models.TierBundleBuilder
	default:
		return models.TierStandardClearance
	}
}

// cashImpactScore is margin x capped weekly-unit proxy x price, boosted for
// Q4 items in season and for low stock.
func (c *Classifier) cashImpactScore(margin, price float64, qty int, q4 bool, now time.Time) float64 {
	units := math.Min(float64(qty)/c.rules.ImpactQtyDivisor, c.rules.ImpactQtyCap)
	score := margin * units * price

	if q4 && containsMonth(c.seasonal.BoostMonths, int(now.Month())) {
		score *= c.seasonal.BoostFactor
	}

	for _, m := range c.rules.ImpactUrgencyMultiplier {
		if qty <= m.MaxQty {
			score *= m.Multiplier
			break
		}
	}

	return math.Max(0, math.Round(score))
}

// ClassifyAll classifies every active, SKU-bearing variant and writes the
// result back. Per-variant failures are logged and counted.
func (c *Classifier) ClassifyAll(ctx context.Context) (*models.RunStats, error) {
	ctx, span := util.StartEngineSpan(ctx, models.EngineClassification, "Classifier.ClassifyAll")
	defer span.End()

	started := time.Now()
	runID := uuid.New().String()

	variants, err := c.catalog.FetchCatalogVariants(ctx, models.VariantFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch variants: %w", err)
	}

	c.logger.Info("Starting classification run",
		zap.String("run_id", runID),
		zap.Int("variants", len(variants)))

	var counter runCounter
	err = forEachBatch(ctx, variants, c.batch, func(ctx context.Context, batch []models.Variant) error {
		for i := range batch {
			c.classifyAndPersist(ctx, &batch[i], &counter)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats := counter.stats(runID, models.EngineClassification, started)
	c.logger.Info("Classification run completed",
		zap.String("run_id", runID),
		zap.Int("processed", stats.Processed),
		zap.Int("updated", stats.Updated),
		zap.Int("errors", stats.Errors))
	return stats, nil
}

func (c *Classifier) classifyAndPersist(ctx context.Context, v *models.Variant, counter *runCounter) {
	counter.processed.Add(1)

	if strings.TrimSpace(v.SKU) == "" {
		counter.skipped.Add(1)
		util.ClassificationsTotal.WithLabelValues("skipped").Inc()
		return
	}

	classification, err := c.Classify(InputFromVariant(v))
	if err != nil {
		counter.errors.Add(1)
		util.ClassificationsTotal.WithLabelValues("invalid").Inc()
		c.logger.Error("Failed to classify variant",
			zap.Int64("variant_id", v.ID),
			zap.String("sku", v.SKU),
			zap.Error(err))
		return
	}

	if err := c.catalog.PersistClassification(ctx, v.ID, classification); err != nil {
		counter.errors.Add(1)
		util.ClassificationsTotal.WithLabelValues("persist_failed").Inc()
		c.logger.Error("Failed to persist classification",
			zap.Int64("variant_id", v.ID),
			zap.String("sku", v.SKU),
			zap.Error(err))
		return
	}

	counter.updated.Add(1)
	util.ClassificationsTotal.WithLabelValues("ok").Inc()
}

// hasReservedPrefix reports whether s starts with one of prefixes as a whole
// token: the prefix must be followed by a digit, a delimiter or nothing, so
// "HO2024-TREE" and "HW-BAT" match while "HOODIE-BLK" does not.
func hasReservedPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		p = strings.ToUpper(p)
		if p == "" || !strings.HasPrefix(s, p) {
			continue
		}
		rest := s[len(p):]
		if rest == "" {
			return true
		}
		switch r := rest[0]; {
		case r >= '0' && r <= '9', r == '-', r == '_', r == ' ', r == '/', r == '.':
			return true
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func containsMonth(months []int, m int) bool {
	for _, x := range months {
		if x == m {
			return true
		}
	}
	return false
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

package service

import (
	"context"
	"fmt"
	"time"

	"inventory-intel/config"
	"inventory-intel/internal/models"
	"inventory-intel/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// VelocityOptions controls the sales window and feed pagination.
type VelocityOptions struct {
	WindowWeeks    int
	PageSize       int
	MaxPages       int
	PagesPerSecond float64
	Batch          BatchOptions
}

// salesAggregate is the per-variant roll-up of the sales window.
type salesAggregate struct {
	Units        int
	Revenue      float64
	WeeksWithHit map[int]struct{}
	LastSale     *time.Time
}

func (a *salesAggregate) add(item models.SalesLineItem, week int) {
	a.Units += item.Quantity
	a.Revenue += float64(item.Quantity) * item.UnitPrice
	a.WeeksWithHit[week] = struct{}{}
	if a.LastSale == nil || item.OrderedAt.After(*a.LastSale) {
		t := item.OrderedAt
		a.LastSale = &t
	}
}

// VelocityCalculator turns trailing sales into velocity columns.
type VelocityCalculator struct {
	catalog CatalogStore
	feed    SalesFeed
	rules   config.VelocityRules
	opts    VelocityOptions
	limiter *rate.Limiter
	clock   Clock
	logger  *zap.Logger
}

// NewVelocityCalculator creates a velocity calculator
func NewVelocityCalculator(catalog CatalogStore, feed SalesFeed, rules *config.Rules, opts VelocityOptions, clock Clock) *VelocityCalculator {
	if opts.WindowWeeks <= 0 {
		opts.WindowWeeks = 8
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 250
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 200
	}
	limit := rate.Inf
	if opts.PagesPerSecond > 0 {
		limit = rate.Limit(opts.PagesPerSecond)
	}
	if clock == nil {
		clock = time.Now
	}

	return &VelocityCalculator{
		catalog: catalog,
		feed:    feed,
		rules:   rules.Velocity,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		clock:   clock,
		logger:  util.EngineLogger(models.EngineVelocity),
	}
}

// CalculateAll recomputes velocity for every active, SKU-bearing variant,
// including those without sales in the window. A sales feed failure aborts
// the run before anything is written.
func (vc *VelocityCalculator) CalculateAll(ctx context.Context) (*models.RunStats, error) {
	ctx, span := util.StartEngineSpan(ctx, models.EngineVelocity, "VelocityCalculator.CalculateAll")
	defer span.End()

	started := time.Now()
	runID := uuid.New().String()
	now := vc.clock()
	since := now.AddDate(0, 0, -7*vc.opts.WindowWeeks)

	sales, err := vc.aggregateSales(ctx, since, now)
	if err != nil {
		return nil, err
	}

	variants, err := vc.catalog.FetchCatalogVariants(ctx, models.VariantFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch variants: %w", err)
	}

	vc.logger.Info("Starting velocity run",
		zap.String("run_id", runID),
		zap.Int("variants", len(variants)),
		zap.Int("variants_with_sales", len(sales)))

	var counter runCounter
	err = forEachBatch(ctx, variants, vc.opts.Batch, func(ctx context.Context, batch []models.Variant) error {
		for i := range batch {
			vc.updateVariant(ctx, &batch[i], sales[batch[i].ID], &counter)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats := counter.stats(runID, models.EngineVelocity, started)
	vc.logger.Info("Velocity run completed",
		zap.String("run_id", runID),
		zap.Int("processed", stats.Processed),
		zap.Int("updated", stats.Updated),
		zap.Int("errors", stats.Errors))
	return stats, nil
}

func (vc *VelocityCalculator) updateVariant(ctx context.Context, v *models.Variant, agg *salesAggregate, counter *runCounter) {
	counter.processed.Add(1)

	data := vc.compute(agg, v.Quantity)
	util.VelocityCategoryTotal.WithLabelValues(data.VelocityCategory).Inc()

	if err := vc.catalog.PersistVelocity(ctx, v.ID, data); err != nil {
		counter.errors.Add(1)
		util.VelocityUpdatesTotal.WithLabelValues("persist_failed").Inc()
		vc.logger.Error("Failed to persist velocity",
			zap.Int64("variant_id", v.ID),
			zap.String("sku", v.SKU),
			zap.Error(err))
		return
	}

	counter.updated.Add(1)
	util.VelocityUpdatesTotal.WithLabelValues("ok").Inc()
}

// aggregateSales pages through the feed and rolls line items up per variant.
// Pagination stops at the last page, at MaxPages, or if the cursor stalls.
func (vc *VelocityCalculator) aggregateSales(ctx context.Context, since, now time.Time) (map[int64]*salesAggregate, error) {
	sales := make(map[int64]*salesAggregate)
	cursor := ""

	for page := 0; page < vc.opts.MaxPages; page++ {
		if err := vc.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("sales feed pagination interrupted: %w", err)
		}

		result, err := vc.feed.FetchRecentSalesLineItems(ctx, since, cursor, vc.opts.PageSize)
		if err != nil {
			util.SalesFeedPagesTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to fetch sales page %d: %w", page+1, err)
		}
		util.SalesFeedPagesTotal.WithLabelValues("ok").Inc()

		for _, item := range result.Items {
			week := vc.weekIndex(item.OrderedAt, now)
			if week < 0 {
				continue
			}
			agg, ok := sales[item.VariantID]
			if !ok {
				agg = &salesAggregate{WeeksWithHit: make(map[int]struct{})}
				sales[item.VariantID] = agg
			}
			agg.add(item, week)
		}

		if result.NextCursor == "" {
			return sales, nil
		}
		if result.NextCursor == cursor {
			vc.logger.Warn("Sales feed cursor did not advance, stopping pagination",
				zap.String("cursor", cursor))
			return sales, nil
		}
		cursor = result.NextCursor
	}

	vc.logger.Warn("Sales feed page limit reached, using partial window",
		zap.Int("max_pages", vc.opts.MaxPages))
	return sales, nil
}

// weekIndex is 0 for the most recent seven days and WindowWeeks-1 for the
// oldest; -1 means outside the window.
func (vc *VelocityCalculator) weekIndex(at, now time.Time) int {
	age := now.Sub(at)
	if age < 0 {
		return 0
	}
	week := int(age.Hours() / (24 * 7))
	if week >= vc.opts.WindowWeeks {
		return -1
	}
	return week
}

// compute derives velocity columns from a sales roll-up. agg may be nil for
// variants with no sales in the window.
func (vc *VelocityCalculator) compute(agg *salesAggregate, quantity int) *models.VelocityData {
	weeks := float64(vc.opts.WindowWeeks)
	data := &models.VelocityData{}

	if agg != nil {
		data.WeeklySalesUnits = float64(agg.Units) / weeks
		data.WeeklySalesRevenue = util.RoundMoney(agg.Revenue / weeks)
		data.SalesFrequency = len(agg.WeeksWithHit)
		data.LastSaleDate = agg.LastSale
	}

	data.VelocityCategory = CategorizeVelocity(data.WeeklySalesUnits, vc.rules)
	data.WeeksOfStock = WeeksOfStock(quantity, data.WeeklySalesUnits, vc.rules)
	data.ReorderUrgency = ReorderUrgency(data.VelocityCategory, data.WeeksOfStock, vc.rules)
	data.PriceElasticityScore = vc.rules.ElasticityByCategory[data.VelocityCategory]
	data.TrendDirection = TrendDirection(data.SalesFrequency, vc.rules)
	return data
}

// CategorizeVelocity buckets weekly units; each band includes its lower bound.
func CategorizeVelocity(weeklyUnits float64, rules config.VelocityRules) string {
	switch {
	case weeklyUnits >= rules.FastMinWeekly:
		return models.VelocityFast
	case weeklyUnits >= rules.MediumMinWeekly:
		return models.VelocityMedium
	case weeklyUnits > 0:
		return models.VelocitySlow
	default:
		return models.VelocityDead
	}
}

// WeeksOfStock is quantity over weekly units. Stock with no sales gets the
// NoSalesWeeksOfStock sentinel; no stock is zero weeks.
func WeeksOfStock(quantity int, weeklyUnits float64, rules config.VelocityRules) float64 {
	switch {
	case quantity <= 0:
		return 0
	case weeklyUnits <= 0:
		return rules.NoSalesWeeksOfStock
	default:
		return util.Round(float64(quantity)/weeklyUnits, 2)
	}
}

// ReorderUrgency combines velocity and remaining cover.
func ReorderUrgency(category string, weeksOfStock float64, rules config.VelocityRules) string {
	switch {
	case category == models.VelocityFast && weeksOfStock <= rules.CriticalWeeks:
		return models.UrgencyCritical
	case category == models.VelocityFast && weeksOfStock <= rules.HighWeeks:
		return models.UrgencyHigh
	case category == models.VelocityMedium && weeksOfStock <= rules.MediumWeeks:
		return models.UrgencyMedium
	default:
		return models.UrgencyLow
	}
}

// TrendDirection reads the number of distinct weeks with a sale.
func TrendDirection(salesFrequency int, rules config.VelocityRules) string {
	switch {
	case salesFrequency >= rules.IncreasingMinWeeks:
		return models.TrendIncreasing
	case salesFrequency >= rules.StableMinWeeks:
		return models.TrendStable
	default:
		return models.TrendDeclining
	}
}

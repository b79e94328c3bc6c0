package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"inventory-intel/internal/models"

	"github.com/jmoiron/sqlx"
)

const variantColumns = `
	v.id,
	v.product_id,
	COALESCE(v.sku, '') AS sku,
	COALESCE(v.price, 0) AS price,
	COALESCE(v.cost, 0) AS cost,
	GREATEST(COALESCE(v.available_quantity, 0), 0) AS available_quantity,
	COALESCE(p.status = 'active', false) AS active,
	COALESCE(v.title, '') AS variant_title,
	COALESCE(p.title, '') AS product_title,
	COALESCE(p.vendor, '') AS vendor,
	COALESCE(p.product_type, '') AS product_type,
	COALESCE(v.margin_percentage, 0) AS margin_percentage,
	COALESCE(v.q4_item, false) AS q4_item,
	COALESCE(v.seasonal_item, false) AS seasonal_item,
	COALESCE(v.seasonal_type, '') AS seasonal_type,
	v.seasonal_end_date,
	COALESCE(v.profit_protection_threshold, 25) AS profit_protection_threshold,
	COALESCE(v.traffic_driver, false) AS traffic_driver,
	COALESCE(v.bundle_eligible, false) AS bundle_eligible,
	COALESCE(v.clearance_tier, 'standard_clearance') AS clearance_tier,
	COALESCE(v.cash_impact_score, 0) AS cash_impact_score,
	COALESCE(v.weekly_sales_units, 0) AS weekly_sales_units,
	COALESCE(v.weekly_sales_revenue, 0) AS weekly_sales_revenue,
	COALESCE(v.velocity_category, 'unknown') AS velocity_category,
	COALESCE(v.weeks_of_stock, 0) AS weeks_of_stock,
	COALESCE(v.reorder_urgency, 'low') AS reorder_urgency,
	COALESCE(v.price_elasticity_score, 0) AS price_elasticity_score,
	v.last_sale_date,
	COALESCE(v.trend_direction, 'stable') AS trend_direction`

// FetchCatalogVariants returns active, SKU-bearing variants matching filter,
// ordered by id.
func (s *Store) FetchCatalogVariants(ctx context.Context, filter models.VariantFilter) ([]models.Variant, error) {
	conds := []string{
		"p.status = 'active'",
		"v.sku IS NOT NULL",
		"TRIM(v.sku) <> ''",
	}
	var args []interface{}

	if filter.MinQuantity > 0 {
		conds = append(conds, "v.available_quantity >= ?")
		args = append(args, filter.MinQuantity)
	}
	if filter.SeasonalOnly {
		conds = append(conds, "v.seasonal_item = true")
	}
	if len(filter.VelocityCategories) > 0 {
		conds = append(conds, "v.velocity_category IN (?)")
		args = append(args, filter.VelocityCategories)
	}

	query := "SELECT " + variantColumns + `
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY v.id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build variant query: %w", err)
	}
	query = s.db.Rebind(query)

	var variants []models.Variant
	if err := s.db.SelectContext(ctx, &variants, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch variants: %w", err)
	}
	return variants, nil
}

// GetVariantByID retrieves a single variant regardless of product status
func (s *Store) GetVariantByID(ctx context.Context, id int64) (*models.Variant, error) {
	var variant models.Variant
	query := "SELECT " + variantColumns + `
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1`

	err := s.db.GetContext(ctx, &variant, query, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("variant %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// PersistClassification overwrites the classification columns of one variant
func (s *Store) PersistClassification(ctx context.Context, variantID int64, c *models.Classification) error {
	var seasonalType interface{}
	if c.SeasonalType != "" {
		seasonalType = c.SeasonalType
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE product_variants SET
			margin_percentage = $1,
			q4_item = $2,
			seasonal_item = $3,
			seasonal_type = $4,
			seasonal_end_date = $5,
			profit_protection_threshold = $6,
			traffic_driver = $7,
			bundle_eligible = $8,
			clearance_tier = $9,
			cash_impact_score = $10,
			updated_at = NOW()
		WHERE id = $11`,
		c.MarginPercentage, c.Q4Item, c.SeasonalItem, seasonalType, c.SeasonalEndDate,
		c.ProfitProtectionThreshold, c.TrafficDriver, c.BundleEligible, c.ClearanceTier,
		c.CashImpactScore, variantID)
	if err != nil {
		return fmt.Errorf("failed to persist classification: %w", err)
	}
	return expectOneRow(res, variantID)
}

// PersistVelocity overwrites the velocity columns of one variant
func (s *Store) PersistVelocity(ctx context.Context, variantID int64, v *models.VelocityData) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE product_variants SET
			weekly_sales_units = $1,
			weekly_sales_revenue = $2,
			velocity_category = $3,
			weeks_of_stock = $4,
			reorder_urgency = $5,
			price_elasticity_score = $6,
			last_sale_date = $7,
			trend_direction = $8,
			updated_at = NOW()
		WHERE id = $9`,
		v.WeeklySalesUnits, v.WeeklySalesRevenue, v.VelocityCategory, v.WeeksOfStock,
		v.ReorderUrgency, v.PriceElasticityScore, v.LastSaleDate, v.TrendDirection, variantID)
	if err != nil {
		return fmt.Errorf("failed to persist velocity: %w", err)
	}
	return expectOneRow(res, variantID)
}

func expectOneRow(res sql.Result, variantID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("variant %d: %w", variantID, ErrNotFound)
	}
	return nil
}

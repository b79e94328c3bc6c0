package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"inventory-intel/internal/models"

	"github.com/lib/pq"
)

// Order statuses counted as sales
var paidOrderStatuses = []string{"PAID", "CONFIRMED"}

// FetchRecentSalesLineItems returns one page of line items from paid orders
// placed at or after since. The cursor is the last order_items id seen; an
// empty cursor starts from the beginning.
func (s *Store) FetchRecentSalesLineItems(ctx context.Context, since time.Time, cursor string, limit int) (*models.SalesPage, error) {
	var afterID int64
	if cursor != "" {
		id, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid sales cursor %q: %w", cursor, err)
		}
		afterID = id
	}

	query := `
		SELECT oi.id, oi.variant_id, oi.quantity, oi.unit_price, o.created_at AS ordered_at
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.status = ANY($1)
		  AND o.created_at >= $2
		  AND oi.id > $3
		  AND oi.variant_id IS NOT NULL
		ORDER BY oi.id
		LIMIT $4`

	var items []models.SalesLineItem
	err := s.db.SelectContext(ctx, &items, query, pq.Array(paidOrderStatuses), since, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sales line items: %w", err)
	}

	page := &models.SalesPage{Items: items}
	if len(items) == limit && limit > 0 {
		page.NextCursor = strconv.FormatInt(items[len(items)-1].ID, 10)
	}
	return page, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"

	"inventory-intel/internal/models"
)

// GetLatestCashPosition returns the most recent balances written by the
// accounting sync. Net cash and adequacy are left for the caller to derive.
func (s *Store) GetLatestCashPosition(ctx context.Context) (*models.CashStatus, error) {
	var status models.CashStatus
	err := s.db.GetContext(ctx, &status, `
		SELECT available_cash, pending_payables, as_of
		FROM cash_positions
		ORDER BY as_of DESC
		LIMIT 1`)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cash position: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

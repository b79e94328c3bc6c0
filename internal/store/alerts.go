package store

import (
	"context"
	"fmt"

	"inventory-intel/internal/models"
)

// InsertAlert appends an alert to the history table. Alerts are never updated.
func (s *Store) InsertAlert(ctx context.Context, alert *models.CashAlert) error {
	query := `
		INSERT INTO cash_alerts (
			id, run_id, alert_type, priority, title, message, cash_impact,
			suggested_action, variant_ids, skus, urgency_score,
			estimated_resolution_time, cash_recovery_potential, requires_attention, created_at
		) VALUES (
			:id, :run_id, :alert_type, :priority, :title, :message, :cash_impact,
			:suggested_action, :variant_ids, :skus, :urgency_score,
			:estimated_resolution_time, :cash_recovery_potential, :requires_attention, :created_at
		)`

	if _, err := s.db.NamedExecContext(ctx, query, alert); err != nil {
		return fmt.Errorf("failed to insert alert %s: %w", alert.ID, err)
	}
	return nil
}

// ListAlerts returns the most recent alerts, newest first
func (s *Store) ListAlerts(ctx context.Context, limit int) ([]models.CashAlert, error) {
	if limit <= 0 {
		limit = 50
	}

	var alerts []models.CashAlert
	err := s.db.SelectContext(ctx, &alerts,
		"SELECT * FROM cash_alerts ORDER BY created_at DESC, urgency_score DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// ListAlertsByRun returns the alerts of one run in priority order
func (s *Store) ListAlertsByRun(ctx context.Context, runID string) ([]models.CashAlert, error) {
	var alerts []models.CashAlert
	err := s.db.SelectContext(ctx, &alerts, `
		SELECT * FROM cash_alerts
		WHERE run_id = $1
		ORDER BY CASE priority
			WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC,
			urgency_score DESC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts for run %s: %w", runID, err)
	}
	return alerts, nil
}

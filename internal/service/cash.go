package service

import (
	"context"
	"fmt"
	"time"

	"inventory-intel/internal/models"
	"inventory-intel/internal/util"

	"go.uber.org/zap"
)

// CashProvider serves the cash status from the cache, falling back to the
// latest stored position.
type CashProvider struct {
	positions CashPositionSource
	cache     CashCache
	minBuffer float64
	ttl       time.Duration
	logger    *zap.Logger
}

// NewCashProvider creates a cash provider. cache may be nil.
func NewCashProvider(positions CashPositionSource, cache CashCache, minBuffer float64, ttl time.Duration) *CashProvider {
	return &CashProvider{
		positions: positions,
		cache:     cache,
		minBuffer: minBuffer,
		ttl:       ttl,
		logger:    util.GetLogger(),
	}
}

// FetchCashStatus returns net cash and adequacy against the operating buffer
func (p *CashProvider) FetchCashStatus(ctx context.Context) (*models.CashStatus, error) {
	ctx, span := util.StartSpan(ctx, "CashProvider.FetchCashStatus")
	defer span.End()

	if p.cache != nil {
		cached, err := p.cache.GetCachedCashStatus(ctx)
		if err != nil {
			p.logger.Warn("Cash status cache read failed, falling back to DB", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	position, err := p.positions.GetLatestCashPosition(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cash position: %w", err)
	}

	status := models.NewCashStatus(position.AvailableCash, position.PendingPayables, p.minBuffer, position.AsOf)

	if p.cache != nil && p.ttl > 0 {
		if err := p.cache.CacheCashStatus(ctx, status, p.ttl); err != nil {
			p.logger.Warn("Failed to cache cash status", zap.Error(err))
		}
	}

	return status, nil
}

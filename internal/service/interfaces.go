package service

import (
	"context"
	"errors"
	"time"

	"inventory-intel/internal/models"
)

var (
	// ErrRunInProgress is returned when another invocation holds the engine lock.
	ErrRunInProgress = errors.New("engine run already in progress")
	// ErrInvalidMode is returned for an unknown forced pricing mode.
	ErrInvalidMode = errors.New("invalid pricing mode")
	// ErrUnknownEngine is returned when a run names an engine that does not exist.
	ErrUnknownEngine = errors.New("unknown engine")
	// ErrNotFound is returned when nothing has been produced yet.
	ErrNotFound = errors.New("not found")
)

// Clock returns the current time. Engines take one so runs can be replayed.
type Clock func() time.Time

// CatalogStore reads variants and writes back engine columns.
type CatalogStore interface {
	FetchCatalogVariants(ctx context.Context, filter models.VariantFilter) ([]models.Variant, error)
	PersistClassification(ctx context.Context, variantID int64, c *models.Classification) error
	PersistVelocity(ctx context.Context, variantID int64, v *models.VelocityData) error
}

// SalesFeed pages through line items of paid orders.
type SalesFeed interface {
	FetchRecentSalesLineItems(ctx context.Context, since time.Time, cursor string, limit int) (*models.SalesPage, error)
}

// AlertStore is the append-only alert history.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert *models.CashAlert) error
}

// CashSource supplies the current cash position with adequacy computed.
type CashSource interface {
	FetchCashStatus(ctx context.Context) (*models.CashStatus, error)
}

// CashPositionSource supplies raw balances.
type CashPositionSource interface {
	GetLatestCashPosition(ctx context.Context) (*models.CashStatus, error)
}

// CashCache is a short-lived cache in front of CashPositionSource.
type CashCache interface {
	CacheCashStatus(ctx context.Context, status *models.CashStatus, ttl time.Duration) error
	GetCachedCashStatus(ctx context.Context) (*models.CashStatus, error)
}

// Locker provides the at-most-one-invocation guarantee per engine.
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, lockKey, token string) error
}

// ClearanceCache keeps the latest clearance batch for readers.
type ClearanceCache interface {
	StoreLatestClearance(ctx context.Context, batch *models.ClearanceBatch) error
	GetLatestClearance(ctx context.Context) (*models.ClearanceBatch, error)
}

// EventSink hands engine output to the notification layer.
type EventSink interface {
	PublishRunCompleted(ctx context.Context, stats models.RunStats) error
	PublishAlertRaised(ctx context.Context, alert models.CashAlert) error
	PublishSummaryReady(ctx context.Context, runID string, summary models.CashImpactSummary) error
	PublishClearanceReady(ctx context.Context, batch models.ClearanceBatch) error
}

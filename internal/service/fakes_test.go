package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"inventory-intel/internal/models"
)

var errBoom = errors.New("boom")

// fixedClock returns a Clock pinned to t.
func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

type fakeCatalog struct {
	mu             sync.Mutex
	variants       []models.Variant
	fetchErr       error
	persistErr     map[int64]error
	classified     map[int64]*models.Classification
	velocities     map[int64]*models.VelocityData
	fetchedFilters []models.VariantFilter
}

func newFakeCatalog(variants ...models.Variant) *fakeCatalog {
	return &fakeCatalog{
		variants:   variants,
		persistErr: make(map[int64]error),
		classified: make(map[int64]*models.Classification),
		velocities: make(map[int64]*models.VelocityData),
	}
}

func (f *fakeCatalog) FetchCatalogVariants(ctx context.Context, filter models.VariantFilter) ([]models.Variant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchedFilters = append(f.fetchedFilters, filter)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []models.Variant
	for i := range f.variants {
		if filter.Matches(&f.variants[i]) {
			out = append(out, f.variants[i])
		}
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeCatalog) PersistClassification(ctx context.Context, variantID int64, c *models.Classification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.persistErr[variantID]; err != nil {
		return err
	}
	f.classified[variantID] = c
	return nil
}

func (f *fakeCatalog) PersistVelocity(ctx context.Context, variantID int64, v *models.VelocityData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.persistErr[variantID]; err != nil {
		return err
	}
	f.velocities[variantID] = v
	return nil
}

// fakeFeed serves items in pages keyed by a numeric cursor.
type fakeFeed struct {
	items    []models.SalesLineItem
	failPage int
	calls    int
	cursors  []string
	stall    bool
}

func (f *fakeFeed) FetchRecentSalesLineItems(ctx context.Context, since time.Time, cursor string, limit int) (*models.SalesPage, error) {
	f.calls++
	f.cursors = append(f.cursors, cursor)
	if f.failPage > 0 && f.calls == f.failPage {
		return nil, errBoom
	}

	start := 0
	if cursor != "" {
		start, _ = strconv.Atoi(cursor)
	}
	end := start + limit
	if end > len(f.items) {
		end = len(f.items)
	}

	page := &models.SalesPage{}
	for _, item := range f.items[start:end] {
		if !item.OrderedAt.Before(since) {
			page.Items = append(page.Items, item)
		}
	}
	if f.stall {
		page.NextCursor = "stuck"
		return page, nil
	}
	if end < len(f.items) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

type fakeCash struct {
	status *models.CashStatus
	err    error
	calls  int
}

func (f *fakeCash) FetchCashStatus(ctx context.Context) (*models.CashStatus, error) {
	f.calls++
	return f.status, f.err
}

type fakeAlertStore struct {
	mu       sync.Mutex
	inserted []models.CashAlert
	failType string
}

func (f *fakeAlertStore) InsertAlert(ctx context.Context, alert *models.CashAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failType != "" && alert.AlertType == f.failType {
		return errBoom
	}
	f.inserted = append(f.inserted, *alert)
	return nil
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]string
	released []string
	err      error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]string)}
}

func (f *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if _, ok := f.held[key]; ok {
		return "", nil
	}
	token := "token-" + key
	f.held[key] = token
	return token, nil
}

func (f *fakeLocker) ReleaseLock(ctx context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] == token {
		delete(f.held, key)
	}
	f.released = append(f.released, key)
	return nil
}

type fakeEvents struct {
	mu        sync.Mutex
	completed []models.RunStats
	alerts    []models.CashAlert
	summaries []models.CashImpactSummary
	batches   []models.ClearanceBatch
	err       error
}

func (f *fakeEvents) PublishRunCompleted(ctx context.Context, stats models.RunStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, stats)
	return f.err
}

func (f *fakeEvents) PublishAlertRaised(ctx context.Context, alert models.CashAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return f.err
}

func (f *fakeEvents) PublishSummaryReady(ctx context.Context, runID string, summary models.CashImpactSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, summary)
	return f.err
}

func (f *fakeEvents) PublishClearanceReady(ctx context.Context, batch models.ClearanceBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, batch)
	return f.err
}

type fakeClearanceCache struct {
	latest *models.ClearanceBatch
}

func (f *fakeClearanceCache) StoreLatestClearance(ctx context.Context, batch *models.ClearanceBatch) error {
	f.latest = batch
	return nil
}

func (f *fakeClearanceCache) GetLatestClearance(ctx context.Context) (*models.ClearanceBatch, error) {
	return f.latest, nil
}

func activeVariant(id int64, sku string) models.Variant {
	return models.Variant{ID: id, SKU: sku, Active: true, ProductTitle: "Product " + sku}
}

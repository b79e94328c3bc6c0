package app

import (
	"fmt"
	"time"

	"inventory-intel/config"
	"inventory-intel/internal/broker"
	"inventory-intel/internal/redisclient"
	"inventory-intel/internal/service"
	"inventory-intel/internal/store"
	"inventory-intel/internal/util"

	"go.uber.org/zap"
)

// App holds the connected infrastructure and the engines built on it.
type App struct {
	Config    *config.Config
	Rules     *config.Rules
	Store     *store.Store
	Redis     *redisclient.Client
	Producer  *broker.Producer
	Publisher *broker.EventPublisher
	Runner    *service.Runner
}

// New connects to Postgres, Redis and Kafka and wires the engines.
func New(cfg *config.Config) (*App, error) {
	logger := util.GetLogger()

	rules, err := config.LoadRules(cfg.Engine.RulesFile)
	if err != nil {
		return nil, err
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
	publisher := broker.NewEventPublisher(producer)
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicAlerts))

	return &App{
		Config:    cfg,
		Rules:     rules,
		Store:     db,
		Redis:     redisClient,
		Producer:  producer,
		Publisher: publisher,
		Runner:    NewRunner(cfg.Engine, rules, db, redisClient, publisher),
	}, nil
}

// EngineStore is everything the engines need from the database.
type EngineStore interface {
	service.CatalogStore
	service.SalesFeed
	service.AlertStore
	service.CashPositionSource
}

// EngineCache is everything the engines need from Redis.
type EngineCache interface {
	service.Locker
	service.CashCache
	service.ClearanceCache
}

// NewRunner builds the four engines and the runner around them. cache and
// events may be nil.
func NewRunner(cfg config.EngineConfig, rules *config.Rules, db EngineStore, cache EngineCache, events service.EventSink) *service.Runner {
	batch := service.BatchOptions{Size: cfg.BatchSize, Workers: cfg.Workers}

	var (
		cashCache      service.CashCache
		locker         service.Locker
		clearanceCache service.ClearanceCache
	)
	if cache != nil {
		cashCache, locker, clearanceCache = cache, cache, cache
	}

	cash := service.NewCashProvider(db, cashCache, cfg.CashMinBuffer, time.Duration(cfg.CashStatusCacheSeconds)*time.Second)
	classifier := service.NewClassifier(db, rules, batch, nil)
	velocity := service.NewVelocityCalculator(db, db, rules, service.VelocityOptions{
		WindowWeeks:    cfg.VelocityWindowWeeks,
		PageSize:       cfg.SalesFeedPageSize,
		MaxPages:       cfg.SalesFeedMaxPages,
		PagesPerSecond: cfg.SalesFeedPagesPerSec,
		Batch:          batch,
	}, nil)
	pricing := service.NewPricingEngine(db, cash, rules, nil)
	alerts := service.NewAlertEngine(service.DefaultGenerators(db, pricing, rules), db, cash, rules, cfg.WeeklyBurnRate, nil)

	return service.NewRunner(service.RunnerDeps{
		Classifier: classifier,
		Velocity:   velocity,
		Pricing:    pricing,
		Alerts:     alerts,
		Locker:     locker,
		Events:     events,
		Clearance:  clearanceCache,
		LockTTL:    time.Duration(cfg.LockTTLSeconds) * time.Second,
	})
}

// Close releases every connection.
func (a *App) Close() {
	logger := util.GetLogger()
	if err := a.Producer.Close(); err != nil {
		logger.Error("Failed to close Kafka producer", zap.Error(err))
	}
	if err := a.Redis.Close(); err != nil {
		logger.Error("Failed to close Redis", zap.Error(err))
	}
	if err := a.Store.Close(); err != nil {
		logger.Error("Failed to close database", zap.Error(err))
	}
}

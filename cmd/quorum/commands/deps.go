package commands

import (
	"fmt"
	"sort"

	"github.com/quorumtrade/quorum/internal/aggregate"
	"github.com/quorumtrade/quorum/internal/analysts"
	"github.com/quorumtrade/quorum/internal/audit"
	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/internal/engine"
	"github.com/quorumtrade/quorum/internal/marketdata"
	"github.com/quorumtrade/quorum/internal/portfolio"
	"github.com/quorumtrade/quorum/internal/risk"
	"github.com/quorumtrade/quorum/internal/store"
	"github.com/quorumtrade/quorum/internal/strategyconfig"
	"github.com/quorumtrade/quorum/pkg/config"
	"github.com/quorumtrade/quorum/pkg/database"
	"github.com/quorumtrade/quorum/pkg/logger"
	"github.com/quorumtrade/quorum/pkg/redis"
)

// deps holds everything a command needs to run the pipeline.
type deps struct {
	cfg      *config.Config
	strategy *strategyconfig.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	repo     *store.Repository
	dataset  *marketdata.Store
	sink     *audit.Sink
	engine   *engine.Engine
}

// close releases connections in reverse construction order.
func (d *deps) close() {
	if d.sink != nil {
		d.sink.Close()
	}
	if d.redis != nil {
		d.redis.Close()
	}
	if d.db != nil {
		d.db.Close()
	}
}

// buildDeps loads configuration and wires the full decision pipeline.
func buildDeps() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if strategyFile != "" {
		cfg.StrategyFile = strategyFile
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	strategy, _, err := strategyconfig.Load(cfg.StrategyFile)
	if err != nil {
		return nil, fmt.Errorf("load strategy: %w", err)
	}
	for _, w := range strategyconfig.Warn(strategy) {
		log.WithFields(map[string]interface{}{
			"code": w.Code,
		}).Warn(w.Message)
	}
	configHash, err := strategyconfig.Hash(strategy)
	if err != nil {
		return nil, fmt.Errorf("hash strategy: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	d := &deps{cfg: cfg, strategy: strategy, log: log, db: db}

	dataset := marketdata.NewStore(db.Pool)
	d.dataset = dataset

	var gateway contracts.MarketDataGateway = dataset
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(cfg)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, snapshot caching disabled")
		} else {
			d.redis = redisClient
			cache := redis.NewCache(redisClient, "quorum")
			gateway = marketdata.NewCachedGateway(dataset, cache, log)
		}
	}

	registry := analysts.DefaultRegistry(log)
	names := make([]string, 0, len(strategy.Analysts.Weights))
	for name := range strategy.Analysts.Weights {
		names = append(names, name)
	}
	sort.Strings(names)
	panel, err := registry.Select(names)
	if err != nil {
		d.close()
		return nil, fmt.Errorf("select analysts: %w", err)
	}

	aggregator, err := aggregate.New(strategy.Analysts.Weights, log)
	if err != nil {
		d.close()
		return nil, fmt.Errorf("build aggregator: %w", err)
	}

	d.repo = store.NewRepository(db.Pool)
	d.sink = audit.NewSink(cfg.Engine.AuditBuffer, log)

	lookback := strategy.Analysts.Lookback
	if lookback <= 0 {
		lookback = cfg.Engine.LookbackDays
	}

	eng, err := engine.New(engine.Config{
		Analysts:    panel,
		Aggregator:  aggregator,
		Risk:        risk.NewManager(log),
		Portfolio:   portfolio.NewManager(log),
		Gateway:     gateway,
		Store:       d.repo,
		Audit:       d.sink,
		Limits:      strategy.Risk,
		Workers:     cfg.Engine.Workers,
		Lookback:    lookback,
		InitialCash: strategy.Portfolio.InitialCash,
		ConfigHash:  configHash,
		Logger:      log,
	})
	if err != nil {
		d.close()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	d.engine = eng

	return d, nil
}

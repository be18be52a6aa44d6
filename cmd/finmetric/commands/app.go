package commands

import (
	"fmt"

	"github.com/wonny/finmetric/internal/admin"
	"github.com/wonny/finmetric/internal/contracts"
	"github.com/wonny/finmetric/internal/external/fmp"
	"github.com/wonny/finmetric/internal/formula"
	"github.com/wonny/finmetric/internal/registry"
	"github.com/wonny/finmetric/internal/resolver"
	"github.com/wonny/finmetric/internal/scheduler"
	"github.com/wonny/finmetric/internal/scheduler/jobs"
	"github.com/wonny/finmetric/internal/scrape"
	"github.com/wonny/finmetric/internal/store"
	"github.com/wonny/finmetric/pkg/config"
	"github.com/wonny/finmetric/pkg/database"
	"github.com/wonny/finmetric/pkg/logger"
	"github.com/wonny/finmetric/pkg/redis"
)

// app holds every wired component of one process
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *database.DB // memory 드라이버면 nil
	redis      *redis.Client
	store      contracts.Store
	registry   *registry.Registry
	scraper    *scrape.Orchestrator
	scheduler  *scheduler.Scheduler
	resolver   *resolver.Resolver
	controller *admin.Controller
}

// newApp loads config and wires the component graph
// ⭐ SSOT: 의존성 조립 순서는 이 함수에서만
func newApp() (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	a := &app{cfg: cfg, log: log}

	// 3. Connect to database
	var pool database.Pool
	if cfg.StoreDriver == "postgres" {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		pool = db.Pool
	}

	// 4. Open store
	a.store, err = store.Open(cfg, pool, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	// 5. Connect to redis (disabled 이면 no-op)
	a.redis, err = redis.New(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// 6. Create data source
	httpClient := fmp.NewHTTPClient(cfg, a.redis, log)
	source := fmp.NewClient(cfg.FMP, httpClient, redis.NewCache(a.redis, "finmetric", log), log).
		WithParallel(cfg.Resolver.Concurrency)

	// 7. Create resolution engine
	a.registry = registry.New(a.store, log)
	evaluator := formula.NewEvaluator(a.registry, a.store, a.store, log)
	a.scraper = scrape.New(source, a.store, cfg.Resolver, log)
	a.scheduler = scheduler.New(log)
	a.resolver = resolver.New(evaluator, a.scraper, a.store, a.scheduler, cfg.Resolver, log)

	// 8. Create population controller
	a.controller = admin.New(a.scraper, log)

	return a, nil
}

// registerJobs adds the heartbeat and the configured refresh jobs
func (a *app) registerJobs() error {
	targets := map[string]jobs.Pinger{
		"store": a.store,
		"redis": a.redis,
	}
	if err := a.scheduler.AddJob(jobs.NewHeartbeatJob(a.cfg.Scheduler.Heartbeat, a.scheduler, targets, a.log)); err != nil {
		return err
	}

	if expr := a.cfg.Scheduler.CompanyRefresh; expr != "" {
		if err := a.scheduler.AddJob(jobs.NewCompanyRefreshJob(expr, a.controller, a.log)); err != nil {
			return err
		}
	}
	if expr := a.cfg.Scheduler.StatementRefresh; expr != "" {
		if err := a.scheduler.AddJob(jobs.NewStatementRefreshJob(expr, a.controller, a.log)); err != nil {
			return err
		}
	}
	return nil
}

// Close releases every resource in reverse order
func (a *app) Close() {
	if a.controller != nil {
		a.controller.Shutdown()
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

package resolver

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/wonny/finmetric/internal/coalesce"
	"github.com/wonny/finmetric/internal/contracts"
	"github.com/wonny/finmetric/internal/formula"
	"github.com/wonny/finmetric/internal/scheduler"
	"github.com/wonny/finmetric/internal/scrape"
	"github.com/wonny/finmetric/pkg/config"
	"github.com/wonny/finmetric/pkg/logger"
)

// Options controls one resolution call
type Options struct {
	ForceUpdate bool // store 를 읽지 않고 항상 scrape/derivation 을 실행
	Wait        bool // false 면 scrape 를 예약하고 바로 absent 를 돌려준다
}

// Resolver answers resolution keys from the store, scraping on a miss.
// ⭐ SSOT: 프로세스에 하나만 생성해서 handler 와 job 에 주입한다
type Resolver struct {
	evaluator *formula.Evaluator
	scraper   *scrape.Orchestrator
	companies contracts.CompanyRepository
	scheduler *scheduler.Scheduler
	group     coalesce.Group
	workers   int
	logger    *logger.Logger
}

// New creates a resolver
func New(
	evaluator *formula.Evaluator,
	scraper *scrape.Orchestrator,
	companies contracts.CompanyRepository,
	sched *scheduler.Scheduler,
	cfg config.ResolverConfig,
	log *logger.Logger,
) *Resolver {
	return &Resolver{
		evaluator: evaluator,
		scraper:   scraper,
		companies: companies,
		scheduler: sched,
		workers:   max(1, cfg.BulkWorkers),
		logger:    log.Module("resolver"),
	}
}

// ResolveOne resolves a single (ticker, category, period).
// 값이 없으면 (nil, nil). 에러는 잘못된 입력과 찾을 수 없는 ticker 뿐이다.
func (r *Resolver) ResolveOne(ctx context.Context, ticker, category, period string, opts Options) (*decimal.Decimal, error) {
	key, err := contracts.NewResolutionKey(ticker, category, period)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, key, opts)
}

// Resolve resolves a parsed key
func (r *Resolver) Resolve(ctx context.Context, key contracts.ResolutionKey, opts Options) (*decimal.Decimal, error) {
	log := r.logger.WithField("key", key.String())

	if !opts.ForceUpdate {
		v, err := r.read(ctx, key, false)
		if err != nil {
			return nil, err
		}
		if v != nil {
			return v, nil
		}
	}

	if !opts.Wait {
		r.scheduleScrape(key, opts.ForceUpdate)
		return nil, nil
	}

	log.Debug("Resolving inline")
	if err := r.scrape(ctx, key); err != nil {
		if eris.Is(err, contracts.ErrCompanyNotFound) || ctx.Err() != nil {
			return nil, err
		}
		// transport 등은 absent 로 처리하고 이미 있는 데이터로 다시 계산한다
		log.WithError(err).Warn("Scrape failed")
	}

	return r.read(ctx, key, opts.ForceUpdate)
}

// read answers key from the store without any outbound call
func (r *Resolver) read(ctx context.Context, key contracts.ResolutionKey, fresh bool) (*decimal.Decimal, error) {
	if contracts.IsCompanyColumn(key.Category) {
		company, err := r.companies.GetCompany(ctx, key.Ticker)
		if eris.Is(err, contracts.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "resolver: company %s", key.Ticker)
		}
		v, _ := company.Column(key.Category)
		if !v.Valid {
			return nil, nil
		}
		value := v.Decimal
		return &value, nil
	}

	res, err := r.evaluator.Resolve(ctx, key.Ticker, key.LookupLabel(), key.Period, formula.Options{Fresh: fresh})
	if err != nil || res == nil {
		return nil, err
	}
	value := res.Value
	return &value, nil
}

// scrape ensures the company and populates the key's classification.
// 같은 ticker/분류의 동시 miss 는 한 번의 작업으로 합쳐진다.
func (r *Resolver) scrape(ctx context.Context, key contracts.ResolutionKey) error {
	_, err := r.group.Do(ctx, key.WorkKey(), func(ctx context.Context) error {
		company, err := r.scraper.EnsureCompany(ctx, key.Ticker)
		if err != nil {
			return err
		}
		if contracts.IsCompanyColumn(key.Category) {
			return nil
		}
		_, err = r.scraper.Populate(ctx, company, key.Period.Class)
		return err
	})
	return err
}

// InFlight returns the number of scrapes currently running
func (r *Resolver) InFlight() int64 {
	return r.group.InFlight()
}

// scheduleScrape schedules the scrape off the calling path, deduplicated by work key
func (r *Resolver) scheduleScrape(key contracts.ResolutionKey, fresh bool) {
	id := "scrape:" + key.WorkKey()

	_, created, err := r.scheduler.ScheduleOnce(id, func(ctx context.Context) error {
		if err := r.scrape(ctx, key); err != nil {
			return err
		}
		// formula 값을 미리 계산해 둔다
		_, err := r.read(ctx, key, fresh)
		return err
	})
	if err != nil {
		r.logger.WithError(err).WithField("job", id).Warn("Failed to schedule scrape")
		return
	}
	if created {
		r.logger.WithField("job", id).Debug("Scrape scheduled")
	}
}

package scrape

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/finmetric/internal/contracts"
)

// profileChunkSize is the number of profiles fetched and saved per batch
const profileChunkSize = 100

// Progress receives (done, total) updates from a bulk refresh
type Progress func(done, total int)

func (p Progress) report(done, total int) {
	if p != nil {
		p(done, total)
	}
}

// RefreshCompanies loads the ticker universe and stores every profile.
// force 가 false 면 이미 저장된 ticker 는 건너뛴다. chunk 실패는 기록만 하고 계속한다.
func (o *Orchestrator) RefreshCompanies(ctx context.Context, force bool, progress Progress) error {
	var tickers []string
	err := o.outbound(ctx, func(ctx context.Context) error {
		var err error
		tickers, err = o.source.FetchTickers(ctx)
		return err
	})
	if err != nil {
		return eris.Wrap(err, "scrape: fetch tickers")
	}

	if !force {
		existing, err := o.store.ListCompanies(ctx)
		if err != nil {
			return eris.Wrap(err, "scrape: list companies")
		}
		known := make(map[string]struct{}, len(existing))
		for _, c := range existing {
			known[c.Ticker] = struct{}{}
		}

		pending := tickers[:0:0]
		for _, t := range tickers {
			if _, ok := known[t]; !ok {
				pending = append(pending, t)
			}
		}
		tickers = pending
	}

	total := len(tickers)
	o.logger.WithField("tickers", total).Info("Company refresh started")
	progress.report(0, total)

	saved := 0
	for start := 0; start < total; start += profileChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+profileChunkSize, total)
		companies := o.fetchProfiles(ctx, tickers[start:end])

		if len(companies) > 0 {
			if err := o.store.UpsertCompanies(ctx, companies); err != nil {
				o.logger.WithError(err).WithField("offset", start).Error("Failed to save company chunk")
			} else {
				saved += len(companies)
			}
		}
		progress.report(end, total)
	}

	o.logger.WithFields(map[string]interface{}{
		"tickers": total,
		"saved":   saved,
	}).Info("Company refresh finished")
	return ctx.Err()
}

// fetchProfiles fetches one chunk concurrently; bad profiles are skipped
func (o *Orchestrator) fetchProfiles(ctx context.Context, tickers []string) []contracts.Company {
	var mu sync.Mutex
	companies := make([]contracts.Company, 0, len(tickers))

	var g errgroup.Group
	for _, ticker := range tickers {
		g.Go(func() error {
			var profile *contracts.CompanyProfile
			err := o.outbound(ctx, func(ctx context.Context) error {
				var err error
				profile, err = o.source.FetchCompanyProfile(ctx, ticker)
				return err
			})
			if err != nil {
				if ctx.Err() == nil && !eris.Is(err, contracts.ErrNotFound) {
					o.logger.WithError(err).WithField("ticker", ticker).Warn("Profile fetch failed")
				}
				return nil
			}

			company, err := CompanyFromProfile(profile)
			if err != nil {
				return nil
			}

			mu.Lock()
			companies = append(companies, *company)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return companies
}

// RefreshStatements populates every requested classification for every
// company. force 가 false 면 metric 이 하나도 없는 회사만 대상이다.
// 회사 단위 실패는 기록만 하고 계속한다.
func (o *Orchestrator) RefreshStatements(ctx context.Context, classes []contracts.PeriodClass, force bool, progress Progress) error {
	if len(classes) == 0 {
		classes = contracts.AllPeriodClasses
	}

	companies, err := o.store.ListCompanies(ctx)
	if err != nil {
		return eris.Wrap(err, "scrape: list companies")
	}

	if !force {
		unfilled := companies[:0:0]
		for _, c := range companies {
			n, err := o.store.CountMetrics(ctx, c.ID)
			if err != nil {
				return eris.Wrapf(err, "scrape: count metrics for %s", c.Ticker)
			}
			if n == 0 {
				unfilled = append(unfilled, c)
			}
		}
		companies = unfilled
	}

	total := len(companies)
	o.logger.WithFields(map[string]interface{}{
		"companies": total,
		"classes":   classes,
	}).Info("Statement refresh started")
	progress.report(0, total)

	var done atomic.Int64
	var records atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i := range companies {
		company := &companies[i]
		g.Go(func() error {
			for _, class := range classes {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				// 한 분류씩 저장해서 한 분류의 실패가 나머지를 막지 않게 한다
				n, err := o.populate(gctx, company, []contracts.PeriodClass{class})
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					o.logger.WithError(err).WithFields(map[string]interface{}{
						"ticker": company.Ticker,
						"class":  class,
					}).Error("Statement refresh failed")
					continue
				}
				records.Add(int64(n))
			}
			progress.report(int(done.Add(1)), total)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	o.logger.WithFields(map[string]interface{}{
		"companies": total,
		"records":   records.Load(),
	}).Info("Statement refresh finished")
	return nil
}

package resolver

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/finmetric/internal/contracts"
	"github.com/wonny/finmetric/internal/formula"
	"github.com/wonny/finmetric/internal/registry"
	"github.com/wonny/finmetric/internal/scheduler"
	"github.com/wonny/finmetric/internal/scrape"
	"github.com/wonny/finmetric/internal/store"
	"github.com/wonny/finmetric/pkg/config"
	"github.com/wonny/finmetric/pkg/logger"
)

// countingSource records every outbound call
type countingSource struct {
	mu         sync.Mutex
	profiles   map[string]*contracts.CompanyProfile
	statements map[contracts.PeriodClass][]contracts.RawStatement
	fail       error
	delay      time.Duration

	profileCalls   int
	statementCalls map[contracts.PeriodClass]int
}

func newCountingSource() *countingSource {
	return &countingSource{
		profiles:       make(map[string]*contracts.CompanyProfile),
		statements:     make(map[contracts.PeriodClass][]contracts.RawStatement),
		statementCalls: make(map[contracts.PeriodClass]int),
	}
}

func (s *countingSource) wait(ctx context.Context) error {
	if s.delay == 0 {
		return nil
	}
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *countingSource) FetchCompanyProfile(ctx context.Context, ticker string) (*contracts.CompanyProfile, error) {
	s.mu.Lock()
	s.profileCalls++
	p, ok := s.profiles[ticker]
	s.mu.Unlock()

	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if !ok {
		return nil, eris.Wrapf(contracts.ErrNotFound, "fake: %s", ticker)
	}
	return p, nil
}

func (s *countingSource) FetchStatements(ctx context.Context, ticker string, class contracts.PeriodClass) ([]contracts.RawStatement, error) {
	s.mu.Lock()
	s.statementCalls[class]++
	out, fail := s.statements[class], s.fail
	s.mu.Unlock()

	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if fail != nil {
		return nil, fail
	}
	return out, nil
}

func (s *countingSource) FetchTickers(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (s *countingSource) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.statementCalls {
		n += c
	}
	return s.profileCalls, n
}

type fixture struct {
	mem      *store.Memory
	source   *countingSource
	sched    *scheduler.Scheduler
	resolver *Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := logger.NewNop()

	mem := store.NewMemory()
	reg := registry.New(mem, log)
	_, err := reg.Create(ctx,
		contracts.Category{ID: "c-rev", Label: "revenue", ValueDefinition: "Revenues", Type: contracts.DefinitionAPITag, Priority: 1},
		contracts.Category{ID: "c-pe", Label: "pe ratio ttm", ValueDefinition: "peRatioTTM", Type: contracts.DefinitionAPITag, Priority: 1},
	)
	require.NoError(t, err)

	src := newCountingSource()
	src.profiles["ACME"] = &contracts.CompanyProfile{
		CIK: "0001", Symbol: "ACME", CompanyName: "Acme Corp",
		Price: decimal.NewNullDecimal(decimal.RequireFromString("12.5")),
	}
	src.statements[contracts.PeriodAnnual] = []contracts.RawStatement{{
		"date": "2022-12-31", "period": "FY", "calendarYear": "2022", "Revenues": json.Number("1000.00"),
	}}

	cfg := config.ResolverConfig{Concurrency: 4, BulkWorkers: 8, AcceptedForms: []string{"10-K"}}
	sched := scheduler.New(log).WithRetry(0, time.Millisecond)
	t.Cleanup(sched.Stop)

	eval := formula.NewEvaluator(reg, mem, mem, log)
	orch := scrape.New(src, mem, cfg, log)

	return &fixture{
		mem:      mem,
		source:   src,
		sched:    sched,
		resolver: New(eval, orch, mem, sched, cfg, log),
	}
}

func (f *fixture) storeRevenue(t *testing.T, value string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.mem.UpsertCompanies(ctx, []contracts.Company{{CIK: "0001", Ticker: "ACME", Name: "Acme Corp"}}))
	company, err := f.mem.GetCompany(ctx, "ACME")
	require.NoError(t, err)
	require.NoError(t, f.mem.UpsertMetrics(ctx, []contracts.MetricRecord{{
		CompanyID: company.ID, CategoryID: "c-rev", Period: "FY 2022",
		ReportDate: "2022-12-31", FilingDate: "2023-02-01", Value: decimal.RequireFromString(value),
	}}))
}

func requireValue(t *testing.T, want string, got *decimal.Decimal) {
	t.Helper()
	require.NotNil(t, got)
	assert.True(t, decimal.RequireFromString(want).Equal(*got), "want %s, got %s", want, got)
}

func TestResolveOne_StoredValueNoJob(t *testing.T) {
	f := newFixture(t)
	f.storeRevenue(t, "1000.00")

	v, err := f.resolver.ResolveOne(context.Background(), "ACME", "revenue", "FY 2022", Options{})
	require.NoError(t, err)
	requireValue(t, "1000.00", v)

	assert.Empty(t, f.sched.Pending())
	history, err := f.sched.GetJobHistory(scheduler.DeferredHistory)
	require.NoError(t, err)
	assert.Empty(t, history.Results)

	profiles, statements := f.source.calls()
	assert.Zero(t, profiles)
	assert.Zero(t, statements)
}

func TestResolveOne_SecondCallHitsStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.resolver.ResolveOne(ctx, "acme", "REVENUE", "2022", Options{Wait: true})
	require.NoError(t, err)
	requireValue(t, "1000", first)

	profiles, statements := f.source.calls()
	assert.Equal(t, 1, profiles)
	assert.Equal(t, 2, statements) // annual + historical

	second, err := f.resolver.ResolveOne(ctx, "ACME", "revenue", "FY2022", Options{})
	require.NoError(t, err)
	requireValue(t, first.String(), second)

	p2, s2 := f.source.calls()
	assert.Equal(t, profiles, p2)
	assert.Equal(t, statements, s2)
}

func TestResolveOne_ConcurrentMissesScrapeOnce(t *testing.T) {
	f := newFixture(t)
	f.source.delay = 50 * time.Millisecond

	const K = 10
	var wg sync.WaitGroup
	values := make([]*decimal.Decimal, K)
	errs := make([]error, K)
	for i := 0; i < K; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			values[i], errs[i] = f.resolver.ResolveOne(context.Background(), "ACME", "revenue", "FY 2022", Options{Wait: true})
		}(i)
	}
	wg.Wait()

	for i := 0; i < K; i++ {
		require.NoError(t, errs[i])
		requireValue(t, "1000", values[i])
	}

	profiles, _ := f.source.calls()
	assert.Equal(t, 1, profiles)
	f.source.mu.Lock()
	assert.Equal(t, 1, f.source.statementCalls[contracts.PeriodAnnual])
	f.source.mu.Unlock()
}

func TestResolveOne_DeferredDedup(t *testing.T) {
	f := newFixture(t)
	f.source.delay = 100 * time.Millisecond
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		v, err := f.resolver.ResolveOne(ctx, "ACME", "revenue", "FY 2022", Options{})
		require.NoError(t, err)
		assert.Nil(t, v)
	}
	assert.Equal(t, []string{"scrape:ACME|annual"}, f.sched.Pending())

	assert.Eventually(t, func() bool { return len(f.sched.Pending()) == 0 }, 2*time.Second, 10*time.Millisecond)

	v, err := f.resolver.ResolveOne(ctx, "ACME", "revenue", "FY 2022", Options{})
	require.NoError(t, err)
	requireValue(t, "1000", v)

	profiles, _ := f.source.calls()
	assert.Equal(t, 1, profiles)
}

func TestResolveOne_ForceUpdateOverwrites(t *testing.T) {
	f := newFixture(t)
	f.storeRevenue(t, "900")

	v, err := f.resolver.ResolveOne(context.Background(), "ACME", "revenue", "FY 2022", Options{ForceUpdate: true, Wait: true})
	require.NoError(t, err)
	requireValue(t, "1000", v)

	_, statements := f.source.calls()
	assert.Equal(t, 2, statements)
}

func TestResolveOne_CompanyColumn(t *testing.T) {
	f := newFixture(t)

	v, err := f.resolver.ResolveOne(context.Background(), "ACME", "price", "LATEST", Options{Wait: true})
	require.NoError(t, err)
	requireValue(t, "12.5", v)

	profiles, statements := f.source.calls()
	assert.Equal(t, 1, profiles)
	assert.Zero(t, statements)
}

func TestResolveOne_TTMLabel(t *testing.T) {
	f := newFixture(t)
	f.source.statements[contracts.PeriodTTM] = []contracts.RawStatement{{"symbol": "ACME", "peRatioTTM": json.Number("21.25")}}

	v, err := f.resolver.ResolveOne(context.Background(), "ACME", "pe ratio", "ttm", Options{Wait: true})
	require.NoError(t, err)
	requireValue(t, "21.25", v)
}

func TestResolveOne_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.resolver.ResolveOne(ctx, "ACME", "revenue", "FY 20X2", Options{})
	assert.True(t, eris.Is(err, contracts.ErrMalformedInput))

	_, err = f.resolver.ResolveOne(ctx, "NOPE", "revenue", "FY 2022", Options{Wait: true})
	assert.True(t, eris.Is(err, contracts.ErrCompanyNotFound))

	// 비동기 요청은 예약만 하므로 에러가 아니다
	v, err := f.resolver.ResolveOne(ctx, "NOPE", "revenue", "FY 2021", Options{})
	assert.NoError(t, err)
	assert.Nil(t, v)
}

func TestResolveOne_TransportIsAbsent(t *testing.T) {
	f := newFixture(t)
	f.source.fail = eris.Wrap(contracts.ErrTransport, "fake: down")

	v, err := f.resolver.ResolveOne(context.Background(), "ACME", "revenue", "FY 2022", Options{Wait: true})
	assert.NoError(t, err)
	assert.Nil(t, v)
}

func TestResolveMany_PartialFailure(t *testing.T) {
	f := newFixture(t)
	f.storeRevenue(t, "1000.00")

	keys := []string{
		"ACME|revenue|FY 2022",
		"ACME|revenue",
		"NOPE|revenue|FY 2022",
		"ACME|unknown metric|FY 2022",
		"ACME|revenue|FY 2019",
	}

	results, err := f.resolver.ResolveMany(context.Background(), keys, Options{Wait: true})
	require.NoError(t, err)
	require.Len(t, results, 5)

	requireValue(t, "1000.00", results["ACME|revenue|FY 2022"].Value)
	assert.Empty(t, results["ACME|revenue|FY 2022"].Error)

	assert.NotEmpty(t, results["ACME|revenue"].Error)
	assert.Nil(t, results["ACME|revenue"].Value)

	assert.NotEmpty(t, results["NOPE|revenue|FY 2022"].Error)

	for _, k := range []string{"ACME|unknown metric|FY 2022", "ACME|revenue|FY 2019"} {
		assert.Nil(t, results[k].Value, k)
		assert.Empty(t, results[k].Error, k)
	}
}

func TestResolveMany_DuplicateKeys(t *testing.T) {
	f := newFixture(t)
	f.storeRevenue(t, "5")

	results, err := f.resolver.ResolveMany(context.Background(), []string{"ACME|revenue|FY 2022", "ACME|revenue|FY 2022"}, Options{})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestResolveMany_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.resolver.ResolveMany(ctx, []string{"ACME|revenue|FY 2022"}, Options{Wait: true})
	assert.ErrorIs(t, err, context.Canceled)
}

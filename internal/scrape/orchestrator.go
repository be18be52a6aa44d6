package scrape

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/semaphore"

	"github.com/wonny/finmetric/internal/coalesce"
	"github.com/wonny/finmetric/internal/contracts"
	"github.com/wonny/finmetric/pkg/config"
	"github.com/wonny/finmetric/pkg/logger"
)

// Orchestrator fetches companies and statements from the data source and
// persists them into the metric store.
// ⭐ SSOT: data source 호출은 모두 이 orchestrator 의 semaphore 를 거친다
type Orchestrator struct {
	source   contracts.DataSource
	store    contracts.Store
	sem      *semaphore.Weighted
	slots    int
	group    coalesce.Group
	accepted map[string]struct{}
	workers  int
	logger   *logger.Logger
}

// New creates an orchestrator. cfg.Concurrency 가 전역 외부 호출 상한이다.
func New(source contracts.DataSource, store contracts.Store, cfg config.ResolverConfig, log *logger.Logger) *Orchestrator {
	accepted := make(map[string]struct{}, len(cfg.AcceptedForms))
	for _, f := range cfg.AcceptedForms {
		accepted[strings.ToUpper(strings.TrimSpace(f))] = struct{}{}
	}

	return &Orchestrator{
		source:   source,
		store:    store,
		sem:      semaphore.NewWeighted(int64(max(1, cfg.Concurrency))),
		slots:    max(1, cfg.Concurrency),
		accepted: accepted,
		workers:  max(1, cfg.Concurrency),
		logger:   log.Module("scrape"),
	}
}

// outbound runs fn while holding one slot of the global semaphore
func (o *Orchestrator) outbound(ctx context.Context, fn func(ctx context.Context) error) error {
	return o.outboundN(ctx, 1, fn)
}

// outboundN holds n slots, one per request fn issues concurrently
func (o *Orchestrator) outboundN(ctx context.Context, n int, fn func(ctx context.Context) error) error {
	n = min(max(1, n), o.slots)
	if err := o.sem.Acquire(ctx, int64(n)); err != nil {
		return eris.Wrap(err, "scrape: acquire outbound slot")
	}
	defer o.sem.Release(int64(n))
	return fn(ctx)
}

// statementSlots returns the slots one FetchStatements call of class needs
func (o *Orchestrator) statementSlots(class contracts.PeriodClass) int {
	if fanout, ok := o.source.(contracts.StatementFanout); ok {
		return fanout.StatementRequests(class)
	}
	return 1
}

// EnsureCompany returns the stored company for ticker, fetching its profile
// on a miss. 같은 ticker 의 동시 첫 조회는 외부 호출 한 번으로 합쳐진다.
// 데이터 소스에도 없으면 ErrCompanyNotFound.
func (o *Orchestrator) EnsureCompany(ctx context.Context, ticker string) (*contracts.Company, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	company, err := o.store.GetCompany(ctx, ticker)
	if err == nil {
		return company, nil
	}
	if !eris.Is(err, contracts.ErrNotFound) {
		return nil, eris.Wrapf(err, "scrape: get company %s", ticker)
	}

	_, err = o.group.Do(ctx, "company:"+ticker, func(ctx context.Context) error {
		return o.fetchCompany(ctx, ticker)
	})
	if err != nil {
		return nil, err
	}

	company, err = o.store.GetCompany(ctx, ticker)
	if eris.Is(err, contracts.ErrNotFound) {
		return nil, eris.Wrapf(contracts.ErrCompanyNotFound, "scrape: %s", ticker)
	}
	return company, err
}

func (o *Orchestrator) fetchCompany(ctx context.Context, ticker string) error {
	var profile *contracts.CompanyProfile
	err := o.outbound(ctx, func(ctx context.Context) error {
		var err error
		profile, err = o.source.FetchCompanyProfile(ctx, ticker)
		return err
	})
	if eris.Is(err, contracts.ErrNotFound) {
		return eris.Wrapf(contracts.ErrCompanyNotFound, "scrape: no profile for %s", ticker)
	}
	if err != nil {
		return err
	}

	company, err := CompanyFromProfile(profile)
	if err != nil {
		return eris.Wrapf(contracts.ErrCompanyNotFound, "scrape: %s: %v", ticker, err)
	}

	if err := o.store.UpsertCompanies(ctx, []contracts.Company{*company}); err != nil {
		return eris.Wrapf(err, "scrape: save company %s", ticker)
	}

	o.logger.WithField("ticker", ticker).Info("Company registered")
	return nil
}

// CompanyFromProfile normalizes a profile; cik, symbol and name are required
func CompanyFromProfile(p *contracts.CompanyProfile) (*contracts.Company, error) {
	if p == nil {
		return nil, eris.New("scrape: empty profile")
	}

	cik := strings.TrimSpace(p.CIK)
	symbol := strings.ToUpper(strings.TrimSpace(p.Symbol))
	name := strings.TrimSpace(p.CompanyName)
	if cik == "" || symbol == "" || name == "" {
		return nil, eris.Errorf("scrape: profile %q is missing identity fields", p.Symbol)
	}

	return &contracts.Company{
		CIK:       cik,
		Ticker:    symbol,
		Name:      name,
		Address:   p.Address,
		Phone:     p.Phone,
		Sector:    p.Sector,
		Industry:  p.Industry,
		Country:   p.Country,
		MarketCap: p.MktCap,
		Price:     p.Price,
		Change:    p.Changes,
		Volume:    p.VolAvg,
	}, nil
}

// Populate fetches and stores statements of one classification for company.
// annual 은 historical 도 함께 가져온다.
func (o *Orchestrator) Populate(ctx context.Context, company *contracts.Company, class contracts.PeriodClass) (int, error) {
	classes := []contracts.PeriodClass{class}
	if class == contracts.PeriodAnnual {
		classes = append(classes, contracts.PeriodHistorical)
	}
	return o.populate(ctx, company, classes)
}

func (o *Orchestrator) populate(ctx context.Context, company *contracts.Company, classes []contracts.PeriodClass) (int, error) {
	log := o.logger.WithField("ticker", company.Ticker)

	var facts []Fact
	for _, class := range classes {
		var raw []contracts.RawStatement
		err := o.outboundN(ctx, o.statementSlots(class), func(ctx context.Context) error {
			var err error
			raw, err = o.source.FetchStatements(ctx, company.Ticker, class)
			return err
		})
		if err != nil {
			return 0, eris.Wrapf(err, "scrape: fetch %s statements for %s", class, company.Ticker)
		}
		facts = append(facts, Extract(raw, class, o.accepted)...)
	}

	n, err := o.persist(ctx, company, facts)
	if err != nil {
		return n, err
	}

	log.WithFields(map[string]interface{}{
		"classes": classes,
		"records": n,
	}).Info("Statements populated")
	return n, nil
}

// persist binds facts to categories, registering unknown tags, and upserts them
func (o *Orchestrator) persist(ctx context.Context, company *contracts.Company, facts []Fact) (int, error) {
	if len(facts) == 0 {
		return 0, nil
	}

	ids, err := o.categoryIDs(ctx, facts)
	if err != nil {
		return 0, err
	}

	type recordKey struct {
		period   string
		category string
	}
	byKey := make(map[recordKey]int)
	records := make([]contracts.MetricRecord, 0, len(facts))

	for _, f := range facts {
		for _, categoryID := range ids[strings.ToLower(f.Tag)] {
			rec := contracts.MetricRecord{
				CompanyID:  company.ID,
				CategoryID: categoryID,
				Period:     f.Period,
				ReportDate: f.ReportDate,
				FilingDate: f.FilingDate,
				Value:      f.Value,
				Form:       f.Form,
			}

			k := recordKey{period: f.Period, category: categoryID}
			if i, ok := byKey[k]; ok {
				records[i] = rec
				continue
			}
			byKey[k] = len(records)
			records = append(records, rec)
		}
	}

	if err := o.store.UpsertMetrics(ctx, records); err != nil {
		return 0, eris.Wrapf(err, "scrape: save metrics for %s", company.Ticker)
	}
	return len(records), nil
}

// categoryIDs maps lower-cased tags to category ids, synthesizing api_tag
// categories for tags nobody defined yet
func (o *Orchestrator) categoryIDs(ctx context.Context, facts []Fact) (map[string][]string, error) {
	seen := make(map[string]string)
	tags := make([]string, 0)
	for _, f := range facts {
		lower := strings.ToLower(f.Tag)
		if _, ok := seen[lower]; !ok {
			seen[lower] = f.Tag
			tags = append(tags, f.Tag)
		}
	}

	ids, err := o.lookupTags(ctx, tags)
	if err != nil {
		return nil, err
	}

	var missing []string
	var synthesized []contracts.Category
	for _, tag := range tags {
		if len(ids[strings.ToLower(tag)]) > 0 {
			continue
		}
		missing = append(missing, tag)
		synthesized = append(synthesized, contracts.Category{
			ID:              uuid.NewString(),
			Label:           LabelFromTag(tag),
			ValueDefinition: tag,
			Type:            contracts.DefinitionAPITag,
			Priority:        1,
			Description:     tag,
		})
	}
	if len(synthesized) == 0 {
		return ids, nil
	}

	if err := o.store.CreateCategories(ctx, synthesized); err != nil {
		return nil, eris.Wrap(err, "scrape: register categories")
	}
	o.logger.WithField("count", len(synthesized)).Info("Registered categories for new tags")

	// 동시에 같은 tag 를 등록한 경우 실제로 저장된 id 를 다시 읽는다
	registered, err := o.lookupTags(ctx, missing)
	if err != nil {
		return nil, err
	}
	for tag, list := range registered {
		ids[tag] = list
	}
	return ids, nil
}

func (o *Orchestrator) lookupTags(ctx context.Context, tags []string) (map[string][]string, error) {
	categories, err := o.store.CategoriesByTags(ctx, tags)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: load categories")
	}

	ids := make(map[string][]string, len(categories))
	for _, c := range categories {
		key := strings.ToLower(c.ValueDefinition)
		ids[key] = append(ids[key], c.ID)
	}
	return ids, nil
}

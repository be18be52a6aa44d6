package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/wonny/finmetric/internal/contracts"
)

type metricKey struct {
	companyID  string
	period     string
	categoryID string
}

// Memory is an in-process contracts.Store (STORE_DRIVER=memory, tests)
type Memory struct {
	mu         sync.RWMutex
	categories map[string]contracts.Category // id -> category
	companies  map[string]contracts.Company  // ticker -> company
	metrics    map[metricKey]contracts.MetricRecord
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		categories: make(map[string]contracts.Category),
		companies:  make(map[string]contracts.Company),
		metrics:    make(map[metricKey]contracts.MetricRecord),
	}
}

// Ping always succeeds
func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) FindCategories(_ context.Context, f contracts.CategoryFilter) ([]contracts.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	label := strings.ToLower(f.Label)
	out := make([]contracts.Category, 0)
	for _, c := range m.categories {
		l := strings.ToLower(c.Label)
		if f.Contains && !strings.Contains(l, label) {
			continue
		}
		if !f.Contains && l != label {
			continue
		}
		if f.OnlyFormulas && c.Type != contracts.DefinitionFormula {
			continue
		}
		out = append(out, c)
	}

	sortByPriority(out)
	return out, nil
}

func (m *Memory) ListCategories(context.Context) ([]contracts.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]contracts.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].Priority < out[j].Priority
	})
	return out, nil
}

func (m *Memory) GetCategory(_ context.Context, id string) (*contracts.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.categories[id]
	if !ok {
		return nil, eris.Wrapf(contracts.ErrNotFound, "store: category %s", id)
	}
	return &c, nil
}

func (m *Memory) CategoriesByTags(_ context.Context, tags []string) ([]contracts.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[strings.ToLower(t)] = true
	}

	out := make([]contracts.Category, 0)
	for _, c := range m.categories {
		if c.Type == contracts.DefinitionAPITag && want[strings.ToLower(c.ValueDefinition)] {
			out = append(out, c)
		}
	}
	sortByPriority(out)
	return out, nil
}

func (m *Memory) CreateCategories(_ context.Context, categories []contracts.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range categories {
		if _, ok := m.categories[c.ID]; ok {
			continue
		}
		if m.hasDefinitionLocked(c) {
			continue
		}
		m.categories[c.ID] = c
	}
	return nil
}

func (m *Memory) hasDefinitionLocked(c contracts.Category) bool {
	for _, existing := range m.categories {
		if existing.Label == c.Label && existing.ValueDefinition == c.ValueDefinition && existing.Type == c.Type {
			return true
		}
	}
	return false
}

func (m *Memory) UpdateCategory(_ context.Context, id string, u contracts.CategoryUpdate) (*contracts.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.categories[id]
	if !ok {
		return nil, eris.Wrapf(contracts.ErrNotFound, "store: category %s", id)
	}
	if u.Priority != nil {
		c.Priority = *u.Priority
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	m.categories[id] = c
	return &c, nil
}

func (m *Memory) DeleteCategory(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.categories[id]; !ok {
		return eris.Wrapf(contracts.ErrNotFound, "store: category %s", id)
	}
	delete(m.categories, id)

	for k := range m.metrics {
		if k.categoryID == id {
			delete(m.metrics, k)
		}
	}
	return nil
}

func (m *Memory) GetMetric(_ context.Context, q contracts.MetricQuery) (*contracts.MetricRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	company, ok := m.companies[q.Ticker]
	if !ok {
		return nil, eris.Wrapf(contracts.ErrNotFound, "store: metric %s/%s/%s", q.Ticker, q.Tag, q.Period)
	}

	tag := strings.ToLower(q.Tag)

	var (
		best         *contracts.MetricRecord
		bestPriority int
	)
	for k, rec := range m.metrics {
		if k.companyID != company.ID || k.period != q.Period {
			continue
		}
		if q.ReportDateFloor != "" && rec.ReportDate < q.ReportDateFloor {
			continue
		}
		c, ok := m.categories[k.categoryID]
		if !ok || strings.ToLower(c.ValueDefinition) != tag {
			continue
		}

		if best == nil || betterRecord(c.Priority, rec, bestPriority, *best) {
			r := rec
			best, bestPriority = &r, c.Priority
		}
	}

	if best == nil {
		return nil, eris.Wrapf(contracts.ErrNotFound, "store: metric %s/%s/%s", q.Ticker, q.Tag, q.Period)
	}
	return best, nil
}

// betterRecord orders by (priority asc, filing_date desc, report_date desc)
func betterRecord(p int, r contracts.MetricRecord, bestP int, best contracts.MetricRecord) bool {
	if p != bestP {
		return p < bestP
	}
	if r.FilingDate != best.FilingDate {
		return r.FilingDate > best.FilingDate
	}
	return r.ReportDate > best.ReportDate
}

func (m *Memory) UpsertMetrics(_ context.Context, records []contracts.MetricRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range records {
		if _, ok := m.categories[r.CategoryID]; !ok {
			return eris.Wrapf(contracts.ErrNotFound, "store: category %s for metric", r.CategoryID)
		}

		k := metricKey{companyID: r.CompanyID, period: r.Period, categoryID: r.CategoryID}
		r.Value = contracts.RoundValue(r.Value)

		if existing, ok := m.metrics[k]; ok {
			existing.Value = r.Value
			existing.Form = r.Form
			m.metrics[k] = existing
			continue
		}
		m.metrics[k] = r
	}
	return nil
}

func (m *Memory) CountMetrics(_ context.Context, companyID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for k := range m.metrics {
		if k.companyID == companyID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) GetCompany(_ context.Context, ticker string) (*contracts.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.companies[ticker]
	if !ok {
		return nil, eris.Wrapf(contracts.ErrNotFound, "store: company %s", ticker)
	}
	return &c, nil
}

func (m *Memory) ListCompanies(context.Context) ([]contracts.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]contracts.Company, 0, len(m.companies))
	for _, c := range m.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func (m *Memory) UpsertCompanies(_ context.Context, companies []contracts.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range companies {
		if existing, ok := m.companies[c.Ticker]; ok {
			c.ID = existing.ID
			c.CIK = existing.CIK
		} else if c.ID == "" {
			c.ID = uuid.NewString()
		}
		m.companies[c.Ticker] = c
	}
	return nil
}

func sortByPriority(categories []contracts.Category) {
	sort.SliceStable(categories, func(i, j int) bool {
		if categories[i].Priority != categories[j].Priority {
			return categories[i].Priority < categories[j].Priority
		}
		return categories[i].Label < categories[j].Label
	})
}

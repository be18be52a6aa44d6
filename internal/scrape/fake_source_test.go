package scrape

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/wonny/finmetric/internal/contracts"
)

// fakeSource is an in-process data source that counts calls
type fakeSource struct {
	mu         sync.Mutex
	profiles   map[string]*contracts.CompanyProfile
	statements map[contracts.PeriodClass][]contracts.RawStatement
	failClass  map[contracts.PeriodClass]error
	tickers    []string
	delay      time.Duration

	profileCalls   map[string]int
	statementCalls []contracts.PeriodClass
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		profiles:     make(map[string]*contracts.CompanyProfile),
		statements:   make(map[contracts.PeriodClass][]contracts.RawStatement),
		failClass:    make(map[contracts.PeriodClass]error),
		profileCalls: make(map[string]int),
	}
}

func (f *fakeSource) addProfile(ticker string) {
	f.profiles[ticker] = &contracts.CompanyProfile{CIK: "cik-" + ticker, Symbol: ticker, CompanyName: ticker + " Inc"}
}

func (f *fakeSource) FetchCompanyProfile(ctx context.Context, ticker string) (*contracts.CompanyProfile, error) {
	f.mu.Lock()
	f.profileCalls[ticker]++
	p, ok := f.profiles[ticker]
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, eris.Wrapf(contracts.ErrNotFound, "fake: %s", ticker)
	}
	return p, nil
}

func (f *fakeSource) FetchStatements(ctx context.Context, ticker string, class contracts.PeriodClass) ([]contracts.RawStatement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.statementCalls = append(f.statementCalls, class)
	if err := f.failClass[class]; err != nil {
		return nil, err
	}
	return f.statements[class], nil
}

func (f *fakeSource) FetchTickers(ctx context.Context) ([]string, error) {
	return f.tickers, nil
}

func (f *fakeSource) profileCallCount(ticker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profileCalls[ticker]
}

package fmp

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/finmetric/internal/contracts"
)

// 분류별 statement endpoint
var (
	latestEndpoints = []string{
		"v3/discounted-cash-flow/%s",
		"v4/price-target-consensus?symbol=%s",
	}
	ttmEndpoints = []string{
		"v3/key-metrics-ttm/%s",
		"v3/ratios-ttm/%s",
	}
	historicalEndpoints = []string{
		"v3/historical-price-full/stock_dividend/%s",
	}
	periodicEndpoints = []string{
		"v3/income-statement/%s",
		"v3/balance-sheet-statement/%s",
		"v3/cash-flow-statement/%s",
		"v3/income-statement-growth/%s",
		"v3/balance-sheet-statement-growth/%s",
		"v3/cash-flow-statement-growth/%s",
		"v3/key-metrics/%s",
		"v3/ratios/%s",
		"v3/analyst-estimates/%s",
	}
)

// Endpoints returns the endpoint paths fetched for a classification
func Endpoints(ticker string, class contracts.PeriodClass) ([]string, url.Values, error) {
	var templates []string
	var params url.Values

	switch class {
	case contracts.PeriodLatest:
		templates = latestEndpoints
	case contracts.PeriodTTM:
		templates = ttmEndpoints
	case contracts.PeriodHistorical:
		templates = historicalEndpoints
	case contracts.PeriodAnnual, contracts.PeriodQuarter:
		templates = periodicEndpoints
		params = url.Values{"period": {string(class)}}
	default:
		return nil, nil, eris.Wrapf(contracts.ErrMalformedInput, "fmp: unknown period class %q", class)
	}

	paths := make([]string, len(templates))
	for i, t := range templates {
		paths[i] = strings.Replace(t, "%s", url.PathEscape(ticker), 1)
	}
	return paths, params, nil
}

// StatementRequests returns how many requests of class run at the same time
func (c *Client) StatementRequests(class contracts.PeriodClass) int {
	paths, _, err := Endpoints("", class)
	if err != nil {
		return 1
	}
	return min(len(paths), c.parallel)
}

type historicalPayload struct {
	Historical []contracts.RawStatement `json:"historical"`
}

// FetchStatements fetches every endpoint of a classification, at most
// c.parallel at a time. endpoint 하나가 404 면 건너뛰고, transport 오류는
// 전체 호출을 실패시킨다.
func (c *Client) FetchStatements(ctx context.Context, ticker string, class contracts.PeriodClass) ([]contracts.RawStatement, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	paths, params, err := Endpoints(ticker, class)
	if err != nil {
		return nil, err
	}

	results := make([][]contracts.RawStatement, len(paths))
	var mu sync.Mutex
	skipped := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallel)
	for i, path := range paths {
		g.Go(func() error {
			statements, err := c.fetchOne(gctx, path, params, class)
			if eris.Is(err, contracts.ErrNotFound) {
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			if err != nil {
				return err
			}
			results[i] = statements
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []contracts.RawStatement
	for _, r := range results {
		out = append(out, r...)
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker":     ticker,
		"class":      class,
		"statements": len(out),
		"skipped":    skipped,
	}).Debug("Fetched statements")

	return out, nil
}

func (c *Client) fetchOne(ctx context.Context, path string, params url.Values, class contracts.PeriodClass) ([]contracts.RawStatement, error) {
	if class == contracts.PeriodHistorical {
		var payload historicalPayload
		if err := c.get(ctx, path, params, &payload); err != nil {
			return nil, err
		}
		return payload.Historical, nil
	}

	var statements []contracts.RawStatement
	if err := c.get(ctx, path, params, &statements); err != nil {
		return nil, err
	}
	return statements, nil
}

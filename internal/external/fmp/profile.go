package fmp

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/wonny/finmetric/internal/contracts"
	"github.com/wonny/finmetric/pkg/redis"
)

// FetchCompanyProfile returns the profile for ticker.
// 빈 목록이면 ErrNotFound. 성공한 응답만 캐시한다.
func (c *Client) FetchCompanyProfile(ctx context.Context, ticker string) (*contracts.CompanyProfile, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, eris.Wrap(contracts.ErrMalformedInput, "fmp: empty ticker")
	}

	var profile contracts.CompanyProfile
	err := c.cache.GetOrSet(ctx, redis.ProfileKey(ticker), &profile, redis.TTLProfile, func() (interface{}, error) {
		var profiles []contracts.CompanyProfile
		if err := c.get(ctx, "v3/profile/"+ticker, nil, &profiles); err != nil {
			return nil, err
		}
		if len(profiles) == 0 {
			return nil, eris.Wrapf(contracts.ErrNotFound, "fmp: profile %s", ticker)
		}
		return profiles[0], nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.WithField("ticker", ticker).Debug("Fetched company profile")
	return &profile, nil
}

type listedStock struct {
	Symbol string `json:"symbol"`
}

// FetchTickers returns the listed ticker universe, deduplicated and sorted
func (c *Client) FetchTickers(ctx context.Context) ([]string, error) {
	var tickers []string
	err := c.cache.GetOrSet(ctx, redis.TickerListKey(), &tickers, redis.TTLDaily, func() (interface{}, error) {
		var stocks []listedStock
		if err := c.get(ctx, "v3/stock/list", nil, &stocks); err != nil {
			return nil, err
		}

		seen := make(map[string]struct{}, len(stocks))
		out := make([]string, 0, len(stocks))
		for _, s := range stocks {
			symbol := strings.ToUpper(strings.TrimSpace(s.Symbol))
			if symbol == "" {
				continue
			}
			if _, dup := seen[symbol]; dup {
				continue
			}
			seen[symbol] = struct{}{}
			out = append(out, symbol)
		}
		sort.Strings(out)
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.WithField("count", len(tickers)).Info("Fetched ticker list")
	return tickers, nil
}

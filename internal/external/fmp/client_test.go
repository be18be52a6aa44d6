package fmp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/finmetric/internal/contracts"
	"github.com/wonny/finmetric/pkg/config"
	"github.com/wonny/finmetric/pkg/httputil"
	"github.com/wonny/finmetric/pkg/logger"
	"github.com/wonny/finmetric/pkg/redis"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{Env: "development"}
	hc := httputil.New(cfg, logger.NewNop()).DisableRetry()
	cache := redis.NewCache(redis.Disabled(), "test", logger.NewNop())

	return NewClient(config.FMPConfig{APIKey: "secret", BaseURL: srv.URL + "/api/"}, hc, cache, logger.NewNop())
}

func TestFetchCompanyProfile(t *testing.T) {
	var gotKey string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/profile/ACME", func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("apikey")
		fmt.Fprint(w, `[{"cik":"0000001","symbol":"ACME","companyName":"Acme Corp","sector":"Industrials","mktCap":123456789012,"price":12.3456,"changes":null}]`)
	})
	client := newTestClient(t, mux)

	profile, err := client.FetchCompanyProfile(context.Background(), "acme")
	require.NoError(t, err)

	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "ACME", profile.Symbol)
	assert.Equal(t, "Acme Corp", profile.CompanyName)
	assert.True(t, profile.MktCap.Valid)
	assert.Equal(t, "123456789012", profile.MktCap.Decimal.String())
	assert.Equal(t, "12.3456", profile.Price.Decimal.String())
	assert.False(t, profile.Changes.Valid)
}

func TestFetchCompanyProfile_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/profile/EMPTY", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("/api/v3/profile/GONE", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	client := newTestClient(t, mux)

	for _, ticker := range []string{"EMPTY", "GONE"} {
		_, err := client.FetchCompanyProfile(context.Background(), ticker)
		assert.True(t, eris.Is(err, contracts.ErrNotFound), "%s: %v", ticker, err)
	}
}

func TestFetchCompanyProfile_Transport(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/profile/DOWN", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/api/v3/profile/JUNK", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Error Message":"Invalid API KEY"}`)
	})
	client := newTestClient(t, mux)

	for _, ticker := range []string{"DOWN", "JUNK"} {
		_, err := client.FetchCompanyProfile(context.Background(), ticker)
		assert.True(t, eris.Is(err, contracts.ErrTransport), "%s: %v", ticker, err)
		assert.False(t, eris.Is(err, contracts.ErrNotFound))
	}
}

func TestFetchCompanyProfile_EmptyTicker(t *testing.T) {
	client := newTestClient(t, http.NewServeMux())
	_, err := client.FetchCompanyProfile(context.Background(), "  ")
	assert.True(t, eris.Is(err, contracts.ErrMalformedInput))
}

func TestFetchStatements_Annual(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "annual", r.URL.Query().Get("period"))

		switch r.URL.Path {
		case "/api/v3/income-statement/ACME":
			fmt.Fprint(w, `[{"date":"2022-12-31","calendarYear":"2022","period":"FY","revenue":1000.5}]`)
		case "/api/v3/ratios/ACME":
			fmt.Fprint(w, `[{"date":"2022-12-31","currentRatio":1.25}]`)
		case "/api/v3/analyst-estimates/ACME":
			http.NotFound(w, r)
		default:
			fmt.Fprint(w, `[]`)
		}
	})
	client := newTestClient(t, mux)

	statements, err := client.FetchStatements(context.Background(), "acme", contracts.PeriodAnnual)
	require.NoError(t, err)

	assert.Equal(t, int32(len(periodicEndpoints)), atomic.LoadInt32(&calls))
	require.Len(t, statements, 2)
	assert.Equal(t, "FY", statements[0]["period"])
	assert.Contains(t, statements[1], "currentRatio")
}

func TestFetchStatements_Historical(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/historical-price-full/stock_dividend/ACME", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"symbol":"ACME","historical":[{"date":"2022-03-01","dividend":0.5},{"date":"2022-06-01","dividend":0.5}]}`)
	})
	client := newTestClient(t, mux)

	statements, err := client.FetchStatements(context.Background(), "ACME", contracts.PeriodHistorical)
	require.NoError(t, err)
	require.Len(t, statements, 2)
	assert.Equal(t, "2022-06-01", statements[1]["date"])
}

func TestFetchStatements_LatestQueryEndpoint(t *testing.T) {
	var symbol string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/discounted-cash-flow/ACME", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"symbol":"ACME","dcf":150.2}]`)
	})
	mux.HandleFunc("/api/v4/price-target-consensus", func(w http.ResponseWriter, r *http.Request) {
		symbol = r.URL.Query().Get("symbol")
		assert.Equal(t, "secret", r.URL.Query().Get("apikey"))
		fmt.Fprint(w, `[{"symbol":"ACME","targetConsensus":170}]`)
	})
	client := newTestClient(t, mux)

	statements, err := client.FetchStatements(context.Background(), "ACME", contracts.PeriodLatest)
	require.NoError(t, err)
	assert.Len(t, statements, 2)
	assert.Equal(t, "ACME", symbol)
}

func TestFetchStatements_TransportFailsCall(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/key-metrics-ttm/ACME", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"peRatioTTM":21.5}]`)
	})
	mux.HandleFunc("/api/v3/ratios-ttm/ACME", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	client := newTestClient(t, mux)

	_, err := client.FetchStatements(context.Background(), "ACME", contracts.PeriodTTM)
	assert.True(t, eris.Is(err, contracts.ErrTransport), "%v", err)
}

func TestFetchStatements_UnknownClass(t *testing.T) {
	client := newTestClient(t, http.NewServeMux())
	_, err := client.FetchStatements(context.Background(), "ACME", contracts.PeriodClass("weekly"))
	assert.True(t, eris.Is(err, contracts.ErrMalformedInput))
}

func TestFetchTickers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/stock/list", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"symbol":"msft"},{"symbol":"AAPL"},{"symbol":""},{"symbol":"MSFT"}]`)
	})
	client := newTestClient(t, mux)

	tickers, err := client.FetchTickers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, tickers)
}

func TestEndpoints(t *testing.T) {
	paths, params, err := Endpoints("ACME", contracts.PeriodQuarter)
	require.NoError(t, err)
	assert.Len(t, paths, 9)
	assert.Equal(t, "v3/income-statement/ACME", paths[0])
	assert.Equal(t, "quarter", params.Get("period"))

	paths, params, err = Endpoints("ACME", contracts.PeriodTTM)
	require.NoError(t, err)
	assert.Equal(t, []string{"v3/key-metrics-ttm/ACME", "v3/ratios-ttm/ACME"}, paths)
	assert.Nil(t, params)
}

func TestFetchStatements_ParallelLimit(t *testing.T) {
	var calls, active, peak int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		n := atomic.AddInt32(&active, 1)
		defer atomic.AddInt32(&active, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		fmt.Fprint(w, `[]`)
	})
	client := newTestClient(t, mux).WithParallel(2)

	_, err := client.FetchStatements(context.Background(), "ACME", contracts.PeriodQuarter)
	require.NoError(t, err)

	assert.Equal(t, int32(len(periodicEndpoints)), atomic.LoadInt32(&calls))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Equal(t, int32(2), atomic.LoadInt32(&peak))
}

func TestStatementRequests(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler())
	assert.Equal(t, defaultParallel, client.StatementRequests(contracts.PeriodAnnual))
	assert.Equal(t, 2, client.StatementRequests(contracts.PeriodTTM))
	assert.Equal(t, 1, client.StatementRequests(contracts.PeriodHistorical))
	assert.Equal(t, 1, client.StatementRequests(contracts.PeriodClass("weekly")))

	client.WithParallel(16)
	assert.Equal(t, len(periodicEndpoints), client.StatementRequests(contracts.PeriodQuarter))

	var _ contracts.StatementFanout = client
}

func TestNewHTTPClient(t *testing.T) {
	cfg := &config.Config{Env: "development", FMP: config.FMPConfig{RequestsPerSecond: 0}}
	assert.NotNil(t, NewHTTPClient(cfg, redis.Disabled(), logger.NewNop()))
}

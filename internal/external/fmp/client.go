package fmp

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/wonny/finmetric/internal/contracts"
	"github.com/wonny/finmetric/pkg/config"
	"github.com/wonny/finmetric/pkg/httputil"
	"github.com/wonny/finmetric/pkg/logger"
	"github.com/wonny/finmetric/pkg/redis"
)

// Client handles communication with the Financial Modeling Prep API
// ⭐ SSOT: FMP API 호출은 이 클라이언트에서만
type Client struct {
	http     *httputil.Client
	cache    *redis.Cache
	logger   *logger.Logger
	apiKey   string
	baseURL  string
	parallel int
}

// defaultParallel 은 statement endpoint 동시 요청 수 기본값
const defaultParallel = 4

// NewClient creates a new FMP client
func NewClient(cfg config.FMPConfig, http *httputil.Client, cache *redis.Cache, log *logger.Logger) *Client {
	return &Client{
		http:     http,
		cache:    cache,
		logger:   log.Module("fmp"),
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		parallel: defaultParallel,
	}
}

// WithParallel caps the concurrent endpoint requests of one FetchStatements call
func (c *Client) WithParallel(n int) *Client {
	c.parallel = max(1, n)
	return c
}

// NewHTTPClient builds the paced HTTP client used for FMP.
// 실패는 재시도하지 않는다. 다음 독립 호출이 다시 시도한다.
func NewHTTPClient(cfg *config.Config, rc *redis.Client, log *logger.Logger) *httputil.Client {
	rps := max(1, cfg.FMP.RequestsPerSecond)

	client := httputil.NewWithTimeout(cfg, log, cfg.FMP.Timeout).
		DisableRetry().
		WithLimiter(rate.NewLimiter(rate.Limit(rps), rps))

	if rc != nil && rc.Enabled() {
		client = client.WithRateLimiter(redis.NewRateLimiter(rc, "finmetric"), redis.FMPRateLimit(rps))
	}
	return client
}

// endpoint builds the full URL for path. path 에 이미 쿼리가 있으면 이어 붙인다.
func (c *Client) endpoint(path string, params url.Values) (string, error) {
	u, err := url.Parse(c.baseURL + "/" + strings.TrimLeft(path, "/"))
	if err != nil {
		return "", eris.Wrapf(err, "fmp: invalid endpoint %s", path)
	}

	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("apikey", c.apiKey)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// get decodes one endpoint into dest, classifying failures
func (c *Client) get(ctx context.Context, path string, params url.Values, dest interface{}) error {
	target, err := c.endpoint(path, params)
	if err != nil {
		return err
	}

	if err := c.http.GetJSON(ctx, target, dest); err != nil {
		return classify(ctx, path, err)
	}
	return nil
}

// classify maps client failures onto the not-found / transport taxonomy
func classify(ctx context.Context, path string, err error) error {
	if ctx.Err() != nil {
		return eris.Wrapf(ctx.Err(), "fmp: %s", path)
	}
	if errors.Is(err, httputil.ErrNotFound) {
		return eris.Wrapf(contracts.ErrNotFound, "fmp: %s", path)
	}

	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) {
		return eris.Wrapf(contracts.ErrTransport, "fmp: %s: status %d", path, statusErr.StatusCode)
	}
	return eris.Wrapf(contracts.ErrTransport, "fmp: %s: %v", path, err)
}

package contracts

import (
	"strings"

	"github.com/rotisserie/eris"
)

// KeySeparator joins the segments of an encoded resolution key
const KeySeparator = "|"

// ResolutionKey identifies one value to produce: TICKER|category|PERIOD
type ResolutionKey struct {
	Ticker   string
	Category string
	Period   Period
}

// NewResolutionKey applies the case rules: ticker upper, category lower,
// period normalized
func NewResolutionKey(ticker, category, period string) (ResolutionKey, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	category = strings.ToLower(strings.TrimSpace(category))

	if ticker == "" {
		return ResolutionKey{}, eris.Wrap(ErrMalformedInput, "key: empty ticker")
	}
	if category == "" {
		return ResolutionKey{}, eris.Wrap(ErrMalformedInput, "key: empty category")
	}

	p, err := ParsePeriod(period)
	if err != nil {
		return ResolutionKey{}, err
	}

	return ResolutionKey{Ticker: ticker, Category: category, Period: p}, nil
}

// ParseResolutionKey decodes "TICKER|CATEGORY|PERIOD"
func ParseResolutionKey(encoded string) (ResolutionKey, error) {
	parts := strings.Split(encoded, KeySeparator)
	if len(parts) != 3 {
		return ResolutionKey{}, eris.Wrapf(ErrMalformedInput, "key: expected 3 segments in %q, got %d", encoded, len(parts))
	}
	return NewResolutionKey(parts[0], parts[1], parts[2])
}

// String encodes the key in canonical form
func (k ResolutionKey) String() string {
	return strings.Join([]string{k.Ticker, k.Category, k.Period.Text}, KeySeparator)
}

// LookupLabel is the registry label to evaluate.
// TTM 요청은 data source 태그가 TTM 접미사를 가지므로 " ttm"을 붙인다.
func (k ResolutionKey) LookupLabel() string {
	if k.Period.Class == PeriodTTM && !strings.HasSuffix(k.Category, "ttm") {
		return k.Category + " ttm"
	}
	return k.Category
}

// WorkKey identifies the scrape work a miss on k triggers
func (k ResolutionKey) WorkKey() string {
	return k.Ticker + KeySeparator + string(k.Period.Class)
}

package contracts

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Company is a reporting entity known to the metric store
type Company struct {
	ID       string `json:"id"`
	CIK      string `json:"cik"`
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Sector   string `json:"sector,omitempty"`
	Industry string `json:"industry,omitempty"`
	Country  string `json:"country,omitempty"`

	// 프로필 갱신 시 함께 바뀌는 시장 지표
	MarketCap decimal.NullDecimal `json:"market_cap"`
	Price     decimal.NullDecimal `json:"price"`
	Change    decimal.NullDecimal `json:"change"`
	Volume    decimal.NullDecimal `json:"volume"`
}

// companyColumns are categories answered from the company record itself
var companyColumns = map[string]func(c *Company) decimal.NullDecimal{
	"market_cap": func(c *Company) decimal.NullDecimal { return c.MarketCap },
	"price":      func(c *Company) decimal.NullDecimal { return c.Price },
	"change":     func(c *Company) decimal.NullDecimal { return c.Change },
	"volume":     func(c *Company) decimal.NullDecimal { return c.Volume },
}

// IsCompanyColumn reports whether category is served from the company record
func IsCompanyColumn(category string) bool {
	_, ok := companyColumns[strings.ToLower(category)]
	return ok
}

// Column returns the company column value for category
func (c *Company) Column(category string) (decimal.NullDecimal, bool) {
	fn, ok := companyColumns[strings.ToLower(category)]
	if !ok {
		return decimal.NullDecimal{}, false
	}
	return fn(c), true
}

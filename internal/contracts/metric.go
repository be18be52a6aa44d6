package contracts

import "github.com/shopspring/decimal"

// ValueScale is the number of fractional digits kept for every stored value
const ValueScale = 4

// MetricRecord is a stored value for (company, category, period)
// ⭐ SSOT: (company_id, period, category_id) 당 최신 값 하나만 존재 (upsert)
type MetricRecord struct {
	CompanyID  string          `json:"company_id"`
	CategoryID string          `json:"category_id"`
	Period     string          `json:"period"`      // 저장 형태: "FY 2022", "Q1 2023", "ttm", "latest", "historical"
	ReportDate string          `json:"report_date"` // YYYY-MM-DD 또는 스냅샷 토큰
	FilingDate string          `json:"filing_date"`
	Value      decimal.Decimal `json:"value"`
	Form       string          `json:"form,omitempty"`
}

// MetricQuery selects the best record for a source tag
type MetricQuery struct {
	Ticker          string
	Tag             string // category value_definition
	Period          string // 저장 형태
	ReportDateFloor string // "" 이면 하한 없음
}

// RoundValue applies the store scale
func RoundValue(d decimal.Decimal) decimal.Decimal {
	return d.Round(ValueScale)
}

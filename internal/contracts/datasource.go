package contracts

import (
	"context"

	"github.com/shopspring/decimal"
)

// CompanyProfile is the raw profile returned by the data source
type CompanyProfile struct {
	CIK         string              `json:"cik"`
	Symbol      string              `json:"symbol"`
	CompanyName string              `json:"companyName"`
	Address     string              `json:"address"`
	Phone       string              `json:"phone"`
	Sector      string              `json:"sector"`
	Industry    string              `json:"industry"`
	Country     string              `json:"country"`
	MktCap      decimal.NullDecimal `json:"mktCap"`
	Price       decimal.NullDecimal `json:"price"`
	Changes     decimal.NullDecimal `json:"changes"`
	VolAvg      decimal.NullDecimal `json:"volAvg"`
}

// RawStatement is one decoded statement object: tag -> value plus
// metadata keys (date, fillingDate, period, form, ...)
type RawStatement map[string]interface{}

// DataSource is the external company and statement provider.
// 없는 티커는 ErrNotFound, 네트워크/타임아웃/5xx 는 ErrTransport.
type DataSource interface {
	FetchCompanyProfile(ctx context.Context, ticker string) (*CompanyProfile, error)
	FetchStatements(ctx context.Context, ticker string, class PeriodClass) ([]RawStatement, error)
	FetchTickers(ctx context.Context) ([]string, error)
}

// StatementFanout is implemented by data sources whose FetchStatements issues
// several requests at once. 호출자는 이 수만큼 outbound slot 을 잡는다.
type StatementFanout interface {
	StatementRequests(class PeriodClass) int
}

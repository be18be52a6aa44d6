package contracts

import "context"

// ⭐ SSOT: metric store 경계 인터페이스는 여기서만 정의
// 찾지 못하면 ErrNotFound 를 돌려준다 (목록 조회는 빈 slice).

// CategoryFilter selects categories by label, always case-insensitive
type CategoryFilter struct {
	Label        string
	Contains     bool // true: 부분 문자열 매칭, false: 정확히 일치
	OnlyFormulas bool
}

// CategoryRepository is the registry's persistence
type CategoryRepository interface {
	// FindCategories returns categories matching filter ordered by priority ascending
	FindCategories(ctx context.Context, filter CategoryFilter) ([]Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id string) (*Category, error)
	// CategoriesByTags returns api_tag categories whose value_definition
	// matches one of tags (case-insensitive)
	CategoriesByTags(ctx context.Context, tags []string) ([]Category, error)
	// CreateCategories inserts, skipping rows that violate the natural key
	CreateCategories(ctx context.Context, categories []Category) error
	UpdateCategory(ctx context.Context, id string, update CategoryUpdate) (*Category, error)
	// DeleteCategory cascades to metric records
	DeleteCategory(ctx context.Context, id string) error
}

// MetricRepository reads and writes metric records
type MetricRepository interface {
	// GetMetric returns the best record ordered by
	// (priority asc, filing_date desc, report_date desc)
	GetMetric(ctx context.Context, q MetricQuery) (*MetricRecord, error)
	// UpsertMetrics writes records, overwriting value/form on conflict
	UpsertMetrics(ctx context.Context, records []MetricRecord) error
	CountMetrics(ctx context.Context, companyID string) (int, error)
}

// CompanyRepository reads and writes companies
type CompanyRepository interface {
	GetCompany(ctx context.Context, ticker string) (*Company, error)
	ListCompanies(ctx context.Context) ([]Company, error)
	// UpsertCompanies keys on ticker; identity fields are kept on conflict
	UpsertCompanies(ctx context.Context, companies []Company) error
}

// Store is the full metric store
type Store interface {
	CategoryRepository
	MetricRepository
	CompanyRepository
	Ping(ctx context.Context) error
}

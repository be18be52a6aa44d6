package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/wonny/finmetric/internal/contracts"
)

// GetMetric returns the best stored record for a source tag.
// 정렬: category priority asc, filing_date desc, report_date desc
func (s *Postgres) GetMetric(ctx context.Context, q contracts.MetricQuery) (*contracts.MetricRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT m.company_id::text, m.category_id::text, m.period,
		       m.report_date, m.filing_date, m.value::text, m.form
		FROM metrics m
		JOIN companies co ON co.id = m.company_id
		JOIN categories c ON c.id = m.category_id
		WHERE co.ticker = $1
		  AND lower(c.value_definition) = lower($2)
		  AND m.period = $3
		  AND ($4 = '' OR m.report_date >= $4)
		  AND m.value IS NOT NULL
		ORDER BY c.priority ASC, m.filing_date DESC, m.report_date DESC
		LIMIT 1
	`, q.Ticker, q.Tag, q.Period, q.ReportDateFloor)

	var (
		rec   contracts.MetricRecord
		value string
	)
	err := row.Scan(&rec.CompanyID, &rec.CategoryID, &rec.Period, &rec.ReportDate, &rec.FilingDate, &value, &rec.Form)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(contracts.ErrNotFound, "store: metric %s/%s/%s", q.Ticker, q.Tag, q.Period)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get metric %s/%s/%s", q.Ticker, q.Tag, q.Period)
	}

	if rec.Value, err = parseDecimal(value); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpsertMetrics writes records in batches; conflicts overwrite value and form
func (s *Postgres) UpsertMetrics(ctx context.Context, records []contracts.MetricRecord) error {
	return inChunks(ctx, s, "metric", records, func(ctx context.Context, tx pgx.Tx, r contracts.MetricRecord) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO metrics (company_id, category_id, period, report_date, filing_date, value, form)
			VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6::numeric, $7)
			ON CONFLICT (company_id, period, category_id) DO UPDATE SET
				value = EXCLUDED.value,
				form = EXCLUDED.form,
				updated_at = NOW()
		`, r.CompanyID, r.CategoryID, r.Period, r.ReportDate, r.FilingDate,
			contracts.RoundValue(r.Value).String(), r.Form)
		if err != nil {
			return eris.Wrapf(err, "upsert metric %s/%s", r.CategoryID, r.Period)
		}
		return nil
	})
}

// CountMetrics returns how many records a company has
func (s *Postgres) CountMetrics(ctx context.Context, companyID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM metrics WHERE company_id::text = $1`, companyID).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "store: count metrics %s", companyID)
	}
	return n, nil
}

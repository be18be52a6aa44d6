package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/wonny/finmetric/internal/contracts"
)

const companyColumns = `
	id::text, cik, ticker, name,
	COALESCE(address, ''), COALESCE(phone, ''), COALESCE(sector, ''),
	COALESCE(industry, ''), COALESCE(country, ''),
	COALESCE(market_cap::text, ''), COALESCE(price::text, ''),
	COALESCE(change::text, ''), COALESCE(volume::text, '')`

// GetCompany returns the company for ticker
func (s *Postgres) GetCompany(ctx context.Context, ticker string) (*contracts.Company, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE ticker = $1`, ticker)

	c, err := scanCompany(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(contracts.ErrNotFound, "store: company %s", ticker)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get company %s", ticker)
	}
	return c, nil
}

// ListCompanies returns every company ordered by ticker
func (s *Postgres) ListCompanies(ctx context.Context) ([]contracts.Company, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY ticker ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list companies")
	}
	defer rows.Close()

	companies := make([]contracts.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan company")
		}
		companies = append(companies, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate companies")
	}
	return companies, nil
}

// UpsertCompanies inserts or refreshes companies by ticker.
// id, cik 는 최초 등록 값을 유지한다.
func (s *Postgres) UpsertCompanies(ctx context.Context, companies []contracts.Company) error {
	return inChunks(ctx, s, "company", companies, func(ctx context.Context, tx pgx.Tx, c contracts.Company) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO companies (
				cik, ticker, name, address, phone, sector, industry, country,
				market_cap, price, change, volume
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10::numeric, $11::numeric, $12::numeric)
			ON CONFLICT (ticker) DO UPDATE SET
				name = EXCLUDED.name,
				address = EXCLUDED.address,
				phone = EXCLUDED.phone,
				sector = EXCLUDED.sector,
				industry = EXCLUDED.industry,
				country = EXCLUDED.country,
				market_cap = EXCLUDED.market_cap,
				price = EXCLUDED.price,
				change = EXCLUDED.change,
				volume = EXCLUDED.volume,
				updated_at = NOW()
		`,
			c.CIK, c.Ticker, c.Name, c.Address, c.Phone, c.Sector, c.Industry, c.Country,
			nullDecimalArg(c.MarketCap), nullDecimalArg(c.Price),
			nullDecimalArg(c.Change), nullDecimalArg(c.Volume),
		)
		if err != nil {
			return eris.Wrapf(err, "upsert company %s", c.Ticker)
		}
		return nil
	})
}

func scanCompany(row pgx.Row) (*contracts.Company, error) {
	var (
		c                                contracts.Company
		marketCap, price, change, volume string
	)
	err := row.Scan(
		&c.ID, &c.CIK, &c.Ticker, &c.Name,
		&c.Address, &c.Phone, &c.Sector, &c.Industry, &c.Country,
		&marketCap, &price, &change, &volume,
	)
	if err != nil {
		return nil, err
	}

	c.MarketCap = parseNullDecimal(marketCap)
	c.Price = parseNullDecimal(price)
	c.Change = parseNullDecimal(change)
	c.Volume = parseNullDecimal(volume)
	return &c, nil
}

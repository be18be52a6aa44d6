package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/wonny/finmetric/internal/contracts"
)

const categoryColumns = `id::text, label, value_definition, type, priority, description`

// FindCategories returns categories by label, lowest priority number first
func (s *Postgres) FindCategories(ctx context.Context, f contracts.CategoryFilter) ([]contracts.Category, error) {
	var query strings.Builder
	query.WriteString(`SELECT ` + categoryColumns + ` FROM categories WHERE `)

	arg := f.Label
	if f.Contains {
		query.WriteString(`lower(label) LIKE '%' || lower($1) || '%'`)
		arg = escapeLike(f.Label)
	} else {
		query.WriteString(`lower(label) = lower($1)`)
	}
	if f.OnlyFormulas {
		query.WriteString(` AND type = 'custom_formula'`)
	}
	query.WriteString(` ORDER BY priority ASC, label ASC`)

	rows, err := s.pool.Query(ctx, query.String(), arg)
	if err != nil {
		return nil, eris.Wrapf(err, "store: find categories %q", f.Label)
	}
	return collectCategories(rows)
}

// ListCategories returns every category
func (s *Postgres) ListCategories(ctx context.Context) ([]contracts.Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY label ASC, priority ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list categories")
	}
	return collectCategories(rows)
}

// GetCategory returns one category by id
func (s *Postgres) GetCategory(ctx context.Context, id string) (*contracts.Category, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id::text = $1`, id)

	c, err := scanCategory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(contracts.ErrNotFound, "store: category %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get category %s", id)
	}
	return c, nil
}

// CategoriesByTags matches source tags against value_definition
func (s *Postgres) CategoriesByTags(ctx context.Context, tags []string) ([]contracts.Category, error) {
	if len(tags) == 0 {
		return []contracts.Category{}, nil
	}

	lowered := make([]string, len(tags))
	for i, t := range tags {
		lowered[i] = strings.ToLower(t)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+categoryColumns+` FROM categories
		 WHERE type = 'api_tag' AND lower(value_definition) = ANY($1)
		 ORDER BY priority ASC`,
		lowered,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: categories by tags")
	}
	return collectCategories(rows)
}

// CreateCategories inserts categories, ignoring natural-key duplicates
func (s *Postgres) CreateCategories(ctx context.Context, categories []contracts.Category) error {
	return inChunks(ctx, s, "category", categories, func(ctx context.Context, tx pgx.Tx, c contracts.Category) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO categories (id, label, value_definition, type, priority, description)
			VALUES ($1::uuid, $2, $3, $4, $5, $6)
			ON CONFLICT DO NOTHING
		`, c.ID, c.Label, c.ValueDefinition, string(c.Type), c.Priority, c.Description)
		if err != nil {
			return eris.Wrapf(err, "insert category %q", c.Label)
		}
		return nil
	})
}

// UpdateCategory changes priority and/or description
func (s *Postgres) UpdateCategory(ctx context.Context, id string, u contracts.CategoryUpdate) (*contracts.Category, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE categories SET
			priority = COALESCE($2, priority),
			description = COALESCE($3, description)
		WHERE id::text = $1
		RETURNING `+categoryColumns,
		id, u.Priority, u.Description,
	)

	c, err := scanCategory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(contracts.ErrNotFound, "store: category %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: update category %s", id)
	}
	return c, nil
}

// DeleteCategory removes a category; metric rows go with it (ON DELETE CASCADE)
func (s *Postgres) DeleteCategory(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE id::text = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "store: delete category %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(contracts.ErrNotFound, "store: category %s", id)
	}
	return nil
}

func scanCategory(row pgx.Row) (*contracts.Category, error) {
	var (
		c   contracts.Category
		typ string
	)
	if err := row.Scan(&c.ID, &c.Label, &c.ValueDefinition, &typ, &c.Priority, &c.Description); err != nil {
		return nil, err
	}
	c.Type = contracts.DefinitionType(typ)
	return &c, nil
}

func collectCategories(rows pgx.Rows) ([]contracts.Category, error) {
	defer rows.Close()

	categories := make([]contracts.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan category")
		}
		categories = append(categories, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate categories")
	}
	return categories, nil
}

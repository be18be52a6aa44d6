package registry

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/wonny/finmetric/internal/contracts"
	"github.com/wonny/finmetric/internal/formula"
	"github.com/wonny/finmetric/pkg/logger"
)

// Registry serves ordered category definitions per metric label
// ⭐ SSOT: category 조회/등록 규칙은 여기서만
type Registry struct {
	repo   contracts.CategoryRepository
	logger *logger.Logger
}

// New creates a registry over the category repository
func New(repo contracts.CategoryRepository, log *logger.Logger) *Registry {
	return &Registry{
		repo:   repo,
		logger: log.Module("registry"),
	}
}

// DefinitionsFor returns the definitions for label ordered by priority.
// 정확히 일치하는 label 이 없으면 부분 문자열 매칭으로 다시 찾는다.
// 결과가 없으면 빈 slice.
func (r *Registry) DefinitionsFor(ctx context.Context, label string, onlyFormulas bool) ([]contracts.Category, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return []contracts.Category{}, nil
	}

	exact, err := r.repo.FindCategories(ctx, contracts.CategoryFilter{Label: label, OnlyFormulas: onlyFormulas})
	if err != nil {
		return nil, eris.Wrapf(err, "registry: definitions for %q", label)
	}
	if len(exact) > 0 {
		return exact, nil
	}

	fuzzy, err := r.repo.FindCategories(ctx, contracts.CategoryFilter{Label: label, Contains: true, OnlyFormulas: onlyFormulas})
	if err != nil {
		return nil, eris.Wrapf(err, "registry: definitions containing %q", label)
	}
	return fuzzy, nil
}

// List returns every category
func (r *Registry) List(ctx context.Context) ([]contracts.Category, error) {
	return r.repo.ListCategories(ctx)
}

// Get returns one category
func (r *Registry) Get(ctx context.Context, id string) (*contracts.Category, error) {
	return r.repo.GetCategory(ctx, id)
}

// Create validates and registers categories; missing ids are generated
func (r *Registry) Create(ctx context.Context, categories ...contracts.Category) ([]contracts.Category, error) {
	out := make([]contracts.Category, 0, len(categories))
	for _, c := range categories {
		if err := Check(&c); err != nil {
			return nil, err
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		out = append(out, c)
	}

	if err := r.repo.CreateCategories(ctx, out); err != nil {
		return nil, eris.Wrap(err, "registry: create categories")
	}

	r.logger.WithField("count", len(out)).Info("Categories registered")
	return out, nil
}

// Update changes priority and/or description only
func (r *Registry) Update(ctx context.Context, id string, u contracts.CategoryUpdate) (*contracts.Category, error) {
	if u.Priority != nil && *u.Priority < 1 {
		return nil, eris.Wrapf(contracts.ErrMalformedInput, "registry: priority must be >= 1, got %d", *u.Priority)
	}
	if u.Priority == nil && u.Description == nil {
		return nil, eris.Wrap(contracts.ErrMalformedInput, "registry: nothing to update")
	}
	return r.repo.UpdateCategory(ctx, id, u)
}

// Delete removes a category and its metric records
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	r.logger.WithField("category_id", id).Info("Category deleted")
	return nil
}

// Check validates c including its definition syntax.
// label 은 소문자로 정규화한다 (resolution key 의 category 규칙과 동일).
func Check(c *contracts.Category) error {
	c.Label = strings.ToLower(strings.TrimSpace(c.Label))
	c.ValueDefinition = strings.TrimSpace(c.ValueDefinition)

	if err := c.Validate(); err != nil {
		return err
	}

	switch c.Type {
	case contracts.DefinitionFormula:
		if _, err := formula.Parse(c.ValueDefinition); err != nil {
			return err
		}
	case contracts.DefinitionExactValue:
		if _, err := decimal.NewFromString(c.ValueDefinition); err != nil {
			return eris.Wrapf(contracts.ErrMalformedInput, "registry: exact value %q is not a number", c.ValueDefinition)
		}
	}
	return nil
}

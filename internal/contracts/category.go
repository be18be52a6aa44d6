package contracts

import (
	"strings"

	"github.com/rotisserie/eris"
)

// DefinitionType tells the evaluator how a category produces its value
type DefinitionType string

const (
	DefinitionAPITag     DefinitionType = "api_tag"        // data source 태그 직접 조회
	DefinitionFormula    DefinitionType = "custom_formula" // (+)/(-) 수식
	DefinitionExactValue DefinitionType = "exact_value"    // 상수
)

// Valid reports whether t is one of the known definition types
func (t DefinitionType) Valid() bool {
	switch t {
	case DefinitionAPITag, DefinitionFormula, DefinitionExactValue:
		return true
	}
	return false
}

// Category is one way of obtaining a metric label's value
// ⭐ SSOT: (label, value_definition, type) 조합은 유일, priority 낮을수록 먼저 시도
type Category struct {
	ID              string         `json:"id"`
	Label           string         `json:"label"`
	ValueDefinition string         `json:"value_definition"`
	Type            DefinitionType `json:"type"`
	Priority        int            `json:"priority"`
	Description     string         `json:"description,omitempty"`
}

// Validate checks the fields every stored category must satisfy
func (c *Category) Validate() error {
	if strings.TrimSpace(c.Label) == "" {
		return eris.Wrap(ErrMalformedInput, "category: label is required")
	}
	if !c.Type.Valid() {
		return eris.Wrapf(ErrMalformedInput, "category: unknown type %q", c.Type)
	}
	if c.Priority < 1 {
		return eris.Wrapf(ErrMalformedInput, "category: priority must be >= 1, got %d", c.Priority)
	}
	if c.Type != DefinitionExactValue && strings.TrimSpace(c.ValueDefinition) == "" {
		return eris.Wrap(ErrMalformedInput, "category: value_definition is required")
	}
	return nil
}

// IsFormula reports whether the category is a custom formula
func (c *Category) IsFormula() bool {
	return c.Type == DefinitionFormula
}

// CategoryUpdate carries the only mutable fields of a category
type CategoryUpdate struct {
	Priority    *int    `json:"priority,omitempty"`
	Description *string `json:"description,omitempty"`
}

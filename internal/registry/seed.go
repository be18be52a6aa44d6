package registry

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/wonny/finmetric/internal/contracts"
)

// seedFile is the YAML layout of a category seed
type seedFile struct {
	Categories []seedEntry `yaml:"categories"`
}

type seedEntry struct {
	ID              string `yaml:"id"`
	Label           string `yaml:"label"`
	ValueDefinition string `yaml:"value_definition"`
	Type            string `yaml:"type"`
	Priority        int    `yaml:"priority"`
	Description     string `yaml:"description"`
}

// LoadSeedFile reads and validates categories from a YAML file
func LoadSeedFile(path string) ([]contracts.Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read seed %s", path)
	}
	return ParseSeed(data)
}

// ParseSeed decodes YAML seed content. priority 생략 시 1.
func ParseSeed(data []byte) ([]contracts.Category, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(contracts.ErrMalformedInput, "registry: decode seed: "+err.Error())
	}

	out := make([]contracts.Category, 0, len(f.Categories))
	for i, e := range f.Categories {
		c := contracts.Category{
			ID:              e.ID,
			Label:           e.Label,
			ValueDefinition: e.ValueDefinition,
			Type:            contracts.DefinitionType(e.Type),
			Priority:        e.Priority,
			Description:     e.Description,
		}
		if c.Priority == 0 {
			c.Priority = 1
		}
		if c.Type == "" {
			c.Type = contracts.DefinitionAPITag
		}
		if err := Check(&c); err != nil {
			return nil, eris.Wrapf(err, "registry: seed entry %d", i)
		}
		out = append(out, c)
	}
	return out, nil
}

// Seed loads path and registers its categories
func (r *Registry) Seed(ctx context.Context, path string) ([]contracts.Category, error) {
	categories, err := LoadSeedFile(path)
	if err != nil {
		return nil, err
	}
	return r.Create(ctx, categories...)
}

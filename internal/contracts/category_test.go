package contracts

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCategory_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cat     Category
		wantErr bool
	}{
		{"api tag", Category{Label: "revenue", ValueDefinition: "revenue", Type: DefinitionAPITag, Priority: 1}, false},
		{"exact value", Category{Label: "zero", ValueDefinition: "0", Type: DefinitionExactValue, Priority: 3}, false},
		{"zero priority", Category{Label: "revenue", ValueDefinition: "revenue", Type: DefinitionAPITag, Priority: 0}, true},
		{"unknown type", Category{Label: "revenue", ValueDefinition: "revenue", Type: "sql", Priority: 1}, true},
		{"empty label", Category{ValueDefinition: "revenue", Type: DefinitionAPITag, Priority: 1}, true},
		{"empty formula", Category{Label: "gross", Type: DefinitionFormula, Priority: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cat.Validate()
			if tt.wantErr {
				assert.True(t, eris.Is(err, ErrMalformedInput), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCompany_Column(t *testing.T) {
	c := &Company{
		Ticker:    "ACME",
		MarketCap: decimal.NewNullDecimal(decimal.NewFromInt(1000)),
	}

	v, ok := c.Column("MARKET_CAP")
	assert.True(t, ok)
	assert.True(t, v.Valid)
	assert.Equal(t, "1000", v.Decimal.String())

	v, ok = c.Column("price")
	assert.True(t, ok)
	assert.False(t, v.Valid)

	_, ok = c.Column("revenue")
	assert.False(t, ok)
	assert.True(t, IsCompanyColumn("volume"))
}

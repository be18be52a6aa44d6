package formula

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/finmetric/internal/contracts"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		operands  []string
		operators []Sign
		leading   bool
	}{
		{
			name:      "two words",
			in:        "revenue (-) cost of revenue",
			operands:  []string{"revenue", "cost of revenue"},
			operators: []Sign{Minus},
		},
		{
			name:      "joined names and literal",
			in:        "net_income (+) depreciation-and-amortization (-) 10.5",
			operands:  []string{"net_income", "depreciation-and-amortization", "10.5"},
			operators: []Sign{Plus, Minus},
		},
		{
			name:      "leading operator",
			in:        "(+) B",
			operands:  []string{"B"},
			operators: []Sign{Plus},
			leading:   true,
		},
		{
			name:      "no spaces",
			in:        "a(+)b(-)c",
			operands:  []string{"a", "b", "c"},
			operators: []Sign{Plus, Minus},
		},
		{
			name:      "single operand",
			in:        "totalAssets",
			operands:  []string{"totalAssets"},
			operators: []Sign{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.operands, p.Operands)
			assert.Equal(t, tt.operators, p.Operators)
			assert.Equal(t, tt.leading, p.Leading)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, in := range []string{"", "(+)", "a (+)", "a (+) b (-)", "a (+) (-) b"} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)
			assert.True(t, eris.Is(err, contracts.ErrMalformedFormula))
		})
	}
}

func TestParsedFormula_Combine(t *testing.T) {
	p, err := Parse("a (+) b (-) c")
	require.NoError(t, err)

	got := p.Combine([]decimal.Decimal{
		decimal.RequireFromString("100.10"),
		decimal.RequireFromString("0.00005"),
		decimal.RequireFromString("50"),
	})
	assert.Equal(t, "50.1001", got.String())

	leading, err := Parse("(-) a (+) b")
	require.NoError(t, err)
	assert.Equal(t, []Sign{Minus, Plus}, leading.Signs())
	assert.Equal(t, "-5", leading.Combine([]decimal.Decimal{decimal.NewFromInt(10), decimal.NewFromInt(5)}).String())
}

func TestIsConstant(t *testing.T) {
	assert.True(t, IsConstant("12"))
	assert.True(t, IsConstant("0.25"))
	assert.False(t, IsConstant("q1"))
	assert.False(t, IsConstant("1e5"))
}

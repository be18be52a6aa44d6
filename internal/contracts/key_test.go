package contracts

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResolutionKey(t *testing.T) {
	key, err := ParseResolutionKey("acme|Revenue|2022")
	require.NoError(t, err)

	assert.Equal(t, "ACME", key.Ticker)
	assert.Equal(t, "revenue", key.Category)
	assert.Equal(t, "FY 2022", key.Period.Text)
	assert.Equal(t, "ACME|revenue|FY 2022", key.String())
	assert.Equal(t, "ACME|annual", key.WorkKey())
}

func TestParseResolutionKey_Malformed(t *testing.T) {
	tests := []string{
		"ACME|revenue",
		"ACME|revenue|FY 2022|extra",
		"|revenue|FY 2022",
		"ACME||FY 2022",
		"ACME|revenue|Q9 2022",
	}

	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			_, err := ParseResolutionKey(in)
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrMalformedInput), "got %v", err)
		})
	}
}

func TestResolutionKey_LookupLabel(t *testing.T) {
	tests := []struct {
		category string
		period   string
		want     string
	}{
		{"pe ratio", "TTM", "pe ratio ttm"},
		{"pe ratio ttm", "TTM", "pe ratio ttm"},
		{"pe ratio", "FY 2022", "pe ratio"},
	}

	for _, tt := range tests {
		key, err := NewResolutionKey("ACME", tt.category, tt.period)
		require.NoError(t, err)
		assert.Equal(t, tt.want, key.LookupLabel())
	}
}

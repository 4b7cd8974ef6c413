package watchlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/investscope/internal/analysis"
)

func TestLookup(t *testing.T) {
	c, ok := Lookup(" fr ")
	require.True(t, ok)
	assert.Equal(t, "France", c.Name)
	assert.Equal(t, "Europe", c.Region)
	assert.True(t, c.PEA)

	us, ok := Lookup("US")
	require.True(t, ok)
	assert.False(t, us.PEA)

	_, ok = Lookup("XX")
	assert.False(t, ok)
}

func TestParseResolve(t *testing.T) {
	w, err := Parse([]byte(`
regions: [Océanie]
countries:
  - code: us
  - code: FR
    name: Hexagone
  - code: LU
    name: Luxembourg
exclude: [NZ]
`))
	require.NoError(t, err)

	assert.Equal(t, []analysis.CountryRef{
		{Code: "US", Name: "États-Unis"},
		{Code: "FR", Name: "Hexagone"},
		{Code: "LU", Name: "Luxembourg"},
		{Code: "AU", Name: "Australie"},
	}, w.Resolve())
}

func TestPEAOnly(t *testing.T) {
	w := &Watchlist{Regions: []string{"Europe"}, PEAOnly: true}
	for _, ref := range w.Resolve() {
		c, ok := Lookup(ref.Code)
		require.True(t, ok)
		assert.True(t, c.PEA, ref.Code)
	}
	assert.NotContains(t, w.Resolve(), analysis.CountryRef{Code: "CH", Name: "Suisse"})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"unknown region", "regions: [Atlantide]", "regions[0]"},
		{"bad code", "countries:\n  - code: FRA", "countries[0].code"},
		{"unknown country without name", "countries:\n  - code: LU", "countries[0].name"},
		{"bad exclude", "regions: [Europe]\nexclude: [R]", "exclude[0]"},
		{"empty", "pea_only: true", "regions"},
		{"bad stock symbol", "stocks:\n  - symbol: 'AAPL; DROP'", "stocks[0].symbol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestStocks(t *testing.T) {
	w, err := Parse([]byte("stocks:\n  - symbol: mc.pa\n    name: LVMH\n    country: France\n  - symbol: AAPL\n"))
	require.NoError(t, err)

	assert.Empty(t, w.Resolve())
	assert.Equal(t, []analysis.StockRef{
		{Symbol: "MC.PA", Name: "LVMH", Country: "France"},
		{Symbol: "AAPL"},
	}, w.StockRefs())
	assert.NotEqual(t, Default().Hash(), w.Hash())
}

func TestUnknownFieldRejected(t *testing.T) {
	_, err := Parse([]byte("regions: [Europe]\nregoins: [Asie]"))
	assert.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	w, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Len(t, w.Resolve(), len(Catalog))

	path := filepath.Join(t.TempDir(), "watchlist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("countries:\n  - code: JP\n"), 0o644))
	w, err = LoadOrDefault(path)
	require.NoError(t, err)
	assert.Equal(t, []analysis.CountryRef{{Code: "JP", Name: "Japon"}}, w.Resolve())
	assert.Len(t, w.Hash(), 16)
}

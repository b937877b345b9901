package pricing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	assert.Equal(t, "USD", c.Rates.Currency)
	assert.InDelta(t, 6.625, c.Rates.TaxPercent, 1e-9)
	assert.True(t, c.Rates.TaxEnabled)

	for _, key := range []string{"tile-box", "grout-cement", "thinset", "membrane-sheet", "self-leveler", "deck-mud", "foam-pan"} {
		p, ok := c.Lookup(key)
		assert.Truef(t, ok, "missing %s", key)
		assert.Greaterf(t, p.Price, 0.0, "price for %s", key)
	}
}

func TestLoadCatalog_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := []byte(`
rates:
  labor_hourly: 80
products:
  - key: thinset
    name: Thin-set
    unit: bag
    price: 30
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, 80.0, c.Rates.LaborHourly)
	assert.Equal(t, "USD", c.Rates.Currency)
	assert.Equal(t, []string{"thinset"}, c.Keys())
}

func TestParseCatalog_RejectsBadProducts(t *testing.T) {
	_, err := ParseCatalog([]byte("products:\n  - name: nameless\n    price: 1\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("products:\n  - key: x\n    price: -1\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("rates: [\n"))
	assert.Error(t, err)
}

func TestCatalog_PriceReportsMissing(t *testing.T) {
	c, err := ParseCatalog([]byte("products:\n  - key: thinset\n    price: 30\n"))
	require.NoError(t, err)

	priced, missing := c.Price([]LineItem{
		{Key: "thinset", Quantity: 2},
		{Key: "unobtainium", Quantity: 1},
	})

	assert.Equal(t, 30.0, priced[0].UnitPrice)
	assert.Equal(t, 0.0, priced[1].UnitPrice)
	assert.Equal(t, []string{"unobtainium"}, missing)
}

func TestCatalog_SetReplacesExisting(t *testing.T) {
	c, err := ParseCatalog([]byte("products:\n  - key: thinset\n    price: 30\n"))
	require.NoError(t, err)

	c.Set(Product{Key: "thinset", Price: 35})
	c.Set(Product{Key: "deck-mud", Price: 14})

	p, _ := c.Lookup("thinset")
	assert.Equal(t, 35.0, p.Price)
	assert.Len(t, c.Products, 2)
	assert.Equal(t, []string{"deck-mud", "thinset"}, c.Keys())
}

package pricing

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Product is a priced SKU keyed by material key.
type Product struct {
	Key   string  `yaml:"key" json:"key"`
	Name  string  `yaml:"name" json:"name"`
	Unit  string  `yaml:"unit" json:"unit"`
	Price float64 `yaml:"price" json:"price"`
}

// Catalog is the price list and default rates used for estimates.
type Catalog struct {
	Rates    Rates     `yaml:"rates" json:"rates"`
	Products []Product `yaml:"products" json:"products"`

	index map[string]Product
}

// ParseCatalog decodes a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	c.index = make(map[string]Product, len(c.Products))
	for _, p := range c.Products {
		if p.Key == "" {
			return nil, fmt.Errorf("decode catalog: product %q has no key", p.Name)
		}
		if p.Price < 0 {
			return nil, fmt.Errorf("decode catalog: product %q has negative price", p.Key)
		}
		c.index[p.Key] = p
	}
	if c.Rates.Currency == "" {
		c.Rates.Currency = "USD"
	}
	return &c, nil
}

// LoadCatalog reads a catalog file, or the built-in catalog when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// Lookup returns the product for a material key.
func (c *Catalog) Lookup(key string) (Product, bool) {
	p, ok := c.index[key]
	return p, ok
}

// Set adds or replaces a product.
func (c *Catalog) Set(p Product) {
	if c.index == nil {
		c.index = map[string]Product{}
	}
	if _, ok := c.index[p.Key]; !ok {
		c.Products = append(c.Products, p)
	} else {
		for i := range c.Products {
			if c.Products[i].Key == p.Key {
				c.Products[i] = p
			}
		}
	}
	c.index[p.Key] = p
}

// Keys lists product keys in sorted order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.index))
	for k := range c.index {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Price fills UnitPrice on each line from the catalog. Lines without a
// product keep a zero price and are returned in missing.
func (c *Catalog) Price(lines []LineItem) (priced []LineItem, missing []string) {
	priced = make([]LineItem, len(lines))
	for i, l := range lines {
		if p, ok := c.Lookup(l.Key); ok {
			l.UnitPrice = p.Price
		} else {
			missing = append(missing, l.Key)
		}
		priced[i] = l
	}
	return priced, missing
}

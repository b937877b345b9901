package calculator

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/tillerstead/tillerpro/internal/pricing"
	"github.com/tillerstead/tillerpro/internal/projectstate"
	"github.com/tillerstead/tillerpro/internal/units"
)

// BudgetEstimator prices the material list and labor whenever any domain
// publishes new results, and writes budget.* in one update.
type BudgetEstimator struct {
	store   Store
	catalog *pricing.Catalog
	log     *zap.Logger
	unsub   func()

	mu    sync.Mutex
	rates pricing.Rates
	last  pricing.Result
}

// NewBudgetEstimator subscribes an estimator to store changes.
func NewBudgetEstimator(store Store, catalog *pricing.Catalog, rates pricing.Rates, log *zap.Logger) *BudgetEstimator {
	if log == nil {
		log = zap.NewNop()
	}
	b := &BudgetEstimator{
		store:   store,
		catalog: catalog,
		rates:   rates,
		log:     log.Named("budget"),
	}
	b.unsub = store.On(projectstate.EventChange, func(c projectstate.Change) {
		if isCalculatedPath(c.Path) {
			b.Estimate()
		}
	})
	return b
}

// SetRates replaces the rates used by later estimates.
func (b *BudgetEstimator) SetRates(r pricing.Rates) {
	b.mu.Lock()
	b.rates = r
	b.mu.Unlock()
}

// Last returns the most recent estimate.
func (b *BudgetEstimator) Last() pricing.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// Estimate prices the current state and saves budget.materials, budget.labor
// and budget.total.
func (b *BudgetEstimator) Estimate() pricing.Result {
	b.mu.Lock()
	rates := b.rates
	b.mu.Unlock()

	lines, missing := b.catalog.Price(LineItems(Materials(b.store)))
	if len(missing) > 0 {
		b.log.Warn("materials missing from catalog", zap.Strings("keys", missing))
	}
	hours, _ := units.ToFloat(b.store.Get("labor.calculated.hours"))
	res := pricing.Calculate(lines, hours, rates)

	materials := make([]any, 0, len(lines))
	for _, l := range lines {
		materials = append(materials, map[string]any{
			"key":         l.Key,
			"description": l.Description,
			"quantity":    l.Quantity,
			"unit":        l.Unit,
			"unitPrice":   l.UnitPrice,
			"amount":      units.RoundTo(l.Amount(), 2),
		})
	}
	bd := res.Breakdown
	b.store.Update(map[string]any{
		"budget.materials": materials,
		"budget.labor": map[string]any{
			"hours": hours,
			"rate":  rates.LaborHourly,
			"cost":  units.RoundTo(bd.LaborCost, 2),
		},
		"budget.total": map[string]any{
			"materials":   units.RoundTo(bd.MaterialCost, 2),
			"labor":       units.RoundTo(bd.LaborCost, 2),
			"overhead":    units.RoundTo(bd.Overhead, 2),
			"contingency": units.RoundTo(bd.Contingency, 2),
			"delivery":    units.RoundTo(bd.DeliveryFee, 2),
			"margin":      units.RoundTo(bd.Margin, 2),
			"tax":         units.RoundTo(bd.Tax, 2),
			"estimate":    units.RoundTo(res.Totals.Total, 2),
			"currency":    rates.Currency,
		},
	})

	b.mu.Lock()
	b.last = res
	b.mu.Unlock()
	b.log.Debug("budget updated", zap.Float64("estimate", res.Totals.Total))
	return res
}

// Close unsubscribes the estimator.
func (b *BudgetEstimator) Close() {
	b.unsub()
}

// isCalculatedPath matches "<domain>.calculated" and paths beneath it, except
// the budget's own subtree.
func isCalculatedPath(path string) bool {
	segs := strings.Split(path, ".")
	return len(segs) >= 2 && segs[0] != "budget" && segs[1] == "calculated"
}

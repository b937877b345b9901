package pricing

// LineItem is one priced material line.
type LineItem struct {
	Key         string  `json:"key"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	UnitPrice   float64 `json:"unitPrice"`
}

// Amount is the extended price of the line.
func (l LineItem) Amount() float64 {
	return l.Quantity * l.UnitPrice
}

// Rates represents the contractor pricing parameters shared across estimates.
type Rates struct {
	LaborHourly        float64 `json:"laborHourly" yaml:"labor_hourly"`
	OverheadFixed      float64 `json:"overheadFixed" yaml:"overhead_fixed"`
	OverheadPercent    float64 `json:"overheadPercent" yaml:"overhead_percent"`
	ContingencyPercent float64 `json:"contingencyPercent" yaml:"contingency_percent"`
	MarginPercent      float64 `json:"marginPercent" yaml:"margin_percent"`
	TaxEnabled         bool    `json:"taxEnabled" yaml:"tax_enabled"`
	TaxPercent         float64 `json:"taxPercent" yaml:"tax_percent"`
	DeliveryFee        float64 `json:"deliveryFee" yaml:"delivery_fee"`
	Currency           string  `json:"currency" yaml:"currency"`
}

// Breakdown contains all intermediate values of the pricing calculation.
type Breakdown struct {
	MaterialCost float64 `json:"materialCost"`
	LaborCost    float64 `json:"laborCost"`
	Subtotal     float64 `json:"subtotal"`
	Overhead     float64 `json:"overhead"`
	Contingency  float64 `json:"contingency"`
	DeliveryFee  float64 `json:"deliveryFee"`
	Margin       float64 `json:"margin"`
	Tax          float64 `json:"tax"`
}

// Totals contains roll-up values from the pricing calculation.
type Totals struct {
	Total float64 `json:"total"`
}

// Result groups the full pricing output.
type Result struct {
	Lines     []LineItem `json:"lines"`
	Breakdown Breakdown  `json:"breakdown"`
	Totals    Totals     `json:"totals"`
}

// Calculate rolls material lines and labor hours up to a job total. Tax
// applies to materials only, as on a New Jersey capital improvement invoice.
func Calculate(lines []LineItem, laborHours float64, rates Rates) Result {
	materialCost := 0.0
	for _, l := range lines {
		materialCost += l.Amount()
	}
	laborCost := laborHours * rates.LaborHourly

	subtotal := materialCost + laborCost
	overhead := rates.OverheadFixed + subtotal*(rates.OverheadPercent/100.0)
	contingency := subtotal * (rates.ContingencyPercent / 100.0)
	margin := (rates.MarginPercent / 100.0) * (subtotal + overhead + contingency)

	tax := 0.0
	if rates.TaxEnabled {
		tax = (rates.TaxPercent / 100.0) * materialCost
	}

	total := subtotal + overhead + contingency + rates.DeliveryFee + margin + tax

	return Result{
		Lines: lines,
		Breakdown: Breakdown{
			MaterialCost: materialCost,
			LaborCost:    laborCost,
			Subtotal:     subtotal,
			Overhead:     overhead,
			Contingency:  contingency,
			DeliveryFee:  rates.DeliveryFee,
			Margin:       margin,
			Tax:          tax,
		},
		Totals: Totals{Total: total},
	}
}

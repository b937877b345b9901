package formulas

import (
	"math"
	"sort"

	"github.com/tillerstead/tillerpro/internal/units"
)

// Trowel notch keys, depth x width x spacing in inches.
const (
	Trowel1_4x1_4 = "1/4x1/4x1/4"
	Trowel1_4x3_8 = "1/4x3/8x1/4"
	Trowel1_4x1_2 = "1/4x1/2x1/4"
	Trowel3_8x1_2 = "3/8x1/2x3/8"
	Trowel1_2x1_2 = "1/2x1/2x1/2"
)

// DefaultTrowelCoverage is used for trowel keys missing from the table.
const DefaultTrowelCoverage = 60.0

// sq ft per 50 lb bag
var trowelCoverage = map[string]float64{
	Trowel1_4x1_4: 90,
	Trowel1_4x3_8: 75,
	Trowel1_4x1_2: 60,
	Trowel3_8x1_2: 50,
	Trowel1_2x1_2: 40,
}

// Substrate conditions.
const (
	SubstrateTypical         = "typical"
	SubstrateNeedsFlattening = "needs-flattening"
	SubstrateSmooth          = "smooth"
)

// Coverage multipliers.
const (
	backButterFactor = 0.75
	flatteningFactor = 0.75
	smoothFactor     = 1.10
)

// TrowelSizes lists the known trowel keys, largest coverage first.
func TrowelSizes() []string {
	keys := make([]string, 0, len(trowelCoverage))
	for k := range trowelCoverage {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return trowelCoverage[keys[i]] > trowelCoverage[keys[j]] })
	return keys
}

// TrowelCoverage returns the base coverage for a trowel and whether the key
// was known.
func TrowelCoverage(size string) (float64, bool) {
	c, ok := trowelCoverage[size]
	if !ok {
		return DefaultTrowelCoverage, false
	}
	return c, true
}

// TrowelRecommendation is the suggested trowel for a tile size.
type TrowelRecommendation struct {
	Size       string `json:"size"`
	BackButter bool   `json:"backButter"`
}

// RecommendTrowel picks a trowel from the tile's longest side in inches.
func RecommendTrowel(width, length float64) TrowelRecommendation {
	side := math.Max(width, length)
	switch {
	case side < 6:
		return TrowelRecommendation{Size: Trowel1_4x1_4}
	case side < 8:
		return TrowelRecommendation{Size: Trowel1_4x3_8}
	case side < 12:
		return TrowelRecommendation{Size: Trowel1_4x1_2}
	case side < 18:
		return TrowelRecommendation{Size: Trowel3_8x1_2, BackButter: true}
	default:
		return TrowelRecommendation{Size: Trowel1_2x1_2, BackButter: true}
	}
}

// MortarInput holds the thin-set calculator inputs.
type MortarInput struct {
	Area       float64 `json:"area"`
	TrowelSize string  `json:"trowelSize"`
	BackButter bool    `json:"backButter"`
	Substrate  string  `json:"substrate"`
}

// MortarResult is the thin-set calculator output.
type MortarResult struct {
	TrowelSize       string  `json:"trowelSize"`
	KnownTrowel      bool    `json:"knownTrowel"`
	BaseCoverage     float64 `json:"baseCoverage"`
	AdjustedCoverage float64 `json:"adjustedCoverage"`
	BagsNeeded       int     `json:"bagsNeeded"`
}

// Mortar estimates 50 lb thin-set bags from trowel coverage.
func Mortar(in MortarInput) (MortarResult, error) {
	if err := require("mortar", field{"area", in.Area}); err != nil {
		return MortarResult{}, err
	}
	if in.TrowelSize == "" {
		return MortarResult{}, &ValidationError{Tool: "mortar", Fields: []string{"trowelSize"}}
	}

	base, known := TrowelCoverage(in.TrowelSize)
	adjusted := base
	switch in.Substrate {
	case SubstrateNeedsFlattening:
		adjusted *= flatteningFactor
	case SubstrateSmooth:
		adjusted *= smoothFactor
	}
	if in.BackButter {
		adjusted *= backButterFactor
	}

	return MortarResult{
		TrowelSize:       in.TrowelSize,
		KnownTrowel:      known,
		BaseCoverage:     base,
		AdjustedCoverage: adjusted,
		BagsNeeded:       units.CeilCount(in.Area / adjusted),
	}, nil
}

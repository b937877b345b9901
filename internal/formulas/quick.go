package formulas

import (
	"fmt"
	"math"

	"github.com/tillerstead/tillerpro/internal/units"
)

// TrowelPreset is a quick-estimate trowel with a coverage range in sq ft per
// 50 lb bag.
type TrowelPreset struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// TrowelPresets are the trowels offered by the quick estimator.
var TrowelPresets = []TrowelPreset{
	{ID: "1/4-sq", Name: `1/4" Square`, Min: 70, Max: 95},
	{ID: "3/8-sq", Name: `3/8" Square`, Min: 50, Max: 70},
	{ID: "1/2-sq", Name: `1/2" Square`, Min: 35, Max: 50},
}

// MortarRangeInput holds the quick thin-set inputs.
type MortarRangeInput struct {
	Area       float64 `json:"area"`
	Trowel     string  `json:"trowel"`
	BackButter bool    `json:"backButter"`
}

// MortarRangeResult brackets the bag count between best and worst coverage.
type MortarRangeResult struct {
	Trowel  TrowelPreset `json:"trowel"`
	BagsMin int          `json:"bagsMin"`
	BagsMax int          `json:"bagsMax"`
}

// MortarRange estimates a min/max bag range. Back-buttering raises the range
// by 20% and 30%.
func MortarRange(in MortarRangeInput) (MortarRangeResult, error) {
	if err := require("mortar-range", field{"area", in.Area}); err != nil {
		return MortarRangeResult{}, err
	}
	var preset *TrowelPreset
	for i := range TrowelPresets {
		if TrowelPresets[i].ID == in.Trowel {
			preset = &TrowelPresets[i]
			break
		}
	}
	if preset == nil {
		return MortarRangeResult{}, fmt.Errorf("mortar range: unknown trowel %q", in.Trowel)
	}

	bagsMin := units.CeilCount(in.Area / preset.Max)
	bagsMax := units.CeilCount(in.Area / preset.Min)
	if in.BackButter {
		bagsMin = units.CeilCount(float64(bagsMin) * 1.2)
		bagsMax = units.CeilCount(float64(bagsMax) * 1.3)
	}
	return MortarRangeResult{Trowel: *preset, BagsMin: bagsMin, BagsMax: bagsMax}, nil
}

// GroutTCNAInput holds the quick grout inputs. Tile and joint dimensions are
// in inches.
type GroutTCNAInput struct {
	Area       float64 `json:"area"`
	Length     float64 `json:"length"`
	Width      float64 `json:"width"`
	JointWidth float64 `json:"jointWidth"`
	JointDepth float64 `json:"jointDepth"`
}

// GroutTCNAResult is the quick grout output.
type GroutTCNAResult struct {
	CoverageSqFtPerLb float64 `json:"coverageSqFtPerLb"`
	Pounds            int     `json:"pounds"`
	Bags25Lb          int     `json:"bags25lb"`
}

// GroutTCNA applies the industry coverage formula
// (L*W) / ((L+W) * depth * joint * 1.86) with 10% waste.
func GroutTCNA(in GroutTCNAInput) (GroutTCNAResult, error) {
	if err := require("grout-tcna",
		field{"area", in.Area},
		field{"length", in.Length},
		field{"width", in.Width},
		field{"jointWidth", in.JointWidth},
		field{"jointDepth", in.JointDepth},
	); err != nil {
		return GroutTCNAResult{}, err
	}

	coverage := (in.Length * in.Width) / ((in.Length + in.Width) * in.JointDepth * in.JointWidth * 1.86)
	lbs := in.Area / coverage * 1.1
	return GroutTCNAResult{
		CoverageSqFtPerLb: coverage,
		Pounds:            units.CeilCount(lbs),
		Bags25Lb:          units.CeilCount(lbs / 25),
	}, nil
}

const deckMudLbPerCuFt = 80

// SlopeEstimateInput holds the quick slope inputs.
type SlopeEstimateInput struct {
	Distance float64 `json:"distance"`
	Ratio    float64 `json:"ratio"`
}

// SlopeEstimateResult is the quick slope output for a round pan of radius d.
type SlopeEstimateResult struct {
	RiseInches float64 `json:"riseInches"`
	AreaSqFt   float64 `json:"areaSqFt"`
	VolumeCuFt float64 `json:"volumeCuFt"`
	DeckMudLb  float64 `json:"deckMudLb"`
	Bags60Lb   int     `json:"bags60lb"`
}

// SlopeEstimate models the mortar bed as a cone around the drain.
func SlopeEstimate(in SlopeEstimateInput) (SlopeEstimateResult, error) {
	if err := require("slope-estimate", field{"distance", in.Distance}); err != nil {
		return SlopeEstimateResult{}, err
	}
	ratio := in.Ratio
	if ratio <= 0 {
		ratio = MinSlopePerFoot
	}

	rise := in.Distance * ratio
	area := math.Pi * in.Distance * in.Distance
	volume := area * units.InToFt(rise) / 3
	lbs := volume * deckMudLbPerCuFt
	return SlopeEstimateResult{
		RiseInches: rise,
		AreaSqFt:   area,
		VolumeCuFt: volume,
		DeckMudLb:  lbs,
		Bags60Lb:   units.CeilCount(lbs / 60),
	}, nil
}

package formulas

import (
	"fmt"
	"math"

	"github.com/tillerstead/tillerpro/internal/units"
)

// Slope methods.
const (
	MethodMudBed  = "mud-bed"
	MethodFoamPan = "foam-pan"
	MethodBonded  = "bonded"
)

// Drain types.
const (
	DrainCenter = "center"
	DrainLinear = "linear"
	DrainOffset = "offset"
)

const (
	// MinSlopePerFoot is the plumbing code minimum slope, in inches per foot.
	MinSlopePerFoot = 0.25
	// RecommendedSlopePerFoot is the slope installers aim for.
	RecommendedSlopePerFoot = 0.3125

	deckMudBagCuFt  = 2.0
	deckMudBagLb    = 80
	thinsetBagLb    = 50
	bondedExtraBags = 1.2
)

// SlopeInput holds the shower slope calculator inputs. Distance is drain to
// farthest wall in feet.
type SlopeInput struct {
	Distance  float64 `json:"distance"`
	DrainType string  `json:"drainType"`
	Method    string  `json:"method"`
}

// SlopeResult is the shower slope calculator output.
type SlopeResult struct {
	Method      string  `json:"method"`
	DrainType   string  `json:"drainType"`
	SlopeInches float64 `json:"slopeInches"`
	AreaSqFt    float64 `json:"areaSqFt,omitempty"`
	VolumeCuFt  float64 `json:"volumeCuFt,omitempty"`
	BagsNeeded  int     `json:"bagsNeeded,omitempty"`
	BagWeightLb int     `json:"bagWeightLb,omitempty"`
	PanSize     string  `json:"panSize,omitempty"`
	Note        string  `json:"note"`
}

// Slope sizes the pre-slope for a shower floor. Unknown methods are treated as
// bonded.
func Slope(in SlopeInput) (SlopeResult, error) {
	if err := require("slope", field{"distance", in.Distance}); err != nil {
		return SlopeResult{}, err
	}

	drain := in.DrainType
	if drain == "" {
		drain = DrainCenter
	}
	method := in.Method
	if method == "" {
		method = MethodMudBed
	}

	slope := in.Distance * MinSlopePerFoot
	res := SlopeResult{Method: method, DrainType: drain, SlopeInches: slope}

	if method == MethodFoamPan {
		res.PanSize = FoamPanSize(in.Distance)
		res.Note = fmt.Sprintf("Pre-sloped foam pan (%s). No slope materials needed.", res.PanSize)
		return res, nil
	}

	// Square pan of side 2d with a triangular cross-section.
	side := in.Distance * 2
	res.AreaSqFt = side * side
	res.VolumeCuFt = res.AreaSqFt * units.InToFt(slope/2)

	if method == MethodMudBed {
		res.BagsNeeded = units.CeilCount(res.VolumeCuFt / deckMudBagCuFt)
		res.BagWeightLb = deckMudBagLb
		res.Note = fmt.Sprintf(`Deck mud (%d x 80lb bags). 1/4" per ft slope = %.2f" drop.`, res.BagsNeeded, slope)
		return res, nil
	}

	res.Method = MethodBonded
	res.BagsNeeded = units.CeilCount(res.VolumeCuFt * bondedExtraBags)
	res.BagWeightLb = thinsetBagLb
	res.Note = fmt.Sprintf("Modified thin-set (%d x 50lb bags). Bonded to membrane.", res.BagsNeeded)
	return res, nil
}

// FoamPanSize picks the smallest stock foam pan for a drain distance in feet.
func FoamPanSize(distance float64) string {
	span := distance * 2
	switch {
	case span <= 4:
		return "36x48"
	case span <= 5:
		return "48x60"
	default:
		return "60x72"
	}
}

// DrainDistanceFromFloorArea estimates the drain-to-wall distance of a roughly
// square shower floor: half its side, rounded to 0.5 ft and at least 2 ft.
func DrainDistanceFromFloorArea(floorArea float64) float64 {
	if !(floorArea > 0) {
		return 0
	}
	return math.Max(2, units.RoundToHalf(math.Sqrt(floorArea)/2))
}

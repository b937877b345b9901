package formulas

import (
	"fmt"
	"math"

	"github.com/tillerstead/tillerpro/internal/units"
)

// DeckMudInput sizes a sloped mortar bed.
type DeckMudInput struct {
	Area         float64 `json:"area"`
	RunFeet      float64 `json:"runFeet"`
	MinThickness float64 `json:"minThickness"`
	SlopePerFoot float64 `json:"slopePerFoot"`
	BagYieldCuFt float64 `json:"bagYieldCuFt"`
}

// DeckMudResult is the deck mud output.
type DeckMudResult struct {
	MaxThickness float64 `json:"maxThickness"`
	VolumeCuFt   float64 `json:"volumeCuFt"`
	Bags         int     `json:"bags"`
}

// DeckMud estimates bags for a bed that starts at MinThickness (default 1.25")
// at the drain and rises by SlopePerFoot over RunFeet.
func DeckMud(in DeckMudInput) (DeckMudResult, error) {
	if err := require("deck-mud", field{"area", in.Area}, field{"runFeet", in.RunFeet}); err != nil {
		return DeckMudResult{}, err
	}
	minT := orDefault(in.MinThickness, 1.25)
	slope := orDefault(in.SlopePerFoot, MinSlopePerFoot)
	yield := orDefault(in.BagYieldCuFt, 0.5)

	maxT := minT + slope*in.RunFeet
	volume := in.Area * units.InToFt((minT+maxT)/2)
	return DeckMudResult{
		MaxThickness: maxT,
		VolumeCuFt:   volume,
		Bags:         units.CeilCount(volume / yield),
	}, nil
}

var primerCoverage = map[string]float64{
	"porous":    200,
	"nonporous": 300,
}

// PrimerInput sizes self-leveler primer.
type PrimerInput struct {
	Area        float64 `json:"area"`
	Porosity    string  `json:"porosity"`
	DoublePrime bool    `json:"doublePrime"`
}

// PrimerResult is the primer output.
type PrimerResult struct {
	CoverageSqFtPerGal float64 `json:"coverageSqFtPerGal"`
	Gallons            int     `json:"gallons"`
}

// Primer estimates primer gallons.
func Primer(in PrimerInput) (PrimerResult, error) {
	if err := require("primer", field{"area", in.Area}); err != nil {
		return PrimerResult{}, err
	}
	porosity := in.Porosity
	if porosity == "" {
		porosity = "porous"
	}
	coverage, ok := primerCoverage[porosity]
	if !ok {
		return PrimerResult{}, fmt.Errorf("primer: unknown porosity %q", porosity)
	}
	coats := 1.0
	if in.DoublePrime {
		coats = 2
	}
	return PrimerResult{
		CoverageSqFtPerGal: coverage,
		Gallons:            units.CeilCount(in.Area * coats / coverage),
	}, nil
}

// SealantInput sizes caulk for movement joints and changes of plane.
type SealantInput struct {
	LinearFeet   float64 `json:"linearFeet"`
	BeadDiameter float64 `json:"beadDiameter"`
	TubeOz       float64 `json:"tubeOz"`
}

// SealantResult is the sealant output.
type SealantResult struct {
	VolumeCuIn     float64 `json:"volumeCuIn"`
	TubeVolumeCuIn float64 `json:"tubeVolumeCuIn"`
	Tubes          int     `json:"tubes"`
}

// SealantTubes estimates tubes for a round bead, 1/4" and 10.1 oz by default.
func SealantTubes(in SealantInput) (SealantResult, error) {
	if err := require("sealant", field{"linearFeet", in.LinearFeet}); err != nil {
		return SealantResult{}, err
	}
	bead := orDefault(in.BeadDiameter, 0.25)
	tubeOz := orDefault(in.TubeOz, 10.1)

	r := bead / 2
	volume := math.Pi * r * r * in.LinearFeet * units.InchesPerFoot
	tube := tubeOz * units.CuInPerFlOz
	return SealantResult{
		VolumeCuIn:     volume,
		TubeVolumeCuIn: tube,
		Tubes:          units.CeilCount(volume / tube),
	}, nil
}

// conservative (minimum) coverage in sq ft per gallon
var sealerCoverage = map[string]float64{
	"polished":       800,
	"semi_porcelain": 400,
	"natural_stone":  200,
	"concrete":       150,
}

// SealerInput sizes penetrating sealer.
type SealerInput struct {
	Area    float64 `json:"area"`
	Surface string  `json:"surface"`
	Coats   float64 `json:"coats"`
}

// SealerResult is the sealer output.
type SealerResult struct {
	CoverageSqFtPerGal float64 `json:"coverageSqFtPerGal"`
	Gallons            int     `json:"gallons"`
}

// Sealer estimates sealer gallons, natural stone and two coats by default.
func Sealer(in SealerInput) (SealerResult, error) {
	if err := require("sealer", field{"area", in.Area}); err != nil {
		return SealerResult{}, err
	}
	surface := in.Surface
	if surface == "" {
		surface = "natural_stone"
	}
	coverage, ok := sealerCoverage[surface]
	if !ok {
		return SealerResult{}, fmt.Errorf("sealer: unknown surface %q", surface)
	}
	coats := orDefault(in.Coats, 2)
	return SealerResult{
		CoverageSqFtPerGal: coverage,
		Gallons:            units.CeilCount(in.Area * coats / coverage),
	}, nil
}

var (
	complexityMultipliers = map[string]float64{"standard": 1, "medium": 1.15, "high": 1.3}
	patternMultipliers    = map[string]float64{"straight": 1, "diagonal": 1.15, "diagonal-45": 1.15, "herringbone": 1.3}
	surfaceMultipliers    = map[string]float64{"floor": 1, "wall": 1.2, "ceiling": 1.4}
)

// BaseProductivity is the installed sq ft per hour for a straight-lay floor.
const BaseProductivity = 25.0

// LaborInput holds the labor estimator inputs.
type LaborInput struct {
	Area         float64 `json:"area"`
	Productivity float64 `json:"productivity"`
	Complexity   string  `json:"complexity"`
	Pattern      string  `json:"pattern"`
	Surface      string  `json:"surface"`
	CrewSize     float64 `json:"crewSize"`
}

// LaborResult is the labor estimator output.
type LaborResult struct {
	Multiplier            float64 `json:"multiplier"`
	EffectiveProductivity float64 `json:"effectiveProductivity"`
	Hours                 float64 `json:"hours"`
	CrewDays              float64 `json:"crewDays"`
	Days                  int     `json:"days"`
}

// Labor estimates install hours and 8-hour crew days. Unknown multiplier keys
// fall back to 1.
func Labor(in LaborInput) (LaborResult, error) {
	if err := require("labor", field{"area", in.Area}); err != nil {
		return LaborResult{}, err
	}
	base := orDefault(in.Productivity, BaseProductivity)
	crew := orDefault(in.CrewSize, 1)

	mult := lookupOr(complexityMultipliers, in.Complexity) *
		lookupOr(patternMultipliers, in.Pattern) *
		lookupOr(surfaceMultipliers, in.Surface)

	effective := base / mult
	hours := in.Area / effective
	crewDays := hours / (crew * 8)
	return LaborResult{
		Multiplier:            mult,
		EffectiveProductivity: effective,
		Hours:                 hours,
		CrewDays:              crewDays,
		Days:                  units.CeilCount(crewDays),
	}, nil
}

func lookupOr(m map[string]float64, key string) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return 1
}

func orDefault(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

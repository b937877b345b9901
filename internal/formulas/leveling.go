package formulas

import (
	"github.com/tillerstead/tillerpro/internal/units"
)

// MaxSinglePourDepth is the deepest pour, in inches, a standard self-leveler
// handles in one lift.
const MaxSinglePourDepth = 1.5

// DeepPourWarning is attached to leveling results over MaxSinglePourDepth.
const DeepPourWarning = `Depths over 1.5" may require multiple pours or extended-depth formula.`

const levelerBagYieldCuFt = 0.5

// LevelingInput holds the self-leveling calculator inputs. Depths are in inches.
type LevelingInput struct {
	Area      float64 `json:"area"`
	PourDepth float64 `json:"pourDepth"`
	MaxDepth  float64 `json:"maxDepth"`
}

// LevelingResult is the self-leveling calculator output.
type LevelingResult struct {
	VolumeCuFt float64 `json:"volumeCuFt"`
	BagsNeeded int     `json:"bagsNeeded"`
	MaxDepth   float64 `json:"maxDepth"`
	Warning    string  `json:"warning,omitempty"`
}

// Leveling estimates self-leveling compound bags with 10% waste.
func Leveling(in LevelingInput) (LevelingResult, error) {
	if err := require("leveling",
		field{"area", in.Area},
		field{"pourDepth", in.PourDepth},
	); err != nil {
		return LevelingResult{}, err
	}

	maxDepth := in.MaxDepth
	if maxDepth <= 0 {
		maxDepth = in.PourDepth
	}

	volume := in.Area * units.InToFt(in.PourDepth)
	bags := units.CeilCount(volume / levelerBagYieldCuFt)

	res := LevelingResult{
		VolumeCuFt: volume,
		BagsNeeded: units.CeilCount(float64(bags) * 1.1),
		MaxDepth:   maxDepth,
	}
	if maxDepth > MaxSinglePourDepth {
		res.Warning = DeepPourWarning
	}
	return res, nil
}

package formulas

import (
	"strings"

	"github.com/tillerstead/tillerpro/internal/units"
)

// Waterproofing systems with dedicated sizing.
const (
	SystemSchluterKerdi    = "schluter-kerdi"
	SystemLaticrete        = "laticrete"
	SystemGoBoard          = "go-board"
	SystemRedgard          = "custom-redgard"
	SystemMapeiAquaDefense = "mapei-aquadefense"
)

// Waterproofing result kinds.
const (
	KindLiquid   = "liquid"
	KindBoard    = "board"
	KindMembrane = "membrane"
)

const (
	boardPanelSqFt     = 10.67 // 32x48 in
	membraneWasteRatio = 1.15
)

// WaterproofingInput holds the waterproofing calculator inputs.
type WaterproofingInput struct {
	System    string  `json:"system"`
	Location  string  `json:"location"`
	FloorArea float64 `json:"floorArea"`
	WallArea  float64 `json:"wallArea"`
	Corners   int     `json:"corners"`
	Niches    int     `json:"niches"`
}

// WaterproofingResult is the waterproofing calculator output. Only the count
// matching Kind is set.
type WaterproofingResult struct {
	System            string  `json:"system"`
	Location          string  `json:"location"`
	Kind              string  `json:"kind"`
	TotalArea         float64 `json:"totalArea"`
	CoveragePerGallon float64 `json:"coveragePerGallon,omitempty"`
	Gallons           int     `json:"gallons,omitempty"`
	Boards            int     `json:"boards,omitempty"`
	AreaWithWaste     float64 `json:"areaWithWaste,omitempty"`
	RollSqFt          float64 `json:"rollSqFt,omitempty"`
	Rolls             int     `json:"rolls,omitempty"`
	Corners           int     `json:"corners"`
	Niches            int     `json:"niches"`
	Unit              string  `json:"unit"`
	Note              string  `json:"note"`
}

// IsLiquidSystem reports whether a system is a roll-on membrane.
func IsLiquidSystem(system string) bool {
	return strings.Contains(system, "liquid") || system == SystemRedgard || system == SystemMapeiAquaDefense
}

// Waterproofing sizes a liquid, board, or sheet membrane system.
func Waterproofing(in WaterproofingInput) (WaterproofingResult, error) {
	floor, wall := max(in.FloorArea, 0), max(in.WallArea, 0)
	total := floor + wall
	if total == 0 {
		return WaterproofingResult{}, &ValidationError{Tool: "waterproofing", Fields: []string{"floorArea", "wallArea"}}
	}

	system := in.System
	if system == "" {
		system = SystemSchluterKerdi
	}
	location := in.Location
	if location == "" {
		location = "shower"
	}

	res := WaterproofingResult{
		System:    system,
		Location:  location,
		TotalArea: total,
		Corners:   max(in.Corners, 0),
		Niches:    max(in.Niches, 0),
	}

	switch {
	case IsLiquidSystem(system):
		res.Kind = KindLiquid
		res.CoveragePerGallon = 60
		if system == SystemMapeiAquaDefense {
			res.CoveragePerGallon = 70
		}
		res.Gallons = units.CeilCount(total / res.CoveragePerGallon)
		res.Unit = "gallons"
		res.Note = "Apply 2 coats. Fabric corners/joints sold separately."

	case system == SystemGoBoard:
		res.Kind = KindBoard
		res.Boards = units.CeilCount(total / boardPanelSqFt)
		res.Unit = "panels"
		res.Note = "32x48 in panels. Adhesive/tape sold separately."

	default:
		res.Kind = KindMembrane
		res.AreaWithWaste = total * membraneWasteRatio
		switch system {
		case SystemSchluterKerdi:
			res.RollSqFt = 323
		case SystemLaticrete:
			res.RollSqFt = 150
		default:
			res.RollSqFt = 200
		}
		res.Rolls = units.CeilCount(res.AreaWithWaste / res.RollSqFt)
		res.Unit = "rolls"
		res.Note = "Includes 15% overlap waste. Inside corners and niches listed separately."
	}

	return res, nil
}

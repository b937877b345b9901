package formulas

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tillerstead/tillerpro/internal/units"
)

// DefaultWastePercent applies when no waste and no known pattern is given.
const DefaultWastePercent = 10.0

// BoxMode selects how boxes are counted.
type BoxMode string

const (
	BoxByTiles BoxMode = "tiles"
	BoxBySqFt  BoxMode = "sqft"
	// BoxBySqFtPerBox is the spelling web forms send for BoxBySqFt.
	BoxBySqFtPerBox BoxMode = "sqft-per-box"
)

var patternWaste = map[string]float64{
	"straight":    10,
	"diagonal":    18,
	"diagonal-45": 18,
	"herringbone": 25,
}

// PatternWaste returns the waste percent customary for a layout pattern.
func PatternWaste(pattern string) float64 {
	if w, ok := patternWaste[strings.ToLower(strings.TrimSpace(pattern))]; ok {
		return w
	}
	return DefaultWastePercent
}

// TileInput holds the tile calculator inputs. Dimensions are in inches and
// area in square feet.
type TileInput struct {
	Area         float64 `json:"area"`
	Width        float64 `json:"width"`
	Length       float64 `json:"length"`
	WastePercent float64 `json:"wastePercent"`
	Pattern      string  `json:"pattern"`
	BoxMode      BoxMode `json:"boxMode"`
	TilesPerBox  float64 `json:"tilesPerBox"`
	SqFtPerBox   float64 `json:"sqftPerBox"`
	AtticStock   bool    `json:"atticStock"`
	Mosaic       bool    `json:"mosaic"`
}

// TileResult is the tile calculator output.
type TileResult struct {
	TileAreaSqFt  float64 `json:"tileAreaSqFt"`
	WastePercent  float64 `json:"wastePercent"`
	AreaWithWaste float64 `json:"areaWithWaste"`
	TilesNeeded   int     `json:"tilesNeeded"`
	BoxesNeeded   int     `json:"boxesNeeded"`
	AtticBoxes    int     `json:"atticBoxes"`
	Sheets        int     `json:"sheets,omitempty"`
}

// Tile computes tile and box counts.
func Tile(in TileInput) (TileResult, error) {
	if err := require("tile",
		field{"area", in.Area},
		field{"width", in.Width},
		field{"length", in.Length},
	); err != nil {
		return TileResult{}, err
	}

	waste := in.WastePercent
	if waste <= 0 {
		waste = PatternWaste(in.Pattern)
	}

	tileSqFt := units.SqInToSqFt(in.Width * in.Length)
	areaWithWaste := in.Area * (1 + waste/100)

	res := TileResult{
		TileAreaSqFt:  tileSqFt,
		WastePercent:  waste,
		AreaWithWaste: areaWithWaste,
		TilesNeeded:   units.CeilCount(areaWithWaste / tileSqFt),
	}
	if in.Mosaic {
		res.Sheets = units.CeilCount(areaWithWaste)
	}

	switch in.BoxMode {
	case BoxBySqFt, BoxBySqFtPerBox:
		if in.SqFtPerBox > 0 {
			res.BoxesNeeded = units.CeilCount(areaWithWaste / in.SqFtPerBox)
		}
	default:
		if in.TilesPerBox > 0 {
			res.BoxesNeeded = units.CeilCount(float64(res.TilesNeeded) / in.TilesPerBox)
		}
	}

	if in.AtticStock && res.BoxesNeeded > 0 {
		res.AtticBoxes = max(1, units.CeilCount(float64(res.BoxesNeeded)*0.05))
		res.BoxesNeeded += res.AtticBoxes
	}

	return res, nil
}

// TilePresets maps common nominal sizes to width x length in inches.
var TilePresets = map[string][2]float64{
	"3x6":   {3, 6},
	"4x4":   {4, 4},
	"4x12":  {4, 12},
	"6x6":   {6, 6},
	"6x24":  {6, 24},
	"8x48":  {8, 48},
	"12x12": {12, 12},
	"12x24": {12, 24},
	"18x18": {18, 18},
	"24x24": {24, 24},
	"24x48": {24, 48},
	"32x32": {32, 32},
}

// ParseTileSize parses "WxL" keys such as "12x24". Mosaic keys ("1x1-mosaic")
// resolve to their 12x12 mounting sheet.
func ParseTileSize(key string) (width, length float64, err error) {
	k := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), " ", ""))
	if strings.HasSuffix(k, "-mosaic") {
		return 12, 12, nil
	}
	if p, ok := TilePresets[k]; ok {
		return p[0], p[1], nil
	}
	ws, ls, ok := strings.Cut(k, "x")
	if !ok {
		return 0, 0, fmt.Errorf("parse tile size %q: expected WxL", key)
	}
	width, err = strconv.ParseFloat(ws, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse tile width %q: %w", ws, err)
	}
	length, err = strconv.ParseFloat(ls, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse tile length %q: %w", ls, err)
	}
	if width <= 0 || length <= 0 || math.IsInf(width, 0) || math.IsInf(length, 0) {
		return 0, 0, fmt.Errorf("parse tile size %q: dimensions must be positive", key)
	}
	return width, length, nil
}

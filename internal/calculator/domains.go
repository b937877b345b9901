package calculator

import (
	"github.com/tillerstead/tillerpro/internal/formulas"
	"github.com/tillerstead/tillerpro/internal/projectstate"
	"github.com/tillerstead/tillerpro/internal/units"
)

// Domain names.
const (
	DomainTile          = "tile"
	DomainGrout         = "grout"
	DomainMortar        = "mortar"
	DomainLeveling      = "leveling"
	DomainSlope         = "slope"
	DomainWaterproofing = "waterproofing"
	DomainLabor         = "labor"
)

const (
	pathRooms         = "project.rooms"
	pathTileAreaWaste = "tile.calculated.areaWithWaste"
	pathTileWidth     = "tile.size.width"
	pathTileLength    = "tile.size.length"
)

// DefaultSpecs returns every calculator in derivation order.
func DefaultSpecs() []Spec {
	return []Spec{
		TileSpec(),
		GroutSpec(),
		MortarSpec(),
		LevelingSpec(),
		WaterproofingSpec(),
		SlopeSpec(),
		LaborSpec(),
	}
}

func positive(r Reader, path string) (float64, bool) {
	v, ok := units.ToFloat(r.Get(path))
	return v, ok && v > 0
}

func fromPath(path string) func(Reader) (any, bool) {
	return func(r Reader) (any, bool) {
		v := r.Get(path)
		return v, !projectstate.IsEmpty(v)
	}
}

func roomArea(r Reader) (any, bool) {
	total := projectstate.SumRoomArea(r.Get(pathRooms))
	return total, total > 0
}

// tileAreaOrRooms prefers the tile calculator's area with waste and falls
// back to the room total.
func tileAreaOrRooms(r Reader) (any, bool) {
	if v, ok := positive(r, pathTileAreaWaste); ok {
		return v, true
	}
	return roomArea(r)
}

func tileArea(r Reader) (any, bool) {
	return positive(r, pathTileAreaWaste)
}

// TileSpec is the tile and box count calculator.
func TileSpec() Spec {
	return Spec{
		Domain: DomainTile,
		Title:  "Tile",
		Fields: []Field{
			{Name: "area", Kind: KindNumber, Required: true},
			{Name: "width", Path: "size.width", Kind: KindNumber, Required: true},
			{Name: "length", Path: "size.length", Kind: KindNumber, Required: true},
			{Name: "wastePercent", Path: "wastePercent", Kind: KindNumber},
			{Name: "pattern", Path: "pattern", Kind: KindText},
			{Name: "boxMode", Path: "boxMode", Kind: KindText, Default: string(formulas.BoxByTiles)},
			{Name: "tilesPerBox", Path: "tilesPerBox", Kind: KindNumber},
			{Name: "sqftPerBox", Path: "sqftPerBox", Kind: KindNumber},
			{Name: "atticStock", Path: "atticStock", Kind: KindBool},
			{Name: "mosaic", Path: "mosaic", Kind: KindBool},
		},
		Derivations: []Derivation{
			{Field: "area", Watch: []string{pathRooms}, Derive: roomArea},
		},
		Compute: func(f Form) (Outcome, error) {
			res, err := formulas.Tile(formulas.TileInput{
				Area:         f.Float("area"),
				Width:        f.Float("width"),
				Length:       f.Float("length"),
				WastePercent: f.Float("wastePercent"),
				Pattern:      f.String("pattern"),
				BoxMode:      formulas.BoxMode(f.String("boxMode")),
				TilesPerBox:  f.Float("tilesPerBox"),
				SqFtPerBox:   f.Float("sqftPerBox"),
				AtticStock:   f.Bool("atticStock"),
				Mosaic:       f.Bool("mosaic"),
			})
			if err != nil {
				return Outcome{}, err
			}
			calc := map[string]any{
				"tileCount":     res.TilesNeeded,
				"boxesNeeded":   res.BoxesNeeded,
				"areaWithWaste": res.AreaWithWaste,
				"tileAreaSqFt":  res.TileAreaSqFt,
				"wastePercent":  res.WastePercent,
			}
			if res.AtticBoxes > 0 {
				calc["atticBoxes"] = res.AtticBoxes
			}
			if res.Sheets > 0 {
				calc["sheets"] = res.Sheets
			}
			return Outcome{
				Calculated: calc,
				Seed: map[string]any{
					pathRooms: []any{map[string]any{
						"id":   "room-1",
						"name": "Main Area",
						"area": f.Float("area"),
						"type": "custom",
					}},
				},
			}, nil
		},
	}
}

// GroutSpec is the volumetric grout calculator.
func GroutSpec() Spec {
	return Spec{
		Domain: DomainGrout,
		Title:  "Grout",
		Fields: []Field{
			{Name: "area", Path: "area", Kind: KindNumber, Required: true},
			{Name: "width", Kind: KindNumber, Required: true},
			{Name: "length", Kind: KindNumber, Required: true},
			{Name: "thicknessMm", Kind: KindNumber, Default: formulas.DefaultTileThicknessMM},
			{Name: "jointWidth", Path: "jointWidth", Kind: KindNumber, Required: true},
			{Name: "type", Path: "type", Kind: KindText, Default: string(formulas.GroutCement)},
			{Name: "mosaic", Kind: KindBool},
		},
		Derivations: []Derivation{
			{Field: "area", Watch: []string{pathTileAreaWaste, pathRooms}, Derive: tileAreaOrRooms},
			{Field: "width", Watch: []string{pathTileWidth}, Derive: fromPath(pathTileWidth)},
			{Field: "length", Watch: []string{pathTileLength}, Derive: fromPath(pathTileLength)},
		},
		Compute: func(f Form) (Outcome, error) {
			res, err := formulas.Grout(formulas.GroutInput{
				Area:        f.Float("area"),
				Width:       f.Float("width"),
				Length:      f.Float("length"),
				ThicknessMM: f.Float("thicknessMm"),
				JointWidth:  f.Float("jointWidth"),
				Type:        formulas.GroutType(f.String("type")),
				Mosaic:      f.Bool("mosaic"),
			})
			if err != nil {
				return Outcome{}, err
			}
			return Outcome{Calculated: map[string]any{
				"pounds":     units.RoundTo(res.Pounds, 1),
				"bagsNeeded": res.BagsNeeded,
				"bagSizeLb":  res.BagSizeLb,
				"type":       string(res.Type),
				"isMosaic":   res.IsMosaic,
			}}, nil
		},
	}
}

// MortarSpec is the thin-set coverage calculator.
func MortarSpec() Spec {
	return Spec{
		Domain: DomainMortar,
		Title:  "Mortar",
		Fields: []Field{
			{Name: "area", Kind: KindNumber, Required: true},
			{Name: "tileWidth", Kind: KindNumber},
			{Name: "tileLength", Kind: KindNumber},
			{Name: "trowelSize", Path: "trowelSize", Kind: KindText},
			{Name: "backButter", Path: "backButter", Kind: KindBool},
			{Name: "substrate", Path: "substrate", Kind: KindText, Default: formulas.SubstrateTypical},
		},
		Derivations: []Derivation{
			{Field: "area", Watch: []string{pathTileAreaWaste}, Derive: tileArea},
			{Field: "tileWidth", Watch: []string{pathTileWidth}, Derive: fromPath(pathTileWidth)},
			{Field: "tileLength", Watch: []string{pathTileLength}, Derive: fromPath(pathTileLength)},
			{
				Field: "trowelSize",
				Watch: []string{pathTileWidth, pathTileLength},
				Derive: func(r Reader) (any, bool) {
					w, okW := positive(r, pathTileWidth)
					l, okL := positive(r, pathTileLength)
					if !okW || !okL {
						return nil, false
					}
					return formulas.RecommendTrowel(w, l).Size, true
				},
			},
		},
		Compute: func(f Form) (Outcome, error) {
			trowel := f.String("trowelSize")
			w, l := f.Float("tileWidth"), f.Float("tileLength")
			var rec formulas.TrowelRecommendation
			if w > 0 && l > 0 {
				rec = formulas.RecommendTrowel(w, l)
				if trowel == "" {
					trowel = rec.Size
				}
			}
			res, err := formulas.Mortar(formulas.MortarInput{
				Area:       f.Float("area"),
				TrowelSize: trowel,
				BackButter: f.Bool("backButter"),
				Substrate:  f.String("substrate"),
			})
			if err != nil {
				return Outcome{}, err
			}
			out := Outcome{Calculated: map[string]any{
				"bagsNeeded":       res.BagsNeeded,
				"trowelSize":       res.TrowelSize,
				"adjustedCoverage": units.RoundTo(res.AdjustedCoverage, 2),
			}}
			if rec.BackButter && !f.Bool("backButter") {
				out.Notes = append(out.Notes, "Back-butter tiles this size for full mortar coverage.")
			}
			if !res.KnownTrowel {
				out.Warnings = append(out.Warnings, "Unknown trowel size; assumed 60 sq ft per bag.")
			}
			return out, nil
		},
	}
}

// LevelingSpec is the self-leveling underlayment calculator.
func LevelingSpec() Spec {
	return Spec{
		Domain: DomainLeveling,
		Title:  "Self-Leveling",
		Fields: []Field{
			{Name: "area", Path: "area", Kind: KindNumber, Required: true},
			{Name: "pourDepth", Path: "pourDepth", Kind: KindNumber, Required: true},
			{Name: "maxDepth", Path: "maxDepth", Kind: KindNumber},
		},
		Derivations: []Derivation{
			{Field: "area", Watch: []string{pathTileAreaWaste, pathRooms}, Derive: tileAreaOrRooms},
		},
		Compute: func(f Form) (Outcome, error) {
			res, err := formulas.Leveling(formulas.LevelingInput{
				Area:      f.Float("area"),
				PourDepth: f.Float("pourDepth"),
				MaxDepth:  f.Float("maxDepth"),
			})
			if err != nil {
				return Outcome{}, err
			}
			out := Outcome{Calculated: map[string]any{
				"volumeCuFt": units.RoundTo(res.VolumeCuFt, 2),
				"bagsNeeded": res.BagsNeeded,
				"maxDepth":   res.MaxDepth,
			}}
			if res.Warning != "" {
				out.Calculated["warning"] = res.Warning
				out.Warnings = append(out.Warnings, res.Warning)
			}
			return out, nil
		},
	}
}

// SlopeSpec is the shower pre-slope calculator.
func SlopeSpec() Spec {
	return Spec{
		Domain: DomainSlope,
		Title:  "Shower Slope",
		Fields: []Field{
			{Name: "distance", Path: "distance", Kind: KindNumber, Required: true},
			{Name: "drainType", Path: "drainType", Kind: KindText, Default: formulas.DrainCenter},
			{Name: "method", Path: "method", Kind: KindText, Default: formulas.MethodMudBed},
		},
		Derivations: []Derivation{
			{
				Field: "distance",
				Watch: []string{"waterproofing.floorArea"},
				Derive: func(r Reader) (any, bool) {
					a, ok := positive(r, "waterproofing.floorArea")
					if !ok {
						return nil, false
					}
					return formulas.DrainDistanceFromFloorArea(a), true
				},
			},
		},
		Compute: func(f Form) (Outcome, error) {
			res, err := formulas.Slope(formulas.SlopeInput{
				Distance:  f.Float("distance"),
				DrainType: f.String("drainType"),
				Method:    f.String("method"),
			})
			if err != nil {
				return Outcome{}, err
			}
			calc := map[string]any{
				"method":    res.Method,
				"drainType": res.DrainType,
				"note":      res.Note,
			}
			if res.PanSize != "" {
				calc["panSize"] = res.PanSize
			} else {
				calc["slopeInches"] = res.SlopeInches
				calc["bagsNeeded"] = res.BagsNeeded
				calc["bagWeightLb"] = res.BagWeightLb
				calc["volumeCuFt"] = units.RoundTo(res.VolumeCuFt, 2)
			}
			return Outcome{Calculated: calc}, nil
		},
	}
}

// WaterproofingSpec is the membrane, board and liquid waterproofing calculator.
func WaterproofingSpec() Spec {
	return Spec{
		Domain: DomainWaterproofing,
		Title:  "Waterproofing",
		Fields: []Field{
			{Name: "membraneType", Path: "membraneType", Kind: KindText, Default: formulas.SystemSchluterKerdi},
			{Name: "location", Path: "location", Kind: KindText, Default: "shower"},
			{Name: "floorArea", Path: "floorArea", Kind: KindNumber},
			{Name: "wallArea", Path: "wallArea", Kind: KindNumber},
			{Name: "corners", Path: "corners", Kind: KindNumber},
			{Name: "niches", Path: "niches", Kind: KindNumber},
		},
		Derivations: []Derivation{
			{Field: "floorArea", Watch: []string{pathTileAreaWaste}, Derive: tileArea},
		},
		Compute: func(f Form) (Outcome, error) {
			res, err := formulas.Waterproofing(formulas.WaterproofingInput{
				System:    f.String("membraneType"),
				Location:  f.String("location"),
				FloorArea: f.Float("floorArea"),
				WallArea:  f.Float("wallArea"),
				Corners:   f.Int("corners"),
				Niches:    f.Int("niches"),
			})
			if err != nil {
				return Outcome{}, err
			}
			calc := map[string]any{
				"kind":      res.Kind,
				"unit":      res.Unit,
				"totalArea": res.TotalArea,
				"corners":   res.Corners,
				"niches":    res.Niches,
				"note":      res.Note,
			}
			switch res.Kind {
			case formulas.KindLiquid:
				calc["gallons"] = res.Gallons
			case formulas.KindBoard:
				calc["boards"] = res.Boards
			default:
				calc["rolls"] = res.Rolls
				calc["rollSqFt"] = res.RollSqFt
			}
			return Outcome{Calculated: calc}, nil
		},
	}
}

// LaborSpec estimates install hours and crew days.
func LaborSpec() Spec {
	return Spec{
		Domain: DomainLabor,
		Title:  "Labor",
		Fields: []Field{
			{Name: "area", Kind: KindNumber, Required: true},
			{Name: "pattern", Path: "pattern", Kind: KindText},
			{Name: "complexity", Path: "complexity", Kind: KindText, Default: "standard"},
			{Name: "surface", Path: "surface", Kind: KindText, Default: "floor"},
			{Name: "crewSize", Path: "crewSize", Kind: KindNumber},
			{Name: "productivity", Kind: KindNumber},
		},
		Derivations: []Derivation{
			{Field: "area", Watch: []string{pathTileAreaWaste, pathRooms}, Derive: tileAreaOrRooms},
			{Field: "pattern", Watch: []string{"tile.pattern"}, Derive: fromPath("tile.pattern")},
		},
		Compute: func(f Form) (Outcome, error) {
			res, err := formulas.Labor(formulas.LaborInput{
				Area:         f.Float("area"),
				Productivity: f.Float("productivity"),
				Complexity:   f.String("complexity"),
				Pattern:      f.String("pattern"),
				Surface:      f.String("surface"),
				CrewSize:     f.Float("crewSize"),
			})
			if err != nil {
				return Outcome{}, err
			}
			return Outcome{Calculated: map[string]any{
				"hours":      units.RoundTo(res.Hours, 1),
				"crewDays":   units.RoundTo(res.CrewDays, 2),
				"days":       res.Days,
				"multiplier": units.RoundTo(res.Multiplier, 3),
			}}, nil
		},
	}
}

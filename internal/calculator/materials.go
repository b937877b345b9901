package calculator

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tillerstead/tillerpro/internal/formulas"
	"github.com/tillerstead/tillerpro/internal/pricing"
	"github.com/tillerstead/tillerpro/internal/units"
)

var printer = message.NewPrinter(language.English)

// Material is one purchasable line derived from calculated results. Key
// matches a catalog product.
type Material struct {
	Key      string  `json:"key"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	Notes    string  `json:"notes,omitempty"`
}

// Display renders the quantity with thousands separators, e.g. "1,204 pieces".
func (m Material) Display() string {
	if m.Quantity == float64(int64(m.Quantity)) {
		return printer.Sprintf("%d %s", int64(m.Quantity), m.Unit)
	}
	return printer.Sprintf("%.1f %s", m.Quantity, m.Unit)
}

// Materials reads every domain's calculated results and lists what to buy.
// Domains that have not calculated contribute nothing.
func Materials(r Reader) []Material {
	num := func(path string) float64 {
		v, _ := units.ToFloat(r.Get(path))
		return v
	}
	str := func(path string) string {
		s, _ := r.Get(path).(string)
		return s
	}

	var out []Material
	add := func(key, name string, qty float64, unit, notes string) {
		if qty > 0 {
			out = append(out, Material{Key: key, Name: name, Quantity: qty, Unit: unit, Notes: notes})
		}
	}

	if w, l := num(pathTileWidth), num(pathTileLength); w > 0 && l > 0 {
		notes := fmt.Sprintf("%s x %s in, %g%% waste", units.Fraction(w), units.Fraction(l), num("tile.calculated.wastePercent"))
		switch {
		case num("tile.calculated.sheets") > 0:
			add("tile-sheet", "Mosaic Tile", num("tile.calculated.sheets"), "sheets", notes)
		case num("tile.calculated.boxesNeeded") > 0:
			add("tile-box", "Tile", num("tile.calculated.boxesNeeded"), "boxes", notes)
		default:
			add("tile-piece", "Tile", num("tile.calculated.tileCount"), "pieces", notes)
		}
	}

	if formulas.NormalizeGroutType(str("grout.calculated.type")) == formulas.GroutEpoxy {
		add("grout-epoxy", "Epoxy Grout", num("grout.calculated.bagsNeeded"), "units",
			fmt.Sprintf("%g lb", num("grout.calculated.pounds")))
	} else {
		add("grout-cement", "Grout", num("grout.calculated.bagsNeeded"), "bags",
			fmt.Sprintf("%g lb", num("grout.calculated.pounds")))
	}

	add("thinset", "Thin-Set Mortar", num("mortar.calculated.bagsNeeded"), "bags",
		"trowel "+str("mortar.calculated.trowelSize"))

	system := str("waterproofing.membraneType")
	switch str("waterproofing.calculated.kind") {
	case formulas.KindLiquid:
		add("membrane-liquid", "Waterproofing", num("waterproofing.calculated.gallons"), "gallons", system)
	case formulas.KindBoard:
		add("backer-board", "Waterproofing Board", num("waterproofing.calculated.boards"), "panels", system)
	case formulas.KindMembrane:
		add("membrane-sheet", "Waterproofing Membrane", num("waterproofing.calculated.rolls"), "rolls", system)
	}
	add("membrane-corner", "Inside Corners", num("waterproofing.calculated.corners"), "pieces", "")
	add("membrane-niche", "Niche Kits", num("waterproofing.calculated.niches"), "kits", "")

	add("self-leveler", "Self-Leveling Compound", num("leveling.calculated.bagsNeeded"), "bags",
		fmt.Sprintf(`%s" pour`, units.Fraction(num("leveling.pourDepth"))))

	switch str("slope.calculated.method") {
	case formulas.MethodFoamPan:
		add("foam-pan", "Foam Shower Pan", 1, "each", str("slope.calculated.panSize"))
	case formulas.MethodMudBed:
		add("deck-mud", "Deck Mud", num("slope.calculated.bagsNeeded"), "bags", "80 lb bags")
	case formulas.MethodBonded:
		add("thinset", "Thin-Set (slope)", num("slope.calculated.bagsNeeded"), "bags", "50 lb bags")
	}

	return out
}

// LineItems converts materials to unpriced pricing lines.
func LineItems(ms []Material) []pricing.LineItem {
	lines := make([]pricing.LineItem, 0, len(ms))
	for _, m := range ms {
		lines = append(lines, pricing.LineItem{
			Key:         m.Key,
			Description: m.Name,
			Quantity:    m.Quantity,
			Unit:        m.Unit,
		})
	}
	return lines
}

// WriteCSV writes the material list with a header row.
func WriteCSV(w io.Writer, ms []Material) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Material", "Quantity", "Unit", "Notes"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, m := range ms {
		row := []string{m.Name, strconv.FormatFloat(m.Quantity, 'f', -1, 64), m.Unit, m.Notes}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

package projectstate

import (
	"math"

	"github.com/tillerstead/tillerpro/internal/units"
)

// Summary is a read-only projection of the tree for quote forms and reports.
type Summary struct {
	ProjectName       string  `json:"projectName"`
	ProjectType       string  `json:"projectType"`
	TotalArea         float64 `json:"totalArea"`
	RoomCount         int     `json:"roomCount"`
	TileCount         int     `json:"tileCount"`
	BoxesNeeded       int     `json:"boxesNeeded"`
	BudgetEstimate    float64 `json:"budgetEstimate"`
	EstimatedDays     float64 `json:"estimatedDays"`
	CompletionPercent int     `json:"completionPercent"`
}

// Summary aggregates room areas and calculator outputs. It is recomputed on
// every call.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	get := func(path string) any {
		segs, _ := splitPath(path)
		v, _ := lookup(s.tree, segs)
		return v
	}
	num := func(path string) float64 {
		f, _ := units.ToFloat(get(path))
		return f
	}
	str := func(path string) string {
		v, _ := get(path).(string)
		return v
	}

	rooms, _ := get("project.rooms").([]any)

	steps := []bool{
		len(rooms) > 0,
		!IsEmpty(get("tile.size.width")),
		!IsEmpty(get("tile.calculated.tileCount")),
		!IsEmpty(get("grout.calculated.bagsNeeded")),
		!IsEmpty(get("mortar.calculated.bagsNeeded")),
		!IsEmpty(get("labor.calculated.hours")),
		!IsEmpty(get("budget.total.estimate")),
		!IsEmpty(get("contact.email")),
	}
	done := 0
	for _, ok := range steps {
		if ok {
			done++
		}
	}

	return Summary{
		ProjectName:       str("project.name"),
		ProjectType:       str("project.type"),
		TotalArea:         SumRoomArea(rooms),
		RoomCount:         len(rooms),
		TileCount:         int(num("tile.calculated.tileCount")),
		BoxesNeeded:       int(num("tile.calculated.boxesNeeded")),
		BudgetEstimate:    num("budget.total.estimate"),
		EstimatedDays:     num("labor.calculated.days"),
		CompletionPercent: int(math.Round(float64(done) / float64(len(steps)) * 100)),
	}
}

// SumRoomArea totals the area of each room entry, reading "area" and falling
// back to "areaFloor".
func SumRoomArea(rooms any) float64 {
	list, _ := rooms.([]any)
	total := 0.0
	for _, r := range list {
		room, ok := r.(map[string]any)
		if !ok {
			continue
		}
		area, ok := units.ToFloat(room["area"])
		if !ok || area == 0 {
			area, _ = units.ToFloat(room["areaFloor"])
		}
		if area > 0 {
			total += area
		}
	}
	return total
}

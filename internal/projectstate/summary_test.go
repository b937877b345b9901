package projectstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummaryEmptyProject(t *testing.T) {
	s := newTestStore(t)

	got := s.Summary()

	assert.Equal(t, Summary{ProjectName: "Untitled Project", ProjectType: "bathroom"}, got)
}

func TestSummaryAggregatesRoomsAndOutputs(t *testing.T) {
	s := newTestStore(t)
	s.Set("project.rooms", []any{
		map[string]any{"id": "a", "area": 40.0},
		map[string]any{"id": "b", "areaFloor": 25.5},
		map[string]any{"id": "c"},
	})
	s.Set("tile.size.width", 12.0)
	s.Set("tile.calculated", map[string]any{"tileCount": 111, "boxesNeeded": 11})
	s.Set("grout.calculated.bagsNeeded", 1)
	s.Set("labor.calculated", map[string]any{"hours": 5.2, "days": 1.0})
	s.Set("budget.total.estimate", 1234.5)

	got := s.Summary()

	assert.InDelta(t, 65.5, got.TotalArea, 1e-9)
	assert.Equal(t, 3, got.RoomCount)
	assert.Equal(t, 111, got.TileCount)
	assert.Equal(t, 11, got.BoxesNeeded)
	assert.Equal(t, 1234.5, got.BudgetEstimate)
	assert.Equal(t, 1.0, got.EstimatedDays)
	// rooms, tile size, tile calc, grout, labor, budget: 6 of 8 steps.
	assert.Equal(t, 75, got.CompletionPercent)

	s.Set("project.rooms.0.area", 10.0)
	assert.InDelta(t, 35.5, s.Summary().TotalArea, 1e-9)
}

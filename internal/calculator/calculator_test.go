package calculator

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tillerstead/tillerpro/internal/formulas"
	"github.com/tillerstead/tillerpro/internal/pricing"
	"github.com/tillerstead/tillerpro/internal/projectstate"
	"github.com/tillerstead/tillerpro/internal/units"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newTestSession(t *testing.T, opts ...Option) (*projectstate.Store, *Session) {
	t.Helper()
	store := projectstate.New(projectstate.WithClock(fixedClock))
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	s, err := NewSession(store, DefaultSpecs(), opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return store, s
}

func mustModule(t *testing.T, s *Session, domain string) *Module {
	t.Helper()
	m, ok := s.Module(domain)
	require.True(t, ok, "module %s", domain)
	return m
}

func calculateTile(t *testing.T, s *Session, fields map[string]any) *Result {
	t.Helper()
	require.NoError(t, s.SetFields(DomainTile, fields))
	res, err := s.Calculate(DomainTile)
	require.NoError(t, err)
	return res
}

func TestOrder_DefaultSpecs(t *testing.T) {
	ordered, err := Order([]Spec{SlopeSpec(), LaborSpec(), WaterproofingSpec(), GroutSpec(), TileSpec()})
	require.NoError(t, err)

	var domains []string
	for _, s := range ordered {
		domains = append(domains, s.Domain)
	}
	assert.Equal(t, []string{DomainTile, DomainLabor, DomainWaterproofing, DomainSlope, DomainGrout}, domains)
}

func TestOrder_RejectsCycle(t *testing.T) {
	noop := func(Form) (Outcome, error) { return Outcome{}, nil }
	derive := func(Reader) (any, bool) { return nil, false }
	a := Spec{Domain: "a", Fields: []Field{{Name: "x", Kind: KindNumber}}, Compute: noop,
		Derivations: []Derivation{{Field: "x", Watch: []string{"b.calculated.x"}, Derive: derive}}}
	b := Spec{Domain: "b", Fields: []Field{{Name: "x", Kind: KindNumber}}, Compute: noop,
		Derivations: []Derivation{{Field: "x", Watch: []string{"a.calculated.x"}, Derive: derive}}}

	_, err := Order([]Spec{a, b})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")

	_, err = NewSession(projectstate.New(), []Spec{a, b})
	assert.Error(t, err)
}

func TestOrder_RejectsDuplicateDomain(t *testing.T) {
	_, err := Order([]Spec{TileSpec(), TileSpec()})
	assert.Error(t, err)
}

func TestCalculate_TileSavesInOneUpdate(t *testing.T) {
	store, s := newTestSession(t)

	var paths []string
	unsub := store.On(projectstate.EventChange, func(c projectstate.Change) {
		if strings.HasPrefix(c.Path, "tile") {
			paths = append(paths, c.Path)
			// every tile leaf must already be visible when the first event fires
			assert.NotNil(t, store.Get("tile.calculated.calculatedAt"))
			assert.NotNil(t, store.Get("tile.size.width"))
		}
	})
	defer unsub()

	res := calculateTile(t, s, map[string]any{"area": 100, "width": "12", "length": 12, "wastePercent": 10})

	assert.Equal(t, []string{"tile.boxMode", "tile.calculated", "tile.size.length", "tile.size.width", "tile.wastePercent"}, paths)
	count := res.Calculated["tileCount"].(int)
	assert.True(t, count == 110 || count == 111, "tileCount %d", count)
	assert.Equal(t, fixedNow.Format(time.RFC3339), store.Get("tile.calculated.calculatedAt"))
	assert.Equal(t, 12.0, store.Get("tile.size.width"))
}

func TestCalculate_ValidationWritesNothing(t *testing.T) {
	store, s := newTestSession(t)
	before := store.Snapshot()

	require.NoError(t, s.SetFields(DomainTile, map[string]any{"area": 100, "length": 12}))
	_, err := s.Calculate(DomainTile)

	var verr *formulas.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"width"}, verr.Fields)
	assert.True(t, errors.Is(err, formulas.ErrValidation))
	assert.Equal(t, before, store.Snapshot())
}

func TestCalculate_ComputeValidationWritesNothing(t *testing.T) {
	store, s := newTestSession(t)

	_, err := s.Calculate(DomainWaterproofing)
	require.ErrorIs(t, err, formulas.ErrValidation)
	assert.Nil(t, store.Get("waterproofing.calculated"))
}

func TestCalculate_Idempotent(t *testing.T) {
	_, s := newTestSession(t)
	fields := map[string]any{"area": 100, "width": 24, "length": 24, "wastePercent": 10}

	first := calculateTile(t, s, fields)
	second := calculateTile(t, s, fields)

	assert.Equal(t, first.Calculated, second.Calculated)
	assert.Equal(t, 28, second.Calculated["tileCount"])
}

func TestCalculate_TileSeedsRoomsOnlyWhenEmpty(t *testing.T) {
	store, s := newTestSession(t)
	calculateTile(t, s, map[string]any{"area": 80, "width": 12, "length": 12})

	rooms := store.Get("project.rooms").([]any)
	require.Len(t, rooms, 1)
	room := rooms[0].(map[string]any)
	assert.Equal(t, "room-1", room["id"])
	assert.Equal(t, "Main Area", room["name"])
	assert.Equal(t, 80.0, room["area"])

	calculateTile(t, s, map[string]any{"area": 120})
	rooms = store.Get("project.rooms").([]any)
	assert.Equal(t, 80.0, rooms[0].(map[string]any)["area"])
}

func TestDerivation_TileAreaPropagatesToGrout(t *testing.T) {
	store, s := newTestSession(t)
	grout := mustModule(t, s, DomainGrout)
	assert.True(t, grout.Form().Empty("area"))

	calculateTile(t, s, map[string]any{"area": 100, "width": 12, "length": 12, "wastePercent": 10})

	assert.InDelta(t, 110.0, grout.Form().Float("area"), 1e-6)
	assert.InDelta(t, 110.0, store.Get("grout.area").(float64), 1e-6)
	assert.Equal(t, 12.0, grout.Form().Float("width"))
	assert.Equal(t, 12.0, grout.Form().Float("length"))
}

func TestDerivation_NeverOverwritesUserValue(t *testing.T) {
	store, s := newTestSession(t)
	grout := mustModule(t, s, DomainGrout)
	require.NoError(t, grout.SetField("area", 50))

	calculateTile(t, s, map[string]any{"area": 100, "width": 12, "length": 12})

	assert.Equal(t, 50.0, grout.Form().Float("area"))
	assert.Nil(t, store.Get("grout.area"))
}

func TestDerivation_StoredValueWins(t *testing.T) {
	store := projectstate.New()
	store.Set("grout.area", 42.0)
	s, err := NewSession(store, DefaultSpecs())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Restore()
	require.NoError(t, err)
	calculateTile(t, s, map[string]any{"area": 100, "width": 12, "length": 12})

	grout := mustModule(t, s, DomainGrout)
	assert.Equal(t, 42.0, grout.Form().Float("area"))
	assert.Equal(t, 42.0, store.Get("grout.area"))
}

func TestDerivation_GroutFallsBackToRooms(t *testing.T) {
	store, s := newTestSession(t)
	store.Set("project.rooms", []any{
		map[string]any{"id": "a", "area": 30.0},
		map[string]any{"id": "b", "areaFloor": 12.5},
	})

	assert.Equal(t, 42.5, mustModule(t, s, DomainGrout).Form().Float("area"))
	assert.Equal(t, 42.5, mustModule(t, s, DomainLeveling).Form().Float("area"))
	assert.True(t, mustModule(t, s, DomainMortar).Form().Empty("area"))
}

func TestDerivation_WaterproofingChainsToSlope(t *testing.T) {
	store, s := newTestSession(t)

	calculateTile(t, s, map[string]any{"area": 100, "width": 12, "length": 12, "wastePercent": 10})

	assert.InDelta(t, 110.0, store.Get("waterproofing.floorArea").(float64), 1e-6)
	assert.Equal(t, 5.0, mustModule(t, s, DomainSlope).Form().Float("distance"))
	assert.Equal(t, 5.0, store.Get("slope.distance"))
}

func TestDerivation_MortarRecommendsTrowel(t *testing.T) {
	_, s := newTestSession(t)
	calculateTile(t, s, map[string]any{"area": 100, "width": 12, "length": 24})

	mortar := mustModule(t, s, DomainMortar)
	assert.Equal(t, formulas.Trowel1_2x1_2, mortar.Form().String("trowelSize"))

	res, err := mortar.Calculate()
	require.NoError(t, err)
	assert.NotEmpty(t, res.Notes)
	assert.Equal(t, formulas.SubstrateTypical, res.Inputs["substrate"])
}

func TestRestore_AutoCalculatesWhenComplete(t *testing.T) {
	store := projectstate.New(projectstate.WithClock(fixedClock))
	store.Set("project.rooms", []any{map[string]any{"id": "room-1", "area": 100.0}})
	store.Set("tile.size.width", 12.0)
	store.Set("tile.size.length", 12.0)
	store.Set("tile.wastePercent", 10.0)

	s, err := NewSession(store, DefaultSpecs(), WithClock(fixedClock))
	require.NoError(t, err)
	defer s.Close()

	results, err := s.Restore()
	require.NoError(t, err)

	for _, d := range []string{DomainTile, DomainMortar, DomainWaterproofing, DomainSlope, DomainLabor} {
		assert.Contains(t, results, d)
	}
	assert.NotContains(t, results, DomainGrout, "joint width is still missing")
	assert.NotContains(t, results, DomainLeveling, "pour depth is still missing")
	assert.NotNil(t, store.Get("slope.calculated.bagsNeeded"))
}

func TestReset_ClearsForms(t *testing.T) {
	store, s := newTestSession(t)
	tile := mustModule(t, s, DomainTile)
	calculateTile(t, s, map[string]any{"area": 100, "width": 12, "length": 12})
	require.NotNil(t, tile.Last())

	store.Reset()

	assert.Empty(t, tile.Form())
	assert.Nil(t, tile.Last())
	assert.Empty(t, mustModule(t, s, DomainGrout).Form())
}

func TestSetField_Errors(t *testing.T) {
	_, s := newTestSession(t)
	tile := mustModule(t, s, DomainTile)

	assert.Error(t, tile.SetField("nope", 1))
	assert.Error(t, tile.SetField("width", "wide"))
	assert.Error(t, tile.SetField("atticStock", "maybe"))

	require.NoError(t, tile.SetField("atticStock", "on"))
	assert.True(t, tile.Form().Bool("atticStock"))
	require.NoError(t, tile.SetField("width", "1 1/2"))
	assert.Equal(t, 1.5, tile.Form().Float("width"))
	require.NoError(t, tile.SetField("width", ""))
	assert.True(t, tile.Form().Empty("width"))
}

type countingObserver struct {
	ok, failed int
}

func (c *countingObserver) ObserveCalculation(_ string, err error) {
	if err != nil {
		c.failed++
		return
	}
	c.ok++
}

func TestObserverAndLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	obs := &countingObserver{}
	_, s := newTestSession(t, WithLogger(zap.New(core)), WithObserver(obs))

	_, err := s.Calculate(DomainLeveling)
	require.Error(t, err)
	calculateTile(t, s, map[string]any{"area": 10, "width": 12, "length": 12})

	assert.Equal(t, 1, obs.ok)
	assert.Equal(t, 1, obs.failed)
	require.Equal(t, 1, logs.FilterMessage("validation failed").Len())
	assert.Equal(t, "leveling", logs.FilterMessage("validation failed").All()[0].LoggerName)
}

func TestLevelingWarningDoesNotBlock(t *testing.T) {
	store, s := newTestSession(t)
	require.NoError(t, s.SetFields(DomainLeveling, map[string]any{"area": 100, "pourDepth": 1, "maxDepth": 2}))

	res, err := s.Calculate(DomainLeveling)
	require.NoError(t, err)
	assert.Equal(t, []string{formulas.DeepPourWarning}, res.Warnings)
	assert.Equal(t, formulas.DeepPourWarning, store.Get("leveling.calculated.warning"))
}

func TestMaterialsAndCSV(t *testing.T) {
	_, s := newTestSession(t)
	calculateTile(t, s, map[string]any{"area": 100, "width": 12, "length": 12, "tilesPerBox": 10})
	require.NoError(t, s.SetFields(DomainGrout, map[string]any{"jointWidth": "1/8"}))
	_, err := s.Calculate(DomainGrout)
	require.NoError(t, err)
	require.NoError(t, s.SetFields(DomainSlope, map[string]any{"method": formulas.MethodFoamPan}))
	_, err = s.Calculate(DomainSlope)
	require.NoError(t, err)

	ms := s.Materials()
	keys := map[string]Material{}
	for _, m := range ms {
		keys[m.Key] = m
	}
	require.Contains(t, keys, "tile-box")
	require.Contains(t, keys, "grout-cement")
	require.Contains(t, keys, "foam-pan")
	assert.Equal(t, "60x72", keys["foam-pan"].Notes)
	assert.Equal(t, "boxes", keys["tile-box"].Unit)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ms))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "Material,Quantity,Unit,Notes", lines[0])
	assert.Len(t, lines, len(ms)+1)
}

func TestMaterial_Display(t *testing.T) {
	assert.Equal(t, "1,204 pieces", Material{Quantity: 1204, Unit: "pieces"}.Display())
	assert.Equal(t, "2.5 gallons", Material{Quantity: 2.5, Unit: "gallons"}.Display())
}

func TestBudget_UpdatesOnCalculation(t *testing.T) {
	catalog, err := pricing.DefaultCatalog()
	require.NoError(t, err)
	rates := pricing.Rates{LaborHourly: 50, Currency: "USD"}
	store, s := newTestSession(t, WithBudget(catalog, rates))

	calculateTile(t, s, map[string]any{"area": 100, "width": 12, "length": 12, "wastePercent": 10, "tilesPerBox": 10})
	_, err = s.Calculate(DomainLabor)
	require.NoError(t, err)

	// 12 boxes plus 4.4 labor hours at 50
	tileBox, _ := catalog.Lookup("tile-box")
	hours := store.Get("labor.calculated.hours").(float64)
	want := 12*tileBox.Price + hours*50
	assert.InDelta(t, want, store.Get("budget.total.estimate").(float64), 0.01)
	assert.Equal(t, "USD", store.Get("budget.total.currency"))
	assert.Len(t, store.Get("budget.materials").([]any), 1)
	assert.InDelta(t, want, s.Budget().Last().Totals.Total, 1e-9)

	summary := store.Summary()
	assert.InDelta(t, want, summary.BudgetEstimate, 0.01)
	assert.Equal(t, 12, summary.BoxesNeeded)
}

func TestSetFields_RejectsNonFiniteNumbers(t *testing.T) {
	store, s := newTestSession(t)
	before := store.Snapshot()

	for _, raw := range []any{"Inf", "-Infinity", "NaN"} {
		err := s.SetFields(DomainTile, map[string]any{"area": raw, "width": 12, "length": 12, "tilesPerBox": 10})
		require.Error(t, err, "area %v", raw)
		assert.Contains(t, err.Error(), "area")
	}
	assert.Nil(t, mustModule(t, s, DomainTile).Form()["area"])
	assert.Equal(t, before, store.Snapshot())

	_, err := store.MarshalJSON()
	require.NoError(t, err)
}

func TestCalculate_HugeAreaKeepsCountsNonNegative(t *testing.T) {
	store, s := newTestSession(t)

	res := calculateTile(t, s, map[string]any{"area": 1e20, "width": 1, "length": 1, "tilesPerBox": 10})
	assert.EqualValues(t, units.MaxCount, res.Calculated["tileCount"])
	boxes, ok := res.Calculated["boxesNeeded"].(int)
	require.True(t, ok)
	assert.Positive(t, boxes)

	_, err := store.MarshalJSON()
	require.NoError(t, err)
}

func TestCalculate_OverflowWritesNothing(t *testing.T) {
	store, s := newTestSession(t)
	before := store.Snapshot()

	require.NoError(t, s.SetFields(DomainSlope, map[string]any{"distance": 1e300}))
	_, err := s.Calculate(DomainSlope)
	require.ErrorIs(t, err, ErrOutOfRange)
	assert.Contains(t, err.Error(), "volumeCuFt")
	assert.Equal(t, before, store.Snapshot())

	_, err = store.MarshalJSON()
	require.NoError(t, err)
}

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillerstead/tillerpro/internal/calculator"
	"github.com/tillerstead/tillerpro/internal/projectstate"
)

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[sessionResponse](t, rec)
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

var tileFields = map[string]any{"area": 100, "width": 12, "length": 12, "wastePercent": 10, "tilesPerBox": 10}

func TestAPI_CalculateValidationReturns422(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()
	id := createSession(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/tools/tile/calculate", map[string]any{"width": 12})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decode[validationResponse](t, rec)
	assert.Equal(t, "tile", resp.Tool)
	assert.ElementsMatch(t, []string{"area", "length"}, resp.Fields)
}

func TestAPI_CalculatePersistsAndRestores(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()
	id := createSession(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/tools/tile/calculate", tileFields)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[calculator.Result](t, rec)
	assert.Equal(t, "tile", res.Domain)
	assert.EqualValues(t, 12, res.Calculated["boxesNeeded"])

	// Drop the live session; the next request must rebuild it from the snapshot.
	s.sessions.Evict(id)

	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[projectstate.Summary](t, rec)
	assert.Equal(t, 12, summary.BoxesNeeded)
	assert.InDelta(t, 100, summary.TotalArea, 1e-9)

	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/tools/grout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tool := decode[toolResponse](t, rec)
	assert.InDelta(t, 110, tool.Form["area"].(float64), 1e-9, "grout area derives from tile area with waste")
	assert.EqualValues(t, 12, tool.Form["width"])
}

func TestAPI_UnknownSessionAndTool(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()

	rec := doJSON(t, h, http.MethodGet, "/api/sessions/not-a-uuid/state", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/sessions/8c1f0f0e-4d3b-4a43-9b0c-2f9f7f7a1a11/state", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	id := createSession(t, h)
	rec = doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/tools/grinder/calculate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/tools/tile/fields", map[string]any{"color": "blue"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_FieldsThenStatePutRestores(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()
	id := createSession(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/tools/mortar/fields", map[string]any{"tileWidth": 12, "tileLength": 24})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tool := decode[toolResponse](t, rec)
	assert.Equal(t, "1/2x1/2", tool.Form["trowelSize"])

	state := `{
		"version": "1.0.0",
		"project": {"name": "Hall Bath", "rooms": [{"id": "room-1", "area": 40}]},
		"tile": {"size": {"width": 12, "length": 12}, "wastePercent": 10}
	}`
	req := doRaw(t, h, http.MethodPut, "/api/sessions/"+id+"/state", state)
	require.Equal(t, http.StatusOK, req.Code, req.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tree map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tree))
	assert.Equal(t, "Hall Bath", tree["project"].(map[string]any)["name"])

	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/tools/tile", nil)
	tool = decode[toolResponse](t, rec)
	assert.EqualValues(t, 40, tool.Form["area"], "tile area derives from rooms after restore")
}

func TestAPI_MaterialsCSVAndQuote(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()
	id := createSession(t, h)

	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/tools/tile/calculate", tileFields).Code)
	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/tools/labor/calculate", nil).Code)

	rec := doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/materials", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mats := decode[materialsResponse](t, rec)
	require.Len(t, mats.Materials, 1)
	assert.Equal(t, "tile-box", mats.Materials[0].Key)

	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/export.csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Material,Quantity,Unit,Notes\n"))

	rec = doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/quote", map[string]any{"title": "Hall floor"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	q := decode[quoteResponse](t, rec)
	assert.Positive(t, q.ID)
	assert.Equal(t, "USD", q.Currency)
	assert.Positive(t, q.Result.Totals.Total)

	detail, err := s.getQuoteDetail(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hall floor", detail.Title)
	assert.Equal(t, id, detail.SessionID)
	assert.InDelta(t, q.Result.Totals.Total, detail.Totals.Total, 1e-9)
}

func TestAPI_DeleteSession(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()
	id := createSession(t, h)

	require.Equal(t, http.StatusNoContent, doJSON(t, h, http.MethodDelete, "/api/sessions/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/summary", nil).Code)
}

func TestAPI_CalculatorsAndEstimates(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()

	rec := doJSON(t, h, http.MethodGet, "/api/calculators", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string][]calculator.ToolInfo](t, rec)
	assert.Len(t, list["calculators"], 7)

	rec = doJSON(t, h, http.MethodPost, "/api/estimate/mortar-range", map[string]any{"area": 100, "trowel": "1/4-sq"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, out["bagsMin"])

	rec = doJSON(t, h, http.MethodPost, "/api/estimate/sealer", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/estimate/primer", map[string]any{"area": 100, "bogus": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/estimate/teleport", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()

	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodGet, "/healthz", nil).Code)
	id := createSession(t, h)
	doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/tools/tile/calculate", tileFields)

	rec := doJSON(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tillerpro_calculations_total{outcome="ok",tool="tile"} 1`)
	assert.Contains(t, rec.Body.String(), "tillerpro_sessions_active 1")
}

func TestAPI_NonFiniteInputIsRejectedAndSessionStaysSaveable(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()
	id := createSession(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/tools/tile/calculate",
		map[string]any{"area": "Inf", "width": 12, "length": 12, "tilesPerBox": 10})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "area")

	rec = doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/tools/slope/calculate", map[string]any{"distance": 1e300})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/state", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/tools/tile/calculate", tileFields)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

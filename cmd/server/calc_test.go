package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillerstead/tillerpro/internal/observability"
)

func TestParseSets(t *testing.T) {
	got, err := parseSets([]string{"area=120", " trowel = 1/4-sq ", "mosaic=true"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"area": 120.0, "trowel": "1/4-sq", "mosaic": true}, got)

	for _, bad := range []string{"area", "=5"} {
		_, err := parseSets([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestIsCalculatorWinsOverEstimateKind(t *testing.T) {
	_, isEstimate := estimators["labor"]
	require.True(t, isEstimate)
	assert.True(t, isCalculator("labor"))
	assert.False(t, isCalculator("mortar-range"))
}

// runCLI executes the root command from an empty directory with a clean
// development environment.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, k := range []string{"APP_ENV", "DATABASE_URL", "TILLERPRO_ENV", "TILLERPRO_DATABASE_URL", "TILLERPRO_DATABASE_DRIVER"} {
		t.Setenv(k, "")
	}
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCalcCommand_Tile(t *testing.T) {
	out, err := runCLI(t, "calc", "tile",
		"--set", "area=100", "--set", "width=12", "--set", "length=12",
		"--set", "wastePercent=10", "--set", "tilesPerBox=10", "--json")
	require.NoError(t, err)

	var got struct {
		Result struct {
			Domain     string         `json:"domain"`
			Calculated map[string]any `json:"calculated"`
		} `json:"result"`
		Materials []struct {
			Key string `json:"key"`
		} `json:"materials"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	assert.Equal(t, "tile", got.Result.Domain)
	assert.EqualValues(t, 12, got.Result.Calculated["boxesNeeded"])
	require.NotEmpty(t, got.Materials)
	assert.Equal(t, "tile-box", got.Materials[0].Key)
}

func TestCalcCommand_TextAndValidation(t *testing.T) {
	out, err := runCLI(t, "calc", "tile", "--set", "area=100", "--set", "width=12", "--set", "length=12")
	require.NoError(t, err)
	assert.Contains(t, out, "tile\n")

	_, err = runCLI(t, "calc", "tile", "--set", "width=12")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tile needs:")
}

func TestCalcCommand_EstimateAndList(t *testing.T) {
	out, err := runCLI(t, "calc", "mortar-range", "--set", "area=100", "--set", "trowel=1/4-sq")
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.EqualValues(t, 2, res["bagsMin"])

	out, err = runCLI(t, "calc")
	require.NoError(t, err)
	assert.Contains(t, out, "Calculators:")
	assert.Contains(t, out, "Quick estimates:")
	assert.Contains(t, out, "mortar-range")
}

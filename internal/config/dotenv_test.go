package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDotEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDotEnv_ParsesDeploymentVariables(t *testing.T) {
	for _, k := range []string{"ADMIN_EMAIL", "SESSION_SECRET", "DB_PATH", "PORT"} {
		t.Setenv(k, "")
	}

	path := writeDotEnv(t, `
# local overrides
ADMIN_EMAIL=owner@tillerstead.com
export SESSION_SECRET="change me"
DB_PATH='./data/tiller.db'
port=9090
`)
	require.NoError(t, loadDotEnv(path))

	tests := map[string]string{
		"ADMIN_EMAIL":    "owner@tillerstead.com",
		"SESSION_SECRET": "change me",
		"DB_PATH":        "./data/tiller.db",
		"PORT":           "9090",
	}
	for k, want := range tests {
		assert.Equal(t, want, os.Getenv(k), k)
	}
}

func TestLoadDotEnv_KeepsExistingEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://prod/tiller")

	path := writeDotEnv(t, "DATABASE_URL=postgres://localhost/dev\n")
	require.NoError(t, loadDotEnv(path))

	assert.Equal(t, "postgres://prod/tiller", os.Getenv("DATABASE_URL"))
}

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

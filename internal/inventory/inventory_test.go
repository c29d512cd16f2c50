package inventory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlops-dev/sqlops/pkg/models"
)

const sampleInventory = `
instances:
  prod:
    host: sqlprod01
    instance: PROD
    port: 14330
    user: sa
  dr:
    host: sqldr01
`

func writeInventory(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instances.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, f.Instances)
}

func TestLoadAndResolve(t *testing.T) {
	f, err := Load(writeInventory(t, sampleInventory))
	require.NoError(t, err)

	assert.Equal(t, []string{"dr", "prod"}, f.Names())

	target, ok := f.Resolve("prod")
	require.True(t, ok)
	assert.Equal(t, models.Target{Host: "sqlprod01", Instance: "PROD", Port: 14330}, target)

	_, ok = f.Resolve("staging")
	assert.False(t, ok)
}

func TestResolveTargetsMixesNamesAndDesignators(t *testing.T) {
	f, err := Load(writeInventory(t, sampleInventory))
	require.NoError(t, err)

	targets, err := f.ResolveTargets([]string{"prod", `adhoc\inst2`})
	require.NoError(t, err)
	assert.Equal(t, []models.Target{
		{Host: "sqlprod01", Instance: "PROD", Port: 14330},
		{Host: "adhoc", Instance: "inst2"},
	}, targets)

	_, err = f.ResolveTargets([]string{""})
	assert.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load(writeInventory(t, "instances: [not a map"))
	assert.Error(t, err)
}

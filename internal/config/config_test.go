package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaizfinance/redis-rebalance/internal/inventory"
)

func TestLoadDatacentersEmptyPathReturnsNil(t *testing.T) {
	entries, err := LoadDatacenters("")
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestLoadDatacentersParsesSection(t *testing.T) {
	path := writeIni(t, `
[datacenters]
10.0.0.1 = dc-a/redis-0.dc-a
10.0.0.2 = dc-b
`)

	entries, err := LoadDatacenters(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]inventory.Entry{
		"10.0.0.1": {Datacenter: "dc-a", Hostname: "redis-0.dc-a"},
		"10.0.0.2": {Datacenter: "dc-b"},
	}, entries)
}

func TestLoadDatacentersMissingFileErrors(t *testing.T) {
	_, err := LoadDatacenters(filepath.Join(t.TempDir(), "missing.ini"))
	require.Error(t, err)
}

func writeIni(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datacenters.ini")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

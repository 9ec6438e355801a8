package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaizfinance/redis-rebalance/internal/topology"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	nodes := []topology.Node{
		{
			ID: "a1b2", Host: "10.0.0.1", Port: 7000,
			Flags: []topology.Flag{topology.FlagMaster}, Connected: true,
			Datacenter: "dc-a", Hostname: "redis-0",
		},
		{
			ID: "c3d4", Host: "10.0.0.2", Port: 7000,
			Flags: []topology.Flag{topology.FlagSlave}, MasterID: "a1b2", Connected: true,
			SlotsEmpty: true, Datacenter: "dc-b", Hostname: "redis-1",
		},
	}

	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	require.NoError(t, Save(path, nodes))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, nodes, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodes: [this is not a node list"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

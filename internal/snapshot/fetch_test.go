package snapshot

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaizfinance/redis-rebalance/internal/inventory"
)

const sampleClusterNodes = `07c37dfeb235213a872192d90877d0cd55635b91 127.0.0.1:30004@31004 slave e7d1eecce10fd6bb5eb35b9f99a514335d9ba9ca 0 1426238317239 4 connected
e7d1eecce10fd6bb5eb35b9f99a514335d9ba9ca 127.0.0.1:30002@31002 master,fail? - 0 1426238316232 2 connected 5461-10922
67ed2db8d677e59ec4a4cefb06858cf2a1a89fa1 127.0.0.1:30006@31006 master,myself - 0 0 6 connected 10923-16383
292f8b365bb7edb5e285caf0b7e6ddc7265d2f4f 127.0.0.1:30001@31001 myself,master - 0 0 1 connected 0-5460`

type fakeCNClient struct {
	raw string
	err error
}

func (f *fakeCNClient) ClusterNodes(ctx context.Context) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	cmd.SetVal(f.raw)
	return cmd
}

func (f *fakeCNClient) Close() error { return nil }

func TestFetchWithParsesClusterNodesOutput(t *testing.T) {
	nodes, err := fetchWith(context.Background(), &fakeCNClient{raw: sampleClusterNodes}, inventory.Simple{})
	require.NoError(t, err)
	require.Len(t, nodes, 4)

	byID := map[string]int{}
	for i, n := range nodes {
		byID[n.ID] = i
	}

	slave := nodes[byID["07c37dfeb235213a872192d90877d0cd55635b91"]]
	assert.True(t, slave.IsSlave())
	assert.Equal(t, "e7d1eecce10fd6bb5eb35b9f99a514335d9ba9ca", slave.MasterID)
	assert.Equal(t, "127.0.0.1", slave.Host)
	assert.Equal(t, 30004, slave.Port)
	assert.True(t, slave.SlotsEmpty)

	failedMaster := nodes[byID["e7d1eecce10fd6bb5eb35b9f99a514335d9ba9ca"]]
	assert.True(t, failedMaster.IsMaster())
	assert.True(t, failedMaster.IsFailed(), "fail? (PFAIL) should still count as failed")
	assert.False(t, failedMaster.SlotsEmpty)

	myselfMaster := nodes[byID["67ed2db8d677e59ec4a4cefb06858cf2a1a89fa1"]]
	assert.True(t, myselfMaster.IsMaster())
	assert.False(t, myselfMaster.IsFailed())
}

func TestFetchWithPropagatesClusterNodesError(t *testing.T) {
	_, err := fetchWith(context.Background(), &fakeCNClient{err: errors.New("i/o timeout")}, inventory.Simple{})
	assert.Error(t, err)
}

func TestParseClusterNodesLineMalformed(t *testing.T) {
	_, err := parseClusterNodesLine("too few fields", inventory.Simple{})
	assert.Error(t, err)
}

func TestParseHostPort(t *testing.T) {
	host, port, err := parseHostPort("127.0.0.1:30004@31004")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)
	assert.Equal(t, 30004, port)
}

func TestParseHostPortMissingPort(t *testing.T) {
	_, _, err := parseHostPort("127.0.0.1")
	assert.Error(t, err)
}

func TestParseHostPortInvalidPort(t *testing.T) {
	_, _, err := parseHostPort("127.0.0.1:notaport")
	assert.Error(t, err)
}

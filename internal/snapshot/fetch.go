package snapshot

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cast"

	"github.com/amaizfinance/redis-rebalance/internal/inventory"
	"github.com/amaizfinance/redis-rebalance/internal/topology"
)

// client is the subset of redis.Cmdable Fetch needs.
type client interface {
	ClusterNodes(ctx context.Context) *redis.StringCmd
	Close() error
}

// Fetch connects to one cluster node, runs CLUSTER NODES, and parses the
// reply into an enriched node list. Each node's address is resolved
// through inv to populate Datacenter/Hostname; a nil inv defaults every
// node to its own datacenter and hostname (simple mode).
func Fetch(ctx context.Context, addr, password string, inv inventory.Inventory) ([]topology.Node, error) {
	if inv == nil {
		inv = inventory.Simple{}
	}
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	defer c.Close()
	return fetchWith(ctx, c, inv)
}

func fetchWith(ctx context.Context, c client, inv inventory.Inventory) ([]topology.Node, error) {
	raw, err := c.ClusterNodes(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("snapshot: CLUSTER NODES: %w", err)
	}
	return parseClusterNodes(raw, inv)
}

func parseClusterNodes(raw string, inv inventory.Inventory) ([]topology.Node, error) {
	var nodes []topology.Node
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		n, err := parseClusterNodesLine(line, inv)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// parseClusterNodesLine parses one CLUSTER NODES row:
//
//	<id> <ip:port@cport> <flags> <master> <ping-sent> <pong-recv> <config-epoch> <link-state> <slots...>
func parseClusterNodesLine(line string, inv inventory.Inventory) (topology.Node, error) {
	fields := strings.Fields(line)
	if len(fields) < 8 {
		return topology.Node{}, fmt.Errorf("snapshot: malformed CLUSTER NODES line: %q", line)
	}

	host, port, err := parseHostPort(fields[1])
	if err != nil {
		return topology.Node{}, fmt.Errorf("snapshot: %s: %w", line, err)
	}

	var flags []topology.Flag
	for _, f := range strings.Split(fields[2], ",") {
		if f == "myself" || f == "" {
			continue
		}
		flags = append(flags, topology.Flag(strings.TrimPrefix(f, "fail?")))
	}
	// fail? (PFAIL) still counts as failed for planning purposes.
	if strings.Contains(fields[2], "fail?") {
		flags = append(flags, topology.FlagFail)
	}

	masterID := fields[3]
	if masterID == "-" {
		masterID = ""
	}

	connected := fields[7] == "connected"
	slotsEmpty := len(fields) <= 8

	dc, hostname, err := inv.Lookup(host)
	if err != nil {
		dc, hostname = host, host
	}

	return topology.Node{
		ID:         fields[0],
		Host:       host,
		Port:       port,
		Flags:      flags,
		MasterID:   masterID,
		SlotsEmpty: slotsEmpty,
		Connected:  connected,
		Datacenter: dc,
		Hostname:   hostname,
	}, nil
}

func parseHostPort(addr string) (string, int, error) {
	addr = strings.SplitN(addr, "@", 2)[0]
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", 0, fmt.Errorf("missing port in address %q", addr)
	}
	host := addr[:idx]
	port, err := cast.ToIntE(addr[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in address %q: %w", addr, err)
	}
	return host, port, nil
}

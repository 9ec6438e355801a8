package planner

import (
	"testing"

	"github.com/amaizfinance/redis-rebalance/internal/topology"
)

func TestLevelOutSlavesReparentsCoLocatedReplicas(t *testing.T) {
	// Master M lives in DC-A with both its replicas also in DC-A.
	top := topology.New(topology.GroupByDatacenter, []topology.Node{
		datacenterNode("m1", "10.0.1.1", "dc-a", topology.FlagMaster),
		datacenterSlave("s1", "10.0.1.2", "dc-a", "m1"),
		datacenterSlave("s2", "10.0.1.3", "dc-a", "m1"),
		// eligible donor masters in dc-b and dc-c to reparent onto
		datacenterNode("m2", "10.0.2.1", "dc-b", topology.FlagMaster),
		datacenterNode("m3", "10.0.3.1", "dc-c", topology.FlagMaster),
	})

	plan := &Plan{}
	next, err := LevelOutSlaves(top, 2, plan, false)
	if err != nil {
		t.Fatalf("LevelOutSlaves: %v", err)
	}

	groups := map[string]struct{}{}
	for _, replica := range next.SlavesOf("m1") {
		groups[next.GroupOf(replica)] = struct{}{}
	}
	if len(groups) != 2 {
		t.Fatalf("m1 has replicas in %d distinct groups, want 2: %+v", len(groups), groups)
	}
	if _, stillInOwnGroup := groups["dc-a"]; stillInOwnGroup {
		t.Fatal("at least one replica should have moved out of dc-a")
	}
}

func TestLevelOutSlavesSkipsSatisfiedMasters(t *testing.T) {
	top := topology.New(topology.GroupByHost, []topology.Node{
		node("m1", "A", topology.FlagMaster),
		slaveNode("s1", "B", "m1"),
		slaveNode("s2", "C", "m1"),
	})
	plan := &Plan{}
	if _, err := LevelOutSlaves(top, 2, plan, false); err != nil {
		t.Fatalf("LevelOutSlaves: %v", err)
	}
	if plan.Len() != 0 {
		t.Fatalf("plan.Len() = %d, want 0 when every master already has R distinct-group replicas", plan.Len())
	}
}

func datacenterNode(id, host, dc string, flags ...topology.Flag) topology.Node {
	n := node(id, host, flags...)
	n.Datacenter = dc
	return n
}

func datacenterSlave(id, host, dc, masterID string) topology.Node {
	n := slaveNode(id, host, masterID)
	n.Datacenter = dc
	return n
}

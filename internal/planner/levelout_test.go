package planner

import (
	"testing"

	"github.com/amaizfinance/redis-rebalance/internal/topology"
)

// fourOneOneTopology mirrors a cluster with masters distributed 4/1/1
// across three groups, each surplus group holding a replica whose master
// lives in the heavy group: the shape level-out-masters is meant to fix.
func fourOneOneTopology() topology.Topology {
	return topology.New(topology.GroupByHost, []topology.Node{
		node("m1", "A", topology.FlagMaster),
		node("m2", "A", topology.FlagMaster),
		node("m3", "A", topology.FlagMaster),
		node("m4", "A", topology.FlagMaster),
		node("mB", "B", topology.FlagMaster),
		slaveNode("rB1", "B", "m1"),
		node("mC", "C", topology.FlagMaster),
		slaveNode("rC1", "C", "m2"),
	})
}

func TestLevelOutMastersBalancesFourOneOne(t *testing.T) {
	top := fourOneOneTopology()
	plan := &Plan{}

	next, err := LevelOutMasters(top, plan, false)
	if err != nil {
		t.Fatalf("LevelOutMasters: %v", err)
	}

	counts := map[string]int{}
	for _, n := range next.Nodes() {
		if n.IsMaster() {
			counts[next.GroupOf(n)]++
		}
	}
	for g, c := range counts {
		if c != 2 {
			t.Fatalf("group %s has %d masters, want 2 (counts=%v)", g, c, counts)
		}
	}
	if plan.Len() != 2 {
		t.Fatalf("plan.Len() = %d, want 2 failover steps", plan.Len())
	}
	for _, s := range plan.Steps {
		if s.Kind != CommandFailover {
			t.Fatalf("step %+v, want only FAILOVER commands", s)
		}
	}
}

func TestLevelOutMastersNoOpWhenBalanced(t *testing.T) {
	top := topology.New(topology.GroupByHost, []topology.Node{
		node("m1", "A", topology.FlagMaster),
		node("m2", "B", topology.FlagMaster),
		node("m3", "C", topology.FlagMaster),
	})
	plan := &Plan{}
	if _, err := LevelOutMasters(top, plan, false); err != nil {
		t.Fatalf("LevelOutMasters: %v", err)
	}
	if plan.Len() != 0 {
		t.Fatalf("plan.Len() = %d, want 0 for an already-balanced topology", plan.Len())
	}
}

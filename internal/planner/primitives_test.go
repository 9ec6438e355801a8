package planner

import (
	"testing"

	"github.com/amaizfinance/redis-rebalance/internal/topology"
)

func node(id, host string, flags ...topology.Flag) topology.Node {
	return topology.Node{ID: id, Host: host, Port: 7000, Flags: flags}
}

func slaveNode(id, host, masterID string) topology.Node {
	n := node(id, host, topology.FlagSlave)
	n.MasterID = masterID
	return n
}

func threeMasterTopology() topology.Topology {
	return topology.New(topology.GroupByHost, []topology.Node{
		node("m1", "10.0.0.1", topology.FlagMaster),
		node("m2", "10.0.0.2", topology.FlagMaster),
		node("m3", "10.0.0.3", topology.FlagMaster),
		slaveNode("s1", "10.0.0.2", "m1"),
		slaveNode("s2", "10.0.0.3", "m1"),
	})
}

func TestReplicateReparents(t *testing.T) {
	top := threeMasterTopology()
	plan := &Plan{}

	next, err := Replicate(top, "m2", "s2", plan, false)
	if err != nil {
		t.Fatalf("Replicate: %v", err)
	}
	s2, _ := next.NodeByID("s2")
	if s2.MasterID != "m2" {
		t.Fatalf("s2.MasterID = %s, want m2", s2.MasterID)
	}
	if plan.Len() != 1 || plan.Steps[0].Kind != CommandReplicate {
		t.Fatalf("plan = %+v, want one REPLICATE step", plan.Steps)
	}

	// original topology must be untouched
	origS2, _ := top.NodeByID("s2")
	if origS2.MasterID != "m1" {
		t.Fatalf("Replicate mutated its input: s2.MasterID = %s", origS2.MasterID)
	}
}

func TestReplicateRejectsNonMasterTarget(t *testing.T) {
	top := threeMasterTopology()
	if _, err := Replicate(top, "s1", "s2", &Plan{}, false); err == nil {
		t.Fatal("Replicate onto a replica should fail")
	}
}

func TestReplicateDryRunAppendsNoStep(t *testing.T) {
	top := threeMasterTopology()
	plan := &Plan{}
	next, err := Replicate(top, "m2", "s2", plan, true)
	if err != nil {
		t.Fatalf("Replicate: %v", err)
	}
	if plan.Len() != 0 {
		t.Fatalf("dry run should not append a step, got %d", plan.Len())
	}
	s2, _ := next.NodeByID("s2")
	if s2.MasterID != "m2" {
		t.Fatal("dry run should still compute the resulting topology")
	}
}

func TestFailoverPromotesAndRewritesSiblings(t *testing.T) {
	top := threeMasterTopology()
	plan := &Plan{}

	next, err := Failover(top, "s1", ModifierNone, plan, false)
	if err != nil {
		t.Fatalf("Failover: %v", err)
	}

	s1, _ := next.NodeByID("s1")
	if !s1.IsMaster() {
		t.Fatal("s1 should be promoted to master")
	}
	oldMaster, _ := next.NodeByID("m1")
	if !oldMaster.IsSlave() || oldMaster.MasterID != "s1" {
		t.Fatalf("m1 should be demoted to a slave of s1, got %+v", oldMaster)
	}
	sibling, _ := next.NodeByID("s2")
	if sibling.MasterID != "s1" {
		t.Fatalf("s2.MasterID = %s, want s1 (rewritten to follow the promoted node)", sibling.MasterID)
	}
	if plan.Len() != 1 || plan.Steps[0].Kind != CommandFailover || plan.Steps[0].RunNode.ID != "s1" {
		t.Fatalf("plan = %+v, want one FAILOVER on s1", plan.Steps)
	}
}

func TestFailoverRejectsNonReplica(t *testing.T) {
	top := threeMasterTopology()
	if _, err := Failover(top, "m2", ModifierNone, &Plan{}, false); err == nil {
		t.Fatal("Failover on a master should fail")
	}
}

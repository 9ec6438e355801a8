package topology

import (
	"reflect"
	"testing"
)

func master(id, host string, port int) Node {
	return Node{ID: id, Host: host, Port: port, Flags: []Flag{FlagMaster}}
}

func slave(id, host string, port int, masterID string) Node {
	return Node{ID: id, Host: host, Port: port, Flags: []Flag{FlagSlave}, MasterID: masterID}
}

func TestNewOrdersByHostThenPort(t *testing.T) {
	nodes := []Node{
		master("c", "10.0.0.2", 7002),
		master("a", "10.0.0.1", 7001),
		master("b", "10.0.0.1", 6999),
	}
	top := New(GroupByHost, nodes)
	got := make([]string, len(top.Nodes()))
	for i, n := range top.Nodes() {
		got[i] = n.ID
	}
	want := []string{"b", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestMasterOfFailsForNonReplica(t *testing.T) {
	top := New(GroupByHost, []Node{master("m1", "10.0.0.1", 7000)})
	if _, err := top.MasterOf("m1"); err == nil {
		t.Fatal("expected error for non-replica input")
	}
}

func TestSlavesOf(t *testing.T) {
	top := New(GroupByHost, []Node{
		master("m1", "10.0.0.1", 7000),
		slave("s1", "10.0.0.2", 7000, "m1"),
		slave("s2", "10.0.0.3", 7000, "m1"),
		slave("s3", "10.0.0.4", 7000, "m2"),
	})
	got := top.SlavesOf("m1")
	if len(got) != 2 {
		t.Fatalf("SlavesOf(m1) = %d nodes, want 2", len(got))
	}
}

func TestGroupsSimpleModeIsHost(t *testing.T) {
	top := New(GroupByHost, []Node{
		master("m1", "10.0.0.1", 7000),
		master("m2", "10.0.0.2", 7000),
	})
	groups := top.Groups()
	if len(groups) != 2 {
		t.Fatalf("Groups() = %d groups, want 2", len(groups))
	}
}

func TestGroupsDCAwareModeIsDatacenter(t *testing.T) {
	top := New(GroupByDatacenter, []Node{
		{ID: "m1", Host: "10.0.0.1", Port: 7000, Flags: []Flag{FlagMaster}, Datacenter: "dc1"},
		{ID: "m2", Host: "10.0.0.2", Port: 7000, Flags: []Flag{FlagMaster}, Datacenter: "dc1"},
		{ID: "m3", Host: "10.0.0.3", Port: 7000, Flags: []Flag{FlagMaster}, Datacenter: "dc2"},
	})
	groups := top.Groups()
	if len(groups) != 2 {
		t.Fatalf("Groups() = %d groups, want 2", len(groups))
	}
	if len(groups["dc1"]) != 2 {
		t.Fatalf("dc1 has %d nodes, want 2", len(groups["dc1"]))
	}

	subs := top.Subgroups()
	if len(subs["dc1"]) != 2 {
		t.Fatalf("dc1 has %d subgroups, want 2", len(subs["dc1"]))
	}
}

func TestCloneIsIndependent(t *testing.T) {
	top := New(GroupByHost, []Node{master("m1", "10.0.0.1", 7000)})
	clone := top.Clone()
	if err := clone.SetMasterID("m1", "other"); err != nil {
		t.Fatalf("SetMasterID: %v", err)
	}
	orig, _ := top.NodeByID("m1")
	if orig.MasterID != "" {
		t.Fatalf("mutating clone leaked into original: %+v", orig)
	}
}

func TestPromoteAndDemoteRoundtrip(t *testing.T) {
	top := New(GroupByHost, []Node{
		master("m1", "10.0.0.1", 7000),
		slave("s1", "10.0.0.2", 7000, "m1"),
	})
	clone := top.Clone()
	if err := clone.PromoteToMaster("s1"); err != nil {
		t.Fatalf("PromoteToMaster: %v", err)
	}
	if err := clone.DemoteToSlave("m1", "s1"); err != nil {
		t.Fatalf("DemoteToSlave: %v", err)
	}
	promoted, _ := clone.NodeByID("s1")
	demoted, _ := clone.NodeByID("m1")

	if !promoted.IsMaster() || promoted.IsSlave() {
		t.Fatalf("s1 not promoted: %+v", promoted)
	}
	if !demoted.IsSlave() || demoted.IsMaster() {
		t.Fatalf("m1 not demoted: %+v", demoted)
	}
	if demoted.MasterID != "s1" {
		t.Fatalf("m1.MasterID = %q, want s1", demoted.MasterID)
	}
}

func TestNodesUpToPort(t *testing.T) {
	top := New(GroupByHost, []Node{
		master("m1", "10.0.0.1", 7000),
		master("m2", "10.0.0.1", 7210),
		master("m3", "10.0.0.1", 7220),
	})
	restricted := top.NodesUpToPort(7210)
	if restricted.Len() != 2 {
		t.Fatalf("NodesUpToPort(7210) = %d nodes, want 2", restricted.Len())
	}
}

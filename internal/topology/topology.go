package topology

import (
	"fmt"
	"sort"
)

// GroupMode selects what "group" (fault domain) means for the rest of the
// planner. See the package doc comment.
type GroupMode int

const (
	// GroupByHost treats each distinct host IP as its own fault domain
	// ("simple" mode).
	GroupByHost GroupMode = iota
	// GroupByDatacenter treats the Inventory-supplied Datacenter as the
	// fault domain and the host as the subgroup ("DC-aware" mode).
	GroupByDatacenter
)

// Topology is an ordered, indexed set of nodes. The ordering is
// lexicographic on (Host, Port) and is preserved by every operation so that
// candidate searches stay deterministic.
type Topology struct {
	mode  GroupMode
	nodes []Node
	index map[string]int // node ID -> position in nodes
}

// New builds a Topology from an unordered node slice, sorting it into the
// canonical (Host, Port) order.
func New(mode GroupMode, nodes []Node) Topology {
	sorted := append([]Node(nil), nodes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Host != sorted[j].Host {
			return sorted[i].Host < sorted[j].Host
		}
		return sorted[i].Port < sorted[j].Port
	})
	t := Topology{mode: mode, nodes: sorted}
	t.reindex()
	return t
}

func (t *Topology) reindex() {
	t.index = make(map[string]int, len(t.nodes))
	for i, n := range t.nodes {
		t.index[n.ID] = i
	}
}

// Mode reports the grouping mode this Topology was built with.
func (t Topology) Mode() GroupMode { return t.mode }

// Clone returns a deep, independent copy. Every planner primitive starts
// from a clone so that the caller's snapshot is never observed changing.
func (t Topology) Clone() Topology {
	nodes := make([]Node, len(t.nodes))
	for i, n := range t.nodes {
		n.Flags = n.cloneFlags()
		nodes[i] = n
	}
	index := make(map[string]int, len(t.index))
	for k, v := range t.index {
		index[k] = v
	}
	return Topology{mode: t.mode, nodes: nodes, index: index}
}

// Nodes returns the full, ordered node slice. Callers must not mutate the
// returned slice in place; use Clone and the mutators below instead.
func (t Topology) Nodes() []Node { return t.nodes }

// Len reports the number of nodes in the topology.
func (t Topology) Len() int { return len(t.nodes) }

// NodeByID looks up a node by its stable ID.
func (t Topology) NodeByID(id string) (Node, bool) {
	i, ok := t.index[id]
	if !ok {
		return Node{}, false
	}
	return t.nodes[i], true
}

// NodesUpToPort restricts the topology to nodes whose port is <= maxPort.
// Used to hide a migration window of higher-port instances during
// port-reduction mode.
func (t Topology) NodesUpToPort(maxPort int) Topology {
	var kept []Node
	for _, n := range t.nodes {
		if n.Port <= maxPort {
			kept = append(kept, n)
		}
	}
	return New(t.mode, kept)
}

// Masters returns every node currently flagged as master, in topology
// order.
func (t Topology) Masters() []Node {
	var out []Node
	for _, n := range t.nodes {
		if n.IsMaster() {
			out = append(out, n)
		}
	}
	return out
}

// MasterOf returns the master of the given replica. It fails if slaveID
// does not refer to a replica, or its declared master cannot be found.
func (t Topology) MasterOf(slaveID string) (Node, error) {
	slave, ok := t.NodeByID(slaveID)
	if !ok {
		return Node{}, fmt.Errorf("topology: node %s not found", slaveID)
	}
	if !slave.IsSlave() {
		return Node{}, fmt.Errorf("topology: node %s is not a replica", slaveID)
	}
	master, ok := t.NodeByID(slave.MasterID)
	if !ok {
		return Node{}, fmt.Errorf("topology: master %s of replica %s not found", slave.MasterID, slaveID)
	}
	return master, nil
}

// Slaves returns every node currently flagged as a replica, in topology
// order.
func (t Topology) Slaves() []Node {
	var out []Node
	for _, n := range t.nodes {
		if n.IsSlave() {
			out = append(out, n)
		}
	}
	return out
}

// SlavesOf returns the replicas whose MasterID equals masterID, in
// topology order.
func (t Topology) SlavesOf(masterID string) []Node {
	var out []Node
	for _, n := range t.nodes {
		if n.IsSlave() && n.MasterID == masterID {
			out = append(out, n)
		}
	}
	return out
}

// group returns the fault-domain tag for a node according to the
// topology's mode.
func (t Topology) group(n Node) string {
	if t.mode == GroupByDatacenter && n.Datacenter != "" {
		return n.Datacenter
	}
	return n.Host
}

// subgroup returns the subgroup tag for a node: the host in DC-aware mode,
// collapsing to the group otherwise.
func (t Topology) subgroup(n Node) string {
	if t.mode == GroupByDatacenter {
		return n.Host
	}
	return t.group(n)
}

// Groups partitions every node by fault domain. Each slice preserves
// topology order.
func (t Topology) Groups() map[string][]Node {
	out := make(map[string][]Node)
	for _, n := range t.nodes {
		g := t.group(n)
		out[g] = append(out[g], n)
	}
	return out
}

// Subgroups partitions every node by group, then by subgroup within the
// group. In GroupByHost mode every group has exactly one subgroup, itself.
func (t Topology) Subgroups() map[string]map[string][]Node {
	out := make(map[string]map[string][]Node)
	for _, n := range t.nodes {
		g, sg := t.group(n), t.subgroup(n)
		if out[g] == nil {
			out[g] = make(map[string][]Node)
		}
		out[g][sg] = append(out[g][sg], n)
	}
	return out
}

// GroupOf returns the group tag of the given node.
func (t Topology) GroupOf(n Node) string { return t.group(n) }

// GroupOfID returns the group tag of the node with the given ID. It fails
// if the node cannot be found.
func (t Topology) GroupOfID(id string) (string, error) {
	n, ok := t.NodeByID(id)
	if !ok {
		return "", fmt.Errorf("topology: node %s not found", id)
	}
	return t.group(n), nil
}

// SubgroupOf returns the subgroup tag of the given node.
func (t Topology) SubgroupOf(n Node) string { return t.subgroup(n) }

// ServerIPs returns the distinct set of host IPs, sorted.
func (t Topology) ServerIPs() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, n := range t.nodes {
		if _, ok := seen[n.Host]; !ok {
			seen[n.Host] = struct{}{}
			out = append(out, n.Host)
		}
	}
	sort.Strings(out)
	return out
}

// Hosts is an alias for ServerIPs kept for symmetry with the rest of the
// accessor list.
func (t Topology) Hosts() []string { return t.ServerIPs() }

// NodesByHost returns every node on the given host, in topology order.
func (t Topology) NodesByHost(host string) []Node {
	var out []Node
	for _, n := range t.nodes {
		if n.Host == host {
			out = append(out, n)
		}
	}
	return out
}

// --- mutators used exclusively by internal/planner's two primitives ---
//
// These are intentionally narrow: the entire planner is expressed as
// sequences of Replicate and Failover, so Topology exposes just enough
// surface for those two primitives to do their work, not a general
// node-editing API.

// SetMasterID reparents a replica in place. The caller must have already
// cloned the topology; this mutates the receiver's backing node slice.
func (t *Topology) SetMasterID(nodeID, masterID string) error {
	i, ok := t.index[nodeID]
	if !ok {
		return fmt.Errorf("topology: node %s not found", nodeID)
	}
	t.nodes[i].MasterID = masterID
	t.nodes[i].Flags = withFlag(t.nodes[i].Flags, FlagSlave)
	return nil
}

// PromoteToMaster flips a node's role flags to master and clears its
// MasterID, without touching any other node. Failover composes this with
// SetMasterID calls on the old master and siblings.
func (t *Topology) PromoteToMaster(nodeID string) error {
	i, ok := t.index[nodeID]
	if !ok {
		return fmt.Errorf("topology: node %s not found", nodeID)
	}
	t.nodes[i].MasterID = ""
	t.nodes[i].Flags = withoutFlag(withFlag(t.nodes[i].Flags, FlagMaster), FlagSlave)
	return nil
}

// DemoteToSlave flips a node's role flags to slave and reparents it to
// newMasterID.
func (t *Topology) DemoteToSlave(nodeID, newMasterID string) error {
	i, ok := t.index[nodeID]
	if !ok {
		return fmt.Errorf("topology: node %s not found", nodeID)
	}
	t.nodes[i].MasterID = newMasterID
	t.nodes[i].Flags = withoutFlag(withFlag(t.nodes[i].Flags, FlagSlave), FlagMaster)
	return nil
}

// SwapSlots exchanges the SlotsEmpty status of two nodes. Failover uses
// this to move "owns slots" from the demoted master to the promoted
// replica.
func (t *Topology) SwapSlots(aID, bID string) error {
	ai, ok := t.index[aID]
	if !ok {
		return fmt.Errorf("topology: node %s not found", aID)
	}
	bi, ok := t.index[bID]
	if !ok {
		return fmt.Errorf("topology: node %s not found", bID)
	}
	t.nodes[ai].SlotsEmpty, t.nodes[bi].SlotsEmpty = t.nodes[bi].SlotsEmpty, t.nodes[ai].SlotsEmpty
	return nil
}

func withFlag(flags []Flag, f Flag) []Flag {
	for _, existing := range flags {
		if existing == f {
			return flags
		}
	}
	return append(append([]Flag(nil), flags...), f)
}

func withoutFlag(flags []Flag, f Flag) []Flag {
	out := make([]Flag, 0, len(flags))
	for _, existing := range flags {
		if existing != f {
			out = append(out, existing)
		}
	}
	return out
}

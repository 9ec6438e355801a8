// Package topology models a Redis Cluster as a stable, clone-on-write value
// type: an ordered set of nodes with their roles, shard membership and
// fault-domain tags. Every query exposed here is pure: it consumes a
// Topology and returns either a derived view or a new Topology. The only
// exceptions are the few mutators the planner's primitives apply to a
// clone they have just made.
//
// A Node corresponds to one CLUSTER NODES line. Topology.Mode decides what
// "group" means for the rest of the planner: in GroupByHost mode the group
// is the node's IP; in GroupByDatacenter mode it is the datacenter supplied
// by an external Inventory lookup, and the host becomes the subgroup.
package topology

import "fmt"

// Flag is one of the role/link-state flags reported by CLUSTER NODES.
type Flag string

// Flags recognised by the planner. Unknown flags are preserved on the node
// but never inspected.
const (
	FlagMaster Flag = "master"
	FlagSlave  Flag = "slave"
	FlagFail   Flag = "fail"
	FlagNoAddr Flag = "noaddr"
)

// Node is one member of the cluster, enriched with fault-domain tags.
type Node struct {
	ID   string
	Host string
	Port int

	Flags []Flag

	// MasterID is meaningful only when the node carries FlagSlave.
	MasterID string

	// SlotsEmpty is true when the node owns no hash slots. The planner
	// only ever needs "empty or not", never the slot ranges themselves.
	SlotsEmpty bool

	Connected bool

	// Datacenter and Hostname are filled in by an Inventory lookup during
	// snapshot enrichment. Both stay empty when no Inventory ran; grouping
	// then falls back to Host.
	Datacenter string
	Hostname   string
}

// Has reports whether the node carries the given flag.
func (n Node) Has(f Flag) bool {
	for _, flag := range n.Flags {
		if flag == f {
			return true
		}
	}
	return false
}

// IsMaster reports whether the node is currently a master.
func (n Node) IsMaster() bool { return n.Has(FlagMaster) }

// IsSlave reports whether the node is currently a replica.
func (n Node) IsSlave() bool { return n.Has(FlagSlave) }

// IsFailed reports the fail flag.
func (n Node) IsFailed() bool { return n.Has(FlagFail) }

// HasNoAddr reports the noaddr flag.
func (n Node) HasNoAddr() bool { return n.Has(FlagNoAddr) }

// Address returns the "host:port" form used in log messages and plan
// descriptors.
func (n Node) Address() string { return fmt.Sprintf("%s:%d", n.Host, n.Port) }

// cloneFlags returns an independent copy of n.Flags so that mutating the
// clone never aliases the original node's backing array.
func (n Node) cloneFlags() []Flag {
	return append([]Flag(nil), n.Flags...)
}

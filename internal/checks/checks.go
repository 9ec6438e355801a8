// Package checks implements the topology's invariant predicates. Every
// check is a function from a topology.Topology to a structured defect
// report; none of them mutate anything or return a bare bool.
package checks

import (
	"sort"

	"github.com/amaizfinance/redis-rebalance/internal/topology"
)

// Severity is the program exit status in monitoring mode.
type Severity int

const (
	OK Severity = iota
	Warning
	Critical
)

func (s Severity) String() string {
	switch s {
	case Critical:
		return "CRITICAL"
	case Warning:
		return "WARNING"
	default:
		return "OK"
	}
}

// ExitCode returns the monitoring-mode process exit code for this severity.
func (s Severity) ExitCode() int { return int(s) }

// GroupDefect names a master and the replica set a group-colocation or
// concentration defect was found against.
type GroupDefect struct {
	Master   topology.Node
	Replicas []topology.Node
}

// SlaveOfSlaveDefect pairs a replica with the node it currently points to,
// which is itself a replica rather than a true master.
type SlaveOfSlaveDefect struct {
	Slave          topology.Node
	ApparentMaster topology.Node
}

// Report aggregates every check's output for one topology snapshot.
type Report struct {
	SlaveOfSlave          []SlaveOfSlaveDefect
	MasterSlaveInGroup    map[string][]GroupDefect
	SlavesOfMasterInGroup map[string][]GroupDefect
	MasterMissingReplicas map[string]int
	MasterWithoutSlaves   []string
	GroupMasterSkew       map[string]float64
	InGroupMasterSkew     map[string]map[string]float64
	MastersWithoutSlots   []topology.Node
	FailedNodes           []topology.Node
}

// Severity composes the individual checks into one exit status: CRITICAL if
// any correctness defect fired, WARNING if only skew fired, OK otherwise.
func (r Report) Severity() Severity {
	if len(r.SlaveOfSlave) > 0 ||
		len(r.MasterSlaveInGroup) > 0 ||
		len(r.SlavesOfMasterInGroup) > 0 ||
		len(r.MasterMissingReplicas) > 0 ||
		len(r.MasterWithoutSlaves) > 0 {
		return Critical
	}
	if len(r.GroupMasterSkew) > 0 || len(r.InGroupMasterSkew) > 0 {
		return Warning
	}
	return OK
}

// Options bundles the thresholds every check needs.
type Options struct {
	// ReplicasPerMaster is R, the desired replica count.
	ReplicasPerMaster int
	// Skew is the max allowed max%-min% master distribution across groups.
	Skew float64
	// GroupSkew is the same, but within a group across its subgroups
	// (DC-aware mode only).
	GroupSkew float64
	// WaiveEmptyMasters skips the mastersWithoutSlots check when true.
	WaiveEmptyMasters bool
}

// Run evaluates every check against t and returns the aggregated report.
func Run(t topology.Topology, opts Options) Report {
	r := Report{
		SlaveOfSlave:          SlaveOfSlave(t),
		MasterSlaveInGroup:    MasterSlaveInGroup(t, opts.ReplicasPerMaster),
		SlavesOfMasterInGroup: SlavesOfMasterInGroup(t, opts.ReplicasPerMaster),
		MasterMissingReplicas: MasterMissingReplicas(t, opts.ReplicasPerMaster),
		MasterWithoutSlaves:   MasterWithoutSlaves(t),
		GroupMasterSkew:       GroupMasterSkewCheck(t, opts.Skew),
		FailedNodes:           FailedNodes(t),
	}
	if t.Mode() == topology.GroupByDatacenter {
		r.InGroupMasterSkew = InGroupMasterSkewCheck(t, opts.GroupSkew)
	}
	if !opts.WaiveEmptyMasters {
		r.MastersWithoutSlots = MastersWithoutSlots(t)
	}
	return r
}

// SlaveOfSlave reports every replica whose declared master is itself
// flagged as a replica.
func SlaveOfSlave(t topology.Topology) []SlaveOfSlaveDefect {
	var out []SlaveOfSlaveDefect
	for _, n := range t.Slaves() {
		apparent, ok := t.NodeByID(n.MasterID)
		if ok && apparent.IsSlave() {
			out = append(out, SlaveOfSlaveDefect{Slave: n, ApparentMaster: apparent})
		}
	}
	return out
}

// MasterSlaveInGroup reports, per group, every master that shares its
// group with one of its own replicas while that master's replicas in other
// groups number fewer than R.
func MasterSlaveInGroup(t topology.Topology, r int) map[string][]GroupDefect {
	out := make(map[string][]GroupDefect)
	for _, master := range t.Masters() {
		masterGroup := t.GroupOf(master)
		replicas := t.SlavesOf(master.ID)

		var coLocated, elsewhere []topology.Node
		for _, replica := range replicas {
			if t.GroupOf(replica) == masterGroup {
				coLocated = append(coLocated, replica)
			} else {
				elsewhere = append(elsewhere, replica)
			}
		}
		if len(coLocated) == 0 {
			continue
		}
		if distinctGroups(t, elsewhere) >= r {
			continue
		}
		out[masterGroup] = append(out[masterGroup], GroupDefect{Master: master, Replicas: coLocated})
	}
	return out
}

// SlavesOfMasterInGroup reports, per group, every master with >=2 replicas
// concentrated in that one group, when that master's replicas are not
// already spread across >=R distinct groups.
func SlavesOfMasterInGroup(t topology.Topology, r int) map[string][]GroupDefect {
	out := make(map[string][]GroupDefect)
	for _, master := range t.Masters() {
		replicas := t.SlavesOf(master.ID)
		if distinctGroups(t, replicas) >= r {
			continue
		}
		byGroup := make(map[string][]topology.Node)
		for _, replica := range replicas {
			g := t.GroupOf(replica)
			byGroup[g] = append(byGroup[g], replica)
		}
		for g, rs := range byGroup {
			if len(rs) >= 2 {
				out[g] = append(out[g], GroupDefect{Master: master, Replicas: rs})
			}
		}
	}
	return out
}

// MasterMissingReplicas reports every master whose replica count is below
// R, mapped to its actual count.
func MasterMissingReplicas(t topology.Topology, r int) map[string]int {
	out := make(map[string]int)
	for _, master := range t.Masters() {
		n := len(t.SlavesOf(master.ID))
		if n < r {
			out[master.ID] = n
		}
	}
	return out
}

// MasterWithoutSlaves reports every master with zero replicas.
func MasterWithoutSlaves(t topology.Topology) []string {
	var out []string
	for _, master := range t.Masters() {
		if len(t.SlavesOf(master.ID)) == 0 {
			out = append(out, master.ID)
		}
	}
	return out
}

// MastersWithoutSlots reports every master that owns no hash slots.
func MastersWithoutSlots(t topology.Topology) []topology.Node {
	var out []topology.Node
	for _, master := range t.Masters() {
		if master.SlotsEmpty {
			out = append(out, master)
		}
	}
	return out
}

// FailedNodes reports every node flagged fail.
func FailedNodes(t topology.Topology) []topology.Node {
	var out []topology.Node
	for _, n := range t.Nodes() {
		if n.IsFailed() {
			out = append(out, n)
		}
	}
	return out
}

// GroupMasterSkewCheck reports the per-group master percentage whenever the
// overall max%-min% exceeds skew. Returns nil when within bounds.
func GroupMasterSkewCheck(t topology.Topology, skew float64) map[string]float64 {
	counts := masterCountsByGroup(t)
	if SkewPercent(counts) <= skew {
		return nil
	}
	return percentages(counts)
}

// InGroupMasterSkewCheck reports, per group, the per-subgroup master
// percentage whenever that group's internal max%-min% exceeds groupSkew.
// DC-aware mode only.
func InGroupMasterSkewCheck(t topology.Topology, groupSkew float64) map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	subs := t.Subgroups()
	for group, bySubgroup := range subs {
		counts := make(map[string]int, len(bySubgroup))
		for subgroup, nodes := range bySubgroup {
			for _, n := range nodes {
				if n.IsMaster() {
					counts[subgroup]++
				}
			}
		}
		if SkewPercent(counts) > groupSkew {
			out[group] = percentages(counts)
		}
	}
	return out
}

// SkewPercent is the one canonical skew metric used both by the invariant
// checks above and by the planner's rebalance-iteration acceptance rule:
// max% - min% over every group holding at least one master. Groups with
// zero masters are excluded from both the max and the min; an empty input
// reports zero skew.
func SkewPercent(masterCountByGroup map[string]int) float64 {
	pct := percentages(masterCountByGroup)
	if len(pct) == 0 {
		return 0
	}
	min, max := pct[firstKey(pct)], pct[firstKey(pct)]
	for _, p := range pct {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	return max - min
}

func masterCountsByGroup(t topology.Topology) map[string]int {
	counts := make(map[string]int)
	for _, n := range t.Masters() {
		counts[t.GroupOf(n)]++
	}
	return counts
}

// percentages converts raw per-group counts into percentages of the total,
// dropping groups with zero masters.
func percentages(counts map[string]int) map[string]float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return nil
	}
	out := make(map[string]float64, len(counts))
	for g, c := range counts {
		if c == 0 {
			continue
		}
		out[g] = 100 * float64(c) / float64(total)
	}
	return out
}

func firstKey(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0]
}

// distinctGroups counts the number of distinct groups represented among the
// given nodes.
func distinctGroups(t topology.Topology, nodes []topology.Node) int {
	seen := make(map[string]struct{})
	for _, n := range nodes {
		seen[t.GroupOf(n)] = struct{}{}
	}
	return len(seen)
}

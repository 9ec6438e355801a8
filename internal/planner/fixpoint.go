package planner

import (
	"errors"
	"sort"

	"github.com/amaizfinance/redis-rebalance/internal/checks"
	"github.com/amaizfinance/redis-rebalance/internal/topology"
)

// MaxFixPointIterations bounds the fix-only loop.
const MaxFixPointIterations = 1000

// ErrSafetyBoundExceeded is returned by FixOnly when the iteration cap is
// hit before the topology converges to severity <= WARNING. The plan
// accumulated so far is still valid and is not discarded; the caller
// should print it and abort.
var ErrSafetyBoundExceeded = errors.New("planner: fix-point loop exceeded safety bound without converging")

// FixOnly repairs correctness defects one class at a time, restarting from
// the top priority after each successful fix, until severity drops to
// WARNING or OK, or MaxFixPointIterations is exceeded. Unlike the full
// rebalance, it never levels out master counts and never issues a
// FAILOVER.
func FixOnly(topo topology.Topology, opts checks.Options, plan *Plan, dryRun bool) (topology.Topology, error) {
	for i := 0; i < MaxFixPointIterations; i++ {
		report := checks.Run(topo, opts)

		// Slave-of-slave is a structural invariant, fixed ahead of the
		// four priority classes regardless of how it factors into
		// Severity.
		if len(report.SlaveOfSlave) > 0 {
			next, err := fixSlaveOfSlave(topo, report.SlaveOfSlave[0], plan, dryRun)
			if err != nil {
				return topo, err
			}
			topo = next
			continue
		}

		if report.Severity() <= checks.Warning {
			return topo, nil
		}

		switch {
		case len(report.MasterWithoutSlaves) > 0:
			next, err := fixMissingReplica(topo, sortedStrings(report.MasterWithoutSlaves)[0], opts.ReplicasPerMaster, plan, dryRun)
			if err != nil {
				return topo, err
			}
			topo = next

		case len(report.MasterSlaveInGroup) > 0:
			next, err := fixCoLocation(topo, report.MasterSlaveInGroup, opts.ReplicasPerMaster, plan, dryRun)
			if err != nil {
				return topo, err
			}
			topo = next

		case len(report.MasterMissingReplicas) > 0:
			next, err := fixMissingReplica(topo, firstMissingReplicaMaster(report.MasterMissingReplicas), opts.ReplicasPerMaster, plan, dryRun)
			if err != nil {
				return topo, err
			}
			topo = next

		case len(report.SlavesOfMasterInGroup) > 0:
			next, err := fixConcentration(topo, report.SlavesOfMasterInGroup, opts.ReplicasPerMaster, plan, dryRun)
			if err != nil {
				return topo, err
			}
			topo = next

		default:
			// Severity is CRITICAL for a reason FixOnly's priority list
			// does not cover (none exists per the defect table); nothing
			// left to do productively.
			return topo, nil
		}
	}
	return topo, ErrSafetyBoundExceeded
}

func fixSlaveOfSlave(topo topology.Topology, defect checks.SlaveOfSlaveDefect, plan *Plan, dryRun bool) (topology.Topology, error) {
	trueMasterID := walkToTrueMaster(topo, defect.ApparentMaster.ID)
	return Replicate(topo, trueMasterID, defect.Slave.ID, plan, dryRun)
}

// walkToTrueMaster follows MasterID pointers from a replica-of-a-replica
// chain until it reaches a node actually flagged master.
func walkToTrueMaster(topo topology.Topology, nodeID string) string {
	visited := make(map[string]struct{})
	id := nodeID
	for {
		if _, seen := visited[id]; seen {
			return id // cycle; caller's Replicate call will surface the error
		}
		visited[id] = struct{}{}
		n, ok := topo.NodeByID(id)
		if !ok || n.IsMaster() {
			return id
		}
		id = n.MasterID
	}
}

func fixMissingReplica(topo topology.Topology, masterID string, r int, plan *Plan, dryRun bool) (topology.Topology, error) {
	replica, ok := FindReplicaForMaster(topo, masterID, r)
	if !ok {
		return topo, ErrSafetyBoundExceeded
	}
	return Replicate(topo, masterID, replica.ID, plan, dryRun)
}

func fixCoLocation(topo topology.Topology, defects map[string][]checks.GroupDefect, r int, plan *Plan, dryRun bool) (topology.Topology, error) {
	group := sortedStrings(mapKeys(defects))[0]
	defect := defects[group][0]
	offending := defect.Replicas[0]

	newMaster, ok := FindMasterForReplica(topo, offending.ID, nil, r)
	if !ok {
		return topo, ErrSafetyBoundExceeded
	}
	return Replicate(topo, newMaster.ID, offending.ID, plan, dryRun)
}

func fixConcentration(topo topology.Topology, defects map[string][]checks.GroupDefect, r int, plan *Plan, dryRun bool) (topology.Topology, error) {
	group := sortedStrings(mapKeys(defects))[0]
	defect := defects[group][0]
	// Keep the first replica in place; reparent the rest (the
	// concentration surplus) onto a different master entirely.
	if len(defect.Replicas) < 2 {
		return topo, ErrSafetyBoundExceeded
	}
	surplus := defect.Replicas[1]

	excluded := map[string]struct{}{group: {}}
	newMaster, ok := FindMasterForReplica(topo, surplus.ID, excluded, r)
	if !ok {
		return topo, ErrSafetyBoundExceeded
	}
	return Replicate(topo, newMaster.ID, surplus.ID, plan, dryRun)
}

func firstMissingReplicaMaster(m map[string]int) string {
	keys := mapKeys(m)
	sort.Strings(keys)
	return keys[0]
}

func mapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func sortedStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

package planner

import (
	"fmt"
	"sort"

	"github.com/amaizfinance/redis-rebalance/internal/topology"
)

// MaxPortReductionPasses bounds PortReduction the same way the balancer is
// bounded: one master retired per pass, so this comfortably covers any
// realistic cluster size.
const MaxPortReductionPasses = 1000

// PortReduction retires every master above maxPort by failing it over onto
// an eligible replica at or below maxPort, reparenting one first if none
// of its current replicas qualify. It runs before any balancing pass.
func PortReduction(topo topology.Topology, maxPort int, plan *Plan, dryRun bool) (topology.Topology, error) {
	for pass := 0; pass < MaxPortReductionPasses; pass++ {
		target, ok := firstHighPortMaster(topo, maxPort)
		if !ok {
			return topo, nil
		}

		if replica, ok := firstEligibleReplica(topo, target.ID, maxPort); ok {
			next, err := Failover(topo, replica.ID, ModifierNone, plan, dryRun)
			if err != nil {
				return topo, err
			}
			topo = next
			continue
		}

		candidate, ok := firstLowPortReplicaAnywhere(topo, maxPort)
		if !ok {
			return topo, fmt.Errorf("planner: no replica at or below port %d available to retire master %s", maxPort, target.Address())
		}
		next, err := Replicate(topo, target.ID, candidate.ID, plan, dryRun)
		if err != nil {
			return topo, err
		}
		next, err = Failover(next, candidate.ID, ModifierNone, plan, dryRun)
		if err != nil {
			return topo, err
		}
		topo = next
	}
	return topo, fmt.Errorf("planner: port-reduction exceeded %d passes", MaxPortReductionPasses)
}

func firstHighPortMaster(topo topology.Topology, maxPort int) (topology.Node, bool) {
	masters := append([]topology.Node(nil), topo.Masters()...)
	sort.SliceStable(masters, func(i, j int) bool { return masters[i].ID < masters[j].ID })
	for _, m := range masters {
		if m.Port > maxPort {
			return m, true
		}
	}
	return topology.Node{}, false
}

func firstEligibleReplica(topo topology.Topology, masterID string, maxPort int) (topology.Node, bool) {
	for _, r := range topo.SlavesOf(masterID) {
		if r.Port <= maxPort {
			return r, true
		}
	}
	return topology.Node{}, false
}

func firstLowPortReplicaAnywhere(topo topology.Topology, maxPort int) (topology.Node, bool) {
	for _, n := range topo.Slaves() {
		if n.Port <= maxPort {
			return n, true
		}
	}
	return topology.Node{}, false
}

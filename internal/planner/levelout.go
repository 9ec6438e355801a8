package planner

import (
	"fmt"
	"sort"

	"github.com/amaizfinance/redis-rebalance/internal/topology"
)

// maxLevelOutPasses bounds the level-out-masters loop so a pathological
// input (e.g. one the feasibility check should have rejected but didn't)
// cannot hang the planner.
const maxLevelOutPasses = 1000

// LevelOutMasters drives the number of masters per group toward the
// floor/ceiling target implied by M masters over G groups. In DC-aware
// mode call it twice: once with mode GroupByDatacenter to
// distribute masters across datacenters, then once more scoped to each
// datacenter's hosts to distribute that datacenter's quota across
// subgroups (the caller drives that second pass; this function always
// balances by Topology.Groups()).
func LevelOutMasters(topo topology.Topology, plan *Plan, dryRun bool) (topology.Topology, error) {
	for pass := 0; pass < maxLevelOutPasses; pass++ {
		groups := topo.Groups()
		targets := computeTargets(groups)
		actual := actualMasterCounts(groups)

		progressed := false
		for _, g := range sortedKeys(targets) {
			skew := targets[g] - actual[g]
			if skew <= 0 {
				continue
			}
			neighbour, ok := pickSurplusNeighbour(groups, targets, actual, g)
			if !ok {
				continue
			}

			// Preview the shift against a scratch plan so the acceptance
			// check sees the resulting skew before anything is committed
			// to the real plan.
			preview, replicaID, ok, err := shiftMaster(topo, g, neighbour, &Plan{}, true)
			if err != nil {
				return topo, err
			}
			if !ok || !AcceptFailover(topo, preview, replicaID, plan) {
				continue
			}

			next, _, ok, err := shiftMaster(topo, g, neighbour, plan, dryRun)
			if err != nil {
				return topo, err
			}
			if ok {
				topo = next
				progressed = true
				break
			}
		}
		if !progressed {
			return topo, nil
		}
	}
	return topo, fmt.Errorf("planner: level-out-masters exceeded %d passes", maxLevelOutPasses)
}

// computeTargets assigns each group floor(M/G) masters, with the remainder
// (M mod G) going to the first M-mod-G groups in sorted order, then caps
// any target exceeding that group's node count and redistributes the
// surplus to the next-lightest uncapped groups, recursively, until every
// target fits its group's capacity.
func computeTargets(groups map[string][]topology.Node) map[string]int {
	keys := sortedGroupKeys(groups)
	total := 0
	for _, nodes := range groups {
		for _, n := range nodes {
			if n.IsMaster() {
				total++
			}
		}
	}
	capacity := make(map[string]int, len(keys))
	for _, g := range keys {
		capacity[g] = len(groups[g])
	}

	targets := make(map[string]int, len(keys))
	base, rem := total/len(keys), total%len(keys)
	for i, g := range keys {
		targets[g] = base
		if i < rem {
			targets[g]++
		}
	}

	capped := make(map[string]bool, len(keys))
	for {
		excess := 0
		for _, g := range keys {
			if capped[g] {
				continue
			}
			if targets[g] > capacity[g] {
				excess += targets[g] - capacity[g]
				targets[g] = capacity[g]
				capped[g] = true
			}
		}
		if excess == 0 {
			return targets
		}
		// redistribute to the lightest uncapped groups, round-robin
		open := openGroupsByTarget(keys, targets, capped)
		if len(open) == 0 {
			return targets // nowhere left to put the surplus; capacity is globally short
		}
		for excess > 0 {
			progressedThisRound := false
			for _, g := range open {
				if excess == 0 {
					break
				}
				if capped[g] {
					continue
				}
				targets[g]++
				excess--
				progressedThisRound = true
			}
			if !progressedThisRound {
				break
			}
			open = openGroupsByTarget(keys, targets, capped)
		}
	}
}

func openGroupsByTarget(keys []string, targets map[string]int, capped map[string]bool) []string {
	var open []string
	for _, g := range keys {
		if !capped[g] {
			open = append(open, g)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		if targets[open[i]] != targets[open[j]] {
			return targets[open[i]] < targets[open[j]]
		}
		return open[i] < open[j]
	})
	return open
}

func sortedGroupKeys(groups map[string][]topology.Node) []string {
	keys := make([]string, 0, len(groups))
	for g := range groups {
		keys = append(keys, g)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func actualMasterCounts(groups map[string][]topology.Node) map[string]int {
	counts := make(map[string]int, len(groups))
	for g, nodes := range groups {
		for _, n := range nodes {
			if n.IsMaster() {
				counts[g]++
			}
		}
	}
	return counts
}

// pickSurplusNeighbour finds a group with actual > target, preferring the
// largest surplus, ties broken lexicographically.
func pickSurplusNeighbour(groups map[string][]topology.Node, targets, actual map[string]int, exclude string) (string, bool) {
	type candidate struct {
		group   string
		surplus int
	}
	var candidates []candidate
	for _, g := range sortedGroupKeys(groups) {
		if g == exclude {
			continue
		}
		if s := actual[g] - targets[g]; s > 0 {
			candidates = append(candidates, candidate{g, s})
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].surplus != candidates[j].surplus {
			return candidates[i].surplus > candidates[j].surplus
		}
		return candidates[i].group < candidates[j].group
	})
	return candidates[0].group, true
}

// shiftMaster moves exactly one master unit from sourceGroup to
// targetGroup. It prefers a replica in targetGroup whose current master
// lives in sourceGroup (a single Failover does the whole job); failing
// that, it reparents any replica in targetGroup onto a master in
// sourceGroup first, then fails it over.
func shiftMaster(topo topology.Topology, targetGroup, sourceGroup string, plan *Plan, dryRun bool) (topology.Topology, string, bool, error) {
	targetNodes := topo.Groups()[targetGroup]

	for _, n := range targetNodes {
		if !n.IsSlave() {
			continue
		}
		master, err := topo.MasterOf(n.ID)
		if err != nil {
			continue
		}
		if topo.GroupOf(master) == sourceGroup {
			next, err := Failover(topo, n.ID, ModifierNone, plan, dryRun)
			return next, n.ID, err == nil, err
		}
	}

	sourceMasters := topo.Groups()[sourceGroup]
	var sourceMasterID string
	for _, n := range sourceMasters {
		if n.IsMaster() {
			sourceMasterID = n.ID
			break
		}
	}
	if sourceMasterID == "" {
		return topo, "", false, nil
	}
	for _, n := range targetNodes {
		if !n.IsSlave() {
			continue
		}
		next, err := Replicate(topo, sourceMasterID, n.ID, plan, dryRun)
		if err != nil {
			continue
		}
		next, err = Failover(next, n.ID, ModifierNone, plan, dryRun)
		if err != nil {
			return topo, "", false, err
		}
		return next, n.ID, true, nil
	}
	return topo, "", false, nil
}

package planner

import (
	"fmt"
	"sort"

	"github.com/amaizfinance/redis-rebalance/internal/topology"
)

// LevelOutSlaves ensures every master ends up with R replicas, each in a
// distinct group different from the master's own. Masters already
// satisfying that with exactly R replicas are skipped. For the rest, it
// first tries soft swaps (exchange a redundant replica for one the shard
// actually needs, two Replicate calls, no escalation needed), then falls
// back to reparenting any eligible replica found by FindReplicaForMaster.
// If R distinct groups still cannot be assembled for a master, planning
// fails naming that master.
func LevelOutSlaves(topo topology.Topology, r int, plan *Plan, dryRun bool) (topology.Topology, error) {
	masters := append([]topology.Node(nil), topo.Masters()...)
	sort.SliceStable(masters, func(i, j int) bool { return masters[i].ID < masters[j].ID })

	for _, master := range masters {
		for {
			ownGroup := topo.GroupOf(master)
			have := distinctReplicaGroups(topo, master.ID, ownGroup)
			needed := r - len(have)
			if needed <= 0 {
				break
			}

			if next, ok := trySoftSwap(topo, master.ID, ownGroup, have, plan, dryRun); ok {
				topo = next
				continue
			}

			replica, ok := FindReplicaForMaster(topo, master.ID, r)
			if !ok {
				return topo, fmt.Errorf("planner: cannot find %d distinct-group replicas for master %s (%s)", r, master.ID, master.Address())
			}
			next, err := Replicate(topo, master.ID, replica.ID, plan, dryRun)
			if err != nil {
				return topo, err
			}
			topo = next
		}
	}
	return topo, nil
}

func distinctReplicaGroups(topo topology.Topology, masterID, ownGroup string) map[string]struct{} {
	have := make(map[string]struct{})
	for _, replica := range topo.SlavesOf(masterID) {
		g := topo.GroupOf(replica)
		if g != ownGroup {
			have[g] = struct{}{}
		}
	}
	return have
}

// trySoftSwap looks for a donor master whose replica set contains a group
// this shard still needs, and who would in turn benefit from one of this
// shard's already-satisfied (surplus) groups. When found, it executes the
// exchange as two Replicate calls: the donor's replica moves to masterID,
// and one of masterID's existing replicas (in a group the donor lacks)
// moves to the donor.
func trySoftSwap(topo topology.Topology, masterID, ownGroup string, needGroups map[string]struct{}, plan *Plan, dryRun bool) (topology.Topology, bool) {
	if len(needGroups) == 0 {
		return topo, false
	}
	ourReplicas := topo.SlavesOf(masterID)
	ourGroups := make(map[string]struct{}, len(ourReplicas))
	for _, r := range ourReplicas {
		ourGroups[topo.GroupOf(r)] = struct{}{}
	}

	donors := append([]topology.Node(nil), topo.Masters()...)
	sort.SliceStable(donors, func(i, j int) bool { return donors[i].ID < donors[j].ID })

	for _, donor := range donors {
		if donor.ID == masterID {
			continue
		}
		donorGroup := topo.GroupOf(donor)
		donorReplicas := topo.SlavesOf(donor.ID)
		if len(donorReplicas) <= 1 {
			continue // giving one up would leave the donor with none
		}

		var giveToUs *topology.Node
		for i, dr := range donorReplicas {
			g := topo.GroupOf(dr)
			if _, needed := needGroups[g]; needed && g != donorGroup {
				candidate := donorReplicas[i]
				giveToUs = &candidate
				break
			}
		}
		if giveToUs == nil {
			continue
		}

		var giveToDonor *topology.Node
		for i, our := range ourReplicas {
			g := topo.GroupOf(our)
			if g == ownGroup || g == donorGroup {
				continue
			}
			donorHasGroup := false
			for _, dr := range donorReplicas {
				if topo.GroupOf(dr) == g {
					donorHasGroup = true
					break
				}
			}
			if !donorHasGroup {
				candidate := ourReplicas[i]
				giveToDonor = &candidate
				break
			}
		}
		if giveToDonor == nil {
			continue
		}

		next, err := Replicate(topo, masterID, giveToUs.ID, plan, dryRun)
		if err != nil {
			continue
		}
		next, err = Replicate(next, donor.ID, giveToDonor.ID, plan, dryRun)
		if err != nil {
			continue
		}
		return next, true
	}
	return topo, false
}

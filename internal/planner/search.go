package planner

import (
	"sort"

	"github.com/amaizfinance/redis-rebalance/internal/checks"
	"github.com/amaizfinance/redis-rebalance/internal/topology"
)

// sortedGroupsByMasterCount returns the keys of counts sorted ascending by
// count, ties broken lexicographically: the deterministic iteration order
// every candidate search in this file relies on.
func sortedGroupsByMasterCount(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] < counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

func masterCountPerGroupExcluding(t topology.Topology, exclude string) map[string]int {
	counts := make(map[string]int)
	for g := range t.Groups() {
		if g != exclude {
			counts[g] = 0
		}
	}
	for _, m := range t.Masters() {
		g := t.GroupOf(m)
		if g == exclude {
			continue
		}
		counts[g]++
	}
	return counts
}

func masterCountPerHost(t topology.Topology, nodes []topology.Node) map[string]int {
	counts := make(map[string]int)
	for _, n := range nodes {
		counts[n.Host] = 0
	}
	for _, n := range nodes {
		if n.IsMaster() {
			counts[n.Host]++
		}
	}
	return counts
}

// FindFailoverCandidate picks a replica of masterID that, if promoted,
// would pull master-load toward a less-loaded group. Groups
// are visited in ascending master-count order; within a group, hosts are
// visited in ascending master-count order (this only matters in DC-aware
// mode, where a group holds more than one host). Returns ok=false if no
// replica of masterID lives outside masterID's own group.
func FindFailoverCandidate(t topology.Topology, masterID string) (topology.Node, bool) {
	master, ok := t.NodeByID(masterID)
	if !ok {
		return topology.Node{}, false
	}
	ownGroup := t.GroupOf(master)
	replicas := t.SlavesOf(masterID)
	if len(replicas) == 0 {
		return topology.Node{}, false
	}

	byGroup := make(map[string][]topology.Node)
	for _, r := range replicas {
		g := t.GroupOf(r)
		if g == ownGroup {
			continue
		}
		byGroup[g] = append(byGroup[g], r)
	}
	if len(byGroup) == 0 {
		return topology.Node{}, false
	}

	counts := masterCountPerGroupExcluding(t, ownGroup)
	for _, g := range sortedGroupsByMasterCount(counts) {
		candidates, ok := byGroup[g]
		if !ok || len(candidates) == 0 {
			continue
		}
		hostCounts := masterCountPerHost(t, t.Groups()[g])
		sort.SliceStable(candidates, func(i, j int) bool {
			hi, hj := candidates[i].Host, candidates[j].Host
			if hostCounts[hi] != hostCounts[hj] {
				return hostCounts[hi] < hostCounts[hj]
			}
			return false // topology order (already stable) breaks remaining ties
		})
		return candidates[0], true
	}
	return topology.Node{}, false
}

// FindReplicaForMaster picks a replica currently attached elsewhere to
// reparent onto masterID. First preference goes to a replica
// involved in a slavesOfMasterInGroup defect whose group is not already
// occupied by another replica of masterID and differs from masterID's
// group. Failing that, it falls back to the replica of the
// most-replicated master whose group is still unrepresented among
// masterID's current replicas.
func FindReplicaForMaster(t topology.Topology, masterID string, r int) (topology.Node, bool) {
	master, ok := t.NodeByID(masterID)
	if !ok {
		return topology.Node{}, false
	}
	ownGroup := t.GroupOf(master)
	occupied := occupiedGroups(t, masterID)

	if candidate, ok := findFromGroupDefect(t, masterID, ownGroup, occupied, r); ok {
		return candidate, true
	}

	mastersByReplicaCountDesc := t.Masters()
	sort.SliceStable(mastersByReplicaCountDesc, func(i, j int) bool {
		return len(t.SlavesOf(mastersByReplicaCountDesc[i].ID)) > len(t.SlavesOf(mastersByReplicaCountDesc[j].ID))
	})
	for _, other := range mastersByReplicaCountDesc {
		if other.ID == masterID {
			continue
		}
		for _, replica := range t.SlavesOf(other.ID) {
			g := t.GroupOf(replica)
			if g == ownGroup {
				continue
			}
			if _, taken := occupied[g]; taken {
				continue
			}
			return replica, true
		}
	}
	return topology.Node{}, false
}

func occupiedGroups(t topology.Topology, masterID string) map[string]struct{} {
	occupied := make(map[string]struct{})
	for _, replica := range t.SlavesOf(masterID) {
		occupied[t.GroupOf(replica)] = struct{}{}
	}
	return occupied
}

func findFromGroupDefect(t topology.Topology, masterID, ownGroup string, occupied map[string]struct{}, r int) (topology.Node, bool) {
	defects := checks.SlavesOfMasterInGroup(t, r)

	groups := make([]string, 0, len(defects))
	for g := range defects {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	for _, g := range groups {
		if g == ownGroup {
			continue
		}
		if _, taken := occupied[g]; taken {
			continue
		}
		for _, defect := range defects[g] {
			if defect.Master.ID == masterID {
				continue
			}
			for _, replica := range defect.Replicas {
				return replica, true
			}
		}
	}
	return topology.Node{}, false
}

// FindMasterForReplica picks a master to reparent replicaID onto,
// excluding replicaID's own group and any group named in excludedGroups.
// Masters are visited in ascending current-replica-count
// order; a master with no replica in replicaID's group is strictly
// preferred, but one that already has a replica there is still accepted
// provided it still has >= R replicas in other groups.
func FindMasterForReplica(t topology.Topology, replicaID string, excludedGroups map[string]struct{}, r int) (topology.Node, bool) {
	replica, ok := t.NodeByID(replicaID)
	if !ok {
		return topology.Node{}, false
	}
	replicaGroup := t.GroupOf(replica)

	masters := t.Masters()
	sort.SliceStable(masters, func(i, j int) bool {
		return len(t.SlavesOf(masters[i].ID)) < len(t.SlavesOf(masters[j].ID))
	})

	var fallback *topology.Node
	for i := range masters {
		m := masters[i]
		g := t.GroupOf(m)
		if g == replicaGroup {
			continue
		}
		if _, excluded := excludedGroups[g]; excluded {
			continue
		}

		hasReplicaInGroup := false
		otherGroupReplicas := 0
		for _, existing := range t.SlavesOf(m.ID) {
			if t.GroupOf(existing) == replicaGroup {
				hasReplicaInGroup = true
			} else {
				otherGroupReplicas++
			}
		}
		if !hasReplicaInGroup {
			return m, true
		}
		if fallback == nil && otherGroupReplicas >= r {
			candidate := m
			fallback = &candidate
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return topology.Node{}, false
}

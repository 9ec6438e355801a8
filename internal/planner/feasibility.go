package planner

import (
	"sort"

	"github.com/amaizfinance/redis-rebalance/internal/topology"
)

// Feasible implements the distribution feasibility test: a shard with R
// desired replicas and the given group sizes (counts of nodes per fault
// domain, the master's own group included) can be fully
// replicated across distinct groups iff repeatedly picking R+1 distinct
// groups and decrementing one node from each never runs out of groups
// before slots are filled.
//
// Equivalently (and this is what is implemented): sort sizes descending and
// greedily consume the R+1 largest groups per round; feasible iff every
// round still has >= R+1 surviving groups until the groups are exhausted.
func Feasible(groupSizes []int, r int) bool {
	if r <= 0 {
		return true
	}
	sizes := append([]int(nil), groupSizes...)
	for {
		// drop exhausted groups
		n := 0
		for _, s := range sizes {
			if s > 0 {
				sizes[n] = s
				n++
			}
		}
		sizes = sizes[:n]
		if len(sizes) == 0 {
			return true
		}
		if len(sizes) < r+1 {
			return false
		}
		sort.Sort(sort.Reverse(sort.IntSlice(sizes)))
		for i := 0; i < r+1; i++ {
			sizes[i]--
		}
	}
}

// GroupSizesExcluding returns the size (node count) of every group other
// than excludeGroup, as an unordered slice suitable for Feasible.
func GroupSizesExcluding(groups map[string][]topology.Node, excludeGroup string) []int {
	var sizes []int
	for g, nodes := range groups {
		if g == excludeGroup {
			continue
		}
		sizes = append(sizes, len(nodes))
	}
	return sizes
}

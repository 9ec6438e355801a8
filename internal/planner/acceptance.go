package planner

import (
	"github.com/amaizfinance/redis-rebalance/internal/checks"
	"github.com/amaizfinance/redis-rebalance/internal/topology"
)

// AcceptFailover implements the rebalance-iteration acceptance rule: a
// proposed failover of replicaID is accepted only if (a) the replica has
// not already been scheduled for failover in this plan, and (b) promoting
// it would strictly reduce the master-distribution skew, measured once,
// canonically, via checks.SkewPercent on both sides of the comparison.
func AcceptFailover(before topology.Topology, after topology.Topology, replicaID string, plan *Plan) bool {
	if plan.ReplicaScheduledForFailover(replicaID) {
		return false
	}
	currentSkew := checks.SkewPercent(groupMasterCounts(before))
	proposedSkew := checks.SkewPercent(groupMasterCounts(after))
	return proposedSkew < currentSkew
}

func groupMasterCounts(t topology.Topology) map[string]int {
	counts := make(map[string]int)
	for _, m := range t.Masters() {
		counts[t.GroupOf(m)]++
	}
	return counts
}

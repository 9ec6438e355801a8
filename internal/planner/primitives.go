package planner

import (
	"fmt"

	"github.com/amaizfinance/redis-rebalance/internal/topology"
)

// Replicate is the plan-replicate primitive: it reparents replicaID to
// masterID. masterID must name a master, replicaID must name
// a replica, and the two must be distinct. The returned topology is always
// a clone of topo; the input is never observed changing. A step is
// appended to plan unless dryRun is set.
func Replicate(topo topology.Topology, masterID, replicaID string, plan *Plan, dryRun bool) (topology.Topology, error) {
	if masterID == replicaID {
		return topo, fmt.Errorf("planner: cannot replicate %s to itself", masterID)
	}
	master, ok := topo.NodeByID(masterID)
	if !ok {
		return topo, fmt.Errorf("planner: master %s not found", masterID)
	}
	if !master.IsMaster() {
		return topo, fmt.Errorf("planner: %s is not a master", masterID)
	}
	replica, ok := topo.NodeByID(replicaID)
	if !ok {
		return topo, fmt.Errorf("planner: replica %s not found", replicaID)
	}
	if !replica.IsSlave() {
		return topo, fmt.Errorf("planner: %s is not a replica", replicaID)
	}

	next := topo.Clone()
	if err := next.SetMasterID(replicaID, masterID); err != nil {
		return topo, err
	}

	if !dryRun {
		plan.Append(Step{
			RunNode:  replica,
			Affected: master,
			Kind:     CommandReplicate,
			Message:  fmt.Sprintf("attach %s as a replica of %s", replica.Address(), master.Address()),
		})
	}
	return next, nil
}

// Failover is the plan-failover primitive: it promotes replicaID,
// demotes its current master, and rewrites every sibling
// replica's MasterID to point at the promoted node. replicaID must name a
// replica whose current master exists. A CLUSTER FAILOVER [modifier] step
// is appended to plan, addressed to the promoted node, unless dryRun is
// set.
func Failover(topo topology.Topology, replicaID string, modifier Modifier, plan *Plan, dryRun bool) (topology.Topology, error) {
	replica, ok := topo.NodeByID(replicaID)
	if !ok {
		return topo, fmt.Errorf("planner: replica %s not found", replicaID)
	}
	if !replica.IsSlave() {
		return topo, fmt.Errorf("planner: %s is not a replica", replicaID)
	}
	oldMaster, ok := topo.NodeByID(replica.MasterID)
	if !ok {
		return topo, fmt.Errorf("planner: master %s of replica %s not found", replica.MasterID, replicaID)
	}

	siblings := topo.SlavesOf(oldMaster.ID)

	next := topo.Clone()
	if err := next.SwapSlots(oldMaster.ID, replicaID); err != nil {
		return topo, err
	}
	if err := next.PromoteToMaster(replicaID); err != nil {
		return topo, err
	}
	if err := next.DemoteToSlave(oldMaster.ID, replicaID); err != nil {
		return topo, err
	}
	for _, sibling := range siblings {
		if sibling.ID == replicaID {
			continue
		}
		if err := next.SetMasterID(sibling.ID, replicaID); err != nil {
			return topo, err
		}
	}

	if !dryRun {
		plan.Append(Step{
			RunNode:  replica,
			Affected: replica,
			Kind:     CommandFailover,
			Modifier: modifier,
			Message:  fmt.Sprintf("promote %s, demoting former master %s", replica.Address(), oldMaster.Address()),
		})
	}
	return next, nil
}

// Package rebalance composes the planner, invariant checks, and a
// config.Options into the two run modes the CLI exposes: full rebalance
// and fix-only. It is the one place that is allowed to know about both
// internal/planner and internal/checks at once plus the outer config
// surface, tying every phase of a run together the way a reconciler
// sequences its own phases.
package rebalance

import (
	"errors"
	"fmt"
	"sort"

	"github.com/amaizfinance/redis-rebalance/internal/checks"
	"github.com/amaizfinance/redis-rebalance/internal/config"
	"github.com/amaizfinance/redis-rebalance/internal/planner"
	"github.com/amaizfinance/redis-rebalance/internal/topology"
)

// ErrInfeasible is returned when the cluster does not have enough fault
// domains to satisfy the requested replica count, before any command is
// emitted.
var ErrInfeasible = errors.New("rebalance: distribution is not feasible for the requested replica count")

// Result bundles everything the CLI needs to report and, if the operator
// confirms, execute.
type Result struct {
	Before checks.Report
	After  checks.Report
	Final  topology.Topology
	Plan   *planner.Plan
}

// Run performs one planning pass: feasibility gate, optional
// port-reduction, then either FixOnly or the full level-out-masters /
// level-out-slaves balancer, re-checking the result afterward.
func Run(topo topology.Topology, opts config.Options) (Result, error) {
	before := checks.Run(topo, opts.CheckOptions())

	if opts.Replicas > 0 && !feasible(topo, opts.Replicas) {
		return Result{Before: before}, ErrInfeasible
	}

	plan := &planner.Plan{}
	working := topo

	var err error
	if opts.PortReductionTarget > 0 {
		working, err = planner.PortReduction(working, opts.PortReductionTarget, plan, opts.DryRun)
		if err != nil {
			return Result{Before: before, Final: working, Plan: plan}, err
		}
	}

	if opts.FixOnly {
		working, err = planner.FixOnly(working, opts.CheckOptions(), plan, opts.DryRun)
	} else {
		working, err = fullRebalance(working, opts, plan)
	}
	if err != nil {
		return Result{Before: before, Final: working, Plan: plan}, err
	}

	after := checks.Run(working, opts.CheckOptions())
	return Result{Before: before, After: after, Final: working, Plan: plan}, nil
}

// fullRebalance drives level-out-masters (twice, in DC-aware mode: once
// across datacenters and once more per datacenter across hosts) followed
// by level-out-slaves.
func fullRebalance(topo topology.Topology, opts config.Options, plan *planner.Plan) (topology.Topology, error) {
	topo, err := planner.LevelOutMasters(topo, plan, opts.DryRun)
	if err != nil {
		return topo, err
	}

	if topo.Mode() == topology.GroupByDatacenter {
		topo, err = levelOutSubgroups(topo, plan, opts.DryRun)
		if err != nil {
			return topo, err
		}
	}

	if opts.Replicas > 0 {
		topo, err = planner.LevelOutSlaves(topo, opts.Replicas, plan, opts.DryRun)
		if err != nil {
			return topo, err
		}
	}
	return topo, nil
}

// levelOutSubgroups runs level-out-masters once per datacenter, scoped to
// that datacenter's hosts, so each DC's own master quota is then spread
// evenly across its hosts. Host-level balancing decisions (which replica fails over) are computed
// against a host-grouped view of just that DC's nodes, then replayed
// against the full topology by node ID so the rest of the cluster is
// unaffected.
func levelOutSubgroups(topo topology.Topology, plan *planner.Plan, dryRun bool) (topology.Topology, error) {
	for _, dc := range sortedDatacenters(topo) {
		nodes := nodesInDatacenter(topo, dc)
		if len(nodes) == 0 {
			continue
		}
		sub := topology.New(topology.GroupByHost, nodes)
		leveled, err := planner.LevelOutMasters(sub, plan, dryRun)
		if err != nil {
			return topo, fmt.Errorf("rebalance: leveling hosts in datacenter %s: %w", dc, err)
		}
		topo = mergeRoles(topo, leveled)
	}
	return topo, nil
}

// mergeRoles copies each node's role-bearing fields (Flags, MasterID) from
// src into dst by ID, leaving every node not present in src untouched.
func mergeRoles(dst, src topology.Topology) topology.Topology {
	next := dst.Clone()
	for _, n := range src.Nodes() {
		cur, ok := next.NodeByID(n.ID)
		if !ok {
			continue
		}
		switch {
		case n.IsMaster() && !cur.IsMaster():
			_ = next.PromoteToMaster(n.ID)
		case n.IsSlave() && cur.IsMaster():
			_ = next.DemoteToSlave(n.ID, n.MasterID)
		case n.IsSlave():
			_ = next.SetMasterID(n.ID, n.MasterID)
		}
	}
	return next
}

func feasible(topo topology.Topology, r int) bool {
	sizes := planner.GroupSizesExcluding(topo.Groups(), "")
	return planner.Feasible(sizes, r)
}

func sortedDatacenters(topo topology.Topology) []string {
	seen := make(map[string]struct{})
	for _, n := range topo.Nodes() {
		seen[topo.GroupOf(n)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for dc := range seen {
		out = append(out, dc)
	}
	sort.Strings(out)
	return out
}

func nodesInDatacenter(topo topology.Topology, dc string) []topology.Node {
	var out []topology.Node
	for _, n := range topo.Nodes() {
		if topo.GroupOf(n) == dc {
			out = append(out, n)
		}
	}
	return out
}

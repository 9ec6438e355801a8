// Package planner implements a deterministic topology transform: two
// primitives (Replicate, Failover), the candidate search that decides
// their operands, the level-out-masters/level-out-slaves balancer, the
// fix-point loop used in fix-only mode, and port-reduction mode. Every
// exported entry point here is pure with respect to the wire:
// it consumes a topology.Topology and returns a new one plus an appended
// Plan, and never contacts a server.
package planner

import (
	"fmt"

	"github.com/amaizfinance/redis-rebalance/internal/topology"
)

// CommandKind is one of the two primitives the wire surface recognises.
type CommandKind string

const (
	CommandReplicate CommandKind = "REPLICATE"
	CommandFailover  CommandKind = "FAILOVER"
)

// Modifier is an optional argument to CLUSTER FAILOVER.
type Modifier string

const (
	ModifierNone     Modifier = ""
	ModifierTakeover Modifier = "TAKEOVER"
	ModifierForce    Modifier = "FORCE"
)

// Step is one command descriptor in a Plan.
type Step struct {
	// RunNode is the node the command must be issued against.
	RunNode topology.Node
	// Affected is the node the command targets conceptually: the new
	// master for a REPLICATE, the node being promoted for a FAILOVER.
	Affected topology.Node
	Kind     CommandKind
	Modifier Modifier
	Message  string
}

// Plan is the ordered sequence of commands the planner has produced so far.
type Plan struct {
	Steps []Step
}

// Append adds one step to the plan.
func (p *Plan) Append(s Step) { p.Steps = append(p.Steps, s) }

// Len reports how many steps are in the plan.
func (p *Plan) Len() int { return len(p.Steps) }

// ReplicaScheduledForFailover reports whether replicaID already has a
// FAILOVER step in this plan. The acceptance rule uses this to never
// schedule the same replica twice in one run.
func (p *Plan) ReplicaScheduledForFailover(replicaID string) bool {
	for _, s := range p.Steps {
		if s.Kind == CommandFailover && s.Affected.ID == replicaID {
			return true
		}
	}
	return false
}

// String renders a step the way the executor and CLI print it to the
// operator.
func (s Step) String() string {
	switch s.Kind {
	case CommandFailover:
		if s.Modifier != ModifierNone {
			return fmt.Sprintf("CLUSTER FAILOVER %s on %s: %s", s.Modifier, s.RunNode.Address(), s.Message)
		}
		return fmt.Sprintf("CLUSTER FAILOVER on %s: %s", s.RunNode.Address(), s.Message)
	case CommandReplicate:
		return fmt.Sprintf("CLUSTER REPLICATE %s on %s: %s", s.Affected.ID, s.RunNode.Address(), s.Message)
	default:
		return s.Message
	}
}

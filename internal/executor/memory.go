// Copyright 2019 The redis-operator Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package executor

import (
	"context"
	"fmt"

	"github.com/amaizfinance/redis-rebalance/internal/planner"
	"github.com/amaizfinance/redis-rebalance/internal/topology"
)

// MemoryExecutor replays a Plan against a Topology using the same
// primitives the planner used to produce it, without contacting a server.
// It exists so a planned-then-applied round trip can be asserted in tests:
// the topology after running a plan through it with Apply matches the one
// the planner already computed.
type MemoryExecutor struct {
	Topology topology.Topology
}

// NewMemoryExecutor seeds the executor with the topology the plan was
// computed against.
func NewMemoryExecutor(topo topology.Topology) *MemoryExecutor {
	return &MemoryExecutor{Topology: topo}
}

// Run replays a single step's primitive against the in-memory topology.
// It never touches the step's own plan argument: replay must not
// re-append to the Plan that produced the steps in the first place.
func (m *MemoryExecutor) Run(_ context.Context, step planner.Step) error {
	scratch := &planner.Plan{}
	var (
		next topology.Topology
		err  error
	)
	switch step.Kind {
	case planner.CommandReplicate:
		next, err = planner.Replicate(m.Topology, step.Affected.ID, step.RunNode.ID, scratch, false)
	case planner.CommandFailover:
		next, err = planner.Failover(m.Topology, step.Affected.ID, step.Modifier, scratch, false)
	default:
		return fmt.Errorf("executor: unknown command kind %q", step.Kind)
	}
	if err != nil {
		return err
	}
	m.Topology = next
	return nil
}

// Close is a no-op; MemoryExecutor holds no external resources.
func (m *MemoryExecutor) Close() error { return nil }

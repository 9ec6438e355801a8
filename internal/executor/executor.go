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

// Package executor ships a planner.Plan's steps over the wire, one at a
// time, retrying each on transport failure and sleeping a configurable
// interval between successful steps.
package executor

import (
	"context"
	"time"

	"github.com/amaizfinance/redis-rebalance/internal/planner"
)

// DefaultAttempts and DefaultBackoff are the retry policy's concrete
// defaults: five attempts, fixed 120s interval between them.
const (
	DefaultAttempts = 5
	DefaultBackoff  = 120 * time.Second

	// DefaultInterStepTimeout is the pause between successful plan steps,
	// giving the cluster's gossip protocol time to converge.
	DefaultInterStepTimeout = 90 * time.Second
)

// Executor ships one planner.Step at a time against a live or simulated
// cluster. Run is expected to block until the step's effect is observed
// (or retries are exhausted) before the caller sleeps the inter-step
// timeout and moves on.
type Executor interface {
	Run(ctx context.Context, step planner.Step) error
	Close() error
}

// Policy bundles the retry/backoff and pacing knobs so callers (the CLI)
// can override the defaults without reaching into the executor's
// internals.
type Policy struct {
	Attempts         int
	Backoff          time.Duration
	InterStepTimeout time.Duration
}

// DefaultPolicy returns the concrete default retry/pacing policy.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:         DefaultAttempts,
		Backoff:          DefaultBackoff,
		InterStepTimeout: DefaultInterStepTimeout,
	}
}

// Apply runs every step of plan in order against ex, sleeping
// policy.InterStepTimeout between steps. It stops and returns the error
// from the first step that fails after exhausting retries; the caller
// decides whether to re-plan from a fresh snapshot or abort.
func Apply(ctx context.Context, ex Executor, plan *planner.Plan, policy Policy, onStep func(planner.Step)) error {
	for i, step := range plan.Steps {
		if err := ex.Run(ctx, step); err != nil {
			return err
		}
		if onStep != nil {
			onStep(step)
		}
		if i < len(plan.Steps)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(policy.InterStepTimeout):
			}
		}
	}
	return nil
}

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
	"sync"

	"github.com/cenkalti/backoff/v3"
	"github.com/go-redis/redis/v8"

	"github.com/amaizfinance/redis-rebalance/internal/logging"
	"github.com/amaizfinance/redis-rebalance/internal/planner"
)

// client is the subset of redis.Cmdable the wire executor needs, narrowed
// down so a fake is trivial to write for tests. Do is used instead of the
// typed ClusterFailover helper when a TAKEOVER/FORCE modifier is present,
// since go-redis's typed command takes no argument.
type client interface {
	ClusterReplicate(ctx context.Context, nodeID string) *redis.StatusCmd
	ClusterFailover(ctx context.Context) *redis.StatusCmd
	Do(ctx context.Context, args ...interface{}) *redis.Cmd
	Close() error
}

// RedisExecutor ships plan steps to a live cluster over the Redis wire
// protocol, one client connection per node address, reused across steps.
type RedisExecutor struct {
	password string
	policy   Policy
	log      logging.Logger

	mu      sync.Mutex
	clients map[string]client
	dial    func(addr, password string) client
}

// NewRedisExecutor builds an executor that dials nodes lazily and caches
// connections by address for the lifetime of a run.
func NewRedisExecutor(password string, policy Policy) *RedisExecutor {
	return &RedisExecutor{
		password: password,
		policy:   policy,
		log:      logging.With("component", "executor"),
		clients:  make(map[string]client),
		dial: func(addr, password string) client {
			return redis.NewClient(&redis.Options{Addr: addr, Password: password})
		},
	}
}

func (e *RedisExecutor) clientFor(addr string) client {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.clients[addr]; ok {
		return c
	}
	c := e.dial(addr, e.password)
	e.clients[addr] = c
	return c
}

// Run issues one command (REPLICATE or FAILOVER) against step.RunNode,
// retrying per e.policy on transport failure or a non-OK reply.
func (e *RedisExecutor) Run(ctx context.Context, step planner.Step) error {
	c := e.clientFor(step.RunNode.Address())
	log := e.log.With("node", step.RunNode.Address(), "kind", string(step.Kind))

	attempt := 0
	operation := func() error {
		attempt++
		var (
			reply interface{}
			err   error
		)
		switch step.Kind {
		case planner.CommandReplicate:
			reply, err = c.ClusterReplicate(ctx, step.Affected.ID).Result()
		case planner.CommandFailover:
			if step.Modifier != planner.ModifierNone {
				reply, err = c.Do(ctx, "CLUSTER", "FAILOVER", string(step.Modifier)).Result()
			} else {
				reply, err = c.ClusterFailover(ctx).Result()
			}
		default:
			return backoff.Permanent(fmt.Errorf("executor: unknown command kind %q", step.Kind))
		}
		if err == nil && reply != "OK" {
			err = fmt.Errorf("executor: unexpected reply %v", reply)
		}
		if err != nil {
			log.Warn("step attempt failed", "attempt", attempt, "error", err.Error())
		}
		return err
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(e.policy.Backoff), uint64(e.policy.Attempts-1))
	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("executor: %s on %s failed after %d attempts: %w", step.Kind, step.RunNode.Address(), e.policy.Attempts, err)
	}
	return nil
}

// Close tears down every connection opened during the run.
func (e *RedisExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for addr, c := range e.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("executor: closing connection to %s: %w", addr, err)
		}
	}
	e.clients = make(map[string]client)
	return firstErr
}

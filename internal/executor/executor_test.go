package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaizfinance/redis-rebalance/internal/planner"
)

type fakeExecutor struct {
	ran     []planner.Step
	failOn  int
	closed  bool
	failErr error
}

func (f *fakeExecutor) Run(_ context.Context, step planner.Step) error {
	if f.failOn == len(f.ran) {
		f.ran = append(f.ran, step)
		return f.failErr
	}
	f.ran = append(f.ran, step)
	return nil
}

func (f *fakeExecutor) Close() error {
	f.closed = true
	return nil
}

func plan(n int) *planner.Plan {
	p := &planner.Plan{}
	for i := 0; i < n; i++ {
		p.Append(planner.Step{Kind: planner.CommandReplicate, Message: "step"})
	}
	return p
}

func TestApplyRunsEveryStepInOrder(t *testing.T) {
	fe := &fakeExecutor{failOn: -1}
	var seen []planner.Step
	err := Apply(context.Background(), fe, plan(3), Policy{InterStepTimeout: 0}, func(s planner.Step) {
		seen = append(seen, s)
	})
	require.NoError(t, err)
	assert.Len(t, fe.ran, 3)
	assert.Len(t, seen, 3)
}

func TestApplyStopsOnFirstFailure(t *testing.T) {
	fe := &fakeExecutor{failOn: 1, failErr: errors.New("boom")}
	err := Apply(context.Background(), fe, plan(3), Policy{InterStepTimeout: 0}, nil)
	require.Error(t, err)
	assert.Len(t, fe.ran, 2, "should stop after the failing step, never reaching the third")
}

func TestApplyRespectsContextCancellationBetweenSteps(t *testing.T) {
	fe := &fakeExecutor{failOn: -1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Apply(ctx, fe, plan(2), Policy{InterStepTimeout: time.Hour}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, fe.ran, 1, "first step runs, then the inter-step wait observes cancellation")
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, DefaultAttempts, p.Attempts)
	assert.Equal(t, DefaultBackoff, p.Backoff)
	assert.Equal(t, DefaultInterStepTimeout, p.InterStepTimeout)
}

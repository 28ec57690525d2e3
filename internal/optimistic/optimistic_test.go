package optimistic_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/internal/optimistic"
)

func TestRunCommit(t *testing.T) {
	var steps []string
	got, err := optimistic.Run(context.Background(), optimistic.Op[int]{
		Name:     "test_commit",
		Apply:    func() error { steps = append(steps, "apply"); return nil },
		Call:     func(context.Context) (int, error) { steps = append(steps, "call"); return 7, nil },
		Commit:   func(v int) { steps = append(steps, "commit") },
		Rollback: func(error) { steps = append(steps, "rollback") },
	})

	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, []string{"apply", "call", "commit"}, steps)
}

func TestRunRollback(t *testing.T) {
	boom := errors.New("boom")
	var rolledBack error
	committed := false

	_, err := optimistic.Run(context.Background(), optimistic.Op[int]{
		Name:     "test_rollback",
		Call:     func(context.Context) (int, error) { return 0, boom },
		Commit:   func(int) { committed = true },
		Rollback: func(err error) { rolledBack = err },
	})

	require.ErrorIs(t, err, boom)
	assert.ErrorIs(t, rolledBack, boom)
	assert.False(t, committed)
}

func TestRunApplyErrorSkipsCall(t *testing.T) {
	called := false
	_, err := optimistic.Run(context.Background(), optimistic.Op[int]{
		Name:  "test_apply",
		Apply: func() error { return domain.ErrAlreadyRelated },
		Call:  func(context.Context) (int, error) { called = true; return 0, nil },
	})

	require.ErrorIs(t, err, domain.ErrAlreadyRelated)
	assert.False(t, called)
}

func TestRunDiscardsWhenTargetGone(t *testing.T) {
	live := true
	touched := false

	_, err := optimistic.Run(context.Background(), optimistic.Op[int]{
		Name: "test_discard",
		Call: func(context.Context) (int, error) {
			live = false
			return 0, errors.New("late failure")
		},
		Commit:   func(int) { touched = true },
		Rollback: func(error) { touched = true },
		Live:     func() bool { return live },
	})

	require.Error(t, err)
	assert.False(t, touched, "no reconciliation into disposed state")
}

func TestGuardRejectsSecondOperation(t *testing.T) {
	guard := optimistic.NewGuard()
	started := make(chan struct{})
	finish := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, err := optimistic.Run(context.Background(), optimistic.Op[int]{
			Name:  "test_guard",
			Key:   "post:1",
			Guard: guard,
			Call: func(context.Context) (int, error) {
				close(started)
				<-finish
				return 1, nil
			},
		})
		done <- err
	}()

	<-started

	_, err := optimistic.Run(context.Background(), optimistic.Op[int]{
		Name:  "test_guard",
		Key:   "post:1",
		Guard: guard,
		Call:  func(context.Context) (int, error) { return 2, nil },
	})
	require.ErrorIs(t, err, domain.ErrInFlight)

	_, err = optimistic.Run(context.Background(), optimistic.Op[int]{
		Name:  "test_guard",
		Key:   "post:2",
		Guard: guard,
		Call:  func(context.Context) (int, error) { return 3, nil },
	})
	require.NoError(t, err, "other entities are independent")

	close(finish)
	require.NoError(t, <-done)
	release, err := guard.Acquire("post:1")
	require.NoError(t, err, "released after completion")
	release()
}

func TestGuardReleaseIsIdempotent(t *testing.T) {
	guard := optimistic.NewGuard()
	release, err := guard.Acquire("k")
	require.NoError(t, err)
	release()
	release()

	release2, err := guard.Acquire("k")
	require.NoError(t, err)
	release2()
}

// Package optimistic runs the apply → call → commit | rollback sequence every
// user-facing mutation goes through.
package optimistic

import (
	"context"
	"fmt"
	"sync"

	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/internal/metrics"
)

// Op describes one optimistic mutation. Apply, Commit and Rollback run on the calling
// goroutine and must not block; Call is the only step that touches the network.
type Op[T any] struct {
	// Name labels the operation in metrics and errors
	Name string

	// Key identifies the entity the operation touches. With Guard set, a second
	// operation on the same key is rejected while the first is in flight.
	Key   string
	Guard *Guard

	// Apply mutates local state. An error aborts the operation before any network call.
	Apply func() error
	// Call performs the remote request
	Call func(ctx context.Context) (T, error)
	// Commit overwrites the optimistic values with the server's
	Commit func(result T)
	// Rollback restores exactly the entities Apply touched
	Rollback func(err error)
	// Live reports whether the target still exists. A nil Live is always live.
	Live func() bool
}

// Run executes op. The error is whatever Apply or Call returned; rollback has already
// happened by the time Run returns it.
func Run[T any](ctx context.Context, op Op[T]) (T, error) {
	var zero T

	if op.Guard != nil && op.Key != "" {
		release, err := op.Guard.Acquire(op.Key)
		if err != nil {
			metrics.OptimisticOperations.WithLabelValues(op.Name, metrics.OutcomeRejected).Inc()
			return zero, fmt.Errorf("%s: %w", op.Name, err)
		}
		defer release()
	}

	if op.Apply != nil {
		if err := op.Apply(); err != nil {
			metrics.OptimisticOperations.WithLabelValues(op.Name, metrics.OutcomeRejected).Inc()
			return zero, err
		}
	}

	result, err := op.Call(ctx)

	if op.Live != nil && !op.Live() {
		metrics.OptimisticOperations.WithLabelValues(op.Name, metrics.OutcomeDiscarded).Inc()
		return result, err
	}

	if err != nil {
		if op.Rollback != nil {
			op.Rollback(err)
		}
		metrics.OptimisticOperations.WithLabelValues(op.Name, metrics.OutcomeRolledBack).Inc()
		return zero, err
	}

	if op.Commit != nil {
		op.Commit(result)
	}
	metrics.OptimisticOperations.WithLabelValues(op.Name, metrics.OutcomeCommitted).Inc()
	return result, nil
}

// Guard tracks which entity keys have an operation in flight
type Guard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{inflight: make(map[string]struct{})}
}

// Acquire marks key busy. The returned release must be called exactly once.
func (g *Guard) Acquire(key string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inflight[key]; busy {
		return nil, fmt.Errorf("%s: %w", key, domain.ErrInFlight)
	}
	g.inflight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inflight, key)
			g.mu.Unlock()
		})
	}, nil
}

package deadline

import (
	"context"
	"time"
)

// DefaultBudget is set well below the host platform's hard kill timeout to
// leave margin for the salvage read and the final frame flush.
const DefaultBudget = 8 * time.Second

// Result is the outcome of a guarded unit of work.
type Result[T any] struct {
	Value    T
	Err      error
	TimedOut bool
	// Salvaged is set when the deadline fired and the salvage read produced
	// a partial value.
	Salvaged bool
}

// Race runs work against the wall-clock budget. On expiry it does not drop
// the connection: it cancels the work context cooperatively, attempts one
// salvage read of whatever partial output exists, and reports TimedOut so
// the caller can emit a synthetic terminal event. The abandoned work may
// still complete server-side with no observer; that is accepted.
func Race[T any](ctx context.Context, budget time.Duration, work func(ctx context.Context) (T, error), salvage func(ctx context.Context) (T, bool)) Result[T] {
	if budget <= 0 {
		budget = DefaultBudget
	}

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := work(workCtx)
		done <- outcome{value: v, err: err}
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case out := <-done:
		return Result[T]{Value: out.value, Err: out.err}
	case <-ctx.Done():
		cancel()
		var zero T
		return Result[T]{Value: zero, Err: ctx.Err()}
	case <-timer.C:
		cancel()
	}

	res := Result[T]{TimedOut: true}
	if salvage == nil {
		return res
	}

	// The salvage read races its own short grace window so a wedged provider
	// cannot consume the margin kept back from the host kill timeout.
	salvageCtx, salvageCancel := context.WithTimeout(context.WithoutCancel(ctx), budget/4)
	defer salvageCancel()

	if v, ok := salvage(salvageCtx); ok {
		res.Value = v
		res.Salvaged = true
	}
	return res
}

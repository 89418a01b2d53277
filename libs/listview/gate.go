package listview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BatchTarget is the record identifier held by the gate during batch actions.
const BatchTarget = "*"

// ErrBusy is returned when an action is requested while another is in flight.
var ErrBusy = errors.New("listview: another action is in progress")

// BatchError reports a batch in which at least one sub-request failed.
type BatchError struct {
	Failed    []string
	Succeeded []string
	Errs      map[string]error
}

func (e *BatchError) Error() string {
	total := len(e.Failed) + len(e.Succeeded)
	return fmt.Sprintf("listview: %d of %d batch requests failed", len(e.Failed), total)
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithReleaseHook registers fn to run after every release with the target
// that had been held.
func WithReleaseHook(fn func(target string)) GateOption {
	return func(g *Gate) {
		g.onRelease = fn
	}
}

// WithBatchLimit bounds the number of concurrent sub-requests in DoBatch.
// Zero or negative means unbounded.
func WithBatchLimit(limit int) GateOption {
	return func(g *Gate) {
		g.batchLimit = limit
	}
}

// Gate is a single-flight lock over state-changing actions. It is either
// idle or busy with exactly one target.
type Gate struct {
	mu         sync.Mutex
	busy       bool
	target     string
	onRelease  func(target string)
	batchLimit int
}

// NewGate returns an idle gate.
func NewGate(opts ...GateOption) *Gate {
	g := &Gate{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TryAcquire moves the gate to busy with target. It returns false, leaving
// the gate untouched, when another action already holds it.
func (g *Gate) TryAcquire(target string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		return false
	}
	g.busy = true
	g.target = target
	return true
}

// Release returns the gate to idle. Releasing an idle gate is a no-op.
func (g *Gate) Release() {
	g.mu.Lock()
	if !g.busy {
		g.mu.Unlock()
		return
	}
	target := g.target
	g.busy = false
	g.target = ""
	hook := g.onRelease
	g.mu.Unlock()

	if hook != nil {
		hook(target)
	}
}

// Busy returns the held target and whether the gate is busy.
func (g *Gate) Busy() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.target, g.busy
}

// Disabled reports whether controls acting on target must be disabled. Every
// action control freezes while any action runs, including the one for the
// record in flight.
func (g *Gate) Disabled(target string) bool {
	_, busy := g.Busy()
	return busy
}

// Do runs fn inside one gate session for target. The gate is released when
// fn returns, fails or panics.
func (g *Gate) Do(ctx context.Context, target string, fn func(context.Context) error) error {
	if !g.TryAcquire(target) {
		return ErrBusy
	}
	defer g.Release()
	return fn(ctx)
}

// DoBatch runs fn for every target concurrently inside a single gate session
// and waits for all of them. Any failure fails the whole batch with a
// *BatchError; sub-requests are not cancelled by a sibling's failure.
func (g *Gate) DoBatch(ctx context.Context, targets []string, fn func(ctx context.Context, target string) error) error {
	if !g.TryAcquire(BatchTarget) {
		return ErrBusy
	}
	defer g.Release()

	return runBatch(ctx, targets, g.batchLimit, fn)
}

// runBatch runs fn for every target and collects failures. Errors are never
// returned to the group so that one failure does not cancel its siblings.
func runBatch(ctx context.Context, targets []string, limit int, fn func(ctx context.Context, target string) error) error {
	var (
		mu        sync.Mutex
		failed    []string
		succeeded []string
		errs      = map[string]error{}
		group     errgroup.Group
	)
	if limit > 0 {
		group.SetLimit(limit)
	}
	for _, target := range targets {
		target := target // per-iteration copy; go.mod targets go1.21 loop semantics
		group.Go(func() error {
			err := fn(ctx, target)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, target)
				errs[target] = err
				return nil
			}
			succeeded = append(succeeded, target)
			return nil
		})
	}
	_ = group.Wait()

	if len(failed) > 0 {
		return &BatchError{
			Failed:    orderLike(targets, failed),
			Succeeded: orderLike(targets, succeeded),
			Errs:      errs,
		}
	}
	return nil
}

// orderLike returns the members of subset in the order they appear in all.
func orderLike(all, subset []string) []string {
	members := make(map[string]struct{}, len(subset))
	for _, value := range subset {
		members[value] = struct{}{}
	}
	ordered := make([]string, 0, len(subset))
	for _, value := range all {
		if _, ok := members[value]; ok {
			ordered = append(ordered, value)
		}
	}
	return ordered
}

package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/attendance-backend/internal/data/aggregates"
	"github.com/yungbote/attendance-backend/internal/platform/dbctx"
)

// FaultyTxRunner wraps a real runner and injects store faults around the body.
// With Inner nil the body runs against the base handle.
type FaultyTxRunner struct {
	Inner aggregates.TxRunner

	// BeginErrs are returned one per call, before the body runs.
	BeginErrs []error
	// CommitErr is returned after a successful body; the inner transaction rolls back.
	CommitErr error

	mu        sync.Mutex
	calls     int
	bodies    int
	committed int
}

var _ aggregates.TxRunner = (*FaultyTxRunner)(nil)

func (r *FaultyTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.calls++
	var beginErr error
	if len(r.BeginErrs) > 0 {
		beginErr, r.BeginErrs = r.BeginErrs[0], r.BeginErrs[1:]
	}
	commitErr := r.CommitErr
	r.mu.Unlock()

	if beginErr != nil {
		return beginErr
	}

	body := func(dbc dbctx.Context) error {
		r.mu.Lock()
		r.bodies++
		r.mu.Unlock()
		if err := fn(dbc); err != nil {
			return err
		}
		return commitErr
	}

	var err error
	if r.Inner != nil {
		err = r.Inner.InTx(ctx, body)
	} else {
		err = body(dbctx.Of(ctx))
	}
	if err == nil {
		r.mu.Lock()
		r.committed++
		r.mu.Unlock()
	}
	return err
}

// Counts reports calls, bodies run and successful commits.
func (r *FaultyTxRunner) Counts() (calls, bodies, committed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, r.bodies, r.committed
}

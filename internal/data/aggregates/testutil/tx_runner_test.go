package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/attendance-backend/internal/platform/dbctx"
)

type countingRunner struct{ began int }

func (c *countingRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	c.began++
	return fn(dbctx.Of(ctx))
}

func TestFaultyTxRunnerConsumesBeginErrors(t *testing.T) {
	down := errors.New("connection refused")
	r := &FaultyTxRunner{BeginErrs: []error{down}}
	ran := 0
	body := func(dbctx.Context) error { ran++; return nil }

	if err := r.InTx(context.Background(), body); !errors.Is(err, down) {
		t.Fatalf("first call: want %v, got %v", down, err)
	}
	if err := r.InTx(context.Background(), body); err != nil {
		t.Fatalf("second call: %v", err)
	}
	calls, bodies, committed := r.Counts()
	if calls != 2 || bodies != 1 || committed != 1 || ran != 1 {
		t.Fatalf("calls=%d bodies=%d committed=%d ran=%d", calls, bodies, committed, ran)
	}
}

func TestFaultyTxRunnerCommitErrorReachesInner(t *testing.T) {
	locked := errors.New("database is locked")
	inner := &countingRunner{}
	r := &FaultyTxRunner{Inner: inner, CommitErr: locked}

	err := r.InTx(context.Background(), func(dbctx.Context) error { return nil })
	if !errors.Is(err, locked) {
		t.Fatalf("want %v, got %v", locked, err)
	}
	if inner.began != 1 {
		t.Fatalf("inner runner not used")
	}
	if _, bodies, committed := r.Counts(); bodies != 1 || committed != 0 {
		t.Fatalf("bodies=%d committed=%d", bodies, committed)
	}
}

package aggregates

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	domainagg "github.com/yungbote/attendance-backend/internal/domain/aggregates"
	"github.com/yungbote/attendance-backend/internal/platform/dbctx"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
)

const defaultOpTimeout = 5 * time.Second

type BaseDeps struct {
	DB      *gorm.DB
	Log     *logger.Logger
	Runner  TxRunner
	Hooks   Hooks
	Timeout time.Duration
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Timeout <= 0 {
		d.Timeout = defaultOpTimeout
	}
	return d
}

// executeWrite runs fn in an aggregate-owned transaction bounded by deps.Timeout.
func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	op = normalizeOp(op, "attendance_ledger.write")

	ctx, cancel := context.WithTimeout(ctx, deps.Timeout)
	defer cancel()

	mapped := MapError(op, deps.Runner.InTx(ctx, fn))
	observe(deps, op, mapped, time.Since(start))
	return mapped
}

// executeRead runs fn outside a transaction with the same timeout and error mapping as writes.
func executeRead(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	op = normalizeOp(op, "attendance_ledger.read")

	ctx, cancel := context.WithTimeout(ctx, deps.Timeout)
	defer cancel()

	mapped := MapError(op, fn(dbctx.Context{Ctx: ctx}))
	observe(deps, op, mapped, time.Since(start))
	return mapped
}

func observe(deps BaseDeps, op string, mapped error, dur time.Duration) {
	status := "success"
	if mapped != nil {
		status = aggregateErrorStatus(mapped)
		if domainagg.IsCode(mapped, domainagg.CodeConflict) {
			deps.Hooks.IncConflict(op)
		}
		if domainagg.IsCode(mapped, domainagg.CodeRetryable) {
			deps.Hooks.IncRetry(op)
		}
	}
	deps.Hooks.ObserveOperation(op, status, dur)
}

func normalizeOp(op, def string) string {
	op = strings.TrimSpace(op)
	if op == "" {
		return def
	}
	return op
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(domainagg.CodeOf(err)))
	if code == "" {
		code = strings.TrimSpace(string(domainagg.CodeOf(MapError("attendance_ledger.status", err))))
	}
	if code == "" {
		return "failure"
	}
	return code
}

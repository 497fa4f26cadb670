package aggregates

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	domainagg "github.com/yungbote/attendance-backend/internal/domain/aggregates"
	"github.com/yungbote/attendance-backend/internal/platform/dbctx"
)

// TxRunner opens the transaction a ledger write runs in.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type ledgerTxRunner struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewGormTxRunner returns a runner with no bound on row-lock waits.
func NewGormTxRunner(db *gorm.DB) TxRunner {
	return NewLedgerTxRunner(db, 0)
}

// NewLedgerTxRunner bounds how long a write waits on the (date, student_id)
// row lock held by a concurrent marking. On postgres the wait fails with
// lock_not_available, which maps to CodeRetryable. Other dialects ignore
// lockTimeout.
func NewLedgerTxRunner(db *gorm.DB, lockTimeout time.Duration) TxRunner {
	return &ledgerTxRunner{db: db, lockTimeout: lockTimeout}
}

func (r *ledgerTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "attendance_ledger.tx", "transaction runner has nil db", nil)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if stmt := lockTimeoutStatement(tx.Dialector.Name(), r.lockTimeout); stmt != "" {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("set lock timeout: %w", err)
			}
		}
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}

// lockTimeoutStatement is scoped to the transaction (SET LOCAL) and rounds
// sub-millisecond values up so a positive timeout never becomes 0 (unbounded).
func lockTimeoutStatement(dialect string, d time.Duration) string {
	if dialect != "postgres" || d <= 0 {
		return ""
	}
	ms := d.Milliseconds()
	if ms == 0 {
		ms = 1
	}
	return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)
}

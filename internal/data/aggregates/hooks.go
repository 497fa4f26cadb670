package aggregates

import (
	"strings"
	"time"

	"github.com/yungbote/attendance-backend/internal/observability"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
)

// Hooks receives the outcome of every ledger operation. name is the full op
// name passed to executeWrite/executeRead, e.g. "attendance_ledger.upsert".
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
	IncRetry(name string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}

const ledgerOpPrefix = "attendance_ledger."

// ledgerWrites and ledgerReads are the only op labels exported as metric
// series. Anything else is reported as "other".
var (
	ledgerWrites = map[string]bool{"upsert": true, "insert_if_absent": true, "replace": true, "delete": true}
	ledgerReads  = map[string]bool{
		"get_by_id": true, "get": true, "exists": true, "query": true,
		"page": true, "iterate": true, "count_by_class": true,
	}
)

// ledgerOpLabel strips the aggregate prefix and folds unknown names into
// "other" so the label set stays closed.
func ledgerOpLabel(name string) string {
	op := strings.TrimPrefix(strings.TrimSpace(name), ledgerOpPrefix)
	if ledgerWrites[op] || ledgerReads[op] {
		return op
	}
	return "other"
}

func isLedgerWrite(name string) bool {
	return ledgerWrites[strings.TrimPrefix(strings.TrimSpace(name), ledgerOpPrefix)]
}

type ledgerHooks struct {
	metrics   *observability.Metrics
	log       *logger.Logger
	slowAfter time.Duration
}

// NewLedgerHooks reports ledger operations as att_ledger_* metrics and warns
// about any write that takes longer than slowAfter. slowAfter <= 0 disables
// the warning.
func NewLedgerHooks(metrics *observability.Metrics, log *logger.Logger, slowAfter time.Duration) Hooks {
	if log == nil {
		slowAfter = 0
	}
	if metrics == nil && slowAfter <= 0 {
		return noopHooks{}
	}
	return &ledgerHooks{metrics: metrics, log: log, slowAfter: slowAfter}
}

func (h *ledgerHooks) ObserveOperation(name, status string, dur time.Duration) {
	h.metrics.ObserveLedgerOperation(ledgerOpLabel(name), strings.TrimSpace(status), dur)
	if h.slowAfter > 0 && dur >= h.slowAfter && isLedgerWrite(name) {
		h.log.Warn("slow ledger write", "op", strings.TrimSpace(name), "status", status, "duration", dur)
	}
}

func (h *ledgerHooks) IncConflict(name string) {
	h.metrics.IncLedgerConflict(ledgerOpLabel(name))
}

func (h *ledgerHooks) IncRetry(name string) {
	h.metrics.IncLedgerRetry(ledgerOpLabel(name))
}

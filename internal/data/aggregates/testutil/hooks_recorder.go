package testutil

import (
	"sync"
	"time"

	"github.com/yungbote/attendance-backend/internal/data/aggregates"
)

// HooksRecorder captures ledger hook signals in tests.
type HooksRecorder struct {
	mu sync.Mutex

	Operations []OperationEvent
	Conflicts  []string
	Retries    []string
}

type OperationEvent struct {
	Name     string
	Status   string
	Duration time.Duration
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) ObserveOperation(name, status string, dur time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Operations = append(h.Operations, OperationEvent{Name: name, Status: status, Duration: dur})
}

func (h *HooksRecorder) IncConflict(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Conflicts = append(h.Conflicts, name)
}

func (h *HooksRecorder) IncRetry(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Retries = append(h.Retries, name)
}

// StatusesFor returns the recorded outcome of every call to op, in order.
func (h *HooksRecorder) StatusesFor(op string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, ev := range h.Operations {
		if ev.Name == op {
			out = append(out, ev.Status)
		}
	}
	return out
}

// Reset drops everything recorded so far.
func (h *HooksRecorder) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Operations, h.Conflicts, h.Retries = nil, nil, nil
}

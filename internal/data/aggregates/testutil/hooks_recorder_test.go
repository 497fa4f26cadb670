package testutil

import (
	"testing"
	"time"
)

func TestHooksRecorderCapturesSignals(t *testing.T) {
	h := &HooksRecorder{}
	h.ObserveOperation("attendance_ledger.upsert", "success", 10*time.Millisecond)
	h.ObserveOperation("attendance_ledger.delete", "not_found", time.Millisecond)
	h.ObserveOperation("attendance_ledger.upsert", "conflict", time.Millisecond)
	h.IncConflict("attendance_ledger.upsert")
	h.IncRetry("attendance_ledger.replace")

	got := h.StatusesFor("attendance_ledger.upsert")
	if len(got) != 2 || got[0] != "success" || got[1] != "conflict" {
		t.Fatalf("unexpected upsert statuses: %v", got)
	}
	if len(h.Conflicts) != 1 || h.Conflicts[0] != "attendance_ledger.upsert" {
		t.Fatalf("unexpected conflicts: %+v", h.Conflicts)
	}
	if len(h.Retries) != 1 || h.Retries[0] != "attendance_ledger.replace" {
		t.Fatalf("unexpected retries: %+v", h.Retries)
	}

	h.Reset()
	if len(h.Operations) != 0 || len(h.Conflicts) != 0 || len(h.Retries) != 0 {
		t.Fatalf("reset left state behind: %+v", h)
	}
}

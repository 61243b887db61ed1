package testutil

import (
	"testing"
	"time"
)

func TestHooksRecorder_CapturesSignals(t *testing.T) {
	h := &HooksRecorder{}
	h.ObserveOperation("incident.engage", "conflict", 10*time.Millisecond)
	h.ObserveOperation("incident.create", "success", time.Millisecond)
	h.ObserveOperation("incident.engage", "success", 10*time.Millisecond)
	h.IncConflict("incident.engage")
	h.IncRetry("incident.engage")

	got := h.Statuses("incident.engage")
	if len(got) != 2 || got[0] != "conflict" || got[1] != "success" {
		t.Fatalf("unexpected statuses: %v", got)
	}
	if len(h.Conflicts) != 1 || h.Conflicts[0] != "incident.engage" {
		t.Fatalf("unexpected conflicts: %+v", h.Conflicts)
	}
	if len(h.Retries) != 1 || h.Retries[0] != "incident.engage" {
		t.Fatalf("unexpected retries: %+v", h.Retries)
	}
}

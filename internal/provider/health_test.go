package provider

import (
	"testing"
	"time"
)

func TestHealthTracker_OpensAtThreshold(t *testing.T) {
	tracker := NewHealthTracker(3, time.Minute)

	tracker.RecordFailure("a")
	tracker.RecordFailure("a")
	if !tracker.Available("a") {
		t.Error("Breaker opened below threshold")
	}

	tracker.RecordFailure("a")
	if tracker.Available("a") {
		t.Error("Breaker should be open after 3 consecutive failures")
	}
	if got := tracker.Failures("a"); got != 3 {
		t.Errorf("Failures mismatch: got %d, want 3", got)
	}
}

func TestHealthTracker_SuccessResetsStreak(t *testing.T) {
	tracker := NewHealthTracker(3, time.Minute)

	tracker.RecordFailure("a")
	tracker.RecordFailure("a")
	tracker.RecordSuccess("a")

	if got := tracker.Failures("a"); got != 0 {
		t.Errorf("Expected streak reset, got %d", got)
	}

	// The streak starts over, so two more failures stay under threshold.
	tracker.RecordFailure("a")
	tracker.RecordFailure("a")
	if !tracker.Available("a") {
		t.Error("Breaker opened on a reset streak")
	}
}

func TestHealthTracker_CooldownAllowsProbe(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tracker := NewHealthTracker(2, time.Minute)
	tracker.clock = func() time.Time { return now }

	tracker.RecordFailure("a")
	tracker.RecordFailure("a")
	if tracker.Available("a") {
		t.Fatal("Breaker should be open")
	}

	// Still inside the cooldown window.
	now = now.Add(59 * time.Second)
	if tracker.Available("a") {
		t.Error("Breaker reopened before cooldown elapsed")
	}

	// Past the window: one probe is allowed.
	now = now.Add(2 * time.Second)
	if !tracker.Available("a") {
		t.Error("Expected probe attempt after cooldown")
	}

	// A failed probe reopens the breaker immediately, since the streak
	// is still at threshold.
	tracker.RecordFailure("a")
	if tracker.Available("a") {
		t.Error("Breaker should reopen after failed probe")
	}
}

func TestHealthTracker_IndependentAdapters(t *testing.T) {
	tracker := NewHealthTracker(1, time.Minute)

	tracker.RecordFailure("a")
	if tracker.Available("a") {
		t.Error("Breaker for a should be open")
	}
	if !tracker.Available("b") {
		t.Error("Breaker state must be per adapter")
	}
}

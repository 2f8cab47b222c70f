package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bastionai/bastion/pkg/detect"
)

func strongSignal() detect.Signal {
	return detect.Signal{
		Source:     detect.SourceHeuristic,
		Category:   "jailbreak",
		Severity:   1.0,
		Confidence: 1.0,
	}
}

func TestLockTransitionAtThreshold(t *testing.T) {
	tr := NewTracker(Config{})
	now := time.Now()

	// Each strong signal contributes 25.0; the third crosses 70.0.
	var snap Snapshot
	for i := 0; i < 3; i++ {
		snap = tr.Observe("s1", []detect.Signal{strongSignal()}, now)
	}

	if !snap.Locked {
		t.Errorf("expected LOCKED at score %.1f (threshold %.1f)", snap.RiskScore, DefaultLockThreshold)
	}
	if snap.TurnCount != 3 {
		t.Errorf("turn count = %d, want 3", snap.TurnCount)
	}
}

func TestLockedIsTerminalUntilReset(t *testing.T) {
	tr := NewTracker(Config{})
	now := time.Now()

	for i := 0; i < 3; i++ {
		tr.Observe("s1", []detect.Signal{strongSignal()}, now)
	}

	// Benign turns do not unlock, even after idle decay drains the score.
	snap := tr.Observe("s1", nil, now.Add(2*time.Hour))
	if !snap.Locked {
		t.Error("session must stay LOCKED after decay")
	}

	if !tr.Reset("s1") {
		t.Fatal("Reset should find the session")
	}
	snap, _ = tr.Snapshot("s1")
	if snap.Locked || snap.RiskScore != 0 {
		t.Errorf("after reset: locked=%v score=%.1f", snap.Locked, snap.RiskScore)
	}
}

func TestIdleDecayHalfLife(t *testing.T) {
	tr := NewTracker(Config{})
	now := time.Now()

	tr.Observe("s1", []detect.Signal{strongSignal()}, now) // score 25

	// One half-life idle, then a benign turn: score should halve (~12.5).
	snap := tr.Observe("s1", nil, now.Add(DefaultHalfLife))
	if snap.RiskScore < 12.0 || snap.RiskScore > 13.0 {
		t.Errorf("score after one half-life = %.2f, want ~12.5", snap.RiskScore)
	}
}

func TestDecayAppliedBeforeContribution(t *testing.T) {
	tr := NewTracker(Config{})
	now := time.Now()

	tr.Observe("s1", []detect.Signal{strongSignal()}, now)

	// After a half-life, old 25 decays to 12.5 before the new 25 lands.
	snap := tr.Observe("s1", []detect.Signal{strongSignal()}, now.Add(DefaultHalfLife))
	if snap.RiskScore < 37.0 || snap.RiskScore > 38.0 {
		t.Errorf("score = %.2f, want ~37.5", snap.RiskScore)
	}
}

func TestScoreNeverNegative(t *testing.T) {
	tr := NewTracker(Config{})
	now := time.Now()

	snap := tr.Observe("s1", nil, now)
	if snap.RiskScore != 0 {
		t.Errorf("empty contribution on fresh session: score = %.2f", snap.RiskScore)
	}

	snap = tr.Observe("s1", nil, now.Add(24*time.Hour))
	if snap.RiskScore < 0 {
		t.Errorf("score went negative: %.2f", snap.RiskScore)
	}
}

func TestDegradedSignalsContributeNothing(t *testing.T) {
	tr := NewTracker(Config{})

	snap := tr.Observe("s1", []detect.Signal{
		detect.DegradedSignal(detect.SourceVector, "unavailable"),
		detect.DegradedSignal(detect.SourceClassifier, "timeout"),
	}, time.Now())

	if snap.RiskScore != 0 {
		t.Errorf("degraded signals added risk: %.2f", snap.RiskScore)
	}
}

func TestHistoryRingEvictsOldest(t *testing.T) {
	tr := NewTracker(Config{HistorySize: 4})
	now := time.Now()

	for i := 0; i < 6; i++ {
		s := strongSignal()
		s.Evidence = fmt.Sprintf("sig-%d", i)
		tr.Observe("s1", []detect.Signal{s}, now)
	}

	snap, _ := tr.Snapshot("s1")
	if len(snap.History) != 4 {
		t.Fatalf("history len = %d, want 4", len(snap.History))
	}
	if snap.History[0].Evidence != "sig-2" || snap.History[3].Evidence != "sig-5" {
		t.Errorf("history order wrong: first=%s last=%s",
			snap.History[0].Evidence, snap.History[3].Evidence)
	}
}

func TestSweepRemovesIdleSessions(t *testing.T) {
	tr := NewTracker(Config{})
	now := time.Now()

	tr.Observe("old", nil, now.Add(-2*time.Hour))
	tr.Observe("fresh", nil, now)

	removed := tr.Sweep(time.Hour, now)
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, ok := tr.Snapshot("old"); ok {
		t.Error("idle session should be gone")
	}
	if _, ok := tr.Snapshot("fresh"); !ok {
		t.Error("fresh session should survive")
	}
}

func TestConcurrentObserveSameSession(t *testing.T) {
	tr := NewTracker(Config{LockThreshold: 1e9}) // keep it unlocked
	now := time.Now()

	const workers = 16
	const turns = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < turns; i++ {
				tr.Observe("shared", []detect.Signal{strongSignal()}, now)
			}
		}()
	}
	wg.Wait()

	snap, _ := tr.Snapshot("shared")
	if snap.TurnCount != workers*turns {
		t.Errorf("turn count = %d, want %d (lost updates)", snap.TurnCount, workers*turns)
	}
	// No decay (same timestamp), so the score is exactly additive.
	want := float64(workers*turns) * DefaultContributionScale
	if snap.RiskScore < want-0.01 || snap.RiskScore > want+0.01 {
		t.Errorf("score = %.2f, want %.2f", snap.RiskScore, want)
	}
}

func TestDistinctSessionsIndependent(t *testing.T) {
	tr := NewTracker(Config{})
	now := time.Now()

	for i := 0; i < 3; i++ {
		tr.Observe("hot", []detect.Signal{strongSignal()}, now)
	}
	snap := tr.Observe("cold", nil, now)

	if snap.Locked || snap.RiskScore != 0 {
		t.Errorf("cold session inherited state: locked=%v score=%.2f", snap.Locked, snap.RiskScore)
	}
}

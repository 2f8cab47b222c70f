// Package session tracks per-session risk across turns. Each session is a
// small state machine: ACTIVE until its cumulative risk score crosses the
// lock threshold, then LOCKED until an operator resets it. Scores decay with
// idle time so a stale spike does not lock a session forever.
package session

import (
	"math"
	"sync"
	"time"

	"github.com/bastionai/bastion/pkg/detect"
)

// Defaults for the risk model. The decay is exponential with a 10 minute
// half-life, applied to the stored score before each new contribution;
// contributions are severity x confidence scaled by ContributionScale, so
// roughly three confident high-severity signals cross the lock threshold.
const (
	DefaultLockThreshold     = 70.0
	DefaultHalfLife          = 10 * time.Minute
	DefaultContributionScale = 25.0
	DefaultHistorySize       = 16
)

// Snapshot is an immutable copy of a session's state, safe to hand to the
// mitigation engine and transport layer.
type Snapshot struct {
	SessionID    string          `json:"session_id"`
	RiskScore    float64         `json:"risk_score"`
	TurnCount    int             `json:"turn_count"`
	Locked       bool            `json:"locked"`
	LastActivity time.Time       `json:"last_activity"`
	History      []detect.Signal `json:"history,omitempty"`
}

// entry is the live state for one session. Mutated only under its own mutex
// so concurrent requests for the same session serialize, while distinct
// sessions never contend.
type entry struct {
	mu           sync.Mutex
	riskScore    float64
	turnCount    int
	locked       bool
	lastActivity time.Time

	// history is a fixed-capacity ring of the most recent signals,
	// oldest evicted first. Audit only; it never feeds back into the score.
	history []detect.Signal
	next    int
	full    bool
}

// Config tunes the risk model.
type Config struct {
	LockThreshold     float64       // cumulative score that flips ACTIVE -> LOCKED
	HalfLife          time.Duration // idle-decay half-life
	ContributionScale float64       // multiplier on severity x confidence
	HistorySize       int           // signals retained per session
}

func (c Config) withDefaults() Config {
	if c.LockThreshold <= 0 {
		c.LockThreshold = DefaultLockThreshold
	}
	if c.HalfLife <= 0 {
		c.HalfLife = DefaultHalfLife
	}
	if c.ContributionScale <= 0 {
		c.ContributionScale = DefaultContributionScale
	}
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	return c
}

// Tracker owns all session state. The outer map lock is held only long
// enough to find or create an entry; score updates happen under the
// per-session lock.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	cfg      Config
}

// NewTracker creates a tracker with the given config (zero values take
// defaults).
func NewTracker(cfg Config) *Tracker {
	return &Tracker{
		sessions: make(map[string]*entry),
		cfg:      cfg.withDefaults(),
	}
}

func (t *Tracker) entryFor(sessionID string) *entry {
	t.mu.RLock()
	e, ok := t.sessions[sessionID]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.sessions[sessionID]; ok {
		return e
	}
	e = &entry{history: make([]detect.Signal, 0, t.cfg.HistorySize)}
	t.sessions[sessionID] = e
	return e
}

// Observe applies one request's signals to the session and returns the
// post-update snapshot. The update rule, in order: decay the stored score by
// elapsed idle time, add the new contribution, clamp at zero, then check the
// lock transition. LOCKED is terminal until Reset.
func (t *Tracker) Observe(sessionID string, signals []detect.Signal, now time.Time) Snapshot {
	e := t.entryFor(sessionID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.lastActivity.IsZero() && now.After(e.lastActivity) {
		idle := now.Sub(e.lastActivity)
		e.riskScore *= math.Pow(0.5, idle.Seconds()/t.cfg.HalfLife.Seconds())
	}

	var contribution float64
	for _, s := range signals {
		contribution += s.Weight()
	}
	e.riskScore += contribution * t.cfg.ContributionScale
	if e.riskScore < 0 {
		e.riskScore = 0
	}

	e.turnCount++
	e.lastActivity = now

	if !e.locked && e.riskScore >= t.cfg.LockThreshold {
		e.locked = true
	}

	for _, s := range signals {
		e.record(s, t.cfg.HistorySize)
	}

	return e.snapshot(sessionID)
}

// record appends to the fixed-capacity ring.
func (e *entry) record(s detect.Signal, capacity int) {
	if len(e.history) < capacity {
		e.history = append(e.history, s)
		e.next = len(e.history) % capacity
		e.full = len(e.history) == capacity
		return
	}
	e.history[e.next] = s
	e.next = (e.next + 1) % capacity
	e.full = true
}

// snapshot copies state under the entry lock; history comes out oldest first.
func (e *entry) snapshot(sessionID string) Snapshot {
	var history []detect.Signal
	if e.full {
		history = make([]detect.Signal, 0, len(e.history))
		history = append(history, e.history[e.next:]...)
		history = append(history, e.history[:e.next]...)
	} else {
		history = append(history, e.history...)
	}

	return Snapshot{
		SessionID:    sessionID,
		RiskScore:    e.riskScore,
		TurnCount:    e.turnCount,
		Locked:       e.locked,
		LastActivity: e.lastActivity,
		History:      history,
	}
}

// Snapshot returns the current state without mutating it. The bool is false
// for unknown sessions.
func (t *Tracker) Snapshot(sessionID string) (Snapshot, bool) {
	t.mu.RLock()
	e, ok := t.sessions[sessionID]
	t.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(sessionID), true
}

// Reset clears LOCKED and zeroes the risk score. This is the administrative
// unlock operation; it reports whether the session existed.
func (t *Tracker) Reset(sessionID string) bool {
	t.mu.RLock()
	e, ok := t.sessions[sessionID]
	t.mu.RUnlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.locked = false
	e.riskScore = 0
	return true
}

// Sweep removes sessions idle for longer than timeout and returns how many
// were removed. Sessions are never deleted on their own; an external
// collaborator calls this on whatever schedule it likes.
func (t *Tracker) Sweep(timeout time.Duration, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, e := range t.sessions {
		e.mu.Lock()
		idle := now.Sub(e.lastActivity)
		e.mu.Unlock()
		if idle > timeout {
			delete(t.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked sessions.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

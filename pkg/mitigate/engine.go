// Package mitigate combines detection signals and session state into the
// final decision. The engine is pure given its inputs: no I/O, no clocks,
// no randomness, which is what makes the policy deterministically testable.
package mitigate

import (
	"fmt"

	"github.com/bastionai/bastion/pkg/detect"
	"github.com/bastionai/bastion/pkg/session"
)

// Action is the gateway's verdict on a request.
type Action string

const (
	ActionAllow    Action = "ALLOW"
	ActionBlock    Action = "BLOCK"
	ActionSanitize Action = "SANITIZE"
	ActionContain  Action = "CONTAIN"
)

// restrictiveness ranks actions for tie-breaking: the more restrictive
// action always wins.
func restrictiveness(a Action) int {
	switch a {
	case ActionBlock:
		return 3
	case ActionContain:
		return 2
	case ActionSanitize:
		return 1
	default:
		return 0
	}
}

// MoreRestrictive returns the stricter of two actions.
func MoreRestrictive(a, b Action) Action {
	if restrictiveness(b) > restrictiveness(a) {
		return b
	}
	return a
}

// Decision is the gateway's full verdict. Computed fresh per request and
// never cached; only its expensive detection inputs are.
type Decision struct {
	Action        Action          `json:"action"`
	Intent        string          `json:"intent"`
	Confidence    float64         `json:"confidence"`
	Reason        string          `json:"reason"`
	SanitizedText string          `json:"sanitized_text,omitempty"`
	Signals       []detect.Signal `json:"signals,omitempty"`
}

// Thresholds tune the decision policy.
type Thresholds struct {
	// IntentConfidence is the minimum classifier confidence for an intent
	// verdict to force a BLOCK.
	IntentConfidence float64
	// ContainSeverity is the heuristic/vector severity above which ambiguous
	// content is routed to constrained handling.
	ContainSeverity float64
}

// DefaultThresholds returns the shipped policy tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{IntentConfidence: 0.7, ContainSeverity: 0.6}
}

// Engine evaluates the decision policy.
type Engine struct {
	thresholds Thresholds
	sanitizer  *Sanitizer
}

// NewEngine creates an engine. A nil sanitizer disables the SANITIZE action
// (borderline content falls through to CONTAIN).
func NewEngine(thresholds Thresholds, sanitizer *Sanitizer) *Engine {
	if thresholds.IntentConfidence <= 0 {
		thresholds.IntentConfidence = 0.7
	}
	if thresholds.ContainSeverity <= 0 {
		thresholds.ContainSeverity = 0.6
	}
	return &Engine{thresholds: thresholds, sanitizer: sanitizer}
}

// Decide applies the policy in strict priority order:
//
//  1. locked session        -> CONTAIN (BLOCK if hard DLP in this request)
//  2. DLP evidence          -> BLOCK, context-independent
//  3. attack intent         -> BLOCK when confidence clears the threshold
//  4. legitimate + redactable borderline content -> SANITIZE
//  5. severe but uncertain  -> CONTAIN
//  6. otherwise             -> ALLOW
//
// text is the normalized request text, needed only to build sanitized output.
func (e *Engine) Decide(text string, signals []detect.Signal, snap session.Snapshot) Decision {
	intent, intentConfidence := intentOf(signals)

	// 1. Locked sessions are contained regardless of the current request's
	// own signals; hard DLP evidence escalates to BLOCK.
	if snap.Locked {
		action := ActionContain
		if detect.AnyHardDLP(signals) {
			action = ActionBlock
		}
		return Decision{
			Action:     action,
			Intent:     intent,
			Confidence: intentConfidence,
			Reason:     fmt.Sprintf("session locked (risk score %.1f)", snap.RiskScore),
			Signals:    triggering(signals),
		}
	}

	// 2. DLP is fail-safe and context-independent: it overrides intent.
	if hasDLP(signals) {
		return Decision{
			Action:     ActionBlock,
			Intent:     intent,
			Confidence: intentConfidence,
			Reason:     "sensitive data detected",
			Signals:    triggering(signals),
		}
	}

	// 3. Confident attack intent.
	if intent == detect.IntentDirectAttack && intentConfidence >= e.thresholds.IntentConfidence {
		return Decision{
			Action:     ActionBlock,
			Intent:     intent,
			Confidence: intentConfidence,
			Reason:     "attack intent detected",
			Signals:    triggering(signals),
		}
	}

	borderline := borderlineSignals(signals)

	// 4. Legitimate intent with redactable borderline content: strip the
	// offending spans and let the reduced payload proceed.
	if intent == detect.IntentLegitimateQuery && len(borderline) > 0 &&
		e.sanitizer != nil && e.sanitizer.CoversAll(borderline) {
		sanitized, redactions := e.sanitizer.Sanitize(text)
		if redactions > 0 {
			return Decision{
				Action:        ActionSanitize,
				Intent:        intent,
				Confidence:    intentConfidence,
				Reason:        fmt.Sprintf("legitimate intent, %d offending span(s) redacted", redactions),
				SanitizedText: sanitized,
				Signals:       triggering(signals),
			}
		}
	}

	// 5. Severe but not confident enough to block outright.
	if maxSeverity(borderline) >= e.thresholds.ContainSeverity {
		return Decision{
			Action:     ActionContain,
			Intent:     intent,
			Confidence: intentConfidence,
			Reason:     "ambiguous risk, routed for constrained handling",
			Signals:    triggering(signals),
		}
	}

	// 6. Nothing fired.
	return Decision{
		Action:     ActionAllow,
		Intent:     intent,
		Confidence: intentConfidence,
		Reason:     "no policy violation detected",
	}
}

// intentOf extracts the classifier verdict from the signal set. Missing or
// degraded classifier results read as unknown at low confidence.
func intentOf(signals []detect.Signal) (string, float64) {
	for _, s := range signals {
		if s.Source != detect.SourceClassifier {
			continue
		}
		if s.Degraded {
			return detect.IntentUnknown, 0.1
		}
		return s.Category, s.Confidence
	}
	return detect.IntentUnknown, 0.1
}

func hasDLP(signals []detect.Signal) bool {
	for _, s := range signals {
		if s.Source == detect.SourceDLP && !s.Degraded {
			return true
		}
	}
	return false
}

// borderlineSignals returns the non-degraded heuristic/vector signals.
func borderlineSignals(signals []detect.Signal) []detect.Signal {
	var out []detect.Signal
	for _, s := range signals {
		if s.Degraded {
			continue
		}
		if s.Source == detect.SourceHeuristic || s.Source == detect.SourceVector {
			out = append(out, s)
		}
	}
	return out
}

func maxSeverity(signals []detect.Signal) float64 {
	max := 0.0
	for _, s := range signals {
		if s.Severity > max {
			max = s.Severity
		}
	}
	return max
}

// triggering filters out degraded placeholders so the decision carries only
// signals that actually influenced it.
func triggering(signals []detect.Signal) []detect.Signal {
	var out []detect.Signal
	for _, s := range signals {
		if !s.Degraded {
			out = append(out, s)
		}
	}
	return out
}

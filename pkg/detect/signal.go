// Package detect holds the detection signal model and the rule-based
// detection stages (DLP, heuristic), plus the capability interfaces consumed
// for vector similarity and intent classification.
package detect

import "github.com/bastionai/bastion/pkg/patterns"

// Source identifies which detection layer produced a signal.
type Source string

const (
	SourceDLP        Source = "dlp"
	SourceHeuristic  Source = "heuristic"
	SourceVector     Source = "vector"
	SourceClassifier Source = "classifier"
)

// Signal is the universal detection result format all layers produce.
// A request may yield zero or more signals per layer. Signals are
// session-independent by construction: nothing session-scoped is allowed in
// here, which is what makes them safe to cache.
type Signal struct {
	// Source identifies the producing layer.
	Source Source `json:"source"`

	// Category is the threat category (e.g. "aws_access_key",
	// "prompt_injection", "direct_attack").
	Category string `json:"category"`

	// Severity is how dangerous a true positive of this category is (0.0-1.0).
	Severity float64 `json:"severity"`

	// Confidence is how sure the layer is that this is a true positive
	// (0.0-1.0). High-precision pattern hits carry high confidence;
	// degraded capability results carry low confidence.
	Confidence float64 `json:"confidence"`

	// Evidence is the matched fragment or label, for audit/explainability.
	Evidence string `json:"evidence,omitempty"`

	// Degraded marks a placeholder signal emitted when a capability was
	// unavailable or timed out. Degraded signals never raise severity.
	Degraded bool `json:"degraded,omitempty"`
}

// IsHardDLP reports whether this is fail-safe DLP evidence. Hard DLP signals
// short-circuit the expensive detection stages and force a BLOCK.
func (s Signal) IsHardDLP() bool {
	return s.Source == SourceDLP && !s.Degraded && patterns.IsHard(patterns.Category(s.Category))
}

// Weight is this signal's contribution to the session risk score before
// scaling: severity x confidence. Degraded signals contribute nothing.
func (s Signal) Weight() float64 {
	if s.Degraded {
		return 0
	}
	return s.Severity * s.Confidence
}

// AnyHardDLP reports whether any signal in the set is hard DLP evidence.
func AnyHardDLP(signals []Signal) bool {
	for _, s := range signals {
		if s.IsHardDLP() {
			return true
		}
	}
	return false
}

// DegradedSignal returns the placeholder signal for an unavailable capability.
// It records which layer failed without contributing risk, so the decision
// reason can surface the reduced coverage.
func DegradedSignal(source Source, reason string) Signal {
	return Signal{
		Source:     source,
		Category:   "degraded",
		Severity:   0,
		Confidence: 0,
		Evidence:   reason,
		Degraded:   true,
	}
}

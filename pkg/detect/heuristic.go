package detect

import (
	"github.com/bastionai/bastion/pkg/normalize"
	"github.com/bastionai/bastion/pkg/patterns"
)

// HeuristicDetector matches known jailbreak and injection phrasing. Its
// signals feed forward into scoring and never short-circuit on their own:
// phrasing matches are suggestive, not conclusive, so confidence is scaled
// below the DLP scanner's.
type HeuristicDetector struct {
	registry *patterns.Registry
}

// NewHeuristicDetector creates a detector over the given pattern registry.
func NewHeuristicDetector(registry *patterns.Registry) *HeuristicDetector {
	return &HeuristicDetector{registry: registry}
}

// Detect returns one signal per matching heuristic pattern.
func (h *HeuristicDetector) Detect(in normalize.Input) []Signal {
	matched := h.registry.MatchAll(in.Text, patterns.HeuristicCategories()...)
	if len(matched) == 0 {
		return nil
	}

	signals := make([]Signal, 0, len(matched))
	for _, p := range matched {
		evidence := trimEvidence(p.Regex.FindString(in.Text))
		signals = append(signals, Signal{
			Source:     SourceHeuristic,
			Category:   string(p.Category),
			Severity:   float64(p.Severity) / 100.0,
			Confidence: 0.7,
			Evidence:   p.Name + ": " + evidence,
		})
	}
	return signals
}

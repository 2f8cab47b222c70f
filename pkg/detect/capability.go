package detect

import "context"

// ============================================================================
// CAPABILITY BOUNDARIES
// ============================================================================
// Vector similarity search and intent classification are external
// capabilities: the gateway consumes them through these interfaces and
// tolerates their absence. Implementations live in pkg/ml; the pipeline's
// logic is identical whether the real backend or the disabled one is wired.

// Neighbor is one nearest-neighbor result from the vector index.
type Neighbor struct {
	Similarity float64 // cosine similarity to the query (0.0-1.0)
	Label      string  // known-attack category of the stored pattern
	Text       string  // the stored pattern text, for evidence
}

// VectorIndex is the similarity-search capability. Implementations embed the
// query text and return the k most similar known attack patterns.
type VectorIndex interface {
	// Search returns up to k nearest neighbors for text. Must respect ctx.
	Search(ctx context.Context, text string, k int) ([]Neighbor, error)

	// Ready reports whether the index is initialized and usable. A false
	// Ready is not an error; the pipeline emits a degraded signal and moves on.
	Ready() bool
}

// Intent labels produced by the classifier capability.
const (
	IntentDirectAttack    = "direct_attack"
	IntentLegitimateQuery = "legitimate_query"
	IntentSuspicious      = "suspicious"
	IntentUnknown         = "unknown"
)

// IntentResult is the classifier capability's verdict.
type IntentResult struct {
	Label      string  // one of the Intent* constants
	Confidence float64 // 0.0-1.0
	Reason     string  // short model-provided explanation, may be empty
}

// IntentClassifier is the intent-classification capability. The declared
// context (e.g. "security-analyst" vs "general") travels with the text so
// semantically identical inputs can classify differently by context. Prior
// signals from the cheap stages are provided as hints.
type IntentClassifier interface {
	Classify(ctx context.Context, text, declaredContext string, prior []Signal) (IntentResult, error)
	Ready() bool
}

// UnknownIntent is the downgrade result used when the classifier is
// unavailable, times out, or errors.
func UnknownIntent(reason string) IntentResult {
	return IntentResult{Label: IntentUnknown, Confidence: 0.1, Reason: reason}
}

// VectorSignals folds nearest-neighbor results into detection signals.
// Severity derives from similarity; the category from the matched label.
// Neighbors below floor are discarded as noise.
func VectorSignals(neighbors []Neighbor, floor float64) []Signal {
	var signals []Signal
	for _, nb := range neighbors {
		if nb.Similarity < floor || nb.Label == "" || nb.Label == "benign" {
			continue
		}
		signals = append(signals, Signal{
			Source:     SourceVector,
			Category:   nb.Label,
			Severity:   nb.Similarity,
			Confidence: nb.Similarity,
			Evidence:   trimEvidence(nb.Text),
		})
	}
	return signals
}

// ClassifierSignal folds an intent verdict into a detection signal.
// Unknown-intent results come back degraded so they cannot add risk.
func ClassifierSignal(res IntentResult) Signal {
	if res.Label == IntentUnknown {
		return DegradedSignal(SourceClassifier, res.Reason)
	}
	severity := 0.0
	switch res.Label {
	case IntentDirectAttack:
		severity = 1.0
	case IntentSuspicious:
		severity = 0.5
	}
	return Signal{
		Source:     SourceClassifier,
		Category:   res.Label,
		Severity:   severity,
		Confidence: res.Confidence,
		Evidence:   res.Reason,
	}
}

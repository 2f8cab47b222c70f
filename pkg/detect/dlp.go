package detect

import (
	"github.com/bastionai/bastion/pkg/normalize"
	"github.com/bastionai/bastion/pkg/patterns"
)

// maxEvidence bounds the matched fragment carried in a signal. Enough for an
// analyst to recognize the hit; not enough to re-leak a whole secret blob.
const maxEvidence = 64

// trimEvidence cuts at a rune boundary at or below maxEvidence bytes, so a
// truncated fragment never carries invalid UTF-8 into cache or audit records.
func trimEvidence(s string) string {
	if len(s) <= maxEvidence {
		return s
	}
	cut := maxEvidence
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}

// DLPScanner detects secrets and PII with high-precision patterns. Designed
// for zero false negatives on its pattern set: every match counts, false
// positives are tolerated. No I/O, no failure mode.
type DLPScanner struct {
	registry *patterns.Registry
}

// NewDLPScanner creates a scanner over the given pattern registry.
func NewDLPScanner(registry *patterns.Registry) *DLPScanner {
	return &DLPScanner{registry: registry}
}

// Scan returns one signal per matching DLP pattern. Pattern severity (0-100)
// maps to signal severity (0-1); confidence is fixed high because these
// patterns are format-anchored.
func (d *DLPScanner) Scan(in normalize.Input) []Signal {
	matched := d.registry.MatchAll(in.Text, patterns.DLPCategories()...)
	if len(matched) == 0 {
		return nil
	}

	signals := make([]Signal, 0, len(matched))
	for _, p := range matched {
		evidence := trimEvidence(p.Regex.FindString(in.Text))
		signals = append(signals, Signal{
			Source:     SourceDLP,
			Category:   string(p.Category),
			Severity:   float64(p.Severity) / 100.0,
			Confidence: 0.95,
			Evidence:   p.Name + ": " + evidence,
		})
	}
	return signals
}

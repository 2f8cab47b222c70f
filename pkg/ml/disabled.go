package ml

import (
	"context"
	"fmt"

	"github.com/bastionai/bastion/pkg/detect"
)

// DisabledIndex is a detect.VectorIndex that is permanently unavailable.
// Wired when the deployment has no embedding backend; the pipeline emits
// degraded vector signals.
type DisabledIndex struct{}

func (DisabledIndex) Search(context.Context, string, int) ([]detect.Neighbor, error) {
	return nil, fmt.Errorf("vector index disabled")
}

func (DisabledIndex) Ready() bool { return false }

// DisabledClassifier is a detect.IntentClassifier that is permanently
// unavailable.
type DisabledClassifier struct{}

func (DisabledClassifier) Classify(context.Context, string, string, []detect.Signal) (detect.IntentResult, error) {
	return detect.IntentResult{}, fmt.Errorf("intent classifier disabled")
}

func (DisabledClassifier) Ready() bool { return false }

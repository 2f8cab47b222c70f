package ml

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/bastionai/bastion/pkg/detect"
)

// LocalClassifierConfig configures the on-box ONNX intent classifier.
type LocalClassifierConfig struct {
	// ModelPath is the directory holding model.onnx plus tokenizer files.
	ModelPath string

	// OnnxLibraryPath points at libonnxruntime; empty means the pure Go
	// backend (slower, no native dependency).
	OnnxLibraryPath string
}

// LocalClassifier is a detect.IntentClassifier backed by a local
// prompt-injection classification model via hugot. The binary models
// only distinguish injection from safe text, so verdicts map to
// direct_attack or legitimate_query; suspicious never occurs here.
type LocalClassifier struct {
	session  *hugot.Session
	pipeline *pipelines.TextClassificationPipeline

	mu    sync.RWMutex
	ready bool
}

// NewLocalClassifier loads the model. Initialization failure returns an
// error; callers that want graceful degradation should fall back to the
// disabled classifier.
func NewLocalClassifier(cfg LocalClassifierConfig) (*LocalClassifier, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("local classifier model path is required")
	}
	if _, err := os.Stat(filepath.Join(cfg.ModelPath, "model.onnx")); err != nil {
		return nil, fmt.Errorf("model not found at %s: %w", cfg.ModelPath, err)
	}

	session, err := newHugotSession(cfg.OnnxLibraryPath)
	if err != nil {
		return nil, fmt.Errorf("create inference session: %w", err)
	}

	pipeline, err := hugot.NewPipeline(session, hugot.TextClassificationConfig{
		ModelPath: cfg.ModelPath,
		Name:      "intent-classifier",
	})
	if err != nil {
		_ = session.Destroy()
		return nil, fmt.Errorf("create classification pipeline: %w", err)
	}

	log.Printf("[INFO] local intent classifier loaded from %s", cfg.ModelPath)
	return &LocalClassifier{session: session, pipeline: pipeline, ready: true}, nil
}

func newHugotSession(onnxLibraryPath string) (*hugot.Session, error) {
	if onnxLibraryPath != "" {
		session, err := hugot.NewORTSession(options.WithOnnxLibraryPath(onnxLibraryPath))
		if err == nil {
			return session, nil
		}
		log.Printf("[WARN] ONNX Runtime unavailable, falling back to Go backend: %v", err)
	}
	return hugot.NewGoSession()
}

// threatLabels covers the label conventions of the common
// prompt-injection models.
var threatLabels = map[string]bool{
	"jailbreak": true,
	"INJECTION": true,
	"malicious": true,
	"LABEL_1":   true,
}

// Classify implements detect.IntentClassifier. Declared context and
// prior signals are ignored; the local model sees only the text.
func (c *LocalClassifier) Classify(_ context.Context, text, _ string, _ []detect.Signal) (detect.IntentResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.ready {
		return detect.IntentResult{}, fmt.Errorf("local classifier not ready")
	}

	result, err := c.pipeline.RunPipeline([]string{text})
	if err != nil {
		return detect.IntentResult{}, fmt.Errorf("local classification: %w", err)
	}
	if len(result.ClassificationOutputs) == 0 || len(result.ClassificationOutputs[0]) == 0 {
		return detect.IntentResult{}, fmt.Errorf("local classifier returned no output")
	}

	out := result.ClassificationOutputs[0][0]
	if threatLabels[out.Label] {
		return detect.IntentResult{
			Label:      detect.IntentDirectAttack,
			Confidence: float64(out.Score),
			Reason:     fmt.Sprintf("local model label %s", out.Label),
		}, nil
	}
	return detect.IntentResult{
		Label:      detect.IntentLegitimateQuery,
		Confidence: float64(out.Score),
		Reason:     fmt.Sprintf("local model label %s", out.Label),
	}, nil
}

// Ready implements detect.IntentClassifier.
func (c *LocalClassifier) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Close releases the inference session.
func (c *LocalClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = false
	if c.session != nil {
		return c.session.Destroy()
	}
	return nil
}

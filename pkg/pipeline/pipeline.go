// Package pipeline orchestrates one request's pass through the gateway:
// normalize, consult the signal cache, run the detectors and capability
// calls, fold the result into session risk, and hand everything to the
// mitigation engine. The pipeline never fails open on capability errors
// and never fails a request on cache or audit trouble.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bastionai/bastion/pkg/audit"
	"github.com/bastionai/bastion/pkg/cache"
	"github.com/bastionai/bastion/pkg/detect"
	"github.com/bastionai/bastion/pkg/metrics"
	"github.com/bastionai/bastion/pkg/mitigate"
	"github.com/bastionai/bastion/pkg/normalize"
	"github.com/bastionai/bastion/pkg/session"
)

// ErrMalformedRequest marks requests the pipeline refuses to evaluate.
var ErrMalformedRequest = errors.New("malformed request")

// Request is one protection request.
type Request struct {
	RequestID       string `json:"request_id,omitempty"` // assigned when empty
	SessionID       string `json:"session_id"`
	Text            string `json:"text"`
	DeclaredContext string `json:"declared_context,omitempty"`
}

// Response is the pipeline's full answer.
type Response struct {
	RequestID string            `json:"request_id"`
	Decision  mitigate.Decision `json:"decision"`
	Session   session.Snapshot  `json:"session"`
	CacheHit  bool              `json:"cache_hit"`
	Truncated bool              `json:"truncated"`
	ElapsedMS int64             `json:"elapsed_ms"`
}

// Config wires the pipeline's stages. Normalizer, DLP, Heuristics,
// Sessions and Engine are required; the rest may be nil or disabled.
type Config struct {
	Normalizer *normalize.Normalizer
	DLP        *detect.DLPScanner
	Heuristics *detect.HeuristicDetector
	Vector     detect.VectorIndex
	Classifier detect.IntentClassifier
	Sessions   *session.Tracker
	Engine     *mitigate.Engine

	Cache   cache.SignalCache  // nil disables caching
	Metrics *metrics.Collector // nil allocates a private collector
	Audit   audit.Sink         // nil disables auditing

	VectorFloor       float64       // default 0.65
	VectorTopK        int           // default 3
	CapabilityTimeout time.Duration // default 2s
}

// Pipeline evaluates protection requests. Safe for concurrent use.
type Pipeline struct {
	cfg Config
	now func() time.Time
}

// New validates the wiring and returns a pipeline.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Normalizer == nil:
		return nil, fmt.Errorf("pipeline needs a normalizer")
	case cfg.DLP == nil:
		return nil, fmt.Errorf("pipeline needs a dlp scanner")
	case cfg.Heuristics == nil:
		return nil, fmt.Errorf("pipeline needs a heuristic detector")
	case cfg.Sessions == nil:
		return nil, fmt.Errorf("pipeline needs a session tracker")
	case cfg.Engine == nil:
		return nil, fmt.Errorf("pipeline needs a mitigation engine")
	}

	if cfg.VectorFloor <= 0 {
		cfg.VectorFloor = 0.65
	}
	if cfg.VectorTopK <= 0 {
		cfg.VectorTopK = 3
	}
	if cfg.CapabilityTimeout <= 0 {
		cfg.CapabilityTimeout = 2 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewCollector()
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NopSink{}
	}

	return &Pipeline{cfg: cfg, now: time.Now}, nil
}

// Metrics exposes the collector for the metrics endpoint.
func (p *Pipeline) Metrics() *metrics.Collector { return p.cfg.Metrics }

// Sessions exposes the tracker for admin operations.
func (p *Pipeline) Sessions() *session.Tracker { return p.cfg.Sessions }

// Evaluate runs one request through the full pipeline.
func (p *Pipeline) Evaluate(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return Response{}, fmt.Errorf("%w: session_id is required", ErrMalformedRequest)
	}
	if req.Text == "" {
		return Response{}, fmt.Errorf("%w: text is required", ErrMalformedRequest)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	start := p.now()
	in := p.cfg.Normalizer.Normalize(req.Text)
	key := cache.Key(in.Text)

	// Classifier results depend on the declared context, so they are
	// computed fresh even on a cache hit. Hard DLP evidence makes the
	// verdict unconditional and the call pointless.
	signals, cacheHit := p.lookupCache(ctx, key)
	if cacheHit {
		if !detect.AnyHardDLP(signals) {
			signals = append(signals, p.classify(ctx, in.Text, req.DeclaredContext, signals))
		}
	} else {
		signals = p.freshSignals(ctx, key, in, req.DeclaredContext)
	}

	snap := p.cfg.Sessions.Observe(req.SessionID, signals, p.now())
	decision := p.cfg.Engine.Decide(in.Text, signals, snap)

	elapsed := p.now().Sub(start)
	p.cfg.Metrics.RecordDecision(string(decision.Action), elapsed)
	p.recordAudit(ctx, req, decision, snap, cacheHit, elapsed)

	return Response{
		RequestID: req.RequestID,
		Decision:  decision,
		Session:   snap,
		CacheHit:  cacheHit,
		Truncated: in.Truncated,
		ElapsedMS: elapsed.Milliseconds(),
	}, nil
}

// lookupCache consults the signal cache and records the hit or miss.
func (p *Pipeline) lookupCache(ctx context.Context, key uint64) ([]detect.Signal, bool) {
	if p.cfg.Cache == nil {
		return nil, false
	}
	if cached, ok := p.cfg.Cache.Get(ctx, key); ok {
		p.cfg.Metrics.RecordCacheHit()
		return cached, true
	}
	p.cfg.Metrics.RecordCacheMiss()
	return nil, false
}

func (p *Pipeline) putCache(ctx context.Context, key uint64, signals []detect.Signal) {
	if p.cfg.Cache != nil {
		p.cfg.Cache.Put(ctx, key, cacheable(signals))
	}
}

// freshSignals runs the full detection fan-out on a cache miss. DLP and
// heuristics run concurrently first. Unless their evidence already forces
// a block, the vector search and the classifier are then issued in
// parallel, so the slow path costs one capability timeout rather than
// two. The classifier only needs the rule-based signals as prior context,
// never the vector neighbors, which is what makes the two independent.
// Only the text-derived signals (rules plus vector) go into the cache.
func (p *Pipeline) freshSignals(ctx context.Context, key uint64, in normalize.Input, declaredContext string) []detect.Signal {
	var (
		wg      sync.WaitGroup
		dlpOut  []detect.Signal
		heurOut []detect.Signal
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer p.recoverStage("dlp", &dlpOut)
		dlpOut = p.cfg.DLP.Scan(in)
	}()
	go func() {
		defer wg.Done()
		defer p.recoverStage("heuristics", &heurOut)
		heurOut = p.cfg.Heuristics.Detect(in)
	}()
	wg.Wait()

	ruleSignals := append(dlpOut, heurOut...)

	// Hard DLP evidence short-circuits both capabilities; the decision
	// is already BLOCK whatever they would say.
	if detect.AnyHardDLP(ruleSignals) {
		p.putCache(ctx, key, ruleSignals)
		return ruleSignals
	}

	var (
		vecOut []detect.Signal
		clsOut detect.Signal
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		vecOut = p.vectorSignals(ctx, in.Text)
	}()
	go func() {
		defer wg.Done()
		clsOut = p.classify(ctx, in.Text, declaredContext, ruleSignals)
	}()
	wg.Wait()

	textSignals := append(ruleSignals, vecOut...)
	p.putCache(ctx, key, textSignals)

	signals := make([]detect.Signal, 0, len(textSignals)+1)
	signals = append(signals, textSignals...)
	return append(signals, clsOut)
}

// cacheable strips degraded signals so a capability outage is not
// replayed from cache after the backend recovers.
func cacheable(signals []detect.Signal) []detect.Signal {
	out := make([]detect.Signal, 0, len(signals))
	for _, s := range signals {
		if !s.Degraded {
			out = append(out, s)
		}
	}
	return out
}

// vectorSignals queries the similarity index under the capability
// timeout. Unavailability of any kind degrades to a zero-weight signal.
func (p *Pipeline) vectorSignals(ctx context.Context, text string) []detect.Signal {
	if p.cfg.Vector == nil || !p.cfg.Vector.Ready() {
		p.cfg.Metrics.RecordDegraded()
		return []detect.Signal{detect.DegradedSignal(detect.SourceVector, "vector index unavailable")}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CapabilityTimeout)
	defer cancel()

	neighbors, err := p.searchVector(callCtx, text)
	if err != nil {
		p.cfg.Metrics.RecordDegraded()
		log.Printf("[WARN] vector search degraded: %v", err)
		return []detect.Signal{detect.DegradedSignal(detect.SourceVector, err.Error())}
	}
	return detect.VectorSignals(neighbors, p.cfg.VectorFloor)
}

func (p *Pipeline) searchVector(ctx context.Context, text string) (neighbors []detect.Neighbor, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.cfg.Metrics.RecordInternalError()
			err = fmt.Errorf("vector search panic: %v", r)
		}
	}()
	return p.cfg.Vector.Search(ctx, text, p.cfg.VectorTopK)
}

// classify runs the intent classifier under the capability timeout.
// Failures downgrade to an unknown-intent degraded signal.
func (p *Pipeline) classify(ctx context.Context, text, declaredContext string, prior []detect.Signal) detect.Signal {
	if p.cfg.Classifier == nil || !p.cfg.Classifier.Ready() {
		p.cfg.Metrics.RecordDegraded()
		return detect.ClassifierSignal(detect.UnknownIntent("classifier unavailable"))
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CapabilityTimeout)
	defer cancel()

	res, err := p.callClassifier(callCtx, text, declaredContext, prior)
	if err != nil {
		p.cfg.Metrics.RecordDegraded()
		log.Printf("[WARN] intent classification degraded: %v", err)
		return detect.ClassifierSignal(detect.UnknownIntent(err.Error()))
	}
	return detect.ClassifierSignal(res)
}

func (p *Pipeline) callClassifier(ctx context.Context, text, declaredContext string, prior []detect.Signal) (res detect.IntentResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.cfg.Metrics.RecordInternalError()
			err = fmt.Errorf("classifier panic: %v", r)
		}
	}()
	return p.cfg.Classifier.Classify(ctx, text, declaredContext, prior)
}

// recoverStage keeps a detector panic from taking down the request; the
// stage simply contributes nothing.
func (p *Pipeline) recoverStage(name string, out *[]detect.Signal) {
	if r := recover(); r != nil {
		p.cfg.Metrics.RecordInternalError()
		log.Printf("[WARN] %s stage panic recovered: %v", name, r)
		*out = nil
	}
}

func (p *Pipeline) recordAudit(ctx context.Context, req Request, decision mitigate.Decision, snap session.Snapshot, cacheHit bool, elapsed time.Duration) {
	rec := audit.Record{
		RequestID:   req.RequestID,
		SessionID:   req.SessionID,
		Timestamp:   p.now(),
		Action:      string(decision.Action),
		Intent:      decision.Intent,
		Confidence:  decision.Confidence,
		Reason:      decision.Reason,
		RiskScore:   snap.RiskScore,
		Locked:      snap.Locked,
		SignalCount: len(decision.Signals),
		CacheHit:    cacheHit,
		LatencyMS:   elapsed.Milliseconds(),
	}
	if err := p.cfg.Audit.Append(ctx, rec); err != nil {
		log.Printf("[WARN] audit append failed: %v", err)
	}
}

// RunSweeper evicts idle sessions on a fixed interval until the context
// is done. Intended to run as a background goroutine.
func (p *Pipeline) RunSweeper(ctx context.Context, interval, idleAfter time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := p.cfg.Sessions.Sweep(idleAfter, p.now()); n > 0 {
				log.Printf("[INFO] swept %d idle sessions", n)
			}
		}
	}
}

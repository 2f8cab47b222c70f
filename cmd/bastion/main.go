package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"

	"github.com/bastionai/bastion/pkg/audit"
	"github.com/bastionai/bastion/pkg/cache"
	"github.com/bastionai/bastion/pkg/config"
	"github.com/bastionai/bastion/pkg/detect"
	"github.com/bastionai/bastion/pkg/metrics"
	"github.com/bastionai/bastion/pkg/mitigate"
	"github.com/bastionai/bastion/pkg/ml"
	"github.com/bastionai/bastion/pkg/normalize"
	"github.com/bastionai/bastion/pkg/patterns"
	"github.com/bastionai/bastion/pkg/pipeline"
	"github.com/bastionai/bastion/pkg/session"
)

const Version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cfg := config.NewDefaultConfig()
		if len(os.Args) > 2 {
			cfg.ListenAddr = os.Args[2]
		}
		cfg.MustValidate()
		runServer(cfg)
	case "scan":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "scan requires text to analyze")
			os.Exit(1)
		}
		runScan(os.Args[2])
	case "version":
		fmt.Printf("bastion v%s\n", Version)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Bastion v%s - LLM request policy gateway\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  bastion serve [addr]   Start the HTTP gateway (default :8080)")
	fmt.Println("  bastion scan <text>    Evaluate one input and print the decision")
	fmt.Println("  bastion version        Show version")
	fmt.Println("")
	fmt.Println("Configuration is environment-driven; see the BASTION_* variables")
	fmt.Println("in pkg/config.")
}

// buildPipeline assembles the full stack from config. Optional pieces
// degrade with a log line instead of failing startup.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, func(), error) {
	registry := patterns.Default()
	if cfg.PatternDir != "" {
		if err := registry.Reload(cfg.PatternDir); err != nil {
			return nil, nil, fmt.Errorf("load pattern dir: %w", err)
		}
		log.Printf("[INFO] loaded pattern set %s from %s", registry.Version(), cfg.PatternDir)
	}

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if cfg.PatternDir != "" && cfg.WatchPatterns {
		watcher, err := patterns.NewWatcher(registry, cfg.PatternDir)
		if err != nil {
			log.Printf("[WARN] pattern watcher disabled: %v", err)
		} else {
			watchCtx, cancel := context.WithCancel(context.Background())
			cleanups = append(cleanups, cancel)
			go func() {
				if err := watcher.Run(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("[WARN] pattern watcher stopped: %v", err)
				}
			}()
		}
	}

	collector := metrics.NewCollector()

	sink, err := buildAuditSink(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanups = append(cleanups, func() {
		if err := sink.Close(); err != nil {
			log.Printf("[WARN] audit sink close: %v", err)
		}
	})

	p, err := pipeline.New(pipeline.Config{
		Normalizer: normalize.New(cfg.MaxInputLength),
		DLP:        detect.NewDLPScanner(registry),
		Heuristics: detect.NewHeuristicDetector(registry),
		Vector:     buildVectorIndex(ctx, cfg),
		Classifier: buildClassifier(cfg),
		Sessions: session.NewTracker(session.Config{
			LockThreshold:     cfg.LockThreshold,
			HalfLife:          cfg.RiskHalfLife,
			ContributionScale: cfg.ContributionScale,
		}),
		Engine: mitigate.NewEngine(mitigate.Thresholds{
			IntentConfidence: cfg.IntentConfidence,
			ContainSeverity:  cfg.ContainSeverity,
		}, mitigate.NewSanitizer(registry)),
		Cache:             buildCache(cfg, collector),
		Metrics:           collector,
		Audit:             sink,
		VectorFloor:       cfg.VectorFloor,
		VectorTopK:        cfg.VectorTopK,
		CapabilityTimeout: cfg.CapabilityTimeout,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return p, cleanup, nil
}

func buildVectorIndex(ctx context.Context, cfg *config.Config) detect.VectorIndex {
	if !cfg.EnableVector {
		log.Println("[INFO] vector similarity disabled by config")
		return ml.DisabledIndex{}
	}

	idx, err := ml.NewChromemIndex(ml.NewOllamaEmbeddingFunc(cfg.EmbedModel, cfg.EmbedBaseURL))
	if err != nil {
		log.Printf("[WARN] vector similarity disabled: %v", err)
		return ml.DisabledIndex{}
	}

	loadCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	if err := idx.LoadCorpus(loadCtx, nil); err != nil {
		log.Printf("[WARN] vector similarity disabled (corpus load failed: %v)", err)
		return ml.DisabledIndex{}
	}
	log.Printf("[INFO] vector similarity enabled (%d exemplars)", idx.Count())
	return idx
}

func buildClassifier(cfg *config.Config) detect.IntentClassifier {
	if !cfg.EnableClassifier || cfg.Classifier == config.ClassifierNone {
		log.Println("[INFO] intent classifier disabled by config")
		return ml.DisabledClassifier{}
	}

	switch cfg.Classifier {
	case config.ClassifierLocal:
		c, err := ml.NewLocalClassifier(ml.LocalClassifierConfig{
			ModelPath:       cfg.LocalModelPath,
			OnnxLibraryPath: cfg.OnnxLibraryPath,
		})
		if err != nil {
			log.Printf("[WARN] intent classifier disabled: %v", err)
			return ml.DisabledClassifier{}
		}
		return c
	default:
		c, err := ml.NewLLMClassifier(ml.LLMClassifierConfig{
			BaseURL: cfg.LLMBaseURL,
			APIKey:  cfg.LLMAPIKey,
			Model:   cfg.LLMModel,
		})
		if err != nil {
			log.Printf("[WARN] intent classifier disabled: %v", err)
			return ml.DisabledClassifier{}
		}
		log.Printf("[INFO] intent classifier enabled (model %s)", cfg.LLMModel)
		return c
	}
}

func buildCache(cfg *config.Config, collector *metrics.Collector) cache.SignalCache {
	switch cfg.Cache {
	case config.CacheNone:
		log.Println("[INFO] signal cache disabled by config")
		return nil
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		log.Printf("[INFO] signal cache using redis at %s", cfg.RedisAddr)
		rc := cache.NewRedis(client, cfg.CacheTTL)
		// A corrupt entry is an invariant violation, not just a miss.
		rc.OnCorrupt = collector.RecordInternalError
		return rc
	default:
		return cache.NewLRU(cfg.CacheCapacity, cfg.CacheTTL)
	}
}

func buildAuditSink(ctx context.Context, cfg *config.Config) (audit.Sink, error) {
	switch cfg.Audit {
	case config.AuditNone:
		return audit.NopSink{}, nil
	case config.AuditPostgres:
		sink, err := audit.NewPostgresSink(ctx, cfg.AuditDSN)
		if err != nil {
			return nil, fmt.Errorf("audit sink: %w", err)
		}
		log.Println("[INFO] audit records going to postgres")
		return sink, nil
	default:
		sink, err := audit.NewJSONLSink(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("audit sink: %w", err)
		}
		log.Printf("[INFO] audit records going to %s", cfg.AuditLogPath)
		return sink, nil
	}
}

// ============================================================================
// HTTP Server Mode
// ============================================================================

func runServer(cfg *config.Config) {
	ctx := context.Background()
	p, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		log.Fatalf("[STARTUP] %v", err)
	}
	defer cleanup()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go p.RunSweeper(sweepCtx, time.Minute, cfg.SessionIdleSweep)

	app := fiber.New(fiber.Config{
		AppName: "Bastion",
	})

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "version": Version})
	})

	app.Get("/metrics", func(c fiber.Ctx) error {
		return c.JSON(p.Metrics().Snapshot())
	})

	app.Post("/v1/protect", func(c fiber.Ctx) error {
		var req pipeline.Request
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		resp, err := p.Evaluate(c.Context(), req)
		if err != nil {
			if errors.Is(err, pipeline.ErrMalformedRequest) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			}
			log.Printf("[WARN] evaluation failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
		}
		return c.JSON(resp)
	})

	app.Get("/v1/sessions/:id", func(c fiber.Ctx) error {
		snap, ok := p.Sessions().Snapshot(c.Params("id"))
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown session"})
		}
		return c.JSON(snap)
	})

	app.Post("/admin/sessions/:id/reset", func(c fiber.Ctx) error {
		id := c.Params("id")
		if !p.Sessions().Reset(id) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown session"})
		}
		log.Printf("[INFO] session %s reset by operator", id)
		return c.JSON(fiber.Map{"status": "reset", "session_id": id})
	})

	log.Printf("[STARTUP] bastion v%s listening on %s", Version, cfg.ListenAddr)
	if err := app.Listen(cfg.ListenAddr); err != nil {
		log.Fatalf("[FATAL] server error: %v", err)
	}
}

// ============================================================================
// One-Shot Scan Mode
// ============================================================================

func runScan(text string) {
	cfg := config.NewDefaultConfig()
	// One-shot use; skip audit file churn unless explicitly configured.
	if os.Getenv("BASTION_AUDIT") == "" {
		cfg.Audit = config.AuditNone
	}

	ctx := context.Background()
	p, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}
	defer cleanup()

	resp, err := p.Evaluate(ctx, pipeline.Request{
		SessionID: "cli",
		Text:      text,
	})
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	out, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Println(string(out))

	if resp.Decision.Action != mitigate.ActionAllow {
		os.Exit(2)
	}
}

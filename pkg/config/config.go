// Package config holds the gateway's runtime settings. Everything can be
// set via environment variables (BASTION_* prefix) or programmatically.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// ClassifierBackend selects how intent classification runs.
type ClassifierBackend string

const (
	ClassifierNone  ClassifierBackend = "none"  // classifier disabled, signals degrade
	ClassifierLLM   ClassifierBackend = "llm"   // OpenAI-compatible chat endpoint
	ClassifierLocal ClassifierBackend = "local" // on-box ONNX model via hugot
)

// CacheBackend selects where deduplicated signal results live.
type CacheBackend string

const (
	CacheMemory CacheBackend = "memory" // in-process LRU (default)
	CacheRedis  CacheBackend = "redis"  // shared Redis instance
	CacheNone   CacheBackend = "none"   // caching disabled
)

// AuditBackend selects where decision records go.
type AuditBackend string

const (
	AuditJSONL    AuditBackend = "jsonl"
	AuditPostgres AuditBackend = "postgres"
	AuditNone     AuditBackend = "none"
)

// Config holds global settings for the Bastion gateway.
type Config struct {
	// === Server ===
	ListenAddr string // HTTP listen address (default ":8080")

	// === Normalization ===
	MaxInputLength int // byte cap applied before analysis, cut at a rune boundary (default 8192)

	// === Session Risk ===
	LockThreshold     float64       // risk score at which a session locks (default 70.0)
	RiskHalfLife      time.Duration // idle decay half-life (default 10m)
	ContributionScale float64       // signal weight to risk score multiplier (default 25.0)
	SessionIdleSweep  time.Duration // idle age after which sessions are swept (default 1h)

	// === Decision Thresholds (0.0 - 1.0) ===
	IntentConfidence float64 // minimum classifier confidence to act on intent (default 0.7)
	ContainSeverity  float64 // borderline severity that routes to containment (default 0.6)
	VectorFloor      float64 // similarity below this is noise (default 0.65)
	VectorTopK       int     // neighbors fetched per query (default 3)

	// === Capabilities ===
	EnableVector      bool              // vector similarity search
	EnableClassifier  bool              // intent classification
	CapabilityTimeout time.Duration     // per-call budget for vector and classifier (default 2s)
	Classifier        ClassifierBackend // which classifier implementation to wire

	// LLM classifier settings (Classifier == "llm").
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	// Local classifier settings (Classifier == "local").
	LocalModelPath  string
	OnnxLibraryPath string

	// Embedding backend for the vector index.
	EmbedBaseURL string
	EmbedModel   string

	// === Signal Cache ===
	Cache         CacheBackend
	CacheCapacity int           // LRU entry cap (default 1024)
	CacheTTL      time.Duration // entry lifetime, zero means no expiry
	RedisAddr     string

	// === Patterns ===
	PatternDir    string // directory of YAML pattern files, empty uses built-ins only
	WatchPatterns bool   // hot-reload PatternDir on change

	// === Audit ===
	Audit        AuditBackend
	AuditLogPath string // JSONL file path
	AuditDSN     string // Postgres DSN
}

// NewDefaultConfig creates a Config from environment variables with
// sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		ListenAddr: GetEnv("BASTION_LISTEN_ADDR", ":8080"),

		MaxInputLength: GetEnvInt("BASTION_MAX_INPUT_LENGTH", 8192),

		LockThreshold:     GetEnvFloat("BASTION_LOCK_THRESHOLD", 70.0),
		RiskHalfLife:      GetEnvDuration("BASTION_RISK_HALF_LIFE", 10*time.Minute),
		ContributionScale: GetEnvFloat("BASTION_CONTRIBUTION_SCALE", 25.0),
		SessionIdleSweep:  GetEnvDuration("BASTION_SESSION_IDLE_SWEEP", time.Hour),

		IntentConfidence: GetEnvFloat("BASTION_INTENT_CONFIDENCE", 0.7),
		ContainSeverity:  GetEnvFloat("BASTION_CONTAIN_SEVERITY", 0.6),
		VectorFloor:      GetEnvFloat("BASTION_VECTOR_FLOOR", 0.65),
		VectorTopK:       GetEnvInt("BASTION_VECTOR_TOP_K", 3),

		EnableVector:      GetEnvBool("BASTION_ENABLE_VECTOR", true),
		EnableClassifier:  GetEnvBool("BASTION_ENABLE_CLASSIFIER", true),
		CapabilityTimeout: GetEnvDuration("BASTION_CAPABILITY_TIMEOUT", 2*time.Second),
		Classifier:        ClassifierBackend(GetEnv("BASTION_CLASSIFIER", string(ClassifierLLM))),

		LLMBaseURL: GetEnv("BASTION_LLM_BASE_URL", "http://localhost:11434/v1"),
		LLMAPIKey:  GetEnv("BASTION_LLM_API_KEY", ""),
		LLMModel:   GetEnv("BASTION_LLM_MODEL", "qwen2.5:7b"),

		LocalModelPath:  GetEnv("BASTION_LOCAL_MODEL_PATH", "./models/injection-classifier"),
		OnnxLibraryPath: GetEnv("BASTION_ONNX_LIBRARY_PATH", ""),

		EmbedBaseURL: GetEnv("BASTION_EMBED_BASE_URL", "http://localhost:11434"),
		EmbedModel:   GetEnv("BASTION_EMBED_MODEL", "nomic-embed-text"),

		Cache:         CacheBackend(GetEnv("BASTION_CACHE", string(CacheMemory))),
		CacheCapacity: GetEnvInt("BASTION_CACHE_CAPACITY", 1024),
		CacheTTL:      GetEnvDuration("BASTION_CACHE_TTL", 15*time.Minute),
		RedisAddr:     GetEnv("BASTION_REDIS_ADDR", "localhost:6379"),

		PatternDir:    GetEnv("BASTION_PATTERN_DIR", ""),
		WatchPatterns: GetEnvBool("BASTION_WATCH_PATTERNS", false),

		Audit:        AuditBackend(GetEnv("BASTION_AUDIT", string(AuditJSONL))),
		AuditLogPath: GetEnv("BASTION_AUDIT_LOG", "decisions.jsonl"),
		AuditDSN:     GetEnv("BASTION_AUDIT_DSN", ""),
	}
}

// NewOfflineConfig creates a Config for air-gapped deployments: no
// remote classifier, no Redis, local model only.
func NewOfflineConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Classifier = ClassifierLocal
	cfg.EnableVector = false
	cfg.Cache = CacheMemory
	cfg.Audit = AuditJSONL
	return cfg
}

// NewStrictConfig creates a Config tuned for maximum containment. More
// false positives, fewer misses.
func NewStrictConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.LockThreshold = 50.0
	cfg.IntentConfidence = 0.5
	cfg.ContainSeverity = 0.4
	cfg.VectorFloor = 0.55
	return cfg
}

// NewLenientConfig creates a Config that minimizes false positives for
// high-trust internal traffic.
func NewLenientConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.LockThreshold = 90.0
	cfg.IntentConfidence = 0.85
	cfg.ContainSeverity = 0.75
	return cfg
}

// Validate checks cross-field consistency. It returns the first problem
// found.
func (c *Config) Validate() error {
	if c.MaxInputLength <= 0 {
		return fmt.Errorf("max input length must be positive, got %d", c.MaxInputLength)
	}
	if c.LockThreshold <= 0 {
		return fmt.Errorf("lock threshold must be positive, got %v", c.LockThreshold)
	}
	if c.IntentConfidence < 0 || c.IntentConfidence > 1 {
		return fmt.Errorf("intent confidence %v out of [0,1]", c.IntentConfidence)
	}
	if c.ContainSeverity < 0 || c.ContainSeverity > 1 {
		return fmt.Errorf("contain severity %v out of [0,1]", c.ContainSeverity)
	}
	if c.VectorFloor < 0 || c.VectorFloor > 1 {
		return fmt.Errorf("vector floor %v out of [0,1]", c.VectorFloor)
	}
	if c.VectorTopK <= 0 {
		return fmt.Errorf("vector top-k must be positive, got %d", c.VectorTopK)
	}
	if c.CapabilityTimeout <= 0 {
		return fmt.Errorf("capability timeout must be positive, got %v", c.CapabilityTimeout)
	}

	switch c.Classifier {
	case ClassifierNone, ClassifierLLM, ClassifierLocal:
	default:
		return fmt.Errorf("unknown classifier backend %q", c.Classifier)
	}
	if c.EnableClassifier && c.Classifier == ClassifierLLM && c.LLMBaseURL == "" {
		return fmt.Errorf("llm classifier enabled but BASTION_LLM_BASE_URL is empty")
	}
	if c.EnableClassifier && c.Classifier == ClassifierLocal && c.LocalModelPath == "" {
		return fmt.Errorf("local classifier enabled but BASTION_LOCAL_MODEL_PATH is empty")
	}

	switch c.Cache {
	case CacheMemory, CacheRedis, CacheNone:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache)
	}
	if c.Cache == CacheRedis && c.RedisAddr == "" {
		return fmt.Errorf("redis cache selected but BASTION_REDIS_ADDR is empty")
	}
	if c.Cache == CacheMemory && c.CacheCapacity <= 0 {
		return fmt.Errorf("cache capacity must be positive, got %d", c.CacheCapacity)
	}

	switch c.Audit {
	case AuditJSONL, AuditPostgres, AuditNone:
	default:
		return fmt.Errorf("unknown audit backend %q", c.Audit)
	}
	if c.Audit == AuditJSONL && c.AuditLogPath == "" {
		return fmt.Errorf("jsonl audit selected but BASTION_AUDIT_LOG is empty")
	}
	if c.Audit == AuditPostgres && c.AuditDSN == "" {
		return fmt.Errorf("postgres audit selected but BASTION_AUDIT_DSN is empty")
	}

	return nil
}

// MustValidate calls Validate and exits fatally on failure. Call at
// startup before serving.
func (c *Config) MustValidate() {
	if err := c.Validate(); err != nil {
		log.Fatalf("[STARTUP] configuration invalid: %v", err)
	}
	log.Println("[STARTUP] configuration validated")
}

// Helper functions for environment variable parsing.

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

// GetEnvDuration returns the duration value of an environment variable
// (Go duration syntax, e.g. "90s", "10m") or a default value.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return defaultValue
}

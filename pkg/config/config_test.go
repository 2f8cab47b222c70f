package config

import (
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
	if cfg.LockThreshold != 70.0 {
		t.Errorf("lock threshold = %v, want 70.0", cfg.LockThreshold)
	}
	if cfg.RiskHalfLife != 10*time.Minute {
		t.Errorf("half-life = %v, want 10m", cfg.RiskHalfLife)
	}
	if cfg.IntentConfidence != 0.7 {
		t.Errorf("intent confidence = %v, want 0.7", cfg.IntentConfidence)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BASTION_LOCK_THRESHOLD", "55.5")
	t.Setenv("BASTION_RISK_HALF_LIFE", "5m")
	t.Setenv("BASTION_ENABLE_VECTOR", "false")
	t.Setenv("BASTION_CACHE", "redis")
	t.Setenv("BASTION_REDIS_ADDR", "redis.internal:6379")

	cfg := NewDefaultConfig()
	if cfg.LockThreshold != 55.5 {
		t.Errorf("lock threshold = %v, want 55.5", cfg.LockThreshold)
	}
	if cfg.RiskHalfLife != 5*time.Minute {
		t.Errorf("half-life = %v, want 5m", cfg.RiskHalfLife)
	}
	if cfg.EnableVector {
		t.Error("vector capability should be disabled")
	}
	if cfg.Cache != CacheRedis || cfg.RedisAddr != "redis.internal:6379" {
		t.Errorf("cache config = %v/%v", cfg.Cache, cfg.RedisAddr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("overridden config should validate: %v", err)
	}
}

func TestMalformedEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("BASTION_LOCK_THRESHOLD", "not-a-number")
	t.Setenv("BASTION_CACHE_TTL", "ten minutes")

	cfg := NewDefaultConfig()
	if cfg.LockThreshold != 70.0 {
		t.Errorf("lock threshold = %v, want default 70.0", cfg.LockThreshold)
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Errorf("cache TTL = %v, want default 15m", cfg.CacheTTL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative max input", func(c *Config) { c.MaxInputLength = -1 }},
		{"confidence above one", func(c *Config) { c.IntentConfidence = 1.2 }},
		{"zero top-k", func(c *Config) { c.VectorTopK = 0 }},
		{"unknown classifier", func(c *Config) { c.Classifier = "bert-via-carrier-pigeon" }},
		{"llm without url", func(c *Config) { c.Classifier = ClassifierLLM; c.LLMBaseURL = "" }},
		{"redis without addr", func(c *Config) { c.Cache = CacheRedis; c.RedisAddr = "" }},
		{"postgres without dsn", func(c *Config) { c.Audit = AuditPostgres; c.AuditDSN = "" }},
		{"unknown audit", func(c *Config) { c.Audit = "carrier-pigeon" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestProfiles(t *testing.T) {
	strict := NewStrictConfig()
	lenient := NewLenientConfig()
	if strict.LockThreshold >= lenient.LockThreshold {
		t.Error("strict profile should lock sooner than lenient")
	}
	if strict.IntentConfidence >= lenient.IntentConfidence {
		t.Error("strict profile should act on lower confidence")
	}
	offline := NewOfflineConfig()
	if offline.Classifier != ClassifierLocal || offline.EnableVector {
		t.Errorf("offline profile misconfigured: %+v", offline)
	}
	for _, cfg := range []*Config{strict, lenient, offline} {
		if err := cfg.Validate(); err != nil {
			t.Errorf("profile should validate: %v", err)
		}
	}
}

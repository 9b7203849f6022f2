package config_test

import (
	"strings"
	"testing"

	"github.com/avatarstage/performer/internal/config"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
providers:
  main:
    kind: openai
    model: gpt-4o
  claude:
    kind: anyllm
    vendor: anthropic
    model: claude-3-5-sonnet-latest
directors:
  performance: main
  stage: main
  camera: claude
pipeline:
  chunk_threshold: 12
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Directors.Camera != "claude" {
		t.Errorf("directors.camera = %q, want claude", cfg.Directors.Camera)
	}
	if cfg.Pipeline.ChunkThreshold != 12 {
		t.Errorf("pipeline.chunk_threshold = %d, want 12", cfg.Pipeline.ChunkThreshold)
	}
}

func TestLoadFromReader_DefaultsApplied(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Pipeline.RetryMaxAttempts != config.DefaultPipelineConfig().RetryMaxAttempts {
		t.Errorf("retry_max_attempts default not applied, got %d", cfg.Pipeline.RetryMaxAttempts)
	}
	if cfg.Engine.TickInterval != config.DefaultEngineConfig().TickInterval {
		t.Errorf("tick_interval default not applied, got %v", cfg.Engine.TickInterval)
	}
	if cfg.Engine.DefaultLightPreset != "spotlight" {
		t.Errorf("default_light_preset default not applied, got %q", cfg.Engine.DefaultLightPreset)
	}
}

func TestLoadFromReader_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`
server:
  log_level: bananas
`))
	if err == nil {
		t.Fatal("expected error for invalid log_level")
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`
server:
  typo_field: oops
`))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadFromReader_DirectorReferencesUndefinedProvider(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`
providers:
  main:
    kind: openai
    model: gpt-4o
directors:
  performance: main
  stage: ghost
  camera: main
`))
	if err == nil {
		t.Fatal("expected error for director referencing undefined provider")
	}
	if !strings.Contains(err.Error(), "ghost") {
		t.Errorf("error should mention the undefined provider name, got: %v", err)
	}
}

func TestLoadFromReader_AnyllmRequiresVendor(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`
providers:
  main:
    kind: anyllm
    model: claude-3-5-sonnet-latest
`))
	if err == nil {
		t.Fatal("expected error for anyllm provider missing vendor")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/path.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

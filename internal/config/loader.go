package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// ValidProviderKinds lists the recognised Kind values for a [ProviderEntry].
// Used by [Validate] to warn about unrecognised backend kinds.
var ValidProviderKinds = []string{"openai", "anyllm", "raw", "mock"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-valued tunables with their documented defaults.
func applyDefaults(cfg *Config) {
	defaultsPipeline := DefaultPipelineConfig()
	if cfg.Pipeline.ChunkThreshold <= 0 {
		cfg.Pipeline.ChunkThreshold = defaultsPipeline.ChunkThreshold
	}
	if cfg.Pipeline.RequestTimeout <= 0 {
		cfg.Pipeline.RequestTimeout = defaultsPipeline.RequestTimeout
	}
	if cfg.Pipeline.RetryBaseDelay <= 0 {
		cfg.Pipeline.RetryBaseDelay = defaultsPipeline.RetryBaseDelay
	}
	if cfg.Pipeline.RetryMaxAttempts <= 0 {
		cfg.Pipeline.RetryMaxAttempts = defaultsPipeline.RetryMaxAttempts
	}

	defaultsEngine := DefaultEngineConfig()
	if cfg.Engine.TickInterval <= 0 {
		cfg.Engine.TickInterval = defaultsEngine.TickInterval
	}
	if cfg.Engine.DefaultLightPreset == "" {
		cfg.Engine.DefaultLightPreset = defaultsEngine.DefaultLightPreset
	}
	if cfg.Engine.DefaultCameraView == "" {
		cfg.Engine.DefaultCameraView = defaultsEngine.DefaultCameraView
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	for name, entry := range cfg.Providers {
		prefix := fmt.Sprintf("providers[%s]", name)
		if entry.Kind == "" {
			errs = append(errs, fmt.Errorf("%s.kind is required", prefix))
			continue
		}
		validateProviderKind(prefix, entry.Kind)
		if entry.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required", prefix))
		}
		if entry.Kind == "anyllm" && entry.Vendor == "" {
			errs = append(errs, fmt.Errorf("%s.vendor is required when kind is anyllm", prefix))
		}
	}

	errs = append(errs, validateDirectorRole("directors.performance", cfg.Directors.Performance, cfg.Providers)...)
	errs = append(errs, validateDirectorRole("directors.stage", cfg.Directors.Stage, cfg.Providers)...)
	errs = append(errs, validateDirectorRole("directors.camera", cfg.Directors.Camera, cfg.Providers)...)
	for _, name := range cfg.Directors.PerformanceFallbacks {
		errs = append(errs, validateDirectorRole("directors.performance_fallbacks", name, cfg.Providers)...)
	}
	for _, name := range cfg.Directors.StageFallbacks {
		errs = append(errs, validateDirectorRole("directors.stage_fallbacks", name, cfg.Providers)...)
	}
	for _, name := range cfg.Directors.CameraFallbacks {
		errs = append(errs, validateDirectorRole("directors.camera_fallbacks", name, cfg.Providers)...)
	}

	if cfg.Pipeline.ChunkThreshold < 0 {
		errs = append(errs, fmt.Errorf("pipeline.chunk_threshold must not be negative"))
	}
	if cfg.Pipeline.RetryMaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("pipeline.retry_max_attempts must not be negative"))
	}
	if cfg.Engine.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("engine.tick_interval must not be negative"))
	}

	return errors.Join(errs...)
}

// validateDirectorRole checks that role names a provider present in providers.
func validateDirectorRole(field, name string, providers map[string]ProviderEntry) []error {
	if name == "" {
		return nil
	}
	if _, ok := providers[name]; !ok {
		return []error{fmt.Errorf("%s references undefined provider %q", field, name)}
	}
	return nil
}

// validateProviderKind logs a warning if kind is not in [ValidProviderKinds].
func validateProviderKind(prefix, kind string) {
	for _, k := range ValidProviderKinds {
		if k == kind {
			return
		}
	}
	slog.Warn("unknown provider kind — may be a typo or third-party backend",
		"field", prefix,
		"kind", kind,
		"known", ValidProviderKinds,
	)
}

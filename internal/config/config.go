// Package config provides the configuration schema, loader, and provider
// registry for the avatar performance engine.
package config

import "time"

// Config is the root configuration structure for the performer process.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig             `yaml:"server"`
	Providers map[string]ProviderEntry `yaml:"providers"`
	Directors DirectorsConfig          `yaml:"directors"`
	Pipeline  PipelineConfig           `yaml:"pipeline"`
	Engine    EngineConfig             `yaml:"engine"`
}

// LogLevel controls slog verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is one of the recognised log levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// ServerConfig holds network and logging settings for the runner's HTTP
// surface (health checks and Prometheus metrics).
type ServerConfig struct {
	// ListenAddr is the TCP address the metrics/health server listens on
	// (e.g., ":8080"). Empty disables the HTTP surface.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProviderEntry configures a single named LLM backend. A performance can
// reference any number of backends by name in [DirectorsConfig]; the same
// backend may be shared across roles.
type ProviderEntry struct {
	// Kind selects the backend implementation: "openai" (pkg/llm/openai),
	// "anyllm" (pkg/llm/anyllm), or "raw" (pkg/llm/raw, a direct
	// chat-completions transport with no vendor SDK).
	Kind string `yaml:"kind"`

	// Vendor is only used when Kind is "anyllm"; it selects the upstream
	// vendor ("openai", "anthropic", "gemini", "ollama", "deepseek",
	// "mistral", "groq", "llamacpp", "llamafile").
	Vendor string `yaml:"vendor"`

	// APIKey is the authentication key for the provider's API. May be left
	// empty to fall back to the vendor's standard environment variable.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o").
	Model string `yaml:"model"`

	// Timeout bounds a single request to this backend. Zero means no
	// provider-side timeout beyond the pipeline's own deadline.
	Timeout time.Duration `yaml:"timeout"`
}

// DirectorsConfig maps each director role to the name of a [ProviderEntry]
// in Config.Providers, plus optional ordered fallback backends per role.
// Each resolved role is wrapped in a circuit-breaker failover group: when
// the primary's breaker is open or its call fails, fallbacks are tried in
// the listed order.
type DirectorsConfig struct {
	Performance string `yaml:"performance"`
	Stage       string `yaml:"stage"`
	Camera      string `yaml:"camera"`

	PerformanceFallbacks []string `yaml:"performance_fallbacks"`
	StageFallbacks       []string `yaml:"stage_fallbacks"`
	CameraFallbacks      []string `yaml:"camera_fallbacks"`
}

// PipelineConfig tunes the director orchestrator (internal/pipeline).
type PipelineConfig struct {
	// ChunkThreshold is the number of sections above which a song's section
	// list is split into multiple sequential director calls.
	ChunkThreshold int `yaml:"chunk_threshold"`

	// RequestTimeout bounds a single director call end-to-end.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// RetryBaseDelay is the base delay used by the exponential backoff
	// retry policy in internal/llmclient (delay = base * 2^(attempt-1)).
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`

	// RetryMaxAttempts is the maximum number of attempts (including the
	// first) before a director call is abandoned.
	RetryMaxAttempts int `yaml:"retry_max_attempts"`

	// Seed seeds any randomized tie-breaking the pipeline performs
	// (e.g., fallback jitter). Zero means unseeded.
	Seed int64 `yaml:"seed"`
}

// EngineConfig tunes the playback engine (internal/engine).
type EngineConfig struct {
	// TickInterval is the scheduler's frame period. 1/60s by default.
	TickInterval time.Duration `yaml:"tick_interval"`

	// DefaultLightPreset names the lighting preset applied before the first
	// lighting block starts.
	DefaultLightPreset string `yaml:"default_light_preset"`

	// DefaultCameraView names the camera view applied before the first
	// camera block starts.
	DefaultCameraView string `yaml:"default_camera_view"`
}

// DefaultPipelineConfig returns the baseline pipeline tuning used when a
// loaded config leaves PipelineConfig fields at their zero value.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ChunkThreshold:   8,
		RequestTimeout:   45 * time.Second,
		RetryBaseDelay:   250 * time.Millisecond,
		RetryMaxAttempts: 3,
	}
}

// DefaultEngineConfig returns the baseline engine tuning used when a loaded
// config leaves EngineConfig fields at their zero value.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TickInterval:       time.Second / 60,
		DefaultLightPreset: "spotlight",
		DefaultCameraView:  "full",
	}
}

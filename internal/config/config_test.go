package config_test

import (
	"context"
	"errors"
	"testing"

	"github.com/avatarstage/performer/internal/config"
	"github.com/avatarstage/performer/pkg/llm"
	llmmock "github.com/avatarstage/performer/pkg/llm/mock"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	cases := map[config.LogLevel]bool{
		config.LogLevelDebug: true,
		config.LogLevelInfo:  true,
		config.LogLevelWarn:  true,
		config.LogLevelError: true,
		"":                   false,
		"trace":               false,
	}
	for level, want := range cases {
		if got := level.IsValid(); got != want {
			t.Errorf("LogLevel(%q).IsValid() = %v, want %v", level, got, want)
		}
	}
}

func TestDefaultPipelineConfig(t *testing.T) {
	t.Parallel()
	d := config.DefaultPipelineConfig()
	if d.ChunkThreshold <= 0 {
		t.Error("ChunkThreshold should be positive")
	}
	if d.RetryMaxAttempts <= 0 {
		t.Error("RetryMaxAttempts should be positive")
	}
}

func TestRegistry_CreateDirectors(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.Register("mock", func(entry config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{Caps: llm.ModelCapabilities{ContextWindow: 1000}}, nil
	})

	cfg := &config.Config{
		Providers: map[string]config.ProviderEntry{
			"solo": {Kind: "mock", Model: "whatever"},
		},
		Directors: config.DirectorsConfig{Performance: "solo", Stage: "solo", Camera: "solo"},
	}

	perf, stage, cam, err := reg.CreateDirectors(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if perf == nil || stage == nil || cam == nil {
		t.Fatal("expected all three director providers to be non-nil")
	}
}

func TestRegistry_CreateDirectors_FailoverToFallback(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.Register("mock-down", func(entry config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{CompleteErr: errors.New("backend down")}, nil
	})
	reg.Register("mock-up", func(entry config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}, nil
	})

	cfg := &config.Config{
		Providers: map[string]config.ProviderEntry{
			"primary": {Kind: "mock-down", Model: "m"},
			"backup":  {Kind: "mock-up", Model: "m"},
		},
		Directors: config.DirectorsConfig{
			Performance: "primary", Stage: "primary", Camera: "primary",
			PerformanceFallbacks: []string{"backup"},
			StageFallbacks:       []string{"backup"},
			CameraFallbacks:      []string{"backup"},
		},
	}

	perf, _, _, err := reg.CreateDirectors(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := perf.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("expected failover to the backup provider, got error: %v", err)
	}
	if resp.Content != "ok" {
		t.Fatalf("resp.Content = %q, want %q", resp.Content, "ok")
	}
}

func TestRegistry_CreateDirectors_UnregisteredKind(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	cfg := &config.Config{
		Providers: map[string]config.ProviderEntry{
			"solo": {Kind: "openai", Model: "gpt-4o"},
		},
		Directors: config.DirectorsConfig{Performance: "solo", Stage: "solo", Camera: "solo"},
	}

	_, _, _, err := reg.CreateDirectors(cfg)
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_CreateDirectors_MissingRole(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.Register("mock", func(entry config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{}, nil
	})
	cfg := &config.Config{
		Providers: map[string]config.ProviderEntry{
			"solo": {Kind: "mock"},
		},
		Directors: config.DirectorsConfig{Performance: "solo", Stage: "solo"},
	}

	_, _, _, err := reg.CreateDirectors(cfg)
	if err == nil {
		t.Fatal("expected error for missing camera director provider")
	}
}

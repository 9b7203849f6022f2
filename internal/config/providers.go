package config

import (
	"fmt"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/avatarstage/performer/pkg/llm"
	"github.com/avatarstage/performer/pkg/llm/anyllm"
	"github.com/avatarstage/performer/pkg/llm/openai"
	"github.com/avatarstage/performer/pkg/llm/raw"
)

// RegisterBuiltinProviders registers the factories for every provider kind
// this module ships with ("openai", "anyllm", "raw") into r. Production
// wiring (cmd/avatarperf) calls this once at startup; since there is only
// one provider category here (LLM), a single registry covers all three
// director roles.
func RegisterBuiltinProviders(r *Registry) {
	r.Register("openai", newOpenAIProvider)
	r.Register("anyllm", newAnyLLMProvider)
	r.Register("raw", newRawProvider)
}

func newOpenAIProvider(entry ProviderEntry) (llm.Provider, error) {
	var opts []openai.Option
	if entry.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(entry.BaseURL))
	}
	if entry.Timeout > 0 {
		opts = append(opts, openai.WithTimeout(entry.Timeout))
	}
	p, err := openai.New(entry.APIKey, entry.Model, opts...)
	if err != nil {
		return nil, fmt.Errorf("config: openai provider: %w", err)
	}
	return p, nil
}

func newAnyLLMProvider(entry ProviderEntry) (llm.Provider, error) {
	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	p, err := anyllm.New(entry.Vendor, entry.Model, opts...)
	if err != nil {
		return nil, fmt.Errorf("config: anyllm provider: %w", err)
	}
	return p, nil
}

func newRawProvider(entry ProviderEntry) (llm.Provider, error) {
	if entry.BaseURL == "" {
		return nil, fmt.Errorf("config: raw provider: base_url is required")
	}
	var opts []raw.Option
	if entry.Timeout > 0 {
		opts = append(opts, raw.WithTimeout(entry.Timeout))
	}
	return raw.New(entry.BaseURL, entry.Model, opts...), nil
}

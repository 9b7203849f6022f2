package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/avatarstage/performer/internal/resilience"
	"github.com/avatarstage/performer/pkg/llm"
)

// ErrProviderNotRegistered is returned by [Registry.Create] when no factory
// has been registered under the requested provider kind.
var ErrProviderNotRegistered = errors.New("config: provider kind not registered")

// Registry maps provider kinds ("openai", "anyllm", "mock", ...) to their
// constructor functions. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	kind map[string]func(ProviderEntry) (llm.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{kind: make(map[string]func(ProviderEntry) (llm.Provider, error))}
}

// Register registers an LLM provider factory under kind.
// Subsequent calls with the same kind overwrite the previous registration.
func (r *Registry) Register(kind string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kind[kind] = factory
}

// Create instantiates the LLM provider described by entry using the factory
// registered under entry.Kind. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that kind.
func (r *Registry) Create(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.kind[entry.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotRegistered, entry.Kind)
	}
	return factory(entry)
}

// CreateDirectors resolves all three director roles from cfg.Providers using
// r, returning one llm.Provider per role. Each role is wrapped in a
// [resilience.LLMFallback]: the primary backend sits behind a circuit
// breaker, and any configured fallbacks are tried in order when the primary
// fails or its breaker is open, so a flaky backend degrades a run instead
// of dropping a director's work.
func (r *Registry) CreateDirectors(cfg *Config) (performance, stage, camera llm.Provider, err error) {
	performance, err = r.createRole("performance", cfg.Directors.Performance, cfg.Directors.PerformanceFallbacks, cfg.Providers)
	if err != nil {
		return nil, nil, nil, err
	}
	stage, err = r.createRole("stage", cfg.Directors.Stage, cfg.Directors.StageFallbacks, cfg.Providers)
	if err != nil {
		return nil, nil, nil, err
	}
	camera, err = r.createRole("camera", cfg.Directors.Camera, cfg.Directors.CameraFallbacks, cfg.Providers)
	if err != nil {
		return nil, nil, nil, err
	}
	return performance, stage, camera, nil
}

func (r *Registry) createRole(role, name string, fallbacks []string, providers map[string]ProviderEntry) (llm.Provider, error) {
	primary, err := r.resolve(role, name, providers)
	if err != nil {
		return nil, err
	}

	wrapped := resilience.NewLLMFallback(primary, name, resilience.FallbackConfig{})
	for _, fbName := range fallbacks {
		fb, err := r.resolve(role, fbName, providers)
		if err != nil {
			return nil, fmt.Errorf("config: director role %q fallback: %w", role, err)
		}
		wrapped.AddFallback(fbName, fb)
	}
	return wrapped, nil
}

// resolve instantiates the named provider entry for role.
func (r *Registry) resolve(role, name string, providers map[string]ProviderEntry) (llm.Provider, error) {
	if name == "" {
		return nil, fmt.Errorf("config: director role %q has no provider configured", role)
	}
	entry, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("config: director role %q references undefined provider %q", role, name)
	}
	p, err := r.Create(entry)
	if err != nil {
		return nil, fmt.Errorf("config: director role %q: %w", role, err)
	}
	return p, nil
}

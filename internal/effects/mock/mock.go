// Package mock provides a recording test double for the effects.Effects
// interface, in the same style as pkg/llm/mock and internal/head/mock.
package mock

import (
	"sync"

	"github.com/avatarstage/performer/internal/effects"
)

// Effects is a recording mock implementation of effects.Effects. The Calls
// slice preserves call order across effect kinds, which fx-executor tests
// need to assert "reset happens after the last stacked effect this frame".
type Effects struct {
	mu sync.Mutex

	Bloom       float64
	Vignette    float64
	Chromatic   float64
	Glitch      float64
	Pixelation  float64
	ResetCount  int

	Calls []string
}

// New constructs an empty Effects mock.
func New() *Effects { return &Effects{} }

func (e *Effects) SetBloom(intensity float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Bloom = intensity
	e.Calls = append(e.Calls, "bloom")
}

func (e *Effects) SetVignette(intensity float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Vignette = intensity
	e.Calls = append(e.Calls, "vignette")
}

func (e *Effects) SetChromaticAberration(amount float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Chromatic = amount
	e.Calls = append(e.Calls, "chromatic")
}

func (e *Effects) SetGlitch(intensity float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Glitch = intensity
	e.Calls = append(e.Calls, "glitch")
}

func (e *Effects) SetPixelation(size float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Pixelation = size
	e.Calls = append(e.Calls, "pixelation")
}

func (e *Effects) ResetEffects() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Bloom, e.Vignette, e.Chromatic, e.Glitch, e.Pixelation = 0, 0, 0, 0, 0
	e.ResetCount++
	e.Calls = append(e.Calls, "reset")
}

var _ effects.Effects = (*Effects)(nil)

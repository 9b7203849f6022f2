// Package effects specifies the external post-processing compositor
// ("Effects") as this module consumes it. The fx layer executor
// (internal/engine/layers) is the sole caller; the compositor itself is
// an external collaborator supplied by the embedding application.
package effects

// Effects is the imperative post-processing surface the fx executor drives
// (internal/engine/layers/fx.go). A production renderer supplies a real
// implementation; internal/effects/mock supplies a recording test double.
type Effects interface {
	// SetBloom applies bloom glow at the given intensity in [0,1].
	SetBloom(intensity float64)

	// SetVignette applies screen-edge darkening at the given intensity in
	// [0,1].
	SetVignette(intensity float64)

	// SetChromaticAberration applies RGB channel offset at the given
	// amount in [0,1].
	SetChromaticAberration(amount float64)

	// SetGlitch applies a digital-glitch effect at the given intensity in
	// [0,1].
	SetGlitch(intensity float64)

	// SetPixelation applies a pixelation effect at the given block size in
	// pixels. The fx executor inverts its fade for this effect: effective
	// size scales with 2 - fade(t).
	SetPixelation(size float64)

	// ResetEffects returns every effect to its neutral, disabled value.
	// Called for the post_reset verb and whenever the fx executor stops.
	ResetEffects()
}

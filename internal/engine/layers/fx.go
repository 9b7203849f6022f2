package layers

import (
	"context"

	"github.com/avatarstage/performer/internal/effects"
	"github.com/avatarstage/performer/internal/engine"
	"github.com/avatarstage/performer/internal/timeline"
)

const defaultPixelationSize = 8

// FX drives the post-processing effects layer: every active block applies
// its own tag independently (stack blend), faded by the block's own
// fade-in/out envelope. An effect tag with no active block this tick is
// reset to its neutral value, never left at its last applied intensity.
type FX struct {
	fx effects.Effects

	activeTags map[timeline.FXTag]bool
}

// NewFX constructs an FX executor bound to fx.
func NewFX(fx effects.Effects) *FX {
	return &FX{fx: fx, activeTags: map[timeline.FXTag]bool{}}
}

func (f *FX) LoadResources(context.Context, *timeline.Timeline) error { return nil }

func (f *FX) Update(t, _ float64, active []*timeline.Block) {
	newActive := map[timeline.FXTag]bool{}

	for _, blk := range active {
		data, ok := blk.Data.(timeline.FXBlockData)
		if !ok {
			continue
		}
		values, bools := data.Params, data.BoolParams
		if len(data.Keyframes) > 0 {
			values, bools = interpolateFXKeyframes(data.Keyframes, t-float64(blk.StartMS))
		}
		fade := timeline.Fade(blk, t)
		f.apply(data.Effect, values, bools, fade)
		newActive[data.Effect] = true
	}

	for tag := range f.activeTags {
		if !newActive[tag] {
			f.reset(tag)
		}
	}
	f.activeTags = newActive
}

func (f *FX) apply(tag timeline.FXTag, values map[string]float64, bools map[string]bool, fade float64) {
	switch tag {
	case timeline.FXBloom:
		f.fx.SetBloom(values["intensity"] * fade)
	case timeline.FXVignette:
		f.fx.SetVignette(values["intensity"] * fade)
	case timeline.FXChromatic:
		f.fx.SetChromaticAberration(values["amount"] * fade)
	case timeline.FXGlitch:
		if !bools["active"] && len(bools) > 0 {
			f.fx.SetGlitch(0)
			return
		}
		f.fx.SetGlitch(values["intensity"] * fade)
	case timeline.FXPixelation:
		size := values["size"]
		if size <= 0 {
			size = defaultPixelationSize
		}
		f.fx.SetPixelation(size * (2 - fade))
	}
}

func (f *FX) reset(tag timeline.FXTag) {
	switch tag {
	case timeline.FXBloom:
		f.fx.SetBloom(0)
	case timeline.FXVignette:
		f.fx.SetVignette(0)
	case timeline.FXChromatic:
		f.fx.SetChromaticAberration(0)
	case timeline.FXGlitch:
		f.fx.SetGlitch(0)
	case timeline.FXPixelation:
		f.fx.SetPixelation(0)
	}
}

// interpolateFXKeyframes linearly interpolates numeric params between the
// bracketing keyframes, but booleans are never blended: the next keyframe's
// boolean values win as soon as local progress is nonzero, giving bools a
// hard-cut semantic inside an otherwise continuous curve.
func interpolateFXKeyframes(keyframes []timeline.Keyframe, elapsedMS float64) (map[string]float64, map[string]bool) {
	lo, hi, localT := bracketKeyframes(keyframes, elapsedMS)
	eased := hi.Easing.Apply(localT)

	values := make(map[string]float64, len(hi.Values))
	for name, hv := range hi.Values {
		values[name] = lerp(lo.Values[name], hv, eased)
	}
	for name, lv := range lo.Values {
		if _, ok := values[name]; !ok {
			values[name] = lv
		}
	}

	bools := hi.Bools
	if localT == 0 {
		bools = lo.Bools
	}
	return values, bools
}

func (f *FX) Pause() {}

func (f *FX) Stop() {
	for tag := range f.activeTags {
		f.reset(tag)
	}
	f.activeTags = map[timeline.FXTag]bool{}
	f.fx.ResetEffects()
}

func (f *FX) Seek(float64) {
	f.activeTags = map[timeline.FXTag]bool{}
}

func (f *FX) OnEngineStateChange(engine.State) {}

func (f *FX) ExecuteAction(action string, args map[string]any) error {
	switch action {
	case "post_reset":
		f.Stop()
	case "set_bloom":
		if v, ok := numericArg(args, "intensity"); ok {
			f.fx.SetBloom(v)
		}
	case "set_vignette":
		if v, ok := numericArg(args, "intensity"); ok {
			f.fx.SetVignette(v)
		}
	case "set_glitch":
		if v, ok := numericArg(args, "intensity"); ok {
			f.fx.SetGlitch(v)
		}
	}
	return nil
}

func (f *FX) Dispose() {}

var _ engine.Executor = (*FX)(nil)

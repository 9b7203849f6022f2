package layers

import (
	"context"
	"math"

	"github.com/avatarstage/performer/internal/engine"
	"github.com/avatarstage/performer/internal/head"
	"github.com/avatarstage/performer/internal/timeline"
)

// lightTriple is the three-channel color+intensity state the lighting
// executor animates.
type lightTriple struct {
	AmbientHex string
	AmbientI   float64
	DirectHex  string
	DirectI    float64
	SpotHex    string
	SpotI      float64
}

// lightPresets are the canonical ambient/direct/spot values per preset.
// Snapshot tests depend on these exact numbers.
var lightPresets = map[timeline.LightPreset]lightTriple{
	timeline.LightSpotlight: {"#ffffff", 0.5, "#ffffff", 1, "#ffffff", 20},
	timeline.LightNeon:      {"#ff00ff", 0.6, "#00ffff", 0.8, "#ff00ff", 25},
	timeline.LightNoir:      {"#1a1a2e", 0.3, "#4a4a6a", 0.6, "#8888aa", 15},
	timeline.LightSunset:    {"#ff6b35", 0.7, "#f7c59f", 0.9, "#ff8c42", 22},
	timeline.LightFrost:     {"#a8dadc", 0.6, "#e0fbfc", 0.85, "#3d5a80", 18},
	timeline.LightCrimson:   {"#660000", 0.5, "#cc0000", 0.9, "#ff3333", 25},
}

// transitionDurations maps a LightTransition tag to its fade length in
// ms; cut applies immediately.
var transitionDurations = map[timeline.LightTransition]float64{
	timeline.TransitionFade:  500,
	timeline.TransitionPulse: 300,
	timeline.TransitionCut:   0,
}

// Lighting drives the lighting layer: it takes only the
// highest-priority active block, transitions between presets, and
// modulates spot intensity with a slow sine when a block requests an
// audio pulse.
type Lighting struct {
	h head.Head

	currentBlockID  string
	transitionStart lightTriple
	target          lightTriple
	transitionAtMS  float64
	transitionDurMS float64
	pulsePhase      float64
}

// NewLighting constructs a Lighting executor bound to h, starting from the
// spotlight default.
func NewLighting(h head.Head) *Lighting {
	l := &Lighting{h: h}
	def := lightPresets[timeline.LightSpotlight]
	l.transitionStart, l.target = def, def
	l.write(def)
	return l
}

func (l *Lighting) LoadResources(context.Context, *timeline.Timeline) error { return nil }

func resolvedTriple(data timeline.LightingBlockData) lightTriple {
	base := lightPresets[data.Preset]
	if base == (lightTriple{}) {
		base = lightPresets[timeline.LightSpotlight]
	}
	if data.AmbientOverride != nil {
		base.AmbientHex, base.AmbientI = data.AmbientOverride.Hex, data.AmbientOverride.Intensity
	}
	if data.DirectOverride != nil {
		base.DirectHex, base.DirectI = data.DirectOverride.Hex, data.DirectOverride.Intensity
	}
	if data.SpotOverride != nil {
		base.SpotHex, base.SpotI = data.SpotOverride.Hex, data.SpotOverride.Intensity
	}
	return base
}

func (l *Lighting) Update(t, deltaMS float64, active []*timeline.Block) {
	if len(active) == 0 {
		return
	}
	blk := active[0]
	data, ok := blk.Data.(timeline.LightingBlockData)
	if !ok {
		return
	}

	if blk.ID != l.currentBlockID {
		l.transitionStart = l.currentTriple()
		l.target = resolvedTriple(data)
		l.transitionAtMS = t
		dur, ok := transitionDurations[data.Transition]
		if !ok {
			dur = transitionDurations[timeline.TransitionFade]
		}
		l.transitionDurMS = dur
		l.currentBlockID = blk.ID
	}

	progress := 1.0
	if l.transitionDurMS > 0 {
		progress = timeline.Clamp01((t - l.transitionAtMS) / l.transitionDurMS)
	}

	cur := lightTriple{
		AmbientHex: lerpHex(l.transitionStart.AmbientHex, l.target.AmbientHex, progress),
		AmbientI:   lerp(l.transitionStart.AmbientI, l.target.AmbientI, progress),
		DirectHex:  lerpHex(l.transitionStart.DirectHex, l.target.DirectHex, progress),
		DirectI:    lerp(l.transitionStart.DirectI, l.target.DirectI, progress),
		SpotHex:    lerpHex(l.transitionStart.SpotHex, l.target.SpotHex, progress),
		SpotI:      lerp(l.transitionStart.SpotI, l.target.SpotI, progress),
	}

	if data.AudioPulse {
		l.pulsePhase += deltaMS * 0.005
		cur.SpotI *= 1 + 0.2*math.Sin(l.pulsePhase)
	}

	l.write(cur)
}

// currentTriple reads the Head's live light state back into a lightTriple,
// used as the transition's starting point.
func (l *Lighting) currentTriple() lightTriple {
	amb, dir, spot := l.h.LightAmbient(), l.h.LightDirect(), l.h.LightSpot()
	return lightTriple{
		AmbientHex: amb.ColorHex, AmbientI: amb.Intensity,
		DirectHex: dir.ColorHex, DirectI: dir.Intensity,
		SpotHex: spot.ColorHex, SpotI: spot.Intensity,
	}
}

func (l *Lighting) write(cur lightTriple) {
	amb, dir, spot := l.h.LightAmbient(), l.h.LightDirect(), l.h.LightSpot()
	amb.SetColorHex(cur.AmbientHex)
	amb.Intensity = cur.AmbientI
	dir.SetColorHex(cur.DirectHex)
	dir.Intensity = cur.DirectI
	spot.SetColorHex(cur.SpotHex)
	spot.Intensity = cur.SpotI
}

func (l *Lighting) Pause() {}

func (l *Lighting) Stop() {
	def := lightPresets[timeline.LightSpotlight]
	l.write(def)
	l.transitionStart, l.target = def, def
	l.currentBlockID = ""
	l.pulsePhase = 0
}

func (l *Lighting) Seek(float64) {
	l.currentBlockID = ""
}

func (l *Lighting) OnEngineStateChange(engine.State) {}

func (l *Lighting) ExecuteAction(action string, args map[string]any) error {
	switch action {
	case "set_light_preset":
		if p, ok := args["preset"].(string); ok {
			preset := timeline.LightPreset(p)
			if preset.IsValid() {
				l.currentBlockID = ""
				l.write(resolvedTriple(timeline.LightingBlockData{Preset: preset, Transition: timeline.TransitionCut}))
				l.target = resolvedTriple(timeline.LightingBlockData{Preset: preset})
			}
		}
	}
	return nil
}

func (l *Lighting) Dispose() {}

var _ engine.Executor = (*Lighting)(nil)

package layers

import (
	"context"

	"github.com/avatarstage/performer/internal/engine"
	"github.com/avatarstage/performer/internal/head"
	"github.com/avatarstage/performer/internal/timeline"
)

// Blendshape drives the blendshape layer: it blends every
// simultaneously active block's morph targets, forwards the
// highest-priority block's mood (deduped against the last applied mood),
// and fires a one-shot emoji near a block's start.
type Blendshape struct {
	head head.Head

	lastMood     timeline.Mood
	firedEmoji   map[string]bool
	touchedMorph map[string]bool
}

// NewBlendshape constructs a Blendshape executor bound to h.
func NewBlendshape(h head.Head) *Blendshape {
	return &Blendshape{head: h, firedEmoji: map[string]bool{}, touchedMorph: map[string]bool{}}
}

func (b *Blendshape) LoadResources(context.Context, *timeline.Timeline) error { return nil }

func (b *Blendshape) Update(t, _ float64, active []*timeline.Block) {
	sums := map[string]float64{}
	weights := map[string]float64{}

	for _, blk := range active {
		data, ok := blk.Data.(timeline.BlendshapeBlockData)
		if !ok {
			continue
		}
		intensity := data.Intensity * timeline.Fade(blk, t)

		morphs := data.TargetMorphs
		if len(data.Keyframes) > 0 {
			morphs = interpolateKeyframes(data.Keyframes, t-float64(blk.StartMS))
		}
		for name, v := range morphs {
			w := intensity
			sums[name] += v * w
			weights[name] += w
		}

		if data.Emoji != "" && timeline.Progress(blk.StartMS, blk.DurationMS, t) < 0.05 && !b.firedEmoji[blk.ID] {
			b.head.SpeakEmoji(data.Emoji)
			b.firedEmoji[blk.ID] = true
		}
	}

	for name, w := range weights {
		if w <= 0 {
			continue
		}
		b.touchedMorph[name] = true
		b.head.SetValue(name, sums[name]/w)
	}

	if len(active) > 0 {
		if data, ok := active[0].Data.(timeline.BlendshapeBlockData); ok && data.Mood != "" && data.Mood != b.lastMood {
			b.head.SetMood(data.Mood)
			b.lastMood = data.Mood
		}
	}
}

// interpolateKeyframes linearly interpolates numeric keyframe values at
// elapsedMS, honoring the bracketing keyframes' own easing tags.
func interpolateKeyframes(keyframes []timeline.Keyframe, elapsedMS float64) map[string]float64 {
	lo, hi, localT := bracketKeyframes(keyframes, elapsedMS)
	eased := hi.Easing.Apply(localT)
	out := make(map[string]float64, len(hi.Values))
	for name, hv := range hi.Values {
		lv := lo.Values[name]
		out[name] = lerp(lv, hv, eased)
	}
	for name, lv := range lo.Values {
		if _, ok := out[name]; !ok {
			out[name] = lv
		}
	}
	return out
}

func (b *Blendshape) Pause() {}

func (b *Blendshape) Stop() {
	for name := range b.touchedMorph {
		b.head.SetValue(name, 0)
	}
	b.touchedMorph = map[string]bool{}
	b.firedEmoji = map[string]bool{}
	if b.lastMood != timeline.MoodNeutral {
		b.head.SetMood(timeline.MoodNeutral)
		b.lastMood = timeline.MoodNeutral
	}
}

func (b *Blendshape) Seek(float64) {
	b.firedEmoji = map[string]bool{}
}

func (b *Blendshape) OnEngineStateChange(engine.State) {}

var _ engine.Executor = (*Blendshape)(nil)

func (b *Blendshape) ExecuteAction(action string, args map[string]any) error {
	switch action {
	case "set_mood":
		if m, ok := args["mood"].(string); ok {
			mood := timeline.Mood(m)
			if mood.IsValid() && mood != b.lastMood {
				b.head.SetMood(mood)
				b.lastMood = mood
			}
		}
		return nil
	case "set_value":
		name, _ := args["morph"].(string)
		if name == "" {
			name, _ = args["name"].(string)
		}
		if v, ok := numericArg(args, "value"); ok && name != "" {
			b.touchedMorph[name] = true
			b.head.SetValue(name, v)
		}
		return nil
	case "speak_emoji":
		if e, ok := args["emoji"].(string); ok {
			b.head.SpeakEmoji(e)
		}
		return nil
	default:
		return nil
	}
}

func (b *Blendshape) Dispose() {}

func numericArg(args map[string]any, key string) (float64, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

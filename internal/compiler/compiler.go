// Package compiler lowers a [timeline.Plan] into a [timeline.Timeline]:
// one pass emits "defaulting" blocks per section from its
// mood/camera/light/fx fields, a second pass dispatches every action by verb
// name to either a direct typed block, a tiny cross-layer trigger block, or
// the external-actions list.
package compiler

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/avatarstage/performer/internal/observe"
	"github.com/avatarstage/performer/internal/timeline"
)

// Default block durations by action category.
const (
	durMood         = 2000
	durExpression   = 1200
	durFX           = 2000
	durCameraMove   = 1200
	durDance        = 2500
	durEventPulse   = 160
)

// WordTimings carries per-word and per-viseme timing arrays aligned to an
// audio clip, the viseme executor's input.
type WordTimings struct {
	Words         []string
	WordTimesMS   []float64
	WordDurMS     []float64
	Visemes       []string
	VisemeTimesMS []float64
	VisemeDurMS   []float64
}

// Options configures one compile pass.
type Options struct {
	DurationMS    int
	DefaultLight  timeline.LightPreset
	DefaultCamera timeline.CameraView
	DefaultMood   timeline.Mood
	WordTimings   *WordTimings
	AudioURL      string
}

// ExternalAction is a verb the compiler could not lower to timeline
// semantics; the caller (internal/runner)
// is responsible for acting on it directly.
type ExternalAction struct {
	TimeMS int
	Action string
	Args   map[string]any
}

// Result is Compile's output: the lowered timeline plus any actions that
// had no timeline representation.
type Result struct {
	Timeline        *timeline.Timeline
	ExternalActions []ExternalAction
}

// externalVerbs have no timeline semantics at all: session
// control, a query-only verb, and background audio (owned by the caller,
// not any layer).
var externalVerbs = map[string]bool{
	"start": true, "stop": true, "start_listening": true, "stop_listening": true,
	"speak_to": true, "set_speaker_target": true,
	"play_background_audio": true, "stop_background_audio": true,
	"get_value": true,
}

// crossLayerTrigger names the layer a cross-layer event block targets and
// the default hold duration for its (otherwise zero-footprint) block.
type crossLayerTrigger struct {
	Layer      timeline.LayerType
	DurationMS int
}

// crossLayerVerbs have no direct block representation on any layer but must
// still reach another layer's executor; the compiler emits a tiny event
// block on the blendshape layer carrying a triggerEvents entry that targets
// the named layer. The play_* dance verbs use the "dance" default
// duration (≈2500ms, matching a typical gesture clip); the stop_* dance
// verbs and everything else use the generic "cross-layer event pulse"
// default (≈160ms).
var crossLayerVerbs = map[string]crossLayerTrigger{
	"play_gesture":   {timeline.LayerDance, durDance},
	"stop_gesture":   {timeline.LayerDance, durEventPulse},
	"play_pose":      {timeline.LayerDance, durDance},
	"stop_pose":      {timeline.LayerDance, durEventPulse},
	"play_animation": {timeline.LayerDance, durDance},
	"stop_animation": {timeline.LayerDance, durEventPulse},
	"look_at":          {timeline.LayerCamera, durEventPulse},
	"look_at_camera":   {timeline.LayerCamera, durEventPulse},
	"make_eye_contact": {timeline.LayerCamera, durEventPulse},
	"post_reset":       {timeline.LayerFX, durEventPulse},
	"set_environment":  {timeline.LayerLighting, durEventPulse},
	"set_background":   {timeline.LayerLighting, durEventPulse},
	"speak_break":      {timeline.LayerViseme, durEventPulse},
	"speak_marker":     {timeline.LayerViseme, durEventPulse},
}

// Compile lowers plan into a Timeline. It never fails outright: an unknown
// verb is logged and passed through in ExternalActions.
func Compile(plan *timeline.Plan, opts Options) *Result {
	start := time.Now()
	tl := timeline.NewTimeline(plan.Title, opts.DurationMS)
	res := &Result{Timeline: tl}

	for _, section := range plan.Sections {
		emitDefaultingBlocks(tl, section, opts)
	}

	for _, section := range plan.Sections {
		for _, action := range section.Actions {
			dispatchAction(tl, res, action, section.StartMS, section.EndMS, opts.DurationMS)
		}
	}
	for _, action := range plan.Actions {
		dispatchAction(tl, res, action, 0, opts.DurationMS, opts.DurationMS)
	}

	if opts.WordTimings != nil {
		tl.Blocks = append(tl.Blocks, visemeBlock(opts))
	}

	sort.SliceStable(tl.Blocks, func(i, j int) bool { return tl.Blocks[i].StartMS < tl.Blocks[j].StartMS })

	maxEnd := opts.DurationMS
	for _, b := range tl.Blocks {
		if e := b.EndMS(); e > maxEnd {
			maxEnd = e
		}
	}
	tl.DurationMS = maxEnd

	recordCompileMetrics(tl, time.Since(start))
	return res
}

// recordCompileMetrics reports compile latency plus per-layer block counts.
func recordCompileMetrics(tl *timeline.Timeline, elapsed time.Duration) {
	met := observe.DefaultMetrics()
	ctx := context.Background()
	met.CompileDuration.Record(ctx, elapsed.Seconds())

	perLayer := make(map[timeline.LayerType]int64, len(timeline.LayerOrder))
	for _, b := range tl.Blocks {
		perLayer[b.LayerID]++
	}
	for layer, n := range perLayer {
		met.RecordBlocksCompiled(ctx, string(layer), n)
	}
}

func emitDefaultingBlocks(tl *timeline.Timeline, s timeline.PlanSection, opts Options) {
	mood := s.Mood
	if mood == "" {
		mood = opts.DefaultMood
	}
	if mood != "" {
		tl.Blocks = append(tl.Blocks, &timeline.Block{
			ID: timeline.NewBlockID(), LayerID: timeline.LayerBlendshape, LayerType: timeline.LayerBlendshape,
			StartMS: s.StartMS, DurationMS: s.EndMS - s.StartMS, Label: "section-mood",
			Data: timeline.BlendshapeBlockData{Intensity: 1, Mood: mood},
		})
	}

	view := s.Camera
	if view == "" {
		view = opts.DefaultCamera
	}
	if view != "" {
		tl.Blocks = append(tl.Blocks, &timeline.Block{
			ID: timeline.NewBlockID(), LayerID: timeline.LayerCamera, LayerType: timeline.LayerCamera,
			StartMS: s.StartMS, DurationMS: s.EndMS - s.StartMS, Label: "section-camera",
			Data: timeline.CameraBlockData{View: view, Movement: timeline.MoveStatic},
		})
	}

	preset := s.Light
	if preset == "" {
		preset = opts.DefaultLight
	}
	if preset != "" {
		tl.Blocks = append(tl.Blocks, &timeline.Block{
			ID: timeline.NewBlockID(), LayerID: timeline.LayerLighting, LayerType: timeline.LayerLighting,
			StartMS: s.StartMS, DurationMS: s.EndMS - s.StartMS, Label: "section-light",
			Data: timeline.LightingBlockData{Preset: preset, Transition: timeline.TransitionFade},
		})
	}

	if s.FX != "" {
		tl.Blocks = append(tl.Blocks, &timeline.Block{
			ID: timeline.NewBlockID(), LayerID: timeline.LayerFX, LayerType: timeline.LayerFX,
			StartMS: s.StartMS, DurationMS: s.EndMS - s.StartMS, Label: "section-fx",
			Data: timeline.FXBlockData{Effect: s.FX, Params: defaultFXParams(s.FX)},
		})
	}
}

func visemeBlock(opts Options) *timeline.Block {
	wt := opts.WordTimings
	return &timeline.Block{
		ID: timeline.NewBlockID(), LayerID: timeline.LayerViseme, LayerType: timeline.LayerViseme,
		StartMS: 0, DurationMS: opts.DurationMS, Label: "viseme-track",
		Data: timeline.VisemeBlockData{
			AudioURL: opts.AudioURL, Words: wt.Words, WordTimesMS: wt.WordTimesMS, WordDurMS: wt.WordDurMS,
			Visemes: wt.Visemes, VisemeTimesMS: wt.VisemeTimesMS, VisemeDurMS: wt.VisemeDurMS,
		},
	}
}

var defaultFXParamTable = map[timeline.FXTag]map[string]float64{
	timeline.FXBloom:      {"intensity": 0.5},
	timeline.FXVignette:   {"intensity": 0.5},
	timeline.FXChromatic:  {"amount": 0.3},
	timeline.FXGlitch:     {"intensity": 0.5},
	timeline.FXPixelation: {"size": 8},
}

func defaultFXParams(fx timeline.FXTag) map[string]float64 {
	out := make(map[string]float64, len(defaultFXParamTable[fx]))
	for k, v := range defaultFXParamTable[fx] {
		out[k] = v
	}
	return out
}

// dispatchAction routes a single action by verb name, clamping its computed
// window so it never runs past planDuration. windowStart and windowEnd do
// not affect the clamp.
func dispatchAction(tl *timeline.Timeline, res *Result, action timeline.PlanAction, windowStart, windowEnd, planDuration int) {
	if externalVerbs[action.Action] {
		res.ExternalActions = append(res.ExternalActions, ExternalAction{
			TimeMS: action.TimeMS, Action: action.Action, Args: action.Args,
		})
		return
	}

	if trigger, ok := crossLayerVerbs[action.Action]; ok {
		tl.Blocks = append(tl.Blocks, eventBlock(action, trigger, planDuration))
		return
	}

	block, ok := directBlock(action, planDuration)
	if !ok {
		slog.Warn("compiler: unknown verb, passing through as external action", "action", action.Action)
		res.ExternalActions = append(res.ExternalActions, ExternalAction{
			TimeMS: action.TimeMS, Action: action.Action, Args: action.Args,
		})
		return
	}
	tl.Blocks = append(tl.Blocks, block)
}

// eventBlock builds the blendshape-layer block whose only job is carrying a
// single cross-layer trigger event; its own duration is a hold
// window, not blendshape content.
func eventBlock(action timeline.PlanAction, trigger crossLayerTrigger, planDuration int) *timeline.Block {
	start, dur := clampWindow(action.TimeMS, durationMSArg(action.Args, trigger.DurationMS), planDuration)
	return &timeline.Block{
		ID: timeline.NewBlockID(), LayerID: timeline.LayerBlendshape, LayerType: timeline.LayerBlendshape,
		StartMS: start, DurationMS: dur, Label: "event:" + action.Action,
		TriggerEvents: []timeline.TriggerEvent{
			{Type: timeline.EventStart, TargetLayerID: trigger.Layer, Action: action.Action, Args: action.Args},
		},
	}
}

// clampWindow resolves a block's actual [start, start+duration) window: the
// caller-requested duration (via action args, see durationMSArg) clamped so
// it never runs past planDuration.
func clampWindow(startMS, defaultDurationMS, planDuration int) (start, duration int) {
	start = startMS
	if start > planDuration {
		start = planDuration
	}
	duration = defaultDurationMS
	if start+duration > planDuration {
		duration = planDuration - start
	}
	if duration < 0 {
		duration = 0
	}
	return start, duration
}

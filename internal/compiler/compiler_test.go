package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarstage/performer/internal/compiler"
	"github.com/avatarstage/performer/internal/timeline"
)

func basePlan() *timeline.Plan {
	return &timeline.Plan{
		Sections: []timeline.PlanSection{
			{Label: "verse", StartMS: 0, EndMS: 5000, Role: timeline.RoleSolo, Mood: timeline.MoodHappy, Camera: timeline.ViewFull, Light: timeline.LightNeon},
		},
	}
}

func opts() compiler.Options {
	return compiler.Options{DurationMS: 5000, DefaultLight: timeline.LightSpotlight, DefaultCamera: timeline.ViewFull}
}

func TestCompile_EmitsDefaultingBlocksPerSection(t *testing.T) {
	t.Parallel()
	res := compiler.Compile(basePlan(), opts())
	var layers []timeline.LayerType
	for _, b := range res.Timeline.Blocks {
		layers = append(layers, b.LayerType)
	}
	assert.Contains(t, layers, timeline.LayerBlendshape)
	assert.Contains(t, layers, timeline.LayerCamera)
	assert.Contains(t, layers, timeline.LayerLighting)
}

func TestCompile_BlocksNeverExceedDuration(t *testing.T) {
	t.Parallel()
	plan := basePlan()
	plan.Sections[0].Actions = []timeline.PlanAction{
		{TimeMS: 4900, Action: "camera_dolly", Args: map[string]any{"duration_ms": 5000.0, "distance": 1.0}},
	}
	res := compiler.Compile(plan, opts())
	for _, b := range res.Timeline.Blocks {
		assert.LessOrEqualf(t, b.StartMS+b.DurationMS, res.Timeline.DurationMS, "block %s exceeds duration", b.Label)
	}
}

func TestCompile_CrossLayerGestureEmitsTriggerEvent(t *testing.T) {
	t.Parallel()
	plan := basePlan()
	plan.Sections[0].Actions = []timeline.PlanAction{
		{TimeMS: 1000, Action: "play_gesture", Args: map[string]any{"name": "wave"}},
	}
	res := compiler.Compile(plan, opts())

	var found *timeline.Block
	for _, b := range res.Timeline.Blocks {
		if len(b.TriggerEvents) > 0 && b.TriggerEvents[0].Action == "play_gesture" {
			found = b
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, timeline.LayerDance, found.TriggerEvents[0].TargetLayerID)
	assert.Equal(t, timeline.EventStart, found.TriggerEvents[0].Type)
}

func TestCompile_ExternalActionsPassThrough(t *testing.T) {
	t.Parallel()
	plan := basePlan()
	plan.Sections[0].Actions = []timeline.PlanAction{
		{TimeMS: 1000, Action: "play_background_audio", Args: map[string]any{"url": "x.mp3"}},
	}
	res := compiler.Compile(plan, opts())
	require.Len(t, res.ExternalActions, 1)
	assert.Equal(t, "play_background_audio", res.ExternalActions[0].Action)
}

func TestCompile_UnknownVerbBecomesExternal(t *testing.T) {
	t.Parallel()
	plan := basePlan()
	plan.Sections[0].Actions = []timeline.PlanAction{{TimeMS: 1000, Action: "do_a_backflip"}}
	res := compiler.Compile(plan, opts())
	require.Len(t, res.ExternalActions, 1)
	assert.Equal(t, "do_a_backflip", res.ExternalActions[0].Action)
}

func TestCompile_BlocksSortedByStart(t *testing.T) {
	t.Parallel()
	plan := basePlan()
	plan.Sections[0].Actions = []timeline.PlanAction{
		{TimeMS: 4000, Action: "set_mood", Args: map[string]any{"mood": "sad"}},
		{TimeMS: 500, Action: "set_mood", Args: map[string]any{"mood": "angry"}},
	}
	res := compiler.Compile(plan, opts())
	for i := 1; i < len(res.Timeline.Blocks); i++ {
		assert.LessOrEqual(t, res.Timeline.Blocks[i-1].StartMS, res.Timeline.Blocks[i].StartMS)
	}
}

func TestCompile_WordTimingsEmitVisemeBlock(t *testing.T) {
	t.Parallel()
	o := opts()
	o.WordTimings = &compiler.WordTimings{Words: []string{"hi"}, WordTimesMS: []float64{0}, WordDurMS: []float64{500}}
	res := compiler.Compile(basePlan(), o)
	var found bool
	for _, b := range res.Timeline.Blocks {
		if b.LayerType == timeline.LayerViseme {
			found = true
			assert.Equal(t, 0, b.StartMS)
			assert.Equal(t, o.DurationMS, b.DurationMS)
		}
	}
	assert.True(t, found)
}

func TestCompile_Idempotent(t *testing.T) {
	t.Parallel()
	plan := basePlan()
	r1 := compiler.Compile(plan, opts())
	r2 := compiler.Compile(plan, opts())
	require.Equal(t, len(r1.Timeline.Blocks), len(r2.Timeline.Blocks))
	for i := range r1.Timeline.Blocks {
		a, b := r1.Timeline.Blocks[i], r2.Timeline.Blocks[i]
		assert.Equal(t, a.LayerType, b.LayerType)
		assert.Equal(t, a.StartMS, b.StartMS)
		assert.Equal(t, a.DurationMS, b.DurationMS)
		assert.Equal(t, a.Label, b.Label)
	}
}

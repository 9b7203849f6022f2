package layers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarstage/performer/internal/engine/layers"
	headmock "github.com/avatarstage/performer/internal/head/mock"
	"github.com/avatarstage/performer/internal/timeline"
)

func blendshapeBlock(id string, intensity float64, morphs map[string]float64, mood timeline.Mood) *timeline.Block {
	return &timeline.Block{
		ID: id, LayerID: timeline.LayerBlendshape, LayerType: timeline.LayerBlendshape,
		StartMS: 0, DurationMS: 2000,
		Data: timeline.BlendshapeBlockData{Intensity: intensity, TargetMorphs: morphs, Mood: mood},
	}
}

func TestBlendshape_WeightsOverlappingBlocksByIntensity(t *testing.T) {
	t.Parallel()
	h := headmock.New()
	b := layers.NewBlendshape(h)

	a := blendshapeBlock("a", 1.0, map[string]float64{"jawOpen": 1.0}, "")
	other := blendshapeBlock("b", 0.5, map[string]float64{"jawOpen": 0.0}, "")

	b.Update(1000, 16, []*timeline.Block{a, other})
	// weighted avg: (1.0*1.0 + 0.0*0.5) / (1.0+0.5) = 0.666..
	assert.InDelta(t, 0.6667, h.GetValue("jawOpen"), 0.001)
}

func TestBlendshape_ForwardsHighestPriorityBlockMoodOnce(t *testing.T) {
	t.Parallel()
	h := headmock.New()
	b := layers.NewBlendshape(h)
	blk := blendshapeBlock("a", 1.0, map[string]float64{"jawOpen": 1.0}, timeline.MoodHappy)

	b.Update(0, 16, []*timeline.Block{blk})
	b.Update(16, 16, []*timeline.Block{blk})
	require.Len(t, h.Moods, 1, "same mood on the same leading block must not re-apply every tick")
	assert.Equal(t, timeline.MoodHappy, h.Moods[0])
}

func TestBlendshape_StopZeroesTouchedMorphsAndMood(t *testing.T) {
	t.Parallel()
	h := headmock.New()
	b := layers.NewBlendshape(h)
	blk := blendshapeBlock("a", 1.0, map[string]float64{"jawOpen": 1.0}, timeline.MoodHappy)
	b.Update(0, 16, []*timeline.Block{blk})

	b.Stop()
	assert.Equal(t, 0.0, h.GetValue("jawOpen"))
	assert.Equal(t, timeline.MoodNeutral, h.Moods[len(h.Moods)-1])
}

func TestBlendshape_ExecuteActionSetValue(t *testing.T) {
	t.Parallel()
	h := headmock.New()
	b := layers.NewBlendshape(h)
	err := b.ExecuteAction("set_value", map[string]any{"morph": "eyeBlinkLeft", "value": 1.0})
	require.NoError(t, err)
	assert.Equal(t, 1.0, h.GetValue("eyeBlinkLeft"))
}

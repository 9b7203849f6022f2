package timeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarstage/performer/internal/timeline"
)

func TestDefaultLayers_DistinctPriorities(t *testing.T) {
	t.Parallel()
	layers := timeline.DefaultLayers()
	seen := map[int]bool{}
	for _, l := range layers {
		require.False(t, seen[l.Priority], "priority %d reused", l.Priority)
		seen[l.Priority] = true
		assert.True(t, l.Enabled)
		assert.False(t, l.Muted)
	}
	assert.Len(t, seen, 7)
}

func TestNewTimeline_LayerByID(t *testing.T) {
	t.Parallel()
	tl := timeline.NewTimeline("song", 30000)
	assert.NotEmpty(t, tl.ID)
	l := tl.LayerByID(timeline.LayerCamera)
	require.NotNil(t, l)
	assert.Equal(t, timeline.LayerCamera, l.ID)

	assert.Nil(t, tl.LayerByID(timeline.LayerType("nonexistent")))
}

func TestNewBlockID_Unique(t *testing.T) {
	t.Parallel()
	ids := map[string]bool{}
	for range 100 {
		id := timeline.NewBlockID()
		require.False(t, ids[id])
		ids[id] = true
	}
}

func TestBlock_EndMS(t *testing.T) {
	t.Parallel()
	b := &timeline.Block{StartMS: 100, DurationMS: 250}
	assert.Equal(t, 350, b.EndMS())
}

func TestMood_IsValid(t *testing.T) {
	t.Parallel()
	assert.True(t, timeline.MoodHappy.IsValid())
	assert.False(t, timeline.Mood("ecstatic").IsValid())
}

func TestLightPreset_IsValid(t *testing.T) {
	t.Parallel()
	assert.True(t, timeline.LightNeon.IsValid())
	assert.True(t, timeline.LightSpotlight.IsValid())
	assert.False(t, timeline.LightPreset("disco").IsValid())
}

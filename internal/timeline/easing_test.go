package timeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avatarstage/performer/internal/timeline"
)

func TestEasing_BoundaryConditions(t *testing.T) {
	t.Parallel()
	curves := []timeline.Easing{
		timeline.EaseLinear, timeline.EaseIn, timeline.EaseOut,
		timeline.EaseInOut, timeline.EaseBounce, timeline.EaseElastic,
	}
	for _, e := range curves {
		t.Run(string(e), func(t *testing.T) {
			assert.InDelta(t, 0, e.Apply(0), 1e-9, "e(0) should be 0")
			assert.InDelta(t, 1, e.Apply(1), 1e-9, "e(1) should be 1")
		})
	}
}

func TestEasing_Step(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, timeline.EaseStep.Apply(0))
	assert.Equal(t, 0.0, timeline.EaseStep.Apply(0.99))
	assert.Equal(t, 1.0, timeline.EaseStep.Apply(1))
}

func TestEasing_UnknownFallsBackToLinear(t *testing.T) {
	t.Parallel()
	e := timeline.Easing("bogus")
	assert.Equal(t, 0.5, e.Apply(0.5))
}

func TestProgressFadeClamping(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, timeline.Progress(100, 200, 50))
	assert.Equal(t, 1.0, timeline.Progress(100, 200, 400))
	assert.InDelta(t, 0.5, timeline.Progress(100, 200, 200), 1e-9)

	assert.Equal(t, 1.0, timeline.FadeIn(0, 0, 50))
	assert.InDelta(t, 0.5, timeline.FadeIn(0, 100, 50), 1e-9)

	assert.Equal(t, 1.0, timeline.FadeOut(1000, 0, 999))
	assert.InDelta(t, 0.5, timeline.FadeOut(1000, 100, 950), 1e-9)
}

package runner_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarstage/performer/internal/compiler"
	effectsmock "github.com/avatarstage/performer/internal/effects/mock"
	headmock "github.com/avatarstage/performer/internal/head/mock"
	"github.com/avatarstage/performer/internal/runner"
	"github.com/avatarstage/performer/internal/timeline"
)

// eventRecorder is a concurrency-safe sink for runner events: the tick
// loop's own goroutine emits them, while the test goroutine polls.
type eventRecorder struct {
	mu     sync.Mutex
	events []runner.EventType
}

func (r *eventRecorder) record(ev runner.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev.Type)
}

func (r *eventRecorder) has(t runner.EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == t {
			return true
		}
	}
	return false
}

func samplePlan() *timeline.Plan {
	return &timeline.Plan{
		Title: "test song",
		Sections: []timeline.PlanSection{
			{Label: "verse", StartMS: 0, EndMS: 2000, Role: timeline.RoleSolo, Mood: timeline.MoodHappy, Camera: timeline.ViewFull, Light: timeline.LightNeon},
			{Label: "chorus", StartMS: 2000, EndMS: 4000, Role: timeline.RoleEnsemble, Mood: timeline.MoodLove, Camera: timeline.ViewMid, Light: timeline.LightSunset},
		},
	}
}

func compileOpts() compiler.Options {
	return compiler.Options{DurationMS: 4000, DefaultLight: timeline.LightSpotlight, DefaultCamera: timeline.ViewFull, DefaultMood: timeline.MoodNeutral}
}

func TestRunnerLoadFromPlanAndPlaybackLifecycle(t *testing.T) {
	h := headmock.New()
	fx := effectsmock.New()
	r := runner.New(h, fx, runner.Options{TickInterval: 2 * time.Millisecond})
	t.Cleanup(r.Dispose)

	rec := &eventRecorder{}
	r.On(runner.EventTimelineLoaded, rec.record)
	r.On(runner.EventPlaybackStart, rec.record)
	r.On(runner.EventPlaybackEnd, rec.record)

	require.NoError(t, r.LoadFromPlan(context.Background(), samplePlan(), compileOpts(), 0))
	require.True(t, rec.has(runner.EventTimelineLoaded))

	r.Engine().SetPlaybackRate(100) // 4s of song in ~40ms of wall clock
	r.Play()
	require.Eventually(t, func() bool {
		return rec.has(runner.EventPlaybackStart)
	}, time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		return rec.has(runner.EventPlaybackEnd)
	}, 2*time.Second, time.Millisecond)
}

func TestRunnerSeekAndPause(t *testing.T) {
	h := headmock.New()
	r := runner.New(h, nil, runner.Options{TickInterval: 2 * time.Millisecond})
	t.Cleanup(r.Dispose)

	require.NoError(t, r.LoadFromPlan(context.Background(), samplePlan(), compileOpts(), 0))
	r.Play()
	time.Sleep(20 * time.Millisecond)
	r.Pause()
	r.Seek(1500)
	assert.InDelta(t, 1500, r.Engine().CurrentTimeMS(), 1)
}

func TestRunnerExportImportRoundTrip(t *testing.T) {
	h := headmock.New()
	r := runner.New(h, nil, runner.Options{})
	t.Cleanup(r.Dispose)

	require.NoError(t, r.LoadFromPlan(context.Background(), samplePlan(), compileOpts(), 0))
	data, err := r.Export()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	before := r.Engine().Timeline()

	r2 := runner.New(headmock.New(), nil, runner.Options{})
	t.Cleanup(r2.Dispose)
	require.NoError(t, r2.Import(context.Background(), data))

	after := r2.Engine().Timeline()
	require.Equal(t, before.DurationMS, after.DurationMS)
	require.Equal(t, len(before.Blocks), len(after.Blocks))
	for i := range before.Blocks {
		assert.Equal(t, before.Blocks[i].LayerType, after.Blocks[i].LayerType)
		assert.Equal(t, before.Blocks[i].StartMS, after.Blocks[i].StartMS)
		assert.Equal(t, before.Blocks[i].DurationMS, after.Blocks[i].DurationMS)
	}
}

func TestRunnerExportWithoutTimelineFails(t *testing.T) {
	r := runner.New(headmock.New(), nil, runner.Options{})
	t.Cleanup(r.Dispose)
	_, err := r.Export()
	assert.ErrorIs(t, err, runner.ErrNoTimeline)
}

func TestRunnerEditorBlockEditDebouncesPersist(t *testing.T) {
	var mu sync.Mutex
	persisted := 0
	r := runner.New(headmock.New(), nil, runner.Options{
		PersistDebounce: 20 * time.Millisecond,
		PersistFunc: func(*timeline.Timeline) {
			mu.Lock()
			persisted++
			mu.Unlock()
		},
	})
	t.Cleanup(r.Dispose)
	require.NoError(t, r.LoadFromPlan(context.Background(), samplePlan(), compileOpts(), 0))

	for i := 0; i < 5; i++ {
		r.OnEditorBlockEdit(runner.EditorBlockEdit{BlockID: "b1"})
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return persisted >= 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.LessOrEqual(t, persisted, 2)
	mu.Unlock()
}

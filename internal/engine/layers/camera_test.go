package layers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	headmock "github.com/avatarstage/performer/internal/head/mock"
	"github.com/avatarstage/performer/internal/engine/layers"
	"github.com/avatarstage/performer/internal/timeline"
)

func camBlock(id string, view timeline.CameraView, movement timeline.CameraMovement) *timeline.Block {
	return &timeline.Block{
		ID: id, LayerID: timeline.LayerCamera, LayerType: timeline.LayerCamera,
		StartMS: 0, DurationMS: 4000,
		Data: timeline.CameraBlockData{View: view, Movement: movement, Distance: 0.5},
	}
}

func TestCamera_TransitionsTowardViewPreset(t *testing.T) {
	t.Parallel()
	h := headmock.New()
	cam := layers.NewCamera(h)
	blk := camBlock("b1", timeline.ViewHead, timeline.MoveStatic)

	cam.Update(0, 16, []*timeline.Block{blk})
	require.Equal(t, 0.0, h.Camera().Distance, "transition starts from the live camera tuple")

	cam.Update(500, 16, []*timeline.Block{blk})
	assert.InDelta(t, 0.3, h.Camera().Distance, 0.01, "fully transitioned to head-view distance after 500ms")
}

func TestCamera_DollyMovesDistancePastTransitionTarget(t *testing.T) {
	t.Parallel()
	h := headmock.New()
	cam := layers.NewCamera(h)
	blk := camBlock("b1", timeline.ViewFull, timeline.MoveDolly)
	blk.EaseIn = timeline.EaseLinear

	cam.Update(0, 16, []*timeline.Block{blk})
	cam.Update(600, 16, []*timeline.Block{blk})
	cam.Update(2000, 16, []*timeline.Block{blk})
	// halfway through the 4s block, dolly has applied half the 0.5 delta
	assert.InDelta(t, 0.25, h.Camera().Distance, 0.01)
}

func TestCamera_NoActiveBlockLeavesLastStateUntouched(t *testing.T) {
	t.Parallel()
	h := headmock.New()
	cam := layers.NewCamera(h)
	cam.Update(0, 16, nil)
	assert.Equal(t, 0.0, h.Camera().Distance)
}

func TestCamera_StopResetsToFullView(t *testing.T) {
	t.Parallel()
	h := headmock.New()
	cam := layers.NewCamera(h)
	blk := camBlock("b1", timeline.ViewHead, timeline.MoveStatic)
	cam.Update(0, 16, []*timeline.Block{blk})
	cam.Update(500, 16, []*timeline.Block{blk})

	cam.Stop()
	assert.Equal(t, 1.2, h.Camera().Distance)
}

func TestCamera_ExecuteActionSetView(t *testing.T) {
	t.Parallel()
	h := headmock.New()
	cam := layers.NewCamera(h)
	err := cam.ExecuteAction("set_view", map[string]any{"view": "mid"})
	require.NoError(t, err)
	require.Len(t, h.Views, 1)
	assert.Equal(t, timeline.ViewMid, h.Views[0])
}

func TestCamera_ExecuteActionLookAt(t *testing.T) {
	t.Parallel()
	h := headmock.New()
	cam := layers.NewCamera(h)
	err := cam.ExecuteAction("look_at", map[string]any{"x": 0.5, "y": -0.2, "t": 300.0})
	require.NoError(t, err)
	require.Len(t, h.LookAts, 1)
	assert.Equal(t, 0.5, h.LookAts[0].X)
	assert.Equal(t, 300, h.LookAts[0].TransitionMS)
}

package layers

import (
	"context"
	"math"

	"github.com/avatarstage/performer/internal/engine"
	"github.com/avatarstage/performer/internal/head"
	"github.com/avatarstage/performer/internal/timeline"
)

// cameraTuple is the subset of the Head's camera options the executor
// animates.
type cameraTuple struct {
	Distance, X, Y, RotateX, RotateY float64
}

// viewPresets maps each closed camera view to its {distance, y, rotateX}
// baseline. RotateY and X are not controlled by the view itself, only by
// movement.
var viewPresets = map[timeline.CameraView]cameraTuple{
	timeline.ViewFull:  {Distance: 1.2, Y: 0},
	timeline.ViewMid:   {Distance: 0.8, Y: 0.05},
	timeline.ViewUpper: {Distance: 0.5, Y: 0.1},
	timeline.ViewHead:  {Distance: 0.3, Y: 0.15},
}

const (
	cameraTransitionMS = 500
	shakeDefaultHz     = 15
)

// Camera drives the camera layer: the top-priority active
// block's view sets a 500ms eased transition target; its movement applies
// from the block's start and is computed from the tuple snapshotted when the
// block began (sweep sets rotateY outright; shake adds offsets on top).
type Camera struct {
	h head.Head

	currentBlockID  string
	transitionStart cameraTuple
	target          cameraTuple
	blockStartMS    float64

	shakeActive   bool
	shakeUntilMS  float64
	shakeSeed     float64
}

// NewCamera constructs a Camera executor bound to h.
func NewCamera(h head.Head) *Camera {
	return &Camera{h: h}
}

func (c *Camera) LoadResources(context.Context, *timeline.Timeline) error { return nil }

func (c *Camera) Update(t, _ float64, active []*timeline.Block) {
	if len(active) == 0 {
		return
	}
	blk := active[0]
	data, ok := blk.Data.(timeline.CameraBlockData)
	if !ok {
		return
	}

	if blk.ID != c.currentBlockID {
		c.transitionStart = c.currentTuple()
		base := viewPresets[data.View]
		base.RotateY = c.transitionStart.RotateY
		base.X = c.transitionStart.X
		c.target = base
		c.blockStartMS = t
		c.currentBlockID = blk.ID
		c.shakeSeed = seedFromID(blk.ID)
	}

	transitionProgress := timeline.Clamp01((t - c.blockStartMS) / cameraTransitionMS)
	eased := timeline.EaseInOut.Apply(transitionProgress)

	cur := cameraTuple{
		Distance: lerp(c.transitionStart.Distance, c.target.Distance, eased),
		X:        lerp(c.transitionStart.X, c.target.X, eased),
		Y:        lerp(c.transitionStart.Y, c.target.Y, eased),
		RotateX:  lerp(c.transitionStart.RotateX, c.target.RotateX, eased),
		RotateY:  c.target.RotateY,
	}

	blockProgress := timeline.Progress(blk.StartMS, blk.DurationMS, t)
	movementEase := blk.EaseIn.Apply(blockProgress)
	if blk.EaseIn == "" {
		movementEase = blockProgress
	}

	switch data.Movement {
	case timeline.MoveDolly:
		cur.Distance = c.transitionStart.Distance + data.Distance*movementEase
	case timeline.MovePan:
		cur.RotateY = c.transitionStart.RotateY + deg2rad(data.RotateY)*movementEase
	case timeline.MoveTilt:
		cur.RotateX = c.transitionStart.RotateX + deg2rad(data.RotateX)*movementEase
	case timeline.MoveOrbit:
		cur.RotateY = c.transitionStart.RotateY + deg2rad(data.Orbit)*movementEase
		if data.Distance != 0 {
			cur.Distance = lerp(c.transitionStart.Distance, data.Distance, movementEase)
		}
	case timeline.MovePunch:
		cur.Distance = c.transitionStart.Distance - data.Punch*math.Sin(math.Pi*blockProgress)
	case timeline.MoveSweep:
		cur.RotateY = deg2rad(lerp(data.StartAngle, data.EndAngle, blockProgress))
	case timeline.MoveShake:
		c.applyShake(&cur, blk, t, data)
	}

	c.write(cur)
}

// applyShake adds random-phase sine offsets to X/Y and small rotations,
// with amplitude decaying monotonically over the block's duration.
func (c *Camera) applyShake(cur *cameraTuple, blk *timeline.Block, t float64, data timeline.CameraBlockData) {
	freq := data.ShakeFrequencyHz
	if freq <= 0 {
		freq = shakeDefaultHz
	}
	intensity := data.ShakeIntensity
	if intensity <= 0 {
		intensity = 0.02
	}
	progress := timeline.Progress(blk.StartMS, blk.DurationMS, t)
	decay := 1 - progress
	elapsedS := (t - float64(blk.StartMS)) / 1000
	phase := c.shakeSeed * 2 * math.Pi

	cur.X += intensity * decay * math.Sin(2*math.Pi*freq*elapsedS+phase)
	cur.Y += intensity * decay * math.Sin(2*math.Pi*freq*elapsedS+phase+math.Pi/2)
	cur.RotateX += (intensity / 10) * decay * math.Sin(2*math.Pi*freq*elapsedS+phase+math.Pi/3)
	cur.RotateY += (intensity / 10) * decay * math.Sin(2*math.Pi*freq*elapsedS+phase+math.Pi)
}

// seedFromID derives a deterministic pseudo-random phase in [0,1) from a
// block ID so repeated compiles/playbacks of the same timeline produce the
// same shake, while different blocks get different phases.
func seedFromID(id string) float64 {
	var h uint32 = 2166136261
	for i := 0; i < len(id); i++ {
		h ^= uint32(id[i])
		h *= 16777619
	}
	return float64(h%1000) / 1000
}

func deg2rad(deg float64) float64 { return deg * math.Pi / 180 }

func (c *Camera) currentTuple() cameraTuple {
	opt := c.h.Camera()
	return cameraTuple{Distance: opt.Distance, X: opt.X, Y: opt.Y, RotateX: opt.RotateX, RotateY: opt.RotateY}
}

func (c *Camera) write(cur cameraTuple) {
	opt := c.h.Camera()
	opt.Distance, opt.X, opt.Y, opt.RotateX, opt.RotateY = cur.Distance, cur.X, cur.Y, cur.RotateX, cur.RotateY
}

func (c *Camera) Pause() {}

func (c *Camera) Stop() {
	def := viewPresets[timeline.ViewFull]
	c.write(def)
	c.transitionStart, c.target = def, def
	c.currentBlockID = ""
}

func (c *Camera) Seek(float64) {
	c.currentBlockID = ""
}

func (c *Camera) OnEngineStateChange(engine.State) {}

func (c *Camera) ExecuteAction(action string, args map[string]any) error {
	switch action {
	case "set_view":
		if v, ok := args["view"].(string); ok {
			view := timeline.CameraView(v)
			if view.IsValid() {
				c.h.SetView(view, cameraTransitionMS)
				c.currentBlockID = ""
			}
		}
	case "camera_shake":
		durMS, _ := numericArg(args, "duration_ms")
		c.shakeActive = true
		c.shakeUntilMS = durMS
	case "look_at":
		x, _ := numericArg(args, "x")
		y, _ := numericArg(args, "y")
		tms, _ := numericArg(args, "t")
		c.h.LookAt(x, y, int(tms))
	case "look_at_camera":
		tms, _ := numericArg(args, "t")
		c.h.LookAtCamera(int(tms))
	case "make_eye_contact":
		c.h.LookAtCamera(0)
	}
	return nil
}

func (c *Camera) Dispose() {}

var _ engine.Executor = (*Camera)(nil)

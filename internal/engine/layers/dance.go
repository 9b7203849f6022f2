package layers

import (
	"context"

	"github.com/avatarstage/performer/internal/engine"
	"github.com/avatarstage/performer/internal/head"
	"github.com/avatarstage/performer/internal/timeline"
)

// Dance drives the dance layer: at most one clip plays at a time, selected
// winner-take-all from the highest-priority active block. Gestures and
// poses triggered via cross-layer actions play independently of the block
// clip and do not affect currentBlockID bookkeeping.
type Dance struct {
	h head.Head

	currentBlockID string
	playing        bool
}

// NewDance constructs a Dance executor bound to h.
func NewDance(h head.Head) *Dance {
	return &Dance{h: h}
}

func (d *Dance) LoadResources(context.Context, *timeline.Timeline) error { return nil }

func (d *Dance) Update(_, _ float64, active []*timeline.Block) {
	if len(active) == 0 {
		if d.playing {
			d.h.StopAnimation()
			d.playing = false
			d.currentBlockID = ""
		}
		return
	}

	blk := active[0]
	data, ok := blk.Data.(timeline.DanceBlockData)
	if !ok {
		return
	}
	if blk.ID == d.currentBlockID {
		return
	}

	speed := data.Speed
	if speed <= 0 {
		speed = 1
	}
	d.h.PlayAnimation(data.ClipURL, nil, data.DurationS/speed, 0, 0.01)
	d.currentBlockID = blk.ID
	d.playing = true
}

func (d *Dance) Pause() {}

func (d *Dance) Stop() {
	if d.playing {
		d.h.StopAnimation()
	}
	d.playing = false
	d.currentBlockID = ""
}

func (d *Dance) Seek(float64) {
	d.currentBlockID = ""
}

func (d *Dance) OnEngineStateChange(engine.State) {}

func (d *Dance) ExecuteAction(action string, args map[string]any) error {
	switch action {
	case "play_gesture":
		name, _ := args["name"].(string)
		durationS, _ := numericArg(args, "duration_s")
		mirror, _ := args["mirror"].(bool)
		if name != "" {
			d.h.PlayGesture(name, durationS, mirror)
		}
	case "stop_gesture":
		ms, _ := numericArg(args, "ms")
		d.h.StopGesture(int(ms))
	case "play_pose":
		url, _ := args["url"].(string)
		durationS, _ := numericArg(args, "duration_s")
		scale, ok := numericArg(args, "scale")
		if !ok {
			scale = 1
		}
		if url != "" {
			d.h.PlayPose(url, nil, durationS, 0, scale)
		}
	case "stop_pose", "stop_animation":
		d.h.StopAnimation()
		d.playing = false
		d.currentBlockID = ""
	case "play_animation":
		url, _ := args["url"].(string)
		durationS, _ := numericArg(args, "duration_s")
		scale, ok := numericArg(args, "scale")
		if !ok {
			scale = 1
		}
		if url != "" {
			d.h.PlayAnimation(url, nil, durationS, 0, scale)
			d.playing = true
		}
	}
	return nil
}

func (d *Dance) Dispose() {}

var _ engine.Executor = (*Dance)(nil)

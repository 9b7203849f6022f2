package layers

import (
	"context"

	"github.com/avatarstage/performer/internal/engine"
	"github.com/avatarstage/performer/internal/head"
	"github.com/avatarstage/performer/internal/timeline"
)

// Emoji drives the emoji layer: a one-shot facial emoji per
// active block, fired on the first update at which the block's progress is
// still below 0.1; a block first seen at progress 0.1 or later never fires.
type Emoji struct {
	h     head.Head
	fired map[string]bool
}

// NewEmoji constructs an Emoji executor bound to h.
func NewEmoji(h head.Head) *Emoji {
	return &Emoji{h: h, fired: map[string]bool{}}
}

func (e *Emoji) LoadResources(context.Context, *timeline.Timeline) error { return nil }

func (e *Emoji) Update(t, _ float64, active []*timeline.Block) {
	for _, blk := range active {
		data, ok := blk.Data.(timeline.EmojiBlockData)
		if !ok || data.Emoji == "" {
			continue
		}
		if e.fired[blk.ID] {
			continue
		}
		if timeline.Progress(blk.StartMS, blk.DurationMS, t) < 0.1 {
			e.h.SpeakEmoji(data.Emoji)
			e.fired[blk.ID] = true
		}
	}
}

func (e *Emoji) Pause() {}

func (e *Emoji) Stop() {
	e.fired = map[string]bool{}
}

func (e *Emoji) Seek(float64) {
	e.fired = map[string]bool{}
}

func (e *Emoji) OnEngineStateChange(engine.State) {}

func (e *Emoji) ExecuteAction(action string, args map[string]any) error {
	if action == "speak_emoji" {
		if v, ok := args["emoji"].(string); ok {
			e.h.SpeakEmoji(v)
		}
	}
	return nil
}

func (e *Emoji) Dispose() {}

var _ engine.Executor = (*Emoji)(nil)

package layers

import (
	"context"

	"github.com/avatarstage/performer/internal/engine"
	"github.com/avatarstage/performer/internal/head"
	"github.com/avatarstage/performer/internal/timeline"
)

// Viseme drives the lip-sync layer: it starts audio playback once per
// block and tracks which word is current, invoking onWordChange whenever
// the active word index advances. Word/viseme timing itself is owned by
// the Head implementation once SpeakAudio is called; this executor only
// decides when to start/stop that playback and reports word progress.
type Viseme struct {
	h head.Head

	onWordChange func(blockID string, wordIndex int, word string)

	currentBlockID string
	lastWordIndex  int
}

// NewViseme constructs a Viseme executor bound to h. onWordChange may be
// nil if no caller needs word-level callbacks.
func NewViseme(h head.Head, onWordChange func(blockID string, wordIndex int, word string)) *Viseme {
	return &Viseme{h: h, onWordChange: onWordChange, lastWordIndex: -1}
}

func (v *Viseme) LoadResources(context.Context, *timeline.Timeline) error { return nil }

func (v *Viseme) Update(t, _ float64, active []*timeline.Block) {
	if len(active) == 0 {
		if v.currentBlockID != "" {
			v.currentBlockID = ""
			v.lastWordIndex = -1
		}
		return
	}

	blk := active[0]
	data, ok := blk.Data.(timeline.VisemeBlockData)
	if !ok {
		return
	}

	if blk.ID != v.currentBlockID {
		v.currentBlockID = blk.ID
		v.lastWordIndex = -1
		v.h.SpeakAudio(head.SpeakAudioInput{
			Audio:         data.AudioURL,
			Words:         data.Words,
			WordTimesMS:   data.WordTimesMS,
			WordDurMS:     data.WordDurMS,
			Visemes:       data.Visemes,
			VisemeTimesMS: data.VisemeTimesMS,
			VisemeDurMS:   data.VisemeDurMS,
		})
	}

	elapsed := t - float64(blk.StartMS)
	idx := currentWordIndex(data.WordTimesMS, elapsed)
	if idx >= 0 && idx != v.lastWordIndex {
		v.lastWordIndex = idx
		if v.onWordChange != nil {
			word := ""
			if idx < len(data.Words) {
				word = data.Words[idx]
			}
			v.onWordChange(blk.ID, idx, word)
		}
	}
}

// currentWordIndex returns the index of the last word whose start time has
// elapsed, or -1 if no word has started yet.
func currentWordIndex(wordTimesMS []float64, elapsedMS float64) int {
	idx := -1
	for i, start := range wordTimesMS {
		if elapsedMS >= start {
			idx = i
		} else {
			break
		}
	}
	return idx
}

func (v *Viseme) Pause() {}

func (v *Viseme) Stop() {
	v.currentBlockID = ""
	v.lastWordIndex = -1
}

func (v *Viseme) Seek(float64) {
	v.currentBlockID = ""
	v.lastWordIndex = -1
}

func (v *Viseme) OnEngineStateChange(engine.State) {}

func (v *Viseme) ExecuteAction(action string, args map[string]any) error {
	if action == "speak" {
		if text, ok := args["text"].(string); ok {
			v.h.Speak(text)
		}
	}
	return nil
}

func (v *Viseme) Dispose() {}

var _ engine.Executor = (*Viseme)(nil)

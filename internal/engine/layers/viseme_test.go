package layers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarstage/performer/internal/engine/layers"
	headmock "github.com/avatarstage/performer/internal/head/mock"
	"github.com/avatarstage/performer/internal/timeline"
)

func visemeBlock(id string) *timeline.Block {
	return &timeline.Block{
		ID: id, LayerID: timeline.LayerViseme, LayerType: timeline.LayerViseme,
		StartMS: 0, DurationMS: 3000,
		Data: timeline.VisemeBlockData{
			AudioURL:    "line.wav",
			Words:       []string{"hello", "world"},
			WordTimesMS: []float64{0, 600},
		},
	}
}

func TestViseme_StartsAudioOnceOnBlockActivation(t *testing.T) {
	t.Parallel()
	h := headmock.New()
	v := layers.NewViseme(h, nil)
	blk := visemeBlock("b1")

	v.Update(0, 16, []*timeline.Block{blk})
	v.Update(100, 16, []*timeline.Block{blk})
	v.Update(650, 16, []*timeline.Block{blk})

	require.Len(t, h.SpokenAudio, 1, "must start audio exactly once per block")
	assert.Equal(t, "line.wav", h.SpokenAudio[0].Audio)
}

func TestViseme_FiresOnWordChangeAsWordsAdvance(t *testing.T) {
	t.Parallel()
	h := headmock.New()
	var seen []string
	v := layers.NewViseme(h, func(blockID string, wordIndex int, word string) {
		seen = append(seen, word)
	})
	blk := visemeBlock("b1")

	v.Update(0, 16, []*timeline.Block{blk})
	v.Update(100, 16, []*timeline.Block{blk})
	v.Update(650, 16, []*timeline.Block{blk})
	v.Update(700, 16, []*timeline.Block{blk})

	assert.Equal(t, []string{"hello", "world"}, seen)
}

func TestViseme_SeekClearsWordTracking(t *testing.T) {
	t.Parallel()
	h := headmock.New()
	v := layers.NewViseme(h, nil)
	blk := visemeBlock("b1")
	v.Update(0, 16, []*timeline.Block{blk})
	v.Update(650, 16, []*timeline.Block{blk})

	v.Seek(0)
	v.Update(0, 16, []*timeline.Block{blk})
	assert.Len(t, h.SpokenAudio, 2, "seeking back into the same block must restart audio")
}

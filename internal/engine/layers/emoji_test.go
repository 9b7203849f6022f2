package layers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarstage/performer/internal/engine/layers"
	headmock "github.com/avatarstage/performer/internal/head/mock"
	"github.com/avatarstage/performer/internal/timeline"
)

func emojiBlock(id, emoji string) *timeline.Block {
	return &timeline.Block{
		ID: id, LayerID: timeline.LayerEmoji, LayerType: timeline.LayerEmoji,
		StartMS: 1000, DurationMS: 1000,
		Data: timeline.EmojiBlockData{Emoji: emoji},
	}
}

func TestEmoji_FiresOnceNearBlockStart(t *testing.T) {
	t.Parallel()
	h := headmock.New()
	e := layers.NewEmoji(h)
	blk := emojiBlock("b1", "🔥")

	e.Update(1000, 16, []*timeline.Block{blk})
	e.Update(1050, 16, []*timeline.Block{blk})
	e.Update(1500, 16, []*timeline.Block{blk})

	require.Len(t, h.Emojis, 1)
	assert.Equal(t, "🔥", h.Emojis[0])
}

func TestEmoji_DoesNotFireAfterProgressThreshold(t *testing.T) {
	t.Parallel()
	h := headmock.New()
	e := layers.NewEmoji(h)
	blk := emojiBlock("b1", "🔥")

	// jump straight past the 0.1 progress threshold (duration 1000ms).
	e.Update(1200, 16, []*timeline.Block{blk})
	assert.Empty(t, h.Emojis)
}

func TestEmoji_SeekClearsFiredTracking(t *testing.T) {
	t.Parallel()
	h := headmock.New()
	e := layers.NewEmoji(h)
	blk := emojiBlock("b1", "🔥")
	e.Update(1000, 16, []*timeline.Block{blk})
	require.Len(t, h.Emojis, 1)

	e.Seek(0)
	e.Update(1000, 16, []*timeline.Block{blk})
	assert.Len(t, h.Emojis, 2)
}

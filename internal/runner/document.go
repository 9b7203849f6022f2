package runner

import (
	"encoding/json"
	"fmt"

	"github.com/avatarstage/performer/internal/timeline"
)

// document is the on-the-wire shape [Runner.Export]/[Runner.Import] use to
// serialize a [timeline.Timeline]. Block.Data is a tagged-variant
// interface ([timeline.LayerData]); encoding/json cannot round-trip an
// interface field on its own, so blockDoc carries the concrete payload as
// json.RawMessage and re-dispatches on LayerType at decode time.
type document struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	DurationMS int             `json:"duration_ms"`
	Layers     [7]layerDoc     `json:"layers"`
	Blocks     []blockDoc      `json:"blocks"`
	Markers    []timeline.Marker `json:"markers"`
}

type layerDoc struct {
	ID        timeline.LayerType `json:"id"`
	Enabled   bool               `json:"enabled"`
	Muted     bool               `json:"muted"`
	Priority  int                `json:"priority"`
	BlendMode timeline.BlendMode `json:"blend_mode"`
}

type blockDoc struct {
	ID            string                 `json:"id"`
	LayerID       timeline.LayerType     `json:"layer_id"`
	LayerType     timeline.LayerType     `json:"layer_type"`
	StartMS       int                    `json:"start_ms"`
	DurationMS    int                    `json:"duration_ms"`
	Data          json.RawMessage        `json:"data"`
	EaseIn        timeline.Easing        `json:"ease_in,omitempty"`
	EaseOut       timeline.Easing        `json:"ease_out,omitempty"`
	FadeInMS      int                    `json:"fade_in_ms,omitempty"`
	FadeOutMS     int                    `json:"fade_out_ms,omitempty"`
	Label         string                 `json:"label,omitempty"`
	TriggerEvents []timeline.TriggerEvent `json:"trigger_events,omitempty"`
}

func toDocument(tl *timeline.Timeline) (document, error) {
	doc := document{
		ID:         tl.ID,
		Name:       tl.Name,
		DurationMS: tl.DurationMS,
		Markers:    tl.Markers,
	}
	for i, l := range tl.Layers {
		doc.Layers[i] = layerDoc{ID: l.ID, Enabled: l.Enabled, Muted: l.Muted, Priority: l.Priority, BlendMode: l.BlendMode}
	}
	for _, b := range tl.Blocks {
		raw, err := json.Marshal(b.Data)
		if err != nil {
			return document{}, fmt.Errorf("marshal block %s data: %w", b.ID, err)
		}
		doc.Blocks = append(doc.Blocks, blockDoc{
			ID: b.ID, LayerID: b.LayerID, LayerType: b.LayerType,
			StartMS: b.StartMS, DurationMS: b.DurationMS, Data: raw,
			EaseIn: b.EaseIn, EaseOut: b.EaseOut,
			FadeInMS: b.FadeInMS, FadeOutMS: b.FadeOutMS,
			Label: b.Label, TriggerEvents: b.TriggerEvents,
		})
	}
	return doc, nil
}

func (doc document) toTimeline() (*timeline.Timeline, error) {
	tl := &timeline.Timeline{
		ID: doc.ID, Name: doc.Name, DurationMS: doc.DurationMS, Markers: doc.Markers,
	}
	for i, l := range doc.Layers {
		tl.Layers[i] = timeline.Layer{ID: l.ID, Enabled: l.Enabled, Muted: l.Muted, Priority: l.Priority, BlendMode: l.BlendMode}
	}
	for _, bd := range doc.Blocks {
		data, err := decodeLayerData(bd.LayerType, bd.Data)
		if err != nil {
			return nil, fmt.Errorf("block %s: %w", bd.ID, err)
		}
		tl.Blocks = append(tl.Blocks, &timeline.Block{
			ID: bd.ID, LayerID: bd.LayerID, LayerType: bd.LayerType,
			StartMS: bd.StartMS, DurationMS: bd.DurationMS, Data: data,
			EaseIn: bd.EaseIn, EaseOut: bd.EaseOut,
			FadeInMS: bd.FadeInMS, FadeOutMS: bd.FadeOutMS,
			Label: bd.Label, TriggerEvents: bd.TriggerEvents,
		})
	}
	return tl, nil
}

func decodeLayerData(lt timeline.LayerType, raw json.RawMessage) (timeline.LayerData, error) {
	var err error
	switch lt {
	case timeline.LayerCamera:
		var d timeline.CameraBlockData
		err = json.Unmarshal(raw, &d)
		return d, err
	case timeline.LayerLighting:
		var d timeline.LightingBlockData
		err = json.Unmarshal(raw, &d)
		return d, err
	case timeline.LayerBlendshape:
		var d timeline.BlendshapeBlockData
		err = json.Unmarshal(raw, &d)
		return d, err
	case timeline.LayerEmoji:
		var d timeline.EmojiBlockData
		err = json.Unmarshal(raw, &d)
		return d, err
	case timeline.LayerDance:
		var d timeline.DanceBlockData
		err = json.Unmarshal(raw, &d)
		return d, err
	case timeline.LayerFX:
		var d timeline.FXBlockData
		err = json.Unmarshal(raw, &d)
		return d, err
	case timeline.LayerViseme:
		var d timeline.VisemeBlockData
		err = json.Unmarshal(raw, &d)
		return d, err
	default:
		return nil, fmt.Errorf("unknown layer type %q", lt)
	}
}

package timeline

import "github.com/google/uuid"

// LayerType names one of the seven fixed parallel tracks.
type LayerType string

const (
	LayerViseme     LayerType = "viseme"
	LayerDance      LayerType = "dance"
	LayerBlendshape LayerType = "blendshape"
	LayerEmoji      LayerType = "emoji"
	LayerLighting   LayerType = "lighting"
	LayerCamera     LayerType = "camera"
	LayerFX         LayerType = "fx"
)

// LayerOrder is the fixed layer list, also used as the default priority
// ranking (index 0 is highest priority) when a caller does not override it.
var LayerOrder = []LayerType{
	LayerViseme, LayerDance, LayerBlendshape, LayerEmoji, LayerLighting, LayerCamera, LayerFX,
}

// BlendMode controls how an executor should combine multiple simultaneously
// active blocks on its layer.
type BlendMode string

const (
	BlendWinnerTakeAll BlendMode = "winner" // index 0 wins (lighting, camera, dance)
	BlendWeighted      BlendMode = "blend"  // weighted combination (blendshape)
	BlendStack         BlendMode = "stack"  // all apply simultaneously (fx, emoji)
)

// Layer is one of the seven fixed tracks.
type Layer struct {
	ID        LayerType
	Enabled   bool
	Muted     bool
	Priority  int
	BlendMode BlendMode
}

// DefaultLayers returns the seven layers with distinct priorities (lower
// value = higher priority, matching LayerOrder) and sensible blend modes,
// all enabled and unmuted.
func DefaultLayers() [7]Layer {
	modes := map[LayerType]BlendMode{
		LayerViseme:     BlendWinnerTakeAll,
		LayerDance:      BlendWinnerTakeAll,
		LayerBlendshape: BlendWeighted,
		LayerEmoji:      BlendStack,
		LayerLighting:   BlendWinnerTakeAll,
		LayerCamera:     BlendWinnerTakeAll,
		LayerFX:         BlendStack,
	}
	var out [7]Layer
	for i, lt := range LayerOrder {
		out[i] = Layer{ID: lt, Enabled: true, Priority: i, BlendMode: modes[lt]}
	}
	return out
}

// EventTiming selects whether a TriggerEvent fires on block activation or
// deactivation.
type EventTiming string

const (
	EventStart EventTiming = "start"
	EventEnd   EventTiming = "end"
)

// TriggerEvent is a cross-layer dispatch carried by a block: when the block
// is activated or deactivated, the engine routes Action/Args to the
// executor owning TargetLayerID.
type TriggerEvent struct {
	Type          EventTiming
	TargetLayerID LayerType
	Action        string
	Args          map[string]any
	DelayMS       int
}

// Easing names one of the shared easing curves honored by every executor,
// either per-block or per-keyframe.
type Easing string

const (
	EaseLinear    Easing = "linear"
	EaseIn        Easing = "easeIn"
	EaseOut       Easing = "easeOut"
	EaseInOut     Easing = "easeInOut"
	EaseBounce    Easing = "bounce"
	EaseElastic   Easing = "elastic"
	EaseStep      Easing = "step"
)

// Block is a time-bounded record on one Layer. Data is a tagged variant
// selected by LayerType; see the LayerData implementations in layerdata.go.
type Block struct {
	ID            string
	LayerID       LayerType
	LayerType     LayerType
	StartMS       int
	DurationMS    int
	Data          LayerData
	EaseIn        Easing
	EaseOut       Easing
	FadeInMS      int
	FadeOutMS     int
	Label         string
	TriggerEvents []TriggerEvent
}

// EndMS is the block's exclusive end time.
func (b *Block) EndMS() int { return b.StartMS + b.DurationMS }

// NewBlockID mints a globally unique block ID.
func NewBlockID() string { return uuid.NewString() }

// Marker is a labelled point-in-time annotation on the timeline; the core
// does not interpret markers beyond storing them for an editor collaborator.
type Marker struct {
	ID     string
	TimeMS int
	Label  string
}

// Timeline is the compiled, flat form of a Plan: seven fixed layers plus an
// unordered-by-construction (compiler sorts by StartMS) set of blocks.
type Timeline struct {
	ID         string
	Name       string
	DurationMS int
	Layers     [7]Layer
	Blocks     []*Block
	Markers    []Marker
}

// NewTimeline creates an empty Timeline with default layers and a fresh ID.
func NewTimeline(name string, durationMS int) *Timeline {
	return &Timeline{
		ID:         uuid.NewString(),
		Name:       name,
		DurationMS: durationMS,
		Layers:     DefaultLayers(),
	}
}

// LayerByID returns a pointer to the Layer with the given ID, or nil.
func (t *Timeline) LayerByID(id LayerType) *Layer {
	for i := range t.Layers {
		if t.Layers[i].ID == id {
			return &t.Layers[i]
		}
	}
	return nil
}

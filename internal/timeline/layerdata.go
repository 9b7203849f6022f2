package timeline

// LayerData is the tagged-variant payload carried by a Block; the concrete
// type is selected by Block.LayerType. Each variant below implements it as
// a marker so a Block.Data field can hold any of them while the compiler
// and executors still type-switch on the concrete type.
type LayerData interface {
	isLayerData()
}

// CameraMovement is the closed vocabulary of camera movement kinds a
// CameraBlockData may select.
type CameraMovement string

const (
	MoveStatic CameraMovement = "static"
	MoveDolly  CameraMovement = "dolly"
	MovePan    CameraMovement = "pan"
	MoveTilt   CameraMovement = "tilt"
	MoveOrbit  CameraMovement = "orbit"
	MovePunch  CameraMovement = "punch"
	MoveSweep  CameraMovement = "sweep"
	MoveShake  CameraMovement = "shake"
)

// CameraBlockData drives the camera executor for one block's duration.
type CameraBlockData struct {
	View      CameraView
	Movement  CameraMovement
	Distance  float64 // dolly target delta
	RotateY   float64 // pan/orbit target delta, degrees
	RotateX   float64 // tilt target delta, degrees
	Orbit     float64 // orbit angle delta, degrees
	Punch     float64 // punch magnitude
	StartAngle float64 // sweep start, degrees
	EndAngle   float64 // sweep end, degrees
	ShakeFrequencyHz float64
	ShakeIntensity   float64
}

func (CameraBlockData) isLayerData() {}

// LightTransition is the closed vocabulary of lighting-change transitions.
type LightTransition string

const (
	TransitionFade LightTransition = "fade"
	TransitionPulse LightTransition = "pulse"
	TransitionCut  LightTransition = "cut"
)

// LightColorOverride overrides one of a preset's three light channels.
type LightColorOverride struct {
	Hex       string
	Intensity float64
}

// LightingBlockData drives the lighting executor for one block's duration.
type LightingBlockData struct {
	Preset     LightPreset
	Transition LightTransition
	AudioPulse bool

	AmbientOverride *LightColorOverride
	DirectOverride  *LightColorOverride
	SpotOverride    *LightColorOverride
}

func (LightingBlockData) isLayerData() {}

// Keyframe is a single (time, value) sample used by blendshape and fx
// blocks that interpolate rather than hold a constant target.
type Keyframe struct {
	TimeMS int
	Values map[string]float64
	Bools  map[string]bool
	Easing Easing
}

// BlendshapeBlockData drives the blendshape executor for one block's
// duration. Either TargetMorphs or Keyframes is set; Keyframes, when
// present, takes precedence.
type BlendshapeBlockData struct {
	Intensity    float64
	TargetMorphs map[string]float64
	Keyframes    []Keyframe
	Mood         Mood
	Emoji        string
}

func (BlendshapeBlockData) isLayerData() {}

// EmojiBlockData drives the emoji executor: a single one-shot facial emoji.
type EmojiBlockData struct {
	Emoji string
}

func (EmojiBlockData) isLayerData() {}

// DanceBlockData drives the dance executor: at most one clip active at a
// time.
type DanceBlockData struct {
	ClipURL   string
	DurationS float64
	Speed     float64
}

func (DanceBlockData) isLayerData() {}

// FXBlockData drives the fx executor. Effect-specific numeric/boolean
// parameters live in Params/BoolParams; Keyframes, when present, overrides
// them with interpolated values.
type FXBlockData struct {
	Effect     FXTag
	Params     map[string]float64
	BoolParams map[string]bool
	Keyframes  []Keyframe
}

func (FXBlockData) isLayerData() {}

// VisemeBlockData drives the viseme (lip-sync) executor: word and viseme
// timing arrays aligned to an audio clip.
type VisemeBlockData struct {
	AudioURL      string
	Words         []string
	WordTimesMS   []float64
	WordDurMS     []float64
	Visemes       []string
	VisemeTimesMS []float64
	VisemeDurMS   []float64
}

func (VisemeBlockData) isLayerData() {}

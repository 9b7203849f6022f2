// Package head specifies the external 3D avatar rig ("Head") as this
// module consumes it. The renderer itself is an external collaborator;
// only the imperative operations the layer executors call are declared
// here, as an interface, so internal/engine's layer executors can be
// exercised against [mock.Head] in tests and wired to a real renderer in
// production.
package head

import "github.com/avatarstage/performer/internal/timeline"

// SpeakAudioInput bundles an audio clip with its word/viseme timing
// arrays, mirroring [timeline.VisemeBlockData] one-to-one.
type SpeakAudioInput struct {
	Audio         string // a URL or opaque handle; the renderer resolves it
	Words         []string
	WordTimesMS   []float64
	WordDurMS     []float64
	Visemes       []string
	VisemeTimesMS []float64
	VisemeDurMS   []float64
}

// RGBIntensity is one of the three scene-light handles exposed by the
// Head (ambient, direct, spot): a color plus a scalar intensity, mutated
// in place by the lighting executor every tick.
type RGBIntensity struct {
	ColorHex  string
	Intensity float64
}

// SetColorHex stores hex (e.g. "#ff00ff") as the light's current color.
func (l *RGBIntensity) SetColorHex(hex string) { l.ColorHex = hex }

// CameraOptions mirrors the Head's camera option properties: the camera
// executor writes these every tick instead of calling a method, matching
// how the renderer's scene graph is actually driven.
type CameraOptions struct {
	Distance  float64
	X         float64
	Y         float64
	RotateX   float64
	RotateY   float64
}

// Head is the imperative surface the layer executors (internal/engine/layers)
// drive. Production wiring supplies a real renderer implementation, and
// internal/head/mock supplies a recording test double.
type Head interface {
	// SetMood applies a named mood to the avatar's idle facial expression.
	SetMood(mood timeline.Mood)

	// SetValue sets a single named morph target's blend weight directly;
	// the blendshape executor emits its per-morph blend output through it.
	SetValue(morphName string, value float64)

	// GetValue reads a single named morph target's current blend weight.
	GetValue(morphName string) float64

	// SetView applies a camera framing change with a transition duration.
	SetView(view timeline.CameraView, transitionMS int)

	// Camera returns the live camera option struct the camera executor
	// mutates in place every tick.
	Camera() *CameraOptions

	// LightAmbient, LightDirect, LightSpot return the three live scene-light
	// handles the lighting executor mutates every tick.
	LightAmbient() *RGBIntensity
	LightDirect() *RGBIntensity
	LightSpot() *RGBIntensity

	// Speak synthesizes speech for plain text with no pre-computed timing
	// (used by session/external verbs, not the viseme executor itself).
	Speak(text string)

	// SpeakAudio drives lip-sync against a pre-decoded clip plus word/viseme
	// timing arrays.
	SpeakAudio(in SpeakAudioInput)

	// SpeakEmoji fires a one-shot facial emoji pose (the emoji executor,
	// and the blendshape executor's one-shot emoji field).
	SpeakEmoji(emoji string)

	// SpeakBreak pauses speech synthesis for the given duration.
	SpeakBreak(ms int)

	// PlayAnimation plays a full-body animation clip: url, an optional
	// progress callback, clip duration in seconds, a track index, and a
	// blend-in scale.
	PlayAnimation(url string, onProgress func(float64), durationS float64, index int, scale float64)

	// PlayPose plays a static/held pose clip with the same argument shape
	// as PlayAnimation.
	PlayPose(url string, onProgress func(float64), durationS float64, index int, scale float64)

	// PlayGesture plays a named, pre-registered gesture clip; mirror flips
	// it left-right when true.
	PlayGesture(name string, durationS float64, mirror bool)

	// StopGesture stops the current gesture, optionally fading out over ms.
	StopGesture(ms int)

	// StopAnimation halts whatever animation/pose clip is currently
	// playing.
	StopAnimation()

	// LookAt aims the avatar's gaze at a point in view space over
	// transitionMS.
	LookAt(x, y float64, transitionMS int)

	// LookAtCamera aims the avatar's gaze directly at the camera over
	// transitionMS.
	LookAtCamera(transitionMS int)

	// Stop halts all avatar output (speech, animation, gaze) immediately.
	Stop()

	// Start (re)activates the avatar rig after a Stop.
	Start()
}

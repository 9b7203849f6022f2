// Package mock provides a recording test double for the head.Head
// interface, in the same style as pkg/llm/mock: every call is appended to a
// slice so tests can assert on exactly what the layer executors drove.
package mock

import (
	"sync"

	"github.com/avatarstage/performer/internal/head"
	"github.com/avatarstage/performer/internal/timeline"
)

// PlayCall records one PlayAnimation/PlayPose invocation.
type PlayCall struct {
	URL        string
	DurationS  float64
	Index      int
	Scale      float64
}

// GestureCall records one PlayGesture invocation.
type GestureCall struct {
	Name      string
	DurationS float64
	Mirror    bool
}

// LookAtCall records one LookAt invocation.
type LookAtCall struct {
	X, Y         float64
	TransitionMS int
}

// Head is a recording mock implementation of head.Head. Zero value is
// ready to use; morph values default to 0 and camera/light handles are
// allocated eagerly so SetValue/Camera/LightAmbient etc. never nil-panic.
type Head struct {
	mu sync.Mutex

	morphs map[string]float64
	camera head.CameraOptions
	ambient, direct, spot head.RGBIntensity

	Moods         []timeline.Mood
	Views         []timeline.CameraView
	SpokenText    []string
	SpokenAudio   []head.SpeakAudioInput
	Emojis        []string
	Breaks        []int
	Animations    []PlayCall
	Poses         []PlayCall
	Gestures      []GestureCall
	GestureStops  []int
	AnimationStops int
	LookAts       []LookAtCall
	LookAtCameras []int
	Stops         int
	Starts        int
}

// New constructs an empty Head mock.
func New() *Head {
	return &Head{morphs: make(map[string]float64)}
}

func (h *Head) SetMood(mood timeline.Mood) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Moods = append(h.Moods, mood)
}

func (h *Head) SetValue(morphName string, value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.morphs[morphName] = value
}

func (h *Head) GetValue(morphName string) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.morphs[morphName]
}

func (h *Head) SetView(view timeline.CameraView, transitionMS int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Views = append(h.Views, view)
}

func (h *Head) Camera() *head.CameraOptions {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &h.camera
}

func (h *Head) LightAmbient() *head.RGBIntensity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &h.ambient
}

func (h *Head) LightDirect() *head.RGBIntensity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &h.direct
}

func (h *Head) LightSpot() *head.RGBIntensity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &h.spot
}

func (h *Head) Speak(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.SpokenText = append(h.SpokenText, text)
}

func (h *Head) SpeakAudio(in head.SpeakAudioInput) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.SpokenAudio = append(h.SpokenAudio, in)
}

func (h *Head) SpeakEmoji(emoji string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Emojis = append(h.Emojis, emoji)
}

func (h *Head) SpeakBreak(ms int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Breaks = append(h.Breaks, ms)
}

func (h *Head) PlayAnimation(url string, _ func(float64), durationS float64, index int, scale float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Animations = append(h.Animations, PlayCall{URL: url, DurationS: durationS, Index: index, Scale: scale})
}

func (h *Head) PlayPose(url string, _ func(float64), durationS float64, index int, scale float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Poses = append(h.Poses, PlayCall{URL: url, DurationS: durationS, Index: index, Scale: scale})
}

func (h *Head) PlayGesture(name string, durationS float64, mirror bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Gestures = append(h.Gestures, GestureCall{Name: name, DurationS: durationS, Mirror: mirror})
}

func (h *Head) StopGesture(ms int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.GestureStops = append(h.GestureStops, ms)
}

func (h *Head) StopAnimation() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.AnimationStops++
}

func (h *Head) LookAt(x, y float64, transitionMS int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LookAts = append(h.LookAts, LookAtCall{X: x, Y: y, TransitionMS: transitionMS})
}

func (h *Head) LookAtCamera(transitionMS int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LookAtCameras = append(h.LookAtCameras, transitionMS)
}

func (h *Head) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Stops++
}

func (h *Head) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Starts++
}

var _ head.Head = (*Head)(nil)

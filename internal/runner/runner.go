// Package runner glues the pieces together: it hands a merged
// [timeline.Plan] to the compiler, hands the compiled [timeline.Timeline]
// to the engine, drives the engine's per-tick clock, bridges engine
// lifecycle events to any listener (an editor, a lyrics overlay, or a
// plain caller), and surfaces the compiler's external actions (verbs with
// no timeline semantics) to the caller.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avatarstage/performer/internal/compiler"
	"github.com/avatarstage/performer/internal/engine"
	"github.com/avatarstage/performer/internal/engine/layers"
	"github.com/avatarstage/performer/internal/effects"
	"github.com/avatarstage/performer/internal/head"
	"github.com/avatarstage/performer/internal/observe"
	"github.com/avatarstage/performer/internal/timeline"
)

// EventType names one kind of event a Runner listener may subscribe to.
// These mirror the engine's own events plus the runner-level additions
// (timelineLoaded and the playback lifecycle quartet).
type EventType string

const (
	EventStateChange    EventType = "stateChange"
	EventTimeUpdate     EventType = "timeUpdate"
	EventTimelineLoaded EventType = "timelineLoaded"
	EventPlaybackStart  EventType = "playbackStart"
	EventPlaybackPause  EventType = "playbackPause"
	EventPlaybackStop   EventType = "playbackStop"
	EventPlaybackEnd    EventType = "playbackEnd"
	EventError          EventType = "error"
)

// Event is the payload delivered to a Listener. Only fields relevant to
// Type are populated.
type Event struct {
	Type     EventType
	State    engine.State
	TimeMS   float64
	Timeline *timeline.Timeline
	Err      error
}

// Listener receives runner events synchronously on the goroutine that
// raised them: the caller's own for direct calls such as LoadFromPlan or
// Pause, the frame-clock goroutine for tick-driven events. A panicking listener is recovered and logged, matching the
// engine's own guarantee that one bad listener never starves the rest.
type Listener func(Event)

// EditorBlockEdit is the payload an editor collaborator reports after
// mutating a block in place. The engine re-selects active blocks every
// tick, so in-place edits are visible on the next frame without any
// notification; the runner only needs to know an edit happened, to
// trigger debounced persistence.
type EditorBlockEdit struct {
	BlockID string
}

// Head and Effects alias the external collaborator interfaces so callers
// assembling a Runner only need to import this package.
type Head = head.Head
type Effects = effects.Effects

// Options configures the frame clock and debounce behavior.
type Options struct {
	// TickInterval is the scheduler's frame period, a browser-style
	// frame clock targeting roughly 60 Hz. Zero selects 1/60s.
	TickInterval time.Duration

	// PersistDebounce is the minimum spacing between two calls to
	// PersistFunc triggered by OnEditorBlockEdit. Zero disables debouncing
	// (every edit persists immediately).
	PersistDebounce time.Duration

	// PersistFunc is invoked (at most once per PersistDebounce window)
	// after an editor-reported block edit. Nil disables persistence.
	PersistFunc func(*timeline.Timeline)

	// OnWordChange is forwarded to the viseme executor: it fires whenever
	// the active word index advances during lip-synced playback (used by
	// lyric overlays). May be nil.
	OnWordChange func(blockID string, wordIndex int, word string)
}

// Runner constructs an [engine.Engine] bound to one Head (and optional
// Effects), owns the frame-clock goroutine, and bridges plan/timeline
// loading plus playback lifecycle events to any listener.
type Runner struct {
	head    head.Head
	fx      effects.Effects
	eng     *engine.Engine
	opts    Options

	mu        sync.Mutex
	listeners map[EventType][]listenerEntry
	nextID    int

	externalActions []compiler.ExternalAction

	tickStop chan struct{}
	tickWG   sync.WaitGroup

	persistPending bool
	persistTimer   *time.Timer
}

type listenerEntry struct {
	id int
	fn Listener
}

// New constructs a Runner wired to h (required) and fx (optional — pass
// nil if the song has no post-fx layer available). It builds one
// executor per layer (internal/engine/layers) and binds them into a
// fresh [engine.Engine].
func New(h head.Head, fx effects.Effects, opts Options) *Runner {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second / 60
	}

	executors := map[timeline.LayerType]engine.Executor{
		timeline.LayerBlendshape: layers.NewBlendshape(h),
		timeline.LayerEmoji:      layers.NewEmoji(h),
		timeline.LayerLighting:   layers.NewLighting(h),
		timeline.LayerCamera:     layers.NewCamera(h),
		timeline.LayerDance:      layers.NewDance(h),
		timeline.LayerViseme:     layers.NewViseme(h, opts.OnWordChange),
	}
	if fx != nil {
		executors[timeline.LayerFX] = layers.NewFX(fx)
	}

	r := &Runner{
		head:      h,
		fx:        fx,
		eng:       engine.New(executors),
		opts:      opts,
		listeners: make(map[EventType][]listenerEntry),
	}
	r.wireEngineEvents()
	return r
}

// Engine exposes the underlying engine for callers that need lower-level
// access (e.g. a timeline editor wanting direct block mutation feedback).
func (r *Runner) Engine() *engine.Engine { return r.eng }

// wireEngineEvents subscribes the runner to every engine event it needs
// to translate into runner-level events.
func (r *Runner) wireEngineEvents() {
	r.eng.On(engine.EventStateChange, func(ev engine.Event) {
		r.emit(Event{Type: EventStateChange, State: ev.State})
		switch ev.State {
		case engine.StatePlaying:
			r.emit(Event{Type: EventPlaybackStart, State: ev.State})
		case engine.StatePaused:
			r.emit(Event{Type: EventPlaybackPause, State: ev.State})
		case engine.StateReady:
			r.emit(Event{Type: EventPlaybackStop, State: ev.State})
		}
	})
	r.eng.On(engine.EventTimeUpdate, func(ev engine.Event) {
		r.emit(Event{Type: EventTimeUpdate, TimeMS: ev.TimeMS})
	})
	r.eng.On(engine.EventEnded, func(ev engine.Event) {
		r.emit(Event{Type: EventPlaybackEnd, TimeMS: ev.TimeMS})
	})
	r.eng.On(engine.EventError, func(ev engine.Event) {
		r.emit(Event{Type: EventError, Err: ev.Err})
	})
}

// On subscribes fn to events of the given type and returns an unsubscribe
// function. Safe to call from within a listener.
func (r *Runner) On(eventType EventType, fn Listener) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[eventType] = append(r.listeners[eventType], listenerEntry{id: id, fn: fn})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		entries := r.listeners[eventType]
		for i, l := range entries {
			if l.id == id {
				r.listeners[eventType] = append(entries[:i:i], entries[i+1:]...)
				break
			}
		}
	}
}

func (r *Runner) emit(ev Event) {
	r.mu.Lock()
	entries := make([]listenerEntry, len(r.listeners[ev.Type]))
	copy(entries, r.listeners[ev.Type])
	r.mu.Unlock()

	for _, l := range entries {
		r.safeInvoke(l.fn, ev)
	}
}

func (r *Runner) safeInvoke(fn Listener, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("runner: listener panicked", "event", ev.Type, "recovered", rec)
		}
	}()
	fn(ev)
}

// LoadFromPlan compiles plan into a timeline and loads it into the
// engine. audioDurationMS
// overrides plan's own section-derived duration when non-zero (e.g., the
// decoded audio clip's exact length).
func (r *Runner) LoadFromPlan(ctx context.Context, plan *timeline.Plan, opts compiler.Options, audioDurationMS int) error {
	if audioDurationMS > 0 {
		opts.DurationMS = audioDurationMS
	}
	result := compiler.Compile(plan, opts)
	r.mu.Lock()
	r.externalActions = result.ExternalActions
	r.mu.Unlock()

	if err := r.eng.SetTimeline(ctx, result.Timeline); err != nil {
		return fmt.Errorf("runner: load from plan: %w", err)
	}
	r.emit(Event{Type: EventTimelineLoaded, Timeline: result.Timeline})
	return nil
}

// LoadTimeline loads an already-compiled timeline directly, bypassing the
// compiler (e.g. re-loading a timeline saved by [Runner.Export]).
func (r *Runner) LoadTimeline(ctx context.Context, tl *timeline.Timeline) error {
	if err := r.eng.SetTimeline(ctx, tl); err != nil {
		return fmt.Errorf("runner: load timeline: %w", err)
	}
	r.emit(Event{Type: EventTimelineLoaded, Timeline: tl})
	return nil
}

// ExternalActions returns the verbs the compiler could not lower to
// timeline semantics for the most recently loaded plan; the
// caller is responsible for acting on them (e.g. starting background
// audio playback before calling Play).
func (r *Runner) ExternalActions() []compiler.ExternalAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]compiler.ExternalAction, len(r.externalActions))
	copy(out, r.externalActions)
	return out
}

// Play starts or resumes the frame clock and playback. Safe to
// call repeatedly; a no-op once already running.
func (r *Runner) Play() {
	r.mu.Lock()
	if r.tickStop != nil {
		r.mu.Unlock()
		r.eng.Play(time.Now())
		return
	}
	stop := make(chan struct{})
	r.tickStop = stop
	r.mu.Unlock()

	observe.DefaultMetrics().ActivePerformances.Add(context.Background(), 1)
	r.eng.Play(time.Now())

	r.tickWG.Add(1)
	go r.tickLoop(stop)
}

// tickLoop drives engine.Tick at opts.TickInterval until stop is closed.
func (r *Runner) tickLoop(stop chan struct{}) {
	defer r.tickWG.Done()
	ticker := time.NewTicker(r.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			r.eng.Tick(now)
			if r.eng.State() != engine.StatePlaying {
				r.mu.Lock()
				owned := r.tickStop == stop
				if owned {
					r.tickStop = nil
				}
				r.mu.Unlock()
				if owned {
					observe.DefaultMetrics().ActivePerformances.Add(context.Background(), -1)
				}
				return
			}
		}
	}
}

// stopTickLoop signals the running tick goroutine (if any) to exit and
// waits for it.
func (r *Runner) stopTickLoop() {
	r.mu.Lock()
	stop := r.tickStop
	r.tickStop = nil
	r.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	r.tickWG.Wait()
	observe.DefaultMetrics().ActivePerformances.Add(context.Background(), -1)
}

// Pause halts the clock without resetting position.
func (r *Runner) Pause() {
	r.eng.Pause()
	r.stopTickLoop()
}

// Stop halts playback and resets position to 0.
func (r *Runner) Stop() {
	r.eng.Stop()
	r.stopTickLoop()
}

// TogglePlay plays if not currently playing, pauses otherwise.
func (r *Runner) TogglePlay() {
	if r.eng.State() == engine.StatePlaying {
		r.Pause()
		return
	}
	r.Play()
}

// Seek moves the playback position without changing play/pause state.
func (r *Runner) Seek(tMS float64) {
	r.eng.Seek(tMS)
}

// OnEditorBlockEdit is called by an editor collaborator after it mutates a
// block in place. The engine itself needs no
// notification — it re-selects active blocks every tick — but a
// PersistFunc, if configured, is invoked at most once per
// opts.PersistDebounce window.
func (r *Runner) OnEditorBlockEdit(_ EditorBlockEdit) {
	if r.opts.PersistFunc == nil {
		return
	}

	if r.opts.PersistDebounce <= 0 {
		r.opts.PersistFunc(r.eng.Timeline())
		return
	}

	r.mu.Lock()
	if r.persistTimer != nil {
		r.persistPending = true
		r.mu.Unlock()
		return
	}
	r.persistPending = false
	r.persistTimer = time.AfterFunc(r.opts.PersistDebounce, func() {
		r.mu.Lock()
		again := r.persistPending
		r.persistTimer = nil
		r.mu.Unlock()
		r.opts.PersistFunc(r.eng.Timeline())
		if again {
			r.OnEditorBlockEdit(EditorBlockEdit{})
		}
	})
	r.mu.Unlock()
}

// Dispose tears down the tick loop and every executor's owned resources.
func (r *Runner) Dispose() {
	r.stopTickLoop()
	r.eng.Dispose()
}

// ErrNoTimeline is returned by Save/Export when no timeline has been
// loaded yet.
var ErrNoTimeline = errors.New("runner: no timeline loaded")

// Save is an alias for Export; both serialize the currently loaded
// timeline.
func (r *Runner) Save() ([]byte, error) { return r.Export() }

// Export serializes the currently loaded timeline to JSON. Durable
// persistence of the serialized bytes is the caller's concern; the runner
// only produces them.
func (r *Runner) Export() ([]byte, error) {
	tl := r.eng.Timeline()
	if tl == nil {
		return nil, ErrNoTimeline
	}
	doc, err := toDocument(tl)
	if err != nil {
		return nil, fmt.Errorf("runner: export: %w", err)
	}
	return json.Marshal(doc)
}

// Import decodes JSON previously produced by Export/Save and loads it as
// the active timeline.
func (r *Runner) Import(ctx context.Context, data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("runner: import: decode: %w", err)
	}
	tl, err := doc.toTimeline()
	if err != nil {
		return fmt.Errorf("runner: import: %w", err)
	}
	return r.LoadTimeline(ctx, tl)
}

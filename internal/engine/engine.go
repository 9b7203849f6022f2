// Package engine is the multi-layer performance engine's state machine:
// it owns the playback clock, recomputes the active-block set for each of
// the seven tracks on every tick, drives one Executor per track
// (internal/engine/layers), and dispatches cross-layer trigger events on
// block activation/deactivation edges.
//
// The engine is intentionally single-threaded and cooperative: Tick must
// not be called concurrently with itself or with any other Engine method,
// and no Executor.Update call may block on I/O.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/avatarstage/performer/internal/observe"
	"github.com/avatarstage/performer/internal/timeline"
)

// State is one of the seven playback lifecycle states.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateSeeking State = "seeking"
	StateError   State = "error"
)

// Engine error taxonomy. LoadResourcesFailed
// transitions the state machine to [StateError]; the other two are logged
// and non-fatal.
var (
	ErrLoadResourcesFailed = errors.New("engine: load resources failed")
	ErrExecutorActionUnknown = errors.New("engine: executor action unknown")
	ErrListenerThrew         = errors.New("engine: listener panicked")
)

// Executor is the shared lifecycle every layer executor implements.
// The engine never holds a block reference across ticks except
// inside an Executor's own state, and never calls Update with blocks from
// a disabled or muted layer.
type Executor interface {
	// LoadResources pre-fetches any asset the executor needs before
	// playback starts (e.g., the viseme executor's audio decode).
	LoadResources(ctx context.Context, tl *timeline.Timeline) error

	// Update is called once per tick with every block currently active on
	// this executor's layer, sorted per the engine's priority order
	// (index 0 is the highest-priority block — see sortActive). tMS is the
	// engine's current time; deltaMS is the elapsed time since the last
	// tick (already scaled by playback rate).
	Update(tMS, deltaMS float64, active []*timeline.Block)

	// Pause is called when the engine transitions to StatePaused.
	Pause()

	// Stop is called when the engine transitions to StateReady via Stop();
	// implementations reset any owned external (Head/Effects) state.
	Stop()

	// Seek is called once per Engine.Seek call so the executor can drop
	// any per-block caches that assume monotonic time.
	Seek(tMS float64)

	// OnEngineStateChange notifies the executor of every state transition,
	// not only Pause/Stop, so an executor can react to e.g. StateError.
	OnEngineStateChange(state State)

	// ExecuteAction is the cross-layer trigger entry point: the engine
	// calls this on the executor owning
	// TriggerEvent.TargetLayerID when a block carrying that trigger
	// activates or deactivates. Returns ErrExecutorActionUnknown-wrapping
	// errors for unrecognized verbs; the engine logs and continues.
	ExecuteAction(action string, args map[string]any) error

	// Dispose releases any resources (e.g., decoded audio buffers) the
	// executor holds. Called once when the engine itself is disposed.
	Dispose()
}

// EventType names one kind of event an Engine listener may subscribe to.
type EventType string

const (
	EventStateChange EventType = "stateChange"
	EventTimeUpdate  EventType = "timeUpdate"
	EventBlockStart  EventType = "blockStart"
	EventBlockEnd    EventType = "blockEnd"
	EventEnded       EventType = "ended"
	EventError       EventType = "error"
)

// Event is the payload delivered to a Listener. Only the fields relevant
// to Type are populated.
type Event struct {
	Type      EventType
	State     State
	PrevState State
	TimeMS    float64
	Block     *timeline.Block
	Err       error
}

// Listener receives engine events synchronously, on the caller's own
// goroutine (Tick/Play/Pause/Stop/Seek). A panicking listener is recovered
// and logged, and never prevents remaining listeners from running.
type Listener func(Event)

type listenerEntry struct {
	id int
	fn Listener
}

// Engine drives one loaded Timeline. The zero value is not usable; call
// [New].
type Engine struct {
	mu sync.Mutex

	executors map[timeline.LayerType]Executor

	tl          *timeline.Timeline
	blocksByID  map[string]*timeline.Block
	state       State
	currentMS   float64
	playbackRate float64
	loop        bool

	activeBlocks    map[timeline.LayerType][]*timeline.Block
	previouslyActiveIDs map[string]bool

	lastFrameTime time.Time
	pending       []pendingTrigger

	listeners   map[EventType][]listenerEntry
	nextListener int
}

type pendingTrigger struct {
	fireAt time.Time
	target timeline.LayerType
	action string
	args   map[string]any
}

// New creates an idle Engine bound to the given per-layer executors. Every
// layer in [timeline.LayerOrder] should have an entry; a missing layer
// simply never receives Update/ExecuteAction calls.
func New(executors map[timeline.LayerType]Executor) *Engine {
	return &Engine{
		executors:    executors,
		state:        StateIdle,
		playbackRate: 1,
		activeBlocks: make(map[timeline.LayerType][]*timeline.Block),
		previouslyActiveIDs: make(map[string]bool),
		listeners:    make(map[EventType][]listenerEntry),
	}
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// CurrentTimeMS returns the engine's current playback position.
func (e *Engine) CurrentTimeMS() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentMS
}

// Timeline returns the currently loaded timeline, or nil.
func (e *Engine) Timeline() *timeline.Timeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tl
}

// SetPlaybackRate scales how fast currentTime advances per real-time
// millisecond. 1.0 is real-time.
func (e *Engine) SetPlaybackRate(rate float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playbackRate = rate
}

// SetLoop controls whether the engine wraps to 0 (true) or stops (false)
// when currentTime reaches the timeline's duration.
func (e *Engine) SetLoop(loop bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loop = loop
}

// On subscribes fn to events of the given type and returns an unsubscribe
// function. Safe to call from within a listener.
func (e *Engine) On(eventType EventType, fn Listener) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextListener
	e.nextListener++
	e.listeners[eventType] = append(e.listeners[eventType], listenerEntry{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		entries := e.listeners[eventType]
		for i, l := range entries {
			if l.id == id {
				e.listeners[eventType] = append(entries[:i:i], entries[i+1:]...)
				break
			}
		}
	}
}

// emit dispatches ev to every listener of ev.Type. Must be called without
// holding e.mu (listeners may call back into the engine).
func (e *Engine) emit(ev Event) {
	e.mu.Lock()
	entries := make([]listenerEntry, len(e.listeners[ev.Type]))
	copy(entries, e.listeners[ev.Type])
	e.mu.Unlock()

	for _, l := range entries {
		e.safeInvoke(l.fn, ev)
	}
}

func (e *Engine) safeInvoke(fn Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("engine: listener panicked", "event", ev.Type, "recovered", r,
				"error", fmt.Errorf("%w: %v", ErrListenerThrew, r))
		}
	}()
	fn(ev)
}

func (e *Engine) setState(next State) {
	e.mu.Lock()
	prev := e.state
	e.state = next
	e.mu.Unlock()
	if prev == next {
		return
	}
	for _, ex := range e.executors {
		ex.OnEngineStateChange(next)
	}
	e.emit(Event{Type: EventStateChange, State: next, PrevState: prev})
}

// SetTimeline loads a compiled Timeline: transitions
// idle/ready/error → loading → ready (or error on LoadResourcesFailed).
// Any previously loaded timeline's active blocks are torn down first.
func (e *Engine) SetTimeline(ctx context.Context, tl *timeline.Timeline) error {
	e.teardownActive()

	e.mu.Lock()
	e.tl = tl
	e.blocksByID = make(map[string]*timeline.Block, len(tl.Blocks))
	for _, b := range tl.Blocks {
		e.blocksByID[b.ID] = b
	}
	e.currentMS = 0
	e.activeBlocks = make(map[timeline.LayerType][]*timeline.Block)
	e.previouslyActiveIDs = make(map[string]bool)
	e.pending = nil
	e.mu.Unlock()

	e.setState(StateLoading)

	for layer, ex := range e.executors {
		if err := ex.LoadResources(ctx, tl); err != nil {
			wrapped := fmt.Errorf("%w: layer %s: %w", ErrLoadResourcesFailed, layer, err)
			observe.DefaultMetrics().RecordEngineError(ctx, string(layer))
			e.setState(StateError)
			e.emit(Event{Type: EventError, Err: wrapped})
			return wrapped
		}
	}

	e.setState(StateReady)
	return nil
}

// Play starts or resumes playback. Valid from StateReady, StatePaused, or
// StateSeeking (a caller-driven resume); otherwise a no-op.
func (e *Engine) Play(now time.Time) {
	e.mu.Lock()
	switch e.state {
	case StateReady, StatePaused, StateSeeking:
	default:
		e.mu.Unlock()
		return
	}
	e.lastFrameTime = now
	e.mu.Unlock()

	e.setState(StatePlaying)
}

// Pause halts clock advancement without resetting position. Valid only
// from StatePlaying.
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.state != StatePlaying {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	for _, ex := range e.executors {
		ex.Pause()
	}
	e.setState(StatePaused)
}

// Stop halts playback, resets currentTime to 0, and returns to
// StateReady. Every active block is deactivated first so executors see a
// clean blockEnd edge.
func (e *Engine) Stop() {
	e.teardownActive()
	for _, ex := range e.executors {
		ex.Stop()
	}

	e.mu.Lock()
	e.currentMS = 0
	e.mu.Unlock()

	e.setState(StateReady)
}

// teardownActive deactivates every currently active block (emitting
// blockEnd + its "end" triggers) and clears edge-detection bookkeeping.
// Used by both Stop and SetTimeline.
func (e *Engine) teardownActive() {
	e.mu.Lock()
	if e.tl == nil {
		e.mu.Unlock()
		return
	}
	active := e.activeBlocks
	e.activeBlocks = make(map[timeline.LayerType][]*timeline.Block)
	e.previouslyActiveIDs = make(map[string]bool)
	e.mu.Unlock()

	now := time.Now()
	for _, blocks := range active {
		for _, b := range blocks {
			e.deactivateBlock(b, now)
		}
	}
}

// Seek clamps t into [0, duration], deactivates every currently active
// block (refiring their "end" triggers), clears edge-detection state so
// the next Tick refires "start" triggers for every still-active block, and
// tells every executor to drop per-block caches.
func (e *Engine) Seek(t float64) {
	e.mu.Lock()
	if e.tl == nil {
		e.mu.Unlock()
		return
	}
	if t < 0 {
		t = 0
	}
	if t > float64(e.tl.DurationMS) {
		t = float64(e.tl.DurationMS)
	}
	prior := e.state
	e.mu.Unlock()

	e.setState(StateSeeking)
	e.teardownActive()

	e.mu.Lock()
	e.currentMS = t
	e.pending = nil
	e.mu.Unlock()

	for _, ex := range e.executors {
		ex.Seek(t)
	}

	resume := prior
	if resume == StateSeeking {
		resume = StateReady
	}
	e.setState(resume)
}

// Tick advances the playback clock and recomputes active blocks. It is a
// no-op unless the engine is in StatePlaying. now is the
// real wall-clock time of this frame, used both for the playback-rate
// delta and for resolving any TriggerEvent.DelayMS deferred dispatches.
func (e *Engine) Tick(now time.Time) {
	e.mu.Lock()
	if e.state != StatePlaying || e.tl == nil {
		e.mu.Unlock()
		return
	}
	deltaRealMS := float64(now.Sub(e.lastFrameTime).Milliseconds())
	if deltaRealMS < 0 {
		deltaRealMS = 0
	}
	deltaMS := deltaRealMS * e.playbackRate
	e.lastFrameTime = now
	e.currentMS += deltaMS
	duration := float64(e.tl.DurationMS)
	e.mu.Unlock()

	e.firePending(now)

	if e.currentMS >= duration {
		if e.loopEnabled() {
			e.mu.Lock()
			e.currentMS = 0
			e.previouslyActiveIDs = make(map[string]bool)
			e.mu.Unlock()
		} else {
			e.mu.Lock()
			e.currentMS = duration
			e.mu.Unlock()
			e.stepTick(now, deltaMS)
			e.Stop()
			e.emit(Event{Type: EventEnded, TimeMS: duration})
			return
		}
	}

	e.stepTick(now, deltaMS)
}

func (e *Engine) loopEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loop
}

// stepTick performs active-block selection, edge detection, and executor
// updates for the engine's current currentMS. Shared by the normal path
// and the final tick before a non-looping stop.
func (e *Engine) stepTick(now time.Time, deltaMS float64) {
	procStart := time.Now()
	defer func() {
		observe.DefaultMetrics().TickDuration.Record(context.Background(), time.Since(procStart).Seconds())
	}()

	e.mu.Lock()
	t := e.currentMS
	tl := e.tl
	prevIDs := e.previouslyActiveIDs
	e.mu.Unlock()

	newActive := make(map[timeline.LayerType][]*timeline.Block)
	newIDs := make(map[string]bool)
	for _, b := range tl.Blocks {
		layer := tl.LayerByID(b.LayerID)
		if layer == nil || !layer.Enabled || layer.Muted {
			continue
		}
		if float64(b.StartMS) <= t && t < float64(b.StartMS+b.DurationMS) {
			newActive[b.LayerID] = append(newActive[b.LayerID], b)
			newIDs[b.ID] = true
		}
	}

	for id := range newIDs {
		if !prevIDs[id] {
			e.activateBlock(e.blockByID(id), now)
		}
	}
	for id := range prevIDs {
		if !newIDs[id] {
			e.deactivateBlock(e.blockByID(id), now)
		}
	}

	for layer := range newActive {
		sortActive(newActive[layer])
	}

	e.mu.Lock()
	e.activeBlocks = newActive
	e.previouslyActiveIDs = newIDs
	e.mu.Unlock()

	for layerID, ex := range e.executors {
		ex.Update(t, deltaMS, newActive[layerID])
	}

	e.emit(Event{Type: EventTimeUpdate, TimeMS: t})
}

func (e *Engine) blockByID(id string) *timeline.Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.blocksByID[id]
}

// sortActive orders a layer's active blocks so index 0 is the
// highest-priority block: earlier StartMS first, block ID breaking exact
// ties.
func sortActive(blocks []*timeline.Block) {
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].StartMS != blocks[j].StartMS {
			return blocks[i].StartMS < blocks[j].StartMS
		}
		return blocks[i].ID < blocks[j].ID
	})
}

// activateBlock emits blockStart and dispatches any "start" TriggerEvents,
// honoring DelayMS via the pending-trigger queue.
func (e *Engine) activateBlock(b *timeline.Block, now time.Time) {
	if b == nil {
		return
	}
	e.emit(Event{Type: EventBlockStart, Block: b, TimeMS: float64(b.StartMS)})
	for _, trig := range b.TriggerEvents {
		if trig.Type != timeline.EventStart {
			continue
		}
		e.scheduleTrigger(trig, now)
	}
}

// deactivateBlock emits blockEnd and dispatches any "end" TriggerEvents.
func (e *Engine) deactivateBlock(b *timeline.Block, now time.Time) {
	if b == nil {
		return
	}
	e.emit(Event{Type: EventBlockEnd, Block: b, TimeMS: float64(b.EndMS())})
	for _, trig := range b.TriggerEvents {
		if trig.Type != timeline.EventEnd {
			continue
		}
		e.scheduleTrigger(trig, now)
	}
}

func (e *Engine) scheduleTrigger(trig timeline.TriggerEvent, now time.Time) {
	if trig.DelayMS <= 0 {
		e.dispatchAction(trig.TargetLayerID, trig.Action, trig.Args)
		return
	}
	e.mu.Lock()
	e.pending = append(e.pending, pendingTrigger{
		fireAt: now.Add(time.Duration(trig.DelayMS) * time.Millisecond),
		target: trig.TargetLayerID, action: trig.Action, args: trig.Args,
	})
	e.mu.Unlock()
}

// firePending dispatches any deferred trigger whose delay has elapsed.
// Triggers due at the same instant fire in scheduling order.
func (e *Engine) firePending(now time.Time) {
	e.mu.Lock()
	var due []pendingTrigger
	var rest []pendingTrigger
	for _, p := range e.pending {
		if !now.Before(p.fireAt) {
			due = append(due, p)
		} else {
			rest = append(rest, p)
		}
	}
	e.pending = rest
	e.mu.Unlock()

	for _, p := range due {
		e.dispatchAction(p.target, p.action, p.args)
	}
}

// dispatchAction routes a cross-layer action to the executor owning
// target. A missing executor or an ExecuteAction error is logged and
// surfaced as a non-fatal EventError.
func (e *Engine) dispatchAction(target timeline.LayerType, action string, args map[string]any) {
	e.mu.Lock()
	ex, ok := e.executors[target]
	e.mu.Unlock()
	if !ok {
		err := fmt.Errorf("%w: layer %s, action %s", ErrExecutorActionUnknown, target, action)
		slog.Warn("engine: no executor for trigger target layer", "layer", target, "action", action)
		observe.DefaultMetrics().RecordEngineError(context.Background(), string(target))
		e.emit(Event{Type: EventError, Err: err})
		return
	}
	if err := ex.ExecuteAction(action, args); err != nil {
		wrapped := fmt.Errorf("%w: layer %s, action %s: %w", ErrExecutorActionUnknown, target, action, err)
		slog.Warn("engine: executor action failed", "layer", target, "action", action, "error", err)
		observe.DefaultMetrics().RecordEngineError(context.Background(), string(target))
		e.emit(Event{Type: EventError, Err: wrapped})
	}
}

// Dispose releases every executor's resources. The engine must not be
// used after Dispose.
func (e *Engine) Dispose() {
	e.teardownActive()
	for _, ex := range e.executors {
		ex.Dispose()
	}
}

// Package pipeline is the director orchestrator: it runs
// the Performance director, then Stage and Camera (in parallel by
// default), and merges the three partial plans into one. Callers cancel a
// run by cancelling the context passed to [Orchestrator.Run]; Stage and
// Camera share that single context, so a failing (or cancelled) run never
// leaves a stray request in flight.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/avatarstage/performer/internal/director"
	"github.com/avatarstage/performer/internal/observe"
	"github.com/avatarstage/performer/internal/planparser"
	"github.com/avatarstage/performer/internal/timeline"
	"github.com/avatarstage/performer/pkg/llm"
)

// Status is the lifecycle of one director-role call within a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Progress is emitted to [Callbacks.OnProgress] as each stage advances.
type Progress struct {
	Stage           director.Role
	Status          Status
	Chunk           int
	TotalChunks     int
	Message         string
	ThoughtsPreview string
}

// Callbacks lets a caller observe an in-flight run without blocking it: all
// three are optional and, if set, are invoked synchronously from the run's
// own goroutine(s).
type Callbacks struct {
	OnProgress func(Progress)
	OnChunk    func(role director.Role, delta, accumulated string)
	OnThoughts func(role director.Role, thoughts string)
}

// Config tunes chunking, parallelism, and retry/timeout behavior.
type Config struct {
	// ChunkThreshold is the section count above which Performance calls are
	// split into chunks of at most ChunkSize sections.
	ChunkThreshold int
	ChunkSize      int

	// ChunkDelay is the minimum pause between chunked Performance calls.
	ChunkDelay time.Duration

	// ParallelStageCamera runs Stage and Camera concurrently when true
	// (the default); when false they run sequentially, Camera seeing
	// Stage's output.
	ParallelStageCamera bool

	RequestTimeout time.Duration
	Retries        int
	RetryBaseDelay time.Duration

	Style director.Style
	Seed  string

	// ProviderNames optionally labels each role's backend for metrics
	// (role -> configured provider name). Roles without an entry are
	// labelled with the role name itself.
	ProviderNames map[director.Role]string
}

// DefaultConfig returns the baseline tuning: chunk threshold 8, 100ms
// between chunks, Stage and Camera in parallel.
func DefaultConfig() Config {
	return Config{
		ChunkThreshold:       8,
		ChunkSize:            8,
		ChunkDelay:           100 * time.Millisecond,
		ParallelStageCamera:  true,
		RequestTimeout:       45 * time.Second,
		Retries:              2,
		RetryBaseDelay:       250 * time.Millisecond,
		Style:                director.StyleCinematic,
	}
}

// Input describes one song to run the pipeline over.
type Input struct {
	Sections      []timeline.Section
	DurationMS    int
	DefaultLight  timeline.LightPreset
	DefaultCamera timeline.CameraView
}

// DirectorResult records the outcome of one role's call(s).
type DirectorResult struct {
	Plan   *timeline.Plan
	Status Status
	Err    error
}

// Result is the orchestrator's final output: the merged plan plus each
// role's individual outcome, for diagnostics.
type Result struct {
	Plan         *timeline.Plan
	PerfResult   *DirectorResult
	StageResult  *DirectorResult
	CameraResult *DirectorResult
	TotalMS      int64
	UsedFallback bool
}

// Orchestrator runs the three-director pipeline against a fixed set of
// provider backends, one per role. The same provider may be shared across
// roles.
type Orchestrator struct {
	performance llm.Provider
	stage       llm.Provider
	camera      llm.Provider
	cfg         Config
	metrics     *observe.Metrics
}

// New constructs an Orchestrator. cfg's zero value is replaced field-by-field
// with [DefaultConfig] where left unset.
func New(performance, stage, camera llm.Provider, cfg Config) *Orchestrator {
	def := DefaultConfig()
	if cfg.ChunkThreshold <= 0 {
		cfg.ChunkThreshold = def.ChunkThreshold
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ChunkDelay <= 0 {
		cfg.ChunkDelay = def.ChunkDelay
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = def.RetryBaseDelay
	}
	if cfg.Style == "" {
		cfg.Style = def.Style
	}
	return &Orchestrator{
		performance: performance, stage: stage, camera: camera, cfg: cfg,
		metrics: observe.DefaultMetrics(),
	}
}

// Run executes the pipeline for in, reporting progress through cb. Callers
// cancel an in-flight run via ctx; Stage and Camera share ctx, so cancelling
// it aborts whichever of the two is still outstanding. Run itself never
// returns an error: total director failure degrades to the heuristic
// fallback (Result.UsedFallback=true) rather than aborting the song.
func (o *Orchestrator) Run(ctx context.Context, in Input, cb Callbacks) (*Result, error) {
	start := nowMS()
	wallStart := time.Now()
	defer func() {
		o.metrics.PipelineDuration.Record(ctx, time.Since(wallStart).Seconds())
	}()

	perfPlan, perfResult := o.runPerformance(ctx, in, cb)

	usedFallback := false
	if perfResult.Status != StatusComplete {
		perfPlan = HeuristicFallback(in.Sections, in.DurationMS, in.DefaultLight, in.DefaultCamera)
		usedFallback = true
		perfResult = &DirectorResult{Plan: perfPlan, Status: StatusComplete}
		o.metrics.RecordPlanFallback(ctx, string(director.RolePerformance))
	}

	stagePlan, stageResult, cameraPlan, cameraResult := o.runStageAndCamera(ctx, in, perfPlan, cb)

	merged := Merge(perfPlan, stagePlan, cameraPlan, in.DefaultLight, in.DefaultCamera)

	return &Result{
		Plan:         merged,
		PerfResult:   perfResult,
		StageResult:  stageResult,
		CameraResult: cameraResult,
		TotalMS:      nowMS() - start,
		UsedFallback: usedFallback,
	}, nil
}

// runPerformance runs the Performance director, chunking sections when the
// song exceeds cfg.ChunkThreshold.
func (o *Orchestrator) runPerformance(ctx context.Context, in Input, cb Callbacks) (*timeline.Plan, *DirectorResult) {
	if len(in.Sections) <= o.cfg.ChunkThreshold {
		return o.callRole(ctx, director.RolePerformance, in.Sections, in, nil, nil, cb, 1, 1)
	}

	chunks := chunkSections(in.Sections, o.cfg.ChunkSize)
	merged := &timeline.Plan{}
	for i, chunk := range chunks {
		if i > 0 {
			select {
			case <-ctx.Done():
				return merged, &DirectorResult{Plan: merged, Status: StatusCancelled, Err: ctx.Err()}
			case <-time.After(o.cfg.ChunkDelay):
			}
		}
		plan, result := o.callRole(ctx, director.RolePerformance, chunk, in, nil, nil, cb, i+1, len(chunks))
		if result.Status != StatusComplete {
			return merged, result
		}
		merged.Sections = append(merged.Sections, plan.Sections...)
		merged.Actions = append(merged.Actions, plan.Actions...)
		if merged.Title == "" {
			merged.Title = plan.Title
		}
	}
	sort.SliceStable(merged.Actions, func(a, b int) bool { return merged.Actions[a].TimeMS < merged.Actions[b].TimeMS })
	return merged, &DirectorResult{Plan: merged, Status: StatusComplete}
}

// runStageAndCamera runs Stage and Camera per cfg.ParallelStageCamera. Either
// may fail independently without affecting the other.
func (o *Orchestrator) runStageAndCamera(
	ctx context.Context, in Input, perfPlan *timeline.Plan, cb Callbacks,
) (stagePlan *timeline.Plan, stageResult *DirectorResult, cameraPlan *timeline.Plan, cameraResult *DirectorResult) {
	if o.cfg.ParallelStageCamera {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			stagePlan, stageResult = o.callRole(gctx, director.RoleStage, in.Sections, in, perfPlan, nil, cb, 1, 1)
			return nil
		})
		g.Go(func() error {
			cameraPlan, cameraResult = o.callRole(gctx, director.RoleCamera, in.Sections, in, perfPlan, nil, cb, 1, 1)
			return nil
		})
		_ = g.Wait() // errors are carried in the results, not returned
		return stagePlan, stageResult, cameraPlan, cameraResult
	}

	stagePlan, stageResult = o.callRole(ctx, director.RoleStage, in.Sections, in, perfPlan, nil, cb, 1, 1)
	cameraPlan, cameraResult = o.callRole(ctx, director.RoleCamera, in.Sections, in, perfPlan, stagePlan, cb, 1, 1)
	return stagePlan, stageResult, cameraPlan, cameraResult
}

// callRole runs a single director call end-to-end: build the prompt, stream
// it through the provider while feeding bytes into an incremental
// [planparser.Parser], and normalize the final buffer into a Plan.
func (o *Orchestrator) callRole(
	ctx context.Context,
	role director.Role,
	sections []timeline.Section,
	in Input,
	perfPlan, stagePlan *timeline.Plan,
	cb Callbacks,
	chunk, totalChunks int,
) (*timeline.Plan, *DirectorResult) {
	report(cb, Progress{Stage: role, Status: StatusRunning, Chunk: chunk, TotalChunks: totalChunks})

	o.metrics.ActiveDirectorCalls.Add(ctx, 1)
	callStart := time.Now()
	finish := func(status Status) {
		o.metrics.ActiveDirectorCalls.Add(ctx, -1)
		o.metrics.DirectorDuration.Record(ctx, time.Since(callStart).Seconds(),
			metric.WithAttributes(observe.Attr("role", string(role))))
		o.metrics.RecordProviderRequest(ctx, o.providerName(role), string(role), string(status))
		if status == StatusFailed {
			o.metrics.RecordProviderError(ctx, o.providerName(role), string(role))
		}
	}

	system, user := director.Build(role, buildPromptInput(role, sections, in, perfPlan, stagePlan, o.cfg))

	provider := o.providerFor(role)
	req := llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{{Role: "user", Content: user}},
		Temperature:  0.8,
		MaxTokens:    director.EstimateMaxTokens(role, len(sections)),
	}

	reqCtx := ctx
	if o.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, o.cfg.RequestTimeout)
		defer cancel()
	}

	chunks, err := provider.StreamCompletion(reqCtx, req)
	if err != nil {
		slog.Warn("pipeline: stream start failed", "role", role, "error", err)
		report(cb, Progress{Stage: role, Status: StatusFailed, Message: err.Error(), Chunk: chunk, TotalChunks: totalChunks})
		finish(StatusFailed)
		return nil, &DirectorResult{Status: StatusFailed, Err: err}
	}

	parser := planparser.New()
	var sawThoughts bool
	for c := range chunks {
		if c.FinishReason == "error" {
			err = fmt.Errorf("pipeline: %s: %s", role, c.Text)
			continue
		}
		if c.Text == "" {
			continue
		}
		progress := parser.Append(c.Text)
		if cb.OnChunk != nil {
			cb.OnChunk(role, c.Text, parser.Buffer())
		}
		if !sawThoughts && progress.ThoughtsSummary != "" {
			sawThoughts = true
			if cb.OnThoughts != nil {
				cb.OnThoughts(role, progress.ThoughtsSummary)
			}
		}
	}

	if ctx.Err() != nil {
		report(cb, Progress{Stage: role, Status: StatusCancelled, Chunk: chunk, TotalChunks: totalChunks})
		finish(StatusCancelled)
		return nil, &DirectorResult{Status: StatusCancelled, Err: ctx.Err()}
	}
	if err != nil {
		report(cb, Progress{Stage: role, Status: StatusFailed, Message: err.Error(), Chunk: chunk, TotalChunks: totalChunks})
		finish(StatusFailed)
		return nil, &DirectorResult{Status: StatusFailed, Err: err}
	}

	plan, err := parser.Parse(in.DurationMS)
	if err != nil {
		slog.Warn("pipeline: plan parse failed", "role", role, "error", err)
		report(cb, Progress{Stage: role, Status: StatusFailed, Message: err.Error(), Chunk: chunk, TotalChunks: totalChunks})
		finish(StatusFailed)
		return nil, &DirectorResult{Status: StatusFailed, Err: err}
	}
	if len(plan.Sections) == 0 {
		report(cb, Progress{Stage: role, Status: StatusFailed, Message: "empty plan", Chunk: chunk, TotalChunks: totalChunks})
		finish(StatusFailed)
		return nil, &DirectorResult{Status: StatusFailed, Err: errors.New("pipeline: empty plan")}
	}

	report(cb, Progress{Stage: role, Status: StatusComplete, Chunk: chunk, TotalChunks: totalChunks})
	finish(StatusComplete)
	return plan, &DirectorResult{Plan: plan, Status: StatusComplete}
}

// providerName resolves the metrics label for a role's backend, falling
// back to the role name when the caller supplied no mapping.
func (o *Orchestrator) providerName(role director.Role) string {
	if name, ok := o.cfg.ProviderNames[role]; ok && name != "" {
		return name
	}
	return string(role)
}

func (o *Orchestrator) providerFor(role director.Role) llm.Provider {
	switch role {
	case director.RoleStage:
		return o.stage
	case director.RoleCamera:
		return o.camera
	default:
		return o.performance
	}
}

func report(cb Callbacks, p Progress) {
	if cb.OnProgress != nil {
		cb.OnProgress(p)
	}
}

func buildPromptInput(
	role director.Role, sections []timeline.Section, in Input, perfPlan, stagePlan *timeline.Plan, cfg Config,
) director.Input {
	di := director.Input{
		DurationMS:      in.DurationMS,
		Style:           cfg.Style,
		Seed:            cfg.Seed,
		PerformancePlan: perfPlan,
		StagePlan:       stagePlan,
	}
	for i, s := range sections {
		si := director.SectionInput{Index: i, StartMS: s.StartMS, EndMS: s.EndMS, Text: s.Text}
		if perfPlan != nil && i < len(perfPlan.Sections) {
			si.Role = perfPlan.Sections[i].Role
			si.Mood = perfPlan.Sections[i].Mood
		}
		if stagePlan != nil && i < len(stagePlan.Sections) {
			si.Light = stagePlan.Sections[i].Light
		}
		di.Sections = append(di.Sections, si)
	}
	return di
}

// chunkSections partitions sections into chunks of at most size, with
// boundaries on section edges.
func chunkSections(sections []timeline.Section, size int) [][]timeline.Section {
	if size <= 0 {
		size = len(sections)
	}
	var chunks [][]timeline.Section
	for i := 0; i < len(sections); i += size {
		end := i + size
		if end > len(sections) {
			end = len(sections)
		}
		chunks = append(chunks, sections[i:end])
	}
	return chunks
}

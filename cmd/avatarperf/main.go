// Command avatarperf is the process entry point for the avatar
// performance engine: it loads configuration, wires the director LLM
// providers, serves health/metrics HTTP endpoints, and — when given a
// -song file — runs the full director pipeline → compiler → playback
// engine chain against a recording Head/Effects double, so the wiring
// can be exercised without a live 3D renderer.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avatarstage/performer/internal/compiler"
	"github.com/avatarstage/performer/internal/config"
	"github.com/avatarstage/performer/internal/director"
	effectsmock "github.com/avatarstage/performer/internal/effects/mock"
	"github.com/avatarstage/performer/internal/health"
	headmock "github.com/avatarstage/performer/internal/head/mock"
	"github.com/avatarstage/performer/internal/observe"
	"github.com/avatarstage/performer/internal/pipeline"
	"github.com/avatarstage/performer/internal/runner"
	"github.com/avatarstage/performer/internal/timeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	songPath := flag.String("song", "", "path to a song JSON file (sections + duration); when set, runs the director pipeline once and plays the compiled timeline against a mock Head/Effects")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "avatarperf: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "avatarperf: %v\n", err)
		}
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(levelFor(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("avatarperf starting", "config", *configPath, "listen_addr", cfg.Server.ListenAddr)

	shutdownObserve, err := observe.InitProvider(context.Background(), observe.ProviderConfig{ServiceName: "avatarperf"})
	if err != nil {
		slog.Error("failed to initialise observability", "err", err)
		return 1
	}
	defer shutdownObserve(context.Background())

	reg := config.NewRegistry()
	config.RegisterBuiltinProviders(reg)

	a := &app{reg: reg}
	if err := a.rebuild(cfg); err != nil {
		slog.Error("failed to build director providers", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if cfg.Server.ListenAddr != "" {
		srv = startHTTPServer(cfg.Server.ListenAddr)
		defer shutdownHTTPServer(srv)
	}

	if *songPath != "" {
		if err := runSong(ctx, a.orchestrator(), cfg, *songPath); err != nil {
			slog.Error("song run failed", "err", err)
			return 1
		}
		return 0
	}

	// In server mode the config file is hot-reloaded: log level applies
	// immediately, director/provider changes rebuild the orchestrator for
	// subsequent runs, and engine-default changes apply to the next song.
	watcher, err := config.NewWatcher(*configPath, func(old, updated *config.Config) {
		applyConfigChange(a, logLevel, old, updated)
	})
	if err != nil {
		slog.Warn("config hot-reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("avatarperf ready — press Ctrl+C to shut down")
	<-ctx.Done()
	slog.Info("shutdown signal received, goodbye")
	return 0
}

// app holds the pieces rebuilt on a config hot-reload.
type app struct {
	reg *config.Registry

	mu   sync.Mutex
	orch *pipeline.Orchestrator
}

// rebuild resolves the director providers from cfg and swaps in a fresh
// orchestrator.
func (a *app) rebuild(cfg *config.Config) error {
	performance, stage, camera, err := a.reg.CreateDirectors(cfg)
	if err != nil {
		return err
	}
	orch := pipeline.New(performance, stage, camera, pipeline.Config{
		ChunkThreshold: cfg.Pipeline.ChunkThreshold,
		RequestTimeout: cfg.Pipeline.RequestTimeout,
		Retries:        cfg.Pipeline.RetryMaxAttempts - 1,
		RetryBaseDelay: cfg.Pipeline.RetryBaseDelay,
		ProviderNames: map[director.Role]string{
			director.RolePerformance: cfg.Directors.Performance,
			director.RoleStage:       cfg.Directors.Stage,
			director.RoleCamera:      cfg.Directors.Camera,
		},
	})

	a.mu.Lock()
	a.orch = orch
	a.mu.Unlock()
	return nil
}

func (a *app) orchestrator() *pipeline.Orchestrator {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.orch
}

// applyConfigChange reacts to a hot-reloaded config: the log level takes
// effect immediately, director/provider changes rebuild the orchestrator,
// and engine-default changes are picked up by the next loaded song.
func applyConfigChange(a *app, logLevel *slog.LevelVar, old, updated *config.Config) {
	d := config.ComputeDiff(old, updated)

	if d.LogLevelChanged {
		logLevel.Set(levelFor(d.NewLogLevel))
		slog.Info("log level updated", "level", d.NewLogLevel)
	}

	if d.DirectorsChanged || len(d.ProviderChanges) > 0 {
		for _, pc := range d.ProviderChanges {
			slog.Info("provider entry changed",
				"name", pc.Name, "added", pc.Added, "removed", pc.Removed,
				"model_changed", pc.ModelChanged, "base_url_changed", pc.BaseURLChanged)
		}
		if err := a.rebuild(updated); err != nil {
			slog.Error("director providers not rebuilt; keeping previous configuration", "err", err)
		} else {
			slog.Info("director providers rebuilt from updated config")
		}
	}

	if d.EngineDefaultsChanged {
		slog.Info("engine defaults changed; applies to the next loaded song",
			"light", updated.Engine.DefaultLightPreset, "camera", updated.Engine.DefaultCameraView)
	}
}

// song is the on-disk shape read by -song: a set of lyric sections plus
// the declared song duration, the minimal input the director pipeline
// needs.
type song struct {
	DurationMS    int           `json:"duration_ms"`
	DefaultLight  string        `json:"default_light"`
	DefaultCamera string        `json:"default_camera"`
	Sections      []songSection `json:"sections"`
}

type songSection struct {
	StartMS int    `json:"start_ms"`
	EndMS   int    `json:"end_ms"`
	Text    string `json:"text"`
}

// runSong executes the pipeline once for the song at path, compiles the
// merged plan, and plays the resulting timeline to completion against a
// recording Head/Effects pair, logging progress and lifecycle events as
// they occur.
func runSong(ctx context.Context, o *pipeline.Orchestrator, cfg *config.Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read song file: %w", err)
	}
	var s song
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode song file: %w", err)
	}

	sections := make([]timeline.Section, len(s.Sections))
	for i, sec := range s.Sections {
		sections[i] = timeline.Section{StartMS: sec.StartMS, EndMS: sec.EndMS, Text: sec.Text}
	}

	defaultLight := timeline.LightPreset(s.DefaultLight)
	if defaultLight == "" {
		defaultLight = timeline.LightPreset(cfg.Engine.DefaultLightPreset)
	}
	defaultCamera := timeline.CameraView(s.DefaultCamera)
	if defaultCamera == "" {
		defaultCamera = timeline.CameraView(cfg.Engine.DefaultCameraView)
	}

	result, err := o.Run(ctx, pipeline.Input{
		Sections:      sections,
		DurationMS:    s.DurationMS,
		DefaultLight:  defaultLight,
		DefaultCamera: defaultCamera,
	}, pipeline.Callbacks{
		OnProgress: func(p pipeline.Progress) {
			slog.Info("director progress", "stage", p.Stage, "status", p.Status, "chunk", p.Chunk, "of", p.TotalChunks)
		},
	})
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}
	slog.Info("pipeline complete", "used_fallback", result.UsedFallback, "sections", len(result.Plan.Sections), "total_ms", result.TotalMS)

	h := headmock.New()
	fx := effectsmock.New()
	r := runner.New(h, fx, runner.Options{TickInterval: cfg.Engine.TickInterval})
	defer r.Dispose()

	r.On(runner.EventPlaybackEnd, func(runner.Event) { slog.Info("performance finished") })

	if err := r.LoadFromPlan(ctx, result.Plan, compiler.Options{
		DurationMS:    s.DurationMS,
		DefaultLight:  defaultLight,
		DefaultCamera: defaultCamera,
	}, 0); err != nil {
		return fmt.Errorf("compile/load timeline: %w", err)
	}

	for _, ext := range r.ExternalActions() {
		slog.Debug("external action not lowered to timeline", "action", ext.Action, "time_ms", ext.TimeMS)
	}

	done := make(chan struct{})
	r.On(runner.EventPlaybackEnd, func(runner.Event) { close(done) })
	r.Play()

	select {
	case <-done:
	case <-ctx.Done():
	case <-time.After(time.Duration(s.DurationMS+2000) * time.Millisecond):
	}
	return nil
}

func startHTTPServer(addr string) *http.Server {
	mux := http.NewServeMux()
	h := health.New()
	h.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		slog.Info("health/metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health/metrics server error", "err", err)
		}
	}()
	return srv
}

func shutdownHTTPServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("health/metrics server shutdown error", "err", err)
	}
}

func levelFor(level config.LogLevel) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalsfoundry/orbitsim/core"
	"github.com/signalsfoundry/orbitsim/internal/config"
	"github.com/signalsfoundry/orbitsim/internal/control"
	"github.com/signalsfoundry/orbitsim/internal/logging"
	"github.com/signalsfoundry/orbitsim/internal/observability"
	"github.com/signalsfoundry/orbitsim/internal/render"
	"github.com/signalsfoundry/orbitsim/kb"
	"github.com/signalsfoundry/orbitsim/timectrl"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	flag.StringVar(&cfg.Scene.Path, "scene", cfg.Scene.Path, "scene file (yaml, json or toml); empty uses the built-in scene")
	flag.StringVar(&cfg.Scene.Speed, "speed", cfg.Scene.Speed, "initial speed preset, e.g. \"1 hour\"")
	flag.DurationVar(&cfg.Frame.Interval, "interval", cfg.Frame.Interval, "frame interval")
	flag.BoolVar(&cfg.Frame.Accelerated, "accelerated", cfg.Frame.Accelerated, "use a fixed frame delta instead of measured wall time")
	flag.DurationVar(&cfg.Frame.Duration, "duration", cfg.Frame.Duration, "stop after this much frame time (0 runs until interrupted)")
	flag.StringVar(&cfg.Control.Addr, "control-addr", cfg.Control.Addr, "HTTP control API address; empty disables it")
	flag.BoolVar(&cfg.StdinControls, "stdin", cfg.StdinControls, "read '+' and '-' from stdin to change speed")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var lis net.Listener
	if cfg.Control.Addr != "" {
		lis, err = net.Listen("tcp", cfg.Control.Addr)
		if err != nil {
			log.Error(ctx, "failed to listen for control API", logging.String("addr", cfg.Control.Addr), logging.Err(err))
			os.Exit(1)
		}
	}

	var stdin io.Reader
	if cfg.StdinControls {
		stdin = os.Stdin
	}

	if err := run(ctx, cfg, log, lis, stdin, os.Stdout); err != nil {
		log.Error(ctx, "orbitsim exited with error", logging.Err(err))
		os.Exit(1)
	}
}

// run builds the scene and drives the frame loop until ctx is cancelled or
// the configured duration elapses. lis and stdin are optional.
func run(ctx context.Context, cfg *config.Config, log logging.Logger, lis net.Listener, stdin io.Reader, stdout io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	collector, err := observability.NewSimCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	registry := kb.NewRegistry()
	unsubscribe := registry.Subscribe(func(ev kb.Event) {
		collector.SetSceneCounts(ev.Counts.Central, ev.Counts.Orbiting)
	})
	defer unsubscribe()

	sceneCfg := core.DefaultScene()
	if cfg.Scene.Path != "" {
		if sceneCfg, err = core.LoadScene(cfg.Scene.Path); err != nil {
			return err
		}
	}
	scene, err := core.BuildScene(registry, sceneCfg)
	if err != nil {
		return err
	}
	log.Info(ctx, "scene ready",
		logging.String("source", sceneSource(cfg.Scene.Path)),
		logging.Int("satellites", len(scene.Satellites)),
	)

	clock, err := timectrl.NewSimulationClockAt(cfg.Scene.Speed)
	if err != nil {
		return err
	}

	mode := timectrl.RealTime
	if cfg.Frame.Accelerated {
		mode = timectrl.Accelerated
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		FrameEvery:  uint64(max(cfg.Tracing.FrameEvery, 1)),
		Scene: observability.SceneInfo{
			Source:        sceneSource(cfg.Scene.Path),
			Satellites:    len(scene.Satellites),
			FrameMode:     mode.String(),
			FrameInterval: cfg.Frame.Interval,
			InitialSpeed:  clock.Describe(),
		},
	}, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	latest := &render.Latest{}
	engine := core.NewSimulationEngine(registry, clock,
		core.WithSink(render.MultiSink{latest, render.NewStatusLineSink(stdout)}),
		core.WithLogger(log.With(logging.String("component", "engine"))),
		core.WithMetricsRecorder(collector),
	)

	var srv *control.Server
	serveErr := make(chan error, 1)
	if lis != nil {
		srv = control.NewServer(latest, engine.Inputs(), control.Options{
			CORSOrigins: cfg.Control.CORSOrigins,
			RateLimit:   control.RateLimitConfig(cfg.Control.RateLimit),
			Logger:      log.With(logging.String("component", "control")),
			Metrics:     collector,
		})
		go func() { serveErr <- srv.Serve(lis) }()
	}

	if stdin != nil {
		go readControls(ctx, stdin, engine.Inputs(), log)
	}

	tc := timectrl.NewTimeController(cfg.Frame.Interval, mode)
	tc.AddListener(engine.OnFrame)

	log.Info(ctx, "starting frame loop",
		logging.Duration("interval", cfg.Frame.Interval),
		logging.String("mode", mode.String()),
		logging.String("speed", clock.Describe()),
	)

	var loopErr error
	loopDone := tc.Start(ctx, cfg.Frame.Duration)
	select {
	case <-loopDone:
	case loopErr = <-serveErr:
		loopErr = fmt.Errorf("control API: %w", loopErr)
		cancel()
		<-loopDone
	}

	log.Info(ctx, "frame loop stopped", logging.Uint64("frames", tc.Frames()))

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			loopErr = errors.Join(loopErr, fmt.Errorf("control API shutdown: %w", err))
		}
	}
	return loopErr
}

// readControls maps '+'/'=' to SpeedUp and '-'/'_' to SlowDown until r is
// exhausted or ctx is done.
func readControls(ctx context.Context, r io.Reader, inputs *core.InputQueue, log logging.Logger) {
	br := bufio.NewReader(r)
	for {
		if ctx.Err() != nil {
			return
		}
		b, err := br.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn(ctx, "stdin controls stopped", logging.Err(err))
			}
			return
		}
		var ev core.InputEvent
		switch b {
		case '+', '=':
			ev = core.SpeedUp
		case '-', '_':
			ev = core.SlowDown
		default:
			continue
		}
		if !inputs.Push(ev) {
			log.Warn(ctx, "input queue full, dropping key", logging.String("event", ev.String()))
		}
	}
}

func sceneSource(path string) string {
	if path == "" {
		return "built-in"
	}
	return path
}

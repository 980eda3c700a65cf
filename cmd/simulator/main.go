package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/orbital-flight-sim/core"
	"github.com/signalsfoundry/orbital-flight-sim/internal/config"
	"github.com/signalsfoundry/orbital-flight-sim/internal/logging"
	"github.com/signalsfoundry/orbital-flight-sim/internal/observability"
	"github.com/signalsfoundry/orbital-flight-sim/internal/stream"
	"github.com/signalsfoundry/orbital-flight-sim/model"
	"github.com/signalsfoundry/orbital-flight-sim/timectrl"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "configs/solar-system.yaml", "Path to the scenario and runtime configuration")
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before SIM_* overrides are read")
	flag.Parse()

	boot := logging.NewFromEnv()
	bootCtx := context.Background()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		boot.Warn(bootCtx, "failed to load env file", logging.String("path", *envFile), logging.Err(err))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot.Error(bootCtx, "failed to load configuration", logging.String("path", *configPath), logging.Err(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, log := logging.WithRunLogger(ctx, logging.New(cfg.Logging))

	grpcLis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.GRPC.Addr), logging.Err(err))
		os.Exit(1)
	}
	httpLis, err := net.Listen("tcp", cfg.Stream.Addr)
	if err != nil {
		log.Error(ctx, "failed to listen for HTTP", logging.String("addr", cfg.Stream.Addr), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, grpcLis, httpLis); err != nil {
		log.Error(ctx, "simulator exited", logging.Err(err))
		os.Exit(1)
	}
}

// run owns the simulator's lifetime: it serves health on grpcLis, the
// snapshot stream and metrics on httpLis, and ticks until ctx is cancelled
// or the configured duration of simulation time has elapsed.
func run(ctx context.Context, cfg *config.Config, log logging.Logger, grpcLis, httpLis net.Listener) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	buildCtx, span := observability.StartSpan(ctx, "sim.BuildScenario", "star", cfg.Star.Name)
	store, err := cfg.Catalog()
	if err != nil {
		span.End()
		return err
	}
	orbits, err := core.NewOrbitState(store, cfg.Time.OrbitalScale)
	span.End()
	if err != nil {
		return fmt.Errorf("build orbit state: %w", err)
	}
	log.Debug(buildCtx, "scenario resolved", logging.Int("bodies", orbits.Len()))
	craft := core.NewCraft(cfg.StartPosition(), cfg.Ship.InitialThrottle, cfg.Ship.FlightTuning)

	reg := prometheus.NewRegistry()
	simMetrics, err := observability.NewSimCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	streamMetrics, err := observability.NewStreamCollector(reg)
	if err != nil {
		return fmt.Errorf("init stream metrics: %w", err)
	}

	engine := core.NewSimulationEngine(orbits, craft, cfg.Ship.FlightTuning, cfg.Physics,
		core.WithLogger(log),
		core.WithTickRecorder(simMetrics),
		core.WithPublisher(store),
	)

	hub := stream.NewHub(store, stream.Options{
		SendBuffer:     cfg.Stream.SendBuffer,
		WriteTimeout:   cfg.Stream.WriteTimeout,
		AllowedOrigins: cfg.Stream.AllowedOrigins,
		Every:          cfg.Stream.Every,
	}, streamMetrics, log)
	unsubscribe := hub.SubscribeTo(store)
	defer unsubscribe()
	defer hub.Close()

	httpSrv := &http.Server{
		Handler:           newHTTPMux(cfg, hub, simMetrics),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(ctx, "HTTP server exited", logging.Err(err))
		}
	}()
	log.Info(ctx, "serving snapshot stream",
		logging.String("addr", httpLis.Addr().String()),
		logging.Bool("metrics", cfg.Metrics.Enabled),
	)

	grpcSrv, hs := observability.NewGRPCServer(simMetrics)
	go func() {
		if err := grpcSrv.Serve(grpcLis); err != nil {
			log.Warn(ctx, "gRPC server exited", logging.Err(err))
		}
	}()
	log.Info(ctx, "serving gRPC health", logging.String("addr", grpcLis.Addr().String()))

	tc := timectrl.NewTimeController(cfg.Time.Tick, cfg.TimeMode(), cfg.Time.DtClamp, cfg.Time.Scale)
	status := &rate.Sometimes{First: 1, Interval: 10 * time.Second}
	tc.AddListener(func(dt float64) {
		// Pilot input belongs to an external input layer; the daemon flies hands-off.
		snap := engine.Step(ctx, dt, core.FlightCommand{})
		status.Do(func() { logStatus(ctx, log, snap) })
	})

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(observability.SimulatorService, healthpb.HealthCheckResponse_SERVING)
	log.Info(ctx, "simulation started",
		logging.String("mode", tc.Mode.String()),
		logging.Int("bodies", orbits.Len()),
		logging.Duration("tick", cfg.Time.Tick),
		logging.Float64("time_scale", cfg.Time.Scale),
		logging.Float64("orbital_time_scale", cfg.Time.OrbitalScale),
	)

	runErr := tc.Run(ctx, cfg.Time.Duration)

	log.Info(ctx, "shutting down simulator",
		logging.Uint64("ticks", engine.Ticks()),
		logging.Float64("sim_time", tc.SimTime()),
	)
	hs.Shutdown()
	grpcSrv.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn(ctx, "HTTP shutdown incomplete", logging.Err(err))
	}
	return runErr
}

func newHTTPMux(cfg *config.Config, hub *stream.Hub, metrics *observability.SimCollector) *http.ServeMux {
	mux := http.NewServeMux()
	streamHandler := hub.Handler()
	mux.Handle("/stream", streamHandler)
	mux.Handle("/snapshot", streamHandler)
	if cfg.Metrics.Enabled {
		mux.Handle("/metrics", metrics.Handler())
	}
	return mux
}

func logStatus(ctx context.Context, log logging.Logger, snap model.FrameSnapshot) {
	fields := []logging.Field{
		logging.Uint64("tick", snap.Tick),
		logging.Float64("sim_time", snap.SimTime),
		logging.Float64("speed", snap.Craft.Speed),
	}
	if n := snap.Nearest; n != nil {
		fields = append(fields,
			logging.String("nearest", n.Name),
			logging.Float64("altitude", n.Altitude),
			logging.Float64("atmosphere_depth", n.AtmosphereDepth),
		)
	}
	log.Info(ctx, "sim status", fields...)
}

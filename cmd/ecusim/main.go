// Command ecusim runs the vehicle sensor and ECU simulation.
//
// The simulated car owns one sensor of every category and one ECU of every
// kind. Each tick it samples its sensors, runs the diagnostics ECU (which
// pushes fresh readings to every subscribed ECU) and reports the status
// against the configured thresholds.
//
// Usage:
//
//	ecusim [flags]
//
// Flags:
//
//	-config string        Scenario file path (YAML)
//	-ticks int            Number of ticks to run, 0 runs until interrupted
//	-interval duration    Pause between ticks (default from scenario, 5s)
//	-seed uint            Seed for sensor readings, 0 is time-based
//	-prune-expired        Drop expired ECU references during broadcasts
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-event-log string     File path for the simulation event log (CBOR format)
//	-metrics-addr string  Address to serve Prometheus metrics on (e.g. :9100)
//	-interactive          Start the interactive console instead of the tick loop
//
// Examples:
//
//	# Run ten ticks one second apart
//	ecusim -ticks 10 -interval 1s
//
//	# Run a scenario, recording events and exposing metrics
//	ecusim -config highway.yaml -event-log run.elog -metrics-addr :9100
//
//	# Drive the simulation by hand
//	ecusim -interactive
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mash-protocol/ecusim/cmd/ecusim/interactive"
	"github.com/mash-protocol/ecusim/pkg/log"
	"github.com/mash-protocol/ecusim/pkg/metrics"
	"github.com/mash-protocol/ecusim/pkg/scenario"
	"github.com/mash-protocol/ecusim/pkg/subscription"
	"github.com/mash-protocol/ecusim/pkg/vehicle"
)

var (
	configFile      = flag.String("config", "", "Scenario file path (YAML)")
	ticks           = flag.Int("ticks", 0, "Number of ticks to run, 0 runs until interrupted")
	interval        = flag.Duration("interval", scenario.DefaultInterval, "Pause between ticks")
	seed            = flag.Uint64("seed", 0, "Seed for sensor readings, 0 is time-based")
	pruneExpired    = flag.Bool("prune-expired", false, "Drop expired ECU references during broadcasts")
	logLevel        = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	eventLog        = flag.String("event-log", "", "File path for the simulation event log (CBOR format)")
	metricsAddr     = flag.String("metrics-addr", "", "Address to serve Prometheus metrics on (e.g. :9100)")
	interactiveMode = flag.Bool("interactive", false, "Start the interactive console instead of the tick loop")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	sc, err := loadScenario()
	if err != nil {
		return err
	}

	level, err := parseLevel(*logLevel)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The console must exist before logging starts so log lines do not
	// overwrite the prompt.
	var console *interactive.Console
	var out io.Writer = os.Stderr
	if *interactiveMode {
		console, err = interactive.New()
		if err != nil {
			return err
		}
		out = console.Stdout()
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Event sinks: console via slog, optionally a CBOR file.
	sinks := []log.Logger{log.NewSlogAdapter(logger)}
	if *eventLog != "" {
		fileLogger, err := log.NewFileLogger(*eventLog)
		if err != nil {
			return fmt.Errorf("failed to create event log: %w", err)
		}
		defer fileLogger.Close()
		sinks = append(sinks, fileLogger)
		logger.Info("event logging enabled", "path", *eventLog)
	}

	config := subscription.DefaultConfig()
	config.Logger = log.NewMultiLogger(sinks...)
	config.PruneExpired = sc.Simulation.PruneExpired
	config.Sampler = newSampler(sc.Simulation.Seed)

	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		collector, err := metrics.NewCollector(reg)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		config.Metrics = collector

		srv := startMetricsServer(*metricsAddr, reg, logger)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	manager := subscription.NewManagerWithConfig(config)
	defer manager.Close()

	logger.Info("simulation starting",
		"session", manager.Recorder().Session(),
		"vehicle", sc.Vehicle.Make+" "+sc.Vehicle.Model,
		"interval", sc.Simulation.Interval,
		"ticks", sc.Simulation.Ticks)

	v, err := vehicle.New(manager, vehicle.OptionsFromScenario(sc))
	if err != nil {
		return fmt.Errorf("failed to create vehicle: %w", err)
	}
	defer v.Close()

	if console != nil {
		console.Bind(manager, v)
		console.Run(ctx, cancel)
		return nil
	}

	return runSimulation(ctx, v, sc.Simulation.Interval, sc.Simulation.Ticks, logger)
}

// loadScenario reads the scenario file, if any, and applies the flags that
// were set on the command line.
func loadScenario() (*scenario.Scenario, error) {
	sc := scenario.Default()
	if *configFile != "" {
		loaded, err := scenario.Load(*configFile)
		if err != nil {
			return nil, err
		}
		sc = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ticks":
			sc.Simulation.Ticks = *ticks
		case "interval":
			sc.Simulation.Interval = *interval
		case "seed":
			sc.Simulation.Seed = *seed
		case "prune-expired":
			sc.Simulation.PruneExpired = *pruneExpired
		}
	})

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", s)
	}
}

func startMetricsServer(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

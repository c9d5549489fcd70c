package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eraldohasanaj/lazyloop/internal/config"
	"github.com/eraldohasanaj/lazyloop/internal/logging"
	"github.com/eraldohasanaj/lazyloop/internal/loop"
	"github.com/eraldohasanaj/lazyloop/internal/metrics"
	"github.com/eraldohasanaj/lazyloop/internal/task"
	"github.com/eraldohasanaj/lazyloop/internal/tracing"
)

const shutdownTimeout = 5 * time.Second

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] [--] <program> [args...]",
		Short: "Run a program in a loop",
		Long: `Run the given program once per iteration.

The program's arguments are passed unchanged on every iteration. An
iteration succeeds when the program exits 0, or, with --success-marker,
when the marker appears in its output. Failures are logged and the loop
carries on; a program that cannot be found stops it.

Press Ctrl+C to stop gracefully.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runLoop,
	}
	config.RegisterFlags(cmd.Flags())
	// Everything after the program name belongs to the program.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func runLoop(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().Load(cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	if cfg.Tracing.Enabled() {
		logger.Info("Exporting traces",
			zap.String("endpoint", cfg.Tracing.Endpoint),
			zap.String("protocol", cfg.Tracing.Protocol))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	summary := metrics.NewSummary()
	observers := []loop.Observer{summary}
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		observers = append(observers, metrics.NewRecorder(reg))

		shutdown, err := serveMetrics(cfg.Metrics.Addr, reg, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	command := &task.Command{
		Dir:    cfg.Command.Dir,
		Output: cmd.OutOrStdout(),
		Markers: task.Markers{
			Success: cfg.Command.SuccessMarker,
			Failure: cfg.Command.FailureMarker,
		},
		StallAfter: cfg.Command.StallAfter,
		Logger:     logger,
	}

	// A missing program can never succeed, so it ends the loop.
	var notFound error
	onError := func(err error) {
		if errors.Is(err, exec.ErrNotFound) && notFound == nil {
			notFound = err
			stop()
		}
	}

	loopCfg, err := cfg.LoopOptions(command, onError).Config()
	if err != nil {
		return err
	}
	runner, err := loop.New(loopCfg,
		loop.WithLogger(logger),
		loop.WithObserver(loop.Observers(observers...)),
		loop.WithTracer(tp.Tracer()),
	)
	if err != nil {
		return err
	}

	runArgs := make([]any, len(args))
	for i, a := range args {
		runArgs[i] = a
	}

	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "Starting lazyloop: %s\n", cfg.Resolve().Mode)
	fmt.Fprintf(out, "Delay: %s\n", cfg.Resolve().DelayWindow)
	fmt.Fprintln(out, "Press Ctrl+C to stop gracefully")

	err = runner.Run(ctx, runArgs...)
	fmt.Fprintf(out, "\n%s\n", summary.Stats())

	switch {
	case notFound != nil:
		return notFound
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(out, "Stopped.")
		return nil
	default:
		return err
	}
}

// serveMetrics exposes reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("Serving metrics", zap.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

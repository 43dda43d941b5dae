// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmkit-project/charmkit/lib/charm"
	"github.com/charmkit-project/charmkit/lib/clock"
	"github.com/charmkit-project/charmkit/lib/container"
	"github.com/charmkit-project/charmkit/lib/controller"
	"github.com/charmkit-project/charmkit/lib/hookexec"
	"github.com/charmkit-project/charmkit/lib/process"
	"github.com/charmkit-project/charmkit/lib/schedule"
	"github.com/charmkit-project/charmkit/lib/socket"
	"github.com/charmkit-project/charmkit/lib/unitpaths"
	"github.com/charmkit-project/charmkit/lib/unitstate"
	"github.com/charmkit-project/charmkit/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		unitName    string
		charmDir    string
		dataDir     string
		logDir      string
		runDir      string
		socketPath  string
		logLevel    string
		showVersion bool
	)

	flag.StringVar(&unitName, "unit", os.Getenv("CHARMKIT_UNIT_NAME"), "unit name, e.g. wordpress/0 (or CHARMKIT_UNIT_NAME)")
	flag.StringVar(&charmDir, "charm-dir", "", "charm root directory containing charm.yaml and hook scripts (required)")
	flag.StringVar(&dataDir, "data-dir", unitpaths.DefaultDataDir, "root directory for per-unit state")
	flag.StringVar(&logDir, "log-dir", unitpaths.DefaultLogDir, "directory for per-unit log files")
	flag.StringVar(&runDir, "run-dir", unitpaths.DefaultRunDir, "runtime directory for the daemon socket")
	flag.StringVar(&socketPath, "socket", "", "socket path override (default <run-dir>/<unit>.sock)")
	flag.StringVar(&logLevel, "log-level", os.Getenv("CHARMKIT_LOG_LEVEL"), "log level: debug, info, warn, error (or CHARMKIT_LOG_LEVEL)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("charmkit-daemon %s\n", version.Info())
		return nil
	}

	if unitName == "" {
		return fmt.Errorf("--unit or CHARMKIT_UNIT_NAME is required")
	}
	if charmDir == "" {
		return fmt.Errorf("--charm-dir is required")
	}

	level := slog.LevelInfo
	if logLevel != "" {
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
		}
	}

	paths, err := unitpaths.For(unitName, dataDir, logDir, runDir)
	if err != nil {
		return err
	}
	if err := paths.EnsureDirs(); err != nil {
		return err
	}
	if socketPath == "" {
		socketPath = paths.Socket()
	}

	logFile, err := os.OpenFile(paths.LogFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	logger := slog.New(slog.NewJSONHandler(io.MultiWriter(os.Stderr, logFile), &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	metadata, err := charm.LoadDir(charmDir)
	if err != nil {
		return fmt.Errorf("loading charm metadata: %w", err)
	}

	store, err := unitstate.Open(unitstate.Config{
		Path:   paths.StateDB(),
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	runtime, err := container.NewDockerRuntime()
	if err != nil {
		return err
	}

	reconciler := container.NewReconciler(container.ReconcilerConfig{
		Store:      store,
		Runtime:    runtime,
		UnitName:   unitName,
		VolumesDir: paths.VolumesDir(),
		Logger:     logger,
	})

	pipeline := hookexec.New(hookexec.Config{
		CharmDir:   charmDir,
		Metadata:   metadata,
		Statuses:   store,
		SocketPath: socketPath,
		Logger:     logger,
	})

	daemon := &Daemon{
		unitName:   unitName,
		metadata:   metadata,
		store:      store,
		runtime:    runtime,
		reconciler: reconciler,
		pipeline:   pipeline,
		controller: controller.ExecFactory,
		logger:     logger,
	}

	scheduler, err := schedule.New(schedule.Config{
		Jobs:    metadata.CronJobs(),
		Cursors: store,
		Clock:   clock.Real(),
		Run:     daemon.runJob,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("building scheduler: %w", err)
	}
	daemon.scheduler = scheduler

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// stop-daemon shares the signal path: both end the serve loop,
	// which drains in-flight connections before returning.
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	daemon.shutdown = cancel

	server := socket.NewServer(socketPath, logger)
	daemon.register(server)

	logger.Info("charmkit daemon starting",
		"unit", unitName,
		"charm", metadata.Name,
		"socket", socketPath,
		"version", version.Info(),
	)

	if err := server.Serve(serveCtx); err != nil {
		return fmt.Errorf("serving: %w", err)
	}

	logger.Info("charmkit daemon stopped", "unit", unitName)
	return nil
}

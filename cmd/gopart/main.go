package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/desertwitch/gopart/internal/configuration"
	"github.com/lmittmann/tint"
)

const (
	stackTraceBufMax = 1 << 24
)

//nolint:gochecknoglobals
var (
	ExitCode = 0
	Version  string

	configPath  = flag.String("config", "/etc/gopart.conf", "path of the configuration file")
	mediumPath  = flag.String("medium", "", "path of the medium image or device (overrides config)")
	tablePath   = flag.String("table", "", "path of the partition table manifest (overrides config)")
	readWrite   = flag.Bool("rw", false, "open the medium read-write (overrides config)")
	workers     = flag.Int("workers", 0, "number of concurrent partition jobs (overrides config)")
	interval    = flag.Duration("interval", 0, "rescan interval of the watch command (overrides config)")
	metricsAddr = flag.String("metrics", "", "listen address of the metrics endpoint (overrides config)")
	debug       = flag.Bool("debug", false, "enable debug logging")
	cpuprofile  = flag.String("cpuprofile", "", "write cpu profile to file")
	memprofile  = flag.String("memprofile", "", "write memory profile to this file")
)

func setupLogging() {
	level := slog.LevelInfo
	if debug != nil && *debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}),
	))
}

func setupSignalHandlers(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-sigChan
		slog.Info("Received termination signal, shutting down.")
		cancel()
	}()

	sigChan2 := make(chan os.Signal, 1)
	signal.Notify(sigChan2, syscall.SIGUSR1)
	go func() {
		for range sigChan2 {
			buf := make([]byte, stackTraceBufMax)
			stacklen := runtime.Stack(buf, true)
			os.Stderr.Write(buf[:stacklen])
		}
	}()
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "gopart %s\n\n", Version)
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: gopart [flags] <command>\n\n")
	fmt.Fprintf(flag.CommandLine.Output(), "Commands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(flag.CommandLine.Output(), "  %-8s %s\n", cmd.name, cmd.help)
	}
	fmt.Fprintf(flag.CommandLine.Output(), "\nFlags:\n")
	flag.PrintDefaults()
}

// loadConfig reads the configuration file and applies the flag overrides.
func loadConfig() (*configuration.AppConfiguration, error) {
	configHandler := configuration.NewHandler(&configuration.GodotenvProvider{})

	cfg, err := configHandler.Load(*configPath)
	if err != nil {
		return nil, fmt.Errorf("(main) %w", err)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "medium":
			cfg.MediumPath = *mediumPath
		case "table":
			cfg.TablePath = *tablePath
		case "rw":
			cfg.ReadOnly = !*readWrite
		case "workers":
			cfg.Workers = *workers
		case "interval":
			cfg.RescanInterval = *interval
		case "metrics":
			cfg.MetricsAddr = *metricsAddr
		}
	})

	if cfg.MediumPath == "" {
		return nil, fmt.Errorf("(main) %w: set %s or -medium", ErrNoMedium, configuration.KeyMedium)
	}

	if cfg.TablePath == "" {
		return nil, fmt.Errorf("(main) %w: set %s or -table", ErrNoTable, configuration.KeyTable)
	}

	return cfg, nil
}

func main() {
	defer func() {
		os.Exit(ExitCode)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	flag.Usage = usage
	flag.Parse()
	setupLogging()
	setupSignalHandlers(cancel)

	cmd, ok := lookupCommand(flag.Arg(0))
	if !ok {
		flag.Usage()
		ExitCode = 2

		return
	}

	memObserver := newMemoryObserver(ctx)
	defer memObserver.Stop()

	cpuProfiler := newCPUProfiler(ctx, cpuprofile)
	defer cpuProfiler.Stop()

	allocProfiler := newAllocProfiler(ctx, memprofile)
	defer allocProfiler.Stop()

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load the configuration.",
			"err", err,
		)
		ExitCode = 1

		return
	}

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("Failed to establish the partition scheme.",
			"err", err,
		)
		ExitCode = 1

		return
	}
	defer app.Shutdown()

	if err := app.Launch(ctx, cmd); err != nil {
		slog.Error("Command failed.",
			"command", cmd.name,
			"err", err,
		)
		ExitCode = 1
	}
}

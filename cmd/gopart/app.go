package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/desertwitch/gopart/internal/configuration"
	"github.com/desertwitch/gopart/internal/manifest"
	"github.com/desertwitch/gopart/internal/medium"
	"github.com/desertwitch/gopart/internal/metrics"
	"github.com/desertwitch/gopart/internal/registry"
	"github.com/desertwitch/gopart/internal/scheme"
	"github.com/desertwitch/gopart/internal/storage"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// cliClient is the client identifier the program opens objects with.
	cliClient storage.ClientID = "gopart"

	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

type App struct {
	cfg       *configuration.AppConfiguration
	medium    *medium.File
	registry  *registry.Registry
	collector *metrics.Collector
	promReg   *prometheus.Registry
	scheme    *scheme.Scheme
	server    *http.Server
}

func NewApp(cfg *configuration.AppConfiguration) (*App, error) {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	collector, err := metrics.New(promReg)
	if err != nil {
		return nil, fmt.Errorf("(app) %w", err)
	}

	m, err := medium.OpenFile(&medium.Unix{}, cfg.MediumPath, cfg.ReadOnly, cfg.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("(app) %w", err)
	}

	slog.Info("Medium opened.",
		"path", m.Path(),
		"size", humanize.IBytes(m.Size()),
		"blockSize", humanize.IBytes(m.BlockSize()),
		"readOnly", cfg.ReadOnly,
	)

	configHandler := configuration.NewHandler(&configuration.GodotenvProvider{})
	reg := registry.New(nil)

	s := scheme.New(m, manifest.NewScanner(cfg.TablePath, configHandler), scheme.Options{
		Registry: reg,
		Observer: collector,
		Recorder: collector,
	})

	return &App{
		cfg:       cfg,
		medium:    m,
		registry:  reg,
		collector: collector,
		promReg:   promReg,
		scheme:    s,
	}, nil
}

// Launch opens the scheme, runs the command and closes the scheme again.
func (app *App) Launch(ctx context.Context, cmd command) error {
	app.startMetrics()

	if err := app.scheme.Open(cliClient, storage.LevelReadOnly); err != nil {
		return fmt.Errorf("(app) failed to open scheme: %w", err)
	}

	cmdErr := cmd.run(ctx, app)

	if err := app.scheme.Close(cliClient); err != nil {
		slog.Warn("Failed to close the partition scheme.", "err", err)
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.scheme.Wait(waitCtx); err != nil {
		slog.Warn("Partition scheme was not destroyed in time.", "err", err)
	}

	if cmdErr != nil {
		return fmt.Errorf("(app) %w", cmdErr)
	}

	return nil
}

func (app *App) startMetrics() {
	if app.cfg.MetricsAddr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.promReg, promhttp.HandlerOpts{}))

	app.server = &http.Server{
		Addr:              app.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		slog.Info("Serving metrics.", "addr", app.cfg.MetricsAddr)

		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics endpoint failed.", "err", err)
		}
	}()
}

// Shutdown stops the metrics endpoint and closes the medium.
func (app *App) Shutdown() {
	if app.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := app.server.Shutdown(ctx); err != nil {
			slog.Warn("Failed to stop the metrics endpoint.", "err", err)
		}
	}

	if err := app.medium.Close(); err != nil {
		slog.Warn("Failed to close the medium.", "err", err)
	}
}

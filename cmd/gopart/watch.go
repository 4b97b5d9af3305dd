package main

import (
	"context"
	"fmt"
	"log/slog"
)

func runWatch(ctx context.Context, app *App) error {
	slog.Info("Watching the partition table.",
		"table", app.cfg.TablePath,
		"interval", app.cfg.RescanInterval,
		"partitions", len(app.scheme.Partitions()),
	)

	if err := app.scheme.Watch(ctx, app.cfg.RescanInterval); err != nil {
		return fmt.Errorf("(watch) %w", err)
	}

	return nil
}

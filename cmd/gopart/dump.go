package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertwitch/gopart/internal/configuration"
	"github.com/desertwitch/gopart/internal/manifest"
	"github.com/desertwitch/gopart/internal/partition"
)

func runDump(_ context.Context, app *App) error {
	objs := app.scheme.Partitions()

	descs := make([]partition.Descriptor, 0, len(objs))
	for _, obj := range objs {
		if obj.Live() {
			descs = append(descs, obj.Descriptor())
		}
	}

	data, err := renderManifest(descs)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, data)

	return nil
}

// renderManifest renders descriptors in the manifest format the scanner reads.
func renderManifest(descs []partition.Descriptor) (string, error) {
	data, err := (&configuration.GodotenvProvider{}).Marshal(manifest.Encode(descs))
	if err != nil {
		return "", fmt.Errorf("(dump) %w", err)
	}

	return data, nil
}

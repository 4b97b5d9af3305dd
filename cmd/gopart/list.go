package main

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertwitch/gopart/internal/partition"
	"github.com/dustin/go-humanize"
)

//nolint:gochecknoglobals
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)
)

func runList(_ context.Context, app *App) error {
	objs := app.scheme.Partitions()

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}

			return cellStyle
		}).
		Headers("ID", "BASE", "SIZE", "END", "STATE", "HANDLE", "FINGERPRINT", "METADATA")

	for _, obj := range objs {
		t.Row(partitionRow(obj)...)
	}

	title := fmt.Sprintf("%s: %d partitions on %s", app.medium.Path(), len(objs), humanize.IBytes(app.medium.Size()))

	fmt.Fprintln(os.Stdout, titleStyle.Render(title))
	fmt.Fprintln(os.Stdout, t.Render())

	return nil
}

func partitionRow(obj *partition.Object) []string {
	desc := obj.Descriptor()
	state, handle := obj.PublishState()

	meta := make([]string, 0, len(desc.Metadata))
	for _, key := range slices.Sorted(maps.Keys(desc.Metadata)) {
		meta = append(meta, key+"="+desc.Metadata[key])
	}

	return []string{
		string(desc.ID),
		fmt.Sprintf("%d", desc.Base),
		humanize.IBytes(desc.Size),
		fmt.Sprintf("%d", desc.End()),
		state.String(),
		string(handle),
		fmt.Sprintf("%016x", obj.Fingerprint()),
		strings.Join(meta, " "),
	}
}

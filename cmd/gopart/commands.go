package main

import (
	"context"
)

type command struct {
	name string
	help string
	run  func(ctx context.Context, app *App) error
}

//nolint:gochecknoglobals
var commands = []command{
	{name: "list", help: "list the partitions of the medium", run: runList},
	{name: "dump", help: "print the live partitions in manifest format", run: runDump},
	{name: "hash", help: "compute a BLAKE3 digest of every partition", run: runHash},
	{name: "verify", help: "verify the parity of all protected partitions", run: runVerify},
	{name: "protect", help: "rewrite the parity of all protected partitions", run: runProtect},
	{name: "watch", help: "rescan the partition table periodically until interrupted", run: runWatch},
}

func lookupCommand(name string) (command, bool) {
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd, true
		}
	}

	return command{}, false
}

// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/charmkit-project/charmkit/cmd/charmkit/cli"
	"github.com/charmkit-project/charmkit/lib/wire"
)

// StatusCommand returns the "status" command group.
func StatusCommand() *cli.Command {
	conn := &connection{}
	var scriptID string

	set := &cli.Command{
		Name:    "set",
		Summary: "Set this script's status",
		Usage:   "charmkit status set <state> [message ...]",
		Description: `Sets the calling script's status. State is one of active, waiting,
maintenance, or blocked. The daemon consolidates all script statuses
into the unit status and reports it to the controller.

The script id defaults to CHARMKIT_SCRIPT_ID, which the daemon exports
into every hook script environment.`,
		Examples: []cli.Example{
			{Description: "Block the unit until credentials arrive", Command: "charmkit status set blocked waiting for database credentials"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status set", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.StringVar(&scriptID, "script-id", "", "script identifier (default $CHARMKIT_SCRIPT_ID)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("expected a state argument")
			}
			id := scriptID
			if id == "" {
				id = os.Getenv("CHARMKIT_SCRIPT_ID")
			}
			if id == "" {
				return fmt.Errorf("no script id: set --script-id or CHARMKIT_SCRIPT_ID")
			}
			return conn.call(&wire.Request{
				Method:   wire.MethodSetStatus,
				ScriptID: id,
				State:    args[0],
				Message:  strings.Join(args[1:], " "),
			}, nil)
		},
	}

	return &cli.Command{
		Name:        "status",
		Summary:     "Report script status",
		Subcommands: []*cli.Command{set},
	}
}

// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the charmkit CLI command tree. Hook scripts
// invoke these commands to talk to the unit daemon; operators use the
// same binary against the same socket.
package commands

import (
	"fmt"

	"github.com/charmkit-project/charmkit/cmd/charmkit/cli"
	"github.com/charmkit-project/charmkit/lib/version"
)

// Root builds the complete charmkit CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "charmkit",
		Description: `charmkit: the charm unit daemon's command-line client.

Hook scripts use it to read unit state, stage container configuration,
publish relation data, and report status. The daemon socket is taken
from CHARMKIT_SOCKET, which the daemon exports into every hook script
environment.`,
		Subcommands: []*cli.Command{
			KvCommand(),
			ContainerCommand(),
			StatusCommand(),
			RelationCommand(),
			LeaderCommand(),
			PortCommand(),
			GetCommand(),
			TriggerHookCommand(),
			CronTickCommand(),
			StopDaemonCommand(),
			DebugCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("charmkit %s\n", version.Full())
					return nil
				},
			},
		},
	}
}

// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/charmkit-project/charmkit/cmd/charmkit/cli"
	"github.com/charmkit-project/charmkit/lib/codec"
	"github.com/charmkit-project/charmkit/lib/wire"
)

// TriggerHookCommand returns the "trigger-hook" command.
func TriggerHookCommand() *cli.Command {
	conn := &connection{}
	var buffered bool

	return &cli.Command{
		Name:    "trigger-hook",
		Summary: "Run a hook's scripts through the daemon",
		Usage:   "charmkit trigger-hook [--buffered] <hook>",
		Description: `Runs every script the charm configures for the hook, in order,
stopping at the first failure. Script output is relayed line by line
as it is produced; with --buffered, the full output is printed once
the hook completes instead.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("trigger-hook", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.BoolVar(&buffered, "buffered", false, "print output once at the end instead of streaming")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one hook argument")
			}
			request := &wire.Request{Method: wire.MethodTriggerHook, Hook: args[0]}

			if buffered {
				var result wire.OutputResult
				if err := conn.call(request, &result); err != nil {
					return err
				}
				fmt.Print(result.Output)
				return nil
			}

			return conn.callStream(request, func(data codec.RawMessage) error {
				var line wire.OutputLine
				if err := codec.Unmarshal(data, &line); err != nil {
					return err
				}
				fmt.Println(line.Line)
				return nil
			}, nil)
		},
	}
}

// CronTickCommand returns the "cron-tick" command.
func CronTickCommand() *cli.Command {
	conn := &connection{}
	var contextID string

	return &cli.Command{
		Name:    "cron-tick",
		Summary: "Run all scheduled jobs that are due",
		Usage:   "charmkit cron-tick [--context-id id]",
		Description: `Asks the daemon to evaluate its cron schedule and run every job
whose time has come. The invocation context defaults to
JUJU_CONTEXT_ID; scheduled jobs act through controller tools and
cannot run without one.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("cron-tick", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.StringVar(&contextID, "context-id", "", "invocation context (default $JUJU_CONTEXT_ID)")
			return flagSet
		},
		Run: func(args []string) error {
			id := contextID
			if id == "" {
				id = os.Getenv("JUJU_CONTEXT_ID")
			}
			if id == "" {
				return fmt.Errorf("no invocation context: set --context-id or JUJU_CONTEXT_ID")
			}
			return conn.call(&wire.Request{Method: wire.MethodCronTick, ContextID: id}, nil)
		},
	}
}

// StopDaemonCommand returns the "stop-daemon" command.
func StopDaemonCommand() *cli.Command {
	conn := &connection{}

	return &cli.Command{
		Name:    "stop-daemon",
		Summary: "Shut the daemon down gracefully",
		Usage:   "charmkit stop-daemon",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("stop-daemon", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			return conn.call(&wire.Request{Method: wire.MethodStopDaemon}, nil)
		},
	}
}

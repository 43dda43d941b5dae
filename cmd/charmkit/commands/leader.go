// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/charmkit-project/charmkit/cmd/charmkit/cli"
	"github.com/charmkit-project/charmkit/lib/wire"
)

// LeaderCommand returns the "leader" command group.
func LeaderCommand() *cli.Command {
	conn := &connection{}
	flags := func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet("leader", pflag.ContinueOnError)
		conn.addFlags(flagSet)
		return flagSet
	}

	isLeader := &cli.Command{
		Name:    "is-leader",
		Summary: "Exit 0 if this unit holds leadership, 1 otherwise",
		Usage:   "charmkit leader is-leader",
		Description: `Prints "true" or "false" and exits 0 or 1 accordingly. Always asks
the controller; leadership can change between any two calls.`,
		Flags: flags,
		Run: func(args []string) error {
			var result wire.BoolResult
			if err := conn.call(&wire.Request{Method: wire.MethodLeaderIsLeader}, &result); err != nil {
				return err
			}
			fmt.Println(result.Result)
			if !result.Result {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}

	set := &cli.Command{
		Name:    "set",
		Summary: "Write application leader settings",
		Usage:   "charmkit leader set <key=value> ...",
		Flags:   flags,
		Run: func(args []string) error {
			data, err := parseStringAssignments(args)
			if err != nil {
				return err
			}
			return conn.call(&wire.Request{Method: wire.MethodLeaderSet, Data: data}, nil)
		},
	}

	get := &cli.Command{
		Name:    "get",
		Summary: "Print the application leader settings",
		Usage:   "charmkit leader get",
		Flags:   flags,
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("get takes no arguments")
			}
			var result wire.PairsResult
			if err := conn.call(&wire.Request{Method: wire.MethodLeaderGet}, &result); err != nil {
				return err
			}
			for _, pair := range result.Pairs {
				fmt.Printf("%s=%s\n", pair.Key, pair.Value)
			}
			return nil
		},
	}

	return &cli.Command{
		Name:        "leader",
		Summary:     "Query leadership and leader settings",
		Subcommands: []*cli.Command{isLeader, set, get},
	}
}

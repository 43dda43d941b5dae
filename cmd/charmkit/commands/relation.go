// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/charmkit-project/charmkit/cmd/charmkit/cli"
	"github.com/charmkit-project/charmkit/lib/wire"
)

// RelationCommand returns the "relation" command group. All relation
// data lives with the cluster controller; these commands pass
// through.
func RelationCommand() *cli.Command {
	conn := &connection{}
	var relationID string
	var remoteUnit string
	var app bool

	flags := func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet("relation", pflag.ContinueOnError)
		conn.addFlags(flagSet)
		flagSet.StringVarP(&relationID, "relation", "r", "", "relation id (default: the current hook's relation)")
		return flagSet
	}

	set := &cli.Command{
		Name:    "set",
		Summary: "Write values onto a relation",
		Usage:   "charmkit relation set [-r id] [--app] <key=value> ...",
		Flags: func() *pflag.FlagSet {
			flagSet := flags()
			flagSet.BoolVar(&app, "app", false, "write the application databag instead of the unit databag")
			return flagSet
		},
		Run: func(args []string) error {
			data, err := parseStringAssignments(args)
			if err != nil {
				return err
			}
			return conn.call(&wire.Request{
				Method:     wire.MethodRelationSet,
				RelationID: relationID,
				Data:       data,
				App:        app,
			}, nil)
		},
	}

	get := &cli.Command{
		Name:    "get",
		Summary: "Print a remote databag as key=value lines",
		Usage:   "charmkit relation get [-r id] [--unit name] [--app]",
		Flags: func() *pflag.FlagSet {
			flagSet := flags()
			flagSet.StringVar(&remoteUnit, "unit", "", "remote unit whose databag to read (default: the current hook's remote unit)")
			flagSet.BoolVar(&app, "app", false, "read the application databag instead of a unit databag")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("get takes no arguments")
			}
			var result wire.PairsResult
			err := conn.call(&wire.Request{
				Method:     wire.MethodRelationGet,
				RelationID: relationID,
				RemoteUnit: remoteUnit,
				App:        app,
			}, &result)
			if err != nil {
				return err
			}
			for _, pair := range result.Pairs {
				fmt.Printf("%s=%s\n", pair.Key, pair.Value)
			}
			return nil
		},
	}

	list := &cli.Command{
		Name:    "list",
		Summary: "Print the remote units on a relation",
		Usage:   "charmkit relation list [-r id]",
		Flags:   flags,
		Run: func(args []string) error {
			var result wire.StringsResult
			err := conn.call(&wire.Request{
				Method:     wire.MethodRelationList,
				RelationID: relationID,
			}, &result)
			if err != nil {
				return err
			}
			for _, unit := range result.Values {
				fmt.Println(unit)
			}
			return nil
		},
	}

	ids := &cli.Command{
		Name:    "ids",
		Summary: "Print the relation ids for an endpoint",
		Usage:   "charmkit relation ids <endpoint>",
		Flags:   flags,
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one endpoint argument")
			}
			var result wire.StringsResult
			err := conn.call(&wire.Request{
				Method:       wire.MethodRelationIds,
				RelationName: args[0],
			}, &result)
			if err != nil {
				return err
			}
			for _, id := range result.Values {
				fmt.Println(id)
			}
			return nil
		},
	}

	return &cli.Command{
		Name:        "relation",
		Summary:     "Read and write relation data via the controller",
		Subcommands: []*cli.Command{set, get, list, ids},
	}
}

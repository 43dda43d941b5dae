// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/charmkit-project/charmkit/cmd/charmkit/cli"
	"github.com/charmkit-project/charmkit/lib/codec"
	"github.com/charmkit-project/charmkit/lib/wire"
)

// KvCommand returns the "kv" command group for the unit-local
// key/value store.
func KvCommand() *cli.Command {
	conn := &connection{}
	flags := func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet("kv", pflag.ContinueOnError)
		conn.addFlags(flagSet)
		return flagSet
	}

	get := &cli.Command{
		Name:    "get",
		Summary: "Print the value of one key",
		Usage:   "charmkit kv get <key>",
		Description: `Prints the value of a key from the unit's key/value store.

Exits 1 without output when the key is absent. An empty stored value
prints an empty line; absence and empty are distinct states.`,
		Flags: flags,
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one key argument")
			}
			var result wire.ValueResult
			err := conn.call(&wire.Request{Method: wire.MethodUnitKvGet, Key: args[0]}, &result)
			if err != nil {
				return err
			}
			if result.Value == nil {
				return &cli.ExitError{Code: 1}
			}
			fmt.Println(*result.Value)
			return nil
		},
	}

	getAll := &cli.Command{
		Name:    "get-all",
		Summary: "Print every key=value entry in insertion order",
		Usage:   "charmkit kv get-all",
		Flags:   flags,
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("get-all takes no arguments")
			}
			return conn.callStream(&wire.Request{Method: wire.MethodUnitKvGetAll},
				func(data codec.RawMessage) error {
					var pair wire.Pair
					if err := codec.Unmarshal(data, &pair); err != nil {
						return err
					}
					fmt.Printf("%s=%s\n", pair.Key, pair.Value)
					return nil
				}, nil)
		},
	}

	set := &cli.Command{
		Name:    "set",
		Summary: "Set or erase keys atomically",
		Usage:   "charmkit kv set <key=value|key-> ...",
		Description: `Applies a batch of key assignments atomically: either every
assignment takes effect or none do.

"key=value" sets a key; a trailing "-" ("key-") erases it.`,
		Examples: []cli.Example{
			{Description: "Set two keys and erase a third in one batch", Command: "charmkit kv set db-host=10.0.0.7 db-port=5432 old-host-"},
		},
		Flags: flags,
		Run: func(args []string) error {
			values, err := parseAssignments(args)
			if err != nil {
				return err
			}
			return conn.call(&wire.Request{Method: wire.MethodUnitKvSet, Values: values}, nil)
		},
	}

	deleteCmd := &cli.Command{
		Name:    "delete",
		Summary: "Erase keys",
		Usage:   "charmkit kv delete <key> ...",
		Flags:   flags,
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("at least one key argument is required")
			}
			values := make(map[string]*string, len(args))
			for _, key := range args {
				values[key] = nil
			}
			return conn.call(&wire.Request{Method: wire.MethodUnitKvSet, Values: values}, nil)
		},
	}

	return &cli.Command{
		Name:        "kv",
		Summary:     "Read and write the unit's key/value store",
		Subcommands: []*cli.Command{get, getAll, set, deleteCmd},
	}
}

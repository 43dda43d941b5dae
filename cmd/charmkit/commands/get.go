// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/charmkit-project/charmkit/cmd/charmkit/cli"
	"github.com/charmkit-project/charmkit/lib/wire"
)

// GetCommand returns the "get" command group for controller-owned
// lookups.
func GetCommand() *cli.Command {
	conn := &connection{}
	flags := func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet("get", pflag.ContinueOnError)
		conn.addFlags(flagSet)
		return flagSet
	}

	stringCommand := func(name, summary, method string) *cli.Command {
		return &cli.Command{
			Name:    name,
			Summary: summary,
			Usage:   "charmkit get " + name,
			Flags:   flags,
			Run: func(args []string) error {
				var result wire.StringResult
				if err := conn.call(&wire.Request{Method: method}, &result); err != nil {
					return err
				}
				fmt.Println(result.Value)
				return nil
			},
		}
	}

	config := &cli.Command{
		Name:    "config",
		Summary: "Print the charm configuration as JSON",
		Usage:   "charmkit get config",
		Flags:   flags,
		Run: func(args []string) error {
			var result wire.ConfigResult
			if err := conn.call(&wire.Request{Method: wire.MethodGetConfig}, &result); err != nil {
				return err
			}
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(result.Config)
		},
	}

	resource := &cli.Command{
		Name:    "resource",
		Summary: "Print the local path of a named resource",
		Usage:   "charmkit get resource <name>",
		Flags:   flags,
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one resource name")
			}
			var result wire.StringResult
			err := conn.call(&wire.Request{Method: wire.MethodGetResource, Resource: args[0]}, &result)
			if err != nil {
				return err
			}
			fmt.Println(result.Value)
			return nil
		},
	}

	return &cli.Command{
		Name:    "get",
		Summary: "Look up controller-owned values",
		Subcommands: []*cli.Command{
			stringCommand("private-address", "Print the unit's private address", wire.MethodGetPrivateAddress),
			stringCommand("public-address", "Print the unit's public address", wire.MethodGetPublicAddress),
			config,
			resource,
		},
	}
}

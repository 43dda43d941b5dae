// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/charmkit-project/charmkit/cmd/charmkit/cli"
	"github.com/charmkit-project/charmkit/lib/wire"
)

// PortCommand returns the "port" command group for the unit firewall.
func PortCommand() *cli.Command {
	conn := &connection{}
	flags := func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet("port", pflag.ContinueOnError)
		conn.addFlags(flagSet)
		return flagSet
	}

	open := &cli.Command{
		Name:    "open",
		Summary: "Open a firewall port",
		Usage:   "charmkit port open <port/protocol>",
		Examples: []cli.Example{
			{Description: "Open HTTP", Command: "charmkit port open 80/tcp"},
		},
		Flags: flags,
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one port argument")
			}
			return conn.call(&wire.Request{Method: wire.MethodPortOpen, Port: args[0]}, nil)
		},
	}

	closePort := &cli.Command{
		Name:    "close",
		Summary: "Close a firewall port",
		Usage:   "charmkit port close <port/protocol>",
		Flags:   flags,
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one port argument")
			}
			return conn.call(&wire.Request{Method: wire.MethodPortClose, Port: args[0]}, nil)
		},
	}

	closeAll := &cli.Command{
		Name:    "close-all",
		Summary: "Close every opened firewall port",
		Usage:   "charmkit port close-all",
		Flags:   flags,
		Run: func(args []string) error {
			return conn.call(&wire.Request{Method: wire.MethodPortCloseAll}, nil)
		},
	}

	list := &cli.Command{
		Name:    "list",
		Summary: "Print the opened firewall ports",
		Usage:   "charmkit port list",
		Flags:   flags,
		Run: func(args []string) error {
			var result wire.StringsResult
			if err := conn.call(&wire.Request{Method: wire.MethodPortGetOpened}, &result); err != nil {
				return err
			}
			for _, port := range result.Values {
				fmt.Println(port)
			}
			return nil
		},
	}

	return &cli.Command{
		Name:        "port",
		Summary:     "Manage the unit's firewall ports",
		Subcommands: []*cli.Command{open, closePort, closeAll, list},
	}
}

// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/charmkit-project/charmkit/cmd/charmkit/cli"
	"github.com/charmkit-project/charmkit/lib/codec"
)

// DebugCommand returns the "debug" command group.
func DebugCommand() *cli.Command {
	decode := &cli.Command{
		Name:    "decode",
		Summary: "Print CBOR from stdin or a file in diagnostic notation",
		Usage:   "charmkit debug decode [file]",
		Description: `Decodes the daemon's wire format for inspection. Reads raw CBOR
from stdin, or from the file argument when given, and prints it in
CBOR diagnostic notation.`,
		Run: func(args []string) error {
			var data []byte
			var err error
			switch len(args) {
			case 0:
				data, err = io.ReadAll(os.Stdin)
			case 1:
				data, err = os.ReadFile(args[0])
			default:
				return fmt.Errorf("expected at most one file argument")
			}
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			diagnostic, err := codec.Diagnose(data)
			if err != nil {
				return fmt.Errorf("decoding: %w", err)
			}
			fmt.Println(diagnostic)
			return nil
		},
	}

	return &cli.Command{
		Name:        "debug",
		Summary:     "Inspect the daemon's wire format",
		Subcommands: []*cli.Command{decode},
	}
}

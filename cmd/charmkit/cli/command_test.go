// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestExecuteDispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "charmkit",
		Subcommands: []*Command{
			{
				Name: "kv",
				Run: func(args []string) error {
					called = "kv"
					return nil
				},
			},
			{
				Name: "port",
				Run: func(args []string) error {
					called = "port"
					return nil
				},
			},
		},
	}

	if err := root.Execute([]string{"port"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called != "port" {
		t.Errorf("dispatched to %q, want port", called)
	}
}

func TestExecuteNestedSubcommands(t *testing.T) {
	var receivedArgs []string

	root := &Command{
		Name: "charmkit",
		Subcommands: []*Command{
			{
				Name: "kv",
				Subcommands: []*Command{
					{
						Name: "get",
						Run: func(args []string) error {
							receivedArgs = args
							return nil
						},
					},
				},
			},
		},
	}

	if err := root.Execute([]string{"kv", "get", "db-host"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "db-host" {
		t.Errorf("args = %v, want [db-host]", receivedArgs)
	}
}

func TestExecuteFlagParsing(t *testing.T) {
	var socketPath string
	var positional []string

	command := &Command{
		Name: "get",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("get", pflag.ContinueOnError)
			flagSet.StringVar(&socketPath, "socket", "", "daemon socket path")
			return flagSet
		},
		Run: func(args []string) error {
			positional = args
			return nil
		},
	}

	if err := command.Execute([]string{"--socket", "/run/unit.sock", "db-host"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if socketPath != "/run/unit.sock" {
		t.Errorf("socketPath = %q", socketPath)
	}
	if len(positional) != 1 || positional[0] != "db-host" {
		t.Errorf("positional = %v", positional)
	}
}

func TestExecuteUnknownCommandSuggestion(t *testing.T) {
	root := &Command{
		Name: "charmkit",
		Subcommands: []*Command{
			{Name: "container", Run: func(args []string) error { return nil }},
			{Name: "relation", Run: func(args []string) error { return nil }},
		},
	}

	err := root.Execute([]string{"contaner"})
	if err == nil {
		t.Fatal("unknown command succeeded")
	}
	if !strings.Contains(err.Error(), `did you mean "container"`) {
		t.Errorf("error = %v, want container suggestion", err)
	}
}

func TestExecuteUnknownFlagSuggestion(t *testing.T) {
	command := &Command{
		Name: "volume-remove",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("volume-remove", pflag.ContinueOnError)
			flagSet.Bool("delete-data", false, "delete the volume data")
			return flagSet
		},
		Run: func(args []string) error { return nil },
	}

	err := command.Execute([]string{"--delete-dta"})
	if err == nil {
		t.Fatal("unknown flag succeeded")
	}
	if !strings.Contains(err.Error(), "--delete-data") {
		t.Errorf("error = %v, want --delete-data suggestion", err)
	}
}

func TestExecuteSubcommandRequired(t *testing.T) {
	root := &Command{
		Name: "kv",
		Subcommands: []*Command{
			{Name: "get", Run: func(args []string) error { return nil }},
		},
	}

	if err := root.Execute(nil); err == nil {
		t.Fatal("group without a subcommand succeeded")
	}
}

func TestPrintHelpListsSubcommands(t *testing.T) {
	root := &Command{
		Name:    "charmkit",
		Summary: "charm unit daemon client",
		Subcommands: []*Command{
			{Name: "kv", Summary: "Read and write the unit's key/value store"},
			{Name: "container", Summary: "Stage and apply container configuration"},
		},
	}

	var buffer bytes.Buffer
	root.PrintHelp(&buffer)
	help := buffer.String()

	for _, want := range []string{"kv", "container", "Commands:"} {
		if !strings.Contains(help, want) {
			t.Errorf("help output missing %q:\n%s", want, help)
		}
	}
}

func TestExitError(t *testing.T) {
	err := &ExitError{Code: 1}
	if err.ExitCode() != 1 {
		t.Errorf("ExitCode() = %d", err.ExitCode())
	}
}

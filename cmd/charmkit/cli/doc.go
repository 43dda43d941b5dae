// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command-tree framework for the charmkit CLI:
// nested subcommand dispatch, pflag parsing, structured help output,
// and typo suggestions for unknown commands and flags.
package cli

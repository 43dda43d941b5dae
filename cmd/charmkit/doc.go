// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

// charmkit is the command-line client for the charm unit daemon. Hook
// scripts and operators use it to read and write unit state, stage
// container configuration, and reach the cluster controller through
// the daemon's pass-through commands.
package main

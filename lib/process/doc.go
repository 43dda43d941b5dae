// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for the charmkit
// binaries. It centralizes the raw stderr reporting that happens before
// the structured logger is initialized, or after main() decides to exit.
package process

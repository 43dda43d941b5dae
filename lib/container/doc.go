// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

// Package container implements the declarative container layer: the
// per-container desired-state spec, the durable record tracking what
// was staged versus what is live, and the reconciler that drives an
// external container runtime toward the staged configuration.
//
// Mutating calls (image, env, volumes, ports, entrypoint, command,
// network) only edit the staged spec. Apply is the single operation
// that touches the runtime: it diffs every staged spec against the
// last applied one and recreates containers whose configuration
// changed. A failure applying one container never rolls back or
// blocks the others.
//
// Operations on the same container name are serialized; operations on
// different names run in parallel.
package container

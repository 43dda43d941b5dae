// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package container

import "context"

// Runtime is the narrow surface the reconciler needs from a container
// runtime. Implementations must be safe for concurrent use; the
// reconciler may drive different containers in parallel.
type Runtime interface {
	// Ping verifies the runtime is reachable.
	Ping(ctx context.Context) error

	// Pull fetches an image from its registry.
	Pull(ctx context.Context, image string) error

	// Create creates a stopped container and returns its runtime id.
	// Relative volume sources have already been resolved to absolute
	// host paths by the reconciler.
	Create(ctx context.Context, runtimeName string, spec *Spec) (string, error)

	// Start starts a created container.
	Start(ctx context.Context, id string) error

	// Stop stops a running container. Stopping a container that is
	// not running is not an error.
	Stop(ctx context.Context, id string) error

	// Remove deletes a stopped container. Removing a container that
	// no longer exists is not an error.
	Remove(ctx context.Context, id string) error
}

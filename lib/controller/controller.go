// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

// Package controller is the daemon's narrow interface to the outer
// cluster controller. Every operation is a pass-through to one of the
// controller's hook tools (relation-get, is-leader, status-set, and
// so on); the daemon never caches what the controller owns.
//
// Hook tools read their invocation context from JUJU_* environment
// variables, so each Controller instance is bound to the environment
// of the client call that triggered it.
package controller

import "context"

// Controller is the pass-through surface to the cluster controller.
// Implementations must be safe for concurrent use.
type Controller interface {
	// PrivateAddress returns the unit's private network address.
	PrivateAddress(ctx context.Context) (string, error)

	// PublicAddress returns the unit's public network address.
	PublicAddress(ctx context.Context) (string, error)

	// Config returns the charm's current configuration values.
	Config(ctx context.Context) (map[string]any, error)

	// Resource returns the local filesystem path of a named resource.
	Resource(ctx context.Context, name string) (string, error)

	// OpenPort requests the firewall open a port. Port is of the form
	// "80/tcp".
	OpenPort(ctx context.Context, port string) error

	// ClosePort requests the firewall close a previously opened port.
	ClosePort(ctx context.Context, port string) error

	// OpenedPorts returns the ports currently opened for the unit.
	OpenedPorts(ctx context.Context) ([]string, error)

	// RelationSet writes values onto a relation. App selects the
	// application databag instead of the unit databag.
	RelationSet(ctx context.Context, relationID string, values map[string]string, app bool) error

	// RelationGet reads a remote unit's databag on a relation. An
	// empty remoteUnit reads the databag of the unit that triggered
	// the current hook.
	RelationGet(ctx context.Context, relationID, remoteUnit string, app bool) (map[string]string, error)

	// RelationList returns the remote units on a relation.
	RelationList(ctx context.Context, relationID string) ([]string, error)

	// RelationIDs returns the ids of every relation with the given
	// endpoint name.
	RelationIDs(ctx context.Context, name string) ([]string, error)

	// IsLeader reports whether this unit currently holds leadership.
	// Never cached: leadership can change between calls.
	IsLeader(ctx context.Context) (bool, error)

	// LeaderSet writes application leader settings. Fails unless this
	// unit is the leader.
	LeaderSet(ctx context.Context, values map[string]string) error

	// LeaderGet reads the application leader settings.
	LeaderGet(ctx context.Context) (map[string]string, error)

	// SetStatus reports the unit's workload status to the controller.
	SetStatus(ctx context.Context, state, message string) error
}

// Factory builds a Controller bound to the environment of one client
// invocation. The env map carries the JUJU_* variables the client
// process was started with.
type Factory func(env map[string]string) Controller

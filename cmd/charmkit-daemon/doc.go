// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

// charmkit-daemon is the per-unit charm daemon. It owns the unit's
// durable state database, drives the unit's containers toward their
// staged specs, executes hook scripts and scheduled jobs, and serves
// the CBOR socket protocol that hook scripts and the charmkit CLI
// speak. Controller-owned data (relations, leadership, config,
// addresses) is passed through to the cluster controller's hook tools
// rather than cached.
package main

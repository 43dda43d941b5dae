// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the CBOR-encoded message types for the daemon's
// Unix socket protocol. Both cmd/charmkit-daemon and the charmkit CLI
// import this package so the wire types are defined once rather than
// mirrored.
//
// A client connects, writes one Request, and reads replies until it
// sees a terminal one: zero or more stream frames (More set, carrying
// a Data payload such as a hook output line), then exactly one
// terminal Response (OK, Error, RequiresMore, Data). The connection
// then closes; there are no long-lived sessions.
//
// Methods that only make sense streamed (unit-kv-get-all and
// container-env-get-all, whose result size is unbounded) reject
// non-streaming invocations with RequiresMore set on the terminal
// response, so a caller can never mistake truncated output for a
// complete result.
package wire

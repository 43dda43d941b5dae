// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

// Package unitstate implements the daemon's durable state store: the
// unit key-value data, per-script statuses, desired container spec
// records, and the scheduler's last-run cursors. It is the only
// component that touches disk; everything else holds transient views.
//
// Storage is a single SQLite database per unit, opened through
// lib/sqlitepool. Batch KV writes run inside one IMMEDIATE
// transaction, so concurrent readers observe either the pre-batch or
// post-batch state and a crash mid-batch rolls back to the pre-write
// state on the next open.
//
// KV entries preserve insertion order: each key is assigned a
// monotonic sequence number on first insert, kept across overwrites,
// and reassigned only when the key is erased and inserted again.
package unitstate

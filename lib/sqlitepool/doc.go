// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the charmkit-standard SQLite connection
// pool.
//
// The unit state store is the only durable storage in the daemon, and
// it runs on this package. It wraps zombiezen.com/go/sqlite with
// production defaults: WAL journal mode, NORMAL synchronous for
// process-crash durability without fsync-per-commit overhead,
// memory-mapped I/O for read performance, and a busy timeout to handle
// write contention gracefully.
//
// The pool is built on zombiezen's sqlitex.Pool, which manages a
// fixed-size set of connections. Callers [Pool.Take] a connection,
// perform work, and [Pool.Put] it back. Connections are NOT safe for
// concurrent use; each goroutine must hold its own connection for the
// duration of its work.
//
// # Pragmas
//
// Every connection in the pool is initialized with these pragmas:
//
//   - journal_mode=WAL: write-ahead logging for concurrent readers and
//     a single writer. Reads never block writes; writes never block
//     reads. An interrupted batch write rolls back to the pre-write
//     state on the next open, which is exactly the recovery behavior
//     the state store promises.
//   - synchronous=NORMAL: transactions survive process crashes. Not
//     durable across OS crashes or power failure; the cluster
//     controller re-delivers hooks and the store's records are
//     reconstructible from a replayed hook sequence.
//   - busy_timeout=5000: wait up to 5 seconds for a write lock instead
//     of returning SQLITE_BUSY immediately.
//   - foreign_keys=OFF: the state store manages referential integrity
//     explicitly. FK cascades across kv and spec tables are a footgun.
//   - cache_size=-8192: 8 MB page cache per connection.
//   - mmap_size=268435456: 256 MB memory-mapped I/O for reads. On Linux
//     this avoids read(2) syscall overhead by letting the OS page cache
//     serve reads directly.
//   - temp_store=MEMORY: temporary tables and indexes in memory.
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:     "/var/lib/charmkit/wordpress-0/state.db",
//	    PoolSize: 4,
//	    Logger:   logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
//
// # Design
//
// This package is intentionally thin: it applies standard pragmas and
// exposes the underlying zombiezen types directly. There is no attempt
// to abstract away SQLite's connection model or invent a query
// builder. The state store writes SQL, uses sqlitex.Execute for cached
// statements, and manages transactions with
// sqlitex.ImmediateTransaction.
package sqlitepool

// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package unitstate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/charmkit-project/charmkit/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    scope TEXT NOT NULL,
    key   TEXT NOT NULL,
    value TEXT NOT NULL,
    seq   INTEGER NOT NULL,
    PRIMARY KEY (scope, key)
);

CREATE INDEX IF NOT EXISTS kv_by_seq ON kv (scope, seq);

CREATE TABLE IF NOT EXISTS script_status (
    script_id TEXT PRIMARY KEY,
    state     TEXT NOT NULL,
    message   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS container_record (
    name   TEXT PRIMARY KEY,
    record BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS cron_run (
    job_id       TEXT PRIMARY KEY,
    last_run_ns  INTEGER NOT NULL
);
`

// Config holds the parameters for opening a state store.
type Config struct {
	// Path is the filesystem path to the unit's state database.
	Path string

	// PoolSize overrides the connection pool size. Zero uses the
	// pool's default.
	PoolSize int

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Store is the unit's durable state store. Safe for concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// Open opens (creating if necessary) the unit state database and
// ensures the schema exists. The caller must call Close when done.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening unit state store: %w", err)
	}

	return &Store{pool: pool, logger: logger}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Scope partitions the key-value data. Unit-scoped data is private to
// this unit; leader-scoped data is the local cache of the
// application's leader settings.
type Scope string

const (
	ScopeUnit   Scope = "unit"
	ScopeLeader Scope = "leader"
)

// Pair is one key-value entry, returned in insertion order.
type Pair struct {
	Key   string
	Value string
}

// KVGet returns the value stored under key in the given scope. The
// second return is false when the key is absent. An empty string is a
// legal stored value, distinct from absence.
func (s *Store) KVGet(ctx context.Context, scope Scope, key string) (string, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return "", false, err
	}
	defer s.pool.Put(conn)

	var value string
	var found bool
	err = sqlitex.Execute(conn, "SELECT value FROM kv WHERE scope = ? AND key = ?", &sqlitex.ExecOptions{
		Args: []any{string(scope), key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value = stmt.ColumnText(0)
			found = true
			return nil
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("reading key %q: %w", key, err)
	}
	return value, found, nil
}

// KVAll returns every stored entry in a scope in insertion order: the
// order keys were first written, unaffected by later overwrites.
func (s *Store) KVAll(ctx context.Context, scope Scope) ([]Pair, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var pairs []Pair
	err = sqlitex.Execute(conn, "SELECT key, value FROM kv WHERE scope = ? ORDER BY seq", &sqlitex.ExecOptions{
		Args: []any{string(scope)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			pairs = append(pairs, Pair{
				Key:   stmt.ColumnText(0),
				Value: stmt.ColumnText(1),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reading all keys: %w", err)
	}
	return pairs, nil
}

// KVSet applies a batch of writes atomically. A nil value erases the
// key; a non-nil value (including the empty string) stores it.
// Overwriting an existing key keeps its position in the insertion
// order; erasing and re-inserting moves it to the end. Concurrent
// readers observe either all of the batch or none of it.
func (s *Store) KVSet(ctx context.Context, scope Scope, values map[string]*string) (err error) {
	if len(values) == 0 {
		return nil
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("beginning kv transaction: %w", err)
	}
	defer endTransaction(&err)

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := values[key]
		if value == nil {
			err = sqlitex.Execute(conn, "DELETE FROM kv WHERE scope = ? AND key = ?", &sqlitex.ExecOptions{
				Args: []any{string(scope), key},
			})
			if err != nil {
				return fmt.Errorf("erasing key %q: %w", key, err)
			}
			continue
		}
		if err = s.upsertKV(conn, scope, key, *value); err != nil {
			return err
		}
	}
	return nil
}

// upsertKV writes one key inside an open transaction, assigning a
// fresh sequence number only when the key is not already present.
func (s *Store) upsertKV(conn *sqlite.Conn, scope Scope, key, value string) error {
	var exists bool
	err := sqlitex.Execute(conn, "SELECT 1 FROM kv WHERE scope = ? AND key = ?", &sqlitex.ExecOptions{
		Args: []any{string(scope), key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			exists = true
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("checking key %q: %w", key, err)
	}

	if exists {
		err = sqlitex.Execute(conn, "UPDATE kv SET value = ? WHERE scope = ? AND key = ?", &sqlitex.ExecOptions{
			Args: []any{value, string(scope), key},
		})
		if err != nil {
			return fmt.Errorf("updating key %q: %w", key, err)
		}
		return nil
	}

	err = sqlitex.Execute(conn,
		"INSERT INTO kv (scope, key, value, seq) VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM kv WHERE scope = ?))",
		&sqlitex.ExecOptions{Args: []any{string(scope), key, value, string(scope)}})
	if err != nil {
		return fmt.Errorf("inserting key %q: %w", key, err)
	}
	return nil
}

// SetScriptStatus records the status of one script, overwriting any
// previous status for the same script id.
func (s *Store) SetScriptStatus(ctx context.Context, scriptID string, status Status) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO script_status (script_id, state, message) VALUES (?, ?, ?)
		ON CONFLICT (script_id) DO UPDATE SET state = excluded.state, message = excluded.message`,
		&sqlitex.ExecOptions{Args: []any{scriptID, string(status.State), status.Message}})
	if err != nil {
		return fmt.Errorf("setting status for script %q: %w", scriptID, err)
	}
	return nil
}

// ScriptStatuses returns every recorded script status keyed by script
// id.
func (s *Store) ScriptStatuses(ctx context.Context) (map[string]Status, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	statuses := make(map[string]Status)
	err = sqlitex.Execute(conn, "SELECT script_id, state, message FROM script_status", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			statuses[stmt.ColumnText(0)] = Status{
				State:   State(stmt.ColumnText(1)),
				Message: stmt.ColumnText(2),
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reading script statuses: %w", err)
	}
	return statuses, nil
}

// PutContainerRecord stores the serialized reconciler record for a
// container, overwriting any previous record with the same name.
func (s *Store) PutContainerRecord(ctx context.Context, name string, record []byte) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO container_record (name, record) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET record = excluded.record`,
		&sqlitex.ExecOptions{Args: []any{name, record}})
	if err != nil {
		return fmt.Errorf("storing container record %q: %w", name, err)
	}
	return nil
}

// ContainerRecord returns the serialized record for one container.
// The second return is false when no record exists.
func (s *Store) ContainerRecord(ctx context.Context, name string) ([]byte, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, false, err
	}
	defer s.pool.Put(conn)

	var record []byte
	var found bool
	err = sqlitex.Execute(conn, "SELECT record FROM container_record WHERE name = ?", &sqlitex.ExecOptions{
		Args: []any{name},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			record = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, record)
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("reading container record %q: %w", name, err)
	}
	return record, found, nil
}

// ContainerRecords returns every stored container record keyed by
// container name.
func (s *Store) ContainerRecords(ctx context.Context) (map[string][]byte, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	records := make(map[string][]byte)
	err = sqlitex.Execute(conn, "SELECT name, record FROM container_record", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			record := make([]byte, stmt.ColumnLen(1))
			stmt.ColumnBytes(1, record)
			records[stmt.ColumnText(0)] = record
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reading container records: %w", err)
	}
	return records, nil
}

// DeleteContainerRecord removes a container's record. Deleting a
// record that does not exist is not an error.
func (s *Store) DeleteContainerRecord(ctx context.Context, name string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "DELETE FROM container_record WHERE name = ?", &sqlitex.ExecOptions{
		Args: []any{name},
	})
	if err != nil {
		return fmt.Errorf("deleting container record %q: %w", name, err)
	}
	return nil
}

// LastRun returns the scheduler cursor for one job. The second return
// is false when the job has never been recorded.
func (s *Store) LastRun(ctx context.Context, jobID string) (time.Time, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	defer s.pool.Put(conn)

	var lastRun time.Time
	var found bool
	err = sqlitex.Execute(conn, "SELECT last_run_ns FROM cron_run WHERE job_id = ?", &sqlitex.ExecOptions{
		Args: []any{jobID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			lastRun = time.Unix(0, stmt.ColumnInt64(0)).UTC()
			found = true
			return nil
		},
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("reading cursor for job %q: %w", jobID, err)
	}
	return lastRun, found, nil
}

// SetLastRun records the scheduler cursor for one job.
func (s *Store) SetLastRun(ctx context.Context, jobID string, at time.Time) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO cron_run (job_id, last_run_ns) VALUES (?, ?)
		ON CONFLICT (job_id) DO UPDATE SET last_run_ns = excluded.last_run_ns`,
		&sqlitex.ExecOptions{Args: []any{jobID, at.UnixNano()}})
	if err != nil {
		return fmt.Errorf("recording cursor for job %q: %w", jobID, err)
	}
	return nil
}

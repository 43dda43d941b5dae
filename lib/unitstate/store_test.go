// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package unitstate_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmkit-project/charmkit/lib/unitstate"
)

func openTestStore(t *testing.T) *unitstate.Store {
	t.Helper()
	store, err := unitstate.Open(unitstate.Config{
		Path: filepath.Join(t.TempDir(), "state.db"),
	})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("closing store: %v", err)
		}
	})
	return store
}

func stringPtr(s string) *string { return &s }

func TestKVReadYourWrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.KVSet(ctx, unitstate.ScopeUnit, map[string]*string{"color": stringPtr("blue")})
	if err != nil {
		t.Fatalf("KVSet: %v", err)
	}

	value, found, err := store.KVGet(ctx, unitstate.ScopeUnit, "color")
	if err != nil {
		t.Fatalf("KVGet: %v", err)
	}
	if !found {
		t.Fatal("expected key to be present")
	}
	if value != "blue" {
		t.Errorf("value = %q, want %q", value, "blue")
	}
}

func TestKVGetAbsent(t *testing.T) {
	store := openTestStore(t)

	_, found, err := store.KVGet(context.Background(), unitstate.ScopeUnit, "missing")
	if err != nil {
		t.Fatalf("KVGet: %v", err)
	}
	if found {
		t.Error("expected absent key")
	}
}

func TestKVEmptyStringIsPresent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.KVSet(ctx, unitstate.ScopeUnit, map[string]*string{"note": stringPtr("")}); err != nil {
		t.Fatalf("KVSet: %v", err)
	}

	value, found, err := store.KVGet(ctx, unitstate.ScopeUnit, "note")
	if err != nil {
		t.Fatalf("KVGet: %v", err)
	}
	if !found {
		t.Fatal("empty string value should still be present")
	}
	if value != "" {
		t.Errorf("value = %q, want empty string", value)
	}
}

func TestKVNilValueErases(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.KVSet(ctx, unitstate.ScopeUnit, map[string]*string{"b": stringPtr("x")}); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	// One batch that writes a and erases b.
	err := store.KVSet(ctx, unitstate.ScopeUnit, map[string]*string{
		"a": stringPtr("1"),
		"b": nil,
	})
	if err != nil {
		t.Fatalf("KVSet: %v", err)
	}

	pairs, err := store.KVAll(ctx, unitstate.ScopeUnit)
	if err != nil {
		t.Fatalf("KVAll: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("got %d entries, want 1: %v", len(pairs), pairs)
	}
	if pairs[0].Key != "a" || pairs[0].Value != "1" {
		t.Errorf("entry = %+v, want a=1", pairs[0])
	}
}

func TestKVEraseMissingKey(t *testing.T) {
	store := openTestStore(t)

	err := store.KVSet(context.Background(), unitstate.ScopeUnit, map[string]*string{"never": nil})
	if err != nil {
		t.Fatalf("erasing a missing key should succeed: %v", err)
	}
}

func TestKVAllInsertionOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	inserts := []string{"zebra", "apple", "mango"}
	for _, key := range inserts {
		if err := store.KVSet(ctx, unitstate.ScopeUnit, map[string]*string{key: stringPtr("v")}); err != nil {
			t.Fatalf("inserting %q: %v", key, err)
		}
	}

	pairs, err := store.KVAll(ctx, unitstate.ScopeUnit)
	if err != nil {
		t.Fatalf("KVAll: %v", err)
	}
	if len(pairs) != len(inserts) {
		t.Fatalf("got %d entries, want %d", len(pairs), len(inserts))
	}
	for i, key := range inserts {
		if pairs[i].Key != key {
			t.Errorf("position %d: got %q, want %q", i, pairs[i].Key, key)
		}
	}
}

func TestKVOverwriteKeepsPosition(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"first", "second", "third"} {
		if err := store.KVSet(ctx, unitstate.ScopeUnit, map[string]*string{key: stringPtr("old")}); err != nil {
			t.Fatalf("inserting %q: %v", key, err)
		}
	}

	if err := store.KVSet(ctx, unitstate.ScopeUnit, map[string]*string{"first": stringPtr("new")}); err != nil {
		t.Fatalf("overwriting: %v", err)
	}

	pairs, err := store.KVAll(ctx, unitstate.ScopeUnit)
	if err != nil {
		t.Fatalf("KVAll: %v", err)
	}
	if pairs[0].Key != "first" || pairs[0].Value != "new" {
		t.Errorf("first entry = %+v, want first=new", pairs[0])
	}
}

func TestKVEraseThenReinsertMovesToEnd(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"first", "second"} {
		if err := store.KVSet(ctx, unitstate.ScopeUnit, map[string]*string{key: stringPtr("v")}); err != nil {
			t.Fatalf("inserting %q: %v", key, err)
		}
	}

	if err := store.KVSet(ctx, unitstate.ScopeUnit, map[string]*string{"first": nil}); err != nil {
		t.Fatalf("erasing: %v", err)
	}
	if err := store.KVSet(ctx, unitstate.ScopeUnit, map[string]*string{"first": stringPtr("back")}); err != nil {
		t.Fatalf("reinserting: %v", err)
	}

	pairs, err := store.KVAll(ctx, unitstate.ScopeUnit)
	if err != nil {
		t.Fatalf("KVAll: %v", err)
	}
	want := []string{"second", "first"}
	for i, key := range want {
		if pairs[i].Key != key {
			t.Errorf("position %d: got %q, want %q", i, pairs[i].Key, key)
		}
	}
}

func TestKVPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := unitstate.Open(unitstate.Config{Path: path})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	if err := store.KVSet(ctx, unitstate.ScopeUnit, map[string]*string{"durable": stringPtr("yes")}); err != nil {
		t.Fatalf("KVSet: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("closing store: %v", err)
	}

	reopened, err := unitstate.Open(unitstate.Config{Path: path})
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer reopened.Close()

	value, found, err := reopened.KVGet(ctx, unitstate.ScopeUnit, "durable")
	if err != nil {
		t.Fatalf("KVGet: %v", err)
	}
	if !found || value != "yes" {
		t.Errorf("got (%q, %v), want (yes, true)", value, found)
	}
}

func TestKVScopesAreIsolated(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.KVSet(ctx, unitstate.ScopeUnit, map[string]*string{"shared": stringPtr("unit")}); err != nil {
		t.Fatalf("KVSet unit: %v", err)
	}
	if err := store.KVSet(ctx, unitstate.ScopeLeader, map[string]*string{"shared": stringPtr("leader")}); err != nil {
		t.Fatalf("KVSet leader: %v", err)
	}

	value, _, err := store.KVGet(ctx, unitstate.ScopeUnit, "shared")
	if err != nil {
		t.Fatalf("KVGet: %v", err)
	}
	if value != "unit" {
		t.Errorf("unit scope value = %q, want %q", value, "unit")
	}

	pairs, err := store.KVAll(ctx, unitstate.ScopeLeader)
	if err != nil {
		t.Fatalf("KVAll: %v", err)
	}
	if len(pairs) != 1 || pairs[0].Value != "leader" {
		t.Errorf("leader scope = %v, want single leader entry", pairs)
	}
}

func TestScriptStatusOverwrite(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.SetScriptStatus(ctx, "install_0", unitstate.Status{
		State:   unitstate.StateMaintenance,
		Message: "installing",
	})
	if err != nil {
		t.Fatalf("SetScriptStatus: %v", err)
	}
	err = store.SetScriptStatus(ctx, "install_0", unitstate.Status{
		State: unitstate.StateActive,
	})
	if err != nil {
		t.Fatalf("SetScriptStatus: %v", err)
	}

	statuses, err := store.ScriptStatuses(ctx)
	if err != nil {
		t.Fatalf("ScriptStatuses: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("got %d statuses, want 1", len(statuses))
	}
	status := statuses["install_0"]
	if status.State != unitstate.StateActive || status.Message != "" {
		t.Errorf("status = %+v, want active with no message", status)
	}
}

func TestContainerRecordRoundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	blob := []byte{0xa1, 0x63, 0x6b, 0x65, 0x79, 0x01}
	if err := store.PutContainerRecord(ctx, "web", blob); err != nil {
		t.Fatalf("PutContainerRecord: %v", err)
	}

	record, found, err := store.ContainerRecord(ctx, "web")
	if err != nil {
		t.Fatalf("ContainerRecord: %v", err)
	}
	if !found {
		t.Fatal("expected record to be present")
	}
	if string(record) != string(blob) {
		t.Errorf("record = %x, want %x", record, blob)
	}

	records, err := store.ContainerRecords(ctx)
	if err != nil {
		t.Fatalf("ContainerRecords: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want 1", len(records))
	}

	if err := store.DeleteContainerRecord(ctx, "web"); err != nil {
		t.Fatalf("DeleteContainerRecord: %v", err)
	}
	_, found, err = store.ContainerRecord(ctx, "web")
	if err != nil {
		t.Fatalf("ContainerRecord after delete: %v", err)
	}
	if found {
		t.Error("record should be gone after delete")
	}

	// Deleting again is a no-op.
	if err := store.DeleteContainerRecord(ctx, "web"); err != nil {
		t.Errorf("deleting a missing record should succeed: %v", err)
	}
}

func TestCronCursor(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, found, err := store.LastRun(ctx, "backup")
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if found {
		t.Fatal("unrecorded job should have no cursor")
	}

	at := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	if err := store.SetLastRun(ctx, "backup", at); err != nil {
		t.Fatalf("SetLastRun: %v", err)
	}

	lastRun, found, err := store.LastRun(ctx, "backup")
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if !found {
		t.Fatal("expected cursor to be present")
	}
	if !lastRun.Equal(at) {
		t.Errorf("lastRun = %v, want %v", lastRun, at)
	}
}

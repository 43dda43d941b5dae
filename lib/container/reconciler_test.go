// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package container_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmkit-project/charmkit/lib/container"
	"github.com/charmkit-project/charmkit/lib/unitstate"
	"github.com/charmkit-project/charmkit/lib/wire"
)

// The reconciler persists through the unit state store.
var _ container.SpecStore = (*unitstate.Store)(nil)

type fixture struct {
	rec        *container.Reconciler
	runtime    *container.FakeRuntime
	store      *unitstate.Store
	volumesDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := unitstate.Open(unitstate.Config{Path: filepath.Join(dir, "state.db")})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	runtime := &container.FakeRuntime{}
	volumesDir := filepath.Join(dir, "volumes")
	rec := container.NewReconciler(container.ReconcilerConfig{
		Store:      store,
		Runtime:    runtime,
		UnitName:   "wordpress/0",
		VolumesDir: volumesDir,
	})
	return &fixture{rec: rec, runtime: runtime, store: store, volumesDir: volumesDir}
}

func name(t *testing.T, raw string) container.Name {
	t.Helper()
	n, err := container.For(raw)
	if err != nil {
		t.Fatalf("For(%q): %v", raw, err)
	}
	return n
}

func TestApplyCreatesAndStarts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.rec.SetImage(ctx, container.DefaultName, "nginx:1.27", false); err != nil {
		t.Fatalf("SetImage: %v", err)
	}
	one := "production"
	if err := f.rec.SetEnv(ctx, container.DefaultName, map[string]*string{"APP_ENV": &one}); err != nil {
		t.Fatalf("SetEnv: %v", err)
	}

	if err := f.rec.Apply(ctx); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if f.runtime.RunningCount() != 1 {
		t.Fatalf("running = %d, want 1", f.runtime.RunningCount())
	}
	spec, ok := f.runtime.SpecFor("charmkit-wordpress-0")
	if !ok {
		t.Fatal("default container not found in runtime")
	}
	if spec.Image != "nginx:1.27" || spec.Env["APP_ENV"] != "production" {
		t.Errorf("applied spec = %+v", spec)
	}
	if len(f.runtime.Pulled) != 1 || f.runtime.Pulled[0] != "nginx:1.27" {
		t.Errorf("pulled = %v", f.runtime.Pulled)
	}
}

func TestApplyTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.rec.SetImage(ctx, container.DefaultName, "nginx:1.27", false); err != nil {
		t.Fatalf("SetImage: %v", err)
	}
	if err := f.rec.Apply(ctx); err != nil {
		t.Fatalf("first Apply: %v", err)
	}

	calls := f.runtime.CallCount()
	if err := f.rec.Apply(ctx); err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if f.runtime.CallCount() != calls {
		t.Errorf("second apply issued %d runtime calls, want 0", f.runtime.CallCount()-calls)
	}
}

func TestApplyRecreatesOnChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.rec.SetImage(ctx, container.DefaultName, "nginx:1.27", false); err != nil {
		t.Fatalf("SetImage: %v", err)
	}
	if err := f.rec.Apply(ctx); err != nil {
		t.Fatalf("first Apply: %v", err)
	}

	if err := f.rec.SetImage(ctx, container.DefaultName, "nginx:1.28", false); err != nil {
		t.Fatalf("SetImage: %v", err)
	}
	if err := f.rec.Apply(ctx); err != nil {
		t.Fatalf("second Apply: %v", err)
	}

	if f.runtime.RunningCount() != 1 {
		t.Fatalf("running = %d, want 1", f.runtime.RunningCount())
	}
	spec, _ := f.runtime.SpecFor("charmkit-wordpress-0")
	if spec.Image != "nginx:1.28" {
		t.Errorf("image = %q, want nginx:1.28", spec.Image)
	}
	// The old container was stopped and removed first.
	joined := strings.Join(f.runtime.Calls, ";")
	if !strings.Contains(joined, "stop ctr-1") || !strings.Contains(joined, "remove ctr-1") {
		t.Errorf("calls = %v", f.runtime.Calls)
	}
}

func TestApplyNoPullSkipsPull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.rec.SetImage(ctx, container.DefaultName, "local/image", true); err != nil {
		t.Fatalf("SetImage: %v", err)
	}
	if err := f.rec.Apply(ctx); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(f.runtime.Pulled) != 0 {
		t.Errorf("pulled = %v, want none", f.runtime.Pulled)
	}
}

func TestApplyWithoutImageFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.rec.SetNetwork(ctx, container.DefaultName, "web-net"); err != nil {
		t.Fatalf("SetNetwork: %v", err)
	}
	err := f.rec.Apply(ctx)
	if err == nil || !strings.Contains(err.Error(), "no image staged") {
		t.Errorf("err = %v, want no-image failure", err)
	}
}

func TestApplyPartialFailureIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	web := name(t, "web")
	db := name(t, "db")
	if err := f.rec.SetImage(ctx, web, "nginx", false); err != nil {
		t.Fatalf("SetImage web: %v", err)
	}
	if err := f.rec.SetImage(ctx, db, "postgres", false); err != nil {
		t.Fatalf("SetImage db: %v", err)
	}
	f.runtime.FailCreateFor = "charmkit-wordpress-0-db"

	err := f.rec.Apply(ctx)
	if err == nil {
		t.Fatal("expected apply error for db")
	}
	if !strings.Contains(err.Error(), "db") {
		t.Errorf("err = %v, should name the failing container", err)
	}

	// web applied despite db failing.
	if _, ok := f.runtime.SpecFor("charmkit-wordpress-0-web"); !ok {
		t.Error("web should be running")
	}

	// db stays staged and is retried on the next apply.
	f.runtime.FailCreateFor = ""
	if err := f.rec.Apply(ctx); err != nil {
		t.Fatalf("retry Apply: %v", err)
	}
	if _, ok := f.runtime.SpecFor("charmkit-wordpress-0-db"); !ok {
		t.Error("db should be running after retry")
	}
}

func TestDeleteRemovesLiveAndRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.rec.SetImage(ctx, container.DefaultName, "nginx", false); err != nil {
		t.Fatalf("SetImage: %v", err)
	}
	if err := f.rec.Apply(ctx); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if err := f.rec.Delete(ctx, container.DefaultName); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if f.runtime.RunningCount() != 0 {
		t.Error("container should be gone")
	}

	// The record is gone too: a fresh apply pass does nothing.
	calls := f.runtime.CallCount()
	if err := f.rec.Apply(ctx); err != nil {
		t.Fatalf("Apply after delete: %v", err)
	}
	if f.runtime.CallCount() != calls {
		t.Error("apply after delete should be a no-op")
	}
}

func TestStagedStateSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.rec.SetImage(ctx, container.DefaultName, "nginx", false); err != nil {
		t.Fatalf("SetImage: %v", err)
	}
	if err := f.rec.Apply(ctx); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// A new reconciler over the same store sees the applied state.
	restarted := container.NewReconciler(container.ReconcilerConfig{
		Store:      f.store,
		Runtime:    f.runtime,
		UnitName:   "wordpress/0",
		VolumesDir: f.volumesDir,
	})
	calls := f.runtime.CallCount()
	if err := restarted.Apply(ctx); err != nil {
		t.Fatalf("Apply after restart: %v", err)
	}
	if f.runtime.CallCount() != calls {
		t.Error("apply after restart with no changes should be a no-op")
	}
}

func TestVolumeDataDeletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	web := name(t, "web")
	db := name(t, "db")
	if err := f.rec.AddVolume(ctx, web, "shared", "/srv/shared"); err != nil {
		t.Fatalf("AddVolume web: %v", err)
	}
	if err := f.rec.AddVolume(ctx, db, "shared", "/var/shared"); err != nil {
		t.Fatalf("AddVolume db: %v", err)
	}

	dataDir := filepath.Join(f.volumesDir, "shared")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("creating data dir: %v", err)
	}

	// Still referenced by db: data stays.
	deleted, err := f.rec.RemoveVolume(ctx, web, "/srv/shared", true)
	if err != nil {
		t.Fatalf("RemoveVolume web: %v", err)
	}
	if deleted {
		t.Error("data should not be deleted while db references the source")
	}
	if _, err := os.Stat(dataDir); err != nil {
		t.Errorf("data dir should still exist: %v", err)
	}

	// Last reference removed: data goes.
	deleted, err = f.rec.RemoveVolume(ctx, db, "/var/shared", true)
	if err != nil {
		t.Fatalf("RemoveVolume db: %v", err)
	}
	if !deleted {
		t.Error("data should be deleted with the last reference")
	}
	if _, err := os.Stat(dataDir); !os.IsNotExist(err) {
		t.Errorf("data dir should be gone, stat err = %v", err)
	}
}

func TestVolumeRemoveAbsoluteSourceNeverDeletesData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	hostDir := t.TempDir()
	if err := f.rec.AddVolume(ctx, container.DefaultName, hostDir, "/srv/host"); err != nil {
		t.Fatalf("AddVolume: %v", err)
	}

	deleted, err := f.rec.RemoveVolume(ctx, container.DefaultName, "/srv/host", true)
	if err != nil {
		t.Fatalf("RemoveVolume: %v", err)
	}
	if deleted {
		t.Error("unmanaged host paths must never be deleted")
	}
	if _, err := os.Stat(hostDir); err != nil {
		t.Errorf("host dir should still exist: %v", err)
	}
}

func TestApplyMountsResolvedVolumes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.rec.SetImage(ctx, container.DefaultName, "nginx", false); err != nil {
		t.Fatalf("SetImage: %v", err)
	}
	if err := f.rec.AddVolume(ctx, container.DefaultName, "data", "/data"); err != nil {
		t.Fatalf("AddVolume: %v", err)
	}
	if err := f.rec.Apply(ctx); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	spec, _ := f.runtime.SpecFor("charmkit-wordpress-0")
	want := filepath.Join(f.volumesDir, "data")
	if len(spec.Volumes) != 1 || spec.Volumes[0].Source != want {
		t.Errorf("volumes = %v, want source %s", spec.Volumes, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("managed volume dir should be created: %v", err)
	}
}

func TestPortRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	binding := wire.PortBinding{HostPort: 8080, ContainerPort: 80, Protocol: "tcp"}
	if err := f.rec.AddPort(ctx, container.DefaultName, binding); err != nil {
		t.Fatalf("AddPort: %v", err)
	}
	if err := f.rec.AddPort(ctx, container.DefaultName, binding); err != nil {
		t.Fatalf("identical re-add: %v", err)
	}

	ports, err := f.rec.Ports(ctx, container.DefaultName)
	if err != nil {
		t.Fatalf("Ports: %v", err)
	}
	if len(ports) != 1 {
		t.Fatalf("ports = %v, want exactly one binding", ports)
	}

	err = f.rec.AddPort(ctx, container.DefaultName, wire.PortBinding{HostPort: 8080, ContainerPort: 81, Protocol: "tcp"})
	if err == nil {
		t.Error("conflicting binding should fail")
	}
	if err := f.rec.AddPort(ctx, container.DefaultName, wire.PortBinding{HostPort: 53, ContainerPort: 53, Protocol: "icmp"}); err == nil {
		t.Error("unknown protocol should fail")
	}
}

func TestEnvReadBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	value := "secret"
	if err := f.rec.SetEnv(ctx, container.DefaultName, map[string]*string{"TOKEN": &value}); err != nil {
		t.Fatalf("SetEnv: %v", err)
	}

	got, err := f.rec.Env(ctx, container.DefaultName, "TOKEN")
	if err != nil {
		t.Fatalf("Env: %v", err)
	}
	if got == nil || *got != "secret" {
		t.Errorf("TOKEN = %v, want secret", got)
	}

	missing, err := f.rec.Env(ctx, container.DefaultName, "ABSENT")
	if err != nil {
		t.Fatalf("Env: %v", err)
	}
	if missing != nil {
		t.Errorf("ABSENT = %v, want nil", missing)
	}

	pairs, err := f.rec.EnvAll(ctx, container.DefaultName)
	if err != nil {
		t.Fatalf("EnvAll: %v", err)
	}
	if len(pairs) != 1 || pairs[0].Key != "TOKEN" {
		t.Errorf("pairs = %v", pairs)
	}
}

// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"testing"

	"github.com/charmkit-project/charmkit/lib/wire"
)

func TestSetEnvNilErases(t *testing.T) {
	spec := &Spec{}
	value := "1"
	spec.SetEnv(map[string]*string{"A": &value, "B": &value})
	spec.SetEnv(map[string]*string{"B": nil})

	if _, ok := spec.Env["B"]; ok {
		t.Error("B should be erased")
	}
	if spec.Env["A"] != "1" {
		t.Errorf("A = %q, want 1", spec.Env["A"])
	}
}

func TestAddVolumeLastSourceWins(t *testing.T) {
	spec := &Spec{}
	spec.AddVolume("data", "/var/lib/app")
	spec.AddVolume("data-v2", "/var/lib/app")

	if len(spec.Volumes) != 1 {
		t.Fatalf("got %d volumes, want 1", len(spec.Volumes))
	}
	if spec.Volumes[0].Source != "data-v2" {
		t.Errorf("source = %q, want data-v2", spec.Volumes[0].Source)
	}
}

func TestRemoveVolume(t *testing.T) {
	spec := &Spec{}
	spec.AddVolume("data", "/var/lib/app")

	removed, ok := spec.RemoveVolume("/var/lib/app")
	if !ok {
		t.Fatal("expected mount to be removed")
	}
	if removed.Source != "data" {
		t.Errorf("removed source = %q", removed.Source)
	}
	if _, ok := spec.RemoveVolume("/var/lib/app"); ok {
		t.Error("second removal should report absent")
	}
}

func TestAddPortIdempotent(t *testing.T) {
	spec := &Spec{}
	binding := wire.PortBinding{HostPort: 8080, ContainerPort: 80, Protocol: "tcp"}

	if err := spec.AddPort(binding); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := spec.AddPort(binding); err != nil {
		t.Fatalf("identical re-add should be a no-op: %v", err)
	}
	if len(spec.Ports) != 1 {
		t.Fatalf("got %d bindings, want 1", len(spec.Ports))
	}
}

func TestAddPortConflicts(t *testing.T) {
	spec := &Spec{}
	if err := spec.AddPort(wire.PortBinding{HostPort: 8080, ContainerPort: 80, Protocol: "tcp"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Same host port, different container port.
	err := spec.AddPort(wire.PortBinding{HostPort: 8080, ContainerPort: 81, Protocol: "tcp"})
	if err == nil {
		t.Error("host port conflict should fail")
	}

	// Same container port, different host port.
	err = spec.AddPort(wire.PortBinding{HostPort: 8081, ContainerPort: 80, Protocol: "tcp"})
	if err == nil {
		t.Error("container port conflict should fail")
	}

	// Same ports, different protocol: no conflict.
	err = spec.AddPort(wire.PortBinding{HostPort: 8080, ContainerPort: 80, Protocol: "udp"})
	if err != nil {
		t.Errorf("udp binding should not conflict with tcp: %v", err)
	}
}

func TestRemovePort(t *testing.T) {
	spec := &Spec{}
	if err := spec.AddPort(wire.PortBinding{HostPort: 8080, ContainerPort: 80, Protocol: "tcp"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	spec.RemovePort(8080, "udp")
	if len(spec.Ports) != 1 {
		t.Error("protocol mismatch should not remove the binding")
	}
	spec.RemovePort(8080, "tcp")
	if len(spec.Ports) != 0 {
		t.Error("binding should be removed")
	}
}

func TestSpecEqualIgnoresOrder(t *testing.T) {
	a := &Spec{Image: "nginx"}
	a.AddVolume("data", "/data")
	a.AddVolume("logs", "/logs")

	b := &Spec{Image: "nginx"}
	b.AddVolume("logs", "/logs")
	b.AddVolume("data", "/data")

	if !a.Equal(b) {
		t.Error("specs differing only in volume order should be equal")
	}

	b.Image = "nginx:alpine"
	if a.Equal(b) {
		t.Error("different images should not be equal")
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := &Spec{Image: "nginx", Env: map[string]string{"A": "1"}}
	original.AddVolume("data", "/data")

	clone := original.Clone()
	clone.Env["A"] = "2"
	clone.Volumes[0].Source = "other"

	if original.Env["A"] != "1" {
		t.Error("clone shares env map")
	}
	if original.Volumes[0].Source != "data" {
		t.Error("clone shares volume slice")
	}
}

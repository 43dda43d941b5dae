// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/charmkit-project/charmkit/lib/wire"
)

// Spec is the desired configuration of one container. Mutations edit
// the staged copy only; nothing here talks to the runtime.
type Spec struct {
	// Image is the container image reference. Required before Apply.
	Image string `cbor:"image,omitempty"`

	// NoPull skips the registry pull on apply and uses the locally
	// cached image.
	NoPull bool `cbor:"no_pull,omitempty"`

	// Entrypoint overrides the image entrypoint when non-nil.
	Entrypoint []string `cbor:"entrypoint,omitempty"`

	// Command overrides the image command when non-nil.
	Command []string `cbor:"command,omitempty"`

	// Env is the container environment.
	Env map[string]string `cbor:"env,omitempty"`

	// Volumes are the bind mounts, unique per target path.
	Volumes []wire.VolumeMount `cbor:"volumes,omitempty"`

	// Ports are the published ports, unique per (host port, protocol)
	// and (container port, protocol).
	Ports []wire.PortBinding `cbor:"ports,omitempty"`

	// Network is the container network name, empty for the runtime
	// default.
	Network string `cbor:"network,omitempty"`
}

// Clone returns a deep copy.
func (s *Spec) Clone() *Spec {
	clone := &Spec{
		Image:      s.Image,
		NoPull:     s.NoPull,
		Network:    s.Network,
		Entrypoint: append([]string(nil), s.Entrypoint...),
		Command:    append([]string(nil), s.Command...),
		Volumes:    append([]wire.VolumeMount(nil), s.Volumes...),
		Ports:      append([]wire.PortBinding(nil), s.Ports...),
	}
	if s.Env != nil {
		clone.Env = make(map[string]string, len(s.Env))
		for key, value := range s.Env {
			clone.Env[key] = value
		}
	}
	return clone
}

// Equal reports whether two specs describe the same configuration.
func (s *Spec) Equal(other *Spec) bool {
	if s == nil || other == nil {
		return s == other
	}
	return reflect.DeepEqual(s.normalized(), other.normalized())
}

// normalized returns a copy with order-insensitive fields sorted, so
// Equal ignores insertion order of volumes and ports.
func (s *Spec) normalized() *Spec {
	clone := s.Clone()
	if len(clone.Env) == 0 {
		clone.Env = nil
	}
	sort.Slice(clone.Volumes, func(i, j int) bool {
		return clone.Volumes[i].Target < clone.Volumes[j].Target
	})
	sort.Slice(clone.Ports, func(i, j int) bool {
		a, b := clone.Ports[i], clone.Ports[j]
		if a.Protocol != b.Protocol {
			return a.Protocol < b.Protocol
		}
		return a.HostPort < b.HostPort
	})
	return clone
}

// SetEnv applies a batch of environment assignments. A nil value
// erases the variable.
func (s *Spec) SetEnv(values map[string]*string) {
	if s.Env == nil {
		s.Env = make(map[string]string, len(values))
	}
	for key, value := range values {
		if value == nil {
			delete(s.Env, key)
			continue
		}
		s.Env[key] = *value
	}
}

// AddVolume stages a bind mount. Adding a mount with an existing
// target replaces its source (last value wins, no duplicate targets).
func (s *Spec) AddVolume(source, target string) {
	for i, volume := range s.Volumes {
		if volume.Target == target {
			s.Volumes[i].Source = source
			return
		}
	}
	s.Volumes = append(s.Volumes, wire.VolumeMount{Source: source, Target: target})
}

// RemoveVolume unstages the mount at target. Returns the removed
// mount and whether one existed.
func (s *Spec) RemoveVolume(target string) (wire.VolumeMount, bool) {
	for i, volume := range s.Volumes {
		if volume.Target == target {
			removed := volume
			s.Volumes = append(s.Volumes[:i], s.Volumes[i+1:]...)
			return removed, true
		}
	}
	return wire.VolumeMount{}, false
}

// AddPort stages a published port. Re-adding an identical binding is
// a no-op; a binding that shares a host or container port and
// protocol with a different existing binding is a conflict.
func (s *Spec) AddPort(binding wire.PortBinding) error {
	for _, existing := range s.Ports {
		if existing == binding {
			return nil
		}
		if existing.Protocol != binding.Protocol {
			continue
		}
		if existing.HostPort == binding.HostPort {
			return fmt.Errorf("host port %d/%s already bound to container port %d",
				binding.HostPort, binding.Protocol, existing.ContainerPort)
		}
		if existing.ContainerPort == binding.ContainerPort {
			return fmt.Errorf("container port %d/%s already bound to host port %d",
				binding.ContainerPort, binding.Protocol, existing.HostPort)
		}
	}
	s.Ports = append(s.Ports, binding)
	return nil
}

// RemovePort unstages the binding with the given host port and
// protocol. Removing an absent binding is a no-op.
func (s *Spec) RemovePort(hostPort uint16, protocol string) {
	for i, existing := range s.Ports {
		if existing.HostPort == hostPort && existing.Protocol == protocol {
			s.Ports = append(s.Ports[:i], s.Ports[i+1:]...)
			return
		}
	}
}

// RemoveAllPorts unstages every binding.
func (s *Spec) RemoveAllPorts() {
	s.Ports = nil
}

// EnvPairs returns the environment as sorted key/value pairs.
func (s *Spec) EnvPairs() []wire.Pair {
	keys := make([]string, 0, len(s.Env))
	for key := range s.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]wire.Pair, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, wire.Pair{Key: key, Value: s.Env[key]})
	}
	return pairs
}

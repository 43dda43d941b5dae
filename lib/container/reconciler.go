// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charmkit-project/charmkit/lib/wire"
)

// Reconciler owns the desired-state records and drives the runtime
// toward them on Apply. Mutating calls on the same container name are
// strictly ordered; different names proceed in parallel.
type Reconciler struct {
	store      SpecStore
	runtime    Runtime
	unitName   string
	volumesDir string
	logger     *slog.Logger

	// applyMu serializes the operations that look at every record:
	// Apply, Delete, DeleteAll, and volume-data deletion scans. Always
	// acquired before any per-name lock.
	applyMu sync.Mutex

	namesMu sync.Mutex
	names   map[string]*sync.Mutex
}

// ReconcilerConfig holds the dependencies for NewReconciler.
type ReconcilerConfig struct {
	Store   SpecStore
	Runtime Runtime

	// UnitName scopes runtime container names.
	UnitName string

	// VolumesDir is the directory relative volume sources resolve
	// under. Data deletion only ever touches paths below it.
	VolumesDir string

	Logger *slog.Logger
}

// NewReconciler builds a Reconciler. All fields except Logger are
// required.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{
		store:      cfg.Store,
		runtime:    cfg.Runtime,
		unitName:   cfg.UnitName,
		volumesDir: cfg.VolumesDir,
		logger:     logger,
		names:      make(map[string]*sync.Mutex),
	}
}

// lockName serializes operations on one container name. Returns the
// unlock function.
func (r *Reconciler) lockName(name Name) func() {
	r.namesMu.Lock()
	lock, ok := r.names[name.String()]
	if !ok {
		lock = &sync.Mutex{}
		r.names[name.String()] = lock
	}
	r.namesMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// mutate loads a container's record, applies fn to it, and persists
// the result, all under the name's lock.
func (r *Reconciler) mutate(ctx context.Context, name Name, fn func(*Record) error) error {
	defer r.lockName(name)()

	record, _, err := loadRecord(ctx, r.store, name)
	if err != nil {
		return err
	}
	if err := fn(record); err != nil {
		return err
	}
	return saveRecord(ctx, r.store, record)
}

// read loads a container's record and passes it to fn under the
// name's lock, without persisting.
func (r *Reconciler) read(ctx context.Context, name Name, fn func(*Record) error) error {
	defer r.lockName(name)()

	record, _, err := loadRecord(ctx, r.store, name)
	if err != nil {
		return err
	}
	return fn(record)
}

// SetImage stages the container image.
func (r *Reconciler) SetImage(ctx context.Context, name Name, image string, noPull bool) error {
	if image == "" {
		return fmt.Errorf("container %s: image must not be empty", name)
	}
	return r.mutate(ctx, name, func(record *Record) error {
		record.Staged.Image = image
		record.Staged.NoPull = noPull
		return nil
	})
}

// Image returns the staged image reference, empty when none is
// staged.
func (r *Reconciler) Image(ctx context.Context, name Name) (string, error) {
	var image string
	err := r.read(ctx, name, func(record *Record) error {
		image = record.Staged.Image
		return nil
	})
	return image, err
}

// SetEntrypoint stages an entrypoint override.
func (r *Reconciler) SetEntrypoint(ctx context.Context, name Name, entrypoint []string) error {
	return r.mutate(ctx, name, func(record *Record) error {
		record.Staged.Entrypoint = entrypoint
		return nil
	})
}

// SetCommand stages a command override.
func (r *Reconciler) SetCommand(ctx context.Context, name Name, command []string) error {
	return r.mutate(ctx, name, func(record *Record) error {
		record.Staged.Command = command
		return nil
	})
}

// SetNetwork stages the container network.
func (r *Reconciler) SetNetwork(ctx context.Context, name Name, network string) error {
	return r.mutate(ctx, name, func(record *Record) error {
		record.Staged.Network = network
		return nil
	})
}

// SetEnv stages a batch of environment assignments; nil values erase.
func (r *Reconciler) SetEnv(ctx context.Context, name Name, values map[string]*string) error {
	return r.mutate(ctx, name, func(record *Record) error {
		record.Staged.SetEnv(values)
		return nil
	})
}

// Env returns one staged environment variable; nil when unset.
func (r *Reconciler) Env(ctx context.Context, name Name, key string) (*string, error) {
	var value *string
	err := r.read(ctx, name, func(record *Record) error {
		if stored, ok := record.Staged.Env[key]; ok {
			value = &stored
		}
		return nil
	})
	return value, err
}

// EnvAll returns the staged environment as sorted pairs.
func (r *Reconciler) EnvAll(ctx context.Context, name Name) ([]wire.Pair, error) {
	var pairs []wire.Pair
	err := r.read(ctx, name, func(record *Record) error {
		pairs = record.Staged.EnvPairs()
		return nil
	})
	return pairs, err
}

// AddVolume stages a bind mount. Target must be absolute; a relative
// source resolves under the unit's volume data directory at apply
// time.
func (r *Reconciler) AddVolume(ctx context.Context, name Name, source, target string) error {
	if source == "" {
		return fmt.Errorf("container %s: volume source must not be empty", name)
	}
	if !filepath.IsAbs(target) {
		return fmt.Errorf("container %s: volume target %q must be absolute", name, target)
	}
	return r.mutate(ctx, name, func(record *Record) error {
		record.Staged.AddVolume(source, target)
		return nil
	})
}

// RemoveVolume unstages the mount at target. With deleteData it also
// deletes the underlying managed data directory, but only when no
// other mount on any container (staged or applied) still references
// the same source; the return value reports whether data was actually
// deleted.
func (r *Reconciler) RemoveVolume(ctx context.Context, name Name, target string, deleteData bool) (bool, error) {
	if !deleteData {
		return false, r.mutate(ctx, name, func(record *Record) error {
			record.Staged.RemoveVolume(target)
			return nil
		})
	}

	r.applyMu.Lock()
	defer r.applyMu.Unlock()

	var removed wire.VolumeMount
	var had bool
	err := r.mutate(ctx, name, func(record *Record) error {
		removed, had = record.Staged.RemoveVolume(target)
		return nil
	})
	if err != nil || !had {
		return false, err
	}

	referenced, err := r.sourceReferenced(ctx, removed.Source)
	if err != nil {
		return false, err
	}
	if referenced {
		return false, nil
	}
	return r.deleteVolumeData(removed.Source)
}

// sourceReferenced scans every record for a mount with the given
// source, staged or applied.
func (r *Reconciler) sourceReferenced(ctx context.Context, source string) (bool, error) {
	blobs, err := r.store.ContainerRecords(ctx)
	if err != nil {
		return false, err
	}
	for key, blob := range blobs {
		record, err := decodeRecord(blob)
		if err != nil {
			return false, fmt.Errorf("container %s: %w", key, err)
		}
		for _, spec := range []*Spec{record.Staged, record.Applied} {
			if spec == nil {
				continue
			}
			for _, volume := range spec.Volumes {
				if volume.Source == source {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

// deleteVolumeData removes a managed volume directory. Absolute
// sources are host paths outside the daemon's ownership and are left
// alone.
func (r *Reconciler) deleteVolumeData(source string) (bool, error) {
	if filepath.IsAbs(source) {
		r.logger.Info("volume data not deleted, source is an unmanaged host path", "source", source)
		return false, nil
	}
	path := filepath.Join(r.volumesDir, source)
	if err := os.RemoveAll(path); err != nil {
		return false, fmt.Errorf("deleting volume data %s: %w", path, err)
	}
	r.logger.Info("volume data deleted", "path", path)
	return true, nil
}

// Volumes returns the staged mounts.
func (r *Reconciler) Volumes(ctx context.Context, name Name) ([]wire.VolumeMount, error) {
	var volumes []wire.VolumeMount
	err := r.read(ctx, name, func(record *Record) error {
		volumes = append(volumes, record.Staged.Volumes...)
		return nil
	})
	return volumes, err
}

// AddPort stages a published port; identical re-adds are no-ops and
// conflicting bindings fail.
func (r *Reconciler) AddPort(ctx context.Context, name Name, binding wire.PortBinding) error {
	if binding.Protocol != "tcp" && binding.Protocol != "udp" {
		return fmt.Errorf("container %s: protocol %q is not tcp or udp", name, binding.Protocol)
	}
	return r.mutate(ctx, name, func(record *Record) error {
		if err := record.Staged.AddPort(binding); err != nil {
			return fmt.Errorf("container %s: %w", name, err)
		}
		return nil
	})
}

// RemovePort unstages the binding with the host port and protocol.
func (r *Reconciler) RemovePort(ctx context.Context, name Name, hostPort uint16, protocol string) error {
	return r.mutate(ctx, name, func(record *Record) error {
		record.Staged.RemovePort(hostPort, protocol)
		return nil
	})
}

// RemoveAllPorts unstages every binding.
func (r *Reconciler) RemoveAllPorts(ctx context.Context, name Name) error {
	return r.mutate(ctx, name, func(record *Record) error {
		record.Staged.RemoveAllPorts()
		return nil
	})
}

// Ports returns the staged port bindings.
func (r *Reconciler) Ports(ctx context.Context, name Name) ([]wire.PortBinding, error) {
	var ports []wire.PortBinding
	err := r.read(ctx, name, func(record *Record) error {
		ports = append(ports, record.Staged.Ports...)
		return nil
	})
	return ports, err
}

// Apply reconciles every recorded container against the runtime, in
// name order. A container whose reconcile fails stays staged and its
// error is reported, but the pass continues with the remaining
// containers. Calling Apply again with nothing changed is a no-op.
func (r *Reconciler) Apply(ctx context.Context) error {
	r.applyMu.Lock()
	defer r.applyMu.Unlock()

	blobs, err := r.store.ContainerRecords(ctx)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(blobs))
	for key := range blobs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		var name Name
		if err := name.UnmarshalText([]byte(key)); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := r.applyOne(ctx, name); err != nil {
			r.logger.Error("container apply failed", "container", name.String(), "error", err)
			errs = append(errs, fmt.Errorf("container %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// applyOne reconciles a single container under its name lock.
func (r *Reconciler) applyOne(ctx context.Context, name Name) error {
	defer r.lockName(name)()

	record, found, err := loadRecord(ctx, r.store, name)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	if record.PendingRemoval {
		return r.removeLive(ctx, record)
	}
	if record.Staged.Equal(record.Applied) {
		return nil
	}
	if record.Staged.Image == "" {
		return fmt.Errorf("no image staged")
	}

	// Recreate from scratch: the engine cannot change most settings
	// on a live container.
	if record.ContainerID != "" {
		if err := r.runtime.Stop(ctx, record.ContainerID); err != nil {
			return err
		}
		if err := r.runtime.Remove(ctx, record.ContainerID); err != nil {
			return err
		}
		record.ContainerID = ""
		record.Applied = nil
		if err := saveRecord(ctx, r.store, record); err != nil {
			return err
		}
	}

	if !record.Staged.NoPull {
		if err := r.runtime.Pull(ctx, record.Staged.Image); err != nil {
			return err
		}
	}

	resolved, err := r.resolveVolumes(record.Staged)
	if err != nil {
		return err
	}
	id, err := r.runtime.Create(ctx, name.RuntimeName(r.unitName), resolved)
	if err != nil {
		return err
	}
	record.ContainerID = id
	if err := saveRecord(ctx, r.store, record); err != nil {
		return err
	}
	if err := r.runtime.Start(ctx, id); err != nil {
		return err
	}

	record.Applied = record.Staged.Clone()
	if err := saveRecord(ctx, r.store, record); err != nil {
		return err
	}
	r.logger.Info("container applied", "container", name.String(), "image", record.Staged.Image)
	return nil
}

// resolveVolumes clones the spec with relative sources resolved under
// the unit's volume directory, creating managed directories on first
// use.
func (r *Reconciler) resolveVolumes(spec *Spec) (*Spec, error) {
	resolved := spec.Clone()
	for i, volume := range resolved.Volumes {
		if filepath.IsAbs(volume.Source) {
			continue
		}
		path := filepath.Join(r.volumesDir, volume.Source)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating volume directory %s: %w", path, err)
		}
		resolved.Volumes[i].Source = path
	}
	return resolved, nil
}

// removeLive stops and removes a record's live container, then drops
// the record itself.
func (r *Reconciler) removeLive(ctx context.Context, record *Record) error {
	if record.ContainerID != "" {
		if err := r.runtime.Stop(ctx, record.ContainerID); err != nil {
			return err
		}
		if err := r.runtime.Remove(ctx, record.ContainerID); err != nil {
			return err
		}
		record.ContainerID = ""
	}
	return r.store.DeleteContainerRecord(ctx, record.Name.String())
}

// Delete removes a container's live instance and its record. If the
// live removal fails, the record is kept marked for removal so the
// next apply pass retries it.
func (r *Reconciler) Delete(ctx context.Context, name Name) error {
	r.applyMu.Lock()
	defer r.applyMu.Unlock()
	return r.deleteLocked(ctx, name)
}

func (r *Reconciler) deleteLocked(ctx context.Context, name Name) error {
	defer r.lockName(name)()

	record, found, err := loadRecord(ctx, r.store, name)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if err := r.removeLive(ctx, record); err != nil {
		record.PendingRemoval = true
		if saveErr := saveRecord(ctx, r.store, record); saveErr != nil {
			return errors.Join(err, saveErr)
		}
		return fmt.Errorf("container %s: %w", name, err)
	}
	r.logger.Info("container deleted", "container", name.String())
	return nil
}

// DeleteAll removes every container and record, used by the built-in
// stop hook.
func (r *Reconciler) DeleteAll(ctx context.Context) error {
	r.applyMu.Lock()
	defer r.applyMu.Unlock()

	blobs, err := r.store.ContainerRecords(ctx)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(blobs))
	for key := range blobs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		var name Name
		if err := name.UnmarshalText([]byte(key)); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := r.deleteLocked(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"context"
	"fmt"

	"github.com/charmkit-project/charmkit/lib/codec"
)

// Record is the durable state of one managed container: the staged
// (desired) spec, the spec last successfully applied, and the live
// container's runtime id. Records survive daemon restarts through the
// SpecStore.
type Record struct {
	// Name keys the record.
	Name Name `cbor:"name"`

	// Staged is the desired configuration, edited by mutating calls.
	Staged *Spec `cbor:"staged,omitempty"`

	// Applied is the configuration of the live container, set only
	// after a successful apply. Nil until first applied.
	Applied *Spec `cbor:"applied,omitempty"`

	// ContainerID is the runtime id of the live container, empty when
	// none is running.
	ContainerID string `cbor:"container_id,omitempty"`

	// PendingRemoval marks a container whose live instance could not
	// be removed; the next apply pass retries the removal.
	PendingRemoval bool `cbor:"pending_removal,omitempty"`
}

// Dirty reports whether the staged spec differs from what is live.
func (r *Record) Dirty() bool {
	if r.PendingRemoval {
		return true
	}
	return !r.Staged.Equal(r.Applied)
}

// SpecStore persists container records. Satisfied by
// unitstate.Store.
type SpecStore interface {
	PutContainerRecord(ctx context.Context, name string, record []byte) error
	ContainerRecord(ctx context.Context, name string) ([]byte, bool, error)
	ContainerRecords(ctx context.Context) (map[string][]byte, error)
	DeleteContainerRecord(ctx context.Context, name string) error
}

func loadRecord(ctx context.Context, store SpecStore, name Name) (*Record, bool, error) {
	blob, found, err := store.ContainerRecord(ctx, name.String())
	if err != nil {
		return nil, false, err
	}
	if !found {
		return &Record{Name: name, Staged: &Spec{}}, false, nil
	}
	record, err := decodeRecord(blob)
	if err != nil {
		return nil, false, fmt.Errorf("container %s: %w", name, err)
	}
	return record, true, nil
}

func saveRecord(ctx context.Context, store SpecStore, record *Record) error {
	blob, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding record for container %s: %w", record.Name, err)
	}
	return store.PutContainerRecord(ctx, record.Name.String(), blob)
}

func decodeRecord(blob []byte) (*Record, error) {
	var record Record
	if err := codec.Unmarshal(blob, &record); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	if record.Staged == nil {
		record.Staged = &Spec{}
	}
	return &record, nil
}

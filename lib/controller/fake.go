// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Controller for tests. Zero value is usable.
// Every field access is mutex-guarded so handler tests can run calls
// concurrently.
type Fake struct {
	mu sync.Mutex

	// Err, when set, is returned by every operation.
	Err error

	PrivateAddr    string
	PublicAddr     string
	ConfigValues   map[string]any
	Resources      map[string]string
	Ports          []string
	Relations      map[string]map[string]string // relationID -> databag
	RelationUnits  map[string][]string          // relationID -> remote units
	RelationIDsFor map[string][]string          // endpoint name -> ids
	Leader         bool
	LeaderSettings map[string]string

	// Statuses records every SetStatus call as "state: message".
	Statuses []string
}

var _ Controller = (*Fake)(nil)

func (f *Fake) PrivateAddress(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PrivateAddr, f.Err
}

func (f *Fake) PublicAddress(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PublicAddr, f.Err
}

func (f *Fake) Config(ctx context.Context) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ConfigValues, f.Err
}

func (f *Fake) Resource(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	path, ok := f.Resources[name]
	if !ok {
		return "", fmt.Errorf("resource-get: no resource %q", name)
	}
	return path, nil
}

func (f *Fake) OpenPort(ctx context.Context, port string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	for _, open := range f.Ports {
		if open == port {
			return nil
		}
	}
	f.Ports = append(f.Ports, port)
	return nil
}

func (f *Fake) ClosePort(ctx context.Context, port string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	kept := f.Ports[:0]
	for _, open := range f.Ports {
		if open != port {
			kept = append(kept, open)
		}
	}
	f.Ports = kept
	return nil
}

func (f *Fake) OpenedPorts(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	ports := make([]string, len(f.Ports))
	copy(ports, f.Ports)
	return ports, nil
}

func (f *Fake) RelationSet(ctx context.Context, relationID string, values map[string]string, app bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if f.Relations == nil {
		f.Relations = make(map[string]map[string]string)
	}
	databag := f.Relations[relationID]
	if databag == nil {
		databag = make(map[string]string)
		f.Relations[relationID] = databag
	}
	for key, value := range values {
		databag[key] = value
	}
	return nil
}

func (f *Fake) RelationGet(ctx context.Context, relationID, remoteUnit string, app bool) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	databag := make(map[string]string)
	for key, value := range f.Relations[relationID] {
		databag[key] = value
	}
	return databag, nil
}

func (f *Fake) RelationList(ctx context.Context, relationID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.RelationUnits[relationID], f.Err
}

func (f *Fake) RelationIDs(ctx context.Context, name string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.RelationIDsFor[name], f.Err
}

func (f *Fake) IsLeader(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Leader, f.Err
}

func (f *Fake) LeaderSet(ctx context.Context, values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if !f.Leader {
		return fmt.Errorf("leader-set: this unit is not the leader")
	}
	if f.LeaderSettings == nil {
		f.LeaderSettings = make(map[string]string)
	}
	for key, value := range values {
		f.LeaderSettings[key] = value
	}
	return nil
}

func (f *Fake) LeaderGet(ctx context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	settings := make(map[string]string)
	for key, value := range f.LeaderSettings {
		settings[key] = value
	}
	return settings, nil
}

func (f *Fake) SetStatus(ctx context.Context, state, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Statuses = append(f.Statuses, state+": "+message)
	return nil
}

// LastStatus returns the most recent SetStatus call, or "".
func (f *Fake) LastStatus() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Statuses) == 0 {
		return ""
	}
	return f.Statuses[len(f.Statuses)-1]
}

// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"context"
	"fmt"
	"sync"
)

// FakeRuntime is an in-memory Runtime for tests. It records every
// operation and tracks which containers are created and running.
type FakeRuntime struct {
	mu sync.Mutex

	// PingErr, PullErr, CreateErr, StartErr, StopErr, RemoveErr force
	// failures of the corresponding operation.
	PingErr   error
	PullErr   error
	CreateErr error
	StartErr  error
	StopErr   error
	RemoveErr error

	// FailCreateFor forces Create to fail for one runtime name only,
	// for partial-failure tests.
	FailCreateFor string

	nextID  int
	Calls   []string
	Pulled  []string
	Running map[string]*Spec // id -> spec of running containers
	Names   map[string]string
}

var _ Runtime = (*FakeRuntime)(nil)

func (f *FakeRuntime) record(format string, args ...any) {
	f.Calls = append(f.Calls, fmt.Sprintf(format, args...))
}

func (f *FakeRuntime) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ping")
	return f.PingErr
}

func (f *FakeRuntime) Pull(ctx context.Context, image string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("pull %s", image)
	if f.PullErr != nil {
		return f.PullErr
	}
	f.Pulled = append(f.Pulled, image)
	return nil
}

func (f *FakeRuntime) Create(ctx context.Context, runtimeName string, spec *Spec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create %s", runtimeName)
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	if f.FailCreateFor == runtimeName {
		return "", fmt.Errorf("create %s: forced failure", runtimeName)
	}
	f.nextID++
	id := fmt.Sprintf("ctr-%d", f.nextID)
	if f.Running == nil {
		f.Running = make(map[string]*Spec)
		f.Names = make(map[string]string)
	}
	f.Running[id] = spec.Clone()
	f.Names[id] = runtimeName
	return id, nil
}

func (f *FakeRuntime) Start(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("start %s", id)
	return f.StartErr
}

func (f *FakeRuntime) Stop(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("stop %s", id)
	return f.StopErr
}

func (f *FakeRuntime) Remove(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("remove %s", id)
	if f.RemoveErr != nil {
		return f.RemoveErr
	}
	delete(f.Running, id)
	delete(f.Names, id)
	return nil
}

// RunningCount returns how many containers are currently live.
func (f *FakeRuntime) RunningCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Running)
}

// CallCount returns how many runtime operations were issued.
func (f *FakeRuntime) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// SpecFor returns the spec of the single running container with the
// given runtime name.
func (f *FakeRuntime) SpecFor(runtimeName string) (*Spec, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, name := range f.Names {
		if name == runtimeName {
			return f.Running[id], true
		}
	}
	return nil, false
}

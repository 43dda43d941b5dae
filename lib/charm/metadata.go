// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

// Package charm loads and validates charm metadata.
//
// A charm directory contains a charm.yaml describing the charm: its
// name, the scripts to run for each hook, the cron jobs the daemon
// ticks, and whether the charm manages containers. Hook and cron
// scripts are paths relative to the charm directory.
package charm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/charmkit-project/charmkit/lib/cron"
)

// MetadataFile is the metadata file name inside a charm directory.
const MetadataFile = "charm.yaml"

// Metadata is the parsed contents of charm.yaml.
type Metadata struct {
	// Name identifies the charm.
	Name string `yaml:"name"`

	// Containers enables the container reconciler for this charm.
	// When false, container RPC calls are rejected and hooks are not
	// followed by a container apply pass.
	Containers bool `yaml:"containers"`

	// Hooks maps a hook name to the scripts run for it, in order.
	Hooks map[string][]string `yaml:"hooks"`

	// Cron lists the periodic jobs the daemon schedules.
	Cron []CronJob `yaml:"cron"`
}

// CronJob is one periodic job definition.
type CronJob struct {
	// ID uniquely names the job. Jobs run in id order on each tick.
	ID string `yaml:"id"`

	// Schedule is either a five-field cron expression or an interval
	// of the form "@every 5m".
	Schedule string `yaml:"schedule"`

	// Script is the script to run, relative to the charm directory.
	Script string `yaml:"script"`
}

// LoadDir loads and validates charm.yaml from a charm directory.
func LoadDir(dir string) (*Metadata, error) {
	return LoadFile(filepath.Join(dir, MetadataFile))
}

// LoadFile loads and validates charm metadata from a specific path.
func LoadFile(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading charm metadata: %w", err)
	}

	var meta Metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid charm metadata %s: %w", path, err)
	}
	return &meta, nil
}

// Validate checks the metadata for structural errors: a missing name,
// hooks with empty script lists, and cron jobs with duplicate ids or
// unparseable schedules.
func (m *Metadata) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}

	for hook, scripts := range m.Hooks {
		if hook == "" {
			return fmt.Errorf("hook with empty name")
		}
		for i, script := range scripts {
			if script == "" {
				return fmt.Errorf("hook %q: script %d is empty", hook, i)
			}
		}
	}

	seen := make(map[string]bool, len(m.Cron))
	for i, job := range m.Cron {
		if job.ID == "" {
			return fmt.Errorf("cron job %d: id is required", i)
		}
		if seen[job.ID] {
			return fmt.Errorf("cron job id %q appears more than once", job.ID)
		}
		seen[job.ID] = true
		if job.Script == "" {
			return fmt.Errorf("cron job %q: script is required", job.ID)
		}
		if _, err := cron.Parse(job.Schedule); err != nil {
			return fmt.Errorf("cron job %q: %w", job.ID, err)
		}
	}
	return nil
}

// HookScripts returns the scripts for a hook, in declaration order.
// Unknown hooks return nil, which callers treat as "nothing to run".
func (m *Metadata) HookScripts(hook string) []string {
	return m.Hooks[hook]
}

// CronJobs returns the cron jobs sorted by id, the order the
// scheduler runs them in.
func (m *Metadata) CronJobs() []CronJob {
	jobs := make([]CronJob, len(m.Cron))
	copy(jobs, m.Cron)
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs
}

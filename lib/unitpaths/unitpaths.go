// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

// Package unitpaths derives the per-unit filesystem layout: the state
// directory holding the unit's database and managed volume data, the
// log directory, and the runtime directory holding the daemon socket.
package unitpaths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Default directory roots. Overridable per daemon flag for tests and
// unprivileged runs.
const (
	DefaultDataDir = "/var/lib/charmkit"
	DefaultLogDir  = "/var/log/charmkit"
	DefaultRunDir  = "/run/charmkit"
)

// Sanitize converts a unit name to its filesystem form:
// "wordpress/0" becomes "wordpress-0".
func Sanitize(unitName string) string {
	return strings.ReplaceAll(unitName, "/", "-")
}

// Paths is the resolved per-unit layout.
type Paths struct {
	unit    string
	dataDir string
	logDir  string
	runDir  string
}

// For resolves the layout for a unit. Empty directory arguments fall
// back to the defaults.
func For(unitName, dataDir, logDir, runDir string) (Paths, error) {
	if unitName == "" {
		return Paths{}, fmt.Errorf("unit name is required")
	}
	if dataDir == "" {
		dataDir = DefaultDataDir
	}
	if logDir == "" {
		logDir = DefaultLogDir
	}
	if runDir == "" {
		runDir = DefaultRunDir
	}
	return Paths{
		unit:    Sanitize(unitName),
		dataDir: dataDir,
		logDir:  logDir,
		runDir:  runDir,
	}, nil
}

// UnitDir is the unit's state directory.
func (p Paths) UnitDir() string {
	return filepath.Join(p.dataDir, p.unit)
}

// StateDB is the unit's durable state database.
func (p Paths) StateDB() string {
	return filepath.Join(p.UnitDir(), "state.db")
}

// VolumesDir is where relative container volume sources live.
func (p Paths) VolumesDir() string {
	return filepath.Join(p.UnitDir(), "volumes")
}

// Socket is the daemon's unix socket.
func (p Paths) Socket() string {
	return filepath.Join(p.runDir, p.unit+".sock")
}

// LogFile is the unit's log file.
func (p Paths) LogFile() string {
	return filepath.Join(p.logDir, p.unit+".log")
}

// EnsureDirs creates every directory the daemon writes under.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.UnitDir(), p.VolumesDir(), p.logDir, p.runDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

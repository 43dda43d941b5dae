// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// Exec runs the controller's hook tools as subprocesses. The tools
// are found on PATH and inherit the daemon's environment with the
// invocation's JUJU_* variables merged over it.
type Exec struct {
	env map[string]string

	// runTool is swapped out in tests.
	runTool func(ctx context.Context, tool string, args ...string) ([]byte, error)
}

var _ Controller = (*Exec)(nil)

// NewExec returns a Controller that shells out to hook tools with the
// given invocation environment.
func NewExec(env map[string]string) *Exec {
	e := &Exec{env: env}
	e.runTool = e.run
	return e
}

// ExecFactory is the production Factory.
func ExecFactory(env map[string]string) Controller {
	return NewExec(env)
}

func (e *Exec) run(ctx context.Context, tool string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Env = mergedEnv(e.env)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %s", tool, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s: %w", tool, err)
	}
	return output, nil
}

// mergedEnv layers the invocation environment over the process's own.
func mergedEnv(env map[string]string) []string {
	merged := os.Environ()
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		merged = append(merged, key+"="+env[key])
	}
	return merged
}

// runJSON invokes a tool with --format json appended and decodes the
// output into out. Tools print "null" for empty results; the caller's
// zero value is left untouched in that case.
func (e *Exec) runJSON(ctx context.Context, out any, tool string, args ...string) error {
	output, err := e.runTool(ctx, tool, append(args, "--format", "json")...)
	if err != nil {
		return err
	}
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(trimmed), out); err != nil {
		return fmt.Errorf("decoding %s output: %w", tool, err)
	}
	return nil
}

func (e *Exec) runString(ctx context.Context, tool string, args ...string) (string, error) {
	output, err := e.runTool(ctx, tool, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

func (e *Exec) PrivateAddress(ctx context.Context) (string, error) {
	return e.runString(ctx, "unit-get", "private-address")
}

func (e *Exec) PublicAddress(ctx context.Context) (string, error) {
	return e.runString(ctx, "unit-get", "public-address")
}

func (e *Exec) Config(ctx context.Context) (map[string]any, error) {
	config := make(map[string]any)
	if err := e.runJSON(ctx, &config, "config-get"); err != nil {
		return nil, err
	}
	return config, nil
}

func (e *Exec) Resource(ctx context.Context, name string) (string, error) {
	return e.runString(ctx, "resource-get", name)
}

func (e *Exec) OpenPort(ctx context.Context, port string) error {
	_, err := e.runTool(ctx, "open-port", port)
	return err
}

func (e *Exec) ClosePort(ctx context.Context, port string) error {
	_, err := e.runTool(ctx, "close-port", port)
	return err
}

func (e *Exec) OpenedPorts(ctx context.Context) ([]string, error) {
	var ports []string
	if err := e.runJSON(ctx, &ports, "opened-ports"); err != nil {
		return nil, err
	}
	return ports, nil
}

// relationArgs builds the -r prefix for the relation tools. An empty
// relationID means the relation of the current hook context: the flag
// is omitted entirely so the tool defaults from JUJU_RELATION_ID
// (passing `-r ""` would be rejected).
func relationArgs(relationID string) []string {
	if relationID == "" {
		return nil
	}
	return []string{"-r", relationID}
}

func (e *Exec) RelationSet(ctx context.Context, relationID string, values map[string]string, app bool) error {
	args := relationArgs(relationID)
	if app {
		args = append(args, "--app")
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, key+"="+values[key])
	}
	_, err := e.runTool(ctx, "relation-set", args...)
	return err
}

func (e *Exec) RelationGet(ctx context.Context, relationID, remoteUnit string, app bool) (map[string]string, error) {
	args := relationArgs(relationID)
	if app {
		args = append(args, "--app")
	}
	// "-" requests the whole databag; the unit argument defaults to
	// the hook's remote unit when omitted.
	args = append(args, "-")
	if remoteUnit != "" {
		args = append(args, remoteUnit)
	}
	settings := make(map[string]string)
	if err := e.runJSON(ctx, &settings, "relation-get", args...); err != nil {
		return nil, err
	}
	return settings, nil
}

func (e *Exec) RelationList(ctx context.Context, relationID string) ([]string, error) {
	var units []string
	if err := e.runJSON(ctx, &units, "relation-list", relationArgs(relationID)...); err != nil {
		return nil, err
	}
	return units, nil
}

func (e *Exec) RelationIDs(ctx context.Context, name string) ([]string, error) {
	var ids []string
	if err := e.runJSON(ctx, &ids, "relation-ids", name); err != nil {
		return nil, err
	}
	return ids, nil
}

func (e *Exec) IsLeader(ctx context.Context) (bool, error) {
	var isLeader bool
	if err := e.runJSON(ctx, &isLeader, "is-leader"); err != nil {
		return false, err
	}
	return isLeader, nil
}

func (e *Exec) LeaderSet(ctx context.Context, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, key := range keys {
		args = append(args, key+"="+values[key])
	}
	_, err := e.runTool(ctx, "leader-set", args...)
	return err
}

func (e *Exec) LeaderGet(ctx context.Context) (map[string]string, error) {
	settings := make(map[string]string)
	if err := e.runJSON(ctx, &settings, "leader-get"); err != nil {
		return nil, err
	}
	return settings, nil
}

func (e *Exec) SetStatus(ctx context.Context, state, message string) error {
	args := []string{state}
	if message != "" {
		args = append(args, message)
	}
	_, err := e.runTool(ctx, "status-set", args...)
	return err
}

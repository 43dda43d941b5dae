// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

// Package hookexec runs charm hook scripts: the execution half of a
// trigger-hook call. Scripts run in their own process group with the
// invocation environment merged over the daemon's, and their output
// is relayed line by line to a caller-supplied sink, which either
// streams the lines to the client or buffers them for the terminal
// response.
//
// The pipeline sets a script's status to Active before invoking it
// and never writes a status afterward: whatever the script last set
// through the CLI stands, success or failure.
package hookexec

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmkit-project/charmkit/lib/charm"
	"github.com/charmkit-project/charmkit/lib/unitstate"
)

// defaultGracePeriod is how long a cancelled script gets between
// SIGTERM and SIGKILL.
const defaultGracePeriod = 10 * time.Second

// OutputSink receives one line of script output at a time. Calls are
// serialized.
type OutputSink func(line string)

// StatusStore is the slice of the state store the pipeline needs.
type StatusStore interface {
	SetScriptStatus(ctx context.Context, scriptID string, status unitstate.Status) error
}

// Config holds the dependencies for New.
type Config struct {
	// CharmDir is the charm root; script paths resolve under it, and
	// its bin/ directory is prepended to the scripts' PATH.
	CharmDir string

	// Metadata supplies the script lists per hook.
	Metadata *charm.Metadata

	// Statuses records the Active status before each script runs.
	Statuses StatusStore

	// SocketPath is exported to scripts as CHARMKIT_SOCKET so the CLI
	// they invoke finds the daemon.
	SocketPath string

	// GracePeriod overrides the SIGTERM-to-SIGKILL window on
	// cancellation. Zero uses the default.
	GracePeriod time.Duration

	Logger *slog.Logger
}

// Pipeline executes hook scripts. Safe for concurrent use; concurrent
// hooks run concurrently, serialization is the caller's concern.
type Pipeline struct {
	charmDir    string
	metadata    *charm.Metadata
	statuses    StatusStore
	socketPath  string
	gracePeriod time.Duration
	logger      *slog.Logger
}

// New builds a Pipeline.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	gracePeriod := cfg.GracePeriod
	if gracePeriod == 0 {
		gracePeriod = defaultGracePeriod
	}
	return &Pipeline{
		charmDir:    cfg.CharmDir,
		metadata:    cfg.Metadata,
		statuses:    cfg.Statuses,
		socketPath:  cfg.SocketPath,
		gracePeriod: gracePeriod,
		logger:      logger,
	}
}

// TriggerHook runs every script configured for the hook, in order,
// stopping at the first failure. A hook with no configured scripts is
// a successful no-op.
func (p *Pipeline) TriggerHook(ctx context.Context, hook string, env map[string]string, sink OutputSink) error {
	for i, script := range p.metadata.HookScripts(hook) {
		scriptID := fmt.Sprintf("%s_%d", hook, i)
		if err := p.RunScript(ctx, hook, script, scriptID, env, sink); err != nil {
			return err
		}
	}
	return nil
}

// RunScript executes a single script with the given script id. The
// scheduler calls this directly with cron-specific ids.
func (p *Pipeline) RunScript(ctx context.Context, hook, script, scriptID string, env map[string]string, sink OutputSink) error {
	if err := p.statuses.SetScriptStatus(ctx, scriptID, unitstate.Status{State: unitstate.StateActive}); err != nil {
		return fmt.Errorf("marking script %s active: %w", scriptID, err)
	}
	if sink == nil {
		sink = func(string) {}
	}

	path := filepath.Join(p.charmDir, script)
	cmd := exec.CommandContext(ctx, path)
	cmd.Dir = p.charmDir
	cmd.Env = p.buildEnv(hook, scriptID, env)

	// Own process group so cancellation reaches the script's
	// children, not just the script.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		processGroupID := -cmd.Process.Pid
		if err := syscall.Kill(processGroupID, syscall.SIGTERM); err != nil {
			return syscall.Kill(processGroupID, syscall.SIGKILL)
		}
		go func() {
			time.Sleep(p.gracePeriod)
			// ESRCH from an already-dead group is harmless.
			_ = syscall.Kill(processGroupID, syscall.SIGKILL)
		}()
		return nil
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("script %s: %w", scriptID, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("script %s: %w", scriptID, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting script %s: %w", scriptID, err)
	}
	p.logger.Info("hook script started", "hook", hook, "script", script, "script_id", scriptID)

	var sinkMu sync.Mutex
	var wg sync.WaitGroup
	for _, pipe := range []io.Reader{stdout, stderr} {
		wg.Add(1)
		go func(pipe io.Reader) {
			defer wg.Done()
			scanner := bufio.NewScanner(pipe)
			scanner.Buffer(make([]byte, 64*1024), 1024*1024)
			for scanner.Scan() {
				sinkMu.Lock()
				sink(scanner.Text())
				sinkMu.Unlock()
			}
		}(pipe)
	}

	// Drain both pipes before Wait closes them.
	wg.Wait()
	err = cmd.Wait()
	if err == nil {
		p.logger.Info("hook script finished", "script_id", scriptID)
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		p.logger.Warn("hook script failed",
			"script_id", scriptID,
			"exit_code", exitErr.ExitCode(),
		)
		return fmt.Errorf("hook %s script %s failed: exit status %d", hook, script, exitErr.ExitCode())
	}
	return fmt.Errorf("hook %s script %s: %w", hook, script, err)
}

// buildEnv merges the invocation environment over the daemon's own,
// adds the charmkit variables, and prepends the charm's bin directory
// to PATH so scripts can call the CLI and any tools the charm ships.
func (p *Pipeline) buildEnv(hook, scriptID string, extra map[string]string) []string {
	merged := make(map[string]string)
	for _, entry := range os.Environ() {
		if key, value, ok := strings.Cut(entry, "="); ok {
			merged[key] = value
		}
	}
	for key, value := range extra {
		merged[key] = value
	}
	merged["CHARMKIT_HOOK"] = hook
	merged["CHARMKIT_SCRIPT_ID"] = scriptID
	if p.socketPath != "" {
		merged["CHARMKIT_SOCKET"] = p.socketPath
	}

	binDir := filepath.Join(p.charmDir, "bin")
	if path, ok := merged["PATH"]; ok && path != "" {
		merged["PATH"] = binDir + string(os.PathListSeparator) + path
	} else {
		merged["PATH"] = binDir
	}

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, key := range keys {
		env = append(env, key+"="+merged[key])
	}
	return env
}

// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/charmkit-project/charmkit/lib/charm"
	"github.com/charmkit-project/charmkit/lib/container"
	"github.com/charmkit-project/charmkit/lib/controller"
	"github.com/charmkit-project/charmkit/lib/hookexec"
	"github.com/charmkit-project/charmkit/lib/schedule"
	"github.com/charmkit-project/charmkit/lib/socket"
	"github.com/charmkit-project/charmkit/lib/unitstate"
	"github.com/charmkit-project/charmkit/lib/wire"
)

// Daemon wires the unit's components behind the socket protocol. The
// serve loop handles connections concurrently; the store, reconciler,
// and scheduler carry their own locking, so the only daemon-level
// synchronization is hookMu.
type Daemon struct {
	unitName   string
	metadata   *charm.Metadata
	store      *unitstate.Store
	runtime    container.Runtime
	reconciler *container.Reconciler
	pipeline   *hookexec.Pipeline
	scheduler  *schedule.Scheduler
	controller controller.Factory
	logger     *slog.Logger

	// hookMu serializes hook and cron script execution. The cluster
	// controller delivers hooks one at a time; overlapping operator
	// trigger-hook calls queue here rather than interleave.
	hookMu sync.Mutex

	// shutdown cancels the serve context. Wired by main, invoked by
	// the stop-daemon handler.
	shutdown context.CancelFunc
}

// register installs every protocol method on the server.
func (d *Daemon) register(server *socket.Server) {
	server.Handle(wire.MethodTriggerHook, d.handleTriggerHook)
	server.Handle(wire.MethodCronTick, d.handleCronTick)
	server.Handle(wire.MethodStopDaemon, d.handleStopDaemon)

	server.Handle(wire.MethodSetStatus, d.handleSetStatus)

	server.Handle(wire.MethodGetPrivateAddress, d.handleGetPrivateAddress)
	server.Handle(wire.MethodGetPublicAddress, d.handleGetPublicAddress)
	server.Handle(wire.MethodGetConfig, d.handleGetConfig)
	server.Handle(wire.MethodGetResource, d.handleGetResource)

	server.Handle(wire.MethodPortOpen, d.handlePortOpen)
	server.Handle(wire.MethodPortClose, d.handlePortClose)
	server.Handle(wire.MethodPortCloseAll, d.handlePortCloseAll)
	server.Handle(wire.MethodPortGetOpened, d.handlePortGetOpened)

	server.Handle(wire.MethodUnitKvGet, d.handleUnitKvGet)
	server.Handle(wire.MethodUnitKvGetAll, d.handleUnitKvGetAll)
	server.Handle(wire.MethodUnitKvSet, d.handleUnitKvSet)

	server.Handle(wire.MethodRelationSet, d.handleRelationSet)
	server.Handle(wire.MethodRelationGet, d.handleRelationGet)
	server.Handle(wire.MethodRelationList, d.handleRelationList)
	server.Handle(wire.MethodRelationIds, d.handleRelationIds)

	server.Handle(wire.MethodLeaderIsLeader, d.handleLeaderIsLeader)
	server.Handle(wire.MethodLeaderSet, d.handleLeaderSet)
	server.Handle(wire.MethodLeaderGet, d.handleLeaderGet)

	server.Handle(wire.MethodContainerApply, d.handleContainerApply)
	server.Handle(wire.MethodContainerDelete, d.handleContainerDelete)
	server.Handle(wire.MethodContainerSetEntrypoint, d.handleContainerSetEntrypoint)
	server.Handle(wire.MethodContainerSetCommand, d.handleContainerSetCommand)
	server.Handle(wire.MethodContainerImageSet, d.handleContainerImageSet)
	server.Handle(wire.MethodContainerImageGet, d.handleContainerImageGet)
	server.Handle(wire.MethodContainerEnvGet, d.handleContainerEnvGet)
	server.Handle(wire.MethodContainerEnvGetAll, d.handleContainerEnvGetAll)
	server.Handle(wire.MethodContainerEnvSet, d.handleContainerEnvSet)
	server.Handle(wire.MethodContainerVolumeAdd, d.handleContainerVolumeAdd)
	server.Handle(wire.MethodContainerVolumeRemove, d.handleContainerVolumeRemove)
	server.Handle(wire.MethodContainerVolumeGetAll, d.handleContainerVolumeGetAll)
	server.Handle(wire.MethodContainerPortAdd, d.handleContainerPortAdd)
	server.Handle(wire.MethodContainerPortRemove, d.handleContainerPortRemove)
	server.Handle(wire.MethodContainerPortRemoveAll, d.handleContainerPortRemoveAll)
	server.Handle(wire.MethodContainerPortGetAll, d.handleContainerPortGetAll)
	server.Handle(wire.MethodContainerNetworkSet, d.handleContainerNetworkSet)
}

// runHook executes every script configured for the hook, in order,
// with built-in behavior around the charm scripts: install verifies
// the container runtime is reachable before anything runs, stop
// removes all containers after the scripts succeed, and when
// containers are enabled the staged specs are re-applied after each
// script so container mutations made by a script take effect before
// the next one runs.
//
// The consolidated unit status is pushed to the controller after the
// hook completes, whether it succeeded or not.
func (d *Daemon) runHook(ctx context.Context, hook string, env map[string]string, sink hookexec.OutputSink) (err error) {
	d.hookMu.Lock()
	defer d.hookMu.Unlock()

	defer func() {
		d.pushStatus(ctx, env)
	}()

	if hook == "install" && d.metadata.Containers {
		if pingErr := d.runtime.Ping(ctx); pingErr != nil {
			return fmt.Errorf("container runtime unreachable: %w", pingErr)
		}
	}

	for index, script := range d.metadata.HookScripts(hook) {
		scriptID := fmt.Sprintf("%s_%d", hook, index)
		if err := d.pipeline.RunScript(ctx, hook, script, scriptID, env, sink); err != nil {
			return err
		}
		if d.metadata.Containers {
			if err := d.reconciler.Apply(ctx); err != nil {
				return fmt.Errorf("applying container specs after %s: %w", scriptID, err)
			}
		}
	}

	if hook == "stop" {
		if err := d.reconciler.DeleteAll(ctx); err != nil {
			return fmt.Errorf("removing containers on stop: %w", err)
		}
	}

	return nil
}

// runJob executes one due cron job. Wired into the scheduler as its
// RunFunc. Job output goes to the daemon log; there is no client
// waiting on the other end of a scheduled run.
func (d *Daemon) runJob(ctx context.Context, job charm.CronJob, env map[string]string) error {
	d.hookMu.Lock()
	defer d.hookMu.Unlock()

	defer func() {
		d.pushStatus(ctx, env)
	}()

	scriptID := "cron_" + job.ID
	sink := func(line string) {
		d.logger.Info("cron output", "job", job.ID, "line", line)
	}
	if err := d.pipeline.RunScript(ctx, "cron", job.Script, scriptID, env, sink); err != nil {
		return err
	}
	if d.metadata.Containers {
		if err := d.reconciler.Apply(ctx); err != nil {
			return fmt.Errorf("applying container specs after %s: %w", scriptID, err)
		}
	}
	return nil
}

// pushStatus reports the consolidated unit status to the controller.
// Failures are logged, not returned: status reporting is advisory and
// must never fail the operation that changed the status.
func (d *Daemon) pushStatus(ctx context.Context, env map[string]string) {
	statuses, err := d.store.ScriptStatuses(ctx)
	if err != nil {
		d.logger.Error("reading script statuses", "error", err)
		return
	}
	consolidated := unitstate.Consolidate(statuses)
	if err := d.controller(env).SetStatus(ctx, string(consolidated.State), consolidated.Message); err != nil {
		d.logger.Warn("pushing unit status to controller",
			"state", consolidated.State,
			"error", err,
		)
	}
}

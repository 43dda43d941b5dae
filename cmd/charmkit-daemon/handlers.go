// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmkit-project/charmkit/lib/container"
	"github.com/charmkit-project/charmkit/lib/socket"
	"github.com/charmkit-project/charmkit/lib/unitstate"
	"github.com/charmkit-project/charmkit/lib/wire"
)

// ---- lifecycle ----

// handleTriggerHook is dual-mode: with streaming, each output line is
// sent as a frame while the hook runs; without, the full output is
// buffered into the terminal response.
func (d *Daemon) handleTriggerHook(ctx context.Context, call *socket.Call) (any, error) {
	request := call.Request
	if request.Hook == "" {
		return nil, fmt.Errorf("missing required field: hook")
	}

	if call.Stream() {
		sink := func(line string) {
			if err := call.Send(wire.OutputLine{Line: line}); err != nil {
				d.logger.Debug("dropping output line", "hook", request.Hook, "error", err)
			}
		}
		if err := d.runHook(ctx, request.Hook, request.Env, sink); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var output strings.Builder
	sink := func(line string) {
		output.WriteString(line)
		output.WriteByte('\n')
	}
	if err := d.runHook(ctx, request.Hook, request.Env, sink); err != nil {
		return nil, err
	}
	return wire.OutputResult{Output: output.String()}, nil
}

// handleCronTick runs all due scheduled jobs. The tick source must
// supply the invocation context the controller minted for it; job
// scripts and status pushes act through controller tools and cannot
// run without one.
func (d *Daemon) handleCronTick(ctx context.Context, call *socket.Call) (any, error) {
	request := call.Request
	if request.ContextID == "" {
		return nil, fmt.Errorf("missing required field: context_id")
	}

	env := make(map[string]string, len(request.Env)+1)
	for key, value := range request.Env {
		env[key] = value
	}
	env["JUJU_CONTEXT_ID"] = request.ContextID

	return nil, d.scheduler.Tick(ctx, env)
}

func (d *Daemon) handleStopDaemon(ctx context.Context, call *socket.Call) (any, error) {
	d.logger.Info("stop requested", "unit", d.unitName)
	d.shutdown()
	return nil, nil
}

// ---- status ----

func (d *Daemon) handleSetStatus(ctx context.Context, call *socket.Call) (any, error) {
	request := call.Request
	if request.ScriptID == "" {
		return nil, fmt.Errorf("missing required field: script_id")
	}
	state, err := unitstate.ParseState(request.State)
	if err != nil {
		return nil, err
	}
	status := unitstate.Status{State: state, Message: request.Message}
	if err := d.store.SetScriptStatus(ctx, request.ScriptID, status); err != nil {
		return nil, err
	}
	d.pushStatus(ctx, request.Env)
	return nil, nil
}

// ---- controller pass-throughs ----

func (d *Daemon) handleGetPrivateAddress(ctx context.Context, call *socket.Call) (any, error) {
	address, err := d.controller(call.Request.Env).PrivateAddress(ctx)
	if err != nil {
		return nil, err
	}
	return wire.StringResult{Value: address}, nil
}

func (d *Daemon) handleGetPublicAddress(ctx context.Context, call *socket.Call) (any, error) {
	address, err := d.controller(call.Request.Env).PublicAddress(ctx)
	if err != nil {
		return nil, err
	}
	return wire.StringResult{Value: address}, nil
}

func (d *Daemon) handleGetConfig(ctx context.Context, call *socket.Call) (any, error) {
	config, err := d.controller(call.Request.Env).Config(ctx)
	if err != nil {
		return nil, err
	}
	return wire.ConfigResult{Config: config}, nil
}

func (d *Daemon) handleGetResource(ctx context.Context, call *socket.Call) (any, error) {
	request := call.Request
	if request.Resource == "" {
		return nil, fmt.Errorf("missing required field: resource")
	}
	path, err := d.controller(request.Env).Resource(ctx, request.Resource)
	if err != nil {
		return nil, err
	}
	return wire.StringResult{Value: path}, nil
}

func (d *Daemon) handlePortOpen(ctx context.Context, call *socket.Call) (any, error) {
	request := call.Request
	if request.Port == "" {
		return nil, fmt.Errorf("missing required field: port")
	}
	return nil, d.controller(request.Env).OpenPort(ctx, request.Port)
}

func (d *Daemon) handlePortClose(ctx context.Context, call *socket.Call) (any, error) {
	request := call.Request
	if request.Port == "" {
		return nil, fmt.Errorf("missing required field: port")
	}
	return nil, d.controller(request.Env).ClosePort(ctx, request.Port)
}

func (d *Daemon) handlePortCloseAll(ctx context.Context, call *socket.Call) (any, error) {
	ctl := d.controller(call.Request.Env)
	ports, err := ctl.OpenedPorts(ctx)
	if err != nil {
		return nil, err
	}
	for _, port := range ports {
		if err := ctl.ClosePort(ctx, port); err != nil {
			return nil, fmt.Errorf("closing %s: %w", port, err)
		}
	}
	return nil, nil
}

func (d *Daemon) handlePortGetOpened(ctx context.Context, call *socket.Call) (any, error) {
	ports, err := d.controller(call.Request.Env).OpenedPorts(ctx)
	if err != nil {
		return nil, err
	}
	return wire.StringsResult{Values: ports}, nil
}

// ---- unit KV ----

func (d *Daemon) handleUnitKvGet(ctx context.Context, call *socket.Call) (any, error) {
	request := call.Request
	if request.Key == "" {
		return nil, fmt.Errorf("missing required field: key")
	}
	value, found, err := d.store.KVGet(ctx, unitstate.ScopeUnit, request.Key)
	if err != nil {
		return nil, err
	}
	if !found {
		return wire.ValueResult{}, nil
	}
	return wire.ValueResult{Value: &value}, nil
}

// handleUnitKvGetAll streams one frame per entry in insertion order.
// The server rejects buffered invocation before the handler runs.
func (d *Daemon) handleUnitKvGetAll(ctx context.Context, call *socket.Call) (any, error) {
	pairs, err := d.store.KVAll(ctx, unitstate.ScopeUnit)
	if err != nil {
		return nil, err
	}
	for _, pair := range pairs {
		if err := call.Send(wire.Pair{Key: pair.Key, Value: pair.Value}); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (d *Daemon) handleUnitKvSet(ctx context.Context, call *socket.Call) (any, error) {
	request := call.Request
	if len(request.Values) == 0 {
		return nil, fmt.Errorf("missing required field: values")
	}
	return nil, d.store.KVSet(ctx, unitstate.ScopeUnit, request.Values)
}

// ---- relations ----

func (d *Daemon) handleRelationSet(ctx context.Context, call *socket.Call) (any, error) {
	request := call.Request
	if len(request.Data) == 0 {
		return nil, fmt.Errorf("missing required field: data")
	}
	return nil, d.controller(request.Env).RelationSet(ctx, request.RelationID, request.Data, request.App)
}

func (d *Daemon) handleRelationGet(ctx context.Context, call *socket.Call) (any, error) {
	request := call.Request
	databag, err := d.controller(request.Env).RelationGet(ctx, request.RelationID, request.RemoteUnit, request.App)
	if err != nil {
		return nil, err
	}
	return wire.PairsResult{Pairs: sortedPairs(databag)}, nil
}

func (d *Daemon) handleRelationList(ctx context.Context, call *socket.Call) (any, error) {
	units, err := d.controller(call.Request.Env).RelationList(ctx, call.Request.RelationID)
	if err != nil {
		return nil, err
	}
	return wire.StringsResult{Values: units}, nil
}

func (d *Daemon) handleRelationIds(ctx context.Context, call *socket.Call) (any, error) {
	request := call.Request
	if request.RelationName == "" {
		return nil, fmt.Errorf("missing required field: relation_name")
	}
	ids, err := d.controller(request.Env).RelationIDs(ctx, request.RelationName)
	if err != nil {
		return nil, err
	}
	return wire.StringsResult{Values: ids}, nil
}

// ---- leadership ----

// handleLeaderIsLeader always asks the controller. Leadership can
// change between any two calls and must never be served from state.
func (d *Daemon) handleLeaderIsLeader(ctx context.Context, call *socket.Call) (any, error) {
	leader, err := d.controller(call.Request.Env).IsLeader(ctx)
	if err != nil {
		return nil, err
	}
	return wire.BoolResult{Result: leader}, nil
}

func (d *Daemon) handleLeaderSet(ctx context.Context, call *socket.Call) (any, error) {
	request := call.Request
	if len(request.Data) == 0 {
		return nil, fmt.Errorf("missing required field: data")
	}
	if err := d.controller(request.Env).LeaderSet(ctx, request.Data); err != nil {
		return nil, err
	}
	// Write-through to the leader-scoped KV cache so the settings
	// survive a daemon restart alongside the rest of the unit state.
	values := make(map[string]*string, len(request.Data))
	for key := range request.Data {
		value := request.Data[key]
		values[key] = &value
	}
	if err := d.store.KVSet(ctx, unitstate.ScopeLeader, values); err != nil {
		d.logger.Warn("updating leader settings cache", "error", err)
	}
	return nil, nil
}

func (d *Daemon) handleLeaderGet(ctx context.Context, call *socket.Call) (any, error) {
	settings, err := d.controller(call.Request.Env).LeaderGet(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.refreshLeaderCache(ctx, settings); err != nil {
		d.logger.Warn("refreshing leader settings cache", "error", err)
	}
	return wire.PairsResult{Pairs: sortedPairs(settings)}, nil
}

// refreshLeaderCache replaces the leader-scoped KV cache with the
// settings the controller just returned, erasing keys that no longer
// exist remotely.
func (d *Daemon) refreshLeaderCache(ctx context.Context, settings map[string]string) error {
	cached, err := d.store.KVAll(ctx, unitstate.ScopeLeader)
	if err != nil {
		return err
	}
	values := make(map[string]*string, len(settings)+len(cached))
	for _, pair := range cached {
		if _, stillPresent := settings[pair.Key]; !stillPresent {
			values[pair.Key] = nil
		}
	}
	for key := range settings {
		value := settings[key]
		values[key] = &value
	}
	if len(values) == 0 {
		return nil
	}
	return d.store.KVSet(ctx, unitstate.ScopeLeader, values)
}

// ---- containers ----

func (d *Daemon) containerName(request *wire.Request) (container.Name, error) {
	return container.For(request.Container)
}

func (d *Daemon) handleContainerApply(ctx context.Context, call *socket.Call) (any, error) {
	return nil, d.reconciler.Apply(ctx)
}

func (d *Daemon) handleContainerDelete(ctx context.Context, call *socket.Call) (any, error) {
	name, err := d.containerName(call.Request)
	if err != nil {
		return nil, err
	}
	return nil, d.reconciler.Delete(ctx, name)
}

func (d *Daemon) handleContainerSetEntrypoint(ctx context.Context, call *socket.Call) (any, error) {
	name, err := d.containerName(call.Request)
	if err != nil {
		return nil, err
	}
	return nil, d.reconciler.SetEntrypoint(ctx, name, call.Request.Entrypoint)
}

func (d *Daemon) handleContainerSetCommand(ctx context.Context, call *socket.Call) (any, error) {
	name, err := d.containerName(call.Request)
	if err != nil {
		return nil, err
	}
	return nil, d.reconciler.SetCommand(ctx, name, call.Request.Command)
}

func (d *Daemon) handleContainerImageSet(ctx context.Context, call *socket.Call) (any, error) {
	name, err := d.containerName(call.Request)
	if err != nil {
		return nil, err
	}
	return nil, d.reconciler.SetImage(ctx, name, call.Request.Image, call.Request.NoPull)
}

func (d *Daemon) handleContainerImageGet(ctx context.Context, call *socket.Call) (any, error) {
	name, err := d.containerName(call.Request)
	if err != nil {
		return nil, err
	}
	image, err := d.reconciler.Image(ctx, name)
	if err != nil {
		return nil, err
	}
	return wire.StringResult{Value: image}, nil
}

func (d *Daemon) handleContainerEnvGet(ctx context.Context, call *socket.Call) (any, error) {
	request := call.Request
	if request.Key == "" {
		return nil, fmt.Errorf("missing required field: key")
	}
	name, err := d.containerName(request)
	if err != nil {
		return nil, err
	}
	value, err := d.reconciler.Env(ctx, name, request.Key)
	if err != nil {
		return nil, err
	}
	return wire.ValueResult{Value: value}, nil
}

// handleContainerEnvGetAll streams one frame per variable in key
// order.
func (d *Daemon) handleContainerEnvGetAll(ctx context.Context, call *socket.Call) (any, error) {
	name, err := d.containerName(call.Request)
	if err != nil {
		return nil, err
	}
	pairs, err := d.reconciler.EnvAll(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, pair := range pairs {
		if err := call.Send(pair); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (d *Daemon) handleContainerEnvSet(ctx context.Context, call *socket.Call) (any, error) {
	request := call.Request
	if len(request.Values) == 0 {
		return nil, fmt.Errorf("missing required field: values")
	}
	name, err := d.containerName(request)
	if err != nil {
		return nil, err
	}
	return nil, d.reconciler.SetEnv(ctx, name, request.Values)
}

func (d *Daemon) handleContainerVolumeAdd(ctx context.Context, call *socket.Call) (any, error) {
	request := call.Request
	name, err := d.containerName(request)
	if err != nil {
		return nil, err
	}
	return nil, d.reconciler.AddVolume(ctx, name, request.Source, request.Target)
}

func (d *Daemon) handleContainerVolumeRemove(ctx context.Context, call *socket.Call) (any, error) {
	request := call.Request
	if request.Target == "" {
		return nil, fmt.Errorf("missing required field: target")
	}
	name, err := d.containerName(request)
	if err != nil {
		return nil, err
	}
	dataDeleted, err := d.reconciler.RemoveVolume(ctx, name, request.Target, request.DeleteData)
	if err != nil {
		return nil, err
	}
	return wire.VolumeRemoveResult{DataDeleted: dataDeleted}, nil
}

func (d *Daemon) handleContainerVolumeGetAll(ctx context.Context, call *socket.Call) (any, error) {
	name, err := d.containerName(call.Request)
	if err != nil {
		return nil, err
	}
	volumes, err := d.reconciler.Volumes(ctx, name)
	if err != nil {
		return nil, err
	}
	return wire.VolumesResult{Volumes: volumes}, nil
}

func (d *Daemon) handleContainerPortAdd(ctx context.Context, call *socket.Call) (any, error) {
	request := call.Request
	name, err := d.containerName(request)
	if err != nil {
		return nil, err
	}
	binding := wire.PortBinding{
		HostPort:      request.HostPort,
		ContainerPort: request.ContainerPort,
		Protocol:      request.Protocol,
	}
	return nil, d.reconciler.AddPort(ctx, name, binding)
}

func (d *Daemon) handleContainerPortRemove(ctx context.Context, call *socket.Call) (any, error) {
	request := call.Request
	name, err := d.containerName(request)
	if err != nil {
		return nil, err
	}
	return nil, d.reconciler.RemovePort(ctx, name, request.HostPort, request.Protocol)
}

func (d *Daemon) handleContainerPortRemoveAll(ctx context.Context, call *socket.Call) (any, error) {
	name, err := d.containerName(call.Request)
	if err != nil {
		return nil, err
	}
	return nil, d.reconciler.RemoveAllPorts(ctx, name)
}

func (d *Daemon) handleContainerPortGetAll(ctx context.Context, call *socket.Call) (any, error) {
	name, err := d.containerName(call.Request)
	if err != nil {
		return nil, err
	}
	ports, err := d.reconciler.Ports(ctx, name)
	if err != nil {
		return nil, err
	}
	return wire.PortsResult{Ports: ports}, nil
}

func (d *Daemon) handleContainerNetworkSet(ctx context.Context, call *socket.Call) (any, error) {
	name, err := d.containerName(call.Request)
	if err != nil {
		return nil, err
	}
	return nil, d.reconciler.SetNetwork(ctx, name, call.Request.Network)
}

// sortedPairs flattens a controller databag into key-ordered pairs.
func sortedPairs(values map[string]string) []wire.Pair {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]wire.Pair, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, wire.Pair{Key: key, Value: values[key]})
	}
	return pairs
}

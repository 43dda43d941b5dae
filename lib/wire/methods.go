// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package wire

// Method names for the daemon socket protocol. The groups mirror the
// daemon's components: lifecycle, status, controller pass-throughs,
// unit KV, relations, leadership, and container management.
const (
	MethodTriggerHook = "trigger-hook"
	MethodCronTick    = "cron-tick"
	MethodStopDaemon  = "stop-daemon"

	MethodSetStatus = "set-status"

	MethodGetPrivateAddress = "get-private-address"
	MethodGetPublicAddress  = "get-public-address"
	MethodGetConfig         = "get-config"
	MethodGetResource       = "get-resource"

	MethodPortOpen      = "port-open"
	MethodPortClose     = "port-close"
	MethodPortCloseAll  = "port-close-all"
	MethodPortGetOpened = "port-get-opened"

	MethodUnitKvGet    = "unit-kv-get"
	MethodUnitKvGetAll = "unit-kv-get-all"
	MethodUnitKvSet    = "unit-kv-set"

	MethodRelationSet  = "relation-set"
	MethodRelationGet  = "relation-get"
	MethodRelationList = "relation-list"
	MethodRelationIds  = "relation-ids"

	MethodLeaderIsLeader = "leader-is-leader"
	MethodLeaderSet      = "leader-set"
	MethodLeaderGet      = "leader-get"

	MethodContainerApply         = "container-apply"
	MethodContainerDelete        = "container-delete"
	MethodContainerSetEntrypoint = "container-set-entrypoint"
	MethodContainerSetCommand    = "container-set-command"
	MethodContainerImageSet      = "container-image-set"
	MethodContainerImageGet      = "container-image-get"
	MethodContainerEnvGet        = "container-env-get"
	MethodContainerEnvGetAll     = "container-env-get-all"
	MethodContainerEnvSet        = "container-env-set"
	MethodContainerVolumeAdd     = "container-volume-add"
	MethodContainerVolumeRemove  = "container-volume-remove"
	MethodContainerVolumeGetAll  = "container-volume-get-all"
	MethodContainerPortAdd       = "container-port-add"
	MethodContainerPortRemove    = "container-port-remove"
	MethodContainerPortRemoveAll = "container-port-remove-all"
	MethodContainerPortGetAll    = "container-port-get-all"
	MethodContainerNetworkSet    = "container-network-set"
)

// streamOnly lists the methods whose result size is unbounded and must
// therefore be consumed as a stream. Invoking one without the stream
// flag fails with RequiresMore.
var streamOnly = map[string]bool{
	MethodUnitKvGetAll:       true,
	MethodContainerEnvGetAll: true,
}

// StreamOnly reports whether method must be invoked with the stream
// flag set.
func StreamOnly(method string) bool {
	return streamOnly[method]
}

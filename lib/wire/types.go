// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "github.com/charmkit-project/charmkit/lib/codec"

// Request is a CBOR-encoded request from a client (hook script or
// operator CLI) to the daemon. One Request per connection.
//
// Method and Stream route the call; the remaining fields are
// method-specific and zero for methods that do not use them.
type Request struct {
	// Method selects the operation. See the Method constants.
	Method string `cbor:"method"`

	// Stream requests intermediate frames before the terminal
	// response. Required for stream-only methods; optional for
	// trigger-hook (buffered output otherwise).
	Stream bool `cbor:"stream,omitempty"`

	// Env carries the client process's hook environment (the JUJU_*
	// variables handed to it by the cluster controller). The daemon
	// merges these into hook script environments and passes them to
	// controller tool invocations, which need the invocation context
	// to address the right relation and unit.
	Env map[string]string `cbor:"env,omitempty"`

	// Hook is the hook name for "trigger-hook".
	Hook string `cbor:"hook,omitempty"`

	// ContextID is the invocation context identifier for "cron-tick".
	// Scheduled jobs run outside any controller-delivered hook, so
	// the external tick source must supply the context the controller
	// minted for it.
	ContextID string `cbor:"context_id,omitempty"`

	// ScriptID and the status fields serve "set-status".
	ScriptID string `cbor:"script_id,omitempty"`
	State    string `cbor:"state,omitempty"`
	Message  string `cbor:"message,omitempty"`

	// Key is the lookup key for "unit-kv-get" and
	// "container-env-get".
	Key string `cbor:"key,omitempty"`

	// Values carries batch key/value assignments for "unit-kv-set"
	// and "container-env-set". A nil value erases the key; batch
	// application is atomic.
	Values map[string]*string `cbor:"values,omitempty"`

	// Resource is the resource name for "get-resource".
	Resource string `cbor:"resource,omitempty"`

	// Port is a "<number>/<protocol>" firewall port specification for
	// "port-open" and "port-close".
	Port string `cbor:"port,omitempty"`

	// RelationName is the relation endpoint name for "relation-ids".
	RelationName string `cbor:"relation_name,omitempty"`

	// RelationID addresses a specific relation instance for
	// "relation-get", "relation-set", and "relation-list". Empty
	// means the relation of the current hook context.
	RelationID string `cbor:"relation_id,omitempty"`

	// RemoteUnit selects whose databag "relation-get" reads. Empty
	// means the remote unit of the current hook context.
	RemoteUnit string `cbor:"remote_unit,omitempty"`

	// App reads the application databag instead of a unit databag
	// (for "relation-get").
	App bool `cbor:"app,omitempty"`

	// Data carries string key/value pairs for "relation-set" and
	// "leader-set".
	Data map[string]string `cbor:"data,omitempty"`

	// Container scopes the container-* methods to a named container.
	// Empty selects the charm's default container.
	Container string `cbor:"container,omitempty"`

	// Image and NoPull serve "container-image-set". NoPull skips the
	// registry pull on apply and uses the locally cached image.
	Image  string `cbor:"image,omitempty"`
	NoPull bool   `cbor:"no_pull,omitempty"`

	// Entrypoint and Command serve "container-set-entrypoint" and
	// "container-set-command".
	Entrypoint []string `cbor:"entrypoint,omitempty"`
	Command    []string `cbor:"command,omitempty"`

	// Source and Target serve "container-volume-add" and
	// "container-volume-remove" (Target alone identifies the mount).
	// A relative Source resolves under the unit's volume data
	// directory.
	Source string `cbor:"source,omitempty"`
	Target string `cbor:"target,omitempty"`

	// DeleteData asks "container-volume-remove" to also delete the
	// underlying volume data, provided no other mount across any
	// container still references the same source.
	DeleteData bool `cbor:"delete_data,omitempty"`

	// HostPort, ContainerPort, and Protocol serve
	// "container-port-add" and "container-port-remove".
	HostPort      uint16 `cbor:"host_port,omitempty"`
	ContainerPort uint16 `cbor:"container_port,omitempty"`
	Protocol      string `cbor:"protocol,omitempty"`

	// Network is the container network name for
	// "container-network-set".
	Network string `cbor:"network,omitempty"`
}

// Response is the terminal reply closing every call.
type Response struct {
	// OK indicates whether the request succeeded.
	OK bool `cbor:"ok"`

	// Error contains the error message if OK is false.
	Error string `cbor:"error,omitempty"`

	// RequiresMore is set alongside OK=false when a stream-only
	// method was invoked without the stream flag. The caller should
	// retry with streaming enabled rather than treat the failure as
	// operational.
	RequiresMore bool `cbor:"requires_more,omitempty"`

	// Data is the method-specific result payload, if any.
	Data codec.RawMessage `cbor:"data,omitempty"`
}

// Frame is an intermediate streamed reply. Zero or more frames precede
// the terminal Response when the client requested streaming.
type Frame struct {
	// More is always true on a frame; its absence marks the terminal
	// Response.
	More bool `cbor:"more"`

	// Data is the frame payload: an OutputLine for hook output, a
	// Pair for streamed get-all results.
	Data codec.RawMessage `cbor:"data,omitempty"`
}

// Reply is the client-side decode target covering both frames and the
// terminal response. More distinguishes the two.
type Reply struct {
	More         bool             `cbor:"more"`
	OK           bool             `cbor:"ok"`
	Error        string           `cbor:"error,omitempty"`
	RequiresMore bool             `cbor:"requires_more,omitempty"`
	Data         codec.RawMessage `cbor:"data,omitempty"`
}

// Pair is one key/value entry in ordered get-all results.
type Pair struct {
	Key   string `cbor:"key"`
	Value string `cbor:"value"`
}

// OutputLine is one line of hook output relayed in a stream frame.
type OutputLine struct {
	Line string `cbor:"line"`
}

// ValueResult carries an optional string value ("unit-kv-get",
// "container-env-get"). Nil means the key is absent, which is distinct
// from an empty string.
type ValueResult struct {
	Value *string `cbor:"value"`
}

// StringResult carries a single required string (addresses, resource
// paths, "container-image-get").
type StringResult struct {
	Value string `cbor:"value"`
}

// BoolResult carries a single boolean ("leader-is-leader").
type BoolResult struct {
	Result bool `cbor:"result"`
}

// PairsResult carries ordered key/value pairs for buffered callers
// ("relation-get", "leader-get").
type PairsResult struct {
	Pairs []Pair `cbor:"pairs"`
}

// StringsResult carries a list of strings ("relation-ids",
// "relation-list", "port-get-opened").
type StringsResult struct {
	Values []string `cbor:"values"`
}

// ConfigResult carries the charm configuration ("get-config"). Values
// keep the controller's JSON types.
type ConfigResult struct {
	Config map[string]any `cbor:"config"`
}

// OutputResult carries buffered hook output for non-streaming
// "trigger-hook" calls.
type OutputResult struct {
	Output string `cbor:"output"`
}

// VolumeRemoveResult reports whether "container-volume-remove" with
// DeleteData actually deleted the volume data. False means another
// mount still references the source.
type VolumeRemoveResult struct {
	DataDeleted bool `cbor:"data_deleted"`
}

// VolumeMount is one volume binding in a container spec.
type VolumeMount struct {
	// Source is the host path or, when relative, a directory under
	// the unit's volume data directory.
	Source string `cbor:"source"`

	// Target is the absolute mount path inside the container.
	Target string `cbor:"target"`
}

// VolumesResult carries a container's volume mounts
// ("container-volume-get-all").
type VolumesResult struct {
	Volumes []VolumeMount `cbor:"volumes"`
}

// PortBinding is one published port in a container spec.
type PortBinding struct {
	HostPort      uint16 `cbor:"host_port"`
	ContainerPort uint16 `cbor:"container_port"`
	Protocol      string `cbor:"protocol"`
}

// PortsResult carries a container's port bindings
// ("container-port-get-all").
type PortsResult struct {
	Ports []PortBinding `cbor:"ports"`
}

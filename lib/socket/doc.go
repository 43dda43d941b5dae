// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

// Package socket implements the daemon's Unix socket RPC transport:
// a CBOR request-response server with optional streamed intermediate
// frames, and the dialing client used by the charmkit CLI and hook
// scripts.
//
// Each connection carries exactly one call. The client writes one
// wire.Request; the server routes it to a registered handler and
// writes zero or more wire.Frame values followed by one terminal
// wire.Response. Handlers for streaming calls receive a context that
// is cancelled when the client disconnects mid-stream, so a hook whose
// invoker has gone away is killed promptly instead of running to
// completion unobserved.
package socket

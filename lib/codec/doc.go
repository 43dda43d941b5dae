// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides charmkit's standard CBOR encoding configuration.
//
// Every charmkit wire and storage format that is not human-facing uses
// CBOR through this package: the daemon socket protocol, persisted
// container spec records, and the stream frames carrying hook output.
// JSON is reserved for human-facing surfaces (CLI --json output and
// the payloads exchanged with the cluster controller's hook tools).
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// Same logical data always produces identical bytes, which keeps
// persisted container spec records byte-comparable across writes.
//
// For buffer-oriented operations (store records):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (the daemon socket):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Consumers import only this package, never fxamacker/cbor directly.
// The Encoder, Decoder, and RawMessage aliases exist so the underlying
// library stays an implementation detail of exactly one package.
package codec

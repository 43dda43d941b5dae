// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"fmt"
	"strings"
)

// defaultKey is the reserved storage key for the default container.
// Parenthesized so it can never collide with a client-supplied name.
const defaultKey = "(default)"

// Name identifies a managed container. The zero value is the charm's
// default container; named containers come from For. Name is
// comparable and usable as a map key.
type Name struct {
	name string
}

// DefaultName is the charm's default container.
var DefaultName = Name{}

// For returns the Name for a client-supplied container name. The
// empty string selects the default container.
func For(name string) (Name, error) {
	if name == "" {
		return DefaultName, nil
	}
	if name == defaultKey {
		return Name{}, fmt.Errorf("container name %q is reserved", name)
	}
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' {
			continue
		}
		return Name{}, fmt.Errorf("container name %q: only lowercase letters, digits, and '-' are allowed", name)
	}
	return Name{name: name}, nil
}

// IsDefault reports whether n is the default container.
func (n Name) IsDefault() bool { return n.name == "" }

// String returns the storage key: the container name, or the reserved
// default key.
func (n Name) String() string {
	if n.name == "" {
		return defaultKey
	}
	return n.name
}

// MarshalText encodes the storage key, so Name works as a CBOR and
// JSON map key.
func (n Name) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText decodes a storage key written by MarshalText.
func (n *Name) UnmarshalText(text []byte) error {
	key := string(text)
	if key == defaultKey || key == "" {
		*n = DefaultName
		return nil
	}
	parsed, err := For(key)
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// RuntimeName derives the name the container carries in the runtime,
// scoped by unit so several units can share a host.
func (n Name) RuntimeName(unitName string) string {
	base := "charmkit-" + strings.ReplaceAll(unitName, "/", "-")
	if n.name == "" {
		return base
	}
	return base + "-" + n.name
}

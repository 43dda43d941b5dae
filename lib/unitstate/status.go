// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package unitstate

import (
	"fmt"
	"sort"
	"strings"
)

// State is a script status state. The values mirror the cluster
// controller's workload states.
type State string

const (
	StateActive      State = "active"
	StateWaiting     State = "waiting"
	StateMaintenance State = "maintenance"
	StateBlocked     State = "blocked"
)

// ParseState validates a state string from the wire.
func ParseState(raw string) (State, error) {
	switch State(raw) {
	case StateActive, StateWaiting, StateMaintenance, StateBlocked:
		return State(raw), nil
	}
	return "", fmt.Errorf("unknown status state %q (want active, waiting, maintenance, or blocked)", raw)
}

// severity ranks states for consolidation. Higher wins: a single
// blocked script makes the whole unit blocked.
func (s State) severity() int {
	switch s {
	case StateBlocked:
		return 3
	case StateMaintenance:
		return 2
	case StateWaiting:
		return 1
	default:
		return 0
	}
}

// Status is one script's current status. Overwritten on every set,
// never appended.
type Status struct {
	State   State  `json:"state"`
	Message string `json:"message,omitempty"`
}

// Consolidate reduces all script statuses to the single unit status
// reported to the cluster controller: the most severe state wins, and
// the messages of the scripts in that state are joined with ", " in
// script-id order. With no statuses the unit is active.
func Consolidate(statuses map[string]Status) Status {
	consolidated := Status{State: StateActive}
	for _, status := range statuses {
		if status.State.severity() > consolidated.State.severity() {
			consolidated.State = status.State
		}
	}

	var messages []string
	for _, scriptID := range sortedKeys(statuses) {
		status := statuses[scriptID]
		if status.State == consolidated.State && status.Message != "" {
			messages = append(messages, status.Message)
		}
	}
	consolidated.Message = strings.Join(messages, ", ")
	return consolidated
}

func sortedKeys(statuses map[string]Status) []string {
	keys := make([]string, 0, len(statuses))
	for key := range statuses {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

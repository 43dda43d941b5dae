// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"testing"
)

func TestParseAssignments(t *testing.T) {
	values, err := parseAssignments([]string{"db-host=10.0.0.7", "db-port=5432", "old-host-", "empty="})
	if err != nil {
		t.Fatalf("parseAssignments: %v", err)
	}

	if got := values["db-host"]; got == nil || *got != "10.0.0.7" {
		t.Errorf("db-host = %v", got)
	}
	if got := values["db-port"]; got == nil || *got != "5432" {
		t.Errorf("db-port = %v", got)
	}
	if got, ok := values["old-host"]; !ok || got != nil {
		t.Errorf("old-host should be an erase marker, got %v (present: %v)", got, ok)
	}
	if got := values["empty"]; got == nil || *got != "" {
		t.Errorf("empty= should set the empty string, got %v", got)
	}
}

func TestParseAssignmentsRejectsMalformed(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"no-separator"},
		{"=value"},
		{"-"},
	} {
		if _, err := parseAssignments(args); err == nil {
			t.Errorf("parseAssignments(%v) succeeded, want error", args)
		}
	}
}

func TestParseStringAssignments(t *testing.T) {
	values, err := parseStringAssignments([]string{"endpoint=https://db.local", "ready=true"})
	if err != nil {
		t.Fatalf("parseStringAssignments: %v", err)
	}
	if values["endpoint"] != "https://db.local" || values["ready"] != "true" {
		t.Errorf("values = %v", values)
	}

	if _, err := parseStringAssignments([]string{"erase-"}); err == nil {
		t.Error("erase syntax should not parse without a value")
	}
}

func TestParsePortBinding(t *testing.T) {
	binding, err := parsePortBinding("8080:80/tcp")
	if err != nil {
		t.Fatalf("parsePortBinding: %v", err)
	}
	if binding.HostPort != 8080 || binding.ContainerPort != 80 || binding.Protocol != "tcp" {
		t.Errorf("binding = %+v", binding)
	}

	for _, arg := range []string{"8080/tcp", "8080:80", "notaport:80/tcp", "8080:99999/udp"} {
		if _, err := parsePortBinding(arg); err == nil {
			t.Errorf("parsePortBinding(%q) succeeded, want error", arg)
		}
	}
}

// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package charm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleMetadata = `
name: wordpress
containers: true
hooks:
  install:
    - scripts/install.sh
  config-changed:
    - scripts/configure.sh
    - scripts/restart.sh
cron:
  - id: backup
    schedule: "@every 1h"
    script: scripts/backup.sh
  - id: aggregate
    schedule: "*/5 * * * *"
    script: scripts/aggregate.sh
`

func writeMetadata(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, MetadataFile)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing metadata: %v", err)
	}
	return dir
}

func TestLoadDir(t *testing.T) {
	dir := writeMetadata(t, sampleMetadata)

	meta, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if meta.Name != "wordpress" {
		t.Errorf("Name = %q, want wordpress", meta.Name)
	}
	if !meta.Containers {
		t.Error("Containers should be enabled")
	}
	scripts := meta.HookScripts("config-changed")
	if len(scripts) != 2 || scripts[0] != "scripts/configure.sh" {
		t.Errorf("config-changed scripts = %v", scripts)
	}
	if meta.HookScripts("unknown-hook") != nil {
		t.Error("unknown hook should return nil")
	}
}

func TestLoadDirMissingFile(t *testing.T) {
	if _, err := LoadDir(t.TempDir()); err == nil {
		t.Fatal("expected error for missing charm.yaml")
	}
}

func TestCronJobsSortedByID(t *testing.T) {
	dir := writeMetadata(t, sampleMetadata)
	meta, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	jobs := meta.CronJobs()
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].ID != "aggregate" || jobs[1].ID != "backup" {
		t.Errorf("job order = [%s, %s], want [aggregate, backup]", jobs[0].ID, jobs[1].ID)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		metadata string
		wantErr  string
	}{
		{
			name:     "missing_name",
			metadata: "hooks:\n  install:\n    - scripts/install.sh\n",
			wantErr:  "name is required",
		},
		{
			name:     "empty_hook_script",
			metadata: "name: x\nhooks:\n  install:\n    - \"\"\n",
			wantErr:  "script 0 is empty",
		},
		{
			name:     "duplicate_job_id",
			metadata: "name: x\ncron:\n  - {id: a, schedule: \"@every 1m\", script: s.sh}\n  - {id: a, schedule: \"@every 2m\", script: t.sh}\n",
			wantErr:  "more than once",
		},
		{
			name:     "missing_job_script",
			metadata: "name: x\ncron:\n  - {id: a, schedule: \"@every 1m\"}\n",
			wantErr:  "script is required",
		},
		{
			name:     "bad_schedule",
			metadata: "name: x\ncron:\n  - {id: a, schedule: \"not a schedule\", script: s.sh}\n",
			wantErr:  "cron job \"a\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeMetadata(t, tt.metadata)
			_, err := LoadDir(dir)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

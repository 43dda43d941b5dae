// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

// Package cron parses charm job schedules and computes the next
// occurrence after a given time.
//
// Two schedule forms are accepted. The first is a standard 5-field
// cron expression:
//
//	┌───────────── minute (0-59)
//	│ ┌───────────── hour (0-23)
//	│ │ ┌───────────── day of month (1-31)
//	│ │ │ ┌───────────── month (1-12)
//	│ │ │ │ ┌───────────── day of week (0-6, 0=Sunday)
//	│ │ │ │ │
//	* * * * *
//
// Each field supports:
//   - Single values: 5
//   - Ranges: 1-5
//   - Lists: 1,3,5
//   - Steps: */15, 1-30/5
//   - Wildcard: *
//
// The second form is a fixed interval:
//
//	@every 5m
//	@every 1h30m
//
// where the duration uses Go's time.ParseDuration syntax and must be
// at least one second.
//
// All times are UTC. No @yearly/@monthly shortcuts, no seconds field,
// no named days/months. Charm schedules use UTC wall-clock time
// exclusively.
package cron

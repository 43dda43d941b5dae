// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock interface parameter instead of
// calling time.Now, time.After, time.NewTicker, or time.Sleep
// directly. In production, Real() provides the standard library
// behavior. In tests, Fake() provides a deterministic clock that
// advances only when Advance is called.
//
// The job scheduler is the main consumer: it reads Now to decide which
// cron jobs are due, and the daemon's optional self-tick loop runs on
// NewTicker. Tests construct a FakeClock, set it to a known time, and
// step it across schedule boundaries without sleeping.
//
// # FakeClock Synchronization
//
// When a goroutine calls Sleep, After, or NewTicker on a FakeClock, it
// registers a pending waiter. Use WaitForTimers to block until a
// specific number of waiters are registered before calling Advance.
// This eliminates the race between timer registration and time
// advancement that plagues tests using time.Sleep for synchronization.
package clock

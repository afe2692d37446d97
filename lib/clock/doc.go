// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable clock so that timer-driven
// code (reconnection backoff, poll scheduling, send debouncing) can
// be tested deterministically.
//
// Production code injects [Real]. Tests inject [Fake] and drive time
// with [FakeClock.Advance]; [FakeClock.WaitForTimers] synchronizes a
// test with a goroutine that is about to arm a timer.
package clock

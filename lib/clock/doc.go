// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for the relay's heartbeat and the
// viewer's watchdog and reconnect scheduling.
//
// [Real] returns a Clock backed by the time package. [Fake] returns a
// deterministic clock that only advances when a test calls
// [FakeClock.Advance]; pending timers and tickers fire in deadline
// order when the clock moves past them, and [FakeClock.WaitForTimers]
// removes the race between a goroutine registering a timer and the
// test advancing the clock.
package clock

// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package cache

import (
	"sync"
	"time"
)

// AttemptWindow is a per-key sliding log of attempt timestamps. Unlike a
// bucketed counter it is exact: an attempt counts for precisely one window
// after it was recorded.
//
// Complexity:
//   - Reserve: O(k) where k = attempts still inside the window (bounded by the limit)
//   - Memory: O(keys * limit)
type AttemptWindow struct {
	mu       sync.Mutex
	window   time.Duration
	limit    int
	attempts map[string][]time.Time
}

// WindowSnapshot describes one key's live attempts.
type WindowSnapshot struct {
	Count       int
	WindowStart time.Time
}

// NewAttemptWindow creates a log allowing limit attempts per key within window.
func NewAttemptWindow(window time.Duration, limit int) *AttemptWindow {
	if window <= 0 {
		window = time.Hour
	}
	if limit <= 0 {
		limit = 3
	}
	return &AttemptWindow{
		window:   window,
		limit:    limit,
		attempts: make(map[string][]time.Time),
	}
}

// Reserve records an attempt for key at now if fewer than limit attempts
// fall within the window. When refused it returns false, the live count,
// and how long until the oldest attempt leaves the window.
func (w *AttemptWindow) Reserve(key string, now time.Time) (ok bool, count int, retryAfter time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	live := w.prune(key, now)
	if len(live) >= w.limit {
		return false, len(live), live[0].Add(w.window).Sub(now)
	}

	live = append(live, now)
	w.attempts[key] = live
	return true, len(live), 0
}

// Count returns the attempts for key still inside the window at now.
func (w *AttemptWindow) Count(key string, now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.prune(key, now))
}

// Snapshot returns every key with at least one live attempt.
func (w *AttemptWindow) Snapshot(now time.Time) map[string]WindowSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make(map[string]WindowSnapshot, len(w.attempts))
	for key := range w.attempts {
		live := w.prune(key, now)
		if len(live) == 0 {
			continue
		}
		out[key] = WindowSnapshot{Count: len(live), WindowStart: live[0]}
	}
	return out
}

// Window returns the configured window length.
func (w *AttemptWindow) Window() time.Duration { return w.window }

// Limit returns the configured attempt limit.
func (w *AttemptWindow) Limit() int { return w.limit }

// prune drops attempts older than the window and forgets empty keys.
// Must be called with lock held.
func (w *AttemptWindow) prune(key string, now time.Time) []time.Time {
	times, exists := w.attempts[key]
	if !exists {
		return nil
	}

	cutoff := now.Add(-w.window)
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	times = times[i:]

	if len(times) == 0 {
		delete(w.attempts, key)
		return nil
	}
	w.attempts[key] = times
	return times
}

// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

/*
Package cache provides the bounded in-memory structures courier keeps
between requests.

# RecencySet

A capacity-bounded set of chat record ids with FIFO eviction. The
synchronizer marks every record it emits so a record seen by both the
file-notification path and the poll path is published once.

	seen := cache.NewRecencySet(cache.DefaultRecencyCapacity)
	if seen.AddIfAbsent(recordID) {
	    publish(record)
	}

# AttemptWindow

An exact per-key sliding log used to limit fallbacks per recipient.
Reserve records an attempt only when the key is under its limit inside the
window, so the check and the increment happen atomically.

	window := cache.NewAttemptWindow(time.Hour, 3)
	if ok, _, retryAfter := window.Reserve(recipient, now); !ok {
	    // rate limited for retryAfter
	}

Both types are safe for concurrent use and use only the standard library.
*/
package cache

// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package store

import "time"

// appleEpoch is 2001-01-01T00:00:00Z, the reference date of the chat database.
var appleEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// nanosecondThreshold separates nanosecond timestamps (current schema) from
// second timestamps (pre-2017 databases).
const nanosecondThreshold = 1_000_000_000_000

// fromAppleTime converts a chat database timestamp. Zero means unset.
func fromAppleTime(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	if v < nanosecondThreshold {
		return appleEpoch.Add(time.Duration(v) * time.Second)
	}
	return appleEpoch.Add(time.Duration(v))
}

// toAppleTime converts t to nanoseconds since the Apple epoch.
func toAppleTime(t time.Time) int64 {
	return t.Sub(appleEpoch).Nanoseconds()
}

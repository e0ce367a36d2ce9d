// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package sync

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/courier/internal/metrics"
	"github.com/tomtom215/courier/internal/models"
)

// ErrMissingCorrelationID is returned by Register for an entry without an id.
var ErrMissingCorrelationID = errors.New("correlation id is required")

// Correlator holds optimistic local sends until their store record shows up.
//
// An outbound record matches a pending entry when the recipient and text are
// equal and the record's timestamp is within the tolerance of the entry's
// creation time. Entries that never match expire after the TTL.
type Correlator struct {
	mu        sync.Mutex
	pending   map[string]models.PendingCorrelation
	tolerance time.Duration
	ttl       time.Duration

	now func() time.Time
}

// NewCorrelator creates a correlator. Zero values use a 5s tolerance and a 2m TTL.
func NewCorrelator(tolerance, ttl time.Duration) *Correlator {
	if tolerance <= 0 {
		tolerance = 5 * time.Second
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Correlator{
		pending:   make(map[string]models.PendingCorrelation),
		tolerance: tolerance,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Register adds or replaces a pending entry. CreatedAt defaults to now.
func (c *Correlator) Register(p models.PendingCorrelation) error {
	if p.CorrelationID == "" {
		return ErrMissingCorrelationID
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = c.now()
	}

	c.mu.Lock()
	c.pending[p.CorrelationID] = p
	n := len(c.pending)
	c.mu.Unlock()

	metrics.PendingCorrelations.Set(float64(n))
	return nil
}

// Match finds the pending entry closest in time to an outbound record and
// removes it. It returns the correlation id and whether one matched.
func (c *Correlator) Match(handle, text string, at time.Time) (string, bool) {
	handle = models.NormalizeHandle(handle)
	text = strings.TrimSpace(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		bestID    string
		bestDelta time.Duration
	)
	for id, p := range c.pending {
		if models.NormalizeHandle(p.RecipientID) != handle || strings.TrimSpace(p.Text) != text {
			continue
		}
		delta := at.Sub(p.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta > c.tolerance {
			continue
		}
		if bestID == "" || delta < bestDelta || (delta == bestDelta && id < bestID) {
			bestID, bestDelta = id, delta
		}
	}

	if bestID == "" {
		return "", false
	}
	delete(c.pending, bestID)
	metrics.PendingCorrelations.Set(float64(len(c.pending)))
	return bestID, true
}

// Sweep drops entries older than the TTL and returns how many it removed.
func (c *Correlator) Sweep() int {
	cutoff := c.now().Add(-c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, p := range c.pending {
		if p.CreatedAt.Before(cutoff) {
			delete(c.pending, id)
			removed++
		}
	}
	metrics.PendingCorrelations.Set(float64(len(c.pending)))
	return removed
}

// Pending returns a snapshot of the outstanding entries, oldest first.
func (c *Correlator) Pending() []models.PendingCorrelation {
	c.mu.Lock()
	out := make([]models.PendingCorrelation, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, p)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CorrelationID < out[j].CorrelationID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of outstanding entries.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

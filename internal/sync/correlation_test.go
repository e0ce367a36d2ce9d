// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package sync

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/courier/internal/metrics"
	"github.com/tomtom215/courier/internal/models"
)

func newTestCorrelator() *Correlator {
	c := NewCorrelator(5*time.Second, 2*time.Minute)
	c.now = func() time.Time { return testNow }
	return c
}

func mustRegister(t *testing.T, c *Correlator, p models.PendingCorrelation) {
	t.Helper()
	if err := c.Register(p); err != nil {
		t.Fatalf("Register(%s): %v", p.CorrelationID, err)
	}
}

func TestCorrelator_Register(t *testing.T) {
	c := newTestCorrelator()

	if err := c.Register(models.PendingCorrelation{RecipientID: "R", Text: "hi"}); !errors.Is(err, ErrMissingCorrelationID) {
		t.Errorf("err = %v, want ErrMissingCorrelationID", err)
	}

	if err := c.Register(models.PendingCorrelation{CorrelationID: "abc", RecipientID: "R", Text: "hi"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	pending := c.Pending()
	if len(pending) != 1 || !pending[0].CreatedAt.Equal(testNow) {
		t.Errorf("pending = %+v, want CreatedAt defaulted to now", pending)
	}
	if got := testutil.ToFloat64(metrics.PendingCorrelations); got != 1 {
		t.Errorf("pending gauge = %v, want 1", got)
	}
}

func TestCorrelator_Match(t *testing.T) {
	tests := []struct {
		name   string
		handle string
		text   string
		offset time.Duration
		wantID string
		wantOK bool
	}{
		{"exact", "+15551234567", "hi", 2 * time.Second, "abc", true},
		{"record before send", "+15551234567", "hi", -3 * time.Second, "abc", true},
		{"formatted phone", "+1 (555) 123-4567", "hi", time.Second, "abc", true},
		{"surrounding whitespace", "+15551234567", "  hi\n", time.Second, "abc", true},
		{"outside tolerance", "+15551234567", "hi", 6 * time.Second, "", false},
		{"different text", "+15551234567", "hello", time.Second, "", false},
		{"different recipient", "+15550000000", "hi", time.Second, "", false},
		{"email case", "Friend@Example.com", "see you", 0, "mail", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCorrelator()
			mustRegister(t, c, models.PendingCorrelation{CorrelationID: "abc", RecipientID: "+15551234567", Text: "hi", CreatedAt: testNow})
			mustRegister(t, c, models.PendingCorrelation{CorrelationID: "mail", RecipientID: "friend@example.com", Text: "see you", CreatedAt: testNow})

			id, ok := c.Match(tt.handle, tt.text, testNow.Add(tt.offset))
			if id != tt.wantID || ok != tt.wantOK {
				t.Fatalf("Match() = (%q, %v), want (%q, %v)", id, ok, tt.wantID, tt.wantOK)
			}
			if ok && c.Len() != 1 {
				t.Errorf("Len = %d after match, want 1", c.Len())
			}
			if !ok && c.Len() != 2 {
				t.Errorf("Len = %d after miss, want 2", c.Len())
			}
		})
	}
}

func TestCorrelator_MatchPrefersClosest(t *testing.T) {
	c := newTestCorrelator()
	mustRegister(t, c, models.PendingCorrelation{CorrelationID: "first", RecipientID: "R", Text: "ok", CreatedAt: testNow})
	mustRegister(t, c, models.PendingCorrelation{CorrelationID: "second", RecipientID: "R", Text: "ok", CreatedAt: testNow.Add(4 * time.Second)})

	if id, _ := c.Match("R", "ok", testNow.Add(3*time.Second)); id != "second" {
		t.Errorf("first match = %q, want second", id)
	}
	if id, _ := c.Match("R", "ok", testNow.Add(3*time.Second)); id != "first" {
		t.Errorf("second match = %q, want first", id)
	}
	if _, ok := c.Match("R", "ok", testNow); ok {
		t.Error("matched after both entries were consumed")
	}
}

func TestCorrelator_Sweep(t *testing.T) {
	c := newTestCorrelator()
	mustRegister(t, c, models.PendingCorrelation{CorrelationID: "stale", RecipientID: "R", Text: "a", CreatedAt: testNow.Add(-3 * time.Minute)})
	mustRegister(t, c, models.PendingCorrelation{CorrelationID: "fresh", RecipientID: "R", Text: "b", CreatedAt: testNow.Add(-time.Minute)})

	if removed := c.Sweep(); removed != 1 {
		t.Errorf("Sweep removed %d, want 1", removed)
	}
	pending := c.Pending()
	if len(pending) != 1 || pending[0].CorrelationID != "fresh" {
		t.Errorf("pending = %+v, want only fresh", pending)
	}
	if got := testutil.ToFloat64(metrics.PendingCorrelations); got != 1 {
		t.Errorf("pending gauge = %v, want 1", got)
	}
}

func TestCorrelator_PendingOrder(t *testing.T) {
	c := newTestCorrelator()
	mustRegister(t, c, models.PendingCorrelation{CorrelationID: "b", RecipientID: "R", Text: "x", CreatedAt: testNow})
	mustRegister(t, c, models.PendingCorrelation{CorrelationID: "c", RecipientID: "R", Text: "x", CreatedAt: testNow.Add(-time.Second)})
	mustRegister(t, c, models.PendingCorrelation{CorrelationID: "a", RecipientID: "R", Text: "x", CreatedAt: testNow})

	var ids []string
	for _, p := range c.Pending() {
		ids = append(ids, p.CorrelationID)
	}
	if len(ids) != 3 || ids[0] != "c" || ids[1] != "a" || ids[2] != "b" {
		t.Errorf("order = %v, want [c a b]", ids)
	}
}

func TestNewCorrelator_Defaults(t *testing.T) {
	c := NewCorrelator(0, 0)
	if c.tolerance != 5*time.Second || c.ttl != 2*time.Minute {
		t.Errorf("defaults = %v / %v", c.tolerance, c.ttl)
	}
}

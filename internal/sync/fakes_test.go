// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package sync

import (
	"context"
	"encoding/binary"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/courier/internal/config"
	"github.com/tomtom215/courier/internal/models"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// fakeSource is an in-memory message store.
type fakeSource struct {
	mu           sync.Mutex
	records      []models.DeliveryRecord
	head         int64
	queryErr     error
	ignoreCursor bool
	queries      int
	getRecord    func(call int, seq int64) (*models.DeliveryRecord, error)
	getCalls     int
}

func (s *fakeSource) add(records ...models.DeliveryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	sort.Slice(s.records, func(i, j int) bool { return s.records[i].SequenceID < s.records[j].SequenceID })
}

func (s *fakeSource) QueryNewRecords(_ context.Context, after int64, limit int) ([]models.DeliveryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []models.DeliveryRecord
	for _, r := range s.records {
		if !s.ignoreCursor && r.SequenceID <= after {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeSource) GetRecord(_ context.Context, seq int64) (*models.DeliveryRecord, error) {
	s.mu.Lock()
	s.getCalls++
	call := s.getCalls
	fn := s.getRecord
	s.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(call, seq)
}

func (s *fakeSource) MaxSequenceID(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head, nil
}

// fakePublisher collects published events.
type fakePublisher struct {
	mu     sync.Mutex
	msgs   []models.NewMessage
	failID string
	err    error
}

func (p *fakePublisher) PublishNewMessage(_ context.Context, msg models.NewMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failID != "" && msg.RecordID == p.failID {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakePublisher) published() []models.NewMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.NewMessage, len(p.msgs))
	copy(out, p.msgs)
	return out
}

func (p *fakePublisher) byID() map[string]models.NewMessage {
	out := make(map[string]models.NewMessage)
	for _, m := range p.published() {
		out[m.RecordID] = m
	}
	return out
}

// fakeCursors is a CursorStore that records every save.
type fakeCursors struct {
	mu      sync.Mutex
	cursor  models.SyncCursor
	exists  bool
	saves   []int64
	saveErr error
}

func (c *fakeCursors) Load(context.Context) (models.SyncCursor, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor, c.exists, nil
}

func (c *fakeCursors) Save(_ context.Context, cursor models.SyncCursor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.saveErr != nil {
		return c.saveErr
	}
	c.cursor = cursor
	c.exists = true
	c.saves = append(c.saves, cursor.LastProcessedSequenceID)
	return nil
}

func (c *fakeCursors) saved() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, len(c.saves))
	copy(out, c.saves)
	return out
}

type fakeResolver struct {
	fail map[string]error
}

func (r *fakeResolver) Resolve(_ context.Context, ref models.AttachmentRef) (models.AttachmentRef, error) {
	if err := r.fail[ref.ID]; err != nil {
		return ref, err
	}
	ref.ResolvedURL = "file://" + ref.Filename
	return ref, nil
}

type harness struct {
	mgr       *Manager
	source    *fakeSource
	publisher *fakePublisher
	cursors   *fakeCursors
	sleeps    []time.Duration
	sleepMu   sync.Mutex
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		Enabled:              true,
		PollInterval:         time.Hour,
		BatchLimit:           100,
		RecencyCapacity:      1000,
		Concurrency:          3,
		RefetchAttempts:      3,
		RefetchDelay:         time.Second,
		RefetchMaxAge:        5 * time.Minute,
		CorrelationTolerance: 5 * time.Second,
		CorrelationTTL:       2 * time.Minute,
	}
}

func newHarness(t *testing.T, cfg config.SyncConfig, deps Dependencies) *harness {
	t.Helper()

	h := &harness{
		source:    &fakeSource{},
		publisher: &fakePublisher{},
		cursors:   &fakeCursors{exists: true},
	}
	if deps.Source == nil {
		deps.Source = h.source
	}
	if deps.Cursors == nil {
		deps.Cursors = h.cursors
	}
	if deps.Publisher == nil {
		deps.Publisher = h.publisher
	}
	deps.Logger = zerolog.Nop()

	mgr, err := NewManager(&cfg, deps)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	mgr.now = func() time.Time { return testNow }
	mgr.correlator.now = func() time.Time { return testNow }
	mgr.sleep = func(ctx context.Context, d time.Duration) error {
		h.sleepMu.Lock()
		h.sleeps = append(h.sleeps, d)
		h.sleepMu.Unlock()
		return ctx.Err()
	}
	mgr.persistRetry.BaseDelay = time.Millisecond
	mgr.persistRetry.MaxDelay = time.Millisecond
	h.mgr = mgr
	return h
}

func inbound(seq int64, id, text string) models.DeliveryRecord {
	return models.DeliveryRecord{
		RecordID:   id,
		SequenceID: seq,
		Direction:  models.DirectionInbound,
		Text:       text,
		Handle:     "+15550001",
		SentAt:     testNow.Add(-time.Hour),
	}
}

// archived builds a minimal typedstream attributed body around text.
func archived(text string) []byte {
	b := []byte("\x04\x0bstreamtyped\x81\xe8\x03\x84\x01@\x84\x84\x84\x12NSAttributedString\x00\x84\x84\x08NSObject\x00\x85\x92\x84\x84\x84\x08NSString\x01\x94\x84\x01+")
	switch n := len(text); {
	case n < 0x80:
		b = append(b, byte(n))
	default:
		b = append(b, 0x81)
		b = binary.LittleEndian.AppendUint16(b, uint16(n))
	}
	b = append(b, text...)
	b = append(b, 0x86, 0x84, 0x02, 'i', 'I', 0x01)
	return b
}

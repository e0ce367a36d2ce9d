// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package delivery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/courier/internal/models"
	"github.com/tomtom215/courier/internal/resilience"
)

// fakeChannel returns errs in order, then always, then nil.
type fakeChannel struct {
	kind   models.ChannelKind
	errs   []error
	always error

	mu       sync.Mutex
	requests []models.SendRequest
}

func (f *fakeChannel) Kind() models.ChannelKind { return f.kind }

func (f *fakeChannel) Send(_ context.Context, req models.SendRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.requests)
	f.requests = append(f.requests, req)
	if idx < len(f.errs) {
		return f.errs[idx]
	}
	return f.always
}

func (f *fakeChannel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeChannel) lastRequest() models.SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return models.SendRequest{}
	}
	return f.requests[len(f.requests)-1]
}

// fakeLookup serves scripted store answers.
type fakeLookup struct {
	mu          sync.Mutex
	find        func(call int) (*models.DeliveryRecord, error)
	status      func(call int, recordID string) (*models.DeliveryRecord, error)
	findCalls   int
	statusCalls int
	recipients  []string
}

func (f *fakeLookup) FindRecentOutbound(_ context.Context, recipient, _ string, _ time.Duration) (*models.DeliveryRecord, error) {
	f.mu.Lock()
	call := f.findCalls
	f.findCalls++
	f.recipients = append(f.recipients, recipient)
	f.mu.Unlock()
	if f.find == nil {
		return nil, nil
	}
	return f.find(call)
}

func (f *fakeLookup) GetStatus(_ context.Context, recordID string) (*models.DeliveryRecord, error) {
	f.mu.Lock()
	call := f.statusCalls
	f.statusCalls++
	f.mu.Unlock()
	if f.status == nil {
		return nil, nil
	}
	return f.status(call, recordID)
}

func record(id string, status models.DeliveryStatus) *models.DeliveryRecord {
	return &models.DeliveryRecord{RecordID: id, Status: status, Direction: models.DirectionOutbound}
}

// findSequence answers successive lookups with the given records; the last
// one repeats.
func findSequence(records ...*models.DeliveryRecord) func(int) (*models.DeliveryRecord, error) {
	return func(call int) (*models.DeliveryRecord, error) {
		if call >= len(records) {
			call = len(records) - 1
		}
		return records[call], nil
	}
}

var (
	errUnavailable = errors.New("gateway unavailable")
	errRejected    = errors.New("recipient rejected")
)

func transient() error {
	return resilience.NewTransient("test", resilience.CodeServerError, errUnavailable)
}

func permanent() error {
	return resilience.NewPermanent("test", resilience.CodeInvalidRecipient, errRejected)
}

func fastPolicy(attempts int) resilience.RetryPolicy {
	return resilience.RetryPolicy{
		Attempts:  attempts,
		BaseDelay: time.Millisecond,
		MaxDelay:  5 * time.Millisecond,
		Retryable: resilience.IsTransient,
	}
}

func newTestBreakers(threshold uint32) *resilience.BreakerRegistry {
	return resilience.NewBreakerRegistry(resilience.BreakerConfig{
		FailureThreshold: threshold,
		ResetTimeout:     time.Minute,
	})
}

// pipeline bundles an engine with its fakes.
type pipeline struct {
	primary   *fakeChannel
	secondary *fakeChannel
	lookup    *fakeLookup
	sleeps    []time.Duration
	engine    *Engine
	fallback  *Coordinator
	clock     time.Time
}

type pipelineOptions struct {
	threshold uint32
	attempts  int
	noVerify  bool
}

func newPipeline(opts pipelineOptions) *pipeline {
	if opts.threshold == 0 {
		opts.threshold = 5
	}
	if opts.attempts == 0 {
		opts.attempts = 3
	}

	p := &pipeline{
		primary:   &fakeChannel{kind: models.ChannelPrimary},
		secondary: &fakeChannel{kind: models.ChannelSecondary},
		lookup:    &fakeLookup{},
		clock:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	logger := zerolog.Nop()

	executor := NewExecutor(NewChannelSet(p.primary, p.secondary), newTestBreakers(opts.threshold), fastPolicy(opts.attempts), logger)

	var verifier *Verifier
	if !opts.noVerify {
		verifier = NewVerifier(p.lookup, DefaultVerifierConfig(), logger)
		verifier.now = func() time.Time { return p.clock }
		verifier.sleep = func(ctx context.Context, d time.Duration) error {
			p.sleeps = append(p.sleeps, d)
			return ctx.Err()
		}
	}

	p.fallback = NewCoordinator(executor, DefaultFallbackConfig(), logger)
	p.fallback.now = func() time.Time { return p.clock }

	p.engine = NewEngine(executor, verifier, p.fallback, logger)
	p.engine.now = func() time.Time { return p.clock }
	return p
}

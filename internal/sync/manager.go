// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

/*
manager.go - Synchronizer Lifecycle and Triggers

The Manager owns the sync cursor and decides when a cycle runs. Cycles are
started by three sources:
  - startup: one cycle right after Start
  - notify: debounced file change notifications from the Watcher
  - poll: a fixed-interval ticker, for changes the watcher misses

Thread Safety:
  - triggerMu: only one cycle runs at a time, whatever started it
  - mu: protects running, cursor and lastSync
  - debounceMu: protects the debounce timer
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/courier/internal/cache"
	"github.com/tomtom215/courier/internal/config"
	"github.com/tomtom215/courier/internal/models"
	"github.com/tomtom215/courier/internal/resilience"
)

// RecordSource is the read side of the message store used by the synchronizer.
type RecordSource interface {
	QueryNewRecords(ctx context.Context, afterSequenceID int64, limit int) ([]models.DeliveryRecord, error)
	GetRecord(ctx context.Context, sequenceID int64) (*models.DeliveryRecord, error)
	MaxSequenceID(ctx context.Context) (int64, error)
}

// Publisher receives every emitted NewMessage.
type Publisher interface {
	PublishNewMessage(ctx context.Context, msg models.NewMessage) error
}

// CursorStore persists the sync cursor between restarts.
type CursorStore interface {
	// Load returns the saved cursor and whether one existed.
	Load(ctx context.Context) (models.SyncCursor, bool, error)
	Save(ctx context.Context, cursor models.SyncCursor) error
}

// Dependencies are the collaborators of a Manager. Source, Cursors and
// Publisher are required.
type Dependencies struct {
	Source     RecordSource
	Cursors    CursorStore
	Publisher  Publisher
	Resolver   AttachmentResolver // nil leaves attachments unresolved
	Correlator *Correlator        // nil creates one from the sync config
	WatchPath  string             // empty disables file notifications
	Logger     zerolog.Logger
}

// Manager runs the message synchronizer.
type Manager struct {
	cfg        config.SyncConfig
	source     RecordSource
	cursors    CursorStore
	publisher  Publisher
	resolver   AttachmentResolver
	correlator *Correlator
	seen       *cache.RecencySet
	watchPath  string
	logger     zerolog.Logger

	mu           sync.RWMutex
	running      bool
	cursor       int64
	cursorLoaded bool
	lastSync     time.Time

	triggerMu sync.Mutex

	debounceMu sync.Mutex
	debounce   *time.Timer

	kick     chan struct{}
	stopChan chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	persistRetry resilience.RetryPolicy
}

// NewManager creates a synchronizer. It does not touch the store until Start
// or TriggerSync.
//
//nolint:gocritic // Dependencies is passed by value to keep construction sites short
func NewManager(cfg *config.SyncConfig, deps Dependencies) (*Manager, error) {
	if deps.Source == nil {
		return nil, errors.New("sync manager requires a record source")
	}
	if deps.Cursors == nil {
		return nil, errors.New("sync manager requires a cursor store")
	}
	if deps.Publisher == nil {
		return nil, errors.New("sync manager requires a publisher")
	}

	c := *cfg
	if c.BatchLimit <= 0 {
		c.BatchLimit = 200
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}

	correlator := deps.Correlator
	if correlator == nil {
		correlator = NewCorrelator(c.CorrelationTolerance, c.CorrelationTTL)
	}

	return &Manager{
		cfg:        c,
		source:     deps.Source,
		cursors:    deps.Cursors,
		publisher:  deps.Publisher,
		resolver:   deps.Resolver,
		correlator: correlator,
		seen:       cache.NewRecencySet(c.RecencyCapacity),
		watchPath:  deps.WatchPath,
		logger:     deps.Logger.With().Str("component", "synchronizer").Logger(),
		kick:       make(chan struct{}, 1),
		now:        time.Now,
		sleep:      sleepContext,
		persistRetry: resilience.RetryPolicy{
			Attempts:  3,
			BaseDelay: 100 * time.Millisecond,
			MaxDelay:  time.Second,
			Retryable: func(err error) bool { return !errors.Is(err, context.Canceled) },
		},
	}, nil
}

// Correlator returns the correlator used to tag outbound records.
func (m *Manager) Correlator() *Correlator {
	return m.correlator
}

// Start loads the cursor, runs one cycle and starts the trigger loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is already running")
	}
	m.running = true
	m.stopChan = make(chan struct{})
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.logger.Info().
		Dur("poll_interval", m.cfg.PollInterval).
		Dur("debounce", m.cfg.Debounce).
		Int("batch_limit", m.cfg.BatchLimit).
		Msg("Starting synchronizer...")

	if m.watchPath != "" {
		watcher, err := NewWatcher(m.watchPath, m.logger)
		if err != nil {
			// Polling still covers every change, just later.
			m.logger.Warn().Err(err).Msg("File notifications unavailable, relying on polling")
		} else {
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				watcher.Run(runCtx, m.Notify)
			}()
		}
	}

	m.wg.Add(1)
	go m.loop(runCtx)

	return nil
}

// Stop cancels in-flight work and waits for the current cycle to finish.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is not running")
	}
	m.running = false
	close(m.stopChan)
	cancel := m.cancel
	m.mu.Unlock()

	m.logger.Info().Msg("Stopping synchronizer...")

	m.debounceMu.Lock()
	if m.debounce != nil {
		m.debounce.Stop()
		m.debounce = nil
	}
	m.debounceMu.Unlock()

	cancel()
	m.wg.Wait()

	// Wait for a TriggerSync started outside the loop.
	m.triggerMu.Lock()
	m.triggerMu.Unlock() //nolint:staticcheck // empty critical section is a barrier

	m.logger.Info().Int64("cursor", m.Cursor()).Msg("Synchronizer stopped")
	return nil
}

// IsRunning reports whether Start has been called without a matching Stop.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Notify requests a cycle after the debounce delay. Calls inside the delay
// collapse into one cycle.
func (m *Manager) Notify() {
	if m.cfg.Debounce <= 0 {
		m.signal()
		return
	}

	m.debounceMu.Lock()
	defer m.debounceMu.Unlock()
	if m.debounce == nil {
		m.debounce = time.AfterFunc(m.cfg.Debounce, m.signal)
		return
	}
	m.debounce.Reset(m.cfg.Debounce)
}

func (m *Manager) signal() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// TriggerSync runs one cycle now. It blocks while another cycle is running.
func (m *Manager) TriggerSync(ctx context.Context) error {
	return m.runCycle(ctx, "manual")
}

// Cursor returns the last processed sequence id.
func (m *Manager) Cursor() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cursor
}

// LastSyncTime returns when the last cycle completed without a store error.
func (m *Manager) LastSyncTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSync
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()

	if err := m.runCycle(ctx, "startup"); err != nil && ctx.Err() == nil {
		m.logger.Warn().Err(err).Msg("Initial sync failed (will retry)")
	}

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.cycle(ctx, "poll")
		case <-m.kick:
			m.cycle(ctx, "notify")
		}
	}
}

func (m *Manager) cycle(ctx context.Context, source string) {
	if err := m.runCycle(ctx, source); err != nil && ctx.Err() == nil {
		m.logger.Warn().Err(err).Str("trigger", source).Msg("Sync cycle failed")
	}
}

// ensureCursor loads the persisted cursor once. Without a checkpoint the
// synchronizer starts at the store's current head so history is not replayed.
func (m *Manager) ensureCursor(ctx context.Context) error {
	m.mu.RLock()
	loaded := m.cursorLoaded
	m.mu.RUnlock()
	if loaded {
		return nil
	}

	saved, ok, err := m.cursors.Load(ctx)
	if err != nil {
		return fmt.Errorf("load sync cursor: %w", err)
	}

	start := saved.LastProcessedSequenceID
	if !ok {
		head, err := m.source.MaxSequenceID(ctx)
		if err != nil {
			return fmt.Errorf("read store head: %w", err)
		}
		start = head
		m.logger.Info().Int64("cursor", start).Msg("No checkpoint found, starting at store head")
		m.persistCursor(ctx, start)
	} else {
		m.logger.Info().Int64("cursor", start).Msg("Resuming from checkpoint")
	}

	m.mu.Lock()
	if start > m.cursor {
		m.cursor = start
	}
	m.cursorLoaded = true
	m.mu.Unlock()
	return nil
}

// advanceCursor moves the cursor forward and reports whether it moved.
func (m *Manager) advanceCursor(seq int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq <= m.cursor {
		return false
	}
	m.cursor = seq
	return true
}

func (m *Manager) persistCursor(ctx context.Context, seq int64) {
	policy := m.persistRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		m.logger.Warn().Err(err).Int("attempt", attempt+1).Dur("delay", delay).Msg("Retrying checkpoint write")
	}

	_, err := resilience.Retry(ctx, policy, func(ctx context.Context, _ int) error {
		return m.cursors.Save(ctx, models.SyncCursor{LastProcessedSequenceID: seq})
	})
	if err != nil {
		recordCheckpointError()
		m.logger.Error().Err(err).Int64("cursor", seq).Msg("Failed to persist sync cursor")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

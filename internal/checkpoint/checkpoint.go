// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

/*
Package checkpoint persists the synchronizer's cursor in BadgerDB.

The cursor is stored as JSON under a single key. Saves never move the stored
cursor backwards, so a late write from a slow cycle cannot undo progress made
by a newer one. With InMemory set, BadgerDB runs without touching disk and the
cursor is lost on restart.
*/
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/courier/internal/config"
	"github.com/tomtom215/courier/internal/models"
)

// cursorKey is the badger key holding the sync cursor.
const cursorKey = "sync.cursor"

// ErrClosed is returned for operations on a closed store.
var ErrClosed = errors.New("checkpoint store is closed")

// record is the stored form of the cursor.
type record struct {
	Cursor    models.SyncCursor `json:"cursor"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// BadgerStore keeps the sync cursor in BadgerDB.
type BadgerStore struct {
	db       *badger.DB
	inMemory bool
	logger   zerolog.Logger

	mu     sync.RWMutex
	closed bool

	now func() time.Time
}

// Open opens (or creates) the checkpoint database.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Open(cfg *config.CheckpointConfig, logger zerolog.Logger) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("checkpoint path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
		opts.SyncWrites = true
	}

	// The cursor is a few bytes; keep badger's footprint small.
	opts.MemTableSize = 1 << 20
	opts.ValueLogFileSize = 1 << 20
	opts.ValueThreshold = 1 << 10
	opts.NumCompactors = 2
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}

	s := &BadgerStore{
		db:       db,
		inMemory: cfg.InMemory,
		logger:   logger.With().Str("component", "checkpoint").Logger(),
		now:      time.Now,
	}
	s.logger.Info().Str("path", cfg.Path).Bool("in_memory", cfg.InMemory).Msg("Checkpoint store opened")
	return s, nil
}

// Load returns the stored cursor and whether one exists.
func (s *BadgerStore) Load(ctx context.Context) (models.SyncCursor, bool, error) {
	if err := s.check(ctx); err != nil {
		return models.SyncCursor{}, false, err
	}

	var (
		rec   record
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, found, err = readRecord(txn)
		return err
	})
	if err != nil {
		return models.SyncCursor{}, false, fmt.Errorf("load cursor: %w", err)
	}
	return rec.Cursor, found, nil
}

// Save stores cursor unless the stored one is already further along.
func (s *BadgerStore) Save(ctx context.Context, cursor models.SyncCursor) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		current, found, err := readRecord(txn)
		if err != nil {
			return err
		}
		if found && current.Cursor.LastProcessedSequenceID > cursor.LastProcessedSequenceID {
			s.logger.Debug().
				Int64("stored", current.Cursor.LastProcessedSequenceID).
				Int64("requested", cursor.LastProcessedSequenceID).
				Msg("Ignoring cursor regression")
			return nil
		}

		data, err := json.Marshal(record{Cursor: cursor, UpdatedAt: s.now().UTC()})
		if err != nil {
			return fmt.Errorf("marshal cursor: %w", err)
		}
		return txn.Set([]byte(cursorKey), data)
	})
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// UpdatedAt returns when the cursor was last written, or the zero time.
func (s *BadgerStore) UpdatedAt(ctx context.Context) (time.Time, error) {
	if err := s.check(ctx); err != nil {
		return time.Time{}, err
	}
	var rec record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, _, err = readRecord(txn)
		return err
	})
	return rec.UpdatedAt, err
}

// Close flushes and closes the database. Calling it twice is a no-op.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close checkpoint store: %w", err)
	}
	return nil
}

func (s *BadgerStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func readRecord(txn *badger.Txn) (record, bool, error) {
	var rec record
	item, err := txn.Get([]byte(cursorKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return rec, false, fmt.Errorf("decode cursor: %w", err)
	}
	return rec, true, nil
}

// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package sync

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reports writes to the chat database and its WAL files.
//
// SQLite in WAL mode appends to chat.db-wal long before the main file
// changes, so the whole directory is watched and events are filtered by
// base name.
type Watcher struct {
	watcher *fsnotify.Watcher
	dir     string
	base    string
	logger  zerolog.Logger
}

// NewWatcher watches the directory containing dbPath.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewWatcher(dbPath string, logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	dir := filepath.Dir(dbPath)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close() //nolint:errcheck // already returning the Add error
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		watcher: fw,
		dir:     dir,
		base:    filepath.Base(dbPath),
		logger:  logger.With().Str("component", "sync_watcher").Logger(),
	}, nil
}

// Run calls onChange for every relevant write until ctx is done, then
// closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context, onChange func()) {
	defer func() {
		if err := w.watcher.Close(); err != nil {
			w.logger.Warn().Err(err).Msg("Failed to close file watcher")
		}
	}()

	w.logger.Info().Str("dir", w.dir).Str("file", w.base).Msg("Watching message store for changes")

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				onChange()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("File watcher error")
		}
	}
}

// relevant keeps writes and creates of the database, -wal and -shm files.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	name := filepath.Base(event.Name)
	return name == w.base || strings.HasPrefix(name, w.base+"-")
}

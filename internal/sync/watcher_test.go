// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package sync

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

func TestWatcher_Relevant(t *testing.T) {
	w := &Watcher{base: "chat.db"}

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"database write", fsnotify.Event{Name: "/m/chat.db", Op: fsnotify.Write}, true},
		{"wal write", fsnotify.Event{Name: "/m/chat.db-wal", Op: fsnotify.Write}, true},
		{"shm create", fsnotify.Event{Name: "/m/chat.db-shm", Op: fsnotify.Create}, true},
		{"unrelated file", fsnotify.Event{Name: "/m/other.db", Op: fsnotify.Write}, false},
		{"similar prefix", fsnotify.Event{Name: "/m/chat.dbx", Op: fsnotify.Write}, false},
		{"chmod only", fsnotify.Event{Name: "/m/chat.db", Op: fsnotify.Chmod}, false},
		{"remove", fsnotify.Event{Name: "/m/chat.db-wal", Op: fsnotify.Remove}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.relevant(tt.event); got != tt.want {
				t.Errorf("relevant(%v) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

func TestWatcher_ReportsWALWrites(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "chat.db")

	w, err := NewWatcher(dbPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var changes atomic.Int32
	go func() {
		defer close(done)
		w.Run(ctx, func() { changes.Add(1) })
	}()

	if err := os.WriteFile(dbPath+"-wal", []byte("frame"), 0o600); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return changes.Load() > 0 })

	cancel()
	<-done
}

func TestNewWatcher_MissingDirectory(t *testing.T) {
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "nope", "chat.db"), zerolog.Nop()); err == nil {
		t.Error("expected error for a missing directory")
	}
}

// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

type fakeSyncManager struct {
	startErr error
	stopErr  error
	starts   atomic.Int32
	stops    atomic.Int32
	started  chan struct{}
}

func newFakeSyncManager() *fakeSyncManager {
	return &fakeSyncManager{started: make(chan struct{}, 8)}
}

func (m *fakeSyncManager) Start(context.Context) error {
	m.starts.Add(1)
	if m.startErr != nil {
		return m.startErr
	}
	m.started <- struct{}{}
	return nil
}

func (m *fakeSyncManager) Stop() error {
	m.stops.Add(1)
	return m.stopErr
}

var _ suture.Service = (*SyncService)(nil)

func TestSyncService_Serve(t *testing.T) {
	t.Run("starts then stops on cancel", func(t *testing.T) {
		mgr := newFakeSyncManager()
		svc := NewSyncService(mgr)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Serve(ctx) }()

		select {
		case <-mgr.started:
		case <-time.After(time.Second):
			t.Fatal("manager was not started")
		}
		if mgr.stops.Load() != 0 {
			t.Error("manager stopped before cancellation")
		}

		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
		if mgr.stops.Load() != 1 {
			t.Errorf("Stop called %d times, want 1", mgr.stops.Load())
		}
	})

	t.Run("start failure returned without stop", func(t *testing.T) {
		mgr := newFakeSyncManager()
		mgr.startErr = errors.New("chat.db locked")

		err := NewSyncService(mgr).Serve(context.Background())
		if !errors.Is(err, mgr.startErr) {
			t.Errorf("Serve() = %v, want wrapped start error", err)
		}
		if mgr.stops.Load() != 0 {
			t.Error("Stop called after failed Start")
		}
	})

	t.Run("stop failure returned", func(t *testing.T) {
		mgr := newFakeSyncManager()
		mgr.stopErr = errors.New("checkpoint flush failed")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := NewSyncService(mgr).Serve(ctx); !errors.Is(err, mgr.stopErr) {
			t.Errorf("Serve() = %v, want wrapped stop error", err)
		}
	})
}

func TestSyncService_RestartedBySupervisor(t *testing.T) {
	mgr := newFakeSyncManager()
	mgr.startErr = errors.New("not ready")

	sup := suture.New("test", suture.Spec{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          time.Second,
	})
	sup.Add(NewSyncService(mgr))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for mgr.starts.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-errCh

	if got := mgr.starts.Load(); got < 3 {
		t.Errorf("Start called %d times, want restarts", got)
	}
}

func TestSyncService_String(t *testing.T) {
	if got := NewSyncService(newFakeSyncManager()).String(); got != "chat-sync" {
		t.Errorf("String() = %q, want chat-sync", got)
	}
}

// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package services

import (
	"context"
	"fmt"
)

// StartStopManager is the lifecycle exposed by *sync.Manager.
type StartStopManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// SyncService adapts the chat store sync manager to suture.
//
// Start spawns the watcher and polling goroutines and returns. Stop waits for
// them, so a returned Serve always leaves no sync goroutines behind.
type SyncService struct {
	manager StartStopManager
	name    string
}

// NewSyncService wraps manager as the "chat-sync" service.
func NewSyncService(manager StartStopManager) *SyncService {
	return &SyncService{
		manager: manager,
		name:    "chat-sync",
	}
}

// Serve implements suture.Service. A failed Start is returned so the data
// layer can back off and retry, e.g. while chat.db is still locked.
func (s *SyncService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("%s start: %w", s.name, err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("%s stop: %w", s.name, err)
	}
	return ctx.Err()
}

// String names the service in supervisor events.
func (s *SyncService) String() string {
	return s.name
}

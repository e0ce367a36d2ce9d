// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package cache

import "sync"

// DefaultRecencyCapacity bounds the number of record ids remembered by default.
const DefaultRecencyCapacity = 5000

type recencyEntry struct {
	id   string
	prev *recencyEntry
	next *recencyEntry
}

// RecencySet is a bounded, thread-safe set of record ids that evicts the
// oldest insertion when full. Membership checks do not refresh an entry.
//
// The notification and poll paths of the synchronizer can both see the same
// record; AddIfAbsent marks an id in one step so only one of them wins.
type RecencySet struct {
	mu sync.Mutex

	capacity int
	items    map[string]*recencyEntry

	// head.next is the newest id, tail.prev the oldest
	head *recencyEntry
	tail *recencyEntry

	evictions int64
}

// NewRecencySet creates a set holding at most capacity ids.
func NewRecencySet(capacity int) *RecencySet {
	if capacity <= 0 {
		capacity = DefaultRecencyCapacity
	}

	s := &RecencySet{
		capacity: capacity,
		items:    make(map[string]*recencyEntry, capacity),
		head:     &recencyEntry{},
		tail:     &recencyEntry{},
	}
	s.head.next = s.tail
	s.tail.prev = s.head
	return s
}

// AddIfAbsent records id and returns true, or returns false if id is
// already present.
func (s *RecencySet) AddIfAbsent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		return false
	}

	entry := &recencyEntry{id: id}
	s.addToFront(entry)
	s.items[id] = entry

	for len(s.items) > s.capacity {
		s.evictOldest()
	}
	return true
}

// Contains reports whether id is present.
func (s *RecencySet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.items[id]
	return exists
}

// Remove forgets id. Returns true if it was present.
func (s *RecencySet) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, exists := s.items[id]; exists {
		s.removeEntry(entry)
		return true
	}
	return false
}

// Len returns the number of ids held.
func (s *RecencySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Evictions returns how many ids have been pushed out by capacity.
func (s *RecencySet) Evictions() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictions
}

// Internal methods (must be called with lock held)

func (s *RecencySet) addToFront(entry *recencyEntry) {
	entry.prev = s.head
	entry.next = s.head.next
	s.head.next.prev = entry
	s.head.next = entry
}

func (s *RecencySet) removeEntry(entry *recencyEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(s.items, entry.id)
}

func (s *RecencySet) evictOldest() {
	oldest := s.tail.prev
	if oldest == s.head {
		return
	}
	s.removeEntry(oldest)
	s.evictions++
}

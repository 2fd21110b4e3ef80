package mcp

import (
	"log"
	"sync"
)

// Store is a worker-scoped registry of per-session connection managers.
// Created once at worker startup and shared across activities, so that the
// toolset subprocesses started for a session outlive any single activity.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*ConnectionManager
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*ConnectionManager),
	}
}

// GetOrCreate returns the manager for a session, creating it on first use.
func (s *Store) GetOrCreate(sessionID string) *ConnectionManager {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mgr, ok := s.sessions[sessionID]; ok {
		return mgr
	}
	mgr := NewConnectionManager()
	s.sessions[sessionID] = mgr
	return mgr
}

// Get returns the manager for a session, or nil if not found.
func (s *Store) Get(sessionID string) *ConnectionManager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sessionID]
}

// Remove closes and forgets the manager for a session.
func (s *Store) Remove(sessionID string) {
	s.mu.Lock()
	mgr, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	if ok {
		mgr.Close()
		log.Printf("mcp: cleaned up session %s", sessionID)
	}
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Package memory provides an in-memory ReportWriter used in tests and
// when no external report sink is configured.
package memory

import (
	"context"
	"sync"

	"contabile/internal/export"
)

type Store struct {
	mu        sync.Mutex
	snapshots []export.Snapshot
}

var _ export.ReportWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// WriteSnapshot stores the snapshot.
func (s *Store) WriteSnapshot(_ context.Context, snap export.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	return nil
}

// Snapshots returns a copy of everything written so far.
func (s *Store) Snapshots() []export.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]export.Snapshot(nil), s.snapshots...)
}

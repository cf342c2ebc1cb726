package repository

import (
	"sync"
	"time"

	"github.com/rebel7/certserver/internal/models"
)

// InMemoryAuditStore collects audit entries in memory. Used in tests and
// when no database is configured.
type InMemoryAuditStore struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

// NewInMemoryAuditStore creates an empty in-memory audit store
func NewInMemoryAuditStore() *InMemoryAuditStore {
	return &InMemoryAuditStore{}
}

// Create appends an audit entry
func (s *InMemoryAuditStore) Create(log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.ID = int64(len(s.entries) + 1)
	log.Timestamp = time.Now()
	s.entries = append(s.entries, log)
	return nil
}

// Entries returns a snapshot of everything recorded so far
func (s *InMemoryAuditStore) Entries() []*models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.AuditLog, len(s.entries))
	copy(out, s.entries)
	return out
}

package repository

import (
	"sync"

	"github.com/rebel7/certserver/internal/models"
)

// InMemoryCertStore is a map-backed certificate store with the same
// contract as CertRepository. Used by handler tests and by deployments
// that have not configured a database yet.
type InMemoryCertStore struct {
	mu    sync.RWMutex
	certs map[string]*models.StoredCertificate
}

// NewInMemoryCertStore creates an empty in-memory store
func NewInMemoryCertStore() *InMemoryCertStore {
	return &InMemoryCertStore{
		certs: make(map[string]*models.StoredCertificate),
	}
}

// Insert stores a record keyed by certificate_code, rejecting duplicates
// with ErrDuplicateCode.
func (s *InMemoryCertStore) Insert(rec *models.StoredCertificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.certs[rec.CertificateCode]; exists {
		return ErrDuplicateCode
	}

	clone := *rec
	s.certs[rec.CertificateCode] = &clone
	return nil
}

// GetByCode retrieves a record by exact code; (nil, nil) on a miss
func (s *InMemoryCertStore) GetByCode(code string) (*models.StoredCertificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.certs[code]
	if !ok {
		return nil, nil
	}
	clone := *rec
	return &clone, nil
}

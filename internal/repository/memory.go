package repository

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atinyakov/GophAuth/internal/models"
)

// MemoryAccountStore is an in-process account store. It is safe for
// concurrent use; the uniqueness check and insert happen under one lock.
type MemoryAccountStore struct {
	mu         sync.RWMutex
	nextID     int64
	records    map[int64]*models.CredentialRecord
	byUsername map[string]int64
	byEmail    map[string]int64

	// NowFunc stamps CreatedAt. Exposed for tests.
	NowFunc func() time.Time
}

// NewMemoryAccountStore returns an empty MemoryAccountStore.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		records:    map[int64]*models.CredentialRecord{},
		byUsername: map[string]int64{},
		byEmail:    map[string]int64{},
		NowFunc:    time.Now,
	}
}

// FindByEmail returns the account whose email matches case-insensitively.
func (s *MemoryAccountStore) FindByEmail(_ context.Context, email string) (*models.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	return cloneRecord(s.records[id]), nil
}

// FindByUsername returns the account with the given normalized username.
func (s *MemoryAccountStore) FindByUsername(_ context.Context, normalizedUsername string) (*models.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[normalizedUsername]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	return cloneRecord(s.records[id]), nil
}

// CreateIfAbsent stores a copy of rec unless its normalized username or
// email is taken.
func (s *MemoryAccountStore) CreateIfAbsent(_ context.Context, rec *models.CredentialRecord) (*models.CredentialRecord, error) {
	if len(rec.PasswordHash) == 0 {
		return nil, fmt.Errorf("CreateIfAbsent: %w", ErrEmptyPasswordHash)
	}

	created := cloneRecord(rec)
	created.Identity.NormalizedEmail = models.NormalizeEmail(rec.Identity.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	var fields []models.Field
	if _, ok := s.byUsername[created.Identity.NormalizedUsername]; ok {
		fields = append(fields, models.FieldUsername)
	}
	if _, ok := s.byEmail[created.Identity.NormalizedEmail]; ok {
		fields = append(fields, models.FieldEmail)
	}
	if len(fields) > 0 {
		return nil, &models.ConflictError{Fields: fields}
	}

	s.nextID++
	created.ID = s.nextID
	created.CreatedAt = s.NowFunc()

	s.records[created.ID] = created
	s.byUsername[created.Identity.NormalizedUsername] = created.ID
	s.byEmail[created.Identity.NormalizedEmail] = created.ID

	return cloneRecord(created), nil
}

// Len returns the number of stored accounts.
func (s *MemoryAccountStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cloneRecord(rec *models.CredentialRecord) *models.CredentialRecord {
	c := *rec
	c.PasswordHash = bytes.Clone(rec.PasswordHash)
	return &c
}

package inmemory

import (
	"context"
	"sync"

	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
)

// VaultStore represents an in memory storage
type VaultStore struct {
	locker   *sync.RWMutex
	password *domain.PasswordRecord
	vault    string
}

// NewVaultStore returns a new empty VaultStore
func NewVaultStore() ports.VaultStore {
	return &VaultStore{locker: &sync.RWMutex{}}
}

func (s *VaultStore) GetPasswordRecord(
	ctx context.Context,
) (*domain.PasswordRecord, error) {
	s.locker.RLock()
	defer s.locker.RUnlock()

	if s.password == nil {
		return nil, nil
	}
	record := *s.password
	return &record, nil
}

func (s *VaultStore) SetPasswordRecord(
	ctx context.Context, record *domain.PasswordRecord,
) error {
	if record == nil {
		return domain.ErrPasswordRequired
	}

	s.locker.Lock()
	defer s.locker.Unlock()

	r := *record
	s.password = &r
	return nil
}

func (s *VaultStore) GetVault(ctx context.Context) (string, error) {
	s.locker.RLock()
	defer s.locker.RUnlock()

	return s.vault, nil
}

func (s *VaultStore) SetVault(ctx context.Context, blob string) error {
	s.locker.Lock()
	defer s.locker.Unlock()

	s.vault = blob
	return nil
}

func (s *VaultStore) Reset(ctx context.Context) error {
	s.locker.Lock()
	defer s.locker.Unlock()

	s.password = nil
	s.vault = ""
	return nil
}

func (s *VaultStore) Close() error {
	return nil
}

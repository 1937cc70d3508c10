package ports

import (
	"context"

	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
)

// VaultStore persists the two records of a keyring: the password
// verification record and the encrypted vault blob. Getters return a zero
// value and no error when the record is absent.
type VaultStore interface {
	GetPasswordRecord(ctx context.Context) (*domain.PasswordRecord, error)
	SetPasswordRecord(ctx context.Context, record *domain.PasswordRecord) error
	GetVault(ctx context.Context) (string, error)
	SetVault(ctx context.Context, blob string) error
	// Reset removes both records.
	Reset(ctx context.Context) error
	Close() error
}

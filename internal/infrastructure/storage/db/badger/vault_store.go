package dbbadger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
)

const (
	passwordRecordKey = "vault-keys"
	vaultKey          = "vault"
)

type vaultBlob struct {
	Blob string
}

type vaultStore struct {
	store *badgerhold.Store
	stop  chan struct{}
}

// NewVaultStore opens the vault db in dbDir, an empty dbDir opens an
// in-memory db.
func NewVaultStore(dbDir string, logger badger.Logger) (ports.VaultStore, error) {
	store, stop, err := createDb(dbDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening vault db: %w", err)
	}
	return &vaultStore{store, stop}, nil
}

func (s *vaultStore) GetPasswordRecord(
	ctx context.Context,
) (*domain.PasswordRecord, error) {
	var record domain.PasswordRecord
	if err := s.store.Get(passwordRecordKey, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (s *vaultStore) SetPasswordRecord(
	ctx context.Context, record *domain.PasswordRecord,
) error {
	if record == nil {
		return domain.ErrPasswordRequired
	}
	return s.store.Upsert(passwordRecordKey, record)
}

func (s *vaultStore) GetVault(ctx context.Context) (string, error) {
	var blob vaultBlob
	if err := s.store.Get(vaultKey, &blob); err != nil {
		if err == badgerhold.ErrNotFound {
			return "", nil
		}
		return "", err
	}
	return blob.Blob, nil
}

func (s *vaultStore) SetVault(ctx context.Context, blob string) error {
	return s.store.Upsert(vaultKey, &vaultBlob{blob})
}

func (s *vaultStore) Reset(ctx context.Context) error {
	return s.store.Badger().Update(func(tx *badger.Txn) error {
		if err := s.store.TxDelete(
			tx, passwordRecordKey, domain.PasswordRecord{},
		); err != nil && err != badgerhold.ErrNotFound {
			return err
		}
		if err := s.store.TxDelete(
			tx, vaultKey, vaultBlob{},
		); err != nil && err != badgerhold.ErrNotFound {
			return err
		}
		return nil
	})
}

func (s *vaultStore) Close() error {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	return s.store.Close()
}

func createDb(
	dbDir string, logger badger.Logger,
) (*badgerhold.Store, chan struct{}, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, nil, err
	}

	if isInMemory {
		return db, nil, nil
	}

	stop := make(chan struct{})
	ticker := time.NewTicker(30 * time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := db.Badger().RunValueLogGC(0.5); err != nil &&
					err != badger.ErrNoRewrite {
					log.Error(err)
				}
			}
		}
	}()

	return db, stop, nil
}

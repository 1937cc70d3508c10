package keyring

import (
	"context"
	"fmt"
	"time"

	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
	log "github.com/sirupsen/logrus"
)

// SetWalletPassword sets a new password. When a password already exists,
// either in session or persisted, prevPassword must match it. The vault and
// the account keys are re-encrypted with the new password.
func (m *keyringManager) SetWalletPassword(
	ctx context.Context, password, prevPassword string,
) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if len(password) <= 0 {
		return domain.ErrPasswordRequired
	}

	record, err := m.store.GetPasswordRecord(ctx)
	if err != nil {
		return err
	}
	switch {
	case m.session.isUnlocked():
		if !m.session.password.Equal(prevPassword) {
			return domain.ErrInvalidPreviousPassword
		}
	case record != nil:
		if !record.Matches(prevPassword) {
			return domain.ErrInvalidPreviousPassword
		}
		if err := m.restoreWallet(ctx, prevPassword); err != nil {
			return err
		}
		m.session.password.Set(prevPassword)
	}

	newRecord, err := domain.NewPasswordRecord(password)
	if err != nil {
		return err
	}

	prevBlob, err := m.store.GetVault(ctx)
	if err != nil {
		return err
	}
	snapshot := m.state.Clone()
	oldPassword := m.session.password.Reveal()

	if prevBlob != "" {
		if err := m.reencryptAccounts(oldPassword, password); err != nil {
			m.state = snapshot
			return err
		}
	}

	m.session.password.Set(password)
	if prevBlob != "" {
		if err := m.persist(ctx); err != nil {
			m.state = snapshot
			m.session.password.Set(oldPassword)
			return err
		}
	}
	if err := m.store.SetPasswordRecord(ctx, newRecord); err != nil {
		if prevBlob != "" {
			if restoreErr := m.store.SetVault(ctx, prevBlob); restoreErr != nil {
				log.WithError(restoreErr).Error("keyring: failed to restore previous vault")
			}
		}
		m.state = snapshot
		m.session.password.Set(oldPassword)
		return err
	}

	log.Info("keyring: wallet password updated")
	return nil
}

func (m *keyringManager) reencryptAccounts(oldPassword, newPassword string) error {
	for t, accounts := range m.state.Accounts {
		for id, account := range accounts {
			if account.Xprv == "" {
				continue
			}
			key, err := m.decryptWith(account.Xprv, oldPassword)
			if err != nil {
				return fmt.Errorf("account %s #%d: %w", t, id, err)
			}
			account.Xprv, err = m.cypher.Encrypt(wallet.EncryptOpts{
				PlainText:  key,
				Passphrase: newPassword,
			})
			if err != nil {
				return err
			}
			m.state.PutAccount(t, account)
		}
	}
	return nil
}

// Unlock checks password against the persisted record. A wrong password
// returns false and leaves everything untouched.
func (m *keyringManager) Unlock(ctx context.Context, password string) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	record, err := m.store.GetPasswordRecord(ctx)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, domain.ErrWalletNotInitialized
	}
	if !record.Matches(password) {
		return false, nil
	}

	if m.session.hd == nil {
		if err := m.restoreWallet(ctx, password); err != nil {
			return false, err
		}
	}
	m.session.password.Set(password)

	if !m.session.mnemonic.IsEmpty() {
		m.lastLogin = time.Now().Unix()
		if err := m.persist(ctx); err != nil {
			log.WithError(err).Warn("keyring: failed to update last login")
		}
	}
	log.Debug("keyring: wallet unlocked")
	return true, nil
}

func (m *keyringManager) LockWallet() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.session.wipe()
	log.Debug("keyring: wallet locked")
}

// Logout locks the wallet, the persisted state is kept.
func (m *keyringManager) Logout() {
	m.LockWallet()
}

func (m *keyringManager) IsUnlocked() bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.session.isUnlocked()
}

// CreateSeed generates a new 12 words mnemonic and holds it in session.
func (m *keyringManager) CreateSeed() (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	mnemonic, err := wallet.NewMnemonic(wallet.NewMnemonicOpts{})
	if err != nil {
		return "", err
	}
	m.session.mnemonic.Set(mnemonic)
	return mnemonic, nil
}

func (m *keyringManager) SetSeed(mnemonic string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.setSeed(mnemonic)
}

func (m *keyringManager) setSeed(mnemonic string) error {
	if !wallet.IsMnemonicValid(mnemonic) {
		return domain.ErrInvalidSeed
	}
	m.session.mnemonic.Set(mnemonic)
	return nil
}

// GetSeed reveals the mnemonic to the holder of the session password.
func (m *keyringManager) GetSeed(password string) (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if err := m.checkPassword(password); err != nil {
		return "", err
	}
	if m.session.mnemonic.IsEmpty() {
		return "", domain.ErrSeedRequired
	}
	return m.session.mnemonic.Reveal(), nil
}

// ForgetWallet wipes the session and removes both persisted records.
func (m *keyringManager) ForgetWallet(ctx context.Context, password string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	record, err := m.store.GetPasswordRecord(ctx)
	if err != nil {
		return err
	}
	if record == nil {
		return domain.ErrWalletNotInitialized
	}
	if !record.Matches(password) {
		return domain.ErrInvalidPassword
	}

	if err := m.store.Reset(ctx); err != nil {
		return err
	}
	m.session.wipe()
	m.state = domain.NewWalletState()
	m.lastLogin = 0

	log.Info("keyring: wallet forgotten")
	return nil
}

func (m *keyringManager) checkPassword(password string) error {
	if !m.session.isUnlocked() {
		return domain.ErrWalletLocked
	}
	if !m.session.password.Equal(password) {
		return domain.ErrInvalidPassword
	}
	return nil
}

package keyring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
)

func (m *keyringManager) encrypt(plaintext string) (string, error) {
	return m.cypher.Encrypt(wallet.EncryptOpts{
		PlainText:  plaintext,
		Passphrase: m.session.password.Reveal(),
	})
}

func (m *keyringManager) decrypt(ciphertext string) (string, error) {
	return m.decryptWith(ciphertext, m.session.password.Reveal())
}

func (m *keyringManager) decryptWith(ciphertext, password string) (string, error) {
	plaintext, err := m.cypher.Decrypt(wallet.DecryptOpts{
		CypherText: ciphertext,
		Passphrase: password,
	})
	if err != nil {
		if errors.Is(err, wallet.ErrInvalidPassphrase) {
			return "", domain.ErrInvalidPassword
		}
		return "", err
	}
	return plaintext, nil
}

// persist writes the current state as the vault blob, encrypted with the
// session password.
func (m *keyringManager) persist(ctx context.Context) error {
	if !m.session.isUnlocked() {
		return domain.ErrWalletLocked
	}
	if m.session.mnemonic.IsEmpty() {
		return domain.ErrSeedRequired
	}

	encryptedMnemonic, err := m.encrypt(m.session.mnemonic.Reveal())
	if err != nil {
		return err
	}
	payload, err := json.Marshal(domain.EncryptedVault{
		Mnemonic:    encryptedMnemonic,
		WalletState: m.state,
		LastLogin:   m.lastLogin,
	})
	if err != nil {
		return err
	}
	blob, err := m.encrypt(string(payload))
	if err != nil {
		return err
	}
	if err := m.store.SetVault(ctx, blob); err != nil {
		return fmt.Errorf("failed to persist vault: %w", err)
	}
	return nil
}

// loadVault decrypts the persisted vault blob with password. It returns nil
// if no vault has been created yet.
func (m *keyringManager) loadVault(
	ctx context.Context, password string,
) (*domain.EncryptedVault, string, error) {
	blob, err := m.store.GetVault(ctx)
	if err != nil {
		return nil, "", err
	}
	if blob == "" {
		return nil, "", nil
	}

	payload, err := m.decryptWith(blob, password)
	if err != nil {
		return nil, "", err
	}
	var vault domain.EncryptedVault
	if err := json.Unmarshal([]byte(payload), &vault); err != nil {
		return nil, "", fmt.Errorf("malformed vault: %w", err)
	}
	if vault.WalletState == nil {
		vault.WalletState = domain.NewWalletState()
	}
	mnemonic, err := m.decryptWith(vault.Mnemonic, password)
	if err != nil {
		return nil, "", err
	}
	return &vault, mnemonic, nil
}

// restoreWallet loads the persisted vault into the session and rebuilds the
// HD signer and the connection of the active chain family.
func (m *keyringManager) restoreWallet(ctx context.Context, password string) error {
	vault, mnemonic, err := m.loadVault(ctx, password)
	if err != nil {
		return err
	}
	if vault == nil {
		return nil
	}

	hd, err := wallet.NewWalletFromMnemonic(wallet.NewWalletFromMnemonicOpts{
		Mnemonic: mnemonic,
	})
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidSeed, err)
	}

	m.session.resetHD()
	m.session.hd = hd
	m.session.mnemonic.Set(mnemonic)
	m.state = vault.WalletState
	m.lastLogin = vault.LastLogin
	m.session.signer.close()
	m.session.signer = m.offlineSignerContext()
	return nil
}

// offlineSignerContext returns the signer context of the active network
// without probing it.
func (m *keyringManager) offlineSignerContext() signerContext {
	if m.state.ActiveChain.IsUTXO() {
		return signerContext{
			params: wallet.SyscoinParams(m.state.ActiveNetwork.IsTestnet),
		}
	}
	return signerContext{}
}

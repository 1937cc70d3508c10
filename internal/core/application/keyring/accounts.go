package keyring

import (
	"context"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/pkg/mathutil"
	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
	log "github.com/sirupsen/logrus"
)

const defaultLabelPrefix = "Account"

// CreateKeyringVault creates the HD account 0 of the active chain family
// from the session seed and persists the vault.
func (m *keyringManager) CreateKeyringVault(ctx context.Context) (domain.Account, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.createKeyringVault(ctx)
}

// CreateOrRestoreVault sets the password and the seed, then creates the
// vault.
func (m *keyringManager) CreateOrRestoreVault(
	ctx context.Context, mnemonic, password string,
) (domain.Account, error) {
	if err := m.SetWalletPassword(ctx, password, ""); err != nil {
		return domain.Account{}, err
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	if err := m.setSeed(mnemonic); err != nil {
		return domain.Account{}, err
	}
	return m.createKeyringVault(ctx)
}

func (m *keyringManager) createKeyringVault(ctx context.Context) (domain.Account, error) {
	if !m.session.isUnlocked() {
		return domain.Account{}, domain.ErrPasswordRequired
	}
	if m.session.mnemonic.IsEmpty() {
		return domain.Account{}, domain.ErrSeedRequired
	}

	hd, err := wallet.NewWalletFromMnemonic(wallet.NewWalletFromMnemonicOpts{
		Mnemonic: m.session.mnemonic.Reveal(),
	})
	if err != nil {
		return domain.Account{}, domain.ErrInvalidSeed
	}
	m.session.resetHD()
	m.session.hd = hd
	if m.session.signer.params == nil && m.state.ActiveChain.IsUTXO() {
		m.session.signer = m.offlineSignerContext()
	}

	snapshot := m.state.Clone()
	m.state.Accounts[domain.HDAccount] = make(map[int]domain.Account)
	account, err := m.newHDAccount("", m.state.ActiveChain, m.utxoParams())
	if err != nil {
		m.state = snapshot
		return domain.Account{}, err
	}
	m.state.PutAccount(domain.HDAccount, account)
	m.state.ActiveAccountID = 0
	m.state.ActiveAccountType = domain.HDAccount
	if err := m.persist(ctx); err != nil {
		m.state = snapshot
		return domain.Account{}, err
	}

	log.Infof("keyring: vault created on %s", m.state.ActiveNetwork)
	return account.Public(), nil
}

// AddNewAccount derives the next HD account of the active chain family and
// makes it active.
func (m *keyringManager) AddNewAccount(ctx context.Context, label string) (domain.Account, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if err := m.requireHD(); err != nil {
		return domain.Account{}, err
	}

	account, err := m.newHDAccount(label, m.state.ActiveChain, m.utxoParams())
	if err != nil {
		return domain.Account{}, err
	}

	if err := m.commitAccount(ctx, domain.HDAccount, account); err != nil {
		return domain.Account{}, err
	}
	log.Debugf("keyring: added %s HD account %d", account.Family, account.ID)
	return account.Public(), nil
}

// ImportAccount imports a private key of the active chain family: a hex
// secp256k1 key for EVM networks or an account extended private key for UTXO
// ones.
func (m *keyringManager) ImportAccount(
	ctx context.Context, privateKey, label string,
) (domain.Account, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.session.isUnlocked() {
		return domain.Account{}, domain.ErrWalletLocked
	}

	var (
		account domain.Account
		plain   string
	)
	if m.state.ActiveChain.IsUTXO() {
		imported, err := wallet.ImportUTXOAccount(privateKey, m.utxoParams())
		if err != nil {
			return domain.Account{}, fmt.Errorf("%w: %s", domain.ErrInvalidPrivateKey, err)
		}
		account = domain.Account{Address: imported.Address, Xpub: imported.Xpub}
		plain = imported.Xprv
	} else {
		imported, err := wallet.ImportEVMAccount(privateKey)
		if err != nil {
			return domain.Account{}, fmt.Errorf("%w: %s", domain.ErrInvalidPrivateKey, err)
		}
		account = domain.Account{
			Address: imported.Address.Hex(),
			Xpub:    imported.PublicKeyHex(),
		}
		plain = imported.PrivateKeyHex()
	}

	if m.state.HasAccountWithKey(domain.HDAccount, account.Address, account.Xpub) ||
		m.state.HasAccountWithKey(domain.Imported, account.Address, account.Xpub) {
		return domain.Account{}, domain.ErrAccountAlreadyExists
	}

	xprv, err := m.encrypt(plain)
	if err != nil {
		return domain.Account{}, err
	}
	id := m.state.NextAccountID(domain.Imported)
	network := m.state.ActiveNetwork
	account.ID = id
	account.Label = labelOrDefault(label, "Imported", id+1)
	account.Xprv = xprv
	account.IsImported = true
	account.Family = m.state.ActiveChain
	account.OriginNetwork = &network

	if err := m.commitAccount(ctx, domain.Imported, account); err != nil {
		return domain.Account{}, err
	}
	log.Debugf("keyring: imported account %d", id)
	return account.Public(), nil
}

// ImportHardwareAccount adds the account with given index of a Trezor or
// Ledger device as watch-only account.
func (m *keyringManager) ImportHardwareAccount(
	ctx context.Context, accountType domain.AccountType, index int, label string,
) (domain.Account, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.session.isUnlocked() {
		return domain.Account{}, domain.ErrWalletLocked
	}
	if index < 0 {
		return domain.Account{}, fmt.Errorf("invalid device account index %d", index)
	}
	device, ok := m.hardwareWallets[accountType]
	if !ok {
		return domain.Account{}, fmt.Errorf("%s device is not available", accountType)
	}

	address, xpub, err := device.GetAccount(
		ctx, m.state.ActiveChain, m.state.ActiveNetwork, index,
	)
	if err != nil {
		return domain.Account{}, err
	}
	if m.state.HasAccountWithKey(accountType, address, xpub) {
		return domain.Account{}, domain.ErrAccountAlreadyExists
	}

	id := m.state.NextAccountID(accountType)
	account := domain.Account{
		ID:             id,
		Label:          labelOrDefault(label, string(accountType), id+1),
		Address:        address,
		Xpub:           xpub,
		Family:         m.state.ActiveChain,
		IsTrezorWallet: accountType == domain.Trezor,
		IsLedgerWallet: accountType == domain.Ledger,
		DeviceIndex:    index,
	}
	if err := m.commitAccount(ctx, accountType, account); err != nil {
		return domain.Account{}, err
	}
	log.Debugf("keyring: imported %s account %d", accountType, id)
	return account, nil
}

func (m *keyringManager) SetActiveAccount(
	ctx context.Context, id int, accountType domain.AccountType,
) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	account, err := m.state.Account(id, accountType)
	if err != nil {
		return err
	}
	if account.Xpub == "" {
		return domain.ErrAccountNotSet
	}
	if account.Family != m.state.ActiveChain {
		return fmt.Errorf(
			"%w: account belongs to %s", domain.ErrUnsupportedChainFamily, account.Family,
		)
	}

	prevID, prevType := m.state.ActiveAccountID, m.state.ActiveAccountType
	m.state.ActiveAccountID = id
	m.state.ActiveAccountType = accountType
	if err := m.persist(ctx); err != nil {
		m.state.ActiveAccountID, m.state.ActiveAccountType = prevID, prevType
		return err
	}
	return nil
}

func (m *keyringManager) GetActiveAccount() (domain.Account, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	account, err := m.state.ActiveAccount()
	if err != nil {
		return domain.Account{}, err
	}
	return account.Public(), nil
}

// GetAccounts returns every account ordered by type then id.
func (m *keyringManager) GetAccounts() []domain.Account {
	m.lock.Lock()
	defer m.lock.Unlock()

	accounts := m.state.SortedAccounts()
	for i := range accounts {
		accounts[i] = accounts[i].Public()
	}
	return accounts
}

func (m *keyringManager) GetAccountByID(
	id int, accountType domain.AccountType,
) (domain.Account, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	account, err := m.state.Account(id, accountType)
	if err != nil {
		return domain.Account{}, err
	}
	return account.Public(), nil
}

func (m *keyringManager) SetAccountLabel(
	ctx context.Context, id int, accountType domain.AccountType, label string,
) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	account, err := m.state.Account(id, accountType)
	if err != nil {
		return err
	}
	prevLabel := account.Label
	account.Label = strings.TrimSpace(label)
	m.state.PutAccount(accountType, account)
	if err := m.persist(ctx); err != nil {
		account.Label = prevLabel
		m.state.PutAccount(accountType, account)
		return err
	}
	return nil
}

// GetPrivateKeyByAccountID reveals the private key of a software account to
// the holder of the session password.
func (m *keyringManager) GetPrivateKeyByAccountID(
	id int, accountType domain.AccountType, password string,
) (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if err := m.checkPassword(password); err != nil {
		return "", err
	}
	account, err := m.state.Account(id, accountType)
	if err != nil {
		return "", err
	}
	if account.Xprv == "" {
		return "", domain.ErrAccountNotSet
	}
	return m.decrypt(account.Xprv)
}

// UpdateBalances refreshes the balance of the active account on the active
// network. When the remote fails the previous balance is kept.
func (m *keyringManager) UpdateBalances(ctx context.Context) (domain.Account, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	account, err := m.state.ActiveAccount()
	if err != nil {
		return domain.Account{}, err
	}
	if err := m.connect(ctx); err != nil {
		log.WithError(err).Warn("keyring: balance refresh skipped, keeping previous value")
		return account.Public(), nil
	}

	if m.state.ActiveChain.IsUTXO() {
		info, err := m.session.signer.explorer.GetXpub(ctx, account.Xpub)
		if err != nil {
			log.WithError(err).Warn("keyring: failed to fetch balance, keeping previous value")
			return account.Public(), nil
		}
		account.Balances.Syscoin = mathutil.FromSatoshis(info.Balance)
	} else {
		wei, err := m.session.signer.provider.BalanceAt(
			ctx, common.HexToAddress(account.Address), nil,
		)
		if err != nil {
			log.WithError(err).Warn("keyring: failed to fetch balance, keeping previous value")
			return account.Public(), nil
		}
		account.Balances.Ethereum = mathutil.FromWei(wei)
	}

	m.state.PutAccount(m.state.ActiveAccountType, account)
	if m.session.isUnlocked() {
		if err := m.persist(ctx); err != nil {
			log.WithError(err).Warn("keyring: failed to persist balances")
		}
	}
	return account.Public(), nil
}

// commitAccount stores account, makes it active and persists. The state is
// left untouched on failure.
func (m *keyringManager) commitAccount(
	ctx context.Context, accountType domain.AccountType, account domain.Account,
) error {
	snapshot := m.state.Clone()
	m.state.PutAccount(accountType, account)
	m.state.ActiveAccountID = account.ID
	m.state.ActiveAccountType = accountType
	if err := m.state.Validate(); err != nil {
		m.state = snapshot
		return err
	}
	if err := m.persist(ctx); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (m *keyringManager) requireHD() error {
	if !m.session.isUnlocked() {
		return domain.ErrWalletLocked
	}
	if m.session.hd == nil {
		return domain.ErrWalletNotInitialized
	}
	return nil
}

// newHDAccount derives the next HD account of family. Ids are dense across
// families. UTXO accounts take the next account level of the family signer,
// EVM accounts take the address index equal to the HD account count.
func (m *keyringManager) newHDAccount(
	label string, family domain.ChainFamily, params *chaincfg.Params,
) (domain.Account, error) {
	id := m.state.NextAccountID(domain.HDAccount)
	index := len(m.state.Accounts[domain.HDAccount])
	if family.IsUTXO() {
		index = len(m.state.AccountsOf(domain.HDAccount, family))
	}

	keys, err := deriveHDKeys(m.session.hd, index, family, params)
	if err != nil {
		return domain.Account{}, err
	}
	if keys.xprv, err = m.encrypt(keys.xprv); err != nil {
		return domain.Account{}, err
	}
	account := domain.Account{
		ID:     id,
		Index:  index,
		Label:  labelOrDefault(label, defaultLabelPrefix, id+1),
		Family: family,
	}
	return keys.apply(account), nil
}

// hdKeys is the key material of an HD account, xprv is plaintext until
// encrypted by the caller.
type hdKeys struct {
	address string
	xpub    string
	xprv    string
}

func (k hdKeys) apply(account domain.Account) domain.Account {
	account.Address = k.address
	account.Xpub = k.xpub
	account.Xprv = k.xprv
	return account
}

func deriveHDKeys(
	hd *wallet.Wallet, index int, family domain.ChainFamily, params *chaincfg.Params,
) (hdKeys, error) {
	if index < 0 {
		return hdKeys{}, fmt.Errorf("invalid derivation index %d", index)
	}
	if family.IsUTXO() {
		account, err := hd.DeriveUTXOAccount(wallet.ExtendedKeyOpts{
			Account: uint32(index),
			Network: params,
		})
		if err != nil {
			return hdKeys{}, err
		}
		return hdKeys{account.Address, account.Xpub, account.Xprv}, nil
	}
	account, err := hd.DeriveEVMAccount(uint32(index))
	if err != nil {
		return hdKeys{}, err
	}
	return hdKeys{
		account.Address.Hex(), account.PublicKeyHex(), account.PrivateKeyHex(),
	}, nil
}

// connect opens the connection of the active network if not open yet.
func (m *keyringManager) connect(ctx context.Context) error {
	if m.state.ActiveChain.IsUTXO() {
		if m.session.signer.explorer != nil {
			return nil
		}
		explorer, err := m.explorerFactory(m.state.ActiveNetwork)
		if err != nil {
			return err
		}
		m.session.signer.explorer = explorer
		if m.session.signer.params == nil {
			m.session.signer.params = wallet.SyscoinParams(m.state.ActiveNetwork.IsTestnet)
		}
		return nil
	}

	if m.session.signer.provider != nil {
		return nil
	}
	provider, err := m.evmDialer(ctx, m.state.ActiveNetwork)
	if err != nil {
		return domain.NetworkError(err)
	}
	m.session.signer.provider = provider
	return nil
}

func (m *keyringManager) utxoParams() *chaincfg.Params {
	if m.session.signer.params != nil {
		return m.session.signer.params
	}
	return wallet.SyscoinParams(m.state.ActiveNetwork.IsTestnet)
}

func labelOrDefault(label, prefix string, n int) string {
	if label = strings.TrimSpace(label); label != "" {
		return label
	}
	return fmt.Sprintf("%s %d", prefix, n)
}

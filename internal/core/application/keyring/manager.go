// Package keyring implements the KeyringManager: the password gated vault,
// the account model and the network switch state machine. Transaction
// builders never derive keys, they obtain a signer session from here.
package keyring

import (
	"context"
	"fmt"
	"sync"

	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
	log "github.com/sirupsen/logrus"
)

// KeyringManager orchestrates the vault, the accounts and the active
// (chain family, signer) pair. Every method is serialized on a single lock,
// so no caller can observe a half-switched network.
type KeyringManager interface {
	SetWalletPassword(ctx context.Context, password, prevPassword string) error
	Unlock(ctx context.Context, password string) (bool, error)
	LockWallet()
	Logout()
	IsUnlocked() bool
	CreateSeed() (string, error)
	SetSeed(mnemonic string) error
	GetSeed(password string) (string, error)
	CreateKeyringVault(ctx context.Context) (domain.Account, error)
	CreateOrRestoreVault(ctx context.Context, mnemonic, password string) (domain.Account, error)
	ForgetWallet(ctx context.Context, password string) error

	AddNewAccount(ctx context.Context, label string) (domain.Account, error)
	ImportAccount(ctx context.Context, privateKey, label string) (domain.Account, error)
	ImportHardwareAccount(
		ctx context.Context, accountType domain.AccountType, index int, label string,
	) (domain.Account, error)
	SetActiveAccount(ctx context.Context, id int, accountType domain.AccountType) error
	GetActiveAccount() (domain.Account, error)
	GetAccounts() []domain.Account
	GetAccountByID(id int, accountType domain.AccountType) (domain.Account, error)
	SetAccountLabel(ctx context.Context, id int, accountType domain.AccountType, label string) error
	GetPrivateKeyByAccountID(id int, accountType domain.AccountType, password string) (string, error)
	UpdateBalances(ctx context.Context) (domain.Account, error)

	SetSignerNetwork(ctx context.Context, network domain.Network, family domain.ChainFamily) error
	GetNetwork() (domain.Network, domain.ChainFamily)
	GetNetworks(family domain.ChainFamily) ([]domain.Network, error)
	AddNetwork(ctx context.Context, network domain.Network, family domain.ChainFamily) error
	RemoveNetwork(ctx context.Context, family domain.ChainFamily, chainID int64) error

	UTXOSession(ctx context.Context) (*ports.UTXOSession, error)
	EVMSession(ctx context.Context) (*ports.EVMSession, error)
	Close()
}

// ManagerOpts is the struct given to NewKeyringManager.
type ManagerOpts struct {
	Store           ports.VaultStore
	Cypher          wallet.Cypher
	ExplorerFactory ports.UTXOExplorerFactory
	EVMDialer       ports.EVMDialer
	// HardwareWallets maps Trezor and Ledger to their device adapters.
	HardwareWallets map[domain.AccountType]ports.HardwareWallet
}

func (o ManagerOpts) validate() error {
	if o.Store == nil {
		return fmt.Errorf("missing vault store")
	}
	if o.ExplorerFactory == nil {
		return fmt.Errorf("missing utxo explorer factory")
	}
	if o.EVMDialer == nil {
		return fmt.Errorf("missing evm dialer")
	}
	for t := range o.HardwareWallets {
		if !t.IsHardware() {
			return fmt.Errorf("%s is not a hardware account type", t)
		}
	}
	return nil
}

type keyringManager struct {
	store           ports.VaultStore
	cypher          wallet.Cypher
	explorerFactory ports.UTXOExplorerFactory
	evmDialer       ports.EVMDialer
	hardwareWallets map[domain.AccountType]ports.HardwareWallet

	lock      sync.Mutex
	state     *domain.WalletState
	lastLogin int64
	session   *signerSession
}

// NewKeyringManager returns a locked manager. The persisted wallet state, if
// any, is loaded on the first successful Unlock.
func NewKeyringManager(opts ManagerOpts) (KeyringManager, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Cypher == (wallet.Cypher{}) {
		opts.Cypher = wallet.DefaultCypher
	}
	hardwareWallets := opts.HardwareWallets
	if hardwareWallets == nil {
		hardwareWallets = make(map[domain.AccountType]ports.HardwareWallet)
	}

	return &keyringManager{
		store:           opts.Store,
		cypher:          opts.Cypher,
		explorerFactory: opts.ExplorerFactory,
		evmDialer:       opts.EVMDialer,
		hardwareWallets: hardwareWallets,
		state:           domain.NewWalletState(),
		session:         newSignerSession(),
	}, nil
}

func (m *keyringManager) Close() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.session.wipe()
	if err := m.store.Close(); err != nil {
		log.WithError(err).Warn("keyring: failed to close vault store")
	}
}

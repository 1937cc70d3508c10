package keyring

import (
	"context"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/pkg/stats"
	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	switchCommitted  = "committed"
	switchRolledBack = "rolled_back"

	// every rebuilt key is encrypted with a memory hard scrypt derivation.
	maxConcurrentRebuilds = 2
)

// SetSignerNetwork connects the keyring to network. The switch is atomic:
// the remote is probed, the UTXO HD accounts are rebuilt against the new
// chain params when switching to a UTXO network and the vault is persisted.
// If any step fails the previous state and connections are restored
// untouched. Account ids and EVM accounts are never rewritten.
func (m *keyringManager) SetSignerNetwork(
	ctx context.Context, network domain.Network, family domain.ChainFamily,
) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !family.IsValid() {
		return domain.ErrUnsupportedChainFamily
	}
	if network.URL == "" {
		return fmt.Errorf("%w: missing url", domain.ErrNetworkNotFound)
	}
	if !m.session.isUnlocked() {
		return domain.ErrWalletLocked
	}

	snapshot := m.state.Clone()
	signer, err := m.switchNetwork(ctx, network, family)
	if err != nil {
		m.state = snapshot
		signer.close()
		stats.NetworkSwitches.WithLabelValues(switchRolledBack).Inc()
		log.WithError(err).Warnf("keyring: switch to %s rolled back", network)
		return err
	}

	m.session.signer.close()
	m.session.signer = signer
	stats.NetworkSwitches.WithLabelValues(switchCommitted).Inc()
	log.Infof("keyring: switched to %s network %s", family, m.state.ActiveNetwork)
	return nil
}

// switchNetwork mutates the state in place. It always returns the signer
// context opened so far, so that the caller can release it on failure.
func (m *keyringManager) switchNetwork(
	ctx context.Context, network domain.Network, family domain.ChainFamily,
) (signerContext, error) {
	signer, err := m.probe(ctx, &network, family)
	if err != nil {
		return signer, err
	}

	m.state.ActiveNetwork = network
	m.state.ActiveChain = family
	if m.state.Networks[family] == nil {
		m.state.Networks[family] = make(map[int64]domain.Network)
	}
	m.state.Networks[family][network.ChainID] = network

	if m.session.hd != nil {
		if family.IsUTXO() {
			if err := m.rebuildUTXOAccounts(ctx, family, signer.params); err != nil {
				return signer, err
			}
		}
		if err := m.activateFamilyAccount(family, signer.params); err != nil {
			return signer, err
		}
	}

	if err := m.state.Validate(); err != nil {
		return signer, err
	}
	if err := m.save(ctx); err != nil {
		return signer, err
	}
	return signer, nil
}

// probe opens a connection to network and checks that it serves the
// requested chain. For UTXO networks the testnet flag is taken from the
// explorer backend.
func (m *keyringManager) probe(
	ctx context.Context, network *domain.Network, family domain.ChainFamily,
) (signerContext, error) {
	if family.IsUTXO() {
		explorer, err := m.explorerFactory(*network)
		if err != nil {
			return signerContext{}, err
		}
		info, err := explorer.GetInfo(ctx)
		if err != nil {
			return signerContext{}, domain.NetworkError(err)
		}
		network.IsTestnet = info.IsTestnet
		return signerContext{
			params:   wallet.SyscoinParams(info.IsTestnet),
			explorer: explorer,
		}, nil
	}

	provider, err := m.evmDialer(ctx, *network)
	if err != nil {
		return signerContext{}, domain.NetworkError(err)
	}
	signer := signerContext{provider: provider}
	chainID, err := provider.ChainID(ctx)
	if err != nil {
		return signer, domain.NetworkError(err)
	}
	if !chainID.IsInt64() || chainID.Int64() != network.ChainID {
		return signer, fmt.Errorf(
			"%w: expected %d, got %s", domain.ErrChainIDMismatch, network.ChainID, chainID,
		)
	}
	return signer, nil
}

// rebuildUTXOAccounts re-derives the HD accounts of family against params,
// keeping their ids and derivation indexes. Derivation and key encryption
// run concurrently, the state is only written once all of them succeeded.
func (m *keyringManager) rebuildUTXOAccounts(
	ctx context.Context, family domain.ChainFamily, params *chaincfg.Params,
) error {
	accounts := m.state.AccountsOf(domain.HDAccount, family)
	keys := make([]hdKeys, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRebuilds)
	for i, account := range accounts {
		i, account := i, account
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			k, err := deriveHDKeys(m.session.hd, account.Index, family, params)
			if err != nil {
				return fmt.Errorf("account %d: %w", account.ID, err)
			}
			if k.xprv, err = m.encrypt(k.xprv); err != nil {
				return err
			}
			keys[i] = k
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, account := range accounts {
		m.state.PutAccount(domain.HDAccount, keys[i].apply(account))
	}
	return nil
}

// activateFamilyAccount keeps the active account if it belongs to family,
// otherwise it selects the first HD account of family, deriving it when the
// vault holds none yet.
func (m *keyringManager) activateFamilyAccount(
	family domain.ChainFamily, params *chaincfg.Params,
) error {
	if active, err := m.state.ActiveAccount(); err == nil && active.Family == family {
		return nil
	}

	var account domain.Account
	if existing := m.state.AccountsOf(domain.HDAccount, family); len(existing) > 0 {
		account = existing[0]
	} else {
		derived, err := m.newHDAccount("", family, params)
		if err != nil {
			return err
		}
		m.state.PutAccount(domain.HDAccount, derived)
		account = derived
		log.Debugf("keyring: derived %s HD account %d", family, account.ID)
	}
	m.state.ActiveAccountID = account.ID
	m.state.ActiveAccountType = domain.HDAccount
	return nil
}

// GetNetwork returns the active network and chain family.
func (m *keyringManager) GetNetwork() (domain.Network, domain.ChainFamily) {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.state.ActiveNetwork, m.state.ActiveChain
}

// GetNetworks returns the networks of family sorted by chain id.
func (m *keyringManager) GetNetworks(family domain.ChainFamily) ([]domain.Network, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !family.IsValid() {
		return nil, domain.ErrUnsupportedChainFamily
	}
	networks := make([]domain.Network, 0, len(m.state.Networks[family]))
	for _, network := range m.state.Networks[family] {
		networks = append(networks, network)
	}
	sort.Slice(networks, func(i, j int) bool {
		return networks[i].ChainID < networks[j].ChainID
	})
	return networks, nil
}

// AddNetwork registers or replaces a custom network of family.
func (m *keyringManager) AddNetwork(
	ctx context.Context, network domain.Network, family domain.ChainFamily,
) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !family.IsValid() {
		return domain.ErrUnsupportedChainFamily
	}
	if network.ChainID <= 0 {
		return fmt.Errorf("invalid chain id %d", network.ChainID)
	}
	if network.URL == "" {
		return fmt.Errorf("missing network url")
	}
	if family == m.state.ActiveChain && network.ChainID == m.state.ActiveNetwork.ChainID {
		return domain.ErrActiveNetworkRemoval
	}

	snapshot := m.state.Clone()
	if m.state.Networks[family] == nil {
		m.state.Networks[family] = make(map[int64]domain.Network)
	}
	network.Default = false
	m.state.Networks[family][network.ChainID] = network
	if err := m.save(ctx); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// RemoveNetwork removes a network of family, the active one cannot be
// removed.
func (m *keyringManager) RemoveNetwork(
	ctx context.Context, family domain.ChainFamily, chainID int64,
) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, err := m.state.Network(family, chainID); err != nil {
		return err
	}
	if family == m.state.ActiveChain && chainID == m.state.ActiveNetwork.ChainID {
		return domain.ErrActiveNetworkRemoval
	}

	snapshot := m.state.Clone()
	delete(m.state.Networks[family], chainID)
	if err := m.save(ctx); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// save persists the state once the vault has been created.
func (m *keyringManager) save(ctx context.Context) error {
	if m.session.hd == nil {
		return nil
	}
	return m.persist(ctx)
}

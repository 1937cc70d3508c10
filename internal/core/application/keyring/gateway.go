package keyring

import (
	"context"
	"fmt"

	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
)

// UTXOSession returns the active UTXO account together with the connection
// and the signer matching its type.
func (m *keyringManager) UTXOSession(ctx context.Context) (*ports.UTXOSession, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	account, err := m.activeAccountOf(domain.ChainSyscoin)
	if err != nil {
		return nil, err
	}
	if err := m.connect(ctx); err != nil {
		return nil, err
	}

	params := m.session.signer.params
	var signer ports.UTXOSigner
	switch t := account.Type(); t {
	case domain.HDAccount:
		if err := m.requireHD(); err != nil {
			return nil, err
		}
		keys, err := m.session.hd.DeriveUTXOAccount(wallet.ExtendedKeyOpts{
			Account: uint32(account.Index),
			Network: params,
		})
		if err != nil {
			return nil, err
		}
		signer = newLocalUTXOSigner(keys)
	case domain.Imported:
		xprv, err := m.decrypt(account.Xprv)
		if err != nil {
			return nil, err
		}
		keys, err := wallet.ImportUTXOAccount(xprv, params)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidPrivateKey, err)
		}
		signer = newLocalUTXOSigner(keys)
	default:
		device, err := m.hardwareWallet(t)
		if err != nil {
			return nil, err
		}
		if signer, err = device.UTXOSigner(account, m.state.ActiveNetwork, params); err != nil {
			return nil, err
		}
	}

	return &ports.UTXOSession{
		Account:  account.Public(),
		Network:  m.state.ActiveNetwork,
		Params:   params,
		Explorer: m.session.signer.explorer,
		Signer:   signer,
	}, nil
}

// EVMSession returns the active EVM account together with the provider and
// the signer matching its type.
func (m *keyringManager) EVMSession(ctx context.Context) (*ports.EVMSession, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	account, err := m.activeAccountOf(domain.ChainEthereum)
	if err != nil {
		return nil, err
	}
	if err := m.connect(ctx); err != nil {
		return nil, err
	}

	var signer ports.EVMSigner
	switch t := account.Type(); t {
	case domain.HDAccount:
		if err := m.requireHD(); err != nil {
			return nil, err
		}
		keys, err := m.session.hd.DeriveEVMAccount(uint32(account.Index))
		if err != nil {
			return nil, err
		}
		signer = newLocalEVMSigner(keys)
	case domain.Imported:
		key, err := m.decrypt(account.Xprv)
		if err != nil {
			return nil, err
		}
		keys, err := wallet.ImportEVMAccount(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidPrivateKey, err)
		}
		signer = newLocalEVMSigner(keys)
	default:
		device, err := m.hardwareWallet(t)
		if err != nil {
			return nil, err
		}
		if signer, err = device.EVMSigner(account, m.state.ActiveNetwork); err != nil {
			return nil, err
		}
	}

	return &ports.EVMSession{
		Account:  account.Public(),
		Network:  m.state.ActiveNetwork,
		Provider: m.session.signer.provider,
		Signer:   signer,
	}, nil
}

func (m *keyringManager) activeAccountOf(family domain.ChainFamily) (domain.Account, error) {
	if !m.session.isUnlocked() {
		return domain.Account{}, domain.ErrWalletLocked
	}
	if m.state.ActiveChain != family {
		return domain.Account{}, fmt.Errorf(
			"%w: active network is %s", domain.ErrUnsupportedChainFamily, m.state.ActiveChain,
		)
	}
	account, err := m.state.ActiveAccount()
	if err != nil {
		return domain.Account{}, err
	}
	if account.Family != family {
		return domain.Account{}, domain.ErrUnsupportedChainFamily
	}
	return account, nil
}

func (m *keyringManager) hardwareWallet(t domain.AccountType) (ports.HardwareWallet, error) {
	device, ok := m.hardwareWallets[t]
	if !ok {
		return nil, fmt.Errorf("%s device is not available", t)
	}
	return device, nil
}

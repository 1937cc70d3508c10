// Package hardware adapts Trezor and Ledger signing devices, reached through
// a ports.HardwareTransport, to the keyring signer contracts.
package hardware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
	log "github.com/sirupsen/logrus"
)

// deviceWallet is the HardwareWallet of a single device. Trezor and Ledger
// share it and differ only in how they sign psbts.
type deviceWallet struct {
	kind      domain.AccountType
	transport ports.HardwareTransport

	lock         sync.Mutex
	fingerprints map[string]uint32
}

// NewTrezor returns the adapter of a Trezor device. Psbts are translated to
// the device native input and output description.
func NewTrezor(transport ports.HardwareTransport) (ports.HardwareWallet, error) {
	return newDeviceWallet(domain.Trezor, transport)
}

// NewLedger returns the adapter of a Ledger device. Psbts are sent as they
// are together with a single key wallet policy.
func NewLedger(transport ports.HardwareTransport) (ports.HardwareWallet, error) {
	return newDeviceWallet(domain.Ledger, transport)
}

func newDeviceWallet(
	kind domain.AccountType, transport ports.HardwareTransport,
) (*deviceWallet, error) {
	if transport == nil {
		return nil, fmt.Errorf("missing %s transport", kind)
	}
	return &deviceWallet{
		kind:         kind,
		transport:    transport,
		fingerprints: make(map[string]uint32),
	}, nil
}

func (w *deviceWallet) signerName() string {
	return strings.ToLower(string(w.kind))
}

// Address returns the first receive address of the device account index.
func (w *deviceWallet) Address(
	ctx context.Context, family domain.ChainFamily, network domain.Network, index int,
) (string, error) {
	if index < 0 {
		return "", fmt.Errorf("invalid device account index %d", index)
	}
	coin := coinOf(family, network)
	path := receivePath(coin, network.Slip44, uint32(index))
	address, err := w.transport.GetAddress(ctx, coin, path.String())
	if err != nil {
		return "", w.deviceError(err)
	}
	return address, nil
}

// GetAccount returns the address and public key of the device account index.
// For UTXO networks the public key is the account xpub, for EVM ones the
// public key of the address.
func (w *deviceWallet) GetAccount(
	ctx context.Context, family domain.ChainFamily, network domain.Network, index int,
) (string, string, error) {
	address, err := w.Address(ctx, family, network, index)
	if err != nil {
		return "", "", err
	}
	coin := coinOf(family, network)
	path := AccountPath(coin, network.Slip44, uint32(index))
	xpub, err := w.transport.GetXpub(ctx, coin, path.String())
	if err != nil {
		return "", "", w.deviceError(err)
	}
	log.Debugf("hardware: %s account %d at %s", w.kind, index, path)
	return address, xpub, nil
}

func (w *deviceWallet) UTXOSigner(
	account domain.Account, network domain.Network, params *chaincfg.Params,
) (ports.UTXOSigner, error) {
	if err := w.checkAccount(account, domain.ChainSyscoin); err != nil {
		return nil, err
	}
	if params == nil {
		return nil, fmt.Errorf("missing network params")
	}
	return &utxoSigner{
		device:  w,
		account: account,
		coin:    coinOf(domain.ChainSyscoin, network),
		params:  params,
	}, nil
}

func (w *deviceWallet) EVMSigner(
	account domain.Account, network domain.Network,
) (ports.EVMSigner, error) {
	if err := w.checkAccount(account, domain.ChainEthereum); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(account.Address) {
		return nil, fmt.Errorf("invalid account address %s", account.Address)
	}
	return &evmSigner{
		device:  w,
		address: common.HexToAddress(account.Address),
		path:    AccountPath(ports.CoinEthereum, network.Slip44, uint32(account.DeviceIndex)),
	}, nil
}

func (w *deviceWallet) checkAccount(account domain.Account, family domain.ChainFamily) error {
	if account.Type() != w.kind {
		return fmt.Errorf("%s account cannot be signed by a %s device", account.Type(), w.kind)
	}
	if account.Family != family {
		return fmt.Errorf("%w: account belongs to %s", domain.ErrUnsupportedChainFamily, account.Family)
	}
	return nil
}

// masterFingerprint returns the fingerprint of the device master key for the
// given coin app.
func (w *deviceWallet) masterFingerprint(ctx context.Context, coin string) (uint32, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	if fingerprint, ok := w.fingerprints[coin]; ok {
		return fingerprint, nil
	}
	xpub, err := w.transport.GetXpub(ctx, coin, "m")
	if err != nil {
		return 0, w.deviceError(err)
	}
	fingerprint, err := wallet.KeyFingerprint(xpub)
	if err != nil {
		return 0, err
	}
	w.fingerprints[coin] = fingerprint
	return fingerprint, nil
}

// deviceError marks transport failures as rejected by the device, keeping
// context errors as they are.
func (w *deviceWallet) deviceError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %s", domain.ErrHardwareRejected, w.kind, err)
}

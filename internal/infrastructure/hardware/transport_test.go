package hardware_test

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
	"github.com/vulpemventures/go-bip39"
)

// fakeTransport emulates a device holding the seed of mnemonic. Signatures
// are produced by the functions set by each test.
type fakeTransport struct {
	seed []byte

	utxoRequests []ports.UTXOSignRequest
	evmRequests  []ports.EVMSignRequest
	msgRequests  []ports.MessageSignRequest

	signUTXO    func(req ports.UTXOSignRequest) ([]ports.InputSignature, error)
	signEVM     func(req ports.EVMSignRequest) (*ports.EVMSignature, error)
	signMessage func(req ports.MessageSignRequest) ([]byte, error)
	err         error
}

func newFakeTransport(mnemonic string) *fakeTransport {
	return &fakeTransport{seed: bip39.NewSeed(mnemonic, "")}
}

func (f *fakeTransport) params(coin string) *chaincfg.Params {
	if coin == ports.CoinSyscoin {
		return wallet.SyscoinParams(false)
	}
	return &chaincfg.MainNetParams
}

func (f *fakeTransport) key(coin, path string) (*hdkeychain.ExtendedKey, error) {
	key, err := hdkeychain.NewMaster(f.seed, f.params(coin))
	if err != nil {
		return nil, err
	}
	if path == "m" {
		return key, nil
	}
	elems, err := wallet.ParseDerivationPath(path)
	if err != nil {
		return nil, err
	}
	for _, i := range elems {
		if key, err = key.Derive(i); err != nil {
			return nil, err
		}
	}
	return key, nil
}

func (f *fakeTransport) GetAddress(_ context.Context, coin, path string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	key, err := f.key(coin, path)
	if err != nil {
		return "", err
	}
	pubkey, err := key.ECPubKey()
	if err != nil {
		return "", err
	}
	if coin == ports.CoinEthereum {
		return crypto.PubkeyToAddress(*pubkey.ToECDSA()).Hex(), nil
	}
	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(pubkey.SerializeCompressed()), f.params(coin),
	)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

func (f *fakeTransport) GetXpub(_ context.Context, coin, path string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	key, err := f.key(coin, path)
	if err != nil {
		return "", err
	}
	if coin == ports.CoinEthereum {
		pubkey, err := key.ECPubKey()
		if err != nil {
			return "", err
		}
		return hexutil.Encode(crypto.FromECDSAPub(pubkey.ToECDSA())), nil
	}
	xpub, err := key.Neuter()
	if err != nil {
		return "", err
	}
	return xpub.String(), nil
}

func (f *fakeTransport) SignUTXO(
	_ context.Context, req ports.UTXOSignRequest,
) ([]ports.InputSignature, error) {
	f.utxoRequests = append(f.utxoRequests, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.signUTXO == nil {
		return nil, fmt.Errorf("not implemented")
	}
	return f.signUTXO(req)
}

func (f *fakeTransport) SignEVM(
	_ context.Context, req ports.EVMSignRequest,
) (*ports.EVMSignature, error) {
	f.evmRequests = append(f.evmRequests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.signEVM(req)
}

func (f *fakeTransport) SignMessage(
	_ context.Context, req ports.MessageSignRequest,
) ([]byte, error) {
	f.msgRequests = append(f.msgRequests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.signMessage(req)
}

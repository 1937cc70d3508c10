package keyring

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pollum-io/sysweb3-sub000/pkg/secret"
	"github.com/pollum-io/sysweb3-sub000/pkg/stats"
	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
)

const signerLocal = "local"

// localUTXOSigner signs with an account extended private key held in memory
// for the duration of a single builder operation.
type localUTXOSigner struct {
	xprv        *secret.String
	xpub        string
	fingerprint uint32
}

func newLocalUTXOSigner(account *wallet.UTXOAccount) *localUTXOSigner {
	return &localUTXOSigner{
		xprv:        secret.New(account.Xprv),
		xpub:        account.Xpub,
		fingerprint: account.Fingerprint,
	}
}

func (s *localUTXOSigner) Xpub() string {
	return s.xpub
}

func (s *localUTXOSigner) Fingerprint() uint32 {
	return s.fingerprint
}

func (s *localUTXOSigner) SignPsbt(ctx context.Context, ptx *psbt.Packet) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	signed, err := wallet.SignPsbt(wallet.SignPsbtOpts{
		Packet: ptx,
		Xprv:   s.xprv.Reveal(),
	})
	if err != nil {
		return 0, err
	}
	if signed > 0 {
		stats.SignedTransactions.WithLabelValues("utxo", signerLocal).Inc()
	}
	return signed, nil
}

// localEVMSigner signs with a secp256k1 key held in memory.
type localEVMSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func newLocalEVMSigner(account *wallet.EVMAccount) *localEVMSigner {
	return &localEVMSigner{
		key:     account.PrivateKey,
		address: account.Address,
	}
}

func (s *localEVMSigner) Address() common.Address {
	return s.address
}

func (s *localEVMSigner) SignTx(
	ctx context.Context, tx *types.Transaction, chainID *big.Int,
) (*types.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, err
	}
	stats.SignedTransactions.WithLabelValues("evm", signerLocal).Inc()
	return signed, nil
}

func (s *localEVMSigner) SignPersonalMessage(ctx context.Context, msg []byte) ([]byte, error) {
	return s.SignHash(ctx, accounts.TextHash(msg))
}

func (s *localEVMSigner) SignHash(ctx context.Context, hash []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(hash) != common.HashLength {
		return nil, wallet.ErrInvalidMessageHash
	}
	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return nil, err
	}
	return wallet.SignatureToRSV(sig), nil
}

package hardware

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/pkg/stats"
	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
)

type evmSigner struct {
	device  *deviceWallet
	address common.Address
	path    wallet.DerivationPath
}

func (s *evmSigner) Address() common.Address {
	return s.address
}

// SignTx sends the signing payload of tx to the device and splices the
// returned signature into tx. The sender of the result must be the account.
func (s *evmSigner) SignTx(
	ctx context.Context, tx *types.Transaction, chainID *big.Int,
) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(chainID)
	payload, err := signingPayload(tx, chainID)
	if err != nil {
		return nil, err
	}
	if crypto.Keccak256Hash(payload) != signer.Hash(tx) {
		return nil, fmt.Errorf("unsupported signing payload for tx type %d", tx.Type())
	}

	res, err := s.device.transport.SignEVM(ctx, ports.EVMSignRequest{
		Path:    s.path.String(),
		ChainID: chainID,
		Payload: payload,
	})
	if err != nil {
		return nil, s.device.deviceError(err)
	}
	if len(res.R) > 32 || len(res.S) > 32 {
		return nil, fmt.Errorf("%w: malformed signature", domain.ErrHardwareRejected)
	}
	recoveryID, err := recoveryID(res.V, chainID)
	if err != nil {
		return nil, err
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig[32-len(res.R):32], res.R)
	copy(sig[64-len(res.S):64], res.S)
	sig[64] = recoveryID

	signed, err := tx.WithSignature(signer, sig)
	if err != nil {
		return nil, err
	}
	sender, err := types.Sender(signer, signed)
	if err != nil {
		return nil, err
	}
	if sender != s.address {
		return nil, fmt.Errorf(
			"%w: tx signed by %s instead of %s", domain.ErrHardwareRejected, sender, s.address,
		)
	}
	stats.SignedTransactions.WithLabelValues("evm", s.device.signerName()).Inc()
	return signed, nil
}

func (s *evmSigner) SignPersonalMessage(ctx context.Context, msg []byte) ([]byte, error) {
	sig, err := s.device.transport.SignMessage(ctx, ports.MessageSignRequest{
		Coin:    ports.CoinEthereum,
		Path:    s.path.String(),
		Message: msg,
	})
	if err != nil {
		return nil, s.device.deviceError(err)
	}
	return s.checkSignature(accounts.TextHash(msg), sig)
}

func (s *evmSigner) SignHash(ctx context.Context, hash []byte) ([]byte, error) {
	if len(hash) != common.HashLength {
		return nil, wallet.ErrInvalidMessageHash
	}
	sig, err := s.device.transport.SignMessage(ctx, ports.MessageSignRequest{
		Coin: ports.CoinEthereum,
		Path: s.path.String(),
		Hash: hash,
	})
	if err != nil {
		return nil, s.device.deviceError(err)
	}
	return s.checkSignature(hash, sig)
}

// checkSignature returns sig in [R || S || V] form with V in {27, 28} if it
// was produced by the account over hash.
func (s *evmSigner) checkSignature(hash, sig []byte) ([]byte, error) {
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("%w: malformed signature", domain.ErrHardwareRejected)
	}
	rsv := wallet.SignatureToRSV(sig)
	normalized := make([]byte, len(rsv))
	copy(normalized, rsv)
	normalized[64] -= 27

	pubkey, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrHardwareRejected, err)
	}
	if signer := crypto.PubkeyToAddress(*pubkey); signer != s.address {
		return nil, fmt.Errorf(
			"%w: message signed by %s instead of %s", domain.ErrHardwareRejected, signer, s.address,
		)
	}
	return rsv, nil
}

// signingPayload returns the serialization of tx whose keccak hash is signed.
func signingPayload(tx *types.Transaction, chainID *big.Int) ([]byte, error) {
	switch tx.Type() {
	case types.LegacyTxType:
		return rlp.EncodeToBytes([]interface{}{
			tx.Nonce(), tx.GasPrice(), tx.Gas(), tx.To(), tx.Value(), tx.Data(),
			chainID, uint(0), uint(0),
		})
	case types.AccessListTxType:
		return typedPayload(types.AccessListTxType, []interface{}{
			chainID, tx.Nonce(), tx.GasPrice(), tx.Gas(), tx.To(), tx.Value(), tx.Data(),
			tx.AccessList(),
		})
	case types.DynamicFeeTxType:
		return typedPayload(types.DynamicFeeTxType, []interface{}{
			chainID, tx.Nonce(), tx.GasTipCap(), tx.GasFeeCap(), tx.Gas(), tx.To(),
			tx.Value(), tx.Data(), tx.AccessList(),
		})
	default:
		return nil, fmt.Errorf("unsupported tx type %d", tx.Type())
	}
}

func typedPayload(txType byte, fields []interface{}) ([]byte, error) {
	encoded, err := rlp.EncodeToBytes(fields)
	if err != nil {
		return nil, err
	}
	return append([]byte{txType}, encoded...), nil
}

// recoveryID normalizes the v value returned by a device, either a raw
// recovery id, 27/28, or an EIP-155 value possibly truncated to one byte.
func recoveryID(v uint64, chainID *big.Int) (byte, error) {
	switch {
	case v <= 1:
		return byte(v), nil
	case v == 27 || v == 28:
		return byte(v - 27), nil
	}

	base := new(big.Int).Mul(chainID, big.NewInt(2))
	base.Add(base, big.NewInt(35))
	diff := new(big.Int).Sub(new(big.Int).SetUint64(v), base)
	if diff.Sign() >= 0 && diff.Cmp(big.NewInt(1)) <= 0 {
		return byte(diff.Uint64()), nil
	}
	if v <= 0xff {
		if truncated := (v - base.Uint64()) & 0xff; truncated <= 1 {
			return byte(truncated), nil
		}
	}
	return 0, fmt.Errorf("%w: invalid signature v %d", domain.ErrHardwareRejected, v)
}

package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/pkg/mathutil"
	log "github.com/sirupsen/logrus"
)

// SendTransaction signs params with the active account signer and sends the
// result once.
func (s *service) SendTransaction(
	ctx context.Context, params TxParams,
) (*types.Transaction, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	session, err := s.sessions.EVMSession(ctx)
	if err != nil {
		return nil, err
	}
	return sendTransaction(ctx, session, params)
}

// CancelTransaction replaces the pending transaction hash with a zero value
// transfer to self at the same nonce and a bumped fee.
func (s *service) CancelTransaction(
	ctx context.Context, hash common.Hash,
) (*types.Transaction, error) {
	session, err := s.sessions.EVMSession(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := pendingOwnTransaction(ctx, session, hash)
	if err != nil {
		return nil, err
	}

	self := session.Signer.Address()
	nonce := pending.Nonce()
	params := bumpedFees(pending)
	params.To = &self
	params.Value = new(big.Int)
	params.Gas = transferGas
	params.Nonce = &nonce

	tx, err := sendTransaction(ctx, session, params)
	if err != nil {
		return nil, err
	}
	log.Infof("evm: cancelled tx %s with %s", hash, tx.Hash())
	return tx, nil
}

// SpeedUpTransaction resends the pending transaction hash with a bumped fee.
// The gas limit is estimated again.
func (s *service) SpeedUpTransaction(
	ctx context.Context, hash common.Hash,
) (*types.Transaction, error) {
	session, err := s.sessions.EVMSession(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := pendingOwnTransaction(ctx, session, hash)
	if err != nil {
		return nil, err
	}

	nonce := pending.Nonce()
	params := bumpedFees(pending)
	params.To = pending.To()
	params.Value = pending.Value()
	params.Data = pending.Data()
	params.Nonce = &nonce

	tx, err := sendTransaction(ctx, session, params)
	if err != nil {
		return nil, err
	}
	log.Infof("evm: sped up tx %s with %s", hash, tx.Hash())
	return tx, nil
}

func sendTransaction(
	ctx context.Context, session *ports.EVMSession, params TxParams,
) (*types.Transaction, error) {
	unsigned, err := buildTransaction(ctx, session, params)
	if err != nil {
		return nil, err
	}
	chainID := big.NewInt(session.Network.ChainID)
	signed, err := session.Signer.SignTx(ctx, unsigned, chainID)
	if err != nil {
		return nil, err
	}

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	if err != nil {
		return nil, err
	}
	if sender != session.Signer.Address() {
		return nil, fmt.Errorf("%w: signed by %s", domain.ErrWrongAddress, sender)
	}

	if err := session.Provider.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}
	log.Debugf("evm: sent tx %s (nonce %d)", signed.Hash(), signed.Nonce())
	return signed, nil
}

// buildTransaction fills the zero fields of params and returns the unsigned
// transaction, legacy if a gas price is set and dynamic fee otherwise.
func buildTransaction(
	ctx context.Context, session *ports.EVMSession, params TxParams,
) (*types.Transaction, error) {
	if params.Value == nil {
		params.Value = new(big.Int)
	}

	if params.GasPrice == nil && params.MaxFeePerGas == nil {
		fees, err := feeData(ctx, session.Provider)
		if err != nil {
			return nil, err
		}
		params.GasPrice = fees.GasPrice
		params.MaxFeePerGas = fees.MaxFeePerGas
		params.MaxPriorityFeePerGas = fees.MaxPriorityFeePerGas
	}
	if params.MaxFeePerGas != nil && params.MaxPriorityFeePerGas == nil {
		params.MaxPriorityFeePerGas = new(big.Int).Set(fallbackTipCap)
		if params.MaxPriorityFeePerGas.Cmp(params.MaxFeePerGas) > 0 {
			params.MaxPriorityFeePerGas = new(big.Int).Set(params.MaxFeePerGas)
		}
	}

	nonce := uint64(0)
	if params.Nonce != nil {
		nonce = *params.Nonce
	} else {
		n, err := session.Provider.PendingNonceAt(ctx, session.Signer.Address())
		if err != nil {
			return nil, err
		}
		nonce = n
	}

	gas := params.Gas
	if gas == 0 {
		estimated, err := estimateGas(ctx, session, params)
		if err != nil {
			return nil, err
		}
		gas = estimated
	}

	if params.GasPrice != nil {
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: params.GasPrice,
			Gas:      gas,
			To:       params.To,
			Value:    params.Value,
			Data:     params.Data,
		}), nil
	}
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(session.Network.ChainID),
		Nonce:     nonce,
		GasTipCap: params.MaxPriorityFeePerGas,
		GasFeeCap: params.MaxFeePerGas,
		Gas:       gas,
		To:        params.To,
		Value:     params.Value,
		Data:      params.Data,
	}), nil
}

// pendingOwnTransaction returns the transaction hash if it is still pending
// and was sent by the active account.
func pendingOwnTransaction(
	ctx context.Context, session *ports.EVMSession, hash common.Hash,
) (*types.Transaction, error) {
	tx, isPending, err := session.Provider.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if !isPending {
		return nil, ErrTransactionMined
	}
	sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, err
	}
	if sender != session.Signer.Address() {
		return nil, fmt.Errorf("%w: tx %s sent by %s", domain.ErrWrongAddress, hash, sender)
	}
	return tx, nil
}

// bumpedFees returns the fee fields of tx raised by the replacement factor,
// keeping its fee model.
func bumpedFees(tx *types.Transaction) TxParams {
	if tx.Type() == types.LegacyTxType || tx.Type() == types.AccessListTxType {
		return TxParams{GasPrice: mathutil.BumpFee(tx.GasPrice())}
	}
	return TxParams{
		MaxFeePerGas:         mathutil.BumpFee(tx.GasFeeCap()),
		MaxPriorityFeePerGas: mathutil.BumpFee(tx.GasTipCap()),
	}
}

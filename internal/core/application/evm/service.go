// Package evm builds, signs and sends transactions of the EVM chain family
// and signs messages on behalf of the active account.
package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/pkg/mathutil"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	// transferGas is the gas used by a plain value transfer.
	transferGas = 21000
)

var (
	// fallbackTipCap is the priority fee used when the node cannot suggest
	// one.
	fallbackTipCap = mathutil.GweiToWei(decimal.NewFromFloat(1.5))

	// ErrConflictingFeeFields ...
	ErrConflictingFeeFields = &domain.Error{
		Kind: domain.KindValidation,
		Err:  errors.New("gas price and dynamic fee fields are mutually exclusive"),
	}
	// ErrTransactionMined is returned when replacing a transaction that is
	// not pending anymore.
	ErrTransactionMined = &domain.Error{
		Kind: domain.KindValidation,
		Err:  errors.New("transaction is not pending"),
	}
)

// SessionProvider gives access to the active EVM account and its signer.
type SessionProvider interface {
	EVMSession(ctx context.Context) (*ports.EVMSession, error)
}

// FeeData holds either the dynamic fee fields or, on chains without a base
// fee, GasPrice.
type FeeData struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	GasPrice             *big.Int
}

// IsLegacy ...
func (f FeeData) IsLegacy() bool {
	return f.GasPrice != nil
}

// TxParams describes a transaction of the active account. Zero fields are
// filled in: nonce from the pending state, fees from GetFeeData and gas by
// estimation.
type TxParams struct {
	To    *common.Address
	Value *big.Int
	Data  []byte
	Gas   uint64
	Nonce *uint64

	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

func (p TxParams) validate() error {
	if p.GasPrice != nil && (p.MaxFeePerGas != nil || p.MaxPriorityFeePerGas != nil) {
		return ErrConflictingFeeFields
	}
	if p.Value != nil && p.Value.Sign() < 0 {
		return fmt.Errorf("value must not be negative")
	}
	return nil
}

// Service is the EVM transaction builder.
type Service interface {
	GetFeeData(ctx context.Context) (*FeeData, error)
	GetRecommendedNonce(ctx context.Context, address common.Address) (uint64, error)
	EstimateGas(ctx context.Context, params TxParams) (uint64, error)
	GetBalance(ctx context.Context, address common.Address) (decimal.Decimal, error)

	SendTransaction(ctx context.Context, params TxParams) (*types.Transaction, error)
	SendToken(ctx context.Context, transfer TokenTransfer) (*types.Transaction, error)
	CancelTransaction(ctx context.Context, hash common.Hash) (*types.Transaction, error)
	SpeedUpTransaction(ctx context.Context, hash common.Hash) (*types.Transaction, error)

	SignMessage(ctx context.Context, req MessageRequest) (string, error)
	VerifyPersonalMessage(msg, signature string) (common.Address, error)
}

// ServiceOpts is the struct given to NewService.
type ServiceOpts struct {
	Sessions SessionProvider
}

func (o ServiceOpts) validate() error {
	if o.Sessions == nil {
		return fmt.Errorf("missing session provider")
	}
	return nil
}

type service struct {
	sessions SessionProvider
}

func NewService(opts ServiceOpts) (Service, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &service{opts.Sessions}, nil
}

// GetFeeData returns the EIP-1559 fee fields of the active network, or the
// legacy gas price if its blocks have no base fee.
func (s *service) GetFeeData(ctx context.Context) (*FeeData, error) {
	session, err := s.sessions.EVMSession(ctx)
	if err != nil {
		return nil, err
	}
	return feeData(ctx, session.Provider)
}

func feeData(ctx context.Context, provider ports.EVMProvider) (*FeeData, error) {
	header, err := provider.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}

	if header.BaseFee == nil {
		gasPrice, err := provider.SuggestGasPrice(ctx)
		if err != nil {
			return nil, err
		}
		return &FeeData{GasPrice: gasPrice}, nil
	}

	tip, err := provider.SuggestGasTipCap(ctx)
	if err != nil {
		log.WithError(err).Warn("evm: failed to suggest priority fee, using fallback")
		tip = new(big.Int).Set(fallbackTipCap)
	}
	maxFee := new(big.Int).Mul(header.BaseFee, big.NewInt(2))
	maxFee.Add(maxFee, tip)
	return &FeeData{MaxFeePerGas: maxFee, MaxPriorityFeePerGas: tip}, nil
}

func (s *service) GetRecommendedNonce(
	ctx context.Context, address common.Address,
) (uint64, error) {
	session, err := s.sessions.EVMSession(ctx)
	if err != nil {
		return 0, err
	}
	return session.Provider.PendingNonceAt(ctx, address)
}

func (s *service) EstimateGas(ctx context.Context, params TxParams) (uint64, error) {
	if err := params.validate(); err != nil {
		return 0, err
	}
	session, err := s.sessions.EVMSession(ctx)
	if err != nil {
		return 0, err
	}
	return estimateGas(ctx, session, params)
}

func estimateGas(
	ctx context.Context, session *ports.EVMSession, params TxParams,
) (uint64, error) {
	return session.Provider.EstimateGas(ctx, ethereum.CallMsg{
		From:      session.Signer.Address(),
		To:        params.To,
		Value:     params.Value,
		Data:      params.Data,
		GasPrice:  params.GasPrice,
		GasFeeCap: params.MaxFeePerGas,
		GasTipCap: params.MaxPriorityFeePerGas,
	})
}

// GetBalance returns the balance of address in the network native coin.
func (s *service) GetBalance(
	ctx context.Context, address common.Address,
) (decimal.Decimal, error) {
	session, err := s.sessions.EVMSession(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	wei, err := session.Provider.BalanceAt(ctx, address, nil)
	if err != nil {
		return decimal.Zero, err
	}
	return mathutil.FromWei(wei), nil
}

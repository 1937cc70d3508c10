package evm_test

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) ChainID(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	return bigIntOf(args, 0), args.Error(1)
}

func (m *mockProvider) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	args := m.Called(ctx, number)
	var res *types.Header
	if a := args.Get(0); a != nil {
		res = a.(*types.Header)
	}
	return res, args.Error(1)
}

func (m *mockProvider) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	return bigIntOf(args, 0), args.Error(1)
}

func (m *mockProvider) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	return bigIntOf(args, 0), args.Error(1)
}

func (m *mockProvider) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockProvider) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockProvider) BalanceAt(
	ctx context.Context, account common.Address, blockNumber *big.Int,
) (*big.Int, error) {
	args := m.Called(ctx, account, blockNumber)
	return bigIntOf(args, 0), args.Error(1)
}

func (m *mockProvider) TransactionByHash(
	ctx context.Context, hash common.Hash,
) (*types.Transaction, bool, error) {
	args := m.Called(ctx, hash)
	var res *types.Transaction
	if a := args.Get(0); a != nil {
		res = a.(*types.Transaction)
	}
	return res, args.Bool(1), args.Error(2)
}

func (m *mockProvider) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *mockProvider) Close() {
	m.Called()
}

func bigIntOf(args mock.Arguments, i int) *big.Int {
	if a := args.Get(i); a != nil {
		return a.(*big.Int)
	}
	return nil
}

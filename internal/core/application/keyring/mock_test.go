package keyring_test

import (
	"context"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/pkg/explorer"
	"github.com/stretchr/testify/mock"
)

type mockExplorer struct {
	mock.Mock
}

func (m *mockExplorer) GetInfo(ctx context.Context) (*ports.ExplorerInfo, error) {
	args := m.Called(ctx)
	var res *ports.ExplorerInfo
	if a := args.Get(0); a != nil {
		res = a.(*ports.ExplorerInfo)
	}
	return res, args.Error(1)
}

func (m *mockExplorer) GetUtxos(ctx context.Context, xpub string) ([]explorer.Utxo, error) {
	args := m.Called(ctx, xpub)
	var res []explorer.Utxo
	if a := args.Get(0); a != nil {
		res = a.([]explorer.Utxo)
	}
	return res, args.Error(1)
}

func (m *mockExplorer) GetXpub(ctx context.Context, xpub string) (*ports.XpubInfo, error) {
	args := m.Called(ctx, xpub)
	var res *ports.XpubInfo
	if a := args.Get(0); a != nil {
		res = a.(*ports.XpubInfo)
	}
	return res, args.Error(1)
}

func (m *mockExplorer) GetTransaction(ctx context.Context, txid string) (*ports.TxInfo, error) {
	args := m.Called(ctx, txid)
	var res *ports.TxInfo
	if a := args.Get(0); a != nil {
		res = a.(*ports.TxInfo)
	}
	return res, args.Error(1)
}

func (m *mockExplorer) EstimateFee(ctx context.Context, blocks int) (uint64, error) {
	args := m.Called(ctx, blocks)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockExplorer) BroadcastTransaction(ctx context.Context, txHex string) (string, error) {
	args := m.Called(ctx, txHex)
	return args.String(0), args.Error(1)
}

func (m *mockExplorer) GetAsset(ctx context.Context, guid string) (*ports.AssetInfo, error) {
	args := m.Called(ctx, guid)
	var res *ports.AssetInfo
	if a := args.Get(0); a != nil {
		res = a.(*ports.AssetInfo)
	}
	return res, args.Error(1)
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) ChainID(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	var res *big.Int
	if a := args.Get(0); a != nil {
		res = a.(*big.Int)
	}
	return res, args.Error(1)
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
	var res *big.Int
	if a := args.Get(0); a != nil {
		res = a.(*big.Int)
	}
	return res, args.Error(1)
}

func (m *mockProvider) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	var res *big.Int
	if a := args.Get(0); a != nil {
		res = a.(*big.Int)
	}
	return res, args.Error(1)
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
	var res *big.Int
	if a := args.Get(0); a != nil {
		res = a.(*big.Int)
	}
	return res, args.Error(1)
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

type mockHardwareWallet struct {
	mock.Mock
}

func (m *mockHardwareWallet) GetAccount(
	ctx context.Context, family domain.ChainFamily, network domain.Network, index int,
) (string, string, error) {
	args := m.Called(ctx, family, network, index)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *mockHardwareWallet) UTXOSigner(
	account domain.Account, network domain.Network, params *chaincfg.Params,
) (ports.UTXOSigner, error) {
	args := m.Called(account, network, params)
	var res ports.UTXOSigner
	if a := args.Get(0); a != nil {
		res = a.(ports.UTXOSigner)
	}
	return res, args.Error(1)
}

func (m *mockHardwareWallet) EVMSigner(
	account domain.Account, network domain.Network,
) (ports.EVMSigner, error) {
	args := m.Called(account, network)
	var res ports.EVMSigner
	if a := args.Get(0); a != nil {
		res = a.(ports.EVMSigner)
	}
	return res, args.Error(1)
}

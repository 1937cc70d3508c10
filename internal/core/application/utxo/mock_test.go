package utxo_test

import (
	"context"

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

type mockAssetBuilder struct {
	mock.Mock
}

func (m *mockAssetBuilder) CreateAsset(
	ctx context.Context, req ports.AssetTxRequest, spec ports.AssetSpec,
) (*ports.AssetTx, error) {
	args := m.Called(ctx, req, spec)
	return assetTxOf(args)
}

func (m *mockAssetBuilder) IssueAsset(
	ctx context.Context, req ports.AssetTxRequest,
) (*ports.AssetTx, error) {
	args := m.Called(ctx, req)
	return assetTxOf(args)
}

func (m *mockAssetBuilder) UpdateAsset(
	ctx context.Context, req ports.AssetTxRequest, guid string, update ports.AssetUpdate,
) (*ports.AssetTx, error) {
	args := m.Called(ctx, req, guid, update)
	return assetTxOf(args)
}

func (m *mockAssetBuilder) TransferOwnership(
	ctx context.Context, req ports.AssetTxRequest, guid, newOwner string,
) (*ports.AssetTx, error) {
	args := m.Called(ctx, req, guid, newOwner)
	return assetTxOf(args)
}

func (m *mockAssetBuilder) SendAllocations(
	ctx context.Context, req ports.AssetTxRequest,
) (*ports.AssetTx, error) {
	args := m.Called(ctx, req)
	return assetTxOf(args)
}

func assetTxOf(args mock.Arguments) (*ports.AssetTx, error) {
	var res *ports.AssetTx
	if a := args.Get(0); a != nil {
		res = a.(*ports.AssetTx)
	}
	return res, args.Error(1)
}

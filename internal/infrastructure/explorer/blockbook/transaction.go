package blockbook

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/pkg/mathutil"
	"github.com/shopspring/decimal"
)

func (s *service) GetTransaction(ctx context.Context, txid string) (*ports.TxInfo, error) {
	var resp txResponse
	if err := s.get(ctx, "/tx/"+url.PathEscape(txid), &resp); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, txid)
		}
		return nil, err
	}
	return &ports.TxInfo{
		Txid:          resp.Txid,
		Confirmations: resp.Confirmations,
		BlockHeight:   resp.BlockHeight,
		Fees:          parseAmount(resp.Fees),
		Hex:           resp.Hex,
	}, nil
}

// EstimateFee converts the coin per kB estimation of blockbook into
// satoshis per kB.
func (s *service) EstimateFee(ctx context.Context, blocks int) (uint64, error) {
	if blocks <= 0 {
		blocks = 1
	}

	var resp resultResponse
	if err := s.get(ctx, fmt.Sprintf("/estimatefee/%d", blocks), &resp); err != nil {
		return 0, err
	}
	feeRate, err := decimal.NewFromString(resp.Result)
	if err != nil {
		return 0, fmt.Errorf("invalid fee estimation %q: %w", resp.Result, err)
	}
	if !feeRate.IsPositive() {
		return 0, nil
	}
	return mathutil.ToSatoshis(feeRate), nil
}

// BroadcastTransaction is never retried, a failure is returned as is.
func (s *service) BroadcastTransaction(ctx context.Context, txHex string) (string, error) {
	var resp resultResponse
	if err := s.do(ctx, http.MethodPost, "/sendtx/", txHex, &resp); err != nil {
		return "", err
	}
	return resp.Result, nil
}

func (s *service) GetAsset(ctx context.Context, guid string) (*ports.AssetInfo, error) {
	var resp assetResponse
	if err := s.get(ctx, "/asset/"+url.PathEscape(guid), &resp); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAssetNotFound, guid)
		}
		return nil, err
	}
	if resp.Asset.AssetGuid == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrAssetNotFound, guid)
	}
	return resp.toAssetInfo(), nil
}

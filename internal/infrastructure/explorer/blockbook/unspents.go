package blockbook

import (
	"context"
	"fmt"
	"net/url"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/pkg/explorer"
	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
)

func (s *service) GetUtxos(ctx context.Context, xpub string) ([]explorer.Utxo, error) {
	path := fmt.Sprintf("/utxo/%s?confirmed=true", url.PathEscape(xpub))

	var resp []utxoResponse
	if err := s.get(ctx, path, &resp); err != nil {
		return nil, err
	}

	utxos := make([]explorer.Utxo, 0, len(resp))
	for _, u := range resp {
		script, err := scriptForAddress(u.Address)
		if err != nil {
			return nil, fmt.Errorf("utxo %s:%d: %w", u.Txid, u.Vout, err)
		}
		value := parseAmount(u.Value)
		if u.AssetInfo != nil {
			utxos = append(utxos, explorer.NewAssetUtxo(
				u.Txid, u.Vout, value, script, u.Address, u.Path,
				u.Confirmations, u.AssetInfo.AssetGuid,
				parseAmount(u.AssetInfo.Value),
			))
			continue
		}
		utxos = append(utxos, explorer.NewWitnessUtxo(
			u.Txid, u.Vout, value, script, u.Address, u.Path, u.Confirmations,
		))
	}
	return utxos, nil
}

func (s *service) GetXpub(ctx context.Context, xpub string) (*ports.XpubInfo, error) {
	path := fmt.Sprintf(
		"/xpub/%s?tokens=used&details=tokens", url.PathEscape(xpub),
	)

	var resp xpubResponse
	if err := s.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.toXpubInfo(), nil
}

// scriptForAddress returns the output script locking to addr, trying the
// Syscoin mainnet and testnet params in turn.
func scriptForAddress(addr string) ([]byte, error) {
	var lastErr error
	for _, isTestnet := range []bool{false, true} {
		decoded, err := btcutil.DecodeAddress(addr, wallet.SyscoinParams(isTestnet))
		if err != nil {
			lastErr = err
			continue
		}
		return txscript.PayToAddrScript(decoded)
	}
	return nil, fmt.Errorf("invalid address %s: %w", addr, lastErr)
}

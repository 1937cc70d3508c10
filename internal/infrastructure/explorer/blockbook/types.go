package blockbook

import (
	"encoding/base64"
	"strconv"
	"unicode/utf8"

	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
)

type infoResponse struct {
	Blockbook struct {
		Coin       string `json:"coin"`
		BestHeight uint64 `json:"bestHeight"`
	} `json:"blockbook"`
	Backend struct {
		Chain  string `json:"chain"`
		Blocks uint64 `json:"blocks"`
	} `json:"backend"`
}

func (r infoResponse) toInfo() *ports.ExplorerInfo {
	height := r.Backend.Blocks
	if height == 0 {
		height = r.Blockbook.BestHeight
	}
	return &ports.ExplorerInfo{
		Coin:        r.Blockbook.Coin,
		Chain:       r.Backend.Chain,
		BlockHeight: height,
		IsTestnet:   r.Backend.Chain != "main",
	}
}

type assetAmount struct {
	AssetGuid string `json:"assetGuid"`
	Value     string `json:"value"`
}

type utxoResponse struct {
	Txid          string       `json:"txid"`
	Vout          uint32       `json:"vout"`
	Value         string       `json:"value"`
	Height        int64        `json:"height"`
	Confirmations uint64       `json:"confirmations"`
	Address       string       `json:"address"`
	Path          string       `json:"path"`
	AssetInfo     *assetAmount `json:"assetInfo,omitempty"`
}

type tokenResponse struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	Transfers int    `json:"transfers"`
	Balance   string `json:"balance"`
	AssetGuid string `json:"assetGuid"`
}

type xpubResponse struct {
	Balance            string          `json:"balance"`
	UnconfirmedBalance string          `json:"unconfirmedBalance"`
	Tokens             []tokenResponse `json:"tokens"`
	TokensAsset        []tokenResponse `json:"tokensAsset"`
}

func (r xpubResponse) toXpubInfo() *ports.XpubInfo {
	info := &ports.XpubInfo{
		Balance:            parseAmount(r.Balance),
		UnconfirmedBalance: parseSignedAmount(r.UnconfirmedBalance),
		Tokens:             make([]ports.XpubToken, 0, len(r.Tokens)),
	}
	for _, t := range append(r.Tokens, r.TokensAsset...) {
		info.Tokens = append(info.Tokens, ports.XpubToken{
			Name:      t.Name,
			Path:      t.Path,
			Transfers: t.Transfers,
			AssetGuid: t.AssetGuid,
			Balance:   parseAmount(t.Balance),
		})
	}
	return info
}

type txResponse struct {
	Txid          string `json:"txid"`
	BlockHeight   int64  `json:"blockHeight"`
	Confirmations uint64 `json:"confirmations"`
	Fees          string `json:"fees"`
	Hex           string `json:"hex"`
}

type resultResponse struct {
	Result string `json:"result"`
}

type assetResponse struct {
	Asset struct {
		AssetGuid   string `json:"assetGuid"`
		Symbol      string `json:"symbol"`
		Decimals    int    `json:"decimals"`
		MaxSupply   string `json:"maxSupply"`
		TotalSupply string `json:"totalSupply"`
		Contract    string `json:"contract"`
		PubData     struct {
			Desc string `json:"desc"`
		} `json:"pubData"`
		UpdateCapabilityFlags uint8 `json:"updateCapabilityFlags"`
	} `json:"asset"`
}

func (r assetResponse) toAssetInfo() *ports.AssetInfo {
	a := r.Asset
	return &ports.AssetInfo{
		Guid:                  a.AssetGuid,
		Symbol:                decodeBase64(a.Symbol),
		Precision:             a.Decimals,
		MaxSupply:             parseAmount(a.MaxSupply),
		TotalSupply:           parseAmount(a.TotalSupply),
		Contract:              a.Contract,
		Description:           decodeBase64(a.PubData.Desc),
		UpdateCapabilityFlags: a.UpdateCapabilityFlags,
	}
}

// Blockbook returns amounts as strings of base units.
func parseAmount(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// unconfirmed balances can be negative when spending.
func parseSignedAmount(s string) uint64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return uint64(v)
}

// symbols and descriptions are stored base64 encoded on chain.
func decodeBase64(s string) string {
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil || !utf8.Valid(decoded) || len(decoded) == 0 {
		return s
	}
	return string(decoded)
}

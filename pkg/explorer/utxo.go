// Package explorer defines the unspent output model shared by the UTXO
// explorer clients and the coin selection used to fund transactions.
package explorer

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// NativeAsset identifies outputs that only carry the chain native coin.
const NativeAsset = ""

// Utxo represents an unspent transaction output owned by an account xpub.
type Utxo interface {
	Hash() string
	Index() uint32
	// Value is the native coin amount in satoshis.
	Value() uint64
	// Asset is the guid of the asset allocation carried by the output or
	// NativeAsset.
	Asset() string
	// AssetValue is the allocated asset amount in the asset base units.
	AssetValue() uint64
	Script() []byte
	Address() string
	// Path is the full derivation path of the output key as reported by the
	// explorer, eg. m/84'/57'/0'/1/3.
	Path() string
	Confirmations() uint64
	IsConfirmed() bool
	Parse() (*wire.OutPoint, *wire.TxOut, error)
}

// NewWitnessUtxo returns a Utxo locked by a witness program.
func NewWitnessUtxo(
	hash string, index uint32, value uint64, script []byte,
	address, path string, confirmations uint64,
) Utxo {
	return witnessUtxo{
		UHash:          hash,
		UIndex:         index,
		UValue:         value,
		UScript:        script,
		UAddress:       address,
		UPath:          path,
		UConfirmations: confirmations,
	}
}

// NewAssetUtxo returns a Utxo that also carries an asset allocation.
func NewAssetUtxo(
	hash string, index uint32, value uint64, script []byte,
	address, path string, confirmations uint64,
	assetGuid string, assetValue uint64,
) Utxo {
	return witnessUtxo{
		UHash:          hash,
		UIndex:         index,
		UValue:         value,
		UScript:        script,
		UAddress:       address,
		UPath:          path,
		UConfirmations: confirmations,
		UAsset:         assetGuid,
		UAssetValue:    assetValue,
	}
}

type witnessUtxo struct {
	UHash          string `json:"txid"`
	UIndex         uint32 `json:"vout"`
	UValue         uint64 `json:"value"`
	UAsset         string `json:"assetGuid,omitempty"`
	UAssetValue    uint64 `json:"assetValue,omitempty"`
	UAddress       string `json:"address"`
	UPath          string `json:"path"`
	UConfirmations uint64 `json:"confirmations"`
	UScript        []byte `json:"script"`
}

func (wu witnessUtxo) Hash() string {
	return wu.UHash
}

func (wu witnessUtxo) Index() uint32 {
	return wu.UIndex
}

func (wu witnessUtxo) Value() uint64 {
	return wu.UValue
}

func (wu witnessUtxo) Asset() string {
	return wu.UAsset
}

func (wu witnessUtxo) AssetValue() uint64 {
	return wu.UAssetValue
}

func (wu witnessUtxo) Script() []byte {
	return wu.UScript
}

func (wu witnessUtxo) Address() string {
	return wu.UAddress
}

func (wu witnessUtxo) Path() string {
	return wu.UPath
}

func (wu witnessUtxo) Confirmations() uint64 {
	return wu.UConfirmations
}

func (wu witnessUtxo) IsConfirmed() bool {
	return wu.UConfirmations > 0
}

// Parse returns the outpoint to spend and the previous output it refers to.
func (wu witnessUtxo) Parse() (*wire.OutPoint, *wire.TxOut, error) {
	hash, err := chainhash.NewHashFromStr(wu.UHash)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid utxo hash %s: %w", wu.UHash, err)
	}
	if len(wu.UScript) <= 0 {
		return nil, nil, fmt.Errorf("utxo %s:%d has no script", wu.UHash, wu.UIndex)
	}
	return wire.NewOutPoint(hash, wu.UIndex),
		wire.NewTxOut(int64(wu.UValue), wu.UScript), nil
}

func (wu witnessUtxo) String() string {
	return fmt.Sprintf("%s:%d (%d, %s)", wu.UHash, wu.UIndex, wu.UValue, hex.EncodeToString(wu.UScript))
}

// Balance sums the native value of the given utxos.
func Balance(utxos []Utxo) uint64 {
	total := uint64(0)
	for _, u := range utxos {
		total += u.Value()
	}
	return total
}

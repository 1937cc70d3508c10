package ports

import (
	"context"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/pkg/explorer"
)

// ExplorerInfo is the backend status reported by a UTXO explorer.
type ExplorerInfo struct {
	Coin        string
	Chain       string
	BlockHeight uint64
	IsTestnet   bool
}

// TxInfo is the explorer view of a transaction.
type TxInfo struct {
	Txid          string
	Confirmations uint64
	BlockHeight   int64
	Fees          uint64
	Hex           string
}

// XpubToken is an address derived from an xpub as tracked by the explorer.
type XpubToken struct {
	Name      string
	Path      string
	Transfers int
	AssetGuid string
	Balance   uint64
}

// XpubInfo is the explorer view of an account xpub.
type XpubInfo struct {
	Balance            uint64
	UnconfirmedBalance uint64
	Tokens             []XpubToken
}

// AssetInfo describes an asset of the UTXO native asset layer.
type AssetInfo struct {
	Guid                  string
	Symbol                string
	Precision             int
	MaxSupply             uint64
	TotalSupply           uint64
	Contract              string
	Description           string
	UpdateCapabilityFlags uint8
}

// UTXOExplorer is the read/broadcast gateway of a UTXO network.
type UTXOExplorer interface {
	GetInfo(ctx context.Context) (*ExplorerInfo, error)
	GetUtxos(ctx context.Context, xpub string) ([]explorer.Utxo, error)
	GetXpub(ctx context.Context, xpub string) (*XpubInfo, error)
	GetTransaction(ctx context.Context, txid string) (*TxInfo, error)
	// EstimateFee returns the fee rate in satoshis per kilobyte for
	// confirmation within the given number of blocks.
	EstimateFee(ctx context.Context, blocks int) (uint64, error)
	BroadcastTransaction(ctx context.Context, txHex string) (string, error)
	GetAsset(ctx context.Context, guid string) (*AssetInfo, error)
}

// UTXOExplorerFactory opens an explorer for the given network.
type UTXOExplorerFactory func(network domain.Network) (UTXOExplorer, error)

// AssetOutput is a single allocation of an asset to an address.
type AssetOutput struct {
	Address string
	Value   uint64
}

// AssetAllocation is the entry of an allocation map, keyed by asset guid.
type AssetAllocation struct {
	ChangeAddress string
	Outputs       []AssetOutput
}

// DefaultUpdateCapabilityFlags lets the owner update every mutable field of
// an asset.
const DefaultUpdateCapabilityFlags uint8 = 127

// AssetSpec describes a new asset.
type AssetSpec struct {
	Symbol        string
	Description   string
	Contract      string
	Precision     int
	MaxSupply     uint64
	InitialSupply uint64
	// UpdateCapabilityFlags restricts future updates, 0 freezes the asset.
	UpdateCapabilityFlags uint8
	NotaryAddress         string
}

// AssetUpdate holds the mutable fields of an asset, nil fields are kept.
type AssetUpdate struct {
	Description           *string
	Contract              *string
	UpdateCapabilityFlags *uint8
	NotaryAddress         *string
}

// AssetTxRequest carries the funding context of every asset transaction.
type AssetTxRequest struct {
	Xpub          string
	Utxos         []explorer.Utxo
	ChangeAddress string
	FeeRate       uint64
	// Allocations is the guid -> allocation map to send.
	Allocations map[string]AssetAllocation
}

// AssetTx is an unsigned asset transaction. Guid is set when the
// transaction creates a new asset.
type AssetTx struct {
	Psbt *psbt.Packet
	Guid string
}

// AssetTxBuilder composes unsigned transactions of the native asset layer.
// Inputs must carry bip32 derivations so that any signer can sign them.
type AssetTxBuilder interface {
	CreateAsset(ctx context.Context, req AssetTxRequest, spec AssetSpec) (*AssetTx, error)
	IssueAsset(ctx context.Context, req AssetTxRequest) (*AssetTx, error)
	UpdateAsset(ctx context.Context, req AssetTxRequest, guid string, update AssetUpdate) (*AssetTx, error)
	TransferOwnership(ctx context.Context, req AssetTxRequest, guid, newOwner string) (*AssetTx, error)
	SendAllocations(ctx context.Context, req AssetTxRequest) (*AssetTx, error)
}

// UTXOSigner signs the inputs of a psbt owned by an account.
type UTXOSigner interface {
	// Xpub is the account extended public key.
	Xpub() string
	// Fingerprint is the master fingerprint written into bip32 derivations.
	Fingerprint() uint32
	// SignPsbt signs the owned inputs and returns how many were signed.
	SignPsbt(ctx context.Context, ptx *psbt.Packet) (int, error)
}

// UTXOSession is everything a UTXO builder needs for one operation.
type UTXOSession struct {
	Account  domain.Account
	Network  domain.Network
	Params   *chaincfg.Params
	Explorer UTXOExplorer
	Signer   UTXOSigner
}

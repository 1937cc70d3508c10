// Package utxo builds, signs and broadcasts transactions of the UTXO chain
// family, including the multi-step protocols of the native asset layer.
package utxo

import (
	"context"
	"fmt"
	"time"

	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/pkg/explorer"
	"github.com/shopspring/decimal"
)

const (
	// DefaultPollInterval is the period between two confirmation checks.
	DefaultPollInterval = 16 * time.Second
	// DefaultFeeRate is the fee rate in sats/byte used when the explorer has
	// no estimation.
	DefaultFeeRate = 10
	// minFeeRate is the minimum relay fee rate in sats/byte.
	minFeeRate = 1
	// dustAmount is the minimum value of a change output.
	dustAmount = 546
	// feeTargetBlocks is the confirmation target of fee estimations.
	feeTargetBlocks = 1
)

// SessionProvider gives access to the active UTXO account and its signer.
type SessionProvider interface {
	UTXOSession(ctx context.Context) (*ports.UTXOSession, error)
}

// FeeRequest describes a native payment to price.
type FeeRequest struct {
	To     string
	Amount decimal.Decimal
	// FeeRate in sats/byte, the recommended one is used if zero.
	FeeRate uint64
}

// SendRequest describes a native payment.
type SendRequest struct {
	To      string
	Amount  decimal.Decimal
	FeeRate uint64
	// Memo is attached as an OP_RETURN output if not empty.
	Memo []byte
}

// SendResult is the outcome of a native payment. Txid is empty if the
// transaction was not broadcast.
type SendResult struct {
	Txid   string
	TxHex  string
	Fee    uint64
	Amount uint64
	// SendMax is true when the output was reduced by the fee to spend the
	// whole balance.
	SendMax bool
}

// PsbtExchange is the PSBT interchange format: a base64 PSBT and the JSON
// metadata of the asset allocations it carries.
type PsbtExchange struct {
	Psbt   string `json:"psbt"`
	Assets string `json:"assets"`
}

// SignResult is either the signed exchange or, if broadcast, the txid.
type SignResult struct {
	Exchange *PsbtExchange
	Txid     string
}

// TokenSpec describes a fungible token to create. Supplies are expressed in
// token units.
type TokenSpec struct {
	Symbol        string
	Description   string
	Contract      string
	Precision     int
	MaxSupply     decimal.Decimal
	InitialSupply decimal.Decimal
	// Receiver of the initial supply, the active account by default.
	Receiver string
	FeeRate  uint64
}

// NFTSpec describes a non fungible token to create and mint to Receiver.
type NFTSpec struct {
	Symbol      string
	Description string
	Contract    string
	Precision   int
	Receiver    string
	FeeRate     uint64
}

// AssetResult is the outcome of an asset protocol, Txids holds one txid per
// step.
type AssetResult struct {
	Guid  string
	Txids []string
}

// Service is the UTXO transaction builder.
type Service interface {
	EstimateFee(ctx context.Context, req FeeRequest) (uint64, error)
	GetRecommendedFee(ctx context.Context) (uint64, error)
	SendTransaction(ctx context.Context, req SendRequest, broadcast bool) (*SendResult, error)
	SignPSBT(ctx context.Context, exchange PsbtExchange, broadcast bool) (*SignResult, error)

	CreateToken(ctx context.Context, spec TokenSpec) (*AssetResult, error)
	MintToken(ctx context.Context, guid string, amount decimal.Decimal, receiver string) (*AssetResult, error)
	CreateNFT(ctx context.Context, spec NFTSpec) (*AssetResult, error)
	UpdateToken(ctx context.Context, guid string, update ports.AssetUpdate) (*AssetResult, error)
	TransferOwnership(ctx context.Context, guid, newOwner string) (*AssetResult, error)
	SendToken(ctx context.Context, guid string, amount decimal.Decimal, to string) (*AssetResult, error)

	WaitForConfirmations(ctx context.Context, txid string, minConfirmations uint64) (*ports.TxInfo, error)
}

// ServiceOpts is the struct given to NewService.
type ServiceOpts struct {
	Sessions SessionProvider
	// AssetBuilder is optional, without it asset operations fail with
	// ErrAssetBuilderUnavailable.
	AssetBuilder ports.AssetTxBuilder
	PollInterval time.Duration
	// MaxWait bounds every confirmation wait, 0 means unbounded.
	MaxWait time.Duration
}

func (o ServiceOpts) validate() error {
	if o.Sessions == nil {
		return fmt.Errorf("missing session provider")
	}
	if o.PollInterval < 0 {
		return fmt.Errorf("poll interval must not be negative")
	}
	if o.MaxWait < 0 {
		return fmt.Errorf("max wait must not be negative")
	}
	return nil
}

type service struct {
	sessions     SessionProvider
	assetBuilder ports.AssetTxBuilder
	pollInterval time.Duration
	maxWait      time.Duration
}

func NewService(opts ServiceOpts) (Service, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = DefaultPollInterval
	}
	return &service{
		sessions:     opts.Sessions,
		assetBuilder: opts.AssetBuilder,
		pollInterval: pollInterval,
		maxWait:      opts.MaxWait,
	}, nil
}

func nativeUtxos(utxos []explorer.Utxo) []explorer.Utxo {
	native := make([]explorer.Utxo, 0, len(utxos))
	for _, u := range utxos {
		if u.Asset() == explorer.NativeAsset {
			native = append(native, u)
		}
	}
	return native
}

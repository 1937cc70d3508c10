package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
)

// EVMProvider is the JSON-RPC gateway of an EVM network.
type EVMProvider interface {
	// ChainID checks the endpoint and is never retried.
	ChainID(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	// SendTransaction broadcasts tx at most once.
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	Close()
}

// EVMDialer connects to the given network.
type EVMDialer func(ctx context.Context, network domain.Network) (EVMProvider, error)

// EVMSigner signs on behalf of a single EVM account.
type EVMSigner interface {
	Address() common.Address
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
	// SignPersonalMessage signs msg with the EIP-191 prefix.
	SignPersonalMessage(ctx context.Context, msg []byte) ([]byte, error)
	// SignHash signs a 32 byte digest, as for eth_sign and typed data.
	SignHash(ctx context.Context, hash []byte) ([]byte, error)
}

// EVMSession is everything an EVM builder needs for one operation.
type EVMSession struct {
	Account  domain.Account
	Network  domain.Network
	Provider EVMProvider
	Signer   EVMSigner
}

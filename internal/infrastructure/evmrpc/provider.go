package evmrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/pkg/circuitbreaker"
	log "github.com/sirupsen/logrus"
)

// limitExceededCode is the JSON-RPC error code returned by rate limited
// nodes. Internal errors (-32603) are not retried, nodes also return them for
// deterministic failures.
const limitExceededCode = -32005

// ProviderOpts is the struct given to NewProvider.
type ProviderOpts struct {
	URL         string
	MaxRequests int
	Cooldown    time.Duration
	// MaxRetries bounds the retries of a read after a server error, see
	// circuitbreaker.ThrottleOpts.
	MaxRetries int
}

type provider struct {
	client   *ethclient.Client
	throttle *circuitbreaker.Throttle
}

// NewProvider dials the JSON-RPC endpoint at opts.URL. Every call goes
// through a throttle that, after a server error, admits at most
// opts.MaxRequests per opts.Cooldown window.
func NewProvider(ctx context.Context, opts ProviderOpts) (ports.EVMProvider, error) {
	if len(opts.URL) <= 0 {
		return nil, fmt.Errorf("missing rpc url")
	}
	client, err := ethclient.DialContext(ctx, opts.URL)
	if err != nil {
		return nil, domain.NetworkError(err)
	}

	return &provider{
		client: client,
		throttle: circuitbreaker.NewThrottle(circuitbreaker.ThrottleOpts{
			Name:          "evmrpc",
			MaxRequests:   opts.MaxRequests,
			Cooldown:      opts.Cooldown,
			MaxRetries:    opts.MaxRetries,
			IsServerError: isServerError,
		}),
	}, nil
}

// NewDialer returns a dialer opening a provider for the url of a network.
func NewDialer(maxRequests int, cooldown time.Duration) ports.EVMDialer {
	return func(ctx context.Context, network domain.Network) (ports.EVMProvider, error) {
		log.Debugf("evmrpc: dialing %s", network)
		return NewProvider(ctx, ProviderOpts{
			URL:         network.URL,
			MaxRequests: maxRequests,
			Cooldown:    cooldown,
		})
	}
}

// ChainID checks the connection and is never retried, so an unhealthy
// endpoint fails a network switch at once.
func (p *provider) ChainID(ctx context.Context) (*big.Int, error) {
	var chainID *big.Int
	err := p.throttle.Do(ctx, false, func(ctx context.Context) (err error) {
		chainID, err = p.client.ChainID(ctx)
		return
	})
	return chainID, wrapError(err)
}

func (p *provider) HeaderByNumber(
	ctx context.Context, number *big.Int,
) (*types.Header, error) {
	var header *types.Header
	err := p.read(ctx, func(ctx context.Context) (err error) {
		header, err = p.client.HeaderByNumber(ctx, number)
		return
	})
	return header, err
}

func (p *provider) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	var tip *big.Int
	err := p.read(ctx, func(ctx context.Context) (err error) {
		tip, err = p.client.SuggestGasTipCap(ctx)
		return
	})
	return tip, err
}

func (p *provider) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := p.read(ctx, func(ctx context.Context) (err error) {
		price, err = p.client.SuggestGasPrice(ctx)
		return
	})
	return price, err
}

func (p *provider) PendingNonceAt(
	ctx context.Context, account common.Address,
) (uint64, error) {
	var nonce uint64
	err := p.read(ctx, func(ctx context.Context) (err error) {
		nonce, err = p.client.PendingNonceAt(ctx, account)
		return
	})
	return nonce, err
}

func (p *provider) EstimateGas(
	ctx context.Context, msg ethereum.CallMsg,
) (uint64, error) {
	var gas uint64
	err := p.read(ctx, func(ctx context.Context) (err error) {
		gas, err = p.client.EstimateGas(ctx, msg)
		return
	})
	return gas, err
}

func (p *provider) BalanceAt(
	ctx context.Context, account common.Address, blockNumber *big.Int,
) (*big.Int, error) {
	var balance *big.Int
	err := p.read(ctx, func(ctx context.Context) (err error) {
		balance, err = p.client.BalanceAt(ctx, account, blockNumber)
		return
	})
	return balance, err
}

func (p *provider) TransactionByHash(
	ctx context.Context, hash common.Hash,
) (*types.Transaction, bool, error) {
	var (
		tx        *types.Transaction
		isPending bool
	)
	err := p.read(ctx, func(ctx context.Context) (err error) {
		tx, isPending, err = p.client.TransactionByHash(ctx, hash)
		return
	})
	if errors.Is(err, ethereum.NotFound) {
		return nil, false, fmt.Errorf(
			"%w: %s", domain.ErrTransactionNotFound, hash.Hex(),
		)
	}
	return tx, isPending, err
}

// SendTransaction is admitted by the throttle but never retried.
func (p *provider) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	err := p.throttle.Do(ctx, false, func(ctx context.Context) error {
		return p.client.SendTransaction(ctx, tx)
	})
	return wrapError(err)
}

func (p *provider) Close() {
	p.client.Close()
}

func (p *provider) read(ctx context.Context, fn func(ctx context.Context) error) error {
	return wrapError(p.throttle.Do(ctx, true, fn))
}

func wrapError(err error) error {
	if err == nil || errors.Is(err, ethereum.NotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.NetworkError(err)
}

func isServerError(err error) bool {
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= http.StatusInternalServerError ||
			httpErr.StatusCode == http.StatusTooManyRequests
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode() == limitExceededCode
	}
	return circuitbreaker.IsServerError(err)
}

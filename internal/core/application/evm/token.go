package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
)

// TokenStandard is the contract interface of a token.
type TokenStandard string

const (
	ERC20   TokenStandard = "ERC20"
	ERC721  TokenStandard = "ERC721"
	ERC1155 TokenStandard = "ERC1155"
)

const (
	erc20ABI = `[{"type":"function","name":"transfer","stateMutability":"nonpayable",
"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
"outputs":[{"name":"","type":"bool"}]}]`

	erc721ABI = `[{"type":"function","name":"safeTransferFrom","stateMutability":"nonpayable",
"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],
"outputs":[]}]`

	erc1155ABI = `[{"type":"function","name":"safeTransferFrom","stateMutability":"nonpayable",
"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"id","type":"uint256"},
{"name":"amount","type":"uint256"},{"name":"data","type":"bytes"}],
"outputs":[]}]`
)

var (
	erc20   = mustParseABI(erc20ABI)
	erc721  = mustParseABI(erc721ABI)
	erc1155 = mustParseABI(erc1155ABI)

	// ErrUnsupportedTokenStandard ...
	ErrUnsupportedTokenStandard = &domain.Error{
		Kind: domain.KindValidation, Err: errors.New("unsupported token standard"),
	}
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// TokenTransfer describes a token transfer from the active account. Amount
// is in token base units and is ignored for ERC721, TokenID is ignored for
// ERC20.
type TokenTransfer struct {
	Standard TokenStandard
	Contract common.Address
	To       common.Address
	Amount   *big.Int
	TokenID  *big.Int

	// Optional fee and gas overrides.
	Gas                  uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

func (t TokenTransfer) validate() error {
	if t.Contract == (common.Address{}) {
		return fmt.Errorf("missing token contract")
	}
	if t.To == (common.Address{}) {
		return fmt.Errorf("missing token recipient")
	}
	switch t.Standard {
	case ERC20:
		if t.Amount == nil || t.Amount.Sign() <= 0 {
			return fmt.Errorf("amount must be greater than zero")
		}
	case ERC721:
		if t.TokenID == nil {
			return fmt.Errorf("missing token id")
		}
	case ERC1155:
		if t.TokenID == nil {
			return fmt.Errorf("missing token id")
		}
		if t.Amount == nil || t.Amount.Sign() <= 0 {
			return fmt.Errorf("amount must be greater than zero")
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedTokenStandard, t.Standard)
	}
	return nil
}

// calldata returns the ABI encoded call moving the tokens from from.
func (t TokenTransfer) calldata(from common.Address) ([]byte, error) {
	switch t.Standard {
	case ERC20:
		return erc20.Pack("transfer", t.To, t.Amount)
	case ERC721:
		return erc721.Pack("safeTransferFrom", from, t.To, t.TokenID)
	case ERC1155:
		return erc1155.Pack("safeTransferFrom", from, t.To, t.TokenID, t.Amount, []byte{})
	default:
		return nil, ErrUnsupportedTokenStandard
	}
}

// SendToken sends a token transfer as a zero value contract call.
func (s *service) SendToken(
	ctx context.Context, transfer TokenTransfer,
) (*types.Transaction, error) {
	if err := transfer.validate(); err != nil {
		return nil, err
	}
	params := TxParams{
		To:                   &transfer.Contract,
		Gas:                  transfer.Gas,
		GasPrice:             transfer.GasPrice,
		MaxFeePerGas:         transfer.MaxFeePerGas,
		MaxPriorityFeePerGas: transfer.MaxPriorityFeePerGas,
	}
	if err := params.validate(); err != nil {
		return nil, err
	}

	session, err := s.sessions.EVMSession(ctx)
	if err != nil {
		return nil, err
	}
	data, err := transfer.calldata(session.Signer.Address())
	if err != nil {
		return nil, err
	}
	params.Data = data
	return sendTransaction(ctx, session, params)
}

package evm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
)

// MessageKind is the signing method requested by a dapp.
type MessageKind string

const (
	EthSign      MessageKind = "eth_sign"
	PersonalSign MessageKind = "personal_sign"
	TypedDataV1  MessageKind = "eth_signTypedData"
	TypedDataV3  MessageKind = "eth_signTypedData_v3"
	TypedDataV4  MessageKind = "eth_signTypedData_v4"
)

// MessageRequest asks to sign Data with the account Address. Data is a 32
// byte hex hash for EthSign, text or hex for PersonalSign and a json payload
// for typed data.
type MessageRequest struct {
	Kind    MessageKind
	Address string
	Data    string
}

// SignMessage signs req with the active account and returns the 0x prefixed
// [R || S || V] signature.
func (s *service) SignMessage(ctx context.Context, req MessageRequest) (string, error) {
	session, err := s.sessions.EVMSession(ctx)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(req.Address, session.Signer.Address().Hex()) {
		return "", fmt.Errorf(
			"%w: %s is not %s", domain.ErrWrongAddress, req.Address, session.Signer.Address(),
		)
	}

	var sig []byte
	switch req.Kind {
	case PersonalSign:
		sig, err = session.Signer.SignPersonalMessage(ctx, wallet.MessageBytes(req.Data))
	case EthSign, TypedDataV1, TypedDataV3, TypedDataV4:
		var hash []byte
		hash, err = messageHash(req)
		if err != nil {
			return "", err
		}
		sig, err = session.Signer.SignHash(ctx, hash)
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedMessageKind, req.Kind)
	}
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

func messageHash(req MessageRequest) ([]byte, error) {
	switch req.Kind {
	case EthSign:
		return wallet.RawMessageHash(req.Data)
	case TypedDataV1:
		return wallet.TypedDataV1Hash(req.Data)
	case TypedDataV3:
		return wallet.TypedDataHash(req.Data, 3)
	default:
		return wallet.TypedDataHash(req.Data, 4)
	}
}

// VerifyPersonalMessage returns the address that signed msg.
func (s *service) VerifyPersonalMessage(msg, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature: %w", err)
	}
	return wallet.RecoverPersonalSigner(msg, sig)
}

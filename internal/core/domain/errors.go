package domain

import (
	"errors"
	"fmt"
)

// Kind classifies errors so that callers can react to a whole family of
// failures without matching every sentinel.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthentication
	KindState
	KindValidation
	KindNetwork
	KindSigning
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindState:
		return "state"
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindSigning:
		return "signing"
	default:
		return "unknown"
	}
}

// Error is a sentinel error tagged with its Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

var (
	// ErrWalletLocked is returned when signing without an unlocked session
	ErrWalletLocked = newError(KindAuthentication, "wallet is locked")
	// ErrInvalidPassword ...
	ErrInvalidPassword = newError(KindAuthentication, "invalid password")
	// ErrInvalidPreviousPassword is returned when changing the password with a
	// wrong current one
	ErrInvalidPreviousPassword = newError(
		KindAuthentication, "previous password is not valid",
	)

	// ErrAccountNotFound ...
	ErrAccountNotFound = newError(KindState, "account not found")
	// ErrAccountNotSet is returned when activating an account with no public key
	ErrAccountNotSet = newError(KindState, "account not set")
	// ErrWalletNotInitialized is returned when the vault has not been created yet
	ErrWalletNotInitialized = newError(KindState, "wallet is not initialized")
	// ErrSeedRequired ...
	ErrSeedRequired = newError(KindState, "seed phrase is required")
	// ErrPasswordRequired ...
	ErrPasswordRequired = newError(KindState, "password is required")

	// ErrBase64Required ...
	ErrBase64Required = newError(KindValidation, "psbt must be base64 encoded")
	// ErrInvalidAssets ...
	ErrInvalidAssets = newError(KindValidation, "invalid psbt assets")
	// ErrInvalidSeed ...
	ErrInvalidSeed = newError(KindValidation, "invalid seed phrase")
	// ErrAccountAlreadyExists ...
	ErrAccountAlreadyExists = newError(KindValidation, "account already exists")
	// ErrUnsupportedChainFamily ...
	ErrUnsupportedChainFamily = newError(KindValidation, "unsupported chain family")
	// ErrInvalidPrivateKey ...
	ErrInvalidPrivateKey = newError(KindValidation, "invalid private key")
	// ErrNetworkNotFound ...
	ErrNetworkNotFound = newError(KindValidation, "network not found")
	// ErrActiveNetworkRemoval ...
	ErrActiveNetworkRemoval = newError(
		KindValidation, "cannot remove the active network",
	)

	// ErrRPCUnreachable wraps any failure of a remote endpoint
	ErrRPCUnreachable = newError(KindNetwork, "rpc endpoint unreachable")
	// ErrChainIDMismatch is returned when a network endpoint reports a chain
	// id other than the requested one
	ErrChainIDMismatch = newError(KindNetwork, "chain id mismatch")
	// ErrAssetNotFound ...
	ErrAssetNotFound = newError(KindNetwork, "asset not found")
	// ErrInsufficientFunds ...
	ErrInsufficientFunds = newError(KindNetwork, "insufficient funds")
	// ErrTransactionNotFound ...
	ErrTransactionNotFound = newError(KindNetwork, "transaction not found")

	// ErrHardwareRejected is returned when the device refuses to sign
	ErrHardwareRejected = newError(KindSigning, "hardware device rejected the request")
	// ErrWrongAddress is returned when asked to sign for an address other
	// than the active account's one
	ErrWrongAddress = newError(KindSigning, "address does not match the active account")
	// ErrIncompleteSignatures ...
	ErrIncompleteSignatures = newError(KindSigning, "not all inputs have been signed")
	// ErrUnsupportedMessageKind ...
	ErrUnsupportedMessageKind = newError(KindSigning, "unsupported message kind")
)

// KindOf returns the Kind of the first tagged error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// NetworkError tags err as an ErrRPCUnreachable failure, keeping the
// original error matchable.
func NetworkError(err error) error {
	if err == nil || KindOf(err) == KindNetwork {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRPCUnreachable, err)
}

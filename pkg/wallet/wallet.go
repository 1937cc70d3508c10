package wallet

import (
	"errors"

	"github.com/pollum-io/sysweb3-sub000/pkg/secret"
)

var (
	// ErrNullNetwork ...
	ErrNullNetwork = errors.New("network params are null")
	// ErrNullMnemonic ...
	ErrNullMnemonic = errors.New("mnemonic is null")
	// ErrNullSeed ...
	ErrNullSeed = errors.New("seed is null")
	// ErrNullPassphrase ...
	ErrNullPassphrase = errors.New("passphrase must not be null")
	// ErrNullPlainText ...
	ErrNullPlainText = errors.New("text to encrypt must not be null")
	// ErrNullCypherText ...
	ErrNullCypherText = errors.New("cypher to decrypt must not be null")
	// ErrNullDerivationPath ...
	ErrNullDerivationPath = errors.New("derivation path must not be null")
	// ErrNullPsbt ...
	ErrNullPsbt = errors.New("psbt must not be null")
	// ErrNullInputWitnessUtxo ...
	ErrNullInputWitnessUtxo = errors.New("input witness utxo must not be null")

	// ErrInvalidMnemonic ...
	ErrInvalidMnemonic = errors.New("mnemonic is invalid")
	// ErrInvalidEntropySize ...
	ErrInvalidEntropySize = errors.New(
		"entropy size must be a multiple of 32 in the range [128,256]",
	)
	// ErrInvalidCypherText ...
	ErrInvalidCypherText = errors.New("cypher must be in base64 format")
	// ErrInvalidPassphrase is returned when authenticated decryption fails.
	ErrInvalidPassphrase = errors.New("passphrase is not valid")
	// ErrInvalidDerivationPath ...
	ErrInvalidDerivationPath = errors.New("invalid derivation path")
	// ErrInvalidExtendedKey ...
	ErrInvalidExtendedKey = errors.New("invalid extended key")
	// ErrInvalidPrivateKey ...
	ErrInvalidPrivateKey = errors.New("invalid private key")
	// ErrExtendedKeyNetworkMismatch ...
	ErrExtendedKeyNetworkMismatch = errors.New(
		"extended key does not belong to the given network",
	)
	// ErrMalformedDerivationPath ...
	ErrMalformedDerivationPath = errors.New(
		"path must not start or end with a '/' and " +
			"can optionally start with 'm/' for absolute paths",
	)
	// ErrOutOfRangeDerivationPathAccount ...
	ErrOutOfRangeDerivationPathAccount = errors.New(
		"account index must be in hardened range",
	)
	// ErrMissingInputDerivation ...
	ErrMissingInputDerivation = errors.New(
		"input has no bip32 derivation owned by the signing key",
	)
)

// Wallet holds a mnemonic and the seed derived from it. Every chain-specific
// key is derived on request from the seed and never cached.
type Wallet struct {
	mnemonic *secret.String
	seed     []byte
}

// NewWalletOpts is the struct given to the NewWallet method
type NewWalletOpts struct {
	EntropySize int
}

// NewWallet creates a wallet from a freshly generated mnemonic.
func NewWallet(opts NewWalletOpts) (*Wallet, error) {
	mnemonic, err := NewMnemonic(NewMnemonicOpts(opts))
	if err != nil {
		return nil, err
	}
	return NewWalletFromMnemonic(NewWalletFromMnemonicOpts{Mnemonic: mnemonic})
}

// NewWalletFromMnemonicOpts is the struct given to the NewWalletFromMnemonic
// method
type NewWalletFromMnemonicOpts struct {
	Mnemonic string
}

func (o NewWalletFromMnemonicOpts) validate() error {
	if len(o.Mnemonic) <= 0 {
		return ErrNullMnemonic
	}
	if !IsMnemonicValid(o.Mnemonic) {
		return ErrInvalidMnemonic
	}
	return nil
}

// NewWalletFromMnemonic generates the seed from the given mnemonic.
func NewWalletFromMnemonic(opts NewWalletFromMnemonicOpts) (*Wallet, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	return &Wallet{
		mnemonic: secret.New(opts.Mnemonic),
		seed:     generateSeedFromMnemonic(opts.Mnemonic),
	}, nil
}

func (w *Wallet) validate() error {
	if w == nil || w.mnemonic.IsEmpty() {
		return ErrNullMnemonic
	}
	if len(w.seed) <= 0 {
		return ErrNullSeed
	}
	return nil
}

// Mnemonic is getter for the wallet mnemonic
func (w *Wallet) Mnemonic() (string, error) {
	if err := w.validate(); err != nil {
		return "", err
	}
	return w.mnemonic.Reveal(), nil
}

// Wipe zeroes the seed and the mnemonic. The wallet is unusable afterwards.
func (w *Wallet) Wipe() {
	if w == nil {
		return
	}
	secret.Zero(w.seed)
	w.seed = nil
	w.mnemonic.Wipe()
}

package wallet

import (
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// UTXOAccount is the BIP84 key material of one UTXO account.
type UTXOAccount struct {
	// Index is the hardened account index of the derivation path.
	Index uint32
	// Xprv and Xpub are the account extended keys in base58 format.
	Xprv string
	Xpub string
	// Address is the first receive address (change 0, index 0).
	Address string
	// Fingerprint is the master key fingerprint used in psbt derivations.
	Fingerprint uint32
}

// EVMAccount is the key material of one EVM account.
type EVMAccount struct {
	Index      uint32
	PrivateKey *ecdsa.PrivateKey
	Address    common.Address
}

// PrivateKeyHex returns the 0x prefixed hex encoded private key.
func (a *EVMAccount) PrivateKeyHex() string {
	return hexutilEncode(crypto.FromECDSA(a.PrivateKey))
}

// PublicKeyHex returns the 0x prefixed hex encoded uncompressed public key.
func (a *EVMAccount) PublicKeyHex() string {
	return hexutilEncode(crypto.FromECDSAPub(&a.PrivateKey.PublicKey))
}

// ExtendedKeyOpts is the struct given to DeriveUTXOAccount method
type ExtendedKeyOpts struct {
	Account uint32
	Network *chaincfg.Params
}

func (o ExtendedKeyOpts) validate() error {
	if o.Account > MaxHardenedValue {
		return ErrOutOfRangeDerivationPathAccount
	}
	if o.Network == nil {
		return ErrNullNetwork
	}
	return nil
}

// DeriveUTXOAccount derives the account m/84'/coin'/account' for the given
// network, where coin is the network HD coin type.
func (w *Wallet) DeriveUTXOAccount(opts ExtendedKeyOpts) (*UTXOAccount, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := w.validate(); err != nil {
		return nil, err
	}

	master, err := hdkeychain.NewMaster(w.seed, opts.Network)
	if err != nil {
		return nil, err
	}
	fingerprint, err := keyFingerprint(master)
	if err != nil {
		return nil, err
	}

	path := UTXOAccountPath(opts.Network.HDCoinType, opts.Account)
	xprv, err := deriveExtendedKey(master, path)
	if err != nil {
		return nil, err
	}
	xpub, err := xprv.Neuter()
	if err != nil {
		return nil, err
	}
	address, _, err := deriveWitnessAddress(xpub, opts.Network, ExternalChain, 0)
	if err != nil {
		return nil, err
	}

	return &UTXOAccount{
		Index:       opts.Account,
		Xprv:        xprv.String(),
		Xpub:        xpub.String(),
		Address:     address,
		Fingerprint: fingerprint,
	}, nil
}

// DeriveEVMAccount derives the key at m/44'/60'/0'/0/index.
func (w *Wallet) DeriveEVMAccount(index uint32) (*EVMAccount, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}

	master, err := hdkeychain.NewMaster(w.seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	key, err := deriveExtendedKey(master, EVMAccountPath(index))
	if err != nil {
		return nil, err
	}
	prvkey, err := key.ECPrivKey()
	if err != nil {
		return nil, err
	}
	ecdsaKey := prvkey.ToECDSA()

	return &EVMAccount{
		Index:      index,
		PrivateKey: ecdsaKey,
		Address:    crypto.PubkeyToAddress(ecdsaKey.PublicKey),
	}, nil
}

// ImportUTXOAccount parses an account level extended private key of the given
// network and returns its key material. The fingerprint is the one of the key
// itself since its master is unknown.
func ImportUTXOAccount(xprv string, params *chaincfg.Params) (*UTXOAccount, error) {
	if params == nil {
		return nil, ErrNullNetwork
	}
	key, err := hdkeychain.NewKeyFromString(strings.TrimSpace(xprv))
	if err != nil {
		return nil, ErrInvalidExtendedKey
	}
	if !key.IsPrivate() {
		return nil, ErrInvalidExtendedKey
	}
	if !key.IsForNet(params) {
		return nil, ErrExtendedKeyNetworkMismatch
	}
	xpub, err := key.Neuter()
	if err != nil {
		return nil, err
	}
	address, _, err := deriveWitnessAddress(xpub, params, ExternalChain, 0)
	if err != nil {
		return nil, err
	}
	fingerprint, err := keyFingerprint(key)
	if err != nil {
		return nil, err
	}

	index := key.ChildIndex()
	if index >= hdkeychain.HardenedKeyStart {
		index -= hdkeychain.HardenedKeyStart
	}
	return &UTXOAccount{
		Index:       index,
		Xprv:        key.String(),
		Xpub:        xpub.String(),
		Address:     address,
		Fingerprint: fingerprint,
	}, nil
}

// ImportEVMAccount parses a hex encoded secp256k1 private key, with or
// without 0x prefix.
func ImportEVMAccount(privateKey string) (*EVMAccount, error) {
	key := strings.TrimPrefix(strings.TrimSpace(privateKey), "0x")
	if len(key) != 64 {
		return nil, ErrInvalidPrivateKey
	}
	prvkey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, ErrInvalidPrivateKey
	}
	return &EVMAccount{
		PrivateKey: prvkey,
		Address:    crypto.PubkeyToAddress(prvkey.PublicKey),
	}, nil
}

// DeriveAddressOpts is the struct given to DeriveAddress method
type DeriveAddressOpts struct {
	Xpub    string
	Network *chaincfg.Params
	Chain   uint32
	Index   uint32
}

func (o DeriveAddressOpts) validate() error {
	if o.Network == nil {
		return ErrNullNetwork
	}
	if o.Chain != ExternalChain && o.Chain != InternalChain {
		return ErrInvalidDerivationPath
	}
	if o.Index >= hdkeychain.HardenedKeyStart {
		return ErrInvalidDerivationPath
	}
	return nil
}

// DeriveAddress derives the p2wpkh address and output script at chain/index
// from an account extended public key. Addresses are always derived from the
// xpub, never chosen by callers.
func DeriveAddress(opts DeriveAddressOpts) (string, []byte, error) {
	if err := opts.validate(); err != nil {
		return "", nil, err
	}
	key, err := hdkeychain.NewKeyFromString(opts.Xpub)
	if err != nil {
		return "", nil, ErrInvalidExtendedKey
	}
	return deriveWitnessAddress(key, opts.Network, opts.Chain, opts.Index)
}

// DerivePublicKey derives the compressed public key at chain/index from an
// account extended key.
func DerivePublicKey(xkey string, chain, index uint32) (*btcec.PublicKey, error) {
	key, err := hdkeychain.NewKeyFromString(xkey)
	if err != nil {
		return nil, ErrInvalidExtendedKey
	}
	child, err := deriveExtendedKey(key, DerivationPath{chain, index})
	if err != nil {
		return nil, err
	}
	return child.ECPubKey()
}

func deriveWitnessAddress(
	key *hdkeychain.ExtendedKey, params *chaincfg.Params, chain, index uint32,
) (string, []byte, error) {
	child, err := deriveExtendedKey(key, DerivationPath{chain, index})
	if err != nil {
		return "", nil, err
	}
	pubkey, err := child.ECPubKey()
	if err != nil {
		return "", nil, err
	}
	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(pubkey.SerializeCompressed()), params,
	)
	if err != nil {
		return "", nil, err
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return "", nil, err
	}
	return addr.EncodeAddress(), script, nil
}

func deriveExtendedKey(
	key *hdkeychain.ExtendedKey, path DerivationPath,
) (*hdkeychain.ExtendedKey, error) {
	var err error
	for _, step := range path {
		key, err = key.Derive(step)
		if err != nil {
			return nil, err
		}
	}
	return key, nil
}

// KeyFingerprint returns the fingerprint of a base58 extended key, as
// written in the key origins of psbt derivations.
func KeyFingerprint(xkey string) (uint32, error) {
	key, err := hdkeychain.NewKeyFromString(xkey)
	if err != nil {
		return 0, ErrInvalidExtendedKey
	}
	return keyFingerprint(key)
}

func keyFingerprint(key *hdkeychain.ExtendedKey) (uint32, error) {
	pubkey, err := key.ECPubKey()
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(
		btcutil.Hash160(pubkey.SerializeCompressed())[:4],
	), nil
}

func hexutilEncode(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

package wallet

import (
	"errors"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
)

const (
	// SyscoinCoinType is the SLIP-44 coin type of Syscoin mainnet.
	SyscoinCoinType = 57
	// TestnetCoinType is the SLIP-44 coin type shared by every testnet.
	TestnetCoinType = 1
)

var (
	// SyscoinMainNetParams are the UTXO chain params of Syscoin mainnet.
	// Extended keys use the BIP84 zprv/zpub version bytes.
	SyscoinMainNetParams = chaincfg.Params{
		Name:             "syscoin-mainnet",
		Net:              wire.BitcoinNet(0xffcae2ce),
		DefaultPort:      "8369",
		Bech32HRPSegwit:  "sys",
		PubKeyHashAddrID: 0x3f,
		ScriptHashAddrID: 0x05,
		PrivateKeyID:     0x80,
		HDPrivateKeyID:   [4]byte{0x04, 0xb2, 0x43, 0x0c},
		HDPublicKeyID:    [4]byte{0x04, 0xb2, 0x47, 0x46},
		HDCoinType:       SyscoinCoinType,
	}

	// SyscoinTestNetParams are the UTXO chain params of Syscoin testnet
	// (tanenbaum). Extended keys use the BIP84 vprv/vpub version bytes.
	SyscoinTestNetParams = chaincfg.Params{
		Name:             "syscoin-testnet",
		Net:              wire.BitcoinNet(0xfecae2ce),
		DefaultPort:      "18369",
		Bech32HRPSegwit:  "tsys",
		PubKeyHashAddrID: 0x41,
		ScriptHashAddrID: 0xc4,
		PrivateKeyID:     0xef,
		HDPrivateKeyID:   [4]byte{0x04, 0x5f, 0x18, 0xbc},
		HDPublicKeyID:    [4]byte{0x04, 0x5f, 0x1c, 0xf6},
		HDCoinType:       TestnetCoinType,
	}
)

// hdkeychain resolves the public version bytes of a neutered key through the
// chaincfg registry, so both networks must be registered before use.
func init() {
	for _, params := range []*chaincfg.Params{
		&SyscoinMainNetParams, &SyscoinTestNetParams,
	} {
		if err := chaincfg.Register(params); err != nil &&
			!errors.Is(err, chaincfg.ErrDuplicateNet) {
			log.WithError(err).Panicf("failed to register %s params", params.Name)
		}
	}
}

// SyscoinParams returns the Syscoin params for mainnet or testnet.
func SyscoinParams(isTestnet bool) *chaincfg.Params {
	if isTestnet {
		return &SyscoinTestNetParams
	}
	return &SyscoinMainNetParams
}

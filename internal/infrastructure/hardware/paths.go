package hardware

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
)

const (
	slip44Bitcoin = 0
	slip44Syscoin = 57
)

// coinOf returns the device coin name of network. UTXO networks without a
// dedicated path scheme are named after their currency.
func coinOf(family domain.ChainFamily, network domain.Network) string {
	if !family.IsUTXO() {
		return ports.CoinEthereum
	}
	switch network.Slip44 {
	case slip44Syscoin:
		return ports.CoinSyscoin
	case slip44Bitcoin:
		return ports.CoinBitcoin
	default:
		return strings.ToLower(network.Currency)
	}
}

// AccountPath returns the derivation path of the device account index:
// m/84'/57'/i' for sys, m/84'/0'/i' for btc, m/44'/60'/0'/0/i for eth and
// m/84'/{slip44}'/0'/0/i for any other coin.
func AccountPath(coin string, slip44 int, index uint32) wallet.DerivationPath {
	switch coin {
	case ports.CoinSyscoin:
		return wallet.UTXOAccountPath(slip44Syscoin, index)
	case ports.CoinBitcoin:
		return wallet.UTXOAccountPath(slip44Bitcoin, index)
	case ports.CoinEthereum:
		return wallet.EVMAccountPath(index)
	default:
		return wallet.DerivationPath{
			hdkeychain.HardenedKeyStart + 84,
			hdkeychain.HardenedKeyStart + uint32(slip44),
			hdkeychain.HardenedKeyStart,
			wallet.ExternalChain,
			index,
		}
	}
}

// receivePath is the path of the first receive address of the account.
// Account level paths are extended with /0/0, the others already point to
// an address.
func receivePath(coin string, slip44 int, index uint32) wallet.DerivationPath {
	path := AccountPath(coin, slip44, index)
	if coin == ports.CoinSyscoin || coin == ports.CoinBitcoin {
		return path.Child(wallet.ExternalChain, 0)
	}
	return path
}

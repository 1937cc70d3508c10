package domain

import "fmt"

// ChainFamily is the kind of chain a network belongs to.
type ChainFamily string

const (
	// ChainSyscoin is the UTXO family.
	ChainSyscoin ChainFamily = "syscoin"
	// ChainEthereum is the EVM family.
	ChainEthereum ChainFamily = "ethereum"
)

func (f ChainFamily) IsValid() bool {
	return f == ChainSyscoin || f == ChainEthereum
}

// IsUTXO ...
func (f ChainFamily) IsUTXO() bool {
	return f == ChainSyscoin
}

// Network is a chain endpoint the keyring can be connected to.
type Network struct {
	ChainID   int64  `json:"chainId"`
	URL       string `json:"url"`
	Label     string `json:"label"`
	Default   bool   `json:"default"`
	Currency  string `json:"currency"`
	Explorer  string `json:"explorer,omitempty"`
	Slip44    int    `json:"slip44"`
	IsTestnet bool   `json:"isTestnet"`
}

func (n Network) String() string {
	return fmt.Sprintf("%s (%d)", n.Label, n.ChainID)
}

var (
	SyscoinMainnet = Network{
		ChainID:  57,
		URL:      "https://blockbook.elint.services",
		Label:    "Syscoin Mainnet",
		Default:  true,
		Currency: "sys",
		Explorer: "https://blockbook.elint.services",
		Slip44:   57,
	}
	SyscoinTanenbaum = Network{
		ChainID:   5700,
		URL:       "https://blockbook-dev.elint.services",
		Label:     "Syscoin Tanenbaum",
		Default:   true,
		Currency:  "tsys",
		Explorer:  "https://blockbook-dev.elint.services",
		Slip44:    1,
		IsTestnet: true,
	}
	EthereumMainnet = Network{
		ChainID:  1,
		URL:      "https://rpc.ankr.com/eth",
		Label:    "Ethereum Mainnet",
		Default:  true,
		Currency: "eth",
		Explorer: "https://etherscan.io",
		Slip44:   60,
	}
	SyscoinNEVM = Network{
		ChainID:  57,
		URL:      "https://rpc.syscoin.org",
		Label:    "Syscoin NEVM",
		Default:  true,
		Currency: "sys",
		Explorer: "https://explorer.syscoin.org",
		Slip44:   60,
	}
	PolygonMainnet = Network{
		ChainID:  137,
		URL:      "https://polygon-rpc.com",
		Label:    "Polygon Mainnet",
		Default:  true,
		Currency: "matic",
		Explorer: "https://polygonscan.com",
		Slip44:   60,
	}
)

// DefaultNetworks returns a fresh copy of the networks known at startup.
func DefaultNetworks() map[ChainFamily]map[int64]Network {
	return map[ChainFamily]map[int64]Network{
		ChainSyscoin: {
			SyscoinMainnet.ChainID:   SyscoinMainnet,
			SyscoinTanenbaum.ChainID: SyscoinTanenbaum,
		},
		ChainEthereum: {
			EthereumMainnet.ChainID: EthereumMainnet,
			SyscoinNEVM.ChainID:     SyscoinNEVM,
			PolygonMainnet.ChainID:  PolygonMainnet,
		},
	}
}

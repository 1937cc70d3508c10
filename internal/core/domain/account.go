package domain

import "github.com/shopspring/decimal"

// AccountType is the closed set of account origins.
type AccountType string

const (
	HDAccount AccountType = "HDAccount"
	Imported  AccountType = "Imported"
	Trezor    AccountType = "Trezor"
	Ledger    AccountType = "Ledger"
)

// AccountTypes lists the account types in display order.
var AccountTypes = []AccountType{HDAccount, Imported, Trezor, Ledger}

func (t AccountType) IsValid() bool {
	for _, v := range AccountTypes {
		if t == v {
			return true
		}
	}
	return false
}

// IsHardware returns whether accounts of this type sign on an external device.
func (t AccountType) IsHardware() bool {
	return t == Trezor || t == Ledger
}

// Balances holds the last known balance of an account on each family.
type Balances struct {
	Syscoin  decimal.Decimal `json:"syscoin"`
	Ethereum decimal.Decimal `json:"ethereum"`
}

// Account defines the entity data structure of a keyring account.
// For the UTXO family Xpub is the account extended public key and Address the
// first receive address, for the EVM family Xpub is the uncompressed public
// key hex. Xprv is always password ciphertext and is empty for watch-only
// hardware accounts.
type Account struct {
	ID             int         `json:"id"`
	Label          string      `json:"label"`
	Address        string      `json:"address"`
	Xpub           string      `json:"xpub"`
	Xprv           string      `json:"xprv,omitempty"`
	Balances       Balances    `json:"balances"`
	IsImported     bool        `json:"isImported"`
	Family         ChainFamily `json:"family"`
	IsTrezorWallet bool        `json:"isTrezorWallet"`
	IsLedgerWallet bool        `json:"isLedgerWallet"`
	// Index is the derivation index of an HD account on its family path,
	// the account level for UTXO and the address level for EVM.
	Index int `json:"index"`
	// DeviceIndex is the account index on the hardware device.
	DeviceIndex int `json:"deviceIndex,omitempty"`
	// OriginNetwork is the network an imported account was created on.
	OriginNetwork *Network `json:"originNetwork,omitempty"`
}

// Type returns the AccountType inferred from the account flags.
func (a Account) Type() AccountType {
	switch {
	case a.IsTrezorWallet:
		return Trezor
	case a.IsLedgerWallet:
		return Ledger
	case a.IsImported:
		return Imported
	default:
		return HDAccount
	}
}

// Public returns a copy of the account without the encrypted private key.
func (a Account) Public() Account {
	a.Xprv = ""
	return a
}

func (a Account) clone() Account {
	if a.OriginNetwork != nil {
		network := *a.OriginNetwork
		a.OriginNetwork = &network
	}
	return a
}

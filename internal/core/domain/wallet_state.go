package domain

import (
	"fmt"
	"sort"
	"strings"
)

// WalletState is the whole persisted state of the keyring except secrets.
type WalletState struct {
	Accounts          map[AccountType]map[int]Account   `json:"accounts"`
	ActiveAccountID   int                               `json:"activeAccountId"`
	ActiveAccountType AccountType                       `json:"activeAccountType"`
	ActiveNetwork     Network                           `json:"activeNetwork"`
	ActiveChain       ChainFamily                       `json:"activeChain"`
	Networks          map[ChainFamily]map[int64]Network `json:"networks"`
}

// NewWalletState returns the initial empty state, connected to the Syscoin
// mainnet.
func NewWalletState() *WalletState {
	accounts := make(map[AccountType]map[int]Account)
	for _, t := range AccountTypes {
		accounts[t] = make(map[int]Account)
	}
	return &WalletState{
		Accounts:          accounts,
		ActiveAccountType: HDAccount,
		ActiveNetwork:     SyscoinMainnet,
		ActiveChain:       ChainSyscoin,
		Networks:          DefaultNetworks(),
	}
}

// Clone returns a deep copy of the state.
func (s *WalletState) Clone() *WalletState {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Accounts = make(map[AccountType]map[int]Account, len(s.Accounts))
	for t, accounts := range s.Accounts {
		clone.Accounts[t] = make(map[int]Account, len(accounts))
		for id, account := range accounts {
			clone.Accounts[t][id] = account.clone()
		}
	}
	clone.Networks = make(map[ChainFamily]map[int64]Network, len(s.Networks))
	for family, networks := range s.Networks {
		clone.Networks[family] = make(map[int64]Network, len(networks))
		for id, network := range networks {
			clone.Networks[family][id] = network
		}
	}
	return &clone
}

// Validate checks the state invariants: the active account exists (once any
// account has been created) and the active network is registered for the
// active chain family.
func (s *WalletState) Validate() error {
	if !s.ActiveChain.IsValid() {
		return ErrUnsupportedChainFamily
	}
	if _, ok := s.Networks[s.ActiveChain][s.ActiveNetwork.ChainID]; !ok {
		return fmt.Errorf("%w: %s", ErrNetworkNotFound, s.ActiveNetwork)
	}
	if s.IsEmpty() {
		return nil
	}
	if _, err := s.Account(s.ActiveAccountID, s.ActiveAccountType); err != nil {
		return err
	}
	return nil
}

// IsEmpty returns whether no account has been created yet.
func (s *WalletState) IsEmpty() bool {
	for _, accounts := range s.Accounts {
		if len(accounts) > 0 {
			return false
		}
	}
	return true
}

// Account returns the account with given id and type.
func (s *WalletState) Account(id int, t AccountType) (Account, error) {
	account, ok := s.Accounts[t][id]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s #%d", ErrAccountNotFound, t, id)
	}
	return account, nil
}

// ActiveAccount returns the account selected by ActiveAccountID and
// ActiveAccountType.
func (s *WalletState) ActiveAccount() (Account, error) {
	return s.Account(s.ActiveAccountID, s.ActiveAccountType)
}

// PutAccount adds or replaces an account of the given type.
func (s *WalletState) PutAccount(t AccountType, account Account) {
	if s.Accounts[t] == nil {
		s.Accounts[t] = make(map[int]Account)
	}
	s.Accounts[t][account.ID] = account
}

// NextAccountID returns the id to assign to a new account of the given type.
func (s *WalletState) NextAccountID(t AccountType) int {
	next := 0
	for id := range s.Accounts[t] {
		if id >= next {
			next = id + 1
		}
	}
	return next
}

// SortedAccounts returns all accounts ordered by type then id.
func (s *WalletState) SortedAccounts() []Account {
	list := make([]Account, 0)
	for _, t := range AccountTypes {
		ids := make([]int, 0, len(s.Accounts[t]))
		for id := range s.Accounts[t] {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			list = append(list, s.Accounts[t][id])
		}
	}
	return list
}

// AccountsOf returns the accounts of type t that belong to family, ordered
// by id.
func (s *WalletState) AccountsOf(t AccountType, family ChainFamily) []Account {
	ids := make([]int, 0, len(s.Accounts[t]))
	for id, account := range s.Accounts[t] {
		if account.Family == family {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	list := make([]Account, 0, len(ids))
	for _, id := range ids {
		list = append(list, s.Accounts[t][id])
	}
	return list
}

// HasAccountWithKey returns whether any account of type t already holds the
// given address or public key.
func (s *WalletState) HasAccountWithKey(t AccountType, address, xpub string) bool {
	for _, account := range s.Accounts[t] {
		if (address != "" && strings.EqualFold(account.Address, address)) ||
			(xpub != "" && account.Xpub == xpub) {
			return true
		}
	}
	return false
}

// Network returns the network with given chain id of the given family.
func (s *WalletState) Network(family ChainFamily, chainID int64) (Network, error) {
	network, ok := s.Networks[family][chainID]
	if !ok {
		return Network{}, fmt.Errorf(
			"%w: %s chain id %d", ErrNetworkNotFound, family, chainID,
		)
	}
	return network, nil
}

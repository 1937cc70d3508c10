package keyring_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pollum-io/sysweb3-sub000/internal/core/application/keyring"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/internal/infrastructure/evmrpc"
	"github.com/pollum-io/sysweb3-sub000/internal/infrastructure/storage/db/inmemory"
	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/go-bip39"
)

const (
	testMnemonic = "solution rookie cake shine hand attack claw awful harsh level case vocal"
	testPassword = "password"

	// address of m/44'/60'/0'/0/1 of testMnemonic, the EVM account derived
	// after the first UTXO one.
	testEVMAddress1 = "0x77c5fc8f7938ed4766a9773ace17b742e5ed3806"
	testForeignKey  = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
)

var (
	ctx        = context.Background()
	testCypher = wallet.NewCypher(1 << 10)
)

type testEnv struct {
	store    ports.VaultStore
	explorer *mockExplorer
	provider *mockProvider
	device   *mockHardwareWallet
	manager  keyring.KeyringManager
}

func newTestEnv(t *testing.T) *testEnv {
	env := &testEnv{
		store:    inmemory.NewVaultStore(),
		explorer: &mockExplorer{},
		provider: &mockProvider{},
		device:   &mockHardwareWallet{},
	}
	env.explorer.On("GetInfo", mock.Anything).Return(
		&ports.ExplorerInfo{Coin: "Syscoin", Chain: "main"}, nil,
	).Maybe()
	env.provider.On("Close").Return().Maybe()
	env.manager = env.newManager(t)
	return env
}

func (e *testEnv) newManager(t *testing.T) keyring.KeyringManager {
	manager, err := keyring.NewKeyringManager(keyring.ManagerOpts{
		Store:  e.store,
		Cypher: testCypher,
		ExplorerFactory: func(domain.Network) (ports.UTXOExplorer, error) {
			return e.explorer, nil
		},
		EVMDialer: func(context.Context, domain.Network) (ports.EVMProvider, error) {
			return e.provider, nil
		},
		HardwareWallets: map[domain.AccountType]ports.HardwareWallet{
			domain.Trezor: e.device,
		},
	})
	require.NoError(t, err)
	return manager
}

func (e *testEnv) createVault(t *testing.T) domain.Account {
	account, err := e.manager.CreateOrRestoreVault(ctx, testMnemonic, testPassword)
	require.NoError(t, err)
	return account
}

func (e *testEnv) switchToEVM(t *testing.T, chainID int64) {
	e.provider.On("ChainID", mock.Anything).Return(big.NewInt(chainID), nil).Once()
	err := e.manager.SetSignerNetwork(ctx, domain.EthereumMainnet, domain.ChainEthereum)
	require.NoError(t, err)
}

func (e *testEnv) switchToUTXO(t *testing.T) {
	err := e.manager.SetSignerNetwork(ctx, domain.SyscoinMainnet, domain.ChainSyscoin)
	require.NoError(t, err)
}

func deriveEVMKey(t *testing.T, passphrase, path string) string {
	key, err := hdkeychain.NewMaster(bip39.NewSeed(testMnemonic, passphrase), &chaincfg.MainNetParams)
	require.NoError(t, err)
	elems, err := wallet.ParseDerivationPath(path)
	require.NoError(t, err)
	for _, i := range elems {
		key, err = key.Derive(i)
		require.NoError(t, err)
	}
	priv, err := key.ECPrivKey()
	require.NoError(t, err)
	return hexutil.Encode(crypto.FromECDSA(priv.ToECDSA()))
}

func deriveEVMAddress(t *testing.T, passphrase, path string) string {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(deriveEVMKey(t, passphrase, path), "0x"))
	require.NoError(t, err)
	return strings.ToLower(crypto.PubkeyToAddress(priv.PublicKey).Hex())
}

func TestNewKeyringManager(t *testing.T) {
	_, err := keyring.NewKeyringManager(keyring.ManagerOpts{})
	require.Error(t, err)

	_, err = keyring.NewKeyringManager(keyring.ManagerOpts{
		Store: inmemory.NewVaultStore(),
		ExplorerFactory: func(domain.Network) (ports.UTXOExplorer, error) {
			return nil, nil
		},
		EVMDialer: func(context.Context, domain.Network) (ports.EVMProvider, error) {
			return nil, nil
		},
		HardwareWallets: map[domain.AccountType]ports.HardwareWallet{
			domain.Imported: &mockHardwareWallet{},
		},
	})
	require.Error(t, err)
}

func TestCreateOrRestoreVault(t *testing.T) {
	env := newTestEnv(t)

	account := env.createVault(t)
	require.Equal(t, 0, account.ID)
	require.Equal(t, "Account 1", account.Label)
	require.Equal(t, domain.ChainSyscoin, account.Family)
	require.True(t, strings.HasPrefix(account.Address, "sys1"))
	require.True(t, strings.HasPrefix(account.Xpub, "zpub"))
	require.Empty(t, account.Xprv)
	require.True(t, env.manager.IsUnlocked())

	env.switchToEVM(t, 1)

	accounts := env.manager.GetAccounts()
	require.Len(t, accounts, 2)
	require.Equal(t, account, accounts[0])
	require.Equal(t, domain.ChainEthereum, accounts[1].Family)
	require.Equal(t, testEVMAddress1, strings.ToLower(accounts[1].Address))
	require.Equal(t, 1, accounts[1].Index)
	require.Equal(t, "Account 2", accounts[1].Label)

	active, err := env.manager.GetActiveAccount()
	require.NoError(t, err)
	require.Equal(t, accounts[1], active)

	network, family := env.manager.GetNetwork()
	require.Equal(t, domain.ChainEthereum, family)
	require.Equal(t, domain.EthereumMainnet.ChainID, network.ChainID)
}

func TestRegressionSeedAccounts(t *testing.T) {
	env := newTestEnv(t)
	env.createVault(t)
	env.switchToEVM(t, 1)

	accounts := env.manager.GetAccounts()
	require.Len(t, accounts, 2)
	require.Equal(t, domain.ChainSyscoin, accounts[0].Family)
	require.True(t, strings.HasPrefix(accounts[0].Address, "sys1"))
	require.Equal(t, domain.ChainEthereum, accounts[1].Family)
	require.Equal(t, deriveEVMAddress(t, "", "m/44'/60'/0'/0/1"), strings.ToLower(accounts[1].Address))
	require.Equal(t, testEVMAddress1, strings.ToLower(accounts[1].Address))

	// The address historically listed for accounts[1] of this seed does not
	// come out of any of these derivations.
	t.Run("historical fixture", func(t *testing.T) {
		const historical = "0x3d3c5ae620870cd8e708c96795d046b0c1e0f471"
		templates := []string{
			"m/44'/60'/0'/0/%d", "m/44'/60'/%d'/0/0", "m/44'/57'/0'/0/%d",
			"m/84'/57'/0'/0/%d", "m/84'/57'/%d'/0/0", "m/84'/60'/0'/0/%d",
		}
		for _, passphrase := range []string{"", testPassword} {
			for _, template := range templates {
				for i := 0; i < 6; i++ {
					path := fmt.Sprintf(template, i)
					require.NotEqual(t, historical, deriveEVMAddress(t, passphrase, path),
						"passphrase %q path %s", passphrase, path)
				}
			}
		}
	})
}

func TestCreateKeyringVault(t *testing.T) {
	t.Run("password required", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, env.manager.SetSeed(testMnemonic))

		_, err := env.manager.CreateKeyringVault(ctx)
		require.ErrorIs(t, err, domain.ErrPasswordRequired)
	})

	t.Run("seed required", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, env.manager.SetWalletPassword(ctx, testPassword, ""))

		_, err := env.manager.CreateKeyringVault(ctx)
		require.ErrorIs(t, err, domain.ErrSeedRequired)
	})

	t.Run("invalid seed", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.manager.SetSeed("not a valid seed phrase")
		require.ErrorIs(t, err, domain.ErrInvalidSeed)
		require.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("generated seed", func(t *testing.T) {
		env := newTestEnv(t)
		mnemonic, err := env.manager.CreateSeed()
		require.NoError(t, err)
		require.Len(t, strings.Fields(mnemonic), 12)
		require.NoError(t, env.manager.SetWalletPassword(ctx, testPassword, ""))

		account, err := env.manager.CreateKeyringVault(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, account.Address)

		seed, err := env.manager.GetSeed(testPassword)
		require.NoError(t, err)
		require.Equal(t, mnemonic, seed)
	})
}

func TestUnlock(t *testing.T) {
	t.Run("not initialized", func(t *testing.T) {
		env := newTestEnv(t)
		ok, err := env.manager.Unlock(ctx, testPassword)
		require.ErrorIs(t, err, domain.ErrWalletNotInitialized)
		require.False(t, ok)
	})

	t.Run("wrong password does not mutate", func(t *testing.T) {
		env := newTestEnv(t)
		env.createVault(t)
		_, err := env.manager.AddNewAccount(ctx, "")
		require.NoError(t, err)

		env.manager.LockWallet()
		require.False(t, env.manager.IsUnlocked())

		accounts := env.manager.GetAccounts()
		active, err := env.manager.GetActiveAccount()
		require.NoError(t, err)
		vault, err := env.store.GetVault(ctx)
		require.NoError(t, err)

		for _, password := range []string{"", "Password", "password ", "wrong"} {
			ok, err := env.manager.Unlock(ctx, password)
			require.NoError(t, err)
			require.False(t, ok)
			require.False(t, env.manager.IsUnlocked())
		}

		require.Equal(t, accounts, env.manager.GetAccounts())
		gotActive, err := env.manager.GetActiveAccount()
		require.NoError(t, err)
		require.Equal(t, active, gotActive)
		gotVault, err := env.store.GetVault(ctx)
		require.NoError(t, err)
		require.Equal(t, vault, gotVault)
	})

	t.Run("restores persisted state", func(t *testing.T) {
		env := newTestEnv(t)
		env.createVault(t)
		added, err := env.manager.AddNewAccount(ctx, "savings")
		require.NoError(t, err)
		accounts := env.manager.GetAccounts()

		restarted := env.newManager(t)
		require.False(t, restarted.IsUnlocked())
		_, err = restarted.UTXOSession(ctx)
		require.ErrorIs(t, err, domain.ErrWalletLocked)

		ok, err := restarted.Unlock(ctx, testPassword)
		require.NoError(t, err)
		require.True(t, ok)
		requireJSONEqual(t, accounts, restarted.GetAccounts())

		active, err := restarted.GetActiveAccount()
		require.NoError(t, err)
		requireJSONEqual(t, added, active)

		seed, err := restarted.GetSeed(testPassword)
		require.NoError(t, err)
		require.Equal(t, testMnemonic, seed)
	})

	t.Run("lock wipes secrets", func(t *testing.T) {
		env := newTestEnv(t)
		env.createVault(t)
		env.manager.Logout()

		_, err := env.manager.GetSeed(testPassword)
		require.ErrorIs(t, err, domain.ErrWalletLocked)
		_, err = env.manager.GetPrivateKeyByAccountID(0, domain.HDAccount, testPassword)
		require.ErrorIs(t, err, domain.ErrWalletLocked)
		_, err = env.manager.AddNewAccount(ctx, "")
		require.ErrorIs(t, err, domain.ErrWalletLocked)
		require.Equal(t, domain.KindAuthentication, domain.KindOf(err))
	})
}

func TestSetWalletPassword(t *testing.T) {
	env := newTestEnv(t)
	env.createVault(t)

	err := env.manager.SetWalletPassword(ctx, "", testPassword)
	require.ErrorIs(t, err, domain.ErrPasswordRequired)
	err = env.manager.SetWalletPassword(ctx, "newpassword", "wrong")
	require.ErrorIs(t, err, domain.ErrInvalidPreviousPassword)

	env.switchToEVM(t, 1)
	_, err = env.manager.ImportAccount(ctx, testForeignKey, "")
	require.NoError(t, err)

	require.NoError(t, env.manager.SetWalletPassword(ctx, "newpassword", testPassword))
	env.manager.LockWallet()

	ok, err := env.manager.Unlock(ctx, testPassword)
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = env.manager.Unlock(ctx, "newpassword")
	require.NoError(t, err)
	require.True(t, ok)

	key, err := env.manager.GetPrivateKeyByAccountID(0, domain.Imported, "newpassword")
	require.NoError(t, err)
	require.Equal(t, testForeignKey, strings.TrimPrefix(key, "0x"))

	restarted := env.newManager(t)
	err = restarted.SetWalletPassword(ctx, "another", testPassword)
	require.ErrorIs(t, err, domain.ErrInvalidPreviousPassword)
	require.NoError(t, restarted.SetWalletPassword(ctx, "another", "newpassword"))
	seed, err := restarted.GetSeed("another")
	require.NoError(t, err)
	require.Equal(t, testMnemonic, seed)
}

func TestDeterministicDerivation(t *testing.T) {
	first := newTestEnv(t)
	second := newTestEnv(t)
	first.createVault(t)
	second.createVault(t)

	for i := 0; i < 2; i++ {
		a, err := first.manager.AddNewAccount(ctx, "")
		require.NoError(t, err)
		b, err := second.manager.AddNewAccount(ctx, "")
		require.NoError(t, err)
		require.Equal(t, a.Address, b.Address)
		require.Equal(t, a.Xpub, b.Xpub)
		require.Equal(t, i+1, a.ID)
	}
	require.Equal(t, first.manager.GetAccounts(), second.manager.GetAccounts())

	utxoAccounts := first.manager.GetAccounts()
	first.switchToEVM(t, 1)
	accounts := first.manager.GetAccounts()
	require.Len(t, accounts, 4)
	require.Equal(t, utxoAccounts, accounts[:3])
	require.Equal(t, domain.ChainEthereum, accounts[3].Family)
	require.Equal(t, 3, accounts[3].ID)
	require.Equal(t, deriveEVMAddress(t, "", "m/44'/60'/0'/0/3"), strings.ToLower(accounts[3].Address))

	added, err := first.manager.AddNewAccount(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 4, added.ID)
	require.Equal(t, 4, added.Index)
	require.Equal(t, deriveEVMAddress(t, "", "m/44'/60'/0'/0/4"), strings.ToLower(added.Address))

	key, err := first.manager.GetPrivateKeyByAccountID(3, domain.HDAccount, testPassword)
	require.NoError(t, err)
	require.Equal(t, deriveEVMKey(t, "", "m/44'/60'/0'/0/3"), key)

	// back on the UTXO family new accounts continue the signer sequence
	first.switchToUTXO(t)
	require.Equal(t, utxoAccounts, first.manager.GetAccounts()[:3])
	active, err := first.manager.GetActiveAccount()
	require.NoError(t, err)
	require.Equal(t, 0, active.ID)
	third, err := first.manager.AddNewAccount(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 5, third.ID)
	require.Equal(t, 3, third.Index)
	require.Equal(t, domain.ChainSyscoin, third.Family)
}

func TestImportAccount(t *testing.T) {
	t.Run("evm", func(t *testing.T) {
		env := newTestEnv(t)
		env.createVault(t)
		env.switchToEVM(t, 1)

		_, err := env.manager.ImportAccount(ctx, deriveEVMKey(t, "", "m/44'/60'/0'/0/1"), "")
		require.ErrorIs(t, err, domain.ErrAccountAlreadyExists)

		account, err := env.manager.ImportAccount(ctx, testForeignKey, "")
		require.NoError(t, err)
		require.True(t, account.IsImported)
		require.Equal(t, "Imported 1", account.Label)
		require.Equal(t, domain.ChainEthereum, account.Family)
		require.NotNil(t, account.OriginNetwork)
		require.Empty(t, account.Xprv)

		active, err := env.manager.GetActiveAccount()
		require.NoError(t, err)
		require.Equal(t, account, active)

		_, err = env.manager.ImportAccount(ctx, "0x"+testForeignKey, "")
		require.ErrorIs(t, err, domain.ErrAccountAlreadyExists)

		_, err = env.manager.ImportAccount(ctx, "0x1234", "")
		require.ErrorIs(t, err, domain.ErrInvalidPrivateKey)

		key, err := env.manager.GetPrivateKeyByAccountID(account.ID, domain.Imported, testPassword)
		require.NoError(t, err)
		require.Equal(t, "0x"+testForeignKey, key)
		_, err = env.manager.GetPrivateKeyByAccountID(account.ID, domain.Imported, "wrong")
		require.ErrorIs(t, err, domain.ErrInvalidPassword)
	})

	t.Run("utxo", func(t *testing.T) {
		env := newTestEnv(t)
		env.createVault(t)

		other, err := wallet.NewWallet(wallet.NewWalletOpts{})
		require.NoError(t, err)
		keys, err := other.DeriveUTXOAccount(wallet.ExtendedKeyOpts{
			Account: 0,
			Network: wallet.SyscoinParams(false),
		})
		require.NoError(t, err)

		account, err := env.manager.ImportAccount(ctx, keys.Xprv, "cold")
		require.NoError(t, err)
		require.Equal(t, "cold", account.Label)
		require.Equal(t, keys.Address, account.Address)
		require.Equal(t, keys.Xpub, account.Xpub)

		_, err = env.manager.ImportAccount(ctx, keys.Xprv, "")
		require.ErrorIs(t, err, domain.ErrAccountAlreadyExists)

		testnetKeys, err := other.DeriveUTXOAccount(wallet.ExtendedKeyOpts{
			Account: 0,
			Network: wallet.SyscoinParams(true),
		})
		require.NoError(t, err)
		_, err = env.manager.ImportAccount(ctx, testnetKeys.Xprv, "")
		require.ErrorIs(t, err, domain.ErrInvalidPrivateKey)

		session, err := env.manager.UTXOSession(ctx)
		require.NoError(t, err)
		require.Equal(t, keys.Xpub, session.Signer.Xpub())
		require.Equal(t, account, session.Account)
	})
}

func TestImportHardwareAccount(t *testing.T) {
	env := newTestEnv(t)
	env.createVault(t)

	env.device.On(
		"GetAccount", mock.Anything, domain.ChainSyscoin, domain.SyscoinMainnet, 0,
	).Return("sys1qdevice", "zpubdevice", nil)

	account, err := env.manager.ImportHardwareAccount(ctx, domain.Trezor, 0, "")
	require.NoError(t, err)
	require.True(t, account.IsTrezorWallet)
	require.Equal(t, domain.Trezor, account.Type())
	require.Equal(t, "Trezor 1", account.Label)
	require.Empty(t, account.Xprv)

	_, err = env.manager.ImportHardwareAccount(ctx, domain.Trezor, 0, "")
	require.ErrorIs(t, err, domain.ErrAccountAlreadyExists)
	_, err = env.manager.ImportHardwareAccount(ctx, domain.Ledger, 0, "")
	require.Error(t, err)

	_, err = env.manager.GetPrivateKeyByAccountID(account.ID, domain.Trezor, testPassword)
	require.ErrorIs(t, err, domain.ErrAccountNotSet)

	signer := &stubUTXOSigner{xpub: "zpubdevice"}
	env.device.On("UTXOSigner", mock.Anything, domain.SyscoinMainnet, wallet.SyscoinParams(false)).
		Return(signer, nil)
	session, err := env.manager.UTXOSession(ctx)
	require.NoError(t, err)
	require.Equal(t, signer, session.Signer)

	env.device.AssertExpectations(t)
}

func TestSetActiveAccount(t *testing.T) {
	env := newTestEnv(t)
	env.createVault(t)
	_, err := env.manager.AddNewAccount(ctx, "second")
	require.NoError(t, err)

	err = env.manager.SetActiveAccount(ctx, 5, domain.HDAccount)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
	require.Equal(t, domain.KindState, domain.KindOf(err))

	require.NoError(t, env.manager.SetActiveAccount(ctx, 0, domain.HDAccount))
	active, err := env.manager.GetActiveAccount()
	require.NoError(t, err)
	require.Equal(t, 0, active.ID)

	require.NoError(t, env.manager.SetAccountLabel(ctx, 1, domain.HDAccount, " spending "))
	account, err := env.manager.GetAccountByID(1, domain.HDAccount)
	require.NoError(t, err)
	require.Equal(t, "spending", account.Label)

	_, err = env.manager.GetAccountByID(1, domain.Imported)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestSetSignerNetwork(t *testing.T) {
	t.Run("rollback on chain id mismatch", func(t *testing.T) {
		env := newTestEnv(t)
		env.createVault(t)
		_, err := env.manager.AddNewAccount(ctx, "")
		require.NoError(t, err)

		accounts := env.manager.GetAccounts()
		active, err := env.manager.GetActiveAccount()
		require.NoError(t, err)
		network, family := env.manager.GetNetwork()
		vault, err := env.store.GetVault(ctx)
		require.NoError(t, err)

		env.provider.On("ChainID", mock.Anything).Return(big.NewInt(137), nil).Once()
		err = env.manager.SetSignerNetwork(ctx, domain.EthereumMainnet, domain.ChainEthereum)
		require.ErrorIs(t, err, domain.ErrChainIDMismatch)
		require.Equal(t, domain.KindNetwork, domain.KindOf(err))

		require.Equal(t, accounts, env.manager.GetAccounts())
		gotActive, err := env.manager.GetActiveAccount()
		require.NoError(t, err)
		require.Equal(t, active, gotActive)
		gotNetwork, gotFamily := env.manager.GetNetwork()
		require.Equal(t, network, gotNetwork)
		require.Equal(t, family, gotFamily)
		gotVault, err := env.store.GetVault(ctx)
		require.NoError(t, err)
		require.Equal(t, vault, gotVault)

		env.provider.AssertCalled(t, "Close")
		_, err = env.manager.EVMSession(ctx)
		require.ErrorIs(t, err, domain.ErrUnsupportedChainFamily)
	})

	t.Run("rollback on failing rpc endpoint", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		env := newTestEnv(t)
		manager, err := keyring.NewKeyringManager(keyring.ManagerOpts{
			Store:  env.store,
			Cypher: testCypher,
			ExplorerFactory: func(domain.Network) (ports.UTXOExplorer, error) {
				return env.explorer, nil
			},
			EVMDialer: evmrpc.NewDialer(10, time.Minute),
		})
		require.NoError(t, err)
		_, err = manager.CreateOrRestoreVault(ctx, testMnemonic, testPassword)
		require.NoError(t, err)

		accounts := manager.GetAccounts()
		network, family := manager.GetNetwork()
		vault, err := env.store.GetVault(ctx)
		require.NoError(t, err)

		target := domain.EthereumMainnet
		target.URL = srv.URL
		done := make(chan error, 1)
		go func() {
			done <- manager.SetSignerNetwork(ctx, target, domain.ChainEthereum)
		}()
		select {
		case err = <-done:
		case <-time.After(10 * time.Second):
			t.Fatal("network switch did not return")
		}
		require.ErrorIs(t, err, domain.ErrRPCUnreachable)

		require.Equal(t, accounts, manager.GetAccounts())
		gotNetwork, gotFamily := manager.GetNetwork()
		require.Equal(t, network, gotNetwork)
		require.Equal(t, family, gotFamily)
		gotVault, err := env.store.GetVault(ctx)
		require.NoError(t, err)
		require.Equal(t, vault, gotVault)
	})

	t.Run("rollback on unreachable explorer", func(t *testing.T) {
		env := newTestEnv(t)
		env.createVault(t)
		env.switchToEVM(t, 1)
		accounts := env.manager.GetAccounts()

		failing := &mockExplorer{}
		failing.On("GetInfo", mock.Anything).Return(nil, errors.New("connection refused"))
		env.explorer = failing

		err := env.manager.SetSignerNetwork(ctx, domain.SyscoinMainnet, domain.ChainSyscoin)
		require.ErrorIs(t, err, domain.ErrRPCUnreachable)
		require.Equal(t, accounts, env.manager.GetAccounts())
		_, family := env.manager.GetNetwork()
		require.Equal(t, domain.ChainEthereum, family)
	})

	t.Run("utxo testnet", func(t *testing.T) {
		env := newTestEnv(t)
		env.createVault(t)

		testnet := &mockExplorer{}
		testnet.On("GetInfo", mock.Anything).Return(
			&ports.ExplorerInfo{Coin: "Syscoin Testnet", Chain: "test", IsTestnet: true}, nil,
		)
		env.explorer = testnet

		err := env.manager.SetSignerNetwork(ctx, domain.SyscoinTanenbaum, domain.ChainSyscoin)
		require.NoError(t, err)

		accounts := env.manager.GetAccounts()
		require.True(t, strings.HasPrefix(accounts[0].Address, "tsys1"))
		require.True(t, strings.HasPrefix(accounts[0].Xpub, "vpub"))

		session, err := env.manager.UTXOSession(ctx)
		require.NoError(t, err)
		require.Equal(t, wallet.SyscoinParams(true), session.Params)
		require.True(t, session.Network.IsTestnet)
	})

	t.Run("imported account falls back to hd", func(t *testing.T) {
		env := newTestEnv(t)
		env.createVault(t)
		env.switchToEVM(t, 1)
		_, err := env.manager.ImportAccount(ctx, testForeignKey, "")
		require.NoError(t, err)

		err = env.manager.SetSignerNetwork(ctx, domain.SyscoinMainnet, domain.ChainSyscoin)
		require.NoError(t, err)

		active, err := env.manager.GetActiveAccount()
		require.NoError(t, err)
		require.Equal(t, domain.HDAccount, active.Type())
		require.Equal(t, 0, active.ID)

		err = env.manager.SetActiveAccount(ctx, 0, domain.Imported)
		require.ErrorIs(t, err, domain.ErrUnsupportedChainFamily)
	})

	t.Run("locked", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.manager.SetSignerNetwork(ctx, domain.EthereumMainnet, domain.ChainEthereum)
		require.ErrorIs(t, err, domain.ErrWalletLocked)
	})
}

func TestNetworks(t *testing.T) {
	env := newTestEnv(t)
	env.createVault(t)

	networks, err := env.manager.GetNetworks(domain.ChainEthereum)
	require.NoError(t, err)
	require.Len(t, networks, 3)
	require.Equal(t, int64(1), networks[0].ChainID)

	custom := domain.Network{
		ChainID: 5, URL: "https://goerli.example.org", Label: "Goerli", Currency: "eth",
	}
	require.NoError(t, env.manager.AddNetwork(ctx, custom, domain.ChainEthereum))
	networks, err = env.manager.GetNetworks(domain.ChainEthereum)
	require.NoError(t, err)
	require.Len(t, networks, 4)

	err = env.manager.RemoveNetwork(ctx, domain.ChainSyscoin, domain.SyscoinMainnet.ChainID)
	require.ErrorIs(t, err, domain.ErrActiveNetworkRemoval)
	err = env.manager.RemoveNetwork(ctx, domain.ChainEthereum, 999)
	require.ErrorIs(t, err, domain.ErrNetworkNotFound)
	require.NoError(t, env.manager.RemoveNetwork(ctx, domain.ChainEthereum, 5))

	_, err = env.manager.GetNetworks(domain.ChainFamily("solana"))
	require.ErrorIs(t, err, domain.ErrUnsupportedChainFamily)
}

func TestSessions(t *testing.T) {
	env := newTestEnv(t)
	env.createVault(t)

	_, err := env.manager.EVMSession(ctx)
	require.ErrorIs(t, err, domain.ErrUnsupportedChainFamily)

	session, err := env.manager.UTXOSession(ctx)
	require.NoError(t, err)
	active, err := env.manager.GetActiveAccount()
	require.NoError(t, err)
	require.Equal(t, active.Xpub, session.Signer.Xpub())
	require.Equal(t, env.explorer, session.Explorer)

	env.switchToEVM(t, 1)
	evmSession, err := env.manager.EVMSession(ctx)
	require.NoError(t, err)
	require.Equal(t, testEVMAddress1, strings.ToLower(evmSession.Signer.Address().Hex()))

	msg := "hello keyring"
	sig, err := evmSession.Signer.SignPersonalMessage(ctx, []byte(msg))
	require.NoError(t, err)
	require.Len(t, sig, 65)
	require.GreaterOrEqual(t, sig[64], byte(27))
	signer, err := wallet.RecoverPersonalSigner(msg, sig)
	require.NoError(t, err)
	require.Equal(t, evmSession.Signer.Address(), signer)

	_, err = evmSession.Signer.SignHash(ctx, []byte("short"))
	require.ErrorIs(t, err, wallet.ErrInvalidMessageHash)
}

func TestUpdateBalances(t *testing.T) {
	env := newTestEnv(t)
	account := env.createVault(t)

	env.explorer.On("GetXpub", mock.Anything, account.Xpub).
		Return(&ports.XpubInfo{Balance: 150000000}, nil).Once()
	updated, err := env.manager.UpdateBalances(ctx)
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("1.5").Equal(updated.Balances.Syscoin))

	env.explorer.On("GetXpub", mock.Anything, account.Xpub).
		Return(nil, domain.NetworkError(errors.New("timeout"))).Once()
	updated, err = env.manager.UpdateBalances(ctx)
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("1.5").Equal(updated.Balances.Syscoin))
}

func TestForgetWallet(t *testing.T) {
	env := newTestEnv(t)
	env.createVault(t)

	err := env.manager.ForgetWallet(ctx, "wrong")
	require.ErrorIs(t, err, domain.ErrInvalidPassword)
	require.NoError(t, env.manager.ForgetWallet(ctx, testPassword))

	require.False(t, env.manager.IsUnlocked())
	require.Empty(t, env.manager.GetAccounts())
	_, err = env.manager.Unlock(ctx, testPassword)
	require.ErrorIs(t, err, domain.ErrWalletNotInitialized)

	vault, err := env.store.GetVault(ctx)
	require.NoError(t, err)
	require.Empty(t, vault)
}

// requireJSONEqual compares values as persisted, decimals lose their
// internal representation across a round trip.
func requireJSONEqual(t *testing.T, expected, actual interface{}) {
	exp, err := json.Marshal(expected)
	require.NoError(t, err)
	act, err := json.Marshal(actual)
	require.NoError(t, err)
	require.JSONEq(t, string(exp), string(act))
}

type stubUTXOSigner struct {
	ports.UTXOSigner
	xpub string
}

func (s *stubUTXOSigner) Xpub() string {
	return s.xpub
}

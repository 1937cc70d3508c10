package hardware_test

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/internal/infrastructure/hardware"
	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "solution rookie cake shine hand attack claw awful harsh level case vocal"

var (
	ctx         = context.Background()
	testChainID = big.NewInt(domain.SyscoinNEVM.ChainID)
	recipient   = common.HexToAddress("0x77c5b5dbc9c8a1d3e5bd4a1e3a1d6d2b1c0f9e8d")
)

type keys struct {
	utxo *wallet.UTXOAccount
	evm  *wallet.EVMAccount
}

func testKeys(t *testing.T) keys {
	w, err := wallet.NewWalletFromMnemonic(wallet.NewWalletFromMnemonicOpts{
		Mnemonic: testMnemonic,
	})
	require.NoError(t, err)
	utxoAccount, err := w.DeriveUTXOAccount(wallet.ExtendedKeyOpts{
		Account: 0,
		Network: wallet.SyscoinParams(false),
	})
	require.NoError(t, err)
	evmAccount, err := w.DeriveEVMAccount(0)
	require.NoError(t, err)
	return keys{utxoAccount, evmAccount}
}

func TestNewDevice(t *testing.T) {
	_, err := hardware.NewTrezor(nil)
	require.Error(t, err)
	_, err = hardware.NewLedger(nil)
	require.Error(t, err)

	device, err := hardware.NewLedger(newFakeTransport(testMnemonic))
	require.NoError(t, err)
	require.NotNil(t, device)
}

func TestGetAccount(t *testing.T) {
	k := testKeys(t)

	t.Run("utxo", func(t *testing.T) {
		device, err := hardware.NewTrezor(newFakeTransport(testMnemonic))
		require.NoError(t, err)

		address, xpub, err := device.GetAccount(ctx, domain.ChainSyscoin, domain.SyscoinMainnet, 0)
		require.NoError(t, err)
		require.Equal(t, k.utxo.Address, address)
		require.Equal(t, k.utxo.Xpub, xpub)
	})

	t.Run("evm", func(t *testing.T) {
		device, err := hardware.NewLedger(newFakeTransport(testMnemonic))
		require.NoError(t, err)

		address, pubkey, err := device.GetAccount(ctx, domain.ChainEthereum, domain.SyscoinNEVM, 0)
		require.NoError(t, err)
		require.Equal(t, k.evm.Address.Hex(), address)
		require.Equal(t, k.evm.PublicKeyHex(), pubkey)
	})

	t.Run("device errors", func(t *testing.T) {
		transport := newFakeTransport(testMnemonic)
		device, err := hardware.NewTrezor(transport)
		require.NoError(t, err)

		transport.err = errors.New("device locked")
		_, _, err = device.GetAccount(ctx, domain.ChainSyscoin, domain.SyscoinMainnet, 0)
		require.ErrorIs(t, err, domain.ErrHardwareRejected)

		transport.err = context.Canceled
		_, _, err = device.GetAccount(ctx, domain.ChainSyscoin, domain.SyscoinMainnet, 0)
		require.ErrorIs(t, err, context.Canceled)
		require.NotErrorIs(t, err, domain.ErrHardwareRejected)

		transport.err = nil
		_, _, err = device.GetAccount(ctx, domain.ChainSyscoin, domain.SyscoinMainnet, -1)
		require.Error(t, err)
	})
}

func TestSignerAccountCheck(t *testing.T) {
	device, err := hardware.NewTrezor(newFakeTransport(testMnemonic))
	require.NoError(t, err)
	params := wallet.SyscoinParams(false)

	_, err = device.UTXOSigner(domain.Account{
		IsLedgerWallet: true, Family: domain.ChainSyscoin,
	}, domain.SyscoinMainnet, params)
	require.Error(t, err)

	_, err = device.UTXOSigner(domain.Account{
		Family: domain.ChainSyscoin,
	}, domain.SyscoinMainnet, params)
	require.Error(t, err)

	_, err = device.UTXOSigner(domain.Account{
		IsTrezorWallet: true, Family: domain.ChainEthereum,
	}, domain.SyscoinMainnet, params)
	require.ErrorIs(t, err, domain.ErrUnsupportedChainFamily)

	_, err = device.EVMSigner(domain.Account{
		IsTrezorWallet: true, Family: domain.ChainEthereum, Address: "not an address",
	}, domain.SyscoinNEVM)
	require.Error(t, err)
}

// testPacket returns a psbt spending the first two receive outputs of the
// account to a foreign address, a memo and a change output.
func testPacket(t *testing.T, account *wallet.UTXOAccount, fingerprint uint32) *psbt.Packet {
	params := wallet.SyscoinParams(false)
	accountPath := wallet.UTXOAccountPath(params.HDCoinType, 0)

	foreign, err := btcutil.NewAddressWitnessPubKeyHash(make([]byte, 20), params)
	require.NoError(t, err)
	foreignScript, err := txscript.PayToAddrScript(foreign)
	require.NoError(t, err)
	memo, err := txscript.NullDataScript([]byte("memo"))
	require.NoError(t, err)
	_, changeScript, err := wallet.DeriveAddress(wallet.DeriveAddressOpts{
		Xpub: account.Xpub, Network: params, Chain: wallet.InternalChain,
	})
	require.NoError(t, err)

	outpoints := []*wire.OutPoint{
		wire.NewOutPoint(&chainhash.Hash{1}, 0),
		wire.NewOutPoint(&chainhash.Hash{2}, 1),
	}
	ptx, err := psbt.New(outpoints, []*wire.TxOut{
		wire.NewTxOut(60000, foreignScript),
		wire.NewTxOut(0, memo),
		wire.NewTxOut(39000, changeScript),
	}, 2, 0, []uint32{wire.MaxTxInSequenceNum - 2, wire.MaxTxInSequenceNum - 2})
	require.NoError(t, err)

	updater, err := psbt.NewUpdater(ptx)
	require.NoError(t, err)
	for i := range outpoints {
		_, script, err := wallet.DeriveAddress(wallet.DeriveAddressOpts{
			Xpub: account.Xpub, Network: params, Index: uint32(i),
		})
		require.NoError(t, err)
		pubkey, err := wallet.DerivePublicKey(account.Xpub, wallet.ExternalChain, uint32(i))
		require.NoError(t, err)

		require.NoError(t, updater.AddInWitnessUtxo(wire.NewTxOut(50000, script), i))
		require.NoError(t, updater.AddInBip32Derivation(
			fingerprint, accountPath.Child(wallet.ExternalChain, uint32(i)),
			pubkey.SerializeCompressed(), i,
		))
	}
	changeKey, err := wallet.DerivePublicKey(account.Xpub, wallet.InternalChain, 0)
	require.NoError(t, err)
	require.NoError(t, updater.AddOutBip32Derivation(
		fingerprint, accountPath.Child(wallet.InternalChain, 0),
		changeKey.SerializeCompressed(), 2,
	))
	return ptx
}

// witnessSignatures signs every input of ptx with the device keys. Trezor
// style signatures are bare DER aligned to the inputs, ledger style ones
// carry the sighash type and the pubkey.
func witnessSignatures(
	t *testing.T, transport *fakeTransport, ptx *psbt.Packet, ledgerStyle bool,
) func(req ports.UTXOSignRequest) ([]ports.InputSignature, error) {
	return func(req ports.UTXOSignRequest) ([]ports.InputSignature, error) {
		fetcher := txscript.NewMultiPrevOutFetcher(nil)
		for i, in := range ptx.Inputs {
			fetcher.AddPrevOut(ptx.UnsignedTx.TxIn[i].PreviousOutPoint, in.WitnessUtxo)
		}
		sigHashes := txscript.NewTxSigHashes(ptx.UnsignedTx, fetcher)

		sigs := make([]ports.InputSignature, 0, len(ptx.Inputs))
		for i, in := range ptx.Inputs {
			path := wallet.DerivationPath(in.Bip32Derivation[0].Bip32Path).String()
			key, err := transport.key(req.Coin, path)
			require.NoError(t, err)
			prvkey, err := key.ECPrivKey()
			require.NoError(t, err)

			sig, err := txscript.RawTxInWitnessSignature(
				ptx.UnsignedTx, sigHashes, i, in.WitnessUtxo.Value,
				in.WitnessUtxo.PkScript, txscript.SigHashAll, prvkey,
			)
			require.NoError(t, err)

			if ledgerStyle {
				sigs = append(sigs, ports.InputSignature{
					InputIndex: i,
					PubKey:     prvkey.PubKey().SerializeCompressed(),
					Signature:  sig,
				})
				continue
			}
			sigs = append(sigs, ports.InputSignature{
				InputIndex: i,
				Signature:  sig[:len(sig)-1],
			})
		}
		return sigs, nil
	}
}

func TestTrezorSignPsbt(t *testing.T) {
	k := testKeys(t)
	params := wallet.SyscoinParams(false)
	account := domain.Account{
		Address:        k.utxo.Address,
		Xpub:           k.utxo.Xpub,
		Family:         domain.ChainSyscoin,
		IsTrezorWallet: true,
	}

	t.Run("valid", func(t *testing.T) {
		transport := newFakeTransport(testMnemonic)
		device, err := hardware.NewTrezor(transport)
		require.NoError(t, err)
		signer, err := device.UTXOSigner(account, domain.SyscoinMainnet, params)
		require.NoError(t, err)
		require.Equal(t, k.utxo.Xpub, signer.Xpub())

		ptx := testPacket(t, k.utxo, k.utxo.Fingerprint)
		transport.signUTXO = witnessSignatures(t, transport, ptx, false)

		signed, err := signer.SignPsbt(ctx, ptx)
		require.NoError(t, err)
		require.Equal(t, 2, signed)

		require.Len(t, transport.utxoRequests, 1)
		req := transport.utxoRequests[0]
		require.Equal(t, ports.CoinSyscoin, req.Coin)
		require.Empty(t, req.Psbt)
		require.Len(t, req.Inputs, 2)
		for i, in := range req.Inputs {
			require.Equal(t, ports.SpendWitness, in.ScriptType)
			require.Equal(t, uint64(50000), in.Amount)
			require.Equal(t, wire.MaxTxInSequenceNum-2, in.Sequence)
			require.Equal(t, uint32(i), in.PrevIndex)
		}
		require.Equal(t, "m/84'/57'/0'/0/1", req.Inputs[1].Path)

		require.Len(t, req.Outputs, 3)
		require.Equal(t, ports.PayToAddress, req.Outputs[0].ScriptType)
		require.NotEmpty(t, req.Outputs[0].Address)
		require.Equal(t, ports.PayToOpReturn, req.Outputs[1].ScriptType)
		require.Equal(t, []byte("memo"), req.Outputs[1].OpReturn)
		require.Equal(t, ports.PayToWitness, req.Outputs[2].ScriptType)
		require.Equal(t, "m/84'/57'/0'/1/0", req.Outputs[2].Path)
		require.Empty(t, req.Outputs[2].Address)

		tx, _, err := wallet.FinalizeAndExtract(ptx)
		require.NoError(t, err)
		for _, in := range tx.TxIn {
			require.Len(t, in.Witness, 2)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		transport := newFakeTransport(testMnemonic)
		device, err := hardware.NewTrezor(transport)
		require.NoError(t, err)
		signer, err := device.UTXOSigner(account, domain.SyscoinMainnet, params)
		require.NoError(t, err)

		transport.err = errors.New("cancelled by user")
		_, err = signer.SignPsbt(ctx, testPacket(t, k.utxo, k.utxo.Fingerprint))
		require.ErrorIs(t, err, domain.ErrHardwareRejected)
	})

	t.Run("signature for unknown input", func(t *testing.T) {
		transport := newFakeTransport(testMnemonic)
		device, err := hardware.NewTrezor(transport)
		require.NoError(t, err)
		signer, err := device.UTXOSigner(account, domain.SyscoinMainnet, params)
		require.NoError(t, err)

		transport.signUTXO = func(ports.UTXOSignRequest) ([]ports.InputSignature, error) {
			return []ports.InputSignature{{InputIndex: 5, Signature: []byte{1}}}, nil
		}
		_, err = signer.SignPsbt(ctx, testPacket(t, k.utxo, k.utxo.Fingerprint))
		require.ErrorIs(t, err, domain.ErrHardwareRejected)
	})

	t.Run("signature by another key", func(t *testing.T) {
		transport := newFakeTransport(testMnemonic)
		device, err := hardware.NewTrezor(transport)
		require.NoError(t, err)
		signer, err := device.UTXOSigner(account, domain.SyscoinMainnet, params)
		require.NoError(t, err)

		ptx := testPacket(t, k.utxo, k.utxo.Fingerprint)
		sign := witnessSignatures(t, transport, ptx, false)
		transport.signUTXO = func(req ports.UTXOSignRequest) ([]ports.InputSignature, error) {
			sigs, err := sign(req)
			if err != nil {
				return nil, err
			}
			// input 1 gets the signature made by the key of input 0.
			sigs[1].Signature = sigs[0].Signature
			return sigs, nil
		}

		_, err = signer.SignPsbt(ctx, ptx)
		require.ErrorIs(t, err, domain.ErrHardwareRejected)
		require.Empty(t, ptx.Inputs[1].PartialSigs)
	})
}

func TestLedgerSignPsbt(t *testing.T) {
	k := testKeys(t)
	transport := newFakeTransport(testMnemonic)
	device, err := hardware.NewLedger(transport)
	require.NoError(t, err)

	signer, err := device.UTXOSigner(domain.Account{
		Address:        k.utxo.Address,
		Xpub:           k.utxo.Xpub,
		Family:         domain.ChainSyscoin,
		IsLedgerWallet: true,
	}, domain.SyscoinMainnet, wallet.SyscoinParams(false))
	require.NoError(t, err)
	require.Zero(t, signer.Fingerprint())

	ptx := testPacket(t, k.utxo, 0)
	transport.signUTXO = witnessSignatures(t, transport, ptx, true)

	signed, err := signer.SignPsbt(ctx, ptx)
	require.NoError(t, err)
	require.Equal(t, 2, signed)
	require.Equal(t, k.utxo.Fingerprint, signer.Fingerprint())

	require.Len(t, transport.utxoRequests, 1)
	req := transport.utxoRequests[0]
	require.Equal(t, "wpkh(@0/**)", req.Policy)
	require.Equal(t, k.utxo.Fingerprint, req.Fingerprint)
	require.Empty(t, req.Inputs)

	sent, err := psbt.NewFromRawBytes(strings.NewReader(req.Psbt), true)
	require.NoError(t, err)
	for _, in := range sent.Inputs {
		require.Equal(t, k.utxo.Fingerprint, in.Bip32Derivation[0].MasterKeyFingerprint)
	}
	require.Equal(t, k.utxo.Fingerprint, sent.Outputs[2].Bip32Derivation[0].MasterKeyFingerprint)

	_, _, err = wallet.FinalizeAndExtract(ptx)
	require.NoError(t, err)
}

// deviceEVMSignature signs the payload with the key at the requested path
// offset by keyOffset and returns v in EIP-155 form for legacy payloads.
func deviceEVMSignature(
	t *testing.T, transport *fakeTransport, keyOffset uint32,
) func(req ports.EVMSignRequest) (*ports.EVMSignature, error) {
	return func(req ports.EVMSignRequest) (*ports.EVMSignature, error) {
		path, err := wallet.ParseDerivationPath(req.Path)
		require.NoError(t, err)
		path[len(path)-1] += keyOffset
		key, err := transport.key(ports.CoinEthereum, path.String())
		require.NoError(t, err)
		prvkey, err := key.ECPrivKey()
		require.NoError(t, err)

		sig, err := crypto.Sign(crypto.Keccak256(req.Payload), prvkey.ToECDSA())
		require.NoError(t, err)

		v := uint64(sig[64])
		// typed payloads start with their type byte, legacy ones with an
		// rlp list prefix.
		if req.Payload[0] >= 0xc0 {
			v += req.ChainID.Uint64()*2 + 35
		}
		return &ports.EVMSignature{V: v, R: sig[:32], S: sig[32:64]}, nil
	}
}

func deviceMessageSignature(
	t *testing.T, transport *fakeTransport,
) func(req ports.MessageSignRequest) ([]byte, error) {
	return func(req ports.MessageSignRequest) ([]byte, error) {
		key, err := transport.key(ports.CoinEthereum, req.Path)
		require.NoError(t, err)
		prvkey, err := key.ECPrivKey()
		require.NoError(t, err)

		hash := req.Hash
		if hash == nil {
			hash = accounts.TextHash(req.Message)
		}
		return crypto.Sign(hash, prvkey.ToECDSA())
	}
}

func TestEVMSigner(t *testing.T) {
	k := testKeys(t)
	account := domain.Account{
		Address:        k.evm.Address.Hex(),
		Xpub:           k.evm.PublicKeyHex(),
		Family:         domain.ChainEthereum,
		IsLedgerWallet: true,
	}
	txs := map[string]*types.Transaction{
		"legacy": types.NewTx(&types.LegacyTx{
			Nonce:    3,
			GasPrice: big.NewInt(10e9),
			Gas:      21000,
			To:       &recipient,
			Value:    big.NewInt(1e15),
		}),
		"dynamic fee": types.NewTx(&types.DynamicFeeTx{
			ChainID:   testChainID,
			Nonce:     4,
			GasTipCap: big.NewInt(1e9),
			GasFeeCap: big.NewInt(20e9),
			Gas:       60000,
			To:        &recipient,
			Data:      []byte{0xa9, 0x05, 0x9c, 0xbb},
		}),
	}

	for name, tx := range txs {
		tx := tx
		t.Run(name, func(t *testing.T) {
			transport := newFakeTransport(testMnemonic)
			device, err := hardware.NewLedger(transport)
			require.NoError(t, err)
			signer, err := device.EVMSigner(account, domain.SyscoinNEVM)
			require.NoError(t, err)
			require.Equal(t, k.evm.Address, signer.Address())

			transport.signEVM = deviceEVMSignature(t, transport, 0)
			signed, err := signer.SignTx(ctx, tx, testChainID)
			require.NoError(t, err)

			sender, err := types.Sender(types.LatestSignerForChainID(testChainID), signed)
			require.NoError(t, err)
			require.Equal(t, k.evm.Address, sender)
			require.Equal(t, tx.Nonce(), signed.Nonce())

			require.Len(t, transport.evmRequests, 1)
			require.Equal(t, "m/44'/60'/0'/0/0", transport.evmRequests[0].Path)
			require.Zero(t, transport.evmRequests[0].ChainID.Cmp(testChainID))
		})
	}

	t.Run("signed by another key", func(t *testing.T) {
		transport := newFakeTransport(testMnemonic)
		device, err := hardware.NewLedger(transport)
		require.NoError(t, err)
		signer, err := device.EVMSigner(account, domain.SyscoinNEVM)
		require.NoError(t, err)

		transport.signEVM = deviceEVMSignature(t, transport, 1)
		_, err = signer.SignTx(ctx, txs["legacy"], testChainID)
		require.ErrorIs(t, err, domain.ErrHardwareRejected)
	})

	t.Run("messages", func(t *testing.T) {
		transport := newFakeTransport(testMnemonic)
		device, err := hardware.NewLedger(transport)
		require.NoError(t, err)
		signer, err := device.EVMSigner(account, domain.SyscoinNEVM)
		require.NoError(t, err)
		transport.signMessage = deviceMessageSignature(t, transport)

		sig, err := signer.SignPersonalMessage(ctx, []byte("hello"))
		require.NoError(t, err)
		require.Len(t, sig, crypto.SignatureLength)
		require.GreaterOrEqual(t, sig[64], byte(27))
		signerAddress, err := wallet.RecoverPersonalSigner("hello", sig)
		require.NoError(t, err)
		require.Equal(t, k.evm.Address, signerAddress)

		hash := crypto.Keccak256([]byte("typed data"))
		sig, err = signer.SignHash(ctx, hash)
		require.NoError(t, err)
		pubkey, err := crypto.SigToPub(hash, append(sig[:64:64], sig[64]-27))
		require.NoError(t, err)
		require.Equal(t, k.evm.Address, crypto.PubkeyToAddress(*pubkey))

		_, err = signer.SignHash(ctx, hash[:16])
		require.ErrorIs(t, err, wallet.ErrInvalidMessageHash)
	})

	t.Run("message signed by another key", func(t *testing.T) {
		transport := newFakeTransport(testMnemonic)
		device, err := hardware.NewLedger(transport)
		require.NoError(t, err)
		signer, err := device.EVMSigner(domain.Account{
			Address:        recipient.Hex(),
			Family:         domain.ChainEthereum,
			IsLedgerWallet: true,
		}, domain.SyscoinNEVM)
		require.NoError(t, err)
		transport.signMessage = deviceMessageSignature(t, transport)

		_, err = signer.SignPersonalMessage(ctx, []byte("hello"))
		require.ErrorIs(t, err, domain.ErrHardwareRejected)
	})
}

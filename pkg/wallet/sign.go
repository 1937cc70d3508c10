package wallet

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// SignPsbtOpts is the struct given to SignPsbt method
type SignPsbtOpts struct {
	Packet *psbt.Packet
	// Xprv is the account extended private key owning the inputs.
	Xprv string
}

func (o SignPsbtOpts) validate() error {
	if o.Packet == nil || o.Packet.UnsignedTx == nil {
		return ErrNullPsbt
	}
	if len(o.Xprv) <= 0 {
		return ErrInvalidExtendedKey
	}
	return nil
}

// SignPsbt signs every input of the packet that carries a bip32 derivation
// owned by the account key, ie. whose last two path elements (chain/index)
// derive the declared pubkey. Inputs owned by other keys are left untouched.
// It returns the number of signed inputs.
func SignPsbt(opts SignPsbtOpts) (int, error) {
	if err := opts.validate(); err != nil {
		return 0, err
	}
	account, err := hdkeychain.NewKeyFromString(opts.Xprv)
	if err != nil || !account.IsPrivate() {
		return 0, ErrInvalidExtendedKey
	}

	ptx := opts.Packet
	prevOuts, err := prevOutputFetcher(ptx)
	if err != nil {
		return 0, err
	}
	sigHashes := txscript.NewTxSigHashes(ptx.UnsignedTx, prevOuts)

	updater, err := psbt.NewUpdater(ptx)
	if err != nil {
		return 0, err
	}

	signed := 0
	for i := range ptx.Inputs {
		prvkey, ok, err := inputSigningKey(account, ptx.Inputs[i])
		if err != nil {
			return signed, fmt.Errorf("input %d: %w", i, err)
		}
		if !ok {
			continue
		}
		if err := signInput(updater, sigHashes, i, prvkey); err != nil {
			return signed, err
		}
		signed++
	}
	return signed, nil
}

// FinalizeAndExtract finalizes a fully signed packet and returns the network
// serialized transaction.
func FinalizeAndExtract(ptx *psbt.Packet) (*wire.MsgTx, []byte, error) {
	if ptx == nil {
		return nil, nil, ErrNullPsbt
	}
	if err := psbt.MaybeFinalizeAll(ptx); err != nil {
		return nil, nil, err
	}
	tx, err := psbt.Extract(ptx)
	if err != nil {
		return nil, nil, err
	}
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, nil, err
	}
	return tx, buf.Bytes(), nil
}

func inputSigningKey(
	account *hdkeychain.ExtendedKey, in psbt.PInput,
) (*btcec.PrivateKey, bool, error) {
	for _, derivation := range in.Bip32Derivation {
		path := derivation.Bip32Path
		if len(path) < 2 {
			continue
		}
		child, err := deriveExtendedKey(account, DerivationPath(path[len(path)-2:]))
		if err != nil {
			continue
		}
		pubkey, err := child.ECPubKey()
		if err != nil {
			return nil, false, err
		}
		if !bytes.Equal(pubkey.SerializeCompressed(), derivation.PubKey) {
			continue
		}
		if in.WitnessUtxo == nil {
			return nil, false, ErrNullInputWitnessUtxo
		}
		prvkey, err := child.ECPrivKey()
		if err != nil {
			return nil, false, err
		}
		return prvkey, true, nil
	}
	return nil, false, nil
}

func signInput(
	updater *psbt.Updater, sigHashes *txscript.TxSigHashes,
	inIndex int, prvkey *btcec.PrivateKey,
) error {
	ptx := updater.Upsbt
	in := ptx.Inputs[inIndex]
	pubkey := prvkey.PubKey()
	script := in.WitnessUtxo.PkScript

	var redeemScript []byte
	if ScriptTypeOf(script, in.WitnessScript) == P2SH_P2WPKH {
		// nested segwit: the script code is the p2wpkh program itself
		program, err := txscript.NewScriptBuilder().
			AddOp(txscript.OP_0).
			AddData(btcutil.Hash160(pubkey.SerializeCompressed())).
			Script()
		if err != nil {
			return err
		}
		redeemScript = program
		script = program
	}

	sig, err := txscript.RawTxInWitnessSignature(
		ptx.UnsignedTx, sigHashes, inIndex, in.WitnessUtxo.Value,
		script, txscript.SigHashAll, prvkey,
	)
	if err != nil {
		return err
	}

	parsed, err := ecdsa.ParseDERSignature(sig[:len(sig)-1])
	if err != nil {
		return err
	}
	hash, err := txscript.CalcWitnessSigHash(
		script, sigHashes, txscript.SigHashAll, ptx.UnsignedTx, inIndex,
		in.WitnessUtxo.Value,
	)
	if err != nil {
		return err
	}
	if !parsed.Verify(hash, pubkey) {
		return fmt.Errorf("signature verification failed for input %d", inIndex)
	}

	if _, err := updater.Sign(
		inIndex, sig, pubkey.SerializeCompressed(), redeemScript, nil,
	); err != nil {
		return err
	}
	return nil
}

func prevOutputFetcher(ptx *psbt.Packet) (*txscript.MultiPrevOutFetcher, error) {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range ptx.Inputs {
		outpoint := ptx.UnsignedTx.TxIn[i].PreviousOutPoint
		switch {
		case in.WitnessUtxo != nil:
			fetcher.AddPrevOut(outpoint, in.WitnessUtxo)
		case in.NonWitnessUtxo != nil:
			if int(outpoint.Index) >= len(in.NonWitnessUtxo.TxOut) {
				return nil, fmt.Errorf("input %d: prevout index out of range", i)
			}
			fetcher.AddPrevOut(outpoint, in.NonWitnessUtxo.TxOut[outpoint.Index])
		}
	}
	return fetcher, nil
}

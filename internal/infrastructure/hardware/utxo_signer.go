package hardware

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/pkg/stats"
	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
)

// ledgerPolicy is the wallet policy of single key native segwit accounts.
const ledgerPolicy = "wpkh(@0/**)"

type utxoSigner struct {
	device  *deviceWallet
	account domain.Account
	coin    string
	params  *chaincfg.Params
}

func (s *utxoSigner) Xpub() string {
	return s.account.Xpub
}

// Fingerprint returns the device master fingerprint once known, 0 before the
// first signature. Zero fingerprints are replaced when signing.
func (s *utxoSigner) Fingerprint() uint32 {
	s.device.lock.Lock()
	defer s.device.lock.Unlock()
	return s.device.fingerprints[s.coin]
}

func (s *utxoSigner) SignPsbt(ctx context.Context, ptx *psbt.Packet) (int, error) {
	if ptx == nil || ptx.UnsignedTx == nil {
		return 0, fmt.Errorf("missing psbt")
	}
	req := ports.UTXOSignRequest{
		Coin:     s.coin,
		Version:  ptx.UnsignedTx.Version,
		LockTime: ptx.UnsignedTx.LockTime,
		Xpub:     s.account.Xpub,
	}

	switch s.device.kind {
	case domain.Ledger:
		fingerprint, err := s.device.masterFingerprint(ctx, s.coin)
		if err != nil {
			return 0, err
		}
		setMasterFingerprint(ptx, fingerprint)
		encoded, err := ptx.B64Encode()
		if err != nil {
			return 0, err
		}
		req.Psbt = encoded
		req.Policy = ledgerPolicy
		req.Fingerprint = fingerprint
	default:
		inputs, err := deviceInputs(ptx)
		if err != nil {
			return 0, err
		}
		outputs, err := deviceOutputs(ptx, s.params)
		if err != nil {
			return 0, err
		}
		req.Inputs = inputs
		req.Outputs = outputs
	}

	sigs, err := s.device.transport.SignUTXO(ctx, req)
	if err != nil {
		return 0, s.device.deviceError(err)
	}
	signed, err := spliceSignatures(ptx, sigs)
	if err != nil {
		return signed, err
	}
	if signed > 0 {
		stats.SignedTransactions.WithLabelValues("utxo", s.device.signerName()).Inc()
	}
	return signed, nil
}

func deviceInputs(ptx *psbt.Packet) ([]ports.DeviceInput, error) {
	inputs := make([]ports.DeviceInput, 0, len(ptx.Inputs))
	for i, txIn := range ptx.UnsignedTx.TxIn {
		in := ptx.Inputs[i]
		prevout, err := previousOutput(ptx, i)
		if err != nil {
			return nil, err
		}
		scriptType, err := inputScriptType(prevout.PkScript, in.RedeemScript, in.WitnessScript)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		path := ""
		if len(in.Bip32Derivation) > 0 {
			path = wallet.DerivationPath(in.Bip32Derivation[0].Bip32Path).String()
		}
		inputs = append(inputs, ports.DeviceInput{
			Path:       path,
			PrevHash:   txIn.PreviousOutPoint.Hash.String(),
			PrevIndex:  txIn.PreviousOutPoint.Index,
			Amount:     uint64(prevout.Value),
			Sequence:   txIn.Sequence,
			ScriptType: scriptType,
		})
	}
	return inputs, nil
}

// deviceOutputs describes the outputs of ptx. Outputs carrying a bip32
// derivation are change and are described by path.
func deviceOutputs(ptx *psbt.Packet, params *chaincfg.Params) ([]ports.DeviceOutput, error) {
	outputs := make([]ports.DeviceOutput, 0, len(ptx.Outputs))
	for i, txOut := range ptx.UnsignedTx.TxOut {
		out := ports.DeviceOutput{Amount: uint64(txOut.Value)}
		derivations := ptx.Outputs[i].Bip32Derivation

		switch {
		case txscript.GetScriptClass(txOut.PkScript) == txscript.NullDataTy:
			pushes, err := txscript.PushedData(txOut.PkScript)
			if err != nil {
				return nil, fmt.Errorf("output %d: %w", i, err)
			}
			for _, push := range pushes {
				out.OpReturn = append(out.OpReturn, push...)
			}
			out.ScriptType = ports.PayToOpReturn
		case len(derivations) > 0:
			scriptType, err := changeScriptType(txOut.PkScript)
			if err != nil {
				return nil, fmt.Errorf("output %d: %w", i, err)
			}
			out.Path = wallet.DerivationPath(derivations[0].Bip32Path).String()
			out.ScriptType = scriptType
		default:
			_, addrs, _, err := txscript.ExtractPkScriptAddrs(txOut.PkScript, params)
			if err != nil || len(addrs) != 1 {
				return nil, fmt.Errorf("output %d: unsupported script", i)
			}
			out.Address = addrs[0].EncodeAddress()
			out.ScriptType = ports.PayToAddress
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

func previousOutput(ptx *psbt.Packet, i int) (*wire.TxOut, error) {
	in := ptx.Inputs[i]
	if in.WitnessUtxo != nil {
		return in.WitnessUtxo, nil
	}
	if in.NonWitnessUtxo != nil {
		index := ptx.UnsignedTx.TxIn[i].PreviousOutPoint.Index
		if int(index) < len(in.NonWitnessUtxo.TxOut) {
			return in.NonWitnessUtxo.TxOut[index], nil
		}
	}
	return nil, fmt.Errorf("input %d: missing previous output", i)
}

func inputScriptType(script, redeemScript, witnessScript []byte) (ports.DeviceScriptType, error) {
	switch wallet.ScriptTypeOf(script, witnessScript) {
	case wallet.P2MS:
		return ports.SpendMultisig, nil
	case wallet.P2PK, wallet.P2PKH:
		return ports.SpendAddress, nil
	case wallet.P2WPKH:
		return ports.SpendWitness, nil
	case wallet.P2WSH:
		if isMultisig(witnessScript) {
			return ports.SpendMultisig, nil
		}
		return ports.SpendWitness, nil
	case wallet.P2SH_P2WPKH:
		if isMultisig(redeemScript) {
			return ports.SpendMultisig, nil
		}
		return ports.SpendP2SHWitness, nil
	case wallet.P2SH_P2WSH:
		if isMultisig(witnessScript) {
			return ports.SpendMultisig, nil
		}
		return ports.SpendP2SHWitness, nil
	default:
		return "", fmt.Errorf("unsupported script")
	}
}

func changeScriptType(script []byte) (ports.DeviceScriptType, error) {
	switch wallet.ScriptTypeOf(script, nil) {
	case wallet.P2WPKH, wallet.P2WSH:
		return ports.PayToWitness, nil
	case wallet.P2SH_P2WPKH:
		return ports.PayToP2SHWitness, nil
	case wallet.P2PKH:
		return ports.PayToAddress, nil
	case wallet.P2MS:
		return ports.PayToMultisig, nil
	default:
		return "", fmt.Errorf("unsupported change script")
	}
}

func isMultisig(script []byte) bool {
	return len(script) > 0 && txscript.GetScriptClass(script) == txscript.MultiSigTy
}

func setMasterFingerprint(ptx *psbt.Packet, fingerprint uint32) {
	for _, in := range ptx.Inputs {
		for _, d := range in.Bip32Derivation {
			if d.MasterKeyFingerprint == 0 {
				d.MasterKeyFingerprint = fingerprint
			}
		}
	}
	for _, out := range ptx.Outputs {
		for _, d := range out.Bip32Derivation {
			if d.MasterKeyFingerprint == 0 {
				d.MasterKeyFingerprint = fingerprint
			}
		}
	}
}

// spliceSignatures adds the device signatures to ptx as partial signatures
// and returns the number of signed inputs. Signatures without pubkey belong
// to the single derivation of their input. Every signature is checked
// against the sighash of its input before it is added.
func spliceSignatures(ptx *psbt.Packet, sigs []ports.InputSignature) (int, error) {
	updater, err := psbt.NewUpdater(ptx)
	if err != nil {
		return 0, err
	}
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, txIn := range ptx.UnsignedTx.TxIn {
		if prevout, err := previousOutput(ptx, i); err == nil {
			fetcher.AddPrevOut(txIn.PreviousOutPoint, prevout)
		}
	}
	sigHashes := txscript.NewTxSigHashes(ptx.UnsignedTx, fetcher)

	signed := make(map[int]struct{})
	for _, sig := range sigs {
		if sig.InputIndex < 0 || sig.InputIndex >= len(ptx.Inputs) {
			return len(signed), fmt.Errorf(
				"%w: signature for unknown input %d", domain.ErrHardwareRejected, sig.InputIndex,
			)
		}
		in := ptx.Inputs[sig.InputIndex]
		pubkey := sig.PubKey
		if len(pubkey) <= 0 {
			if len(in.Bip32Derivation) != 1 {
				return len(signed), fmt.Errorf(
					"input %d: cannot match signature to a key", sig.InputIndex,
				)
			}
			pubkey = in.Bip32Derivation[0].PubKey
		}

		der := sig.Signature
		// devices return bare DER signatures, psbts carry the sighash type.
		if _, err := ecdsa.ParseDERSignature(der); err == nil {
			der = append(append([]byte{}, der...), byte(txscript.SigHashAll))
		}
		if err := verifySignature(ptx, sigHashes, sig.InputIndex, der, pubkey); err != nil {
			return len(signed), fmt.Errorf(
				"%w: input %d: %s", domain.ErrHardwareRejected, sig.InputIndex, err,
			)
		}

		outcome, err := updater.Sign(sig.InputIndex, der, pubkey, nil, nil)
		if err != nil {
			return len(signed), fmt.Errorf("input %d: %w", sig.InputIndex, err)
		}
		if outcome != psbt.SignSuccesful {
			return len(signed), fmt.Errorf(
				"%w: input %d signature was not accepted", domain.ErrHardwareRejected, sig.InputIndex,
			)
		}
		signed[sig.InputIndex] = struct{}{}
	}
	return len(signed), nil
}

// verifySignature checks sig, a DER signature followed by its sighash type,
// against the sighash of input i for pubkey.
func verifySignature(
	ptx *psbt.Packet, sigHashes *txscript.TxSigHashes, i int, sig, pubkey []byte,
) error {
	if len(sig) < 2 {
		return fmt.Errorf("malformed signature")
	}
	parsed, err := ecdsa.ParseDERSignature(sig[:len(sig)-1])
	if err != nil {
		return err
	}
	key, err := btcec.ParsePubKey(pubkey)
	if err != nil {
		return err
	}
	prevout, err := previousOutput(ptx, i)
	if err != nil {
		return err
	}

	in := ptx.Inputs[i]
	hashType := txscript.SigHashType(sig[len(sig)-1])
	script := prevout.PkScript
	switch {
	case len(in.WitnessScript) > 0:
		script = in.WitnessScript
	case len(in.RedeemScript) > 0:
		script = in.RedeemScript
	}

	var hash []byte
	if txscript.IsWitnessProgram(prevout.PkScript) || txscript.IsWitnessProgram(in.RedeemScript) {
		hash, err = txscript.CalcWitnessSigHash(
			script, sigHashes, hashType, ptx.UnsignedTx, i, prevout.Value,
		)
	} else {
		hash, err = txscript.CalcSignatureHash(script, hashType, ptx.UnsignedTx, i)
	}
	if err != nil {
		return err
	}
	if !parsed.Verify(hash, key) {
		return fmt.Errorf("signature does not match the input sighash")
	}
	return nil
}

package wallet

import (
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ScriptType classifies the output scripts the keyring is able to spend or
// describe to a hardware device.
type ScriptType int

const (
	P2PK ScriptType = iota
	P2PKH
	P2MS
	P2SH_P2WPKH
	P2SH_P2WSH
	P2WPKH
	P2WSH
	NonStandard
)

// ScriptTypeOf classifies a previous output script. A p2sh script is reported
// as P2SH_P2WSH when a witness script is known, otherwise as P2SH_P2WPKH.
func ScriptTypeOf(script, witnessScript []byte) ScriptType {
	switch txscript.GetScriptClass(script) {
	case txscript.PubKeyTy:
		return P2PK
	case txscript.PubKeyHashTy:
		return P2PKH
	case txscript.MultiSigTy:
		return P2MS
	case txscript.ScriptHashTy:
		if len(witnessScript) > 0 {
			return P2SH_P2WSH
		}
		return P2SH_P2WPKH
	case txscript.WitnessV0PubKeyHashTy:
		return P2WPKH
	case txscript.WitnessV0ScriptHashTy:
		return P2WSH
	default:
		return NonStandard
	}
}

var (
	// placeholder signature (DER + sighash type) and compressed pubkey
	placeholderSig    = make([]byte, 72)
	placeholderPubkey = make([]byte, 33)
	// scriptsig pushing the p2wpkh program: OP_0 <20 bytes>
	placeholderNestedProgram = make([]byte, 23)
)

// EstimateDraftSize returns the serialized size in bytes of tx once every
// input carries a signature. Inputs are filled with placeholder scriptsigs or
// witnesses of the right length according to their script type, so that the
// size of an unsigned draft can be priced before signing. The given tx is not
// modified.
func EstimateDraftSize(tx *wire.MsgTx, inScriptTypes []ScriptType) int {
	return withPlaceholders(tx, inScriptTypes).SerializeSize()
}

// EstimateDraftVirtualSize is like EstimateDraftSize but returns the virtual
// size (weight / 4 rounded up).
func EstimateDraftVirtualSize(tx *wire.MsgTx, inScriptTypes []ScriptType) int {
	draft := withPlaceholders(tx, inScriptTypes)
	weight := draft.SerializeSizeStripped()*3 + draft.SerializeSize()
	return (weight + 3) / 4
}

func withPlaceholders(tx *wire.MsgTx, inScriptTypes []ScriptType) *wire.MsgTx {
	draft := tx.Copy()
	for i, in := range draft.TxIn {
		scriptType := P2WPKH
		if i < len(inScriptTypes) {
			scriptType = inScriptTypes[i]
		}
		switch scriptType {
		case P2PKH:
			in.SignatureScript = make([]byte, 1+len(placeholderSig)+1+len(placeholderPubkey))
			in.Witness = nil
		case P2PK:
			in.SignatureScript = make([]byte, 1+len(placeholderSig))
			in.Witness = nil
		case P2SH_P2WPKH:
			in.SignatureScript = placeholderNestedProgram
			in.Witness = wire.TxWitness{placeholderSig, placeholderPubkey}
		default:
			in.SignatureScript = nil
			in.Witness = wire.TxWitness{placeholderSig, placeholderPubkey}
		}
	}
	return draft
}

package utxo

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/pkg/explorer"
	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
)

// inputSequence signals replaceability.
const inputSequence = wire.MaxTxInSequenceNum - 2

// changeOutput is the next unused internal address of the account.
type changeOutput struct {
	address string
	script  []byte
	path    wallet.DerivationPath
	pubkey  []byte
}

// nextChangeOutput derives the first internal address of the account xpub
// that has never received funds according to the explorer.
func nextChangeOutput(
	ctx context.Context, session *ports.UTXOSession,
) (*changeOutput, error) {
	xpub := session.Signer.Xpub()
	info, err := session.Explorer.GetXpub(ctx, xpub)
	if err != nil {
		return nil, err
	}
	index := nextUnusedIndex(info.Tokens, wallet.InternalChain)

	address, script, err := wallet.DeriveAddress(wallet.DeriveAddressOpts{
		Xpub:    xpub,
		Network: session.Params,
		Chain:   wallet.InternalChain,
		Index:   index,
	})
	if err != nil {
		return nil, err
	}
	pubkey, err := wallet.DerivePublicKey(xpub, wallet.InternalChain, index)
	if err != nil {
		return nil, err
	}
	return &changeOutput{
		address: address,
		script:  script,
		path:    accountPath(session).Child(wallet.InternalChain, index),
		pubkey:  pubkey.SerializeCompressed(),
	}, nil
}

func nextUnusedIndex(tokens []ports.XpubToken, chain uint32) uint32 {
	next := uint32(0)
	for _, token := range tokens {
		if token.Transfers <= 0 {
			continue
		}
		path, err := wallet.ParseDerivationPath(token.Path)
		if err != nil || len(path) < 2 || path[len(path)-2] != chain {
			continue
		}
		if index := path[len(path)-1]; index >= next {
			next = index + 1
		}
	}
	return next
}

// accountPath is the derivation path of the active account. Device accounts
// live at their device index, software ones at their id.
func accountPath(session *ports.UTXOSession) wallet.DerivationPath {
	index := session.Account.ID
	if session.Account.Type().IsHardware() {
		index = session.Account.DeviceIndex
	}
	return wallet.UTXOAccountPath(session.Params.HDCoinType, uint32(index))
}

// newPacket creates the unsigned psbt spending inputs to outputs. Inputs
// carry their witness utxo and bip32 derivation so that any signer can sign
// them. The change output, if any, must be the last one.
func newPacket(
	session *ports.UTXOSession, inputs []explorer.Utxo,
	outputs []*wire.TxOut, change *changeOutput,
) (*psbt.Packet, error) {
	outpoints := make([]*wire.OutPoint, 0, len(inputs))
	prevouts := make([]*wire.TxOut, 0, len(inputs))
	sequences := make([]uint32, 0, len(inputs))
	for _, u := range inputs {
		outpoint, prevout, err := u.Parse()
		if err != nil {
			return nil, err
		}
		outpoints = append(outpoints, outpoint)
		prevouts = append(prevouts, prevout)
		sequences = append(sequences, inputSequence)
	}

	packet, err := psbt.New(outpoints, outputs, wire.TxVersion, 0, sequences)
	if err != nil {
		return nil, err
	}
	updater, err := psbt.NewUpdater(packet)
	if err != nil {
		return nil, err
	}

	xpub := session.Signer.Xpub()
	fingerprint := session.Signer.Fingerprint()
	for i, u := range inputs {
		if err := updater.AddInWitnessUtxo(prevouts[i], i); err != nil {
			return nil, err
		}
		path, err := wallet.ParseDerivationPath(u.Path())
		if err != nil || len(path) < 2 {
			return nil, fmt.Errorf("utxo %s:%d has no valid derivation path", u.Hash(), u.Index())
		}
		pubkey, err := wallet.DerivePublicKey(xpub, path[len(path)-2], path[len(path)-1])
		if err != nil {
			return nil, err
		}
		if err := updater.AddInBip32Derivation(
			fingerprint, path, pubkey.SerializeCompressed(), i,
		); err != nil {
			return nil, err
		}
	}

	if change != nil {
		if err := updater.AddOutBip32Derivation(
			fingerprint, change.path, change.pubkey, len(outputs)-1,
		); err != nil {
			return nil, err
		}
	}
	return packet, nil
}

// signAndExtract has the session signer sign every input of packet and
// returns the finalized transaction hex.
func signAndExtract(
	ctx context.Context, session *ports.UTXOSession, packet *psbt.Packet,
) (string, error) {
	signed, err := session.Signer.SignPsbt(ctx, packet)
	if err != nil {
		return "", err
	}
	if signed < len(packet.Inputs) {
		return "", fmt.Errorf(
			"%w: signed %d of %d inputs", domain.ErrIncompleteSignatures, signed, len(packet.Inputs),
		)
	}
	return extract(packet)
}

func extract(packet *psbt.Packet) (string, error) {
	_, raw, err := wallet.FinalizeAndExtract(packet)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrIncompleteSignatures, err)
	}
	return hex.EncodeToString(raw), nil
}

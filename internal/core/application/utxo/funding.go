package utxo

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/pkg/explorer"
	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
)

var (
	// ErrInvalidAmount ...
	ErrInvalidAmount = &domain.Error{
		Kind: domain.KindValidation, Err: errors.New("amount must be greater than zero"),
	}
	// ErrInvalidAddress ...
	ErrInvalidAddress = &domain.Error{
		Kind: domain.KindValidation, Err: errors.New("invalid recipient address"),
	}
	// ErrAssetBuilderUnavailable is returned by asset operations of a service
	// built without an asset tx builder.
	ErrAssetBuilderUnavailable = &domain.Error{
		Kind: domain.KindState, Err: errors.New("asset transactions require an asset tx builder"),
	}
)

// p2wpkh script used to size the change output before it is derived.
var placeholderChangeScript = append([]byte{txscript.OP_0, txscript.OP_DATA_20}, make([]byte, 20)...)

// funding is the result of the coin selection of a native payment.
type funding struct {
	inputs  []explorer.Utxo
	amount  uint64
	fee     uint64
	change  uint64
	sendMax bool
}

// fundPayment selects the inputs paying amount to the given outputs plus the
// fee at feeRate sats/byte. The fee is priced on a draft carrying the real
// inputs with placeholder witnesses. When the balance cannot cover both the
// amount and the fee, the whole balance is spent and the payment is reduced
// by the fee.
func fundPayment(
	utxos []explorer.Utxo, payment []*wire.TxOut,
	amount, feeRate uint64, changeScript []byte,
) (*funding, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	native := nativeUtxos(utxos)
	balance := explorer.Balance(native)
	if amount > balance {
		return nil, fmt.Errorf(
			"%w: balance %d, amount %d", domain.ErrInsufficientFunds, balance, amount,
		)
	}

	fee := uint64(0)
	for i := 0; i <= len(native); i++ {
		coins, _, err := explorer.SelectUnspents(native, amount+fee, explorer.NativeAsset)
		if err != nil {
			if errors.Is(err, explorer.ErrInsufficientFunds) {
				break
			}
			return nil, err
		}

		total := explorer.Balance(coins)
		size, err := draftSize(coins, payment, amount, changeScript)
		if err != nil {
			return nil, err
		}
		required := feeRate * uint64(size)
		if total < amount+required {
			fee = required
			continue
		}

		change := total - amount - required
		if change < dustAmount {
			return &funding{inputs: coins, amount: amount, fee: total - amount}, nil
		}
		return &funding{inputs: coins, amount: amount, fee: required, change: change}, nil
	}

	return fundSendMax(native, payment, balance, feeRate)
}

func fundSendMax(
	native []explorer.Utxo, payment []*wire.TxOut, balance, feeRate uint64,
) (*funding, error) {
	size, err := draftSize(native, payment, balance, nil)
	if err != nil {
		return nil, err
	}
	fee := feeRate * uint64(size)
	if balance <= fee+dustAmount {
		return nil, fmt.Errorf(
			"%w: balance %d does not cover fee %d", domain.ErrInsufficientFunds, balance, fee,
		)
	}
	return &funding{
		inputs:  native,
		amount:  balance - fee,
		fee:     fee,
		sendMax: true,
	}, nil
}

// draftSize returns the serialized size of the signed transaction spending
// coins. The first payment output receives amount, the others are kept
// as they are. A change output is added if changeScript is not nil.
func draftSize(
	coins []explorer.Utxo, payment []*wire.TxOut, amount uint64, changeScript []byte,
) (int, error) {
	tx := wire.NewMsgTx(wire.TxVersion)
	scriptTypes := make([]wallet.ScriptType, 0, len(coins))
	for _, u := range coins {
		outpoint, prevout, err := u.Parse()
		if err != nil {
			return 0, err
		}
		tx.AddTxIn(wire.NewTxIn(outpoint, nil, nil))
		scriptTypes = append(scriptTypes, wallet.ScriptTypeOf(prevout.PkScript, nil))
	}
	for i, out := range payment {
		value := out.Value
		if i == 0 {
			value = int64(amount)
		}
		tx.AddTxOut(wire.NewTxOut(value, out.PkScript))
	}
	if changeScript != nil {
		tx.AddTxOut(wire.NewTxOut(0, changeScript))
	}
	return wallet.EstimateDraftSize(tx, scriptTypes), nil
}

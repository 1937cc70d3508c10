package utxo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/pkg/mathutil"
	log "github.com/sirupsen/logrus"
)

// EstimateFee returns the fee in satoshis of the given payment.
func (s *service) EstimateFee(ctx context.Context, req FeeRequest) (uint64, error) {
	session, err := s.sessions.UTXOSession(ctx)
	if err != nil {
		return 0, err
	}
	payment, err := paymentOutputs(session, req.To, nil)
	if err != nil {
		return 0, err
	}
	feeRate, err := s.feeRate(ctx, session, req.FeeRate)
	if err != nil {
		return 0, err
	}
	utxos, err := session.Explorer.GetUtxos(ctx, session.Signer.Xpub())
	if err != nil {
		return 0, err
	}

	funds, err := fundPayment(
		utxos, payment, mathutil.ToSatoshis(req.Amount), feeRate, placeholderChangeScript,
	)
	if err != nil {
		return 0, err
	}
	return funds.fee, nil
}

// GetRecommendedFee returns the explorer fee rate estimation in sats/byte.
func (s *service) GetRecommendedFee(ctx context.Context) (uint64, error) {
	session, err := s.sessions.UTXOSession(ctx)
	if err != nil {
		return 0, err
	}
	return recommendedFee(ctx, session)
}

func recommendedFee(ctx context.Context, session *ports.UTXOSession) (uint64, error) {
	satsPerKB, err := session.Explorer.EstimateFee(ctx, feeTargetBlocks)
	if err != nil {
		return 0, err
	}
	if satsPerKB == 0 {
		log.Debugf("utxo: no fee estimation available, using %d sats/byte", DefaultFeeRate)
		return DefaultFeeRate, nil
	}
	feeRate := (satsPerKB + 999) / 1000
	if feeRate < minFeeRate {
		feeRate = minFeeRate
	}
	return feeRate, nil
}

func (s *service) feeRate(
	ctx context.Context, session *ports.UTXOSession, feeRate uint64,
) (uint64, error) {
	if feeRate > 0 {
		return feeRate, nil
	}
	return recommendedFee(ctx, session)
}

// SendTransaction pays req.Amount to req.To from the active account. The
// transaction is broadcast once, never retried.
func (s *service) SendTransaction(
	ctx context.Context, req SendRequest, broadcast bool,
) (*SendResult, error) {
	session, err := s.sessions.UTXOSession(ctx)
	if err != nil {
		return nil, err
	}
	payment, err := paymentOutputs(session, req.To, req.Memo)
	if err != nil {
		return nil, err
	}
	feeRate, err := s.feeRate(ctx, session, req.FeeRate)
	if err != nil {
		return nil, err
	}
	utxos, err := session.Explorer.GetUtxos(ctx, session.Signer.Xpub())
	if err != nil {
		return nil, err
	}
	change, err := nextChangeOutput(ctx, session)
	if err != nil {
		return nil, err
	}

	funds, err := fundPayment(
		utxos, payment, mathutil.ToSatoshis(req.Amount), feeRate, change.script,
	)
	if err != nil {
		return nil, err
	}

	payment[0].Value = int64(funds.amount)
	outputs := payment
	var changeOut *changeOutput
	if funds.change > 0 {
		outputs = append(outputs, wire.NewTxOut(int64(funds.change), change.script))
		changeOut = change
	}

	packet, err := newPacket(session, funds.inputs, outputs, changeOut)
	if err != nil {
		return nil, err
	}
	txHex, err := signAndExtract(ctx, session, packet)
	if err != nil {
		return nil, err
	}

	result := &SendResult{
		TxHex:   txHex,
		Fee:     funds.fee,
		Amount:  funds.amount,
		SendMax: funds.sendMax,
	}
	if !broadcast {
		return result, nil
	}

	txid, err := session.Explorer.BroadcastTransaction(ctx, txHex)
	if err != nil {
		return nil, err
	}
	result.Txid = txid
	log.Infof("utxo: broadcast payment %s (fee %d sats)", txid, funds.fee)
	return result, nil
}

// SignPSBT signs the inputs of an exchanged psbt owned by the active
// account. Without broadcast the signed exchange is returned, otherwise the
// finalized transaction is broadcast and its txid returned.
func (s *service) SignPSBT(
	ctx context.Context, exchange PsbtExchange, broadcast bool,
) (*SignResult, error) {
	packet, err := decodeExchange(exchange)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.UTXOSession(ctx)
	if err != nil {
		return nil, err
	}
	signed, err := session.Signer.SignPsbt(ctx, packet)
	if err != nil {
		return nil, err
	}
	if signed <= 0 {
		return nil, fmt.Errorf("%w: no input owned by the active account", domain.ErrIncompleteSignatures)
	}

	if !broadcast {
		encoded, err := packet.B64Encode()
		if err != nil {
			return nil, err
		}
		return &SignResult{
			Exchange: &PsbtExchange{Psbt: encoded, Assets: exchange.Assets},
		}, nil
	}

	txHex, err := extract(packet)
	if err != nil {
		return nil, err
	}
	txid, err := session.Explorer.BroadcastTransaction(ctx, txHex)
	if err != nil {
		return nil, err
	}
	log.Infof("utxo: broadcast psbt %s", txid)
	return &SignResult{Txid: txid}, nil
}

// decodeExchange validates the exchange before any signing attempt.
func decodeExchange(exchange PsbtExchange) (*psbt.Packet, error) {
	raw, err := base64.StdEncoding.DecodeString(exchange.Psbt)
	if err != nil || len(raw) <= 0 {
		return nil, domain.ErrBase64Required
	}
	if !json.Valid([]byte(exchange.Assets)) {
		return nil, domain.ErrInvalidAssets
	}
	packet, err := psbt.NewFromRawBytes(bytes.NewReader(raw), false)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrBase64Required, err)
	}
	return packet, nil
}

// paymentOutputs returns the output paying to, followed by the memo output
// if any. The payment value is set once funded.
func paymentOutputs(
	session *ports.UTXOSession, to string, memo []byte,
) ([]*wire.TxOut, error) {
	addr, err := btcutil.DecodeAddress(to, session.Params)
	if err != nil || !addr.IsForNet(session.Params) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, to)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}

	outputs := []*wire.TxOut{wire.NewTxOut(0, script)}
	if len(memo) > 0 {
		memoScript, err := txscript.NullDataScript(memo)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, wire.NewTxOut(0, memoScript))
	}
	return outputs, nil
}

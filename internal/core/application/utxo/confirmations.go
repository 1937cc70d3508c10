package utxo

import (
	"context"
	"errors"
	"time"

	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// WaitForConfirmations polls the explorer until txid has at least
// minConfirmations. It is bounded by ctx and by the configured max wait.
func (s *service) WaitForConfirmations(
	ctx context.Context, txid string, minConfirmations uint64,
) (*ports.TxInfo, error) {
	session, err := s.sessions.UTXOSession(ctx)
	if err != nil {
		return nil, err
	}
	return s.waitForConfirmations(ctx, session.Explorer, txid, minConfirmations)
}

func (s *service) waitForConfirmations(
	ctx context.Context, explorerSvc ports.UTXOExplorer,
	txid string, minConfirmations uint64,
) (*ports.TxInfo, error) {
	if s.maxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.maxWait)
		defer cancel()
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		tx, err := explorerSvc.GetTransaction(ctx, txid)
		switch {
		case err == nil:
			if tx.Confirmations >= minConfirmations {
				return tx, nil
			}
			log.Debugf(
				"utxo: tx %s has %d/%d confirmations", txid, tx.Confirmations, minConfirmations,
			)
		// a just broadcast tx may not be indexed yet.
		case errors.Is(err, domain.ErrTransactionNotFound):
			log.Debugf("utxo: tx %s not found yet", txid)
		default:
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

package main

import (
	"fmt"

	"github.com/pollum-io/sysweb3-sub000/internal/config"
	"github.com/pollum-io/sysweb3-sub000/internal/core/application/keyring"
	"github.com/pollum-io/sysweb3-sub000/internal/core/application/utxo"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

var (
	recipientFlag = cli.StringFlag{
		Name:     "to",
		Usage:    "the recipient address",
		Required: true,
	}
	sysAmountFlag = cli.StringFlag{
		Name:     "amount",
		Usage:    "the amount in SYS units",
		Required: true,
	}
	feeRateFlag = cli.Uint64Flag{
		Name:  "feerate",
		Usage: "the fee rate in sats/byte, the recommended one is used if missing",
	}
	broadcastFlag = cli.BoolFlag{
		Name:  "broadcast",
		Usage: "broadcast the signed transaction",
	}
)

var sendsys = cli.Command{
	Name:  "sendsys",
	Usage: "send native coins from the active UTXO account",
	Flags: []cli.Flag{
		&passwordFlag,
		&recipientFlag,
		&sysAmountFlag,
		&feeRateFlag,
		&cli.StringFlag{
			Name:  "memo",
			Usage: "a memo attached to the transaction",
		},
		&broadcastFlag,
	},
	Action: sendSysAction,
}

var estimatefee = cli.Command{
	Name:  "estimatefee",
	Usage: "estimate the fee of a native payment from the active UTXO account",
	Flags: []cli.Flag{
		&passwordFlag,
		&recipientFlag,
		&sysAmountFlag,
		&feeRateFlag,
	},
	Action: estimateFeeAction,
}

var signpsbt = cli.Command{
	Name:  "signpsbt",
	Usage: "sign the inputs of a psbt owned by the active UTXO account",
	Flags: []cli.Flag{
		&passwordFlag,
		&cli.StringFlag{
			Name:     "psbt",
			Usage:    "the base64 encoded psbt",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "assets",
			Usage: "the json metadata of the asset allocations",
			Value: "{}",
		},
		&broadcastFlag,
	},
	Action: signPsbtAction,
}

func newUTXOService(manager keyring.KeyringManager) (utxo.Service, error) {
	return utxo.NewService(utxo.ServiceOpts{
		Sessions:     manager,
		PollInterval: config.GetDuration(config.ConfirmationPollIntervalKey),
		MaxWait:      config.GetDuration(config.ConfirmationMaxWaitKey),
	})
}

func parseSysAmount(ctx *cli.Context) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(ctx.String(sysAmountFlag.Name))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount: %w", err)
	}
	if !amount.IsPositive() {
		return decimal.Zero, utxo.ErrInvalidAmount
	}
	return amount, nil
}

func sendSysAction(ctx *cli.Context) error {
	amount, err := parseSysAmount(ctx)
	if err != nil {
		return err
	}
	req := utxo.SendRequest{
		To:      ctx.String(recipientFlag.Name),
		Amount:  amount,
		FeeRate: ctx.Uint64(feeRateFlag.Name),
	}
	if memo := ctx.String("memo"); memo != "" {
		req.Memo = []byte(memo)
	}

	manager, cleanup, err := unlockedManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	svc, err := newUTXOService(manager)
	if err != nil {
		return err
	}

	res, err := svc.SendTransaction(ctx.Context, req, ctx.Bool(broadcastFlag.Name))
	if err != nil {
		return err
	}
	return printJSON(ctx, map[string]interface{}{
		"txid":    res.Txid,
		"txhex":   res.TxHex,
		"fee":     res.Fee,
		"amount":  res.Amount,
		"sendmax": res.SendMax,
	})
}

func estimateFeeAction(ctx *cli.Context) error {
	amount, err := parseSysAmount(ctx)
	if err != nil {
		return err
	}

	manager, cleanup, err := unlockedManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	svc, err := newUTXOService(manager)
	if err != nil {
		return err
	}

	fee, err := svc.EstimateFee(ctx.Context, utxo.FeeRequest{
		To:      ctx.String(recipientFlag.Name),
		Amount:  amount,
		FeeRate: ctx.Uint64(feeRateFlag.Name),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, fee)
	return nil
}

func signPsbtAction(ctx *cli.Context) error {
	manager, cleanup, err := unlockedManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	svc, err := newUTXOService(manager)
	if err != nil {
		return err
	}

	res, err := svc.SignPSBT(ctx.Context, utxo.PsbtExchange{
		Psbt:   ctx.String("psbt"),
		Assets: ctx.String("assets"),
	}, ctx.Bool(broadcastFlag.Name))
	if err != nil {
		return err
	}
	if res.Txid != "" {
		fmt.Fprintln(ctx.App.Writer, res.Txid)
		return nil
	}
	return printJSON(ctx, res.Exchange)
}

package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pollum-io/sysweb3-sub000/internal/core/application/evm"
	"github.com/pollum-io/sysweb3-sub000/pkg/mathutil"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

var sendevm = cli.Command{
	Name:  "send",
	Usage: "send native coins from the active EVM account",
	Flags: []cli.Flag{
		&passwordFlag,
		&cli.StringFlag{
			Name:     "to",
			Usage:    "the recipient address",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "amount",
			Usage:    "the amount in ether units",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "gasprice",
			Usage: "a legacy gas price in gwei, dynamic fees are used if missing",
		},
	},
	Action: sendEVMAction,
}

var signmessage = cli.Command{
	Name:  "signmessage",
	Usage: "sign a message with the active EVM account",
	Flags: []cli.Flag{
		&passwordFlag,
		&cli.StringFlag{
			Name:  "kind",
			Usage: "eth_sign, personal_sign or eth_signTypedData[_v3|_v4]",
			Value: string(evm.PersonalSign),
		},
		&cli.StringFlag{
			Name:     "data",
			Usage:    "the message, hash or typed data json",
			Required: true,
		},
	},
	Action: signMessageAction,
}

func sendEVMAction(ctx *cli.Context) error {
	to := ctx.String("to")
	if !common.IsHexAddress(to) {
		return fmt.Errorf("invalid recipient address %s", to)
	}
	amount, err := decimal.NewFromString(ctx.String("amount"))
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	recipient := common.HexToAddress(to)
	params := evm.TxParams{
		To:    &recipient,
		Value: mathutil.ToWei(amount),
	}
	if s := ctx.String("gasprice"); s != "" {
		gwei, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("invalid gas price: %w", err)
		}
		params.GasPrice = mathutil.GweiToWei(gwei)
	}

	manager, cleanup, err := unlockedManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	svc, err := newEVMService(manager)
	if err != nil {
		return err
	}

	tx, err := svc.SendTransaction(ctx.Context, params)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, tx.Hash().Hex())
	return nil
}

func signMessageAction(ctx *cli.Context) error {
	manager, cleanup, err := unlockedManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	svc, err := newEVMService(manager)
	if err != nil {
		return err
	}
	account, err := manager.GetActiveAccount()
	if err != nil {
		return err
	}

	sig, err := svc.SignMessage(ctx.Context, evm.MessageRequest{
		Kind:    evm.MessageKind(ctx.String("kind")),
		Address: account.Address,
		Data:    ctx.String("data"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, sig)
	return nil
}

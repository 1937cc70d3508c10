package main

import (
	"fmt"

	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
	"github.com/urfave/cli/v2"
)

var initwallet = cli.Command{
	Name:  "init",
	Usage: "create the keyring vault from a new or existing mnemonic",
	Flags: []cli.Flag{
		&passwordFlag,
		&cli.StringFlag{
			Name:  "seed",
			Usage: "the mnemonic to restore, a new one is generated if missing",
		},
	},
	Action: initWalletAction,
}

func initWalletAction(ctx *cli.Context) error {
	password := ctx.String(passwordFlag.Name)
	if password == "" {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}
	seed := ctx.String("seed")
	generated := seed == ""
	if generated {
		mnemonic, err := wallet.NewMnemonic(wallet.NewMnemonicOpts{})
		if err != nil {
			return err
		}
		seed = mnemonic
	}

	manager, cleanup, err := newManager()
	if err != nil {
		return err
	}
	defer cleanup()

	account, err := manager.CreateOrRestoreVault(ctx.Context, seed, password)
	if err != nil {
		return err
	}

	if generated {
		fmt.Fprintln(ctx.App.Writer, "Write down the mnemonic of the new vault:")
		fmt.Fprintln(ctx.App.Writer, seed)
		fmt.Fprintln(ctx.App.Writer)
	}
	return printJSON(ctx, account)
}

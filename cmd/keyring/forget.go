package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var forget = cli.Command{
	Name:   "forget",
	Usage:  "wipe the vault and every account from this device",
	Flags:  []cli.Flag{&passwordFlag},
	Action: forgetAction,
}

func forgetAction(ctx *cli.Context) error {
	password := ctx.String(passwordFlag.Name)
	if password == "" {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}
	manager, cleanup, err := newManager()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := manager.ForgetWallet(ctx.Context, password); err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, "Keyring vault wiped")
	return nil
}

package main

import (
	"fmt"
	"strings"

	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/urfave/cli/v2"
)

var (
	accountIDFlag = cli.IntFlag{
		Name:  "id",
		Usage: "the account id",
	}
	accountTypeFlag = cli.StringFlag{
		Name:  "type",
		Usage: "the account type: HDAccount, Imported, Trezor or Ledger",
		Value: string(domain.HDAccount),
	}
	labelFlag = cli.StringFlag{
		Name:  "label",
		Usage: "the account label",
	}
)

var accounts = cli.Command{
	Name:   "accounts",
	Usage:  "list the vault accounts and the active one",
	Flags:  []cli.Flag{&passwordFlag},
	Action: accountsAction,
}

var addaccount = cli.Command{
	Name:   "addaccount",
	Usage:  "derive the next HD account and make it active",
	Flags:  []cli.Flag{&passwordFlag, &labelFlag},
	Action: addAccountAction,
}

var importaccount = cli.Command{
	Name:  "import",
	Usage: "import a private key of the active chain family",
	Flags: []cli.Flag{
		&passwordFlag,
		&labelFlag,
		&cli.StringFlag{
			Name:     "key",
			Usage:    "hex private key for EVM networks, account xprv for UTXO ones",
			Required: true,
		},
	},
	Action: importAccountAction,
}

var privatekey = cli.Command{
	Name:   "privatekey",
	Usage:  "reveal the private key of an account",
	Flags:  []cli.Flag{&passwordFlag, &accountIDFlag, &accountTypeFlag},
	Action: privateKeyAction,
}

var balance = cli.Command{
	Name:   "balance",
	Usage:  "refresh and print the balance of the active account",
	Flags:  []cli.Flag{&passwordFlag},
	Action: balanceAction,
}

func accountsAction(ctx *cli.Context) error {
	manager, cleanup, err := unlockedManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	active, err := manager.GetActiveAccount()
	if err != nil {
		return err
	}
	return printJSON(ctx, map[string]interface{}{
		"active":   active,
		"accounts": manager.GetAccounts(),
	})
}

func addAccountAction(ctx *cli.Context) error {
	manager, cleanup, err := unlockedManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	account, err := manager.AddNewAccount(ctx.Context, ctx.String(labelFlag.Name))
	if err != nil {
		return err
	}
	return printJSON(ctx, account)
}

func importAccountAction(ctx *cli.Context) error {
	manager, cleanup, err := unlockedManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	account, err := manager.ImportAccount(
		ctx.Context, ctx.String("key"), ctx.String(labelFlag.Name),
	)
	if err != nil {
		return err
	}
	return printJSON(ctx, account)
}

func privateKeyAction(ctx *cli.Context) error {
	accountType, err := parseAccountType(ctx.String(accountTypeFlag.Name))
	if err != nil {
		return err
	}
	manager, cleanup, err := unlockedManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	key, err := manager.GetPrivateKeyByAccountID(
		ctx.Int(accountIDFlag.Name), accountType, ctx.String(passwordFlag.Name),
	)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, key)
	return nil
}

func balanceAction(ctx *cli.Context) error {
	manager, cleanup, err := unlockedManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	account, err := manager.UpdateBalances(ctx.Context)
	if err != nil {
		return err
	}
	return printJSON(ctx, account.Balances)
}

func parseAccountType(s string) (domain.AccountType, error) {
	for _, t := range domain.AccountTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown account type %q", s)
}

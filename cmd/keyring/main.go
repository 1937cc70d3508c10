package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pollum-io/sysweb3-sub000/internal/config"
	"github.com/pollum-io/sysweb3-sub000/internal/core/application/evm"
	"github.com/pollum-io/sysweb3-sub000/internal/core/application/keyring"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/internal/infrastructure/evmrpc"
	"github.com/pollum-io/sysweb3-sub000/internal/infrastructure/explorer/blockbook"
	badgerdb "github.com/pollum-io/sysweb3-sub000/internal/infrastructure/storage/db/badger"
	"github.com/pollum-io/sysweb3-sub000/internal/infrastructure/storage/db/inmemory"
	"github.com/pollum-io/sysweb3-sub000/pkg/stats"
	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const statsFile = "keyring.prom"

var passwordFlag = cli.StringFlag{
	Name:    "password",
	Usage:   "the password of the keyring vault",
	EnvVars: []string{"KEYRING_PASSWORD"},
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fatal(err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()

	app.Version = "0.0.1"
	app.Name = "keyring"
	app.Usage = "Command line interface of the sysweb3 multi-chain keyring"
	app.Before = func(*cli.Context) error {
		if err := config.InitConfig(); err != nil {
			return err
		}
		log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))
		return nil
	}
	app.After = func(*cli.Context) error {
		if !config.GetBool(config.EnableStatsKey) {
			return nil
		}
		path := filepath.Join(config.GetDatadir(), config.StatsLocation, statsFile)
		if err := stats.DumpPrometheusDefaults(path); err != nil {
			log.WithError(err).Warn("failed to dump keyring stats")
		}
		return nil
	}
	app.Commands = append(
		app.Commands,
		&genseed,
		&initwallet,
		&accounts,
		&addaccount,
		&importaccount,
		&privatekey,
		&balance,
		&networks,
		&switchnetwork,
		&sendevm,
		&signmessage,
		&sendsys,
		&estimatefee,
		&signpsbt,
		&forget,
	)
	return app
}

// newManager opens the vault store and returns a manager wired to the
// configured remotes. The returned cleanup closes the store.
func newManager() (keyring.KeyringManager, func(), error) {
	var (
		store ports.VaultStore
		err   error
	)
	switch config.GetString(config.DBTypeKey) {
	case config.DBInMemory:
		store = inmemory.NewVaultStore()
	default:
		store, err = badgerdb.NewVaultStore(config.GetDbDir(), nil)
		if err != nil {
			return nil, nil, err
		}
	}

	cooldown := config.GetDuration(config.RPCThrottleCooldownKey)
	manager, err := keyring.NewKeyringManager(keyring.ManagerOpts{
		Store:  store,
		Cypher: wallet.NewCypher(config.GetInt(config.ScryptCostKey)),
		ExplorerFactory: blockbook.NewFactory(
			config.GetInt(config.ExplorerRateLimitKey), cooldown,
		),
		EVMDialer: evmrpc.NewDialer(
			config.GetInt(config.RPCThrottleRequestsKey), cooldown,
		),
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return manager, manager.Close, nil
}

// unlockedManager returns a manager unlocked with the password flag.
func unlockedManager(ctx *cli.Context) (keyring.KeyringManager, func(), error) {
	password := ctx.String(passwordFlag.Name)
	if password == "" {
		return nil, nil, &invalidUsageError{ctx, ctx.Command.Name}
	}
	manager, cleanup, err := newManager()
	if err != nil {
		return nil, nil, err
	}
	ok, err := manager.Unlock(ctx.Context, password)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if !ok {
		cleanup()
		return nil, nil, errors.New("wrong password")
	}
	return manager, cleanup, nil
}

func newEVMService(manager keyring.KeyringManager) (evm.Service, error) {
	return evm.NewService(evm.ServiceOpts{Sessions: manager})
}

func printJSON(ctx *cli.Context, v interface{}) error {
	buf, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		return fmt.Errorf("unable to encode response: %w", err)
	}
	fmt.Fprintln(ctx.App.Writer, string(buf))
	return nil
}

type invalidUsageError struct {
	ctx     *cli.Context
	command string
}

func (e *invalidUsageError) Error() string {
	return fmt.Sprintf("invalid usage of command %s", e.command)
}

func fatal(err error) {
	var e *invalidUsageError
	if errors.As(err, &e) {
		_ = cli.ShowCommandHelp(e.ctx, e.command)
	} else {
		_, _ = fmt.Fprintf(os.Stderr, "[keyring] %v\n", err)
	}
	os.Exit(1)
}

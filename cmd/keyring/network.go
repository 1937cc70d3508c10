package main

import (
	"fmt"
	"strings"

	"github.com/pollum-io/sysweb3-sub000/internal/config"
	"github.com/pollum-io/sysweb3-sub000/internal/core/application/keyring"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/urfave/cli/v2"
)

var familyFlag = cli.StringFlag{
	Name:  "family",
	Usage: "the chain family: syscoin or ethereum",
	Value: string(domain.ChainSyscoin),
}

var networks = cli.Command{
	Name:   "networks",
	Usage:  "list the known networks of a chain family and the active one",
	Flags:  []cli.Flag{&passwordFlag, &familyFlag},
	Action: networksAction,
}

var switchnetwork = cli.Command{
	Name:  "switchnetwork",
	Usage: "switch the active network, rolling back on failure",
	Flags: []cli.Flag{
		&passwordFlag,
		&familyFlag,
		&cli.Int64Flag{
			Name:  "chainid",
			Usage: "the chain id of the network, defaults to the configured one",
		},
		&cli.StringFlag{
			Name:  "url",
			Usage: "the rpc url, defaults to the configured or known one",
		},
	},
	Action: switchNetworkAction,
}

func networksAction(ctx *cli.Context) error {
	family, err := parseFamily(ctx.String(familyFlag.Name))
	if err != nil {
		return err
	}
	manager, cleanup, err := unlockedManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := manager.GetNetworks(family)
	if err != nil {
		return err
	}
	active, activeFamily := manager.GetNetwork()
	return printJSON(ctx, map[string]interface{}{
		"active":       active,
		"activeFamily": activeFamily,
		"networks":     list,
	})
}

func switchNetworkAction(ctx *cli.Context) error {
	family, err := parseFamily(ctx.String(familyFlag.Name))
	if err != nil {
		return err
	}
	manager, cleanup, err := unlockedManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	network, err := networkOf(
		manager, family, ctx.Int64("chainid"), ctx.String("url"),
	)
	if err != nil {
		return err
	}
	if err := manager.SetSignerNetwork(ctx.Context, network, family); err != nil {
		return err
	}
	account, err := manager.GetActiveAccount()
	if err != nil {
		return err
	}
	return printJSON(ctx, map[string]interface{}{
		"network": network,
		"account": account,
	})
}

// networkOf resolves the network of family with the given chain id among
// the known ones. The configured chain id and url of the family apply when
// the flags are not given.
func networkOf(
	manager keyring.KeyringManager, family domain.ChainFamily,
	chainID int64, url string,
) (domain.Network, error) {
	chainIDKey, urlKey := config.EVMChainIDKey, config.EVMRPCURLKey
	if family.IsUTXO() {
		chainIDKey, urlKey = config.UTXOChainIDKey, config.UTXORPCURLKey
	}
	if chainID == 0 {
		chainID = config.GetInt64(chainIDKey)
	}
	if url == "" {
		url = config.GetString(urlKey)
	}

	list, err := manager.GetNetworks(family)
	if err != nil {
		return domain.Network{}, err
	}
	for _, network := range list {
		if network.ChainID != chainID {
			continue
		}
		if url != "" {
			network.URL = url
		}
		return network, nil
	}
	return domain.Network{}, fmt.Errorf(
		"%w: chain id %d on %s", domain.ErrNetworkNotFound, chainID, family,
	)
}

func parseFamily(s string) (domain.ChainFamily, error) {
	family := domain.ChainFamily(strings.ToLower(s))
	if !family.IsValid() {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedChainFamily, s)
	}
	return family, nil
}

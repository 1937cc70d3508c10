package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"
)

const (
	// DatadirKey is the local data directory to store the encrypted vault
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// DBTypeKey is used to switch database type between those supported
	DBTypeKey = "DB_TYPE"
	// UTXORPCURLKey is the Blockbook endpoint of the UTXO network to start on
	UTXORPCURLKey = "UTXO_RPC_URL"
	// UTXOChainIDKey is the chain id of the UTXO network to start on
	UTXOChainIDKey = "UTXO_CHAIN_ID"
	// EVMRPCURLKey is the JSON-RPC endpoint of the EVM network to start on
	EVMRPCURLKey = "EVM_RPC_URL"
	// EVMChainIDKey is the chain id of the EVM network to start on
	EVMChainIDKey = "EVM_CHAIN_ID"
	// RPCThrottleRequestsKey is the number of requests admitted per cooldown
	// window once an RPC endpoint returned a server error
	RPCThrottleRequestsKey = "RPC_THROTTLE_REQUESTS"
	// RPCThrottleCooldownKey is the length of the RPC throttle window
	RPCThrottleCooldownKey = "RPC_THROTTLE_COOLDOWN"
	// ExplorerRateLimitKey is the number of requests per second made to the
	// Blockbook explorer
	ExplorerRateLimitKey = "EXPLORER_RATE_LIMIT"
	// ConfirmationPollIntervalKey is the interval between two confirmation checks
	// of a broadcasted transaction
	ConfirmationPollIntervalKey = "CONFIRMATION_POLL_INTERVAL"
	// ConfirmationMaxWaitKey bounds the wait for confirmations, 0 means unbounded
	ConfirmationMaxWaitKey = "CONFIRMATION_MAX_WAIT"
	// ScryptCostKey is the scrypt N parameter used to derive vault keys
	ScryptCostKey = "SCRYPT_COST"
	// EnableStatsKey enables dumping the keyring counters on exit
	EnableStatsKey = "ENABLE_STATS"

	DbLocation    = "db"
	StatsLocation = "stats"

	DBBadger   = "badger"
	DBInMemory = "inmemory"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("sysweb3-keyring", false)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("KEYRING")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(DBTypeKey, DBBadger)
	vip.SetDefault(RPCThrottleRequestsKey, 10)
	vip.SetDefault(RPCThrottleCooldownKey, 85*time.Second)
	vip.SetDefault(ExplorerRateLimitKey, 5)
	vip.SetDefault(ConfirmationPollIntervalKey, 16*time.Second)
	vip.SetDefault(ConfirmationMaxWaitKey, time.Duration(0))
	vip.SetDefault(ScryptCostKey, 1<<20)
	vip.SetDefault(EnableStatsKey, false)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetInt64(key string) int64 {
	return vip.GetInt64(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

// Set a value for the given key
func Set(key string, value interface{}) {
	vip.Set(key, value)
}

// IsSet returns whether the give key is set
func IsSet(key string) bool {
	return vip.IsSet(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetDbDir returns the directory of the vault db. It is empty for the
// in-memory store.
func GetDbDir() string {
	if GetString(DBTypeKey) == DBInMemory {
		return ""
	}
	return filepath.Join(GetDatadir(), DbLocation)
}

// Validate checks the current values, useful after a Set.
func Validate() error {
	return validate()
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	dbType := GetString(DBTypeKey)
	if dbType != DBBadger && dbType != DBInMemory {
		return fmt.Errorf(
			"db type must be either '%s' or '%s'", DBBadger, DBInMemory,
		)
	}

	for _, key := range []string{UTXORPCURLKey, EVMRPCURLKey} {
		if endpoint := GetString(key); endpoint != "" {
			u, err := url.Parse(endpoint)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("%s is not a valid url", key)
			}
		}
	}

	if GetInt(RPCThrottleRequestsKey) <= 0 {
		return fmt.Errorf("%s must be a positive number", RPCThrottleRequestsKey)
	}
	if GetDuration(RPCThrottleCooldownKey) <= 0 {
		return fmt.Errorf("%s must be a positive duration", RPCThrottleCooldownKey)
	}
	if GetInt(ExplorerRateLimitKey) <= 0 {
		return fmt.Errorf("%s must be a positive number", ExplorerRateLimitKey)
	}
	if GetDuration(ConfirmationPollIntervalKey) <= 0 {
		return fmt.Errorf(
			"%s must be a positive duration", ConfirmationPollIntervalKey,
		)
	}
	if GetDuration(ConfirmationMaxWaitKey) < 0 {
		return fmt.Errorf("%s must not be negative", ConfirmationMaxWaitKey)
	}
	if cost := GetInt(ScryptCostKey); cost <= 1 || cost&(cost-1) != 0 {
		return fmt.Errorf("%s must be a power of 2", ScryptCostKey)
	}

	return nil
}

func initDatadir() error {
	datadir := GetDatadir()
	if GetString(DBTypeKey) == DBBadger {
		if err := makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation)); err != nil {
			return err
		}
	}

	if GetBool(EnableStatsKey) {
		if err := makeDirectoryIfNotExists(filepath.Join(datadir, StatsLocation)); err != nil {
			return err
		}
	}
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

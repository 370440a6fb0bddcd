// Package utils contains the flags and setup helpers shared by the commands.
package utils

import (
	"github.com/urfave/cli/v2"

	"github.com/K-tang-mkv/bittensor-strat/internal/flags"
	"github.com/K-tang-mkv/bittensor-strat/internal/wallet"
)

var (
	// Wallet
	WalletNameFlag = &cli.StringFlag{
		Name:     "wallet.name",
		Usage:    "Wallet (coldkey) name",
		Value:    "default",
		EnvVars:  []string{"BT_WALLET_NAME"},
		Category: flags.WalletCategory,
	}
	WalletPathFlag = &cli.StringFlag{
		Name:     "wallet.path",
		Usage:    "Directory holding wallets",
		Value:    wallet.DefaultWalletPath,
		EnvVars:  []string{"BT_WALLET_PATH"},
		Category: flags.WalletCategory,
	}
	WalletHotkeyFlag = &cli.StringFlag{
		Name:     "wallet.hotkey",
		Usage:    "Hotkey name inside the wallet",
		Value:    "default",
		EnvVars:  []string{"BT_WALLET_HOTKEY"},
		Category: flags.WalletCategory,
	}
	WalletPasswordFlag = &cli.StringFlag{
		Name:     "wallet.password",
		Usage:    "Coldkey password",
		EnvVars:  []string{"BT_WALLET_PASSWORD"},
		Category: flags.WalletCategory,
	}
	ColdkeyAddressFlag = &cli.StringFlag{
		Name:     "coldkey-address",
		Usage:    "Read-only SS58 coldkey address used instead of wallet keyfiles",
		EnvVars:  []string{"BT_COLDKEY_ADDRESS"},
		Category: flags.WalletCategory,
	}

	// Chain
	RPCEndpointFlag = &cli.StringFlag{
		Name:     "rpc-endpoint",
		Usage:    "Subtensor gateway JSON-RPC HTTP endpoint",
		Value:    "http://127.0.0.1:9944",
		EnvVars:  []string{"SUBTENSOR_RPC_ENDPOINT"},
		Category: flags.ChainCategory,
	}
	WSEndpointFlag = &cli.StringFlag{
		Name:     "ws-endpoint",
		Usage:    "Subtensor node websocket endpoint for new heads (empty to disable)",
		EnvVars:  []string{"SUBTENSOR_WS_ENDPOINT"},
		Category: flags.ChainCategory,
	}
	NetworkFlag = &cli.StringFlag{
		Name:     "network",
		Usage:    "Network name (finney, test, local)",
		Value:    "finney",
		EnvVars:  []string{"BT_NETWORK"},
		Category: flags.ChainCategory,
	}
	RPCRateFlag = &cli.Float64Flag{
		Name:     "rpc-rate",
		Usage:    "Max gateway requests per second (0 disables limiting)",
		Value:    10,
		Category: flags.ChainCategory,
	}

	// Policy
	ConfigFileFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "TOML settings file",
		EnvVars:  []string{"STRAT_CONFIG"},
		Category: flags.PolicyCategory,
	}

	// Storage
	UseMemoryFlag = &cli.BoolFlag{
		Name:     "use-memory",
		Usage:    "Use in-memory storage instead of PostgreSQL/ClickHouse",
		Category: flags.StorageCategory,
	}
	PostgresDSNFlag = &cli.StringFlag{
		Name:     "postgres-dsn",
		Usage:    "PostgreSQL connection string (executions, monitor state)",
		EnvVars:  []string{"POSTGRES_DSN"},
		Category: flags.StorageCategory,
	}
	ClickhouseDSNFlag = &cli.StringFlag{
		Name:     "clickhouse-dsn",
		Usage:    "ClickHouse connection string (price points)",
		EnvVars:  []string{"CLICKHOUSE_DSN"},
		Category: flags.StorageCategory,
	}

	// Metrics
	MetricsAddrFlag = &cli.StringFlag{
		Name:     "metrics-addr",
		Usage:    "Prometheus metrics HTTP address (empty to disable)",
		Value:    "127.0.0.1:9090",
		EnvVars:  []string{"METRICS_ADDR"},
		Category: flags.MetricsCategory,
	}
)

// WalletFlags are accepted by every command.
var WalletFlags = []cli.Flag{
	WalletNameFlag,
	WalletPathFlag,
	WalletHotkeyFlag,
	WalletPasswordFlag,
	ColdkeyAddressFlag,
}

// ChainFlags are accepted by every command.
var ChainFlags = []cli.Flag{
	RPCEndpointFlag,
	WSEndpointFlag,
	NetworkFlag,
	RPCRateFlag,
	ConfigFileFlag,
}

// StorageFlags are accepted by the long-running commands.
var StorageFlags = []cli.Flag{
	UseMemoryFlag,
	PostgresDSNFlag,
	ClickhouseDSNFlag,
	MetricsAddrFlag,
}

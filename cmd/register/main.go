// Command register performs a burned registration into one subnet, bounded
// by a maximum fee.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/K-tang-mkv/bittensor-strat/cmd/utils"
	"github.com/K-tang-mkv/bittensor-strat/internal/config"
	"github.com/K-tang-mkv/bittensor-strat/internal/flags"
	"github.com/K-tang-mkv/bittensor-strat/internal/register"
)

// Git SHA1 commit hash of the release (set via linker flags)
var gitCommit = ""

var netuidFlag = &cli.UintFlag{
	Name:     "netuid",
	Usage:    "Subnet to register into",
	Required: true,
	Category: flags.PolicyCategory,
}

var app = flags.NewApp("register", gitCommit, "burned subnet registration")

func init() {
	app.Flags = append(app.Flags, utils.WalletFlags...)
	app.Flags = append(app.Flags, utils.ChainFlags...)
	app.Flags = append(app.Flags, utils.RegisterFlags...)
	app.Flags = append(app.Flags, utils.MetricsAddrFlag, netuidFlag)
	app.Action = run
}

func main() {
	if err := config.LoadEnv(utils.EnvFiles()...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger := utils.NewLogger("register")

	netuid := c.Uint(netuidFlag.Name)
	if netuid > 0xFFFF {
		return fmt.Errorf("--%s %d out of range", netuidFlag.Name, netuid)
	}

	file, err := utils.LoadConfig(c)
	if err != nil {
		return err
	}

	registrar, w, err := utils.MakeRegistrar(c, file.Register, utils.MakeChainClient(c), logger)
	if err != nil {
		return err
	}
	defer w.Lock()

	ctx, finish := utils.SignalContext(c.Context, logger)
	defer finish()

	utils.StartMetrics(ctx, c, logger)

	color.New(color.FgCyan, color.Bold).Printf("Registering %s on netuid %d (max cost %s)\n",
		w.String(), netuid, registrar.MaxCost())

	receipt, err := registrar.Register(ctx, uint16(netuid))
	switch {
	case err == nil:
		color.New(color.FgGreen, color.Bold).Printf("Registered on netuid %d in block %s (extrinsic %s)\n",
			netuid, receipt.BlockHash, receipt.ExtrinsicHash)
		return nil
	case errors.Is(err, register.ErrInsufficientBalance), errors.Is(err, register.ErrFeeTooHigh):
		color.New(color.FgRed, color.Bold).Printf("Registration aborted: %v\n", err)
		return err
	case utils.IsShutdown(err):
		logger.Println("Registration cancelled")
		return nil
	default:
		return err
	}
}

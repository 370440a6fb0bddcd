// Command balance prints the slippage-adjusted value of every stake position
// plus the free balance of a coldkey.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/K-tang-mkv/bittensor-strat/cmd/utils"
	"github.com/K-tang-mkv/bittensor-strat/internal/chain"
	"github.com/K-tang-mkv/bittensor-strat/internal/config"
	"github.com/K-tang-mkv/bittensor-strat/internal/flags"
	"github.com/K-tang-mkv/bittensor-strat/internal/report"
)

// Git SHA1 commit hash of the release (set via linker flags)
var gitCommit = ""

var csvFlag = &cli.StringFlag{
	Name:  "csv",
	Usage: "Also write the report as CSV to this file",
}

var app = flags.NewApp("balance", gitCommit, "aggregate balance report")

func init() {
	app.Flags = append(app.Flags, utils.WalletFlags...)
	app.Flags = append(app.Flags, utils.ChainFlags...)
	app.Flags = append(app.Flags, csvFlag)
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
	logger := utils.NewLogger("balance")

	w, err := utils.OpenWallet(c, false, false)
	if err != nil {
		return err
	}

	ctx, finish := utils.SignalContext(c.Context, logger)
	defer finish()

	snap, err := chain.FetchSnapshot(ctx, utils.MakeChainClient(c), nil, w.ColdkeyAddress())
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	p := report.Build(snap)

	color.New(color.FgCyan, color.Bold).Printf("Coldkey %s at block %d (%s)\n", p.Coldkey, p.BlockNumber, p.BlockHash)
	report.RenderTable(os.Stdout, p)
	color.New(color.FgGreen, color.Bold).Printf("Total TAO if fully unstaked now: %s\n", p.Total())

	if path := c.String(csvFlag.Name); path != "" {
		if err := os.WriteFile(path, []byte(report.RenderCSV(p)), 0o644); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		logger.Printf("Wrote %s", path)
	}
	return nil
}

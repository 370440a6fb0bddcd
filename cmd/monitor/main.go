// Command monitor watches for newly registered subnets, alerts by email and
// optionally registers the wallet hotkey into the newest one.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/K-tang-mkv/bittensor-strat/cmd/utils"
	"github.com/K-tang-mkv/bittensor-strat/internal/config"
	"github.com/K-tang-mkv/bittensor-strat/internal/flags"
	"github.com/K-tang-mkv/bittensor-strat/internal/monitor"
	"github.com/K-tang-mkv/bittensor-strat/internal/register"
)

// Git SHA1 commit hash of the release (set via linker flags)
var gitCommit = ""

var (
	checkIntervalFlag = &cli.DurationFlag{
		Name:     "check-interval",
		Usage:    "Time between subnet list checks",
		Value:    monitor.DefaultCheckInterval,
		Category: flags.PolicyCategory,
	}
	autoRegisterFlag = &cli.BoolFlag{
		Name:     "auto-register",
		Usage:    "Register the wallet hotkey into each newly detected subnet",
		Category: flags.PolicyCategory,
	}
)

var app = flags.NewApp("monitor", gitCommit, "new subnet detector")

func init() {
	app.Flags = append(app.Flags, utils.WalletFlags...)
	app.Flags = append(app.Flags, utils.ChainFlags...)
	app.Flags = append(app.Flags, utils.StorageFlags...)
	app.Flags = append(app.Flags, utils.AlertFlags...)
	app.Flags = append(app.Flags, utils.RegisterFlags...)
	app.Flags = append(app.Flags, checkIntervalFlag, autoRegisterFlag)
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
	logger := utils.NewLogger("monitor")

	file, err := utils.LoadConfig(c)
	if err != nil {
		return err
	}
	interval, err := file.Monitor.Interval(c.Duration(checkIntervalFlag.Name))
	if err != nil {
		return err
	}
	if c.IsSet(checkIntervalFlag.Name) {
		interval = c.Duration(checkIntervalFlag.Name)
	}
	network := c.String(utils.NetworkFlag.Name)
	if file.Monitor.Network != "" && !c.IsSet(utils.NetworkFlag.Name) {
		network = file.Monitor.Network
	}

	client := utils.MakeChainClient(c)

	var registrar *register.Registrar
	if c.Bool(autoRegisterFlag.Name) || file.Monitor.AutoRegister {
		r, w, err := utils.MakeRegistrar(c, file.Register, client, logger)
		if err != nil {
			return err
		}
		defer w.Lock()
		registrar = r
	}

	notifier := utils.MakeNotifier(c, file.SMTP)
	if notifier == nil {
		logger.Println("No sender or recipients configured, email alerts disabled")
	}

	ctx, finish := utils.SignalContext(c.Context, logger)
	defer finish()

	stores, err := utils.OpenStores(ctx, c, logger)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer stores.Close()

	utils.StartMetrics(ctx, c, logger)

	m, err := monitor.New(monitor.Options{
		Client:        client,
		Network:       network,
		Notifier:      notifier,
		Registrar:     registrar,
		Store:         stores.MonitorState,
		Heads:         utils.MakeHeadWatcher(c, logger),
		CheckInterval: interval,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	color.New(color.FgCyan, color.Bold).Printf("Watching %s for new subnets every %s\n", network, interval.Round(time.Second))
	if registrar != nil {
		color.New(color.FgYellow).Printf("Auto-register enabled, max cost %s\n", registrar.MaxCost())
	}

	err = m.Run(ctx)
	if !utils.IsShutdown(err) {
		color.New(color.FgRed, color.Bold).Printf("Monitor stopped: %v\n", err)
		return err
	}
	logger.Println("Shutdown complete")
	return nil
}

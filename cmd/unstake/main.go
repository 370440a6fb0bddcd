// Command unstake runs the perpetual slippage-bounded unstake loop.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/K-tang-mkv/bittensor-strat/cmd/utils"
	"github.com/K-tang-mkv/bittensor-strat/internal/chain"
	"github.com/K-tang-mkv/bittensor-strat/internal/config"
	"github.com/K-tang-mkv/bittensor-strat/internal/decision"
	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
	"github.com/K-tang-mkv/bittensor-strat/internal/flags"
	"github.com/K-tang-mkv/bittensor-strat/internal/unstake"
)

// Git SHA1 commit hash of the release (set via linker flags)
var gitCommit = ""

var (
	targetFlag = &cli.StringSliceFlag{
		Name:     "target",
		Usage:    "Managed position as hotkey_ss58:netuid (repeatable)",
		Category: flags.PolicyCategory,
	}
	netuidFlag = &cli.IntFlag{
		Name:     "netuid",
		Usage:    "Manage the wallet hotkey's position on this subnet",
		Value:    -1,
		Category: flags.PolicyCategory,
	}
	modeFlag = &cli.StringFlag{
		Name:     "mode",
		Usage:    `Unstake extrinsic: "limit" (remove_stake_limit) or "all" (unstake_all_alpha)`,
		Value:    string(domain.ModeLimit),
		Category: flags.PolicyCategory,
	}
	thresholdFlag = &cli.StringFlag{
		Name:     "threshold",
		Usage:    "Minimum slippage-adjusted TAO a position must return before it is sold",
		Value:    "0.1",
		EnvVars:  []string{"UNSTAKE_THRESHOLD"},
		Category: flags.PolicyCategory,
	}
	allowPartialFlag = &cli.BoolFlag{
		Name:     "allow-partial",
		Usage:    "Let the chain fill the unstake partially up to the price limit",
		Value:    true,
		Category: flags.PolicyCategory,
	}
	toleranceFlag = &cli.StringFlag{
		Name:     "tolerance-multiplier",
		Usage:    "Multiplier applied to observed slippage when deriving the price limit",
		Value:    decision.DefaultToleranceMultiplier.String(),
		Category: flags.PolicyCategory,
	}
	shortWaitFlag = &cli.DurationFlag{
		Name:     "short-wait",
		Usage:    "Wait after a below-threshold cycle or a fetch error",
		Value:    unstake.DefaultShortWait,
		Category: flags.PolicyCategory,
	}
	longWaitFlag = &cli.DurationFlag{
		Name:     "long-wait",
		Usage:    "Wait when the coldkey holds no stake at all",
		Value:    unstake.DefaultLongWait,
		Category: flags.PolicyCategory,
	}
	failureBackoffFlag = &cli.DurationFlag{
		Name:     "failure-backoff",
		Usage:    "Wait after a failed submission",
		Value:    unstake.DefaultFailureBackoff,
		Category: flags.PolicyCategory,
	}
	maxExecutionsFlag = &cli.IntFlag{
		Name:     "max-executions",
		Usage:    "Stop after this many successful unstakes (0 = run forever)",
		Category: flags.PolicyCategory,
	}
)

var app = flags.NewApp("unstake", gitCommit, "slippage-bounded unstake loop")

func init() {
	app.Flags = append(app.Flags, utils.WalletFlags...)
	app.Flags = append(app.Flags, utils.ChainFlags...)
	app.Flags = append(app.Flags, utils.StorageFlags...)
	app.Flags = append(app.Flags,
		targetFlag,
		netuidFlag,
		modeFlag,
		thresholdFlag,
		allowPartialFlag,
		toleranceFlag,
		shortWaitFlag,
		longWaitFlag,
		failureBackoffFlag,
		maxExecutionsFlag,
	)
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
	logger := utils.NewLogger("unstake")

	if err := chain.CheckSigningEndpoint(c.String(utils.RPCEndpointFlag.Name)); err != nil {
		return err
	}
	w, err := utils.OpenWallet(c, c.Int(netuidFlag.Name) >= 0, true)
	if err != nil {
		return err
	}
	defer w.Lock()

	policy, err := buildPolicy(c, w.HotkeyAddress)
	if err != nil {
		return err
	}
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}

	ctx, finish := utils.SignalContext(c.Context, logger)
	defer finish()

	stores, err := utils.OpenStores(ctx, c, logger)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer stores.Close()

	utils.StartMetrics(ctx, c, logger)

	loop, err := unstake.NewLoop(unstake.Options{
		Client:     utils.MakeChainClient(c),
		Signer:     w,
		Policy:     policy,
		Executions: stores.Executions,
		Prices:     stores.Prices,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	color.New(color.FgCyan, color.Bold).Printf("Unstaking for %s in %s mode above %s\n",
		w.ColdkeyAddress(), policy.Mode, policy.Threshold)
	for _, t := range policy.Targets {
		fmt.Printf("  target %s on netuid %d\n", t.Hotkey, t.Netuid)
	}

	err = loop.Run(ctx)
	color.New(color.FgGreen).Printf("Executed %d unstake(s)\n", loop.Executed())
	if !utils.IsShutdown(err) {
		return err
	}
	logger.Println("Shutdown complete")
	return nil
}

// buildPolicy layers defaults, the settings file and explicitly set flags.
func buildPolicy(c *cli.Context, hotkey func() (string, error)) (unstake.Policy, error) {
	file, err := utils.LoadConfig(c)
	if err != nil {
		return unstake.Policy{}, err
	}
	policy, err := file.Unstake.Policy(unstake.DefaultPolicy(0))
	if err != nil {
		return policy, err
	}
	if file.Unstake.Threshold == "" || c.IsSet(thresholdFlag.Name) {
		th, err := domain.ParseTao(c.String(thresholdFlag.Name))
		if err != nil {
			return policy, fmt.Errorf("--%s: %w", thresholdFlag.Name, err)
		}
		policy.Threshold = th
	}
	if c.IsSet(modeFlag.Name) {
		policy.Mode = domain.UnstakeMode(c.String(modeFlag.Name))
	}
	if c.IsSet(allowPartialFlag.Name) {
		policy.AllowPartial = c.Bool(allowPartialFlag.Name)
	}
	if c.IsSet(toleranceFlag.Name) {
		m, err := decimal.NewFromString(c.String(toleranceFlag.Name))
		if err != nil {
			return policy, fmt.Errorf("--%s: %w", toleranceFlag.Name, err)
		}
		policy.ToleranceMultiplier = m
	}
	if c.IsSet(shortWaitFlag.Name) {
		policy.ShortWait = c.Duration(shortWaitFlag.Name)
	}
	if c.IsSet(longWaitFlag.Name) {
		policy.LongWait = c.Duration(longWaitFlag.Name)
	}
	if c.IsSet(failureBackoffFlag.Name) {
		policy.FailureBackoff = c.Duration(failureBackoffFlag.Name)
	}
	if c.IsSet(maxExecutionsFlag.Name) {
		policy.MaxExecutions = c.Int(maxExecutionsFlag.Name)
	}

	targets, err := config.ParseTargets(c.StringSlice(targetFlag.Name))
	if err != nil {
		return policy, err
	}
	if netuid := c.Int(netuidFlag.Name); netuid >= 0 {
		if netuid > 0xFFFF {
			return policy, fmt.Errorf("--%s %d out of range", netuidFlag.Name, netuid)
		}
		addr, err := hotkey()
		if err != nil {
			return policy, fmt.Errorf("--%s needs a wallet hotkey: %w", netuidFlag.Name, err)
		}
		targets = append(targets, decision.Target{Hotkey: addr, Netuid: uint16(netuid)})
	}
	if len(targets) > 0 {
		policy.Targets = targets
	}
	return policy, nil
}

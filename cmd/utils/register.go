package utils

import (
	"fmt"
	"log"

	"github.com/urfave/cli/v2"

	"github.com/K-tang-mkv/bittensor-strat/internal/chain"
	"github.com/K-tang-mkv/bittensor-strat/internal/config"
	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
	"github.com/K-tang-mkv/bittensor-strat/internal/flags"
	"github.com/K-tang-mkv/bittensor-strat/internal/register"
	"github.com/K-tang-mkv/bittensor-strat/internal/wallet"
)

var (
	MaxCostFlag = &cli.StringFlag{
		Name:     "max-cost",
		Usage:    "Highest registration fee in TAO",
		Value:    register.DefaultMaxCost.Decimal().String(),
		EnvVars:  []string{"REGISTER_MAX_COST"},
		Category: flags.PolicyCategory,
	}
	RetryIntervalFlag = &cli.DurationFlag{
		Name:     "retry-interval",
		Usage:    "Wait between registration attempts",
		Value:    register.DefaultRetryInterval,
		Category: flags.PolicyCategory,
	}
)

// RegisterFlags configure burned registration.
var RegisterFlags = []cli.Flag{MaxCostFlag, RetryIntervalFlag}

// MakeRegistrar unlocks the wallet and builds a registrar for its hotkey.
// Flags override the settings file. The caller must Lock the returned wallet.
func MakeRegistrar(c *cli.Context, file config.RegisterSection, client chain.Client, logger *log.Logger) (*register.Registrar, *wallet.Wallet, error) {
	maxCost, err := file.Cost(register.DefaultMaxCost)
	if err != nil {
		return nil, nil, err
	}
	if c.IsSet(MaxCostFlag.Name) {
		if maxCost, err = domain.ParseTao(c.String(MaxCostFlag.Name)); err != nil {
			return nil, nil, fmt.Errorf("--%s: %w", MaxCostFlag.Name, err)
		}
	}
	retry, err := file.Retry(c.Duration(RetryIntervalFlag.Name))
	if err != nil {
		return nil, nil, err
	}
	if c.IsSet(RetryIntervalFlag.Name) {
		retry = c.Duration(RetryIntervalFlag.Name)
	}

	if err := chain.CheckSigningEndpoint(c.String(RPCEndpointFlag.Name)); err != nil {
		return nil, nil, err
	}
	w, err := OpenWallet(c, true, true)
	if err != nil {
		return nil, nil, err
	}
	hotkey, err := w.HotkeyAddress()
	if err != nil {
		w.Lock()
		return nil, nil, err
	}

	r, err := register.NewRegistrar(register.Options{
		Client:        client,
		Signer:        w,
		Hotkey:        hotkey,
		MaxCost:       maxCost,
		RetryInterval: retry,
		Logger:        logger,
	})
	if err != nil {
		w.Lock()
		return nil, nil, err
	}
	return r, w, nil
}

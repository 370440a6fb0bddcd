package utils

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/K-tang-mkv/bittensor-strat/internal/chain"
	"github.com/K-tang-mkv/bittensor-strat/internal/config"
	"github.com/K-tang-mkv/bittensor-strat/internal/observability"
	"github.com/K-tang-mkv/bittensor-strat/internal/wallet"
)

// EnvFiles lists the .env files loaded before flags are parsed.
func EnvFiles() []string {
	return []string{os.Getenv("STRAT_ENV_FILE"), ".env"}
}

// NewLogger returns the per-command logger.
func NewLogger(tool string) *log.Logger {
	return log.New(os.Stdout, "["+tool+"] ", log.LstdFlags|log.Lshortfile)
}

// SignalContext returns a context cancelled on SIGINT/SIGTERM. The returned
// finish func must be called once the command has wound down; if it is not
// called within 30s, or a second signal arrives, the process exits.
func SignalContext(parent context.Context, logger *log.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal main goroutine completion
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
			cancel()
		case <-done:
			return
		}

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		close(done)
		cancel()
	}
}

// IsShutdown reports whether err only reflects a requested shutdown.
func IsShutdown(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// LoadConfig reads the --config file, if any.
func LoadConfig(c *cli.Context) (*config.File, error) {
	return config.Load(c.String(ConfigFileFlag.Name))
}

// MakeChainClient creates the gateway client from flags.
func MakeChainClient(c *cli.Context) *chain.HTTPClient {
	return chain.NewHTTPClient(
		c.String(RPCEndpointFlag.Name),
		chain.WithRateLimit(c.Float64(RPCRateFlag.Name), 5),
	)
}

// MakeHeadWatcher creates a new-heads watcher, or nil without --ws-endpoint.
func MakeHeadWatcher(c *cli.Context, logger *log.Logger) *chain.HeadWatcher {
	endpoint := c.String(WSEndpointFlag.Name)
	if endpoint == "" {
		return nil
	}
	return chain.NewHeadWatcher(endpoint, nil, logger)
}

// OpenWallet loads the configured wallet. With unlock set the coldkey is
// decrypted with --wallet.password; read-only --coldkey-address wallets
// cannot be unlocked.
func OpenWallet(c *cli.Context, withHotkey, unlock bool) (*wallet.Wallet, error) {
	var provider wallet.Provider = wallet.NewKeyfileProvider()
	if addr := c.String(ColdkeyAddressFlag.Name); addr != "" {
		if unlock {
			return nil, fmt.Errorf("--%s is read-only and cannot sign", ColdkeyAddressFlag.Name)
		}
		provider = &wallet.StaticProvider{ColdkeyAddress: addr}
	}

	hotkey := ""
	if withHotkey {
		hotkey = c.String(WalletHotkeyFlag.Name)
	}

	w, err := provider.Load(c.String(WalletNameFlag.Name), c.String(WalletPathFlag.Name), hotkey)
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	if !unlock {
		return w, nil
	}

	password := c.String(WalletPasswordFlag.Name)
	if password == "" {
		return nil, fmt.Errorf("coldkey password required (--%s or %s)", WalletPasswordFlag.Name, WalletPasswordFlag.EnvVars[0])
	}
	if err := provider.Unlock(w, password); err != nil {
		return nil, fmt.Errorf("unlock wallet %s: %w", w.Name, err)
	}
	return w, nil
}

// StartMetrics serves /metrics and /health until ctx is done.
func StartMetrics(ctx context.Context, c *cli.Context, logger *log.Logger) {
	addr := c.String(MetricsAddrFlag.Name)
	if addr == "" {
		return
	}
	go observability.Serve(ctx, addr, logger)
}

// Package register performs burned (recycle) registration into a subnet.
package register

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/K-tang-mkv/bittensor-strat/internal/chain"
	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
	"github.com/K-tang-mkv/bittensor-strat/internal/observability"
)

// Fatal registration errors. Register returns them without retrying.
var (
	ErrInsufficientBalance = errors.New("insufficient balance for registration")
	ErrFeeTooHigh          = errors.New("registration fee exceeds max cost")
)

// Defaults.
var (
	DefaultMaxCost       = domain.MustParseTao("0.1")
	DefaultRetryInterval = 12 * time.Second
)

// Registrar registers a hotkey by recycling TAO.
type Registrar struct {
	client        chain.Client
	signer        chain.Signer
	hotkey        string
	maxCost       domain.Balance
	retryInterval time.Duration
	clock         clock.Clock
	logger        *log.Logger
}

// Options contains configuration for creating a Registrar.
type Options struct {
	Client chain.Client
	Signer chain.Signer
	Hotkey string // SS58 address of the hotkey to register

	MaxCost       domain.Balance // Default: 0.1 TAO
	RetryInterval time.Duration  // Default: one block
	Clock         clock.Clock
	Logger        *log.Logger
}

// NewRegistrar creates a new Registrar.
func NewRegistrar(opts Options) (*Registrar, error) {
	if opts.Client == nil || opts.Signer == nil {
		return nil, errors.New("registrar requires a chain client and a signer")
	}
	if opts.Hotkey == "" {
		return nil, errors.New("registrar requires a hotkey")
	}

	r := &Registrar{
		client:        opts.Client,
		signer:        opts.Signer,
		hotkey:        opts.Hotkey,
		maxCost:       opts.MaxCost,
		retryInterval: opts.RetryInterval,
		clock:         opts.Clock,
		logger:        opts.Logger,
	}
	if r.maxCost == 0 {
		r.maxCost = DefaultMaxCost
	}
	if r.retryInterval <= 0 {
		r.retryInterval = DefaultRetryInterval
	}
	if r.clock == nil {
		r.clock = clock.New()
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	return r, nil
}

// MaxCost returns the highest fee Register will pay.
func (r *Registrar) MaxCost() domain.Balance {
	return r.maxCost
}

// Register loops until the hotkey is registered on netuid.
//
// Each attempt re-reads the burn and the free balance. A balance below the
// burn or a burn above MaxCost ends the loop with a fatal error; anything
// else is retried after RetryInterval until ctx is done.
func (r *Registrar) Register(ctx context.Context, netuid uint16) (*chain.Receipt, error) {
	coldkey := r.signer.ColdkeyAddress()

	for attempt := 1; ; attempt++ {
		receipt, err := r.attempt(ctx, coldkey, netuid)
		if err == nil {
			observability.RecordRegistration("success")
			r.logger.Printf("Registered %s on netuid %d in %s", r.hotkey, netuid, receipt.BlockHash)
			return receipt, nil
		}

		switch {
		case errors.Is(err, ErrInsufficientBalance):
			observability.RecordRegistration("insufficient_balance")
			return nil, err
		case errors.Is(err, ErrFeeTooHigh):
			observability.RecordRegistration("fee_too_high")
			return nil, err
		case errors.Is(err, chain.ErrWalletLocked):
			observability.RecordRegistration("locked")
			return nil, err
		}

		observability.RecordRegistration("retry")
		r.logger.Printf("Registration attempt %d on netuid %d failed, retrying in %s: %v",
			attempt, netuid, r.retryInterval, err)

		timer := r.clock.Timer(r.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *Registrar) attempt(ctx context.Context, coldkey string, netuid uint16) (*chain.Receipt, error) {
	burn, err := r.client.Burn(ctx, netuid, "")
	if err != nil {
		return nil, fmt.Errorf("read burn: %w", err)
	}
	balance, err := r.client.Balance(ctx, coldkey, "")
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}

	r.logger.Printf("Current registration fee on netuid %d: %s (balance %s)", netuid, burn, balance)

	if balance < burn {
		return nil, fmt.Errorf("%w: balance %s, recycle %s", ErrInsufficientBalance, balance, burn)
	}
	if burn > r.maxCost {
		return nil, fmt.Errorf("%w: recycle %s, max %s", ErrFeeTooHigh, burn, r.maxCost)
	}

	return r.client.SubmitBurnedRegister(ctx, r.signer, r.hotkey, netuid)
}

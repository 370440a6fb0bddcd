package chain

import (
	"context"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
)

// Client defines the Subtensor gateway interface.
// Read methods accept an optional block hash; an empty hash reads at the best block.
type Client interface {
	// Head returns the current best block.
	Head(ctx context.Context) (Head, error)

	// AllSubnets returns dynamic info for every registered subnet.
	AllSubnets(ctx context.Context, blockHash string) ([]domain.SubnetInfo, error)

	// StakeForColdkey returns every stake position owned by coldkey.
	StakeForColdkey(ctx context.Context, coldkey, blockHash string) ([]domain.StakeRecord, error)

	// Balance returns the free balance of an account.
	Balance(ctx context.Context, address, blockHash string) (domain.Balance, error)

	// Burn returns the current recycle cost for registering into netuid.
	Burn(ctx context.Context, netuid uint16, blockHash string) (domain.Balance, error)

	// SubmitBoundedUnstake submits remove_stake_limit and waits for inclusion.
	SubmitBoundedUnstake(ctx context.Context, signer Signer, req domain.UnstakeRequest) (*Receipt, error)

	// SubmitUnstakeAll submits unstake_all_alpha for hotkey and waits for inclusion.
	SubmitUnstakeAll(ctx context.Context, signer Signer, hotkey string) (*Receipt, error)

	// SubmitBurnedRegister submits burned_register into netuid and waits for inclusion.
	SubmitBurnedRegister(ctx context.Context, signer Signer, hotkey string, netuid uint16) (*Receipt, error)
}

// Signer is an unlocked coldkey able to authorize extrinsics through the gateway.
type Signer interface {
	ColdkeyAddress() string
	Unlocked() bool
	// SecretSeed returns the hex seed handed to the gateway keyring.
	SecretSeed() string
}

// Head identifies a block.
type Head struct {
	Hash       string
	ParentHash string
	Number     uint64
}

// Receipt is returned for an included extrinsic.
type Receipt struct {
	ExtrinsicHash string
	BlockHash     string
}

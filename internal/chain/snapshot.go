package chain

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
)

// FetchSnapshot reads subnets, stakes and the free balance of coldkey at a
// single block hash. The three reads run concurrently and are joined before
// returning, so price and stake always describe the same block. FetchedAt is
// read from clk; nil means the wall clock.
func FetchSnapshot(ctx context.Context, c Client, clk clock.Clock, coldkey string) (*domain.Snapshot, error) {
	if clk == nil {
		clk = clock.New()
	}

	head, err := c.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch head: %w", err)
	}

	var (
		subnets []domain.SubnetInfo
		stakes  []domain.StakeRecord
		balance domain.Balance
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		subnets, err = c.AllSubnets(gctx, head.Hash)
		if err != nil {
			return fmt.Errorf("fetch subnets: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		stakes, err = c.StakeForColdkey(gctx, coldkey, head.Hash)
		if err != nil {
			return fmt.Errorf("fetch stakes: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		balance, err = c.Balance(gctx, coldkey, head.Hash)
		if err != nil {
			return fmt.Errorf("fetch balance: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &domain.Snapshot{
		BlockHash:   head.Hash,
		BlockNumber: head.Number,
		Coldkey:     coldkey,
		Subnets:     make(map[uint16]domain.SubnetInfo, len(subnets)),
		Stakes:      make(map[domain.StakeKey]domain.StakeRecord, len(stakes)),
		Balance:     balance,
		FetchedAt:   clk.Now().UnixMilli(),
	}
	for _, s := range subnets {
		snap.Subnets[s.Netuid] = s
	}
	for _, s := range stakes {
		// Duplicate positions are summed.
		key := s.Key()
		if prev, ok := snap.Stakes[key]; ok {
			s.Stake = s.Stake.Add(prev.Stake)
		}
		snap.Stakes[key] = s
	}

	return snap, nil
}

// PositionAt reads the free balance and one stake position at the current head.
// Used to observe the effect of a submitted extrinsic.
func PositionAt(ctx context.Context, c Client, coldkey, hotkey string, netuid uint16) (domain.Balance, domain.Balance, error) {
	head, err := c.Head(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch head: %w", err)
	}

	var (
		balance domain.Balance
		stake   domain.Balance
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		balance, err = c.Balance(gctx, coldkey, head.Hash)
		return err
	})
	g.Go(func() error {
		stakes, err := c.StakeForColdkey(gctx, coldkey, head.Hash)
		if err != nil {
			return err
		}
		for _, s := range stakes {
			if s.Hotkey == hotkey && s.Netuid == netuid {
				stake = stake.Add(s.Stake)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	return balance, stake, nil
}

package chain_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/K-tang-mkv/bittensor-strat/internal/chain"
	"github.com/K-tang-mkv/bittensor-strat/internal/chain/stub"
	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
)

const coldkey = "5ColdkeyTest"

func TestFetchSnapshot(t *testing.T) {
	c := stub.NewClient()
	c.AddSubnet(domain.SubnetInfo{Netuid: 0, Price: decimal.NewFromInt(1)})
	c.AddSubnet(domain.SubnetInfo{Netuid: 5, IsDynamic: true, Price: decimal.RequireFromString("0.5")})
	c.SetStake(domain.StakeRecord{Hotkey: "5Hot", Coldkey: coldkey, Netuid: 5, Stake: domain.MustParseTao("3")})
	c.SetBalance(coldkey, domain.MustParseTao("1.5"))

	mock := clock.NewMock()
	mock.Set(time.UnixMilli(1_700_000_000_000))

	snap, err := chain.FetchSnapshot(context.Background(), c, mock, coldkey)
	require.NoError(t, err)

	assert.NotEmpty(t, snap.BlockHash)
	assert.Equal(t, coldkey, snap.Coldkey)
	assert.Len(t, snap.Subnets, 2)
	assert.Equal(t, domain.MustParseTao("1.5"), snap.Balance)

	stake, ok := snap.Stake("5Hot", 5)
	require.True(t, ok)
	assert.Equal(t, domain.MustParseTao("3"), stake.Stake)
	assert.True(t, snap.HasAnyStake())

	assert.Equal(t, int64(1_700_000_000_000), snap.FetchedAt)
	assert.Equal(t, 1, c.CallCount("Head"))
}

func TestFetchSnapshot_ReadError(t *testing.T) {
	c := stub.NewClient()
	c.ReadErrs = []error{errors.New("connection reset")}

	_, err := chain.FetchSnapshot(context.Background(), c, nil, coldkey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch subnets")

	// Next read succeeds.
	_, err = chain.FetchSnapshot(context.Background(), c, nil, coldkey)
	assert.NoError(t, err)
}

func TestPositionAt(t *testing.T) {
	c := stub.NewClient()
	c.SetStake(domain.StakeRecord{Hotkey: "5Hot", Coldkey: coldkey, Netuid: 2, Stake: 100})
	c.SetStake(domain.StakeRecord{Hotkey: "5Hot", Coldkey: coldkey, Netuid: 3, Stake: 900})
	c.SetBalance(coldkey, 7)

	balance, stake, err := chain.PositionAt(context.Background(), c, coldkey, "5Hot", 2)
	require.NoError(t, err)
	assert.Equal(t, domain.Balance(7), balance)
	assert.Equal(t, domain.Balance(100), stake)
}

func TestStub_SubmitRequiresUnlockedSigner(t *testing.T) {
	c := stub.NewClient()
	_, err := c.SubmitUnstakeAll(context.Background(), &stub.Signer{Address: coldkey, Locked: true}, "5Hot")

	assert.ErrorIs(t, err, chain.ErrWalletLocked)
	assert.Equal(t, chain.KindSubmissionFailed, chain.KindOf(err))
}

func TestIsToleranceExceeded(t *testing.T) {
	err := &chain.Error{Kind: chain.KindToleranceExceeded, Op: "submit", Code: chain.CustomErrSlippageTooHigh}
	wrapped := errors.Join(errors.New("context"), err)

	assert.True(t, chain.IsToleranceExceeded(wrapped))
	assert.False(t, chain.IsToleranceExceeded(errors.New("Custom error: 8")))
	assert.Equal(t, "submit: price tolerance exceeded", err.Error())
}

package register

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/K-tang-mkv/bittensor-strat/internal/chain"
	"github.com/K-tang-mkv/bittensor-strat/internal/chain/stub"
	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
)

const coldkey = "5Cold"

func setup(t *testing.T, burn, balance string) (*stub.Client, *clock.Mock, *Registrar) {
	t.Helper()

	c := stub.NewClient()
	c.AddSubnet(domain.SubnetInfo{Netuid: 12, IsDynamic: true, Burn: domain.MustParseTao(burn)})
	c.SetBalance(coldkey, domain.MustParseTao(balance))

	mock := clock.NewMock()
	r, err := NewRegistrar(Options{
		Client:        c,
		Signer:        &stub.Signer{Address: coldkey},
		Hotkey:        "5Hot",
		MaxCost:       domain.MustParseTao("1.1"),
		RetryInterval: 12 * time.Second,
		Clock:         mock,
		Logger:        log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	return c, mock, r
}

func TestRegister_Success(t *testing.T) {
	c, _, r := setup(t, "0.5", "2")

	receipt, err := r.Register(context.Background(), 12)
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.BlockHash)
	assert.Equal(t, []uint16{12}, c.Registrations)
	assert.Equal(t, domain.MustParseTao("1.5"), c.Balances[coldkey])
}

func TestRegister_InsufficientBalanceIsFatal(t *testing.T) {
	c, _, r := setup(t, "0.5", "0.4")

	_, err := r.Register(context.Background(), 12)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Zero(t, c.CallCount("SubmitBurnedRegister"))
}

func TestRegister_FeeTooHighIsFatal(t *testing.T) {
	c, _, r := setup(t, "1.2", "10")

	_, err := r.Register(context.Background(), 12)
	assert.ErrorIs(t, err, ErrFeeTooHigh)
	assert.Zero(t, c.CallCount("SubmitBurnedRegister"))
}

func TestRegister_FeeEqualToMaxCostIsAllowed(t *testing.T) {
	_, _, r := setup(t, "1.1", "10")

	_, err := r.Register(context.Background(), 12)
	assert.NoError(t, err)
}

func TestRegister_RetriesFailedSubmission(t *testing.T) {
	c, mock, r := setup(t, "0.5", "2")
	c.SubmitErrs = []error{&chain.Error{Kind: chain.KindSubmissionFailed, Op: "subtensor_submitBurnedRegister", Err: errors.New("TooManyRegistrationsThisBlock")}}

	done := make(chan error, 1)
	go func() {
		_, err := r.Register(context.Background(), 12)
		done <- err
	}()

	var regErr error
	require.Eventually(t, func() bool {
		mock.Add(12 * time.Second)
		select {
		case regErr = <-done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, regErr)

	assert.Equal(t, 2, c.CallCount("SubmitBurnedRegister"))
	assert.Equal(t, []uint16{12}, c.Registrations)
}

func TestRegister_StopsOnCancel(t *testing.T) {
	c, _, r := setup(t, "0.5", "2")
	c.SubmitErrs = []error{errors.New("pool full")}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Register(ctx, 12)
		done <- err
	}()

	require.Eventually(t, func() bool { return c.CallCount("SubmitBurnedRegister") == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("register did not stop")
	}
}

func TestRegister_LockedWalletIsFatal(t *testing.T) {
	c := stub.NewClient()
	c.AddSubnet(domain.SubnetInfo{Netuid: 1, Burn: domain.MustParseTao("0.1")})
	c.SetBalance(coldkey, domain.MustParseTao("1"))

	r, err := NewRegistrar(Options{
		Client: c,
		Signer: &stub.Signer{Address: coldkey, Locked: true},
		Hotkey: "5Hot",
		Logger: log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxCost, r.MaxCost())

	_, err = r.Register(context.Background(), 1)
	assert.ErrorIs(t, err, chain.ErrWalletLocked)
}

func TestNewRegistrar_Validation(t *testing.T) {
	_, err := NewRegistrar(Options{})
	assert.Error(t, err)

	_, err = NewRegistrar(Options{Client: stub.NewClient(), Signer: &stub.Signer{}})
	assert.Error(t, err)
}

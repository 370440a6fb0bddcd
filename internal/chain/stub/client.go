package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/K-tang-mkv/bittensor-strat/internal/chain"
	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
	"github.com/K-tang-mkv/bittensor-strat/internal/slippage"
)

// ErrNotFound is returned when a subnet is not present in the stub store.
var ErrNotFound = errors.New("not found")

// Client implements chain.Client for testing.
// Submissions mutate the stored state the way the chain would, so a
// test can drive several loop cycles against one stub.
type Client struct {
	mu sync.Mutex

	HeadNumber uint64
	Subnets    map[uint16]domain.SubnetInfo
	Stakes     map[domain.StakeKey]domain.StakeRecord
	Balances   map[string]domain.Balance

	// ReadErrs are returned, one per call, by AllSubnets before it succeeds.
	ReadErrs []error
	// SubmitErrs are returned, one per call, by submissions before they succeed.
	SubmitErrs []error
	// FillRatio scales how much of a bounded unstake fills. Zero means 1.
	FillRatio float64

	Unstakes      []domain.UnstakeRequest
	UnstakeAlls   []string
	Registrations []uint16
	Calls         map[string]int
}

// NewClient creates a new stub client.
func NewClient() *Client {
	return &Client{
		HeadNumber: 1,
		Subnets:    make(map[uint16]domain.SubnetInfo),
		Stakes:     make(map[domain.StakeKey]domain.StakeRecord),
		Balances:   make(map[string]domain.Balance),
		Calls:      make(map[string]int),
	}
}

// AddSubnet adds a subnet to the stub store.
func (c *Client) AddSubnet(s domain.SubnetInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Subnets[s.Netuid] = s
}

// SetStake sets a stake position in the stub store.
func (c *Client) SetStake(s domain.StakeRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Stakes[s.Key()] = s
}

// SetBalance sets the free balance of an address.
func (c *Client) SetBalance(address string, b domain.Balance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Balances[address] = b
}

// CallCount returns how often method was invoked.
func (c *Client) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Calls[method]
}

func (c *Client) hash() string {
	return fmt.Sprintf("0x%064x", c.HeadNumber)
}

// Head returns the current stub head.
func (c *Client) Head(_ context.Context) (chain.Head, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls["Head"]++
	return chain.Head{Hash: c.hash(), Number: c.HeadNumber}, nil
}

// AllSubnets returns the stored subnets ordered by netuid.
func (c *Client) AllSubnets(_ context.Context, _ string) ([]domain.SubnetInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls["AllSubnets"]++

	if len(c.ReadErrs) > 0 {
		err := c.ReadErrs[0]
		c.ReadErrs = c.ReadErrs[1:]
		return nil, err
	}

	out := make([]domain.SubnetInfo, 0, len(c.Subnets))
	for netuid := 0; len(out) < len(c.Subnets) && netuid <= 0xffff; netuid++ {
		if s, ok := c.Subnets[uint16(netuid)]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// StakeForColdkey returns the stored positions of coldkey.
func (c *Client) StakeForColdkey(_ context.Context, coldkey, _ string) ([]domain.StakeRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls["StakeForColdkey"]++

	var out []domain.StakeRecord
	for _, s := range c.Stakes {
		if s.Coldkey == coldkey || s.Coldkey == "" {
			s.Coldkey = coldkey
			out = append(out, s)
		}
	}
	return out, nil
}

// Balance returns the stored free balance.
func (c *Client) Balance(_ context.Context, address, _ string) (domain.Balance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls["Balance"]++
	return c.Balances[address], nil
}

// Burn returns the stored registration cost of netuid.
func (c *Client) Burn(_ context.Context, netuid uint16, _ string) (domain.Balance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls["Burn"]++

	s, ok := c.Subnets[netuid]
	if !ok {
		return 0, ErrNotFound
	}
	return s.Burn, nil
}

func (c *Client) nextSubmitErr() error {
	if len(c.SubmitErrs) == 0 {
		return nil
	}
	err := c.SubmitErrs[0]
	c.SubmitErrs = c.SubmitErrs[1:]
	return err
}

func (c *Client) receipt() *chain.Receipt {
	c.HeadNumber++
	return &chain.Receipt{ExtrinsicHash: fmt.Sprintf("0xext%d", c.HeadNumber), BlockHash: c.hash()}
}

// unstake moves amount out of a position and credits the swap output.
func (c *Client) unstake(coldkey string, key domain.StakeKey, amount domain.Balance) {
	rec := c.Stakes[key]
	if amount > rec.Stake {
		amount = rec.Stake
	}
	rec.Stake = rec.Stake.Sub(amount)
	c.Stakes[key] = rec

	received := amount
	if s, ok := c.Subnets[key.Netuid]; ok {
		received = slippage.Evaluate(s, amount).Received
	}
	c.Balances[coldkey] = c.Balances[coldkey].Add(received)
}

// SubmitBoundedUnstake records the request and applies it to the store.
func (c *Client) SubmitBoundedUnstake(_ context.Context, signer chain.Signer, req domain.UnstakeRequest) (*chain.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls["SubmitBoundedUnstake"]++

	if signer == nil || !signer.Unlocked() {
		return nil, &chain.Error{Kind: chain.KindSubmissionFailed, Op: "SubmitBoundedUnstake", Err: chain.ErrWalletLocked}
	}
	if err := c.nextSubmitErr(); err != nil {
		return nil, err
	}
	c.Unstakes = append(c.Unstakes, req)

	amount := req.Amount
	if c.FillRatio > 0 && c.FillRatio < 1 {
		amount = domain.FromRao(uint64(float64(amount.Rao()) * c.FillRatio))
	}
	c.unstake(signer.ColdkeyAddress(), domain.StakeKey{Hotkey: req.Hotkey, Netuid: req.Netuid}, amount)

	return c.receipt(), nil
}

// SubmitUnstakeAll removes every alpha position of hotkey.
func (c *Client) SubmitUnstakeAll(_ context.Context, signer chain.Signer, hotkey string) (*chain.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls["SubmitUnstakeAll"]++

	if signer == nil || !signer.Unlocked() {
		return nil, &chain.Error{Kind: chain.KindSubmissionFailed, Op: "SubmitUnstakeAll", Err: chain.ErrWalletLocked}
	}
	if err := c.nextSubmitErr(); err != nil {
		return nil, err
	}
	c.UnstakeAlls = append(c.UnstakeAlls, hotkey)

	for key, rec := range c.Stakes {
		if key.Hotkey == hotkey && key.Netuid != domain.RootNetuid {
			c.unstake(signer.ColdkeyAddress(), key, rec.Stake)
		}
	}

	return c.receipt(), nil
}

// SubmitBurnedRegister charges the burn and records the registration.
func (c *Client) SubmitBurnedRegister(_ context.Context, signer chain.Signer, _ string, netuid uint16) (*chain.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls["SubmitBurnedRegister"]++

	if signer == nil || !signer.Unlocked() {
		return nil, &chain.Error{Kind: chain.KindSubmissionFailed, Op: "SubmitBurnedRegister", Err: chain.ErrWalletLocked}
	}
	if err := c.nextSubmitErr(); err != nil {
		return nil, err
	}

	s, ok := c.Subnets[netuid]
	if !ok {
		return nil, &chain.Error{Kind: chain.KindSubmissionFailed, Op: "SubmitBurnedRegister", Err: ErrNotFound}
	}
	coldkey := signer.ColdkeyAddress()
	c.Balances[coldkey] = c.Balances[coldkey].Sub(s.Burn)
	c.Registrations = append(c.Registrations, netuid)

	return c.receipt(), nil
}

// Signer is an in-memory chain.Signer.
type Signer struct {
	Address string
	Locked  bool
}

func (s *Signer) ColdkeyAddress() string { return s.Address }
func (s *Signer) Unlocked() bool         { return !s.Locked }
func (s *Signer) SecretSeed() string     { return "0x00" }

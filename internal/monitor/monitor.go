// Package monitor detects newly registered subnets.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/K-tang-mkv/bittensor-strat/internal/chain"
	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
	"github.com/K-tang-mkv/bittensor-strat/internal/notify"
	"github.com/K-tang-mkv/bittensor-strat/internal/observability"
	"github.com/K-tang-mkv/bittensor-strat/internal/register"
	"github.com/K-tang-mkv/bittensor-strat/internal/storage"
)

// DefaultCheckInterval is the ticker period between checks.
const DefaultCheckInterval = 60 * time.Second

// State is the edge-detection state threaded through Check.
type State struct {
	PreviousCount int
	LatestNetuid  uint16
	// Initialized is false until the first successful check sets the baseline.
	Initialized bool
}

// Detection describes subnets that appeared since the previous check.
type Detection struct {
	Count      int
	NewSubnets int
	Latest     domain.SubnetInfo
	DetectedAt time.Time
}

// Monitor polls the subnet list and reacts to new registrations.
type Monitor struct {
	client    chain.Client
	notifier  notify.Notifier
	registrar *register.Registrar
	store     storage.MonitorStateStore
	heads     *chain.HeadWatcher
	network   string
	interval  time.Duration
	clock     clock.Clock
	logger    *log.Logger
}

// Options contains configuration for creating a Monitor.
type Options struct {
	Client  chain.Client
	Network string

	Notifier  notify.Notifier           // Optional
	Registrar *register.Registrar       // Optional: register into the newest subnet
	Store     storage.MonitorStateStore // Optional: resume across restarts
	Heads     *chain.HeadWatcher        // Optional: check on every new head too

	CheckInterval time.Duration // Default: 60s
	Clock         clock.Clock
	Logger        *log.Logger
}

// New creates a new Monitor.
func New(opts Options) (*Monitor, error) {
	if opts.Client == nil {
		return nil, errors.New("monitor requires a chain client")
	}

	m := &Monitor{
		client:    opts.Client,
		notifier:  opts.Notifier,
		registrar: opts.Registrar,
		store:     opts.Store,
		heads:     opts.Heads,
		network:   opts.Network,
		interval:  opts.CheckInterval,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}
	if m.network == "" {
		m.network = "finney"
	}
	if m.interval <= 0 {
		m.interval = DefaultCheckInterval
	}
	if m.clock == nil {
		m.clock = clock.New()
	}
	if m.logger == nil {
		m.logger = log.Default()
	}
	return m, nil
}

// Check reads the subnet list once and compares it with state.
// The first successful check only records the baseline.
// On error the input state is returned unchanged.
func (m *Monitor) Check(ctx context.Context, state State) (State, *Detection, error) {
	subnets, err := m.client.AllSubnets(ctx, "")
	if err != nil {
		return state, nil, fmt.Errorf("fetch subnets: %w", err)
	}

	count := len(subnets)
	var latest domain.SubnetInfo
	for _, s := range subnets {
		if s.Netuid >= latest.Netuid {
			latest = s
		}
	}
	observability.UpdateSubnetCount(count)

	next := State{PreviousCount: count, LatestNetuid: latest.Netuid, Initialized: true}
	if !state.Initialized || count <= state.PreviousCount {
		return next, nil, nil
	}

	return next, &Detection{
		Count:      count,
		NewSubnets: count - state.PreviousCount,
		Latest:     latest,
		DetectedAt: m.clock.Now(),
	}, nil
}

// Run checks on every tick (and every new head when configured) until ctx
// is done or a registration fails fatally.
func (m *Monitor) Run(ctx context.Context) error {
	state := m.loadState(ctx)
	m.logger.Printf("Monitoring %s every %s (previous subnets: %d)", m.network, m.interval, state.PreviousCount)

	var heads <-chan chain.Head
	if m.heads != nil {
		heads = m.heads.Watch(ctx)
	}

	ticker := m.clock.Ticker(m.interval)
	defer ticker.Stop()

	var err error
	if state, err = m.tick(ctx, state); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			m.logger.Println("Monitor stopping...")
			return ctx.Err()
		case <-ticker.C:
		case _, ok := <-heads:
			if !ok {
				heads = nil
				continue
			}
		}

		if state, err = m.tick(ctx, state); err != nil {
			return err
		}
	}
}

// tick runs one check and reacts to a detection. Only fatal registration
// errors are returned; fetch errors are logged and retried next tick.
//
// A detection is persisted only once it has been fully handled, so a
// restart during registration detects the same subnet again.
func (m *Monitor) tick(ctx context.Context, state State) (State, error) {
	next, det, err := m.Check(ctx, state)
	if err != nil {
		m.logger.Printf("Error occurred: %v", err)
		return state, nil
	}

	if det == nil {
		m.saveState(ctx, next)
		m.logger.Printf("No new subnets detected. Total: %d", next.PreviousCount)
		return next, nil
	}

	observability.RecordSubnetsDetected(det.NewSubnets)
	m.logger.Printf("New subnets detected: %d (latest netuid %d %q). Total registered subnets: %d",
		det.NewSubnets, det.Latest.Netuid, det.Latest.Name, det.Count)

	m.alert(ctx, det)

	if m.registrar != nil {
		m.logger.Printf("Starting registration into netuid %d", det.Latest.Netuid)
		if _, err := m.registrar.Register(ctx, det.Latest.Netuid); err != nil {
			return next, fmt.Errorf("register into netuid %d: %w", det.Latest.Netuid, err)
		}
	}
	m.saveState(ctx, next)
	return next, nil
}

func (m *Monitor) alert(ctx context.Context, det *Detection) {
	if m.notifier == nil {
		return
	}
	at := det.DetectedAt.Format("2006-01-02 15:04:05")
	msg := notify.Message{
		Subject: fmt.Sprintf("New Subnet Registered: %d", det.Latest.Netuid),
		Body: fmt.Sprintf("New subnet %d (%s) detected at %s on %s. Total subnets: %d",
			det.Latest.Netuid, det.Latest.Name, at, m.network, det.Count),
	}
	if err := m.notifier.Notify(ctx, msg); err != nil {
		m.logger.Printf("Failed to send alert: %v", err)
	}
}

func (m *Monitor) loadState(ctx context.Context) State {
	if m.store == nil {
		return State{}
	}
	saved, err := m.store.Get(ctx, m.network)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Printf("Failed to load monitor state: %v", err)
		}
		return State{}
	}
	return State{PreviousCount: saved.SubnetCount, LatestNetuid: saved.LatestNetuid, Initialized: true}
}

func (m *Monitor) saveState(ctx context.Context, state State) {
	if m.store == nil {
		return
	}
	err := m.store.Set(ctx, &domain.MonitorState{
		Network:      m.network,
		SubnetCount:  state.PreviousCount,
		LatestNetuid: state.LatestNetuid,
		UpdatedAt:    m.clock.Now().UnixMilli(),
	})
	if err != nil {
		m.logger.Printf("Failed to save monitor state: %v", err)
	}
}

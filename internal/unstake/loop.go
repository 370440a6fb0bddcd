package unstake

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/K-tang-mkv/bittensor-strat/internal/chain"
	"github.com/K-tang-mkv/bittensor-strat/internal/decision"
	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
	"github.com/K-tang-mkv/bittensor-strat/internal/observability"
	"github.com/K-tang-mkv/bittensor-strat/internal/storage"
)

// Loop is the perpetual FETCH → EVALUATE → EXECUTE/WAIT state machine.
// It is single-threaded: Step must not be called concurrently.
type Loop struct {
	client     chain.Client
	signer     chain.Signer
	policy     Policy
	evaluator  *decision.Evaluator
	executions storage.ExecutionStore
	prices     storage.PricePointStore
	clock      clock.Clock
	newID      func() string
	logger     *log.Logger

	executed int
}

// Options contains configuration for creating a Loop.
type Options struct {
	Client chain.Client
	Signer chain.Signer
	Policy Policy

	// Executions records every submitted unstake. Optional.
	Executions storage.ExecutionStore
	// Prices records the pool state of target subnets each FETCH. Optional.
	Prices storage.PricePointStore

	Clock  clock.Clock   // Default: wall clock
	NewID  func() string // Default: uuid.NewString
	Logger *log.Logger
}

// NewLoop creates a new polling loop.
func NewLoop(opts Options) (*Loop, error) {
	if opts.Client == nil {
		return nil, errors.New("unstake loop requires a chain client")
	}
	if opts.Signer == nil {
		return nil, errors.New("unstake loop requires a signer")
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	evaluator, err := decision.NewEvaluator(opts.Policy.Criteria())
	if err != nil {
		return nil, err
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Loop{
		client:     opts.Client,
		signer:     opts.Signer,
		policy:     opts.Policy,
		evaluator:  evaluator,
		executions: opts.Executions,
		prices:     opts.Prices,
		clock:      clk,
		newID:      newID,
		logger:     logger,
	}, nil
}

// Executed returns how many executions succeeded so far.
func (l *Loop) Executed() int {
	return l.executed
}

// Run drives Step until ctx is done or MaxExecutions is reached.
// Returns nil when the execution limit stops the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Printf("Unstake loop started: mode=%s threshold=%s targets=%d",
		l.policy.Mode, l.policy.Threshold, len(l.policy.Targets))

	for {
		tr := l.Step(ctx)

		if l.policy.MaxExecutions > 0 && l.executed >= l.policy.MaxExecutions {
			l.logger.Printf("Reached %d executions, stopping", l.executed)
			return nil
		}
		if err := l.wait(ctx, tr.Wait); err != nil {
			l.logger.Println("Unstake loop stopping...")
			return err
		}
	}
}

// wait blocks for d on the loop clock. A zero wait still observes ctx.
func (l *Loop) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := l.clock.Timer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Step runs one FETCH → EVALUATE → {EXECUTE | WAIT_SHORT | WAIT_LONG} cycle.
func (l *Loop) Step(ctx context.Context) Transition {
	coldkey := l.signer.ColdkeyAddress()

	snap, err := chain.FetchSnapshot(ctx, l.client, l.clock, coldkey)
	if err != nil {
		l.logger.Printf("Fetch failed, retrying in %s: %v", l.policy.ShortWait, err)
		observability.RecordFetchError()
		observability.RecordCycle("FETCH_ERROR")
		return Transition{Next: StateWaitShort, Wait: l.policy.ShortWait, Err: err}
	}
	observability.UpdateSnapshot(snap.BlockNumber, snap.Balance.Tao())
	l.recordPrices(ctx, snap)

	evals := l.evaluate(snap)
	if len(evals) > 0 {
		l.logger.Printf("Evaluation at %s:\n%s", snap.BlockHash, decision.RenderMarkdown(evals))
	}

	tr := l.next(snap, evals)
	if tr.Next == StateExecute {
		for _, e := range evals {
			if e.Verdict == decision.VerdictExecute {
				l.logger.Printf("Executing:\n%s", decision.RenderChecklist(e))
				tr = l.execute(ctx, snap, e)
				break
			}
		}
	}

	observability.RecordCycle(string(tr.Next))
	return tr
}

// evaluate runs the decision for every target. Targets whose subnet is
// missing from the snapshot are reported as holding no stake.
func (l *Loop) evaluate(snap *domain.Snapshot) []*decision.Evaluation {
	evals := make([]*decision.Evaluation, 0, len(l.policy.Targets))
	for _, t := range l.policy.Targets {
		e, err := l.evaluator.Evaluate(snap, t)
		if err != nil {
			l.logger.Printf("Target %s/%d skipped: %v", t.Hotkey, t.Netuid, err)
			e = &decision.Evaluation{Target: t, Verdict: decision.VerdictSkipNoStake, BlockHash: snap.BlockHash}
		}
		observability.RecordDecision(string(e.Verdict))
		observability.UpdateStake(t.Hotkey, strconv.Itoa(int(t.Netuid)), e.Stake.Tao())
		evals = append(evals, e)
	}
	return evals
}

// next picks the state implied by the verdicts, before any submission.
func (l *Loop) next(snap *domain.Snapshot, evals []*decision.Evaluation) Transition {
	belowThreshold := false
	for _, e := range evals {
		switch e.Verdict {
		case decision.VerdictExecute:
			return Transition{Next: StateExecute}
		case decision.VerdictSkipBelowThreshold:
			belowThreshold = true
		}
	}

	if !belowThreshold && !snap.HasAnyStake() {
		return Transition{Next: StateWaitLong, Wait: l.policy.LongWait}
	}
	return Transition{Next: StateWaitShort, Wait: l.policy.ShortWait}
}

// execute submits the request of e, observes its effect and records it.
func (l *Loop) execute(ctx context.Context, snap *domain.Snapshot, e *decision.Evaluation) Transition {
	req := *e.Request
	coldkey := l.signer.ColdkeyAddress()

	rec := &domain.ExecutionRecord{
		ExecutionID:      l.newID(),
		Hotkey:           req.Hotkey,
		Coldkey:          coldkey,
		Netuid:           req.Netuid,
		Mode:             req.Mode,
		Amount:           req.Amount,
		ExpectedReceived: e.Received,
		SlippagePct:      e.SlippagePct,
		PriceLimit:       req.PriceLimit,
		AllowPartial:     req.AllowPartial,
		BlockHash:        snap.BlockHash,
		BalanceBefore:    snap.Balance,
		BalanceAfter:     snap.Balance,
		StakeBefore:      e.Stake,
		StakeAfter:       e.Stake,
	}

	l.logger.Printf("Unstaking %s from %s on netuid %d (expected %s, slippage %.4f%%, limit %s)",
		req.Amount, req.Hotkey, req.Netuid, e.Received, e.SlippagePct, req.PriceLimit)

	var (
		receipt *chain.Receipt
		err     error
	)
	switch req.Mode {
	case domain.ModeAll:
		receipt, err = l.client.SubmitUnstakeAll(ctx, l.signer, req.Hotkey)
	default:
		receipt, err = l.client.SubmitBoundedUnstake(ctx, l.signer, req)
	}
	rec.ExecutedAt = l.clock.Now().UnixMilli()

	if err != nil {
		msg := err.Error()
		rec.Error = &msg
		rec.Status = domain.ExecutionFailed
		if chain.IsToleranceExceeded(err) {
			rec.Status = domain.ExecutionToleranceExceeded
			l.logger.Printf("Failed to unstake on netuid %d: price exceeded tolerance limit and partial unstaking is disabled: %v", req.Netuid, err)
		} else {
			l.logger.Printf("Failed to unstake on netuid %d: %v", req.Netuid, err)
		}
		l.persist(ctx, rec)
		return Transition{Next: StateExecute, Wait: l.policy.FailureBackoff, Executed: rec}
	}

	rec.BlockHash = receipt.BlockHash
	rec.Status = domain.ExecutionSuccess

	balance, stake, perr := chain.PositionAt(ctx, l.client, coldkey, req.Hotkey, req.Netuid)
	if perr != nil {
		l.logger.Printf("Unstake included in %s but position re-read failed: %v", receipt.BlockHash, perr)
	} else {
		rec.BalanceAfter = balance
		rec.StakeAfter = stake
		if !stake.IsZero() && rec.Unstaked() != req.Amount {
			rec.Status = domain.ExecutionPartial
			l.logger.Printf("Partial unstake: unstaked %s instead of %s", rec.Unstaked(), req.Amount)
		}
	}

	l.logger.Printf("Finalized in %s: balance %s -> %s, stake %s -> %s",
		receipt.BlockHash, rec.BalanceBefore, rec.BalanceAfter, rec.StakeBefore, rec.StakeAfter)

	l.executed++
	l.persist(ctx, rec)
	return Transition{Next: StateExecute, Wait: 0, Executed: rec}
}

// persist stores rec and updates metrics. Storage failures are logged only:
// the extrinsic has already been submitted.
func (l *Loop) persist(ctx context.Context, rec *domain.ExecutionRecord) {
	observability.RecordExecution(string(rec.Mode), string(rec.Status), rec.Succeeded(),
		rec.SlippagePct, rec.Unstaked().Tao(), rec.BalanceAfter.Sub(rec.BalanceBefore).Tao())

	if l.executions == nil {
		return
	}
	start := time.Now()
	err := l.executions.Insert(ctx, rec)
	observability.RecordDBQuery("executions", "insert", time.Since(start).Seconds(), err)
	if err != nil {
		l.logger.Printf("Failed to store execution %s: %v", rec.ExecutionID, err)
	}
}

// recordPrices stores the pool state of every target subnet.
func (l *Loop) recordPrices(ctx context.Context, snap *domain.Snapshot) {
	if l.prices == nil {
		return
	}

	seen := make(map[uint16]bool, len(l.policy.Targets))
	var points []*domain.PricePoint
	for _, t := range l.policy.Targets {
		if seen[t.Netuid] {
			continue
		}
		seen[t.Netuid] = true

		s, ok := snap.Subnet(t.Netuid)
		if !ok {
			continue
		}
		points = append(points, &domain.PricePoint{
			Netuid:      s.Netuid,
			BlockHash:   snap.BlockHash,
			TimestampMs: snap.FetchedAt,
			Price:       s.Price,
			TaoIn:       s.TaoIn,
			AlphaIn:     s.AlphaIn,
		})
	}

	start := time.Now()
	err := l.prices.InsertBulk(ctx, points)
	observability.RecordDBQuery("prices", "insert_bulk", time.Since(start).Seconds(), err)
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		l.logger.Printf("Failed to store price points: %v", err)
	}
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
	"github.com/K-tang-mkv/bittensor-strat/internal/storage"
)

// ExecutionStore implements storage.ExecutionStore using PostgreSQL.
// Rao amounts fit in BIGINT: total TAO supply is 2.1e16 rao.
type ExecutionStore struct {
	pool *Pool
}

// NewExecutionStore creates a new ExecutionStore.
func NewExecutionStore(pool *Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ExecutionStore = (*ExecutionStore)(nil)

const executionColumns = `
	execution_id, hotkey, coldkey, netuid, mode, amount_rao, expected_received_rao,
	slippage_pct, price_limit::text, allow_partial, block_hash, status, error,
	balance_before_rao, balance_after_rao, stake_before_rao, stake_after_rao, executed_at
`

// Insert adds a new execution record. Returns ErrDuplicateKey if execution_id exists.
func (s *ExecutionStore) Insert(ctx context.Context, r *domain.ExecutionRecord) error {
	if r == nil || r.ExecutionID == "" || r.Hotkey == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO unstake_executions (
			execution_id, hotkey, coldkey, netuid, mode, amount_rao, expected_received_rao,
			slippage_pct, price_limit, allow_partial, block_hash, status, error,
			balance_before_rao, balance_after_rao, stake_before_rao, stake_after_rao, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ExecutionID,
		r.Hotkey,
		r.Coldkey,
		int32(r.Netuid),
		string(r.Mode),
		int64(r.Amount),
		int64(r.ExpectedReceived),
		r.SlippagePct,
		r.PriceLimit.String(),
		r.AllowPartial,
		r.BlockHash,
		string(r.Status),
		r.Error,
		int64(r.BalanceBefore),
		int64(r.BalanceAfter),
		int64(r.StakeBefore),
		int64(r.StakeAfter),
		r.ExecutedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *ExecutionStore) GetByID(ctx context.Context, executionID string) (*domain.ExecutionRecord, error) {
	query := `SELECT ` + executionColumns + ` FROM unstake_executions WHERE execution_id = $1`

	r, err := scanExecution(s.pool.QueryRow(ctx, query, executionID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get execution by id: %w", err)
	}
	return r, nil
}

// GetByTarget retrieves all records for (hotkey, netuid), ordered by executed_at ASC.
func (s *ExecutionStore) GetByTarget(ctx context.Context, hotkey string, netuid uint16) ([]*domain.ExecutionRecord, error) {
	query := `SELECT ` + executionColumns + `
		FROM unstake_executions
		WHERE hotkey = $1 AND netuid = $2
		ORDER BY executed_at ASC, execution_id ASC
	`

	rows, err := s.pool.Query(ctx, query, hotkey, int32(netuid))
	if err != nil {
		return nil, fmt.Errorf("query executions by target: %w", err)
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// GetByTimeRange retrieves records executed within [start, end] (inclusive).
func (s *ExecutionStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ExecutionRecord, error) {
	query := `SELECT ` + executionColumns + `
		FROM unstake_executions
		WHERE executed_at >= $1 AND executed_at <= $2
		ORDER BY executed_at ASC, execution_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query executions by time range: %w", err)
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// scanExecution scans a single row into an ExecutionRecord.
func scanExecution(row pgx.Row) (*domain.ExecutionRecord, error) {
	var (
		r                                      domain.ExecutionRecord
		netuid                                 int32
		mode, status, priceLimit               string
		amount, expected                       int64
		balBefore, balAfter, stBefore, stAfter int64
	)

	err := row.Scan(
		&r.ExecutionID, &r.Hotkey, &r.Coldkey, &netuid, &mode, &amount, &expected,
		&r.SlippagePct, &priceLimit, &r.AllowPartial, &r.BlockHash, &status, &r.Error,
		&balBefore, &balAfter, &stBefore, &stAfter, &r.ExecutedAt,
	)
	if err != nil {
		return nil, err
	}

	limit, err := decimal.NewFromString(priceLimit)
	if err != nil {
		return nil, fmt.Errorf("parse price limit %q: %w", priceLimit, err)
	}

	r.Netuid = uint16(netuid)
	r.Mode = domain.UnstakeMode(mode)
	r.Status = domain.ExecutionStatus(status)
	r.PriceLimit = limit
	r.Amount = domain.FromRao(uint64(amount))
	r.ExpectedReceived = domain.FromRao(uint64(expected))
	r.BalanceBefore = domain.FromRao(uint64(balBefore))
	r.BalanceAfter = domain.FromRao(uint64(balAfter))
	r.StakeBefore = domain.FromRao(uint64(stBefore))
	r.StakeAfter = domain.FromRao(uint64(stAfter))

	return &r, nil
}

// scanExecutions scans multiple rows.
func scanExecutions(rows pgx.Rows) ([]*domain.ExecutionRecord, error) {
	var records []*domain.ExecutionRecord
	for rows.Next() {
		r, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution rows: %w", err)
	}
	return records, nil
}

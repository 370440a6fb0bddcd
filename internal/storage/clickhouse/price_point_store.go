package clickhouse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
	"github.com/K-tang-mkv/bittensor-strat/internal/storage"
)

// PricePointStore implements storage.PricePointStore using ClickHouse.
type PricePointStore struct {
	conn *Conn
}

// NewPricePointStore creates a new PricePointStore.
func NewPricePointStore(conn *Conn) *PricePointStore {
	return &PricePointStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PricePointStore = (*PricePointStore)(nil)

const pricePointColumns = `netuid, timestamp_ms, block_hash, price, tao_in, alpha_in`

// InsertBulk adds multiple points. Fails entire batch on duplicate (netuid, timestamp_ms).
// MergeTree does not enforce uniqueness, so duplicates are checked before the batch is sent.
func (s *PricePointStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	type key struct {
		netuid      uint16
		timestampMs int64
	}
	seen := make(map[key]struct{}, len(points))
	for _, p := range points {
		if p == nil {
			return storage.ErrInvalidInput
		}
		k := key{p.Netuid, p.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, p := range points {
		exists, err := s.exists(ctx, p.Netuid, p.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO subnet_price_points (`+pricePointColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.Netuid, uint64(p.TimestampMs), p.BlockHash,
			p.Price, p.TaoIn.Rao(), p.AlphaIn.Rao(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves points for a subnet within [start, end] (inclusive).
func (s *PricePointStore) GetByTimeRange(ctx context.Context, netuid uint16, start, end int64) ([]*domain.PricePoint, error) {
	query := `
		SELECT ` + pricePointColumns + `
		FROM subnet_price_points
		WHERE netuid = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, netuid, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// GetLatest retrieves the most recent point for a subnet.
func (s *PricePointStore) GetLatest(ctx context.Context, netuid uint16) (*domain.PricePoint, error) {
	query := `
		SELECT ` + pricePointColumns + `
		FROM subnet_price_points
		WHERE netuid = ?
		ORDER BY timestamp_ms DESC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, netuid)
	if err != nil {
		return nil, fmt.Errorf("query latest: %w", err)
	}
	defer rows.Close()

	points, err := scanPricePoints(rows)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, storage.ErrNotFound
	}
	return points[0], nil
}

func (s *PricePointStore) exists(ctx context.Context, netuid uint16, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM subnet_price_points
		WHERE netuid = ? AND timestamp_ms = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, netuid, uint64(timestampMs)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanPricePoints(rows chRows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var (
			p              domain.PricePoint
			timestampMs    uint64
			taoIn, alphaIn uint64
			price          decimal.Decimal
		)

		if err := rows.Scan(&p.Netuid, &timestampMs, &p.BlockHash, &price, &taoIn, &alphaIn); err != nil {
			return nil, fmt.Errorf("scan price point row: %w", err)
		}

		p.TimestampMs = int64(timestampMs)
		p.Price = price
		p.TaoIn = domain.FromRao(taoIn)
		p.AlphaIn = domain.FromRao(alphaIn)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price point rows: %w", err)
	}
	return points, nil
}

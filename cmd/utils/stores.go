package utils

import (
	"context"
	"fmt"
	"log"

	"github.com/urfave/cli/v2"

	"github.com/K-tang-mkv/bittensor-strat/internal/storage"
	chstore "github.com/K-tang-mkv/bittensor-strat/internal/storage/clickhouse"
	"github.com/K-tang-mkv/bittensor-strat/internal/storage/memory"
	"github.com/K-tang-mkv/bittensor-strat/internal/storage/migrations"
	pgstore "github.com/K-tang-mkv/bittensor-strat/internal/storage/postgres"
)

// Stores holds every storage implementation a command may need.
type Stores struct {
	Executions   storage.ExecutionStore
	Prices       storage.PricePointStore
	MonitorState storage.MonitorStateStore

	closers []func()
}

// OpenStores selects memory stores with --use-memory or when no DSN is set,
// PostgreSQL for executions and monitor state, ClickHouse for price points.
// Migrations are applied on open.
func OpenStores(ctx context.Context, c *cli.Context, logger *log.Logger) (*Stores, error) {
	s := &Stores{
		Executions:   memory.NewExecutionStore(),
		Prices:       memory.NewPricePointStore(),
		MonitorState: memory.NewMonitorStateStore(),
	}
	if c.Bool(UseMemoryFlag.Name) {
		logger.Println("Using in-memory storage")
		return s, nil
	}

	if dsn := c.String(PostgresDSNFlag.Name); dsn != "" {
		pool, err := pgstore.NewPool(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)

		if err := migrations.RunPostgres(ctx, pool, logger); err != nil {
			s.Close()
			return nil, err
		}
		s.Executions = pgstore.NewExecutionStore(pool)
		s.MonitorState = pgstore.NewMonitorStateStore(pool)
		logger.Println("Using PostgreSQL for executions and monitor state")
	}

	if dsn := c.String(ClickhouseDSNFlag.Name); dsn != "" {
		conn, err := migrations.RunClickhouse(ctx, dsn, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { conn.Close() })
		s.Prices = chstore.NewPricePointStore(conn)
		logger.Println("Using ClickHouse for price points")
	}

	return s, nil
}

// Close releases every opened connection.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

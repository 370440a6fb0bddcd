package migrations

import "embed"

// PostgresFS embeds the PostgreSQL migrations (executions, monitor state).
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the ClickHouse migrations (subnet price points).
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

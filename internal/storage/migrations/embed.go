package migrations

import "embed"

// PostgresFS holds the catalog, definitions, derived series and audit schema.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the derived_daily analytics schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

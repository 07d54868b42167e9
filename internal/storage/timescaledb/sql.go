package timescaledb

const createRunsTableSQL = `
CREATE TABLE IF NOT EXISTS forecast_runs (
    id text PRIMARY KEY,
    created_at timestamp WITH TIME ZONE NOT NULL,
    duration_ns bigint NOT NULL DEFAULT 0,
    row_count int NOT NULL DEFAULT 0,
    missing_reference int NOT NULL DEFAULT 0,
    clamped int NOT NULL DEFAULT 0,
    panel jsonb NOT NULL
);`

// forecast_hours carries no primary key: a hypertable's unique indexes must
// include the partitioning column.
const createHoursTableSQL = `
CREATE TABLE IF NOT EXISTS forecast_hours (
    run_id text NOT NULL,
    seq int NOT NULL,
    created_at timestamp WITH TIME ZONE NOT NULL,
    year int NOT NULL,
    month int NOT NULL,
    day int NOT NULL,
    hour int NOT NULL,
    wel float8 NULL,
    clamped boolean NOT NULL DEFAULT false,
    result jsonb NOT NULL
);`

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb;`

const createHypertableSQL = `SELECT create_hypertable('forecast_hours', 'created_at', if_not_exists => true);`

const createIndexesSQL = `
CREATE INDEX IF NOT EXISTS forecast_runs_created_at_idx ON forecast_runs (created_at DESC);
CREATE INDEX IF NOT EXISTS forecast_hours_run_idx ON forecast_hours (run_id, seq);`

// Daily energy per run, in watt-hours, for dashboards that chart forecast drift.
const createDailyViewSQL = `CREATE MATERIALIZED VIEW IF NOT EXISTS forecast_daily
WITH (timescaledb.continuous) AS
SELECT
    time_bucket(INTERVAL '1 day', created_at) AS bucket,
    run_id,
    year,
    month,
    day,
    sum(wel) AS total_wel,
    max(wel) AS peak_wel,
    count(*) FILTER (WHERE clamped) AS clamped_hours,
    count(*) FILTER (WHERE wel IS NULL) AS missing_hours
FROM forecast_hours
GROUP BY bucket, run_id, year, month, day
WITH NO DATA;`

const addDailyAggregationPolicySQL = `SELECT add_continuous_aggregate_policy('forecast_daily', INTERVAL '30 days', INTERVAL '1 hour', INTERVAL '1 hour', if_not_exists => true);`

const addRetentionPolicySQL = `SELECT add_retention_policy('forecast_hours', INTERVAL '365 days', if_not_exists => true);`

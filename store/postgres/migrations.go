package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the dispatch store.
// It can be registered with the grove extension for orchestrated migration
// management (locking, version tracking, rollback support).
var Migrations = migrate.NewGroup("dispatch")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_dispatch_event_types",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dispatch_event_types (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL UNIQUE,
    description     TEXT NOT NULL DEFAULT '',
    group_name      TEXT NOT NULL DEFAULT '',
    schema          JSONB,
    version         TEXT NOT NULL DEFAULT '',
    example         JSONB,
    is_deprecated   BOOLEAN NOT NULL DEFAULT FALSE,
    deprecated_at   TIMESTAMPTZ,
    metadata        JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS dispatch_event_types`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_dispatch_subscriptions",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dispatch_subscriptions (
    id               TEXT PRIMARY KEY,
    url              TEXT NOT NULL DEFAULT '',
    description      TEXT NOT NULL DEFAULT '',
    secret           TEXT NOT NULL DEFAULT '',
    event_types      TEXT[] NOT NULL DEFAULT '{}',
    headers          JSONB NOT NULL DEFAULT '{}',
    timeout_seconds  DOUBLE PRECISION NOT NULL DEFAULT 30,
    retry_attempts   INT NOT NULL DEFAULT 3,
    retry_backoff    DOUBLE PRECISION NOT NULL DEFAULT 2,
    rate_limit       INT NOT NULL DEFAULT 0,
    status           TEXT NOT NULL DEFAULT 'active',
    delivery_count   BIGINT NOT NULL DEFAULT 0,
    failure_count    BIGINT NOT NULL DEFAULT 0,
    last_delivery_at TIMESTAMPTZ,
    metadata         JSONB NOT NULL DEFAULT '{}',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_dispatch_subscriptions_status ON dispatch_subscriptions (status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS dispatch_subscriptions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_dispatch_events",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dispatch_events (
    id              TEXT PRIMARY KEY,
    type            TEXT NOT NULL DEFAULT '',
    data            JSONB,
    occurred_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    source_service  TEXT NOT NULL DEFAULT '',
    correlation_id  TEXT NOT NULL DEFAULT '',
    metadata        JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_dispatch_events_type ON dispatch_events (type);
CREATE INDEX IF NOT EXISTS idx_dispatch_events_occurred ON dispatch_events (occurred_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS dispatch_events`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_dispatch_deliveries",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dispatch_deliveries (
    id              TEXT PRIMARY KEY,
    subscription_id TEXT NOT NULL DEFAULT '',
    event_id        TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT 'pending',
    attempt_number  INT NOT NULL DEFAULT 1,
    url             TEXT NOT NULL DEFAULT '',
    request_headers JSONB NOT NULL DEFAULT '{}',
    request_body    BYTEA,
    response_status INT NOT NULL DEFAULT 0,
    response_body   TEXT NOT NULL DEFAULT '',
    duration_ms     INT NOT NULL DEFAULT 0,
    error           TEXT NOT NULL DEFAULT '',
    reason          TEXT NOT NULL DEFAULT '',
    next_retry_at   TIMESTAMPTZ,
    delivered_at    TIMESTAMPTZ,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_dispatch_deliveries_sub ON dispatch_deliveries (subscription_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_dispatch_deliveries_event ON dispatch_deliveries (event_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS dispatch_deliveries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_dispatch_retries",
			Version: "20250101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dispatch_retries (
    delivery_id     TEXT PRIMARY KEY,
    subscription_id TEXT NOT NULL DEFAULT '',
    event_id        TEXT NOT NULL DEFAULT '',
    attempt_number  INT NOT NULL DEFAULT 1,
    fire_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_dispatch_retries_due ON dispatch_retries (fire_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS dispatch_retries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_dispatch_dlq",
			Version: "20250101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dispatch_dlq (
    id              TEXT PRIMARY KEY,
    delivery_id     TEXT NOT NULL DEFAULT '',
    event_id        TEXT NOT NULL DEFAULT '',
    subscription_id TEXT NOT NULL DEFAULT '',
    event_type      TEXT NOT NULL DEFAULT '',
    url             TEXT NOT NULL DEFAULT '',
    payload         JSONB,
    error           TEXT NOT NULL DEFAULT '',
    attempt_count   INT NOT NULL DEFAULT 0,
    last_status_code INT NOT NULL DEFAULT 0,
    replayed_at     TIMESTAMPTZ,
    failed_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_dispatch_dlq_sub ON dispatch_dlq (subscription_id);
CREATE INDEX IF NOT EXISTS idx_dispatch_dlq_failed ON dispatch_dlq (failed_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS dispatch_dlq`)
				return err
			},
		},
	)
}

package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the dispatch SQLite store.
var Migrations = migrate.NewGroup("dispatch")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_dispatch_event_types",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dispatch_event_types (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL UNIQUE,
    description   TEXT NOT NULL DEFAULT '',
    group_name    TEXT NOT NULL DEFAULT '',
    schema        TEXT NOT NULL DEFAULT '',
    version       TEXT NOT NULL DEFAULT '',
    example       TEXT NOT NULL DEFAULT '',
    is_deprecated INTEGER NOT NULL DEFAULT 0,
    deprecated_at TIMESTAMP,
    metadata      TEXT NOT NULL DEFAULT '{}',
    created_at    TIMESTAMP NOT NULL,
    updated_at    TIMESTAMP NOT NULL
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
    event_types      TEXT NOT NULL DEFAULT '[]',
    headers          TEXT NOT NULL DEFAULT '{}',
    timeout_seconds  REAL NOT NULL DEFAULT 30,
    retry_attempts   INTEGER NOT NULL DEFAULT 3,
    retry_backoff    REAL NOT NULL DEFAULT 2,
    rate_limit       INTEGER NOT NULL DEFAULT 0,
    status           TEXT NOT NULL DEFAULT 'active',
    delivery_count   INTEGER NOT NULL DEFAULT 0,
    failure_count    INTEGER NOT NULL DEFAULT 0,
    last_delivery_at TIMESTAMP,
    metadata         TEXT NOT NULL DEFAULT '{}',
    created_at       TIMESTAMP NOT NULL,
    updated_at       TIMESTAMP NOT NULL
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
    id             TEXT PRIMARY KEY,
    type           TEXT NOT NULL DEFAULT '',
    data           TEXT NOT NULL DEFAULT '',
    occurred_at    TIMESTAMP NOT NULL,
    source_service TEXT NOT NULL DEFAULT '',
    correlation_id TEXT NOT NULL DEFAULT '',
    metadata       TEXT NOT NULL DEFAULT '{}',
    created_at     TIMESTAMP NOT NULL,
    updated_at     TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dispatch_events_type ON dispatch_events (type);
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
    attempt_number  INTEGER NOT NULL DEFAULT 1,
    url             TEXT NOT NULL DEFAULT '',
    request_headers TEXT NOT NULL DEFAULT '{}',
    request_body    BLOB,
    response_status INTEGER NOT NULL DEFAULT 0,
    response_body   TEXT NOT NULL DEFAULT '',
    duration_ms     INTEGER NOT NULL DEFAULT 0,
    error           TEXT NOT NULL DEFAULT '',
    reason          TEXT NOT NULL DEFAULT '',
    next_retry_at   TIMESTAMP,
    delivered_at    TIMESTAMP,
    created_at      TIMESTAMP NOT NULL,
    updated_at      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dispatch_deliveries_sub ON dispatch_deliveries (subscription_id, created_at);
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
    attempt_number  INTEGER NOT NULL DEFAULT 1,
    fire_at         TIMESTAMP NOT NULL
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
    id               TEXT PRIMARY KEY,
    delivery_id      TEXT NOT NULL DEFAULT '',
    event_id         TEXT NOT NULL DEFAULT '',
    subscription_id  TEXT NOT NULL DEFAULT '',
    event_type       TEXT NOT NULL DEFAULT '',
    url              TEXT NOT NULL DEFAULT '',
    payload          TEXT NOT NULL DEFAULT '',
    error            TEXT NOT NULL DEFAULT '',
    attempt_count    INTEGER NOT NULL DEFAULT 0,
    last_status_code INTEGER NOT NULL DEFAULT 0,
    replayed_at      TIMESTAMP,
    failed_at        TIMESTAMP NOT NULL,
    created_at       TIMESTAMP NOT NULL,
    updated_at       TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dispatch_dlq_sub ON dispatch_dlq (subscription_id);
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

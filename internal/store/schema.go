package store

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    domain TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (domain, key)
);

CREATE TABLE IF NOT EXISTS hang_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    occurred_at TIMESTAMP NOT NULL,
    duration_ms INTEGER NOT NULL,
    during_startup BOOLEAN NOT NULL,
    evidence TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_hang_events_occurred ON hang_events(occurred_at);
CREATE INDEX IF NOT EXISTS idx_hang_events_kind ON hang_events(kind);
`

package store

const schema = `
CREATE TABLE IF NOT EXISTS trend_events (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    region           TEXT NOT NULL,
    title            TEXT NOT NULL,
    normalized_title TEXT NOT NULL,
    rank             INTEGER NOT NULL DEFAULT 0,
    search_volume    TEXT NOT NULL DEFAULT '',
    growth_percent   TEXT NOT NULL DEFAULT '',
    started_time     TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'Active',
    duration         TEXT NOT NULL DEFAULT '',
    related_queries  TEXT NOT NULL DEFAULT '[]',
    raw_payload      TEXT NOT NULL DEFAULT '',
    fetched_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_region_fetched ON trend_events(region, fetched_at);
CREATE INDEX IF NOT EXISTS idx_events_normalized ON trend_events(normalized_title);

CREATE TABLE IF NOT EXISTS dedupe_keys (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    region           TEXT NOT NULL,
    date_key         TEXT NOT NULL,
    normalized_title TEXT NOT NULL,
    created_at       DATETIME NOT NULL,
    expires_at       DATETIME NOT NULL,
    UNIQUE(region, date_key, normalized_title)
);

CREATE INDEX IF NOT EXISTS idx_dedupe_expires ON dedupe_keys(expires_at);
`

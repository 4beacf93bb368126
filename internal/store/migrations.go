package store

const schema = `
CREATE TABLE IF NOT EXISTS items (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    source       TEXT NOT NULL,
    external_id  TEXT NOT NULL,
    title        TEXT NOT NULL,
    authors      TEXT NOT NULL DEFAULT '[]',
    abstract     TEXT NOT NULL DEFAULT '',
    keywords     TEXT NOT NULL DEFAULT '[]',
    published_at DATETIME NOT NULL,
    venue        TEXT NOT NULL DEFAULT '',
    abs_url      TEXT NOT NULL DEFAULT '',
    pdf_url      TEXT NOT NULL DEFAULT '',
    created_at   DATETIME NOT NULL,
    updated_at   DATETIME NOT NULL,
    UNIQUE(source, external_id)
);

CREATE INDEX IF NOT EXISTS idx_items_source ON items(source);
CREATE INDEX IF NOT EXISTS idx_items_published_at ON items(published_at);

CREATE TABLE IF NOT EXISTS profiles (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    name       TEXT NOT NULL UNIQUE,
    categories TEXT NOT NULL DEFAULT '[]',
    keywords   TEXT NOT NULL DEFAULT '[]',
    active     BOOLEAN NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS summaries (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    item_id       INTEGER NOT NULL REFERENCES items(id),
    content       TEXT NOT NULL,
    generator_tag TEXT NOT NULL,
    created_at    DATETIME NOT NULL,
    UNIQUE(item_id, generator_tag)
);

CREATE INDEX IF NOT EXISTS idx_summaries_item ON summaries(item_id);

CREATE TABLE IF NOT EXISTS subscribers (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    identity     TEXT NOT NULL UNIQUE,
    profiles     TEXT NOT NULL DEFAULT '[]',
    daily_limit  INTEGER NOT NULL DEFAULT 10,
    history_days INTEGER NOT NULL DEFAULT 7,
    active       BOOLEAN NOT NULL DEFAULT 1,
    created_at   DATETIME NOT NULL,
    updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS deliveries (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    subscriber_id INTEGER NOT NULL REFERENCES subscribers(id),
    summary_id    INTEGER NOT NULL REFERENCES summaries(id),
    sent          BOOLEAN NOT NULL DEFAULT 0,
    sent_at       DATETIME,
    read          BOOLEAN NOT NULL DEFAULT 0,
    read_at       DATETIME,
    interested    BOOLEAN NOT NULL DEFAULT 0,
    created_at    DATETIME NOT NULL,
    UNIQUE(subscriber_id, summary_id)
);

CREATE INDEX IF NOT EXISTS idx_deliveries_subscriber ON deliveries(subscriber_id);
CREATE INDEX IF NOT EXISTS idx_deliveries_sent ON deliveries(subscriber_id, sent);
`

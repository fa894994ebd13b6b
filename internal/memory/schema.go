package memory

const VectorDimensions = 768

const schema = `
CREATE TABLE IF NOT EXISTS categories (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS entities (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id TEXT NOT NULL,
    name TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT 'person',
    aliases TEXT NOT NULL DEFAULT '[]',
    created_at DATETIME DEFAULT (datetime('now')),
    updated_at DATETIME DEFAULT (datetime('now')),
    UNIQUE(owner_id, name)
);

CREATE INDEX IF NOT EXISTS idx_entities_owner ON entities(owner_id);

CREATE TABLE IF NOT EXISTS records (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT 'knowledge',
    subject_name TEXT NOT NULL,
    content TEXT NOT NULL,
    predicate TEXT NOT NULL DEFAULT '',
    object TEXT NOT NULL DEFAULT '',
    importance REAL NOT NULL DEFAULT 0.5,
    sentiment REAL,
    is_historical INTEGER NOT NULL DEFAULT 0,
    effective_from DATETIME,
    expires_at DATETIME,
    recurrence TEXT NOT NULL DEFAULT '',
    sensitivity TEXT NOT NULL DEFAULT 'normal',
    status TEXT NOT NULL DEFAULT 'active',
    supersedes_id TEXT REFERENCES records(id),
    superseded_by_id TEXT REFERENCES records(id),
    version INTEGER NOT NULL DEFAULT 1,
    pinned INTEGER NOT NULL DEFAULT 0,
    access_count INTEGER NOT NULL DEFAULT 0,
    last_accessed DATETIME,
    decayed_at DATETIME,
    created_at DATETIME DEFAULT (datetime('now')),
    updated_at DATETIME DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_records_owner_status ON records(owner_id, status);
CREATE INDEX IF NOT EXISTS idx_records_subject ON records(owner_id, subject_name, status);
CREATE INDEX IF NOT EXISTS idx_records_category ON records(owner_id, category, status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_records_slot_active
    ON records(owner_id, subject_name, predicate)
    WHERE status = 'active' AND predicate != '';

CREATE TABLE IF NOT EXISTS summaries (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    category TEXT NOT NULL,
    summary_text TEXT NOT NULL,
    member_ids TEXT NOT NULL DEFAULT '[]',
    version INTEGER NOT NULL DEFAULT 1,
    last_synthesized DATETIME DEFAULT (datetime('now')),
    UNIQUE(owner_id, category)
);

CREATE TABLE IF NOT EXISTS links (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id TEXT NOT NULL REFERENCES records(id),
    target_id TEXT NOT NULL REFERENCES records(id),
    relation TEXT NOT NULL DEFAULT 'related',
    strength REAL NOT NULL DEFAULT 1.0,
    created_at DATETIME DEFAULT (datetime('now')),
    UNIQUE(source_id, target_id, relation)
);

CREATE TABLE IF NOT EXISTS operations (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    candidate_text TEXT NOT NULL,
    similar_ids TEXT NOT NULL DEFAULT '[]',
    op TEXT NOT NULL,
    merge_strategy TEXT NOT NULL DEFAULT '',
    reasoning TEXT NOT NULL DEFAULT '',
    result_ids TEXT NOT NULL DEFAULT '[]',
    status TEXT NOT NULL DEFAULT 'ok',
    elapsed_ms INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_operations_owner ON operations(owner_id, created_at);

CREATE TABLE IF NOT EXISTS access_log (
    batch_id TEXT NOT NULL,
    record_id TEXT NOT NULL,
    accessed_at DATETIME DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_access_log_batch ON access_log(batch_id);
CREATE INDEX IF NOT EXISTS idx_access_log_record ON access_log(record_id);
`

const vecSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS vec_records USING vec0(
    record_id TEXT PRIMARY KEY,
    owner_id TEXT PARTITION KEY,
    embedding FLOAT[768] distance_metric=cosine
);

CREATE VIRTUAL TABLE IF NOT EXISTS vec_summaries USING vec0(
    summary_id TEXT PRIMARY KEY,
    owner_id TEXT PARTITION KEY,
    embedding FLOAT[768] distance_metric=cosine
);
`

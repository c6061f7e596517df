package db

// The url column is unique among non-NULL values, which lets every
// unpublished post share NULL while the index post holds the empty string.
const schema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    working_title TEXT NOT NULL DEFAULT '',
    suggested_location TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT '',
    url TEXT UNIQUE,
    static_group TEXT,
    static_rank INTEGER,
    draft_id TEXT,
    published_at DATETIME,
    republished_at DATETIME,
    summary TEXT NOT NULL DEFAULT '',
    content BLOB,
    created_at DATETIME NOT NULL,
    CHECK (url IS NULL OR static_group IS NULL),
    CHECK ((static_group IS NULL) = (static_rank IS NULL))
);

CREATE INDEX IF NOT EXISTS posts_static_order ON posts (static_group, static_rank);
CREATE INDEX IF NOT EXISTS posts_created_at ON posts (created_at);
CREATE INDEX IF NOT EXISTS posts_published_at ON posts (published_at);

CREATE TABLE IF NOT EXISTS drafts (
    id TEXT PRIMARY KEY,
    post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    title TEXT NOT NULL DEFAULT '',
    content BLOB,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS drafts_post_created ON drafts (post_id, created_at);

CREATE TABLE IF NOT EXISTS images (
    id TEXT PRIMARY KEY,
    post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    hash TEXT NOT NULL,
    filename TEXT NOT NULL,
    mimetype TEXT NOT NULL,
    original BLOB,
    original_width INTEGER NOT NULL DEFAULT 0,
    original_height INTEGER NOT NULL DEFAULT 0,
    normal BLOB,
    normal_width INTEGER NOT NULL DEFAULT 0,
    normal_height INTEGER NOT NULL DEFAULT 0,
    thumbnail BLOB,
    thumbnail_width INTEGER NOT NULL DEFAULT 0,
    thumbnail_height INTEGER NOT NULL DEFAULT 0,
    blob_key TEXT,
    published INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    UNIQUE (post_id, filename)
);
`

// Tables lists the tables created by InitDB.
var Tables = []string{"posts", "drafts", "images"}

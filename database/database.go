package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // Import the SQLite3 driver
)

const schema = `
CREATE TABLE IF NOT EXISTS curated_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    author_id TEXT NOT NULL,
    author_display_name TEXT NOT NULL DEFAULT '',
    author_avatar_url TEXT,
    content TEXT NOT NULL DEFAULT '',
    source_channel_id TEXT NOT NULL,
    source_message_id TEXT NOT NULL,
    attachment_urls TEXT NOT NULL DEFAULT '[]',
    star_count INTEGER NOT NULL DEFAULT 0 CHECK (star_count >= 0),
    status TEXT NOT NULL CHECK (status IN ('in_review', 'accepted', 'denied')),
    posted_message_id TEXT NOT NULL DEFAULT '',
    posted_channel_id TEXT NOT NULL DEFAULT '',
    reply_source_message_id TEXT,
    reply_author_display_name TEXT,
    is_forwarded INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_curated_messages_active_source
    ON curated_messages (source_message_id) WHERE status <> 'denied';

CREATE INDEX IF NOT EXISTS idx_curated_messages_posted
    ON curated_messages (posted_message_id);

CREATE TABLE IF NOT EXISTS channel_overrides (
    channel_id TEXT PRIMARY KEY,
    threshold INTEGER NOT NULL CHECK (threshold > 0)
);`

// InitDB opens the SQLite database at dbPath and makes sure the starboard
// schema exists.
func InitDB(dbPath string) (*sql.DB, error) {
	// Ensure the directory for the database file exists.
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open the SQLite database. It will be created if it doesn't exist.
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer; one connection keeps writers from tripping
	// over each other's locks.
	db.SetMaxOpenConns(1)

	// Ping the database to verify the connection.
	if err = db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create starboard schema: %w", err)
	}

	log.Println("Successfully connected to the database at", dbPath)
	return db, nil
}

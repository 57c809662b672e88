// Package storage implements the relay's durable store: the client
// registry and the per-recipient message queue, backed by sqlite.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrNameTaken = errors.New("name already registered")
)

// DB manages the relay database
type DB struct {
	db *sql.DB
}

// Open opens the relay database at dbPath, creating the schema if needed
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	// sqlite allows a single writer; serializing at the pool level keeps
	// concurrent store operations from tripping over the write lock
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %v", err)
	}

	rdb := &DB{db: db}

	if err := rdb.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	clients, _ := rdb.CountClients()
	messages, _ := rdb.CountQueuedMessages()
	log.Printf("Database initialized at %s (%d clients, %d queued messages)", dbPath, clients, messages)

	return rdb, nil
}

// initSchema creates database tables
func (d *DB) initSchema() error {
	schema := `
	-- Registered clients
	CREATE TABLE IF NOT EXISTS clients (
		id BLOB PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		public_key BLOB NOT NULL,
		last_seen INTEGER NOT NULL
	);

	-- Queued messages awaiting pickup. AUTOINCREMENT keeps message ids
	-- strictly increasing even after drained rows are deleted.
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		to_client BLOB NOT NULL,
		from_client BLOB NOT NULL,
		type INTEGER NOT NULL,
		content BLOB
	);

	-- Index for fast drain by recipient
	CREATE INDEX IF NOT EXISTS idx_messages_to ON messages(to_client, id);
	`

	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %v", err)
	}

	return nil
}

// CountClients returns the number of registered clients
func (d *DB) CountClients() (int, error) {
	var count int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM clients").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count clients: %v", err)
	}
	return count, nil
}

// CountQueuedMessages returns the number of undelivered messages
func (d *DB) CountQueuedMessages() (int, error) {
	var count int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages: %v", err)
	}
	return count, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// scanErr maps sql.ErrNoRows to the package sentinel
func scanErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultPath is the default database location
const DefaultPath = "junoscope.db"

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
	path string
}

// New opens or creates the SQLite database at the given path
func New(path string) (*DB, error) {
	if path == "" {
		path = DefaultPath
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// pragmas below are per connection
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	db := &DB{conn: conn, path: path}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.conn.Close()
}

// Path returns the database file path
func (d *DB) Path() string {
	return d.path
}

// migrate runs the database schema migrations
func (d *DB) migrate() error {
	_, err := d.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	var version int
	err = d.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return err
	}

	migrations := []string{
		migrationV1,
		migrationV2,
	}

	for i, migration := range migrations {
		v := i + 1
		if v <= version {
			continue
		}

		tx, err := d.conn.Begin()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(migration); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration v%d failed: %w", v, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", v); err != nil {
			tx.Rollback()
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

// migrationV1 creates the inventory schema
const migrationV1 = `
-- One row per collection run
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    devices INTEGER DEFAULT 0,
    failed INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

-- Routers, keyed by node name
CREATE TABLE IF NOT EXISTS devices (
    id INTEGER PRIMARY KEY,
    name TEXT UNIQUE NOT NULL,
    address TEXT,
    site TEXT,
    last_run TEXT REFERENCES runs(id),
    last_status TEXT,
    last_error TEXT,
    first_seen TIMESTAMP NOT NULL,
    last_seen TIMESTAMP NOT NULL
);

-- Hardware inventory, one row per device slot and type
CREATE TABLE IF NOT EXISTS components (
    id INTEGER PRIMARY KEY,
    device_id INTEGER NOT NULL REFERENCES devices(id),
    slot TEXT NOT NULL,
    type TEXT NOT NULL,
    part_number TEXT,
    serial TEXT,
    model TEXT,
    version TEXT,
    status TEXT,
    comments TEXT,
    state TEXT NOT NULL DEFAULT 'present',
    first_seen TIMESTAMP NOT NULL,
    last_seen TIMESTAMP NOT NULL,
    UNIQUE(device_id, slot, type)
);

CREATE INDEX IF NOT EXISTS idx_components_serial ON components(serial);
CREATE INDEX IF NOT EXISTS idx_components_state ON components(state);

-- Inventory changes between runs
CREATE TABLE IF NOT EXISTS component_events (
    id INTEGER PRIMARY KEY,
    component_id INTEGER NOT NULL REFERENCES components(id),
    device_id INTEGER NOT NULL REFERENCES devices(id),
    run_id TEXT REFERENCES runs(id),
    event_type TEXT NOT NULL,
    old_serial TEXT,
    new_serial TEXT,
    details TEXT,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_device ON component_events(device_id);
CREATE INDEX IF NOT EXISTS idx_events_time ON component_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_type ON component_events(event_type);
`

// migrationV2 adds per-run chassis alarms
const migrationV2 = `
CREATE TABLE IF NOT EXISTS alarms (
    id INTEGER PRIMARY KEY,
    run_id TEXT NOT NULL REFERENCES runs(id),
    device_id INTEGER NOT NULL REFERENCES devices(id),
    alarm_time TEXT,
    class TEXT,
    description TEXT NOT NULL,
    type TEXT,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alarms_run ON alarms(run_id);
CREATE INDEX IF NOT EXISTS idx_alarms_device ON alarms(device_id);
`

// Run is one collection pass over the fleet
type Run struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Devices    int        `json:"devices"`
	Failed     int        `json:"failed"`
}

// DeviceRecord represents a router in the database
type DeviceRecord struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Address    string    `json:"address,omitempty"`
	Site       string    `json:"site,omitempty"`
	LastRun    string    `json:"last_run,omitempty"`
	LastStatus string    `json:"last_status"`
	LastError  string    `json:"last_error,omitempty"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// ComponentRecord represents a hardware component in the database
type ComponentRecord struct {
	ID         int64     `json:"id"`
	Device     string    `json:"device"`
	Slot       string    `json:"slot"`
	Type       string    `json:"type"`
	PartNumber string    `json:"part_number"`
	Serial     string    `json:"serial"`
	Model      string    `json:"model"`
	Version    string    `json:"version"`
	Status     string    `json:"status"`
	Comments   string    `json:"comments,omitempty"`
	State      string    `json:"state"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// ComponentEvent represents an inventory change
type ComponentEvent struct {
	ID          int64     `json:"id"`
	ComponentID int64     `json:"component_id"`
	Device      string    `json:"device"`
	RunID       string    `json:"run_id,omitempty"`
	EventType   string    `json:"event_type"`
	Slot        string    `json:"slot"`
	Type        string    `json:"type"`
	OldSerial   string    `json:"old_serial,omitempty"`
	NewSerial   string    `json:"new_serial,omitempty"`
	Details     string    `json:"details,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// AlarmRecord is a chassis alarm seen during a run
type AlarmRecord struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id"`
	Device      string    `json:"device"`
	AlarmTime   string    `json:"alarm_time,omitempty"`
	Class       string    `json:"class"`
	Description string    `json:"description"`
	Type        string    `json:"type,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Event types
const (
	EventDiscovered = "discovered"
	EventReplaced   = "replaced"
	EventMissing    = "missing"
	EventReturned   = "returned"
)

// Component states
const (
	StatePresent = "present"
	StateMissing = "missing"
)

// Device statuses
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run sources
const (
	SourceLive   = "live"
	SourceReplay = "replay"
)

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

package db

import (
	"database/sql"
	"fmt"
	"time"
)

func recordEvent(tx *sql.Tx, componentID, deviceID int64, runID, eventType, oldSerial, newSerial, details string, at time.Time) error {
	_, err := tx.Exec(`
		INSERT INTO component_events (component_id, device_id, run_id, event_type, old_serial, new_serial, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, componentID, deviceID, nullString(runID), eventType, nullString(oldSerial), nullString(newSerial),
		nullString(details), at)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

const eventColumns = `
	SELECT e.id, e.component_id, dv.name, COALESCE(e.run_id, ''), e.event_type, c.slot, c.type,
		COALESCE(e.old_serial, ''), COALESCE(e.new_serial, ''), COALESCE(e.details, ''), e.timestamp
	FROM component_events e
	JOIN components c ON c.id = e.component_id
	JOIN devices dv ON dv.id = e.device_id
`

// GetRecentEvents returns the most recent events, optionally for one device
func (d *DB) GetRecentEvents(device string, limit int) ([]*ComponentEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.conn.Query(eventColumns+`
		WHERE ? = '' OR dv.name = ?
		ORDER BY e.timestamp DESC, e.id DESC
		LIMIT ?
	`, device, device, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetEventsByType returns events of a specific type
func (d *DB) GetEventsByType(eventType string, limit int) ([]*ComponentEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.conn.Query(eventColumns+`
		WHERE e.event_type = ?
		ORDER BY e.timestamp DESC, e.id DESC
		LIMIT ?
	`, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by type: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetRunEvents returns the events recorded by one run
func (d *DB) GetRunEvents(runID string) ([]*ComponentEvent, error) {
	rows, err := d.conn.Query(eventColumns+`
		WHERE e.run_id = ?
		ORDER BY e.id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*ComponentEvent, error) {
	var events []*ComponentEvent
	for rows.Next() {
		var event ComponentEvent
		err := rows.Scan(
			&event.ID, &event.ComponentID, &event.Device, &event.RunID, &event.EventType,
			&event.Slot, &event.Type, &event.OldSerial, &event.NewSerial, &event.Details,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, &event)
	}

	return events, rows.Err()
}

package db

import (
	"fmt"
)

// GetAlarms returns the alarms stored for a run. An empty runID selects the
// latest run that recorded any.
func (d *DB) GetAlarms(runID string) ([]*AlarmRecord, error) {
	if runID == "" {
		err := d.conn.QueryRow(`
			SELECT COALESCE((SELECT run_id FROM alarms ORDER BY timestamp DESC, id DESC LIMIT 1), '')
		`).Scan(&runID)
		if err != nil {
			return nil, fmt.Errorf("failed to find latest alarms: %w", err)
		}
		if runID == "" {
			return nil, nil
		}
	}

	rows, err := d.conn.Query(`
		SELECT a.id, a.run_id, dv.name, COALESCE(a.alarm_time, ''), COALESCE(a.class, ''),
			a.description, COALESCE(a.type, ''), a.timestamp
		FROM alarms a
		JOIN devices dv ON dv.id = a.device_id
		WHERE a.run_id = ?
		ORDER BY dv.name, a.id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alarms: %w", err)
	}
	defer rows.Close()

	var out []*AlarmRecord
	for rows.Next() {
		var a AlarmRecord
		err := rows.Scan(&a.ID, &a.RunID, &a.Device, &a.AlarmTime, &a.Class, &a.Description, &a.Type, &a.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alarm: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/junoscope/junoscope/internal/chassis"
	"github.com/junoscope/junoscope/internal/junos"
)

// Snapshot is what one device contributed to a run
type Snapshot struct {
	Name    string
	Address string
	Site    string
	Error   string

	// HardwareKnown is false when the chassis inventory could not be read;
	// stored components are then left untouched.
	HardwareKnown bool
	Components    []chassis.HardwareComponent
	Alarms        []junos.Alarm
}

type componentKey struct {
	slot, typ string
}

// RecordDevice stores one device's snapshot for a run: the device row, the
// component inventory with change events, and the run's alarms.
func (d *DB) RecordDevice(runID string, snap Snapshot) error {
	now := time.Now().UTC()

	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback()

	status := StatusOK
	if snap.Error != "" {
		status = StatusFailed
	}
	var deviceID int64
	err = tx.QueryRow(`
		INSERT INTO devices (name, address, site, last_run, last_status, last_error, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			address = COALESCE(excluded.address, address),
			site = COALESCE(excluded.site, site),
			last_run = excluded.last_run,
			last_status = excluded.last_status,
			last_error = excluded.last_error,
			last_seen = excluded.last_seen
		RETURNING id
	`, snap.Name, nullString(snap.Address), nullString(snap.Site), runID, status,
		nullString(snap.Error), now, now).Scan(&deviceID)
	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}

	if snap.HardwareKnown {
		if err := recordComponents(tx, deviceID, runID, snap.Components, now); err != nil {
			return err
		}
	}

	for _, a := range snap.Alarms {
		desc := a.Description
		if desc == "" {
			desc = a.ShortDescription
		}
		_, err := tx.Exec(`
			INSERT INTO alarms (run_id, device_id, alarm_time, class, description, type, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, runID, deviceID, nullString(a.Time), nullString(a.Class), desc, nullString(a.Type), now)
		if err != nil {
			return fmt.Errorf("failed to record alarm: %w", err)
		}
	}

	return tx.Commit()
}

type storedComponent struct {
	id     int64
	serial string
	state  string
}

func recordComponents(tx *sql.Tx, deviceID int64, runID string, components []chassis.HardwareComponent, now time.Time) error {
	rows, err := tx.Query(`
		SELECT id, slot, type, COALESCE(serial, ''), state FROM components WHERE device_id = ?
	`, deviceID)
	if err != nil {
		return fmt.Errorf("failed to query components: %w", err)
	}
	stored := make(map[componentKey]storedComponent)
	for rows.Next() {
		var k componentKey
		var c storedComponent
		if err := rows.Scan(&c.id, &k.slot, &k.typ, &c.serial, &c.state); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan component: %w", err)
		}
		stored[k] = c
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	seen := make(map[componentKey]bool)
	for _, c := range components {
		k := componentKey{c.Slot, c.Type}
		if seen[k] {
			continue
		}
		seen[k] = true

		prev, exists := stored[k]
		if !exists {
			res, err := tx.Exec(`
				INSERT INTO components (device_id, slot, type, part_number, serial, model, version, status, comments, state, first_seen, last_seen)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, deviceID, c.Slot, c.Type, nullString(c.PartNumber), nullString(c.Serial), nullString(c.Model),
				nullString(c.Version), nullString(c.Status), nullString(c.Comments), StatePresent, now, now)
			if err != nil {
				return fmt.Errorf("failed to insert component: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to read component id: %w", err)
			}
			if err := recordEvent(tx, id, deviceID, runID, EventDiscovered, "", c.Serial, c.Model, now); err != nil {
				return err
			}
			continue
		}

		_, err := tx.Exec(`
			UPDATE components SET
				part_number = ?, serial = ?, model = ?, version = ?, status = ?, comments = ?,
				state = ?, last_seen = ?
			WHERE id = ?
		`, nullString(c.PartNumber), nullString(c.Serial), nullString(c.Model), nullString(c.Version),
			nullString(c.Status), nullString(c.Comments), StatePresent, now, prev.id)
		if err != nil {
			return fmt.Errorf("failed to update component: %w", err)
		}

		switch {
		case prev.serial != "" && c.Serial != "" && prev.serial != c.Serial:
			err = recordEvent(tx, prev.id, deviceID, runID, EventReplaced, prev.serial, c.Serial, c.Model, now)
		case prev.state == StateMissing:
			err = recordEvent(tx, prev.id, deviceID, runID, EventReturned, prev.serial, c.Serial, c.Model, now)
		}
		if err != nil {
			return err
		}
	}

	for k, prev := range stored {
		if seen[k] || prev.state == StateMissing {
			continue
		}
		if _, err := tx.Exec(`UPDATE components SET state = ? WHERE id = ?`, StateMissing, prev.id); err != nil {
			return fmt.Errorf("failed to mark component missing: %w", err)
		}
		if err := recordEvent(tx, prev.id, deviceID, runID, EventMissing, prev.serial, "", "", now); err != nil {
			return err
		}
	}
	return nil
}

// ListDevices returns every known device by name
func (d *DB) ListDevices() ([]*DeviceRecord, error) {
	rows, err := d.conn.Query(`
		SELECT id, name, COALESCE(address, ''), COALESCE(site, ''), COALESCE(last_run, ''),
			COALESCE(last_status, ''), COALESCE(last_error, ''), first_seen, last_seen
		FROM devices ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []*DeviceRecord
	for rows.Next() {
		var r DeviceRecord
		err := rows.Scan(&r.ID, &r.Name, &r.Address, &r.Site, &r.LastRun,
			&r.LastStatus, &r.LastError, &r.FirstSeen, &r.LastSeen)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, &r)
	}
	return devices, rows.Err()
}

// ListComponents returns the inventory of one device, or of all devices
// when device is empty. Missing components are included.
func (d *DB) ListComponents(device string) ([]*ComponentRecord, error) {
	rows, err := d.conn.Query(`
		SELECT c.id, dv.name, c.slot, c.type, COALESCE(c.part_number, ''), COALESCE(c.serial, ''),
			COALESCE(c.model, ''), COALESCE(c.version, ''), COALESCE(c.status, ''),
			COALESCE(c.comments, ''), c.state, c.first_seen, c.last_seen
		FROM components c
		JOIN devices dv ON dv.id = c.device_id
		WHERE ? = '' OR dv.name = ?
		ORDER BY dv.name, c.slot, c.type
	`, device, device)
	if err != nil {
		return nil, fmt.Errorf("failed to query components: %w", err)
	}
	defer rows.Close()

	var out []*ComponentRecord
	for rows.Next() {
		var r ComponentRecord
		err := rows.Scan(&r.ID, &r.Device, &r.Slot, &r.Type, &r.PartNumber, &r.Serial,
			&r.Model, &r.Version, &r.Status, &r.Comments, &r.State, &r.FirstSeen, &r.LastSeen)
		if err != nil {
			return nil, fmt.Errorf("failed to scan component: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// FindSerial returns the components that carry a serial number
func (d *DB) FindSerial(serial string) ([]*ComponentRecord, error) {
	all, err := d.ListComponents("")
	if err != nil {
		return nil, err
	}
	var out []*ComponentRecord
	for _, c := range all {
		if c.Serial == serial {
			out = append(out, c)
		}
	}
	return out, nil
}

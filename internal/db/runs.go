package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StartRun records a new run and returns it
func (d *DB) StartRun(source string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Source:    source,
		StartedAt: time.Now().UTC(),
	}
	_, err := d.conn.Exec(`
		INSERT INTO runs (id, source, started_at) VALUES (?, ?, ?)
	`, run.ID, run.Source, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the run with its end time and device counts
func (d *DB) FinishRun(id string, devices, failed int) error {
	res, err := d.conn.Exec(`
		UPDATE runs SET finished_at = ?, devices = ?, failed = ? WHERE id = ?
	`, time.Now().UTC(), devices, failed, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// GetRun returns a run by id, nil if unknown
func (d *DB) GetRun(id string) (*Run, error) {
	row := d.conn.QueryRow(`
		SELECT id, source, started_at, finished_at, devices, failed FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// ListRuns returns the most recent runs first
func (d *DB) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`
		SELECT id, source, started_at, finished_at, devices, failed
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var finished sql.NullTime
	if err := s.Scan(&run.ID, &run.Source, &run.StartedAt, &finished, &run.Devices, &run.Failed); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}

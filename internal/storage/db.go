package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cptspacemanspiff/adjbacklight/internal/collector"
)

const schema = `
CREATE TABLE IF NOT EXISTS backlight_samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	device TEXT NOT NULL,
	brightness INTEGER NOT NULL,
	max_brightness INTEGER NOT NULL,
	source TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_backlight_ts ON backlight_samples(timestamp);
CREATE INDEX IF NOT EXISTS idx_backlight_device ON backlight_samples(device, timestamp);
`

// DB wraps a SQLite database of backlight history.
type DB struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// InsertBacklightSample inserts a backlight sample.
func (d *DB) InsertBacklightSample(s collector.BacklightSample) error {
	_, err := d.db.Exec(
		"INSERT INTO backlight_samples (timestamp, device, brightness, max_brightness, source) VALUES (?, ?, ?, ?, ?)",
		s.Timestamp, s.Device, s.Brightness, s.MaxBrightness, s.Source,
	)
	return err
}

// InsertBacklightSamples batch-inserts samples in a single transaction.
func (d *DB) InsertBacklightSamples(samples []collector.BacklightSample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO backlight_samples (timestamp, device, brightness, max_brightness, source) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, s := range samples {
		if _, err := stmt.Exec(s.Timestamp, s.Device, s.Brightness, s.MaxBrightness, s.Source); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LatestBacklightSample returns the most recent sample for device, or nil
// if there is none.
func (d *DB) LatestBacklightSample(device string) (*collector.BacklightSample, error) {
	row := d.db.QueryRow(
		"SELECT timestamp, device, brightness, max_brightness, source FROM backlight_samples WHERE device = ? ORDER BY timestamp DESC, id DESC LIMIT 1",
		device,
	)
	var s collector.BacklightSample
	err := row.Scan(&s.Timestamp, &s.Device, &s.Brightness, &s.MaxBrightness, &s.Source)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// LatestBacklightSamples returns, for every recorded device, the most recent
// sample taken at or before the given unix epoch, ordered by device name.
func (d *DB) LatestBacklightSamples(before int64) ([]collector.BacklightSample, error) {
	rows, err := d.db.Query(
		`SELECT s.timestamp, s.device, s.brightness, s.max_brightness, s.source
		 FROM backlight_samples s
		 WHERE s.id = (
			SELECT id FROM backlight_samples
			WHERE device = s.device AND timestamp <= ?
			ORDER BY timestamp DESC, id DESC LIMIT 1
		 )
		 ORDER BY s.device`,
		before,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var samples []collector.BacklightSample
	for rows.Next() {
		var s collector.BacklightSample
		if err := rows.Scan(&s.Timestamp, &s.Device, &s.Brightness, &s.MaxBrightness, &s.Source); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// BacklightSamplesInRange returns backlight samples within the given time range.
func (d *DB) BacklightSamplesInRange(from, to int64) ([]collector.BacklightSample, error) {
	rows, err := d.db.Query(
		"SELECT timestamp, device, brightness, max_brightness, source FROM backlight_samples WHERE timestamp >= ? AND timestamp <= ? ORDER BY timestamp, id",
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var samples []collector.BacklightSample
	for rows.Next() {
		var s collector.BacklightSample
		if err := rows.Scan(&s.Timestamp, &s.Device, &s.Brightness, &s.MaxBrightness, &s.Source); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

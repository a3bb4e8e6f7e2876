package storage

import "fmt"

// DeleteOlderThan deletes backlight samples recorded before the given unix
// epoch, except the newest sample of each device, which is kept so a
// restore after a long suspend still has a value. Returns the number of
// deleted rows.
func (d *DB) DeleteOlderThan(before int64) (int64, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}

	res, err := tx.Exec(
		`DELETE FROM backlight_samples
		 WHERE timestamp < ?
		 AND id NOT IN (
			SELECT (SELECT id FROM backlight_samples i WHERE i.device = o.device ORDER BY timestamp DESC, id DESC LIMIT 1)
			FROM (SELECT DISTINCT device FROM backlight_samples) o
		 )`,
		before,
	)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("delete from backlight_samples: %w", err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

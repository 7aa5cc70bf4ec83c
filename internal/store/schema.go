package store

import (
	"database/sql"

	"github.com/Quicklotz/benchd/internal/errors"
)

func initSchema(db *sql.DB) error {
	errFactory := errors.New()

	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS test_runs (
            id TEXT PRIMARY KEY,
            station_id TEXT NOT NULL,
            outlet_id TEXT NOT NULL,
            profile_id TEXT NOT NULL,
            status TEXT NOT NULL,
            started_at INTEGER NOT NULL,
            ended_at INTEGER,
            result TEXT NOT NULL DEFAULT ''
        );

        CREATE INDEX IF NOT EXISTS idx_test_runs_outlet
            ON test_runs(outlet_id, status);

        CREATE TABLE IF NOT EXISTS readings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            run_id TEXT NOT NULL,
            ts INTEGER NOT NULL,
            watts REAL,
            volts REAL,
            amps REAL,
            temp_c REAL,
            pressure REAL,
            raw BLOB
        );

        CREATE INDEX IF NOT EXISTS idx_readings_run_ts
            ON readings(run_id, ts DESC);

        CREATE TABLE IF NOT EXISTS anomalies (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            run_id TEXT NOT NULL,
            type TEXT NOT NULL,
            message TEXT NOT NULL,
            ts INTEGER NOT NULL,
            observed REAL NOT NULL,
            threshold REAL NOT NULL
        );

        CREATE INDEX IF NOT EXISTS idx_anomalies_run
            ON anomalies(run_id);
    `)
	if err != nil {
		return errFactory.Wrap(ErrSchemaInit, err)
	}

	return nil
}

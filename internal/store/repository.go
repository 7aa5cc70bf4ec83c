package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Quicklotz/benchd/internal/bench"
	"github.com/Quicklotz/benchd/internal/errors"
	"github.com/Quicklotz/benchd/internal/logger"
	"github.com/google/uuid"

	_ "github.com/mattn/go-sqlite3"
)

type sqliteRepository struct {
	db     *sql.DB
	logger logger.Logger
	mu     sync.Mutex
}

func NewRepository(cfg Config, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Debug().Msgf("Initializing bench repository at: %s", cfg.DBPath)

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	return &sqliteRepository{
		db:     db,
		logger: log,
	}, nil
}

func (r *sqliteRepository) CreateRun(ctx context.Context, run *bench.TestRun) error {
	errFactory := errors.New()
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO test_runs (id, station_id, outlet_id, profile_id, status, started_at, result)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `,
		run.ID.String(),
		run.StationID.String(),
		run.OutletID.String(),
		run.ProfileID.String(),
		run.Status.String(),
		run.StartedAt.UnixNano(),
		run.Result,
	)
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) GetRun(ctx context.Context, runID uuid.UUID) (*bench.TestRun, error) {
	errFactory := errors.New()

	row := r.db.QueryRowContext(ctx, `
        SELECT id, station_id, outlet_id, profile_id, status, started_at, ended_at, result
        FROM test_runs WHERE id = ?
    `, runID.String())

	var (
		id, stationID, outletID, profileID, status, result string
		startedAt                                          int64
		endedAt                                            sql.NullInt64
	)
	if err := row.Scan(&id, &stationID, &outletID, &profileID, &status, &startedAt, &endedAt, &result); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errFactory.WithData(ErrRunNotFound, runID.String())
		}
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	run := &bench.TestRun{
		ID:        uuid.MustParse(id),
		StationID: uuid.MustParse(stationID),
		OutletID:  uuid.MustParse(outletID),
		ProfileID: uuid.MustParse(profileID),
		Status:    bench.RunStatus(status),
		StartedAt: time.Unix(0, startedAt).UTC(),
		Result:    result,
	}
	if endedAt.Valid {
		run.EndedAt = time.Unix(0, endedAt.Int64).UTC()
	}

	anomalies, err := r.ListAnomalies(ctx, runID)
	if err != nil {
		return nil, err
	}
	run.Anomalies = anomalies

	return run, nil
}

func (r *sqliteRepository) UpdateRunStatus(ctx context.Context, runID uuid.UUID, status bench.RunStatus) (bool, error) {
	errFactory := errors.New()

	if !status.IsValid() {
		return false, errFactory.WithData(ErrInvalidRecord, status.String())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Terminal runs never transition again; racing updates lose quietly.
	var res sql.Result
	var err error
	if status.IsTerminal() {
		res, err = r.db.ExecContext(ctx, `
            UPDATE test_runs SET status = ?, ended_at = ?
            WHERE id = ? AND status NOT IN ('COMPLETED', 'FAILED', 'ABORTED')
        `, status.String(), time.Now().UTC().UnixNano(), runID.String())
	} else {
		res, err = r.db.ExecContext(ctx, `
            UPDATE test_runs SET status = ?
            WHERE id = ? AND status NOT IN ('COMPLETED', 'FAILED', 'ABORTED')
        `, status.String(), runID.String())
	}
	if err != nil {
		return false, errFactory.Wrap(ErrStorageAccess, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, errFactory.Wrap(ErrStorageAccess, err)
	}

	return affected > 0, nil
}

func (r *sqliteRepository) SetRunResult(ctx context.Context, runID uuid.UUID, result string) error {
	errFactory := errors.New()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.ExecContext(ctx, `
        UPDATE test_runs SET result = ? WHERE id = ?
    `, result, runID.String()); err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) ActiveRunForOutlet(ctx context.Context, outletID uuid.UUID) (uuid.UUID, bool, error) {
	errFactory := errors.New()

	row := r.db.QueryRowContext(ctx, `
        SELECT id FROM test_runs
        WHERE outlet_id = ? AND status IN ('PENDING', 'IN_PROGRESS')
        LIMIT 1
    `, outletID.String())

	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, errFactory.Wrap(ErrStorageAccess, err)
	}

	return uuid.MustParse(id), true, nil
}

func (r *sqliteRepository) InsertReading(ctx context.Context, reading *bench.Reading) error {
	errFactory := errors.New()
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO readings (run_id, ts, watts, volts, amps, temp_c, pressure, raw)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `,
		reading.RunID.String(),
		reading.Timestamp.UnixNano(),
		nullFloat(reading.Watts),
		nullFloat(reading.Volts),
		nullFloat(reading.Amps),
		nullFloat(reading.TempC),
		nullFloat(reading.Pressure),
		reading.Raw,
	)
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) LatestReading(ctx context.Context, runID uuid.UUID) (*bench.Reading, error) {
	readings, err := r.ListReadings(ctx, runID, 1)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, nil
	}

	return &readings[0], nil
}

func (r *sqliteRepository) ListReadings(ctx context.Context, runID uuid.UUID, limit int) ([]bench.Reading, error) {
	errFactory := errors.New()

	query := `
        SELECT id, run_id, ts, watts, volts, amps, temp_c, pressure, raw
        FROM readings WHERE run_id = ? ORDER BY ts DESC, id DESC
    `
	args := []any{runID.String()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var readings []bench.Reading
	for rows.Next() {
		var (
			id                                 int64
			rid                                string
			ts                                 int64
			watts, volts, amps, tempC, pressur sql.NullFloat64
			raw                                []byte
		)
		if err := rows.Scan(&id, &rid, &ts, &watts, &volts, &amps, &tempC, &pressur, &raw); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}

		readings = append(readings, bench.Reading{
			ID:        id,
			RunID:     uuid.MustParse(rid),
			Timestamp: time.Unix(0, ts).UTC(),
			Sample: bench.Sample{
				Watts:    floatPtr(watts),
				Volts:    floatPtr(volts),
				Amps:     floatPtr(amps),
				TempC:    floatPtr(tempC),
				Pressure: floatPtr(pressur),
				Raw:      raw,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return readings, nil
}

func (r *sqliteRepository) AddAnomaly(ctx context.Context, runID uuid.UUID, anomaly bench.Anomaly) error {
	errFactory := errors.New()
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO anomalies (run_id, type, message, ts, observed, threshold)
        VALUES (?, ?, ?, ?, ?, ?)
    `,
		runID.String(),
		string(anomaly.Type),
		anomaly.Message,
		anomaly.Timestamp.UnixNano(),
		anomaly.Observed,
		anomaly.Threshold,
	)
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) ListAnomalies(ctx context.Context, runID uuid.UUID) ([]bench.Anomaly, error) {
	errFactory := errors.New()

	rows, err := r.db.QueryContext(ctx, `
        SELECT type, message, ts, observed, threshold
        FROM anomalies WHERE run_id = ? ORDER BY id ASC
    `, runID.String())
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var anomalies []bench.Anomaly
	for rows.Next() {
		var (
			atype, message      string
			ts                  int64
			observed, threshold float64
		)
		if err := rows.Scan(&atype, &message, &ts, &observed, &threshold); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}

		anomalies = append(anomalies, bench.Anomaly{
			Type:      bench.AnomalyType(atype),
			Message:   message,
			Timestamp: time.Unix(0, ts).UTC(),
			Observed:  observed,
			Threshold: threshold,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return anomalies, nil
}

func (r *sqliteRepository) Close() error {
	errFactory := errors.New()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		r.logger.Error().Err(err).Msg("Failed to checkpoint WAL on close")
	}

	if err := r.db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// Package history persists applied sensor readings in a local sqlite
// database and answers the Sessions and Alerts page queries.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"vitalvest/internal/sensor"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts TEXT NOT NULL,
	source TEXT NOT NULL CHECK(source IN ('stream','poll','demo')),
	ambient_temp REAL,
	humidity REAL,
	pressure REAL,
	body_temp REAL,
	body_ambient REAL,
	accel_x REAL, accel_y REAL, accel_z REAL,
	gyro_x REAL, gyro_y REAL, gyro_z REAL,
	conductance REAL,
	hydration_pct REAL,
	hydration_state TEXT
);

CREATE INDEX IF NOT EXISTS idx_readings_ts ON readings(ts);
`

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts one applied reading. source is "stream", "poll" or "demo".
func (s *Store) Record(ctx context.Context, r sensor.Reading, source string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO readings(ts, source, ambient_temp, humidity, pressure,
	body_temp, body_ambient,
	accel_x, accel_y, accel_z, gyro_x, gyro_y, gyro_z,
	conductance, hydration_pct, hydration_state)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		r.SourceTimestamp.UTC().Format(time.RFC3339Nano), source,
		nf(r.Ambient.Temperature), nf(r.Ambient.Humidity), nf(r.Ambient.Pressure),
		nf(r.Body.ObjectTemperature), nf(r.Body.AmbientTemperature),
		nf(r.Motion.Acceleration.X), nf(r.Motion.Acceleration.Y), nf(r.Motion.Acceleration.Z),
		nf(r.Motion.Gyroscope.X), nf(r.Motion.Gyroscope.Y), nf(r.Motion.Gyroscope.Z),
		nf(r.Hydration.Conductance), nf(r.Hydration.Percentage), ns(r.Hydration.State))
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// Row is one persisted reading, pointer fields null where the sensor had no
// data.
type Row struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Source         string    `json:"source"`
	AmbientTemp    *float64  `json:"ambientTemp"`
	Humidity       *float64  `json:"humidity"`
	Pressure       *float64  `json:"pressure"`
	BodyTemp       *float64  `json:"bodyTemp"`
	Conductance    *float64  `json:"conductance"`
	HydrationPct   *float64  `json:"hydrationPct"`
	HydrationState *string   `json:"hydrationState"`
}

// Recent returns up to limit readings, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, ts, source, ambient_temp, humidity, pressure, body_temp,
	conductance, hydration_pct, hydration_state
FROM readings ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var ts string
		if err := rows.Scan(&r.ID, &ts, &r.Source, &r.AmbientTemp, &r.Humidity,
			&r.Pressure, &r.BodyTemp, &r.Conductance, &r.HydrationPct, &r.HydrationState); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Session summarises one hour of recorded readings.
type Session struct {
	Hour            time.Time `json:"hour"`
	Count           int       `json:"count"`
	AvgAmbientTemp  *float64  `json:"avgAmbientTemp"`
	MinAmbientTemp  *float64  `json:"minAmbientTemp"`
	MaxAmbientTemp  *float64  `json:"maxAmbientTemp"`
	AvgBodyTemp     *float64  `json:"avgBodyTemp"`
	AvgHydrationPct *float64  `json:"avgHydrationPct"`
}

// Sessions returns per-hour summaries, newest first, up to limit hours.
func (s *Store) Sessions(ctx context.Context, limit int) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT strftime('%Y-%m-%dT%H:00:00Z', ts) AS hour,
	COUNT(*),
	AVG(ambient_temp), MIN(ambient_temp), MAX(ambient_temp),
	AVG(body_temp), AVG(hydration_pct)
FROM readings
GROUP BY hour ORDER BY hour DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var hour string
		if err := rows.Scan(&hour, &sess.Count, &sess.AvgAmbientTemp,
			&sess.MinAmbientTemp, &sess.MaxAmbientTemp, &sess.AvgBodyTemp,
			&sess.AvgHydrationPct); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.Hour, _ = time.Parse(time.RFC3339, hour)
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Count returns the total number of stored readings.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM readings`).Scan(&n)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}

// nf converts a nullable float into a driver value.
func nf(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func ns(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

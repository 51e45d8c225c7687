package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"gomxbeacon/internal/beacon"
)

// ErrEncode reports a record that could not be serialised for storage
var ErrEncode = errors.New("failed to encode record")

// Store keeps decoded beacons in SQLite. Each beacon is kept as its JSON
// record plus one row per flattened field for per-field history queries.
type Store struct {
	db     *sql.DB
	logger *logrus.Logger
}

// Stored is a beacon read back from the store
type Stored struct {
	ID         string
	ReceivedAt time.Time
	Record     *beacon.Record
}

// Sample is one value of a field over time
type Sample struct {
	BeaconID   string
	ReceivedAt time.Time
	Value      float64
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema
func Open(ctx context.Context, path string, logger *logrus.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", path, err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}

	logger.WithField("path", path).Info("Opened beacon history store")

	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores a record and returns its generated id
func (s *Store) Insert(ctx context.Context, rec *beacon.Record, receivedAt time.Time) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("record cannot be nil")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncode, err)
	}

	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO beacons (beacon_id, received_unix_ns, beacon_type, eps_timestamp, record_json)
		 VALUES (?, ?, ?, ?, ?)`,
		id, receivedAt.UnixNano(), rec.Type, rec.Power.Timestamp, string(data),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert beacon: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO beacon_fields (beacon_id, subsystem, field, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare field insert: %w", err)
	}
	defer stmt.Close()

	// Non-finite readings stay in record_json only; SQLite stores NaN as NULL
	stored, skipped := 0, 0
	for _, f := range rec.Flatten() {
		if math.IsNaN(f.Value) || math.IsInf(f.Value, 0) {
			skipped++
			continue
		}
		if _, err := stmt.ExecContext(ctx, id, f.Subsystem, f.Name, f.Value); err != nil {
			return "", fmt.Errorf("failed to insert field %s.%s: %w", f.Subsystem, f.Name, err)
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit beacon: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"beacon_id": id,
		"fields":    stored,
		"skipped":   skipped,
	}).Debug("Stored beacon")

	return id, nil
}

// Count returns the number of stored beacons
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM beacons`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count beacons: %w", err)
	}
	return n, nil
}

// Latest returns up to limit beacons, newest first
func (s *Store) Latest(ctx context.Context, limit int) ([]Stored, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT beacon_id, received_unix_ns, record_json FROM beacons
		 ORDER BY received_unix_ns DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query beacons: %w", err)
	}
	defer rows.Close()

	var out []Stored
	for rows.Next() {
		var (
			id   string
			ns   int64
			data string
		)
		if err := rows.Scan(&id, &ns, &data); err != nil {
			return nil, fmt.Errorf("failed to scan beacon: %w", err)
		}

		rec := &beacon.Record{}
		if err := json.Unmarshal([]byte(data), rec); err != nil {
			return nil, fmt.Errorf("failed to decode stored beacon %s: %w", id, err)
		}

		out = append(out, Stored{ID: id, ReceivedAt: time.Unix(0, ns).UTC(), Record: rec})
	}

	return out, rows.Err()
}

// FieldHistory returns up to limit values of one field, oldest first. Tuple
// members are addressed as name_N, e.g. "temp_3".
func (s *Store) FieldHistory(ctx context.Context, subsystem, field string, limit int) ([]Sample, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT * FROM (
			SELECT f.beacon_id, b.received_unix_ns, f.value, b.rowid AS seq
			FROM beacon_fields f JOIN beacons b ON b.beacon_id = f.beacon_id
			WHERE f.subsystem = ? AND f.field = ?
			ORDER BY b.received_unix_ns DESC, b.rowid DESC LIMIT ?
		) ORDER BY received_unix_ns ASC, seq ASC`, subsystem, field, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query field history: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var (
			sample Sample
			ns     int64
			seq    int64
		)
		if err := rows.Scan(&sample.BeaconID, &ns, &sample.Value, &seq); err != nil {
			return nil, fmt.Errorf("failed to scan field sample: %w", err)
		}
		sample.ReceivedAt = time.Unix(0, ns).UTC()
		out = append(out, sample)
	}

	return out, rows.Err()
}

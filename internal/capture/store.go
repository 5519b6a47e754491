// Package capture records raw sensor frames to a sqlite database and
// replays recorded sessions back through the Sensor interface.
package capture

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/RobSmithDev/alienmotiontracker/internal/radar"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SessionMeta describes one recorded capture session.
type SessionMeta struct {
	ID          string
	StartedAt   time.Time
	Format      radar.FrameFormat
	FrameRateHz float64
}

// StoredFrame is one frame as recorded: the packed wire payload plus
// its header fields.
type StoredFrame struct {
	Seq       uint32
	Timestamp time.Time
	Flags     uint8
	Payload   []byte
}

// Store is the sqlite capture database. Schema is managed by embedded
// migrations; opening always migrates to the latest version.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the capture database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening capture db: %w", err)
	}
	// One writer at a time keeps modernc's sqlite happy under the
	// recorder's steady insert load.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrateUp() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession registers a new session and returns its ID.
func (s *Store) CreateSession(format radar.FrameFormat, frameRateHz float64, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, started_unix_nanos, channels, chirps_per_frame, samples_per_chirp, frame_rate_hz)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, startedAt.UnixNano(), format.Channels, format.ChirpsPerFrame, format.SamplesPerChirp, frameRateHz)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return id, nil
}

// AppendFrame stores one frame in a session.
func (s *Store) AppendFrame(sessionID string, seq uint32, ts time.Time, flags uint8, payload []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO frames (session_id, seq, ts_unix_nanos, flags, payload)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID, seq, ts.UnixNano(), flags, payload)
	if err != nil {
		return fmt.Errorf("appending frame %d: %w", seq, err)
	}
	return nil
}

// Session returns one session's metadata.
func (s *Store) Session(id string) (*SessionMeta, error) {
	row := s.db.QueryRow(`
		SELECT id, started_unix_nanos, channels, chirps_per_frame, samples_per_chirp, frame_rate_hz
		FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// Sessions lists all sessions, newest first.
func (s *Store) Sessions() ([]SessionMeta, error) {
	rows, err := s.db.Query(`
		SELECT id, started_unix_nanos, channels, chirps_per_frame, samples_per_chirp, frame_rate_hz
		FROM sessions ORDER BY started_unix_nanos DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionMeta
	for rows.Next() {
		meta, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *meta)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*SessionMeta, error) {
	var meta SessionMeta
	var startedNanos int64
	err := row.Scan(&meta.ID, &startedNanos, &meta.Format.Channels,
		&meta.Format.ChirpsPerFrame, &meta.Format.SamplesPerChirp, &meta.FrameRateHz)
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	meta.StartedAt = time.Unix(0, startedNanos)
	return &meta, nil
}

// Frames loads all frames of a session in sequence order.
func (s *Store) Frames(sessionID string) ([]StoredFrame, error) {
	rows, err := s.db.Query(`
		SELECT seq, ts_unix_nanos, flags, payload
		FROM frames WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading frames: %w", err)
	}
	defer rows.Close()

	var out []StoredFrame
	for rows.Next() {
		var f StoredFrame
		var tsNanos int64
		var flags int
		if err := rows.Scan(&f.Seq, &tsNanos, &flags, &f.Payload); err != nil {
			return nil, fmt.Errorf("scanning frame: %w", err)
		}
		f.Timestamp = time.Unix(0, tsNanos)
		f.Flags = uint8(flags)
		out = append(out, f)
	}
	return out, rows.Err()
}

// FrameCount returns the number of frames stored for a session.
func (s *Store) FrameCount(sessionID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM frames WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}

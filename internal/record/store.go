package record

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "modernc.org/sqlite"
)

// ErrStoreClosed indicates the underlying database connection is unavailable.
var ErrStoreClosed = errors.New("record: store closed")

// Store is the durable per-profile state of the dashboard client: one build
// record per pipeline, one log buffer per session, one auth session.
//
// SQLite keeps one writer at a time; the two pipelines use disjoint keys and
// last write wins, so no locking beyond the driver's is needed.
type Store struct {
	db        *sql.DB
	sessionID string
	log       *slog.Logger

	now func() time.Time
}

// Open opens (and creates if necessary) the database at path and brings the
// schema up to date. sessionID tags every record written by this process.
func Open(path, sessionID string, log *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer at a time, multiple readers with WAL.
	if _, err = db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err = db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err = migrateDB(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{
		db:        db,
		sessionID: sessionID,
		log:       log.With("component", "record"),
		now:       time.Now,
	}, nil
}

//go:embed migrations/*.sql
var migrations embed.FS

func migrationsFS() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

func migrateDB(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS(), ".")
	if err != nil {
		return err
	}

	databaseDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", databaseDriver)
	if err != nil {
		return err
	}

	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SessionID returns the session token records written by this store carry.
func (s *Store) SessionID() string {
	return s.sessionID
}

// Save writes rec for pipeline, stamping SavedAt and SessionID and replacing
// any prior record for that pipeline wholesale.
func (s *Store) Save(pipeline Pipeline, rec *BuildRecord) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}

	savedAt := s.now()
	_, err := s.db.Exec(`
		INSERT INTO build_records (pipeline, status, download_url, expires_in, message, saved_at, session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pipeline) DO UPDATE SET
			status = excluded.status,
			download_url = excluded.download_url,
			expires_in = excluded.expires_in,
			message = excluded.message,
			saved_at = excluded.saved_at,
			session_id = excluded.session_id
	`, string(pipeline), string(rec.Status), rec.DownloadURL, rec.ExpiresIn, rec.Message, savedAt.UnixMilli(), s.sessionID)
	if err != nil {
		return fmt.Errorf("save %s record: %w", pipeline, err)
	}

	s.log.Debug("saved build record", "pipeline", pipeline, "status", rec.Status)
	return nil
}

// Get reads the record for pipeline. It returns nil without error when no
// usable record exists: absent rows, corrupt rows (deleted on sight), and
// non-result rows older than MaxRecordAge (deleted as stale, since nothing
// can update them once the process that wrote them is gone).
//
// Result rows are exempt from MaxRecordAge; they stay readable for as long
// as their download window allows and are deleted once it lapses.
func (s *Store) Get(pipeline Pipeline) (*BuildRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}

	var (
		statusStr   string
		downloadURL string
		expiresIn   int
		message     string
		savedAtMs   int64
		sessionID   string
	)
	err := s.db.QueryRow(`
		SELECT status, download_url, expires_in, message, saved_at, session_id
		FROM build_records WHERE pipeline = ?
	`, string(pipeline)).Scan(&statusStr, &downloadURL, &expiresIn, &message, &savedAtMs, &sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s record: %w", pipeline, err)
	}

	status, known := StatusFromString(statusStr)
	if !known || (status == StatusResult && downloadURL == "") {
		// Self-heal: a row we cannot interpret is treated as absent.
		s.log.Warn("discarding corrupt build record", "pipeline", pipeline, "status", statusStr)
		_ = s.Clear(pipeline)
		return nil, nil
	}

	rec := &BuildRecord{
		Pipeline:    pipeline,
		Status:      status,
		SavedAt:     time.UnixMilli(savedAtMs),
		SessionID:   sessionID,
		DownloadURL: downloadURL,
		ExpiresIn:   expiresIn,
		Message:     message,
	}

	now := s.now()
	if status != StatusResult && now.Sub(rec.SavedAt) > MaxRecordAge {
		s.log.Info("discarding stale build record", "pipeline", pipeline, "status", status)
		_ = s.Clear(pipeline)
		return nil, nil
	}
	if rec.Expired(now) {
		s.log.Info("discarding expired result record", "pipeline", pipeline)
		_ = s.Clear(pipeline)
		return nil, nil
	}

	return rec, nil
}

// Clear deletes the record for pipeline. Deleting an absent record is not an
// error.
func (s *Store) Clear(pipeline Pipeline) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`DELETE FROM build_records WHERE pipeline = ?`, string(pipeline))
	if err != nil {
		return fmt.Errorf("clear %s record: %w", pipeline, err)
	}
	return nil
}

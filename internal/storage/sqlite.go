package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteStore persists index artifacts in a single SQLite database
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStore opens (creating if needed) the database and applies migrations
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

func (s *SQLiteStore) Location() string {
	return s.path
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Exists(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM index_meta").Scan(&n); err != nil {
		return false, fmt.Errorf("failed to query index_meta: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*Artifacts, error) {
	var (
		dim, rowCount int
		fingerprint   []byte
		builtAt       sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT dimension, row_count, fingerprint, built_at FROM index_meta WHERE id = 1",
	).Scan(&dim, &rowCount, &fingerprint, &builtAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index_meta: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT row_id, tag, text, vector FROM examples ORDER BY row_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query examples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	idx := NewIndex(dim)
	records := make([]Record, 0, rowCount)
	for rows.Next() {
		var (
			rowID int
			rec   Record
			blob  []byte
		)
		if err := rows.Scan(&rowID, &rec.Tag, &rec.Text, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan example: %w", err)
		}
		if rowID != len(records) {
			return nil, fmt.Errorf("%w: expected row %d, found %d", ErrCorruptIndex, len(records), rowID)
		}
		if err := idx.Add(deserializeVector(blob)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(records) != rowCount {
		return nil, fmt.Errorf("%w: header says %d rows, found %d", ErrCorruptIndex, rowCount, len(records))
	}

	artifacts := &Artifacts{Index: idx, Records: records}
	copy(artifacts.Fingerprint[:], fingerprint)
	if builtAt.Valid {
		artifacts.BuiltAt = builtAt.Time.UTC()
	}
	return artifacts, nil
}

// Save replaces the stored artifacts in one transaction
func (s *SQLiteStore) Save(ctx context.Context, artifacts *Artifacts) error {
	if err := artifacts.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM examples"); err != nil {
		return fmt.Errorf("failed to clear examples: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM index_meta"); err != nil {
		return fmt.Errorf("failed to clear index_meta: %w", err)
	}

	builtAt := artifacts.BuiltAt
	if builtAt.IsZero() {
		builtAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO index_meta (id, dimension, row_count, fingerprint, built_at) VALUES (1, ?, ?, ?, ?)",
		artifacts.Index.Dimension(), artifacts.Index.Len(), artifacts.Fingerprint[:], builtAt,
	); err != nil {
		return fmt.Errorf("failed to write index_meta: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO examples (row_id, tag, text, vector) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, rec := range artifacts.Records {
		if _, err := stmt.ExecContext(ctx, i, rec.Tag, rec.Text, serializeVector(artifacts.Index.Row(i))); err != nil {
			return fmt.Errorf("failed to insert example %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Open returns the store for a backend. For the file backend paths are
// (index, metadata); for sqlite only the first path is used.
func Open(backend, indexPath, metadataPath string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(indexPath, metadataPath), nil
	case BackendSQLite:
		return NewSQLiteStore(indexPath)
	default:
		return nil, fmt.Errorf("unknown index backend %q", backend)
	}
}

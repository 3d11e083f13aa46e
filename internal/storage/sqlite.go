package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteTimeFormat sorts lexically in chronological order
const sqliteTimeFormat = "2006-01-02 15:04:05.000000"

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

func sqlitePlaceholder(int) string { return "?" }

// Ping checks the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	-- Compile and test invocations
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		contract_name TEXT NOT NULL,
		compiler_version TEXT NOT NULL,
		source_hash TEXT NOT NULL,
		success INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		passed INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		cached INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_builds_created ON builds(created_at);
	CREATE INDEX IF NOT EXISTS idx_builds_contract ON builds(contract_name);

	-- Explorer verification sessions
	CREATE TABLE IF NOT EXISTS verifications (
		id TEXT PRIMARY KEY,
		guid TEXT NOT NULL DEFAULT '',
		network TEXT NOT NULL,
		chain_id INTEGER NOT NULL,
		address TEXT NOT NULL,
		contract_name TEXT NOT NULL,
		compiler_version TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_verifications_address ON verifications(address);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("migrations completed")
	return nil
}

// RecordBuild stores a build record, assigning its ID and timestamp when unset
func (s *SQLiteStore) RecordBuild(ctx context.Context, b *Build) error {
	if err := prepareBuild(b); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO builds (id, kind, contract_name, compiler_version, source_hash, success, error, passed, failed, cached, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Kind, b.ContractName, b.CompilerVersion, b.SourceHash, b.Success, b.Error,
		b.Passed, b.Failed, b.Cached, b.DurationMs, b.CreatedAt.UTC().Format(sqliteTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting build: %w", err)
	}
	return nil
}

const buildColumns = `id, kind, contract_name, compiler_version, source_hash, success, error, passed, failed, cached, duration_ms, created_at`

func scanSQLiteBuild(row interface{ Scan(...any) error }) (*Build, error) {
	var b Build
	var createdAt string
	if err := row.Scan(&b.ID, &b.Kind, &b.ContractName, &b.CompilerVersion, &b.SourceHash, &b.Success,
		&b.Error, &b.Passed, &b.Failed, &b.Cached, &b.DurationMs, &createdAt); err != nil {
		return nil, err
	}
	t, err := time.Parse(sqliteTimeFormat, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	b.CreatedAt = t.UTC()
	return &b, nil
}

// GetBuild retrieves a build record by ID
func (s *SQLiteStore) GetBuild(ctx context.Context, id string) (*Build, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+buildColumns+" FROM builds WHERE id = ?", id)
	b, err := scanSQLiteBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting build: %w", err)
	}
	return b, nil
}

// ListBuilds lists build records, newest first
func (s *SQLiteStore) ListBuilds(ctx context.Context, filter BuildFilter, pagination PaginationParams) (*PaginatedResult[Build], error) {
	limit, offset, err := page(pagination)
	if err != nil {
		return nil, err
	}

	w := buildWhere(filter, sqlitePlaceholder)
	query := "SELECT " + buildColumns + " FROM builds" + w.String() +
		" ORDER BY created_at DESC, id DESC LIMIT " + w.next(limit+1) + " OFFSET " + w.next(offset)

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("listing builds: %w", err)
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		b, err := scanSQLiteBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return paginate(builds, limit, offset), nil
}

// RecordVerification stores the final state of a verification session
func (s *SQLiteStore) RecordVerification(ctx context.Context, v *Verification) error {
	if err := prepareVerification(v); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verifications (id, guid, network, chain_id, address, contract_name, compiler_version, state, message, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.GUID, v.Network, v.ChainID, v.Address, v.ContractName, v.CompilerVersion,
		v.State, v.Message, v.Attempts, v.CreatedAt.UTC().Format(sqliteTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting verification: %w", err)
	}
	return nil
}

// ListVerifications lists verification records, newest first
func (s *SQLiteStore) ListVerifications(ctx context.Context, filter VerificationFilter, pagination PaginationParams) (*PaginatedResult[Verification], error) {
	limit, offset, err := page(pagination)
	if err != nil {
		return nil, err
	}

	w := verificationWhere(filter, sqlitePlaceholder)
	query := `SELECT id, guid, network, chain_id, address, contract_name, compiler_version, state, message, attempts, created_at
		FROM verifications` + w.String() +
		" ORDER BY created_at DESC, id DESC LIMIT " + w.next(limit+1) + " OFFSET " + w.next(offset)

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("listing verifications: %w", err)
	}
	defer rows.Close()

	var verifications []Verification
	for rows.Next() {
		var v Verification
		var createdAt string
		if err := rows.Scan(&v.ID, &v.GUID, &v.Network, &v.ChainID, &v.Address, &v.ContractName,
			&v.CompilerVersion, &v.State, &v.Message, &v.Attempts, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(sqliteTimeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		v.CreatedAt = t.UTC()
		verifications = append(verifications, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return paginate(verifications, limit, offset), nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

func postgresPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	-- Compile and test invocations
	CREATE TABLE IF NOT EXISTS builds (
		id UUID PRIMARY KEY,
		kind TEXT NOT NULL,
		contract_name TEXT NOT NULL,
		compiler_version TEXT NOT NULL,
		source_hash TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		passed INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		cached BOOLEAN NOT NULL DEFAULT FALSE,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_builds_created ON builds(created_at);
	CREATE INDEX IF NOT EXISTS idx_builds_contract ON builds(contract_name);

	-- Explorer verification sessions
	CREATE TABLE IF NOT EXISTS verifications (
		id UUID PRIMARY KEY,
		guid TEXT NOT NULL DEFAULT '',
		network TEXT NOT NULL,
		chain_id BIGINT NOT NULL,
		address TEXT NOT NULL,
		contract_name TEXT NOT NULL,
		compiler_version TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
func (s *PostgresStore) RecordBuild(ctx context.Context, b *Build) error {
	if err := prepareBuild(b); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO builds (id, kind, contract_name, compiler_version, source_hash, success, error, passed, failed, cached, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		b.ID, b.Kind, b.ContractName, b.CompilerVersion, b.SourceHash, b.Success, b.Error,
		b.Passed, b.Failed, b.Cached, b.DurationMs, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting build: %w", err)
	}
	return nil
}

func scanPostgresBuild(row interface{ Scan(...any) error }) (*Build, error) {
	var b Build
	if err := row.Scan(&b.ID, &b.Kind, &b.ContractName, &b.CompilerVersion, &b.SourceHash, &b.Success,
		&b.Error, &b.Passed, &b.Failed, &b.Cached, &b.DurationMs, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return &b, nil
}

// GetBuild retrieves a build record by ID
func (s *PostgresStore) GetBuild(ctx context.Context, id string) (*Build, error) {
	// Malformed ids can't match a UUID column; report them as missing
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+buildColumns+" FROM builds WHERE id = $1", id)
	b, err := scanPostgresBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting build: %w", err)
	}
	return b, nil
}

// ListBuilds lists build records, newest first
func (s *PostgresStore) ListBuilds(ctx context.Context, filter BuildFilter, pagination PaginationParams) (*PaginatedResult[Build], error) {
	limit, offset, err := page(pagination)
	if err != nil {
		return nil, err
	}

	w := buildWhere(filter, postgresPlaceholder)
	query := "SELECT " + buildColumns + " FROM builds" + w.String() +
		" ORDER BY created_at DESC, id DESC LIMIT " + w.next(limit+1) + " OFFSET " + w.next(offset)

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("listing builds: %w", err)
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		b, err := scanPostgresBuild(rows)
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
func (s *PostgresStore) RecordVerification(ctx context.Context, v *Verification) error {
	if err := prepareVerification(v); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verifications (id, guid, network, chain_id, address, contract_name, compiler_version, state, message, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		v.ID, v.GUID, v.Network, v.ChainID, v.Address, v.ContractName, v.CompilerVersion,
		v.State, v.Message, v.Attempts, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting verification: %w", err)
	}
	return nil
}

// ListVerifications lists verification records, newest first
func (s *PostgresStore) ListVerifications(ctx context.Context, filter VerificationFilter, pagination PaginationParams) (*PaginatedResult[Verification], error) {
	limit, offset, err := page(pagination)
	if err != nil {
		return nil, err
	}

	w := verificationWhere(filter, postgresPlaceholder)
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
		if err := rows.Scan(&v.ID, &v.GUID, &v.Network, &v.ChainID, &v.Address, &v.ContractName,
			&v.CompilerVersion, &v.State, &v.Message, &v.Attempts, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.CreatedAt = v.CreatedAt.UTC()
		verifications = append(verifications, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return paginate(verifications, limit, offset), nil
}

package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Record Operations
// =============================================================================

// recordRow represents a deployment row in the database.
type recordRow struct {
	ID              string  `db:"id"`
	Image           string  `db:"image"`
	Tag             string  `db:"tag"`
	ContainerName   string  `db:"container_name"`
	NetworkName     string  `db:"network_name"`
	HostBindAddress string  `db:"host_bind_address"`
	HostPort        int     `db:"host_port"`
	ContainerPort   int     `db:"container_port"`
	Status          string  `db:"status"`
	ContainerID     string  `db:"container_id"`
	Error           string  `db:"error"`
	StartedAt       string  `db:"started_at"`
	FinishedAt      *string `db:"finished_at"`
}

func (s *SQLiteStore) CreateRecord(ctx context.Context, record *Record) error {
	row := recordRow{
		ID:              record.ID,
		Image:           record.Image,
		Tag:             record.Tag,
		ContainerName:   record.ContainerName,
		NetworkName:     record.NetworkName,
		HostBindAddress: record.HostBindAddress,
		HostPort:        record.HostPort,
		ContainerPort:   record.ContainerPort,
		Status:          string(record.Status),
		ContainerID:     record.ContainerID,
		Error:           record.Error,
		StartedAt:       record.StartedAt.UTC().Format(time.RFC3339Nano),
	}
	if record.FinishedAt != nil {
		v := record.FinishedAt.UTC().Format(time.RFC3339Nano)
		row.FinishedAt = &v
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO deployments (
			id, image, tag, container_name, network_name,
			host_bind_address, host_port, container_port,
			status, container_id, error, started_at, finished_at
		) VALUES (
			:id, :image, :tag, :container_name, :network_name,
			:host_bind_address, :host_port, :container_port,
			:status, :container_id, :error, :started_at, :finished_at
		)`, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return NewStoreError("CreateRecord", record.ID, "record already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateRecord", record.ID, err.Error(), err)
	}
	return nil
}

func (s *SQLiteStore) FinishRecord(ctx context.Context, id string, status RecordStatus, containerID, errMsg string, finishedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE deployments
		SET status = ?, container_id = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		string(status), containerID, errMsg, finishedAt.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return NewStoreError("FinishRecord", id, err.Error(), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("FinishRecord", id, err.Error(), err)
	}
	if affected == 0 {
		return NewStoreError("FinishRecord", id, "record not found", ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*Record, error) {
	var row recordRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM deployments WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetRecord", id, "record not found", ErrNotFound)
		}
		return nil, NewStoreError("GetRecord", id, err.Error(), err)
	}
	return rowToRecord(row)
}

func (s *SQLiteStore) ListRecords(ctx context.Context, opts ListOptions) ([]Record, error) {
	opts = opts.Normalize()

	var rows []recordRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM deployments
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?`, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListRecords", "", err.Error(), err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		record, err := rowToRecord(row)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

// rowToRecord converts a database row to a Record.
func rowToRecord(row recordRow) (*Record, error) {
	startedAt, err := time.Parse(time.RFC3339Nano, row.StartedAt)
	if err != nil {
		return nil, NewStoreError("rowToRecord", row.ID, fmt.Sprintf("bad started_at: %v", err), err)
	}

	record := &Record{
		ID:              row.ID,
		Image:           row.Image,
		Tag:             row.Tag,
		ContainerName:   row.ContainerName,
		NetworkName:     row.NetworkName,
		HostBindAddress: row.HostBindAddress,
		HostPort:        row.HostPort,
		ContainerPort:   row.ContainerPort,
		Status:          RecordStatus(row.Status),
		ContainerID:     row.ContainerID,
		Error:           row.Error,
		StartedAt:       startedAt,
	}

	if row.FinishedAt != nil && *row.FinishedAt != "" {
		finishedAt, err := time.Parse(time.RFC3339Nano, *row.FinishedAt)
		if err != nil {
			return nil, NewStoreError("rowToRecord", row.ID, fmt.Sprintf("bad finished_at: %v", err), err)
		}
		record.FinishedAt = &finishedAt
	}

	return record, nil
}

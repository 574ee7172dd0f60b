package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/CrowderSoup/admin-panel/kanban"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const (
	// BaselineVersion has only the legacy section columns on kb_cards.
	BaselineVersion uint = 1
	// SectionIDsVersion adds kb_cards.section_ids_json.
	SectionIDsVersion uint = 2
)

func InitDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info().Str("path", path).Msg("Database opened")
	return db, nil
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// Migrate applies every pending migration.
func Migrate(db *sql.DB) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// MigrateTo moves the schema up to version. It never migrates down.
func MigrateTo(db *sql.DB, version uint) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}
	current, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	case dirty:
		return fmt.Errorf("schema version %d is dirty", current)
	case current >= version:
		return nil
	}
	if err := m.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to migrate to version %d: %w", version, err)
	}
	return nil
}

// MigrateDown rolls back the given number of migrations.
func MigrateDown(db *sql.DB, steps int) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back %d migrations: %w", steps, err)
	}
	return nil
}

// SchemaVersion reports the applied version; 0 means no migrations yet.
func SchemaVersion(db *sql.DB) (uint, bool, error) {
	m, err := newMigrator(db)
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// DataService handles database operations for the admin panel
type DataService struct {
	db         *sql.DB
	sectionIDs atomic.Bool
}

func NewDataService(db *sql.DB) *DataService {
	return &DataService{db: db}
}

// ProbeCapabilities checks which optional columns exist. It runs once at
// startup and again after an explicit migration; requests read the cached
// flag.
func (s *DataService) ProbeCapabilities(ctx context.Context) error {
	ok, err := hasSectionIDsColumn(ctx, s.db)
	if err != nil {
		return err
	}
	s.sectionIDs.Store(ok)
	log.Info().Bool("section_ids_json", ok).Msg("Schema capabilities probed")
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// hasSectionIDsColumn asks the schema directly, bypassing the cached flag.
func hasSectionIDsColumn(ctx context.Context, q queryer) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('kb_cards') WHERE name = 'section_ids_json'`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to probe kb_cards columns: %w", err)
	}
	return n > 0, nil
}

func (s *DataService) SupportsSectionIDs() bool {
	return s.sectionIDs.Load()
}

// EnsureSectionIDsColumn upgrades the schema so multi-section writes can be
// stored. It is a no-op once the column is known to exist.
func (s *DataService) EnsureSectionIDsColumn(ctx context.Context) error {
	if s.SupportsSectionIDs() {
		return nil
	}
	log.Warn().Msg("section_ids_json missing, upgrading schema")
	if err := MigrateTo(s.db, SectionIDsVersion); err != nil {
		return fmt.Errorf("%w: %v", kanban.ErrSchemaCapabilityMissing, err)
	}
	if err := s.ProbeCapabilities(ctx); err != nil {
		return err
	}
	if !s.SupportsSectionIDs() {
		return fmt.Errorf("%w: section_ids_json still missing after upgrade", kanban.ErrSchemaCapabilityMissing)
	}
	return nil
}

package migrations

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Migrator applies versioned SQL files from a directory, tracking applied
// versions in a migrations table. Each file runs in its own transaction.
type Migrator struct {
	DB            *sql.DB
	MigrationsDir string
}

type Migration struct {
	Version   string
	Name      string
	FilePath  string
	AppliedAt *time.Time
}

func NewMigrator(db *sql.DB, migrationsDir string) *Migrator {
	return &Migrator{
		DB:            db,
		MigrationsDir: migrationsDir,
	}
}

// CreateMigrationsTable creates the migrations tracking table
func (m *Migrator) CreateMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			version VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP DEFAULT NOW()
		)
	`
	if _, err := m.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create migrations table: %v", err)
	}
	log.Println("Migrations table created/verified")
	return nil
}

// AppliedMigrations returns the migrations already recorded as applied
func (m *Migrator) AppliedMigrations() (map[string]Migration, error) {
	rows, err := m.DB.Query(`SELECT version, name, applied_at FROM migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %v", err)
	}
	defer rows.Close()

	applied := make(map[string]Migration)
	for rows.Next() {
		var migration Migration
		if err := rows.Scan(&migration.Version, &migration.Name, &migration.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %v", err)
		}
		applied[migration.Version] = migration
	}
	return applied, nil
}

// PendingMigrations returns the migration files not yet applied, in order
func (m *Migrator) PendingMigrations() ([]Migration, error) {
	applied, err := m.AppliedMigrations()
	if err != nil {
		return nil, err
	}

	files, err := filepath.Glob(filepath.Join(m.MigrationsDir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to read migration files: %v", err)
	}

	var pending []Migration
	for _, file := range files {
		filename := filepath.Base(file)
		version := versionFromFilename(filename)

		if _, exists := applied[version]; !exists {
			pending = append(pending, Migration{
				Version:  version,
				Name:     nameFromFilename(filename),
				FilePath: file,
			})
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Version < pending[j].Version
	})

	return pending, nil
}

// RunMigrations applies all pending migrations
func (m *Migrator) RunMigrations() error {
	if err := m.CreateMigrationsTable(); err != nil {
		return err
	}

	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		log.Println("No pending migrations to apply")
		return nil
	}

	log.Printf("Applying %d migrations...", len(pending))

	for _, migration := range pending {
		if err := m.applyMigration(migration); err != nil {
			return fmt.Errorf("failed to apply migration %s: %v", migration.Version, err)
		}
		log.Printf("Applied migration: %s - %s", migration.Version, migration.Name)
	}

	log.Println("All migrations applied successfully")
	return nil
}

// applyMigration runs one migration file inside a transaction
func (m *Migrator) applyMigration(migration Migration) error {
	content, err := os.ReadFile(migration.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %v", err)
	}

	tx, err := m.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(content)); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %v", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO migrations (version, name) VALUES ($1, $2)`,
		migration.Version, migration.Name,
	); err != nil {
		return fmt.Errorf("failed to record migration: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %v", err)
	}

	return nil
}

// versionFromFilename extracts the version from "001_initial_schema.sql"
func versionFromFilename(filename string) string {
	parts := strings.Split(filename, "_")
	if len(parts) > 0 {
		return parts[0]
	}
	return filename
}

// nameFromFilename extracts the name from "001_initial_schema.sql"
func nameFromFilename(filename string) string {
	name := strings.TrimSuffix(filename, ".sql")
	parts := strings.Split(name, "_")
	if len(parts) > 1 {
		return strings.Join(parts[1:], "_")
	}
	return name
}

// Status prints applied and pending migrations
func (m *Migrator) Status() error {
	if err := m.CreateMigrationsTable(); err != nil {
		return err
	}

	applied, err := m.AppliedMigrations()
	if err != nil {
		return err
	}

	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}

	fmt.Println("\n=== Migration Status ===")
	fmt.Printf("Applied migrations: %d\n", len(applied))
	fmt.Printf("Pending migrations: %d\n", len(pending))

	if len(applied) > 0 {
		fmt.Println("\nApplied:")
		for _, migration := range applied {
			fmt.Printf("  %s - %s (applied: %s)\n",
				migration.Version, migration.Name, migration.AppliedAt.Format("2006-01-02 15:04:05"))
		}
	}

	if len(pending) > 0 {
		fmt.Println("\nPending:")
		for _, migration := range pending {
			fmt.Printf("  %s - %s\n", migration.Version, migration.Name)
		}
	}

	return nil
}

package services

import (
	"database/sql"
	"fmt"
	"log"
	"path/filepath"

	_ "github.com/lib/pq" // PostgreSQL driver

	"ms-payment-tracking/internal/migrations"
)

type DatabaseService struct {
	DB       *sql.DB
	migrator *migrations.Migrator
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func NewDatabaseService(config DatabaseConfig) (*DatabaseService, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Connected to database %s", config.DBName)

	migrator := migrations.NewMigrator(db, filepath.Join("migrations"))

	return &DatabaseService{
		DB:       db,
		migrator: migrator,
	}, nil
}

func (d *DatabaseService) Close() error {
	return d.DB.Close()
}

// CheckConnection pings the database; used by the readiness probe.
func (d *DatabaseService) CheckConnection() error {
	return d.DB.Ping()
}

// RunMigrations applies all pending database migrations
func (d *DatabaseService) RunMigrations() error {
	return d.migrator.RunMigrations()
}

// MigrationStatus shows current migration status
func (d *DatabaseService) MigrationStatus() error {
	return d.migrator.Status()
}

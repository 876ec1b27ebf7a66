package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Printf("Successfully connected to PostgreSQL database: %s", cfg.Database)

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Println("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	log.Println("Running database migrations...")

	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`,

		// Workers read model: payout destination and capability flag
		`CREATE TABLE IF NOT EXISTS workers (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			display_name VARCHAR(255) NOT NULL,
			payout_account_ref VARCHAR(255),
			payouts_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workers_payout_account ON workers(payout_account_ref)`,

		// Jobs read model
		`CREATE TABLE IF NOT EXISTS jobs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			poster_id UUID NOT NULL,
			worker_id UUID REFERENCES workers(id),
			title VARCHAR(500) NOT NULL,
			amount DECIMAL(12, 2) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'open',
			completed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_worker ON jobs(worker_id)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,

		// Earnings ledger. Status writes go through conditional updates only;
		// amounts are immutable after insert.
		`CREATE TABLE IF NOT EXISTS earnings (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			worker_id UUID NOT NULL REFERENCES workers(id),
			job_id UUID REFERENCES jobs(id),
			gross_amount DECIMAL(12, 2) NOT NULL CHECK (gross_amount > 0),
			service_fee DECIMAL(12, 2) NOT NULL CHECK (service_fee >= 0),
			net_amount DECIMAL(12, 2) NOT NULL CHECK (net_amount >= 0),
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			date_earned TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			date_paid TIMESTAMP,
			external_transfer_id VARCHAR(255),
			payee_account_ref VARCHAR(255),
			cancel_reason TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_earnings_worker ON earnings(worker_id)`,
		`CREATE INDEX IF NOT EXISTS idx_earnings_status ON earnings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_earnings_worker_status ON earnings(worker_id, status)`,

		// Payments audit. The partial unique index is the schema-level backstop
		// for the one-transfer-per-earning invariant.
		`CREATE TABLE IF NOT EXISTS payments (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			direction VARCHAR(10) NOT NULL,
			counterparty_user_id UUID NOT NULL,
			amount DECIMAL(12, 2) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			external_transaction_id VARCHAR(255),
			related_job_id UUID,
			related_earning_id UUID,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed_at TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_transfer_earning
			ON payments(related_earning_id) WHERE direction = 'transfer'`,
		`CREATE INDEX IF NOT EXISTS idx_payments_counterparty ON payments(counterparty_user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status)`,

		// Append-only payout audit trail
		`CREATE TABLE IF NOT EXISTS payout_events (
			id BIGSERIAL PRIMARY KEY,
			event_type VARCHAR(50) NOT NULL,
			earning_id UUID,
			worker_id UUID,
			batch_id UUID,
			detail JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payout_events_type ON payout_events(event_type)`,
		`CREATE INDEX IF NOT EXISTS idx_payout_events_earning ON payout_events(earning_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payout_events_created ON payout_events(created_at)`,

		// Create updated_at trigger function
		`CREATE OR REPLACE FUNCTION update_updated_at_column()
		RETURNS TRIGGER AS $$
		BEGIN
			NEW.updated_at = CURRENT_TIMESTAMP;
			RETURN NEW;
		END;
		$$ language 'plpgsql'`,

		`DROP TRIGGER IF EXISTS update_workers_updated_at ON workers`,
		`CREATE TRIGGER update_workers_updated_at BEFORE UPDATE ON workers
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column()`,

		`DROP TRIGGER IF EXISTS update_earnings_updated_at ON earnings`,
		`CREATE TRIGGER update_earnings_updated_at BEFORE UPDATE ON earnings
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column()`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

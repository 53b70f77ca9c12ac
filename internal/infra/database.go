package infra

import (
	"fmt"

	"appgrav/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies idempotent SQL patches that GORM
// cannot express (partial indexes, jsonb defaults).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

// RunMigrations creates or updates all tables and applies schema patches.
// Also used by integration tests against throwaway containers.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.UserProfile{},
		&model.Role{},
		&model.Permission{},
		&model.RolePermission{},
		&model.UserRole{},
		&model.UserPermission{},
		&model.UserSession{},
		&model.AuditLog{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL statements that GORM AutoMigrate cannot
// express.  Each statement uses IF NOT EXISTS semantics so re-running on an
// already-patched DB is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// Partial index for the session-validation lookup: only live sessions
		// are ever fetched by token hash.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_sessions_active_token') THEN
		    CREATE INDEX idx_sessions_active_token
		        ON user_sessions (token_hash)
		        WHERE ended_at IS NULL;
		  END IF;
		END $$`,
		// Partial index for "end all sessions of a user" on delete/deactivate.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_sessions_active_user') THEN
		    CREATE INDEX idx_sessions_active_user
		        ON user_sessions (user_id)
		        WHERE ended_at IS NULL;
		  END IF;
		END $$`,
		// Audit listings are always newest-first.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_audit_logs_created_at') THEN
		    CREATE INDEX idx_audit_logs_created_at
		        ON audit_logs (created_at DESC);
		  END IF;
		END $$`,
		// Audit rows are append-only: block UPDATE and DELETE at the DB level.
		`CREATE OR REPLACE FUNCTION audit_logs_immutable() RETURNS trigger AS $$
		BEGIN
		  RAISE EXCEPTION 'audit_logs is append-only';
		END;
		$$ LANGUAGE plpgsql`,
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_audit_logs_immutable') THEN
		    CREATE TRIGGER trg_audit_logs_immutable
		        BEFORE UPDATE OR DELETE ON audit_logs
		        FOR EACH ROW EXECUTE FUNCTION audit_logs_immutable();
		  END IF;
		END $$`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("schema patch: %w", err)
		}
	}
	return nil
}

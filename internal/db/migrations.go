package db

import (
	"database/sql"
	"fmt"
)

// Schema history for the certificates table:
//
//	v1: flat legacy shape: organization_name, valid_until, audit_hash
//	v2: adds the structured company JSON column, valid_to and a nested
//	     audit JSON column. Existing v1 rows are NOT rewritten; readers
//	     resolve the old and new columns by precedence.
const currentSchemaVersion = 2

// RunMigrations brings the store schema for the given certificates table up
// to the current version.
func RunMigrations(db *DB, table string) error {
	var tableExists bool
	err := db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	}

	if !tableExists {
		if err := initializeSchema(db, table); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		return nil
	}

	var currentVersion int
	err = db.QueryRow(`
		SELECT version FROM schema_version
		ORDER BY applied_at DESC LIMIT 1
	`).Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	if currentVersion < 1 || currentVersion > currentSchemaVersion {
		return fmt.Errorf("invalid schema version: %d", currentVersion)
	}

	if currentVersion < 2 {
		if err := migrateToV2(db, table); err != nil {
			return fmt.Errorf("failed to migrate to v2: %w", err)
		}
	}

	return nil
}

// initializeSchema creates all tables for a new database at the current
// version.
func initializeSchema(db *DB, table string) error {
	tx, err := db.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := execSQL(tx, schemaVersionTable); err != nil {
		return err
	}

	if err := execSQL(tx, fmt.Sprintf(certificatesTable, table)); err != nil {
		return err
	}
	if err := execSQL(tx, fmt.Sprintf(certificatesIndexes, table, table, table, table)); err != nil {
		return err
	}

	if err := execSQL(tx, auditLogsTable); err != nil {
		return err
	}
	if err := execSQL(tx, auditLogsIndexes); err != nil {
		return err
	}

	if err := execSQL(tx, fmt.Sprintf(`INSERT INTO schema_version (version) VALUES (%d)`, currentSchemaVersion)); err != nil {
		return err
	}

	return tx.Commit()
}

// migrateToV2 adds the structured columns next to the legacy flat ones
func migrateToV2(db *DB, table string) error {
	tx, err := db.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	alters := []string{
		fmt.Sprintf(`ALTER TABLE %s ADD COLUMN valid_to TEXT`, table),
		fmt.Sprintf(`ALTER TABLE %s ADD COLUMN company TEXT`, table),
		fmt.Sprintf(`ALTER TABLE %s ADD COLUMN audit TEXT`, table),
	}
	for _, stmt := range alters {
		if err := execSQL(tx, stmt); err != nil {
			return err
		}
	}

	if err := execSQL(tx, `INSERT INTO schema_version (version) VALUES (2)`); err != nil {
		return err
	}

	return tx.Commit()
}

// execSQL executes a SQL statement
func execSQL(tx *sql.Tx, query string) error {
	_, err := tx.Exec(query)
	return err
}

// Schema definitions
const (
	schemaVersionTable = `
CREATE TABLE schema_version (
    version INTEGER NOT NULL,
    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

	// %s is the configured certificates table name (validated identifier).
	// The legacy flat columns are created alongside the structured ones so
	// a fresh database can still ingest rows from old exports.
	certificatesTable = `
CREATE TABLE %s (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    certificate_code  TEXT NOT NULL UNIQUE,
    status            TEXT NOT NULL DEFAULT 'valid',
    level             TEXT NOT NULL,
    issued_at         TEXT NOT NULL,
    valid_to          TEXT,
    valid_until       TEXT,
    company           TEXT,
    organization_name TEXT,
    issuer_name       TEXT,
    audit_hash        TEXT,
    audit             TEXT,
    payload           TEXT,
    pdf_path          TEXT
)`

	certificatesIndexes = `
CREATE INDEX idx_certs_code ON %s(certificate_code);
CREATE INDEX idx_certs_issued_at ON %s(issued_at);
CREATE INDEX idx_certs_level ON %s(level);
CREATE INDEX idx_certs_status ON %s(status)`

	auditLogsTable = `
CREATE TABLE audit_logs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    action      TEXT NOT NULL,
    client_ip   TEXT NOT NULL,
    user_agent  TEXT,
    success     INTEGER NOT NULL,
    error_msg   TEXT,
    details     TEXT
)`

	auditLogsIndexes = `
CREATE INDEX idx_audit_timestamp ON audit_logs(timestamp);
CREATE INDEX idx_audit_action ON audit_logs(action);
CREATE INDEX idx_audit_success ON audit_logs(success)`
)

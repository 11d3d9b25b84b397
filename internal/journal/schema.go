package journal

import (
	"database/sql"

	"codeberg.org/mutker/wvasim/internal/errors"
	"codeberg.org/mutker/wvasim/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS sessions (
	       id          TEXT PRIMARY KEY,
	       transport   TEXT NOT NULL,
	       remote      TEXT NOT NULL,
	       started_at  INTEGER NOT NULL,
	       ended_at    INTEGER NOT NULL,
	       cycles      INTEGER NOT NULL CHECK (cycles >= 0),
	       frames      INTEGER NOT NULL CHECK (frames >= 0),
	       end_reason  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS cycles (
	       session_id     TEXT NOT NULL,
	       cycle          INTEGER NOT NULL CHECK (cycle > 0),
	       recorded_at    INTEGER NOT NULL,
	       elapsed_time   REAL NOT NULL,
	       ignition_state REAL NOT NULL,
	       engine_rpm     REAL NOT NULL,
	       temperature    REAL NOT NULL,
	       PRIMARY KEY (session_id, cycle)
	   );`

	insertCycleSQL = `
    INSERT INTO cycles (
        session_id, cycle, recorded_at,
        elapsed_time, ignition_state, engine_rpm, temperature
    ) VALUES (?, ?, ?, ?, ?, ?, ?)`

	insertSessionSQL = `
    INSERT OR REPLACE INTO sessions (
        id, transport, remote, started_at, ended_at,
        cycles, frames, end_reason
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
)

// journalTables are dropped when the schema is recreated.
var journalTables = []string{"cycles", "sessions", "schema_versions"}

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating journal database...")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			SQL   string
		}{
			Error: err.Error(),
			SQL:   createTablesSQL,
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "record_version",
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Int("version", SchemaVersion).
		Msg("Journal schema initialized")

	return nil
}

// GetSchemaVersion returns the current schema version, or 0 for an empty
// database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}

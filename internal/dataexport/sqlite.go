package dataexport

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // driver
)

// OpenSQLite opens (or creates) the export database at path and creates the schema.
func OpenSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, err
	}

	dsn := "file:" + path +
		"?_txlock=immediate" + // BEGIN IMMEDIATE-style txns
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(OFF)" +
		"&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

const schemaSQL = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS headers (
  block_height INTEGER PRIMARY KEY,
  block_hash   BLOB    NOT NULL,
  prev_hash    BLOB    NOT NULL,
  timestamp    INTEGER NOT NULL
) STRICT, WITHOUT ROWID;

-- (block_height, position) mirrors the tx pointer of the pebble store
CREATE TABLE IF NOT EXISTS transactions (
  block_height INTEGER NOT NULL REFERENCES headers(block_height),
  position     INTEGER NOT NULL,
  txid         BLOB    NOT NULL,

  PRIMARY KEY (block_height, position)
) STRICT, WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS outputs (
  block_height INTEGER NOT NULL,
  position     INTEGER NOT NULL,
  vout         INTEGER NOT NULL,
  amount       INTEGER NOT NULL, -- sats
  script       BLOB    NOT NULL,
  address      TEXT,             -- NULL when no address could be derived

  PRIMARY KEY (block_height, position, vout),
  FOREIGN KEY (block_height, position) REFERENCES transactions(block_height, position)
) STRICT, WITHOUT ROWID;

-- coinbase and unresolvable inputs point at 0:0:0
CREATE TABLE IF NOT EXISTS inputs (
  block_height   INTEGER NOT NULL,
  position       INTEGER NOT NULL,
  idx            INTEGER NOT NULL,
  spent_height   INTEGER NOT NULL,
  spent_position INTEGER NOT NULL,
  spent_vout     INTEGER NOT NULL,
  resolution     TEXT    NOT NULL,

  PRIMARY KEY (block_height, position, idx),
  FOREIGN KEY (block_height, position) REFERENCES transactions(block_height, position)
) STRICT, WITHOUT ROWID;
`

// DropIndexes removes the lookup indexes so a bulk export runs without index maintenance.
func DropIndexes(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		"DROP INDEX IF EXISTS ix_transactions_txid",
		"DROP INDEX IF EXISTS ix_outputs_address",
		"DROP INDEX IF EXISTS ix_inputs_spent",
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func CreateIndexes(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS ix_transactions_txid ON transactions(txid)",
		"CREATE INDEX IF NOT EXISTS ix_outputs_address ON outputs(address) WHERE address IS NOT NULL",
		"CREATE INDEX IF NOT EXISTS ix_inputs_spent ON inputs(spent_height, spent_position, spent_vout)",
		"PRAGMA optimize",
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

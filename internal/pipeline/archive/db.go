// Package archive persists terminal sessions to SQLite so finished runs
// survive process restarts. Only terminal snapshots land here; live state
// stays in the in-memory store.
package archive

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	event_count INTEGER NOT NULL,
	outcome_kind TEXT NOT NULL,
	outcome_content TEXT NOT NULL DEFAULT '',
	outcome_message TEXT NOT NULL DEFAULT '',
	outcome_phase TEXT NOT NULL DEFAULT '',
	outcome_details TEXT NOT NULL DEFAULT '',
	cancelled INTEGER NOT NULL DEFAULT 0,
	activity TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	archived_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sessions_archived_at ON sessions(archived_at);
`

// NewDB opens (creating if necessary) the archive database at path and
// ensures the schema exists. ":memory:" is accepted for tests.
func NewDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply archive schema: %w", err)
	}
	return db, nil
}

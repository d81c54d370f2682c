// Package archive mirrors the conversation store into a local SQLite
// database so a restarted client can show the chat list before the first
// fetch completes. The mirror is write-behind: it consumes the store's bus
// events on its own goroutine and never sits on the transport read path.
package archive

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection for the app-owned archive database.
type DB struct {
	*sql.DB
}

// Open creates a SQLite connection with WAL mode and recommended pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{db}, nil
}

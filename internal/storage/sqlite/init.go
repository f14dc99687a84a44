package sqlite

import (
	"context"
	"database/sql"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

const schema = `CREATE TABLE IF NOT EXISTS downloaded_files (
	id TEXT PRIMARY KEY,
	channel_id INTEGER NOT NULL,
	message_id TEXT NOT NULL,
	text TEXT NOT NULL,
	filename TEXT NOT NULL,
	created TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_downloaded_files_channel_id ON downloaded_files (channel_id);`

// InitDB opens the SQLite database at path and creates the downloaded_files
// table if it doesn't exist. The pool is capped at a single connection.
func InitDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()

		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()

		return nil, err
	}

	return db, nil
}

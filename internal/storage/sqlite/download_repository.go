package sqlite

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/italolelis/channel_downloader/internal/logctx"
	"github.com/italolelis/channel_downloader/internal/media"
	"github.com/italolelis/channel_downloader/internal/storage"
)

// DownloadRepository stores download history in a single SQLite connection.
// Every operation holds mu for its whole duration, so callers never
// interleave on the connection.
type DownloadRepository struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

func NewDownloadRepository(path string) *DownloadRepository {
	return &DownloadRepository{path: path}
}

// EnsureOpen connects to the database and initializes the schema once.
func (r *DownloadRepository) EnsureOpen(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.conn(ctx)

	return err
}

// conn must be called with mu held.
func (r *DownloadRepository) conn(ctx context.Context) (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	logger := logctx.LoggerFromContext(ctx)
	logger.Info("connecting to database", "path", r.path)

	db, err := InitDB(ctx, r.path)
	if err != nil {
		return nil, &storage.PersistenceError{Operation: "open", Err: err}
	}

	logger.Info("database connection and schema initialization complete")

	r.db = db

	return db, nil
}

// LoadExistingIdentifiers rebuilds the identifiers of a channel from the
// stored artifact file names.
func (r *DownloadRepository) LoadExistingIdentifiers(ctx context.Context, partitionKey int64) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	db, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT filename FROM downloaded_files WHERE channel_id = ?`, partitionKey)
	if err != nil {
		return nil, &storage.PersistenceError{Operation: "load_identifiers", Err: err}
	}
	defer rows.Close()

	ids := make(map[string]struct{})

	for rows.Next() {
		var filename string
		if err := rows.Scan(&filename); err != nil {
			return nil, &storage.PersistenceError{Operation: "load_identifiers", Err: err}
		}

		ids[media.IdentifierFromPath(filename)] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, &storage.PersistenceError{Operation: "load_identifiers", Err: err}
	}

	return ids, nil
}

// Write inserts one record inside a transaction.
func (r *DownloadRepository) Write(ctx context.Context, item *storage.DownloadedItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	db, err := r.conn(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return &storage.PersistenceError{Operation: "write", Err: err}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO downloaded_files (id, channel_id, message_id, text, filename, created) VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.PartitionKey, item.SourceMessageID, item.Text, item.StoragePath,
		item.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		_ = tx.Rollback()

		return &storage.PersistenceError{Operation: "write", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &storage.PersistenceError{Operation: "write", Err: err}
	}

	return nil
}

// Close releases the connection. Calling it more than once is harmless.
func (r *DownloadRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil
	}

	err := r.db.Close()
	r.db = nil

	if err != nil {
		return &storage.PersistenceError{Operation: "close", Err: err}
	}

	return nil
}

package sqlite

import (
	"context"

	"github.com/italolelis/channel_downloader/internal/storage"
	"github.com/italolelis/channel_downloader/internal/telemetry"
)

// InstrumentedDownloadRepository wraps a storage.DownloadRepository with telemetry.
type InstrumentedDownloadRepository struct {
	repo      storage.DownloadRepository
	telemetry *telemetry.Telemetry
}

// NewInstrumentedDownloadRepository creates a new instrumented download repository.
func NewInstrumentedDownloadRepository(repo storage.DownloadRepository, tel *telemetry.Telemetry) *InstrumentedDownloadRepository {
	return &InstrumentedDownloadRepository{
		repo:      repo,
		telemetry: tel,
	}
}

// EnsureOpen opens the repository with telemetry.
func (r *InstrumentedDownloadRepository) EnsureOpen(ctx context.Context) error {
	return r.telemetry.InstrumentDBOperation(ctx, "ensure_open", func(ctx context.Context) error {
		return r.repo.EnsureOpen(ctx)
	})
}

// LoadExistingIdentifiers loads the identifiers of a channel with telemetry.
func (r *InstrumentedDownloadRepository) LoadExistingIdentifiers(ctx context.Context, partitionKey int64) (map[string]struct{}, error) {
	var result map[string]struct{}

	err := r.telemetry.InstrumentDBOperation(ctx, "load_identifiers", func(ctx context.Context) error {
		var err error

		result, err = r.repo.LoadExistingIdentifiers(ctx, partitionKey)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Write persists a record with telemetry.
func (r *InstrumentedDownloadRepository) Write(ctx context.Context, item *storage.DownloadedItem) error {
	return r.telemetry.InstrumentDBOperation(ctx, "write", func(ctx context.Context) error {
		return r.repo.Write(ctx, item)
	})
}

// Close closes the underlying repository.
func (r *InstrumentedDownloadRepository) Close() error {
	return r.repo.Close()
}

package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/italolelis/channel_downloader/internal/downloader/progress"
	"github.com/italolelis/channel_downloader/internal/logctx"
	"github.com/italolelis/channel_downloader/internal/media"
	"github.com/italolelis/channel_downloader/internal/storage"
	"github.com/italolelis/channel_downloader/internal/telemetry"
)

const progressInterval = int64(100 * 1024 * 1024) // 100MB

// Stage is the step of the fetch-persist pipeline an outcome stopped at.
type Stage string

const (
	StageAdmission Stage = "admission"
	StageDownload  Stage = "download"
	StagePersist   Stage = "persist"
	StageDone      Stage = "done"
)

// Outcome is the result of processing one candidate. Item is set on success,
// Err on failure.
type Outcome struct {
	Candidate *media.Candidate
	Item      *storage.DownloadedItem
	Stage     Stage
	Err       error
}

// Succeeded reports whether the candidate was downloaded and recorded.
func (o *Outcome) Succeeded() bool {
	return o.Err == nil && o.Item != nil
}

// Grabber opens the bytes of an attachment.
type Grabber interface {
	GrabAttachment(ctx context.Context, a *media.Attachment) (io.ReadCloser, error)
}

// Worker downloads one candidate at a time and records it. A Worker is safe
// for concurrent use; the limiter bounds how many Process calls do work at once.
type Worker struct {
	grabber   Grabber
	repo      storage.DownloadRepository
	limiter   *Limiter
	telemetry *telemetry.Telemetry
	now       func() time.Time
}

func NewWorker(grabber Grabber, repo storage.DownloadRepository, limiter *Limiter, tel *telemetry.Telemetry) *Worker {
	return &Worker{
		grabber:   grabber,
		repo:      repo,
		limiter:   limiter,
		telemetry: tel,
		now:       time.Now,
	}
}

// Destination returns the artifact path for a candidate.
func Destination(c *media.Candidate) string {
	return filepath.Join(c.Directory, c.Identifier+"."+c.Extension)
}

// Process downloads the candidate and persists its record. On any failure the
// artifact is removed and the returned outcome carries the cause.
func (w *Worker) Process(ctx context.Context, c *media.Candidate) *Outcome {
	logger := logctx.LoggerFromContext(ctx).With(
		"identifier", c.Identifier,
		"message_id", c.Message.ID,
		"kind", c.Attachment.Kind,
	)
	ctx = logctx.WithLogger(ctx, logger)

	outcome := &Outcome{Candidate: c, Stage: StageAdmission}

	if err := w.limiter.Acquire(ctx); err != nil {
		outcome.Err = err

		logger.Error("download not started", "err", err)

		return outcome
	}
	defer w.limiter.Release()

	target, err := filepath.Abs(Destination(c))
	if err != nil {
		outcome.Stage = StageDownload
		outcome.Err = &media.DownloadError{Identifier: c.Identifier, Err: err}

		logger.Error("failed to resolve destination", "err", err)

		return outcome
	}

	_ = w.telemetry.InstrumentDownload(ctx, string(c.Attachment.Kind), func(ctx context.Context) error {
		outcome.Stage = StageDownload
		if err := w.download(ctx, c, target); err != nil {
			outcome.Err = &media.DownloadError{Identifier: c.Identifier, Err: err}

			return outcome.Err
		}

		outcome.Stage = StagePersist

		item := &storage.DownloadedItem{
			ID:              uuid.NewString(),
			PartitionKey:    c.PartitionKey,
			SourceMessageID: strconv.FormatInt(c.Message.ID, 10),
			Text:            c.Message.Text,
			StoragePath:     target,
			CreatedAt:       w.now().UTC(),
		}

		if err := w.repo.Write(ctx, item); err != nil {
			outcome.Err = err

			return err
		}

		outcome.Stage = StageDone
		outcome.Item = item

		return nil
	})

	if outcome.Err != nil {
		logger.Error("failed to download attachment", "stage", outcome.Stage, "path", target, "err", outcome.Err)

		w.rollback(logger, target)

		return outcome
	}

	logger.Info("downloaded and recorded attachment", "path", target)

	return outcome
}

func (w *Worker) download(ctx context.Context, c *media.Candidate, target string) error {
	logger := logctx.LoggerFromContext(ctx)

	reader, err := w.grabber.GrabAttachment(ctx, c.Attachment)
	if err != nil {
		return fmt.Errorf("failed to grab attachment: %w", err)
	}
	defer reader.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create target file: %w", err)
	}

	logger.Info("downloading attachment", "path", target, "size", humanize.Bytes(uint64(max(c.Attachment.Size, 0))))

	pr := progress.NewReader(reader, c.Attachment.Size, progressInterval, func(written, total int64) {
		if total > 0 {
			logger.Debug("download progress",
				"downloaded", humanize.Bytes(uint64(written)),
				"total", humanize.Bytes(uint64(total)),
				"percent", humanize.FtoaWithDigits(float64(written)*100/float64(total), 2))
		} else {
			logger.Debug("download progress", "downloaded", humanize.Bytes(uint64(written)))
		}
	})

	if _, err := io.Copy(out, pr); err != nil {
		out.Close()

		return fmt.Errorf("failed to copy attachment: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close target file: %w", err)
	}

	return nil
}

func (w *Worker) rollback(logger *slog.Logger, target string) {
	err := os.Remove(target)
	if err == nil {
		logger.Info("removed partial artifact", "path", target)

		return
	}

	if errors.Is(err, os.ErrNotExist) {
		return
	}

	logger.Error("cleanup failed", "err", &media.CleanupError{Path: target, Err: err})
}

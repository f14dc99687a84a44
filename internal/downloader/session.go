package downloader

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/italolelis/channel_downloader/internal/cleanup"
	"github.com/italolelis/channel_downloader/internal/logctx"
	"github.com/italolelis/channel_downloader/internal/media"
	"github.com/italolelis/channel_downloader/internal/source"
	"github.com/italolelis/channel_downloader/internal/storage"
	"github.com/italolelis/channel_downloader/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// Target routes one media kind to its storage directory.
type Target struct {
	Kind             media.Kind
	Directory        string
	DefaultExtension string
}

// SessionConfig describes what a session scans and where artifacts go.
type SessionConfig struct {
	ChannelID    int64
	Keywords     []string
	Targets      []Target
	SweepOrphans bool
}

// Summary reports the result of one session.
type Summary struct {
	ChannelID    int64
	ChannelTitle string
	Found        int
	Succeeded    int
	Failed       int
	// ScanErr is set when the message stream stopped early.
	ScanErr error
}

// Session scans a channel once and downloads every new attachment.
type Session struct {
	source    source.Source
	repo      storage.DownloadRepository
	worker    *Worker
	telemetry *telemetry.Telemetry
	cfg       SessionConfig
}

// NewSession validates cfg and wires a session. Invalid default extensions are
// reported here rather than per candidate.
func NewSession(
	src source.Source,
	repo storage.DownloadRepository,
	limiter *Limiter,
	tel *telemetry.Telemetry,
	cfg SessionConfig,
) (*Session, error) {
	if limiter == nil {
		return nil, &media.ConfigurationError{Field: "download_at_same_time_size", Reason: "limiter is required"}
	}

	for _, t := range cfg.Targets {
		if _, err := media.ResolveExtension(nil, t.DefaultExtension); err != nil {
			return nil, err
		}
	}

	return &Session{
		source:    src,
		repo:      repo,
		worker:    NewWorker(src, repo, limiter, tel),
		telemetry: tel,
		cfg:       cfg,
	}, nil
}

// Run executes the session. The returned error is non-nil only when the
// session could not start, and is then a *media.ConnectionError. The
// repository is closed before Run returns.
func (s *Session) Run(ctx context.Context) (*Summary, error) {
	ctx = logctx.With(ctx, "channel_id", s.cfg.ChannelID)
	logger := logctx.LoggerFromContext(ctx)

	defer func() {
		if err := s.repo.Close(); err != nil {
			logger.Error("failed to close repository", "err", err)
		}
	}()

	existing, ch, err := s.start(ctx)
	if err != nil {
		logger.Error("session aborted", "err", err)

		s.telemetry.RecordSession(ctx, "aborted", 0, 0)

		return nil, err
	}

	if ch.ID != s.cfg.ChannelID {
		logger.Warn("source reported a different channel id, keeping the configured one", "source_channel_id", ch.ID)
	}

	if s.cfg.SweepOrphans {
		cleanup.SweepOrphans(ctx, s.directories(), s.cfg.ChannelID, existing)
	}

	summary := &Summary{ChannelID: s.cfg.ChannelID, ChannelTitle: ch.Title}
	seen := maps.Clone(existing)
	if seen == nil {
		seen = make(map[string]struct{})
	}

	var (
		mu sync.Mutex
		wg errgroup.Group
	)

	logger.Info("scanning channel", "channel_title", ch.Title, "known_items", len(existing))

	for msg, err := range s.source.Messages(ctx, ch) {
		if err != nil {
			summary.ScanErr = err

			logger.Error("message scan stopped", "err", err)

			break
		}

		for _, c := range s.candidates(ctx, ch, msg, seen) {
			summary.Found++

			wg.Go(func() error {
				outcome := s.worker.Process(ctx, c)

				mu.Lock()
				defer mu.Unlock()

				if outcome.Succeeded() {
					summary.Succeeded++
				} else {
					summary.Failed++
				}

				return nil
			})
		}
	}

	_ = wg.Wait()

	status := "completed"
	if summary.ScanErr != nil {
		status = "partial"
	}

	s.telemetry.RecordSession(ctx, status, summary.Succeeded, summary.Failed)

	logger.Info("session finished",
		"found", summary.Found,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)

	return summary, nil
}

func (s *Session) start(ctx context.Context) (map[string]struct{}, *media.Channel, error) {
	if err := s.repo.EnsureOpen(ctx); err != nil {
		return nil, nil, asConnectionError("open_repository", err)
	}

	existing, err := s.repo.LoadExistingIdentifiers(ctx, s.cfg.ChannelID)
	if err != nil {
		return nil, nil, asConnectionError("load_identifiers", err)
	}

	if err := s.source.Authenticate(ctx); err != nil {
		return nil, nil, asConnectionError("authenticate", err)
	}

	ch, err := s.source.Channel(ctx, s.cfg.ChannelID)
	if err != nil {
		return nil, nil, asConnectionError("channel", err)
	}

	return existing, ch, nil
}

// candidates returns the eligible attachments of msg and marks them as seen.
func (s *Session) candidates(ctx context.Context, ch *media.Channel, msg *media.Message, seen map[string]struct{}) []*media.Candidate {
	logger := logctx.LoggerFromContext(ctx)

	if !media.MatchesKeywords(msg.Text, s.cfg.Keywords) {
		return nil
	}

	var out []*media.Candidate

	for _, t := range s.cfg.Targets {
		if !media.HasMediaKind(msg, t.Kind) {
			continue
		}

		att := msg.Attachment(t.Kind)
		id := media.DeriveIdentifier(s.cfg.ChannelID, msg.ID, att.ID)

		if media.IsKnown(seen, id) {
			logger.Debug("attachment already downloaded", "identifier", id)

			continue
		}

		ext, err := media.ResolveExtension(att, t.DefaultExtension)
		if err != nil {
			logger.Error("failed to resolve extension", "identifier", id, "err", err)

			continue
		}

		seen[id] = struct{}{}

		out = append(out, &media.Candidate{
			Message:      msg,
			Attachment:   att,
			Channel:      ch,
			PartitionKey: s.cfg.ChannelID,
			Identifier:   id,
			Extension:    ext,
			Directory:    t.Directory,
		})
	}

	return out
}

func (s *Session) directories() []string {
	dirs := make([]string, 0, len(s.cfg.Targets))
	for _, t := range s.cfg.Targets {
		dirs = append(dirs, t.Directory)
	}

	return dirs
}

func asConnectionError(operation string, err error) error {
	var connErr *media.ConnectionError
	if errors.As(err, &connErr) {
		return err
	}

	return &media.ConnectionError{Operation: operation, Err: err}
}

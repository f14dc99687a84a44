package downloader_test

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"sync"
	"testing/iotest"

	"github.com/italolelis/channel_downloader/internal/media"
	"github.com/italolelis/channel_downloader/internal/storage"
)

var (
	errNotFound        = errors.New("attachment not found")
	errConnectionReset = errors.New("connection reset by peer")
)

type fakeSource struct {
	channel  *media.Channel
	messages []*media.Message
	// streamErr is yielded after all messages when set.
	streamErr  error
	authErr    error
	channelErr error
	content    map[string]string
	// broken maps a URL to a body that fails after its content is read.
	broken map[string]string
	// gate blocks every grab until it is closed.
	gate chan struct{}

	mu      sync.Mutex
	active  int
	peak    int
	grabbed []string
}

func (s *fakeSource) Authenticate(context.Context) error {
	return s.authErr
}

func (s *fakeSource) Channel(_ context.Context, id int64) (*media.Channel, error) {
	if s.channelErr != nil {
		return nil, s.channelErr
	}

	if s.channel != nil {
		return s.channel, nil
	}

	return &media.Channel{ID: id, Title: "test channel"}, nil
}

func (s *fakeSource) Messages(context.Context, *media.Channel) iter.Seq2[*media.Message, error] {
	return func(yield func(*media.Message, error) bool) {
		for _, m := range s.messages {
			if !yield(m, nil) {
				return
			}
		}

		if s.streamErr != nil {
			yield(nil, s.streamErr)
		}
	}
}

func (s *fakeSource) GrabAttachment(ctx context.Context, a *media.Attachment) (io.ReadCloser, error) {
	s.mu.Lock()
	s.grabbed = append(s.grabbed, a.URL)
	s.active++
	s.peak = max(s.peak, s.active)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if body, ok := s.broken[a.URL]; ok {
		return io.NopCloser(io.MultiReader(strings.NewReader(body), iotest.ErrReader(errConnectionReset))), nil
	}

	body, ok := s.content[a.URL]
	if !ok {
		return nil, errNotFound
	}

	return io.NopCloser(strings.NewReader(body)), nil
}

func (s *fakeSource) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active
}

func (s *fakeSource) Peak() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.peak
}

func (s *fakeSource) Grabbed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.grabbed...)
}

type fakeRepo struct {
	openErr  error
	loadErr  error
	writeErr error
	// onWrite runs before a write is accepted; a non-nil error rejects it.
	onWrite  func(item *storage.DownloadedItem) error
	existing map[string]struct{}

	mu     sync.Mutex
	items  []*storage.DownloadedItem
	closed int
}

func (r *fakeRepo) EnsureOpen(context.Context) error {
	if r.openErr != nil {
		return &storage.PersistenceError{Operation: "open", Err: r.openErr}
	}

	return nil
}

func (r *fakeRepo) LoadExistingIdentifiers(context.Context, int64) (map[string]struct{}, error) {
	if r.loadErr != nil {
		return nil, &storage.PersistenceError{Operation: "load_identifiers", Err: r.loadErr}
	}

	out := make(map[string]struct{}, len(r.existing))
	for id := range r.existing {
		out[id] = struct{}{}
	}

	return out, nil
}

func (r *fakeRepo) Write(_ context.Context, item *storage.DownloadedItem) error {
	if r.writeErr != nil {
		return &storage.PersistenceError{Operation: "write", Err: r.writeErr}
	}

	if r.onWrite != nil {
		if err := r.onWrite(item); err != nil {
			return &storage.PersistenceError{Operation: "write", Err: err}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = append(r.items, item)

	return nil
}

func (r *fakeRepo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed++

	return nil
}

func (r *fakeRepo) Items() []*storage.DownloadedItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]*storage.DownloadedItem(nil), r.items...)
}

func int64Ptr(v int64) *int64 { return &v }

func video(id *int64, url string, fileName string) *media.Attachment {
	a := &media.Attachment{ID: id, Kind: media.KindVideo, URL: url, Size: 4}
	if fileName != "" {
		a.Attributes = []media.Attribute{{Type: "filename", FileName: fileName}}
	}

	return a
}

func audio(id *int64, url string) *media.Attachment {
	return &media.Attachment{ID: id, Kind: media.KindAudio, URL: url, Size: 4}
}

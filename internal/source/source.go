package source

import (
	"context"
	"io"
	"iter"

	"github.com/italolelis/channel_downloader/internal/media"
	"github.com/italolelis/channel_downloader/internal/telemetry"
)

// Source is a remote, ordered stream of messages carrying media attachments.
type Source interface {
	Authenticate(ctx context.Context) error
	Channel(ctx context.Context, id int64) (*media.Channel, error)
	// Messages yields the channel's messages newest first. A non-nil error
	// ends the sequence.
	Messages(ctx context.Context, ch *media.Channel) iter.Seq2[*media.Message, error]
	// GrabAttachment opens the attachment bytes. The caller closes the reader.
	GrabAttachment(ctx context.Context, a *media.Attachment) (io.ReadCloser, error)
}

// InstrumentedSource wraps Source with telemetry.
type InstrumentedSource struct {
	source     Source
	telemetry  *telemetry.Telemetry
	clientType string
}

// NewInstrumentedSource creates a new instrumented message source.
func NewInstrumentedSource(s Source, tel *telemetry.Telemetry, clientType string) *InstrumentedSource {
	return &InstrumentedSource{
		source:     s,
		telemetry:  tel,
		clientType: clientType,
	}
}

// Authenticate authenticates with the message source with telemetry.
func (s *InstrumentedSource) Authenticate(ctx context.Context) error {
	return s.telemetry.InstrumentClientOperation(ctx, s.clientType, "authenticate", func(ctx context.Context) error {
		return s.source.Authenticate(ctx)
	})
}

// Channel resolves a channel with telemetry.
func (s *InstrumentedSource) Channel(ctx context.Context, id int64) (*media.Channel, error) {
	var result *media.Channel

	err := s.telemetry.InstrumentClientOperation(ctx, s.clientType, "channel", func(ctx context.Context) error {
		var err error

		result, err = s.source.Channel(ctx, id)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Messages streams messages, recording one operation per stream.
func (s *InstrumentedSource) Messages(ctx context.Context, ch *media.Channel) iter.Seq2[*media.Message, error] {
	return func(yield func(*media.Message, error) bool) {
		_ = s.telemetry.InstrumentClientOperation(ctx, s.clientType, "messages", func(ctx context.Context) error {
			for msg, err := range s.source.Messages(ctx, ch) {
				if !yield(msg, err) {
					return nil
				}

				if err != nil {
					return err
				}
			}

			return nil
		})
	}
}

// GrabAttachment opens attachment bytes with telemetry.
func (s *InstrumentedSource) GrabAttachment(ctx context.Context, a *media.Attachment) (io.ReadCloser, error) {
	var result io.ReadCloser

	err := s.telemetry.InstrumentClientOperation(ctx, s.clientType, "grab_attachment", func(ctx context.Context) error {
		var err error

		result, err = s.source.GrabAttachment(ctx, a)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

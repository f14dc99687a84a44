package httpfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/italolelis/channel_downloader/internal/logctx"
	"github.com/italolelis/channel_downloader/internal/media"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

const DefaultPageSize = 100

var errNonDecreasingPage = errors.New("page did not advance past previous cursor")

// Client reads channel history from a JSON HTTP feed authenticated with a
// bearer token.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	// fileClient carries no credentials; it fetches attachments hosted
	// outside the feed's origin.
	fileClient *http.Client
	pageSize   int
}

// NewClient creates a feed client for baseURL using token as bearer credential.
func NewClient(baseURL, token string, pageSize int) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url: %q must be absolute", baseURL)
	}

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	base := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})

	return &Client{
		baseURL:    u,
		httpClient: oauth2.NewClient(ctx, tokenSource),
		fileClient: base,
		pageSize:   pageSize,
	}, nil
}

type channelResponse struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type messagesResponse struct {
	Messages []messageDTO `json:"messages"`
}

type messageDTO struct {
	ID    int64          `json:"id"`
	Text  *string        `json:"text"`
	Video *attachmentDTO `json:"video"`
	Audio *attachmentDTO `json:"audio"`
}

type attachmentDTO struct {
	ID         *int64         `json:"id"`
	Size       int64          `json:"size"`
	URL        string         `json:"url"`
	Attributes []attributeDTO `json:"attributes"`
}

type attributeDTO struct {
	Type     string `json:"type"`
	FileName string `json:"file_name"`
}

// Authenticate verifies the token against the feed.
func (c *Client) Authenticate(ctx context.Context) error {
	resp, err := c.get(ctx, c.endpoint("me", nil))
	if err != nil {
		return &media.ConnectionError{Operation: "authenticate", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &media.ConnectionError{
			Operation:  "authenticate",
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	return nil
}

// Channel resolves a channel by id.
func (c *Client) Channel(ctx context.Context, id int64) (*media.Channel, error) {
	resp, err := c.get(ctx, c.endpoint("channels/"+strconv.FormatInt(id, 10), nil))
	if err != nil {
		return nil, &media.ConnectionError{Operation: "channel", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &media.ConnectionError{
			Operation:  "channel",
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	var ch channelResponse
	if err := json.NewDecoder(resp.Body).Decode(&ch); err != nil {
		return nil, &media.ConnectionError{Operation: "channel", Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return &media.Channel{ID: ch.ID, Title: ch.Title}, nil
}

// Messages pages through the channel history from newest to oldest.
func (c *Client) Messages(ctx context.Context, ch *media.Channel) iter.Seq2[*media.Message, error] {
	return func(yield func(*media.Message, error) bool) {
		logger := logctx.LoggerFromContext(ctx).With("channel_id", ch.ID)

		var before int64

		for {
			page, err := c.page(ctx, ch.ID, before)
			if err != nil {
				yield(nil, &media.StreamScanError{ChannelID: ch.ID, LastMessageID: before, Err: err})

				return
			}

			logger.Debug("fetched message page", "before", before, "message_count", len(page))

			if len(page) == 0 {
				return
			}

			for i := range page {
				if !yield(toMessage(&page[i]), nil) {
					return
				}
			}

			last := page[len(page)-1].ID
			if before != 0 && last >= before {
				yield(nil, &media.StreamScanError{ChannelID: ch.ID, LastMessageID: last, Err: errNonDecreasingPage})

				return
			}

			before = last
		}
	}
}

// GrabAttachment opens the attachment content.
func (c *Client) GrabAttachment(ctx context.Context, a *media.Attachment) (io.ReadCloser, error) {
	ref, err := url.Parse(a.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid attachment url: %w", err)
	}

	target := c.baseURL.ResolveReference(ref)

	client := c.fileClient
	if c.sameOrigin(target) {
		client = c.httpClient
	}

	resp, err := c.do(ctx, client, target.String())
	if err != nil {
		return nil, fmt.Errorf("failed to download attachment: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()

		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return resp.Body, nil
}

func (c *Client) page(ctx context.Context, channelID, before int64) ([]messageDTO, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))

	if before != 0 {
		q.Set("before", strconv.FormatInt(before, 10))
	}

	resp, err := c.get(ctx, c.endpoint("channels/"+strconv.FormatInt(channelID, 10)+"/messages", q))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return body.Messages, nil
}

func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	return c.do(ctx, c.httpClient, target)
}

func (c *Client) do(ctx context.Context, client *http.Client, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	return resp, nil
}

// sameOrigin reports whether u is served by the feed itself and may receive
// the bearer token.
func (c *Client) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, c.baseURL.Scheme) && strings.EqualFold(u.Host, c.baseURL.Host)
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := c.baseURL.JoinPath(path)
	if q != nil {
		u.RawQuery = q.Encode()
	}

	return u.String()
}

func toMessage(m *messageDTO) *media.Message {
	msg := &media.Message{
		ID:    m.ID,
		Video: toAttachment(m.Video, media.KindVideo),
		Audio: toAttachment(m.Audio, media.KindAudio),
	}

	if m.Text != nil {
		msg.Text = *m.Text
	}

	return msg
}

func toAttachment(a *attachmentDTO, kind media.Kind) *media.Attachment {
	if a == nil {
		return nil
	}

	att := &media.Attachment{
		ID:         a.ID,
		Kind:       kind,
		Size:       a.Size,
		URL:        a.URL,
		Attributes: make([]media.Attribute, 0, len(a.Attributes)),
	}

	for _, attr := range a.Attributes {
		att.Attributes = append(att.Attributes, media.Attribute{Type: attr.Type, FileName: attr.FileName})
	}

	return att
}

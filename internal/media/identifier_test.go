package media_test

import (
	"errors"
	"testing"

	"github.com/italolelis/channel_downloader/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestDeriveIdentifier(t *testing.T) {
	tests := []struct {
		name         string
		partitionKey int64
		messageID    int64
		attachmentID *int64
		want         string
	}{
		{"with attachment id", 42, 7, int64Ptr(9), "42.7.9"},
		{"without attachment id", 42, 7, nil, "42.7.unknown"},
		{"negative channel id", -1001234, 15, int64Ptr(3), "-1001234.15.3"},
		{"zero attachment id", 1, 2, int64Ptr(0), "1.2.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, media.DeriveIdentifier(tt.partitionKey, tt.messageID, tt.attachmentID))
		})
	}
}

func TestDeriveIdentifier_Deterministic(t *testing.T) {
	first := media.DeriveIdentifier(42, 7, int64Ptr(9))

	for range 10 {
		assert.Equal(t, first, media.DeriveIdentifier(42, 7, int64Ptr(9)))
	}

	assert.NotEqual(t, first, media.DeriveIdentifier(43, 7, int64Ptr(9)))
	assert.NotEqual(t, first, media.DeriveIdentifier(42, 8, int64Ptr(9)))
	assert.NotEqual(t, first, media.DeriveIdentifier(42, 7, int64Ptr(10)))
}

// Id-less attachments on the same message share one identifier. This is a
// known limitation kept for compatibility with existing stores.
func TestDeriveIdentifier_UnknownCollision(t *testing.T) {
	video := media.DeriveIdentifier(42, 7, nil)
	audio := media.DeriveIdentifier(42, 7, nil)

	assert.Equal(t, video, audio)
}

func TestIdentifierFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/video/42.7.9.mp4", "42.7.9"},
		{"/data/audio/42.7.unknown.mp3", "42.7.unknown"},
		{"relative/42.7.9.MOV", "42.7.9"},
		{"42.7.9", "42.7"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, media.IdentifierFromPath(tt.path))
		})
	}
}

func TestResolveExtension(t *testing.T) {
	tests := []struct {
		name       string
		attachment *media.Attachment
		def        string
		want       string
	}{
		{
			name:       "no attributes",
			attachment: &media.Attachment{},
			def:        "mp4",
			want:       "mp4",
		},
		{
			name: "attribute without file name",
			attachment: &media.Attachment{Attributes: []media.Attribute{
				{Type: "video"},
			}},
			def:  "mp4",
			want: "mp4",
		},
		{
			name: "declared file name keeps case",
			attachment: &media.Attachment{Attributes: []media.Attribute{
				{Type: "video"},
				{Type: "filename", FileName: "clip.MOV"},
			}},
			def:  "mp4",
			want: "MOV",
		},
		{
			name: "file name without extension",
			attachment: &media.Attachment{Attributes: []media.Attribute{
				{Type: "filename", FileName: "clip"},
			}},
			def:  "mp3",
			want: "mp3",
		},
		{
			name: "hidden file name",
			attachment: &media.Attachment{Attributes: []media.Attribute{
				{Type: "filename", FileName: ".hidden"},
			}},
			def:  "mp3",
			want: "mp3",
		},
		{
			name: "trailing dot",
			attachment: &media.Attachment{Attributes: []media.Attribute{
				{Type: "filename", FileName: "song."},
			}},
			def:  "mp3",
			want: "mp3",
		},
		{
			name: "multiple dots",
			attachment: &media.Attachment{Attributes: []media.Attribute{
				{Type: "filename", FileName: "my.song.flac"},
			}},
			def:  "mp3",
			want: "flac",
		},
		{
			name:       "nil attachment",
			attachment: nil,
			def:        "mp4",
			want:       "mp4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := media.ResolveExtension(tt.attachment, tt.def)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveExtension_LeadingDotDefault(t *testing.T) {
	_, err := media.ResolveExtension(&media.Attachment{}, ".mp4")
	require.Error(t, err)

	var cfgErr *media.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "default_extension", cfgErr.Field)
}

package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/italolelis/channel_downloader/internal/config"
	"github.com/italolelis/channel_downloader/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
user:
  api_token: secret
source:
  base_url: https://feed.example.com/api/
search:
  channel_id: 42
  key_words: [live, concert]
storage:
  sqlite_file: downloads.db
  video_dir: videos
  audio_dir: audios
app:
  download_at_same_time_size: 4
  download_video: true
  download_audio: false
  log_file: app.log
`

func TestParse_Valid(t *testing.T) {
	cfg, err := config.Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.User.APIToken)
	assert.Equal(t, "https://feed.example.com/api/", cfg.Source.BaseURL)
	assert.Equal(t, int64(42), cfg.Search.ChannelID)
	assert.Equal(t, []string{"live", "concert"}, cfg.Search.KeyWords)
	assert.Equal(t, "videos", cfg.Storage.VideoDir)
	assert.Equal(t, 4, cfg.App.DownloadAtSameTimeSize)
	assert.True(t, cfg.App.DownloadVideo)
	assert.False(t, cfg.App.DownloadAudio)
	assert.Equal(t, "app.log", cfg.App.LogFile)

	assert.Equal(t, "INFO", cfg.App.LogLevel)
	assert.Equal(t, 100, cfg.Source.PageSize)
	assert.Equal(t, "channel_downloader", cfg.Telemetry.ServiceName)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestParse_EnvironmentOverrides(t *testing.T) {
	t.Setenv("CHANNEL_DOWNLOADER_APP_LOG_LEVEL", "debug")
	t.Setenv("CHANNEL_DOWNLOADER_APP_DOWNLOAD_AT_SAME_TIME_SIZE", "8")
	t.Setenv("CHANNEL_DOWNLOADER_SEARCH_CHANNEL_ID", "-1001")
	t.Setenv("CHANNEL_DOWNLOADER_SEARCH_KEY_WORDS", "a,b")

	cfg, err := config.Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, 8, cfg.App.DownloadAtSameTimeSize)
	assert.Equal(t, int64(-1001), cfg.Search.ChannelID)
	assert.Equal(t, []string{"a", "b"}, cfg.Search.KeyWords)
}

func TestParse_TokenFromSessionFile(t *testing.T) {
	session := filepath.Join(t.TempDir(), "session")
	require.NoError(t, os.WriteFile(session, []byte("from-file\n"), 0o600))

	data := []byte(`
user:
  session_file: ` + session + `
source:
  base_url: https://feed.example.com
search:
  channel_id: 1
storage:
  sqlite_file: a.db
  video_dir: v
  audio_dir: a
app:
  download_at_same_time_size: 1
`)

	cfg, err := config.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.User.APIToken)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{
			name: "malformed yaml",
			yaml: "user: [",
		},
		{
			name: "unknown field",
			yaml: validYAML + "unknown: true\n",
		},
		{
			name:  "zero concurrency",
			yaml:  replace(validYAML, "download_at_same_time_size: 4", "download_at_same_time_size: 0"),
			field: "Config.App.DownloadAtSameTimeSize",
		},
		{
			name:  "missing credentials",
			yaml:  replace(validYAML, "api_token: secret", "api_token: \"\""),
			field: "Config.User.APIToken",
		},
		{
			name:  "missing video dir",
			yaml:  replace(validYAML, "video_dir: videos", "video_dir: \"\""),
			field: "Config.Storage.VideoDir",
		},
		{
			name:  "invalid log level",
			yaml:  validYAML + "  log_level: LOUD\n",
			field: "Config.App.LogLevel",
		},
		{
			name:  "unreadable session file",
			yaml:  replace(validYAML, "api_token: secret", "session_file: /nonexistent/session"),
			field: "user.session_file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			require.Error(t, err)

			var cfgErr *media.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %T", err)

			if tt.field != "" {
				assert.Equal(t, tt.field, cfgErr.Field)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))

	var cfgErr *media.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func replace(s, old, new string) string {
	if !strings.Contains(s, old) {
		panic("fixture does not contain " + old)
	}

	return strings.Replace(s, old, new, 1)
}

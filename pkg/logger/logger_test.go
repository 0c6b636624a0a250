package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"feedmirror/pkg/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && l == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"verbose", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func newBufferLogger(t *testing.T) (Logger, *bytes.Buffer) {
	t.Helper()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, "debug")
	require.NoError(t, err)
	return l, &buf
}

func TestFieldChaining(t *testing.T) {
	l, buf := newBufferLogger(t)

	l.WithField("identity", "author").
		WithFields(map[string]interface{}{"post_id": "912", "ordinal": 2}).
		Info("chained fields")

	output := buf.String()
	assert.Contains(t, output, "chained fields")
	assert.Contains(t, output, `"identity":"author"`)
	assert.Contains(t, output, `"post_id":"912"`)
	assert.Contains(t, output, `"ordinal":2`)
}

func TestChildLoggerDoesNotLeakFields(t *testing.T) {
	l, buf := newBufferLogger(t)

	_ = l.WithField("child", true)
	l.Info("parent")

	assert.NotContains(t, buf.String(), "child")
}

func TestWithError(t *testing.T) {
	l, buf := newBufferLogger(t)

	assert.Same(t, l, l.WithError(nil))

	l.WithError(errors.New("disk full")).Error("write failed")
	assert.Contains(t, buf.String(), `"error":"disk full"`)
}

func TestStructuredFieldTypes(t *testing.T) {
	l, buf := newBufferLogger(t)

	l.WarnWithFields("typed", map[string]interface{}{
		"int64":    int64(456),
		"duration": 5 * time.Second,
		"when":     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		"strings":  []string{"a", "b"},
		"custom":   struct{ Name string }{Name: "x"},
	})

	output := buf.String()
	assert.Contains(t, output, `"int64":456`)
	assert.Contains(t, output, `"strings":["a","b"]`)
	assert.Contains(t, output, `"level":"warn"`)
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogDownload(tl, "author", "912", 1, "success", nil)
	LogDownload(tl, "author", "912", 2, "failed", errors.New("timeout"))
	LogAccountStart(tl, 42, "https://example.com/42")
	LogMetrics(tl, "sync", time.Second, map[string]interface{}{"downloaded": 3})

	assert.True(t, tl.HasMessage("Media downloaded"))
	warns := tl.GetMessagesByLevel("WARN")
	require.Len(t, warns, 1)
	assert.EqualError(t, warns[0].Error, "timeout")
	assert.Equal(t, 2, warns[0].Fields["ordinal"])
	assert.True(t, tl.HasMessage("Account sync started"))
	assert.True(t, strings.Contains(tl.String(), "Operation metrics"))

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Initialize(&config.LoggingConfig{Level: "debug"}))
	assert.NotNil(t, GetLogger())
	assert.Same(t, GetLogger(), OrDefault(nil))

	nop := NewNopLogger()
	assert.Same(t, nop, OrDefault(nop))
}

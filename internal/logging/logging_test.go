package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/client/syncmetrics"
	"github.com/iudanet/gophsync/internal/config"
)

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		want    string
		wantErr bool
	}{
		{name: "explicit text", format: "TEXT", want: "text"},
		{name: "explicit json", format: "json", want: "json"},
		{name: "auto non terminal", format: "auto", want: "json"},
		{name: "empty means auto", format: "", want: "json"},
		{name: "unknown", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveFormat(tt.format, &bytes.Buffer{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_FileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sync.log")
	rec := syncmetrics.New()

	logger, err := New(config.LoggingConfig{
		Level:     "debug",
		Format:    "auto",
		File:      path,
		MaxSizeMB: 1,
	}, rec)
	require.NoError(t, err)

	logger.With("component", "queue").Warn("operation dropped", "id", "op-1")
	logger.Debug("tick")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first), "file output is not a terminal, auto picks json")
	assert.Equal(t, "operation dropped", first["msg"])
	assert.Equal(t, "queue", first["component"])

	logs := rec.Snapshot().Logs
	require.Len(t, logs, 1, "only warnings reach the recorder")
	assert.Equal(t, "queue", logs[0].Component)
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud"}, nil)
	assert.Error(t, err)
}

func TestLogger_CloseWithoutFile(t *testing.T) {
	logger, err := New(config.LoggingConfig{Format: "text"}, nil)
	require.NoError(t, err)
	assert.NoError(t, logger.Close())
}
